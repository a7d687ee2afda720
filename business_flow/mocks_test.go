package businessflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kingsmedia/herald/models"
	"github.com/kingsmedia/herald/utils"
)

// mockEmailRecipientRepo is an in-memory EmailRecipientRepository that mirrors
// the gorm implementation's guard semantics for status transitions.
type mockEmailRecipientRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*models.EmailRecipient
}

func newMockEmailRecipientRepo() *mockEmailRecipientRepo {
	return &mockEmailRecipientRepo{nextID: 1, rows: make(map[uint]*models.EmailRecipient)}
}

func (m *mockEmailRecipientRepo) add(r models.EmailRecipient) *models.EmailRecipient {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.nextID
	m.nextID++
	if r.Status == "" {
		r.Status = models.RecipientStatusPending
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = utils.UTCNow()
	}
	m.rows[r.ID] = &r
	return &r
}

func (m *mockEmailRecipientRepo) ByID(_ context.Context, id uint) (*models.EmailRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (m *mockEmailRecipientRepo) ByFilter(_ context.Context, filter models.EmailRecipientFilter, _ string, limit, offset int) ([]*models.EmailRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.EmailRecipient
	for _, r := range m.sorted() {
		if filter.DispatchID != nil && r.DispatchID != *filter.DispatchID {
			continue
		}
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		if filter.Email != nil && r.Email != *filter.Email {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	if offset > 0 && offset < len(out) {
		out = out[offset:]
	} else if offset >= len(out) {
		out = nil
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockEmailRecipientRepo) Save(_ context.Context, r *models.EmailRecipient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		r.ID = m.nextID
		m.nextID++
	}
	cp := *r
	m.rows[r.ID] = &cp
	return nil
}

func (m *mockEmailRecipientRepo) SaveBatch(ctx context.Context, rs []*models.EmailRecipient) error {
	for _, r := range rs {
		if err := m.Save(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockEmailRecipientRepo) Count(_ context.Context, filter models.EmailRecipientFilter) (int64, error) {
	rows, _ := m.ByFilter(context.Background(), filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (m *mockEmailRecipientRepo) CountByDispatchAndStatus(_ context.Context, dispatchID uint, status models.RecipientStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.rows {
		if r.DispatchID == dispatchID && r.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *mockEmailRecipientRepo) CountsByStatus(_ context.Context, dispatchID uint) (map[models.RecipientStatus]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[models.RecipientStatus]int64)
	for _, r := range m.rows {
		if r.DispatchID == dispatchID {
			counts[r.Status]++
		}
	}
	return counts, nil
}

func (m *mockEmailRecipientRepo) ListByDispatch(_ context.Context, dispatchID uint, limit, offset int) ([]*models.EmailRecipient, error) {
	return m.ByFilter(context.Background(), models.EmailRecipientFilter{DispatchID: &dispatchID}, "id ASC", limit, offset)
}

func (m *mockEmailRecipientRepo) MarkDelivered(_ context.Context, id uint, at time.Time, messageID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok {
		r.Status = models.RecipientStatusDelivered
		r.DeliveredAt = &at
		if messageID != nil {
			r.MessageID = messageID
		}
	}
	return nil
}

func (m *mockEmailRecipientRepo) MarkFailed(_ context.Context, id uint, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok {
		r.Status = models.RecipientStatusFailed
		r.Error = &errMsg
	}
	return nil
}

func (m *mockEmailRecipientRepo) MarkOpened(_ context.Context, id uint, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok {
		r.Status = models.RecipientStatusOpened
		r.OpenedAt = &at
	}
	return nil
}

func (m *mockEmailRecipientRepo) MarkClicked(_ context.Context, id uint, openedAt, clickedAt time.Time, link *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok {
		r.Status = models.RecipientStatusOpened
		if r.OpenedAt == nil {
			r.OpenedAt = &openedAt
		}
		r.ClickedAt = &clickedAt
		if link != nil {
			r.ClickedLink = link
		}
	}
	return nil
}

func (m *mockEmailRecipientRepo) ByMessageID(_ context.Context, messageID string) (*models.EmailRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.MessageID != nil && *r.MessageID == messageID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockEmailRecipientRepo) LatestByEmail(_ context.Context, email string) (*models.EmailRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.EmailRecipient
	for _, r := range m.sorted() {
		if r.Email == email {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *mockEmailRecipientRepo) ByUnsubscribeToken(_ context.Context, token string) (*models.EmailRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.UnsubscribeToken == token {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockEmailRecipientRepo) sorted() []*models.EmailRecipient {
	out := make([]*models.EmailRecipient, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// mockEmailDispatchRepo is an in-memory EmailDispatchRepository.
type mockEmailDispatchRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*models.EmailDispatch
}

func newMockEmailDispatchRepo() *mockEmailDispatchRepo {
	return &mockEmailDispatchRepo{nextID: 1, rows: make(map[uint]*models.EmailDispatch)}
}

func (m *mockEmailDispatchRepo) ByID(_ context.Context, id uint) (*models.EmailDispatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.rows[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

func (m *mockEmailDispatchRepo) ByFilter(_ context.Context, filter models.EmailDispatchFilter, _ string, limit, offset int) ([]*models.EmailDispatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.EmailDispatch
	for _, d := range m.sorted() {
		if filter.ID != nil && d.ID != *filter.ID {
			continue
		}
		if filter.Status != nil && d.Status != *filter.Status {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockEmailDispatchRepo) Save(_ context.Context, d *models.EmailDispatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == 0 {
		d.ID = m.nextID
		m.nextID++
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = utils.UTCNow()
	}
	cp := *d
	m.rows[d.ID] = &cp
	return nil
}

func (m *mockEmailDispatchRepo) SaveBatch(ctx context.Context, ds []*models.EmailDispatch) error {
	for _, d := range ds {
		if err := m.Save(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockEmailDispatchRepo) Count(_ context.Context, filter models.EmailDispatchFilter) (int64, error) {
	rows, _ := m.ByFilter(context.Background(), filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (m *mockEmailDispatchRepo) NextRunnable(_ context.Context) (*models.EmailDispatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.sorted() {
		if d.Status == models.DispatchStatusPending || d.Status == models.DispatchStatusProcessing {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockEmailDispatchRepo) MarkProcessing(_ context.Context, id uint, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.rows[id]; ok {
		d.Status = models.DispatchStatusProcessing
		if d.SentAt == nil {
			d.SentAt = &sentAt
		}
	}
	return nil
}

func (m *mockEmailDispatchRepo) MarkCompleted(_ context.Context, id uint, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.rows[id]; ok {
		d.Status = models.DispatchStatusCompleted
		d.CompletedAt = &completedAt
	}
	return nil
}

func (m *mockEmailDispatchRepo) MarkFailed(_ context.Context, id uint, at time.Time, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.rows[id]; ok {
		d.Status = models.DispatchStatusFailed
		d.ErrorLog = d.ErrorLog.Append(at, message)
	}
	return nil
}

func (m *mockEmailDispatchRepo) List(_ context.Context, limit, offset int) ([]*models.EmailDispatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted()
	// newest first
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if offset > 0 && offset < len(all) {
		all = all[offset:]
	} else if offset >= len(all) {
		all = nil
	}
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	out := make([]*models.EmailDispatch, 0, len(all))
	for _, d := range all {
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockEmailDispatchRepo) sorted() []*models.EmailDispatch {
	out := make([]*models.EmailDispatch, 0, len(m.rows))
	for _, d := range m.rows {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// mockContactRepo is an in-memory ContactRepository.
type mockContactRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*models.Contact
	// emailRecipients/chatRecipients let eligibility queries exclude contacts
	// that already have a recipient row for a dispatch.
	emailRecipients *mockEmailRecipientRepo
	chatRecipients  *mockChatRecipientRepo
}

func newMockContactRepo() *mockContactRepo {
	return &mockContactRepo{nextID: 1, rows: make(map[uint]*models.Contact)}
}

func (m *mockContactRepo) add(c models.Contact) *models.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.nextID
	m.nextID++
	m.rows[c.ID] = &c
	return &c
}

func (m *mockContactRepo) ByID(_ context.Context, id uint) (*models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.rows[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (m *mockContactRepo) ByFilter(_ context.Context, filter models.ContactFilter, _ string, limit, offset int) ([]*models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Contact
	for _, c := range m.sorted() {
		if !matchesContactFilter(c, filter) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	if offset > 0 && offset < len(out) {
		out = out[offset:]
	} else if offset >= len(out) {
		out = nil
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockContactRepo) Save(_ context.Context, c *models.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = m.nextID
		m.nextID++
	}
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *mockContactRepo) SaveBatch(ctx context.Context, cs []*models.Contact) error {
	for _, c := range cs {
		if err := m.Save(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockContactRepo) Count(_ context.Context, filter models.ContactFilter) (int64, error) {
	rows, _ := m.ByFilter(context.Background(), filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (m *mockContactRepo) eligibleEmail(dispatchID uint, filter models.AudienceFilter) []*models.Contact {
	var out []*models.Contact
	for _, c := range m.sorted() {
		if c.Email == nil || *c.Email == "" || !c.Subscribed {
			continue
		}
		if !matchesAudience(c, filter) {
			continue
		}
		if m.emailRecipients != nil {
			if r, _ := m.emailRecipients.ByFilter(context.Background(), models.EmailRecipientFilter{DispatchID: &dispatchID, Email: c.Email}, "", 0, 0); len(r) > 0 {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func (m *mockContactRepo) ListEligibleEmail(_ context.Context, dispatchID uint, filter models.AudienceFilter, limit int) ([]*models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	eligible := m.eligibleEmail(dispatchID, filter)
	if limit > 0 && limit < len(eligible) {
		eligible = eligible[:limit]
	}
	out := make([]*models.Contact, 0, len(eligible))
	for _, c := range eligible {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockContactRepo) CountEligibleEmail(_ context.Context, dispatchID uint, filter models.AudienceFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.eligibleEmail(dispatchID, filter))), nil
}

// eligibleChat mirrors the chat selector: a non-empty kc_user_id and no
// recipient row for the dispatch yet. Unlike email it does not require
// subscribed.
func (m *mockContactRepo) ListEligibleChat(_ context.Context, dispatchID uint, filter models.AudienceFilter, limit int) ([]*models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Contact
	for _, c := range m.sorted() {
		if c.KCUserID == nil || *c.KCUserID == "" {
			continue
		}
		if !matchesAudience(c, filter) {
			continue
		}
		if m.chatRecipients != nil {
			if r, _ := m.chatRecipients.ByFilter(context.Background(), models.ChatRecipientFilter{DispatchID: &dispatchID, KCUserID: c.KCUserID}, "", 0, 0); len(r) > 0 {
				continue
			}
		}
		cp := *c
		out = append(out, &cp)
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockContactRepo) CountEligibleChat(ctx context.Context, dispatchID uint, filter models.AudienceFilter) (int64, error) {
	rows, err := m.ListEligibleChat(ctx, dispatchID, filter, 0)
	return int64(len(rows)), err
}

func (m *mockContactRepo) ByEmail(_ context.Context, email string) (*models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.Email != nil && *c.Email == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockContactRepo) ByKCUserID(_ context.Context, kcUserID string) (*models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.KCUserID != nil && *c.KCUserID == kcUserID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockContactRepo) DistinctValues(_ context.Context, column string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for _, c := range m.sorted() {
		var v string
		switch column {
		case "designation":
			v = c.Designation
		case "zone":
			v = c.Zone
		case "country":
			v = c.Country
		}
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

func (m *mockContactRepo) Unsubscribe(_ context.Context, contactID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.rows[contactID]; ok {
		c.Subscribed = false
	}
	return nil
}

func (m *mockContactRepo) sorted() []*models.Contact {
	out := make([]*models.Contact, 0, len(m.rows))
	for _, c := range m.rows {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func matchesContactFilter(c *models.Contact, f models.ContactFilter) bool {
	if f.Designation != nil && c.Designation != *f.Designation {
		return false
	}
	if f.Zone != nil && c.Zone != *f.Zone {
		return false
	}
	if f.Country != nil && c.Country != *f.Country {
		return false
	}
	if f.Subscribed != nil && c.Subscribed != *f.Subscribed {
		return false
	}
	return true
}

func matchesAudience(c *models.Contact, f models.AudienceFilter) bool {
	if f.Designation != models.FilterAll && c.Designation != f.Designation {
		return false
	}
	if f.Zone != models.FilterAll && c.Zone != f.Zone {
		return false
	}
	if f.Country != models.FilterAll && c.Country != f.Country {
		return false
	}
	return true
}

// mockChatDispatchRepo is an in-memory ChatDispatchRepository.
type mockChatDispatchRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*models.ChatDispatch
}

func newMockChatDispatchRepo() *mockChatDispatchRepo {
	return &mockChatDispatchRepo{nextID: 1, rows: make(map[uint]*models.ChatDispatch)}
}

func (m *mockChatDispatchRepo) ByID(_ context.Context, id uint) (*models.ChatDispatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.rows[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

func (m *mockChatDispatchRepo) ByFilter(_ context.Context, filter models.ChatDispatchFilter, _ string, _, _ int) ([]*models.ChatDispatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ChatDispatch
	for _, d := range m.sorted() {
		if filter.ID != nil && d.ID != *filter.ID {
			continue
		}
		if filter.Status != nil && d.Status != *filter.Status {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockChatDispatchRepo) Save(_ context.Context, d *models.ChatDispatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == 0 {
		d.ID = m.nextID
		m.nextID++
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = utils.UTCNow()
	}
	cp := *d
	m.rows[d.ID] = &cp
	return nil
}

func (m *mockChatDispatchRepo) SaveBatch(ctx context.Context, ds []*models.ChatDispatch) error {
	for _, d := range ds {
		if err := m.Save(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockChatDispatchRepo) Count(_ context.Context, filter models.ChatDispatchFilter) (int64, error) {
	rows, _ := m.ByFilter(context.Background(), filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (m *mockChatDispatchRepo) NextRunnable(_ context.Context) (*models.ChatDispatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.sorted() {
		if d.Status == models.DispatchStatusPending || d.Status == models.DispatchStatusProcessing {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockChatDispatchRepo) MarkProcessing(_ context.Context, id uint, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.rows[id]; ok {
		d.Status = models.DispatchStatusProcessing
		if d.SentAt == nil {
			d.SentAt = &sentAt
		}
	}
	return nil
}

func (m *mockChatDispatchRepo) MarkCompleted(_ context.Context, id uint, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.rows[id]; ok {
		d.Status = models.DispatchStatusCompleted
		d.CompletedAt = &completedAt
	}
	return nil
}

func (m *mockChatDispatchRepo) MarkFailed(_ context.Context, id uint, at time.Time, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.rows[id]; ok {
		d.Status = models.DispatchStatusFailed
		d.ErrorLog = d.ErrorLog.Append(at, message)
	}
	return nil
}

func (m *mockChatDispatchRepo) List(_ context.Context, limit, offset int) ([]*models.ChatDispatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted()
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if offset > 0 && offset < len(all) {
		all = all[offset:]
	} else if offset >= len(all) {
		all = nil
	}
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	out := make([]*models.ChatDispatch, 0, len(all))
	for _, d := range all {
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockChatDispatchRepo) sorted() []*models.ChatDispatch {
	out := make([]*models.ChatDispatch, 0, len(m.rows))
	for _, d := range m.rows {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// mockChatRecipientRepo is an in-memory ChatRecipientRepository.
type mockChatRecipientRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*models.ChatRecipient
}

func newMockChatRecipientRepo() *mockChatRecipientRepo {
	return &mockChatRecipientRepo{nextID: 1, rows: make(map[uint]*models.ChatRecipient)}
}

func (m *mockChatRecipientRepo) add(r models.ChatRecipient) *models.ChatRecipient {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.nextID
	m.nextID++
	if r.Status == "" {
		r.Status = models.RecipientStatusPending
	}
	m.rows[r.ID] = &r
	return &r
}

func (m *mockChatRecipientRepo) ByID(_ context.Context, id uint) (*models.ChatRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (m *mockChatRecipientRepo) ByFilter(_ context.Context, filter models.ChatRecipientFilter, _ string, limit, offset int) ([]*models.ChatRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ChatRecipient
	for _, r := range m.sorted() {
		if filter.DispatchID != nil && r.DispatchID != *filter.DispatchID {
			continue
		}
		if filter.KCUserID != nil && r.KCUserID != *filter.KCUserID {
			continue
		}
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	if offset > 0 && offset < len(out) {
		out = out[offset:]
	} else if offset >= len(out) {
		out = nil
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockChatRecipientRepo) Save(_ context.Context, r *models.ChatRecipient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		r.ID = m.nextID
		m.nextID++
	}
	cp := *r
	m.rows[r.ID] = &cp
	return nil
}

func (m *mockChatRecipientRepo) SaveBatch(ctx context.Context, rs []*models.ChatRecipient) error {
	for _, r := range rs {
		if err := m.Save(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockChatRecipientRepo) Count(_ context.Context, filter models.ChatRecipientFilter) (int64, error) {
	rows, _ := m.ByFilter(context.Background(), filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (m *mockChatRecipientRepo) CountByDispatchAndStatus(_ context.Context, dispatchID uint, status models.RecipientStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.rows {
		if r.DispatchID == dispatchID && r.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *mockChatRecipientRepo) CountsByStatus(_ context.Context, dispatchID uint) (map[models.RecipientStatus]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[models.RecipientStatus]int64)
	for _, r := range m.rows {
		if r.DispatchID == dispatchID {
			counts[r.Status]++
		}
	}
	return counts, nil
}

func (m *mockChatRecipientRepo) ListByDispatch(_ context.Context, dispatchID uint, limit, offset int) ([]*models.ChatRecipient, error) {
	return m.ByFilter(context.Background(), models.ChatRecipientFilter{DispatchID: &dispatchID}, "id ASC", limit, offset)
}

func (m *mockChatRecipientRepo) MarkDelivered(_ context.Context, id uint, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok {
		r.Status = models.RecipientStatusDelivered
		r.DeliveredAt = &at
	}
	return nil
}

func (m *mockChatRecipientRepo) MarkFailed(_ context.Context, id uint, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok {
		r.Status = models.RecipientStatusFailed
		r.Error = &errMsg
	}
	return nil
}

func (m *mockChatRecipientRepo) sorted() []*models.ChatRecipient {
	out := make([]*models.ChatRecipient, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// mockCredentialRepo is an in-memory ChatCredentialRepository holding at most
// one row, matching the single-account semantics of the real table.
type mockCredentialRepo struct {
	mu   sync.Mutex
	cred *models.ChatCredential
}

func (m *mockCredentialRepo) ByID(_ context.Context, id uint) (*models.ChatCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred != nil && m.cred.ID == id {
		cp := *m.cred
		return &cp, nil
	}
	return nil, nil
}

func (m *mockCredentialRepo) ByFilter(_ context.Context, _ models.ChatCredentialFilter, _ string, _, _ int) ([]*models.ChatCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return nil, nil
	}
	cp := *m.cred
	return []*models.ChatCredential{&cp}, nil
}

func (m *mockCredentialRepo) Save(_ context.Context, cred *models.ChatCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cred.ID == 0 {
		cred.ID = 1
	}
	cp := *cred
	m.cred = &cp
	return nil
}

func (m *mockCredentialRepo) SaveBatch(ctx context.Context, creds []*models.ChatCredential) error {
	for _, c := range creds {
		if err := m.Save(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockCredentialRepo) Count(_ context.Context, _ models.ChatCredentialFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return 0, nil
	}
	return 1, nil
}

func (m *mockCredentialRepo) First(_ context.Context) (*models.ChatCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return nil, nil
	}
	cp := *m.cred
	return &cp, nil
}

func (m *mockCredentialRepo) Upsert(ctx context.Context, cred *models.ChatCredential) error {
	m.mu.Lock()
	if m.cred != nil {
		cred.ID = m.cred.ID
	}
	m.mu.Unlock()
	return m.Save(ctx, cred)
}

func (m *mockCredentialRepo) UpdateTokens(_ context.Context, id uint, accessToken, refreshToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred != nil && m.cred.ID == id {
		m.cred.AccessToken = accessToken
		m.cred.RefreshToken = refreshToken
	}
	return nil
}
