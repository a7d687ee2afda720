package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kingsmedia/herald/app/services"
	"github.com/kingsmedia/herald/models"
	"github.com/kingsmedia/herald/repository"
	"github.com/kingsmedia/herald/utils"
)

// Job is the channel-neutral view of a dispatch the runner works on
type Job struct {
	ID             uint
	Status         models.DispatchStatus
	Filter         models.AudienceFilter
	Subject        string
	Message        string
	BannerImage    *string
	AttachmentPath *string
	AttachmentName *string
}

// Task is one recipient delivery the executor carries out
type Task struct {
	RecipientID      uint
	ContactID        uint
	Address          string
	Name             string
	UnsubscribeToken string
}

// ChannelStore abstracts one delivery channel (email or KingsChat) behind the
// dispatch runner. All methods respect an ambient transaction in the context.
type ChannelStore interface {
	Name() string
	NextRunnable(ctx context.Context) (*Job, error)
	MarkProcessing(ctx context.Context, id uint, at time.Time) error
	MarkCompleted(ctx context.Context, id uint, at time.Time) error
	MarkFailed(ctx context.Context, id uint, at time.Time, message string) error
	// CountRemaining counts eligible contacts that have no recipient row yet.
	CountRemaining(ctx context.Context, job *Job) (int64, error)
	// CountInFlight counts recipient rows still in the pending state.
	CountInFlight(ctx context.Context, id uint) (int64, error)
	// CreateTasks draws up to limit eligible contacts and persists pending
	// recipient rows for them.
	CreateTasks(ctx context.Context, job *Job, limit int) ([]Task, error)
	TaskPending(ctx context.Context, recipientID uint) (bool, error)
	// Deliver performs one delivery attempt and records success on the
	// recipient row.
	Deliver(ctx context.Context, job *Job, task Task) error
	FailTask(ctx context.Context, recipientID uint, errMsg string) error
}

// EmailChannelStore adapts the email dispatch tables and the email gateway
type EmailChannelStore struct {
	dispatchRepo       repository.EmailDispatchRepository
	recipientRepo      repository.EmailRecipientRepository
	contactRepo        repository.ContactRepository
	gateway            services.EmailGateway
	unsubscribeBaseURL string
}

func NewEmailChannelStore(
	dispatchRepo repository.EmailDispatchRepository,
	recipientRepo repository.EmailRecipientRepository,
	contactRepo repository.ContactRepository,
	gateway services.EmailGateway,
	unsubscribeBaseURL string,
) *EmailChannelStore {
	return &EmailChannelStore{
		dispatchRepo:       dispatchRepo,
		recipientRepo:      recipientRepo,
		contactRepo:        contactRepo,
		gateway:            gateway,
		unsubscribeBaseURL: strings.TrimRight(unsubscribeBaseURL, "/"),
	}
}

func (s *EmailChannelStore) Name() string { return "email" }

func (s *EmailChannelStore) NextRunnable(ctx context.Context) (*Job, error) {
	d, err := s.dispatchRepo.NextRunnable(ctx)
	if err != nil || d == nil {
		return nil, err
	}
	return &Job{
		ID:             d.ID,
		Status:         d.Status,
		Filter:         d.Filter,
		Subject:        d.Subject,
		Message:        d.Message,
		BannerImage:    d.BannerImage,
		AttachmentPath: d.AttachmentPath,
		AttachmentName: d.AttachmentName,
	}, nil
}

func (s *EmailChannelStore) MarkProcessing(ctx context.Context, id uint, at time.Time) error {
	return s.dispatchRepo.MarkProcessing(ctx, id, at)
}

func (s *EmailChannelStore) MarkCompleted(ctx context.Context, id uint, at time.Time) error {
	return s.dispatchRepo.MarkCompleted(ctx, id, at)
}

func (s *EmailChannelStore) MarkFailed(ctx context.Context, id uint, at time.Time, message string) error {
	return s.dispatchRepo.MarkFailed(ctx, id, at, message)
}

func (s *EmailChannelStore) CountRemaining(ctx context.Context, job *Job) (int64, error) {
	return s.contactRepo.CountEligibleEmail(ctx, job.ID, job.Filter)
}

func (s *EmailChannelStore) CountInFlight(ctx context.Context, id uint) (int64, error) {
	return s.recipientRepo.CountByDispatchAndStatus(ctx, id, models.RecipientStatusPending)
}

func (s *EmailChannelStore) CreateTasks(ctx context.Context, job *Job, limit int) ([]Task, error) {
	contacts, err := s.contactRepo.ListEligibleEmail(ctx, job.ID, job.Filter, limit)
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, nil
	}

	rows := make([]*models.EmailRecipient, 0, len(contacts))
	for _, c := range contacts {
		token, err := utils.RandomToken(16)
		if err != nil {
			return nil, fmt.Errorf("failed to generate unsubscribe token: %w", err)
		}
		rows = append(rows, &models.EmailRecipient{
			DispatchID:       job.ID,
			ContactID:        c.ID,
			Email:            *c.Email,
			Status:           models.RecipientStatusPending,
			UnsubscribeToken: token,
		})
	}
	if err := s.recipientRepo.SaveBatch(ctx, rows); err != nil {
		return nil, err
	}

	tasks := make([]Task, 0, len(rows))
	for i, row := range rows {
		tasks = append(tasks, Task{
			RecipientID:      row.ID,
			ContactID:        contacts[i].ID,
			Address:          row.Email,
			Name:             contacts[i].FullName,
			UnsubscribeToken: row.UnsubscribeToken,
		})
	}
	return tasks, nil
}

func (s *EmailChannelStore) TaskPending(ctx context.Context, recipientID uint) (bool, error) {
	row, err := s.recipientRepo.ByID(ctx, recipientID)
	if err != nil {
		return false, err
	}
	if row == nil {
		return false, nil
	}
	return row.Status == models.RecipientStatusPending, nil
}

func (s *EmailChannelStore) Deliver(ctx context.Context, job *Job, task Task) error {
	contact, err := s.contactRepo.ByID(ctx, task.ContactID)
	if err != nil {
		return err
	}

	body := ExpandTemplate(job.Message, contact)
	html := s.renderHTML(job, body, task.UnsubscribeToken)

	messageID, err := s.gateway.Send(ctx, services.EmailMessage{
		To:             task.Address,
		ToName:         task.Name,
		Subject:        job.Subject,
		HTMLBody:       html,
		AttachmentPath: job.AttachmentPath,
		AttachmentName: job.AttachmentName,
	})
	if err != nil {
		return err
	}

	var msgID *string
	if messageID != "" {
		msgID = &messageID
	}
	return s.recipientRepo.MarkDelivered(ctx, task.RecipientID, utils.UTCNow(), msgID)
}

func (s *EmailChannelStore) FailTask(ctx context.Context, recipientID uint, errMsg string) error {
	return s.recipientRepo.MarkFailed(ctx, recipientID, errMsg)
}

func (s *EmailChannelStore) renderHTML(job *Job, body, unsubscribeToken string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	if job.BannerImage != nil && *job.BannerImage != "" {
		fmt.Fprintf(&b, `<img src=%q alt="" style="max-width:100%%">`, *job.BannerImage)
	}
	b.WriteString("<div>")
	b.WriteString(strings.ReplaceAll(body, "\n", "<br>"))
	b.WriteString("</div>")
	if s.unsubscribeBaseURL != "" {
		fmt.Fprintf(&b, `<p style="font-size:12px;color:#888"><a href="%s/%s">Unsubscribe</a></p>`,
			s.unsubscribeBaseURL, unsubscribeToken)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// ChatChannelStore adapts the KingsChat dispatch tables and the chat gateway
type ChatChannelStore struct {
	dispatchRepo  repository.ChatDispatchRepository
	recipientRepo repository.ChatRecipientRepository
	contactRepo   repository.ContactRepository
	credRepo      repository.ChatCredentialRepository
	gateway       services.ChatGateway
}

func NewChatChannelStore(
	dispatchRepo repository.ChatDispatchRepository,
	recipientRepo repository.ChatRecipientRepository,
	contactRepo repository.ContactRepository,
	credRepo repository.ChatCredentialRepository,
	gateway services.ChatGateway,
) *ChatChannelStore {
	return &ChatChannelStore{
		dispatchRepo:  dispatchRepo,
		recipientRepo: recipientRepo,
		contactRepo:   contactRepo,
		credRepo:      credRepo,
		gateway:       gateway,
	}
}

func (s *ChatChannelStore) Name() string { return "kingschat" }

func (s *ChatChannelStore) NextRunnable(ctx context.Context) (*Job, error) {
	d, err := s.dispatchRepo.NextRunnable(ctx)
	if err != nil || d == nil {
		return nil, err
	}
	return &Job{
		ID:      d.ID,
		Status:  d.Status,
		Filter:  d.Filter,
		Subject: d.Title,
		Message: d.Message,
	}, nil
}

func (s *ChatChannelStore) MarkProcessing(ctx context.Context, id uint, at time.Time) error {
	return s.dispatchRepo.MarkProcessing(ctx, id, at)
}

func (s *ChatChannelStore) MarkCompleted(ctx context.Context, id uint, at time.Time) error {
	return s.dispatchRepo.MarkCompleted(ctx, id, at)
}

func (s *ChatChannelStore) MarkFailed(ctx context.Context, id uint, at time.Time, message string) error {
	return s.dispatchRepo.MarkFailed(ctx, id, at, message)
}

func (s *ChatChannelStore) CountRemaining(ctx context.Context, job *Job) (int64, error) {
	return s.contactRepo.CountEligibleChat(ctx, job.ID, job.Filter)
}

func (s *ChatChannelStore) CountInFlight(ctx context.Context, id uint) (int64, error) {
	return s.recipientRepo.CountByDispatchAndStatus(ctx, id, models.RecipientStatusPending)
}

func (s *ChatChannelStore) CreateTasks(ctx context.Context, job *Job, limit int) ([]Task, error) {
	contacts, err := s.contactRepo.ListEligibleChat(ctx, job.ID, job.Filter, limit)
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, nil
	}

	rows := make([]*models.ChatRecipient, 0, len(contacts))
	for _, c := range contacts {
		rows = append(rows, &models.ChatRecipient{
			DispatchID: job.ID,
			ContactID:  c.ID,
			KCUserID:   *c.KCUserID,
			Status:     models.RecipientStatusPending,
		})
	}
	if err := s.recipientRepo.SaveBatch(ctx, rows); err != nil {
		return nil, err
	}

	tasks := make([]Task, 0, len(rows))
	for i, row := range rows {
		tasks = append(tasks, Task{
			RecipientID: row.ID,
			ContactID:   contacts[i].ID,
			Address:     row.KCUserID,
			Name:        contacts[i].FullName,
		})
	}
	return tasks, nil
}

func (s *ChatChannelStore) TaskPending(ctx context.Context, recipientID uint) (bool, error) {
	row, err := s.recipientRepo.ByID(ctx, recipientID)
	if err != nil {
		return false, err
	}
	if row == nil {
		return false, nil
	}
	return row.Status == models.RecipientStatusPending, nil
}

func (s *ChatChannelStore) Deliver(ctx context.Context, job *Job, task Task) error {
	cred, err := s.credRepo.First(ctx)
	if err != nil {
		return err
	}
	if cred == nil {
		return fmt.Errorf("no kingschat credential configured")
	}

	contact, err := s.contactRepo.ByID(ctx, task.ContactID)
	if err != nil {
		return err
	}

	message := ExpandTemplate(job.Message, contact)
	if err := s.gateway.SendMessage(ctx, cred.AccessToken, task.Address, message); err != nil {
		return err
	}
	return s.recipientRepo.MarkDelivered(ctx, task.RecipientID, utils.UTCNow())
}

func (s *ChatChannelStore) FailTask(ctx context.Context, recipientID uint, errMsg string) error {
	return s.recipientRepo.MarkFailed(ctx, recipientID, errMsg)
}
