package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kingsmedia/herald/models"
	"gorm.io/gorm"
)

// EmailRecipientRepositoryImpl implements EmailRecipientRepository
type EmailRecipientRepositoryImpl struct {
	*BaseRepository[models.EmailRecipient, models.EmailRecipientFilter]
}

func NewEmailRecipientRepository(db *gorm.DB) EmailRecipientRepository {
	return &EmailRecipientRepositoryImpl{BaseRepository: NewBaseRepository[models.EmailRecipient, models.EmailRecipientFilter](db)}
}

func (r *EmailRecipientRepositoryImpl) applyFilter(db *gorm.DB, f models.EmailRecipientFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.DispatchID != nil {
		db = db.Where("dispatch_id = ?", *f.DispatchID)
	}
	if f.Email != nil {
		db = db.Where("email = ?", *f.Email)
	}
	if f.MessageID != nil {
		db = db.Where("message_id = ?", *f.MessageID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	return db
}

func (r *EmailRecipientRepositoryImpl) ByFilter(ctx context.Context, filter models.EmailRecipientFilter, orderBy string, limit, offset int) ([]*models.EmailRecipient, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.EmailRecipient{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.EmailRecipient
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *EmailRecipientRepositoryImpl) Count(ctx context.Context, filter models.EmailRecipientFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.EmailRecipient{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *EmailRecipientRepositoryImpl) CountByDispatchAndStatus(ctx context.Context, dispatchID uint, status models.RecipientStatus) (int64, error) {
	return r.Count(ctx, models.EmailRecipientFilter{DispatchID: &dispatchID, Status: &status})
}

// CountsByStatus derives per-status counts for one dispatch with a single
// GROUP BY; analytics are always computed on demand rather than cached.
func (r *EmailRecipientRepositoryImpl) CountsByStatus(ctx context.Context, dispatchID uint) (map[models.RecipientStatus]int64, error) {
	db := r.getDB(ctx)
	type statusCount struct {
		Status models.RecipientStatus
		Count  int64
	}
	var rows []statusCount
	err := db.Model(&models.EmailRecipient{}).
		Select("status, COUNT(*) AS count").
		Where("dispatch_id = ?", dispatchID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate email recipient counts: %w", err)
	}
	counts := make(map[models.RecipientStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *EmailRecipientRepositoryImpl) ListByDispatch(ctx context.Context, dispatchID uint, limit, offset int) ([]*models.EmailRecipient, error) {
	return r.ByFilter(ctx, models.EmailRecipientFilter{DispatchID: &dispatchID}, "id ASC", limit, offset)
}

func (r *EmailRecipientRepositoryImpl) MarkDelivered(ctx context.Context, id uint, at time.Time, messageID *string) error {
	db := r.getDB(ctx)
	updates := map[string]any{
		"status":       models.RecipientStatusDelivered,
		"delivered_at": at,
		"error":        nil,
		"updated_at":   at,
	}
	if messageID != nil {
		updates["message_id"] = *messageID
	}
	res := db.Model(&models.EmailRecipient{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to mark email recipient %d delivered: %w", id, res.Error)
	}
	return nil
}

func (r *EmailRecipientRepositoryImpl) MarkFailed(ctx context.Context, id uint, errMsg string) error {
	db := r.getDB(ctx)
	res := db.Model(&models.EmailRecipient{}).Where("id = ?", id).
		Updates(map[string]any{
			"status": models.RecipientStatusFailed,
			"error":  errMsg,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark email recipient %d failed: %w", id, res.Error)
	}
	return nil
}

// MarkOpened advances delivered -> opened; the status guard makes a repeated
// opened event a no-op so opened_at is stamped once.
func (r *EmailRecipientRepositoryImpl) MarkOpened(ctx context.Context, id uint, at time.Time) error {
	db := r.getDB(ctx)
	res := db.Model(&models.EmailRecipient{}).
		Where("id = ? AND status = ?", id, models.RecipientStatusDelivered).
		Updates(map[string]any{
			"status":     models.RecipientStatusOpened,
			"opened_at":  at,
			"updated_at": at,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark email recipient %d opened: %w", id, res.Error)
	}
	return nil
}

// MarkClicked records a click for a delivered or opened recipient. opened_at
// is only stamped when the open was not observed before the click.
func (r *EmailRecipientRepositoryImpl) MarkClicked(ctx context.Context, id uint, openedAt, clickedAt time.Time, link *string) error {
	db := r.getDB(ctx)

	var row models.EmailRecipient
	if err := db.First(&row, id).Error; err != nil {
		return fmt.Errorf("failed to load email recipient %d: %w", id, err)
	}
	if row.Status != models.RecipientStatusDelivered && row.Status != models.RecipientStatusOpened {
		return nil
	}

	updates := map[string]any{
		"status":     models.RecipientStatusOpened,
		"clicked_at": clickedAt,
		"updated_at": clickedAt,
	}
	if row.OpenedAt == nil {
		updates["opened_at"] = openedAt
	}
	if link != nil {
		updates["clicked_link"] = *link
	}
	res := db.Model(&models.EmailRecipient{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to mark email recipient %d clicked: %w", id, res.Error)
	}
	return nil
}

func (r *EmailRecipientRepositoryImpl) ByMessageID(ctx context.Context, messageID string) (*models.EmailRecipient, error) {
	db := r.getDB(ctx)
	var row models.EmailRecipient
	err := db.Where("message_id = ?", messageID).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// LatestByEmail resolves webhook events that carry no usable message id;
// most-recent-first matches the provider's at-least-once redelivery order.
func (r *EmailRecipientRepositoryImpl) LatestByEmail(ctx context.Context, email string) (*models.EmailRecipient, error) {
	db := r.getDB(ctx)
	var row models.EmailRecipient
	err := db.Where("email = ?", email).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *EmailRecipientRepositoryImpl) ByUnsubscribeToken(ctx context.Context, token string) (*models.EmailRecipient, error) {
	db := r.getDB(ctx)
	var row models.EmailRecipient
	if err := db.Where("unsubscribe_token = ?", token).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
