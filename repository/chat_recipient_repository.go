package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/kingsmedia/herald/models"
	"gorm.io/gorm"
)

// ChatRecipientRepositoryImpl implements ChatRecipientRepository
type ChatRecipientRepositoryImpl struct {
	*BaseRepository[models.ChatRecipient, models.ChatRecipientFilter]
}

func NewChatRecipientRepository(db *gorm.DB) ChatRecipientRepository {
	return &ChatRecipientRepositoryImpl{BaseRepository: NewBaseRepository[models.ChatRecipient, models.ChatRecipientFilter](db)}
}

func (r *ChatRecipientRepositoryImpl) applyFilter(db *gorm.DB, f models.ChatRecipientFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.DispatchID != nil {
		db = db.Where("dispatch_id = ?", *f.DispatchID)
	}
	if f.KCUserID != nil {
		db = db.Where("kc_user_id = ?", *f.KCUserID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	return db
}

func (r *ChatRecipientRepositoryImpl) ByFilter(ctx context.Context, filter models.ChatRecipientFilter, orderBy string, limit, offset int) ([]*models.ChatRecipient, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ChatRecipient{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.ChatRecipient
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ChatRecipientRepositoryImpl) Count(ctx context.Context, filter models.ChatRecipientFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ChatRecipient{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ChatRecipientRepositoryImpl) CountByDispatchAndStatus(ctx context.Context, dispatchID uint, status models.RecipientStatus) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.ChatRecipient{}).
		Where("dispatch_id = ? AND status = ?", dispatchID, status).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count chat recipients: %w", err)
	}
	return count, nil
}

func (r *ChatRecipientRepositoryImpl) CountsByStatus(ctx context.Context, dispatchID uint) (map[models.RecipientStatus]int64, error) {
	db := r.getDB(ctx)
	type row struct {
		Status models.RecipientStatus
		Count  int64
	}
	var rows []row
	err := db.Model(&models.ChatRecipient{}).
		Select("status, COUNT(*) AS count").
		Where("dispatch_id = ?", dispatchID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate chat recipient statuses: %w", err)
	}
	counts := make(map[models.RecipientStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func (r *ChatRecipientRepositoryImpl) ListByDispatch(ctx context.Context, dispatchID uint, limit, offset int) ([]*models.ChatRecipient, error) {
	return r.ByFilter(ctx, models.ChatRecipientFilter{DispatchID: &dispatchID}, "id ASC", limit, offset)
}

func (r *ChatRecipientRepositoryImpl) MarkDelivered(ctx context.Context, id uint, at time.Time) error {
	db := r.getDB(ctx)
	res := db.Model(&models.ChatRecipient{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       models.RecipientStatusDelivered,
			"delivered_at": at,
			"error":        nil,
			"updated_at":   at,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark chat recipient %d delivered: %w", id, res.Error)
	}
	return nil
}

func (r *ChatRecipientRepositoryImpl) MarkFailed(ctx context.Context, id uint, errMsg string) error {
	db := r.getDB(ctx)
	now := time.Now().UTC()
	res := db.Model(&models.ChatRecipient{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     models.RecipientStatusFailed,
			"error":      errMsg,
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark chat recipient %d failed: %w", id, res.Error)
	}
	return nil
}
