package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kingsmedia/herald/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatDispatchRepositoryImpl implements ChatDispatchRepository
type ChatDispatchRepositoryImpl struct {
	*BaseRepository[models.ChatDispatch, models.ChatDispatchFilter]
}

func NewChatDispatchRepository(db *gorm.DB) ChatDispatchRepository {
	return &ChatDispatchRepositoryImpl{BaseRepository: NewBaseRepository[models.ChatDispatch, models.ChatDispatchFilter](db)}
}

func (r *ChatDispatchRepositoryImpl) applyFilter(db *gorm.DB, f models.ChatDispatchFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *ChatDispatchRepositoryImpl) ByFilter(ctx context.Context, filter models.ChatDispatchFilter, orderBy string, limit, offset int) ([]*models.ChatDispatch, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ChatDispatch{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.ChatDispatch
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ChatDispatchRepositoryImpl) Count(ctx context.Context, filter models.ChatDispatchFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ChatDispatch{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// NextRunnable picks the oldest pending-or-processing dispatch with a locking read
func (r *ChatDispatchRepositoryImpl) NextRunnable(ctx context.Context) (*models.ChatDispatch, error) {
	db := r.getDB(ctx)
	var row models.ChatDispatch
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("status IN ?", []models.DispatchStatus{models.DispatchStatusPending, models.DispatchStatusProcessing}).
		Order("created_at ASC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to select next runnable chat dispatch: %w", err)
	}
	return &row, nil
}

func (r *ChatDispatchRepositoryImpl) MarkProcessing(ctx context.Context, id uint, sentAt time.Time) error {
	db := r.getDB(ctx)
	res := db.Model(&models.ChatDispatch{}).
		Where("id = ? AND status = ?", id, models.DispatchStatusPending).
		Updates(map[string]any{
			"status":     models.DispatchStatusProcessing,
			"sent_at":    sentAt,
			"updated_at": sentAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark chat dispatch %d processing: %w", id, res.Error)
	}
	return nil
}

func (r *ChatDispatchRepositoryImpl) MarkCompleted(ctx context.Context, id uint, completedAt time.Time) error {
	db := r.getDB(ctx)
	res := db.Model(&models.ChatDispatch{}).
		Where("id = ? AND status = ?", id, models.DispatchStatusProcessing).
		Updates(map[string]any{
			"status":       models.DispatchStatusCompleted,
			"completed_at": completedAt,
			"updated_at":   completedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark chat dispatch %d completed: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("chat dispatch %d not in processing state", id)
	}
	return nil
}

func (r *ChatDispatchRepositoryImpl) MarkFailed(ctx context.Context, id uint, at time.Time, message string) error {
	db := r.getDB(ctx)

	var row models.ChatDispatch
	if err := db.First(&row, id).Error; err != nil {
		return fmt.Errorf("failed to load chat dispatch %d: %w", id, err)
	}
	if row.Status.Terminal() {
		return nil
	}

	res := db.Model(&models.ChatDispatch{}).
		Where("id = ? AND status IN ?", id, []models.DispatchStatus{models.DispatchStatusPending, models.DispatchStatusProcessing}).
		Updates(map[string]any{
			"status":       models.DispatchStatusFailed,
			"completed_at": at,
			"error_log":    row.ErrorLog.Append(at, message),
			"updated_at":   at,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark chat dispatch %d failed: %w", id, res.Error)
	}
	return nil
}

func (r *ChatDispatchRepositoryImpl) List(ctx context.Context, limit, offset int) ([]*models.ChatDispatch, error) {
	return r.ByFilter(ctx, models.ChatDispatchFilter{}, "created_at DESC", limit, offset)
}
