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

// EmailDispatchRepositoryImpl implements EmailDispatchRepository
type EmailDispatchRepositoryImpl struct {
	*BaseRepository[models.EmailDispatch, models.EmailDispatchFilter]
}

func NewEmailDispatchRepository(db *gorm.DB) EmailDispatchRepository {
	return &EmailDispatchRepositoryImpl{BaseRepository: NewBaseRepository[models.EmailDispatch, models.EmailDispatchFilter](db)}
}

func (r *EmailDispatchRepositoryImpl) applyFilter(db *gorm.DB, f models.EmailDispatchFilter) *gorm.DB {
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

func (r *EmailDispatchRepositoryImpl) ByFilter(ctx context.Context, filter models.EmailDispatchFilter, orderBy string, limit, offset int) ([]*models.EmailDispatch, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.EmailDispatch{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.EmailDispatch
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *EmailDispatchRepositoryImpl) Count(ctx context.Context, filter models.EmailDispatchFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.EmailDispatch{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// NextRunnable picks the oldest pending-or-processing dispatch with a locking
// read (SELECT ... FOR UPDATE) so a double-fired scheduler tick blocks on the
// same row instead of drawing an overlapping batch.
func (r *EmailDispatchRepositoryImpl) NextRunnable(ctx context.Context) (*models.EmailDispatch, error) {
	db := r.getDB(ctx)
	var row models.EmailDispatch
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("status IN ?", []models.DispatchStatus{models.DispatchStatusPending, models.DispatchStatusProcessing}).
		Order("created_at ASC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to select next runnable email dispatch: %w", err)
	}
	return &row, nil
}

func (r *EmailDispatchRepositoryImpl) MarkProcessing(ctx context.Context, id uint, sentAt time.Time) error {
	db := r.getDB(ctx)
	res := db.Model(&models.EmailDispatch{}).
		Where("id = ? AND status = ?", id, models.DispatchStatusPending).
		Updates(map[string]any{
			"status":     models.DispatchStatusProcessing,
			"sent_at":    sentAt,
			"updated_at": sentAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark email dispatch %d processing: %w", id, res.Error)
	}
	return nil
}

func (r *EmailDispatchRepositoryImpl) MarkCompleted(ctx context.Context, id uint, completedAt time.Time) error {
	db := r.getDB(ctx)
	res := db.Model(&models.EmailDispatch{}).
		Where("id = ? AND status = ?", id, models.DispatchStatusProcessing).
		Updates(map[string]any{
			"status":       models.DispatchStatusCompleted,
			"completed_at": completedAt,
			"updated_at":   completedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark email dispatch %d completed: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("email dispatch %d not in processing state", id)
	}
	return nil
}

// MarkFailed transitions the dispatch to failed and appends the message to its
// error_log. Terminal rows are left untouched.
func (r *EmailDispatchRepositoryImpl) MarkFailed(ctx context.Context, id uint, at time.Time, message string) error {
	db := r.getDB(ctx)

	var row models.EmailDispatch
	if err := db.First(&row, id).Error; err != nil {
		return fmt.Errorf("failed to load email dispatch %d: %w", id, err)
	}
	if row.Status.Terminal() {
		return nil
	}

	res := db.Model(&models.EmailDispatch{}).
		Where("id = ? AND status IN ?", id, []models.DispatchStatus{models.DispatchStatusPending, models.DispatchStatusProcessing}).
		Updates(map[string]any{
			"status":       models.DispatchStatusFailed,
			"completed_at": at,
			"error_log":    row.ErrorLog.Append(at, message),
			"updated_at":   at,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark email dispatch %d failed: %w", id, res.Error)
	}
	return nil
}

func (r *EmailDispatchRepositoryImpl) List(ctx context.Context, limit, offset int) ([]*models.EmailDispatch, error) {
	return r.ByFilter(ctx, models.EmailDispatchFilter{}, "created_at DESC", limit, offset)
}
