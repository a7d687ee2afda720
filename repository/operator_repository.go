package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kingsmedia/herald/models"
	"gorm.io/gorm"
)

// OperatorRepositoryImpl implements OperatorRepository
type OperatorRepositoryImpl struct {
	*BaseRepository[models.Operator, models.OperatorFilter]
}

func NewOperatorRepository(db *gorm.DB) OperatorRepository {
	return &OperatorRepositoryImpl{BaseRepository: NewBaseRepository[models.Operator, models.OperatorFilter](db)}
}

func (r *OperatorRepositoryImpl) applyFilter(db *gorm.DB, f models.OperatorFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.Username != nil {
		db = db.Where("username = ?", *f.Username)
	}
	if f.IsActive != nil {
		db = db.Where("is_active = ?", *f.IsActive)
	}
	return db
}

func (r *OperatorRepositoryImpl) ByFilter(ctx context.Context, filter models.OperatorFilter, orderBy string, limit, offset int) ([]*models.Operator, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Operator{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Operator
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *OperatorRepositoryImpl) Count(ctx context.Context, filter models.OperatorFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Operator{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *OperatorRepositoryImpl) ByUsername(ctx context.Context, username string) (*models.Operator, error) {
	db := r.getDB(ctx)
	var row models.Operator
	err := db.Where("username = ?", username).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load operator by username: %w", err)
	}
	return &row, nil
}

func (r *OperatorRepositoryImpl) UpdateLastLogin(ctx context.Context, id uint, at time.Time) error {
	db := r.getDB(ctx)
	res := db.Model(&models.Operator{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_login_at": at,
			"updated_at":    at,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update operator last login: %w", res.Error)
	}
	return nil
}
