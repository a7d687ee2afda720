package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/kingsmedia/herald/models"
	"github.com/kingsmedia/herald/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatCredentialRepositoryImpl implements ChatCredentialRepository
type ChatCredentialRepositoryImpl struct {
	*BaseRepository[models.ChatCredential, models.ChatCredentialFilter]
}

func NewChatCredentialRepository(db *gorm.DB) ChatCredentialRepository {
	return &ChatCredentialRepositoryImpl{BaseRepository: NewBaseRepository[models.ChatCredential, models.ChatCredentialFilter](db)}
}

func (r *ChatCredentialRepositoryImpl) applyFilter(db *gorm.DB, f models.ChatCredentialFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.ClientID != nil {
		db = db.Where("client_id = ?", *f.ClientID)
	}
	return db
}

func (r *ChatCredentialRepositoryImpl) ByFilter(ctx context.Context, filter models.ChatCredentialFilter, orderBy string, limit, offset int) ([]*models.ChatCredential, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ChatCredential{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.ChatCredential
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ChatCredentialRepositoryImpl) Count(ctx context.Context, filter models.ChatCredentialFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ChatCredential{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// First returns the stored credential, or nil when none has been configured yet
func (r *ChatCredentialRepositoryImpl) First(ctx context.Context) (*models.ChatCredential, error) {
	db := r.getDB(ctx)
	var row models.ChatCredential
	err := db.Order("id ASC").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load chat credential: %w", err)
	}
	return &row, nil
}

// Upsert inserts the credential or replaces the row with the same client id
func (r *ChatCredentialRepositoryImpl) Upsert(ctx context.Context, cred *models.ChatCredential) error {
	db := r.getDB(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "client_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"handle", "access_token", "refresh_token", "updated_at",
		}),
	}).Create(cred).Error
	if err != nil {
		return fmt.Errorf("failed to upsert chat credential: %w", err)
	}
	return nil
}

func (r *ChatCredentialRepositoryImpl) UpdateTokens(ctx context.Context, id uint, accessToken, refreshToken string) error {
	db := r.getDB(ctx)
	res := db.Model(&models.ChatCredential{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"updated_at":    utils.UTCNow(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update chat credential tokens: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("chat credential %d not found", id)
	}
	return nil
}
