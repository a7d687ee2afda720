package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/kingsmedia/herald/models"
	"gorm.io/gorm"
)

// ContactRepositoryImpl implements ContactRepository
type ContactRepositoryImpl struct {
	*BaseRepository[models.Contact, models.ContactFilter]
}

func NewContactRepository(db *gorm.DB) ContactRepository {
	return &ContactRepositoryImpl{BaseRepository: NewBaseRepository[models.Contact, models.ContactFilter](db)}
}

func (r *ContactRepositoryImpl) applyFilter(db *gorm.DB, f models.ContactFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Email != nil {
		db = db.Where("email = ?", *f.Email)
	}
	if f.KCUserID != nil {
		db = db.Where("kc_user_id = ?", *f.KCUserID)
	}
	if f.Designation != nil {
		db = db.Where("designation = ?", *f.Designation)
	}
	if f.Zone != nil {
		db = db.Where("zone = ?", *f.Zone)
	}
	if f.Country != nil {
		db = db.Where("country = ?", *f.Country)
	}
	if f.Subscribed != nil {
		db = db.Where("subscribed = ?", *f.Subscribed)
	}
	return db
}

func (r *ContactRepositoryImpl) ByFilter(ctx context.Context, filter models.ContactFilter, orderBy string, limit, offset int) ([]*models.Contact, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Contact{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Contact
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ContactRepositoryImpl) Count(ctx context.Context, filter models.ContactFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Contact{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyAudienceFilter narrows the query to contacts matching the dispatch
// audience filter; a dimension set to "all" is not constrained.
func applyAudienceFilter(db *gorm.DB, f models.AudienceFilter) *gorm.DB {
	if f.Designation != models.FilterAll {
		db = db.Where("designation = ?", f.Designation)
	}
	if f.Zone != models.FilterAll {
		db = db.Where("zone = ?", f.Zone)
	}
	if f.Country != models.FilterAll {
		db = db.Where("country = ?", f.Country)
	}
	return db
}

// eligibleEmailQuery builds the selector query for the email channel: a
// non-empty subscribed email, filter match, and no recipient row for this
// dispatch yet. Ascending id order guarantees forward progress across ticks.
func (r *ContactRepositoryImpl) eligibleEmailQuery(db *gorm.DB, dispatchID uint, filter models.AudienceFilter) *gorm.DB {
	query := db.Model(&models.Contact{}).
		Where("email IS NOT NULL AND email <> ''").
		Where("subscribed = ?", true).
		Where("NOT EXISTS (SELECT 1 FROM email_dispatch_recipients r WHERE r.email = contacts.email AND r.dispatch_id = ?)", dispatchID)
	return applyAudienceFilter(query, filter)
}

func (r *ContactRepositoryImpl) ListEligibleEmail(ctx context.Context, dispatchID uint, filter models.AudienceFilter, limit int) ([]*models.Contact, error) {
	db := r.getDB(ctx)
	query := r.eligibleEmailQuery(db, dispatchID, filter).Order("contacts.id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []*models.Contact
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list eligible email contacts: %w", err)
	}
	return rows, nil
}

func (r *ContactRepositoryImpl) CountEligibleEmail(ctx context.Context, dispatchID uint, filter models.AudienceFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.eligibleEmailQuery(db, dispatchID, filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count eligible email contacts: %w", err)
	}
	return count, nil
}

func (r *ContactRepositoryImpl) eligibleChatQuery(db *gorm.DB, dispatchID uint, filter models.AudienceFilter) *gorm.DB {
	query := db.Model(&models.Contact{}).
		Where("kc_user_id IS NOT NULL AND kc_user_id <> ''").
		Where("NOT EXISTS (SELECT 1 FROM kingschat_dispatch_recipients r WHERE r.kc_user_id = contacts.kc_user_id AND r.dispatch_id = ?)", dispatchID)
	return applyAudienceFilter(query, filter)
}

func (r *ContactRepositoryImpl) ListEligibleChat(ctx context.Context, dispatchID uint, filter models.AudienceFilter, limit int) ([]*models.Contact, error) {
	db := r.getDB(ctx)
	query := r.eligibleChatQuery(db, dispatchID, filter).Order("contacts.id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []*models.Contact
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list eligible chat contacts: %w", err)
	}
	return rows, nil
}

func (r *ContactRepositoryImpl) CountEligibleChat(ctx context.Context, dispatchID uint, filter models.AudienceFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.eligibleChatQuery(db, dispatchID, filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count eligible chat contacts: %w", err)
	}
	return count, nil
}

func (r *ContactRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.Contact, error) {
	db := r.getDB(ctx)
	var row models.Contact
	if err := db.Where("email = ?", email).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *ContactRepositoryImpl) ByKCUserID(ctx context.Context, kcUserID string) (*models.Contact, error) {
	db := r.getDB(ctx)
	var row models.Contact
	if err := db.Where("kc_user_id = ?", kcUserID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// DistinctValues returns the sorted distinct values of one of the audience
// dimension columns (designation, zone, country); used for filter options.
func (r *ContactRepositoryImpl) DistinctValues(ctx context.Context, column string) ([]string, error) {
	switch column {
	case "designation", "zone", "country":
	default:
		return nil, fmt.Errorf("unsupported distinct column: %s", column)
	}

	db := r.getDB(ctx)
	var values []string
	err := db.Model(&models.Contact{}).
		Distinct(column).
		Where(fmt.Sprintf("%s <> ''", column)).
		Order(column+" ASC").
		Pluck(column, &values).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load distinct %s values: %w", column, err)
	}
	return values, nil
}

func (r *ContactRepositoryImpl) Unsubscribe(ctx context.Context, contactID uint) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Model(&models.Contact{}).Where("id = ?", contactID).
		Update("subscribed", false).Error
	if err != nil {
		return fmt.Errorf("failed to unsubscribe contact %d: %w", contactID, err)
	}
	return nil
}
