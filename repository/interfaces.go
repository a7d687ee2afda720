// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/kingsmedia/herald/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
}

// ContactRepository defines operations for the contact list, including the
// recipient selector queries used by the dispatch runners.
type ContactRepository interface {
	Repository[models.Contact, models.ContactFilter]
	// ListEligibleEmail returns contacts with a usable email address matching
	// the dispatch filter that have no recipient row for the dispatch yet,
	// ordered by ascending contact id. limit <= 0 means no limit.
	ListEligibleEmail(ctx context.Context, dispatchID uint, filter models.AudienceFilter, limit int) ([]*models.Contact, error)
	CountEligibleEmail(ctx context.Context, dispatchID uint, filter models.AudienceFilter) (int64, error)
	// ListEligibleChat is the KingsChat counterpart keyed on kc_user_id.
	ListEligibleChat(ctx context.Context, dispatchID uint, filter models.AudienceFilter, limit int) ([]*models.Contact, error)
	CountEligibleChat(ctx context.Context, dispatchID uint, filter models.AudienceFilter) (int64, error)
	ByEmail(ctx context.Context, email string) (*models.Contact, error)
	ByKCUserID(ctx context.Context, kcUserID string) (*models.Contact, error)
	DistinctValues(ctx context.Context, column string) ([]string, error)
	Unsubscribe(ctx context.Context, contactID uint) error
}

// EmailDispatchRepository defines operations for email dispatch jobs
type EmailDispatchRepository interface {
	Repository[models.EmailDispatch, models.EmailDispatchFilter]
	// NextRunnable returns the oldest pending-or-processing dispatch using a
	// locking read so concurrent ticks serialize on the same row.
	NextRunnable(ctx context.Context) (*models.EmailDispatch, error)
	MarkProcessing(ctx context.Context, id uint, sentAt time.Time) error
	MarkCompleted(ctx context.Context, id uint, completedAt time.Time) error
	MarkFailed(ctx context.Context, id uint, at time.Time, message string) error
	List(ctx context.Context, limit, offset int) ([]*models.EmailDispatch, error)
}

// EmailRecipientRepository defines operations for email recipient tasks
type EmailRecipientRepository interface {
	Repository[models.EmailRecipient, models.EmailRecipientFilter]
	CountByDispatchAndStatus(ctx context.Context, dispatchID uint, status models.RecipientStatus) (int64, error)
	CountsByStatus(ctx context.Context, dispatchID uint) (map[models.RecipientStatus]int64, error)
	ListByDispatch(ctx context.Context, dispatchID uint, limit, offset int) ([]*models.EmailRecipient, error)
	MarkDelivered(ctx context.Context, id uint, at time.Time, messageID *string) error
	MarkFailed(ctx context.Context, id uint, errMsg string) error
	MarkOpened(ctx context.Context, id uint, at time.Time) error
	MarkClicked(ctx context.Context, id uint, openedAt, clickedAt time.Time, link *string) error
	ByMessageID(ctx context.Context, messageID string) (*models.EmailRecipient, error)
	LatestByEmail(ctx context.Context, email string) (*models.EmailRecipient, error)
	ByUnsubscribeToken(ctx context.Context, token string) (*models.EmailRecipient, error)
}

// ChatDispatchRepository defines operations for KingsChat dispatch jobs
type ChatDispatchRepository interface {
	Repository[models.ChatDispatch, models.ChatDispatchFilter]
	NextRunnable(ctx context.Context) (*models.ChatDispatch, error)
	MarkProcessing(ctx context.Context, id uint, sentAt time.Time) error
	MarkCompleted(ctx context.Context, id uint, completedAt time.Time) error
	MarkFailed(ctx context.Context, id uint, at time.Time, message string) error
	List(ctx context.Context, limit, offset int) ([]*models.ChatDispatch, error)
}

// ChatRecipientRepository defines operations for KingsChat recipient tasks
type ChatRecipientRepository interface {
	Repository[models.ChatRecipient, models.ChatRecipientFilter]
	CountByDispatchAndStatus(ctx context.Context, dispatchID uint, status models.RecipientStatus) (int64, error)
	CountsByStatus(ctx context.Context, dispatchID uint) (map[models.RecipientStatus]int64, error)
	ListByDispatch(ctx context.Context, dispatchID uint, limit, offset int) ([]*models.ChatRecipient, error)
	MarkDelivered(ctx context.Context, id uint, at time.Time) error
	MarkFailed(ctx context.Context, id uint, errMsg string) error
}

// ChatCredentialRepository defines operations for the stored KingsChat account
type ChatCredentialRepository interface {
	Repository[models.ChatCredential, models.ChatCredentialFilter]
	First(ctx context.Context) (*models.ChatCredential, error)
	Upsert(ctx context.Context, cred *models.ChatCredential) error
	UpdateTokens(ctx context.Context, id uint, accessToken, refreshToken string) error
}

// OperatorRepository defines operations for admin-panel operators
type OperatorRepository interface {
	Repository[models.Operator, models.OperatorFilter]
	ByUsername(ctx context.Context, username string) (*models.Operator, error)
	UpdateLastLogin(ctx context.Context, id uint, at time.Time) error
}
