package models

import (
	"time"

	"gorm.io/gorm"
)

// EmailDispatch represents one email broadcast campaign
type EmailDispatch struct {
	ID      uint           `gorm:"primaryKey" json:"id"`
	Subject string         `gorm:"size:255;not null" json:"subject"`
	Message string         `gorm:"type:text;not null" json:"message"`
	Filter  AudienceFilter `gorm:"type:jsonb;not null" json:"filter"`
	Status  DispatchStatus `gorm:"size:20;not null;default:'pending';index:idx_email_dispatches_status" json:"status"`

	BannerImage    *string `gorm:"size:512" json:"banner_image,omitempty"`
	AttachmentPath *string `gorm:"size:512" json:"attachment_path,omitempty"`
	AttachmentName *string `gorm:"size:255" json:"attachment_name,omitempty"`

	SentAt      *time.Time `gorm:"index:idx_email_dispatches_sent_at" json:"sent_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ErrorLog    ErrorLog   `gorm:"type:jsonb" json:"error_log"`

	CreatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_email_dispatches_created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (EmailDispatch) TableName() string { return "email_dispatches" }

// EmailDispatchFilter provides filter fields for repository queries
type EmailDispatchFilter struct {
	ID            *uint
	Status        *DispatchStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// EmailRecipient records a single recipient task under an email dispatch
type EmailRecipient struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	DispatchID uint            `gorm:"not null;uniqueIndex:uk_email_recipients_dispatch_email;index:idx_email_recipients_dispatch_status,priority:1" json:"dispatch_id"`
	ContactID  uint            `gorm:"not null;index:idx_email_recipients_contact_id" json:"contact_id"`
	Email      string          `gorm:"size:255;not null;uniqueIndex:uk_email_recipients_dispatch_email;index:idx_email_recipients_email" json:"email"`
	Status     RecipientStatus `gorm:"size:20;not null;default:'pending';index:idx_email_recipients_status;index:idx_email_recipients_dispatch_status,priority:2" json:"status"`

	MessageID        *string `gorm:"size:255;index:idx_email_recipients_message_id" json:"message_id,omitempty"`
	Error            *string `gorm:"type:text" json:"error,omitempty"`
	UnsubscribeToken string  `gorm:"size:32;not null;uniqueIndex:uk_email_recipients_unsubscribe_token" json:"-"`

	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	OpenedAt    *time.Time `json:"opened_at,omitempty"`
	ClickedAt   *time.Time `json:"clicked_at,omitempty"`
	ClickedLink *string    `gorm:"size:1024" json:"clicked_link,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_email_recipients_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (EmailRecipient) TableName() string { return "email_dispatch_recipients" }

// EmailRecipientFilter provides filter fields for repository queries
type EmailRecipientFilter struct {
	ID         *uint
	DispatchID *uint
	Email      *string
	MessageID  *string
	Status     *RecipientStatus
}
