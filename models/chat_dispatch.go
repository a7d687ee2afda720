package models

import (
	"time"

	"gorm.io/gorm"
)

// ChatDispatch represents one KingsChat broadcast campaign
type ChatDispatch struct {
	ID      uint           `gorm:"primaryKey" json:"id"`
	Title   string         `gorm:"size:255;not null" json:"title"`
	Message string         `gorm:"type:text;not null" json:"message"`
	Filter  AudienceFilter `gorm:"type:jsonb;not null" json:"filter"`
	Status  DispatchStatus `gorm:"size:20;not null;default:'pending';index:idx_chat_dispatches_status" json:"status"`

	SentAt      *time.Time `gorm:"index:idx_chat_dispatches_sent_at" json:"sent_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ErrorLog    ErrorLog   `gorm:"type:jsonb" json:"error_log"`

	CreatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_chat_dispatches_created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (ChatDispatch) TableName() string { return "kingschat_dispatches" }

// ChatDispatchFilter provides filter fields for repository queries
type ChatDispatchFilter struct {
	ID            *uint
	Status        *DispatchStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// ChatRecipient records a single recipient task under a KingsChat dispatch
type ChatRecipient struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	DispatchID uint            `gorm:"not null;uniqueIndex:uk_chat_recipients_dispatch_user;index:idx_chat_recipients_dispatch_status,priority:1" json:"dispatch_id"`
	ContactID  uint            `gorm:"not null;index:idx_chat_recipients_contact_id" json:"contact_id"`
	KCUserID   string          `gorm:"column:kc_user_id;size:255;not null;uniqueIndex:uk_chat_recipients_dispatch_user;index:idx_chat_recipients_kc_user_id" json:"kc_user_id"`
	Status     RecipientStatus `gorm:"size:20;not null;default:'pending';index:idx_chat_recipients_status;index:idx_chat_recipients_dispatch_status,priority:2" json:"status"`

	Error *string `gorm:"type:text" json:"error,omitempty"`

	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_chat_recipients_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (ChatRecipient) TableName() string { return "kingschat_dispatch_recipients" }

// ChatRecipientFilter provides filter fields for repository queries
type ChatRecipientFilter struct {
	ID         *uint
	DispatchID *uint
	KCUserID   *string
	Status     *RecipientStatus
}
