package models

import "time"

// Contact is one entry of the broadcast contact list. The dispatch pipeline
// treats this table as read-mostly reference data; only the unsubscribe flow
// mutates it.
type Contact struct {
	ID              uint    `gorm:"primaryKey" json:"id"`
	FullName        string  `gorm:"size:255;not null" json:"full_name"`
	Email           *string `gorm:"size:255;index:idx_contacts_email" json:"email,omitempty"`
	KCUserID        *string `gorm:"column:kc_user_id;size:255;index:idx_contacts_kc_user_id" json:"kc_user_id,omitempty"`
	KingschatHandle *string `gorm:"size:255" json:"kingschat_handle,omitempty"`

	Designation string `gorm:"size:255;index:idx_contacts_designation" json:"designation"`
	Zone        string `gorm:"size:255;index:idx_contacts_zone" json:"zone"`
	Country     string `gorm:"size:255;index:idx_contacts_country" json:"country"`

	Subscribed bool `gorm:"not null;default:true;index:idx_contacts_subscribed" json:"subscribed"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Contact) TableName() string { return "contacts" }

// ContactFilter provides filter fields for repository queries
type ContactFilter struct {
	ID          *uint
	Email       *string
	KCUserID    *string
	Designation *string
	Zone        *string
	Country     *string
	Subscribed  *bool
}
