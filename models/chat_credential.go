package models

import "time"

// ChatCredential stores the KingsChat account used for outbound messages.
// The access token is short-lived and rotated by the token refresher; the
// refresh token is exchanged at the provider's OAuth token endpoint.
type ChatCredential struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Handle       string `gorm:"size:255;not null" json:"handle"`
	ClientID     string `gorm:"size:255;not null;uniqueIndex:uk_chat_credentials_client_id" json:"client_id"`
	AccessToken  string `gorm:"type:text;not null" json:"-"`
	RefreshToken string `gorm:"type:text;not null" json:"-"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (ChatCredential) TableName() string { return "kingschat_credentials" }

// ChatCredentialFilter provides filter fields for repository queries
type ChatCredentialFilter struct {
	ID       *uint
	ClientID *string
}
