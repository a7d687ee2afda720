package models

import (
	"time"

	"github.com/google/uuid"
)

// Operator is an admin-panel user allowed to create and inspect dispatches
type Operator struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_operators_uuid" json:"uuid"`
	Username     string    `gorm:"size:255;not null;uniqueIndex:uk_operators_username" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`

	IsActive    *bool      `gorm:"default:true;index:idx_operators_is_active" json:"is_active"`
	CreatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	LastLoginAt *time.Time `gorm:"index:idx_operators_last_login_at" json:"last_login_at,omitempty"`
}

func (Operator) TableName() string { return "operators" }

// OperatorFilter represents filter criteria for operator queries
type OperatorFilter struct {
	ID       *uint
	UUID     *uuid.UUID
	Username *string
	IsActive *bool
}
