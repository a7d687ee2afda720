package models

import (
	"database/sql/driver"
	"fmt"
)

// RecipientStatus represents the delivery state of a single recipient task.
// delivered may advance to opened (email only); a click keeps the status at
// opened and stamps clicked_at.
type RecipientStatus string

const (
	RecipientStatusPending   RecipientStatus = "pending"
	RecipientStatusDelivered RecipientStatus = "delivered"
	RecipientStatusOpened    RecipientStatus = "opened"
	RecipientStatusFailed    RecipientStatus = "failed"
)

// String returns the string representation of the status
func (s RecipientStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s RecipientStatus) Valid() bool {
	switch s {
	case RecipientStatusPending, RecipientStatusDelivered,
		RecipientStatusOpened, RecipientStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for RecipientStatus
func (s *RecipientStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = RecipientStatus(v)
	case []byte:
		*s = RecipientStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into RecipientStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for RecipientStatus
func (s RecipientStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid RecipientStatus: %s", s)
	}
	return string(s), nil
}
