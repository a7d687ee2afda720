// Package models contains domain entities and business models for the broadcast messaging system
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DispatchStatus represents the lifecycle state of a dispatch
type DispatchStatus string

const (
	DispatchStatusPending    DispatchStatus = "pending"
	DispatchStatusProcessing DispatchStatus = "processing"
	DispatchStatusCompleted  DispatchStatus = "completed"
	DispatchStatusFailed     DispatchStatus = "failed"
)

// String returns the string representation of the status
func (s DispatchStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s DispatchStatus) Valid() bool {
	switch s {
	case DispatchStatusPending, DispatchStatusProcessing,
		DispatchStatusCompleted, DispatchStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status is a terminal state
func (s DispatchStatus) Terminal() bool {
	return s == DispatchStatusCompleted || s == DispatchStatusFailed
}

// CanTransitionTo enforces the forward-only lifecycle:
// pending -> processing -> {completed, failed}
func (s DispatchStatus) CanTransitionTo(next DispatchStatus) bool {
	switch s {
	case DispatchStatusPending:
		return next == DispatchStatusProcessing || next == DispatchStatusFailed
	case DispatchStatusProcessing:
		return next == DispatchStatusCompleted || next == DispatchStatusFailed
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for DispatchStatus
func (s *DispatchStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = DispatchStatus(v)
	case []byte:
		*s = DispatchStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into DispatchStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for DispatchStatus
func (s DispatchStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid DispatchStatus: %s", s)
	}
	return string(s), nil
}

// FilterAll matches every value of an audience dimension
const FilterAll = "all"

// AudienceFilter narrows the contact list for a dispatch. Each dimension is
// either FilterAll or an exact value.
type AudienceFilter struct {
	Designation string `json:"designation"`
	Zone        string `json:"zone"`
	Country     string `json:"country"`
}

// MatchesAll reports whether the filter targets the entire contact list
func (f AudienceFilter) MatchesAll() bool {
	return f.Designation == FilterAll && f.Zone == FilterAll && f.Country == FilterAll
}

// Value implements the driver.Valuer interface for AudienceFilter
func (f AudienceFilter) Value() (driver.Value, error) {
	return json.Marshal(f)
}

// Scan implements the sql.Scanner interface for AudienceFilter
func (f *AudienceFilter) Scan(value any) error {
	if value == nil {
		*f = AudienceFilter{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into AudienceFilter", value)
	}

	return json.Unmarshal(bytes, f)
}

// ErrorEntry is a single append-only error_log record
type ErrorEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// ErrorLog is the ordered, append-only list of dispatch errors
type ErrorLog []ErrorEntry

// Append returns a new log with the entry added; existing entries are never rewritten
func (l ErrorLog) Append(at time.Time, message string) ErrorLog {
	return append(l, ErrorEntry{Timestamp: at, Message: message})
}

// Value implements the driver.Valuer interface for ErrorLog
func (l ErrorLog) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal(ErrorLog{})
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface for ErrorLog
func (l *ErrorLog) Scan(value any) error {
	if value == nil {
		*l = ErrorLog{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ErrorLog", value)
	}

	return json.Unmarshal(bytes, l)
}
