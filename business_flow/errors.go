// Package businessflow contains the core business logic and use cases for broadcast dispatch workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Operator-related errors
	ErrOperatorNotFound  = errors.New("operator not found")
	ErrOperatorInactive  = errors.New("operator account is inactive")
	ErrIncorrectPassword = errors.New("incorrect password")

	// Dispatch-related errors
	ErrDispatchNotFound        = errors.New("dispatch not found")
	ErrDispatchSubjectRequired = errors.New("dispatch subject is required")
	ErrDispatchTitleRequired   = errors.New("dispatch title is required")
	ErrDispatchMessageRequired = errors.New("dispatch message is required")
	ErrDispatchNoRecipients    = errors.New("no contacts match the dispatch filter")
	ErrDispatchNotCompleted    = errors.New("dispatch has not completed yet")

	// Contact-related errors
	ErrContactNotFound         = errors.New("contact not found")
	ErrUnsubscribeTokenUnknown = errors.New("unsubscribe token not recognized")

	// Credential-related errors
	ErrCredentialNotFound = errors.New("kingschat credential not configured")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsBusinessError checks whether the error chain contains a BusinessError
func IsBusinessError(err error) (*BusinessError, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

func IsOperatorNotFound(err error) bool {
	return errors.Is(err, ErrOperatorNotFound)
}

func IsOperatorInactive(err error) bool {
	return errors.Is(err, ErrOperatorInactive)
}

func IsIncorrectPassword(err error) bool {
	return errors.Is(err, ErrIncorrectPassword)
}

func IsDispatchNotFound(err error) bool {
	return errors.Is(err, ErrDispatchNotFound)
}

func IsDispatchNotCompleted(err error) bool {
	return errors.Is(err, ErrDispatchNotCompleted)
}

func IsValidationFailure(err error) bool {
	return errors.Is(err, ErrDispatchSubjectRequired) ||
		errors.Is(err, ErrDispatchTitleRequired) ||
		errors.Is(err, ErrDispatchMessageRequired)
}

func IsUnsubscribeTokenUnknown(err error) bool {
	return errors.Is(err, ErrUnsubscribeTokenUnknown)
}

func IsCredentialNotFound(err error) bool {
	return errors.Is(err, ErrCredentialNotFound)
}
