package errs

import (
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
)

// Kind classifies a ValidationError.
type Kind string

// Validation kinds.
const (
	KindEmptyLogin     Kind = "empty-login"
	KindInvalidLogin   Kind = "invalid-login-characters"
	KindDuplicateLogin Kind = "duplicate-login"
	KindWeakPassword   Kind = "weak-password"
)

// ValidationError reports a login or password that failed policy.
// It is returned before any mutation, so store state is unchanged.
type ValidationError struct {
	Field  string // "login" or "password"
	Kind   Kind
	Reason string // human readable detail, never contains the password
}

// Error implements error.
func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("validation: %s: %s", e.Field, e.Kind)
	}
	return fmt.Sprintf("validation: %s: %s: %s", e.Field, e.Kind, e.Reason)
}

// Is matches the sentinel for the error's kind.
func (e *ValidationError) Is(target error) bool {
	switch e.Kind {
	case KindEmptyLogin:
		return target == ErrEmptyLogin
	case KindInvalidLogin:
		return target == ErrInvalidLogin
	case KindDuplicateLogin:
		return target == ErrDuplicateLogin || target == ErrAlreadyExists
	case KindWeakPassword:
		return target == ErrWeakPassword
	}
	return false
}

// NewValidation constructs a ValidationError.
func NewValidation(field string, kind Kind, reason string) *ValidationError {
	return &ValidationError{Field: field, Kind: kind, Reason: reason}
}

// NotFoundError reports an identifier (or login) with no live record.
type NotFoundError struct {
	ID    uuid.UUID
	Login string // set instead of ID for index lookups
}

// Error implements error.
func (e *NotFoundError) Error() string {
	if e.Login != "" {
		return fmt.Sprintf("person with login %q: not found", e.Login)
	}
	return fmt.Sprintf("person %s: not found", e.ID)
}

// Is reports true for ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// IsValidation reports whether err carries a ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
