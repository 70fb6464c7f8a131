package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad user input; the conversation re-prompts the same step
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a referenced user, shop, card or record that does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a uniqueness violation (token collision, duplicate shop name)
	ErrConflict = errors.New("conflict")
	// ErrLaunch marks a shop bot that could not be started
	ErrLaunch = errors.New("launch failed")
)

// ValidationError carries a user-facing reason for rejected input
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a validation error for field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
