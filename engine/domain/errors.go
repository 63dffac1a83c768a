package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures.
var (
	ErrInvalidTitle    = errors.New("invalid title")
	ErrQueryTooShort   = errors.New("query too short")
	ErrQueryInjection  = errors.New("query contains suspicious content")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrUnknownGenre    = errors.New("unknown genre")
	ErrUnknownMedia    = errors.New("unknown media type")
	ErrYearOutOfRange  = errors.New("release year out of range")
)

// ValidationError wraps a sentinel with field context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
