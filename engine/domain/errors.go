package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures.
var (
	ErrInvalidImageSource = errors.New("invalid image source")
	ErrImageTooLarge      = errors.New("image too large")
	ErrNotAnImage         = errors.New("source is not an image")
	ErrEmptyExtraction    = errors.New("extraction returned no usable fields")
	ErrQueryTooShort      = errors.New("query too short")
	ErrQueryTooLong       = errors.New("query too long")
	ErrInvalidLimit       = errors.New("result limit out of range")
	ErrCardNotFound       = errors.New("card not found")
)

// ValidationError wraps a sentinel with context.
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
