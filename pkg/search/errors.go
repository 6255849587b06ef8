package search

import (
	"errors"
	"fmt"
)

// Sentinel errors. Validation failures wrap ErrValidation and one of the
// specific sentinels so callers can use errors.Is on either.
var (
	ErrValidation       = errors.New("validation error")
	ErrMissingQuery     = errors.New("missing query")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInternal         = errors.New("internal search failure")
)

// ValidationError describes a client error in a search request.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

func missingQuery() error {
	return &ValidationError{Field: "query", Message: "required", Err: ErrMissingQuery}
}

func invalidFrequency(raw string) error {
	return &ValidationError{
		Field:   "query",
		Message: fmt.Sprintf("frequency %q is not an integer", raw),
		Err:     ErrInvalidFrequency,
	}
}
