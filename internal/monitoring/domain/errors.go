package monitoring

import (
	"errors"
	"fmt"
)

// ErrEmptyMonitorID indicates a lookup without a monitor id.
var ErrEmptyMonitorID = errors.New("monitoring: empty monitor id")

// ValidationError reports client-side input that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
