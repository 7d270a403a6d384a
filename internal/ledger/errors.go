// Package ledger implements the journal entry poster, the correctness-
// critical heart of the system.
package ledger

import (
	"errors"
	"fmt"
)

// Domain errors surfaced by the poster.
var (
	// ErrPeriodClosed means a posting targeted a period that is not OPEN.
	// The request is never silently redirected to another period.
	ErrPeriodClosed = errors.New("accounting period is not open")
)

// ValidationError reports a draft that violated a double-entry invariant.
// It is always returned before any write, so retrying after correction is
// safe.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid entry: %s", e.Reason)
}

// NewValidationError wraps a reason in a ValidationError.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
