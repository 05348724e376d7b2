package model

import (
	"errors"
	"fmt"
)

// ErrInvalidRecord is the kind matched by every InvalidRecordError.
var ErrInvalidRecord = errors.New("invalid record")

// InvalidRecordError identifies the input field that failed validation.
// Callers re-prompt for the field; values are never clamped.
type InvalidRecordError struct {
	Field  string
	Reason string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid record: %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidRecord) hold.
func (e *InvalidRecordError) Is(target error) bool { return target == ErrInvalidRecord }

func invalid(field, format string, args ...any) error {
	return &InvalidRecordError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
