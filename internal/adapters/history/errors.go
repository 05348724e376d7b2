package history

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds for history store errors.
var (
	ErrStoreUnavailable = errors.New("history store unavailable")
	ErrSchemaMismatch   = errors.New("history schema mismatch")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrCorruptRow       = errors.New("corrupt history row")
	ErrClosed           = errors.New("history backend closed")
)

// StoreUnavailableError reports a backend that kept failing after retries.
type StoreUnavailableError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("%s: %s after %d attempt(s): %v", ErrStoreUnavailable, e.Op, e.Attempts, e.Err)
}

func (e *StoreUnavailableError) Is(target error) bool { return target == ErrStoreUnavailable }

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// SchemaMismatchError reports a stored header that differs from the configured one.
type SchemaMismatchError struct {
	Expected []string
	Actual   []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("%s: expected [%s], found [%s]", ErrSchemaMismatch,
		strings.Join(e.Expected, ", "), strings.Join(e.Actual, ", "))
}

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }

// CorruptRow wraps a row decoding failure so it is never retried.
func CorruptRow(err error) error {
	return fmt.Errorf("%w: %w", ErrCorruptRow, err)
}
