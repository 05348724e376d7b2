package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/marksense/internal/adapters/history"
	service "github.com/okian/marksense/internal/app"
	"github.com/okian/marksense/internal/domain/model"
	"github.com/okian/marksense/internal/domain/ranking"
)

// ErrBadRequest is the kind of malformed requests.
var ErrBadRequest = errors.New("bad request")

// Error codes written in the error body.
const (
	CodeInvalidRecord    = "invalid_record"
	CodeBadRequest       = "bad_request"
	CodeNotFound         = "not_found"
	CodeNoRoster         = "no_roster"
	CodeEmptyRoster      = "empty_roster"
	CodeSchemaMismatch   = "schema_mismatch"
	CodeStoreUnavailable = "store_unavailable"
	CodeCorruptRow       = "corrupt_row"
	CodeTimeout          = "timeout"
	CodeInternal         = "internal_error"
)

// KindError tags an error with the operation that produced it and a
// sentinel kind that errors.Is can match.
type KindError struct {
	Op   string
	Kind error
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *KindError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error { return &KindError{Op: op, Kind: kind} }

// WrapKind wraps err as kind raised by op.
func WrapKind(op string, kind, err error) error { return &KindError{Op: op, Kind: kind, Err: err} }

// Wrap prefixes err with op, keeping it matchable.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// classify maps a service error to its HTTP status, error code and, for
// validation failures, the offending field.
func classify(err error) (status int, code, field string) {
	var invalid *model.InvalidRecordError
	switch {
	case errors.Is(err, history.ErrCorruptRow):
		// Stored data that no longer validates is never the caller's fault.
		return http.StatusInternalServerError, CodeCorruptRow, ""
	case errors.As(err, &invalid):
		return http.StatusBadRequest, CodeInvalidRecord, invalid.Field
	case errors.Is(err, history.ErrSnapshotNotFound), errors.Is(err, ranking.ErrStudentNotFound):
		return http.StatusNotFound, CodeNotFound, ""
	case errors.Is(err, history.ErrSchemaMismatch):
		return http.StatusConflict, CodeSchemaMismatch, ""
	case errors.Is(err, history.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, CodeStoreUnavailable, ""
	case errors.Is(err, service.ErrNoRoster):
		return http.StatusConflict, CodeNoRoster, ""
	case errors.Is(err, ranking.ErrEmptyRoster):
		return http.StatusConflict, CodeEmptyRoster, ""
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ranking.ErrTooManyStudents),
		errors.Is(err, ranking.ErrUnknownMode),
		errors.Is(err, service.ErrUnknownField):
		return http.StatusBadRequest, CodeBadRequest, ""
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout, ""
	default:
		return http.StatusInternalServerError, CodeInternal, ""
	}
}
