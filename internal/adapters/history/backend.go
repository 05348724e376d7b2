// Package history persists ranked rosters as dated rows and reads them back
// as freshly ranked rosters.
package history

import (
	"context"
	"time"

	"github.com/okian/marksense/internal/domain/model"
)

// Backend is the raw row store behind an Adapter. Implementations only move
// rows; header checks, retries, timeouts and ranking live in the Adapter.
type Backend interface {
	// Header returns the stored header, or an empty slice for a fresh store.
	Header(ctx context.Context) ([]string, error)
	// WriteHeader stores header. Called only on a fresh store.
	WriteHeader(ctx context.Context, header []string) error
	// Upsert inserts rows, replacing any existing row with the same key.
	Upsert(ctx context.Context, rows []model.HistoryRow) error
	// RowsByDate returns all rows for one day.
	RowsByDate(ctx context.Context, date time.Time) ([]model.HistoryRow, error)
	// Dates returns the distinct stored days.
	Dates(ctx context.Context) ([]time.Time, error)
	// RowsByName returns all rows for one student.
	RowsByName(ctx context.Context, name string) ([]model.HistoryRow, error)
	// Close releases backend resources.
	Close() error
}
