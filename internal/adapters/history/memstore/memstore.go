// Package memstore is an in-process history backend for tests and local runs.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/okian/marksense/internal/adapters/history"
	"github.com/okian/marksense/internal/domain/model"
)

// Store keeps rows in memory keyed by (day, name).
type Store struct {
	mu     sync.RWMutex
	header []string
	rows   map[string]model.HistoryRow
	closed bool
}

var _ history.Backend = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{rows: make(map[string]model.HistoryRow)}
}

func (s *Store) Header(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usable(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(s.header), nil
}

func (s *Store) WriteHeader(ctx context.Context, header []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(ctx); err != nil {
		return err
	}
	s.header = slices.Clone(header)
	return nil
}

func (s *Store) Upsert(ctx context.Context, rows []model.HistoryRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(ctx); err != nil {
		return err
	}
	for _, r := range rows {
		r.Date = model.Day(r.Date)
		s.rows[r.Key()] = cloneRow(r)
	}
	return nil
}

func (s *Store) RowsByDate(ctx context.Context, date time.Time) ([]model.HistoryRow, error) {
	day := model.Day(date)
	return s.filter(ctx, func(r model.HistoryRow) bool { return r.Date.Equal(day) })
}

func (s *Store) RowsByName(ctx context.Context, name string) ([]model.HistoryRow, error) {
	return s.filter(ctx, func(r model.HistoryRow) bool { return r.Name == name })
}

func (s *Store) Dates(ctx context.Context) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usable(ctx); err != nil {
		return nil, err
	}
	seen := make(map[time.Time]struct{})
	out := make([]time.Time, 0)
	for _, r := range s.rows {
		if _, ok := seen[r.Date]; ok {
			continue
		}
		seen[r.Date] = struct{}{}
		out = append(out, r.Date)
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) filter(ctx context.Context, keep func(model.HistoryRow) bool) ([]model.HistoryRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usable(ctx); err != nil {
		return nil, err
	}
	out := make([]model.HistoryRow, 0)
	for _, r := range s.rows {
		if keep(r) {
			out = append(out, cloneRow(r))
		}
	}
	slices.SortFunc(out, func(a, b model.HistoryRow) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out, nil
}

func (s *Store) usable(ctx context.Context) error {
	if s.closed {
		return history.ErrClosed
	}
	return ctx.Err()
}

func cloneRow(r model.HistoryRow) model.HistoryRow {
	marks := make(map[string]float64, len(r.Marks))
	for k, v := range r.Marks {
		marks[k] = v
	}
	r.Marks = marks
	return r
}
