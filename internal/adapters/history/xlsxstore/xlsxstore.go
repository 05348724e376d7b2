// Package xlsxstore keeps history rows in one sheet of an Excel workbook.
// Row 1 holds the header; every other row is one (date, name) entry.
package xlsxstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/okian/marksense/internal/adapters/history"
	"github.com/okian/marksense/internal/domain/model"
)

// DefaultSheet is the sheet used when none is configured.
const DefaultSheet = "History"

const headerRow = 1

// Store reads and writes a workbook file. The file is reopened on every call
// so edits made outside the service are picked up.
type Store struct {
	mu     sync.Mutex
	path   string
	sheet  string
	closed bool
}

var _ history.Backend = (*Store)(nil)

// New creates a store for the workbook at path. The file is created on the
// first write.
func New(path, sheet string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("xlsxstore: path must not be empty")
	}
	if strings.TrimSpace(sheet) == "" {
		sheet = DefaultSheet
	}
	return &Store{path: path, sheet: sheet}, nil
}

func (s *Store) Header(ctx context.Context) ([]string, error) {
	rows, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []string{}, nil
	}
	return trimRight(rows[0]), nil
}

func (s *Store) WriteHeader(ctx context.Context, header []string) error {
	return s.write(ctx, func(f *excelize.File, _ [][]string) error {
		cells := make([]any, len(header))
		for i, h := range header {
			cells[i] = h
		}
		return setRow(f, s.sheet, headerRow, cells)
	})
}

func (s *Store) Upsert(ctx context.Context, rows []model.HistoryRow) error {
	return s.write(ctx, func(f *excelize.File, existing [][]string) error {
		if len(existing) == 0 {
			return errors.New("xlsxstore: header missing")
		}
		header := trimRight(existing[0])
		if len(header) < 5 {
			return history.CorruptRow(fmt.Errorf("xlsxstore: header has %d columns", len(header)))
		}
		subjects := header[2 : len(header)-3]

		index := make(map[string]int, len(existing))
		for i, cells := range existing[1:] {
			if key, ok := rowKey(cells); ok {
				index[key] = i + headerRow + 1
			}
		}
		next := len(existing) + 1
		for _, r := range rows {
			r.Date = model.Day(r.Date)
			n, ok := index[r.Key()]
			if !ok {
				n = next
				next++
				index[r.Key()] = n
			}
			if err := setRow(f, s.sheet, n, r.Cells(subjects)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) RowsByDate(ctx context.Context, date time.Time) ([]model.HistoryRow, error) {
	day := model.FormatDay(model.Day(date))
	return s.rows(ctx, func(cells []string) bool { return cell(cells, 0) == day })
}

func (s *Store) RowsByName(ctx context.Context, name string) ([]model.HistoryRow, error) {
	return s.rows(ctx, func(cells []string) bool { return cell(cells, 1) == name })
}

func (s *Store) Dates(ctx context.Context) ([]time.Time, error) {
	rows, err := s.read(ctx)
	if err != nil || len(rows) == 0 {
		return []time.Time{}, err
	}
	out := make([]time.Time, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		if blank(cells) {
			continue
		}
		d, err := model.ParseDay(cell(cells, 0))
		if err != nil {
			return nil, history.CorruptRow(err)
		}
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(out, func(a, b time.Time) bool { return a.Equal(b) }), nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) rows(ctx context.Context, keep func([]string) bool) ([]model.HistoryRow, error) {
	rows, err := s.read(ctx)
	if err != nil || len(rows) == 0 {
		return []model.HistoryRow{}, err
	}
	header := trimRight(rows[0])
	out := make([]model.HistoryRow, 0)
	for _, cells := range rows[1:] {
		if blank(cells) || !keep(cells) {
			continue
		}
		r, err := model.ParseHistoryRow(header, cells)
		if err != nil {
			return nil, history.CorruptRow(err)
		}
		out = append(out, r)
	}
	return out, nil
}

// read returns every row of the sheet. A missing file or sheet reads as empty.
func (s *Store) read(ctx context.Context) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(ctx); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xlsxstore: open %s: %w", s.path, err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(s.sheet)
	if err != nil || idx < 0 {
		return nil, nil
	}
	rows, err := f.GetRows(s.sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("xlsxstore: read sheet %s: %w", s.sheet, err)
	}
	return rows, nil
}

// write opens or creates the workbook, applies fn and saves it.
func (s *Store) write(ctx context.Context, fn func(f *excelize.File, rows [][]string) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(ctx); err != nil {
		return err
	}

	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(s.sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return fmt.Errorf("xlsxstore: read sheet %s: %w", s.sheet, err)
	}
	if err := fn(f, rows); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("xlsxstore: save %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		f = excelize.NewFile()
		if err := f.SetSheetName(f.GetSheetName(0), s.sheet); err != nil {
			return nil, fmt.Errorf("xlsxstore: name sheet: %w", err)
		}
		return f, nil
	case err != nil:
		return nil, fmt.Errorf("xlsxstore: open %s: %w", s.path, err)
	}
	if idx, err := f.GetSheetIndex(s.sheet); err != nil || idx < 0 {
		if _, err := f.NewSheet(s.sheet); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("xlsxstore: add sheet %s: %w", s.sheet, err)
		}
	}
	return f, nil
}

func (s *Store) usable(ctx context.Context) error {
	if s.closed {
		return history.ErrClosed
	}
	return ctx.Err()
}

func setRow(f *excelize.File, sheet string, row int, cells []any) error {
	addr, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, addr, &cells); err != nil {
		return fmt.Errorf("xlsxstore: write row %d: %w", row, err)
	}
	return nil
}

func rowKey(cells []string) (string, bool) {
	d, err := model.ParseDay(cell(cells, 0))
	if err != nil {
		return "", false
	}
	return model.FormatDay(d) + "\x00" + cell(cells, 1), true
}

func cell(cells []string, i int) string {
	if i < len(cells) {
		return strings.TrimSpace(cells[i])
	}
	return ""
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimRight(cells []string) []string {
	out := slices.Clone(cells)
	for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}
	return out
}
