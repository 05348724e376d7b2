package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HistoryRow is the persistence unit of the history store: one student on
// one day. Rows are keyed by (Date, Name).
type HistoryRow struct {
	Date    time.Time
	Name    string
	Marks   map[string]float64
	Total   float64
	Average float64
	Rank    int
}

// Key returns the upsert key of the row.
func (r HistoryRow) Key() string { return FormatDay(r.Date) + "\x00" + r.Name }

// SeriesPoint is one day of a student's progress.
type SeriesPoint struct {
	Date    time.Time
	Total   float64
	Average float64
	Rank    int
}

// RowFromRecord flattens rec into a row for date.
func RowFromRecord(date time.Time, rec StudentRecord) HistoryRow {
	c := rec.Clone()
	return HistoryRow{
		Date:    Day(date),
		Name:    c.Name,
		Marks:   c.Marks,
		Total:   c.Total,
		Average: c.Average,
		Rank:    c.Rank,
	}
}

// Record rebuilds the student record the row was flattened from. Derived
// fields are recomputed from the marks; the stored Total, Average and Rank
// are not trusted.
func (r HistoryRow) Record(schema Schema) (StudentRecord, error) {
	return RebuildStudentRecord(schema, r.Name, r.Marks)
}

// Cells renders the row in header order as spreadsheet cell values.
func (r HistoryRow) Cells(subjects []string) []any {
	cells := make([]any, 0, len(subjects)+5)
	cells = append(cells, FormatDay(r.Date), r.Name)
	for _, sub := range subjects {
		cells = append(cells, r.Marks[sub])
	}
	return append(cells, r.Total, r.Average, r.Rank)
}

// ParseHistoryRow converts spreadsheet cells laid out as header into a row.
// Short rows are padded with empty cells; empty numeric cells read as zero.
func ParseHistoryRow(header []string, cells []string) (HistoryRow, error) {
	if len(header) < 5 {
		return HistoryRow{}, fmt.Errorf("history row: header has %d columns", len(header))
	}
	get := func(i int) string {
		if i < len(cells) {
			return strings.TrimSpace(cells[i])
		}
		return ""
	}

	date, err := ParseDay(get(0))
	if err != nil {
		return HistoryRow{}, fmt.Errorf("history row: %w", err)
	}
	row := HistoryRow{Date: date, Name: get(1), Marks: make(map[string]float64, len(header)-5)}

	subjects := header[2 : len(header)-3]
	for i, sub := range subjects {
		v, err := parseNumber(get(2 + i))
		if err != nil {
			return HistoryRow{}, fmt.Errorf("history row %q: column %s: %w", row.Name, sub, err)
		}
		row.Marks[sub] = v
	}
	base := 2 + len(subjects)
	if row.Total, err = parseNumber(get(base)); err != nil {
		return HistoryRow{}, fmt.Errorf("history row %q: column %s: %w", row.Name, ColumnTotal, err)
	}
	if row.Average, err = parseNumber(get(base + 1)); err != nil {
		return HistoryRow{}, fmt.Errorf("history row %q: column %s: %w", row.Name, ColumnAverage, err)
	}
	rank, err := parseNumber(get(base + 2))
	if err != nil {
		return HistoryRow{}, fmt.Errorf("history row %q: column %s: %w", row.Name, ColumnRank, err)
	}
	row.Rank = int(rank)
	return row, nil
}

func parseNumber(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
