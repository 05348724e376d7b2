package model

import (
	"math"
	"strings"
	"time"
)

// DateLayout is the calendar-day layout used on the wire and in stores.
const DateLayout = "2006-01-02"

// StudentRecord is one student's marks plus the fields derived from them.
// Total and Average are computed on construction; Rank is assigned by the
// ranking package and is zero until then.
type StudentRecord struct {
	Name    string
	Marks   map[string]float64
	Total   float64
	Average float64
	Rank    int
}

// NewStudentRecord validates name and marks against schema and computes
// the derived fields. Every configured subject must be present and each
// score must lie in [0, schema.MaxFor(subject)].
func NewStudentRecord(schema Schema, name string, marks map[string]float64) (StudentRecord, error) {
	return buildRecord(schema, name, marks, true)
}

// RebuildStudentRecord reconstructs a record read back from storage. Score
// bounds are not enforced: a stored value stays authoritative even if the
// configured maximum was lowered after it was saved.
func RebuildStudentRecord(schema Schema, name string, marks map[string]float64) (StudentRecord, error) {
	return buildRecord(schema, name, marks, false)
}

func buildRecord(schema Schema, name string, marks map[string]float64, checkBounds bool) (StudentRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return StudentRecord{}, invalid(ColumnName, "must not be empty")
	}
	for sub := range marks {
		if !schema.Has(sub) {
			return StudentRecord{}, invalid(sub, "unknown subject")
		}
	}

	rec := StudentRecord{Name: name, Marks: make(map[string]float64, schema.SubjectCount())}
	for _, sub := range schema.subjects {
		score, ok := marks[sub]
		if !ok {
			return StudentRecord{}, invalid(sub, "missing score")
		}
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return StudentRecord{}, invalid(sub, "score is not a number")
		}
		if checkBounds {
			if score < 0 {
				return StudentRecord{}, invalid(sub, "score %v is negative", score)
			}
			if limit := schema.MaxFor(sub); score > limit {
				return StudentRecord{}, invalid(sub, "score %v exceeds maximum %v", score, limit)
			}
		}
		rec.Marks[sub] = score
		rec.Total += score
	}
	rec.Average = rec.Total / float64(schema.SubjectCount())
	return rec, nil
}

// Clone returns a deep copy of r.
func (r StudentRecord) Clone() StudentRecord {
	out := r
	out.Marks = make(map[string]float64, len(r.Marks))
	for k, v := range r.Marks {
		out.Marks[k] = v
	}
	return out
}

// Roster is the set of records entered for one calendar day, in entry order.
type Roster struct {
	Date    time.Time
	Records []StudentRecord
}

// NewRoster builds a roster for date, rejecting duplicate names.
func NewRoster(date time.Time, records []StudentRecord) (Roster, error) {
	seen := make(map[string]struct{}, len(records))
	out := make([]StudentRecord, 0, len(records))
	for _, r := range records {
		if _, dup := seen[r.Name]; dup {
			return Roster{}, invalid(ColumnName, "duplicate student %q", r.Name)
		}
		seen[r.Name] = struct{}{}
		out = append(out, r.Clone())
	}
	return Roster{Date: Day(date), Records: out}, nil
}

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a DateLayout string into a UTC day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, invalid(ColumnDate, "expected %s, got %q", DateLayout, s)
	}
	return t, nil
}

// FormatDay renders t using DateLayout.
func FormatDay(t time.Time) string { return t.Format(DateLayout) }
