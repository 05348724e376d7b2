// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// Column names surrounding the subject columns of a history row.
const (
	ColumnDate    = "Date"
	ColumnName    = "Name"
	ColumnTotal   = "Total"
	ColumnAverage = "Average"
	ColumnRank    = "Rank"
)

// DefaultMaxMarks is the per-subject maximum used when none is configured.
const DefaultMaxMarks = 100

// DefaultSubjects is the subject list used when none is configured.
var DefaultSubjects = []string{"Maths", "Science", "English", "History", "Computer"}

// Schema describes the subjects marks are recorded for and their bounds.
// A Schema is built once at startup and never mutated afterwards.
type Schema struct {
	subjects []string
	index    map[string]int
	maxMarks float64
	override map[string]float64
}

// NewSchema validates and builds a Schema. subjectMax may be nil.
func NewSchema(subjects []string, maxMarks float64, subjectMax map[string]float64) (Schema, error) {
	if len(subjects) == 0 {
		return Schema{}, errors.New("schema: at least one subject is required")
	}
	if maxMarks <= 0 {
		return Schema{}, fmt.Errorf("schema: max marks must be positive, got %v", maxMarks)
	}

	s := Schema{
		subjects: make([]string, 0, len(subjects)),
		index:    make(map[string]int, len(subjects)),
		maxMarks: maxMarks,
		override: make(map[string]float64, len(subjectMax)),
	}
	for _, sub := range subjects {
		sub = strings.TrimSpace(sub)
		if sub == "" {
			return Schema{}, errors.New("schema: subject names must not be empty")
		}
		if isReservedColumn(sub) {
			return Schema{}, fmt.Errorf("schema: subject %q collides with a reserved column", sub)
		}
		if _, dup := s.index[sub]; dup {
			return Schema{}, fmt.Errorf("schema: duplicate subject %q", sub)
		}
		s.index[sub] = len(s.subjects)
		s.subjects = append(s.subjects, sub)
	}
	for sub, limit := range subjectMax {
		if _, ok := s.index[sub]; !ok {
			return Schema{}, fmt.Errorf("schema: max marks override for unknown subject %q", sub)
		}
		if limit <= 0 {
			return Schema{}, fmt.Errorf("schema: max marks for %q must be positive, got %v", sub, limit)
		}
		s.override[sub] = limit
	}
	return s, nil
}

// MustSchema is NewSchema for static inputs; it panics on error.
func MustSchema(subjects []string, maxMarks float64, subjectMax map[string]float64) Schema {
	s, err := NewSchema(subjects, maxMarks, subjectMax)
	if err != nil {
		panic(err)
	}
	return s
}

// Subjects returns a copy of the configured subject list in order.
func (s Schema) Subjects() []string {
	out := make([]string, len(s.subjects))
	copy(out, s.subjects)
	return out
}

// SubjectCount returns the number of configured subjects.
func (s Schema) SubjectCount() int { return len(s.subjects) }

// Has reports whether subject is configured.
func (s Schema) Has(subject string) bool {
	_, ok := s.index[subject]
	return ok
}

// MaxFor returns the maximum score allowed for subject.
func (s Schema) MaxFor(subject string) float64 {
	if limit, ok := s.override[subject]; ok {
		return limit
	}
	return s.maxMarks
}

// MaxMarks returns the default per-subject maximum.
func (s Schema) MaxMarks() float64 { return s.maxMarks }

// Header returns the persisted column layout:
// Date | Name | <subjects...> | Total | Average | Rank.
func (s Schema) Header() []string {
	h := make([]string, 0, len(s.subjects)+5)
	h = append(h, ColumnDate, ColumnName)
	h = append(h, s.subjects...)
	return append(h, ColumnTotal, ColumnAverage, ColumnRank)
}

func isReservedColumn(name string) bool {
	switch name {
	case ColumnDate, ColumnName, ColumnTotal, ColumnAverage, ColumnRank:
		return true
	}
	return false
}
