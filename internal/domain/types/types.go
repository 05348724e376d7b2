// Package types contains the JSON shapes exchanged over the HTTP API.
package types

import (
	"github.com/okian/marksense/internal/domain/model"
	"github.com/okian/marksense/internal/domain/ranking"
)

// StudentInput is one student as submitted by a client.
type StudentInput struct {
	Name  string             `json:"name"`
	Marks map[string]float64 `json:"marks"`
}

// SubmitRequest is the body of POST /roster.
type SubmitRequest struct {
	// Date is optional (2006-01-02); it defaults to today.
	Date     string         `json:"date,omitempty"`
	Students []StudentInput `json:"students"`
}

// Entry represents one ranked student.
type Entry struct {
	Rank    int                `json:"rank"`
	Name    string             `json:"name"`
	Marks   map[string]float64 `json:"marks"`
	Total   float64            `json:"total"`
	Average float64            `json:"average"`
}

// RosterView is a ranked roster with its statistics.
type RosterView struct {
	Date               string             `json:"date,omitempty"`
	Empty              bool               `json:"empty"`
	Students           []Entry            `json:"students"`
	Top3               []Entry            `json:"top3"`
	ClassAverage       float64            `json:"class_average"`
	Highest            *Entry             `json:"highest,omitempty"`
	Lowest             *Entry             `json:"lowest,omitempty"`
	SubjectAverages    map[string]float64 `json:"subject_averages"`
	WeakSubjects       []string           `json:"weak_subjects"`
	LowScoringSubjects []string           `json:"low_scoring_subjects"`
}

// SeriesPoint is one day of a student's history.
type SeriesPoint struct {
	Date    string  `json:"date"`
	Total   float64 `json:"total"`
	Average float64 `json:"average"`
	Rank    int     `json:"rank"`
}

// TrendPoint summarises one saved day.
type TrendPoint struct {
	Date         string  `json:"date"`
	ClassAverage float64 `json:"class_average"`
	TopTotal     float64 `json:"top_total"`
	Students     int     `json:"students"`
}

// Bucket is one histogram bin.
type Bucket struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// SaveResult is returned by POST /roster/save.
type SaveResult struct {
	SaveID   string `json:"save_id"`
	Date     string `json:"date"`
	Students int    `json:"students"`
}

// FromRecord converts a ranked record.
func FromRecord(r model.StudentRecord) Entry {
	c := r.Clone()
	return Entry{Rank: c.Rank, Name: c.Name, Marks: c.Marks, Total: c.Total, Average: c.Average}
}

// FromRecords converts records, never returning nil.
func FromRecords(rs []model.StudentRecord) []Entry {
	out := make([]Entry, 0, len(rs))
	for _, r := range rs {
		out = append(out, FromRecord(r))
	}
	return out
}

// FromRoster converts a ranked roster.
func FromRoster(r ranking.RankedRoster) RosterView {
	v := RosterView{
		Empty:              r.Empty,
		Students:           FromRecords(r.Records),
		Top3:               FromRecords(r.Top3),
		ClassAverage:       r.ClassAverage,
		SubjectAverages:    map[string]float64{},
		WeakSubjects:       nonNil(r.WeakSubjects),
		LowScoringSubjects: nonNil(r.LowScoringSubjects),
	}
	if !r.Date.IsZero() {
		v.Date = model.FormatDay(r.Date)
	}
	for k, avg := range r.SubjectAverages {
		v.SubjectAverages[k] = avg
	}
	if r.Highest != nil {
		e := FromRecord(*r.Highest)
		v.Highest = &e
	}
	if r.Lowest != nil {
		e := FromRecord(*r.Lowest)
		v.Lowest = &e
	}
	return v
}

// FromSeries converts a student series.
func FromSeries(points []model.SeriesPoint) []SeriesPoint {
	out := make([]SeriesPoint, 0, len(points))
	for _, p := range points {
		out = append(out, SeriesPoint{Date: model.FormatDay(p.Date), Total: p.Total, Average: p.Average, Rank: p.Rank})
	}
	return out
}

// FromBuckets converts histogram bins.
func FromBuckets(bs []ranking.Bucket) []Bucket {
	out := make([]Bucket, 0, len(bs))
	for _, b := range bs {
		out = append(out, Bucket{Lower: b.Lower, Upper: b.Upper, Count: b.Count})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
