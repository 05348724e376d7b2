// Package seed drives a running MarkSense service with generated classes:
// it submits a roster per day, checks the returned ranks against a local
// ranking, saves every day and then reads the history back.
package seed

import "time"

// Config holds configuration for a seed run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Days       int           // Number of consecutive days to submit and save
	Students   int           // Class size
	StartDate  time.Time     // First day; defaults to Days before today
	Workers    int           // Concurrent readers for the series check
	Timeout    time.Duration // HTTP request timeout
	Seed       uint64        // Generator seed; zero picks one from the run id
	OutputFile string        // Optional JSON dump of the submitted rosters
	Verbose    bool          // Log every day and student
}

// Stats holds run statistics.
type Stats struct {
	RunID          string
	DaysSubmitted  int
	DaysSaved      int
	RowsSaved      int
	RankMismatches int
	SeriesChecked  int
	SeriesFailed   int
	TrendPoints    int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}

// serverInfo is the part of GET /stats the generator needs.
type serverInfo struct {
	Subjects        []string           `json:"subjects"`
	MaxMarks        float64            `json:"maxMarks"`
	SubjectMaxMarks map[string]float64 `json:"subjectMaxMarks"`
	MaxCompare      int                `json:"maxCompare"`
}
