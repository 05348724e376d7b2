// Package ranking computes totals-based competition ranks and roster
// statistics for a set of student records.
package ranking

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/okian/marksense/internal/domain/model"
)

// podiumSize is the number of records exposed as the leaderboard.
const podiumSize = 3

// totalScale is the precision at which totals are compared, so sums that
// differ only by float rounding tie.
const totalScale = 1e6

// lowScoreFraction marks a subject as low scoring when its average falls
// below this share of the subject maximum.
const lowScoreFraction = 0.5

// RankedRoster is an enriched, ranked copy of a roster. It is never
// mutated after Rank returns it.
type RankedRoster struct {
	Date time.Time

	// Records are ordered by Total desc, ties by Name asc.
	Records []model.StudentRecord

	// Top3 holds the first three records (gold, silver, bronze).
	Top3 []model.StudentRecord

	// ClassAverage is the mean of the per-student averages. Zero when Empty.
	ClassAverage float64

	Highest *model.StudentRecord
	Lowest  *model.StudentRecord

	SubjectAverages map[string]float64

	// WeakSubjects lists subjects averaging below ClassAverage, in schema order.
	WeakSubjects []string

	// LowScoringSubjects lists subjects averaging below half their maximum.
	LowScoringSubjects []string

	// Empty is set when the roster has no records; the statistics above are
	// then zero values rather than undefined.
	Empty bool
}

// Find returns the record named name.
func (r RankedRoster) Find(name string) (model.StudentRecord, bool) {
	for _, rec := range r.Records {
		if rec.Name == name {
			return rec, true
		}
	}
	return model.StudentRecord{}, false
}

// Totals returns the totals in ranked order.
func (r RankedRoster) Totals() []float64 {
	out := make([]float64, len(r.Records))
	for i, rec := range r.Records {
		out[i] = rec.Total
	}
	return out
}

// Averages returns the per-student averages in ranked order.
func (r RankedRoster) Averages() []float64 {
	out := make([]float64, len(r.Records))
	for i, rec := range r.Records {
		out[i] = rec.Average
	}
	return out
}

// Aggregator ranks rosters for a fixed schema.
type Aggregator struct {
	schema model.Schema
}

// New returns an Aggregator for schema.
func New(schema model.Schema) *Aggregator {
	return &Aggregator{schema: schema}
}

// Schema returns the schema the aggregator was built with.
func (a *Aggregator) Schema() model.Schema { return a.schema }

// RankRoster ranks r and stamps the result with r's date.
func (a *Aggregator) RankRoster(r model.Roster) RankedRoster {
	out := a.Rank(r.Records)
	out.Date = r.Date
	return out
}

// Rank orders records by total and assigns standard competition ranks: tied
// totals share a rank and the next rank skips the tie group, so totals
// [90, 90, 80] rank [1, 1, 3]. The input slice is not modified. Ranking an
// empty slice is valid and yields an Empty roster.
func (a *Aggregator) Rank(records []model.StudentRecord) RankedRoster {
	out := RankedRoster{SubjectAverages: make(map[string]float64, a.schema.SubjectCount())}
	if len(records) == 0 {
		out.Empty = true
		out.Records = []model.StudentRecord{}
		out.Top3 = []model.StudentRecord{}
		out.WeakSubjects = []string{}
		out.LowScoringSubjects = []string{}
		return out
	}

	sorted := make([]model.StudentRecord, len(records))
	for i, rec := range records {
		sorted[i] = rec.Clone()
	}
	slices.SortStableFunc(sorted, func(x, y model.StudentRecord) int {
		if c := cmp.Compare(totalKey(y.Total), totalKey(x.Total)); c != 0 {
			return c
		}
		return strings.Compare(x.Name, y.Name)
	})
	for i := range sorted {
		if i > 0 && totalKey(sorted[i].Total) == totalKey(sorted[i-1].Total) {
			sorted[i].Rank = sorted[i-1].Rank
			continue
		}
		sorted[i].Rank = i + 1
	}
	out.Records = sorted

	n := min(podiumSize, len(sorted))
	out.Top3 = make([]model.StudentRecord, n)
	for i := 0; i < n; i++ {
		out.Top3[i] = sorted[i].Clone()
	}
	hi, lo := sorted[0].Clone(), sorted[len(sorted)-1].Clone()
	out.Highest, out.Lowest = &hi, &lo

	var avgSum float64
	for _, rec := range sorted {
		avgSum += rec.Average
	}
	out.ClassAverage = avgSum / float64(len(sorted))

	out.WeakSubjects = []string{}
	out.LowScoringSubjects = []string{}
	for _, sub := range a.schema.Subjects() {
		var sum float64
		for _, rec := range sorted {
			sum += rec.Marks[sub]
		}
		mean := sum / float64(len(sorted))
		out.SubjectAverages[sub] = mean
		if mean < out.ClassAverage {
			out.WeakSubjects = append(out.WeakSubjects, sub)
		}
		if mean < a.schema.MaxFor(sub)*lowScoreFraction {
			out.LowScoringSubjects = append(out.LowScoringSubjects, sub)
		}
	}
	return out
}

func totalKey(total float64) float64 { return math.Round(total * totalScale) }
