package seed

import (
	"fmt"
	"math"

	"github.com/okian/marksense/internal/domain/model"
	"github.com/okian/marksense/internal/domain/ranking"
	"github.com/okian/marksense/internal/domain/types"
)

// tolerance absorbs float formatting differences in totals and averages.
const tolerance = 1e-6

// expectedRoster ranks req locally.
func expectedRoster(schema model.Schema, req types.SubmitRequest) (ranking.RankedRoster, error) {
	records := make([]model.StudentRecord, 0, len(req.Students))
	for _, in := range req.Students {
		rec, err := model.NewStudentRecord(schema, in.Name, in.Marks)
		if err != nil {
			return ranking.RankedRoster{}, err
		}
		records = append(records, rec)
	}
	return ranking.New(schema).Rank(records), nil
}

// verifyRoster compares the ranked roster returned by the service with the
// local ranking and reports how many students disagree.
func verifyRoster(want ranking.RankedRoster, got types.RosterView) (int, error) {
	if len(got.Students) != len(want.Records) {
		return 0, fmt.Errorf("roster has %d students, want %d", len(got.Students), len(want.Records))
	}
	mismatches := 0
	for i, rec := range want.Records {
		e := got.Students[i]
		if e.Name != rec.Name || e.Rank != rec.Rank || math.Abs(e.Total-rec.Total) > tolerance {
			mismatches++
		}
	}
	if math.Abs(got.ClassAverage-want.ClassAverage) > tolerance {
		return mismatches, fmt.Errorf("class average %.4f, want %.4f", got.ClassAverage, want.ClassAverage)
	}
	return mismatches, nil
}

// verifySeries checks that a series covers every saved day with the rank
// the student held that day.
func verifySeries(name string, points []types.SeriesPoint, ranks map[string]map[string]int) error {
	if len(points) != len(ranks) {
		return fmt.Errorf("%s: series has %d points, want %d", name, len(points), len(ranks))
	}
	for _, p := range points {
		day, ok := ranks[p.Date]
		if !ok {
			return fmt.Errorf("%s: unexpected day %s", name, p.Date)
		}
		if day[name] != p.Rank {
			return fmt.Errorf("%s: rank %d on %s, want %d", name, p.Rank, p.Date, day[name])
		}
	}
	return nil
}
