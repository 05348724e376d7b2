// Package historytest holds the conformance suite every history backend runs.
package historytest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/marksense/internal/adapters/history"
	"github.com/okian/marksense/internal/domain/model"
	"github.com/okian/marksense/internal/domain/ranking"
)

// Factory returns an empty backend. The suite closes it.
type Factory func(t *testing.T) history.Backend

// Schema is the subject layout used by the suite.
var Schema = model.MustSchema([]string{"Maths", "Science"}, 100, nil)

// Day1 and Day2 are the fixture dates.
var (
	Day1 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	Day2 = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
)

// Record builds a Maths/Science record or fails the test.
func Record(t *testing.T, name string, maths, science float64) model.StudentRecord {
	t.Helper()
	r, err := model.NewStudentRecord(Schema, name, map[string]float64{"Maths": maths, "Science": science})
	require.NoError(t, err)
	return r
}

// Ranked ranks records for date.
func Ranked(t *testing.T, date time.Time, records ...model.StudentRecord) ranking.RankedRoster {
	t.Helper()
	roster, err := model.NewRoster(date, records)
	require.NoError(t, err)
	return ranking.New(Schema).RankRoster(roster)
}

// NewAdapter wraps b with fast retry settings.
func NewAdapter(b history.Backend) *history.Adapter {
	return history.New(b, Schema, ranking.New(Schema),
		history.WithTimeout(5*time.Second),
		history.WithRetryAttempts(2),
		history.WithInitialBackoff(time.Millisecond),
		history.WithMaxBackoff(5*time.Millisecond),
	)
}

// RunBackendSuite exercises newBackend through the raw contract and the Adapter.
func RunBackendSuite(t *testing.T, newBackend Factory) {
	t.Helper()

	open := func(t *testing.T) (history.Backend, *history.Adapter) {
		t.Helper()
		b := newBackend(t)
		t.Cleanup(func() { _ = b.Close() })
		return b, NewAdapter(b)
	}

	t.Run("fresh store reads empty", func(t *testing.T) {
		b, a := open(t)
		ctx := context.Background()

		header, err := b.Header(ctx)
		require.NoError(t, err)
		assert.Empty(t, header)

		dates, err := a.LoadDates(ctx)
		require.NoError(t, err)
		assert.Empty(t, dates)

		_, err = a.LoadByDate(ctx, Day1)
		assert.True(t, errors.Is(err, history.ErrSnapshotNotFound), "got %v", err)

		_, err = a.LoadLatest(ctx)
		assert.True(t, errors.Is(err, history.ErrSnapshotNotFound), "got %v", err)

		series, err := a.LoadSeriesForStudent(ctx, "Alice")
		require.NoError(t, err)
		assert.Empty(t, series)
	})

	t.Run("first save writes the header", func(t *testing.T) {
		b, a := open(t)
		ctx := context.Background()

		require.NoError(t, a.Save(ctx, Ranked(t, Day1, Record(t, "Alice", 80, 90))))

		header, err := b.Header(ctx)
		require.NoError(t, err)
		assert.Equal(t, Schema.Header(), header)
	})

	t.Run("save then load round trips", func(t *testing.T) {
		_, a := open(t)
		ctx := context.Background()
		saved := Ranked(t, Day1, Record(t, "Bob", 70, 70), Record(t, "Alice", 80, 90))

		require.NoError(t, a.Save(ctx, saved))
		loaded, err := a.LoadByDate(ctx, Day1)
		require.NoError(t, err)

		assert.Equal(t, saved.Date, loaded.Date)
		require.Len(t, loaded.Records, 2)
		for i := range saved.Records {
			assert.Equal(t, saved.Records[i].Name, loaded.Records[i].Name)
			assert.Equal(t, saved.Records[i].Marks, loaded.Records[i].Marks)
			assert.InDelta(t, saved.Records[i].Total, loaded.Records[i].Total, 1e-9)
			assert.InDelta(t, saved.Records[i].Average, loaded.Records[i].Average, 1e-9)
			assert.Equal(t, saved.Records[i].Rank, loaded.Records[i].Rank)
		}
		assert.InDelta(t, 77.5, loaded.ClassAverage, 1e-9)
		assert.Equal(t, []string{"Maths"}, loaded.WeakSubjects)
	})

	t.Run("second save for the same key overwrites", func(t *testing.T) {
		b, a := open(t)
		ctx := context.Background()

		require.NoError(t, a.Save(ctx, Ranked(t, Day1, Record(t, "Alice", 10, 10), Record(t, "Bob", 50, 50))))
		require.NoError(t, a.Save(ctx, Ranked(t, Day1, Record(t, "Alice", 90, 90))))

		rows, err := b.RowsByDate(ctx, Day1)
		require.NoError(t, err)
		require.Len(t, rows, 2)

		loaded, err := a.LoadByDate(ctx, Day1)
		require.NoError(t, err)
		alice, ok := loaded.Find("Alice")
		require.True(t, ok)
		assert.InDelta(t, 180, alice.Total, 1e-9)
		assert.Equal(t, 1, alice.Rank)
	})

	t.Run("stored ranks are recomputed", func(t *testing.T) {
		b, a := open(t)
		ctx := context.Background()
		require.NoError(t, b.WriteHeader(ctx, Schema.Header()))

		stale := model.RowFromRecord(Day1, Record(t, "Alice", 10, 10))
		stale.Rank = 1
		stale.Total = 999
		require.NoError(t, b.Upsert(ctx, []model.HistoryRow{stale, model.RowFromRecord(Day1, Record(t, "Bob", 60, 60))}))

		loaded, err := a.LoadByDate(ctx, Day1)
		require.NoError(t, err)
		alice, _ := loaded.Find("Alice")
		bob, _ := loaded.Find("Bob")
		assert.Equal(t, 2, alice.Rank)
		assert.InDelta(t, 20, alice.Total, 1e-9)
		assert.Equal(t, 1, bob.Rank)
	})

	t.Run("dates, latest and series", func(t *testing.T) {
		_, a := open(t)
		ctx := context.Background()

		require.NoError(t, a.Save(ctx, Ranked(t, Day2, Record(t, "Alice", 50, 50), Record(t, "Bob", 90, 90))))
		require.NoError(t, a.Save(ctx, Ranked(t, Day1, Record(t, "Alice", 80, 90), Record(t, "Bob", 70, 70))))

		dates, err := a.LoadDates(ctx)
		require.NoError(t, err)
		assert.Equal(t, []time.Time{Day1, Day2}, dates)

		latest, err := a.LoadLatest(ctx)
		require.NoError(t, err)
		assert.Equal(t, Day2, latest.Date)
		assert.Equal(t, "Bob", latest.Records[0].Name)

		series, err := a.LoadSeriesForStudent(ctx, "Alice")
		require.NoError(t, err)
		assert.Equal(t, []model.SeriesPoint{
			{Date: Day1, Total: 170, Average: 85, Rank: 1},
			{Date: Day2, Total: 100, Average: 50, Rank: 2},
		}, series)

		unknown, err := a.LoadSeriesForStudent(ctx, "Zoe")
		require.NoError(t, err)
		assert.Empty(t, unknown)
	})

	t.Run("empty roster saves without rows", func(t *testing.T) {
		b, a := open(t)
		ctx := context.Background()

		require.NoError(t, a.Save(ctx, Ranked(t, Day1)))
		dates, err := b.Dates(ctx)
		require.NoError(t, err)
		assert.Empty(t, dates)
	})

	t.Run("mismatched header is rejected", func(t *testing.T) {
		b, a := open(t)
		ctx := context.Background()
		require.NoError(t, b.WriteHeader(ctx, []string{"Date", "Name", "Art", "Total", "Average", "Rank"}))

		err := a.Save(ctx, Ranked(t, Day1, Record(t, "Alice", 1, 1)))
		var mismatch *history.SchemaMismatchError
		require.True(t, errors.As(err, &mismatch), "got %v", err)
		assert.Equal(t, Schema.Header(), mismatch.Expected)
		assert.False(t, errors.Is(err, history.ErrStoreUnavailable))

		_, err = a.LoadDates(ctx)
		assert.True(t, errors.Is(err, history.ErrSchemaMismatch))
	})

	t.Run("rows by name only returns that student", func(t *testing.T) {
		b, _ := open(t)
		ctx := context.Background()
		require.NoError(t, b.WriteHeader(ctx, Schema.Header()))
		require.NoError(t, b.Upsert(ctx, []model.HistoryRow{
			model.RowFromRecord(Day1, Record(t, "Alice", 1, 2)),
			model.RowFromRecord(Day2, Record(t, "Alice", 3, 4)),
			model.RowFromRecord(Day1, Record(t, "Bob", 5, 6)),
		}))

		rows, err := b.RowsByName(ctx, "Alice")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		for _, r := range rows {
			assert.Equal(t, "Alice", r.Name)
		}
	})
}
