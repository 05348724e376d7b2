package history_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/marksense/internal/adapters/history"
	"github.com/okian/marksense/internal/adapters/history/historytest"
	"github.com/okian/marksense/internal/adapters/history/memstore"
	"github.com/okian/marksense/internal/domain/model"
)

var errFlaky = errors.New("connection reset")

// flaky fails the first n Header calls, then delegates.
type flaky struct {
	*memstore.Store
	failures int32
	calls    atomic.Int32
}

func (f *flaky) Header(ctx context.Context) ([]string, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, errFlaky
	}
	return f.Store.Header(ctx)
}

// slow blocks every call until its context ends.
type slow struct {
	*memstore.Store
}

func (s *slow) Header(ctx context.Context) ([]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestAdapterRetries(t *testing.T) {
	Convey("Given a backend that fails transiently", t, func() {
		ctx := context.Background()
		roster := historytest.Ranked(t, historytest.Day1, historytest.Record(t, "Alice", 80, 90))

		Convey("When it recovers within the attempt budget", func() {
			b := &flaky{Store: memstore.New(), failures: 1}
			err := historytest.NewAdapter(b).Save(ctx, roster)

			Convey("Then the save succeeds after a retry", func() {
				So(err, ShouldBeNil)
				So(b.calls.Load(), ShouldEqual, 2)
			})
		})

		Convey("When it keeps failing", func() {
			b := &flaky{Store: memstore.New(), failures: 100}
			err := historytest.NewAdapter(b).Save(ctx, roster)

			Convey("Then StoreUnavailable is reported with the attempt count", func() {
				So(errors.Is(err, history.ErrStoreUnavailable), ShouldBeTrue)
				So(errors.Is(err, errFlaky), ShouldBeTrue)
				var unavailable *history.StoreUnavailableError
				So(errors.As(err, &unavailable), ShouldBeTrue)
				So(unavailable.Op, ShouldEqual, history.OpSave)
				So(unavailable.Attempts, ShouldEqual, 2)
				So(b.calls.Load(), ShouldEqual, 2)
			})
		})
	})

	Convey("Given a backend that never answers", t, func() {
		a := history.New(&slow{Store: memstore.New()}, historytest.Schema, nil,
			history.WithTimeout(10*time.Millisecond),
			history.WithRetryAttempts(1),
		)

		Convey("When loading", func() {
			_, err := a.LoadDates(context.Background())

			Convey("Then the per-attempt timeout surfaces as StoreUnavailable", func() {
				So(errors.Is(err, history.ErrStoreUnavailable), ShouldBeTrue)
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			})
		})
	})

	Convey("Given a schema mismatch", t, func() {
		b := &flaky{Store: memstore.New()}
		So(b.WriteHeader(context.Background(), []string{"Date", "Name", "Art", "Total", "Average", "Rank"}), ShouldBeNil)
		a := historytest.NewAdapter(b)

		Convey("When saving", func() {
			err := a.Save(context.Background(), historytest.Ranked(t, historytest.Day1))

			Convey("Then it fails once without retrying", func() {
				So(errors.Is(err, history.ErrSchemaMismatch), ShouldBeTrue)
				So(b.calls.Load(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a roster without a date", t, func() {
		a := historytest.NewAdapter(memstore.New())

		Convey("When saving", func() {
			err := a.Save(context.Background(), historytest.Ranked(t, time.Time{}))

			Convey("Then the date is reported as invalid", func() {
				var invalid *model.InvalidRecordError
				So(errors.As(err, &invalid), ShouldBeTrue)
				So(invalid.Field, ShouldEqual, model.ColumnDate)
			})
		})
	})

	Convey("Given stored rows for a subject that is no longer configured", t, func() {
		b := memstore.New()
		ctx := context.Background()
		So(b.WriteHeader(ctx, historytest.Schema.Header()), ShouldBeNil)
		So(b.Upsert(ctx, []model.HistoryRow{{
			Date:  historytest.Day1,
			Name:  "Ghost",
			Marks: map[string]float64{"Maths": 1},
		}}), ShouldBeNil)

		Convey("When loading that date", func() {
			_, err := historytest.NewAdapter(b).LoadByDate(ctx, historytest.Day1)

			Convey("Then the row is reported corrupt", func() {
				So(errors.Is(err, history.ErrCorruptRow), ShouldBeTrue)
				So(errors.Is(err, history.ErrStoreUnavailable), ShouldBeFalse)
			})
		})
	})
}

func TestAdapterLoadAll(t *testing.T) {
	Convey("Given two saved dates", t, func() {
		ctx := context.Background()
		a := historytest.NewAdapter(memstore.New())
		So(a.Save(ctx, historytest.Ranked(t, historytest.Day2, historytest.Record(t, "A", 1, 1))), ShouldBeNil)
		So(a.Save(ctx, historytest.Ranked(t, historytest.Day1, historytest.Record(t, "B", 2, 2))), ShouldBeNil)

		Convey("When loading everything", func() {
			all, err := a.LoadAll(ctx)

			Convey("Then rosters come back oldest first", func() {
				So(err, ShouldBeNil)
				So(all, ShouldHaveLength, 2)
				So(all[0].Date, ShouldEqual, historytest.Day1)
				So(all[1].Records[0].Name, ShouldEqual, "A")
			})
		})
	})
}
