package service_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/okian/marksense/internal/adapters/history"
	"github.com/okian/marksense/internal/adapters/history/memstore"
	service "github.com/okian/marksense/internal/app"
	"github.com/okian/marksense/internal/domain/model"
	"github.com/okian/marksense/internal/domain/ranking"
	"github.com/okian/marksense/internal/domain/types"
	"github.com/okian/marksense/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

var (
	schema = model.MustSchema([]string{"Maths", "Science"}, 100, nil)
	today  = time.Date(2026, 6, 10, 15, 30, 0, 0, time.UTC)
)

func newService(opts ...service.Option) *service.Service {
	store := history.New(memstore.New(), schema, nil, history.WithInitialBackoff(time.Millisecond))
	opts = append([]service.Option{service.WithClock(func() time.Time { return today })}, opts...)
	return service.New(schema, store, opts...)
}

func student(name string, maths, science float64) types.StudentInput {
	return types.StudentInput{Name: name, Marks: map[string]float64{"Maths": maths, "Science": science}}
}

func TestService_Start(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := newService()
		defer svc.Stop()

		Convey("When starting the service", func() {
			err := svc.Start(context.Background())

			Convey("Then it should be marked as started", func() {
				So(err, ShouldBeNil)
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["hasRoster"], ShouldEqual, false)
				So(stats["subjects"], ShouldResemble, []string{"Maths", "Science"})
			})

			Convey("And starting again is a no-op", func() {
				So(svc.Start(context.Background()), ShouldBeNil)
			})
		})
	})
}

func TestService_SubmitRoster(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newService()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When submitting Alice and Bob without a date", func() {
			r, err := svc.SubmitRoster(ctx, types.SubmitRequest{Students: []types.StudentInput{
				student("Bob", 70, 70), student("Alice", 80, 90),
			}})

			Convey("Then the roster is ranked for today", func() {
				So(err, ShouldBeNil)
				So(r.Date, ShouldEqual, time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC))
				So(r.Records[0].Name, ShouldEqual, "Alice")
				So(r.ClassAverage, ShouldEqual, 77.5)
			})

			Convey("And it becomes the session roster", func() {
				current := svc.CurrentRoster(ctx)
				So(current.Records, ShouldHaveLength, 2)
				So(svc.GetStats()["students"], ShouldEqual, 2)
			})
		})

		Convey("When a mark is out of range", func() {
			_, err := svc.SubmitRoster(ctx, types.SubmitRequest{Students: []types.StudentInput{student("Eve", 101, 0)}})

			Convey("Then the offending field is reported and the session is untouched", func() {
				var invalid *model.InvalidRecordError
				So(errors.As(err, &invalid), ShouldBeTrue)
				So(invalid.Field, ShouldEqual, "Maths")
				So(svc.CurrentRoster(ctx).Empty, ShouldBeTrue)
			})
		})

		Convey("When two students share a name", func() {
			_, err := svc.SubmitRoster(ctx, types.SubmitRequest{Students: []types.StudentInput{
				student("Ann", 1, 1), student("Ann", 2, 2),
			}})

			So(errors.Is(err, model.ErrInvalidRecord), ShouldBeTrue)
		})

		Convey("When the date is malformed", func() {
			_, err := svc.SubmitRoster(ctx, types.SubmitRequest{Date: "10/06/2026"})

			So(errors.Is(err, model.ErrInvalidRecord), ShouldBeTrue)
		})

		Convey("When the roster is empty", func() {
			r, err := svc.SubmitRoster(ctx, types.SubmitRequest{})

			Convey("Then it ranks without error", func() {
				So(err, ShouldBeNil)
				So(r.Empty, ShouldBeTrue)
				So(r.ClassAverage, ShouldEqual, 0)
			})
		})
	})
}

func TestService_SaveAndLoad(t *testing.T) {
	Convey("Given a service with a submitted roster", t, func() {
		ctx := context.Background()
		svc := newService()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When saving without a session roster", func() {
			_, err := newService().SaveCurrent(ctx, "")

			So(errors.Is(err, service.ErrNoRoster), ShouldBeTrue)
		})

		_, err := svc.SubmitRoster(ctx, types.SubmitRequest{Date: "2026-06-01", Students: []types.StudentInput{
			student("Alice", 80, 90), student("Bob", 70, 70),
		}})
		So(err, ShouldBeNil)

		Convey("When saving it", func() {
			res, err := svc.SaveCurrent(ctx, "")

			Convey("Then a save id is issued for the roster date", func() {
				So(err, ShouldBeNil)
				So(res.SaveID, ShouldNotBeEmpty)
				So(res.Date, ShouldEqual, "2026-06-01")
				So(res.Students, ShouldEqual, 2)
				So(svc.GetStats()["lastSaveId"], ShouldEqual, res.SaveID)
			})

			Convey("And the snapshot can be loaded back", func() {
				snap, err := svc.Snapshot(ctx, "2026-06-01")
				So(err, ShouldBeNil)
				So(snap.Records[0].Name, ShouldEqual, "Alice")
				So(snap.Records[0].Rank, ShouldEqual, 1)

				dates, err := svc.Dates(ctx)
				So(err, ShouldBeNil)
				So(dates, ShouldHaveLength, 1)
			})
		})

		Convey("When saving under another date and loading the latest", func() {
			_, err := svc.SaveCurrent(ctx, "2026-06-01")
			So(err, ShouldBeNil)
			_, err = svc.SubmitRoster(ctx, types.SubmitRequest{Students: []types.StudentInput{student("Zed", 1, 1)}})
			So(err, ShouldBeNil)
			_, err = svc.SaveCurrent(ctx, "2026-06-05")
			So(err, ShouldBeNil)

			loaded, err := svc.LoadIntoSession(ctx, "")

			Convey("Then the most recent date becomes the session roster", func() {
				So(err, ShouldBeNil)
				So(model.FormatDay(loaded.Date), ShouldEqual, "2026-06-05")
				So(svc.CurrentRoster(ctx).Records[0].Name, ShouldEqual, "Zed")
			})

			Convey("And trends cover both dates", func() {
				trends, err := svc.Trends(ctx)
				So(err, ShouldBeNil)
				So(trends, ShouldResemble, []types.TrendPoint{
					{Date: "2026-06-01", ClassAverage: 77.5, TopTotal: 170, Students: 2},
					{Date: "2026-06-05", ClassAverage: 1, TopTotal: 2, Students: 1},
				})
			})

			Convey("And a student series is ordered by date", func() {
				series, err := svc.Series(ctx, "Alice")
				So(err, ShouldBeNil)
				So(series, ShouldHaveLength, 1)
				So(series[0].Rank, ShouldEqual, 1)

				_, err = svc.Series(ctx, "Nobody")
				So(errors.Is(err, ranking.ErrStudentNotFound), ShouldBeTrue)

				_, err = svc.Series(ctx, " ")
				So(errors.Is(err, model.ErrInvalidRecord), ShouldBeTrue)
			})
		})

		Convey("When loading a date that was never saved", func() {
			_, err := svc.LoadIntoSession(ctx, "2020-01-01")

			Convey("Then not found is reported and the session is kept", func() {
				So(errors.Is(err, history.ErrSnapshotNotFound), ShouldBeTrue)
				So(svc.CurrentRoster(ctx).Records, ShouldHaveLength, 2)
			})
		})
	})
}

// hookedHistory runs afterSave once the wrapped store has saved.
type hookedHistory struct {
	service.History
	afterSave func()
}

func (h *hookedHistory) Save(ctx context.Context, r ranking.RankedRoster) error {
	if err := h.History.Save(ctx, r); err != nil {
		return err
	}
	if h.afterSave != nil {
		h.afterSave()
	}
	return nil
}

func TestService_SaveEdgeCases(t *testing.T) {
	Convey("Given a service whose session roster is empty", t, func() {
		ctx := context.Background()
		svc := newService()
		_, err := svc.SubmitRoster(ctx, types.SubmitRequest{Date: "2026-06-01"})
		So(err, ShouldBeNil)

		Convey("When saving it", func() {
			_, err := svc.SaveCurrent(ctx, "")

			Convey("Then the save is refused and nothing is stored", func() {
				So(errors.Is(err, ranking.ErrEmptyRoster), ShouldBeTrue)
				dates, err := svc.Dates(ctx)
				So(err, ShouldBeNil)
				So(dates, ShouldBeEmpty)
				So(svc.GetStats()["saves"], ShouldEqual, 0)
			})
		})
	})

	Convey("Given a roster replaced while its save is in flight", t, func() {
		ctx := context.Background()
		store := &hookedHistory{History: history.New(memstore.New(), schema, nil)}
		svc := service.New(schema, store, service.WithClock(func() time.Time { return today }))
		_, err := svc.SubmitRoster(ctx, types.SubmitRequest{Date: "2026-06-01", Students: []types.StudentInput{
			student("Alice", 80, 90),
		}})
		So(err, ShouldBeNil)
		store.afterSave = func() {
			_, err := svc.SubmitRoster(ctx, types.SubmitRequest{Date: "2026-06-07", Students: []types.StudentInput{
				student("Chen", 60, 65),
			}})
			So(err, ShouldBeNil)
		}

		Convey("When the save re-dates the old roster", func() {
			res, err := svc.SaveCurrent(ctx, "2026-06-03")
			So(err, ShouldBeNil)
			So(res.Date, ShouldEqual, "2026-06-03")

			Convey("Then the newer roster keeps its own date", func() {
				cur := svc.CurrentRoster(ctx)
				So(cur.Records[0].Name, ShouldEqual, "Chen")
				So(model.FormatDay(cur.Date), ShouldEqual, "2026-06-07")
			})
		})
	})

	Convey("Given a roster that is not replaced during its save", t, func() {
		ctx := context.Background()
		svc := newService()
		_, err := svc.SubmitRoster(ctx, types.SubmitRequest{Date: "2026-06-01", Students: []types.StudentInput{
			student("Alice", 80, 90),
		}})
		So(err, ShouldBeNil)

		Convey("When saving it under another date", func() {
			_, err := svc.SaveCurrent(ctx, "2026-06-03")
			So(err, ShouldBeNil)

			Convey("Then the session roster takes that date", func() {
				So(model.FormatDay(svc.CurrentRoster(ctx).Date), ShouldEqual, "2026-06-03")
			})
		})
	})
}

func TestService_Insights(t *testing.T) {
	Convey("Given a session roster", t, func() {
		ctx := context.Background()
		svc := newService(service.WithMaxCompare(2), service.WithRand(rand.New(rand.NewPCG(7, 7))))

		Convey("When no roster was submitted", func() {
			_, err := svc.Compare(ctx, []string{"A"}, "")
			So(errors.Is(err, service.ErrNoRoster), ShouldBeTrue)
		})

		_, err := svc.SubmitRoster(ctx, types.SubmitRequest{Students: []types.StudentInput{
			student("A", 10, 10), student("B", 50, 50), student("C", 30, 30),
		}})
		So(err, ShouldBeNil)

		Convey("When comparing", func() {
			got, err := svc.Compare(ctx, []string{"A", "B"}, "")
			So(err, ShouldBeNil)
			So(got[1].Rank, ShouldEqual, 1)

			_, err = svc.Compare(ctx, []string{"A", "B", "C"}, "")
			So(errors.Is(err, ranking.ErrTooManyStudents), ShouldBeTrue)
		})

		Convey("When spotlighting", func() {
			top, err := svc.Spotlight(ctx, "top", "", "")
			So(err, ShouldBeNil)
			So(top.Name, ShouldEqual, "B")

			named, err := svc.Spotlight(ctx, "name", "C", "")
			So(err, ShouldBeNil)
			So(named.Rank, ShouldEqual, 2)

			_, err = svc.Spotlight(ctx, "random", "", "")
			So(err, ShouldBeNil)

			_, err = svc.Spotlight(ctx, "loudest", "", "")
			So(errors.Is(err, ranking.ErrUnknownMode), ShouldBeTrue)
		})

		Convey("When asking for a distribution", func() {
			totals, err := svc.Distribution(ctx, "total", 2, "")
			So(err, ShouldBeNil)
			So(totals, ShouldHaveLength, 2)
			So(totals[0].Count+totals[1].Count, ShouldEqual, 3)

			_, err = svc.Distribution(ctx, "median", 2, "")
			So(errors.Is(err, service.ErrUnknownField), ShouldBeTrue)
		})

		Convey("When reading a date that was never saved", func() {
			_, err := svc.Compare(ctx, []string{"A"}, "latest")
			So(errors.Is(err, history.ErrSnapshotNotFound), ShouldBeTrue)
		})
	})
}
