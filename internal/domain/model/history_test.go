package model_test

import (
	"testing"
	"time"

	model "github.com/okian/marksense/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestHistoryRow(t *testing.T) {
	convey.Convey("Given a ranked record", t, func() {
		s := testSchema()
		rec, _ := model.NewStudentRecord(s, "Alice", map[string]float64{"Maths": 80, "Science": 40})
		rec.Rank = 2
		date := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)

		row := model.RowFromRecord(date, rec)

		convey.Convey("Then flattening keeps every field", func() {
			convey.So(row.Date, convey.ShouldEqual, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
			convey.So(row.Total, convey.ShouldEqual, 120)
			convey.So(row.Average, convey.ShouldEqual, 60)
			convey.So(row.Rank, convey.ShouldEqual, 2)
		})

		convey.Convey("Then cells follow the header layout", func() {
			cells := row.Cells(s.Subjects())
			convey.So(cells, convey.ShouldResemble, []any{"2026-01-02", "Alice", 80.0, 40.0, 120.0, 60.0, 2})
		})

		convey.Convey("When parsing cells back", func() {
			parsed, err := model.ParseHistoryRow(s.Header(), []string{"2026-01-02", "Alice", "80", "40", "120", "60", "2"})

			convey.Convey("Then the row matches", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(parsed.Name, convey.ShouldEqual, "Alice")
				convey.So(parsed.Marks, convey.ShouldResemble, map[string]float64{"Maths": 80, "Science": 40})
				convey.So(parsed.Rank, convey.ShouldEqual, 2)
				convey.So(parsed.Key(), convey.ShouldEqual, row.Key())
			})
		})

		convey.Convey("When the stored rank is stale", func() {
			stale := row
			stale.Total = 999
			stale.Rank = 7
			rebuilt, err := stale.Record(s)

			convey.Convey("Then the rebuilt record recomputes derived fields", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rebuilt.Total, convey.ShouldEqual, 120)
				convey.So(rebuilt.Rank, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When a row is short or malformed", func() {
			short, errShort := model.ParseHistoryRow(s.Header(), []string{"2026-01-02", "Bob", "5"})
			_, errBad := model.ParseHistoryRow(s.Header(), []string{"2026-01-02", "Bob", "five", "1", "", "", ""})
			_, errDate := model.ParseHistoryRow(s.Header(), []string{"yesterday", "Bob"})

			convey.Convey("Then empty cells read as zero and garbage fails", func() {
				convey.So(errShort, convey.ShouldBeNil)
				convey.So(short.Marks["Science"], convey.ShouldEqual, 0)
				convey.So(errBad, convey.ShouldNotBeNil)
				convey.So(errDate, convey.ShouldNotBeNil)
			})
		})
	})
}
