package model_test

import (
	"errors"
	"math"
	"testing"
	"time"

	model "github.com/okian/marksense/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func testSchema() model.Schema {
	return model.MustSchema([]string{"Maths", "Science"}, 100, map[string]float64{"Science": 50})
}

func TestSchema(t *testing.T) {
	convey.Convey("Given schema construction", t, func() {
		convey.Convey("When subjects are valid", func() {
			s, err := model.NewSchema([]string{" Maths ", "Science"}, 100, nil)

			convey.Convey("Then subjects are trimmed and ordered", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(s.Subjects(), convey.ShouldResemble, []string{"Maths", "Science"})
				convey.So(s.Header(), convey.ShouldResemble, []string{"Date", "Name", "Maths", "Science", "Total", "Average", "Rank"})
				convey.So(s.MaxFor("Maths"), convey.ShouldEqual, 100)
			})
		})

		convey.Convey("When a per-subject override is set", func() {
			s := testSchema()

			convey.Convey("Then it wins over the default", func() {
				convey.So(s.MaxFor("Science"), convey.ShouldEqual, 50)
				convey.So(s.MaxFor("Maths"), convey.ShouldEqual, 100)
			})
		})

		convey.Convey("When inputs are invalid", func() {
			_, errEmpty := model.NewSchema(nil, 100, nil)
			_, errDup := model.NewSchema([]string{"Maths", "Maths"}, 100, nil)
			_, errReserved := model.NewSchema([]string{"Total"}, 100, nil)
			_, errMax := model.NewSchema([]string{"Maths"}, 0, nil)
			_, errOverride := model.NewSchema([]string{"Maths"}, 100, map[string]float64{"Art": 10})

			convey.Convey("Then each is rejected", func() {
				convey.So(errEmpty, convey.ShouldNotBeNil)
				convey.So(errDup, convey.ShouldNotBeNil)
				convey.So(errReserved, convey.ShouldNotBeNil)
				convey.So(errMax, convey.ShouldNotBeNil)
				convey.So(errOverride, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestNewStudentRecord(t *testing.T) {
	convey.Convey("Given a schema with two subjects", t, func() {
		s := testSchema()

		convey.Convey("When marks are valid", func() {
			rec, err := model.NewStudentRecord(s, "  Alice ", map[string]float64{"Maths": 80, "Science": 45})

			convey.Convey("Then total and average are computed immediately", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rec.Name, convey.ShouldEqual, "Alice")
				convey.So(rec.Total, convey.ShouldEqual, 125)
				convey.So(rec.Average, convey.ShouldEqual, 62.5)
				convey.So(rec.Rank, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the caller mutates the input map afterwards", func() {
			marks := map[string]float64{"Maths": 10, "Science": 10}
			rec, err := model.NewStudentRecord(s, "Bob", marks)
			marks["Maths"] = 99

			convey.Convey("Then the record is unaffected", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rec.Marks["Maths"], convey.ShouldEqual, 10)
			})
		})

		cases := []struct {
			desc  string
			name  string
			marks map[string]float64
			field string
		}{
			{"an empty name", "  ", map[string]float64{"Maths": 1, "Science": 1}, "Name"},
			{"a negative score", "A", map[string]float64{"Maths": -1, "Science": 1}, "Maths"},
			{"a score above the subject maximum", "A", map[string]float64{"Maths": 1, "Science": 51}, "Science"},
			{"an unknown subject", "A", map[string]float64{"Maths": 1, "Science": 1, "Art": 3}, "Art"},
			{"a missing subject", "A", map[string]float64{"Maths": 1}, "Science"},
			{"a NaN score", "A", map[string]float64{"Maths": math.NaN(), "Science": 1}, "Maths"},
		}
		for _, tc := range cases {
			convey.Convey("When the input has "+tc.desc, func() {
				_, err := model.NewStudentRecord(s, tc.name, tc.marks)

				convey.Convey("Then an InvalidRecordError names the field", func() {
					var ire *model.InvalidRecordError
					convey.So(errors.As(err, &ire), convey.ShouldBeTrue)
					convey.So(ire.Field, convey.ShouldEqual, tc.field)
					convey.So(errors.Is(err, model.ErrInvalidRecord), convey.ShouldBeTrue)
				})
			})
		}

		convey.Convey("When rebuilding a stored record above the current maximum", func() {
			rec, err := model.RebuildStudentRecord(s, "Old", map[string]float64{"Maths": 90, "Science": 80})

			convey.Convey("Then bounds are not enforced", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rec.Total, convey.ShouldEqual, 170)
			})
		})
	})
}

func TestNewRoster(t *testing.T) {
	convey.Convey("Given records", t, func() {
		s := testSchema()
		a, _ := model.NewStudentRecord(s, "A", map[string]float64{"Maths": 1, "Science": 1})
		b, _ := model.NewStudentRecord(s, "B", map[string]float64{"Maths": 2, "Science": 2})
		date := time.Date(2026, 3, 4, 17, 30, 0, 0, time.UTC)

		convey.Convey("When names are unique", func() {
			r, err := model.NewRoster(date, []model.StudentRecord{a, b})

			convey.Convey("Then the date is truncated to the day and order kept", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(r.Date, convey.ShouldEqual, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC))
				convey.So(r.Records[0].Name, convey.ShouldEqual, "A")
				convey.So(r.Records[1].Name, convey.ShouldEqual, "B")
			})
		})

		convey.Convey("When a name repeats", func() {
			_, err := model.NewRoster(date, []model.StudentRecord{a, b, a})

			convey.Convey("Then the roster is rejected on the name field", func() {
				var ire *model.InvalidRecordError
				convey.So(errors.As(err, &ire), convey.ShouldBeTrue)
				convey.So(ire.Field, convey.ShouldEqual, "Name")
			})
		})
	})
}

func TestParseDay(t *testing.T) {
	convey.Convey("Given day strings", t, func() {
		d, err := model.ParseDay("2026-10-17")
		convey.So(err, convey.ShouldBeNil)
		convey.So(model.FormatDay(d), convey.ShouldEqual, "2026-10-17")

		_, err = model.ParseDay("17/10/2026")
		convey.So(errors.Is(err, model.ErrInvalidRecord), convey.ShouldBeTrue)
	})
}
