package ranking_test

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/okian/marksense/internal/domain/model"
	"github.com/okian/marksense/internal/domain/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDistribution(t *testing.T) {
	Convey("Given a set of totals", t, func() {
		Convey("When bucketing into 4 bins", func() {
			out := ranking.Distribution([]float64{0, 10, 20, 30, 40, 40}, 4)

			Convey("Then bins are equal width and the maximum lands in the last bin", func() {
				So(out, ShouldHaveLength, 4)
				So(out[0].Lower, ShouldEqual, 0)
				So(out[0].Upper, ShouldEqual, 10)
				So(out[3].Upper, ShouldEqual, 40)
				So(out[0].Count+out[1].Count+out[2].Count+out[3].Count, ShouldEqual, 6)
				So(out[3].Count, ShouldEqual, 3)
			})
		})

		Convey("When all values are equal", func() {
			out := ranking.Distribution([]float64{7, 7, 7}, 0)

			Convey("Then one bucket holds everything", func() {
				So(out, ShouldResemble, []ranking.Bucket{{Lower: 7, Upper: 7, Count: 3}})
			})
		})

		Convey("When there are no values", func() {
			So(ranking.Distribution(nil, 10), ShouldBeEmpty)
		})
	})
}

func TestCompareAndSpotlight(t *testing.T) {
	Convey("Given a ranked roster", t, func() {
		out := ranking.New(twoSubjects).Rank([]model.StudentRecord{
			rec("A", 10, 10), rec("B", 50, 50), rec("C", 30, 30),
		})

		Convey("When comparing known students", func() {
			got, err := ranking.Compare(out, []string{"C", " A"}, 0)

			Convey("Then they come back in request order with ranks", func() {
				So(err, ShouldBeNil)
				So(names(got), ShouldResemble, []string{"C", "A"})
				So(got[0].Rank, ShouldEqual, 2)
			})
		})

		Convey("When comparing an unknown student or too many", func() {
			_, errUnknown := ranking.Compare(out, []string{"Z"}, 5)
			_, errMany := ranking.Compare(out, []string{"A", "B", "C"}, 2)

			Convey("Then the errors carry their kinds", func() {
				So(errors.Is(errUnknown, ranking.ErrStudentNotFound), ShouldBeTrue)
				So(errors.Is(errMany, ranking.ErrTooManyStudents), ShouldBeTrue)
			})
		})

		Convey("When spotlighting", func() {
			top, _ := ranking.Spotlight(out, ranking.SpotlightTop, "", nil)
			bottom, _ := ranking.Spotlight(out, ranking.SpotlightBottom, "", nil)
			byName, _ := ranking.Spotlight(out, ranking.SpotlightName, "C", nil)
			random, err := ranking.Spotlight(out, ranking.SpotlightRandom, "", rand.New(rand.NewPCG(1, 2)))

			Convey("Then each mode picks the expected student", func() {
				So(top.Name, ShouldEqual, "B")
				So(bottom.Name, ShouldEqual, "A")
				So(byName.Rank, ShouldEqual, 2)
				So(err, ShouldBeNil)
				_, found := out.Find(random.Name)
				So(found, ShouldBeTrue)
			})
		})

		Convey("When the roster is empty", func() {
			empty := ranking.New(twoSubjects).Rank(nil)
			_, err := ranking.Spotlight(empty, ranking.SpotlightTop, "", nil)

			So(errors.Is(err, ranking.ErrEmptyRoster), ShouldBeTrue)
		})

		Convey("When parsing modes", func() {
			m, err := ranking.ParseSpotlightMode(" Bottom ")
			So(err, ShouldBeNil)
			So(m, ShouldEqual, ranking.SpotlightBottom)

			def, _ := ranking.ParseSpotlightMode("")
			So(def, ShouldEqual, ranking.SpotlightTop)

			_, err = ranking.ParseSpotlightMode("loudest")
			So(errors.Is(err, ranking.ErrUnknownMode), ShouldBeTrue)
		})
	})
}
