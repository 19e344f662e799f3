package types_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/okian/nhpp/internal/domain/model"
	types "github.com/okian/nhpp/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSummary(t *testing.T) {
	Convey("Given a fitted and scored result", t, func() {
		res := &model.FitResult{
			Name:        "annual-constant",
			Equation:    "max(0, p[0])",
			Theta:       []float64{1.2},
			NLL:         4.1,
			Converged:   true,
			Uncertainty: &model.Uncertainty{StdErr: []float64{0.4}, Repaired: true},
			Criteria:    &model.Criteria{AICc: 10.5, AICcValid: true},
		}

		Convey("When summarising", func() {
			s := types.NewSummary(res, 2)

			Convey("Then every column is carried over", func() {
				So(s.Rank, ShouldEqual, 2)
				So(s.Name, ShouldEqual, "annual-constant")
				So(s.Theta, ShouldResemble, []float64{1.2})
				So(s.StdErr, ShouldResemble, []float64{0.4})
				So(s.Repaired, ShouldBeTrue)
				So(s.AICc, ShouldEqual, 10.5)
			})

			Convey("And the row does not alias the result", func() {
				s.Theta[0] = 99
				So(res.Theta[0], ShouldEqual, 1.2)
			})
		})

		Convey("When the correction is degenerate and no uncertainty exists", func() {
			res.Criteria.AICcValid = false
			res.Uncertainty = nil
			s := types.NewSummary(res, 0)
			So(math.IsNaN(s.AICc), ShouldBeTrue)
			So(s.StdErr, ShouldBeNil)

			Convey("Then it still renders as JSON with a null AICc", func() {
				b, err := json.Marshal(s)
				So(err, ShouldBeNil)
				So(string(b), ShouldContainSubstring, `"aicc":null`)
				So(string(b), ShouldContainSubstring, `"name":"annual-constant"`)
				So(string(b), ShouldNotContainSubstring, "std_err")
			})
		})
	})
}
