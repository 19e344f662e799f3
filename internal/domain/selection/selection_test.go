package selection_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/nhpp/internal/domain/model"
	"github.com/okian/nhpp/internal/domain/selection"
	. "github.com/smartystreets/goconvey/convey"
)

func candidate(name string, k, n int, nll float64) *model.FitResult {
	return &model.FitResult{
		Name:      name,
		Theta:     make([]float64, k),
		NLL:       nll,
		Converged: true,
		Series:    &model.EventSeries{Times: make([]float64, n), Durations: make([]float64, n)},
	}
}

func TestCompute(t *testing.T) {
	Convey("Given a one-parameter and a three-parameter candidate on fifty events", t, func() {
		one, err := selection.Compute(100, 1, 50)
		So(err, ShouldBeNil)
		three, err := selection.Compute(98, 3, 50)
		So(err, ShouldBeNil)

		Convey("Then the arithmetic is exact", func() {
			So(one.AIC, ShouldEqual, 202)
			So(three.AIC, ShouldEqual, 202)
			So(one.AICc, ShouldAlmostEqual, 202+4.0/48, 1e-12)
			So(three.AICc, ShouldAlmostEqual, 202+24.0/46, 1e-12)
			So(one.AICc, ShouldAlmostEqual, 202.0833, 1e-4)
			So(three.AICc, ShouldAlmostEqual, 202.5217, 1e-4)
			So(one.BIC, ShouldAlmostEqual, math.Log(50)+200, 1e-12)
		})

		Convey("And the one-parameter model is selected", func() {
			r, err := selection.NewSelector().Rank([]*model.FitResult{
				candidate("three", 3, 50, 98),
				candidate("one", 1, 50, 100),
			})
			So(err, ShouldBeNil)
			So(r.Best().Name, ShouldEqual, "one")
			So(r.Entries[1].Delta, ShouldAlmostEqual, 24.0/46-4.0/48, 1e-12)
			So(r.Entries[0].Weight+r.Entries[1].Weight, ShouldAlmostEqual, 1, 1e-12)
		})
	})

	Convey("Given too few events for the correction", t, func() {
		c, err := selection.Compute(10, 3, 4)

		Convey("Then the correction is flagged, not computed", func() {
			So(errors.Is(err, selection.ErrDegenerateCorrection), ShouldBeTrue)
			So(c.AICcValid, ShouldBeFalse)
			So(c.AIC, ShouldEqual, 26)
		})
	})

	Convey("Given a fit result", t, func() {
		res := candidate("annual", 2, 30, 40)
		So(selection.Attach(res), ShouldBeNil)
		So(res.Criteria.AICc, ShouldAlmostEqual, 84+12.0/27, 1e-12)
	})
}

func TestRank(t *testing.T) {
	Convey("Given several candidates", t, func() {
		results := []*model.FitResult{
			candidate("a", 1, 40, 60),
			candidate("b", 2, 40, 59),
			candidate("c", 1, 40, 60),
			candidate("d", 3, 40, 50),
		}

		Convey("When ranking by AICc", func() {
			r, err := selection.NewSelector().Rank(results)
			So(err, ShouldBeNil)

			Convey("Then ties keep first-encountered order", func() {
				names := []string{}
				for _, e := range r.Entries {
					names = append(names, e.Result.Name)
				}
				So(names, ShouldResemble, []string{"d", "a", "c", "b"})
				So(r.Entries[0].Rank, ShouldEqual, 1)
				So(r.Entries[0].Delta, ShouldEqual, 0)
			})
		})

		Convey("When every NLL is shifted by the same constant", func() {
			shifted := make([]*model.FitResult, len(results))
			for i, res := range results {
				shifted[i] = candidate(res.Name, res.NumParams(), res.NumEvents(), res.NLL+1234.5)
			}
			a, err := selection.NewSelector().Rank(results)
			So(err, ShouldBeNil)
			b, err := selection.NewSelector().Rank(shifted)
			So(err, ShouldBeNil)

			Convey("Then the order and deltas are unchanged", func() {
				for i := range a.Entries {
					So(b.Entries[i].Result.Name, ShouldEqual, a.Entries[i].Result.Name)
					So(b.Entries[i].Delta, ShouldAlmostEqual, a.Entries[i].Delta, 1e-9)
				}
			})
		})

		Convey("When some candidates cannot be ranked", func() {
			bad := candidate("nonconv", 1, 40, 10)
			bad.Converged = false
			bad.Reason = "iteration limit"
			tiny := candidate("tiny", 3, 4, 1)
			nan := candidate("nan", 1, 40, math.NaN())
			r, err := selection.NewSelector().Rank(append([]*model.FitResult{bad, tiny, nan, nil}, results...))

			Convey("Then each exclusion carries a reason", func() {
				So(err, ShouldBeNil)
				So(len(r.Entries), ShouldEqual, 4)
				So(len(r.Excluded), ShouldEqual, 4)
				So(r.Excluded[0].Reason, ShouldContainSubstring, "iteration limit")
				So(r.Excluded[1].Reason, ShouldContainSubstring, "degenerate")
				So(r.Excluded[2].Reason, ShouldContainSubstring, "non-finite")
				So(r.Excluded[3].Reason, ShouldEqual, "no result")
			})

			Convey("And non-converged fits can be ranked on request", func() {
				r, err := selection.NewSelector(selection.IncludeNonConverged(true)).Rank([]*model.FitResult{bad, results[0]})
				So(err, ShouldBeNil)
				So(r.Best().Name, ShouldEqual, "nonconv")
			})
		})

		Convey("When ranking by BIC", func() {
			r, err := selection.NewSelector(selection.WithCriterion(selection.BIC)).Rank([]*model.FitResult{tinyDegenerate()})
			So(err, ShouldBeNil)
			So(r.Criterion, ShouldEqual, selection.BIC)
		})
	})

	Convey("Given nothing rankable", t, func() {
		r, err := selection.NewSelector().Rank(nil)
		So(errors.Is(err, selection.ErrNoCandidates), ShouldBeTrue)
		So(r.Best(), ShouldBeNil)
	})

	Convey("Given criterion names", t, func() {
		c, err := selection.ParseCriterion("")
		So(err, ShouldBeNil)
		So(c, ShouldEqual, selection.AICc)
		_, err = selection.ParseCriterion("dic")
		So(errors.Is(err, selection.ErrUnknownCriterion), ShouldBeTrue)
	})
}

// tinyDegenerate has no valid AICc but can still be ranked by BIC.
func tinyDegenerate() *model.FitResult {
	return candidate("tiny", 3, 4, 1)
}
