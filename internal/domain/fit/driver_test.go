package fit_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/okian/nhpp/internal/domain/fit"
	"github.com/okian/nhpp/internal/domain/likelihood"
	"github.com/okian/nhpp/internal/domain/model"
	"github.com/okian/nhpp/internal/domain/rate"
	"github.com/okian/nhpp/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func scenarioOne() *model.EventSeries {
	return &model.EventSeries{Times: []float64{1, 2, 3, 4, 5}, Durations: make([]float64, 5), Start: 0}
}

func engine(defs []rate.TermDef) *likelihood.Engine {
	spec, err := rate.New(defs)
	So(err, ShouldBeNil)
	e, err := likelihood.New(spec)
	So(err, ShouldBeNil)
	return e
}

func TestFitConstantRate(t *testing.T) {

	Convey("Given five unit-spaced events observed from zero", t, func() {
		e := engine([]rate.TermDef{{Name: "annual", Kind: rate.KindConstant, Start: []float64{3}}})
		d := fit.New()

		Convey("When fitting a constant rate", func() {
			res, err := d.Fit(context.Background(), e, scenarioOne(), fit.WithName("constant"), fit.WithNonNegative(true))

			Convey("Then the MLE is count over exposure", func() {
				So(err, ShouldBeNil)
				So(res.Converged, ShouldBeTrue)
				So(res.Reason, ShouldBeEmpty)
				So(res.Theta[0], ShouldAlmostEqual, 1, 1e-3)
				So(res.NLL, ShouldAlmostEqual, 5, 1e-5)
				So(res.Name, ShouldEqual, "constant")
				So(res.ID, ShouldNotBeEmpty)
				So(res.Equation, ShouldEqual, "max(0, p[0])")
			})

			Convey("And a single gradient pass was used", func() {
				So(len(res.Passes), ShouldEqual, 1)
				So(res.Passes[0].Method, ShouldEqual, string(fit.BFGS))
			})
		})
	})
}

func TestFitPasses(t *testing.T) {

	Convey("Given a two-term specification", t, func() {
		e := engine([]rate.TermDef{
			{Name: "annual", Kind: rate.KindConstant, Start: []float64{2}},
			{Name: "seasonal", Kind: rate.KindSinusoid, Start: []float64{0.5, 0.2}},
		})
		s := &model.EventSeries{
			Times:     []float64{0.1, 0.2, 0.3, 1.15, 1.25, 1.3, 2.05, 2.2, 2.35, 3.1, 3.2, 3.3},
			Durations: make([]float64, 12),
			Start:     0,
			End:       4,
		}
		startNLL, err := e.NegLogLikelihood(s, e.Spec().Start())
		So(err, ShouldBeNil)

		Convey("When using the default policy", func() {
			res, err := fit.New().Fit(context.Background(), e, s)

			Convey("Then two derivative-free passes precede a gradient pass", func() {
				So(err, ShouldBeNil)
				So(len(res.Passes), ShouldEqual, 3)
				So(res.Passes[0].Method, ShouldEqual, string(fit.NelderMead))
				So(res.Passes[1].Method, ShouldEqual, string(fit.NelderMead))
				So(res.Passes[2].Method, ShouldEqual, string(fit.BFGS))
			})

			Convey("And the likelihood improved on the start", func() {
				So(res.NLL, ShouldBeLessThan, startNLL)
				So(math.IsNaN(res.NLL), ShouldBeFalse)
			})
		})

		Convey("When passes are set per fit", func() {
			res, err := fit.New(fit.WithDefaultPasses(fit.CG)).Fit(context.Background(), e, s, fit.WithPasses(fit.NelderMead))
			So(err, ShouldBeNil)
			So(len(res.Passes), ShouldEqual, 1)
			So(res.Passes[0].Method, ShouldEqual, string(fit.NelderMead))
		})
	})
}

func TestFitParameterBounds(t *testing.T) {

	Convey("Given a declining record and a bounded level with a free trend", t, func() {
		e := engine([]rate.TermDef{
			{Name: "annual", Kind: rate.KindConstant, Start: []float64{-1.5}, NonNegative: []bool{true}},
			{Name: "trend", Kind: rate.KindLinear, Start: []float64{0.1}, Origin: 5},
		})
		s := &model.EventSeries{
			Times:     []float64{0.2, 0.5, 0.8, 1.1, 1.4, 1.7, 2, 2.5, 3, 3.5, 4.2, 5, 6, 7.5, 9},
			Durations: make([]float64, 15),
			Start:     0,
			End:       10,
		}

		Convey("When fitting with the specification's flags", func() {
			res, err := fit.New().Fit(context.Background(), e, s)

			Convey("Then only the flagged level is kept non-negative", func() {
				So(err, ShouldBeNil)
				So(res.Theta[0], ShouldBeGreaterThan, 0)
				So(res.Theta[1], ShouldBeLessThan, 0)
				So(res.Equation, ShouldEndWith, "; p[0] >= 0")
			})
		})

		Convey("When the fit constrains every parameter", func() {
			res, err := fit.New().Fit(context.Background(), e, s, fit.WithNonNegative(true))

			Convey("Then the trend cannot turn negative", func() {
				So(err, ShouldBeNil)
				So(res.Theta[0], ShouldBeGreaterThanOrEqualTo, 0)
				So(res.Theta[1], ShouldBeGreaterThanOrEqualTo, 0)
			})
		})
	})
}

func TestFitFailures(t *testing.T) {

	Convey("Given a trend that cannot be positive at every event", t, func() {
		e := engine([]rate.TermDef{{Name: "trend", Kind: rate.KindLinear, Start: []float64{1}, Origin: 3}})
		s := &model.EventSeries{Times: []float64{2, 4}, Durations: []float64{0, 0}, Start: 0}

		Convey("When fitting", func() {
			res, err := fit.New().Fit(context.Background(), e, s)

			Convey("Then the result is flagged rather than returned as an error", func() {
				So(err, ShouldBeNil)
				So(res.Converged, ShouldBeFalse)
				So(res.Reason, ShouldContainSubstring, "non-positive rate")
			})
		})
	})

	Convey("Given invalid inputs", t, func() {
		e := engine([]rate.TermDef{{Name: "annual", Kind: rate.KindConstant, Start: []float64{1}}})
		d := fit.New()

		Convey("Then they are returned as errors", func() {
			_, err := d.Fit(context.Background(), e, &model.EventSeries{})
			So(errors.Is(err, likelihood.ErrEmptySeries), ShouldBeTrue)
			_, err = d.Fit(context.Background(), e, scenarioOne(), fit.WithStart([]float64{1, 2}))
			So(errors.Is(err, rate.ErrThetaLength), ShouldBeTrue)
		})
	})

	Convey("Given a cancelled context", t, func() {
		e := engine([]rate.TermDef{{Name: "annual", Kind: rate.KindConstant, Start: []float64{3}}})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Convey("Then no pass runs and the fit is not converged", func() {
			res, err := fit.New().Fit(ctx, e, scenarioOne())
			So(err, ShouldBeNil)
			So(res.Passes, ShouldBeEmpty)
			So(res.Converged, ShouldBeFalse)
			So(res.Theta, ShouldResemble, []float64{3})
		})
	})
}

func TestSeedFromPrior(t *testing.T) {
	Convey("Given an annual fit and an annual + seasonal extension", t, func() {
		annual, err := rate.New([]rate.TermDef{{Name: "annual", Kind: rate.KindConstant, Start: []float64{1}}})
		So(err, ShouldBeNil)
		prior := &model.FitResult{Spec: annual, Theta: []float64{4.5}}
		extended, err := rate.New([]rate.TermDef{
			{Name: "seasonal", Kind: rate.KindSinusoid, Start: []float64{1, 0}},
			{Name: "annual", Kind: rate.KindConstant, Start: []float64{1}},
		})
		So(err, ShouldBeNil)

		Convey("Then matching terms take the prior's values", func() {
			So(fit.SeedFromPrior(extended, prior), ShouldResemble, []float64{1, 0, 4.5})
		})

		Convey("And a nil prior leaves the start alone", func() {
			So(fit.SeedFromPrior(extended, nil), ShouldResemble, []float64{1, 0, 1})
		})
	})
}

func TestParseMethod(t *testing.T) {
	Convey("Given method names", t, func() {
		ms, err := fit.ParseMethods([]string{"Nelder-Mead", "bfgs", " lbfgs "})
		So(err, ShouldBeNil)
		So(ms, ShouldResemble, []fit.Method{fit.NelderMead, fit.BFGS, fit.LBFGS})
		_, err = fit.ParseMethod("newton")
		So(errors.Is(err, fit.ErrUnknownMethod), ShouldBeTrue)
		So(fit.DefaultPasses(1), ShouldResemble, []fit.Method{fit.BFGS})
		So(fit.NelderMead.UsesGradient(), ShouldBeFalse)
	})
}
