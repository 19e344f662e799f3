// Package fit drives multi-pass maximum likelihood fits of rate
// specifications.
package fit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/okian/nhpp/internal/domain/likelihood"
	"github.com/okian/nhpp/internal/domain/model"
	"github.com/okian/nhpp/internal/domain/rate"
	"github.com/okian/nhpp/pkg/logger"
	"github.com/okian/nhpp/pkg/metrics"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

const (
	defaultMaxIterations  = 2000
	defaultMaxEvaluations = 20000
	defaultGradTol        = 1e-3
	gradientThreshold     = 1e-6
	convergeTolerance     = 1e-9
	convergeIterations    = 50
)

// Likelihood is what the driver minimizes.
type Likelihood interface {
	Spec() *rate.Spec
	NegLogLikelihood(series *model.EventSeries, theta []float64) (float64, error)
	Objective(series *model.EventSeries) func(theta []float64) float64
	NonPositiveEvents(series *model.EventSeries, theta []float64) int
}

// Driver runs ordered optimization passes, each starting where the
// previous one ended.
type Driver struct {
	passes         []Method
	maxIterations  int
	maxEvaluations int
	gradTol        float64
	logger         logger.Logger
}

// New returns a Driver.
func New(opts ...Option) *Driver {
	d := &Driver{
		maxIterations:  defaultMaxIterations,
		maxEvaluations: defaultMaxEvaluations,
		gradTol:        defaultGradTol,
		logger:         logger.Get().Named("fit"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fit minimizes the negative log-likelihood of series. Optimizer trouble is
// reported through FitResult.Converged and Reason; an error is returned only
// for invalid input.
func (d *Driver) Fit(ctx context.Context, lik Likelihood, series *model.EventSeries, opts ...FitOption) (*model.FitResult, error) {
	started := time.Now()
	req := request{}
	for _, opt := range opts {
		opt(&req)
	}

	spec := lik.Spec()
	if series == nil || series.Len() == 0 {
		return nil, likelihood.ErrEmptySeries
	}
	theta0, err := d.startingPoint(spec, &req)
	if err != nil {
		return nil, err
	}
	passes := req.passes
	if len(passes) == 0 {
		passes = d.passes
	}
	if len(passes) == 0 {
		passes = DefaultPasses(spec.NumParams())
	}

	scale := spec.Scale()
	bounded := req.bounds(spec)
	obj := lik.Objective(series)
	toTheta := func(dst, z []float64) []float64 {
		floats.MulTo(dst, z, scale)
		reflect(dst, bounded)
		return dst
	}
	buf := make([]float64, len(scale))
	f := func(z []float64) float64 {
		return obj(toTheta(buf, z))
	}

	z := make([]float64, len(theta0))
	floats.DivTo(z, theta0, scale)
	fz := f(z)

	res := &model.FitResult{
		ID:       uuid.NewString(),
		Name:     req.name,
		Equation: spec.Equation(),
		Spec:     spec,
		Series:   series,
		Start:    series.Start,
	}

	var last optimize.Status
	var lastErr error
	for _, m := range passes {
		if err := ctx.Err(); err != nil {
			lastErr = err
			last = optimize.Failure
			break
		}
		pass, loc, status, perr := d.runPass(ctx, m, f, z)
		res.Passes = append(res.Passes, pass)
		last, lastErr = status, perr
		if loc != nil && !math.IsNaN(loc.F) && loc.F <= fz {
			copy(z, loc.X)
			fz = loc.F
		}
		d.logger.Debug(ctx, "optimizer pass finished",
			logger.String("fit.name", req.name),
			logger.String("pass.method", string(m)),
			logger.String("pass.status", pass.Status),
			logger.Float64("pass.nll", pass.NLL),
			logger.Int("pass.iterations", pass.Iterations),
		)
	}

	res.Theta = toTheta(make([]float64, len(z)), z)
	res.NLL, err = lik.NegLogLikelihood(series, res.Theta)
	res.Converged, res.Reason = d.classify(ctx, f, z, fz, last, lastErr, passes[len(passes)-1])
	if err != nil {
		res.Converged = false
		res.Reason = err.Error()
	} else if bad := lik.NonPositiveEvents(series, res.Theta); bad > 0 {
		res.Converged = false
		res.Reason = fmt.Sprintf("%s at %d event(s)", likelihood.ErrNonPositiveRate, bad)
	}

	outcome := metrics.OutcomeConverged
	if !res.Converged {
		outcome = metrics.OutcomeNonConverged
	}
	metrics.RecordFit(outcome, time.Since(started))
	return res, nil
}

func (d *Driver) startingPoint(spec *rate.Spec, req *request) ([]float64, error) {
	theta := spec.Start()
	if req.start != nil {
		if err := spec.CheckTheta(req.start); err != nil {
			return nil, fmt.Errorf("starting point: %w", err)
		}
		theta = append([]float64(nil), req.start...)
	}
	if req.prior != nil {
		seed(theta, spec, req.prior)
	}
	reflect(theta, req.bounds(spec))
	return theta, nil
}

// bounds is the per-parameter constraint of spec, widened to every
// parameter when the fit asks for it.
func (r *request) bounds(spec *rate.Spec) []bool {
	b := spec.NonNegative()
	if r.nonNegative {
		for i := range b {
			b[i] = true
		}
	}
	return b
}

// reflect maps constrained parameters to their absolute value.
func reflect(theta []float64, bounded []bool) {
	for i, nn := range bounded {
		if nn {
			theta[i] = math.Abs(theta[i])
		}
	}
}

// SeedFromPrior returns the starting vector of spec with the fitted values
// of prior copied into every term that has the same name, kind and length.
func SeedFromPrior(spec *rate.Spec, prior *model.FitResult) []float64 {
	theta := spec.Start()
	seed(theta, spec, prior)
	return theta
}

func seed(theta []float64, spec *rate.Spec, prior *model.FitResult) {
	if prior == nil || prior.Spec == nil {
		return
	}
	byName := make(map[string]rate.Term)
	for _, t := range prior.Spec.Terms() {
		byName[t.Name] = t
	}
	for _, t := range spec.Terms() {
		p, ok := byName[t.Name]
		if !ok || p.Kind != t.Kind || p.Len != t.Len || p.Offset+p.Len > len(prior.Theta) {
			continue
		}
		copy(t.Params(theta), p.Params(prior.Theta))
	}
}

func (d *Driver) runPass(ctx context.Context, m Method, f func([]float64) float64, z []float64) (model.PassResult, *optimize.Location, optimize.Status, error) {
	started := time.Now()
	problem := optimize.Problem{
		Func: f,
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}
	if m.UsesGradient() {
		problem.Grad = func(grad, x []float64) {
			fd.Gradient(grad, f, x, &fd.Settings{Formula: fd.Central})
		}
	}
	settings := &optimize.Settings{
		GradientThreshold: gradientThreshold,
		Converger: &optimize.FunctionConverge{
			Absolute:   convergeTolerance,
			Relative:   convergeTolerance,
			Iterations: convergeIterations,
		},
		MajorIterations: d.maxIterations,
		FuncEvaluations: d.maxEvaluations,
	}

	r, err := optimize.Minimize(problem, append([]float64(nil), z...), settings, m.optimizer())
	elapsed := time.Since(started)
	metrics.RecordPass(string(m), elapsed)

	pass := model.PassResult{Method: string(m), Runtime: elapsed, NLL: math.NaN()}
	if err != nil {
		pass.Err = err.Error()
	}
	if r == nil {
		pass.Status = optimize.Failure.String()
		return pass, nil, optimize.Failure, err
	}
	pass.Status = r.Status.String()
	pass.NLL = r.F
	pass.Iterations = r.MajorIterations
	pass.FuncEvaluations = r.FuncEvaluations
	return pass, &r.Location, r.Status, err
}

// classify decides convergence from the final pass. A final gradient pass
// whose line search gave up at a point with a negligible gradient is a
// converged fit. The gradient is taken in scaled coordinates and compared
// with an absolute tolerance, so the test does not loosen as the NLL grows
// with the number of events.
func (d *Driver) classify(ctx context.Context, f func([]float64) float64, z []float64, fz float64,
	status optimize.Status, err error, final Method,
) (bool, string) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false, err.Error()
	}
	if succeeded(status) {
		return true, ""
	}
	if final.UsesGradient() && status == optimize.Failure {
		grad := make([]float64, len(z))
		fd.Gradient(grad, f, z, &fd.Settings{Formula: fd.Central})
		norm := floats.Norm(grad, 2)
		if norm <= d.gradTol {
			d.logger.Debug(ctx, "line search stopped at a stationary point",
				logger.Float64("fit.gradient_norm", norm))
			return true, ""
		}
	}
	reason := fmt.Sprintf("%s: final status %s", ErrNonConvergence, status)
	if err != nil {
		reason += ": " + err.Error()
	}
	return false, reason
}
