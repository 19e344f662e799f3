// Package uncertainty approximates parameter covariance from the curvature
// of the negative log-likelihood at a fitted optimum.
package uncertainty

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/nhpp/internal/domain/model"
	"github.com/okian/nhpp/pkg/logger"
	"github.com/okian/nhpp/pkg/metrics"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

const (
	defaultEigenFloor = 1e-8

	// stepShrink divides the finite-difference step after a stencil point
	// leaves the region where the rate is positive at every event.
	stepShrink    = 4
	maxStepShrink = 6
)

// Likelihood supplies the function whose curvature is measured.
type Likelihood interface {
	NegLogLikelihood(series *model.EventSeries, theta []float64) (float64, error)
}

// Estimator computes covariance estimates. The Hessian is taken in the
// specification's scaled coordinates and mapped back to theta.
type Estimator struct {
	step       float64
	eigenFloor float64
	logger     logger.Logger
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithStep sets the initial finite-difference step in scaled coordinates.
// Zero keeps the library default for central differences.
func WithStep(h float64) Option {
	return func(e *Estimator) {
		if h > 0 {
			e.step = h
		}
	}
}

// WithEigenFloor sets the relative floor eigenvalues are clipped to during
// repair.
func WithEigenFloor(floor float64) Option {
	return func(e *Estimator) {
		if floor > 0 {
			e.eigenFloor = floor
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Estimator) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns an Estimator.
func New(opts ...Option) *Estimator {
	e := &Estimator{
		eigenFloor: defaultEigenFloor,
		logger:     logger.Get().Named("uncertainty"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate returns the covariance and standard errors at res.Theta. A
// Hessian that is not positive definite is repaired by eigenvalue clipping
// and the estimate is marked Repaired. The fit itself is not changed.
//
// Every stencil point must keep the rate positive at every event. The step
// is shrunk until it does; a fit that sits on the clip boundary yields
// ErrHessian instead of a penalty-dominated curvature.
func (e *Estimator) Estimate(ctx context.Context, lik Likelihood, res *model.FitResult) (*model.Uncertainty, error) {
	if res == nil || res.Spec == nil || res.Series == nil {
		return nil, fmt.Errorf("%w: incomplete fit result", ErrHessian)
	}
	k := len(res.Theta)
	scale := res.Spec.Scale()
	if len(scale) != k {
		return nil, fmt.Errorf("%w: %d parameters, %d scales", ErrHessian, k, len(scale))
	}
	if _, err := lik.NegLogLikelihood(res.Series, res.Theta); err != nil {
		return nil, fmt.Errorf("%w: at the fitted point: %w", ErrHessian, err)
	}

	// Stencil points are evaluated without the optimizer's penalty; the
	// first failing point is kept so the step can be shrunk.
	var stencilErr error
	theta := make([]float64, k)
	g := func(z []float64) float64 {
		for i := range z {
			theta[i] = z[i] * scale[i]
		}
		v, err := lik.NegLogLikelihood(res.Series, theta)
		if err != nil && stencilErr == nil {
			stencilErr = err
		}
		return v
	}
	z := make([]float64, k)
	for i := range z {
		z[i] = res.Theta[i] / scale[i]
	}

	step := e.step
	if step == 0 {
		step = math.Sqrt(fd.Central.Step)
	}
	h := mat.NewSymDense(k, nil)
	for shrink := 0; ; shrink++ {
		stencilErr = nil
		fd.Hessian(h, g, z, &fd.Settings{Formula: fd.Central, Step: step})
		if stencilErr == nil {
			break
		}
		if shrink == maxStepShrink {
			return nil, fmt.Errorf("%w: stencil at step %g: %w", ErrHessian, step, stencilErr)
		}
		e.logger.Debug(ctx, "hessian stencil left the valid region, shrinking step",
			logger.String("fit.name", res.Name),
			logger.Float64("hessian.step", step),
			logger.Error(stencilErr),
		)
		step /= stepShrink
	}
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			if v := h.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: entry (%d,%d) is not finite", ErrHessian, i, j)
			}
		}
	}

	covZ, minEigen, repaired, err := e.invert(h)
	if err != nil {
		return nil, err
	}

	u := &model.Uncertainty{
		Covariance:    mat.NewSymDense(k, nil),
		StdErr:        make([]float64, k),
		Repaired:      repaired,
		MinEigenvalue: minEigen,
	}
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			u.Covariance.SetSym(i, j, covZ.At(i, j)*scale[i]*scale[j])
		}
		u.StdErr[i] = math.Sqrt(math.Max(0, u.Covariance.At(i, i)))
	}

	if repaired {
		metrics.RecordHessianRepair()
		e.logger.Warn(ctx, "hessian not positive definite, covariance repaired",
			logger.String("fit.name", res.Name),
			logger.Float64("hessian.min_eigenvalue", minEigen),
		)
	}
	return u, nil
}

// invert returns H^-1, the smallest eigenvalue of H and whether H had to
// be repaired first.
func (e *Estimator) invert(h *mat.SymDense) (*mat.SymDense, float64, bool, error) {
	var es mat.EigenSym
	if !es.Factorize(h, true) {
		return nil, 0, false, fmt.Errorf("%w: eigendecomposition failed", ErrHessian)
	}
	vals := es.Values(nil)
	minEigen, maxEigen := vals[0], vals[0]
	for _, v := range vals {
		minEigen = math.Min(minEigen, v)
		maxEigen = math.Max(maxEigen, v)
	}

	var chol mat.Cholesky
	if minEigen > 0 && chol.Factorize(h) {
		inv := mat.NewSymDense(h.SymmetricDim(), nil)
		if err := chol.InverseTo(inv); err == nil {
			return inv, minEigen, false, nil
		}
	}

	// Clip to a floor relative to the largest curvature.
	floor := e.eigenFloor * math.Max(math.Abs(maxEigen), 1)
	var vecs mat.Dense
	es.VectorsTo(&vecs)
	n := len(vals)
	inv := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sum := 0.0
			for m, lambda := range vals {
				sum += vecs.At(i, m) * vecs.At(j, m) / math.Max(lambda, floor)
			}
			inv.SetSym(i, j, sum)
		}
	}
	return inv, minEigen, true, nil
}
