package fit

import (
	"github.com/okian/nhpp/internal/domain/model"
	"github.com/okian/nhpp/pkg/logger"
)

// Option configures a Driver.
type Option func(*Driver)

// WithMaxIterations bounds the major iterations of every pass.
func WithMaxIterations(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.maxIterations = n
		}
	}
}

// WithMaxEvaluations bounds the objective evaluations of every pass.
func WithMaxEvaluations(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.maxEvaluations = n
		}
	}
}

// WithGradientTolerance sets the absolute gradient norm, in scaled
// coordinates, below which a pass that stopped on a failed line search still
// counts as converged. The default is 1e-3.
func WithGradientTolerance(tol float64) Option {
	return func(d *Driver) {
		if tol > 0 {
			d.gradTol = tol
		}
	}
}

// WithDefaultPasses overrides the pass policy for fits that do not set
// their own.
func WithDefaultPasses(passes ...Method) Option {
	return func(d *Driver) {
		if len(passes) > 0 {
			d.passes = append([]Method(nil), passes...)
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// FitOption configures a single Fit call.
type FitOption func(*request)

type request struct {
	name        string
	passes      []Method
	nonNegative bool
	start       []float64
	prior       *model.FitResult
}

// WithName labels the result.
func WithName(name string) FitOption {
	return func(r *request) {
		r.name = name
	}
}

// WithPasses sets the ordered pass list for this fit.
func WithPasses(passes ...Method) FitOption {
	return func(r *request) {
		r.passes = append([]Method(nil), passes...)
	}
}

// WithNonNegative constrains every parameter of the fit to [0, inf),
// on top of the per-parameter flags the specification carries. Negative
// proposals are reflected to their absolute value.
func WithNonNegative(enabled bool) FitOption {
	return func(r *request) {
		r.nonNegative = enabled
	}
}

// WithStart replaces the specification's starting vector.
func WithStart(theta []float64) FitOption {
	return func(r *request) {
		r.start = append([]float64(nil), theta...)
	}
}

// WithPrior seeds the start from an earlier fit: every term with the same
// name and kind takes the prior's fitted values.
func WithPrior(prior *model.FitResult) FitOption {
	return func(r *request) {
		r.prior = prior
	}
}
