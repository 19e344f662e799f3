// Package likelihood evaluates the negative log-likelihood of a
// non-homogeneous Poisson process with busy-time exclusion.
package likelihood

import (
	"fmt"
	"math"

	"github.com/okian/nhpp/internal/domain/model"
	"github.com/okian/nhpp/internal/domain/rate"
	"github.com/okian/nhpp/pkg/metrics"
)

const defaultPenalty = 1e10

// Engine computes
//
//	-sum log lambda(t_i) + integral of lambda over the non-busy time
//
// for a fixed rate specification. The rate at event i is evaluated with
// tlast = t_{i-1} (the observation start for the first event); the gap that
// follows event i is integrated with tlast = t_i.
type Engine struct {
	spec       *rate.Spec
	integrator *rate.Integrator
	exclusion  ExclusionPolicy
	penalty    float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithIntegrator sets the quadrature used for the integral term.
func WithIntegrator(in *rate.Integrator) Option {
	return func(e *Engine) {
		if in != nil {
			e.integrator = in
		}
	}
}

// WithExclusion sets the busy-time exclusion policy.
func WithExclusion(p ExclusionPolicy) Option {
	return func(e *Engine) {
		if p != nil {
			e.exclusion = p
		}
	}
}

// WithPenalty sets the finite objective value reported for parameters that
// give a non-positive rate at an event.
func WithPenalty(p float64) Option {
	return func(e *Engine) {
		if p > 0 && !math.IsInf(p, 0) {
			e.penalty = p
		}
	}
}

// New returns an Engine for spec.
func New(spec *rate.Spec, opts ...Option) (*Engine, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: nil specification", rate.ErrSpecification)
	}
	e := &Engine{
		spec:       spec,
		integrator: rate.NewIntegrator(),
		exclusion:  FullExclusion{},
		penalty:    defaultPenalty,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Spec returns the specification being evaluated.
func (e *Engine) Spec() *rate.Spec { return e.spec }

// Integrator returns the quadrature in use.
func (e *Engine) Integrator() *rate.Integrator { return e.integrator }

// Exclusion returns the busy-time policy in use.
func (e *Engine) Exclusion() ExclusionPolicy { return e.exclusion }

// Penalty is the base penalty value.
func (e *Engine) Penalty() float64 { return e.penalty }

// NegLogLikelihood returns the negative log-likelihood at theta. When the
// rate is non-positive at any event it returns a finite penalty together
// with an error wrapping ErrNonPositiveRate. The series is not validated;
// overtaking active windows yield negative gap integrals, not a failure.
func (e *Engine) NegLogLikelihood(series *model.EventSeries, theta []float64) (float64, error) {
	metrics.RecordLikelihoodEvaluation()

	if err := e.spec.CheckTheta(theta); err != nil {
		return math.NaN(), err
	}
	n := series.Len()
	if n == 0 {
		return math.NaN(), ErrEmptySeries
	}

	var (
		sumLog   float64
		integral float64
		bad      int
		first    = -1
		tlast    = series.Start
	)

	integral += e.integrator.Integral(e.spec, theta, series.Start, series.Times[0], tlast)
	for i, t := range series.Times {
		r := e.spec.Rate(theta, t, tlast)
		if r > 0 {
			sumLog += math.Log(r)
		} else {
			bad++
			if first < 0 {
				first = i
			}
		}

		tlast = t
		busyEnd := e.exclusion.BusyEnd(t, series.Durations[i])
		switch {
		case i+1 < n:
			integral += e.integrator.Integral(e.spec, theta, busyEnd, series.Times[i+1], tlast)
		case series.End > busyEnd:
			integral += e.integrator.Integral(e.spec, theta, busyEnd, series.End, tlast)
		}
	}

	if bad > 0 {
		metrics.RecordNonPositivePenalty()
		return e.penalty * float64(1+bad), &NonPositiveRateError{Count: bad, Index: first, Time: series.Times[first]}
	}

	nll := integral - sumLog
	if math.IsNaN(nll) || math.IsInf(nll, 0) {
		return e.penalty, fmt.Errorf("%w: %g", ErrNonFinite, nll)
	}
	return nll, nil
}

// Objective returns theta -> NLL with every failure mapped to a finite
// penalty, suitable for an optimizer.
func (e *Engine) Objective(series *model.EventSeries) func(theta []float64) float64 {
	return func(theta []float64) float64 {
		v, err := e.NegLogLikelihood(series, theta)
		if err != nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
			return e.penalty
		}
		return v
	}
}

// NonPositiveEvents counts events where the rate at theta is not positive.
func (e *Engine) NonPositiveEvents(series *model.EventSeries, theta []float64) int {
	count := 0
	tlast := series.Start
	for _, t := range series.Times {
		if !(e.spec.Rate(theta, t, tlast) > 0) {
			count++
		}
		tlast = t
	}
	return count
}

// Exposure is the total length of time that contributes to the integral
// term. For a constant rate c the NLL reduces to -n log c + c*Exposure.
func (e *Engine) Exposure(series *model.EventSeries) float64 {
	n := series.Len()
	if n == 0 {
		return math.Max(0, series.End-series.Start)
	}
	total := series.Times[0] - series.Start
	for i, t := range series.Times {
		busyEnd := e.exclusion.BusyEnd(t, series.Durations[i])
		switch {
		case i+1 < n:
			total += series.Times[i+1] - busyEnd
		case series.End > busyEnd:
			total += series.End - busyEnd
		}
	}
	return total
}

// NonPositiveRateError reports events with a non-positive rate.
type NonPositiveRateError struct {
	Count int
	Index int
	Time  float64
}

func (e *NonPositiveRateError) Error() string {
	return fmt.Sprintf("%s: %d event(s), first #%d at t=%g", ErrNonPositiveRate, e.Count, e.Index, e.Time)
}

// Unwrap lets errors.Is match ErrNonPositiveRate.
func (e *NonPositiveRateError) Unwrap() error { return ErrNonPositiveRate }
