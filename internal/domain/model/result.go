package model

import (
	"time"

	"github.com/okian/nhpp/internal/domain/rate"
	"gonum.org/v1/gonum/mat"
)

// PassResult records one optimizer pass.
type PassResult struct {
	Method          string
	Status          string
	NLL             float64
	Iterations      int
	FuncEvaluations int
	Runtime         time.Duration
	Err             string
}

// Uncertainty is the covariance estimate at a fitted optimum. Repaired is
// set when the Hessian had to be forced positive definite; such estimates
// are lower confidence.
type Uncertainty struct {
	Covariance    *mat.SymDense
	StdErr        []float64
	Repaired      bool
	MinEigenvalue float64
}

// Criteria holds information criteria for a fit. AICcValid is false when
// the small-sample correction is degenerate (n-k-1 <= 0).
type Criteria struct {
	K         int
	N         int
	AIC       float64
	AICc      float64
	AICcValid bool
	BIC       float64
}

// FitResult is the outcome of fitting one rate specification to one
// series. It references, and never mutates, Spec and Series.
type FitResult struct {
	ID        string
	Name      string
	Equation  string
	Theta     []float64
	NLL       float64
	Converged bool
	// Reason explains a non-converged result.
	Reason string
	Passes []PassResult

	Spec   *rate.Spec
	Series *EventSeries
	// Start is the observation start the fit used.
	Start float64

	Uncertainty *Uncertainty
	Criteria    *Criteria
}

// NumParams is k.
func (r *FitResult) NumParams() int { return len(r.Theta) }

// NumEvents is n.
func (r *FitResult) NumEvents() int {
	if r.Series == nil {
		return 0
	}
	return r.Series.Len()
}

// ParamsByTerm maps each term name to its slice of Theta.
func (r *FitResult) ParamsByTerm() map[string][]float64 {
	out := make(map[string][]float64)
	if r.Spec == nil {
		return out
	}
	for _, term := range r.Spec.Terms() {
		if term.Offset+term.Len > len(r.Theta) {
			continue
		}
		out[term.Name] = append([]float64(nil), term.Params(r.Theta)...)
	}
	return out
}
