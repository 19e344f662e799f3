// Package rate defines parametrised intensity functions for non-homogeneous
// Poisson processes and the numerical integration over them.
//
// A Spec is the sum of typed sub-terms. Each term owns a contiguous slice of
// the shared parameter vector theta; offsets are resolved once in New, so
// evaluation never re-parses anything.
package rate

import (
	"fmt"
	"math"
	"strings"
)

// Spec is an immutable, validated rate specification.
type Spec struct {
	terms       []Term
	start       []float64
	scale       []float64
	nonNegative []bool
	minimumRate float64
	covariate   Covariate
	usesTLast   bool
}

// Option configures a Spec.
type Option func(*Spec)

// WithMinimumRate sets the floor the summed rate is clipped to.
func WithMinimumRate(floor float64) Option {
	return func(s *Spec) {
		s.minimumRate = floor
	}
}

// WithCovariate attaches the lookup used by covariate terms.
func WithCovariate(c Covariate) Option {
	return func(s *Spec) {
		s.covariate = c
	}
}

// New resolves term definitions into a Spec. Terms of kind "none" are
// dropped. All validation happens here.
func New(defs []TermDef, opts ...Option) (*Spec, error) {
	s := &Spec{}
	for _, opt := range opts {
		opt(s)
	}
	if s.minimumRate < 0 || math.IsNaN(s.minimumRate) || math.IsInf(s.minimumRate, 0) {
		return nil, fmt.Errorf("%w: minimum rate %g", ErrSpecification, s.minimumRate)
	}

	seen := make(map[string]bool, len(defs))
	offset := 0
	for _, def := range defs {
		if def.Kind == KindNone {
			continue
		}
		if def.Name == "" {
			def.Name = string(def.Kind)
		}
		if seen[def.Name] {
			return nil, fmt.Errorf("%w: duplicate term name %q", ErrSpecification, def.Name)
		}
		seen[def.Name] = true

		sh, err := newShape(def)
		if err != nil {
			return nil, err
		}
		n := sh.arity()
		if len(def.Start) != n {
			return nil, fmt.Errorf("%w: term %q (%s) takes %d parameters, %d starting values given",
				ErrSpecification, def.Name, def.Kind, n, len(def.Start))
		}
		scale := def.Scale
		if len(scale) == 0 {
			scale = make([]float64, n)
			for i := range scale {
				scale[i] = 1
			}
		}
		if len(scale) != n {
			return nil, fmt.Errorf("%w: term %q has %d scale values, want %d", ErrSpecification, def.Name, len(scale), n)
		}
		for i, v := range scale {
			if !(v > 0) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: term %q scale[%d] = %g must be positive", ErrSpecification, def.Name, i, v)
			}
		}
		for i, v := range def.Start {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: term %q start[%d] is not finite", ErrSpecification, def.Name, i)
			}
		}
		nonNegative := make([]bool, n)
		switch len(def.NonNegative) {
		case 0:
		case n:
			copy(nonNegative, def.NonNegative)
		default:
			return nil, fmt.Errorf("%w: term %q has %d nonnegative flags, want %d",
				ErrSpecification, def.Name, len(def.NonNegative), n)
		}
		if def.Kind == KindCovariate && s.covariate == nil {
			return nil, fmt.Errorf("%w: term %q needs a covariate lookup", ErrSpecification, def.Name)
		}
		if def.Kind == KindCluster {
			s.usesTLast = true
		}

		s.terms = append(s.terms, Term{Name: def.Name, Kind: def.Kind, Offset: offset, Len: n, nonNegative: nonNegative, shape: sh})
		s.start = append(s.start, def.Start...)
		s.scale = append(s.scale, scale...)
		s.nonNegative = append(s.nonNegative, nonNegative...)
		offset += n
	}

	if len(s.terms) == 0 {
		return nil, fmt.Errorf("%w: no terms", ErrSpecification)
	}
	return s, nil
}

// NumParams is the length of theta.
func (s *Spec) NumParams() int { return len(s.start) }

// Terms returns the resolved terms in declaration order.
func (s *Spec) Terms() []Term {
	out := make([]Term, len(s.terms))
	copy(out, s.terms)
	return out
}

// Start returns a copy of the starting parameter vector.
func (s *Spec) Start() []float64 {
	return append([]float64(nil), s.start...)
}

// Scale returns a copy of the parameter scale vector.
func (s *Spec) Scale() []float64 {
	return append([]float64(nil), s.scale...)
}

// NonNegative returns one flag per parameter, true where the parameter is
// constrained to [0, inf).
func (s *Spec) NonNegative() []bool {
	return append([]bool(nil), s.nonNegative...)
}

// MinimumRate is the clipping floor.
func (s *Spec) MinimumRate() float64 { return s.minimumRate }

// Covariate returns the attached lookup, or nil.
func (s *Spec) Covariate() Covariate { return s.covariate }

// UsesTLast reports whether any term depends on the previous event time.
func (s *Spec) UsesTLast() bool { return s.usesTLast }

// CheckTheta validates the length and finiteness of theta.
func (s *Spec) CheckTheta(theta []float64) error {
	if len(theta) != len(s.start) {
		return fmt.Errorf("%w: got %d, want %d", ErrThetaLength, len(theta), len(s.start))
	}
	for i, v := range theta {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: theta[%d] is not finite", ErrThetaLength, i)
		}
	}
	return nil
}

// Raw is the unclipped sum of all terms at t.
func (s *Spec) Raw(theta []float64, t, tlast float64) float64 {
	x := Point{T: t, TLast: tlast, Cov: s.covariate}
	sum := 0.0
	for _, term := range s.terms {
		sum += term.shape.value(term.Params(theta), x)
	}
	return sum
}

// Rate is the intensity at t, clipped below at the minimum rate.
func (s *Spec) Rate(theta []float64, t, tlast float64) float64 {
	v := s.Raw(theta, t, tlast)
	if v < s.minimumRate || math.IsNaN(v) {
		return s.minimumRate
	}
	return v
}

// RateInto evaluates the rate at every time in ts with a shared tlast. dst is
// reused when large enough.
func (s *Spec) RateInto(dst []float64, theta, ts []float64, tlast float64) []float64 {
	if cap(dst) < len(ts) {
		dst = make([]float64, len(ts))
	}
	dst = dst[:len(ts)]
	for i, t := range ts {
		dst[i] = s.Rate(theta, t, tlast)
	}
	return dst
}

// Equation renders the resolved rate equation.
func (s *Spec) Equation() string {
	parts := make([]string, len(s.terms))
	for i, term := range s.terms {
		parts[i] = term.Formula()
	}
	eq := strings.Join(parts, " + ")
	if s.minimumRate > 0 {
		eq = fmt.Sprintf("max(%g, %s)", s.minimumRate, eq)
	} else {
		eq = "max(0, " + eq + ")"
	}
	var bounded []string
	for i, nn := range s.nonNegative {
		if nn {
			bounded = append(bounded, fmt.Sprintf("p[%d]", i))
		}
	}
	if len(bounded) > 0 {
		eq += "; " + strings.Join(bounded, ", ") + " >= 0"
	}
	return eq
}
