package rate

import (
	"fmt"
	"math"
)

// Kind names an additive sub-term family.
type Kind string

// Supported term kinds.
const (
	KindNone           Kind = "none"
	KindConstant       Kind = "constant"
	KindLinear         Kind = "linear"
	KindCovariate      Kind = "covariate"
	KindSinusoid       Kind = "sinusoid"
	KindDoubleSinusoid Kind = "double_sinusoid"
	KindSawtooth       Kind = "sawtooth"
	KindCluster        Kind = "cluster"
)

const defaultPeriod = 1.0 // years

// TermDef declares one additive sub-term of a rate function.
type TermDef struct {
	// Name identifies the term within a specification, e.g. "annual".
	Name string `koanf:"name"`
	// Kind selects the formula.
	Kind Kind `koanf:"kind"`
	// Start is the starting parameter vector for this term.
	Start []float64 `koanf:"start"`
	// Scale conditions the optimizer; defaults to 1 for each parameter.
	Scale []float64 `koanf:"scale"`
	// Period of periodic kinds, in years. Zero means one year.
	Period float64 `koanf:"period"`
	// Origin is the reference time of the linear kind.
	Origin float64 `koanf:"origin"`
	// NonNegative marks parameters the optimizer keeps in [0, inf). Empty
	// leaves every parameter free; otherwise it has one entry per parameter.
	NonNegative []bool `koanf:"nonnegative"`
}

// Point is the state a term is evaluated at.
type Point struct {
	T     float64
	TLast float64
	Cov   Covariate
}

// shape is the closed set of term formulas.
type shape interface {
	arity() int
	value(p []float64, x Point) float64
	formula(at func(i int) string) string
}

type constant struct{}

func (constant) arity() int { return 1 }
func (constant) value(p []float64, _ Point) float64 {
	return p[0]
}
func (constant) formula(at func(int) string) string {
	return at(0)
}

type linear struct{ origin float64 }

func (linear) arity() int { return 1 }
func (s linear) value(p []float64, x Point) float64 {
	return p[0] * (x.T - s.origin)
}
func (s linear) formula(at func(int) string) string {
	return fmt.Sprintf("%s*(t - %g)", at(0), s.origin)
}

type covariateLinear struct{}

func (covariateLinear) arity() int { return 1 }
func (covariateLinear) value(p []float64, x Point) float64 {
	return p[0] * x.Cov.At(x.T)
}
func (covariateLinear) formula(at func(int) string) string {
	return at(0) + "*cov(t)"
}

type sinusoid struct{ period float64 }

func (sinusoid) arity() int { return 2 }
func (s sinusoid) value(p []float64, x Point) float64 {
	return p[0] * math.Sin(2*math.Pi*(x.T-p[1])/s.period)
}
func (s sinusoid) formula(at func(int) string) string {
	return fmt.Sprintf("%s*sin(2*pi*(t - %s)/%g)", at(0), at(1), s.period)
}

type doubleSinusoid struct{ period float64 }

func (doubleSinusoid) arity() int { return 4 }
func (s doubleSinusoid) value(p []float64, x Point) float64 {
	w := 2 * math.Pi / s.period
	return p[0]*math.Sin(w*(x.T-p[1])) + p[2]*math.Sin(2*w*(x.T-p[3]))
}
func (s doubleSinusoid) formula(at func(int) string) string {
	return fmt.Sprintf("%s*sin(2*pi*(t - %s)/%g) + %s*sin(4*pi*(t - %s)/%g)",
		at(0), at(1), s.period, at(2), at(3), s.period)
}

type sawtooth struct{ period float64 }

func (sawtooth) arity() int { return 2 }
func (s sawtooth) value(p []float64, x Point) float64 {
	u := (x.T - p[1]) / s.period
	return p[0] * (2*(u-math.Floor(u)) - 1)
}
func (s sawtooth) formula(at func(int) string) string {
	return fmt.Sprintf("%s*(2*frac((t - %s)/%g) - 1)", at(0), at(1), s.period)
}

type cluster struct{}

func (cluster) arity() int { return 2 }
func (cluster) value(p []float64, x Point) float64 {
	return p[0] * math.Exp(-p[1]*(x.T-x.TLast))
}
func (cluster) formula(at func(int) string) string {
	return fmt.Sprintf("%s*exp(-%s*(t - tlast))", at(0), at(1))
}

// Term is a resolved sub-term: its formula plus the slice of the shared
// parameter vector it owns.
type Term struct {
	Name   string
	Kind   Kind
	Offset int
	Len    int

	nonNegative []bool
	shape       shape
}

// Params returns the term's view into theta.
func (t Term) Params(theta []float64) []float64 {
	return theta[t.Offset : t.Offset+t.Len]
}

// Value evaluates the term alone.
func (t Term) Value(theta []float64, x Point) float64 {
	return t.shape.value(t.Params(theta), x)
}

// NonNegative reports whether parameter i of the term is constrained.
func (t Term) NonNegative(i int) bool {
	return i < len(t.nonNegative) && t.nonNegative[i]
}

// Formula renders the term with global parameter indices.
func (t Term) Formula() string {
	return t.shape.formula(func(i int) string {
		return fmt.Sprintf("p[%d]", t.Offset+i)
	})
}

func newShape(def TermDef) (shape, error) {
	period := def.Period
	if period == 0 {
		period = defaultPeriod
	}
	if period < 0 || math.IsNaN(period) || math.IsInf(period, 0) {
		return nil, fmt.Errorf("%w: term %q has period %g", ErrSpecification, def.Name, def.Period)
	}

	switch def.Kind {
	case KindConstant:
		return constant{}, nil
	case KindLinear:
		return linear{origin: def.Origin}, nil
	case KindCovariate:
		return covariateLinear{}, nil
	case KindSinusoid:
		return sinusoid{period: period}, nil
	case KindDoubleSinusoid:
		return doubleSinusoid{period: period}, nil
	case KindSawtooth:
		return sawtooth{period: period}, nil
	case KindCluster:
		return cluster{}, nil
	default:
		return nil, fmt.Errorf("%w: term %q has unknown kind %q", ErrSpecification, def.Name, def.Kind)
	}
}
