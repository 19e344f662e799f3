package rate

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"
)

const (
	defaultNodes      = 8
	defaultPanelWidth = 1.0 / 24 // years, about half a month
	solveTolerance    = 1e-10
	maxBisections     = 200
)

// Integrator computes integrals of a Spec over a single inter-event
// interval, where tlast is frozen. It uses composite Gauss-Legendre
// quadrature with panels no wider than the configured width so the
// non-smooth clipped rate stays well resolved.
type Integrator struct {
	panel float64
	x     []float64 // nodes on [-1, 1]
	w     []float64
}

// IntegratorOption configures an Integrator.
type IntegratorOption func(*integratorConfig)

type integratorConfig struct {
	nodes int
	panel float64
}

// WithNodes sets the number of Gauss-Legendre nodes per panel.
func WithNodes(n int) IntegratorOption {
	return func(c *integratorConfig) {
		if n > 0 {
			c.nodes = n
		}
	}
}

// WithPanelWidth sets the maximum panel width in years.
func WithPanelWidth(width float64) IntegratorOption {
	return func(c *integratorConfig) {
		if width > 0 && !math.IsInf(width, 0) {
			c.panel = width
		}
	}
}

// NewIntegrator returns an Integrator with precomputed quadrature nodes.
func NewIntegrator(opts ...IntegratorOption) *Integrator {
	cfg := integratorConfig{nodes: defaultNodes, panel: defaultPanelWidth}
	for _, opt := range opts {
		opt(&cfg)
	}
	x := make([]float64, cfg.nodes)
	w := make([]float64, cfg.nodes)
	quad.Legendre{}.FixedLocations(x, w, -1, 1)
	return &Integrator{panel: cfg.panel, x: x, w: w}
}

// PanelWidth returns the maximum panel width.
func (in *Integrator) PanelWidth() float64 { return in.panel }

// Integral returns the integral of the rate over [a, b] with tlast frozen.
// For b < a it returns the negated integral over [b, a].
func (in *Integrator) Integral(s *Spec, theta []float64, a, b, tlast float64) float64 {
	switch {
	case a == b:
		return 0
	case b < a:
		return -in.Integral(s, theta, b, a, tlast)
	}

	panels := int(math.Ceil((b - a) / in.panel))
	if panels < 1 {
		panels = 1
	}
	h := (b - a) / float64(panels)
	sum := 0.0
	for p := 0; p < panels; p++ {
		lo := a + float64(p)*h
		hi := lo + h
		if p == panels-1 {
			hi = b
		}
		sum += in.panelIntegral(s, theta, lo, hi, tlast)
	}
	return sum
}

func (in *Integrator) panelIntegral(s *Spec, theta []float64, lo, hi, tlast float64) float64 {
	half := (hi - lo) / 2
	mid := (hi + lo) / 2
	sum := 0.0
	for i, x := range in.x {
		sum += in.w[i] * s.Rate(theta, mid+half*x, tlast)
	}
	return sum * half
}

// Solve finds b in (a, limit] such that the integral over [a, b] equals
// target. It walks panel by panel until the running integral passes the
// target, then bisects inside that panel. ok is false when the limit is
// reached first.
func (in *Integrator) Solve(s *Spec, theta []float64, a, target, limit, tlast float64) (b float64, ok bool) {
	if target <= 0 {
		return a, true
	}
	if !(limit > a) {
		return limit, false
	}

	acc := 0.0
	lo := a
	for lo < limit {
		hi := math.Min(lo+in.panel, limit)
		step := in.panelIntegral(s, theta, lo, hi, tlast)
		if acc+step >= target {
			return in.bisect(s, theta, lo, hi, target-acc, tlast), true
		}
		acc += step
		lo = hi
	}
	return limit, false
}

// bisect finds x in [lo, hi] with integral over [lo, x] equal to need.
func (in *Integrator) bisect(s *Spec, theta []float64, lo, hi, need, tlast float64) float64 {
	left, right := lo, hi
	for i := 0; i < maxBisections && right-left > solveTolerance; i++ {
		mid := (left + right) / 2
		if in.panelIntegral(s, theta, lo, mid, tlast) < need {
			left = mid
		} else {
			right = mid
		}
	}
	return (left + right) / 2
}
