package fit

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/optimize"
)

// Method names an optimization pass.
type Method string

// Supported methods. NelderMead is derivative-free; the rest use a
// finite-difference gradient.
const (
	NelderMead      Method = "nelder-mead"
	BFGS            Method = "bfgs"
	LBFGS           Method = "lbfgs"
	CG              Method = "cg"
	GradientDescent Method = "gradient-descent"
)

// ParseMethod maps a configuration name to a Method.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case NelderMead, BFGS, LBFGS, CG, GradientDescent:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// ParseMethods parses a pass list.
func ParseMethods(names []string) ([]Method, error) {
	out := make([]Method, 0, len(names))
	for _, n := range names {
		m, err := ParseMethod(n)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// UsesGradient reports whether the method needs a gradient.
func (m Method) UsesGradient() bool { return m != NelderMead }

func (m Method) optimizer() optimize.Method {
	switch m {
	case NelderMead:
		return &optimize.NelderMead{}
	case LBFGS:
		return &optimize.LBFGS{}
	case CG:
		return &optimize.CG{}
	case GradientDescent:
		return &optimize.GradientDescent{}
	default:
		return &optimize.BFGS{}
	}
}

// DefaultPasses is the pass policy for a specification with k parameters:
// one gradient pass when k == 1, otherwise two derivative-free passes to
// find the basin followed by a gradient pass to polish.
func DefaultPasses(k int) []Method {
	if k <= 1 {
		return []Method{BFGS}
	}
	return []Method{NelderMead, NelderMead, BFGS}
}

func succeeded(s optimize.Status) bool {
	switch s {
	case optimize.Success,
		optimize.FunctionThreshold,
		optimize.FunctionConvergence,
		optimize.GradientThreshold,
		optimize.StepConvergence,
		optimize.MethodConverge:
		return true
	default:
		return false
	}
}
