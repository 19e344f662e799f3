package likelihood

import (
	"fmt"
	"math"
)

// ExclusionPolicy decides how long after an event no competing event is
// possible. The interval [t, BusyEnd(t, d)] contributes nothing to the
// integral term.
type ExclusionPolicy interface {
	BusyEnd(t, duration float64) float64
	Name() string
}

// FullExclusion treats the whole active duration as busy.
type FullExclusion struct{}

// BusyEnd implements ExclusionPolicy.
func (FullExclusion) BusyEnd(t, d float64) float64 { return t + d }

// Name implements ExclusionPolicy.
func (FullExclusion) Name() string { return "full" }

// NoExclusion integrates over the whole observation window.
type NoExclusion struct{}

// BusyEnd implements ExclusionPolicy.
func (NoExclusion) BusyEnd(t, _ float64) float64 { return t }

// Name implements ExclusionPolicy.
func (NoExclusion) Name() string { return "none" }

// OffsetExclusion shortens each busy window by a fixed offset, never below
// zero. This is the duration-gap minus duration-offset correction.
type OffsetExclusion struct {
	Offset float64
}

// BusyEnd implements ExclusionPolicy.
func (o OffsetExclusion) BusyEnd(t, d float64) float64 {
	return t + math.Max(0, d-o.Offset)
}

// Name implements ExclusionPolicy.
func (o OffsetExclusion) Name() string { return fmt.Sprintf("offset(%g)", o.Offset) }

// ParseExclusion maps a configuration name to a policy.
func ParseExclusion(name string, offset float64) (ExclusionPolicy, error) {
	switch name {
	case "", "full":
		return FullExclusion{}, nil
	case "none":
		return NoExclusion{}, nil
	case "offset":
		if offset < 0 || math.IsNaN(offset) {
			return nil, fmt.Errorf("%w: %g must be non-negative", ErrExclusionOffset, offset)
		}
		return OffsetExclusion{Offset: offset}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExclusion, name)
	}
}
