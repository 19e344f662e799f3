package simulate

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// DurationPolicy draws the active duration of each simulated event.
type DurationPolicy interface {
	Next(r *rand.Rand) float64
}

// FixedDuration gives every event the same active duration.
type FixedDuration float64

// Next implements DurationPolicy.
func (d FixedDuration) Next(*rand.Rand) float64 { return float64(d) }

// EmpiricalDurations resamples observed active durations with replacement.
type EmpiricalDurations []float64

// Next implements DurationPolicy.
func (d EmpiricalDurations) Next(r *rand.Rand) float64 {
	if len(d) == 0 {
		return 0
	}
	return d[r.IntN(len(d))]
}

// ExponentialDurations draws durations from an exponential with the given
// mean.
type ExponentialDurations float64

// Next implements DurationPolicy.
func (d ExponentialDurations) Next(r *rand.Rand) float64 {
	if d <= 0 {
		return 0
	}
	return distuv.Exponential{Rate: 1 / float64(d), Src: r}.Rand()
}
