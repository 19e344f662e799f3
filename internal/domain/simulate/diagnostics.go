package simulate

import (
	"fmt"
	"slices"

	"github.com/okian/nhpp/internal/domain/model"
	"gonum.org/v1/gonum/stat"
)

// InterEventKS is the two-sample Kolmogorov-Smirnov distance between the
// inter-event times of two series.
func InterEventKS(observed, simulated *model.EventSeries) (float64, error) {
	x := observed.Gaps()
	y := simulated.Gaps()
	if len(x) == 0 || len(y) == 0 {
		return 0, fmt.Errorf("%w: %d observed and %d simulated gaps", ErrTooFewEvents, len(x), len(y))
	}
	slices.Sort(x)
	slices.Sort(y)
	return stat.KolmogorovSmirnov(x, nil, y, nil), nil
}

// Diagnostics summarises repeated simulations against an observed series.
type Diagnostics struct {
	Runs int
	// Skipped counts runs with too few events for a KS distance.
	Skipped    int
	MeanEvents float64
	MeanKS     float64
	KS         []float64
}

// Diagnose simulates runs sequences with seeds seed, seed+1, ... and
// compares each one's inter-event times to observed.
func (s *Simulator) Diagnose(observed *model.EventSeries, runs int, seed uint64) (Diagnostics, error) {
	d := Diagnostics{Runs: runs}
	if runs <= 0 {
		return d, nil
	}
	total := 0
	for i := 0; i < runs; i++ {
		sim := s.Series(seed + uint64(i))
		total += sim.Len()
		ks, err := InterEventKS(observed, sim)
		if err != nil {
			d.Skipped++
			continue
		}
		d.KS = append(d.KS, ks)
	}
	d.MeanEvents = float64(total) / float64(runs)
	if len(d.KS) == 0 {
		return d, fmt.Errorf("%w: no run produced two events", ErrTooFewEvents)
	}
	d.MeanKS = stat.Mean(d.KS, nil)
	return d, nil
}
