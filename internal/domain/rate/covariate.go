package rate

import (
	"fmt"
	"math"
	"sort"
)

// Covariate maps a time in decimal years to an external index value.
type Covariate interface {
	At(t float64) float64
}

// Extrapolation selects how an AnnualIndex answers outside its window.
type Extrapolation int

const (
	// ExtrapolateClamp holds the first or last window value.
	ExtrapolateClamp Extrapolation = iota
	// ExtrapolatePeriodic loops over the window, e.g. 1985..2015 repeated.
	ExtrapolatePeriodic
)

// String implements fmt.Stringer.
func (e Extrapolation) String() string {
	switch e {
	case ExtrapolateClamp:
		return "clamp"
	case ExtrapolatePeriodic:
		return "periodic"
	default:
		return fmt.Sprintf("extrapolation(%d)", int(e))
	}
}

// ParseExtrapolation maps a configuration value to an Extrapolation.
func ParseExtrapolation(s string) (Extrapolation, error) {
	switch s {
	case "", "clamp":
		return ExtrapolateClamp, nil
	case "periodic":
		return ExtrapolatePeriodic, nil
	default:
		return 0, fmt.Errorf("%w: unknown extrapolation %q", ErrCovariateRange, s)
	}
}

// AnnualIndex is a yearly covariate table such as an ENSO index. The value
// for time t is the value of year floor(t).
type AnnualIndex struct {
	first  int
	values []float64
	mode   Extrapolation
}

// IndexOption configures an AnnualIndex.
type IndexOption func(*indexConfig)

type indexConfig struct {
	mode        Extrapolation
	windowStart int
	windowEnd   int
	window      bool
}

// WithExtrapolation sets the out-of-window behaviour.
func WithExtrapolation(mode Extrapolation) IndexOption {
	return func(c *indexConfig) {
		c.mode = mode
	}
}

// WithWindow restricts the table to the inclusive year range [start, end].
func WithWindow(start, end int) IndexOption {
	return func(c *indexConfig) {
		c.windowStart = start
		c.windowEnd = end
		c.window = true
	}
}

// NewAnnualIndex builds a lookup from year -> value. The years of the
// window must be contiguous.
func NewAnnualIndex(values map[int]float64, opts ...IndexOption) (*AnnualIndex, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no values", ErrCovariateRange)
	}

	years := make([]int, 0, len(values))
	for y := range values {
		years = append(years, y)
	}
	sort.Ints(years)

	cfg := indexConfig{
		mode:        ExtrapolateClamp,
		windowStart: years[0],
		windowEnd:   years[len(years)-1],
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.windowEnd < cfg.windowStart {
		return nil, fmt.Errorf("%w: window %d..%d is empty", ErrCovariateRange, cfg.windowStart, cfg.windowEnd)
	}

	table := make([]float64, 0, cfg.windowEnd-cfg.windowStart+1)
	for y := cfg.windowStart; y <= cfg.windowEnd; y++ {
		v, ok := values[y]
		if !ok {
			return nil, fmt.Errorf("%w: missing year %d in window %d..%d", ErrCovariateRange, y, cfg.windowStart, cfg.windowEnd)
		}
		table = append(table, v)
	}

	return &AnnualIndex{first: cfg.windowStart, values: table, mode: cfg.mode}, nil
}

// Mode reports the extrapolation behaviour.
func (a *AnnualIndex) Mode() Extrapolation { return a.mode }

// Window returns the inclusive year range backing the table.
func (a *AnnualIndex) Window() (int, int) {
	return a.first, a.first + len(a.values) - 1
}

// At implements Covariate.
func (a *AnnualIndex) At(t float64) float64 {
	i := int(math.Floor(t)) - a.first
	n := len(a.values)
	if i >= 0 && i < n {
		return a.values[i]
	}
	if a.mode == ExtrapolatePeriodic {
		i %= n
		if i < 0 {
			i += n
		}
		return a.values[i]
	}
	if i < 0 {
		return a.values[0]
	}
	return a.values[n-1]
}

// WithMode returns a copy of the index using a different extrapolation. Fits
// typically loop over the historical window while forward simulation clamps.
func (a *AnnualIndex) WithMode(mode Extrapolation) *AnnualIndex {
	c := *a
	c.mode = mode
	return &c
}
