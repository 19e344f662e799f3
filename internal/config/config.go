// Package config defines batch configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers defaults, an optional YAML file and NHPP_ environment variables.
// - External errors are wrapped with ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"context"
	"runtime"

	"github.com/okian/nhpp/internal/domain/rate"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// EventsFile is the CSV holding start,active_duration rows in years.
	EventsFile string `koanf:"events_file"`

	// ObservationStart is x0, the start of the record. Unset means the year
	// of the first event.
	ObservationStart *float64 `koanf:"observation_start"`

	// ObservationEnd closes the record; zero means no trail-out interval.
	ObservationEnd float64 `koanf:"observation_end"`

	// MinimumRate is the floor the summed rate is clipped to.
	MinimumRate float64 `koanf:"minimum_rate"`

	// WorkerCount sets the number of fit workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory fit-job queue.
	QueueSize int `koanf:"queue_size"`

	// MaxIterations caps the major iterations of a single optimizer pass.
	MaxIterations int `koanf:"max_iterations"`

	// Passes lists optimizer methods in order. Empty selects the default
	// policy for the number of parameters.
	Passes []string `koanf:"passes"`

	// QuadratureNodes and PanelWidth tune the composite Gauss-Legendre rule.
	QuadratureNodes int     `koanf:"quadrature_nodes"`
	PanelWidth      float64 `koanf:"panel_width"`

	// Exclusion selects the busy-time policy: full, none or offset.
	Exclusion       string  `koanf:"exclusion"`
	ExclusionOffset float64 `koanf:"exclusion_offset"`

	// Penalty is the finite objective value returned for invalid parameters.
	Penalty float64 `koanf:"penalty"`

	// CorrectedAIC ranks by AICc when true and by AIC otherwise.
	CorrectedAIC bool `koanf:"corrected_aic"`

	// IncludeNonConverged keeps non-converged fits in the ranking.
	IncludeNonConverged bool `koanf:"include_nonconverged"`

	// Simulations is the number of synthetic sequences drawn from the best
	// model for diagnostics. Zero disables diagnostics.
	Simulations int    `koanf:"simulations"`
	Seed        uint64 `koanf:"seed"`

	// Horizon ends simulated sequences. Zero means the observation end, or
	// the last observed busy end when that is unset too.
	Horizon float64 `koanf:"horizon"`

	// MetricsFile receives a Prometheus text dump after the batch.
	MetricsFile string `koanf:"metrics_file"`

	Covariate Covariate `koanf:"covariate"`
	Catalogue Catalogue `koanf:"catalogue"`
}

// Covariate describes the yearly covariate table used by covariate terms.
type Covariate struct {
	// File is a CSV of year,value rows. Values take precedence when both are set.
	File string `koanf:"file"`
	// Values maps a calendar year to the covariate value.
	Values map[string]float64 `koanf:"values"`
	// Mode is periodic or clamp.
	Mode        string `koanf:"mode"`
	WindowStart int    `koanf:"window_start"`
	WindowEnd   int    `koanf:"window_end"`
}

// Enabled reports whether a covariate table was configured.
func (c Covariate) Enabled() bool {
	return c.File != "" || len(c.Values) > 0
}

// Catalogue holds the candidate sub-term families. Every combination of one
// entry per family is fitted.
type Catalogue struct {
	Annual   []rate.TermDef `koanf:"annual"`
	Seasonal []rate.TermDef `koanf:"seasonal"`
	Cluster  []rate.TermDef `koanf:"cluster"`
}

// Families returns the families in the order their terms are declared.
func (c Catalogue) Families() []Family {
	return []Family{
		{Name: "annual", Entries: c.Annual},
		{Name: "seasonal", Entries: c.Seasonal},
		{Name: "cluster", Entries: c.Cluster},
	}
}

// Family is one named axis of the catalogue.
type Family struct {
	Name    string
	Entries []rate.TermDef
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	c := &Config{
		LogLevel:        "info",
		WorkerCount:     runtime.NumCPU(),
		QueueSize:       1024,
		MaxIterations:   2000,
		QuadratureNodes: 8,
		PanelWidth:      1.0 / 24,
		Exclusion:       "full",
		Penalty:         1e10,
		CorrectedAIC:    true,
		Seed:            1,
		Covariate: Covariate{
			Mode: "clamp",
		},
		Catalogue: Catalogue{
			Annual: []rate.TermDef{
				{Name: "constant", Kind: rate.KindConstant, Start: []float64{5}, NonNegative: []bool{true}},
			},
			Seasonal: []rate.TermDef{
				{Name: "none", Kind: rate.KindNone},
				{Name: "sinusoid", Kind: rate.KindSinusoid, Start: []float64{2, 0.25}, NonNegative: []bool{true, false}},
				{Name: "double_sinusoid", Kind: rate.KindDoubleSinusoid, Start: []float64{2, 0.25, 0.5, 0.1}, NonNegative: []bool{true, false, true, false}},
			},
			Cluster: []rate.TermDef{
				{Name: "none", Kind: rate.KindNone},
				{Name: "cluster", Kind: rate.KindCluster, Start: []float64{1, 20}, Scale: []float64{1, 10}, NonNegative: []bool{true, true}},
			},
		},
	}
	return c
}
