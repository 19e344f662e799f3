package config

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/nhpp/internal/domain/fit"
	"github.com/okian/nhpp/internal/domain/likelihood"
	"github.com/okian/nhpp/internal/domain/rate"
)

// Environment variable naming the optional YAML file, and the prefix of
// per-key overrides.
const (
	EnvConfigFile = "NHPP_CONFIG"
	envPrefix     = "NHPP_"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if NHPP_CONFIG is set
//  3. env (prefix NHPP_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// Map env keys like NHPP_WORKER_COUNT -> worker_count (flat keys).
	// Nested sections (covariate, catalogue) come from the file only.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, strings.ToLower(envPrefix))
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	// A configured family replaces the default list instead of being
	// decoded element-wise over it.
	for key, family := range map[string]*[]rate.TermDef{
		"catalogue.annual":   &cfg.Catalogue.Annual,
		"catalogue.seasonal": &cfg.Catalogue.Seasonal,
		"catalogue.cluster":  &cfg.Catalogue.Cluster,
	} {
		if k.Exists(key) {
			*family = nil
		}
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and names. Every failure wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
	}

	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return invalid("unknown log_level %q", c.LogLevel)
	}
	if c.WorkerCount < 1 {
		return invalid("worker_count must be positive, got %d", c.WorkerCount)
	}
	if c.QueueSize < 1 {
		return invalid("queue_size must be positive, got %d", c.QueueSize)
	}
	if c.MaxIterations < 1 {
		return invalid("max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.QuadratureNodes < 1 {
		return invalid("quadrature_nodes must be positive, got %d", c.QuadratureNodes)
	}
	if !positiveFinite(c.PanelWidth) {
		return invalid("panel_width must be positive, got %g", c.PanelWidth)
	}
	if !positiveFinite(c.Penalty) {
		return invalid("penalty must be positive, got %g", c.Penalty)
	}
	if c.MinimumRate < 0 || math.IsNaN(c.MinimumRate) || math.IsInf(c.MinimumRate, 0) {
		return invalid("minimum_rate must be non-negative, got %g", c.MinimumRate)
	}
	if c.ObservationStart != nil {
		start := *c.ObservationStart
		if math.IsNaN(start) || math.IsInf(start, 0) {
			return invalid("observation_start must be finite, got %g", start)
		}
		if c.ObservationEnd != 0 && c.ObservationEnd <= start {
			return invalid("observation_end %g must follow observation_start %g", c.ObservationEnd, start)
		}
	}
	if c.Simulations < 0 {
		return invalid("simulations must be non-negative, got %d", c.Simulations)
	}
	if c.Horizon < 0 || math.IsNaN(c.Horizon) {
		return invalid("horizon must be non-negative, got %g", c.Horizon)
	}
	if _, err := fit.ParseMethods(c.Passes); err != nil {
		return invalid("passes: %w", err)
	}
	if _, err := likelihood.ParseExclusion(c.Exclusion, c.ExclusionOffset); err != nil {
		return invalid("exclusion: %w", err)
	}
	if _, err := rate.ParseExtrapolation(c.Covariate.Mode); err != nil {
		return invalid("covariate.mode: %w", err)
	}
	if c.Covariate.WindowEnd < c.Covariate.WindowStart {
		return invalid("covariate window %d-%d is reversed", c.Covariate.WindowStart, c.Covariate.WindowEnd)
	}

	for _, fam := range c.Catalogue.Families() {
		if len(fam.Entries) == 0 {
			return invalid("catalogue.%s must list at least one entry (use kind none to omit the family)", fam.Name)
		}
		seen := make(map[string]bool, len(fam.Entries))
		for i, def := range fam.Entries {
			label := EntryLabel(def)
			if label == "" {
				return invalid("catalogue.%s[%d] has no name or kind", fam.Name, i)
			}
			if seen[label] {
				return invalid("catalogue.%s has duplicate entry %q", fam.Name, label)
			}
			seen[label] = true
			if def.Kind == rate.KindCovariate && !c.Covariate.Enabled() {
				return invalid("catalogue.%s[%d] is a covariate term but no covariate is configured", fam.Name, i)
			}
		}
	}
	return nil
}

// EntryLabel is the display name of a catalogue entry.
func EntryLabel(def rate.TermDef) string {
	if def.Name != "" {
		return def.Name
	}
	return string(def.Kind)
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
