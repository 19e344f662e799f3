package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/okian/nhpp/internal/adapters/eventfile"
	"github.com/okian/nhpp/internal/config"
	"github.com/okian/nhpp/internal/domain/fit"
	"github.com/okian/nhpp/internal/domain/likelihood"
	"github.com/okian/nhpp/internal/domain/rate"
	"github.com/okian/nhpp/internal/domain/selection"
	"github.com/okian/nhpp/pkg/logger"
)

// NewFromConfig builds a Service and its candidate list from a validated
// Config.
func NewFromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, []Candidate, error) {
	passes, err := fit.ParseMethods(cfg.Passes)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	exclusion, err := likelihood.ParseExclusion(cfg.Exclusion, cfg.ExclusionOffset)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	criterion := selection.AIC
	if cfg.CorrectedAIC {
		criterion = selection.AICc
	}

	base := []Option{
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithDriver(fit.New(fit.WithMaxIterations(cfg.MaxIterations))),
		WithPasses(passes...),
		WithMinimumRate(cfg.MinimumRate),
		WithIntegrator(rate.NewIntegrator(
			rate.WithNodes(cfg.QuadratureNodes),
			rate.WithPanelWidth(cfg.PanelWidth),
		)),
		WithExclusion(exclusion),
		WithPenalty(cfg.Penalty),
		WithSelector(selection.NewSelector(
			selection.WithCriterion(criterion),
			selection.IncludeNonConverged(cfg.IncludeNonConverged),
		)),
		WithDiagnostics(cfg.Simulations, cfg.Seed, cfg.Horizon),
	}

	if cfg.Covariate.Enabled() {
		idx, err := loadCovariate(cfg.Covariate)
		if err != nil {
			return nil, nil, err
		}
		first, last := idx.Window()
		logger.Get().Named("service").Info(ctx, "covariate loaded",
			logger.Int("window_start", first),
			logger.Int("window_end", last),
			logger.String("mode", idx.Mode().String()),
		)
		base = append(base, WithCovariate(idx))
	}

	return New(append(base, opts...)...), Expand(cfg.Catalogue.Families()), nil
}

func loadCovariate(c config.Covariate) (*rate.AnnualIndex, error) {
	var values map[int]float64
	if len(c.Values) > 0 {
		values = make(map[int]float64, len(c.Values))
		for k, v := range c.Values {
			year, err := strconv.Atoi(k)
			if err != nil {
				return nil, fmt.Errorf("%w: covariate year %q: %w", config.ErrInvalidConfig, k, err)
			}
			values[year] = v
		}
	} else {
		var err error
		if values, err = eventfile.ReadCovariateFile(c.File); err != nil {
			return nil, err
		}
	}

	mode, err := rate.ParseExtrapolation(c.Mode)
	if err != nil {
		return nil, err
	}
	opts := []rate.IndexOption{rate.WithExtrapolation(mode)}
	if c.WindowStart != 0 || c.WindowEnd != 0 {
		opts = append(opts, rate.WithWindow(c.WindowStart, c.WindowEnd))
	}
	return rate.NewAnnualIndex(values, opts...)
}
