package service

import (
	"github.com/okian/nhpp/internal/domain/fit"
	"github.com/okian/nhpp/internal/domain/likelihood"
	"github.com/okian/nhpp/internal/domain/model"
	"github.com/okian/nhpp/internal/domain/rate"
	"github.com/okian/nhpp/internal/domain/selection"
	"github.com/okian/nhpp/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of fit workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the fit-job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDriver replaces the fit driver.
func WithDriver(d *fit.Driver) Option {
	return func(s *Service) {
		if d != nil {
			s.driver = d
		}
	}
}

// WithPasses fixes the optimizer passes of every candidate.
func WithPasses(passes ...fit.Method) Option {
	return func(s *Service) {
		s.passes = append([]fit.Method(nil), passes...)
	}
}

// WithPrior seeds every candidate from an earlier fit.
func WithPrior(prior *model.FitResult) Option {
	return func(s *Service) {
		s.prior = prior
	}
}

// WithMinimumRate sets the clipping floor of every specification.
func WithMinimumRate(floor float64) Option {
	return func(s *Service) {
		s.minimumRate = floor
	}
}

// WithCovariate attaches the lookup used by covariate terms.
func WithCovariate(c rate.Covariate) Option {
	return func(s *Service) {
		s.covariate = c
	}
}

// WithIntegrator sets the quadrature used for likelihoods and simulation.
func WithIntegrator(in *rate.Integrator) Option {
	return func(s *Service) {
		if in != nil {
			s.integrator = in
		}
	}
}

// WithExclusion sets the busy-time policy.
func WithExclusion(p likelihood.ExclusionPolicy) Option {
	return func(s *Service) {
		if p != nil {
			s.exclusion = p
		}
	}
}

// WithPenalty sets the objective value for invalid parameters.
func WithPenalty(p float64) Option {
	return func(s *Service) {
		if p > 0 {
			s.penalty = p
		}
	}
}

// WithSelector replaces the model selector.
func WithSelector(sel *selection.Selector) Option {
	return func(s *Service) {
		if sel != nil {
			s.selector = sel
		}
	}
}

// WithDiagnostics enables simulation diagnostics of the best model: runs
// sequences seeded from seed, ending at horizon (zero: end of record).
func WithDiagnostics(runs int, seed uint64, horizon float64) Option {
	return func(s *Service) {
		if runs >= 0 {
			s.simulations = runs
		}
		s.seed = seed
		s.horizon = horizon
	}
}
