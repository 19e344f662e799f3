// Package service runs batch fits of a rate-function catalogue against one
// event series and ranks the outcomes.
package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/nhpp/internal/adapters/mq/queue"
	"github.com/okian/nhpp/internal/adapters/mq/worker"
	"github.com/okian/nhpp/internal/domain/dedupe"
	"github.com/okian/nhpp/internal/domain/fit"
	"github.com/okian/nhpp/internal/domain/likelihood"
	"github.com/okian/nhpp/internal/domain/model"
	"github.com/okian/nhpp/internal/domain/rate"
	"github.com/okian/nhpp/internal/domain/selection"
	"github.com/okian/nhpp/internal/domain/simulate"
	"github.com/okian/nhpp/internal/domain/types"
	"github.com/okian/nhpp/internal/domain/uncertainty"
	"github.com/okian/nhpp/pkg/logger"
	"github.com/okian/nhpp/pkg/metrics"
)

const enqueueRetryInterval = 5 * time.Millisecond

// Service fits every catalogue candidate in parallel.
type Service struct {
	workerCount int
	queueSize   int

	driver    *fit.Driver
	estimator *uncertainty.Estimator
	selector  *selection.Selector

	passes []fit.Method
	prior  *model.FitResult

	minimumRate float64
	covariate   rate.Covariate
	integrator  *rate.Integrator
	exclusion   likelihood.ExclusionPolicy
	penalty     float64

	simulations int
	seed        uint64
	horizon     float64

	logger logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   1024,
		integrator:  rate.NewIntegrator(),
		exclusion:   likelihood.FullExclusion{},
		seed:        1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.driver == nil {
		s.driver = fit.New()
	}
	if s.estimator == nil {
		s.estimator = uncertainty.New()
	}
	if s.selector == nil {
		s.selector = selection.NewSelector()
	}
	return s
}

// Failure is a candidate that produced no fit.
type Failure struct {
	Index int
	Name  string
	Err   error
}

// Duplicate is a candidate skipped because an earlier one resolves to the
// same equation.
type Duplicate struct {
	Name string
	Of   string
}

// BatchReport is the outcome of FitCatalogue. Results and Summaries are
// in catalogue order.
type BatchReport struct {
	RunID        string
	Candidates   int
	Results      []*model.FitResult
	Failed       []Failure
	NonConverged []*model.FitResult
	Duplicates   []Duplicate
	Ranking      *selection.Ranking
	Best         *model.FitResult
	Summaries    []types.Summary
	Diagnostics  *simulate.Diagnostics
	Elapsed      time.Duration
}

// FitCatalogue fits every candidate against series. A candidate that fails
// does not stop the batch; it is reported in Failed. The returned error is
// non-nil only for invalid input, cancellation, or when no candidate could
// be ranked (the report is still returned then).
func (s *Service) FitCatalogue(ctx context.Context, series *model.EventSeries, candidates []Candidate) (*BatchReport, error) {
	started := time.Now()
	if series == nil || series.Len() == 0 {
		return nil, likelihood.ErrEmptySeries
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	if overtaking := series.Overtaking(); len(overtaking) > 0 {
		s.logger.Warn(ctx, "events start before the previous one is over",
			logger.Int("count", len(overtaking)),
			logger.Int("first_index", overtaking[0]),
		)
	}

	report := &BatchReport{RunID: uuid.NewString(), Candidates: len(candidates)}
	log := s.logger.Named("batch")
	log.Info(ctx, "batch started",
		logger.String("run_id", report.RunID),
		logger.Int("candidates", len(candidates)),
		logger.Int("events", series.Len()),
		logger.String("exclusion", s.exclusion.Name()),
	)
	metrics.UpdateBatchCandidates(len(candidates))
	defer metrics.UpdateBatchCandidates(0)

	jobs := s.jobs(ctx, log, series, candidates, report)

	coll := newCollector(len(candidates))
	if err := s.run(ctx, jobs, coll); err != nil {
		return nil, err
	}

	for _, o := range coll.ordered() {
		if o.Err != nil {
			report.Failed = append(report.Failed, Failure{Index: o.Index, Name: o.Name, Err: o.Err})
			continue
		}
		report.Results = append(report.Results, o.Result)
		if !o.Result.Converged {
			report.NonConverged = append(report.NonConverged, o.Result)
		}
	}

	slices.SortFunc(report.Failed, func(a, b Failure) int { return cmp.Compare(a.Index, b.Index) })

	ranking, rankErr := s.selector.Rank(report.Results)
	report.Ranking = ranking
	report.Best = ranking.Best()
	report.Summaries = summarize(report.Results, ranking)
	s.logSummaries(ctx, log, report)

	if report.Best != nil && s.simulations > 0 {
		d, err := s.Diagnose(ctx, report.Best, series)
		if err != nil {
			log.Warn(ctx, "simulation diagnostics unavailable", logger.Error(err))
		}
		if d != nil {
			report.Diagnostics = d
		}
	}

	report.Elapsed = time.Since(started)
	log.Info(ctx, "batch finished",
		logger.String("run_id", report.RunID),
		logger.Int("fitted", len(report.Results)),
		logger.Int("duplicates", len(report.Duplicates)),
		logger.Duration("elapsed", report.Elapsed),
	)
	if rankErr != nil {
		return report, fmt.Errorf("rank %d results: %w", len(report.Results), rankErr)
	}
	return report, nil
}

// jobs resolves each candidate into a queue job. Specification errors and
// duplicate equations are recorded on the report instead.
func (s *Service) jobs(ctx context.Context, log logger.Logger, series *model.EventSeries, candidates []Candidate, report *BatchReport) []queue.Job {
	seen := dedupe.NewInMemoryDeduper(dedupe.WithSizeHint(len(candidates)))
	out := make([]queue.Job, 0, len(candidates))
	for _, c := range candidates {
		engine, err := s.engine(c)
		if err != nil {
			log.Error(ctx, "candidate rejected", logger.String("fit.name", c.Name), logger.Error(err))
			report.Failed = append(report.Failed, Failure{Index: c.Index, Name: c.Name, Err: err})
			continue
		}
		if first, dup := seen.SeenAndRecord(ctx, engine.Spec().Equation(), c.Name); dup {
			metrics.RecordFit(metrics.OutcomeDuplicate, 0)
			log.Debug(ctx, "candidate duplicates an earlier one",
				logger.String("fit.name", c.Name),
				logger.String("duplicate_of", first),
			)
			report.Duplicates = append(report.Duplicates, Duplicate{Name: c.Name, Of: first})
			continue
		}

		var opts []fit.FitOption
		if len(s.passes) > 0 {
			opts = append(opts, fit.WithPasses(s.passes...))
		}
		if s.prior != nil {
			opts = append(opts, fit.WithPrior(s.prior))
		}
		out = append(out, queue.Job{Index: c.Index, Name: c.Name, Engine: engine, Series: series, Options: opts})
	}
	return out
}

func (s *Service) engine(c Candidate) (*likelihood.Engine, error) {
	specOpts := []rate.Option{rate.WithMinimumRate(s.minimumRate)}
	if s.covariate != nil {
		specOpts = append(specOpts, rate.WithCovariate(s.covariate))
	}
	spec, err := rate.New(c.Terms, specOpts...)
	if err != nil {
		return nil, err
	}
	engOpts := []likelihood.Option{
		likelihood.WithIntegrator(s.integrator),
		likelihood.WithExclusion(s.exclusion),
	}
	if s.penalty > 0 {
		engOpts = append(engOpts, likelihood.WithPenalty(s.penalty))
	}
	return likelihood.New(spec, engOpts...)
}

// run pushes jobs through a bounded queue drained by a worker pool and
// blocks until every job has been collected or ctx is done.
func (s *Service) run(ctx context.Context, jobs []queue.Job, coll *collector) error {
	if len(jobs) == 0 {
		return nil
	}
	q := queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	workers := min(s.workerCount, len(jobs))
	pool := worker.NewPool(workers, q, s.driver, s.estimator, coll)
	pool.Start(ctx)

	for _, j := range jobs {
		if err := submit(ctx, q, j); err != nil {
			// The batch is abandoned: stop workers after their current job
			// instead of draining the queue.
			shutdownErr := pool.Shutdown(context.WithoutCancel(ctx))
			return errors.Join(fmt.Errorf("submit fit jobs: %w", err), shutdownErr)
		}
	}
	// Closing lets the workers drain what was queued and exit.
	_ = q.Close()
	pool.Wait()
	return ctx.Err()
}

// submit enqueues j, waiting for room while the queue is full.
func submit(ctx context.Context, q queue.Queue, j queue.Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	ticker := time.NewTicker(enqueueRetryInterval)
	defer ticker.Stop()
	for {
		err := q.Enqueue(ctx, j)
		if !errors.Is(err, queue.ErrFull) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Diagnose simulates sequences from res over the observed window and
// compares their inter-event times with the observed ones.
func (s *Service) Diagnose(ctx context.Context, res *model.FitResult, observed *model.EventSeries) (*simulate.Diagnostics, error) {
	if observed == nil || observed.Len() == 0 {
		return nil, likelihood.ErrEmptySeries
	}
	horizon := s.horizon
	if horizon == 0 {
		horizon = observed.End
	}
	if horizon == 0 {
		last := observed.Len() - 1
		horizon = s.exclusion.BusyEnd(observed.Times[last], observed.Durations[last])
	}
	sim, err := simulate.FromFit(res, horizon,
		simulate.WithIntegrator(s.integrator),
		simulate.WithExclusion(s.exclusion),
		simulate.WithDurations(simulate.EmpiricalDurations(observed.Durations)),
	)
	if err != nil {
		return nil, err
	}
	d, err := sim.Diagnose(observed, s.simulations, s.seed)
	if err != nil {
		return &d, err
	}
	s.logger.Info(ctx, "simulation diagnostics",
		logger.String("fit.name", res.Name),
		logger.Int("runs", d.Runs),
		logger.Int("skipped", d.Skipped),
		logger.Float64("mean_events", d.MeanEvents),
		logger.Int("observed_events", observed.Len()),
		logger.Float64("mean_ks", d.MeanKS),
	)
	return &d, nil
}

// collector stores worker outcomes by catalogue index.
type collector struct {
	mu       sync.Mutex
	outcomes []worker.Outcome
}

func newCollector(hint int) *collector {
	return &collector{outcomes: make([]worker.Outcome, 0, hint)}
}

func (c *collector) Collect(_ context.Context, o worker.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, o)
}

func (c *collector) ordered() []worker.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]worker.Outcome(nil), c.outcomes...)
	sortOutcomes(out)
	return out
}
