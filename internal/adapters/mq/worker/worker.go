// Package worker runs candidate fits pulled from the job queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/nhpp/internal/adapters/mq/queue"
	"github.com/okian/nhpp/internal/domain/fit"
	"github.com/okian/nhpp/internal/domain/model"
	"github.com/okian/nhpp/internal/domain/selection"
	"github.com/okian/nhpp/internal/domain/uncertainty"
	"github.com/okian/nhpp/pkg/logger"
	"github.com/okian/nhpp/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Fitter runs one fit.
type Fitter interface {
	Fit(ctx context.Context, lik fit.Likelihood, series *model.EventSeries, opts ...fit.FitOption) (*model.FitResult, error)
}

// Estimator attaches uncertainty to a fit.
type Estimator interface {
	Estimate(ctx context.Context, lik uncertainty.Likelihood, res *model.FitResult) (*model.Uncertainty, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Outcome is the result of one job. Err is set only when the fit could not
// be attempted; non-convergence is reported on Result.
type Outcome struct {
	Index  int
	Name   string
	Result *model.FitResult
	Err    error
}

// Collector receives outcomes. It must be safe for concurrent use.
type Collector interface {
	Collect(ctx context.Context, o Outcome)
}

// Worker processes jobs until its queue is drained or it is stopped.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// FitWorker implements Worker for candidate fits.
type FitWorker struct {
	queue     Queue
	fitter    Fitter
	estimator Estimator
	collector Collector
	name      string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewFitWorker creates a new worker with configuration options.
func NewFitWorker(q Queue, f Fitter, e Estimator, c Collector, opts ...Option) *FitWorker {
	w := &FitWorker{
		queue:     q,
		fitter:    f,
		estimator: e,
		collector: c,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *FitWorker) Run(ctx context.Context) {
	defer close(w.done)
	metrics.AddActiveWorkers(1)
	defer metrics.AddActiveWorkers(-1)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.collector.Collect(ctx, w.process(ctx, job))
		}
	}
}

// Done is closed when Run returns.
func (w *FitWorker) Done() <-chan struct{} { return w.done }

// Shutdown stops the worker after its current job.
func (w *FitWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process fits one candidate, then attaches uncertainty and criteria.
func (w *FitWorker) process(ctx context.Context, job queue.Job) Outcome { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	started := time.Now()
	out := Outcome{Index: job.Index, Name: job.Name}

	opts := append([]fit.FitOption{fit.WithName(job.Name)}, job.Options...)
	res, err := w.fitter.Fit(ctx, job.Engine, job.Series, opts...)
	if err != nil {
		metrics.RecordFit(metrics.OutcomeFailed, time.Since(started))
		w.logger.Error(ctx, "fit failed",
			logger.String("fit.name", job.Name),
			logger.Error(err),
		)
		out.Err = fmt.Errorf("fit %s: %w", job.Name, err)
		return out
	}
	out.Result = res

	if w.estimator != nil {
		u, err := w.estimator.Estimate(ctx, job.Engine, res)
		if err != nil {
			w.logger.Warn(ctx, "uncertainty unavailable",
				logger.String("fit.name", job.Name),
				logger.Error(err),
			)
		} else {
			res.Uncertainty = u
		}
	}

	if err := selection.Attach(res); err != nil {
		w.logger.Debug(ctx, "AICc undefined", logger.String("fit.name", job.Name), logger.Error(err))
	}
	return out
}

// Pool manages multiple workers draining one queue.
type Pool struct {
	workers []*FitWorker
	queue   Queue
	wg      sync.WaitGroup
	logger  logger.Logger
}

// NewPool creates a new worker pool. workerCount < 1 means one worker per CPU.
func NewPool(workerCount int, q Queue, f Fitter, e Estimator, c Collector) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*FitWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewFitWorker(q, f, e, c, WithName("worker-"+strconv.Itoa(i)))
	}
	return p
}

// Size is the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *FitWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned, i.e. the queue was closed
// and drained or the context ended.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Shutdown closes the queue and waits for workers to finish their current
// job.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var errs []error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
