// Package metrics provides Prometheus metrics for the NHPP fitting engine.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fit outcome label values.
const (
	OutcomeConverged    = "converged"
	OutcomeNonConverged = "non_converged"
	OutcomeFailed       = "failed"
	OutcomeDuplicate    = "duplicate"
)

// Manager manages all Prometheus metrics for the fitting engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Fitting
	fitsTotal            *prometheus.CounterVec
	fitDuration          prometheus.Histogram
	passDuration         *prometheus.HistogramVec
	likelihoodEvals      prometheus.Counter
	nonPositivePenalties prometheus.Counter

	// Uncertainty and selection
	hessianRepairs       prometheus.Counter
	degenerateCorrection prometheus.Counter

	// Simulation
	simulatedSequences prometheus.Counter
	simulatedEvents    prometheus.Counter

	// Batch plumbing
	queueSize      prometheus.Gauge
	queueCapacity  prometheus.Gauge
	queueRejected  prometheus.Counter
	workerActive   prometheus.Gauge
	batchCandidate prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "nhpp",
		subsystem:        "fit",
		histogramBuckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of metric definitions
	auto := promauto.With(m.registry)

	m.fitsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fits_total",
		Help:      "Total number of candidate fits by outcome",
	}, []string{"outcome"})

	m.fitDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fit_duration_seconds",
		Help:      "Wall time of a complete candidate fit in seconds",
		Buckets:   m.histogramBuckets,
	})

	m.passDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pass_duration_seconds",
		Help:      "Wall time of one optimizer pass in seconds",
		Buckets:   m.histogramBuckets,
	}, []string{"method"})

	m.likelihoodEvals = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "likelihood_evaluations_total",
		Help:      "Total number of negative log-likelihood evaluations",
	})

	m.nonPositivePenalties = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "nonpositive_rate_penalties_total",
		Help:      "Likelihood evaluations replaced by the penalty because the rate was non-positive at an event",
	})

	m.hessianRepairs = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "hessian_repairs_total",
		Help:      "Hessians that were not positive definite and were repaired",
	})

	m.degenerateCorrection = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "degenerate_aicc_total",
		Help:      "Candidates excluded from ranking because n-k-1 <= 0",
	})

	m.simulatedSequences = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "simulated_sequences_total",
		Help:      "Synthetic event sequences generated",
	})

	m.simulatedEvents = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "simulated_events_total",
		Help:      "Synthetic events emitted by the simulator",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Fit jobs waiting in the queue",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Capacity of the fit job queue",
	})

	m.queueRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_rejected_total",
		Help:      "Fit jobs rejected because the queue was closed or full",
	})

	m.workerActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "workers_active",
		Help:      "Fit workers currently running",
	})

	m.batchCandidate = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batch_candidates",
		Help:      "Candidates in the current batch",
	})
}

// RecordFit counts a finished candidate fit and its duration.
func RecordFit(outcome string, elapsed time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.fitsTotal.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		globalManager.fitDuration.Observe(elapsed.Seconds())
	}
}

// RecordPass records the duration of a single optimizer pass.
func RecordPass(method string, elapsed time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.passDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// RecordLikelihoodEvaluation counts one negative log-likelihood evaluation.
func RecordLikelihoodEvaluation() {
	if !globalManager.enabled {
		return
	}
	globalManager.likelihoodEvals.Inc()
}

// RecordNonPositivePenalty counts a penalised likelihood evaluation.
func RecordNonPositivePenalty() {
	if !globalManager.enabled {
		return
	}
	globalManager.nonPositivePenalties.Inc()
}

// RecordHessianRepair counts a Hessian that needed positive-definite repair.
func RecordHessianRepair() {
	if !globalManager.enabled {
		return
	}
	globalManager.hessianRepairs.Inc()
}

// RecordDegenerateCorrection counts a candidate excluded for a degenerate AICc.
func RecordDegenerateCorrection() {
	if !globalManager.enabled {
		return
	}
	globalManager.degenerateCorrection.Inc()
}

// RecordSimulatedSequence counts a finished synthetic sequence and its events.
func RecordSimulatedSequence(events int) {
	if !globalManager.enabled {
		return
	}
	globalManager.simulatedSequences.Inc()
	globalManager.simulatedEvents.Add(float64(events))
}

// UpdateQueueSize sets the current fit queue length.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the fit queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueRejected counts a rejected enqueue.
func RecordQueueRejected() {
	globalManager.queueRejected.Inc()
}

// AddActiveWorkers adjusts the running worker gauge by delta.
func AddActiveWorkers(delta int) {
	globalManager.workerActive.Add(float64(delta))
}

// UpdateBatchCandidates sets the number of candidates in the current batch.
func UpdateBatchCandidates(count int) {
	globalManager.batchCandidate.Set(float64(count))
}

// SetEnabled turns recording of the fitting metrics on or off.
func SetEnabled(enabled bool) {
	globalManager.enabled = enabled
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile writes the current registry in the Prometheus text format.
func WriteTextfile(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrObserveFailed)
	}
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %w", ErrObserveFailed, err)
	}
	return nil
}
