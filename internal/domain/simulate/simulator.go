// Package simulate generates synthetic event sequences from a fitted rate by
// inverting the cumulative intensity one inter-event interval at a time.
package simulate

import (
	"fmt"
	"iter"
	"math"
	"math/rand/v2"

	"github.com/okian/nhpp/internal/domain/likelihood"
	"github.com/okian/nhpp/internal/domain/model"
	"github.com/okian/nhpp/internal/domain/rate"
	"github.com/okian/nhpp/pkg/metrics"
	"gonum.org/v1/gonum/stat/distuv"
)

// State is a step of the simulation loop.
type State int

// Simulation states. HorizonExceeded is terminal.
const (
	AwaitingDraw State = iota
	HaveCandidateTime
	EventEmitted
	HorizonExceeded
)

func (s State) String() string {
	switch s {
	case AwaitingDraw:
		return "AWAITING_DRAW"
	case HaveCandidateTime:
		return "HAVE_CANDIDATE_TIME"
	case EventEmitted:
		return "EVENT_EMITTED"
	case HorizonExceeded:
		return "HORIZON_EXCEEDED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// seedMix decorrelates the second PCG word from the first.
const seedMix = 0x9e3779b97f4a7c15

// Simulator draws event sequences on [start, horizon).
type Simulator struct {
	spec       *rate.Spec
	theta      []float64
	start      float64
	horizon    float64
	integrator *rate.Integrator
	exclusion  likelihood.ExclusionPolicy
	durations  DurationPolicy
	maxEvents  int
	trace      func(State)
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithDurations sets the active-duration policy. The default is zero.
func WithDurations(p DurationPolicy) Option {
	return func(s *Simulator) {
		if p != nil {
			s.durations = p
		}
	}
}

// WithMaxEvents stops a sequence after n events.
func WithMaxEvents(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.maxEvents = n
		}
	}
}

// WithIntegrator sets the quadrature used to invert the intensity.
func WithIntegrator(in *rate.Integrator) Option {
	return func(s *Simulator) {
		if in != nil {
			s.integrator = in
		}
	}
}

// WithExclusion sets how long after an event the next draw starts. Use
// the policy the model was fitted with.
func WithExclusion(p likelihood.ExclusionPolicy) Option {
	return func(s *Simulator) {
		if p != nil {
			s.exclusion = p
		}
	}
}

// WithTrace registers a callback invoked on every state entry.
func WithTrace(fn func(State)) Option {
	return func(s *Simulator) {
		s.trace = fn
	}
}

// New returns a Simulator for the rate spec at theta.
func New(spec *rate.Spec, theta []float64, start, horizon float64, opts ...Option) (*Simulator, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: nil specification", rate.ErrSpecification)
	}
	if err := spec.CheckTheta(theta); err != nil {
		return nil, err
	}
	if !(horizon > start) || math.IsInf(horizon, 0) {
		return nil, fmt.Errorf("%w: start %g, horizon %g", ErrInvalidHorizon, start, horizon)
	}
	s := &Simulator{
		spec:       spec,
		theta:      append([]float64(nil), theta...),
		start:      start,
		horizon:    horizon,
		integrator: rate.NewIntegrator(),
		exclusion:  likelihood.FullExclusion{},
		durations:  FixedDuration(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// FromFit returns a Simulator continuing from the fitted model's
// observation start.
func FromFit(res *model.FitResult, horizon float64, opts ...Option) (*Simulator, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: nil fit result", rate.ErrSpecification)
	}
	return New(res.Spec, res.Theta, res.Start, horizon, opts...)
}

// Sequence returns a lazy, finite event sequence. Each call with the same
// seed yields the same events; iterating again restarts from the beginning.
func (s *Simulator) Sequence(seed uint64) iter.Seq[model.Event] {
	return func(yield func(model.Event) bool) {
		r := rand.New(rand.NewPCG(seed, seed^seedMix))
		unit := distuv.Exponential{Rate: 1, Src: r}

		var (
			state   = AwaitingDraw
			from    = s.start
			tlast   = s.start
			next    float64
			emitted int
		)
		defer func() { metrics.RecordSimulatedSequence(emitted) }()

		for {
			if s.trace != nil {
				s.trace(state)
			}
			switch state {
			case AwaitingDraw:
				if s.maxEvents > 0 && emitted >= s.maxEvents {
					state = HorizonExceeded
					continue
				}
				b, ok := s.integrator.Solve(s.spec, s.theta, from, unit.Rand(), s.horizon, tlast)
				if !ok || b >= s.horizon {
					state = HorizonExceeded
					continue
				}
				next = b
				state = HaveCandidateTime
			case HaveCandidateTime:
				ev := model.Event{Start: next, ActiveDuration: s.durations.Next(r)}
				emitted++
				tlast = ev.Start
				from = s.exclusion.BusyEnd(ev.Start, ev.ActiveDuration)
				state = EventEmitted
				if !yield(ev) {
					return
				}
			case EventEmitted:
				if from >= s.horizon {
					state = HorizonExceeded
				} else {
					state = AwaitingDraw
				}
			default:
				return
			}
		}
	}
}

// Series materialises one sequence as an EventSeries observed over
// [start, horizon].
func (s *Simulator) Series(seed uint64) *model.EventSeries {
	var events []model.Event
	for ev := range s.Sequence(seed) {
		events = append(events, ev)
	}
	return model.NewEventSeries(events, s.start, s.horizon)
}
