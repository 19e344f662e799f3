// Package model contains the plain data passed between the fitting layers.
package model

import (
	"fmt"
	"math"
)

// Event is one storm arrival: its start time and the active duration after
// it during which no new event can begin. Both are in decimal years.
type Event struct {
	Start          float64
	ActiveDuration float64
}

// EventSeries is an ordered sequence of events observed from Start. End is
// the end of observation; zero (or any value not beyond the last busy
// period) means the series has no trail-out interval.
type EventSeries struct {
	Times     []float64
	Durations []float64
	Start     float64
	End       float64
}

// NewEventSeries builds a series from events in the given order.
func NewEventSeries(events []Event, start, end float64) *EventSeries {
	s := &EventSeries{
		Times:     make([]float64, len(events)),
		Durations: make([]float64, len(events)),
		Start:     start,
		End:       end,
	}
	for i, e := range events {
		s.Times[i] = e.Start
		s.Durations[i] = e.ActiveDuration
	}
	return s
}

// Len is the number of events.
func (s *EventSeries) Len() int { return len(s.Times) }

// Events returns the series as a slice of Event.
func (s *EventSeries) Events() []Event {
	out := make([]Event, len(s.Times))
	for i := range s.Times {
		out[i] = Event{Start: s.Times[i], ActiveDuration: s.Durations[i]}
	}
	return out
}

// Gaps returns the inter-event times t_{i+1} - t_i.
func (s *EventSeries) Gaps() []float64 {
	if len(s.Times) < 2 {
		return nil
	}
	out := make([]float64, len(s.Times)-1)
	for i := 1; i < len(s.Times); i++ {
		out[i-1] = s.Times[i] - s.Times[i-1]
	}
	return out
}

// Validate checks shape and ordering. It does not check the non-overtaking
// condition; see Overtaking.
func (s *EventSeries) Validate() error {
	if len(s.Times) != len(s.Durations) {
		return fmt.Errorf("%w: %d times, %d durations", ErrInvalidSeries, len(s.Times), len(s.Durations))
	}
	prev := s.Start
	for i, t := range s.Times {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("%w: time %d is not finite", ErrInvalidSeries, i)
		}
		if t < prev || (i > 0 && t == prev) {
			return fmt.Errorf("%w: time %d (%g) is not after %g", ErrInvalidSeries, i, t, prev)
		}
		d := s.Durations[i]
		if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return fmt.Errorf("%w: duration %d (%g) must be finite and non-negative", ErrInvalidSeries, i, d)
		}
		prev = t
	}
	return nil
}

// Overtaking returns the indexes i where t_i + d_i > t_{i+1}.
func (s *EventSeries) Overtaking() []int {
	var out []int
	for i := 0; i+1 < len(s.Times); i++ {
		if s.Times[i]+s.Durations[i] > s.Times[i+1] {
			out = append(out, i)
		}
	}
	return out
}
