package runner

import (
	"context"
	"time"
)

// Requester abstracts executing a single request operation.
// Implementations should return an error for failed requests.
type Requester interface {
	Do(ctx context.Context) error
}

// RequesterFunc adapts a function to Requester.
type RequesterFunc func(ctx context.Context) error

func (f RequesterFunc) Do(ctx context.Context) error { return f(ctx) }

// DefaultDrainGrace bounds how long in-flight work may run after the last tick.
const DefaultDrainGrace = 10 * time.Second

// Hooks observe stream events. Any field may be nil. Hooks run on the
// scheduler goroutine (OnDropped) or on worker goroutines, so they must be
// cheap and safe for concurrent use.
type Hooks struct {
	OnDropped    func()
	OnIncomplete func()
	OnDone       func(err error)
}

// Stream is one independently paced workload.
type Stream struct {
	Name        string
	Stages      []Stage
	MaxInFlight int           // concurrency cap; ticks beyond it are dropped
	Arrival     ArrivalModel  // uniform when empty
	DrainGrace  time.Duration // DefaultDrainGrace when zero
	Requester   Requester
	Hooks       Hooks

	// Seed feeds the default Poisson sampler; PoissonSampler overrides it
	// and must return Exp(1) variates.
	Seed           int64
	PoissonSampler func() float64
}

func (s *Stream) normalize() {
	if s.MaxInFlight <= 0 {
		s.MaxInFlight = 1
	}
	if s.Arrival == "" {
		s.Arrival = ArrivalModelUniform
	}
	if s.DrainGrace <= 0 {
		s.DrainGrace = DefaultDrainGrace
	}
}

// Duration is the sum of the stage durations.
func (s Stream) Duration() time.Duration {
	var total time.Duration
	for _, st := range s.Stages {
		if st.Duration > 0 {
			total += st.Duration
		}
	}
	return total
}

// ExpectedTicks is the integral of the rate curve: the tick count an
// unconstrained run would attempt on average.
func (s Stream) ExpectedTicks() float64 {
	return compilePlan(s.Stages).total
}

// RateAt returns the configured rate at elapsed, or false past the end.
func (s Stream) RateAt(elapsed time.Duration) (float64, bool) {
	return compilePlan(s.Stages).rateAt(elapsed)
}
