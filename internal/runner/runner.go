package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Result captures one stream's execution summary.
// Issued + Dropped == Attempted and Completed + Failed + Incomplete == Issued.
type Result struct {
	Stream     string        `json:"stream"`
	Attempted  int64         `json:"attempted"`
	Issued     int64         `json:"issued"`
	Dropped    int64         `json:"dropped"`
	Completed  int64         `json:"completed"`
	Failed     int64         `json:"failed"`
	Incomplete int64         `json:"incomplete"`
	Duration   time.Duration `json:"duration"`
}

// PanicError is reported when a requester panics.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("requester panic: %v", e.Value)
}

// Run drives s from now until its stages are exhausted or ctx is done.
func (s Stream) Run(ctx context.Context) Result {
	return s.runFrom(ctx, time.Now())
}

// RunAll runs every stream concurrently on one shared timeline and returns
// their results in argument order.
func RunAll(ctx context.Context, streams ...Stream) []Result {
	results := make([]Result, len(streams))
	start := time.Now()
	var g errgroup.Group
	for i := range streams {
		g.Go(func() error {
			results[i] = streams[i].runFrom(ctx, start)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s Stream) runFrom(ctx context.Context, start time.Time) Result {
	s.normalize()
	p := compilePlan(s.Stages)
	ticks := newTickSource(p, s.Arrival, s.PoissonSampler, s.Seed)

	var (
		res        = Result{Stream: s.Name}
		completed  atomic.Int64
		failed     atomic.Int64
		incomplete atomic.Int64
		abandoned  atomic.Bool
		wg         sync.WaitGroup
	)

	// In-flight work outlives ctx so that stopping the run only halts new
	// ticks; it is cancelled separately once the drain grace expires.
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	slots := make(chan struct{}, s.MaxInFlight)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

ticking:
	for {
		at, ok := ticks.next()
		if !ok {
			break
		}
		if wait := time.Until(start.Add(at)); wait > 0 {
			if timer == nil {
				timer = time.NewTimer(wait)
			} else {
				timer.Reset(wait)
			}
			select {
			case <-ctx.Done():
				break ticking
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			break
		}

		res.Attempted++
		select {
		case slots <- struct{}{}:
		default:
			res.Dropped++
			if s.Hooks.OnDropped != nil {
				s.Hooks.OnDropped()
			}
			continue
		}
		res.Issued++
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-slots }()
			err := s.do(workCtx)
			switch {
			// Only work cut off by the drain grace is incomplete. A request
			// that finished on its own after the grace keeps its outcome.
			case abandoned.Load() && errors.Is(err, context.Canceled):
				incomplete.Add(1)
				if s.Hooks.OnIncomplete != nil {
					s.Hooks.OnIncomplete()
				}
				return
			case err != nil:
				failed.Add(1)
			default:
				completed.Add(1)
			}
			if s.Hooks.OnDone != nil {
				s.Hooks.OnDone(err)
			}
		}()
	}

	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()
	grace := time.NewTimer(s.DrainGrace)
	select {
	case <-drained:
		grace.Stop()
	case <-grace.C:
		abandoned.Store(true)
		cancelWork()
		<-drained
	}

	res.Completed = completed.Load()
	res.Failed = failed.Load()
	res.Incomplete = incomplete.Load()
	res.Duration = time.Since(start)
	return res
}

func (s Stream) do(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	if s.Requester == nil {
		return nil
	}
	return s.Requester.Do(ctx)
}
