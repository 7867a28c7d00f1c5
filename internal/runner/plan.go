package runner

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Stage is one linear segment of a stream's rate curve. The rate moves from
// StartRate to EndRate (ticks per second) over Duration. A stage with both
// rates at zero holds the stream idle, which is how start delays are modelled.
type Stage struct {
	Duration  time.Duration `mapstructure:"duration" yaml:"duration" json:"duration"`
	StartRate float64       `mapstructure:"start_rate" yaml:"start_rate" json:"start_rate"`
	EndRate   float64       `mapstructure:"end_rate" yaml:"end_rate" json:"end_rate"`
}

// ErrInvalidStage is wrapped by ValidateStages.
var ErrInvalidStage = errors.New("invalid stage")

// ValidateStages checks that durations and rates are non-negative and that
// the sequence has a positive total duration.
func ValidateStages(stages []Stage) error {
	if len(stages) == 0 {
		return fmt.Errorf("%w: no stages", ErrInvalidStage)
	}
	var total time.Duration
	var errs []error
	for i, st := range stages {
		if st.Duration < 0 {
			errs = append(errs, fmt.Errorf("%w: stage %d duration %s is negative", ErrInvalidStage, i, st.Duration))
		}
		if st.StartRate < 0 || st.EndRate < 0 || math.IsNaN(st.StartRate) || math.IsNaN(st.EndRate) {
			errs = append(errs, fmt.Errorf("%w: stage %d rates must be >= 0", ErrInvalidStage, i))
		}
		total += st.Duration
	}
	if total <= 0 {
		errs = append(errs, fmt.Errorf("%w: total duration must be > 0", ErrInvalidStage))
	}
	return errors.Join(errs...)
}

// plan is the compiled rate curve with zero-length stages removed.
type plan struct {
	segments []segment
	duration time.Duration
	total    float64
}

type segment struct {
	start    time.Duration
	duration time.Duration
	fromRate float64
	toRate   float64
	before   float64 // integral of the curve up to start
}

func compilePlan(stages []Stage) *plan {
	p := &plan{}
	var offset time.Duration
	var acc float64
	for _, st := range stages {
		if st.Duration <= 0 {
			continue
		}
		seg := segment{
			start:    offset,
			duration: st.Duration,
			fromRate: math.Max(st.StartRate, 0),
			toRate:   math.Max(st.EndRate, 0),
			before:   acc,
		}
		p.segments = append(p.segments, seg)
		acc += seg.area()
		offset += st.Duration
	}
	p.duration = offset
	p.total = acc
	return p
}

// area is the expected tick count of the whole segment: the trapezoid.
func (s segment) area() float64 {
	return (s.fromRate + s.toRate) / 2 * s.duration.Seconds()
}

// slope is the rate change per second.
func (s segment) slope() float64 {
	return (s.toRate - s.fromRate) / s.duration.Seconds()
}

func (p *plan) rateAt(elapsed time.Duration) (float64, bool) {
	if p == nil || elapsed < 0 || elapsed >= p.duration {
		return 0, false
	}
	for _, seg := range p.segments {
		if elapsed >= seg.start+seg.duration {
			continue
		}
		tau := (elapsed - seg.start).Seconds()
		return seg.fromRate + seg.slope()*tau, true
	}
	return 0, false
}

// integralAt returns the expected number of ticks in [0, elapsed).
func (p *plan) integralAt(elapsed time.Duration) float64 {
	if p == nil || elapsed <= 0 {
		return 0
	}
	if elapsed >= p.duration {
		return p.total
	}
	for _, seg := range p.segments {
		if elapsed >= seg.start+seg.duration {
			continue
		}
		tau := (elapsed - seg.start).Seconds()
		return seg.before + seg.fromRate*tau + seg.slope()*tau*tau/2
	}
	return p.total
}

// timeFor inverts integralAt: it returns the earliest offset at which the
// cumulative expected count reaches target. ok is false when the curve ends
// first.
func (p *plan) timeFor(target float64) (time.Duration, bool) {
	if p == nil || target > p.total || target <= 0 {
		return 0, false
	}
	for _, seg := range p.segments {
		area := seg.area()
		if area <= 0 || seg.before+area < target {
			continue
		}
		x := target - seg.before
		a := seg.fromRate
		k := seg.slope() / 2
		// Solve k*tau^2 + a*tau = x in the form that stays stable as k -> 0.
		disc := a*a + 4*k*x
		if disc < 0 {
			disc = 0
		}
		denom := a + math.Sqrt(disc)
		if denom <= 0 {
			continue
		}
		tau := 2 * x / denom
		if limit := seg.duration.Seconds(); tau > limit {
			tau = limit
		}
		return seg.start + time.Duration(tau*float64(time.Second)), true
	}
	return 0, false
}
