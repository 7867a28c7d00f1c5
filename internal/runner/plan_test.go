package runner

import (
	"math"
	"testing"
	"time"
)

func TestCompilePlanRamp(t *testing.T) {
	p := compilePlan([]Stage{{Duration: 10 * time.Second, StartRate: 10, EndRate: 110}})
	if p.duration != 10*time.Second {
		t.Fatalf("duration = %s", p.duration)
	}
	rate, ok := p.rateAt(5 * time.Second)
	if !ok || math.Abs(rate-60) > 1e-9 {
		t.Fatalf("unexpected ramp rate: %f (ok=%v)", rate, ok)
	}
	if got := p.total; math.Abs(got-600) > 1e-9 {
		t.Fatalf("integral = %f, want 600", got)
	}
}

func TestPlanSkipsEmptyStagesAndEndsAfterLast(t *testing.T) {
	p := compilePlan([]Stage{
		{Duration: 0, StartRate: 99, EndRate: 99},
		{Duration: time.Second, StartRate: 50, EndRate: 50},
		{Duration: 2 * time.Second, StartRate: 100, EndRate: 100},
	})
	if len(p.segments) != 2 {
		t.Fatalf("segments = %d", len(p.segments))
	}
	if rate, _ := p.rateAt(1500 * time.Millisecond); rate != 100 {
		t.Fatalf("expected 100, got %f", rate)
	}
	if _, ok := p.rateAt(3 * time.Second); ok {
		t.Fatalf("expected no rate after end")
	}
}

func TestPlanIntegralInverse(t *testing.T) {
	p := compilePlan([]Stage{
		{Duration: 2 * time.Second},
		{Duration: 4 * time.Second, StartRate: 0, EndRate: 40},
		{Duration: 2 * time.Second, StartRate: 40, EndRate: 10},
	})
	if math.Abs(p.total-(80+50)) > 1e-9 {
		t.Fatalf("total = %f", p.total)
	}
	for _, target := range []float64{0.5, 1, 20, 79.9, 80, 81, 100, 129.5, 130} {
		at, ok := p.timeFor(target)
		if !ok {
			t.Fatalf("timeFor(%v) not found", target)
		}
		if at < 2*time.Second {
			t.Fatalf("timeFor(%v) = %s falls inside the idle stage", target, at)
		}
		if got := p.integralAt(at); math.Abs(got-target) > 1e-3 {
			t.Fatalf("integralAt(timeFor(%v)) = %v", target, got)
		}
	}
	if _, ok := p.timeFor(130.01); ok {
		t.Fatalf("expected no time beyond the curve")
	}
}

func TestPlanStartDelay(t *testing.T) {
	p := compilePlan([]Stage{
		{Duration: time.Second},
		{Duration: time.Second, StartRate: 10, EndRate: 10},
	})
	at, ok := p.timeFor(0.5)
	if !ok {
		t.Fatalf("expected first tick")
	}
	if want := time.Second + 50*time.Millisecond; absDuration(at-want) > time.Microsecond {
		t.Fatalf("first tick at %s, want %s", at, want)
	}
}

func TestUniformTicksSpacing(t *testing.T) {
	src := newTickSource(compilePlan([]Stage{{Duration: time.Second, StartRate: 4, EndRate: 4}}), ArrivalModelUniform, nil, 0)
	want := []time.Duration{125 * time.Millisecond, 375 * time.Millisecond, 625 * time.Millisecond, 875 * time.Millisecond}
	for i, w := range want {
		at, ok := src.next()
		if !ok || absDuration(at-w) > time.Microsecond {
			t.Fatalf("tick %d at %s (ok=%v), want %s", i, at, ok, w)
		}
	}
	if _, ok := src.next(); ok {
		t.Fatalf("expected curve to be exhausted")
	}
}

func TestPoissonTicksUseSampler(t *testing.T) {
	src := newTickSource(compilePlan([]Stage{{Duration: time.Second, StartRate: 200, EndRate: 200}}), ArrivalModelPoisson, func() float64 { return 1 }, 0)
	at, ok := src.next()
	if !ok || absDuration(at-5*time.Millisecond) > time.Microsecond {
		t.Fatalf("first tick at %s, want 5ms", at)
	}
	at, _ = src.next()
	if absDuration(at-10*time.Millisecond) > time.Microsecond {
		t.Fatalf("second tick at %s, want 10ms", at)
	}
}

func TestValidateStages(t *testing.T) {
	tests := []struct {
		name    string
		stages  []Stage
		wantErr bool
	}{
		{"valid", []Stage{{Duration: time.Second, StartRate: 1, EndRate: 2}}, false},
		{"empty", nil, true},
		{"negative rate", []Stage{{Duration: time.Second, StartRate: -1}}, true},
		{"negative duration", []Stage{{Duration: -time.Second, StartRate: 1}, {Duration: 2 * time.Second}}, true},
		{"zero total", []Stage{{Duration: 0, StartRate: 1}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStages(tt.stages)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateStages() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
