package runner

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// ArrivalModel selects how tick times are spread along the rate curve.
type ArrivalModel string

const (
	// ArrivalModelUniform places the n-th tick where the expected count
	// reaches n - 0.5, giving evenly spaced ticks at constant rate.
	ArrivalModelUniform ArrivalModel = "uniform"
	// ArrivalModelPoisson draws exponential gaps in expected-count space,
	// a time-rescaled non-homogeneous Poisson process.
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// ParseArrivalModel resolves a model name; empty means uniform.
func ParseArrivalModel(s string) (ArrivalModel, error) {
	switch ArrivalModel(strings.ToLower(strings.TrimSpace(s))) {
	case "", ArrivalModelUniform:
		return ArrivalModelUniform, nil
	case ArrivalModelPoisson:
		return ArrivalModelPoisson, nil
	default:
		return "", fmt.Errorf("unknown arrival model %q", s)
	}
}

// tickSource yields successive tick offsets from the stream start.
type tickSource interface {
	next() (time.Duration, bool)
}

func newTickSource(p *plan, model ArrivalModel, sampler func() float64, seed int64) tickSource {
	if model == ArrivalModelPoisson {
		if sampler == nil {
			sampler = rand.New(rand.NewSource(seed)).ExpFloat64
		}
		return &poissonTicks{plan: p, sample: sampler}
	}
	return &uniformTicks{plan: p}
}

type uniformTicks struct {
	plan *plan
	n    int64
}

func (u *uniformTicks) next() (time.Duration, bool) {
	u.n++
	return u.plan.timeFor(float64(u.n) - 0.5)
}

type poissonTicks struct {
	plan   *plan
	sample func() float64
	acc    float64
}

func (p *poissonTicks) next() (time.Duration, bool) {
	p.acc += p.sample()
	return p.plan.timeFor(p.acc)
}
