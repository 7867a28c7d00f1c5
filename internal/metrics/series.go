package metrics

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Kind is the accumulation semantics of a series.
type Kind int

const (
	KindCounter Kind = iota + 1
	KindRate
	KindTrend
)

func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindRate:
		return "rate"
	case KindTrend:
		return "trend"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name in JSON summaries.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseKind resolves a kind name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "counter":
		return KindCounter, nil
	case "rate":
		return KindRate, nil
	case "trend":
		return KindTrend, nil
	default:
		return 0, fmt.Errorf("unknown series kind %q", s)
	}
}

// SeriesSnapshot is a consistent view of one series.
type SeriesSnapshot struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`

	// Count is the counter total, the number of rate samples, or the
	// number of trend samples.
	Count int64 `json:"count"`

	// Rate series.
	Successes   int64   `json:"successes"`
	Rate        float64 `json:"rate"`
	RateDefined bool    `json:"rate_defined"`

	// Trend series (milliseconds for latency trends).
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"avg"`
	Sum  float64 `json:"-"`
	P50  float64 `json:"p50"`
	P90  float64 `json:"p90"`
	P95  float64 `json:"p95"`
	P99  float64 `json:"p99"`

	// Approximate is set for live snapshots whose percentiles come from
	// the histogram rather than the exact samples.
	Approximate bool `json:"approximate,omitempty"`

	sorted []float64
	hist   *hdrhistogram.Histogram
}

// seriesJSON is the wire form of a snapshot. Only the fields of the series
// kind are written, zero values included. Rate is absent while undefined
// and trend statistics are absent while there are no samples.
type seriesJSON struct {
	Name        string   `json:"name"`
	Kind        Kind     `json:"kind"`
	Count       int64    `json:"count"`
	Successes   *int64   `json:"successes,omitempty"`
	Rate        *float64 `json:"rate,omitempty"`
	RateDefined *bool    `json:"rate_defined,omitempty"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Mean        *float64 `json:"avg,omitempty"`
	P50         *float64 `json:"p50,omitempty"`
	P90         *float64 `json:"p90,omitempty"`
	P95         *float64 `json:"p95,omitempty"`
	P99         *float64 `json:"p99,omitempty"`
	Approximate bool     `json:"approximate,omitempty"`
}

func (s SeriesSnapshot) MarshalJSON() ([]byte, error) {
	out := seriesJSON{Name: s.Name, Kind: s.Kind, Count: s.Count, Approximate: s.Approximate}
	switch s.Kind {
	case KindRate:
		out.Successes = &s.Successes
		out.RateDefined = &s.RateDefined
		if s.RateDefined {
			out.Rate = &s.Rate
		}
	case KindTrend:
		if s.Count > 0 {
			out.Min, out.Max, out.Mean = &s.Min, &s.Max, &s.Mean
			out.P50, out.P90, out.P95, out.P99 = &s.P50, &s.P90, &s.P95, &s.P99
		}
	}
	return json.Marshal(out)
}

// Percentile returns the p-th percentile (0-100) of a trend snapshot.
// Exact snapshots interpolate linearly between the closest ranks of the
// sorted samples: rank = p/100 * (n-1). Live snapshots read the histogram.
func (s SeriesSnapshot) Percentile(p float64) (float64, bool) {
	if s.Kind != KindTrend || s.Count == 0 {
		return 0, false
	}
	if s.sorted != nil {
		return interpolate(s.sorted, p), true
	}
	if s.hist != nil {
		return float64(s.hist.ValueAtQuantile(p)) / histScale, true
	}
	return 0, false
}

// interpolate computes the linear-interpolation percentile of sorted.
func interpolate(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

type series interface {
	kind() Kind
	add(value float64) error
	snapshot(name string, exact bool) SeriesSnapshot
}

// counter is a monotonically increasing integer total.
type counter struct {
	total atomic.Int64
}

func (c *counter) kind() Kind { return KindCounter }

func (c *counter) add(value float64) error {
	if value < 0 || math.IsNaN(value) {
		return fmt.Errorf("%w: %v", ErrNegativeCounter, value)
	}
	c.total.Add(int64(value))
	return nil
}

func (c *counter) snapshot(name string, _ bool) SeriesSnapshot {
	return SeriesSnapshot{Name: name, Kind: KindCounter, Count: c.total.Load()}
}

// rate tracks the share of non-zero samples.
type rate struct {
	mu        sync.Mutex
	successes int64
	total     int64
}

func (r *rate) kind() Kind { return KindRate }

func (r *rate) add(value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	if value != 0 {
		r.successes++
	}
	return nil
}

func (r *rate) snapshot(name string, _ bool) SeriesSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := SeriesSnapshot{Name: name, Kind: KindRate, Count: r.total, Successes: r.successes}
	if r.total > 0 {
		snap.Rate = float64(r.successes) / float64(r.total)
		snap.RateDefined = true
	}
	return snap
}

// histScale converts trend values (ms) to histogram units (µs).
const histScale = 1000

// trend keeps every sample for exact percentiles, plus a histogram for cheap
// interim quantiles while the run is still writing.
type trend struct {
	mu      sync.Mutex
	samples []float64
	sum     float64
	min     float64
	max     float64
	hist    *hdrhistogram.Histogram
}

func newTrend() *trend {
	// 1µs .. 60s with 3 significant figures.
	return &trend{hist: hdrhistogram.New(1, 60_000_000, 3)}
}

func (t *trend) kind() Kind { return KindTrend }

func (t *trend) add(value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("trend sample must be finite, got %v", value)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.samples) == 0 || value < t.min {
		t.min = value
	}
	if len(t.samples) == 0 || value > t.max {
		t.max = value
	}
	t.samples = append(t.samples, value)
	t.sum += value

	scaled := int64(value * histScale)
	if scaled < t.hist.LowestTrackableValue() {
		scaled = t.hist.LowestTrackableValue()
	}
	if scaled > t.hist.HighestTrackableValue() {
		scaled = t.hist.HighestTrackableValue()
	}
	_ = t.hist.RecordValue(scaled)
	return nil
}

func (t *trend) snapshot(name string, exact bool) SeriesSnapshot {
	t.mu.Lock()
	snap := SeriesSnapshot{
		Name:  name,
		Kind:  KindTrend,
		Count: int64(len(t.samples)),
		Min:   t.min,
		Max:   t.max,
		Sum:   t.sum,
	}
	if snap.Count == 0 {
		t.mu.Unlock()
		return snap
	}
	snap.Mean = t.sum / float64(snap.Count)
	if exact {
		snap.sorted = append([]float64(nil), t.samples...)
	} else {
		snap.hist = hdrhistogram.Import(t.hist.Export())
		snap.Approximate = true
	}
	t.mu.Unlock()

	if snap.sorted != nil {
		sort.Float64s(snap.sorted)
	}
	snap.P50, _ = snap.Percentile(50)
	snap.P90, _ = snap.Percentile(90)
	snap.P95, _ = snap.Percentile(95)
	snap.P99, _ = snap.Percentile(99)
	return snap
}

func newSeries(kind Kind) (series, error) {
	switch kind {
	case KindCounter:
		return &counter{}, nil
	case KindRate:
		return &rate{}, nil
	case KindTrend:
		return newTrend(), nil
	default:
		return nil, fmt.Errorf("unknown series kind %d", kind)
	}
}
