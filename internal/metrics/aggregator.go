package metrics

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrKindMismatch is returned when a sample targets an existing series of
	// a different kind.
	ErrKindMismatch = errors.New("metrics: series kind mismatch")
	// ErrNegativeCounter is returned for negative counter increments.
	ErrNegativeCounter = errors.New("metrics: counter increment must be >= 0")
)

// Aggregator owns every series of a run. Series are created lazily on first
// write; each series synchronises independently so writers to different
// names never contend.
type Aggregator struct {
	series sync.Map // map[string]series
	start  time.Time
}

// Snapshot is a point-in-time view of all series.
type Snapshot struct {
	Series  map[string]SeriesSnapshot `json:"series"`
	Elapsed time.Duration             `json:"-"`
	// ElapsedMs mirrors Elapsed for JSON output.
	ElapsedMs float64 `json:"elapsed_ms"`
}

// Lookup returns the named series snapshot.
func (s Snapshot) Lookup(name string) (SeriesSnapshot, bool) {
	snap, ok := s.Series[name]
	return snap, ok
}

// Names returns the series names in lexical order.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.Series))
	for name := range s.Series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PerSecond returns the counter total divided by the elapsed time.
func (s Snapshot) PerSecond(name string) (float64, bool) {
	snap, ok := s.Series[name]
	if !ok || snap.Kind != KindCounter || s.Elapsed <= 0 {
		return 0, false
	}
	return float64(snap.Count) / s.Elapsed.Seconds(), true
}

func NewAggregator() *Aggregator {
	return &Aggregator{start: time.Now()}
}

// Start marks the beginning of the measured run.
func (a *Aggregator) Start() {
	a.start = time.Now()
}

// Elapsed returns the time since Start.
func (a *Aggregator) Elapsed() time.Duration {
	return time.Since(a.start)
}

// Record adds value to the named series, creating it with kind if needed.
// Counter: total += value. Rate: a non-zero value counts as a success.
// Trend: value is appended to the sample set.
func (a *Aggregator) Record(name string, kind Kind, value float64) error {
	s, err := a.lookupOrCreate(name, kind)
	if err != nil {
		return err
	}
	return s.add(value)
}

// Count increments a counter by one.
func (a *Aggregator) Count(name string) {
	_ = a.Record(name, KindCounter, 1)
}

// Observe adds a boolean sample to a rate series.
func (a *Aggregator) Observe(name string, ok bool) {
	v := 0.0
	if ok {
		v = 1
	}
	_ = a.Record(name, KindRate, v)
}

// Latency adds d, in milliseconds, to a trend series.
func (a *Aggregator) Latency(name string, d time.Duration) {
	_ = a.Record(name, KindTrend, float64(d)/float64(time.Millisecond))
}

func (a *Aggregator) lookupOrCreate(name string, kind Kind) (series, error) {
	if v, ok := a.series.Load(name); ok {
		return checkKind(name, v.(series), kind)
	}
	fresh, err := newSeries(kind)
	if err != nil {
		return nil, err
	}
	v, _ := a.series.LoadOrStore(name, fresh)
	return checkKind(name, v.(series), kind)
}

func checkKind(name string, s series, kind Kind) (series, error) {
	if s.kind() != kind {
		return nil, fmt.Errorf("%w: %q is a %s, not a %s", ErrKindMismatch, name, s.kind(), kind)
	}
	return s, nil
}

// Snapshot returns exact values for every series. Intended for use after all
// writers have quiesced; each series is still copied under its own lock so
// an interim call never sees a half-applied sample.
func (a *Aggregator) Snapshot(elapsed time.Duration) Snapshot {
	return a.collect(elapsed, true)
}

// LiveSnapshot is a cheaper Snapshot whose trend percentiles are read from
// the histogram instead of sorting every sample.
func (a *Aggregator) LiveSnapshot(elapsed time.Duration) Snapshot {
	return a.collect(elapsed, false)
}

func (a *Aggregator) collect(elapsed time.Duration, exact bool) Snapshot {
	snap := Snapshot{
		Series:    make(map[string]SeriesSnapshot),
		Elapsed:   elapsed,
		ElapsedMs: float64(elapsed) / float64(time.Millisecond),
	}
	a.series.Range(func(key, value any) bool {
		name := key.(string)
		snap.Series[name] = value.(series).snapshot(name, exact)
		return true
	})
	return snap
}
