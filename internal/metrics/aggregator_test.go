package metrics_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/shortfire/internal/metrics"
)

func TestCounter(t *testing.T) {
	agg := metrics.NewAggregator()
	for i := 0; i < 5; i++ {
		agg.Count("http_reqs")
	}
	require.NoError(t, agg.Record("http_reqs", metrics.KindCounter, 3))
	assert.ErrorIs(t, agg.Record("http_reqs", metrics.KindCounter, -1), metrics.ErrNegativeCounter)

	snap := agg.Snapshot(2 * time.Second)
	s, ok := snap.Lookup("http_reqs")
	require.True(t, ok)
	assert.Equal(t, int64(8), s.Count)

	perSec, ok := snap.PerSecond("http_reqs")
	require.True(t, ok)
	assert.InDelta(t, 4.0, perSec, 1e-9)
}

func TestRate(t *testing.T) {
	agg := metrics.NewAggregator()
	for _, v := range []float64{1, 1, 0, 1} {
		require.NoError(t, agg.Record("success_rate", metrics.KindRate, v))
	}
	s := agg.Snapshot(0).Series["success_rate"]
	assert.True(t, s.RateDefined)
	assert.InDelta(t, 0.75, s.Rate, 1e-9)
	assert.Equal(t, int64(4), s.Count)
	assert.Equal(t, int64(3), s.Successes)
}

func TestTrendPercentilesInterpolate(t *testing.T) {
	agg := metrics.NewAggregator()
	// Recorded out of order on purpose.
	for v := 1000; v >= 10; v -= 10 {
		require.NoError(t, agg.Record("http_req_duration", metrics.KindTrend, float64(v)))
	}
	s := agg.Snapshot(0).Series["http_req_duration"]
	require.Equal(t, int64(100), s.Count)
	assert.InDelta(t, 10.0, s.Min, 1e-9)
	assert.InDelta(t, 1000.0, s.Max, 1e-9)
	assert.InDelta(t, 505.0, s.Mean, 1e-9)
	assert.InDelta(t, 505.0, s.P50, 1e-9)
	assert.InDelta(t, 950.5, s.P95, 1e-9)
	assert.InDelta(t, 990.1, s.P99, 1e-9)

	p0, ok := s.Percentile(0)
	require.True(t, ok)
	assert.InDelta(t, 10.0, p0, 1e-9)
	p100, _ := s.Percentile(100)
	assert.InDelta(t, 1000.0, p100, 1e-9)
	assert.False(t, s.Approximate)
}

func TestSingleSampleTrend(t *testing.T) {
	agg := metrics.NewAggregator()
	agg.Latency("redirect_duration", 42*time.Millisecond)
	s := agg.Snapshot(0).Series["redirect_duration"]
	assert.InDelta(t, 42.0, s.P95, 1e-9)
	assert.InDelta(t, 42.0, s.Mean, 1e-9)
}

func TestLiveSnapshotIsApproximate(t *testing.T) {
	agg := metrics.NewAggregator()
	for v := 10; v <= 1000; v += 10 {
		agg.Latency("http_req_duration", time.Duration(v)*time.Millisecond)
	}
	s := agg.LiveSnapshot(time.Second).Series["http_req_duration"]
	assert.True(t, s.Approximate)
	assert.InDelta(t, 950.5, s.P95, 10)
	assert.InDelta(t, 505.0, s.Mean, 1e-9)
}

func TestKindMismatch(t *testing.T) {
	agg := metrics.NewAggregator()
	agg.Count("cache_hit")
	err := agg.Record("cache_hit", metrics.KindRate, 1)
	assert.ErrorIs(t, err, metrics.ErrKindMismatch)

	s := agg.Snapshot(0).Series["cache_hit"]
	assert.Equal(t, metrics.KindCounter, s.Kind)
	assert.Equal(t, int64(1), s.Count)
}

func TestEmptySeries(t *testing.T) {
	agg := metrics.NewAggregator()
	snap := agg.Snapshot(0)
	_, ok := snap.Lookup("missing")
	assert.False(t, ok)
	_, ok = snap.PerSecond("missing")
	assert.False(t, ok)
	assert.Empty(t, snap.Names())
}

func TestConcurrentRecording(t *testing.T) {
	agg := metrics.NewAggregator()
	const workers, perWorker = 8, 500

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				agg.Count("http_reqs")
				agg.Observe("success_rate", i%2 == 0)
				agg.Latency("http_req_duration", time.Duration(i)*time.Microsecond)
				if i%100 == 0 {
					_ = agg.LiveSnapshot(time.Second)
				}
			}
		}(w)
	}
	wg.Wait()

	snap := agg.Snapshot(time.Second)
	assert.Equal(t, int64(workers*perWorker), snap.Series["http_reqs"].Count)
	assert.Equal(t, int64(workers*perWorker), snap.Series["success_rate"].Count)
	assert.InDelta(t, 0.5, snap.Series["success_rate"].Rate, 1e-9)
	assert.Equal(t, int64(workers*perWorker), snap.Series["http_req_duration"].Count)
	assert.Equal(t, []string{"http_req_duration", "http_reqs", "success_rate"}, snap.Names())
}

func TestTaggedNames(t *testing.T) {
	name := metrics.Tagged("http_req_duration", metrics.Tag{Key: "type", Value: "redirect"})
	assert.Equal(t, "http_req_duration{type:redirect}", name)

	canon, err := metrics.Canonical("http_status{kind:viral, code:302}")
	require.NoError(t, err)
	assert.Equal(t, "http_status{code:302,kind:viral}", canon)

	base, tags, err := metrics.ParseName("capacity_exceeded{stream:redirects}")
	require.NoError(t, err)
	assert.Equal(t, "capacity_exceeded", base)
	assert.Equal(t, []metrics.Tag{{Key: "stream", Value: "redirects"}}, tags)

	for _, bad := range []string{"x{", "x}", "{a:b}", "x{a}", "x{a:}"} {
		_, _, err := metrics.ParseName(bad)
		assert.Error(t, err, bad)
	}
}
