package threshold

import (
	"fmt"

	"github.com/torosent/shortfire/internal/metrics"
)

// CacheQuality is the derived "is the cache effective" rule. It reads the
// latency-inferred cache series, so it is only as good as that heuristic.
type CacheQuality struct {
	HitRateSeries      string
	CachedTimeSeries   string
	UncachedTimeSeries string

	PassHitRatio   float64 // hit ratio strictly above this and ...
	MaxCachedAvgMs float64 // ... average hit latency strictly below this pass
	WarnHitRatio   float64 // hit ratio strictly above this warns
}

// DefaultCacheQuality returns the rule with its standard series and limits.
func DefaultCacheQuality() CacheQuality {
	return CacheQuality{
		HitRateSeries:      "cache_hit_rate",
		CachedTimeSeries:   "cached_response_time",
		UncachedTimeSeries: "uncached_response_time",
		PassHitRatio:       0.80,
		MaxCachedAvgMs:     50,
		WarnHitRatio:       0.60,
	}
}

// QualityVerdict is the outcome of CacheQuality.
type QualityVerdict struct {
	Name          string  `json:"name"`
	Verdict       Verdict `json:"verdict"`
	HitRatio      float64 `json:"hit_ratio"`
	MissRatio     float64 `json:"miss_ratio"`
	CachedAvgMs   float64 `json:"cached_avg_ms"`
	UncachedAvgMs float64 `json:"uncached_avg_ms"`
	// GainPercent is how much faster hits were than misses on average;
	// zero when there were no misses.
	GainPercent float64 `json:"gain_percent"`
	Samples     int64   `json:"samples"`
	Message     string  `json:"message"`
}

// Evaluate applies the rule to snap. Like Evaluator it never fails.
func (q CacheQuality) Evaluate(snap metrics.Snapshot) QualityVerdict {
	v := QualityVerdict{Name: "cache effective", Verdict: VerdictFail}

	hit, ok := snap.Lookup(q.HitRateSeries)
	if !ok || !hit.RateDefined {
		v.Message = "no successful redirects were classified; cache effectiveness unknown"
		return v
	}
	v.HitRatio = hit.Rate
	v.MissRatio = 1 - hit.Rate
	v.Samples = hit.Count
	if s, ok := snap.Lookup(q.CachedTimeSeries); ok {
		v.CachedAvgMs = s.Mean
	}
	if s, ok := snap.Lookup(q.UncachedTimeSeries); ok {
		v.UncachedAvgMs = s.Mean
	}
	if v.UncachedAvgMs > 0 {
		v.GainPercent = (v.UncachedAvgMs - v.CachedAvgMs) / v.UncachedAvgMs * 100
	}

	switch {
	case v.HitRatio > q.PassHitRatio && v.CachedAvgMs < q.MaxCachedAvgMs:
		v.Verdict = VerdictPass
		v.Message = "caching is working effectively"
	case v.HitRatio > q.WarnHitRatio:
		v.Verdict = VerdictWarn
		v.Message = "cache hit rate could be better"
	default:
		v.Message = "caching may not be working properly"
	}
	v.Message = fmt.Sprintf("%s (hit ratio %.2f%%, avg hit %.2fms)", v.Message, v.HitRatio*100, v.CachedAvgMs)
	return v
}
