package engine

import (
	"sort"
	"time"

	"github.com/torosent/shortfire/internal/metrics"
	"github.com/torosent/shortfire/internal/runner"
	"github.com/torosent/shortfire/internal/threshold"
)

// Summary is the structured result of one run.
type Summary struct {
	RunID        string                    `json:"run_id"`
	Scenario     string                    `json:"scenario"`
	Description  string                    `json:"description,omitempty"`
	Seed         int64                     `json:"seed"`
	StartedAt    time.Time                 `json:"started_at"`
	Duration     time.Duration             `json:"-"`
	DurationMs   float64                   `json:"duration_ms"`
	Interrupted  bool                      `json:"interrupted,omitempty"`
	Setup        SetupStats                `json:"setup"`
	Streams      []runner.Result           `json:"streams"`
	Metrics      metrics.Snapshot          `json:"metrics"`
	Status       []metrics.StatusBucket    `json:"status,omitempty"`
	Errors       []ErrorBucket             `json:"errors,omitempty"`
	Thresholds   threshold.Report          `json:"thresholds"`
	CacheQuality *threshold.QualityVerdict `json:"cache_quality,omitempty"`
}

// ErrorBucket counts failures of one request kind by error type.
type ErrorBucket struct {
	Kind  string `json:"kind"`
	Type  string `json:"type"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Verdict folds the threshold report and the cache quality rule: the worse
// of the two wins.
func (s *Summary) Verdict() threshold.Verdict {
	v := s.Thresholds.Overall
	if v == "" {
		v = threshold.VerdictPass
	}
	if s.CacheQuality != nil {
		v = worse(v, s.CacheQuality.Verdict)
	}
	return v
}

// Totals sums the per-stream scheduler results.
func (s *Summary) Totals() runner.Result {
	total := runner.Result{Stream: "total", Duration: s.Duration}
	for _, r := range s.Streams {
		total.Attempted += r.Attempted
		total.Issued += r.Issued
		total.Dropped += r.Dropped
		total.Completed += r.Completed
		total.Failed += r.Failed
		total.Incomplete += r.Incomplete
	}
	return total
}

func worse(a, b threshold.Verdict) threshold.Verdict {
	rank := map[threshold.Verdict]int{threshold.VerdictPass: 0, threshold.VerdictWarn: 1, threshold.VerdictFail: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// errorBuckets extracts the errors{kind,type} counters, largest first.
func errorBuckets(snap metrics.Snapshot) []ErrorBucket {
	var out []ErrorBucket
	for name, s := range snap.Series {
		base, tags, err := metrics.ParseName(name)
		if err != nil || base != SeriesErrors || s.Kind != metrics.KindCounter {
			continue
		}
		b := ErrorBucket{Count: s.Count}
		for _, t := range tags {
			switch t.Key {
			case "kind":
				b.Kind = t.Value
			case "type":
				b.Type = t.Value
			}
		}
		b.Name = metrics.FriendlyErrorName(b.Type)
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Type < out[j].Type
	})
	return out
}
