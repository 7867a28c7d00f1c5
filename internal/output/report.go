package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/torosent/shortfire/internal/engine"
	"github.com/torosent/shortfire/internal/metrics"
	"github.com/torosent/shortfire/internal/runner"
	"github.com/torosent/shortfire/internal/threshold"
)

// latencySeries are printed, when present, in this order. Tagged
// http_req_duration series follow them.
var latencySeries = []string{
	engine.SeriesHTTPReqDuration,
	engine.SeriesCreationDuration,
	engine.SeriesRedirectDuration,
	engine.SeriesCachedTime,
	engine.SeriesUncachedTime,
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, s *engine.Summary) {
	fmt.Fprintf(w, "\n--- Load Test Results: %s ---\n", s.Scenario)
	fmt.Fprintf(w, "Run ID:            %s\n", s.RunID)
	fmt.Fprintf(w, "Seed:              %d\n", s.Seed)
	fmt.Fprintf(w, "Duration:          %s\n", s.Duration.Round(time.Millisecond))
	if s.Interrupted {
		fmt.Fprintln(w, "Interrupted:       yes")
	}
	fmt.Fprintf(w, "Setup:             created=%d existing=%d failed=%d from_file=%d (%s)\n",
		s.Setup.Created, s.Setup.Existing, s.Setup.Failed, s.Setup.FromFile, s.Setup.Duration.Round(time.Millisecond))

	if reqs, ok := s.Metrics.Lookup(engine.SeriesHTTPReqs); ok {
		perSec, _ := s.Metrics.PerSecond(engine.SeriesHTTPReqs)
		fmt.Fprintf(w, "Total Requests:    %d\n", reqs.Count)
		fmt.Fprintf(w, "Requests/sec:      %.2f\n", perSec)
	}
	if failed, ok := s.Metrics.Lookup(engine.SeriesHTTPReqFailed); ok && failed.RateDefined {
		fmt.Fprintf(w, "Failed:            %d (%.2f%%)\n", failed.Successes, failed.Rate*100)
	}

	fmt.Fprintln(w, "\nStreams:")
	rows := append(append([]runner.Result(nil), s.Streams...), s.Totals())
	for _, r := range rows {
		fmt.Fprintf(w, "  - %s: attempted=%d issued=%d dropped=%d completed=%d failed=%d incomplete=%d\n",
			r.Stream, r.Attempted, r.Issued, r.Dropped, r.Completed, r.Failed, r.Incomplete)
	}

	writeLatency(w, s.Metrics)
	writeCache(w, s.Metrics)

	if len(s.Status) > 0 {
		fmt.Fprintln(w, "\nStatus Buckets:")
		writeStatusBuckets(w, s.Status, "  ")
	}
	if len(s.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s (%s): %d\n", e.Name, e.Kind, e.Count)
		}
	}

	writeThresholds(w, s.Thresholds)
	if q := s.CacheQuality; q != nil {
		fmt.Fprintf(w, "\nCache Quality:     %s - %s\n", strings.ToUpper(string(q.Verdict)), q.Message)
	}
	fmt.Fprintf(w, "\nVerdict:           %s\n", strings.ToUpper(string(s.Verdict())))
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, s *engine.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonSummary{Summary: s, Verdict: s.Verdict()})
}

type jsonSummary struct {
	*engine.Summary
	Verdict threshold.Verdict `json:"verdict"`
}

func writeLatency(w io.Writer, snap metrics.Snapshot) {
	names := make([]string, 0, len(latencySeries))
	for _, name := range latencySeries {
		if _, ok := snap.Lookup(name); ok {
			names = append(names, name)
		}
	}
	for _, name := range snap.Names() {
		if base, tags, err := metrics.ParseName(name); err == nil && base == engine.SeriesHTTPReqDuration && len(tags) > 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return
	}

	fmt.Fprintln(w, "\nLatency (ms):")
	fmt.Fprintf(w, "  %-36s %8s %8s %8s %8s %8s %8s %8s\n", "series", "count", "avg", "min", "p50", "p95", "p99", "max")
	for _, name := range names {
		t, _ := snap.Lookup(name)
		fmt.Fprintf(w, "  %-36s %8d %8.2f %8.2f %8.2f %8.2f %8.2f %8.2f\n",
			name, t.Count, t.Mean, t.Min, t.P50, t.P95, t.P99, t.Max)
	}
}

func writeCache(w io.Writer, snap metrics.Snapshot) {
	hit, ok := snap.Lookup(engine.SeriesCacheHitRate)
	if !ok || !hit.RateDefined {
		return
	}
	fmt.Fprintln(w, "\nCache (inferred from latency):")
	fmt.Fprintf(w, "  Hit ratio:       %.2f%%\n", hit.Rate*100)
	fmt.Fprintf(w, "  Miss ratio:      %.2f%%\n", (1-hit.Rate)*100)
	cached, okC := snap.Lookup(engine.SeriesCachedTime)
	uncached, okU := snap.Lookup(engine.SeriesUncachedTime)
	if okC {
		fmt.Fprintf(w, "  Avg cached:      %.2fms\n", cached.Mean)
	}
	if okU {
		fmt.Fprintf(w, "  Avg uncached:    %.2fms\n", uncached.Mean)
	}
	if okC && okU && uncached.Mean > 0 {
		fmt.Fprintf(w, "  Gain:            %.1f%%\n", (uncached.Mean-cached.Mean)/uncached.Mean*100)
	}
}

func writeThresholds(w io.Writer, report threshold.Report) {
	if len(report.Results) == 0 {
		return
	}
	fmt.Fprintln(w, "\nThresholds:")
	for _, r := range report.Results {
		mark := "PASS"
		if !r.Pass {
			mark = strings.ToUpper(string(r.Threshold.Severity))
		}
		fmt.Fprintf(w, "  [%s] %s: %s\n", mark, r.Threshold.Raw, r.Message)
	}
}

func writeStatusBuckets(w io.Writer, rows []metrics.StatusBucket, indent string) {
	if len(rows) == 0 {
		fmt.Fprintf(w, "%sNone\n", indent)
		return
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s%s %s: %d\n", indent, strings.ToUpper(row.Kind), row.Code, row.Count)
	}
}
