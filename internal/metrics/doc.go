// Package metrics aggregates named measurement series for a load run.
//
// Three series kinds exist:
//
//   - counter: a monotonically increasing total
//   - rate: the share of samples that were non-zero (successes / total)
//   - trend: a distribution of values with min, max, mean and percentiles
//
// Series are created on first write and are safe for concurrent recording:
//
//	agg := metrics.NewAggregator()
//	agg.Start()
//	agg.Count("http_reqs")
//	agg.Observe("success_rate", ok)
//	agg.Latency("http_req_duration", latency)
//
//	snap := agg.Snapshot(agg.Elapsed())
//	p95, _ := snap.Series["http_req_duration"].Percentile(95)
//
// Names may carry tags, "http_req_duration{type:redirect}"; see [Tagged].
// A name is bound to the kind it was first written with; later writes with
// another kind fail with [ErrKindMismatch].
//
// Percentiles of final snapshots use linear interpolation between closest
// ranks over all samples. [Aggregator.LiveSnapshot] reads an HDR histogram
// instead and marks its trend rows Approximate.
package metrics
