package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter exposes live aggregator state in Prometheus text format. Every
// scrape takes a LiveSnapshot, so series appear as soon as they are written.
type Exporter struct {
	agg      *Aggregator
	registry *prometheus.Registry

	counterDesc *prometheus.Desc
	rateDesc    *prometheus.Desc
	rateSamples *prometheus.Desc
	trendDesc   *prometheus.Desc
	trendCount  *prometheus.Desc
	elapsedDesc *prometheus.Desc
}

var trendStats = []struct {
	stat string
	pick func(SeriesSnapshot) float64
}{
	{"min", func(s SeriesSnapshot) float64 { return s.Min }},
	{"avg", func(s SeriesSnapshot) float64 { return s.Mean }},
	{"max", func(s SeriesSnapshot) float64 { return s.Max }},
	{"p50", func(s SeriesSnapshot) float64 { return s.P50 }},
	{"p90", func(s SeriesSnapshot) float64 { return s.P90 }},
	{"p95", func(s SeriesSnapshot) float64 { return s.P95 }},
	{"p99", func(s SeriesSnapshot) float64 { return s.P99 }},
}

// NewExporter registers a collector for agg on a private registry.
func NewExporter(agg *Aggregator) *Exporter {
	labels := []string{"series", "tags"}
	e := &Exporter{
		agg:      agg,
		registry: prometheus.NewRegistry(),
		counterDesc: prometheus.NewDesc("shortfire_counter_total",
			"Counter series totals.", labels, nil),
		rateDesc: prometheus.NewDesc("shortfire_rate_ratio",
			"Rate series success ratio.", labels, nil),
		rateSamples: prometheus.NewDesc("shortfire_rate_samples_total",
			"Samples recorded into rate series.", labels, nil),
		trendDesc: prometheus.NewDesc("shortfire_trend",
			"Trend series statistics (milliseconds for durations).", append(labels, "stat"), nil),
		trendCount: prometheus.NewDesc("shortfire_trend_samples_total",
			"Samples recorded into trend series.", labels, nil),
		elapsedDesc: prometheus.NewDesc("shortfire_elapsed_seconds",
			"Time since the run started.", nil, nil),
	}
	e.registry.MustRegister(e)
	return e
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.counterDesc
	ch <- e.rateDesc
	ch <- e.rateSamples
	ch <- e.trendDesc
	ch <- e.trendCount
	ch <- e.elapsedDesc
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	elapsed := e.agg.Elapsed()
	snap := e.agg.LiveSnapshot(elapsed)
	ch <- prometheus.MustNewConstMetric(e.elapsedDesc, prometheus.GaugeValue, elapsed.Seconds())

	for _, name := range snap.Names() {
		s := snap.Series[name]
		base, tagStr := splitTags(name)
		switch s.Kind {
		case KindCounter:
			ch <- prometheus.MustNewConstMetric(e.counterDesc, prometheus.CounterValue, float64(s.Count), base, tagStr)
		case KindRate:
			ch <- prometheus.MustNewConstMetric(e.rateSamples, prometheus.CounterValue, float64(s.Count), base, tagStr)
			if s.RateDefined {
				ch <- prometheus.MustNewConstMetric(e.rateDesc, prometheus.GaugeValue, s.Rate, base, tagStr)
			}
		case KindTrend:
			ch <- prometheus.MustNewConstMetric(e.trendCount, prometheus.CounterValue, float64(s.Count), base, tagStr)
			if s.Count == 0 {
				continue
			}
			for _, ts := range trendStats {
				ch <- prometheus.MustNewConstMetric(e.trendDesc, prometheus.GaugeValue, ts.pick(s), base, tagStr, ts.stat)
			}
		}
	}
}

// Registry returns the registry the exporter is registered on.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (e *Exporter) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func splitTags(name string) (string, string) {
	base, tags, err := ParseName(name)
	if err != nil || len(tags) == 0 {
		return name, ""
	}
	tagged := Tagged("", tags...)
	return base, tagged[1 : len(tagged)-1]
}
