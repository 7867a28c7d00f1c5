package engine

import (
	"github.com/torosent/shortfire/internal/classify"
	"github.com/torosent/shortfire/internal/metrics"
)

// Series written by a run. Thresholds and the cache quality rule refer to
// them by these names.
const (
	SeriesHTTPReqs         = "http_reqs"         // counter
	SeriesHTTPReqDuration  = "http_req_duration" // trend, also tagged {type:<kind>}
	SeriesHTTPReqFailed    = "http_req_failed"   // rate
	SeriesSuccessRate      = "success_rate"      // rate
	SeriesCreationDuration = "url_creation_duration"
	SeriesCreationErrors   = "url_creation_errors"
	SeriesRedirectDuration = "redirect_duration"
	SeriesRedirectErrors   = "redirect_errors"
	SeriesViralRequests    = "viral_spike_requests"
	SeriesCacheHitRate     = "cache_hit_rate"
	SeriesCacheMissRate    = "cache_miss_rate"
	SeriesCachedTime       = "cached_response_time"
	SeriesUncachedTime     = "uncached_response_time"
	SeriesRedirectSuccess  = "redirect_success_rate"
	SeriesTotalRedirects   = "total_redirects"

	SeriesCapacityExceeded = "capacity_exceeded"   // counter, also tagged {stream:<name>}
	SeriesIncomplete       = "requests_incomplete" // counter, also tagged {stream:<name>}
	SeriesNoTarget         = "no_target"           // sampler had nothing to pick
	SeriesErrors           = "errors"              // counter tagged {kind,type}

	SeriesSetupCreated  = "setup_created"
	SeriesSetupExisting = "setup_existing"
	SeriesSetupFailed   = "setup_failed"
	SeriesSetupDuration = "setup_duration"
)

// recorder maps classified outcomes onto series.
type recorder struct {
	agg *metrics.Aggregator
}

func (r recorder) outcome(res classify.Result, err error) {
	o := res.Outcome
	kind := string(o.Kind)

	r.agg.Count(SeriesHTTPReqs)
	r.agg.Count(metrics.StatusName(kind, o.StatusCode))
	r.agg.Observe(SeriesHTTPReqFailed, !res.Succeeded)
	r.agg.Observe(SeriesSuccessRate, res.Succeeded)
	if o.Err == nil {
		r.agg.Latency(SeriesHTTPReqDuration, o.Latency)
		r.agg.Latency(metrics.Tagged(SeriesHTTPReqDuration, metrics.Tag{Key: "type", Value: kind}), o.Latency)
	}
	if err != nil {
		r.agg.Count(metrics.Tagged(SeriesErrors,
			metrics.Tag{Key: "kind", Value: kind},
			metrics.Tag{Key: "type", Value: metrics.ErrorType(err)}))
	}

	switch {
	case o.Kind == classify.KindCreation:
		if o.Err == nil {
			r.agg.Latency(SeriesCreationDuration, o.Latency)
		}
		if !res.Succeeded {
			r.agg.Count(SeriesCreationErrors)
		}
	case o.Kind.IsRedirect():
		r.redirect(res)
	}
}

func (r recorder) redirect(res classify.Result) {
	o := res.Outcome
	r.agg.Count(SeriesTotalRedirects)
	if o.Kind == classify.KindViral {
		r.agg.Count(SeriesViralRequests)
	}
	if o.Err == nil {
		r.agg.Latency(SeriesRedirectDuration, o.Latency)
	}
	r.agg.Observe(SeriesRedirectSuccess, res.Succeeded)
	if !res.Succeeded {
		r.agg.Count(SeriesRedirectErrors)
		return
	}

	hit := res.Cache == classify.CacheHit
	r.agg.Observe(SeriesCacheHitRate, hit)
	r.agg.Observe(SeriesCacheMissRate, !hit)
	if hit {
		r.agg.Latency(SeriesCachedTime, o.Latency)
	} else {
		r.agg.Latency(SeriesUncachedTime, o.Latency)
	}
}

func (r recorder) dropped(stream string) {
	r.agg.Count(SeriesCapacityExceeded)
	r.agg.Count(metrics.Tagged(SeriesCapacityExceeded, metrics.Tag{Key: "stream", Value: stream}))
}

func (r recorder) incomplete(stream string) {
	r.agg.Count(SeriesIncomplete)
	r.agg.Count(metrics.Tagged(SeriesIncomplete, metrics.Tag{Key: "stream", Value: stream}))
}
