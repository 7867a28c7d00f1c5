// Package classify turns raw request outcomes into success and cache verdicts.
//
// Cache hits are inferred from latency alone: a successful redirect faster
// than the configured threshold is labelled a hit, anything slower a miss.
// This is a heuristic proxy. The target service exposes no cache-identifying
// response field, so the label says "fast enough to have been cached", not
// "was served from cache".
package classify

import (
	"net/http"
	"time"
)

// DefaultCacheHitThreshold is the latency below which a redirect is assumed
// to have been served from cache.
const DefaultCacheHitThreshold = 50 * time.Millisecond

// Kind identifies the request type an outcome belongs to.
type Kind string

const (
	KindCreation Kind = "creation"
	KindRedirect Kind = "redirect"
	// KindViral is a redirect aimed at a deliberately concentrated target set.
	KindViral Kind = "viral"
)

// IsRedirect reports whether k is resolved with redirect semantics.
func (k Kind) IsRedirect() bool {
	return k == KindRedirect || k == KindViral
}

// CacheState is the tri-state cache label of a classified outcome.
type CacheState int

const (
	CacheUnknown CacheState = iota
	CacheHit
	CacheMiss
)

func (c CacheState) String() string {
	switch c {
	case CacheHit:
		return "hit"
	case CacheMiss:
		return "miss"
	default:
		return "unknown"
	}
}

// MarshalText renders the state for JSON summaries.
func (c CacheState) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Outcome is the raw observation of one issued request.
type Outcome struct {
	Kind        Kind
	TargetID    string
	IssuedAt    time.Time
	CompletedAt time.Time
	StatusCode  int
	HasLocation bool
	Latency     time.Duration
	// Err is set when no response was received (transport error, timeout).
	Err error
}

// Result is the derived verdict for an Outcome.
type Result struct {
	Outcome   Outcome
	Succeeded bool
	Cache     CacheState
}

// Classifier applies the success and cache-hit rules.
type Classifier struct {
	CacheHitThreshold time.Duration
}

// New returns a classifier; a non-positive threshold selects the default.
func New(cacheHitThreshold time.Duration) Classifier {
	if cacheHitThreshold <= 0 {
		cacheHitThreshold = DefaultCacheHitThreshold
	}
	return Classifier{CacheHitThreshold: cacheHitThreshold}
}

// Classify labels o. For creation outcomes TargetID must hold the
// identifier returned by the service.
func (c Classifier) Classify(o Outcome) Result {
	res := Result{Outcome: o, Cache: CacheUnknown}
	if o.Err != nil {
		return res
	}

	switch {
	case o.Kind == KindCreation:
		res.Succeeded = (o.StatusCode == http.StatusOK || o.StatusCode == http.StatusCreated) && o.TargetID != ""
	case o.Kind.IsRedirect():
		res.Succeeded = (o.StatusCode == http.StatusMovedPermanently || o.StatusCode == http.StatusFound) && o.HasLocation
		if res.Succeeded {
			res.Cache = c.cacheState(o.Latency)
		}
	}
	return res
}

func (c Classifier) cacheState(latency time.Duration) CacheState {
	threshold := c.CacheHitThreshold
	if threshold <= 0 {
		threshold = DefaultCacheHitThreshold
	}
	if latency < threshold {
		return CacheHit
	}
	return CacheMiss
}
