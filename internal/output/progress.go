package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/shortfire/internal/engine"
	"github.com/torosent/shortfire/internal/metrics"
)

// ProgressReporter displays real-time progress updates.
type ProgressReporter struct {
	agg      *metrics.Aggregator
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(agg *metrics.Aggregator, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		agg:      agg,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, "\r"+ProgressLine(p.agg.LiveSnapshot(p.agg.Elapsed())))
		case <-p.done:
			return
		}
	}
}

// ProgressLine renders one status line from a live snapshot.
func ProgressLine(snap metrics.Snapshot) string {
	reqs, _ := snap.Lookup(engine.SeriesHTTPReqs)
	perSec, _ := snap.PerSecond(engine.SeriesHTTPReqs)
	line := fmt.Sprintf("Requests: %d | RPS: %.1f", reqs.Count, perSec)
	if failed, ok := snap.Lookup(engine.SeriesHTTPReqFailed); ok && failed.RateDefined {
		line += fmt.Sprintf(" | Failed: %.2f%%", failed.Rate*100)
	}
	if d, ok := snap.Lookup(engine.SeriesHTTPReqDuration); ok && d.Count > 0 {
		line += fmt.Sprintf(" | P95: %.1fms", d.P95)
	}
	if hit, ok := snap.Lookup(engine.SeriesCacheHitRate); ok && hit.RateDefined {
		line += fmt.Sprintf(" | Cache hits: %.0f%%", hit.Rate*100)
	}
	if drops, ok := snap.Lookup(engine.SeriesCapacityExceeded); ok && drops.Count > 0 {
		line += fmt.Sprintf(" | Dropped: %d", drops.Count)
	}
	return line
}
