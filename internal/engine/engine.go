// Package engine runs one scenario end to end: it seeds targets, drives
// every configured stream on a shared timeline, classifies and records each
// outcome, and evaluates the thresholds into a Summary.
//
// All state shared by the workers of a run (the target pool, the RNG, the
// aggregator) lives on an explicit run value created by Run; nothing is
// package-global.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/torosent/shortfire/internal/classify"
	"github.com/torosent/shortfire/internal/config"
	"github.com/torosent/shortfire/internal/logging"
	"github.com/torosent/shortfire/internal/metrics"
	"github.com/torosent/shortfire/internal/placeholders"
	"github.com/torosent/shortfire/internal/population"
	"github.com/torosent/shortfire/internal/runner"
	"github.com/torosent/shortfire/internal/shortener"
	"github.com/torosent/shortfire/internal/threshold"
)

var (
	// ErrNoClient is returned by New when Options.Client is nil.
	ErrNoClient = errors.New("engine: no shortener client")
	// ErrSetupFailed is returned when fewer targets than required could be
	// seeded. No traffic is generated in that case.
	ErrSetupFailed = errors.New("engine: setup seeded too few targets")
)

// Shortener is the target-service boundary the engine drives.
type Shortener interface {
	Create(ctx context.Context, in shortener.CreateRequest) (shortener.Response, error)
	Resolve(ctx context.Context, kind, shortCode string) (shortener.Response, error)
}

// Options configures an Engine.
type Options struct {
	Scenario config.Scenario
	Client   Shortener
	Logger   *zap.Logger
	// Aggregator receives every series; a fresh one is used when nil.
	Aggregator *metrics.Aggregator

	// Seed makes sampling and arrival jitter reproducible. Zero derives
	// one from the clock; the value used is reported in the Summary.
	Seed              int64
	CacheHitThreshold time.Duration
	DrainGrace        time.Duration
	// SeedCodes are existing short codes added to the pool as-is.
	SeedCodes []string

	// OnTrafficStart is called once setup is done, right before the
	// streams start.
	OnTrafficStart func()
}

// Engine runs a validated scenario.
type Engine struct {
	opts       Options
	log        *zap.Logger
	agg        *metrics.Aggregator
	classifier classify.Classifier
	thresholds []threshold.Threshold
}

// New checks opts and parses the scenario thresholds.
func New(opts Options) (*Engine, error) {
	if opts.Client == nil {
		return nil, ErrNoClient
	}
	if len(opts.Scenario.Streams) == 0 {
		return nil, fmt.Errorf("engine: scenario %q has no streams", opts.Scenario.Name)
	}
	ths, err := threshold.ParseMultiple(opts.Scenario.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("engine: thresholds: %w", err)
	}
	agg := opts.Aggregator
	if agg == nil {
		agg = metrics.NewAggregator()
	}
	return &Engine{
		opts:       opts,
		log:        logging.OrNop(opts.Logger).With(zap.String("scenario", opts.Scenario.Name)),
		agg:        agg,
		classifier: classify.New(opts.CacheHitThreshold),
		thresholds: ths,
	}, nil
}

// Aggregator returns the aggregator the engine records into.
func (e *Engine) Aggregator() *metrics.Aggregator {
	return e.agg
}

// run is the state shared by the workers of one Run call.
type run struct {
	*Engine
	id       string
	tag      string
	seed     int64
	rng      population.RNG
	render   *placeholders.Renderer
	rec      recorder
	pool     *population.Pool
	groups   map[string][]string
	setupLog *zap.Logger
}

// Run seeds the targets and drives every stream to completion or until ctx
// is cancelled. Only setup problems are returned as errors; request
// failures and threshold outcomes are reported in the Summary.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	r := e.newRun()
	log := e.log.With(zap.String("run_id", r.id))
	r.setupLog = log.Named("setup")
	started := time.Now()

	log.Info("starting run", zap.Int64("seed", r.seed), zap.Int("streams", len(e.opts.Scenario.Streams)))
	stats, err := r.setup(ctx)
	if err != nil {
		return nil, err
	}

	streams := make([]runner.Stream, 0, len(e.opts.Scenario.Streams))
	for i, sc := range e.opts.Scenario.Streams {
		st, err := r.stream(i, sc, log)
		if err != nil {
			return nil, err
		}
		streams = append(streams, st)
	}

	if e.opts.OnTrafficStart != nil {
		e.opts.OnTrafficStart()
	}
	e.agg.Start()
	log.Info("traffic started", zap.Duration("planned", e.opts.Scenario.Duration()), zap.Int("targets", r.pool.Len()))
	results := runner.RunAll(ctx, streams...)
	elapsed := e.agg.Elapsed()

	summary := e.summarize(r, started, elapsed, stats, results)
	summary.Interrupted = ctx.Err() != nil
	log.Info("run finished",
		zap.Duration("elapsed", elapsed),
		zap.String("verdict", string(summary.Verdict())),
		zap.Bool("interrupted", summary.Interrupted))
	return summary, nil
}

func (e *Engine) newRun() *run {
	seed := e.opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	id := ulid.Make().String()
	tag := strings.ToLower(id[len(id)-8:])
	rng := population.NewRNG(seed)
	return &run{
		Engine: e,
		id:     id,
		tag:    tag,
		seed:   seed,
		rng:    rng,
		render: placeholders.New(map[string]string{
			"run":      tag,
			"run_id":   id,
			"scenario": e.opts.Scenario.Name,
		}, rng),
		rec:    recorder{agg: e.agg},
		groups: make(map[string][]string),
	}
}

func (e *Engine) summarize(r *run, started time.Time, elapsed time.Duration, stats SetupStats, results []runner.Result) *Summary {
	snap := e.agg.Snapshot(elapsed)
	s := &Summary{
		RunID:       r.id,
		Scenario:    e.opts.Scenario.Name,
		Description: e.opts.Scenario.Description,
		Seed:        r.seed,
		StartedAt:   started,
		Duration:    elapsed,
		DurationMs:  float64(elapsed) / float64(time.Millisecond),
		Setup:       stats,
		Streams:     results,
		Metrics:     snap,
		Status:      metrics.StatusBuckets(snap),
		Errors:      errorBuckets(snap),
		Thresholds:  threshold.NewEvaluator(e.thresholds).Evaluate(snap),
	}
	if e.opts.Scenario.CacheQuality {
		q := threshold.DefaultCacheQuality().Evaluate(snap)
		s.CacheQuality = &q
	}
	return s
}
