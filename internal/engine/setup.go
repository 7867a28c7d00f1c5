package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/torosent/shortfire/internal/config"
	"github.com/torosent/shortfire/internal/population"
	"github.com/torosent/shortfire/internal/runner"
	"github.com/torosent/shortfire/internal/shortener"
)

const (
	defaultSeedURL   = "https://example.com/{{group}}/{{index}}-{{run}}"
	seedRetryBase    = 200 * time.Millisecond
	seedRetryMaxWait = 2 * time.Second
)

// SetupStats describes target seeding.
type SetupStats struct {
	Requested int           `json:"requested"`
	Created   int           `json:"created"`
	Existing  int           `json:"existing"`
	Failed    int           `json:"failed"`
	FromFile  int           `json:"from_file"`
	Duration  time.Duration `json:"duration"`
}

// Seeded is the number of targets available when traffic starts.
func (s SetupStats) Seeded() int {
	return s.Created + s.Existing + s.FromFile
}

// setup creates every seed group at the configured pace and builds the
// shared pool. Individual failures are counted; only an unmet minimum or a
// cancelled context stops the run.
func (r *run) setup(ctx context.Context) (SetupStats, error) {
	cfg := r.opts.Scenario.Setup
	start := time.Now()
	stats := SetupStats{FromFile: len(r.opts.SeedCodes)}

	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	limiter := rate.NewLimiter(limit, 1)

	var codes []string
	for _, g := range cfg.Groups {
		var created, existing, failed int
		for i := 0; i < g.Size(); i++ {
			if err := limiter.Wait(ctx); err != nil {
				return stats, fmt.Errorf("setup interrupted: %w", err)
			}
			code, existed, err := r.seedTarget(ctx, g, i)
			switch {
			case err != nil:
				if ctx.Err() != nil {
					return stats, fmt.Errorf("setup interrupted: %w", ctx.Err())
				}
				failed++
				r.agg.Count(SeriesSetupFailed)
				r.setupLog.Debug("seed failed", zap.String("group", g.Name), zap.Int("index", i+1), zap.Error(err))
				continue
			case existed:
				existing++
				r.agg.Count(SeriesSetupExisting)
			default:
				created++
				r.agg.Count(SeriesSetupCreated)
			}
			r.groups[g.Name] = append(r.groups[g.Name], code)
			codes = append(codes, code)
		}
		stats.Requested += g.Size()
		stats.Created += created
		stats.Existing += existing
		stats.Failed += failed
		log := r.setupLog.Info
		if failed > 0 {
			log = r.setupLog.Warn
		}
		log("seeded group",
			zap.String("group", g.Name),
			zap.Int("created", created),
			zap.Int("existing", existing),
			zap.Int("failed", failed))
	}

	codes = append(codes, r.opts.SeedCodes...)
	r.pool = population.NewPool(codes)
	stats.Duration = time.Since(start)

	required := cfg.MinSeeded
	if required == 0 && stats.Requested > 0 {
		required = 1
	}
	if stats.Seeded() < required {
		return stats, fmt.Errorf("%w: %d of %d required (%d failed)", ErrSetupFailed, stats.Seeded(), required, stats.Failed)
	}
	return stats, nil
}

// seedTarget creates target index of group g. existed reports a slug that
// was already present and accepted as such.
func (r *run) seedTarget(ctx context.Context, g config.SeedGroup, index int) (code string, existed bool, err error) {
	slug := seedSlug(g, index, r.tag)
	tmpl := g.URLTemplate
	if tmpl == "" {
		tmpl = defaultSeedURL
	}
	in := shortener.CreateRequest{
		LongURL: r.render.Render(tmpl, map[string]string{
			"index": strconv.Itoa(index + 1),
			"slug":  slug,
			"group": g.Name,
		}),
		CustomSlug:   slug,
		Tags:         g.Tags,
		FindIfExists: g.AcceptExisting,
	}

	var resp shortener.Response
	attempt := runner.RequesterFunc(func(ctx context.Context) error {
		var err error
		resp, err = r.opts.Client.Create(ctx, in)
		if err != nil {
			return err
		}
		r.agg.Latency(SeriesSetupDuration, resp.Latency)
		if resp.Conflict && g.AcceptExisting && slug != "" {
			return nil
		}
		return resp.Err()
	})
	policy := runner.RetryPolicy{
		MaxAttempts: r.opts.Scenario.Setup.Retries + 1,
		ShouldRetry: retryableSeedError,
		DelayFunc:   runner.JitteredBackoff(seedRetryBase, seedRetryMaxWait, r.rng.Float64),
	}
	if err := runner.WithRetry(attempt, policy).Do(ctx); err != nil {
		return "", false, err
	}
	if resp.Conflict {
		return slug, true, nil
	}
	return resp.ShortCode, false, nil
}

// seedSlug returns the custom slug for target index of g, or "" to let the
// service assign one.
func seedSlug(g config.SeedGroup, index int, runTag string) string {
	if len(g.Slugs) > 0 {
		return g.Slugs[index]
	}
	if g.SlugPrefix == "" {
		return ""
	}
	width := int(math.Log10(float64(g.Count))) + 1
	return fmt.Sprintf("%s-%s-%0*d", g.SlugPrefix, runTag, width, index+1)
}

// retryableSeedError retries transport failures, throttling and server
// errors. Other 4xx answers will not change on retry.
func retryableSeedError(err error) bool {
	var se *shortener.StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError || se.StatusCode == http.StatusTooManyRequests
	}
	var mc *shortener.MissingCodeError
	return !errors.As(err, &mc)
}
