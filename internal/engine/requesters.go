package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/shortfire/internal/classify"
	"github.com/torosent/shortfire/internal/config"
	"github.com/torosent/shortfire/internal/logging"
	"github.com/torosent/shortfire/internal/population"
	"github.com/torosent/shortfire/internal/runner"
	"github.com/torosent/shortfire/internal/shortener"
)

const defaultCreationURL = "https://example.com/generated/{{ulid}}"

// stream turns one stream config into a runner stream wired to the run.
func (r *run) stream(i int, sc config.StreamConfig, log *zap.Logger) (runner.Stream, error) {
	arrival, err := runner.ParseArrivalModel(sc.Arrival)
	if err != nil {
		return runner.Stream{}, fmt.Errorf("stream %q: %w", sc.Name, err)
	}

	var req runner.Requester
	switch sc.Kind {
	case config.StreamCreation:
		req = r.creator(sc)
	case config.StreamRedirect:
		req = r.resolver(classify.KindRedirect, r.population(sc))
	case config.StreamViral:
		req = r.resolver(classify.KindViral, r.population(sc))
	default:
		return runner.Stream{}, fmt.Errorf("stream %q: unknown kind %q", sc.Name, sc.Kind)
	}

	name := sc.Name
	return runner.Stream{
		Name:        name,
		Stages:      sc.RunnerStages(),
		MaxInFlight: sc.MaxInFlight,
		Arrival:     arrival,
		DrainGrace:  r.opts.DrainGrace,
		Requester:   runner.WithLogging(req, logging.FailureLogger{Logger: log, Stream: name}),
		Hooks: runner.Hooks{
			OnDropped:    func() { r.rec.dropped(name) },
			OnIncomplete: func() { r.rec.incomplete(name) },
		},
		PoissonSampler: population.NewRNG(r.seed + int64(i) + 1).ExpFloat64,
	}, nil
}

// population binds the stream's tiers to the seeded groups and the shared
// pool. A tier whose group seeded nothing is simply absent.
func (r *run) population(sc config.StreamConfig) *population.Population {
	tiers := make([]population.Tier, 0, len(sc.Tiers))
	for _, t := range sc.Tiers {
		tier := population.Tier{
			Name:         t.Name,
			Weight:       t.Weight,
			FromPool:     t.FromPool,
			HeadFraction: t.HeadFraction,
			HeadLimit:    t.HeadLimit,
			MinMembers:   t.MinMembers,
		}
		if !t.FromPool {
			tier.Members = r.groups[t.Group]
		}
		tiers = append(tiers, tier)
	}
	return population.New(tiers, r.pool)
}

// creator issues one short URL creation per tick.
func (r *run) creator(sc config.StreamConfig) runner.Requester {
	urlTmpl := sc.URLTemplate
	if urlTmpl == "" {
		urlTmpl = defaultCreationURL
	}
	return runner.RequesterFunc(func(ctx context.Context) error {
		in := shortener.CreateRequest{
			LongURL: r.render.Render(urlTmpl, nil),
			Tags:    sc.Tags,
		}
		if sc.TitleTemplate != "" {
			in.Title = r.render.Render(sc.TitleTemplate, nil)
		}

		issued := time.Now()
		resp, err := r.opts.Client.Create(ctx, in)
		if ctx.Err() != nil {
			// Abandoned after the drain grace; the runner counts it.
			return ctx.Err()
		}
		res := r.classifier.Classify(classify.Outcome{
			Kind:        classify.KindCreation,
			TargetID:    resp.ShortCode,
			IssuedAt:    issued,
			CompletedAt: time.Now(),
			StatusCode:  resp.StatusCode,
			Latency:     resp.Latency,
			Err:         err,
		})
		failure := outcomeError(res, resp, err)
		r.rec.outcome(res, failure)
		if res.Succeeded && sc.AppendToPool {
			r.pool.Append(resp.ShortCode)
		}
		return failure
	})
}

// resolver issues one redirect lookup per tick against a sampled target.
func (r *run) resolver(kind classify.Kind, pop *population.Population) runner.Requester {
	return runner.RequesterFunc(func(ctx context.Context) error {
		code, err := pop.Sample(r.rng)
		if err != nil {
			r.agg.Count(SeriesNoTarget)
			return err
		}

		issued := time.Now()
		resp, err := r.opts.Client.Resolve(ctx, string(kind), code)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res := r.classifier.Classify(classify.Outcome{
			Kind:        kind,
			TargetID:    code,
			IssuedAt:    issued,
			CompletedAt: time.Now(),
			StatusCode:  resp.StatusCode,
			HasLocation: resp.Location != "",
			Latency:     resp.Latency,
			Err:         err,
		})
		failure := outcomeError(res, resp, err)
		r.rec.outcome(res, failure)
		return failure
	})
}

// outcomeError is the error a stream reports for a classified outcome:
// the transport error, or the status error behind a failed verdict.
func outcomeError(res classify.Result, resp shortener.Response, err error) error {
	if err != nil {
		return err
	}
	if res.Succeeded {
		return nil
	}
	if rerr := resp.Err(); rerr != nil {
		return rerr
	}
	return &shortener.StatusError{Op: resp.Op, StatusCode: resp.StatusCode}
}
