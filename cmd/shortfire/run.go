package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/torosent/shortfire/internal/auth"
	"github.com/torosent/shortfire/internal/config"
	"github.com/torosent/shortfire/internal/engine"
	"github.com/torosent/shortfire/internal/feeder"
	"github.com/torosent/shortfire/internal/logging"
	"github.com/torosent/shortfire/internal/metrics"
	"github.com/torosent/shortfire/internal/output"
	"github.com/torosent/shortfire/internal/shortener"
	"github.com/torosent/shortfire/internal/threshold"
	"github.com/torosent/shortfire/internal/tracing"
)

func (a *app) runCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Seed targets, drive the scenario streams and evaluate thresholds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, sc, err := a.load(cmd)
			if err != nil {
				return err
			}
			verdict, err := a.run(cmd.Context(), cfg, sc)
			if err != nil {
				return err
			}
			if verdict == threshold.VerdictFail {
				return errVerdictFailed
			}
			return nil
		},
	}
	config.RegisterFlags(cmd)
	return cmd
}

// load reads and validates the configuration and resolves the scenario.
// Every error it returns is a configuration error.
func (a *app) load(cmd *cobra.Command) (*config.Config, config.Scenario, error) {
	cfg, err := a.loader.LoadFlags(cmd.Flags())
	if err != nil {
		return nil, config.Scenario{}, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, config.Scenario{}, err
	}
	sc, err := cfg.ResolveScenario()
	if err != nil {
		return nil, config.Scenario{}, err
	}
	if _, err := threshold.ParseMultiple(sc.Thresholds); err != nil {
		return nil, config.Scenario{}, err
	}
	return cfg, sc, nil
}

func (a *app) run(ctx context.Context, cfg *config.Config, sc config.Scenario) (threshold.Verdict, error) {
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return "", err
	}
	defer func() { _ = logger.Sync() }()

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return "", err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	key, err := auth.NewAPIKeyProvider(auth.DefaultAPIKeyHeader, cfg.APIKey)
	if err != nil {
		return "", err
	}
	defer key.Close()

	client, err := shortener.New(shortener.Options{
		BaseURL:       cfg.BaseURL,
		Timeout:       cfg.Timeout,
		ShortCodePath: cfg.ShortCodePath,
		Auth:          key,
		Tracing:       tp,
	})
	if err != nil {
		return "", err
	}

	seedCodes, err := loadSeedCodes(ctx, cfg.Feeder)
	if err != nil {
		return "", err
	}

	agg := metrics.NewAggregator()
	if cfg.MetricsAddr != "" {
		serveCtx, stopServing := context.WithCancel(ctx)
		defer stopServing()
		exporter := metrics.NewExporter(agg)
		go func() {
			if err := exporter.Serve(serveCtx, cfg.MetricsAddr); err != nil {
				logger.Warn("metrics endpoint", zap.String("addr", cfg.MetricsAddr), zap.Error(err))
			}
		}()
	}

	var progress *output.ProgressReporter
	eng, err := engine.New(engine.Options{
		Scenario:          sc,
		Client:            client,
		Logger:            logger,
		Aggregator:        agg,
		Seed:              cfg.Seed,
		CacheHitThreshold: cfg.CacheHitThreshold,
		DrainGrace:        cfg.DrainGrace,
		SeedCodes:         seedCodes,
		OnTrafficStart: func() {
			if cfg.Progress > 0 && !cfg.JSONOutput {
				progress = output.NewProgressReporter(agg, cfg.Progress, a.stderr)
				progress.Start()
			}
		},
	})
	if err != nil {
		return "", err
	}

	summary, err := eng.Run(ctx)
	if progress != nil {
		progress.Stop()
		fmt.Fprintln(a.stderr)
	}
	if err != nil {
		return "", err
	}

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(a.stdout, summary); err != nil {
			return "", err
		}
	} else {
		output.PrintReport(a.stdout, summary)
	}

	if cfg.ResultsDir != "" {
		path, err := output.WriteResults(cfg.ResultsDir, summary)
		if err != nil {
			logger.Warn("results not written", zap.Error(err))
		} else {
			logger.Info("results written", zap.String("path", path))
		}
	}
	return summary.Verdict(), nil
}

// loadSeedCodes reads pre-existing short codes from the feeder file, if any.
func loadSeedCodes(ctx context.Context, fc config.FeederConfig) ([]string, error) {
	if fc.Path == "" {
		return nil, nil
	}
	f, err := feeder.Open(fc.Path, fc.Type)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	column := fc.Column
	if column == "" {
		column = "short_code"
	}
	codes, err := feeder.Column(ctx, f, column)
	if err != nil {
		return nil, fmt.Errorf("feeder %s: %w", fc.Path, err)
	}
	return codes, nil
}
