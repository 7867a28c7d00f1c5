package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers the run flags on a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "shortfire",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

func configureFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to configuration file (YAML or JSON)")

	// Target service
	flags.String("base-url", DefaultBaseURL, "Base URL of the URL-shortening service (env BASE_URL)")
	flags.String("api-key", "", "API key sent as X-Api-Key (env SHLINK_API_KEY)")
	flags.Duration("timeout", DefaultTimeout, "Per-request timeout")
	flags.String("short-code-path", "shortCode", "JSON path of the short code in creation responses")

	// Workload
	flags.StringP("scenario", "s", DefaultScenario, "Preset scenario to run ("+strings.Join(Presets(), ", ")+")")
	flags.String("scenario-file", "", "Path to a scenario YAML file (overrides --scenario)")
	flags.Duration("drain-grace", DefaultDrainGrace, "How long in-flight requests may finish after a stream ends")
	flags.Int64("seed", 0, "Random seed for target selection and arrivals (0 picks one)")
	flags.Duration("cache-hit-threshold", DefaultCacheHitLatency, "Redirects faster than this are counted as cache hits")
	flags.StringSlice("threshold", nil, "Additional threshold (repeatable, e.g. 'http_req_duration:p95 < 500')")

	// Seed file
	flags.String("feeder-path", "", "CSV or JSON file of existing short codes to add to the target pool")
	flags.String("feeder-type", "", "Type of feeder file: 'csv' or 'json'")
	flags.String("feeder-column", "short_code", "Field holding the short code in the feeder file")

	// Output
	flags.Bool("json-output", false, "Emit the summary as JSON")
	flags.String("results-dir", DefaultResultsDir, "Directory for the summary file (empty disables it)")
	flags.Duration("progress", 0, "Interval between live progress lines (0 disables)")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "console", "Log format (console or json)")

	// Tracing
	flags.String("tracing-endpoint", "", "OTLP endpoint for trace export")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.String("tracing-service-name", "shortfire", "Service name reported on spans")
	flags.Float64("tracing-sample-rate", 1, "Fraction of requests traced")
	flags.Bool("tracing-insecure", false, "Disable TLS to the OTLP endpoint")
	flags.Bool("tracing-propagate", true, "Inject trace context into outgoing requests")
}

func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides copies explicitly set flags over the loaded values.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	for flag, dst := range map[string]*string{
		"base-url":             &cfg.BaseURL,
		"api-key":              &cfg.APIKey,
		"scenario":             &cfg.Scenario,
		"scenario-file":        &cfg.ScenarioFile,
		"short-code-path":      &cfg.ShortCodePath,
		"results-dir":          &cfg.ResultsDir,
		"metrics-addr":         &cfg.MetricsAddr,
		"log-level":            &cfg.LogLevel,
		"log-format":           &cfg.LogFormat,
		"feeder-path":          &cfg.Feeder.Path,
		"feeder-type":          &cfg.Feeder.Type,
		"feeder-column":        &cfg.Feeder.Column,
		"tracing-endpoint":     &cfg.Tracing.Endpoint,
		"tracing-protocol":     &cfg.Tracing.Protocol,
		"tracing-service-name": &cfg.Tracing.ServiceName,
	} {
		if !fs.Changed(flag) {
			continue
		}
		val, err := fs.GetString(flag)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(val)
	}

	for flag, dst := range map[string]*time.Duration{
		"timeout":             &cfg.Timeout,
		"drain-grace":         &cfg.DrainGrace,
		"cache-hit-threshold": &cfg.CacheHitThreshold,
		"progress":            &cfg.Progress,
	} {
		if !fs.Changed(flag) {
			continue
		}
		val, err := fs.GetDuration(flag)
		if err != nil {
			return err
		}
		*dst = val
	}

	if fs.Changed("seed") {
		val, err := fs.GetInt64("seed")
		if err != nil {
			return err
		}
		cfg.Seed = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = append(cfg.Thresholds, val...)
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = &val
	}
	return nil
}
