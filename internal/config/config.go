package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// ErrMissingCredential is returned by Validate when no API key was supplied.
var ErrMissingCredential = errors.New("api key is required (flag --api-key, config api_key or env SHLINK_API_KEY)")

const (
	DefaultBaseURL         = "http://localhost:8080"
	DefaultScenario        = "baseline"
	DefaultTimeout         = 30 * time.Second
	DefaultDrainGrace      = 10 * time.Second
	DefaultCacheHitLatency = 50 * time.Millisecond
	DefaultResultsDir      = "results"
)

type Config struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Scenario          string        `mapstructure:"scenario"`
	ScenarioFile      string        `mapstructure:"scenario_file"`
	Timeout           time.Duration `mapstructure:"timeout"`
	DrainGrace        time.Duration `mapstructure:"drain_grace"`
	Seed              int64         `mapstructure:"seed"`
	CacheHitThreshold time.Duration `mapstructure:"cache_hit_threshold"`
	ShortCodePath     string        `mapstructure:"short_code_path"`
	JSONOutput        bool          `mapstructure:"json_output"`
	ResultsDir        string        `mapstructure:"results_dir"`
	LogLevel          string        `mapstructure:"log_level"`
	LogFormat         string        `mapstructure:"log_format"`
	MetricsAddr       string        `mapstructure:"metrics_addr"`
	Progress          time.Duration `mapstructure:"progress"`
	Thresholds        []string      `mapstructure:"thresholds"`
	Feeder            FeederConfig  `mapstructure:"feeder"`
	Tracing           TracingConfig `mapstructure:"tracing"`
	ConfigFile        string        `mapstructure:"-"`
}

// FeederConfig points at a file of pre-existing short codes.
type FeederConfig struct {
	Path   string `mapstructure:"path"`
	Type   string `mapstructure:"type"`   // "csv" or "json"
	Column string `mapstructure:"column"` // field holding the short code
}

// TracingConfig configures OTLP trace export. Tracing stays off unless an
// endpoint is configured here or through OTEL_EXPORTER_OTLP_ENDPOINT.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   *bool   `mapstructure:"propagate"`
}

func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether trace context is injected into outgoing
// requests. Defaults to true when tracing is enabled.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

type ValidationError struct {
	issues            []string
	missingCredential bool
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Unwrap exposes ErrMissingCredential to errors.Is.
func (e ValidationError) Unwrap() error {
	if e.missingCredential {
		return ErrMissingCredential
	}
	return nil
}

// Validate checks the run configuration. The scenario itself is checked by
// ValidateScenario once it has been resolved.
func (c Config) Validate() error {
	var verr ValidationError

	if strings.TrimSpace(c.APIKey) == "" {
		verr.missingCredential = true
		verr.issues = append(verr.issues, ErrMissingCredential.Error())
	}
	if base := strings.TrimSpace(c.BaseURL); base == "" {
		verr.issues = append(verr.issues, "base_url is required")
	} else if u, err := url.Parse(base); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		verr.issues = append(verr.issues, fmt.Sprintf("base_url must be an absolute http(s) URL, got %q", base))
	}
	if strings.TrimSpace(c.Scenario) == "" && strings.TrimSpace(c.ScenarioFile) == "" {
		verr.issues = append(verr.issues, "scenario or scenario_file is required")
	}
	if c.Timeout < 0 {
		verr.issues = append(verr.issues, "timeout must be >= 0")
	}
	if c.DrainGrace < 0 {
		verr.issues = append(verr.issues, "drain_grace must be >= 0")
	}
	if c.CacheHitThreshold < 0 {
		verr.issues = append(verr.issues, "cache_hit_threshold must be >= 0")
	}
	if c.Progress < 0 {
		verr.issues = append(verr.issues, "progress must be >= 0")
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "json", "console":
	default:
		verr.issues = append(verr.issues, fmt.Sprintf("log_format must be json or console, got %q", c.LogFormat))
	}

	verr.issues = append(verr.issues, validateFeederConfig(c.Feeder)...)
	verr.issues = append(verr.issues, validateTracingConfig(c.Tracing)...)

	if len(verr.issues) > 0 {
		return verr
	}
	return nil
}

// ValidateScenario checks a resolved scenario.
func ValidateScenario(sc Scenario) error {
	if issues := sc.validate(); len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateFeederConfig(f FeederConfig) []string {
	if strings.TrimSpace(f.Path) == "" {
		if strings.TrimSpace(f.Type) != "" {
			return []string{"feeder: path is required when type is set"}
		}
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(f.Type)) {
	case "csv", "json":
		return nil
	default:
		return []string{fmt.Sprintf("feeder: type must be csv or json, got %q", f.Type)}
	}
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be grpc or http, got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, "tracing: sample_rate must be in [0, 1]")
	}
	return issues
}
