package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader assembles a Config from defaults, an optional config file, the
// environment and command-line flags, in increasing order of precedence.
type Loader struct {
	// Getenv overrides environment lookups in tests; nil uses the process
	// environment.
	Getenv func(string) string
}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// envBindings maps config keys to the environment variables read for them.
// Every key is also readable as SHORTFIRE_<KEY>.
var envBindings = map[string][]string{
	"base_url":            {"BASE_URL"},
	"api_key":             {"SHLINK_API_KEY"},
	"scenario":            nil,
	"scenario_file":       nil,
	"seed":                nil,
	"results_dir":         nil,
	"log_level":           nil,
	"log_format":          nil,
	"metrics_addr":        nil,
	"cache_hit_threshold": nil,
}

func NewLoader() *Loader {
	return &Loader{}
}

// Load parses args with the full flag set and loads the configuration.
func (l Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}
	if help, _ := cmd.Flags().GetBool("help"); help {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}
	return l.LoadFlags(cmd.Flags())
}

// LoadFlags loads the configuration from an already parsed flag set, such as
// the one cobra hands a subcommand.
func (l Loader) LoadFlags(fs *pflag.FlagSet) (*Config, error) {
	configPath := ""
	if f := fs.Lookup("config"); f != nil {
		configPath = strings.TrimSpace(f.Value.String())
	}

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}
	if err := l.bindEnv(v); err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, v.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, fs); err != nil {
		return nil, err
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Scenario = strings.TrimSpace(cfg.Scenario)
	cfg.ScenarioFile = strings.TrimSpace(cfg.ScenarioFile)
	return cfg, nil
}

func (l Loader) bindEnv(v *viper.Viper) error {
	if l.Getenv != nil {
		// viper only reads the process environment, so injected values are
		// applied as overrides on the keys they bind.
		for key, names := range envBindings {
			for _, name := range append([]string{"SHORTFIRE_" + strings.ToUpper(key)}, names...) {
				if val := l.Getenv(name); val != "" {
					v.Set(key, val)
					break
				}
			}
		}
		return nil
	}
	for key, names := range envBindings {
		args := append([]string{key, "SHORTFIRE_" + strings.ToUpper(key)}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		BaseURL:           DefaultBaseURL,
		Scenario:          DefaultScenario,
		Timeout:           DefaultTimeout,
		DrainGrace:        DefaultDrainGrace,
		CacheHitThreshold: DefaultCacheHitLatency,
		ShortCodePath:     "shortCode",
		ResultsDir:        DefaultResultsDir,
		LogLevel:          "info",
		LogFormat:         "console",
		Feeder:            FeederConfig{Column: "short_code"},
		Tracing:           TracingConfig{ServiceName: "shortfire", Protocol: "grpc", SampleRate: 1},
	}
}

// applyConfigSettings applies settings from the config file and environment.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	stringFields := []struct {
		dst  *string
		keys []string
	}{
		{&cfg.BaseURL, []string{"base_url", "baseurl", "base-url"}},
		{&cfg.APIKey, []string{"api_key", "apikey", "api-key"}},
		{&cfg.Scenario, []string{"scenario"}},
		{&cfg.ScenarioFile, []string{"scenario_file", "scenariofile", "scenario-file"}},
		{&cfg.ShortCodePath, []string{"short_code_path", "shortcodepath", "short-code-path"}},
		{&cfg.ResultsDir, []string{"results_dir", "resultsdir", "results-dir"}},
		{&cfg.LogLevel, []string{"log_level", "loglevel", "log-level"}},
		{&cfg.LogFormat, []string{"log_format", "logformat", "log-format"}},
		{&cfg.MetricsAddr, []string{"metrics_addr", "metricsaddr", "metrics-addr"}},
	}
	for _, s := range stringFields {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		if val != "" {
			*s.dst = val
		}
	}

	durations := []struct {
		dst  *time.Duration
		keys []string
	}{
		{&cfg.Timeout, []string{"timeout"}},
		{&cfg.DrainGrace, []string{"drain_grace", "draingrace", "drain-grace"}},
		{&cfg.CacheHitThreshold, []string{"cache_hit_threshold", "cachehitthreshold", "cache-hit-threshold"}},
		{&cfg.Progress, []string{"progress"}},
	}
	for _, d := range durations {
		raw, ok := lookupSetting(settings, d.keys...)
		if !ok || raw == nil {
			continue
		}
		val, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.keys[0], err)
		}
		*d.dst = val
	}

	if raw, ok := lookupSetting(settings, "seed"); ok && raw != nil {
		val, err := asInt64(raw)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		cfg.Seed = val
	}

	if raw, ok := lookupSetting(settings, "json_output", "jsonoutput", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("json_output: %w", err)
		}
		cfg.JSONOutput = val
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = val
	}

	if raw, ok := lookupSetting(settings, "feeder"); ok {
		if err := applyFeederSettings(&cfg.Feeder, raw); err != nil {
			return fmt.Errorf("feeder: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := applyTracingSettings(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func applyFeederSettings(f *FeederConfig, raw interface{}) error {
	section, err := toStringKeyMap(raw)
	if err != nil {
		return err
	}
	for key, dst := range map[string]*string{"path": &f.Path, "type": &f.Type, "column": &f.Column} {
		if v, ok := section[key]; ok {
			s, err := asString(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			if s != "" {
				*dst = strings.TrimSpace(s)
			}
		}
	}
	return nil
}

func applyTracingSettings(t *TracingConfig, raw interface{}) error {
	section, err := toStringKeyMap(raw)
	if err != nil {
		return err
	}
	for _, key := range []string{"endpoint", "protocol", "service_name"} {
		v, ok := lookupSetting(section, key, strings.ReplaceAll(key, "_", ""))
		if !ok {
			continue
		}
		s, err := asString(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		switch key {
		case "endpoint":
			t.Endpoint = s
		case "protocol":
			t.Protocol = strings.ToLower(s)
		case "service_name":
			if s != "" {
				t.ServiceName = s
			}
		}
	}
	if v, ok := lookupSetting(section, "sample_rate", "samplerate"); ok {
		rate, err := asFloat64(v)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		t.SampleRate = rate
	}
	if v, ok := section["insecure"]; ok {
		b, err := asBool(v)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		t.Insecure = b
	}
	if v, ok := section["propagate"]; ok {
		b, err := asBool(v)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		t.Propagate = &b
	}
	return nil
}
