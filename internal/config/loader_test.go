package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/shortfire/internal/config"
)

func envFrom(vals map[string]string) func(string) string {
	return func(key string) string { return vals[key] }
}

func TestLoaderDefaults(t *testing.T) {
	l := config.Loader{Getenv: envFrom(nil)}
	cfg, err := l.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, config.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, "baseline", cfg.Scenario)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 10*time.Second, cfg.DrainGrace)
	assert.Equal(t, 50*time.Millisecond, cfg.CacheHitThreshold)
	assert.Equal(t, "shortCode", cfg.ShortCodePath)
	assert.Equal(t, "short_code", cfg.Feeder.Column)
	assert.Equal(t, "shortfire", cfg.Tracing.ServiceName)
	assert.Empty(t, cfg.APIKey)
}

func TestLoaderReadsEnvironment(t *testing.T) {
	l := config.Loader{Getenv: envFrom(map[string]string{
		"BASE_URL":                     "http://shlink.local/",
		"SHLINK_API_KEY":               "from-env",
		"SHORTFIRE_SCENARIO":           "viral-event",
		"SHORTFIRE_CACHE_HIT_THRESHOLD": "20ms",
	})}
	cfg, err := l.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "http://shlink.local", cfg.BaseURL)
	assert.Equal(t, "from-env", cfg.APIKey)
	assert.Equal(t, "viral-event", cfg.Scenario)
	assert.Equal(t, 20*time.Millisecond, cfg.CacheHitThreshold)
	require.NoError(t, cfg.Validate())
}

func TestLoaderConfigFileAndFlagPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shortfire.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: http://file.local
api_key: from-file
scenario: peak-hours
timeout: 5s
drain_grace: 3
seed: 42
json_output: true
thresholds:
  - "http_req_duration:p95 < 250"
feeder:
  path: codes.csv
  type: csv
tracing:
  endpoint: localhost:4318
  protocol: http
  sample_rate: 0.5
  propagate: false
`), 0o600))

	l := config.Loader{Getenv: envFrom(map[string]string{"SHLINK_API_KEY": "from-env"})}
	cfg, err := l.Load([]string{
		"--config", path,
		"--scenario", "cache-performance",
		"--threshold", "cache_hit_rate:rate > 0.9",
	})
	require.NoError(t, err)

	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, "http://file.local", cfg.BaseURL)
	assert.Equal(t, "from-env", cfg.APIKey)
	assert.Equal(t, "cache-performance", cfg.Scenario)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 3*time.Second, cfg.DrainGrace)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.True(t, cfg.JSONOutput)
	assert.Equal(t, []string{"http_req_duration:p95 < 250", "cache_hit_rate:rate > 0.9"}, cfg.Thresholds)
	assert.Equal(t, config.FeederConfig{Path: "codes.csv", Type: "csv", Column: "short_code"}, cfg.Feeder)
	assert.Equal(t, "localhost:4318", cfg.Tracing.Endpoint)
	assert.Equal(t, "http", cfg.Tracing.Protocol)
	assert.Equal(t, 0.5, cfg.Tracing.SampleRate)
	require.NotNil(t, cfg.Tracing.Propagate)
	assert.False(t, *cfg.Tracing.Propagate)
}

func TestLoaderMissingConfigFile(t *testing.T) {
	l := config.Loader{Getenv: envFrom(nil)}
	_, err := l.Load([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")})
	require.Error(t, err)
}

func TestLoaderHelp(t *testing.T) {
	l := config.Loader{Getenv: envFrom(nil)}
	_, err := l.Load([]string{"--help"})
	assert.ErrorIs(t, err, config.ErrHelpRequested)
}

func TestLoadFlagsFromCobraCommand(t *testing.T) {
	cmd := &cobra.Command{Use: "run"}
	config.RegisterFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--api-key", "k", "--seed", "7", "--progress", "5s"}))

	l := config.Loader{Getenv: envFrom(nil)}
	cfg, err := l.LoadFlags(cmd.Flags())
	require.NoError(t, err)
	assert.Equal(t, "k", cfg.APIKey)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 5*time.Second, cfg.Progress)
}
