package config_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/shortfire/internal/config"
)

func validConfig() config.Config {
	return config.Config{
		BaseURL:  "http://localhost:8080",
		APIKey:   "secret",
		Scenario: "baseline",
	}
}

func TestValidateAcceptsMinimalConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateMissingCredential(t *testing.T) {
	cfg := validConfig()
	cfg.APIKey = "  "

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrMissingCredential))

	var verr config.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Issues(), 1)
}

func TestValidateCollectsIssues(t *testing.T) {
	cfg := validConfig()
	cfg.BaseURL = "localhost:8080"
	cfg.Timeout = -1
	cfg.LogFormat = "xml"
	cfg.Feeder = config.FeederConfig{Path: "codes.txt", Type: "txt"}
	cfg.Tracing = config.TracingConfig{Protocol: "thrift", SampleRate: 2}

	err := cfg.Validate()
	var verr config.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.False(t, errors.Is(err, config.ErrMissingCredential))
	assert.Len(t, verr.Issues(), 6)
	assert.Contains(t, err.Error(), "base_url must be an absolute http(s) URL")
}

func TestTracingEnabledAndPropagate(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	var tc config.TracingConfig
	assert.False(t, tc.Enabled())
	assert.False(t, tc.ShouldPropagate())

	tc.Endpoint = "localhost:4317"
	assert.True(t, tc.Enabled())
	assert.True(t, tc.ShouldPropagate())

	off := false
	tc.Propagate = &off
	assert.False(t, tc.ShouldPropagate())
}
