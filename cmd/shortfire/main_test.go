package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/torosent/shortfire/internal/config"
	"github.com/torosent/shortfire/internal/fakeshlink"
)

const smokeScenario = `
name: smoke
description: tiny end-to-end run
setup:
  rate: 200
  groups:
    - name: hot
      count: 4
      slug_prefix: smoke
      url_template: "https://example.com/smoke/{{index}}"
streams:
  - name: url_creation
    kind: creation
    max_in_flight: 4
    start_rate: 20
    stages:
      - {duration: 300ms, target: 20}
    url_template: "https://example.com/new/{{seq}}"
    append_to_pool: true
  - name: redirects
    kind: redirect
    max_in_flight: 8
    start_rate: 40
    stages:
      - {duration: 300ms, target: 40}
    tiers:
      - {name: hot, weight: 0.8, group: hot}
      - {name: rest, weight: 0.2, from_pool: true}
thresholds:
  - "redirect_success_rate:rate > 0.9"
`

func newTestApp() (*app, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return &app{
		stdout: &stdout,
		stderr: &stderr,
		loader: &config.Loader{Getenv: func(string) string { return "" }},
	}, &stdout, &stderr
}

func startFakeShlink(t *testing.T) string {
	t.Helper()
	srv := fakeshlink.New(fakeshlink.Options{APIKey: "test-key", MissLatency: 5 * time.Millisecond})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func writeScenario(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "smoke.yaml")
	require.NoError(t, os.WriteFile(path, []byte(smokeScenario), 0o600))
	return path
}

func TestRunAgainstFakeShlink(t *testing.T) {
	a, stdout, stderr := newTestApp()
	results := t.TempDir()

	code := execute(context.Background(), []string{
		"run",
		"--base-url", startFakeShlink(t),
		"--api-key", "test-key",
		"--scenario-file", writeScenario(t),
		"--results-dir", results,
		"--drain-grace", "2s",
		"--seed", "7",
		"--log-level", "error",
		"--json-output",
	}, a)
	require.Equal(t, exitOK, code, stderr.String())

	out := stdout.String()
	require.True(t, gjson.Valid(out), out)
	assert.Equal(t, "pass", gjson.Get(out, "verdict").String())
	assert.Equal(t, "smoke", gjson.Get(out, "scenario").String())
	assert.Equal(t, int64(7), gjson.Get(out, "seed").Int())
	assert.Equal(t, int64(4), gjson.Get(out, "setup.created").Int())
	assert.Equal(t, int64(2), gjson.Get(out, "streams.#").Int())

	files, err := filepath.Glob(filepath.Join(results, "smoke-*-summary.json"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestRunFailVerdictExitsTwo(t *testing.T) {
	a, stdout, _ := newTestApp()

	code := execute(context.Background(), []string{
		"run",
		"--base-url", startFakeShlink(t),
		"--api-key", "test-key",
		"--scenario-file", writeScenario(t),
		"--results-dir", "",
		"--log-level", "error",
		"--threshold", "http_reqs:count < 1",
	}, a)
	assert.Equal(t, exitVerdictFail, code)
	assert.Contains(t, stdout.String(), "Verdict:           FAIL")
}

func TestRunSetupFailureIsAnError(t *testing.T) {
	a, _, stderr := newTestApp()

	code := execute(context.Background(), []string{
		"run",
		"--base-url", startFakeShlink(t),
		"--api-key", "wrong-key",
		"--scenario-file", writeScenario(t),
		"--results-dir", "",
		"--log-level", "error",
	}, a)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr.String(), "setup")
}

func TestValidatePreset(t *testing.T) {
	a, stdout, _ := newTestApp()
	code := execute(context.Background(), []string{"validate", "--api-key", "k", "--scenario", "baseline"}, a)
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout.String(), `OK: scenario "baseline"`)
}

func TestValidateRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing api key", []string{"validate", "--scenario", "baseline"}},
		{"unknown scenario", []string{"validate", "--api-key", "k", "--scenario", "nope"}},
		{"bad threshold", []string{"validate", "--api-key", "k", "--threshold", "not a threshold"}},
		{"missing file", []string{"validate", "--api-key", "k", "--scenario-file", "/does/not/exist.yaml"}},
		{"unknown flag", []string{"validate", "--bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, stderr := newTestApp()
			assert.Equal(t, exitError, execute(context.Background(), tt.args, a))
			assert.Contains(t, stderr.String(), "Error:")
		})
	}
}

func TestScenariosListsPresets(t *testing.T) {
	a, stdout, _ := newTestApp()
	require.Equal(t, exitOK, execute(context.Background(), []string{"scenarios"}, a))
	for _, name := range config.Presets() {
		assert.Contains(t, stdout.String(), name)
	}
}
