package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/shortfire/internal/config"
	"github.com/torosent/shortfire/internal/runner"
)

func TestPresetsDecodeAndValidate(t *testing.T) {
	names := config.Presets()
	assert.Equal(t, []string{"baseline", "cache-performance", "peak-hours", "viral-event"}, names)

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			sc, err := config.Preset(name)
			require.NoError(t, err)
			assert.Equal(t, name, sc.Name)
			require.NoError(t, config.ValidateScenario(sc))
			assert.NotEmpty(t, sc.Thresholds)
			assert.Greater(t, sc.Setup.Rate, 0.0)
		})
	}
}

func TestPresetUnknown(t *testing.T) {
	_, err := config.Preset("black-friday")
	require.ErrorIs(t, err, config.ErrUnknownScenario)
	assert.Contains(t, err.Error(), "baseline")
}

func TestBaselineStartDelay(t *testing.T) {
	sc, err := config.Preset("baseline")
	require.NoError(t, err)
	require.Len(t, sc.Streams, 2)

	redirect := sc.Streams[1]
	assert.Equal(t, config.StreamRedirect, redirect.Kind)
	stages := redirect.RunnerStages()
	require.Len(t, stages, 2)
	assert.Equal(t, runner.Stage{Duration: 2 * time.Minute}, stages[0])
	assert.Equal(t, runner.Stage{Duration: 10 * time.Minute, StartRate: 20, EndRate: 20}, stages[1])
	assert.Equal(t, 12*time.Minute, redirect.Duration())

	stream := runner.Stream{Stages: stages}
	assert.InDelta(t, 12000, stream.ExpectedTicks(), 1e-6)
	assert.Equal(t, 12*time.Minute, sc.Duration())
}

func TestPeakHoursRamp(t *testing.T) {
	sc, err := config.Preset("peak-hours")
	require.NoError(t, err)

	stages := sc.Streams[1].RunnerStages()
	assert.Equal(t, []runner.Stage{
		{Duration: 30 * time.Second, StartRate: 20, EndRate: 50},
		{Duration: 270 * time.Second, StartRate: 50, EndRate: 50},
		{Duration: 30 * time.Second, StartRate: 50, EndRate: 20},
	}, stages)

	popular := sc.Streams[1].Tiers[0]
	assert.True(t, popular.FromPool)
	assert.Equal(t, 0.2, popular.HeadFraction)
	assert.Equal(t, 6, popular.MinMembers)
}

func TestViralEventGroups(t *testing.T) {
	sc, err := config.Preset("viral-event")
	require.NoError(t, err)

	viral, ok := sc.Group("viral")
	require.True(t, ok)
	assert.Equal(t, 10, viral.Size())

	spike := sc.Streams[2]
	assert.Equal(t, config.StreamViral, spike.Kind)
	assert.Equal(t, "poisson", spike.Arrival)
	assert.Equal(t, 3, spike.Tiers[0].HeadLimit)
	assert.Equal(t, 9*time.Minute, spike.Duration())
}

func TestCachePerformanceFixedSlugs(t *testing.T) {
	sc, err := config.Preset("cache-performance")
	require.NoError(t, err)
	assert.True(t, sc.CacheQuality)

	popular, ok := sc.Group("popular")
	require.True(t, ok)
	assert.Equal(t, []string{"popular1", "popular2", "popular3", "popular4"}, popular.Slugs)
	assert.True(t, popular.AcceptExisting)
}

func TestScenarioValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want []string
	}{
		{
			name: "no streams",
			yaml: "name: empty\n",
			want: []string{"at least one stream is required"},
		},
		{
			name: "bad stream",
			yaml: `
name: bad
streams:
  - name: r
    kind: lookup
    arrival: bursty
    max_in_flight: 0
    stages:
      - {duration: -1s, target: 5}
`,
			want: []string{"kind must be creation, redirect or viral", "unknown arrival model", "max_in_flight must be >= 1", "stage 0"},
		},
		{
			name: "tier errors",
			yaml: `
name: tiers
streams:
  - name: r
    kind: redirect
    max_in_flight: 5
    stages:
      - {duration: 1s, target: 5}
    tiers:
      - {name: a, weight: 1.5, group: missing}
      - {name: b, weight: 0.5}
`,
			want: []string{"weight must be in (0, 1]", "unknown seed group", "exactly one of group or from_pool"},
		},
		{
			name: "duplicate names",
			yaml: `
name: dup
setup:
  min_seeded: 5
  groups:
    - {name: g, count: 2}
streams:
  - {name: c, kind: creation, max_in_flight: 1, stages: [{duration: 1s, target: 1}]}
  - {name: c, kind: creation, max_in_flight: 1, stages: [{duration: 1s, target: 1}]}
`,
			want: []string{"duplicate name", "min_seeded 5 exceeds"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := config.DecodeScenario(strings.NewReader(tt.yaml))
			require.NoError(t, err)
			err = config.ValidateScenario(sc)
			require.Error(t, err)
			for _, want := range tt.want {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestDecodeScenarioRejectsUnknownKeys(t *testing.T) {
	_, err := config.DecodeScenario(strings.NewReader("name: x\nvus: 10\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vus")
}

func TestLoadScenarioFileNamesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "smoke.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
streams:
  - name: redirects
    kind: redirect
    max_in_flight: 2
    stages:
      - {duration: 5s, target: 2}
    tiers:
      - {name: all, weight: 1, from_pool: true}
`), 0o600))

	sc, err := config.LoadScenarioFile(path)
	require.NoError(t, err)
	assert.Equal(t, "smoke", sc.Name)
	assert.Equal(t, 10.0, sc.Setup.Rate)
	assert.Equal(t, "uniform", sc.Streams[0].Arrival)
}

func TestResolveScenarioAppendsThresholds(t *testing.T) {
	cfg := config.Config{Scenario: "baseline", Thresholds: []string{"http_reqs:count > 10"}}
	sc, err := cfg.ResolveScenario()
	require.NoError(t, err)
	assert.Equal(t, "http_reqs:count > 10", sc.Thresholds[len(sc.Thresholds)-1])
}
