package config

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed presets/*.yaml
var presetFS embed.FS

// ErrUnknownScenario is returned for a preset name that is not embedded.
var ErrUnknownScenario = errors.New("unknown scenario")

const defaultSetupRate = 10

// Presets returns the embedded scenario names in lexical order.
func Presets() []string {
	entries, err := presetFS.ReadDir("presets")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(names)
	return names
}

// Preset decodes an embedded scenario by name.
func Preset(name string) (Scenario, error) {
	data, err := presetFS.ReadFile("presets/" + strings.TrimSpace(name) + ".yaml")
	if err != nil {
		return Scenario{}, fmt.Errorf("%w %q (available: %s)", ErrUnknownScenario, name, strings.Join(Presets(), ", "))
	}
	return DecodeScenario(bytes.NewReader(data))
}

// LoadScenarioFile decodes a scenario from a YAML (or JSON) file.
func LoadScenarioFile(filename string) (Scenario, error) {
	f, err := os.Open(filename)
	if err != nil {
		return Scenario{}, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()
	sc, err := DecodeScenario(f)
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", filename, err)
	}
	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	}
	return sc, nil
}

// DecodeScenario reads one scenario document. Unknown keys are rejected.
func DecodeScenario(r io.Reader) (Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return Scenario{}, fmt.Errorf("decode scenario: %w", err)
	}
	applyScenarioDefaults(&sc)
	return sc, nil
}

func applyScenarioDefaults(sc *Scenario) {
	if sc.Setup.Rate == 0 {
		sc.Setup.Rate = defaultSetupRate
	}
	for i := range sc.Streams {
		st := &sc.Streams[i]
		if st.Arrival == "" {
			st.Arrival = "uniform"
		}
	}
}

// ResolveScenario loads the scenario file if one is set, otherwise the named
// preset, and appends any thresholds given on the run configuration.
func (c Config) ResolveScenario() (Scenario, error) {
	var (
		sc  Scenario
		err error
	)
	if strings.TrimSpace(c.ScenarioFile) != "" {
		sc, err = LoadScenarioFile(c.ScenarioFile)
	} else {
		sc, err = Preset(c.Scenario)
	}
	if err != nil {
		return Scenario{}, err
	}
	sc.Thresholds = append(sc.Thresholds, c.Thresholds...)
	if err := ValidateScenario(sc); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}
