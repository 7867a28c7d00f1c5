package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/torosent/shortfire/internal/runner"
)

// StreamKind is the request type a stream issues.
type StreamKind string

const (
	StreamCreation StreamKind = "creation"
	StreamRedirect StreamKind = "redirect"
	StreamViral    StreamKind = "viral"
)

// Scenario is a declarative workload: what to seed, which streams to run
// and which thresholds decide the verdict.
type Scenario struct {
	Name         string         `yaml:"name"`
	Description  string         `yaml:"description"`
	Setup        SetupConfig    `yaml:"setup"`
	Streams      []StreamConfig `yaml:"streams"`
	Thresholds   []string       `yaml:"thresholds"`
	CacheQuality bool           `yaml:"cache_quality"`
}

// SetupConfig controls target seeding before traffic starts.
type SetupConfig struct {
	Rate      float64     `yaml:"rate"`       // creations per second
	Retries   int         `yaml:"retries"`    // extra attempts per target
	MinSeeded int         `yaml:"min_seeded"` // fewer seeded targets aborts the run
	Groups    []SeedGroup `yaml:"groups"`
}

// SeedGroup is a batch of targets created during setup. Either Count
// generated slugs (SlugPrefix-<run>-<index>) or the fixed Slugs are created.
type SeedGroup struct {
	Name        string   `yaml:"name"`
	Count       int      `yaml:"count"`
	SlugPrefix  string   `yaml:"slug_prefix"`
	Slugs       []string `yaml:"slugs"`
	URLTemplate string   `yaml:"url_template"`
	Tags        []string `yaml:"tags"`
	// AcceptExisting treats "slug already exists" as created.
	AcceptExisting bool `yaml:"accept_existing"`
}

// Size is the number of targets the group asks for.
func (g SeedGroup) Size() int {
	if len(g.Slugs) > 0 {
		return len(g.Slugs)
	}
	return g.Count
}

// StreamConfig describes one arrival-rate stream.
type StreamConfig struct {
	Name        string        `yaml:"name"`
	Kind        StreamKind    `yaml:"kind"`
	Arrival     string        `yaml:"arrival"`
	MaxInFlight int           `yaml:"max_in_flight"`
	StartDelay  time.Duration `yaml:"start_delay"`
	StartRate   float64       `yaml:"start_rate"`
	Stages      []StageConfig `yaml:"stages"`

	// Redirect and viral streams.
	Tiers []TierConfig `yaml:"tiers"`

	// Creation streams.
	URLTemplate   string   `yaml:"url_template"`
	TitleTemplate string   `yaml:"title_template"`
	Tags          []string `yaml:"tags"`
	// AppendToPool publishes created codes to the shared target pool.
	AppendToPool bool `yaml:"append_to_pool"`
}

// StageConfig ramps the rate from the previous target to Target.
type StageConfig struct {
	Duration time.Duration `yaml:"duration"`
	Target   float64       `yaml:"target"`
}

// TierConfig is one weighted slice of the target population. Members come
// from a seed group, or from the live pool when FromPool is set.
type TierConfig struct {
	Name         string  `yaml:"name"`
	Weight       float64 `yaml:"weight"`
	Group        string  `yaml:"group"`
	FromPool     bool    `yaml:"from_pool"`
	HeadFraction float64 `yaml:"head_fraction"`
	HeadLimit    int     `yaml:"head_limit"`
	MinMembers   int     `yaml:"min_members"`
}

// RunnerStages converts the k6-style stage list into linear ramps. A start
// delay becomes a leading zero-rate stage.
func (s StreamConfig) RunnerStages() []runner.Stage {
	out := make([]runner.Stage, 0, len(s.Stages)+1)
	if s.StartDelay > 0 {
		out = append(out, runner.Stage{Duration: s.StartDelay})
	}
	prev := s.StartRate
	for _, st := range s.Stages {
		out = append(out, runner.Stage{Duration: st.Duration, StartRate: prev, EndRate: st.Target})
		prev = st.Target
	}
	return out
}

// Duration is the stream's total duration including any start delay.
func (s StreamConfig) Duration() time.Duration {
	total := s.StartDelay
	for _, st := range s.Stages {
		total += st.Duration
	}
	return total
}

// Duration is the longest stream duration.
func (sc Scenario) Duration() time.Duration {
	var longest time.Duration
	for _, st := range sc.Streams {
		if d := st.Duration(); d > longest {
			longest = d
		}
	}
	return longest
}

// Group returns the named seed group.
func (sc Scenario) Group(name string) (SeedGroup, bool) {
	for _, g := range sc.Setup.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return SeedGroup{}, false
}

func (sc Scenario) validate() []string {
	var issues []string
	if len(sc.Streams) == 0 {
		issues = append(issues, "scenario: at least one stream is required")
	}
	if sc.Setup.Rate < 0 {
		issues = append(issues, "setup: rate must be >= 0")
	}
	if sc.Setup.Retries < 0 {
		issues = append(issues, "setup: retries must be >= 0")
	}

	seeded := 0
	groups := map[string]bool{}
	for idx, g := range sc.Setup.Groups {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			issues = append(issues, fmt.Sprintf("setup.groups[%d]: name is required", idx))
		} else if groups[name] {
			issues = append(issues, fmt.Sprintf("setup.groups[%d]: duplicate name %q", idx, name))
		}
		groups[name] = true
		if g.Count < 0 {
			issues = append(issues, fmt.Sprintf("setup.groups[%d]: count must be >= 0", idx))
		}
		if g.Count > 0 && len(g.Slugs) > 0 {
			issues = append(issues, fmt.Sprintf("setup.groups[%d]: count and slugs are mutually exclusive", idx))
		}
		seeded += g.Size()
	}
	if sc.Setup.MinSeeded > seeded {
		issues = append(issues, fmt.Sprintf("setup: min_seeded %d exceeds the %d targets requested", sc.Setup.MinSeeded, seeded))
	}

	names := map[string]bool{}
	for idx, st := range sc.Streams {
		prefix := fmt.Sprintf("streams[%d]", idx)
		if strings.TrimSpace(st.Name) == "" {
			issues = append(issues, prefix+": name is required")
		} else if names[st.Name] {
			issues = append(issues, fmt.Sprintf("%s: duplicate name %q", prefix, st.Name))
		}
		names[st.Name] = true

		switch st.Kind {
		case StreamCreation:
			if len(st.Tiers) > 0 {
				issues = append(issues, prefix+": creation streams do not sample tiers")
			}
		case StreamRedirect, StreamViral:
			if len(st.Tiers) == 0 {
				issues = append(issues, prefix+": at least one tier is required")
			}
		default:
			issues = append(issues, fmt.Sprintf("%s: kind must be creation, redirect or viral, got %q", prefix, st.Kind))
		}
		if _, err := runner.ParseArrivalModel(st.Arrival); err != nil {
			issues = append(issues, fmt.Sprintf("%s: %v", prefix, err))
		}
		if st.MaxInFlight < 1 {
			issues = append(issues, prefix+": max_in_flight must be >= 1")
		}
		if st.StartDelay < 0 {
			issues = append(issues, prefix+": start_delay must be >= 0")
		}
		if st.StartRate < 0 {
			issues = append(issues, prefix+": start_rate must be >= 0")
		}
		if err := runner.ValidateStages(st.RunnerStages()); err != nil {
			for _, line := range strings.Split(err.Error(), "\n") {
				issues = append(issues, fmt.Sprintf("%s: %s", prefix, line))
			}
		}

		for tIdx, tier := range st.Tiers {
			tp := fmt.Sprintf("%s.tiers[%d]", prefix, tIdx)
			if tier.Weight <= 0 || tier.Weight > 1 {
				issues = append(issues, tp+": weight must be in (0, 1]")
			}
			if tier.FromPool == (tier.Group != "") {
				issues = append(issues, tp+": exactly one of group or from_pool is required")
			}
			if tier.Group != "" && !groups[tier.Group] {
				issues = append(issues, fmt.Sprintf("%s: unknown seed group %q", tp, tier.Group))
			}
			if tier.HeadFraction < 0 || tier.HeadFraction > 1 {
				issues = append(issues, tp+": head_fraction must be in [0, 1]")
			}
			if tier.HeadLimit < 0 || tier.MinMembers < 0 {
				issues = append(issues, tp+": head_limit and min_members must be >= 0")
			}
		}
	}
	return issues
}
