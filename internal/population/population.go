// Package population models the set of short codes a redirect stream can
// target and selects among them with a skewed, tiered distribution.
//
// A [Population] is an ordered list of [Tier] values. Each tier carries a
// relative weight; the sampler walks the tiers in declared order and picks
// the first one whose cumulative weight exceeds a uniform draw. Weights need
// not sum to one: draws falling past the last cumulative weight land in the
// last declared tier, which models the long tail.
//
// Tiers either hold a fixed member list, captured during setup and never
// mutated, or read from a shared append-only [Pool] that grows as the
// creation stream produces new codes.
package population

import (
	"errors"
	"math"
)

// ErrEmptyPopulation is returned when no tier has a member to select.
var ErrEmptyPopulation = errors.New("population: no tier has members")

// Tier is a named share of traffic directed at a subset of targets.
type Tier struct {
	Name   string
	Weight float64

	// Members is the fixed member list. Ignored when FromPool is set.
	Members []string
	// FromPool makes the tier read the population's live pool.
	FromPool bool

	// HeadFraction restricts selection to the first fraction of members
	// (0 or 1 means all of them). Models concentrated access to the
	// oldest, most popular targets.
	HeadFraction float64
	// HeadLimit caps the number of head members considered (0 = no cap).
	HeadLimit int
	// MinMembers treats the tier as absent while it has fewer members.
	MinMembers int
}

// Population is an immutable tier configuration bound to a shared pool.
type Population struct {
	tiers []Tier
	pool  *Pool
}

// New builds a population over tiers. Member slices are copied so later
// changes by the caller cannot race with sampling.
func New(tiers []Tier, pool *Pool) *Population {
	copied := make([]Tier, len(tiers))
	for i, t := range tiers {
		t.Members = append([]string(nil), t.Members...)
		copied[i] = t
	}
	return &Population{tiers: copied, pool: pool}
}

// Tiers returns a copy of the configured tiers.
func (p *Population) Tiers() []Tier {
	return append([]Tier(nil), p.tiers...)
}

// Pool returns the shared pool, which may be nil.
func (p *Population) Pool() *Pool {
	return p.pool
}

// Len returns the number of selectable members across all tiers. Pool
// members shared by several tiers are counted once per tier.
func (p *Population) Len() int {
	total := 0
	for i := range p.tiers {
		total += len(p.candidates(i))
	}
	return total
}

// Sample draws one target identifier using rng.
func (p *Population) Sample(rng RNG) (string, error) {
	idx, ok := p.SelectTier(rng.Float64())
	if !ok {
		return "", ErrEmptyPopulation
	}
	members := p.candidates(idx)
	return members[rng.Intn(len(members))], nil
}

// SelectTier maps a draw r in [0,1) to a tier index. It reports false when
// every tier is absent.
func (p *Population) SelectTier(r float64) (int, bool) {
	if len(p.tiers) == 0 {
		return 0, false
	}
	cumulative := 0.0
	for i, t := range p.tiers {
		cumulative += t.Weight
		if r < cumulative {
			if idx, ok := p.nextPresent(i); ok {
				return idx, true
			}
			break
		}
	}
	return p.lastPresent()
}

// nextPresent returns the first tier at or after from with members.
func (p *Population) nextPresent(from int) (int, bool) {
	for i := from; i < len(p.tiers); i++ {
		if len(p.candidates(i)) > 0 {
			return i, true
		}
	}
	return 0, false
}

func (p *Population) lastPresent() (int, bool) {
	for i := len(p.tiers) - 1; i >= 0; i-- {
		if len(p.candidates(i)) > 0 {
			return i, true
		}
	}
	return 0, false
}

// candidates returns the members tier i may select from after the head
// restriction, or nil if the tier is absent.
func (p *Population) candidates(i int) []string {
	t := p.tiers[i]
	members := t.Members
	if t.FromPool {
		members = p.pool.Snapshot()
	}
	if len(members) == 0 || len(members) < t.MinMembers {
		return nil
	}
	n := len(members)
	if t.HeadFraction > 0 && t.HeadFraction < 1 {
		n = int(math.Floor(float64(n) * t.HeadFraction))
	}
	if t.HeadLimit > 0 && n > t.HeadLimit {
		n = t.HeadLimit
	}
	if n <= 0 {
		return nil
	}
	return members[:n]
}
