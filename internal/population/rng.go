package population

import (
	"math/rand"
	"sync"
)

// RNG is the randomness source used for target selection and arrival
// timing. Implementations must be safe for concurrent use.
type RNG interface {
	// Float64 returns a pseudo-random number in [0,1).
	Float64() float64
	// Intn returns a pseudo-random number in [0,n). n must be > 0.
	Intn(n int) int
	// ExpFloat64 returns an exponentially distributed value with rate 1,
	// used for Poisson arrival gaps.
	ExpFloat64() float64
}

// lockedRNG serialises access to a seeded math/rand source.
type lockedRNG struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRNG returns a concurrency-safe RNG seeded with seed.
func NewRNG(seed int64) RNG {
	return &lockedRNG{rnd: rand.New(rand.NewSource(seed))}
}

func (l *lockedRNG) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rnd.Float64()
}

func (l *lockedRNG) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rnd.Intn(n)
}

func (l *lockedRNG) ExpFloat64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rnd.ExpFloat64()
}
