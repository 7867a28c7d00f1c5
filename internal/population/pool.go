package population

import (
	"sync"
	"sync/atomic"
)

// Pool is an append-only list of target identifiers shared between the
// streams of a run. Appends are serialised; readers load the last published
// slice header without locking, so a reader never observes a partially
// appended element.
type Pool struct {
	mu        sync.Mutex
	published atomic.Pointer[[]string]
}

// NewPool creates a pool holding a copy of initial.
func NewPool(initial []string) *Pool {
	p := &Pool{}
	ids := append([]string(nil), initial...)
	p.published.Store(&ids)
	return p
}

// Append adds ids to the pool and publishes the new view.
func (p *Pool) Append(ids ...string) {
	if len(ids) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	// Writes land past every published length, so readers holding an older
	// header never see them change.
	next := append(p.load(), ids...)
	p.published.Store(&next)
}

// Snapshot returns the currently published members. The returned slice must
// not be modified.
func (p *Pool) Snapshot() []string {
	if p == nil {
		return nil
	}
	return p.load()
}

// Len returns the number of published members.
func (p *Pool) Len() int {
	return len(p.Snapshot())
}

func (p *Pool) load() []string {
	ptr := p.published.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}
