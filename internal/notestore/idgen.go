package notestore

import (
	"sync/atomic"
	"time"
)

// IDGenerator issues note ids based on wall-clock milliseconds, kept
// strictly increasing with an atomic compare-and-swap so concurrent
// creates within the same millisecond never collide. Seeding it with the
// highest persisted id keeps restarts collision-free as well.
type IDGenerator struct {
	last atomic.Int64
}

// NewIDGenerator creates a generator that will only issue ids above seed.
func NewIDGenerator(seed int64) *IDGenerator {
	g := &IDGenerator{}
	g.last.Store(seed)
	return g
}

// Observe raises the generator floor to id, so every subsequently issued
// id is strictly greater. Called when rows with foreign ids enter the
// index (artifacts dropped in externally can embed ids ahead of this
// machine's clock).
func (g *IDGenerator) Observe(id int64) {
	for {
		last := g.last.Load()
		if id <= last {
			return
		}
		if g.last.CompareAndSwap(last, id) {
			return
		}
	}
}

// Next returns the next id: the current wall-clock millisecond, bumped past
// the previously issued id when the clock has not advanced.
func (g *IDGenerator) Next() int64 {
	for {
		last := g.last.Load()
		next := time.Now().UnixMilli()
		if next <= last {
			next = last + 1
		}
		if g.last.CompareAndSwap(last, next) {
			return next
		}
	}
}
