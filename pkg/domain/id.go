package domain

import (
	"strconv"
	"sync"
	"time"
)

// IDGenerator hands out request ids of the form sessionAccessId-<unix nanos>.
// Ids are strictly increasing per generator: when the clock has not moved
// since the previous id, the previous value plus one is used.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewIDGenerator returns a generator backed by the wall clock.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

// Next returns a fresh id.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.now().UnixNano()
	if ts <= g.last {
		ts = g.last + 1
	}
	g.last = ts
	return IDPrefix + strconv.FormatInt(ts, 10)
}
