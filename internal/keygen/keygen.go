// Package keygen produces 64-bit primary keys derived from the clock.
package keygen

import (
	"sync"
	"time"
)

// Generator hands out primary keys.
type Generator interface {
	Next() int64
}

// Timestamp derives keys from the wall clock in microseconds. Keys are
// strictly increasing within one process: when two calls land on the same
// microsecond (or the clock steps back) the previous key plus one is used.
type Timestamp struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewTimestamp returns a generator reading the system clock.
func NewTimestamp() *Timestamp {
	return &Timestamp{now: time.Now}
}

// NewTimestampWithClock returns a generator reading now.
func NewTimestampWithClock(now func() time.Time) *Timestamp {
	return &Timestamp{now: now}
}

// Next returns the next key.
func (g *Timestamp) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	k := g.now().UnixMicro()
	if k <= g.last {
		k = g.last + 1
	}
	g.last = k
	return k
}

var defaultGenerator = NewTimestamp()

// Next returns a key from the process-wide generator.
func Next() int64 {
	return defaultGenerator.Next()
}
