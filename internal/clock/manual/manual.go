// Package manual provides deterministic clock and ticker implementations for
// tests and headless simulation drivers.
package manual

import (
	"sync"
	"time"
)

// Clock is a settable clock. The zero value starts at the Unix epoch.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a Clock pinned to the given instant.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the pinned time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Ticker fires only when Tick is called.
type Ticker struct {
	ch chan time.Time
}

// NewTicker creates a manual Ticker with a small buffer so test drivers can
// queue ticks without a concurrent receiver.
func NewTicker() *Ticker {
	return &Ticker{ch: make(chan time.Time, 16)}
}

// C returns the tick channel.
func (t *Ticker) C() <-chan time.Time {
	return t.ch
}

// Tick delivers one tick.
func (t *Ticker) Tick(at time.Time) {
	t.ch <- at
}

// Stop implements clock.Ticker; manual tickers hold no resources.
func (t *Ticker) Stop() {}
