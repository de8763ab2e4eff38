// Package system provides real clock and ticker implementations.
package system

import "time"

// Clock implements clock.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Ticker adapts time.Ticker to the clock.Ticker capability.
type Ticker struct {
	t *time.Ticker
}

// NewTicker creates a Ticker firing at the given interval.
func NewTicker(interval time.Duration) *Ticker {
	return &Ticker{t: time.NewTicker(interval)}
}

// C returns the tick channel.
func (t *Ticker) C() <-chan time.Time {
	return t.t.C
}

// Stop halts the ticker.
func (t *Ticker) Stop() {
	t.t.Stop()
}
