// Package clock abstracts time sources so the engine can be driven by a
// wall-clock ticker in production and by a manual tick source in tests.
package clock

import "time"

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Ticker delivers the external ticks that advance the batch scheduler. One
// tick is one scheduling cycle, independent of the wall-clock duration the
// consumer maps it to.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}
