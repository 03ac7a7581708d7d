// Package clock provides an injectable time source so that expiry checks
// and the reset scheduler can be driven deterministically in tests.
// Production code uses Real; tests use Fake and call Advance.
package clock

import "time"

// Clock is the subset of package time that codegate depends on.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) *Ticker
}

// Ticker wraps time.Ticker so fake clocks can supply their own channel.
type Ticker struct {
	C     <-chan time.Time
	stop  func()
	reset func(d time.Duration)
}

func (t *Ticker) Stop() { t.stop() }

func (t *Ticker) Reset(d time.Duration) { t.reset(d) }

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) *Ticker {
	ticker := time.NewTicker(d)
	return &Ticker{C: ticker.C, stop: ticker.Stop, reset: ticker.Reset}
}
