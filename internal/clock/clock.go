// Package clock abstracts wall-clock time so stage controllers, the
// countdown timer and the request gateway stay deterministic in tests.
package clock

import "time"

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// TickSource delivers one value per tick. Implementations must be safe to
// Stop more than once.
type TickSource interface {
	C() <-chan time.Time
	Stop()
}

// System is the real wall clock.
type System struct{}

// Now returns the current UTC time.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// secondTicker wraps a time.Ticker firing once per second.
type secondTicker struct {
	t *time.Ticker
}

// NewSecondTicker returns a TickSource backed by a one-second time.Ticker.
// time.Ticker schedules against absolute deadlines, so slow consumers drop
// ticks instead of drifting.
func NewSecondTicker() TickSource {
	return &secondTicker{t: time.NewTicker(time.Second)}
}

func (s *secondTicker) C() <-chan time.Time { return s.t.C }

func (s *secondTicker) Stop() { s.t.Stop() }

// Fixed is a Clock frozen at a settable instant.
type Fixed struct {
	T time.Time
}

// Now returns the fixed instant.
func (f *Fixed) Now() time.Time { return f.T }

// Advance moves the fixed instant forward by d.
func (f *Fixed) Advance(d time.Duration) { f.T = f.T.Add(d) }
