// Package timer provides the assessment countdown.
package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hirepath/hirepath/internal/clock"
)

// State is the countdown lifecycle state.
type State int

const (
	Idle State = iota
	Running
	Expired
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Expired:
		return "expired"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrAlreadyRunning is returned by Start on a running countdown.
var ErrAlreadyRunning = errors.New("countdown already running")

// Option configures a Countdown.
type Option func(*Countdown)

// OnExpire registers fn to run once per run when remaining reaches zero.
// fn runs on the ticking goroutine without the countdown lock held.
func OnExpire(fn func()) Option {
	return func(c *Countdown) { c.onExpire = fn }
}

// OnTick registers fn to run after each decrement with the new remaining
// seconds. fn runs without the countdown lock held.
func OnTick(fn func(remaining int)) Option {
	return func(c *Countdown) { c.onTick = fn }
}

// Countdown counts whole seconds down to zero. It has no scheduler of its
// own: Tick is driven by Run from a TickSource, or directly by tests.
type Countdown struct {
	mu        sync.Mutex
	state     State
	total     int
	remaining int
	gen       int // incremented by each Start and Cancel
	onExpire  func()
	onTick    func(int)
}

// New creates an idle countdown.
func New(opts ...Option) *Countdown {
	c := &Countdown{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start arms the countdown with totalSeconds. It is valid from Idle,
// Cancelled or Expired. A total of zero or less expires immediately.
func (c *Countdown) Start(totalSeconds int) error {
	c.mu.Lock()
	if c.state == Running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	c.gen++
	c.total = totalSeconds
	c.remaining = totalSeconds
	if totalSeconds == 0 {
		c.state = Expired
		fn := c.onExpire
		c.mu.Unlock()
		if fn != nil {
			fn()
		}
		return nil
	}
	c.state = Running
	c.mu.Unlock()
	return nil
}

// Tick decrements remaining by one second. It reports whether this tick
// expired the countdown. Ticks outside Running are ignored.
func (c *Countdown) Tick() bool {
	c.mu.Lock()
	if c.state != Running {
		c.mu.Unlock()
		return false
	}
	c.remaining--
	remaining := c.remaining
	expired := remaining == 0
	if expired {
		c.state = Expired
	}
	onTick, onExpire := c.onTick, c.onExpire
	c.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}
	if expired && onExpire != nil {
		onExpire()
	}
	return expired
}

// Cancel stops a running countdown. No tick or expiry fires afterwards.
// Cancel on a countdown that is not running is a no-op.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Running {
		return
	}
	c.state = Cancelled
	c.gen++
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Total returns the seconds the current run started with.
func (c *Countdown) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Elapsed returns total minus remaining.
func (c *Countdown) Elapsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total - c.remaining
}

// State returns the lifecycle state.
func (c *Countdown) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run feeds ticks from src into the current run until it expires, is
// cancelled or restarted, or ctx is done. src is stopped on return.
func (c *Countdown) Run(ctx context.Context, src clock.TickSource) {
	defer src.Stop()

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	for {
		if !c.current(gen) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case _, ok := <-src.C():
			if !ok {
				return
			}
			if !c.current(gen) {
				return
			}
			if c.Tick() {
				return
			}
		}
	}
}

// current reports whether gen is still the running generation.
func (c *Countdown) current(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen && c.state == Running
}

// Format renders seconds as MM:SS.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// ChanSource is a TickSource driven manually, for tests and replay.
type ChanSource struct {
	ch   chan time.Time
	once sync.Once
	done chan struct{}
}

// NewChanSource creates an unbuffered manual tick source.
func NewChanSource() *ChanSource {
	return &ChanSource{ch: make(chan time.Time), done: make(chan struct{})}
}

// C returns the tick channel.
func (s *ChanSource) C() <-chan time.Time { return s.ch }

// Stop marks the source stopped. Pending and future Fire calls return false.
func (s *ChanSource) Stop() {
	s.once.Do(func() { close(s.done) })
}

// Fire delivers one tick, blocking until the consumer receives it or the
// source is stopped. It reports whether the tick was delivered.
func (s *ChanSource) Fire() bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.ch <- time.Time{}:
		return true
	case <-s.done:
		return false
	}
}

// Stopped is closed once Stop has been called.
func (s *ChanSource) Stopped() <-chan struct{} { return s.done }
