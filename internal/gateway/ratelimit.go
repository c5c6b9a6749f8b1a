package gateway

import (
	"sync"
	"time"

	"github.com/hirepath/hirepath/internal/clock"
)

// RateLimiter admits at most max requests in any sliding window.
type RateLimiter struct {
	mu       sync.Mutex
	max      int
	window   time.Duration
	clk      clock.Clock
	requests []time.Time // admission times, oldest first
}

// NewRateLimiter creates a limiter. A nil clock uses the system clock.
func NewRateLimiter(max int, window time.Duration, clk clock.Clock) *RateLimiter {
	if clk == nil {
		clk = clock.System{}
	}
	return &RateLimiter{max: max, window: window, clk: clk}
}

// Allow records an admission and returns true, or returns false without
// recording when the window is saturated.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clk.Now()
	cutoff := now.Add(-r.window)
	drop := 0
	for drop < len(r.requests) && !r.requests[drop].After(cutoff) {
		drop++
	}
	r.requests = r.requests[drop:]

	if len(r.requests) >= r.max {
		return false
	}
	r.requests = append(r.requests, now)
	return true
}

// InFlight returns the number of admissions currently inside the window.
func (r *RateLimiter) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.clk.Now().Add(-r.window)
	n := 0
	for _, t := range r.requests {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}
