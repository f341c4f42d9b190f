package orbitsync

import (
	"sync"
	"time"
)

// rateLimiter keeps every outbound Orbit call in this process under a single
// per-minute budget. The budget belongs to the API key, so one limiter is
// shared by all fetchers regardless of which tenant they serve.
type rateLimiter struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

func newRateLimiter(limit int) *rateLimiter {
	if limit <= 0 {
		limit = 40
	}
	return &rateLimiter{
		limit:  limit,
		window: time.Minute,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// Wait blocks until a call slot is available in the current window, then
// consumes it.
func (r *rateLimiter) Wait() {
	for {
		r.mu.Lock()
		now := r.now()
		if r.windowStart.IsZero() || now.Sub(r.windowStart) >= r.window {
			r.windowStart = now
			r.count = 0
		}
		if r.count < r.limit {
			r.count++
			r.mu.Unlock()
			return
		}
		wait := r.window - now.Sub(r.windowStart)
		r.mu.Unlock()
		if wait <= 0 {
			continue
		}
		r.sleep(wait)
	}
}

// Reset starts a fresh, fully spent-free window. Called after the API answers
// 429 so the local counter re-aligns with the server's view.
func (r *rateLimiter) Reset() {
	r.mu.Lock()
	r.windowStart = r.now()
	r.count = 0
	r.mu.Unlock()
}
