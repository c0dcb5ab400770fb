package usecase

import (
	"fmt"
	"sync"
	"time"

	"webchat-bridge/internal/config"
)

// rateLimiter is the admission-control window: a minimum inter-request
// interval plus a rolling per-60-second quota. A rejected request
// consumes no quota; admissions are recorded only after a successful
// chat cycle.
type rateLimiter struct {
	enabled           bool
	requestsPerMinute int
	minInterval       time.Duration

	now func() time.Time

	mu           sync.Mutex
	lastAdmitted time.Time
	windowStart  time.Time
	count        int
}

func newRateLimiter(conf *config.RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		enabled:           conf.Enabled,
		requestsPerMinute: conf.RequestsPerMinute,
		minInterval:       time.Duration(conf.MinIntervalMS) * time.Millisecond,
		now:               time.Now,
	}
}

// Check reports whether a request may be admitted, with a caller-facing
// reason when it may not.
func (r *rateLimiter) Check() (bool, string) {
	if !r.enabled {
		return true, ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	if !r.lastAdmitted.IsZero() {
		sinceLast := now.Sub(r.lastAdmitted)
		if sinceLast < r.minInterval {
			wait := r.minInterval - sinceLast

			return false, fmt.Sprintf("please wait %.1f seconds", wait.Seconds())
		}
	}

	if now.Sub(r.windowStart) > time.Minute {
		r.windowStart = now
		r.count = 0
	}

	if r.count >= r.requestsPerMinute {
		return false, "rate limit exceeded (requests per minute)"
	}

	return true, ""
}

// Record registers an admission in the current window.
func (r *rateLimiter) Record() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastAdmitted = r.now()
	r.count++
}
