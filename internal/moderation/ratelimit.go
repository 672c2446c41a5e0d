package moderation

import (
	"sync"
	"time"
)

// RateLimiter keeps a trailing window of message timestamps per user and flags
// bursts. Keys are never evicted; the per-user slice shrinks with pruning.
type RateLimiter struct {
	window time.Duration
	max    int

	mu      sync.Mutex
	windows map[int64][]time.Time
	now     func() time.Time
}

func NewRateLimiter(window time.Duration, maxMessages int) *RateLimiter {
	return &RateLimiter{
		window:  window,
		max:     maxMessages,
		windows: make(map[int64][]time.Time),
		now:     time.Now,
	}
}

// Observe registers one message from the user and reports whether the pruned
// window now holds more than the allowed count.
func (r *RateLimiter) Observe(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-r.window)

	kept := r.windows[userID][:0]
	for _, ts := range r.windows[userID] {
		if ts.After(cutoff) || ts.Equal(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	r.windows[userID] = kept

	return len(kept) > r.max
}
