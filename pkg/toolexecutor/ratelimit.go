package toolexecutor

import (
	"sync"
	"time"
)

// RateLimitTracker is the per-tool window state
type RateLimitTracker struct {
	Requests    []time.Time
	WindowStart time.Time
}

// RateLimiter is a fixed-window request counter keyed by tool id.
//
// The window resets once more than Period has passed since it started, so a
// burst straddling a boundary can admit up to 2×Requests within one Period.
type RateLimiter struct {
	mu       sync.Mutex
	trackers map[string]*RateLimitTracker
	now      func() time.Time
}

// NewRateLimiter creates a rate limiter using the wall clock
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		trackers: make(map[string]*RateLimitTracker),
		now:      time.Now,
	}
}

// SetClock replaces the time source, for tests
func (rl *RateLimiter) SetClock(now func() time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.now = now
}

// Allow records a request for toolID and reports whether it fits the limit
func (rl *RateLimiter) Allow(toolID string, limit RateLimit) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	tracker, ok := rl.trackers[toolID]
	if !ok {
		tracker = &RateLimitTracker{WindowStart: now}
		rl.trackers[toolID] = tracker
	}

	if now.Sub(tracker.WindowStart) > limit.Period {
		tracker.Requests = tracker.Requests[:0]
		tracker.WindowStart = now
	}

	if len(tracker.Requests) >= limit.Requests {
		return false
	}

	tracker.Requests = append(tracker.Requests, now)
	return true
}

// Reset drops the tracker for a tool
func (rl *RateLimiter) Reset(toolID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.trackers, toolID)
}

// Snapshot returns a copy of a tool's tracker
func (rl *RateLimiter) Snapshot(toolID string) (RateLimitTracker, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	tracker, ok := rl.trackers[toolID]
	if !ok {
		return RateLimitTracker{}, false
	}
	return RateLimitTracker{
		Requests:    append([]time.Time(nil), tracker.Requests...),
		WindowStart: tracker.WindowStart,
	}, true
}
