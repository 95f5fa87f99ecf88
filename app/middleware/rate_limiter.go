// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/harukisato/machidori/app/dto"
)

// SlidingWindowLimiter counts events per key over a sliding window. It is
// an explicit injected dependency so tests can drive it with a fake time
// source and multiple consumers never share hidden global state.
type SlidingWindowLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time
	hits   map[string][]time.Time
}

// NewSlidingWindowLimiter creates a limiter allowing limit events per
// window for each key. A nil now falls back to the wall clock.
func NewSlidingWindowLimiter(limit int, window time.Duration, now func() time.Time) *SlidingWindowLimiter {
	if now == nil {
		now = time.Now
	}
	return &SlidingWindowLimiter{
		limit:  limit,
		window: window,
		now:    now,
		hits:   make(map[string][]time.Time),
	}
}

// Allow records an event for key and reports whether it fits the window.
// Expired timestamps are pruned on every call, so memory per key is
// bounded by the limit.
func (l *SlidingWindowLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.limit {
		l.hits[key] = kept
		return false
	}

	l.hits[key] = append(kept, now)
	return true
}

// Reset clears the window for a single key
func (l *SlidingWindowLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.hits, key)
}

// RateLimit applies the limiter per client IP and shop path parameter so
// one noisy tenant cannot exhaust another tenant's budget
func RateLimit(limiter *SlidingWindowLimiter) fiber.Handler {
	return func(c fiber.Ctx) error {
		key := c.IP()
		if shop := c.Params("shop_uuid"); shop != "" {
			key = shop + ":" + key
		}

		if !limiter.Allow(key) {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		}

		return c.Next()
	}
}
