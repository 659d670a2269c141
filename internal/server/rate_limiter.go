package server

import (
	"sync"
	"time"
)

// rateLimiter is a token bucket: capacity frames, refilled in full every
// interval.
type rateLimiter struct {
	mu        sync.Mutex
	tokens    float64
	capacity  float64
	rate      float64
	lastCheck time.Time
	now       func() time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	return newRateLimiterWithClock(cfg, time.Now)
}

func newRateLimiterWithClock(cfg RateLimitConfig, now func() time.Time) *rateLimiter {
	capacity, interval := cfg.Burst, cfg.RefillInterval
	if capacity <= 0 {
		capacity = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	return &rateLimiter{
		tokens:    float64(capacity),
		capacity:  float64(capacity),
		rate:      float64(capacity) / interval.Seconds(),
		lastCheck: now(),
		now:       now,
	}
}

func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if elapsed := now.Sub(rl.lastCheck).Seconds(); elapsed > 0 {
		rl.tokens += elapsed * rl.rate
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
	}
	rl.lastCheck = now

	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}
