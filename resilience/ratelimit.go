package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiterConfig configures a token bucket.
type RateLimiterConfig struct {
	// Rate is tokens added per second. Default: 10
	Rate float64

	// Burst is the bucket size. Default: 20
	Burst int
}

func (c RateLimiterConfig) withDefaults() RateLimiterConfig {
	if c.Rate <= 0 {
		c.Rate = 10
	}
	if c.Burst <= 0 {
		c.Burst = 20
	}
	return c
}

// RateLimiter is a token bucket.
type RateLimiter struct {
	cfg RateLimiterConfig
	now func() time.Time

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewRateLimiter creates a full bucket.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	return newRateLimiter(cfg.withDefaults(), time.Now)
}

func newRateLimiter(cfg RateLimiterConfig, now func() time.Time) *RateLimiter {
	return &RateLimiter{cfg: cfg, now: now, tokens: float64(cfg.Burst), last: now()}
}

// Allow takes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.tokens += now.Sub(rl.last).Seconds() * rl.cfg.Rate
	rl.last = now
	if burst := float64(rl.cfg.Burst); rl.tokens > burst {
		rl.tokens = burst
	}
	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}

// Execute runs op if a token is available, else returns ErrRateLimitExceeded.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if !rl.Allow() {
		return ErrRateLimitExceeded
	}
	return op(ctx)
}

// KeyedRateLimiter keeps one bucket per key, such as an authenticated
// principal or a client address. Buckets idle for longer than it takes to
// refill are dropped on the next sweep.
type KeyedRateLimiter struct {
	cfg RateLimiterConfig
	now func() time.Time

	mu        sync.Mutex
	buckets   map[string]*RateLimiter
	lastSweep time.Time
}

// NewKeyedRateLimiter creates an empty keyed limiter.
func NewKeyedRateLimiter(cfg RateLimiterConfig) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		cfg:       cfg.withDefaults(),
		now:       time.Now,
		buckets:   make(map[string]*RateLimiter),
		lastSweep: time.Now(),
	}
}

// Allow takes a token from key's bucket.
func (k *KeyedRateLimiter) Allow(key string) bool {
	k.mu.Lock()
	k.sweepLocked()
	rl, ok := k.buckets[key]
	if !ok {
		rl = newRateLimiter(k.cfg, k.now)
		k.buckets[key] = rl
	}
	k.mu.Unlock()
	return rl.Allow()
}

// Len returns the number of live buckets.
func (k *KeyedRateLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}

func (k *KeyedRateLimiter) sweepLocked() {
	refill := time.Duration(float64(k.cfg.Burst) / k.cfg.Rate * float64(time.Second))
	now := k.now()
	if now.Sub(k.lastSweep) < refill {
		return
	}
	k.lastSweep = now
	for key, rl := range k.buckets {
		rl.mu.Lock()
		idle := now.Sub(rl.last)
		rl.mu.Unlock()
		if idle >= refill {
			delete(k.buckets, key)
		}
	}
}
