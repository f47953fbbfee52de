// Package local provides in-process stand-ins for the Redis-backed caches
// and bus, used when Redis is disabled.
package local

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/batchauction/internal/domain"
	"golang.org/x/time/rate"
)

type bucket struct {
	limiter *rate.Limiter
	limit   int
	window  time.Duration
	seen    time.Time
}

// RateLimiter implements domain.RateLimiter with one token bucket per key.
// A bucket refills limit tokens per window and bursts up to limit.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	idle    time.Duration
	now     func() time.Time
}

// NewRateLimiter returns a limiter that forgets keys idle for longer than
// idle.
func NewRateLimiter(idle time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		idle:    idle,
		now:     time.Now,
	}
}

func (rl *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return false, nil
	}
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok || b.limit != limit || b.window != window {
		every := rate.Every(window / time.Duration(limit))
		b = &bucket{limiter: rate.NewLimiter(every, limit), limit: limit, window: window}
		rl.buckets[key] = b
	}
	b.seen = now
	rl.evict(now)
	return b.limiter.AllowN(now, 1), nil
}

// evict drops idle buckets. Callers hold rl.mu.
func (rl *RateLimiter) evict(now time.Time) {
	if rl.idle <= 0 {
		return
	}
	for k, b := range rl.buckets {
		if now.Sub(b.seen) > rl.idle {
			delete(rl.buckets, k)
		}
	}
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
