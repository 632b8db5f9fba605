// Package ratelimit implements per-chat token bucket limiting for
// inbound turns.
package ratelimit

import (
	"sync"
	"time"
)

// Result reports the outcome of a consume attempt.
type Result struct {
	Allowed    bool
	Remaining  float64
	RetryAfter time.Duration
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// Limiter maintains one token bucket per key. Buckets refill
// continuously at rate tokens per second up to capacity.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity float64
	rate     float64
	now      func() time.Time
}

// NewLimiter creates a limiter with the given bucket capacity and
// refill rate in tokens per second.
func NewLimiter(capacity, rate float64) *Limiter {
	return &Limiter{
		buckets:  make(map[string]*bucket),
		capacity: capacity,
		rate:     rate,
		now:      time.Now,
	}
}

// TryConsume attempts to take one token from the key's bucket.
func (l *Limiter) TryConsume(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, lastFill: now}
		l.buckets[key] = b
	} else {
		elapsed := now.Sub(b.lastFill).Seconds()
		b.tokens = min(l.capacity, b.tokens+elapsed*l.rate)
		b.lastFill = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return Result{Allowed: true, Remaining: b.tokens}
	}

	deficit := 1 - b.tokens
	return Result{
		Allowed:    false,
		Remaining:  b.tokens,
		RetryAfter: time.Duration(deficit / l.rate * float64(time.Second)),
	}
}

// Reset drops the bucket for a key, restoring full capacity on next use.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
}
