package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow takes a token if one is available
	Allow() bool
	// Wait blocks until a token is available or ctx is done
	Wait(ctx context.Context) error
}

// TokenBucket refills continuously at rate tokens per second up to capacity
type TokenBucket struct {
	capacity float64
	tokens   float64
	rate     float64
	last     time.Time
	now      func() time.Time
	mu       sync.Mutex
}

// NewTokenBucket creates a bucket that allows capacity requests in a burst and
// refills one token every refillEvery.
func NewTokenBucket(capacity int, refillEvery time.Duration) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	rate := 0.0
	if refillEvery > 0 {
		rate = float64(time.Second) / float64(refillEvery)
	}
	return &TokenBucket{
		capacity: float64(capacity),
		tokens:   float64(capacity),
		rate:     rate,
		last:     time.Now(),
		now:      time.Now,
	}
}

// PerMinute builds a bucket for a requests-per-minute budget
func PerMinute(requests, burst int) *TokenBucket {
	if requests < 1 {
		requests = 1
	}
	return NewTokenBucket(burst, time.Minute/time.Duration(requests))
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		tb.refill()
		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}
		wait := time.Second
		if tb.rate > 0 {
			wait = time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		}
		tb.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Available returns the current number of whole tokens
func (tb *TokenBucket) Available() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return int(tb.tokens)
}

func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.last)
	tb.last = now
	if elapsed <= 0 {
		return
	}
	tb.tokens += elapsed.Seconds() * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
}
