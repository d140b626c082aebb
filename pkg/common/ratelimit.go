// Package common holds small helpers shared by the infrastructure packages.
package common

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket whose limits can be changed while callers wait on it.
type RateLimiter struct {
	limiter *rate.Limiter
	mu      sync.RWMutex
}

// NewRateLimiter creates a RateLimiter allowing rps events per second with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until the limiter allows an event or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.limiter.Wait(ctx)
}

// UpdateLimits replaces the rate and burst.
func (rl *RateLimiter) UpdateLimits(rps float64, burst int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.limiter.SetLimit(rate.Limit(rps))
	rl.limiter.SetBurst(burst)
}

// Limits reports the current rate and burst.
func (rl *RateLimiter) Limits() (float64, int) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return float64(rl.limiter.Limit()), rl.limiter.Burst()
}
