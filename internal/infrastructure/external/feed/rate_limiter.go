package feed

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER
// ══════════════════════════════════════════════════════════════════════════════

// RateLimiterConfig contains configuration for the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the maximum sustained request rate
	RequestsPerSecond float64

	// BurstSize is the maximum number of requests that can be made in a burst
	BurstSize int

	// WaitTimeout is the maximum time to wait for a token
	WaitTimeout time.Duration
}

// DefaultRateLimiterConfig returns conservative defaults for the public feed.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 5.0,
		BurstSize:         10,
		WaitTimeout:       30 * time.Second,
	}
}

// RateLimiter keeps outbound feed requests under the publisher's tolerance.
// All parser workers of a process share one limiter.
type RateLimiter struct {
	limiter     *rate.Limiter
	burst       int
	waitTimeout time.Duration
}

// NewRateLimiter creates a new RateLimiter with the given configuration.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 1
	}
	if config.BurstSize <= 0 {
		config.BurstSize = 1
	}
	if config.WaitTimeout <= 0 {
		config.WaitTimeout = DefaultRateLimiterConfig().WaitTimeout
	}
	return &RateLimiter{
		limiter:     rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.BurstSize),
		burst:       config.BurstSize,
		waitTimeout: config.WaitTimeout,
	}
}

// RateLimitError is returned when no token became available in time.
type RateLimitError struct {
	WaitTimeout time.Duration
	Err         error
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("feed rate limit: no slot within %s: %v", e.WaitTimeout, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// Allow blocks until a request may proceed, ctx is done or the wait timeout is hit.
func (rl *RateLimiter) Allow(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, rl.waitTimeout)
	defer cancel()

	err := rl.limiter.Wait(waitCtx)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		// Wait also fails up front when the reservation would outlive the deadline.
		return &RateLimitError{WaitTimeout: rl.waitTimeout, Err: err}
	}
}

// RecordRateLimitHit drains the bucket after the server answered 429, so the
// next requests wait a full burst's worth of refill.
func (rl *RateLimiter) RecordRateLimitHit() {
	rl.limiter.ReserveN(time.Now(), rl.burst)
}
