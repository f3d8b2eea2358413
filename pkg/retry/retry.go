// Package retry runs an operation again on transient failures, with
// exponential backoff, jitter and server-supplied delays.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// TransientError marks an error as worth another attempt. After, when set,
// is the minimum wait the remote side asked for (Retry-After).
type TransientError struct {
	Err   error
	After time.Duration
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err so that Do retries it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// TransientAfter wraps err so that Do retries it no sooner than after d.
func TransientAfter(err error, d time.Duration) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err, After: d}
}

// Policy describes how an operation is retried.
type Policy struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts int

	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Jitter spreads each delay by up to ±Jitter of its value (0 to 1).
	Jitter float64

	// OnRetry is called before sleeping between attempts.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy returns three attempts starting at 100ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Jitter:      0.1,
	}
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = max(def.MaxDelay, p.BaseDelay)
	}
	p.Jitter = min(max(p.Jitter, 0), 1)
	return p
}

// Do runs op until it succeeds, returns a non-transient error, runs out of
// attempts or ctx is done. The returned error is the last cause with the
// transient marker removed.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()

	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		var te *TransientError
		if !errors.As(err, &te) {
			return zero, err
		}
		lastErr = te.Err
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.delay(attempt, te.After)
		if p.OnRetry != nil {
			p.OnRetry(attempt, lastErr, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

// delay returns base * 2^(attempt-1) with jitter, raised to the server's
// minimum and capped at MaxDelay.
func (p Policy) delay(attempt int, after time.Duration) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if p.Jitter > 0 {
		d += d * p.Jitter * (rand.Float64()*2 - 1)
	}
	d = max(d, float64(after))
	d = min(d, float64(p.MaxDelay))
	return time.Duration(max(d, 0))
}
