// Package retry runs network-bound calls under a bounded retry policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted wraps the last error once every attempt has failed.
var ErrExhausted = errors.New("retries exhausted")

// Backoff selects how the delay grows between attempts.
type Backoff string

const (
	BackoffFixed       Backoff = "fixed"
	BackoffExponential Backoff = "exponential"
)

// Policy handles retry logic with a non-decreasing, capped delay schedule
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	MaxDelay    time.Duration
	Backoff     Backoff

	// Retryable decides whether an error is worth another attempt. Nil retries everything.
	Retryable func(error) bool

	// WaitHint returns a minimum wait the failed attempt asked for, such as a
	// Retry-After header. It may exceed MaxDelay.
	WaitHint func(error) time.Duration

	// OnRetry is called before each wait with the attempt that just failed.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// NewPolicy creates a fixed-delay policy.
func NewPolicy(maxAttempts int, delay time.Duration) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		Delay:       delay,
		MaxDelay:    30 * time.Second,
		Backoff:     BackoffFixed,
	}
}

// WaitFor returns the wait after the given failed attempt (1-based).
func (p Policy) WaitFor(attempt int) time.Duration {
	d := p.Delay
	if d < 0 {
		d = 0
	}
	if p.Backoff == BackoffExponential {
		for i := 1; i < attempt; i++ {
			d = time.Duration(float64(d) * 1.5)
			if p.MaxDelay > 0 && d >= p.MaxDelay {
				break
			}
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do runs fn until it succeeds, returns a non-retryable error, attempts run out,
// or ctx is canceled. Waits are suspension points on ctx.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}

		// Don't sleep after last attempt
		if attempt == attempts {
			break
		}

		wait := p.WaitFor(attempt)
		if p.WaitHint != nil {
			if hint := p.WaitHint(err); hint > wait {
				wait = hint
			}
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry canceled after %d attempts: %w", attempt, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}
