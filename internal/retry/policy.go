// Package retry runs an operation a bounded number of times with a fixed pause
// between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Defaults used when a Policy field is left zero.
const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 5 * time.Second
)

// ErrExhausted marks the error returned after the last attempt failed.
var ErrExhausted = errors.New("retries exhausted")

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy retries every error uniformly. Only cancellation of the caller's
// context stops it early.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Sleep       SleepFunc
	// OnFailure is called after each failed attempt, before any pause.
	OnFailure func(attempt int, err error)
}

// New returns a Policy with the given bounds. Non-positive attempts fall back
// to DefaultMaxAttempts; a negative delay becomes zero.
func New(maxAttempts int, delay time.Duration) Policy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if delay < 0 {
		delay = 0
	}
	return Policy{MaxAttempts: maxAttempts, Delay: delay}
}

// ShouldRetry reports whether another attempt follows a failed attempt.
func (p Policy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	return attempt < p.Attempts()
}

// Backoff is constant.
func (p Policy) Backoff(int) time.Duration {
	return p.Delay
}

// Do invokes fn until it succeeds, the attempts run out or ctx ends. Attempts
// are numbered from 1. The last error is returned wrapped with ErrExhausted.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.Attempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("retry canceled after attempt %d: %w", attempt-1, errors.Join(err, lastErr))
			}
			return fmt.Errorf("retry canceled: %w", err)
		}
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if p.OnFailure != nil {
			p.OnFailure(attempt, err)
		}
		if !p.ShouldRetry(err, attempt) {
			break
		}
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("retry canceled after attempt %d: %w", attempt, errors.Join(cerr, lastErr))
		}
		if err := p.sleep(ctx, p.Backoff(attempt)); err != nil {
			return fmt.Errorf("retry canceled after attempt %d: %w", attempt, errors.Join(err, lastErr))
		}
	}
	return fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}

// Attempts is the effective attempt bound.
func (p Policy) Attempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}

// Sleep waits for d, returning early with ctx's error if it is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
