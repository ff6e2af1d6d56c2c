// Package retry runs provider calls with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"
)

type Policy struct {
	Attempts     int           // Total tries, including the first
	InitialDelay time.Duration // Delay before the second try
	MaxDelay     time.Duration // Cap for the doubling delay
	// Retryable decides whether an error is worth another try. Nil retries everything.
	Retryable func(error) bool
}

func DefaultPolicy() Policy {
	return Policy{Attempts: 3, InitialDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second}
}

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent wraps err so Do returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err}
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// are used up or ctx is done. The last error from fn is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := max(p.Attempts, 1)
	delay := p.InitialDelay

	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}

		var perm permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt >= attempts || (p.Retryable != nil && !p.Retryable(err)) || ctx.Err() != nil {
			return err
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
		delay = Next(delay, p.MaxDelay)
	}
}

// Next doubles d, capped at maxDelay when maxDelay is positive.
func Next(d, maxDelay time.Duration) time.Duration {
	d *= 2
	if maxDelay > 0 && d > maxDelay {
		d = maxDelay
	}
	return d
}
