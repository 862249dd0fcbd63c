// Package utils contains various common utils separate by utility types
package utils

import (
	"context"
	"time"
)

type permanentError struct {
	err error
}

func (p *permanentError) Error() string {
	return p.err.Error()
}

func (p *permanentError) Unwrap() error {
	return p.err
}

// Permanent wraps an error so Retry stops immediately and returns the
// wrapped error instead of retrying
func Permanent(err error) error {
	return &permanentError{err: err}
}

// Retry calls fn up to attempts times, waiting delay between attempts,
// until fn returns nil or an error wrapped with Permanent. Returns the
// last error if every attempt fails. The wait honors ctx cancellation.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if perm, ok := err.(*permanentError); ok {
			return perm.err
		}
		if attempt == attempts-1 {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
