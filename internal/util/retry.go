package util

import (
	"context"
	"errors"
	"time"
)

// Backoff is an exponential retry schedule.
type Backoff struct {
	Attempts int           // total calls, including the first
	Base     time.Duration // delay before the second call
	Max      time.Duration // cap on a single delay; zero means no cap
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls fn until it succeeds, returns a Permanent error, or the
// attempts run out. It returns the last error (unwrapped from Permanent)
// or ctx's error if cancelled while waiting.
func (b Backoff) Retry(ctx context.Context, fn func(attempt int) error) error {
	var err error
	delay := b.Base

	for attempt := 0; attempt < b.Attempts; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		if attempt == b.Attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if b.Max > 0 && delay > b.Max {
			delay = b.Max
		}
	}

	return err
}
