// Package wait provides polling helpers for resources that converge
// asynchronously, such as servers booting or snapshots being deleted.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutError is returned when a polling wait exceeds its deadline. It
// always names what was being awaited and for how long.
type TimeoutError struct {
	What  string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("waited more than %s for %s", e.After, e.What)
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// Poll calls fn every interval until it reports done, returns an error,
// or the timeout elapses. On expiry a TimeoutError naming what is
// returned. Context cancellation is respected between polls.
func Poll(ctx context.Context, interval, timeout time.Duration, what string, fn func(ctx context.Context) (bool, error)) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %s cancelled: %w", what, ctx.Err())
		case <-time.After(interval):
		}
	}

	return &TimeoutError{What: what, After: timeout}
}
