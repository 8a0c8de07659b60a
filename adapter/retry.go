package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Backoff returns the delay before retry attempt i (i >= 1):
// 500ms, 1s, 2s, ...
func Backoff(i int) time.Duration {
	if i < 1 {
		return 0
	}
	return time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
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

// Retry calls attempt up to 1+retries times, sleeping delay(i) before
// attempt i. It stops early on success, on a Permanent error, or when ctx
// is done. The returned error wraps the last attempt's error.
func Retry(ctx context.Context, retries int, delay func(int) time.Duration, attempt func(context.Context) error) error {
	if delay == nil {
		delay = Backoff
	}

	var last error
	for i := 0; i <= retries; i++ {
		if i > 0 {
			t := time.NewTimer(delay(i))
			select {
			case <-ctx.Done():
				t.Stop()
				return fmt.Errorf("canceled before attempt %d: %w", i+1, ctx.Err())
			case <-t.C:
			}
		} else if err := ctx.Err(); err != nil {
			return fmt.Errorf("canceled: %w", err)
		}

		last = attempt(ctx)
		if last == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(last, &perm) {
			return fmt.Errorf("non-retriable: %w", perm.err)
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", retries+1, last)
}
