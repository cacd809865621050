// persistence/retry.go
package persistence

import (
	"context"
	"errors"
	"time"
)

// WithOptimisticRetry runs fn, retrying only on ErrVersionConflict with
// exponential backoff. fn must re-read its inputs on every attempt so the
// logical mutation is re-applied to fresh state. After the final attempt
// the conflict is surfaced to the caller.
func WithOptimisticRetry(ctx context.Context, attempts int, baseDelay time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn(ctx)
		if err == nil || !errors.Is(err, ErrVersionConflict) {
			return err
		}
		if i == attempts-1 {
			break
		}

		delay := baseDelay << uint(i)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
