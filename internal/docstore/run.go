package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultMaxAttempts bounds optimistic retries per transaction.
const DefaultMaxAttempts = 5

// RetryHook observes conflicts; attempt is 1-based.
type RetryHook func(attempt int, err error)

func conflictBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Millisecond
	b.MaxInterval = 50 * time.Millisecond
	b.RandomizationFactor = 0.5
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Retry runs attempt until it succeeds, fails with a non-conflict error, or
// maxAttempts conflicts have been observed. Attempts are spaced by a jittered
// exponential backoff that honours ctx.
func Retry(ctx context.Context, maxAttempts int, hook RetryHook, attempt func(ctx context.Context) error) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(conflictBackOff(), uint64(maxAttempts-1)), ctx)

	n := 0
	err := backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		n++
		err := attempt(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return backoff.Permanent(err)
		}
		if hook != nil {
			hook(n, err)
		}
		return err
	}, policy)
	if err != nil && errors.Is(err, ErrConflict) {
		return fmt.Errorf("%w after %d attempts: %v", ErrTooManyAttempts, n, err)
	}
	return err
}
