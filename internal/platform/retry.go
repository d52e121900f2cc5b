package platform

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"
)

// RetryReads runs a read-only call up to attempts+1 times with exponential
// backoff. Never use it for record creation, deletion or import.
func RetryReads(ctx context.Context, attempts uint64, op func() error) error {
	if attempts == 0 {
		return op()
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), attempts), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}
