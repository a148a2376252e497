// Package retry provides a bounded-retry helper for transient infrastructure
// operations such as database writes.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Do runs fn up to attempts times, sleeping delay between tries. It returns
// nil on the first success, the last error once attempts are exhausted, or
// the context error if ctx is cancelled while waiting.
func Do(ctx context.Context, attempts int, delay time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		return fmt.Errorf("retry: attempts must be at least 1, got %d", attempts)
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := fn(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if i == attempts-1 {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
