package decision

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/workorder-intake/internal/workorder"
)

// maxBackoff caps a single wait between lookup attempts.
const maxBackoff = 5 * time.Second

// WithRetry retries failed lookups up to attempts times, doubling backoff between
// tries. Context cancellation stops retrying.
func WithRetry(next Lookup, attempts int, backoff time.Duration, logger *slog.Logger) Lookup {
	if logger == nil {
		logger = slog.Default()
	}
	if attempts < 1 {
		attempts = 1
	}
	return LookupFunc(func(ctx context.Context, key workorder.Key) (workorder.Key, error) {
		wait := backoff
		var lastErr error
		for i := 1; i <= attempts; i++ {
			matched, err := next.Lookup(ctx, key)
			if err == nil {
				return matched, nil
			}
			lastErr = err
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || i == attempts {
				break
			}
			logger.Warn("decision.lookup.retry", "work_order_key", key, "attempt", i, "wait", wait, "error", err)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
			wait = min(wait*2, maxBackoff)
		}
		return "", lastErr
	})
}
