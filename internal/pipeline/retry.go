package pipeline

import (
	"context"
	"errors"
	"time"

	"batchgen/internal/domain"
)

// withRetry runs fn up to attempts times with a fixed pause between tries.
// It stops early when the context is cancelled or when the error is not
// worth retrying (content errors are never retried).
func withRetry(ctx context.Context, attempts int, pause time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
	return err
}

// retryable classifies errors per the failure taxonomy: transport and
// transient failures retry, content-invalid and fatal conditions do not.
func retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, domain.ErrMalformedItem), errors.Is(err, domain.ErrInvalidRequest):
		return false
	case errors.Is(err, domain.ErrBatchFatal), errors.Is(err, domain.ErrBatchCancelled):
		return false
	default:
		return true
	}
}
