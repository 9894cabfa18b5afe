package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"batchgen/internal/domain"
)

func TestWithRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("%w: flaky", domain.ErrTransient)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry() = %v, want nil", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestWithRetryExhaustsBudget(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 2, time.Millisecond, func(context.Context) error {
		calls++
		return fmt.Errorf("%w: still down", domain.ErrTransient)
	})
	if !errors.Is(err, domain.ErrTransient) {
		t.Fatalf("withRetry() = %v, want ErrTransient", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestWithRetryStopsOnContentErrors(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 5, time.Millisecond, func(context.Context) error {
		calls++
		return fmt.Errorf("%w: bad shape", domain.ErrMalformedItem)
	})
	if !errors.Is(err, domain.ErrMalformedItem) {
		t.Fatalf("withRetry() = %v, want ErrMalformedItem", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry for content errors)", calls)
	}
}

func TestWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := withRetry(ctx, 3, time.Millisecond, func(context.Context) error {
		t.Fatalf("fn must not run with a cancelled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("withRetry() = %v, want context.Canceled", err)
	}
}

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("%w: timeout", domain.ErrTransient), true},
		{fmt.Errorf("%w: 503", domain.ErrProviderFailure), true},
		{errors.New("plain transport error"), true},
		{fmt.Errorf("%w: junk", domain.ErrMalformedItem), false},
		{fmt.Errorf("%w: count", domain.ErrInvalidRequest), false},
		{domain.ErrBatchFatal, false},
		{domain.ErrBatchCancelled, false},
		{context.Canceled, false},
		{context.DeadlineExceeded, false},
	}
	for _, tc := range cases {
		if got := retryable(tc.err); got != tc.want {
			t.Fatalf("retryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
