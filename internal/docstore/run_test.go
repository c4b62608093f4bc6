package docstore

import (
	"context"
	"errors"
	"testing"
)

func TestRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 5, nil, func(context.Context) error {
		calls++
		if calls < 3 {
			return ErrConflict
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryExhaustion(t *testing.T) {
	conflicts := 0
	err := Retry(context.Background(), 3, func(int, error) { conflicts++ }, func(context.Context) error {
		return ErrConflict
	})
	if !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected exhaustion error, got %v", err)
	}
	if conflicts != 3 {
		t.Fatalf("expected hook per conflict, got %d", conflicts)
	}
}

func TestRetryDoesNotRetryOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Retry(context.Background(), 5, nil, func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("expected single failing attempt, got calls=%d err=%v", calls, err)
	}
}

func TestRetryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, 5, nil, func(context.Context) error {
		calls++
		cancel()
		return ErrConflict
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected no attempt after cancel, got %d", calls)
	}
}
