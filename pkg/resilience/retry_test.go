package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySuccessOnFirstAttempt(t *testing.T) {
	calls := 0
	err := DefaultRetryConfig().Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryExhaustsMaxAttempts(t *testing.T) {
	calls := 0
	rc := DefaultRetryConfig().WithMaxAttempts(3).WithBaseDelay(time.Millisecond)
	err := rc.Do(context.Background(), func() error {
		calls++
		return errors.New("always fails")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryStopsOnNonRecoverable(t *testing.T) {
	calls := 0
	rc := DefaultRetryConfig().
		WithMaxAttempts(5).
		WithBaseDelay(time.Millisecond).
		WithIsRecoverable(func(error) bool { return false })

	err := rc.Do(context.Background(), func() error {
		calls++
		return errors.New("non-recoverable")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retries on non-recoverable error)", calls)
	}
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rc := RetryConfig{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := rc.Do(ctx, func() error {
		calls++
		return errors.New("fail")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls >= 5 {
		t.Errorf("calls = %d, expected early cancellation to cut retries short", calls)
	}
}

func TestBackoffDelayCapsAtMaxDelay(t *testing.T) {
	rc := RetryConfig{BaseDelay: time.Second, MaxDelay: 2 * time.Second, Multiplier: 10, Jitter: false}
	d := backoffDelay(5, rc)
	if d != 2*time.Second {
		t.Errorf("backoffDelay = %v, want capped at 2s", d)
	}
}

func TestBackoffDelayFullJitterIsBounded(t *testing.T) {
	rc := RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2, Jitter: true}
	d := rc.MaxDelay
	for i := 0; i < 50; i++ {
		got := backoffDelay(3, rc)
		if got < 0 || got > d {
			t.Fatalf("jittered delay %v out of bounds [0, %v]", got, d)
		}
	}
}
