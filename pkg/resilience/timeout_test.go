package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithTimeoutZeroDurationRunsDirectly(t *testing.T) {
	called := false
	err := WithTimeout(context.Background(), 0, "test", func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("expected direct call, err=%v called=%v", err, called)
	}
}

func TestWithTimeoutExceeded(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "test", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestWithTimeoutPropagatesFnError(t *testing.T) {
	want := errors.New("fn failed")
	err := WithTimeout(context.Background(), time.Second, "test", func(context.Context) error {
		return want
	})
	if err != want {
		t.Fatalf("err = %v, want %v", err, want)
	}
}

func TestWithTimeoutResultGeneric(t *testing.T) {
	v, err := WithTimeoutResult(context.Background(), time.Second, "test", func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Fatalf("v=%d err=%v", v, err)
	}
}
