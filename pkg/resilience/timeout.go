package resilience

import (
	"context"
	"time"

	"github.com/netover/tws-gateway/pkg/apperrors"
)

// WithTimeout runs fn under a per-call deadline. If d is zero, fn runs with
// no additional deadline. fn runs in its own goroutine so a fn that ignores
// ctx cancellation still lets WithTimeout return promptly; the goroutine is
// abandoned (not killed) if fn never checks ctx, which is why every fn
// wrapped this way is expected to be context-aware at its I/O boundary.
func WithTimeout(ctx context.Context, d time.Duration, scope string, fn func(ctx context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case <-ctx.Done():
		return apperrors.New(apperrors.CodeTimeout, "operation exceeded timeout", ctx.Err()).
			WithContext("scope", scope).
			WithContext("timeout", d.String()).
			WithRecoverable(true)
	case err := <-done:
		return err
	}
}

// WithTimeoutResult is the generic-result variant of WithTimeout.
func WithTimeoutResult[T any](ctx context.Context, d time.Duration, scope string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		return zero, apperrors.New(apperrors.CodeTimeout, "operation exceeded timeout", ctx.Err()).
			WithContext("scope", scope).
			WithContext("timeout", d.String()).
			WithRecoverable(true)
	case res := <-done:
		return res.value, res.err
	}
}
