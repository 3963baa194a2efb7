package resilience

import (
	"context"
	"time"
)

// Policy bundles the three composable primitives the gateway wraps every
// upstream call in. Execute applies them in the mandated order — breaker on
// the outside, then retry, then a per-attempt timeout innermost — so a
// breaker trip short-circuits before any retry delay is paid, and each retry
// attempt gets its own fresh deadline rather than sharing one across the
// whole retry loop.
type Policy struct {
	Breaker *CircuitBreaker
	Retry   RetryConfig
	Timeout time.Duration
	Scope   string
}

// Execute runs fn through breaker(retry(timeout(fn))).
func (p Policy) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	call := func() error {
		return p.Retry.Do(ctx, func() error {
			return WithTimeout(ctx, p.Timeout, p.Scope, fn)
		})
	}
	if p.Breaker == nil {
		return call()
	}
	return p.Breaker.Call(ctx, call)
}

// ExecuteResult is the generic-result variant of Execute.
func ExecuteResult[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err == nil {
			out = v
		}
		return err
	})
	return out, err
}
