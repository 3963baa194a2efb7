package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/netover/tws-gateway/pkg/apperrors"
)

// RetryConfig controls exponential-backoff retry behavior. The delay before
// attempt i (i >= 1) is d_i = min(MaxDelay, BaseDelay * Multiplier^i); when
// Jitter is true the actual sleep is drawn uniformly from [0, d_i] (full
// jitter), not a symmetric +/- spread, to avoid synchronized retry storms
// across many callers sharing the same backoff schedule.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      bool

	// IsRecoverable decides whether an error should be retried at all. If
	// nil, every error is considered recoverable.
	IsRecoverable func(error) bool
}

// DefaultRetryConfig returns the gateway's default retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

// WithMaxAttempts returns a copy with MaxAttempts set.
func (rc RetryConfig) WithMaxAttempts(n int) RetryConfig { rc.MaxAttempts = n; return rc }

// WithBaseDelay returns a copy with BaseDelay set.
func (rc RetryConfig) WithBaseDelay(d time.Duration) RetryConfig { rc.BaseDelay = d; return rc }

// WithMaxDelay returns a copy with MaxDelay set.
func (rc RetryConfig) WithMaxDelay(d time.Duration) RetryConfig { rc.MaxDelay = d; return rc }

// WithIsRecoverable returns a copy with IsRecoverable set.
func (rc RetryConfig) WithIsRecoverable(fn func(error) bool) RetryConfig {
	rc.IsRecoverable = fn
	return rc
}

// Do calls fn at most MaxAttempts times in total, retrying only on
// recoverable errors. It
// sleeps before every retry (never before the first attempt) and aborts
// promptly if ctx is canceled during the sleep.
func (rc RetryConfig) Do(ctx context.Context, fn func() error) error {
	if rc.MaxAttempts < 1 {
		rc.MaxAttempts = 1
	}
	isRecoverable := rc.IsRecoverable
	if isRecoverable == nil {
		isRecoverable = func(error) bool { return true }
	}

	var lastErr error
	for attempt := 0; attempt < rc.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt, rc)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return apperrors.New(apperrors.CodeTimeout, "context canceled during retry backoff", ctx.Err()).
					WithContext("attempt", attempt).
					WithContext("max_attempts", rc.MaxAttempts)
			case <-timer.C:
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRecoverable(err) {
			return err
		}
	}

	return lastErr
}

// backoffDelay computes d_i = min(MaxDelay, BaseDelay * Multiplier^attempt),
// then applies full jitter (uniform on [0, d_i]) if enabled.
func backoffDelay(attempt int, rc RetryConfig) time.Duration {
	multiplier := rc.Multiplier
	if multiplier == 0 {
		multiplier = 2.0
	}

	d := time.Duration(float64(rc.BaseDelay) * math.Pow(multiplier, float64(attempt)))
	if rc.MaxDelay > 0 && d > rc.MaxDelay {
		d = rc.MaxDelay
	}
	if !rc.Jitter || d <= 0 {
		return d
	}
	return time.Duration(rand.Float64() * float64(d))
}
