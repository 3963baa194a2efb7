// Package resilience provides the composable fault-tolerance primitives used
// throughout the gateway: circuit breaker, retry with backoff, timeout, and
// fallback, plus a registry that pre-creates the named breakers every
// upstream-calling component shares.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/netover/tws-gateway/pkg/apperrors"
)

// State represents the state of a circuit breaker.
type State string

const (
	// StateClosed means calls pass through and failures are counted.
	StateClosed State = "CLOSED"

	// StateOpen means calls are rejected immediately without invoking fn.
	StateOpen State = "OPEN"

	// StateHalfOpen means calls are let through as trial calls to probe
	// whether the dependency has recovered; the number of concurrent trial
	// calls is not limited.
	StateHalfOpen State = "HALF_OPEN"
)

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// Name identifies the breaker for logging and metrics.
	Name string

	// FailureThreshold is the number of consecutive failures in CLOSED
	// state before the breaker opens.
	FailureThreshold int

	// SuccessThreshold is the number of consecutive successes in
	// HALF_OPEN state before the breaker closes again. The spec's
	// HALF_OPEN->CLOSED transition fires on the very next success, so the
	// default is 1, not a multi-probe count.
	SuccessThreshold int

	// RecoveryTimeout is how long the breaker stays OPEN before the next
	// call moves it to HALF_OPEN.
	RecoveryTimeout time.Duration
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold < 1 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold < 1 {
		c.SuccessThreshold = 1
	}
	if c.RecoveryTimeout == 0 {
		c.RecoveryTimeout = 30 * time.Second
	}
	if c.Name == "" {
		c.Name = "circuit_breaker"
	}
	return c
}

// Metrics is a point-in-time snapshot of a breaker's counters.
type Metrics struct {
	Name               string
	State              State
	TotalCalls         int64
	SuccessfulCalls    int64
	FailedCalls        int64
	ConsecutiveFailures int
	StateChanges       int64
	LastFailureTime    time.Time
	LastSuccessTime    time.Time
}

// CircuitBreaker guards a dependency against cascading failure. The lock is
// only ever held around the small state-transition bookkeeping blocks — it
// is never held while the wrapped call (fn) is in flight, so one slow call
// can never block every other caller sharing this breaker.
type CircuitBreaker struct {
	config BreakerConfig
	mu     sync.Mutex

	state            State
	consecutiveFails int
	halfOpenSuccess  int
	lastFailTime     time.Time
	lastSuccessTime  time.Time

	totalCalls, successfulCalls, failedCalls, stateChanges int64
}

// NewCircuitBreaker creates a breaker in the CLOSED state.
func NewCircuitBreaker(config BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		config: config.withDefaults(),
		state:  StateClosed,
	}
}

// Call executes fn if the breaker currently allows it. It returns
// apperrors.CodeCircuitOpen without invoking fn when the breaker is open and
// the recovery timeout has not yet elapsed.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	allowed, wasHalfOpenProbe := cb.beforeCall()
	if !allowed {
		return apperrors.New(apperrors.CodeCircuitOpen, "circuit breaker open", nil).
			WithContext("breaker", cb.config.Name).
			WithRecoverable(true)
	}

	err := fn()
	cb.afterCall(err, wasHalfOpenProbe)
	return err
}

// beforeCall performs the state check and, if transitioning OPEN->HALF_OPEN,
// the transition itself, all under lock. It returns whether the call may
// proceed and whether this call is the HALF_OPEN probe.
func (cb *CircuitBreaker) beforeCall() (allowed bool, isProbe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalCalls++

	if cb.state == StateOpen {
		if time.Since(cb.lastFailTime) < cb.config.RecoveryTimeout {
			return false, false
		}
		cb.state = StateHalfOpen
		cb.halfOpenSuccess = 0
		cb.stateChanges++
	}

	return true, cb.state == StateHalfOpen
}

// afterCall records the outcome of a permitted call under lock.
func (cb *CircuitBreaker) afterCall(err error, wasProbe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failedCalls++
		cb.consecutiveFails++
		cb.lastFailTime = time.Now()

		if cb.state == StateHalfOpen {
			// A failed probe reopens immediately.
			cb.state = StateOpen
			cb.stateChanges++
			return
		}
		if cb.state == StateClosed && cb.consecutiveFails >= cb.config.FailureThreshold {
			cb.state = StateOpen
			cb.stateChanges++
		}
		return
	}

	cb.successfulCalls++
	cb.lastSuccessTime = time.Now()
	cb.consecutiveFails = 0

	if cb.state == StateHalfOpen {
		cb.halfOpenSuccess++
		if cb.halfOpenSuccess >= cb.config.SuccessThreshold {
			cb.state = StateClosed
			cb.halfOpenSuccess = 0
			cb.stateChanges++
		}
	}
	_ = wasProbe
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker back to CLOSED, clearing the consecutive-failure
// and half-open success counts. The cumulative call counters and the
// state-change count are kept.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.consecutiveFails = 0
	cb.halfOpenSuccess = 0
}

// Trip forces the breaker OPEN, e.g. from an external health signal.
func (cb *CircuitBreaker) Trip() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateOpen
	cb.lastFailTime = time.Now()
	cb.stateChanges++
}

// Snapshot returns a point-in-time copy of the breaker's metrics.
func (cb *CircuitBreaker) Snapshot() Metrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Metrics{
		Name:                cb.config.Name,
		State:               cb.state,
		TotalCalls:          cb.totalCalls,
		SuccessfulCalls:     cb.successfulCalls,
		FailedCalls:         cb.failedCalls,
		ConsecutiveFailures: cb.consecutiveFails,
		StateChanges:        cb.stateChanges,
		LastFailureTime:     cb.lastFailTime,
		LastSuccessTime:     cb.lastSuccessTime,
	}
}
