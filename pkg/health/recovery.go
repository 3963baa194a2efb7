package health

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/netover/tws-gateway/pkg/resilience"
	"github.com/netover/tws-gateway/pkg/telemetry"
)

var recoveryTracer = otel.Tracer("tws-gateway/health")

// PoolController is the subset of a connection pool a recovery strategy
// can act on. Implementations may support only some methods; a no-op
// default is acceptable for a Reset that doesn't apply.
type PoolController interface {
	HealthCheck(ctx context.Context) error
	ErrorRate() float64
	Reset(ctx context.Context) error
}

// CacheController is the subset of pkg/cache.Hierarchy a recovery strategy
// can act on.
type CacheController interface {
	Ping(ctx context.Context) error
	ClearStale(ctx context.Context) error
	Reset(ctx context.Context) error
}

// BreakerResettable is satisfied by pkg/resilience.CircuitBreaker.
type BreakerResettable interface {
	Reset()
	State() resilience.State
}

// RecoveryManager implements attempt_component_recovery(). Strategy
// dispatch is a closed switch over known component names — never
// reflection or a string-keyed function map — so an unrecognized name
// falls through to the generic strategy instead of silently matching
// nothing, per the spec's ban on runtime reflection for dispatch.
type RecoveryManager struct {
	database PoolController
	cache    CacheController
	breakers map[string]BreakerResettable
	pingers  map[string]func(ctx context.Context) error

	mu      sync.Mutex
	history []RecoveryResult
	maxHist int
}

// NewRecoveryManager creates a RecoveryManager. Any of database, cache, or
// breakers/pingers may be nil/empty if that collaborator isn't wired yet;
// recovery then reports what it could attempt.
func NewRecoveryManager(database PoolController, cache CacheController, breakers map[string]BreakerResettable, pingers map[string]func(ctx context.Context) error) *RecoveryManager {
	return &RecoveryManager{
		database: database, cache: cache, breakers: breakers, pingers: pingers,
		maxHist: 200,
	}
}

// AttemptRecovery runs attempt_component_recovery(name).
func (m *RecoveryManager) AttemptRecovery(ctx context.Context, name string) RecoveryResult {
	ctx, span := recoveryTracer.Start(ctx, "health.attempt_recovery")
	defer span.End()

	start := time.Now()
	var result RecoveryResult

	switch name {
	case "database":
		result = m.recoverDatabase(ctx)
	case "cache_hierarchy":
		result = m.recoverCache(ctx)
	default:
		result = m.recoverGeneric(ctx, name)
	}

	result.Component = name
	result.DurationMS = msSince(start)
	span.SetAttributes(telemetry.RecoveryAttributes(name, result.Success)...)
	m.pushHistory(result)
	return result
}

func (m *RecoveryManager) recoverDatabase(ctx context.Context) RecoveryResult {
	actions := []string{}
	if m.database == nil {
		return RecoveryResult{RecoveryType: "database", Success: false, Error: "database pool not configured", Actions: actions}
	}

	actions = append(actions, "force-pool-health-check")
	healthErr := m.database.HealthCheck(ctx)

	if m.database.ErrorRate() > 0.9 {
		actions = append(actions, "reset-pool")
		if err := m.database.Reset(ctx); err != nil {
			return RecoveryResult{RecoveryType: "database", Success: false, Actions: actions, Error: err.Error()}
		}
	}

	actions = append(actions, "connectivity-probe")
	success := healthErr == nil
	var errStr string
	if healthErr != nil {
		errStr = healthErr.Error()
	}
	return RecoveryResult{RecoveryType: "database", Success: success, Actions: actions, Error: errStr}
}

func (m *RecoveryManager) recoverCache(ctx context.Context) RecoveryResult {
	actions := []string{}
	if m.cache == nil {
		return RecoveryResult{RecoveryType: "cache_hierarchy", Success: false, Error: "cache hierarchy not configured", Actions: actions}
	}

	actions = append(actions, "connectivity-probe")
	pingErr := m.cache.Ping(ctx)
	if pingErr == nil {
		return RecoveryResult{RecoveryType: "cache_hierarchy", Success: true, Actions: actions}
	}

	actions = append(actions, "clear-stale")
	if err := m.cache.ClearStale(ctx); err == nil {
		if err := m.cache.Ping(ctx); err == nil {
			return RecoveryResult{RecoveryType: "cache_hierarchy", Success: true, Actions: actions}
		}
	}

	actions = append(actions, "full-reset")
	if err := m.cache.Reset(ctx); err != nil {
		return RecoveryResult{RecoveryType: "cache_hierarchy", Success: false, Actions: actions, Error: err.Error()}
	}
	return RecoveryResult{RecoveryType: "cache_hierarchy", Success: true, Actions: actions}
}

// recoverGeneric implements the "others" branch: connectivity probe,
// circuit-breaker reset eligibility, endpoint health.
func (m *RecoveryManager) recoverGeneric(ctx context.Context, name string) RecoveryResult {
	actions := []string{}

	if ping, ok := m.pingers[name]; ok {
		actions = append(actions, "connectivity-probe")
		if err := ping(ctx); err != nil {
			return RecoveryResult{RecoveryType: "generic", Success: false, Actions: actions, Error: err.Error()}
		}
	}

	if breaker, ok := m.breakers[name]; ok {
		actions = append(actions, "circuit-breaker-reset-eligibility-check")
		if breaker.State() == resilience.StateOpen {
			actions = append(actions, "circuit-breaker-reset")
			breaker.Reset()
		}
	}

	actions = append(actions, "endpoint-health-check")
	return RecoveryResult{RecoveryType: "generic", Success: true, Actions: actions}
}

func (m *RecoveryManager) pushHistory(result RecoveryResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, result)
	if len(m.history) > m.maxHist {
		over := len(m.history) - m.maxHist
		m.history = m.history[over:]
	}
}

// History returns a snapshot of the bounded recovery history, oldest first.
func (m *RecoveryManager) History() []RecoveryResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecoveryResult, len(m.history))
	copy(out, m.history)
	return out
}
