package resilience

import "sync"

// Registry owns the named circuit breakers shared across the gateway. It is
// constructed once at startup and threaded through to every component that
// calls an upstream dependency — an explicit dependency, not a package-level
// global, mirroring the capability-provider style used for every other
// shared facility, the metrics registry included.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	defaults BreakerConfig
}

// NewRegistry creates an empty registry. defaults is applied to any breaker
// created via Get that wasn't pre-registered with its own config.
func NewRegistry(defaults BreakerConfig) *Registry {
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		defaults: defaults,
	}
}

// Register installs a breaker under name with an explicit config,
// overwriting any existing breaker of that name.
func (r *Registry) Register(name string, cfg BreakerConfig) *CircuitBreaker {
	cfg.Name = name
	cb := NewCircuitBreaker(cfg)
	r.mu.Lock()
	r.breakers[name] = cb
	r.mu.Unlock()
	return cb
}

// Get returns the breaker for name, lazily creating one with the registry's
// default config if it doesn't exist yet.
func (r *Registry) Get(name string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[name]; ok {
		return cb
	}
	cfg := r.defaults
	cfg.Name = name
	cb := NewCircuitBreaker(cfg)
	r.breakers[name] = cb
	return cb
}

// Snapshot returns a metrics snapshot for every registered breaker, keyed by
// name.
func (r *Registry) Snapshot() map[string]Metrics {
	r.mu.Lock()
	names := make([]string, 0, len(r.breakers))
	cbs := make([]*CircuitBreaker, 0, len(r.breakers))
	for name, cb := range r.breakers {
		names = append(names, name)
		cbs = append(cbs, cb)
	}
	r.mu.Unlock()

	out := make(map[string]Metrics, len(names))
	for i, name := range names {
		out[name] = cbs[i].Snapshot()
	}
	return out
}

// WellKnownBreakers are pre-registered at startup so every component shares
// the same instance for the same logical dependency.
var WellKnownBreakers = []string{
	"tws_api",
	"http_service",
	"database_service",
	"external_api",
	"llm_primary",
	"llm_fallback_0",
	"llm_fallback_1",
	"rag_service",
}

// NewDefaultRegistry creates a registry with WellKnownBreakers pre-registered
// using defaults, then the given per-name overrides layered on top.
func NewDefaultRegistry(defaults BreakerConfig, overrides map[string]BreakerConfig) *Registry {
	r := NewRegistry(defaults)
	for _, name := range WellKnownBreakers {
		cfg := defaults
		if o, ok := overrides[name]; ok {
			if o.FailureThreshold > 0 {
				cfg.FailureThreshold = o.FailureThreshold
			}
			if o.SuccessThreshold > 0 {
				cfg.SuccessThreshold = o.SuccessThreshold
			}
			if o.RecoveryTimeout > 0 {
				cfg.RecoveryTimeout = o.RecoveryTimeout
			}
		}
		r.Register(name, cfg)
	}
	return r
}
