// Command gateway starts the TWS read-only HTTP gateway: it loads
// configuration, wires the backend client through the resilience and cache
// layers, starts the proactive poller and health orchestrator, and serves
// the observability endpoints. Routing, auth middleware, and request
// validation live outside this module's scope; this binary assembles the
// components DESIGN.md describes and exposes them on a minimal mux so the
// wiring is exercisable end to end.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/netover/tws-gateway/pkg/backend"
	"github.com/netover/tws-gateway/pkg/cache"
	"github.com/netover/tws-gateway/pkg/config"
	"github.com/netover/tws-gateway/pkg/graph"
	"github.com/netover/tws-gateway/pkg/health"
	"github.com/netover/tws-gateway/pkg/llm"
	"github.com/netover/tws-gateway/pkg/metrics"
	"github.com/netover/tws-gateway/pkg/poller"
	"github.com/netover/tws-gateway/pkg/resilience"
	"github.com/netover/tws-gateway/pkg/telemetry"
)

func main() {
	cfg, err := config.LoadWithCLI(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := telemetry.ConfigureSlogRedacted(os.Stdout, cfg.Log.Level, cfg.Log.Format, "base_url")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsReg := metrics.NewRegistry()

	breakerOverrides := make(map[string]resilience.BreakerConfig, len(cfg.CircuitBreakers))
	for name, o := range cfg.CircuitBreakers {
		breakerOverrides[name] = resilience.BreakerConfig{
			FailureThreshold: o.FailureThreshold,
			RecoveryTimeout:  time.Duration(o.RecoveryTimeoutSeconds) * time.Second,
		}
	}
	breakers := resilience.NewDefaultRegistry(resilience.BreakerConfig{}, breakerOverrides)

	cacheHierarchy, err := cache.NewHierarchy(cache.HierarchyConfig{
		L1MaxSize:         cfg.Cache.L1MaxSize,
		L1NumShards:       cfg.Cache.L1NumShards,
		L2DefaultTTL:      time.Duration(cfg.Cache.L2DefaultTTLSeconds) * time.Second,
		L2CleanupInterval: time.Duration(cfg.Cache.L2CleanupIntervalSeconds) * time.Second,
		KeyPrefix:         cfg.Cache.KeyPrefix,
		EnableEncryption:  cfg.Cache.EnableEncryption,
	}, metricsReg)
	if err != nil {
		logger.Error("cache hierarchy init failed", "error", err)
		os.Exit(1)
	}
	cacheHierarchy.Start(ctx)
	defer cacheHierarchy.Stop()

	backendClient := backend.New(backend.Config{
		BaseURL:  cfg.Backend.BaseURL,
		Username: cfg.Backend.Username,
		Password: cfg.Backend.Password,
		Timeout:  cfg.Backend.Timeout,
	}, metricsReg)

	llmChain := buildLLMChain(cfg.LLM, breakers, metricsReg)

	graphSvc := graph.NewService(graph.NewBackendExpander(backendClient), graph.BuildConfig{
		MaxDepth: cfg.Graph.MaxDepth,
		TTL:      time.Duration(cfg.Graph.TTLSeconds) * time.Second,
	}, logger)

	backendPoller := poller.New(backendClient, graphSvc, poller.Config{
		Interval:         time.Duration(cfg.Poller.IntervalSeconds) * time.Second,
		IterationTimeout: time.Duration(cfg.Poller.IterationTimeoutSeconds) * time.Second,
		MaxBackoff:       time.Duration(cfg.Poller.MaxBackoffSeconds) * time.Second,
		FailureThreshold: cfg.Poller.FailureThreshold,
	}, metricsReg, logger)
	go func() {
		if err := backendPoller.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("poller exited", "error", err)
		}
	}()

	orchestrator := health.NewOrchestrator(buildProbes(backendClient, cacheHierarchy, breakers, cfg), health.Config{
		ComponentTimeout:  time.Duration(cfg.Health.ComponentTimeoutSeconds) * time.Second,
		GlobalTimeout:     time.Duration(cfg.Health.TimeoutSeconds) * time.Second,
		MaxHistoryEntries: cfg.Health.MaxHistoryEntries,
		RetentionDays:     cfg.Health.RetentionDays,
	})

	recovery := health.NewRecoveryManager(
		backendPoolController{client: backendClient},
		cacheController{hierarchy: cacheHierarchy},
		map[string]health.BreakerResettable{
			"tws_api":      mustBreaker(breakers, "tws_api"),
			"llm_primary":  mustBreaker(breakers, "llm_primary"),
			"llm_fallback": mustBreaker(breakers, "llm_fallback_0"),
		},
		nil,
	)
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.MetricsHandler(metricsReg))
	mux.Handle("/health", telemetry.HealthHandler(telemetry.HealthCheckFunc(func(ctx context.Context, correlationID string) any {
		return orchestrator.Check(ctx, correlationID)
	}), time.Duration(cfg.Health.TimeoutSeconds)*time.Second))
	mux.HandleFunc("/recovery/", recoveryHandler(recovery))
	mux.HandleFunc("/llm/explain", llmExplainHandler(llmChain))

	server := &http.Server{Addr: ":8080", Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func buildLLMChain(cfg config.LLMConfig, breakers *resilience.Registry, reg *metrics.Registry) *llm.Chain {
	primary := toProviderConfig(cfg.Primary)
	fallbacks := make([]llm.ProviderConfig, 0, len(cfg.FallbackChain))
	for _, pc := range cfg.FallbackChain {
		fallbacks = append(fallbacks, toProviderConfig(pc))
	}
	return llm.NewChain(llm.ChainConfig{
		Primary:         primary,
		FallbackChain:   fallbacks,
		DefaultTimeout:  time.Duration(cfg.DefaultTimeoutSeconds) * time.Second,
		BreakerRegistry: breakers,
		Metrics:         reg,
	})
}

func toProviderConfig(pc config.ProviderConfig) llm.ProviderConfig {
	return llm.ProviderConfig{
		Name:           pc.Name,
		Model:          pc.Model,
		Provider:       newProvider(pc),
		TimeoutSeconds: time.Duration(pc.TimeoutSeconds) * time.Second,
	}
}

// newProvider resolves a named provider kind to a concrete llm.Provider.
// Closed switch, not a string-keyed registry — the set of supported
// providers is fixed and known at compile time.
func newProvider(pc config.ProviderConfig) llm.Provider {
	switch pc.Provider {
	case "anthropic":
		return llm.NewAnthropic(pc.APIKey, time.Duration(pc.TimeoutSeconds)*time.Second)
	case "openai":
		return llm.NewOpenAICompat(pc.Endpoint, pc.APIKey, time.Duration(pc.TimeoutSeconds)*time.Second)
	case "ollama":
		return llm.NewOllama(pc.Endpoint)
	default:
		return &llm.MockProvider{}
	}
}

func buildProbes(client *backend.Client, hierarchy *cache.Hierarchy, breakers *resilience.Registry, cfg *config.Config) map[string]health.Probe {
	return map[string]health.Probe{
		"tws_monitor": health.PingProbe("tws_monitor", func(ctx context.Context) error {
			_, err := client.EngineInfo(ctx)
			return err
		}),
		"cache_hierarchy": health.PingProbe("cache_hierarchy", func(ctx context.Context) error {
			var probe bool
			_, err := hierarchy.GetTraced(ctx, "health:probe", &probe)
			return err
		}),
		"connection_pools": health.BreakerProbe("tws_api", mustBreaker(breakers, "tws_api")),
		"memory":           health.MemoryProbe(0, health.Thresholds{}),
		"cpu":              health.CPUProbe(health.Thresholds{}),
	}
}

func mustBreaker(r *resilience.Registry, name string) *resilience.CircuitBreaker {
	return r.Get(name)
}

// backendPoolController adapts backend.Client to health.PoolController.
type backendPoolController struct {
	client *backend.Client
}

func (b backendPoolController) HealthCheck(ctx context.Context) error {
	_, err := b.client.EngineInfo(ctx)
	return err
}

func (b backendPoolController) ErrorRate() float64 { return 0 }

func (b backendPoolController) Reset(ctx context.Context) error { return nil }

// cacheController adapts cache.Hierarchy to health.CacheController.
type cacheController struct {
	hierarchy *cache.Hierarchy
}

func (c cacheController) Ping(ctx context.Context) error {
	var probe bool
	_, err := c.hierarchy.Get("health:probe", &probe)
	return err
}

func (c cacheController) ClearStale(ctx context.Context) error {
	return nil
}

func (c cacheController) Reset(ctx context.Context) error {
	c.hierarchy.Clear()
	return nil
}

// recoveryHandler exposes POST /recovery/{component} to trigger
// attempt_component_recovery for a named component.
func recoveryHandler(mgr *health.RecoveryManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		component := strings.TrimPrefix(r.URL.Path, "/recovery/")
		if component == "" {
			http.Error(w, "missing component name", http.StatusBadRequest)
			return
		}
		result := mgr.AttemptRecovery(r.Context(), component)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

// llmExplainHandler exposes POST /llm/explain so the fallback chain backing
// graph explanations (e.g. edge-verification narration) is reachable over
// HTTP; it is not itself a routing/auth surface, just a thin exerciser.
func llmExplainHandler(chain *llm.Chain) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req llm.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		resp, err := chain.Complete(r.Context(), req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
