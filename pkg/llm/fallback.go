package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/netover/tws-gateway/pkg/apperrors"
	"github.com/netover/tws-gateway/pkg/metrics"
	"github.com/netover/tws-gateway/pkg/resilience"
	"github.com/netover/tws-gateway/pkg/telemetry"
)

var tracer = otel.Tracer("tws-gateway/llm")

// ProviderConfig names one entry of the fallback chain.
type ProviderConfig struct {
	Name           string
	Model          string
	Provider       Provider
	TimeoutSeconds time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// ChainConfig configures the whole fallback chain.
type ChainConfig struct {
	Primary         ProviderConfig
	FallbackChain   []ProviderConfig
	DefaultTimeout  time.Duration
	Classify        ClassifyFunc
	BreakerRegistry *resilience.Registry
	Metrics         *metrics.Registry
}

// Response is the result of a completed chain call.
type Response struct {
	Content      string
	ProviderUsed string
	ModelUsed    string
	Attempts     int
	WasFallback  bool
	DurationMS   int64
	TokensIn     int
	TokensOut    int
}

// Attempt records one provider attempt in the trail carried by
// LLMUnavailable.
type Attempt struct {
	Provider string
	Reason   FailureClass
	Err      error
}

// Chain runs an ordered list of providers, retrying transient failures per
// provider and falling through to the next provider on CIRCUIT_OPEN or
// retry exhaustion. AUTH/CLIENT_ERROR short-circuits the whole chain.
type Chain struct {
	cfg      ChainConfig
	classify ClassifyFunc
}

// NewChain builds a Chain from ChainConfig.
func NewChain(cfg ChainConfig) *Chain {
	classify := cfg.Classify
	if classify == nil {
		classify = DefaultClassify
	}
	return &Chain{cfg: cfg, classify: classify}
}

func (c *Chain) providers() []ProviderConfig {
	out := make([]ProviderConfig, 0, 1+len(c.cfg.FallbackChain))
	out = append(out, c.cfg.Primary)
	out = append(out, c.cfg.FallbackChain...)
	return out
}

// Complete runs the fallback chain for a single chat request.
func (c *Chain) Complete(ctx context.Context, req ChatRequest) (*Response, error) {
	ctx, span := tracer.Start(ctx, "llm.chain.complete")
	defer span.End()

	start := time.Now()
	providers := c.providers()
	trail := make([]Attempt, 0, len(providers))

	for idx, pc := range providers {
		if pc.Model != "" {
			req.Model = pc.Model
		}
		span.SetAttributes(telemetry.LLMCallAttributes(req.Model, pc.Name, len(req.Messages), idx+1, idx > 0)...)

		resp, class, err := c.tryProvider(ctx, pc, req)
		if err == nil {
			c.recordOutcome(pc.Name, "success")
			if idx > 0 {
				c.recordFallback(providers[idx-1].Name, pc.Name, "success")
			}
			durationMS := time.Since(start).Milliseconds()
			span.SetAttributes(telemetry.LLMUsageAttributes(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, float64(durationMS))...)
			return &Response{
				Content:      resp.Content,
				ProviderUsed: pc.Name,
				ModelUsed:    req.Model,
				Attempts:     idx + 1,
				WasFallback:  idx > 0,
				DurationMS:   durationMS,
				TokensIn:     resp.Usage.PromptTokens,
				TokensOut:    resp.Usage.CompletionTokens,
			}, nil
		}

		trail = append(trail, Attempt{Provider: pc.Name, Reason: class, Err: err})
		c.recordOutcome(pc.Name, string(class))

		if class == FailureAuth || class == FailureClientError {
			return nil, err
		}
		// CIRCUIT_OPEN or exhausted retries: fall through to next provider.
	}

	last := trail[len(trail)-1]
	chainErr := apperrors.New(apperrors.CodeLLMUnavailable, "llm provider chain exhausted", last.Err).
		WithContext("attempts", trail).
		WithRecoverable(false)
	telemetry.RecordError(span, chainErr)
	return nil, chainErr
}

// tryProvider wraps one provider's Chat call with its breaker, retry (for
// TIMEOUT/RATE_LIMIT/SERVER_ERROR only), and per-attempt timeout.
func (c *Chain) tryProvider(ctx context.Context, pc ProviderConfig, req ChatRequest) (*ChatResponse, FailureClass, error) {
	timeout := pc.TimeoutSeconds
	if timeout <= 0 {
		timeout = c.cfg.DefaultTimeout
	}

	var breaker *resilience.CircuitBreaker
	if c.cfg.BreakerRegistry != nil {
		breaker = c.cfg.BreakerRegistry.Get("llm_" + pc.Name)
	}

	retryCfg := resilience.DefaultRetryConfig().
		WithMaxAttempts(maxInt(pc.MaxRetries, 0) + 1).
		WithBaseDelay(defaultDuration(pc.RetryBaseDelay, 200*time.Millisecond))

	var lastClass FailureClass
	retryCfg = retryCfg.WithIsRecoverable(func(err error) bool {
		lastClass = c.classify(err)
		return retryable[lastClass]
	})

	policy := resilience.Policy{Breaker: breaker, Retry: retryCfg, Timeout: timeout, Scope: "llm:" + pc.Name}

	var resp *ChatResponse
	err := policy.Execute(ctx, func(ctx context.Context) error {
		r, err := pc.Provider.Chat(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})

	if err == nil {
		return resp, "", nil
	}

	class := c.classify(err)
	var ae *apperrors.Error
	if e, ok := err.(*apperrors.Error); ok {
		ae = e
		if ae.Code == apperrors.CodeCircuitOpen {
			class = FailureCircuitOpen
		}
	}
	return nil, class, err
}

func (c *Chain) recordOutcome(provider, outcome string) {
	if c.cfg.Metrics == nil {
		return
	}
	c.cfg.Metrics.IncrCounter("llm_requests_total", metrics.Labels{"provider": provider, "outcome": outcome}, 1)
}

func (c *Chain) recordFallback(from, to, reason string) {
	if c.cfg.Metrics == nil {
		return
	}
	c.cfg.Metrics.IncrCounter("llm_fallback_total", metrics.Labels{"from": from, "to": to, "reason": reason}, 1)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func defaultDuration(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
