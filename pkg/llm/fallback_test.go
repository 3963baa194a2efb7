package llm

import (
	"context"
	"testing"
	"time"

	"github.com/netover/tws-gateway/pkg/apperrors"
	"github.com/netover/tws-gateway/pkg/resilience"
)

func chainConfig(primary, fallback Provider) ChainConfig {
	return ChainConfig{
		Primary:        ProviderConfig{Name: "primary", Model: "m1", Provider: primary, TimeoutSeconds: time.Second, MaxRetries: 1},
		FallbackChain:  []ProviderConfig{{Name: "fb", Model: "m2", Provider: fallback, TimeoutSeconds: time.Second, MaxRetries: 1}},
		DefaultTimeout: time.Second,
		BreakerRegistry: resilience.NewRegistry(resilience.BreakerConfig{FailureThreshold: 5, RecoveryTimeout: time.Minute}),
	}
}

func TestChainSuccessOnPrimary(t *testing.T) {
	chain := NewChain(chainConfig(&MockProvider{Response: "hello"}, &MockProvider{Response: "unused"}))
	resp, err := chain.Complete(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.ProviderUsed != "primary" || resp.WasFallback {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", resp.Attempts)
	}
}

func TestChainFallsBackOnServerError(t *testing.T) {
	primary := &MockProvider{Err: apperrors.New(apperrors.CodeBackendHTTP, "boom", nil).WithContext("status", 500)}
	fallback := &MockProvider{Response: "fallback-response"}
	chain := NewChain(chainConfig(primary, fallback))

	resp, err := chain.Complete(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.ProviderUsed != "fb" || !resp.WasFallback {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", resp.Attempts)
	}
}

func TestChainDoesNotFallBackOnAuth(t *testing.T) {
	primary := &MockProvider{Err: apperrors.New(apperrors.CodeBackendHTTP, "unauthorized", nil).WithContext("status", 401)}
	fallback := &MockProvider{Response: "should not be reached"}
	chain := NewChain(chainConfig(primary, fallback))

	_, err := chain.Complete(context.Background(), ChatRequest{})
	if err == nil {
		t.Fatal("expected AUTH error to surface immediately")
	}
	ae := apperrors.As(err)
	if ae.Code == apperrors.CodeLLMUnavailable {
		t.Error("AUTH must surface as the raw error, not wrapped as LLMUnavailable")
	}
}

func TestChainDoesNotFallBackOnClientError(t *testing.T) {
	primary := &MockProvider{Err: apperrors.New(apperrors.CodeBackendHTTP, "bad request", nil).WithContext("status", 400)}
	fallback := &MockProvider{Response: "should not be reached"}
	chain := NewChain(chainConfig(primary, fallback))

	calledFallback := false
	fallback.ChatFunc = func(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
		calledFallback = true
		return &ChatResponse{Content: "x"}, nil
	}

	_, err := chain.Complete(context.Background(), ChatRequest{})
	if err == nil {
		t.Fatal("expected CLIENT_ERROR to surface immediately")
	}
	if calledFallback {
		t.Error("fallback must not be invoked on CLIENT_ERROR")
	}
}

func TestChainExhaustionRaisesLLMUnavailable(t *testing.T) {
	failing := apperrors.New(apperrors.CodeBackendHTTP, "down", nil).WithContext("status", 503)
	primary := &MockProvider{Err: failing}
	fallback := &MockProvider{Err: failing}
	chain := NewChain(chainConfig(primary, fallback))

	_, err := chain.Complete(context.Background(), ChatRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	ae := apperrors.As(err)
	if ae.Code != apperrors.CodeLLMUnavailable {
		t.Errorf("code = %s, want CodeLLMUnavailable", ae.Code)
	}
}

func TestClassifyStatusCodes(t *testing.T) {
	cases := map[int]FailureClass{
		401: FailureAuth,
		403: FailureAuth,
		429: FailureRateLimit,
		500: FailureServerError,
		503: FailureServerError,
		400: FailureClientError,
	}
	for status, want := range cases {
		err := apperrors.New(apperrors.CodeBackendHTTP, "x", nil).WithContext("status", status)
		if got := DefaultClassify(err); got != want {
			t.Errorf("status %d: class = %s, want %s", status, got, want)
		}
	}
}
