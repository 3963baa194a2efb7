package llm

import "context"

// MockProvider is a test double implementing Provider. When Err is an
// *apperrors.Error its Code, or its "status" context value, drives
// DefaultClassify, so tests can exercise
// every branch of the fallback chain's classification logic.
type MockProvider struct {
	Response string
	Err      error
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Chat returns the configured response or error, or delegates to ChatFunc.
func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &ChatResponse{
		Content: m.Response,
		Usage:   Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20},
	}, nil
}

var _ Provider = (*MockProvider)(nil)
