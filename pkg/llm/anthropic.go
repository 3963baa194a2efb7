package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/netover/tws-gateway/pkg/apperrors"
)

// AnthropicProvider talks to the Anthropic Messages API directly over
// net/http, same rationale as OpenAICompatProvider: no vendor SDK is among
// this repository's grounded dependencies, and the wire format is simple
// enough to hand-roll in the teacher's manual-marshal style.
type AnthropicProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewAnthropic creates an AnthropicProvider against the public API by
// default.
func NewAnthropic(apiKey string, timeout time.Duration) *AnthropicProvider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &AnthropicProvider{
		baseURL: "https://api.anthropic.com/v1",
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Chat implements Provider. Anthropic splits the system prompt out of the
// message list, so a leading RoleSystem message is hoisted into the
// request's top-level System field.
func (p *AnthropicProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var system string
	messages := make([]anthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			system = m.Content
			continue
		}
		messages = append(messages, anthropicMessage{Role: string(m.Role), Content: m.Content})
	}

	aReq := anthropicRequest{
		Model: req.Model, Messages: messages, System: system,
		MaxTokens: 4096, Temperature: req.Temperature,
	}

	body, err := json.Marshal(aReq)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeLLMUnavailable, "failed to marshal anthropic request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.New(apperrors.CodeConfiguration, "failed to build anthropic request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, classifyHTTPErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var eb anthropicErrorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		return nil, apperrors.New(apperrors.CodeBackendHTTP, "anthropic provider returned an error", nil).
			WithContext("status", resp.StatusCode).
			WithContext("message", eb.Error.Message).
			WithRecoverable(resp.StatusCode >= 500)
	}

	var aResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&aResp); err != nil {
		return nil, apperrors.New(apperrors.CodeLLMUnavailable, "failed to decode anthropic response", err)
	}

	var content string
	for _, block := range aResp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &ChatResponse{
		Content: content,
		Usage: Usage{
			PromptTokens:     aResp.Usage.InputTokens,
			CompletionTokens: aResp.Usage.OutputTokens,
			TotalTokens:      aResp.Usage.InputTokens + aResp.Usage.OutputTokens,
		},
	}, nil
}

var _ Provider = (*AnthropicProvider)(nil)
