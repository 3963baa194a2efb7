package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/netover/tws-gateway/pkg/apperrors"
)

// OpenAICompatProvider talks to any OpenAI-compatible /v1/chat/completions
// endpoint (OpenAI itself, Azure OpenAI, or a LiteLLM-fronted cloud model).
// Built directly on net/http in the same manual marshal/decode style as
// OllamaProvider rather than pulling in a vendor SDK — the wire format is
// simple enough, and no OpenAI/Anthropic client library is among this
// repository's grounded dependencies.
type OpenAICompatProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewOpenAICompat creates a provider against baseURL (e.g.
// "https://api.openai.com/v1").
func NewOpenAICompat(baseURL, apiKey string, timeout time.Duration) *OpenAICompatProvider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAICompatProvider{baseURL: baseURL, apiKey: apiKey, client: &http.Client{Timeout: timeout}}
}

type openAIMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Tools          []Tool          `json:"tools,omitempty"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type openAIErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Chat implements Provider.
func (p *OpenAICompatProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	messages := make([]openAIMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openAIMessage{
			Role: string(m.Role), Content: m.Content, ToolCalls: m.ToolCalls, ToolCallID: m.ToolCallID,
		})
	}

	oReq := openAIRequest{Model: req.Model, Messages: messages, Tools: req.Tools, Temperature: req.Temperature}
	if req.JSONMode {
		oReq.ResponseFormat = &struct {
			Type string `json:"type"`
		}{Type: "json_object"}
	}

	body, err := json.Marshal(oReq)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeLLMUnavailable, "failed to marshal openai-compat request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.New(apperrors.CodeConfiguration, "failed to build openai-compat request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, classifyHTTPErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var eb openAIErrorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		return nil, apperrors.New(apperrors.CodeBackendHTTP, "openai-compat provider returned an error", nil).
			WithContext("status", resp.StatusCode).
			WithContext("message", eb.Error.Message).
			WithRecoverable(resp.StatusCode >= 500)
	}

	var oResp openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&oResp); err != nil {
		return nil, apperrors.New(apperrors.CodeLLMUnavailable, "failed to decode openai-compat response", err)
	}
	if len(oResp.Choices) == 0 {
		return nil, apperrors.New(apperrors.CodeLLMUnavailable, "openai-compat response had no choices", nil)
	}

	choice := oResp.Choices[0]
	return &ChatResponse{
		Content:   choice.Message.Content,
		ToolCalls: choice.Message.ToolCalls,
		Usage: Usage{
			PromptTokens:     oResp.Usage.PromptTokens,
			CompletionTokens: oResp.Usage.CompletionTokens,
			TotalTokens:      oResp.Usage.TotalTokens,
		},
	}, nil
}

var _ Provider = (*OpenAICompatProvider)(nil)
