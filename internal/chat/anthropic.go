package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAnthropicBase    = "https://api.anthropic.com/v1"
	anthropicAPIVersion     = "2023-06-01"
	defaultAnthropicModel   = "claude-sonnet-4-5-20250929"
	defaultAnthropicTimeout = 60 * time.Second
	defaultMaxTokens        = 1024
)

// AnthropicProvider implements Provider over the Anthropic Messages
// API via net/http.
type AnthropicProvider struct {
	baseURL      string
	apiKey       string
	secondaryKey string
	defaultModel string
	client       *http.Client
}

func NewAnthropicProvider(cfg Config) *AnthropicProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultAnthropicBase
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	timeout := defaultAnthropicTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &AnthropicProvider{
		baseURL:      baseURL,
		apiKey:       cfg.APIKey,
		secondaryKey: cfg.SecondaryAPIKey,
		defaultModel: model,
		client:       &http.Client{Timeout: timeout},
	}
}

func (p *AnthropicProvider) Name() string        { return string(ProviderAnthropic) }
func (p *AnthropicProvider) SupportsTools() bool { return true }

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Temp      *float32           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *AnthropicProvider) Chat(ctx context.Context, req Request) (Result, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	body := anthropicRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Temp:      req.Temperature,
	}
	for _, m := range req.Messages {
		if m.Role == "system" {
			body.System = m.Content
			continue
		}
		body.Messages = append(body.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := p.send(ctx, body, p.apiKey)
	if err != nil {
		var provErr *ProviderError
		// A rate-limited primary credential gets one shot on the
		// secondary credential before the failure surfaces.
		if errors.As(err, &provErr) && provErr.StatusCode == http.StatusTooManyRequests && p.secondaryKey != "" {
			return p.send(ctx, body, p.secondaryKey)
		}
		return Result{}, err
	}
	return resp, nil
}

func (p *AnthropicProvider) send(ctx context.Context, body anthropicRequest, apiKey string) (Result, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Result{}, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return Result{}, &ProviderError{Provider: p.Name(), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return Result{}, &ProviderError{Provider: p.Name(), Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return Result{}, &ProviderError{
			Provider:   p.Name(),
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(raw))),
		}
	}

	var resp anthropicResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return Result{}, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}
	if resp.Error != nil {
		return Result{}, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%s: %s", resp.Error.Type, resp.Error.Message)}
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return Result{
		Content:      text.String(),
		Model:        resp.Model,
		Provider:     p.Name(),
		FinishReason: resp.StopReason,
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

// HealthCheck sends a minimal single-token request.
func (p *AnthropicProvider) HealthCheck(ctx context.Context) error {
	_, err := p.Chat(ctx, Request{
		Messages:  []Message{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	})
	return err
}
