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
	defaultOpenAIBase    = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultOpenAITimeout = 60 * time.Second
)

// OpenAIProvider implements Provider over the OpenAI chat completions
// API via net/http. It also serves OpenAI-compatible backends through
// a custom base URL.
type OpenAIProvider struct {
	baseURL      string
	apiKey       string
	secondaryKey string
	defaultModel string
	client       *http.Client
}

func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBase
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	timeout := defaultOpenAITimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &OpenAIProvider{
		baseURL:      baseURL,
		apiKey:       cfg.APIKey,
		secondaryKey: cfg.SecondaryAPIKey,
		defaultModel: model,
		client:       &http.Client{Timeout: timeout},
	}
}

func (p *OpenAIProvider) Name() string        { return string(ProviderOpenAI) }
func (p *OpenAIProvider) SupportsTools() bool { return true }

type openaiRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float32  `json:"temperature,omitempty"`
}

type openaiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *OpenAIProvider) Chat(ctx context.Context, req Request) (Result, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	body := openaiRequest{
		Model:       model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	resp, err := p.send(ctx, body, p.apiKey)
	if err != nil {
		var provErr *ProviderError
		if errors.As(err, &provErr) && provErr.StatusCode == http.StatusTooManyRequests && p.secondaryKey != "" {
			return p.send(ctx, body, p.secondaryKey)
		}
		return Result{}, err
	}
	return resp, nil
}

func (p *OpenAIProvider) send(ctx context.Context, body openaiRequest, apiKey string) (Result, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Result{}, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Result{}, &ProviderError{Provider: p.Name(), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

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

	var resp openaiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return Result{}, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}
	if resp.Error != nil {
		return Result{}, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%s: %s", resp.Error.Type, resp.Error.Message)}
	}
	if len(resp.Choices) == 0 {
		return Result{}, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("empty choices in response")}
	}

	choice := resp.Choices[0]
	return Result{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		Provider:     p.Name(),
		FinishReason: choice.FinishReason,
		Usage:        resp.Usage,
	}, nil
}

// HealthCheck lists models, the cheapest authenticated probe the API
// offers.
func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return &ProviderError{Provider: p.Name(), Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return &ProviderError{Provider: p.Name(), Err: err}
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return &ProviderError{Provider: p.Name(), StatusCode: httpResp.StatusCode, Err: fmt.Errorf("health check failed")}
	}
	return nil
}
