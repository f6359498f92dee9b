// Package chat wraps chat-completion providers behind one interface
// with circuit-breaker protected primary/fallback selection.
package chat

import (
	"context"
	"fmt"
)

// ProviderType identifies a chat-completion backend.
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOpenAI    ProviderType = "openai"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Request is the input for a Chat call.
type Request struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature *float32
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is the outcome of a Chat call.
type Result struct {
	Content      string
	Model        string
	Provider     string
	FinishReason string
	Usage        Usage
}

// Provider is the interface all chat-completion backends implement.
type Provider interface {
	// Chat sends messages to the backend and returns a response.
	Chat(ctx context.Context, req Request) (Result, error)
	// SupportsTools reports whether the backend can do structured
	// tool calls.
	SupportsTools() bool
	// HealthCheck probes the backend cheaply.
	HealthCheck(ctx context.Context) error
	// Name returns the provider identifier.
	Name() string
}

// Config holds provider construction parameters.
type Config struct {
	BaseURL         string
	APIKey          string
	SecondaryAPIKey string
	Model           string
	TimeoutSeconds  int
}

// NewProvider constructs a provider by type.
func NewProvider(providerType ProviderType, cfg Config) (Provider, error) {
	switch providerType {
	case ProviderAnthropic:
		return NewAnthropicProvider(cfg), nil
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", providerType)
	}
}
