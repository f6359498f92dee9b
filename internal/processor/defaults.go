package processor

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/helpflowai/helpflow/internal/chat"
	"github.com/helpflowai/helpflow/internal/queue"
)

const defaultSystemPrompt = "You are a helpful customer support assistant. " +
	"Answer concisely and never invent order or account details."

// maxReplyRunes bounds generated replies; messaging providers truncate
// or reject past a few thousand characters.
const maxReplyRunes = 4000

// StaticAssistantResolver serves one fixed profile for every tenant.
// Deployments with per-tenant assistant configuration plug their own
// resolver in.
type StaticAssistantResolver struct {
	Profile AssistantProfile
}

func (r StaticAssistantResolver) Resolve(_ context.Context, _ string) (AssistantProfile, error) {
	profile := r.Profile
	if profile.SystemPrompt == "" {
		profile.SystemPrompt = defaultSystemPrompt
	}
	return profile, nil
}

// PromptContextBuilder builds the minimal LLM context: the assistant
// system prompt plus the customer message. Retrieval-augmented context
// comes from an external collaborator implementing ContextBuilder.
type PromptContextBuilder struct{}

func (PromptContextBuilder) Build(_ context.Context, job *queue.Job, profile AssistantProfile) ([]chat.Message, error) {
	return []chat.Message{
		{Role: "system", Content: profile.SystemPrompt},
		{Role: "user", Content: job.MessageText},
	}, nil
}

// BasicValidator rejects empty and oversized replies.
type BasicValidator struct{}

func (BasicValidator) Validate(_ context.Context, _ string, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("generated reply is empty")
	}
	if utf8.RuneCountInString(text) > maxReplyRunes {
		return fmt.Errorf("generated reply exceeds %d characters", maxReplyRunes)
	}
	return nil
}
