// Package processor executes the response-generation pipeline for one
// queued job.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/helpflowai/helpflow/internal/chat"
	"github.com/helpflowai/helpflow/internal/message"
	"github.com/helpflowai/helpflow/internal/notify"
	"github.com/helpflowai/helpflow/internal/queue"
)

// AssistantProfile is the tenant's AI employee configuration.
type AssistantProfile struct {
	Name         string
	SystemPrompt string
	Model        string
	Temperature  *float32
}

// AssistantResolver resolves the AI employee configuration for a
// tenant.
type AssistantResolver interface {
	Resolve(ctx context.Context, tenantID string) (AssistantProfile, error)
}

// ContextBuilder assembles the retrieval context for the LLM call.
type ContextBuilder interface {
	Build(ctx context.Context, job *queue.Job, profile AssistantProfile) ([]chat.Message, error)
}

// ResponseValidator checks a generated reply before it leaves the
// system.
type ResponseValidator interface {
	Validate(ctx context.Context, tenantID, text string) error
}

// MessageSender delivers the reply through the messaging provider and
// returns the provider-assigned event id.
type MessageSender interface {
	Send(ctx context.Context, tenantID, customerAddress, text string) (string, error)
}

// Chatter is the LLM entry point; satisfied by chat.FallbackChat.
type Chatter interface {
	Chat(ctx context.Context, req chat.Request) (chat.Result, error)
}

// Notifier pushes new-message events to connected clients.
type Notifier interface {
	Broadcast(tenantID string, event notify.Event)
}

// Pipeline runs resolve → context → chat → validate → persist → send
// → notify for each job. The notify step is detached from the job
// outcome: a push failure is logged, never failed on.
type Pipeline struct {
	resolver  AssistantResolver
	builder   ContextBuilder
	chatter   Chatter
	validator ResponseValidator
	messages  message.Writer
	sender    MessageSender
	notifier  Notifier
	logger    *slog.Logger
}

func NewPipeline(
	log *slog.Logger,
	resolver AssistantResolver,
	builder ContextBuilder,
	chatter Chatter,
	validator ResponseValidator,
	messages message.Writer,
	sender MessageSender,
	notifier Notifier,
) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		resolver:  resolver,
		builder:   builder,
		chatter:   chatter,
		validator: validator,
		messages:  messages,
		sender:    sender,
		notifier:  notifier,
		logger:    log.With(slog.String("component", "processor")),
	}
}

// Process handles one job to completion. The ctx carries the job's
// hard deadline; every network call below inherits it.
func (p *Pipeline) Process(ctx context.Context, job *queue.Job) error {
	profile, err := p.resolver.Resolve(ctx, job.TenantID)
	if err != nil {
		return fmt.Errorf("resolve assistant profile: %w", err)
	}

	messages, err := p.builder.Build(ctx, job, profile)
	if err != nil {
		return fmt.Errorf("build context: %w", err)
	}

	result, err := p.chatter.Chat(ctx, chat.Request{
		Messages:    messages,
		Model:       profile.Model,
		Temperature: profile.Temperature,
	})
	if err != nil {
		return fmt.Errorf("generate response: %w", err)
	}

	if p.validator != nil {
		if err := p.validator.Validate(ctx, job.TenantID, result.Content); err != nil {
			return fmt.Errorf("validate response: %w", err)
		}
	}

	outbound, err := p.messages.Persist(ctx, message.PersistInput{
		ConversationID: job.ConversationID,
		TenantID:       job.TenantID,
		Direction:      message.DirectionOutbound,
		Sender:         message.SenderAI,
		Text:           result.Content,
		Metadata: map[string]any{
			"model":    result.Model,
			"provider": result.Provider,
			"job_id":   job.ID,
		},
	})
	if err != nil {
		return fmt.Errorf("persist outbound message: %w", err)
	}

	eventID, err := p.sender.Send(ctx, job.TenantID, job.CustomerAddress, result.Content)
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	if eventID != "" {
		// Delivery-status callbacks match on the provider event id; a
		// failed write only costs delivery tracking for this message.
		if err := p.messages.SetProviderEventID(ctx, outbound.ID, eventID); err != nil {
			p.logger.Warn("record provider event id failed",
				slog.String("message_id", outbound.ID),
				slog.Any("error", err),
			)
		}
	}

	if p.notifier != nil {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("notify panicked", slog.Any("panic", r))
				}
			}()
			p.notifier.Broadcast(job.TenantID, notify.Event{
				Type:           "message.new",
				TenantID:       job.TenantID,
				ConversationID: job.ConversationID,
				MessageID:      outbound.ID,
				Sender:         message.SenderAI,
				Text:           outbound.Text,
				CreatedAt:      time.Now().UTC(),
			})
		}()
	}
	return nil
}
