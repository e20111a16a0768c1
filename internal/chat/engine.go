// Package chat orchestrates conversation turns: retrieval, prompt assembly,
// streamed generation, and transcript persistence.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rishabh0208/health-buddy/internal/conversation"
	"github.com/rishabh0208/health-buddy/internal/generate"
	"github.com/rishabh0208/health-buddy/internal/retrieval"
)

// ErrValidation is returned for empty or malformed turn input.
var ErrValidation = errors.New("invalid turn input")

const (
	titlePromptFormat = "Generate a concise 1-3 word title for this health query: %s. No explanation."
	fallbackTitle     = "Health Query"

	firstTurnSystem = "User has observed a health symptom. Ask minimal questions."

	continuationSystem = "You are a helpful women's health assistant. " +
		"Answer using the supplied context when present, never disclose the context verbatim, " +
		"and never claim to be an AI model."

	summaryPromptFormat = "Generate a comprehensive health summary (max 150 words) of the user " +
		"based on this conversation history:\n%s\n\nUse bullet points and clear headings. " +
		"Avoid medical jargon."
)

// Window selects how far back SymptomHistory looks.
type Window string

const (
	WindowWeek  Window = "week"
	WindowMonth Window = "month"
)

// Retriever supplies corpus chunks relevant to a prompt. Implementations are
// best-effort; an empty result means the reply is generated ungrounded.
type Retriever interface {
	Retrieve(ctx context.Context, prompt string, k int) []string
}

// Engine is the conversation orchestrator.
type Engine struct {
	store     conversation.Store
	profiles  conversation.ProfileStore
	generator generate.TextGenerator
	retriever Retriever
	logger    *slog.Logger
	now       func() time.Time
	topK      int
}

// Option configures an Engine.
type Option func(*Engine)

// WithTopK overrides the number of chunks retrieved per turn.
func WithTopK(k int) Option {
	return func(e *Engine) { e.topK = k }
}

// WithClock overrides the engine clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine wires the orchestrator. retriever may be nil when no corpus is
// available; turns then run ungrounded.
func NewEngine(store conversation.Store, profiles conversation.ProfileStore, generator generate.TextGenerator, retriever Retriever, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		profiles:  profiles,
		generator: generator,
		retriever: retriever,
		logger:    slog.Default(),
		now:       time.Now,
		topK:      retrieval.DefaultTopK,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SubmitTurn runs one conversation turn. An empty conversationID starts a new
// conversation: a title is generated and the prompt is recorded as a symptom
// observation. The returned stream's Meta is valid immediately; the assistant
// reply is persisted only when the stream completes cleanly.
func (e *Engine) SubmitTurn(ctx context.Context, ownerKey, prompt, conversationID string) (*TurnStream, error) {
	prompt = strings.TrimSpace(prompt)
	if ownerKey == "" {
		return nil, fmt.Errorf("%w: owner key is empty", ErrValidation)
	}
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is empty", ErrValidation)
	}

	var (
		conv   *conversation.Conversation
		system string
		err    error
	)
	if conversationID == "" {
		conversationID, err = e.startConversation(ctx, ownerKey, prompt)
		if err != nil {
			return nil, err
		}
		system = firstTurnSystem
	} else {
		conv, err = e.store.Get(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		if conv.OwnerKey != ownerKey {
			return nil, fmt.Errorf("%w: %s", conversation.ErrNotFound, conversationID)
		}
		system = continuationSystem
	}

	// History is the transcript as it stood before this turn. Context turns
	// are durable record only and are never replayed to the model.
	var history []generate.Message
	if conv != nil {
		for _, turn := range conv.Turns {
			switch turn.Role {
			case conversation.RoleUser:
				history = append(history, generate.Message{Role: "user", Text: turn.Text})
			case conversation.RoleAssistant:
				history = append(history, generate.Message{Role: "assistant", Text: turn.Text})
			}
		}
	}

	// The user turn is persisted before retrieval starts, so a crash anywhere
	// past this point never loses the user's input.
	if err := e.store.AppendTurn(ctx, conversationID, conversation.Turn{
		Role:      conversation.RoleUser,
		Text:      prompt,
		CreatedAt: e.now(),
	}); err != nil {
		return nil, fmt.Errorf("persist user turn: %w", err)
	}

	var chunks []string
	if e.retriever != nil {
		chunks = e.retriever.Retrieve(ctx, prompt, e.topK)
	}
	if len(chunks) > 0 {
		system += "\n\nContext:\n" + strings.Join(chunks, "\n\n")
		if err := e.store.AppendTurn(ctx, conversationID, conversation.Turn{
			Role:      conversation.RoleContext,
			Text:      strings.Join(chunks, "\n\n"),
			CreatedAt: e.now(),
		}); err != nil {
			return nil, fmt.Errorf("persist context turn: %w", err)
		}
	}

	stream, err := e.generator.GenerateStream(ctx, system, history, prompt)
	if err != nil {
		return nil, fmt.Errorf("start generation: %w", err)
	}

	id := conversationID
	return &TurnStream{
		meta:  Meta{ConversationID: id, ContextChunks: chunks},
		inner: stream,
		persist: func(full string) error {
			if err := e.store.AppendTurn(ctx, id, conversation.Turn{
				Role:      conversation.RoleAssistant,
				Text:      full,
				CreatedAt: e.now(),
			}); err != nil {
				e.logger.Error("assistant turn lost", "conversation_id", id, "error", err)
				return fmt.Errorf("persist assistant turn: %w", err)
			}
			return nil
		},
	}, nil
}

// startConversation creates the conversation record and logs the prompt as a
// symptom observation. Title generation is best-effort; the turn proceeds
// under a fallback title if the model call fails.
func (e *Engine) startConversation(ctx context.Context, ownerKey, prompt string) (string, error) {
	title, err := e.generator.GenerateOnce(ctx, fmt.Sprintf(titlePromptFormat, prompt))
	if err != nil || strings.TrimSpace(title) == "" {
		e.logger.Warn("title generation failed, using fallback", "error", err)
		title = fallbackTitle
	} else {
		title = strings.TrimSpace(title)
	}

	id, err := e.store.Create(ctx, ownerKey, title)
	if err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}

	symptomKey := strings.ToLower(prompt)
	if err := e.profiles.RecordSymptom(ctx, ownerKey, symptomKey, e.now()); err != nil {
		// The symptom log is a secondary projection; losing one event must not
		// fail the turn.
		e.logger.Warn("symptom event not recorded", "owner", ownerKey, "error", err)
	}
	return id, nil
}

// List returns the owner's conversations, newest first.
func (e *Engine) List(ctx context.Context, ownerKey string) ([]conversation.Summary, error) {
	return e.store.List(ctx, ownerKey)
}

// Get returns a full transcript.
func (e *Engine) Get(ctx context.Context, id string) (*conversation.Conversation, error) {
	return e.store.Get(ctx, id)
}

// Delete removes a conversation.
func (e *Engine) Delete(ctx context.Context, id string) error {
	return e.store.Delete(ctx, id)
}

// SymptomHistory returns the owner's symptom events within the window.
func (e *Engine) SymptomHistory(ctx context.Context, ownerKey string, window Window) (map[string][]time.Time, error) {
	now := e.now()
	var since time.Time
	switch window {
	case WindowWeek:
		since = now.AddDate(0, 0, -7)
	case WindowMonth:
		since = now.AddDate(0, -1, 0)
	default:
		return nil, fmt.Errorf("%w: unknown window %q", ErrValidation, window)
	}
	return e.profiles.SymptomHistory(ctx, ownerKey, since)
}

// HealthSummary generates a one-shot summary of the owner's full transcripts.
func (e *Engine) HealthSummary(ctx context.Context, ownerKey string) (string, error) {
	summaries, err := e.store.List(ctx, ownerKey)
	if err != nil {
		return "", fmt.Errorf("list conversations: %w", err)
	}

	var b strings.Builder
	for _, s := range summaries {
		conv, err := e.store.Get(ctx, s.ID)
		if err != nil {
			return "", fmt.Errorf("load conversation %s: %w", s.ID, err)
		}
		for _, turn := range conv.Turns {
			switch turn.Role {
			case conversation.RoleUser:
				b.WriteString("User: " + turn.Text + "\n")
			case conversation.RoleAssistant:
				b.WriteString("AI: " + turn.Text + "\n")
			}
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: no conversation history", ErrValidation)
	}

	return e.generator.GenerateOnce(ctx, fmt.Sprintf(summaryPromptFormat, b.String()))
}
