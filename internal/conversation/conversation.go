// Package conversation defines the persisted conversation model and the store
// contracts the chat engine depends on.
package conversation

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a conversation id does not exist.
var ErrNotFound = errors.New("conversation not found")

// Role identifies who produced a turn. RoleContext turns carry the retrieved
// corpus chunks that grounded the following assistant reply; they are part of
// the durable transcript but are never replayed to the generator as history.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleContext   Role = "retrieved-context"
)

// Turn is one transcript entry.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is a full transcript with identity and ownership.
type Conversation struct {
	ID        string    `json:"id"`
	OwnerKey  string    `json:"owner_key"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	Turns     []Turn    `json:"turns"`
}

// Summary is the listing projection of a conversation.
type Summary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Store persists conversations. Appends to the same conversation are
// serialized by the implementation, so concurrent turns interleave whole
// turns, never fragments.
type Store interface {
	Create(ctx context.Context, ownerKey, title string) (string, error)
	AppendTurn(ctx context.Context, id string, turn Turn) error
	Get(ctx context.Context, id string) (*Conversation, error)
	List(ctx context.Context, ownerKey string) ([]Summary, error)
	Delete(ctx context.Context, id string) error
}

// ProfileStore records per-owner symptom observations as append-only
// date-stamped events.
type ProfileStore interface {
	RecordSymptom(ctx context.Context, ownerKey, symptomKey string, at time.Time) error
	SymptomHistory(ctx context.Context, ownerKey string, since time.Time) (map[string][]time.Time, error)
}
