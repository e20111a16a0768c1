package chat

import (
	"strings"

	"github.com/rishabh0208/health-buddy/internal/generate"
)

// Meta is the turn's side channel: facts about the reply that are known
// before the first text fragment arrives.
type Meta struct {
	ConversationID string
	ContextChunks  []string
}

// TurnStream delivers one assistant reply as a sequence of text fragments.
// The accumulated reply is persisted to the transcript exactly once, and only
// when the underlying stream ends cleanly. A mid-stream failure or an early
// Close persists nothing; the caller retries the whole turn.
type TurnStream struct {
	meta    Meta
	inner   generate.Stream
	persist func(full string) error

	buf  strings.Builder
	done bool
	err  error
}

// Meta returns the side channel. Valid immediately, before any Next call.
func (t *TurnStream) Meta() Meta { return t.meta }

// Next advances to the next fragment. When the stream is exhausted it reports
// false; Err then distinguishes clean completion from failure.
func (t *TurnStream) Next() bool {
	if t.done {
		return false
	}
	if t.inner.Next() {
		t.buf.WriteString(t.inner.Current())
		return true
	}

	t.done = true
	t.err = t.inner.Err()
	if t.err == nil {
		t.err = t.persist(t.buf.String())
	}
	return false
}

// Current returns the fragment Next advanced to.
func (t *TurnStream) Current() string { return t.inner.Current() }

// Err returns the terminal error once Next has returned false.
func (t *TurnStream) Err() error { return t.err }

// Close releases the underlying stream. Closing before exhaustion abandons
// the turn without persisting the partial reply.
func (t *TurnStream) Close() error {
	t.done = true
	return t.inner.Close()
}
