// Package generate abstracts the language model behind a streaming text
// generation contract.
package generate

import (
	"context"
	"errors"
)

// ErrUpstream wraps failures of the generation backend.
var ErrUpstream = errors.New("generation upstream failure")

// Message is one prior exchange replayed to the model as history.
type Message struct {
	Role string // "user" or "assistant"
	Text string
}

// Stream is a pull iterator over generated text fragments, in the idiom of
// database cursors: Next advances, Current reads, Err distinguishes a clean
// end from a mid-stream failure.
type Stream interface {
	// Next reports whether another fragment is available, advancing to it.
	Next() bool
	// Current returns the fragment Next advanced to.
	Current() string
	// Err returns the terminal error after Next returns false, or nil if the
	// stream ended cleanly.
	Err() error
	// Close releases the underlying connection. Safe to call at any point.
	Close() error
}

// TextGenerator produces model output for the conversation path.
type TextGenerator interface {
	// GenerateStream starts a streamed reply to prompt, conditioned on the
	// system instruction and the prior history.
	GenerateStream(ctx context.Context, system string, history []Message, prompt string) (Stream, error)
	// GenerateOnce returns a complete single response for side tasks such as
	// conversation titles and health summaries.
	GenerateOnce(ctx context.Context, prompt string) (string, error)
}
