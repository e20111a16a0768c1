package generate

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"
)

// DefaultChatModel balances reply quality against per-turn cost.
const DefaultChatModel = openai.ChatModelGPT4oMini

// OpenAI implements TextGenerator on the OpenAI chat completions API.
type OpenAI struct {
	client *openai.Client
	model  openai.ChatModel
}

// NewOpenAI creates a generator. If model is empty, DefaultChatModel is used.
func NewOpenAI(client *openai.Client, model openai.ChatModel) *OpenAI {
	if model == "" {
		model = DefaultChatModel
	}
	return &OpenAI{client: client, model: model}
}

// GenerateStream starts a streamed chat completion. History is replayed in
// order between the system instruction and the new prompt.
func (g *OpenAI) GenerateStream(ctx context.Context, system string, history []Message, prompt string) (Stream, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openai.SystemMessage(system))
	for _, m := range history {
		switch m.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Text))
		default:
			messages = append(messages, openai.UserMessage(m.Text))
		}
	}
	messages = append(messages, openai.UserMessage(prompt))

	stream := g.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    g.model,
	})
	return &openaiStream{inner: stream}, nil
}

// GenerateOnce returns a complete response for a single prompt.
func (g *OpenAI) GenerateOnce(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: g.model,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", ErrUpstream)
	}
	return resp.Choices[0].Message.Content, nil
}

// openaiStream adapts the SSE chunk stream to the Stream contract, skipping
// chunks that carry no content delta (role prefixes, finish markers).
type openaiStream struct {
	inner   *ssestream.Stream[openai.ChatCompletionChunk]
	current string
}

func (s *openaiStream) Next() bool {
	for s.inner.Next() {
		chunk := s.inner.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			s.current = delta
			return true
		}
	}
	return false
}

func (s *openaiStream) Current() string { return s.current }

func (s *openaiStream) Err() error {
	if err := s.inner.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return nil
}

func (s *openaiStream) Close() error { return s.inner.Close() }
