package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
)

// contentGenerator is the part of a langchaingo model the adapter uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// OllamaAdapter sends chat requests to an Ollama server.
type OllamaAdapter struct {
	llm     contentGenerator
	timeout time.Duration
}

// NewOllamaAdapter creates an adapter for an Ollama server. An empty
// cfg.BaseURL falls back to OLLAMA_HOST or the local default.
func NewOllamaAdapter(cfg Config) (*OllamaAdapter, error) {
	var opts []ollama.Option
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}

	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	return &OllamaAdapter{llm: llm, timeout: cfg.Timeout}, nil
}

// Send runs one non-streaming chat completion.
func (o *OllamaAdapter) Send(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := callContext(ctx, o.timeout)
	defer cancel()

	resp, err := o.llm.GenerateContent(ctx, toMessageContent(req.Messages), llms.WithModel(req.Model))
	if err != nil {
		return Response{}, fmt.Errorf("ollama chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("ollama chat: empty response")
	}

	return Response{Content: resp.Choices[0].Content, Model: req.Model}, nil
}

// Close is a no-op.
func (o *OllamaAdapter) Close() error {
	return nil
}

func toMessageContent(msgs []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(msgs))
	for _, m := range msgs {
		var role schema.ChatMessageType
		switch m.Role {
		case RoleSystem:
			role = schema.ChatMessageTypeSystem
		case RoleAssistant:
			role = schema.ChatMessageTypeAI
		default:
			role = schema.ChatMessageTypeHuman
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}
