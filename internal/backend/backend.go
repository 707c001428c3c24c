package backend

import (
	"context"
	"fmt"
	"time"
)

// Backend defines the interface that all completion adapters must implement.
type Backend interface {
	// Send runs one completion request and returns the generated text.
	Send(ctx context.Context, req Request) (Response, error)

	// Close releases any resources held by the adapter.
	Close() error
}

// New creates a new backend based on the provided configuration.
// This factory function switches on cfg.Type and returns the appropriate adapter.
func New(cfg Config, pm *ProcessManager) (Backend, error) {
	switch cfg.Type {
	case "", "ollama":
		return NewOllamaAdapter(cfg)
	case "anthropic":
		return NewAnthropicAdapter(cfg)
	case "bedrock":
		return NewBedrockAdapter(context.Background(), cfg)
	case "claude":
		return NewClaudeAdapter(cfg, pm)
	case "codex":
		return NewCodexAdapter(cfg, pm)
	case "goose":
		return NewGooseAdapter(cfg, pm)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}

// callContext derives the context for a single call, bounded by timeout when
// it is positive.
func callContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
