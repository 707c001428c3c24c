package backend

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

const defaultMaxTokens int64 = 4096

// AnthropicAdapter sends requests to the Anthropic Messages API, directly or
// through AWS Bedrock.
type AnthropicAdapter struct {
	inner     anthropic.Client
	maxTokens int64
	timeout   time.Duration
}

// NewAnthropicAdapter creates an adapter for the Anthropic API.
// cfg.APIKey defaults to the ANTHROPIC_API_KEY environment variable.
func NewAnthropicAdapter(cfg Config) (*AnthropicAdapter, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return newAnthropicAdapter(cfg, opts), nil
}

// NewBedrockAdapter creates an adapter that reaches Anthropic models through
// AWS Bedrock using the default AWS credential chain.
func NewBedrockAdapter(ctx context.Context, cfg Config) (*AnthropicAdapter, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.AWSRegion != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	if cfg.AWSProfile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
	}

	opts := []option.RequestOption{bedrock.WithLoadDefaultConfig(ctx, loadOpts...)}
	return newAnthropicAdapter(cfg, opts), nil
}

func newAnthropicAdapter(cfg Config, opts []option.RequestOption) *AnthropicAdapter {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &AnthropicAdapter{
		inner:     anthropic.NewClient(opts...),
		maxTokens: maxTokens,
		timeout:   cfg.Timeout,
	}
}

// Send calls Messages.New and concatenates the text blocks of the reply.
func (a *AnthropicAdapter) Send(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := callContext(ctx, a.timeout)
	defer cancel()

	resp, err := a.inner.Messages.New(ctx, buildMessageParams(req, a.maxTokens))
	if err != nil {
		return Response{}, fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return Response{Content: text, Model: string(resp.Model)}, nil
}

// Close is a no-op; the HTTP client needs no teardown.
func (a *AnthropicAdapter) Close() error {
	return nil
}

// buildMessageParams maps a Request onto the Messages API shape. System turns
// become the system prompt; the rest keep their order.
func buildMessageParams(req Request, maxTokens int64) anthropic.MessageNewParams {
	system, turns := splitSystem(req.Messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	for _, m := range turns {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	return params
}
