// Package structured turns free-form completions into parsed JSON values.
package structured

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/aristath/agentgraph/internal/backend"
	"github.com/aristath/agentgraph/internal/errs"
	"github.com/aristath/agentgraph/internal/util"
)

// RepairInstruction is the user turn appended when the first reply does not parse.
const RepairInstruction = "That was not valid JSON. Please fix it and output ONLY valid JSON, no other text."

// rawPreviewLength bounds raw responses quoted in log lines.
const rawPreviewLength = 200

// Client requests JSON from a completion backend, repairing once on bad output.
type Client struct {
	backend backend.Backend
	logger  *zap.Logger
}

// NewClient creates a Client over b.
func NewClient(b backend.Backend, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{backend: b, logger: logger}
}

// Complete runs a plain completion and returns its text.
func (c *Client) Complete(ctx context.Context, model string, messages []backend.Message) (string, error) {
	resp, err := c.backend.Send(ctx, backend.Request{Model: model, Messages: messages})
	if err != nil {
		return "", errs.New(errs.KindTransport, "complete", err)
	}
	return resp.Content, nil
}

// Call sends messages to model and parses the reply as JSON. If the reply does
// not parse, the transcript plus the invalid reply and RepairInstruction is
// sent exactly once more. A second parse failure is returned as a
// KindMalformedOutput error.
func (c *Client) Call(ctx context.Context, model string, messages []backend.Message) (gjson.Result, error) {
	first, err := c.Complete(ctx, model, messages)
	if err != nil {
		return gjson.Result{}, err
	}

	if result, ok := Parse(first); ok {
		return result, nil
	}

	c.logger.Warn("JSON parse failed on first attempt, requesting repair",
		zap.String("model", model))
	c.logger.Debug("raw response", zap.String("content", util.Preview(first, rawPreviewLength)))

	repair := make([]backend.Message, 0, len(messages)+2)
	repair = append(repair, messages...)
	repair = append(repair, backend.Assistant(first), backend.User(RepairInstruction))

	second, err := c.Complete(ctx, model, repair)
	if err != nil {
		return gjson.Result{}, err
	}

	result, ok := Parse(second)
	if !ok {
		c.logger.Error("JSON parse failed on retry",
			zap.String("model", model),
			zap.String("content", util.Preview(second, rawPreviewLength)))
		return gjson.Result{}, errs.Errorf(errs.KindMalformedOutput, "structured call",
			"no valid JSON after repair attempt")
	}
	return result, nil
}

// Parse strips a leading code fence from text and parses the remainder.
func Parse(text string) (gjson.Result, bool) {
	content := StripFences(text)
	if !gjson.Valid(content) {
		return gjson.Result{}, false
	}
	return gjson.Parse(content), true
}

// StripFences trims text and, when it opens with a ```json or ``` fence,
// returns the content between that fence and the next one.
func StripFences(text string) string {
	content := strings.TrimSpace(text)

	var opener string
	switch {
	case strings.HasPrefix(content, "```json"):
		opener = "```json"
	case strings.HasPrefix(content, "```"):
		opener = "```"
	default:
		return content
	}

	body := content[len(opener):]
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}
