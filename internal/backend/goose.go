package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// GooseAdapter is a Backend implementation for the Goose CLI.
// Goose supports local LLM providers (Ollama, LM Studio, llama.cpp) via --provider and --model flags.
type GooseAdapter struct {
	workDir  string
	provider string
	timeout  time.Duration
	procMgr  *ProcessManager
}

// NewGooseAdapter creates a new Goose adapter.
func NewGooseAdapter(cfg Config, procMgr *ProcessManager) (*GooseAdapter, error) {
	return &GooseAdapter{
		workDir:  cfg.WorkDir,
		provider: cfg.Provider,
		timeout:  cfg.Timeout,
		procMgr:  procMgr,
	}, nil
}

// Send runs one Goose invocation without a persisted session.
func (g *GooseAdapter) Send(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := callContext(ctx, g.timeout)
	defer cancel()

	cmd := newCommand(ctx, "goose", g.buildArgs(req)...)
	cmd.Dir = g.workDir

	stdout, stderr, err := executeCommand(ctx, cmd, g.procMgr)
	if err != nil {
		return Response{}, fmt.Errorf("goose command failed: %w", err)
	}

	content, parseErr := parseGooseResponse(stdout)
	if parseErr != nil {
		// Older Goose builds ignore --output-format json; fall back to plain text
		content = strings.TrimSpace(string(stdout))
		if content == "" && len(stderr) > 0 {
			return Response{}, fmt.Errorf("goose produced no output (stderr: %s)", string(stderr))
		}
	}

	return Response{Content: content, Model: req.Model}, nil
}

// buildArgs constructs the command-line arguments for the Goose CLI.
func (g *GooseAdapter) buildArgs(req Request) []string {
	system, turns := splitSystem(req.Messages)
	args := []string{"run", "--no-session", "--text", renderTranscript(turns), "--output-format", "json"}

	if g.provider != "" {
		args = append(args, "--provider", g.provider)
	}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	if system != "" {
		args = append(args, "--system", system)
	}

	return args
}

// parseGooseResponse parses the JSON response from Goose CLI.
// Tries parsing as a single JSON object first.
// If that fails, tries newline-delimited JSON (stream-json format).
func parseGooseResponse(data []byte) (string, error) {
	trimmed := strings.TrimSpace(string(data))
	if gjson.Valid(trimmed) {
		if content := gjson.Get(trimmed, "content"); content.Exists() {
			return content.String(), nil
		}
	}

	var contents []string
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !gjson.Valid(line) {
			continue
		}
		if content := gjson.Get(line, "content").String(); content != "" {
			contents = append(contents, content)
		}
	}

	if len(contents) > 0 {
		return strings.Join(contents, "\n"), nil
	}

	return "", fmt.Errorf("failed to parse Goose JSON response")
}

// Close is a no-op; each invocation is a separate subprocess.
func (g *GooseAdapter) Close() error {
	return nil
}
