package backend

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// CodexAdapter is the Codex CLI backend adapter.
// It uses the `codex exec` command to run one non-interactive turn per request.
type CodexAdapter struct {
	workDir string
	timeout time.Duration
	procMgr *ProcessManager
}

// NewCodexAdapter creates a new Codex backend adapter.
func NewCodexAdapter(cfg Config, procMgr *ProcessManager) (*CodexAdapter, error) {
	return &CodexAdapter{
		workDir: cfg.WorkDir,
		timeout: cfg.Timeout,
		procMgr: procMgr,
	}, nil
}

// Send runs `codex exec` and returns the completed turn's content.
func (c *CodexAdapter) Send(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := callContext(ctx, c.timeout)
	defer cancel()

	cmd := newCommand(ctx, "codex", c.buildArgs(req)...)
	cmd.Dir = c.workDir

	stdout, _, err := executeCommand(ctx, cmd, c.procMgr)
	if err != nil {
		return Response{}, fmt.Errorf("codex command failed: %w", err)
	}

	content, err := parseCodexEvents(stdout)
	if err != nil {
		return Response{}, fmt.Errorf("failed to parse codex events: %w", err)
	}

	return Response{Content: content, Model: req.Model}, nil
}

// buildArgs constructs the command arguments for codex CLI.
// Codex has no system prompt flag, so system turns are prepended to the prompt.
func (c *CodexAdapter) buildArgs(req Request) []string {
	system, turns := splitSystem(req.Messages)
	prompt := renderTranscript(turns)
	if system != "" {
		prompt = system + "\n\n" + prompt
	}

	args := []string{"exec", prompt, "--json"}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	return args
}

// parseCodexEvents parses newline-delimited JSON events from Codex CLI output
// and returns the content of the last TurnCompleted event.
func parseCodexEvents(data []byte) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	var content string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !gjson.Valid(line) {
			return "", fmt.Errorf("failed to parse event: %q", line)
		}

		if gjson.Get(line, "type").String() == "TurnCompleted" {
			content = gjson.Get(line, "content").String()
		}
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("error reading events: %w", err)
	}

	return content, nil
}

// Close is a no-op; Codex is invoked per request.
func (c *CodexAdapter) Close() error {
	return nil
}
