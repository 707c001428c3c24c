package backend

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/gjson"
)

// ClaudeAdapter implements the Backend interface for the Claude Code CLI.
// Every request runs one subprocess; the full transcript is passed as the
// prompt so no CLI session state is carried between calls.
type ClaudeAdapter struct {
	workDir string
	timeout time.Duration
	procMgr *ProcessManager
}

// NewClaudeAdapter creates a new Claude Code backend adapter.
// The ProcessManager is optional - if nil, subprocesses won't be tracked.
func NewClaudeAdapter(cfg Config, procMgr *ProcessManager) (*ClaudeAdapter, error) {
	workDir := cfg.WorkDir
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	return &ClaudeAdapter{
		workDir: workDir,
		timeout: cfg.Timeout,
		procMgr: procMgr,
	}, nil
}

// Send runs the Claude Code CLI in print mode and returns the response text.
func (a *ClaudeAdapter) Send(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := callContext(ctx, a.timeout)
	defer cancel()

	cmd := newCommand(ctx, "claude", a.buildArgs(req)...)
	cmd.Dir = a.workDir

	stdout, stderr, err := executeCommand(ctx, cmd, a.procMgr)
	if err != nil {
		return Response{}, fmt.Errorf("claude command failed: %w", err)
	}

	content, err := parseClaudeResponse(stdout)
	if err != nil {
		return Response{}, fmt.Errorf("failed to parse claude response: %w (stderr: %s)", err, string(stderr))
	}

	return Response{Content: content, Model: req.Model}, nil
}

// Close is a no-op for Claude Code (subprocess-per-invocation model).
func (a *ClaudeAdapter) Close() error {
	return nil
}

// buildArgs constructs the command-line arguments for the claude CLI.
func (a *ClaudeAdapter) buildArgs(req Request) []string {
	system, turns := splitSystem(req.Messages)
	args := []string{"-p", renderTranscript(turns), "--output-format", "json"}

	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	if system != "" {
		args = append(args, "--system-prompt", system)
	}

	return args
}

// parseClaudeResponse extracts the text from the CLI's JSON output.
// The CLI reports "result" either as a plain string or as an object with a
// content block array; both shapes are accepted.
func parseClaudeResponse(data []byte) (string, error) {
	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("invalid JSON output")
	}

	result := gjson.GetBytes(data, "result")
	switch {
	case !result.Exists():
		return "", fmt.Errorf("missing result field")
	case result.Type == gjson.String:
		return result.String(), nil
	}

	var content string
	result.Get("content").ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == "text" {
			content += block.Get("text").String()
		}
		return true
	})
	return content, nil
}
