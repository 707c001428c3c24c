package backend

import (
	"testing"
)

// TestClaudeAdapter_BuildsSingleTurnCommand verifies a lone user turn is passed verbatim.
func TestClaudeAdapter_BuildsSingleTurnCommand(t *testing.T) {
	adapter, err := NewClaudeAdapter(Config{Type: "claude", WorkDir: "/tmp"}, nil)
	if err != nil {
		t.Fatalf("NewClaudeAdapter failed: %v", err)
	}

	args := adapter.buildArgs(Request{Messages: []Message{User("Hello")}})

	expected := []string{"-p", "Hello", "--output-format", "json"}
	if !sliceEqual(args, expected) {
		t.Errorf("Expected args %v, got %v", expected, args)
	}

	if containsString(args, "--resume") || containsString(args, "--session-id") {
		t.Error("Stateless requests must not carry session flags")
	}
}

// TestClaudeAdapter_IncludesModel verifies that --model flag is included
// when the request names a model.
func TestClaudeAdapter_IncludesModel(t *testing.T) {
	adapter, err := NewClaudeAdapter(Config{Type: "claude", WorkDir: "/tmp"}, nil)
	if err != nil {
		t.Fatalf("NewClaudeAdapter failed: %v", err)
	}

	args := adapter.buildArgs(Request{Model: "claude-opus-4", Messages: []Message{User("Test")}})

	if got := flagValue(args, "--model"); got != "claude-opus-4" {
		t.Errorf("Expected model 'claude-opus-4', got '%s'", got)
	}
}

// TestClaudeAdapter_SystemTurnBecomesSystemPrompt verifies that system turns
// are moved to --system-prompt and left out of the prompt text.
func TestClaudeAdapter_SystemTurnBecomesSystemPrompt(t *testing.T) {
	adapter, err := NewClaudeAdapter(Config{Type: "claude", WorkDir: "/tmp"}, nil)
	if err != nil {
		t.Fatalf("NewClaudeAdapter failed: %v", err)
	}

	args := adapter.buildArgs(Request{Messages: []Message{
		System("You are a helpful assistant"),
		User("Test"),
	}})

	if got := flagValue(args, "--system-prompt"); got != "You are a helpful assistant" {
		t.Errorf("Expected system prompt 'You are a helpful assistant', got '%s'", got)
	}
	if got := flagValue(args, "-p"); got != "Test" {
		t.Errorf("Expected prompt 'Test', got '%s'", got)
	}
}

// TestClaudeAdapter_MultiTurnTranscript verifies repair-style transcripts are flattened.
func TestClaudeAdapter_MultiTurnTranscript(t *testing.T) {
	adapter, err := NewClaudeAdapter(Config{Type: "claude", WorkDir: "/tmp"}, nil)
	if err != nil {
		t.Fatalf("NewClaudeAdapter failed: %v", err)
	}

	args := adapter.buildArgs(Request{Messages: []Message{
		User("give json"),
		Assistant("not json"),
		User("fix it"),
	}})

	want := "User: give json\n\nAssistant: not json\n\nUser: fix it"
	if got := flagValue(args, "-p"); got != want {
		t.Errorf("Expected transcript %q, got %q", want, got)
	}
}

// TestClaudeAdapter_ParsesJSONResponse verifies that parseClaudeResponse
// correctly extracts content from Claude Code JSON output.
func TestClaudeAdapter_ParsesJSONResponse(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantContent string
		wantError   bool
	}{
		{
			name:        "string result",
			input:       `{"type": "result", "session_id": "abc", "result": "Hello world"}`,
			wantContent: "Hello world",
		},
		{
			name:        "content blocks",
			input:       `{"session_id": "test-uuid-456", "result": {"content": [{"type": "text", "text": "Part 1"}, {"type": "text", "text": "Part 2"}]}}`,
			wantContent: "Part 1Part 2",
		},
		{
			name:        "mixed content types",
			input:       `{"result": {"content": [{"type": "text", "text": "Text"}, {"type": "image", "data": "..."}]}}`,
			wantContent: "Text",
		},
		{
			name:      "missing result",
			input:     `{"session_id": "abc"}`,
			wantError: true,
		},
		{
			name:      "invalid JSON",
			input:     `not json`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, err := parseClaudeResponse([]byte(tt.input))
			if tt.wantError {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if content != tt.wantContent {
				t.Errorf("Expected content %q, got %q", tt.wantContent, content)
			}
		})
	}
}

func sliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsString(slice []string, s string) bool {
	for _, item := range slice {
		if item == s {
			return true
		}
	}
	return false
}

// flagValue returns the argument following flag, or "" when absent.
func flagValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}
