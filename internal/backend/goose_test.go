package backend

import (
	"testing"
)

// TestGooseAdapter_BuildArgs verifies provider, model and system prompt flags.
func TestGooseAdapter_BuildArgs(t *testing.T) {
	adapter, err := NewGooseAdapter(Config{Type: "goose", Provider: "ollama"}, nil)
	if err != nil {
		t.Fatalf("NewGooseAdapter failed: %v", err)
	}

	args := adapter.buildArgs(Request{
		Model:    "qwen2.5-coder:32b",
		Messages: []Message{System("You are terse."), User("Summarize X")},
	})

	if args[0] != "run" {
		t.Errorf("Expected first arg 'run', got %q", args[0])
	}
	if got := flagValue(args, "--text"); got != "Summarize X" {
		t.Errorf("Expected --text 'Summarize X', got %q", got)
	}
	if got := flagValue(args, "--provider"); got != "ollama" {
		t.Errorf("Expected --provider 'ollama', got %q", got)
	}
	if got := flagValue(args, "--model"); got != "qwen2.5-coder:32b" {
		t.Errorf("Expected --model, got %q", got)
	}
	if got := flagValue(args, "--system"); got != "You are terse." {
		t.Errorf("Expected --system, got %q", got)
	}
	if !containsString(args, "--no-session") {
		t.Error("Expected --no-session flag")
	}
}

// TestGooseAdapter_OmitsEmptyFlags verifies optional flags are skipped when unset.
func TestGooseAdapter_OmitsEmptyFlags(t *testing.T) {
	adapter, err := NewGooseAdapter(Config{Type: "goose"}, nil)
	if err != nil {
		t.Fatalf("NewGooseAdapter failed: %v", err)
	}

	args := adapter.buildArgs(Request{Messages: []Message{User("hi")}})

	for _, flag := range []string{"--provider", "--model", "--system"} {
		if containsString(args, flag) {
			t.Errorf("Did not expect %s in %v", flag, args)
		}
	}
}

// TestParseGooseResponse covers single-object, NDJSON and invalid output.
func TestParseGooseResponse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      string
		wantError bool
	}{
		{name: "single object", input: `{"content": "Hello"}`, want: "Hello"},
		{name: "ndjson", input: "{\"content\": \"a\"}\n{\"other\": 1}\n{\"content\": \"b\"}\n", want: "a\nb"},
		{name: "plain text", input: "just text", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseGooseResponse([]byte(tt.input))
			if tt.wantError {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
