package backend

import "time"

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat transcript.
type Message struct {
	Role    Role
	Content string
}

// Request is a single completion call: a model identifier and an ordered
// transcript.
type Request struct {
	Model    string
	Messages []Message
}

// Response is the text produced by the completion service.
type Response struct {
	Content string
	Model   string
}

// Config defines the configuration for a backend.
type Config struct {
	Type       string // "ollama", "anthropic", "bedrock", "claude", "goose" or "codex"
	BaseURL    string // Ollama server URL or Anthropic API base URL
	APIKey     string
	AWSRegion  string
	AWSProfile string
	Provider   string // For Goose local LLMs (e.g., "ollama", "lmstudio", "llama.cpp")
	WorkDir    string
	MaxTokens  int64
	Timeout    time.Duration // Per-call timeout, zero disables
}

// System returns a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User returns a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant returns an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }
