package config

import "time"

// BackendConfig selects and configures the completion service.
type BackendConfig struct {
	Type       string        `mapstructure:"type"`     // "ollama", "anthropic", "bedrock", "claude", "goose" or "codex"
	BaseURL    string        `mapstructure:"base_url"` // Ollama server or Anthropic API base URL
	APIKey     string        `mapstructure:"api_key"`
	AWSRegion  string        `mapstructure:"aws_region"`
	AWSProfile string        `mapstructure:"aws_profile"`
	Provider   string        `mapstructure:"provider"` // Goose local provider
	MaxTokens  int64         `mapstructure:"max_tokens"`
	WorkDir    string        `mapstructure:"work_dir"`
	Timeout    time.Duration `mapstructure:"timeout"` // Per-call timeout, zero disables
}

// ModelsConfig names the models used by the coordinator and by workers that
// do not name one.
type ModelsConfig struct {
	Coordinator string `mapstructure:"coordinator"`
	Worker      string `mapstructure:"worker"`
}

// LoopConfig bounds the refinement loop and the scheduler.
type LoopConfig struct {
	MaxIterations          int `mapstructure:"max_iterations"`
	MaxRounds              int `mapstructure:"max_rounds"`
	MaxWorkers             int `mapstructure:"max_workers"`
	Concurrency            int `mapstructure:"concurrency"`
	PreviewLength          int `mapstructure:"preview_length"`
	AggregatePreviewLength int `mapstructure:"aggregate_preview_length"`
}

// RetryConfig configures backoff around backend calls.
type RetryConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	InitialInterval     time.Duration `mapstructure:"initial_interval"`
	MaxInterval         time.Duration `mapstructure:"max_interval"`
	MaxElapsedTime      time.Duration `mapstructure:"max_elapsed_time"`
	Multiplier          float64       `mapstructure:"multiplier"`
	RandomizationFactor float64       `mapstructure:"randomization_factor"`
	MaxRetries          uint64        `mapstructure:"max_retries"`
}

// BreakerConfig configures the per-model circuit breakers.
type BreakerConfig struct {
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRequests         uint32        `mapstructure:"max_requests"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level       string `mapstructure:"level"`  // debug, info, warn or error
	Format      string `mapstructure:"format"` // console or json
	Development bool   `mapstructure:"development"`
}

// Config is the top-level configuration.
type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	Models  ModelsConfig  `mapstructure:"models"`
	Loop    LoopConfig    `mapstructure:"loop"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Breaker BreakerConfig `mapstructure:"breaker"`
	Log     LogConfig     `mapstructure:"log"`
}
