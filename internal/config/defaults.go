package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Type:      "ollama",
			AWSRegion: "us-east-1",
			MaxTokens: 4096,
		},
		Models: ModelsConfig{
			Coordinator: "gpt-oss",
			Worker:      "gpt-oss",
		},
		Loop: LoopConfig{
			MaxIterations:          5,
			MaxRounds:              50,
			MaxWorkers:             5,
			Concurrency:            4,
			PreviewLength:          300,
			AggregatePreviewLength: 500,
		},
		Retry: RetryConfig{
			Enabled:             true,
			InitialInterval:     100 * time.Millisecond,
			MaxInterval:         10 * time.Second,
			MaxElapsedTime:      2 * time.Minute,
			Multiplier:          2.0,
			RandomizationFactor: 0.5,
			MaxRetries:          2,
		},
		Breaker: BreakerConfig{
			ConsecutiveFailures: 5,
			Timeout:             30 * time.Second,
			MaxRequests:         3,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// setDefaults registers every key with viper so env overrides apply to it.
func setDefaults(v *viper.Viper) {
	for key, value := range settings(Default()) {
		v.SetDefault(key, value)
	}
}

// settings flattens cfg into viper keys. Durations are written as strings so
// saved files stay readable.
func settings(cfg *Config) map[string]any {
	return map[string]any{
		"backend.type":        cfg.Backend.Type,
		"backend.base_url":    cfg.Backend.BaseURL,
		"backend.api_key":     cfg.Backend.APIKey,
		"backend.aws_region":  cfg.Backend.AWSRegion,
		"backend.aws_profile": cfg.Backend.AWSProfile,
		"backend.provider":    cfg.Backend.Provider,
		"backend.max_tokens":  cfg.Backend.MaxTokens,
		"backend.work_dir":    cfg.Backend.WorkDir,
		"backend.timeout":     cfg.Backend.Timeout.String(),

		"models.coordinator": cfg.Models.Coordinator,
		"models.worker":      cfg.Models.Worker,

		"loop.max_iterations":           cfg.Loop.MaxIterations,
		"loop.max_rounds":               cfg.Loop.MaxRounds,
		"loop.max_workers":              cfg.Loop.MaxWorkers,
		"loop.concurrency":              cfg.Loop.Concurrency,
		"loop.preview_length":           cfg.Loop.PreviewLength,
		"loop.aggregate_preview_length": cfg.Loop.AggregatePreviewLength,

		"retry.enabled":              cfg.Retry.Enabled,
		"retry.initial_interval":     cfg.Retry.InitialInterval.String(),
		"retry.max_interval":         cfg.Retry.MaxInterval.String(),
		"retry.max_elapsed_time":     cfg.Retry.MaxElapsedTime.String(),
		"retry.multiplier":           cfg.Retry.Multiplier,
		"retry.randomization_factor": cfg.Retry.RandomizationFactor,
		"retry.max_retries":          cfg.Retry.MaxRetries,

		"breaker.consecutive_failures": cfg.Breaker.ConsecutiveFailures,
		"breaker.timeout":              cfg.Breaker.Timeout.String(),
		"breaker.max_requests":         cfg.Breaker.MaxRequests,

		"log.level":       cfg.Log.Level,
		"log.format":      cfg.Log.Format,
		"log.development": cfg.Log.Development,
	}
}
