package config

import (
	"github.com/aristath/agentgraph/internal/backend"
	"github.com/aristath/agentgraph/internal/coordinator"
	"github.com/aristath/agentgraph/internal/logging"
	"github.com/aristath/agentgraph/internal/orchestrator"
	"github.com/aristath/agentgraph/internal/scheduler"
)

// BackendConfig returns the adapter configuration.
func (c *Config) BackendConfig() backend.Config {
	return backend.Config{
		Type:       c.Backend.Type,
		BaseURL:    c.Backend.BaseURL,
		APIKey:     c.Backend.APIKey,
		AWSRegion:  c.Backend.AWSRegion,
		AWSProfile: c.Backend.AWSProfile,
		Provider:   c.Backend.Provider,
		WorkDir:    c.Backend.WorkDir,
		MaxTokens:  c.Backend.MaxTokens,
		Timeout:    c.Backend.Timeout,
	}
}

// RetryConfig returns the backoff settings for backend.NewResilient.
func (c *Config) RetryConfig() backend.RetryConfig {
	return backend.RetryConfig{
		InitialInterval:     c.Retry.InitialInterval,
		MaxInterval:         c.Retry.MaxInterval,
		MaxElapsedTime:      c.Retry.MaxElapsedTime,
		Multiplier:          c.Retry.Multiplier,
		RandomizationFactor: c.Retry.RandomizationFactor,
		MaxRetries:          c.Retry.MaxRetries,
	}
}

// BreakerConfig returns the circuit breaker settings for backend.NewResilient.
func (c *Config) BreakerConfig() backend.BreakerConfig {
	return backend.BreakerConfig{
		ConsecutiveFailures: c.Breaker.ConsecutiveFailures,
		Timeout:             c.Breaker.Timeout,
		MaxRequests:         c.Breaker.MaxRequests,
	}
}

// RunnerConfig returns the refinement loop configuration.
func (c *Config) RunnerConfig() orchestrator.Config {
	return orchestrator.Config{
		MaxIterations:    c.Loop.MaxIterations,
		CoordinatorModel: c.Models.Coordinator,
		WorkerModel:      c.Models.Worker,
		Scheduler: scheduler.Config{
			MaxRounds:     c.Loop.MaxRounds,
			Concurrency:   c.Loop.Concurrency,
			PreviewLength: c.Loop.PreviewLength,
		},
		Coordinator: coordinator.Config{
			MaxWorkers:             c.Loop.MaxWorkers,
			AggregatePreviewLength: c.Loop.AggregatePreviewLength,
		},
	}
}

// LoggingConfig returns the logger configuration.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:       c.Log.Level,
		Format:      c.Log.Format,
		Development: c.Log.Development,
	}
}
