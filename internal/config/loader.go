package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. AGENTGRAPH_BACKEND_TYPE.
const EnvPrefix = "AGENTGRAPH"

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): environment, project config,
// global config, defaults.
// Missing files are not errors; malformed files return an error.
func Load(globalPath, projectPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if globalPath != "" {
		if err := mergeConfigFile(v, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(v, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("backend.api_key", EnvPrefix+"_BACKEND_API_KEY", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Backend.APIKey = os.ExpandEnv(cfg.Backend.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GlobalPath returns the per-user config file path.
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".agentgraph", "config.yaml"), nil
}

// ProjectPath returns the project config file path relative to cwd.
func ProjectPath() string {
	return filepath.Join(".agentgraph", "config.yaml")
}

// mergeConfigFile merges the file at path into v. The format follows the
// file extension. Missing files are silently skipped.
func mergeConfigFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

var backendTypes = []string{"ollama", "anthropic", "bedrock", "claude", "goose", "codex"}

// Validate rejects configurations the runner cannot use.
func (c *Config) Validate() error {
	known := false
	for _, t := range backendTypes {
		if c.Backend.Type == t {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("invalid backend.type %q: want one of %s", c.Backend.Type, strings.Join(backendTypes, ", "))
	}

	bounds := []struct {
		key   string
		value int
	}{
		{"loop.max_iterations", c.Loop.MaxIterations},
		{"loop.max_rounds", c.Loop.MaxRounds},
		{"loop.max_workers", c.Loop.MaxWorkers},
		{"loop.concurrency", c.Loop.Concurrency},
		{"loop.preview_length", c.Loop.PreviewLength},
		{"loop.aggregate_preview_length", c.Loop.AggregatePreviewLength},
	}
	for _, b := range bounds {
		if b.value <= 0 {
			return fmt.Errorf("invalid %s %d: must be positive", b.key, b.value)
		}
	}
	return nil
}
