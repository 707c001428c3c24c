package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Save persists the configuration to path. The format follows the file
// extension (YAML for .yaml). Creates parent directories if they don't exist.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	for key, value := range settings(cfg) {
		v.Set(key, value)
	}

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
