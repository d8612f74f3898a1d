// Package config loads the project-level jetty_config.yaml and the
// user-home connectors.yaml credential file described in spec §6, with
// the teacher's Viper + godotenv layering: .env files first, then a
// YAML file, then environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jettylabs/jetty-access-control/internal/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ProjectConfig is the parsed form of jetty_config.yaml.
type ProjectConfig struct {
	Version                  string                     `yaml:"version" mapstructure:"version"`
	Name                     string                     `yaml:"name" mapstructure:"name"`
	ProjectID                string                     `yaml:"project_id" mapstructure:"project_id"`
	AllowAnonymousUsageStats bool                       `yaml:"allow_anonymous_usage_statistics" mapstructure:"allow_anonymous_usage_statistics"`
	Connectors               map[string]ConnectorConfig `yaml:"connectors" mapstructure:"connectors"`
}

// ConnectorConfig is one entry of jetty_config.yaml's connectors map.
// Type selects the connector kind; Extra holds any connector-specific
// keys that don't need first-class struct fields.
type ConnectorConfig struct {
	Type  string         `yaml:"type" mapstructure:"type"`
	Extra map[string]any `yaml:",inline" mapstructure:",remain"`
}

// Default returns a minimal, empty project configuration.
func Default() *ProjectConfig {
	return &ProjectConfig{
		Version:    "1",
		Connectors: map[string]ConnectorConfig{},
	}
}

// Load reads jetty_config.yaml from path (or the project directory's
// default location when path is empty) and applies JETTY_-prefixed
// environment overrides.
func Load(path string) (*ProjectConfig, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("version", cfg.Version)
	v.SetDefault("connectors", cfg.Connectors)

	v.SetEnvPrefix("JETTY")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("jetty_config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.ConfigError("read jetty_config.yaml: %v", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.ConfigError("unmarshal jetty_config.yaml: %v", err)
	}

	if cfg.Version == "" {
		return nil, errors.ConfigError("jetty_config.yaml missing required field: version")
	}

	return cfg, nil
}

// Save writes cfg back to path as YAML, creating parent directories as
// needed (used by `jetty init`).
func (c *ProjectConfig) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("version", c.Version)
	v.Set("name", c.Name)
	v.Set("project_id", c.ProjectID)
	v.Set("allow_anonymous_usage_statistics", c.AllowAnonymousUsageStats)
	v.Set("connectors", c.Connectors)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	return v.WriteConfigAs(path)
}

// loadEnvFiles loads .env / .env.local in order of increasing
// precedence, matching the teacher's layering.
func loadEnvFiles() {
	for _, file := range []string{".env", ".env.local"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}
}
