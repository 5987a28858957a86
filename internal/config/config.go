// Package config loads tool configuration from an optional YAML file with
// environment-variable overrides (DUNE_ prefix).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full tool configuration.
type Config struct {
	// APIKey authenticates against the Dune API. Env: DUNE_API_KEY.
	APIKey string `mapstructure:"api_key"`
	// APIBaseURL overrides the Dune API endpoint, mainly for tests.
	APIBaseURL string `mapstructure:"api_base_url"`
	// RegistryPath is the query registry file (JSON or YAML).
	RegistryPath string `mapstructure:"registry_path"`
	// QueryRoot is the directory SQL paths in the registry are relative to.
	QueryRoot string `mapstructure:"query_root"`
	// TimeoutSeconds bounds each remote execution.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// ReportURL is an optional artifact destination (file://, gs://, s3://).
	// Empty disables artifact publishing.
	ReportURL string `mapstructure:"report_url"`

	Log LogConfig `mapstructure:"log"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

// Load reads configuration, with defaults overridden first by the config
// file (if given) and then by DUNE_-prefixed environment variables.
func Load(file string) (*Config, error) {
	v := viper.New()

	v.SetDefault("api_key", "")
	v.SetDefault("api_base_url", "")
	v.SetDefault("registry_path", "queries/registry.json")
	v.SetDefault("query_root", ".")
	v.SetDefault("timeout_seconds", 300)
	v.SetDefault("report_url", "")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("DUNE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
