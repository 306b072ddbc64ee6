// Package config loads the application configuration: defaults first, then
// an optional YAML file, then environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/promptpilot/ai-router/internal/features"
	"github.com/promptpilot/ai-router/internal/middleware"
	"github.com/promptpilot/ai-router/internal/server"
)

// Config represents the complete application configuration.
type Config struct {
	Server      server.Config      `yaml:"server"`
	Providers   ProvidersConfig    `yaml:"providers"`
	Registry    RegistryConfig     `yaml:"registry"`
	Features    features.Config    `yaml:"features"`
	Execution   ExecutionConfig    `yaml:"execution"`
	DecisionLog DecisionLogConfig  `yaml:"decision_log"`
	Logging     LoggingConfig      `yaml:"logging"`
}

// ProviderConfig configures one upstream provider adapter.
type ProviderConfig struct {
	Enabled      bool   `yaml:"enabled"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

// ProvidersConfig holds all provider adapters.
type ProvidersConfig struct {
	OpenAI     ProviderConfig `yaml:"openai"`
	Anthropic  ProviderConfig `yaml:"anthropic"`
	OpenRouter ProviderConfig `yaml:"openrouter"`
}

// RegistryConfig points at the model catalog. An empty path means the
// built-in catalog; Watch reloads the file on change.
type RegistryConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// ExecutionConfig tunes the orchestrator.
type ExecutionConfig struct {
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// DecisionLogConfig configures the append-only decision log. An empty path
// keeps entries in memory only.
type DecisionLogConfig struct {
	Path       string `yaml:"path"`
	BufferSize int    `yaml:"buffer_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	Output string `yaml:"output"` // "stdout", "stderr", or file path
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	config.setDefaults()

	if configPath != "" {
		if err := config.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	config.loadFromEnv()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func (c *Config) setDefaults() {
	c.Server = server.Config{
		Port:            "8080",
		ReadTimeout:     30 * time.Second,
		MaxHeaderBytes:  1 << 20, // 1MB
		InspectCacheTTL: time.Minute,
		Validation: middleware.ValidationConfig{
			Enabled:  false,
			SpecPath: "docs/openapi.yaml",
		},
	}
	c.Providers = ProvidersConfig{
		OpenAI:     ProviderConfig{Enabled: true},
		Anthropic:  ProviderConfig{Enabled: true},
		OpenRouter: ProviderConfig{Enabled: false},
	}
	c.Features = features.DefaultConfig()
	c.Execution = ExecutionConfig{AttemptTimeout: 120 * time.Second}
	c.DecisionLog = DecisionLogConfig{Path: "", BufferSize: 1000}
	c.Logging = LoggingConfig{Level: "info", Format: "json", Output: "stdout"}
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

func (c *Config) loadFromEnv() {
	if port := os.Getenv("AI_ROUTER_PORT"); port != "" {
		c.Server.Port = port
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Providers.OpenAI.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.Providers.Anthropic.APIKey = key
	}
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		c.Providers.OpenRouter.APIKey = key
		c.Providers.OpenRouter.Enabled = true
	}
	if level := os.Getenv("AI_ROUTER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("AI_ROUTER_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
	if path := os.Getenv("AI_ROUTER_DECISION_LOG"); path != "" {
		c.DecisionLog.Path = path
	}
	if path := os.Getenv("AI_ROUTER_MODELS"); path != "" {
		c.Registry.Path = path
	}
}

func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if len(c.EnabledProviders()) == 0 {
		return fmt.Errorf("at least one provider must be configured with an API key")
	}
	return nil
}

// EnabledProviders returns the identifiers of providers that are enabled and
// carry a credential, in fixed declaration order.
func (c *Config) EnabledProviders() []string {
	var out []string
	if c.Providers.OpenAI.Enabled && c.Providers.OpenAI.APIKey != "" {
		out = append(out, "openai")
	}
	if c.Providers.Anthropic.Enabled && c.Providers.Anthropic.APIKey != "" {
		out = append(out, "anthropic")
	}
	if c.Providers.OpenRouter.Enabled && c.Providers.OpenRouter.APIKey != "" {
		out = append(out, "openrouter")
	}
	return out
}
