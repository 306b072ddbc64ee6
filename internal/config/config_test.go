package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY", "AI_ROUTER_PORT", "AI_ROUTER_LOG_LEVEL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 120*time.Second, cfg.Execution.AttemptTimeout)
	assert.Equal(t, []string{"openai"}, cfg.EnabledProviders())
}

func TestLoadConfig_NoProvidersFails(t *testing.T) {
	clearProviderEnv(t)

	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one provider")
}

func TestLoadConfig_FileAndEnvOverride(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("AI_ROUTER_PORT", "9999")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "3000"
logging:
  level: debug
providers:
  openai:
    enabled: false
decision_log:
  path: /tmp/decisions.jsonl
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	// Env wins over file.
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/tmp/decisions.jsonl", cfg.DecisionLog.Path)
	assert.Equal(t, []string{"anthropic"}, cfg.EnabledProviders())
}

func TestLoadConfig_InvalidLogLevel(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("AI_ROUTER_LOG_LEVEL", "loud")

	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestLoadConfig_OpenRouterEnabledByKey(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "sk-or")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, []string{"openrouter"}, cfg.EnabledProviders())
}
