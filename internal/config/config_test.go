package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolloop/toolloop/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"TOOLLOOP_CONFIG", "TOOLLOOP_PROVIDER", "TOOLLOOP_MAX_ITERATIONS", "TOOLLOOP_DISPATCH_MODE",
		"ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL", "OPENAI_API_KEY", "DATABASE_URL",
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.DefaultMaxIterations, cfg.MaxIterations)
	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, "all", cfg.DispatchMode)
	assert.ErrorIs(t, cfg.Validate(), config.ErrMissingAPIKey)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-env")
	t.Setenv("ANTHROPIC_BASE_URL", "http://proxy.local")
	t.Setenv("TOOLLOOP_MAX_ITERATIONS", "3")
	t.Setenv("TOOLLOOP_DISPATCH_MODE", "first")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.APIKey())
	assert.Equal(t, "http://proxy.local", cfg.BaseURL())
	assert.Equal(t, 3, cfg.MaxIterations)
	assert.Equal(t, "first", cfg.DispatchMode)
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "toolloop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider: openai
openai_api_key: sk-file
max_iterations: 4
tool_timeout: 5
blocked_commands:
  - curl
`), 0o600))
	t.Setenv("TOOLLOOP_CONFIG", path)
	t.Setenv("TOOLLOOP_MAX_ITERATIONS", "6")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "sk-file", cfg.APIKey())
	assert.Equal(t, 6, cfg.MaxIterations, "environment wins over the file")
	assert.Equal(t, []string{"curl"}, cfg.BlockedCommands)
	assert.Equal(t, float64(5), cfg.ToolTimeoutDuration().Seconds())
	assert.Equal(t, config.DefaultMaxTokens, cfg.MaxTokens, "unset keys keep defaults")
}

func TestLoadJSONFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "toolloop.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"anthropic_api_key":"sk-json","port":9000}`), 0o600))
	t.Setenv("TOOLLOOP_CONFIG", path)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-json", cfg.APIKey())
	assert.Equal(t, 9000, cfg.Port)
}

func TestLoadBadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))
	t.Setenv("TOOLLOOP_CONFIG", path)

	_, err := config.Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := config.Default()
	cfg.SetAPIKey("sk")
	require.NoError(t, cfg.Validate())

	cfg.DispatchMode = "sometimes"
	cfg.MaxIterations = 0
	cfg.Provider = "cohere"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispatch_mode")
	assert.Contains(t, err.Error(), "max_iterations")
	assert.Contains(t, err.Error(), "provider")
}
