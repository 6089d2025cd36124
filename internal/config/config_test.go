package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Agent.MaxRounds)
	assert.Equal(t, 50, cfg.Agent.HistoryLimit)
	assert.Equal(t, "http://localhost:8000", cfg.Memory.URL)
	assert.Equal(t, 5, cfg.Memory.SearchLimit)
	assert.Empty(t, cfg.Bots)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
provider:
  api_key: sk-test
  model: test-model
agent:
  max_rounds: 3
bots:
  - id: bot-a
    name: Ada
    workspace: ~/bots/ada
    telegram:
      token: tok-a
  - id: bot-b
    name: Bea
    memory_namespace: custom-ns
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Provider.APIKey)
	assert.Equal(t, 3, cfg.Agent.MaxRounds)
	// Untouched defaults survive the file layer.
	assert.Equal(t, 4096, cfg.Agent.MaxTokens)

	require.Len(t, cfg.Bots, 2)
	botA := cfg.Bot("bot-a")
	require.NotNil(t, botA)
	assert.Equal(t, "tok-a", botA.Telegram.Token)
	assert.Equal(t, "bot-a", botA.Namespace())
	assert.True(t, filepath.IsAbs(botA.WorkspacePath()))

	botB := cfg.Bot("bot-b")
	require.NotNil(t, botB)
	assert.Nil(t, botB.Telegram)
	assert.Equal(t, "custom-ns", botB.Namespace())

	assert.Nil(t, cfg.Bot("bot-c"))
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("LUNABOT_AGENT_MAX_ROUNDS", "7")
	t.Setenv("LUNABOT_MEMORY_URL", "http://memory:9000")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Agent.MaxRounds)
	assert.Equal(t, "http://memory:9000", cfg.Memory.URL)
}

func TestLoad_EnvNestedKeys(t *testing.T) {
	t.Setenv("LUNABOT_TOOLS_EXEC_TIMEOUT", "90")
	t.Setenv("LUNABOT_TOOLS_RESTRICT_TO_WORKSPACE", "true")
	t.Setenv("LUNABOT_PROVIDER_API_KEY", "sk-test")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.Tools.Exec.Timeout)
	assert.True(t, cfg.Tools.RestrictToWorkspace)
	assert.Equal(t, "sk-test", cfg.Provider.APIKey)
}

func TestEnvKeyToPath(t *testing.T) {
	cases := map[string]string{
		"LUNABOT_AGENT_MAX_ROUNDS":            "agent.max_rounds",
		"LUNABOT_TOOLS_EXEC_TIMEOUT":          "tools.exec.timeout",
		"LUNABOT_TOOLS_EXEC_DENY_PATTERNS":    "tools.exec.deny_patterns",
		"LUNABOT_TOOLS_WEB_SEARCH_API_KEY":    "tools.web_search_api_key",
		"LUNABOT_PROVIDER_API_BASE":           "provider.api_base",
		"LUNABOT_REDIS_CACHE_TTL":             "redis.cache_ttl",
		"LUNABOT_MEMORY_SEARCH_LIMIT":         "memory.search_limit",
		"LUNABOT_TOOLS_RESTRICT_TO_WORKSPACE": "tools.restrict_to_workspace",
	}
	for in, want := range cases {
		assert.Equal(t, want, envKeyToPath(in), in)
	}
}
