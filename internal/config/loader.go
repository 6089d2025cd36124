package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/lunabot-ai/lunabot/internal/utils"
)

// DefaultPath returns the default config file path (~/.lunabot/config.yaml).
func DefaultPath() string {
	return filepath.Join(utils.DataPath(), "config.yaml")
}

// Load reads configuration from defaults, an optional YAML file, and
// LUNABOT_-prefixed environment variables, highest last.
// If path is empty the default path is used; a missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	k := koanf.New(".")

	for key, val := range defaults() {
		k.Set(key, val)
	}

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("LUNABOT_", ".", envKeyToPath), nil); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// envSections maps a variable's leading words to its config path. Longer
// prefixes match first so LUNABOT_TOOLS_EXEC_TIMEOUT lands on
// tools.exec.timeout while LUNABOT_AGENT_MAX_ROUNDS keeps its underscored
// leaf as agent.max_rounds.
var envSections = []struct {
	prefix string
	path   string
}{
	{"tools_exec_", "tools.exec."},
	{"provider_", "provider."},
	{"agent_", "agent."},
	{"memory_", "memory."},
	{"redis_", "redis."},
	{"tools_", "tools."},
}

func envKeyToPath(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, "LUNABOT_"))
	for _, section := range envSections {
		if strings.HasPrefix(key, section.prefix) {
			return section.path + strings.TrimPrefix(key, section.prefix)
		}
	}
	return strings.Replace(key, "_", ".", 1)
}

func defaults() map[string]any {
	return map[string]any{
		"agent.workspace":             filepath.Join(utils.DataPath(), "workspace"),
		"agent.max_tokens":            4096,
		"agent.temperature":           0.7,
		"agent.max_rounds":            20,
		"agent.history_limit":         50,
		"agent.completion_timeout":    120,
		"agent.tool_timeout":          60,
		"memory.url":                  "http://localhost:8000",
		"memory.timeout":              30,
		"memory.search_limit":         5,
		"redis.cache_ttl":             60,
		"tools.restrict_to_workspace": false,
		"tools.exec.timeout":          60,
	}
}
