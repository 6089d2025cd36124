package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lunabot-ai/lunabot/internal/config"
	"github.com/lunabot-ai/lunabot/internal/memory"
	"github.com/lunabot-ai/lunabot/internal/providers"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// makeProvider creates the completion provider, falling back to common
// environment variables when no key is configured.
func makeProvider(cfg *config.Config) *providers.Provider {
	apiKey := cfg.Provider.APIKey
	apiBase := cfg.Provider.APIBase

	if apiKey == "" {
		for _, envKey := range []string{"OPENROUTER_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY"} {
			if v := os.Getenv(envKey); v != "" {
				apiKey = v
				break
			}
		}
	}
	if apiBase == "" && strings.HasPrefix(apiKey, "sk-or-") {
		apiBase = "https://openrouter.ai/api/v1"
	}

	model := cfg.Provider.Model
	if model == "" {
		model = cfg.Agent.Model
	}
	return providers.NewProvider(apiKey, apiBase, model)
}

// makeMemoryStore creates the shared memory store, or nil when no memory
// service is configured.
func makeMemoryStore(cfg *config.Config) memory.Store {
	if cfg.Memory.URL == "" {
		return nil
	}
	client := memory.NewClient(cfg.Memory.URL, cfg.Memory.APIKey, time.Duration(cfg.Memory.Timeout)*time.Second)
	return memory.NewCachedStore(client, memory.CacheConfig{
		URL:      cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      time.Duration(cfg.Redis.CacheTTL) * time.Second,
	})
}
