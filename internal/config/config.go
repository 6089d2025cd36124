// Package config handles configuration loading and schema definition.
package config

import (
	"github.com/lunabot-ai/lunabot/internal/utils"
)

// Config is the top-level lunabot configuration, constructed once at process
// start and passed by reference into the runtime.
type Config struct {
	Provider ProviderConfig `koanf:"provider"`
	Agent    AgentConfig    `koanf:"agent"`
	Memory   MemoryConfig   `koanf:"memory"`
	Redis    RedisConfig    `koanf:"redis"`
	Tools    ToolsConfig    `koanf:"tools"`
	Bots     []BotConfig    `koanf:"bots"`
}

// ProviderConfig holds completion-service connection settings.
type ProviderConfig struct {
	APIKey  string `koanf:"api_key"`
	APIBase string `koanf:"api_base"`
	Model   string `koanf:"model"`
}

// AgentConfig holds agent loop defaults shared by all bots.
type AgentConfig struct {
	Workspace         string   `koanf:"workspace"`
	Model             string   `koanf:"model"`
	MaxTokens         int      `koanf:"max_tokens"`
	Temperature       float64  `koanf:"temperature"`
	MaxRounds         int      `koanf:"max_rounds"`
	HistoryLimit      int      `koanf:"history_limit"`
	CompletionTimeout int      `koanf:"completion_timeout"` // seconds
	ToolTimeout       int      `koanf:"tool_timeout"`       // seconds
	AlwaysSkills      []string `koanf:"always_skills"`
}

// MemoryConfig holds external memory service settings.
type MemoryConfig struct {
	URL         string `koanf:"url"`
	APIKey      string `koanf:"api_key"`
	Timeout     int    `koanf:"timeout"` // seconds
	SearchLimit int    `koanf:"search_limit"`
}

// RedisConfig holds the optional memory search cache settings.
type RedisConfig struct {
	URL      string `koanf:"url"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	CacheTTL int    `koanf:"cache_ttl"` // seconds
}

// ToolsConfig holds tool execution settings.
type ToolsConfig struct {
	RestrictToWorkspace bool       `koanf:"restrict_to_workspace"`
	WebSearchAPIKey     string     `koanf:"web_search_api_key"`
	Exec                ExecConfig `koanf:"exec"`
}

// ExecConfig holds shell execution settings.
type ExecConfig struct {
	Timeout       int      `koanf:"timeout"` // seconds
	DenyPatterns  []string `koanf:"deny_patterns"`
	AllowPatterns []string `koanf:"allow_patterns"`
}

// BotConfig configures a single bot instance. Workspace, session store and
// memory namespace are private to the bot.
type BotConfig struct {
	ID              string          `koanf:"id"`
	Name            string          `koanf:"name"`
	Description     string          `koanf:"description"`
	Workspace       string          `koanf:"workspace"`
	Model           string          `koanf:"model"`
	Temperature     float64         `koanf:"temperature"`
	MaxTokens       int             `koanf:"max_tokens"`
	MemoryNamespace string          `koanf:"memory_namespace"`
	Skills          []string        `koanf:"skills"`
	Telegram        *TelegramConfig `koanf:"telegram"`
	WhatsApp        *WhatsAppConfig `koanf:"whatsapp"`
}

// TelegramConfig holds Telegram bot credentials.
type TelegramConfig struct {
	Token     string   `koanf:"token"`
	AllowFrom []string `koanf:"allow_from"`
}

// WhatsAppConfig holds WhatsApp bridge settings.
type WhatsAppConfig struct {
	BridgeURL   string   `koanf:"bridge_url"`
	BridgeToken string   `koanf:"bridge_token"`
	AllowFrom   []string `koanf:"allow_from"`
}

// WorkspacePath returns the bot's expanded workspace path.
func (b *BotConfig) WorkspacePath() string {
	if b.Workspace == "" {
		return ""
	}
	return utils.ExpandPath(b.Workspace)
}

// Namespace returns the bot's memory namespace, defaulting to its id.
func (b *BotConfig) Namespace() string {
	if b.MemoryNamespace != "" {
		return b.MemoryNamespace
	}
	return b.ID
}

// Bot returns the bot config with the given id, or nil.
func (c *Config) Bot(id string) *BotConfig {
	for i := range c.Bots {
		if c.Bots[i].ID == id {
			return &c.Bots[i]
		}
	}
	return nil
}
