// Package multibot runs several isolated bots in one process. Every bot gets
// its own bus, session store, workspace, tool registry and memory namespace;
// only the completion provider and the memory service connection are shared.
package multibot

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/lunabot-ai/lunabot/internal/agent"
	"github.com/lunabot-ai/lunabot/internal/bus"
	"github.com/lunabot-ai/lunabot/internal/channels"
	"github.com/lunabot-ai/lunabot/internal/config"
	"github.com/lunabot-ai/lunabot/internal/lane"
	"github.com/lunabot-ai/lunabot/internal/memory"
	"github.com/lunabot-ai/lunabot/internal/providers"
	"github.com/lunabot-ai/lunabot/internal/session"
	"github.com/lunabot-ai/lunabot/internal/tools"
	"github.com/lunabot-ai/lunabot/internal/utils"
)

// Instance is one bot's complete runtime.
type Instance struct {
	Bot       config.BotConfig
	Workspace string

	Bus      *bus.MessageBus
	Sessions *session.Manager
	Loop     *agent.Loop
	Lanes    *lane.Manager
	Channels *channels.Manager
	Tools    *tools.Registry

	cancel context.CancelFunc
}

// NewInstance builds a bot's runtime from its config. store may be nil when
// no memory service is configured.
func NewInstance(cfg *config.Config, bot config.BotConfig, provider providers.LLMProvider, store memory.Store) (*Instance, error) {
	if bot.ID == "" {
		return nil, fmt.Errorf("bot id required")
	}

	workspace := bot.WorkspacePath()
	if workspace == "" {
		workspace = filepath.Join(utils.DataPath(), "bots", bot.ID)
	}
	if err := seedWorkspace(workspace, bot); err != nil {
		return nil, fmt.Errorf("seed workspace for %s: %w", bot.ID, err)
	}

	msgBus := bus.NewMessageBus()
	sessions := session.NewManager(workspace, 0)
	skills := agent.NewSkillsLoader(workspace, bot.Skills)

	var searcher memory.Searcher
	if store != nil {
		searcher = store
	}
	builder := agent.NewContextBuilder(workspace, skills, searcher, bot.Namespace(), cfg.Memory.SearchLimit)

	inst := &Instance{
		Bot:       bot,
		Workspace: workspace,
		Bus:       msgBus,
		Sessions:  sessions,
	}

	model := bot.Model
	if model == "" {
		model = cfg.Agent.Model
	}
	maxTokens := bot.MaxTokens
	if maxTokens == 0 {
		maxTokens = cfg.Agent.MaxTokens
	}
	temperature := bot.Temperature
	if temperature == 0 {
		temperature = cfg.Agent.Temperature
	}

	inst.Tools = inst.buildRegistry(cfg, bot, provider, store, workspace, model)
	inst.Loop = agent.NewLoop(msgBus, provider, builder, sessions, inst.Tools, agent.LoopConfig{
		Model:             model,
		MaxTokens:         maxTokens,
		Temperature:       temperature,
		MaxRounds:         cfg.Agent.MaxRounds,
		HistoryLimit:      cfg.Agent.HistoryLimit,
		CompletionTimeout: time.Duration(cfg.Agent.CompletionTimeout) * time.Second,
	})

	inst.Lanes = lane.NewManager(lane.ManagerConfig{
		Handler: inst.handleInbound,
	})

	inst.Channels = channels.NewManager(msgBus)
	if bot.Telegram != nil {
		inst.Channels.Register(channels.NewTelegramChannel(bot.ID, *bot.Telegram, msgBus))
	}
	if bot.WhatsApp != nil {
		inst.Channels.Register(channels.NewWhatsAppChannel(bot.ID, *bot.WhatsApp, msgBus))
	}

	return inst, nil
}

// buildRegistry assembles the bot's capability set.
func (i *Instance) buildRegistry(cfg *config.Config, bot config.BotConfig, provider providers.LLMProvider, store memory.Store, workspace, model string) *tools.Registry {
	registry := tools.NewRegistry(time.Duration(cfg.Agent.ToolTimeout) * time.Second)

	allowedDir := ""
	if cfg.Tools.RestrictToWorkspace {
		allowedDir = workspace
	}
	registry.Register(&tools.ReadFileTool{AllowedDir: allowedDir})
	registry.Register(&tools.WriteFileTool{AllowedDir: allowedDir})
	registry.Register(&tools.EditFileTool{AllowedDir: allowedDir})
	registry.Register(&tools.ListDirTool{AllowedDir: allowedDir})

	exec := tools.NewExecTool(workspace)
	if cfg.Tools.Exec.Timeout > 0 {
		exec.Timeout = time.Duration(cfg.Tools.Exec.Timeout) * time.Second
	}
	if len(cfg.Tools.Exec.DenyPatterns) > 0 {
		exec.DenyPatterns = cfg.Tools.Exec.DenyPatterns
	}
	exec.AllowPatterns = cfg.Tools.Exec.AllowPatterns
	exec.RestrictToWorkspace = cfg.Tools.RestrictToWorkspace
	registry.Register(exec)

	if cfg.Tools.WebSearchAPIKey != "" {
		registry.Register(&tools.WebSearchTool{APIKey: cfg.Tools.WebSearchAPIKey})
	}
	registry.Register(&tools.WebFetchTool{})

	registry.Register(&tools.MessageTool{SendCallback: func(msg bus.OutboundMessage) error {
		msg.BotID = bot.ID
		i.Bus.PublishOutbound(msg)
		return nil
	}})

	if store != nil {
		namespace := bot.Namespace()
		limit := cfg.Memory.SearchLimit
		registry.Register(&tools.StoreMemoryTool{Store: store, Namespace: namespace})
		registry.Register(&tools.SearchMemoriesTool{Store: store, Namespace: namespace, Limit: limit})
		registry.Register(&tools.ListMemoriesTool{Store: store, Namespace: namespace})
		registry.Register(&tools.DeleteMemoryTool{Store: store})
	}

	spawner := agent.NewSubagentManager(provider, workspace, model)
	spawner.ToolTimeout = time.Duration(cfg.Agent.ToolTimeout) * time.Second
	registry.Register(&tools.SpawnTool{Spawner: spawner})

	return registry
}

// handleInbound processes one message inside its conversation lane.
func (i *Instance) handleInbound(ctx context.Context, sessionKey string, payload any) {
	msg, ok := payload.(bus.InboundMessage)
	if !ok {
		return
	}
	// The message tool replies to this conversation unless told otherwise.
	ctx = tools.WithDeliveryTarget(ctx, tools.DeliveryTarget{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
	})
	if err := i.Loop.ProcessInbound(ctx, msg); err != nil {
		log.Printf("[%s] process %s: %v", i.Bot.ID, sessionKey, err)
	}
}

// Start consumes the bot's inbound queue and runs its channels. Blocks until
// ctx is cancelled.
func (i *Instance) Start(ctx context.Context) error {
	ctx, i.cancel = context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-i.Bus.Inbound:
				if _, err := i.Lanes.Submit(ctx, msg.SessionKey(), msg); err != nil {
					log.Printf("[%s] enqueue %s: %v", i.Bot.ID, msg.SessionKey(), err)
				}
			}
		}
	}()

	return i.Channels.StartAll(ctx)
}

// Stop shuts the bot down.
func (i *Instance) Stop() {
	if i.cancel != nil {
		i.cancel()
	}
	i.Channels.StopAll()
	i.Lanes.Stop()
}

// defaultPersona files are written into a fresh workspace.
var defaultPersona = map[string]string{
	"AGENTS.md": "# Operating Rules\n\n- Be direct and useful.\n- Use tools when they help; answer directly when they don't.\n- Store durable facts about the user with the memory tools.\n",
	"SOUL.md":   "# Personality\n\nCalm, warm, and concise. Plain language over jargon.\n",
	"USER.md":   "# User\n\nNothing known yet. Learn as you go.\n",
}

// seedWorkspace creates the workspace layout and default persona files.
// Existing files are never overwritten.
func seedWorkspace(workspace string, bot config.BotConfig) error {
	for _, dir := range []string{workspace, filepath.Join(workspace, "skills")} {
		if _, err := utils.EnsureDir(dir); err != nil {
			return err
		}
	}
	for name, content := range defaultPersona {
		path := filepath.Join(workspace, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if name == "SOUL.md" && bot.Name != "" {
			content = fmt.Sprintf("# Personality\n\nYou are %s. %s\n\nCalm, warm, and concise.\n", bot.Name, bot.Description)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}
