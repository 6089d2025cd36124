package multibot

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/lunabot-ai/lunabot/internal/config"
	"github.com/lunabot-ai/lunabot/internal/memory"
	"github.com/lunabot-ai/lunabot/internal/providers"
)

// Manager owns every bot instance in the process.
type Manager struct {
	cfg      *config.Config
	provider providers.LLMProvider
	store    memory.Store

	mu        sync.RWMutex
	instances map[string]*Instance
}

// NewManager creates a bot manager. store may be nil.
func NewManager(cfg *config.Config, provider providers.LLMProvider, store memory.Store) *Manager {
	return &Manager{
		cfg:       cfg,
		provider:  provider,
		instances: make(map[string]*Instance),
		store:     store,
	}
}

// Setup builds an instance per configured bot. Bot ids must be unique. A
// bot that fails to construct is logged and skipped so the rest of the
// fleet still comes up; Setup errors only when no instance could be built.
func (m *Manager) Setup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.cfg.Bots) == 0 {
		return fmt.Errorf("no bots configured")
	}
	for _, bot := range m.cfg.Bots {
		if _, exists := m.instances[bot.ID]; exists {
			return fmt.Errorf("duplicate bot id %q", bot.ID)
		}
		inst, err := NewInstance(m.cfg, bot, m.provider, m.store)
		if err != nil {
			log.Printf("[multibot] skipping bot %q: %v", bot.ID, err)
			continue
		}
		m.instances[bot.ID] = inst
	}
	if len(m.instances) == 0 {
		return fmt.Errorf("no bots could be set up")
	}
	return nil
}

// Get returns a bot instance by id, or nil.
func (m *Manager) Get(id string) *Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instances[id]
}

// IDs returns the configured bot ids.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.instances))
	for id := range m.instances {
		ids = append(ids, id)
	}
	return ids
}

// ByTelegramToken returns the instance owning a Telegram token. Tokens route
// to exactly one bot; the first registered match wins.
func (m *Manager) ByTelegramToken(token string) *Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inst := range m.instances {
		if inst.Bot.Telegram != nil && inst.Bot.Telegram.Token == token {
			return inst
		}
	}
	return nil
}

// StartAll starts every bot. Each runs independently; one bot failing to
// start does not stop the others. Blocks until ctx is cancelled and all
// instances have returned.
func (m *Manager) StartAll(ctx context.Context) {
	m.mu.RLock()
	instances := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		instances = append(instances, inst)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, inst := range instances {
		wg.Add(1)
		go func(inst *Instance) {
			defer wg.Done()
			log.Printf("[multibot] starting %s", inst.Bot.ID)
			if err := inst.Start(ctx); err != nil {
				log.Printf("[multibot] %s stopped: %v", inst.Bot.ID, err)
			}
		}(inst)
	}
	wg.Wait()
}

// StopAll stops every bot.
func (m *Manager) StopAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inst := range m.instances {
		inst.Stop()
	}
}

// Status reports each bot's channel states and lane stats.
func (m *Manager) Status() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := make(map[string]any, len(m.instances))
	for id, inst := range m.instances {
		status[id] = map[string]any{
			"name":      inst.Bot.Name,
			"workspace": inst.Workspace,
			"channels":  inst.Channels.Status(),
			"lanes":     inst.Lanes.Stats(),
			"tools":     inst.Tools.Names(),
		}
	}
	return status
}
