package channels

import (
	"context"
	"log"
	"sync"

	"github.com/lunabot-ai/lunabot/internal/bus"
)

// Manager owns one bot instance's channels and routes its outbound traffic.
type Manager struct {
	Bus      *bus.MessageBus
	mu       sync.RWMutex
	channels map[string]Channel
}

// NewManager creates a channel manager bound to a bot's bus.
func NewManager(msgBus *bus.MessageBus) *Manager {
	return &Manager{
		Bus:      msgBus,
		channels: make(map[string]Channel),
	}
}

// Register adds a channel under its name.
func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
}

// Get returns a channel by name, or nil.
func (m *Manager) Get(name string) Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.channels[name]
}

// Names returns the registered channel names.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}

// StartAll wires outbound routing and starts every channel. Blocks until all
// channel listen loops return.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	channels := make(map[string]Channel, len(m.channels))
	for name, ch := range m.channels {
		channels[name] = ch
	}
	m.mu.RUnlock()

	if len(channels) == 0 {
		log.Println("[channels] none enabled")
		return nil
	}

	for name, ch := range channels {
		name, ch := name, ch
		m.Bus.Subscribe(name, func(msg bus.OutboundMessage) {
			if err := ch.Send(msg); err != nil {
				log.Printf("[channels] send via %s failed: %v", name, err)
			}
		})
	}
	go m.Bus.DispatchOutbound(ctx)

	var wg sync.WaitGroup
	for name, ch := range channels {
		wg.Add(1)
		go func(name string, ch Channel) {
			defer wg.Done()
			log.Printf("[channels] starting %s", name)
			if err := ch.Start(ctx); err != nil {
				log.Printf("[channels] %s stopped: %v", name, err)
			}
		}(name, ch)
	}
	wg.Wait()
	return nil
}

// StopAll stops every channel.
func (m *Manager) StopAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, ch := range m.channels {
		if err := ch.Stop(); err != nil {
			log.Printf("[channels] stopping %s: %v", name, err)
		}
	}
}

// Status reports each channel's running state.
func (m *Manager) Status() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := make(map[string]bool, len(m.channels))
	for name, ch := range m.channels {
		status[name] = ch.IsRunning()
	}
	return status
}
