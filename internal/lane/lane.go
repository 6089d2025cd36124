// Package lane serializes message processing per conversation.
//
// Messages from different conversations run concurrently, but within one
// conversation each message is fully processed before the next starts, in
// receipt order. Each session key gets its own lane with a single worker.
package lane

import (
	"context"
	"log"
	"sync"
	"time"
)

// Handler processes one inbound message to completion.
type Handler func(ctx context.Context, sessionKey string, payload any)

// laneItem is one queued message.
type laneItem struct {
	payload any
	done    chan struct{}
}

// lane is a single conversation's queue and worker state.
type lane struct {
	sessionKey string
	queue      chan laneItem

	mu         sync.Mutex
	idle       bool
	lastActive time.Time
}

// Manager owns the lanes of one bot instance.
type Manager struct {
	mu       sync.RWMutex
	lanes    map[string]*lane
	handler  Handler
	maxLanes int
	idleTTL  time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// ManagerConfig configures a lane Manager.
type ManagerConfig struct {
	Handler  Handler
	MaxLanes int           // max concurrent lanes (default 1000)
	IdleTTL  time.Duration // worker exits after this much inactivity (default 5m)
}

// NewManager creates a lane manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.MaxLanes == 0 {
		cfg.MaxLanes = 1000
	}
	if cfg.IdleTTL == 0 {
		cfg.IdleTTL = 5 * time.Minute
	}
	return &Manager{
		lanes:    make(map[string]*lane),
		handler:  cfg.Handler,
		maxLanes: cfg.MaxLanes,
		idleTTL:  cfg.IdleTTL,
	}
}

// Submit enqueues a message on its conversation's lane and returns a channel
// closed when processing completes. Enqueue order is processing order.
func (m *Manager) Submit(ctx context.Context, sessionKey string, payload any) (<-chan struct{}, error) {
	item := laneItem{payload: payload, done: make(chan struct{})}

	for {
		m.mu.Lock()
		l, ok := m.lanes[sessionKey]
		if !ok {
			l = m.createLaneLocked(sessionKey)
		}
		// The send happens under the manager lock so it cannot race the
		// worker's exit check: an enqueued item is always visible to that
		// check before the lane can be retired.
		select {
		case l.queue <- item:
			m.mu.Unlock()
			return item.done, nil
		default:
		}
		m.mu.Unlock()

		// Lane buffer full. Wait for the worker to make room.
		select {
		case <-time.After(5 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// SubmitWait enqueues a message and blocks until it has been processed.
func (m *Manager) SubmitWait(ctx context.Context, sessionKey string, payload any) error {
	done, err := m.Submit(ctx, sessionKey, payload)
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// createLaneLocked registers a new lane and starts its worker. Caller holds
// m.mu.
func (m *Manager) createLaneLocked(sessionKey string) *lane {
	if len(m.lanes) >= m.maxLanes {
		m.evictIdleLanes()
	}

	l := &lane{
		sessionKey: sessionKey,
		queue:      make(chan laneItem, 100),
		idle:       true,
		lastActive: time.Now(),
	}
	m.lanes[sessionKey] = l

	go m.runWorker(l)
	return l
}

// runWorker drains one lane's queue sequentially. The channel guarantees
// receipt order; the single worker guarantees no overlap.
func (m *Manager) runWorker(l *lane) {
	for {
		select {
		case item := <-l.queue:
			l.mu.Lock()
			l.idle = false
			l.lastActive = time.Now()
			l.mu.Unlock()

			m.process(l.sessionKey, item)

			l.mu.Lock()
			l.idle = true
			l.lastActive = time.Now()
			l.mu.Unlock()

		case <-time.After(m.idleTTL):
			m.mu.Lock()
			if len(l.queue) > 0 {
				// A submit landed while the timer fired; keep going.
				m.mu.Unlock()
				continue
			}
			if m.lanes[l.sessionKey] == l {
				delete(m.lanes, l.sessionKey)
			}
			m.mu.Unlock()
			return

		case <-m.stopChan():
			return
		}
	}
}

// process runs the handler and always closes done, even on panic.
func (m *Manager) process(sessionKey string, item laneItem) {
	defer close(item.done)
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[lane] handler panicked for %s: %v", sessionKey, rec)
		}
	}()
	m.handler(context.Background(), sessionKey, item.payload)
}

// evictIdleLanes removes long-idle lanes. Caller holds m.mu.
func (m *Manager) evictIdleLanes() {
	threshold := time.Now().Add(-m.idleTTL)
	for key, l := range m.lanes {
		l.mu.Lock()
		if l.idle && l.lastActive.Before(threshold) {
			delete(m.lanes, key)
		}
		l.mu.Unlock()
	}
}

func (m *Manager) stopChan() chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopCh == nil {
		m.stopCh = make(chan struct{})
	}
	return m.stopCh
}

// Stop shuts down all lane workers.
func (m *Manager) Stop() {
	ch := m.stopChan()
	m.stopOnce.Do(func() { close(ch) })
}

// Stats reports lane counts.
func (m *Manager) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	active := 0
	for _, l := range m.lanes {
		l.mu.Lock()
		if !l.idle {
			active++
		}
		l.mu.Unlock()
	}
	return map[string]int{
		"total":  len(m.lanes),
		"active": active,
	}
}
