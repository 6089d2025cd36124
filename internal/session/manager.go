package session

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lunabot-ai/lunabot/internal/utils"
)

// Manager persists sessions as JSONL files under <dataDir>/sessions.
// Each bot instance owns its own Manager; stores are never shared.
type Manager struct {
	sessionsDir string
	maxLength   int

	mu    sync.RWMutex
	cache map[string]*Session
}

// NewManager creates a session manager rooted at dataDir.
func NewManager(dataDir string, maxLength int) *Manager {
	dir := filepath.Join(dataDir, "sessions")
	os.MkdirAll(dir, 0o755)
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Manager{
		sessionsDir: dir,
		maxLength:   maxLength,
		cache:       make(map[string]*Session),
	}
}

// GetOrCreate returns an existing session or creates a new one.
func (m *Manager) GetOrCreate(key string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.cache[key]; ok {
		return s
	}

	s := m.load(key)
	if s == nil {
		s = &Session{
			Key:       key,
			MaxLength: m.maxLength,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
	}
	m.cache[key] = s
	return s
}

// Save persists a session to disk as JSONL.
func (m *Manager) Save(s *Session) error {
	path := m.sessionPath(s.Key)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	meta := map[string]any{
		"_type":      "metadata",
		"created_at": s.CreatedAt.Format(time.RFC3339),
		"updated_at": s.UpdatedAt.Format(time.RFC3339),
		"max_length": s.MaxLength,
	}
	metaLine, _ := json.Marshal(meta)
	w.Write(metaLine)
	w.WriteString("\n")

	for _, msg := range s.Messages {
		line, _ := json.Marshal(msg)
		w.Write(line)
		w.WriteString("\n")
	}
	if err := w.Flush(); err != nil {
		return err
	}

	m.mu.Lock()
	m.cache[s.Key] = s
	m.mu.Unlock()
	return nil
}

// Invalidate removes a session from the in-memory cache.
func (m *Manager) Invalidate(key string) {
	m.mu.Lock()
	delete(m.cache, key)
	m.mu.Unlock()
}

// List returns info about all stored sessions.
func (m *Manager) List() []map[string]string {
	var result []map[string]string

	entries, err := os.ReadDir(m.sessionsDir)
	if err != nil {
		return result
	}

	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		path := filepath.Join(m.sessionsDir, entry.Name())
		f, err := os.Open(path)
		if err != nil {
			continue
		}

		scanner := bufio.NewScanner(f)
		if scanner.Scan() {
			var meta map[string]any
			if json.Unmarshal(scanner.Bytes(), &meta) == nil && meta["_type"] == "metadata" {
				key := strings.TrimSuffix(entry.Name(), ".jsonl")
				key = strings.ReplaceAll(key, "_", ":")
				info := map[string]string{"key": key, "path": path}
				if v, ok := meta["created_at"].(string); ok {
					info["created_at"] = v
				}
				if v, ok := meta["updated_at"].(string); ok {
					info["updated_at"] = v
				}
				result = append(result, info)
			}
		}
		f.Close()
	}
	return result
}

func (m *Manager) sessionPath(key string) string {
	safe := utils.SafeFilename(strings.ReplaceAll(key, ":", "_"))
	return filepath.Join(m.sessionsDir, safe+".jsonl")
}

func (m *Manager) load(key string) *Session {
	f, err := os.Open(m.sessionPath(key))
	if err != nil {
		return nil
	}
	defer f.Close()

	s := &Session{Key: key, MaxLength: m.maxLength}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var raw map[string]any
		if json.Unmarshal([]byte(line), &raw) != nil {
			continue
		}

		if raw["_type"] == "metadata" {
			if v, ok := raw["created_at"].(string); ok {
				s.CreatedAt, _ = time.Parse(time.RFC3339, v)
			}
			if v, ok := raw["updated_at"].(string); ok {
				s.UpdatedAt, _ = time.Parse(time.RFC3339, v)
			}
			if v, ok := raw["max_length"].(float64); ok && int(v) > 0 {
				s.MaxLength = int(v)
			}
			continue
		}

		var msg Message
		if json.Unmarshal([]byte(line), &msg) == nil {
			s.Messages = append(s.Messages, msg)
		}
	}

	if len(s.Messages) == 0 && s.CreatedAt.IsZero() {
		return nil
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	return s
}
