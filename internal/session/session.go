// Package session implements per-conversation history with JSONL persistence.
package session

import (
	"time"
)

// DefaultMaxLength bounds the retained history of a session.
const DefaultMaxLength = 200

// Message is a single conversation entry.
// Tool exchanges are persisted for auditability and carry the tool call
// correlation in Extra; they are skipped when history is replayed to the model.
type Message struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp string         `json:"timestamp,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`

	// Internal marker for metadata lines in JSONL.
	Type string `json:"_type,omitempty"`
}

// Session holds a conversation's message history. It is owned by exactly one
// agent loop and mutated only by appending; entries beyond MaxLength are
// evicted oldest-first.
type Session struct {
	Key       string    `json:"key"`
	Messages  []Message `json:"-"`
	MaxLength int       `json:"max_length"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Append adds a plain conversation turn.
func (s *Session) Append(role, content string) {
	s.append(Message{Role: role, Content: content})
}

// AppendToolExchange records an assistant tool-call turn and its results.
// callsJSON is the serialized tool_calls block; results map call ids to the
// content returned to the model.
func (s *Session) AppendToolExchange(assistantContent string, calls []map[string]any, results []Message) {
	s.append(Message{
		Role:    "assistant",
		Content: assistantContent,
		Extra:   map[string]any{"tool_calls": calls},
	})
	for _, r := range results {
		s.append(r)
	}
}

func (s *Session) append(m Message) {
	if m.Timestamp == "" {
		m.Timestamp = time.Now().Format(time.RFC3339)
	}
	s.Messages = append(s.Messages, m)
	max := s.MaxLength
	if max <= 0 {
		max = DefaultMaxLength
	}
	if len(s.Messages) > max {
		// FIFO eviction, never reordered.
		s.Messages = s.Messages[len(s.Messages)-max:]
	}
	s.UpdatedAt = time.Now()
}

// History returns up to maxMessages recent plain turns in model format.
// Tool-exchange audit entries are excluded from replay.
func (s *Session) History(maxMessages int) []map[string]any {
	var plain []Message
	for _, m := range s.Messages {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		if len(m.Extra) > 0 {
			continue
		}
		plain = append(plain, m)
	}
	start := 0
	if maxMessages > 0 && len(plain) > maxMessages {
		start = len(plain) - maxMessages
	}
	result := make([]map[string]any, 0, len(plain)-start)
	for _, m := range plain[start:] {
		result = append(result, map[string]any{"role": m.Role, "content": m.Content})
	}
	return result
}

// Clear removes all messages.
func (s *Session) Clear() {
	s.Messages = nil
	s.UpdatedAt = time.Now()
}
