// Package bus provides the message bus that decouples chat channels from the
// agent core. Each bot instance owns exactly one bus; buses are never shared
// between bots.
package bus

import "time"

// InboundMessage is a message received from a chat channel.
type InboundMessage struct {
	BotID      string         `json:"bot_id,omitempty"`
	Channel    string         `json:"channel"`
	SenderID   string         `json:"sender_id"`
	ChatID     string         `json:"chat_id"`
	Content    string         `json:"content"`
	ReceivedAt time.Time      `json:"received_at"`
	Media      []string       `json:"media,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SessionKey returns the conversation key used for session storage and
// per-conversation serialization.
func (m *InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChatID
}

// OutboundMessage is a response sent to a chat channel.
type OutboundMessage struct {
	BotID     string         `json:"bot_id,omitempty"`
	Channel   string         `json:"channel"`
	ChatID    string         `json:"chat_id"`
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"created_at"`
	ReplyTo   string         `json:"reply_to,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
