// Package channels integrates chat platforms with the message bus.
package channels

import (
	"context"
	"strings"

	"github.com/lunabot-ai/lunabot/internal/bus"
)

// Channel is a chat platform integration owned by one bot instance.
type Channel interface {
	// Name returns the channel identifier (e.g. "telegram").
	Name() string

	// Start connects and listens. Blocks until ctx is cancelled.
	Start(ctx context.Context) error

	// Stop shuts the channel down.
	Stop() error

	// Send delivers an outbound message through this channel.
	Send(msg bus.OutboundMessage) error

	// IsRunning reports whether the channel is active.
	IsRunning() bool
}

// BaseChannel holds what every channel implementation shares: the owning
// bot's id and bus, plus the sender allow list.
type BaseChannel struct {
	ChannelName string
	BotID       string
	Bus         *bus.MessageBus
	AllowFrom   []string
	Running     bool
}

// IsAllowed reports whether a sender may talk to the bot. An empty allow
// list admits everyone. Sender ids may carry alternates separated by "|"
// (numeric id plus username); any part matching admits.
func (b *BaseChannel) IsAllowed(senderID string) bool {
	if len(b.AllowFrom) == 0 {
		return true
	}
	for _, part := range strings.Split(senderID, "|") {
		if part == "" {
			continue
		}
		for _, allowed := range b.AllowFrom {
			if allowed == part {
				return true
			}
		}
	}
	return false
}

// HandleMessage applies the allow list and publishes to the bot's bus.
func (b *BaseChannel) HandleMessage(senderID, chatID, content string, media []string, metadata map[string]any) {
	if !b.IsAllowed(senderID) {
		return
	}
	b.Bus.PublishInbound(bus.InboundMessage{
		BotID:    b.BotID,
		Channel:  b.ChannelName,
		SenderID: senderID,
		ChatID:   chatID,
		Content:  content,
		Media:    media,
		Metadata: metadata,
	})
}
