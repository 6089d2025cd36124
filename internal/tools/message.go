package tools

import (
	"context"
	"fmt"

	"github.com/lunabot-ai/lunabot/internal/bus"
)

// SendFunc is the callback used to deliver outbound messages.
type SendFunc func(msg bus.OutboundMessage) error

// DeliveryTarget is the default channel and chat a turn's messages go to
// when the model does not name one explicitly.
type DeliveryTarget struct {
	Channel string
	ChatID  string
}

type deliveryKey struct{}

// WithDeliveryTarget returns a context carrying the turn's default target.
// The target rides the dispatch context rather than tool state, so turns
// running concurrently in different conversations cannot cross-deliver.
func WithDeliveryTarget(ctx context.Context, target DeliveryTarget) context.Context {
	return context.WithValue(ctx, deliveryKey{}, target)
}

func deliveryTarget(ctx context.Context) DeliveryTarget {
	target, _ := ctx.Value(deliveryKey{}).(DeliveryTarget)
	return target
}

// MessageTool sends messages to users on chat channels.
type MessageTool struct {
	SendCallback SendFunc
}

func (t *MessageTool) Name() string        { return "message" }
func (t *MessageTool) Description() string { return "Send a message to the user on a chat channel." }
func (t *MessageTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{"type": "string", "description": "The message content to send"},
			"channel": map[string]any{"type": "string", "description": "Optional: target channel"},
			"chat_id": map[string]any{"type": "string", "description": "Optional: target chat/user ID"},
		},
		"required": []string{"content"},
	}
}

func (t *MessageTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	content, _ := args["content"].(string)
	channel, _ := args["channel"].(string)
	chatID, _ := args["chat_id"].(string)

	target := deliveryTarget(ctx)
	if channel == "" {
		channel = target.Channel
	}
	if chatID == "" {
		chatID = target.ChatID
	}

	if channel == "" || chatID == "" {
		return "", fmt.Errorf("no target channel/chat specified")
	}
	if t.SendCallback == nil {
		return "", fmt.Errorf("message sending not configured")
	}

	if err := t.SendCallback(bus.OutboundMessage{
		Channel: channel,
		ChatID:  chatID,
		Content: content,
	}); err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return fmt.Sprintf("Message sent to %s:%s", channel, chatID), nil
}
