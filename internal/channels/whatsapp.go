package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lunabot-ai/lunabot/internal/bus"
	"github.com/lunabot-ai/lunabot/internal/config"
)

// WhatsAppChannel connects to a WhatsApp bridge process over WebSocket.
// The bridge owns the actual WhatsApp session; this channel speaks its
// JSON protocol: {"type":"message"|"status"|"qr"|"error", ...} inbound and
// {"type":"send","to":...,"text":...} outbound.
type WhatsAppChannel struct {
	BaseChannel
	BridgeURL   string
	BridgeToken string

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	cancelFn  context.CancelFunc
}

// NewWhatsAppChannel creates a WhatsAppChannel for one bot.
func NewWhatsAppChannel(botID string, cfg config.WhatsAppConfig, msgBus *bus.MessageBus) *WhatsAppChannel {
	url := cfg.BridgeURL
	if url == "" {
		url = "ws://localhost:3001"
	}
	return &WhatsAppChannel{
		BaseChannel: BaseChannel{
			ChannelName: "whatsapp",
			BotID:       botID,
			Bus:         msgBus,
			AllowFrom:   cfg.AllowFrom,
		},
		BridgeURL:   url,
		BridgeToken: cfg.BridgeToken,
	}
}

func (w *WhatsAppChannel) Name() string    { return "whatsapp" }
func (w *WhatsAppChannel) IsRunning() bool { return w.Running }

// Start dials the bridge and reads until ctx is cancelled, reconnecting
// with a fixed backoff on failure.
func (w *WhatsAppChannel) Start(ctx context.Context) error {
	w.Running = true
	defer func() { w.Running = false }()
	ctx, w.cancelFn = context.WithCancel(ctx)

	for {
		if err := w.runConnection(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[whatsapp] bridge connection lost: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(5 * time.Second):
		}
	}
}

func (w *WhatsAppChannel) runConnection(ctx context.Context) error {
	header := http.Header{}
	if w.BridgeToken != "" {
		header.Set("Authorization", "Bearer "+w.BridgeToken)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.BridgeURL, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", w.BridgeURL, err)
	}
	defer conn.Close()

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.conn = nil
		w.connected = false
		w.mu.Unlock()
	}()

	log.Printf("[whatsapp] bridge connected at %s", w.BridgeURL)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		w.handleBridgeEvent(data)
	}
}

// Stop closes the bridge connection and ends the read loop.
func (w *WhatsAppChannel) Stop() error {
	w.Running = false
	if w.cancelFn != nil {
		w.cancelFn()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
	}
	w.connected = false
	return nil
}

// Send writes a send frame to the bridge. The write lock serializes
// concurrent senders over the single connection.
func (w *WhatsAppChannel) Send(msg bus.OutboundMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil || !w.connected {
		return fmt.Errorf("whatsapp bridge not connected")
	}
	return w.conn.WriteJSON(map[string]string{
		"type": "send",
		"to":   msg.ChatID,
		"text": msg.Content,
	})
}

// handleBridgeEvent processes one frame from the bridge.
func (w *WhatsAppChannel) handleBridgeEvent(raw []byte) {
	var data map[string]any
	if json.Unmarshal(raw, &data) != nil {
		return
	}

	switch data["type"] {
	case "message":
		sender, _ := data["sender"].(string)
		content, _ := data["content"].(string)
		phone, _ := data["pn"].(string)
		if phone == "" {
			phone = sender
		}
		// Sender ids look like "1234567@s.whatsapp.net".
		senderID, _, _ := strings.Cut(phone, "@")
		w.HandleMessage(senderID, sender, content, nil, map[string]any{
			"message_id": data["id"],
			"is_group":   data["isGroup"],
		})

	case "status":
		status, _ := data["status"].(string)
		log.Printf("[whatsapp] bridge status: %s", status)
		w.mu.Lock()
		w.connected = status == "connected"
		w.mu.Unlock()

	case "qr":
		log.Println("[whatsapp] scan the QR code in the bridge terminal")

	case "error":
		errMsg, _ := data["error"].(string)
		log.Printf("[whatsapp] bridge error: %s", errMsg)
	}
}
