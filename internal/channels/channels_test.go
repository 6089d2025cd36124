package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunabot-ai/lunabot/internal/bus"
	"github.com/lunabot-ai/lunabot/internal/config"
)

func TestBaseChannel_IsAllowed(t *testing.T) {
	open := BaseChannel{}
	assert.True(t, open.IsAllowed("anyone"))

	restricted := BaseChannel{AllowFrom: []string{"42", "alice"}}
	assert.True(t, restricted.IsAllowed("42"))
	assert.True(t, restricted.IsAllowed("alice"))
	assert.False(t, restricted.IsAllowed("bob"))

	// Compound ids admit when any part matches.
	assert.True(t, restricted.IsAllowed("99|alice"))
	assert.False(t, restricted.IsAllowed("99|bob"))
}

func TestBaseChannel_HandleMessageStampsBot(t *testing.T) {
	msgBus := bus.NewMessageBus()
	base := BaseChannel{ChannelName: "telegram", BotID: "bot-a", Bus: msgBus}

	base.HandleMessage("42", "100", "hello", nil, nil)

	msg := <-msgBus.Inbound
	assert.Equal(t, "bot-a", msg.BotID)
	assert.Equal(t, "telegram", msg.Channel)
	assert.Equal(t, "telegram:100", msg.SessionKey())
}

func TestBaseChannel_DisallowedSenderDropped(t *testing.T) {
	msgBus := bus.NewMessageBus()
	base := BaseChannel{ChannelName: "telegram", Bus: msgBus, AllowFrom: []string{"42"}}

	base.HandleMessage("99", "100", "hello", nil, nil)
	assert.Equal(t, 0, msgBus.InboundSize())
}

// fakeChannel records sends for manager tests.
type fakeChannel struct {
	BaseChannel
	mu    sync.Mutex
	sent  []bus.OutboundMessage
	block chan struct{}
}

func (f *fakeChannel) Name() string    { return f.ChannelName }
func (f *fakeChannel) IsRunning() bool { return f.Running }
func (f *fakeChannel) Stop() error     { f.Running = false; return nil }
func (f *fakeChannel) Start(ctx context.Context) error {
	f.Running = true
	<-ctx.Done()
	f.Running = false
	return nil
}
func (f *fakeChannel) Send(msg bus.OutboundMessage) error {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return nil
}
func (f *fakeChannel) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestManager_RoutesOutboundByChannel(t *testing.T) {
	msgBus := bus.NewMessageBus()
	m := NewManager(msgBus)

	tg := &fakeChannel{BaseChannel: BaseChannel{ChannelName: "telegram", Bus: msgBus}}
	wa := &fakeChannel{BaseChannel: BaseChannel{ChannelName: "whatsapp", Bus: msgBus}}
	m.Register(tg)
	m.Register(wa)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.StartAll(ctx)
		close(done)
	}()

	msgBus.PublishOutbound(bus.OutboundMessage{Channel: "telegram", ChatID: "1", Content: "tg only"})

	assert.Eventually(t, func() bool { return tg.sentCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, wa.sentCount())

	cancel()
	<-done
}

func TestManager_Status(t *testing.T) {
	msgBus := bus.NewMessageBus()
	m := NewManager(msgBus)
	ch := &fakeChannel{BaseChannel: BaseChannel{ChannelName: "telegram", Bus: msgBus}}
	m.Register(ch)

	assert.Equal(t, map[string]bool{"telegram": false}, m.Status())
	assert.Equal(t, []string{"telegram"}, m.Names())
	assert.Same(t, ch, m.Get("telegram").(*fakeChannel))
	assert.Nil(t, m.Get("missing"))
}

func TestTelegram_StartRequiresToken(t *testing.T) {
	ch := NewTelegramChannel("bot-a", config.TelegramConfig{}, bus.NewMessageBus())
	err := ch.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")
}

func TestTelegram_PollPublishesInbound(t *testing.T) {
	var delivered sync.Once
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			json.NewEncoder(w).Encode(map[string]any{
				"ok":     true,
				"result": map[string]any{"username": "testbot"},
			})
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			updates := []any{}
			delivered.Do(func() {
				updates = append(updates, map[string]any{
					"update_id": 7,
					"message": map[string]any{
						"message_id": 1,
						"from":       map[string]any{"id": 42, "username": "alice"},
						"chat":       map[string]any{"id": 100},
						"text":       "hi bot",
					},
				})
			})
			json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": updates})
		}
	}))
	defer server.Close()

	msgBus := bus.NewMessageBus()
	ch := NewTelegramChannel("bot-a", config.TelegramConfig{Token: "tok"}, msgBus)
	ch.APIBase = server.URL

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Start(ctx)

	select {
	case msg := <-msgBus.Inbound:
		assert.Equal(t, "bot-a", msg.BotID)
		assert.Equal(t, "42|alice", msg.SenderID)
		assert.Equal(t, "100", msg.ChatID)
		assert.Equal(t, "hi bot", msg.Content)
	case <-time.After(5 * time.Second):
		t.Fatal("no inbound message from poll loop")
	}
}

func TestRenderTelegramHTML(t *testing.T) {
	out := renderTelegramHTML("# Title\n**bold** and `a < b`\n- item")
	assert.Contains(t, out, "Title")
	assert.NotContains(t, out, "# Title")
	assert.Contains(t, out, "<b>bold</b>")
	assert.Contains(t, out, "<code>a &lt; b</code>")
	assert.Contains(t, out, "• item")

	out = renderTelegramHTML("```go\nx < y\n```")
	assert.Contains(t, out, "<pre><code>x &lt; y\n</code></pre>")

	out = renderTelegramHTML("[site](https://example.com)")
	assert.Contains(t, out, `<a href="https://example.com">site</a>`)
}

func TestWhatsApp_BridgeRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan map[string]string, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Announce connected, then deliver one message.
		conn.WriteJSON(map[string]any{"type": "status", "status": "connected"})
		conn.WriteJSON(map[string]any{
			"type":    "message",
			"sender":  "1234567@s.whatsapp.net",
			"pn":      "1234567@s.whatsapp.net",
			"content": "hola",
			"id":      "m1",
		})

		var frame map[string]string
		if conn.ReadJSON(&frame) == nil {
			received <- frame
		}
	}))
	defer server.Close()

	msgBus := bus.NewMessageBus()
	ch := NewWhatsAppChannel("bot-a", config.WhatsAppConfig{
		BridgeURL: "ws" + strings.TrimPrefix(server.URL, "http"),
	}, msgBus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Start(ctx)

	select {
	case msg := <-msgBus.Inbound:
		assert.Equal(t, "1234567", msg.SenderID)
		assert.Equal(t, "hola", msg.Content)
		assert.Equal(t, "bot-a", msg.BotID)
	case <-time.After(5 * time.Second):
		t.Fatal("no inbound message from bridge")
	}

	require.Eventually(t, func() bool {
		return ch.Send(bus.OutboundMessage{ChatID: "1234567@s.whatsapp.net", Content: "hi"}) == nil
	}, 5*time.Second, 10*time.Millisecond)

	select {
	case frame := <-received:
		assert.Equal(t, "send", frame["type"])
		assert.Equal(t, "hi", frame["text"])
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not receive send frame")
	}
}

func TestWhatsApp_SendWithoutConnection(t *testing.T) {
	ch := NewWhatsAppChannel("bot-a", config.WhatsAppConfig{}, bus.NewMessageBus())
	err := ch.Send(bus.OutboundMessage{ChatID: "1", Content: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}
