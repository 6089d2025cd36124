package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/lunabot-ai/lunabot/internal/bus"
	"github.com/lunabot-ai/lunabot/internal/config"
)

// TelegramChannel talks to the Telegram Bot API with long polling.
type TelegramChannel struct {
	BaseChannel
	Token string

	// APIBase overrides the Telegram endpoint, for tests.
	APIBase string

	client   *http.Client
	cancelFn context.CancelFunc
}

// NewTelegramChannel creates a TelegramChannel for one bot.
func NewTelegramChannel(botID string, cfg config.TelegramConfig, msgBus *bus.MessageBus) *TelegramChannel {
	return &TelegramChannel{
		BaseChannel: BaseChannel{
			ChannelName: "telegram",
			BotID:       botID,
			Bus:         msgBus,
			AllowFrom:   cfg.AllowFrom,
		},
		Token:   cfg.Token,
		APIBase: "https://api.telegram.org",
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (t *TelegramChannel) Name() string    { return "telegram" }
func (t *TelegramChannel) IsRunning() bool { return t.Running }

// Start polls getUpdates until ctx is cancelled.
func (t *TelegramChannel) Start(ctx context.Context) error {
	if t.Token == "" {
		return fmt.Errorf("telegram bot token not configured")
	}
	t.Running = true
	defer func() { t.Running = false }()
	ctx, t.cancelFn = context.WithCancel(ctx)

	info, err := t.apiCall(ctx, "getMe", nil)
	if err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	if result, ok := info["result"].(map[string]any); ok {
		if username, ok := result["username"].(string); ok {
			log.Printf("[telegram] bot @%s connected", username)
		}
	}

	offset := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		updates, err := t.apiCall(ctx, "getUpdates", map[string]any{
			"offset":          offset,
			"timeout":         30,
			"allowed_updates": []string{"message"},
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("[telegram] getUpdates: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		results, _ := updates["result"].([]any)
		for _, u := range results {
			update, ok := u.(map[string]any)
			if !ok {
				continue
			}
			if uid, ok := update["update_id"].(float64); ok {
				offset = int(uid) + 1
			}
			t.processUpdate(update)
		}
	}
}

// Stop ends the polling loop.
func (t *TelegramChannel) Stop() error {
	t.Running = false
	if t.cancelFn != nil {
		t.cancelFn()
	}
	return nil
}

// Send delivers a message, falling back to plain text when the HTML
// rendering is rejected.
func (t *TelegramChannel) Send(msg bus.OutboundMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := t.apiCall(ctx, "sendMessage", map[string]any{
		"chat_id":    msg.ChatID,
		"text":       renderTelegramHTML(msg.Content),
		"parse_mode": "HTML",
	})
	if err != nil {
		_, err = t.apiCall(ctx, "sendMessage", map[string]any{
			"chat_id": msg.ChatID,
			"text":    msg.Content,
		})
	}
	return err
}

func (t *TelegramChannel) processUpdate(update map[string]any) {
	msg, ok := update["message"].(map[string]any)
	if !ok {
		return
	}
	from, _ := msg["from"].(map[string]any)
	chat, _ := msg["chat"].(map[string]any)
	if from == nil || chat == nil {
		return
	}

	senderID := fmt.Sprintf("%.0f", from["id"])
	if username, ok := from["username"].(string); ok && username != "" {
		senderID += "|" + username
	}
	chatID := fmt.Sprintf("%.0f", chat["id"])

	text, _ := msg["text"].(string)
	if text == "" {
		text, _ = msg["caption"].(string)
	}
	if text == "" {
		text = "[empty message]"
	}

	t.HandleMessage(senderID, chatID, text, nil, map[string]any{
		"message_id": msg["message_id"],
	})
}

func (t *TelegramChannel) apiCall(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	url := fmt.Sprintf("%s/bot%s/%s", t.APIBase, t.Token, method)
	body, _ := json.Marshal(params)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("telegram %s: %w", method, err)
	}
	if ok, _ := result["ok"].(bool); !ok {
		desc, _ := result["description"].(string)
		return nil, fmt.Errorf("telegram %s: %s", method, desc)
	}
	return result, nil
}

var (
	codeBlockRe = regexp.MustCompile("(?s)```[\\w]*\\n?([\\s\\S]*?)```")
	inlineRe    = regexp.MustCompile("`([^`]+)`")
	headingRe   = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	boldRe      = regexp.MustCompile(`\*\*(.+?)\*\*`)
	linkRe      = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	bulletRe    = regexp.MustCompile(`(?m)^[-*]\s+`)
)

// renderTelegramHTML converts markdown-ish model output to Telegram HTML.
// Code spans are extracted before escaping so their content survives intact.
func renderTelegramHTML(text string) string {
	if text == "" {
		return ""
	}

	var blocks, inlines []string
	text = codeBlockRe.ReplaceAllStringFunc(text, func(m string) string {
		blocks = append(blocks, codeBlockRe.FindStringSubmatch(m)[1])
		return fmt.Sprintf("\x00B%d\x00", len(blocks)-1)
	})
	text = inlineRe.ReplaceAllStringFunc(text, func(m string) string {
		inlines = append(inlines, inlineRe.FindStringSubmatch(m)[1])
		return fmt.Sprintf("\x00I%d\x00", len(inlines)-1)
	})

	text = headingRe.ReplaceAllString(text, "$1")
	text = escapeHTML(text)
	text = linkRe.ReplaceAllString(text, `<a href="$2">$1</a>`)
	text = boldRe.ReplaceAllString(text, "<b>$1</b>")
	text = bulletRe.ReplaceAllString(text, "• ")

	for i, code := range inlines {
		text = strings.ReplaceAll(text, fmt.Sprintf("\x00I%d\x00", i), "<code>"+escapeHTML(code)+"</code>")
	}
	for i, code := range blocks {
		text = strings.ReplaceAll(text, fmt.Sprintf("\x00B%d\x00", i), "<pre><code>"+escapeHTML(code)+"</code></pre>")
	}
	return text
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	return strings.ReplaceAll(s, ">", "&gt;")
}
