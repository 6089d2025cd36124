// Package agent implements the conversation engine: context assembly, the
// bounded tool-calling loop, skills, and subagent delegation.
package agent

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/lunabot-ai/lunabot/internal/bus"
	"github.com/lunabot-ai/lunabot/internal/providers"
	"github.com/lunabot-ai/lunabot/internal/session"
	"github.com/lunabot-ai/lunabot/internal/tools"
)

// ErrMaxRounds is returned when the model still requests tools after the
// round cap. Tool calls of the final round are executed before terminating.
var ErrMaxRounds = errors.New("tool call round limit reached")

// apologyReply is sent when the completion service fails outright.
const apologyReply = "Sorry, I ran into a problem handling that. Please try again in a moment."

// capReply is sent when a request exhausts the tool call round limit.
const capReply = "I stopped before finishing: this request needed more tool calls than I allow in one turn."

// Loop runs the tool-calling conversation cycle for one bot instance.
type Loop struct {
	Provider providers.LLMProvider
	Bus      *bus.MessageBus
	Context  *ContextBuilder
	Sessions *session.Manager
	Tools    *tools.Registry

	Model             string
	MaxTokens         int
	Temperature       float64
	MaxRounds         int
	HistoryLimit      int
	CompletionTimeout time.Duration
}

// LoopConfig holds parameters for creating a Loop.
type LoopConfig struct {
	Model             string
	MaxTokens         int
	Temperature       float64
	MaxRounds         int
	HistoryLimit      int
	CompletionTimeout time.Duration
}

// NewLoop creates a Loop with config defaults filled in.
func NewLoop(msgBus *bus.MessageBus, provider providers.LLMProvider, builder *ContextBuilder, sessions *session.Manager, registry *tools.Registry, cfg LoopConfig) *Loop {
	model := cfg.Model
	if model == "" {
		model = provider.DefaultModel()
	}
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 20
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit == 0 {
		historyLimit = 50
	}

	return &Loop{
		Provider:          provider,
		Bus:               msgBus,
		Context:           builder,
		Sessions:          sessions,
		Tools:             registry,
		Model:             model,
		MaxTokens:         maxTokens,
		Temperature:       cfg.Temperature,
		MaxRounds:         maxRounds,
		HistoryLimit:      historyLimit,
		CompletionTimeout: cfg.CompletionTimeout,
	}
}

// runRounds drives completions until the model answers in text or the round
// cap is hit. Tool calls requested in a round are all executed, including in
// the round that hits the cap. A nil sess skips the audit trail (subagents).
func (a *Loop) runRounds(ctx context.Context, messages []map[string]any, sess *session.Session) (string, error) {
	for round := 1; round <= a.MaxRounds; round++ {
		resp, err := a.chat(ctx, messages)
		if err != nil {
			return "", err
		}

		if !resp.HasToolCalls() {
			content := ""
			if resp.Content != nil {
				content = *resp.Content
			}
			return content, nil
		}

		calls := make([]tools.ToolCall, len(resp.ToolCalls))
		for i, tc := range resp.ToolCalls {
			calls[i] = tools.ToolCall{CallID: tc.ID, Name: tc.Name, Args: tc.Arguments}
		}
		results := a.dispatchAll(ctx, calls)

		messages = append(messages, ToolMessages(resp.Content, calls, results)...)
		if sess != nil {
			recordToolExchange(sess, resp.Content, calls, results)
		}
	}

	log.Printf("[agent] round cap %d reached", a.MaxRounds)
	return "", ErrMaxRounds
}

// dispatchAll executes a round's tool calls concurrently. Results are
// returned in call order regardless of completion order.
func (a *Loop) dispatchAll(ctx context.Context, calls []tools.ToolCall) []tools.ToolResult {
	results := make([]tools.ToolResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call tools.ToolCall) {
			defer wg.Done()
			results[i] = a.Tools.Dispatch(ctx, call)
		}(i, call)
	}
	wg.Wait()
	return results
}

func (a *Loop) chat(ctx context.Context, messages []map[string]any) (*providers.LLMResponse, error) {
	if a.CompletionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.CompletionTimeout)
		defer cancel()
	}
	return a.Provider.Chat(ctx, providers.ChatRequest{
		Messages:    messages,
		Tools:       a.Tools.Schemas(),
		Model:       a.Model,
		MaxTokens:   a.MaxTokens,
		Temperature: a.Temperature,
	})
}

// recordToolExchange appends the audit entries for one tool round.
func recordToolExchange(sess *session.Session, content *string, calls []tools.ToolCall, results []tools.ToolResult) {
	assistantContent := ""
	if content != nil {
		assistantContent = *content
	}
	var wireCalls []map[string]any
	for _, call := range calls {
		wireCalls = append(wireCalls, map[string]any{
			"id":        call.CallID,
			"name":      call.Name,
			"arguments": call.Args,
		})
	}
	entries := make([]session.Message, len(results))
	for i, res := range results {
		entries[i] = session.Message{
			Role:    "tool",
			Content: res.Content,
			Extra: map[string]any{
				"tool_call_id": res.CallID,
				"name":         res.Name,
				"status":       res.Status,
			},
		}
	}
	sess.AppendToolExchange(assistantContent, wireCalls, entries)
}

// ProcessInbound handles one channel message end to end and publishes the
// reply on the bus.
func (a *Loop) ProcessInbound(ctx context.Context, msg bus.InboundMessage) error {
	reply, err := a.respond(ctx, msg.SessionKey(), msg.Content)
	if err != nil {
		return err
	}
	a.Bus.PublishOutbound(bus.OutboundMessage{
		BotID:   msg.BotID,
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: reply,
	})
	return nil
}

// ProcessDirect handles a message without a channel (CLI usage) and returns
// the reply.
func (a *Loop) ProcessDirect(ctx context.Context, content, sessionKey string) (string, error) {
	if sessionKey == "" {
		sessionKey = "cli:direct"
	}
	return a.respond(ctx, sessionKey, content)
}

// respond runs one full turn: assemble, loop, persist. Completion failures
// and the round cap degrade to fixed user-facing replies; the user turn is
// still persisted so the conversation record stays complete.
func (a *Loop) respond(ctx context.Context, sessionKey, content string) (string, error) {
	sess := a.Sessions.GetOrCreate(sessionKey)
	messages := a.Context.BuildMessages(ctx, sess, content, a.HistoryLimit)
	sess.Append("user", content)

	reply, err := a.runRounds(ctx, messages, sess)
	switch {
	case errors.Is(err, ErrMaxRounds):
		reply = capReply
	case err != nil:
		log.Printf("[agent] completion failed for %s: %v", sessionKey, err)
		reply = apologyReply
	case reply == "":
		reply = "Done."
	}

	sess.Append("assistant", reply)
	if err := a.Sessions.Save(sess); err != nil {
		log.Printf("[agent] session save failed for %s: %v", sessionKey, err)
	}
	return reply, nil
}
