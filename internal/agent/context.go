package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lunabot-ai/lunabot/internal/memory"
	"github.com/lunabot-ai/lunabot/internal/session"
	"github.com/lunabot-ai/lunabot/internal/tools"
)

// bootstrapFiles are loaded from the workspace root, in order, into the
// persona section of the system prompt.
var bootstrapFiles = []string{"AGENTS.md", "SOUL.md", "USER.md"}

// ContextBuilder assembles the message list sent to the model.
type ContextBuilder struct {
	Workspace   string
	Skills      *SkillsLoader
	Memories    memory.Searcher
	Namespace   string
	SearchLimit int
}

// NewContextBuilder creates a ContextBuilder rooted at a workspace.
func NewContextBuilder(workspace string, skills *SkillsLoader, mem memory.Searcher, namespace string, searchLimit int) *ContextBuilder {
	if searchLimit <= 0 {
		searchLimit = 5
	}
	return &ContextBuilder{
		Workspace:   workspace,
		Skills:      skills,
		Memories:    mem,
		Namespace:   namespace,
		SearchLimit: searchLimit,
	}
}

// BuildSystemPrompt composes identity, persona files and skills.
func (c *ContextBuilder) BuildSystemPrompt() string {
	var sb strings.Builder

	sb.WriteString("# Lunabot\n\n")
	sb.WriteString("You are a helpful personal assistant.\n\n")
	sb.WriteString(fmt.Sprintf("## Runtime\n\nWorkspace: %s\nCurrent time: %s\n",
		c.Workspace, time.Now().Format("2006-01-02 15:04:05 MST")))

	for _, name := range bootstrapFiles {
		data, err := os.ReadFile(filepath.Join(c.Workspace, name))
		if err != nil || len(data) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("\n## %s\n\n%s\n", name, strings.TrimSpace(string(data))))
	}

	if c.Skills != nil {
		if always := c.Skills.AlwaysContent(); always != "" {
			sb.WriteString("\n" + always + "\n")
		}
		if summary := c.Skills.Summary(); summary != "" {
			sb.WriteString("\n## Available Skills\n\n")
			sb.WriteString("Read a skill file with the read_file tool when a task needs it:\n\n")
			sb.WriteString(summary + "\n")
		}
	}

	return sb.String()
}

// BuildMessages assembles the full message list for a completion:
// system prompt, retrieved memories, session history, then the user turn.
func (c *ContextBuilder) BuildMessages(ctx context.Context, sess *session.Session, userContent string, historyLimit int) []map[string]any {
	messages := []map[string]any{
		{"role": "system", "content": c.BuildSystemPrompt()},
	}

	if recalled := c.recallMemories(ctx, userContent); recalled != "" {
		messages = append(messages, map[string]any{
			"role":    "system",
			"content": "Relevant memories (contextual knowledge, not conversation):\n" + recalled,
		})
	}

	if sess != nil {
		messages = append(messages, sess.History(historyLimit)...)
	}

	messages = append(messages, map[string]any{"role": "user", "content": userContent})
	return messages
}

// recallMemories fetches memories relevant to the user turn. Failures
// degrade to no memories with a single log line.
func (c *ContextBuilder) recallMemories(ctx context.Context, query string) string {
	if c.Memories == nil || strings.TrimSpace(query) == "" {
		return ""
	}
	entries, err := c.Memories.Search(ctx, c.Namespace, query, c.SearchLimit)
	if err != nil {
		log.Printf("[context] memory recall unavailable: %v", err)
		return ""
	}
	var lines []string
	for _, e := range entries {
		lines = append(lines, "- "+e.Content)
	}
	return strings.Join(lines, "\n")
}

func marshalArgs(args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// ToolMessages converts a tool exchange into provider wire messages.
func ToolMessages(content *string, calls []tools.ToolCall, results []tools.ToolResult) []map[string]any {
	assistant := map[string]any{"role": "assistant"}
	if content != nil && *content != "" {
		assistant["content"] = *content
	} else {
		assistant["content"] = ""
	}

	var wireCalls []map[string]any
	for _, call := range calls {
		wireCalls = append(wireCalls, map[string]any{
			"id":   call.CallID,
			"type": "function",
			"function": map[string]any{
				"name":      call.Name,
				"arguments": marshalArgs(call.Args),
			},
		})
	}
	assistant["tool_calls"] = wireCalls

	messages := []map[string]any{assistant}
	for _, res := range results {
		messages = append(messages, map[string]any{
			"role":         "tool",
			"tool_call_id": res.CallID,
			"content":      res.Content,
		})
	}
	return messages
}
