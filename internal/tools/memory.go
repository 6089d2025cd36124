package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/lunabot-ai/lunabot/internal/memory"
)

// memoryScope resolves the service namespace for a call: the bot's own
// namespace, optionally narrowed to a per-user partition. Cross-bot reads are
// impossible because the bot namespace is always the prefix.
func memoryScope(namespace string, args map[string]any) string {
	if userID, _ := args["user_id"].(string); userID != "" {
		return namespace + ":" + userID
	}
	return namespace
}

// StoreMemoryTool persists a memory in the external memory service.
type StoreMemoryTool struct {
	Store     memory.Store
	Namespace string
}

func (t *StoreMemoryTool) Name() string { return "store_memory" }
func (t *StoreMemoryTool) Description() string {
	return "Store a long-term memory. Use user_id to keep memories per user."
}
func (t *StoreMemoryTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{"type": "string", "description": "The memory content to store"},
			"user_id": map[string]any{"type": "string", "description": "Optional user the memory belongs to"},
		},
		"required": []string{"content"},
	}
}

func (t *StoreMemoryTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	content, _ := args["content"].(string)
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("content is empty")
	}
	id, err := t.Store.Store(ctx, memoryScope(t.Namespace, args), content, nil)
	if err != nil {
		return "", fmt.Errorf("store memory: %w", err)
	}
	if id == "" {
		return "Memory stored", nil
	}
	return fmt.Sprintf("Memory stored (id: %s)", id), nil
}

// SearchMemoriesTool searches the bot's memory namespace.
type SearchMemoriesTool struct {
	Store     memory.Store
	Namespace string
	Limit     int
}

func (t *SearchMemoriesTool) Name() string { return "search_memories" }
func (t *SearchMemoriesTool) Description() string {
	return "Search stored memories by semantic similarity."
}
func (t *SearchMemoriesTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":   map[string]any{"type": "string", "description": "What to search for"},
			"user_id": map[string]any{"type": "string", "description": "Optional user scope"},
			"limit":   map[string]any{"type": "integer", "minimum": 1, "maximum": 20},
		},
		"required": []string{"query"},
	}
}

func (t *SearchMemoriesTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	limit := t.Limit
	if limit == 0 {
		limit = 5
	}
	if l, ok := args["limit"].(float64); ok && l >= 1 {
		limit = int(l)
	}

	entries, err := t.Store.Search(ctx, memoryScope(t.Namespace, args), query, limit)
	if err != nil {
		return "", fmt.Errorf("search memories: %w", err)
	}
	if len(entries) == 0 {
		return "No matching memories found.", nil
	}

	var lines []string
	for i, e := range entries {
		lines = append(lines, fmt.Sprintf("%d. [%.2f] %s", i+1, e.Score, e.Content))
	}
	return strings.Join(lines, "\n"), nil
}

// ListMemoriesTool lists stored memories in the namespace.
type ListMemoriesTool struct {
	Store     memory.Store
	Namespace string
}

func (t *ListMemoriesTool) Name() string        { return "list_memories" }
func (t *ListMemoriesTool) Description() string { return "List stored memories." }
func (t *ListMemoriesTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"user_id": map[string]any{"type": "string", "description": "Optional user scope"},
			"limit":   map[string]any{"type": "integer", "minimum": 1, "maximum": 100},
		},
	}
}

func (t *ListMemoriesTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	limit := 20
	if l, ok := args["limit"].(float64); ok && l >= 1 {
		limit = int(l)
	}
	entries, err := t.Store.List(ctx, memoryScope(t.Namespace, args), limit)
	if err != nil {
		return "", fmt.Errorf("list memories: %w", err)
	}
	if len(entries) == 0 {
		return "No memories stored.", nil
	}
	var lines []string
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("- (%s) %s", e.ID, e.Content))
	}
	return strings.Join(lines, "\n"), nil
}

// DeleteMemoryTool removes a memory by id.
type DeleteMemoryTool struct {
	Store memory.Store
}

func (t *DeleteMemoryTool) Name() string        { return "delete_memory" }
func (t *DeleteMemoryTool) Description() string { return "Delete a stored memory by its id." }
func (t *DeleteMemoryTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"memory_id": map[string]any{"type": "string", "description": "The id of the memory to delete"},
		},
		"required": []string{"memory_id"},
	}
}

func (t *DeleteMemoryTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	id, _ := args["memory_id"].(string)
	deleted, err := t.Store.Delete(ctx, id)
	if err != nil {
		return "", fmt.Errorf("delete memory: %w", err)
	}
	if !deleted {
		return fmt.Sprintf("Memory %s not found", id), nil
	}
	return fmt.Sprintf("Memory %s deleted", id), nil
}
