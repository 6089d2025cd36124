package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lunabot-ai/lunabot/internal/providers"
	"github.com/lunabot-ai/lunabot/internal/tools"
)

// DefaultMaxDepth bounds nested subagent delegation.
const DefaultMaxDepth = 3

// SubagentManager runs delegated tasks synchronously. The parent's spawn
// call blocks until the child loop returns its final text. Depth counts
// delegation levels; a manager at MaxDepth refuses to spawn before any
// completion call is made.
type SubagentManager struct {
	Provider    providers.LLMProvider
	Workspace   string
	Model       string
	MaxTokens   int
	Temperature float64
	MaxRounds   int
	ToolTimeout time.Duration

	Depth    int
	MaxDepth int
}

// NewSubagentManager creates a top-level SubagentManager.
func NewSubagentManager(provider providers.LLMProvider, workspace, model string) *SubagentManager {
	return &SubagentManager{
		Provider:    provider,
		Workspace:   workspace,
		Model:       model,
		MaxTokens:   4096,
		Temperature: 0.7,
		MaxRounds:   15,
		MaxDepth:    DefaultMaxDepth,
	}
}

// Spawn runs a subagent to completion and returns its final text.
func (sm *SubagentManager) Spawn(ctx context.Context, task string) (string, error) {
	if sm.Depth >= sm.MaxDepth {
		return "", fmt.Errorf("subagent depth limit %d reached", sm.MaxDepth)
	}

	id := uuid.NewString()[:8]

	loop := &Loop{
		Provider:    sm.Provider,
		Tools:       sm.childRegistry(),
		Model:       sm.Model,
		MaxTokens:   sm.MaxTokens,
		Temperature: sm.Temperature,
		MaxRounds:   sm.MaxRounds,
	}

	messages := []map[string]any{
		{"role": "system", "content": sm.childPrompt()},
		{"role": "user", "content": task},
	}

	result, err := loop.runRounds(ctx, messages, nil)
	if err != nil {
		return "", fmt.Errorf("subagent %s: %w", id, err)
	}
	if result == "" {
		result = "Task completed but no response was generated."
	}
	return result, nil
}

// childRegistry builds the restricted capability set for a child: workspace
// files, web fetch, and further delegation one level deeper.
func (sm *SubagentManager) childRegistry() *tools.Registry {
	registry := tools.NewRegistry(sm.ToolTimeout)
	registry.Register(&tools.ReadFileTool{AllowedDir: sm.Workspace})
	registry.Register(&tools.WriteFileTool{AllowedDir: sm.Workspace})
	registry.Register(&tools.ListDirTool{AllowedDir: sm.Workspace})
	registry.Register(&tools.WebFetchTool{})

	child := &SubagentManager{
		Provider:    sm.Provider,
		Workspace:   sm.Workspace,
		Model:       sm.Model,
		MaxTokens:   sm.MaxTokens,
		Temperature: sm.Temperature,
		MaxRounds:   sm.MaxRounds,
		ToolTimeout: sm.ToolTimeout,
		Depth:       sm.Depth + 1,
		MaxDepth:    sm.MaxDepth,
	}
	registry.Register(&tools.SpawnTool{Spawner: child})
	return registry
}

func (sm *SubagentManager) childPrompt() string {
	return fmt.Sprintf(`# Subagent

You are a subagent running a single delegated task.

## Rules
1. Stay focused, complete only the assigned task
2. Your final response is returned verbatim to the agent that spawned you
3. Be concise but informative

## What You Can Do
- Read and write files in the workspace
- Fetch web pages
- Delegate a sub-task with the spawn tool if it is truly separable

## Workspace
%s`, sm.Workspace)
}
