package tools

import (
	"context"
	"fmt"
)

// Spawner delegates a task to a nested agent and blocks until its final
// answer. The spawned agent is owned entirely by the Spawner; no live
// reference to it is ever returned.
type Spawner interface {
	Spawn(ctx context.Context, task string) (string, error)
}

// SpawnTool runs a background task through a subagent. The call is
// synchronous from the model's perspective: the result payload is the
// subagent's final text.
type SpawnTool struct {
	Spawner Spawner
}

func (t *SpawnTool) Name() string { return "spawn" }
func (t *SpawnTool) Description() string {
	return "Delegate a self-contained task to a subagent and return its result."
}
func (t *SpawnTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task": map[string]any{"type": "string", "description": "A complete description of the task to perform"},
		},
		"required": []string{"task"},
	}
}

func (t *SpawnTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	task, _ := args["task"].(string)
	if t.Spawner == nil {
		return "", fmt.Errorf("subagents not configured")
	}
	result, err := t.Spawner.Spawn(ctx, task)
	if err != nil {
		return "", err
	}
	return result, nil
}
