// Package tools defines the capability contract and the registry that
// dispatches model-requested tool calls.
package tools

import (
	"context"
	"fmt"
)

// Tool is the interface every capability implements: a name, a JSON-schema
// shaped argument contract, and an execute function.
type Tool interface {
	// Name returns the capability name used in model function calls.
	Name() string

	// Description returns what the capability does.
	Description() string

	// Parameters returns the JSON Schema for the arguments.
	Parameters() map[string]any

	// Execute runs the capability with validated arguments.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// ToolCall is a model-requested invocation, correlated by CallID within one
// completion turn.
type ToolCall struct {
	CallID string
	Name   string
	Args   map[string]any
}

// Status of a tool result.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ToolResult is the outcome of one tool call, appended to the message list
// before the next completion round.
type ToolResult struct {
	CallID  string
	Name    string
	Status  string
	Content string
}

// OK reports whether the call succeeded.
func (r ToolResult) OK() bool { return r.Status == StatusOK }

func okResult(call ToolCall, content string) ToolResult {
	return ToolResult{CallID: call.CallID, Name: call.Name, Status: StatusOK, Content: content}
}

func errResult(call ToolCall, format string, args ...any) ToolResult {
	return ToolResult{
		CallID:  call.CallID,
		Name:    call.Name,
		Status:  StatusError,
		Content: "Error: " + fmt.Sprintf(format, args...),
	}
}

// ToSchema converts a tool to OpenAI function calling format.
func ToSchema(t Tool) map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        t.Name(),
			"description": t.Description(),
			"parameters":  t.Parameters(),
		},
	}
}
