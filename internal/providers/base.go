// Package providers defines the completion-service interface and its HTTP
// implementation. The service is a black box: a message list plus tool
// schemas in, a text answer or tool-call requests out.
package providers

import "context"

// ToolCallRequest is a tool invocation requested by the model.
type ToolCallRequest struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// LLMResponse is the standardized completion-service response.
type LLMResponse struct {
	Content      *string           `json:"content"`
	ToolCalls    []ToolCallRequest `json:"tool_calls,omitempty"`
	FinishReason string            `json:"finish_reason"`
	Usage        map[string]int    `json:"usage,omitempty"`
}

// HasToolCalls reports whether the response requests tool execution.
func (r *LLMResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// ChatRequest holds all parameters for one completion call.
type ChatRequest struct {
	Messages    []map[string]any `json:"messages"`
	Tools       []map[string]any `json:"tools,omitempty"`
	Model       string           `json:"model,omitempty"`
	MaxTokens   int              `json:"max_tokens"`
	Temperature float64          `json:"temperature"`
}

// LLMProvider is the interface the agent loop depends on.
type LLMProvider interface {
	// Chat sends a chat completion request. Transport errors, rate limits
	// and malformed responses all surface as a single error.
	Chat(ctx context.Context, req ChatRequest) (*LLMResponse, error)

	// DefaultModel returns the default model identifier.
	DefaultModel() string
}
