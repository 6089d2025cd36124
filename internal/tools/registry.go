package tools

import (
	"context"
	"log"
	"sync"
	"time"
)

// Registry holds the capabilities available to one bot instance.
// It is side-effect-free beyond dispatch; capability side effects belong to
// the capabilities themselves.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	timeout time.Duration
}

// NewRegistry creates an empty tool registry. timeout bounds each dispatch;
// zero means no per-call deadline.
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		timeout: timeout,
	}
}

// Register adds a capability under its name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get returns a capability by name, or nil if not registered.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// All returns all registered capabilities.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		result = append(result, t)
	}
	return result
}

// Names returns the registered capability names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Schemas returns function-call schemas for all registered capabilities.
func (r *Registry) Schemas() []map[string]any {
	all := r.All()
	schemas := make([]map[string]any, len(all))
	for i, t := range all {
		schemas[i] = ToSchema(t)
	}
	return schemas
}

// Dispatch resolves, validates, and executes one tool call. Every failure
// mode — unknown capability, schema violation, execution fault, panic,
// timeout — is captured as an error ToolResult; Dispatch never returns an
// error and never panics.
func (r *Registry) Dispatch(ctx context.Context, call ToolCall) ToolResult {
	tool := r.Get(call.Name)
	if tool == nil {
		return errResult(call, "unknown tool %q", call.Name)
	}

	if err := ValidateArgs(tool.Parameters(), call.Args); err != nil {
		return errResult(call, "invalid arguments for %s: %v", call.Name, err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	content, err := r.invoke(ctx, tool, call.Args)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errResult(call, "%s timed out after %v", call.Name, r.timeout)
		}
		return errResult(call, "%v", err)
	}
	return okResult(call, content)
}

// invoke runs the capability body, converting panics to errors.
func (r *Registry) invoke(ctx context.Context, tool Tool, args map[string]any) (content string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[tools] %s panicked: %v", tool.Name(), rec)
			err = &panicError{tool: tool.Name(), value: rec}
		}
	}()
	return tool.Execute(ctx, args)
}

type panicError struct {
	tool  string
	value any
}

func (e *panicError) Error() string {
	return "tool " + e.tool + " failed internally"
}
