package framework

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrToolNotFound is returned when a registry lookup misses.
var ErrToolNotFound = errors.New("tool not found")

// Tool defines capabilities accessible to agents. The metadata doubles as a
// schema that LLMs can reason about when deciding which tool to call.
type Tool interface {
	Name() string
	Description() string
	Category() string
	Parameters() []ToolParameter
	Execute(ctx context.Context, state *Context, args map[string]interface{}) (*ToolResult, error)
}

// ToolParameter describes an argument the tool accepts.
type ToolParameter struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Default     interface{}
}

// ToolResult is returned by every tool execution. A failed result is still an
// observation: agents feed Error back to the model instead of aborting.
type ToolResult struct {
	Success  bool
	Data     map[string]interface{}
	Error    string
	Metadata map[string]interface{}
}

// FailedToolResult wraps err as an unsuccessful observation.
func FailedToolResult(err error) *ToolResult {
	if err == nil {
		err = errors.New("unknown tool failure")
	}
	return &ToolResult{Success: false, Error: err.Error()}
}

// ToolRegistry maps stable names to tools. Agents only ever resolve calls
// through a registry, so a model can select among a fixed set but never
// reach anything else.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry builds a registry instance.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry.
func (r *ToolRegistry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; exists {
		return fmt.Errorf("tool %s already registered", tool.Name())
	}
	r.tools[tool.Name()] = tool
	return nil
}

// Get fetches a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// All returns all registered tools ordered by name so prompts are stable.
func (r *ToolRegistry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		res = append(res, t)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name() < res[j].Name() })
	return res
}

// Names lists registered tool names in order.
func (r *ToolRegistry) Names() []string {
	tools := r.All()
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name())
	}
	return names
}

// Invoke resolves name and runs the tool. Unknown tools, Go errors and nil
// results all come back as failed observations.
func (r *ToolRegistry) Invoke(ctx context.Context, state *Context, call ToolCall) *ToolResult {
	tool, ok := r.Get(call.Name)
	if !ok {
		return FailedToolResult(fmt.Errorf("%w: %s (available: %v)", ErrToolNotFound, call.Name, r.Names()))
	}
	args := call.Args
	if args == nil {
		args = map[string]interface{}{}
	}
	res, err := tool.Execute(ctx, state, args)
	if err != nil {
		return FailedToolResult(fmt.Errorf("%s: %w", call.Name, err))
	}
	if res == nil {
		return FailedToolResult(fmt.Errorf("%s returned no result", call.Name))
	}
	return res
}
