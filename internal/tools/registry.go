package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Registry manages the collection of available tools.
type Registry struct {
	tools map[string]Tool
	mu    sync.RWMutex
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a new tool to the registry. A tool with the same name is replaced.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tools[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// List returns all registered tools.
func (r *Registry) List() map[string]Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make(map[string]Tool, len(r.tools))
	for name, tool := range r.tools {
		tools[name] = tool
	}
	return tools
}

// Definitions returns the definitions of all registered tools sorted by name.
func (r *Registry) Definitions() []*mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*mcp.Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, tool.Definition())
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Name < defs[j].Name
	})
	return defs
}

// Call executes a tool with the given arguments and context.
func (r *Registry) Call(ctx context.Context, toolName string, args json.RawMessage) (json.RawMessage, error) {
	tool, exists := r.Get(toolName)
	if !exists {
		return nil, &Error{Code: ErrToolNotFound, Message: fmt.Sprintf("tool not found: %s", toolName)}
	}

	return tool.Call(ctx, args)
}

// Error codes for tool execution.
const (
	ErrToolNotFound     = "tool_not_found"
	ErrInvalidArguments = "invalid_arguments"
)

// Error represents a tool execution error.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// InvalidArguments returns an error rejecting the arguments of a call.
func InvalidArguments(format string, args ...any) *Error {
	return &Error{Code: ErrInvalidArguments, Message: fmt.Sprintf(format, args...)}
}
