package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// DefaultTool is a base implementation of the Tool interface that can be embedded in other tools.
type DefaultTool struct {
	name        string
	description string
	inputSchema map[string]any
	annotations *mcp.ToolAnnotations
}

// NewDefaultTool creates a new DefaultTool with the given name, description and
// JSON schema for its arguments. A nil schema accepts an empty object.
func NewDefaultTool(name, description string, inputSchema map[string]any) *DefaultTool {
	if inputSchema == nil {
		inputSchema = ObjectSchema(nil)
	}
	return &DefaultTool{
		name:        name,
		description: description,
		inputSchema: inputSchema,
	}
}

// WithAnnotations sets the behavioural hints reported to clients.
func (t *DefaultTool) WithAnnotations(a *mcp.ToolAnnotations) *DefaultTool {
	t.annotations = a
	return t
}

// Name returns the name of the tool.
func (t *DefaultTool) Name() string {
	return t.name
}

// Description returns the human-readable description of the tool.
func (t *DefaultTool) Description() string {
	return t.description
}

// Call is the default implementation of the Tool interface.
// Tools should override this method with their specific implementation.
func (t *DefaultTool) Call(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	return nil, fmt.Errorf("method not implemented for tool: %s", t.name)
}

// Definition returns the tool definition in MCP format.
func (t *DefaultTool) Definition() *mcp.Tool {
	annotations := t.annotations
	if annotations == nil {
		annotations = &mcp.ToolAnnotations{Title: fmt.Sprintf("%s Tool", t.name)}
	}
	return &mcp.Tool{
		Name:        t.name,
		Description: t.description,
		InputSchema: t.inputSchema,
		Annotations: annotations,
	}
}

// ObjectSchema builds an object schema from property schemas.
// Required names the properties that must be present.
func ObjectSchema(properties map[string]any, required ...string) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Bool returns a pointer to b, for the optional hints in mcp.ToolAnnotations.
func Bool(b bool) *bool {
	return &b
}
