package tools

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool is the interface that all tools must implement.
type Tool interface {
	// Name returns the name the tool is called by.
	Name() string

	// Definition returns the tool as advertised by tools/list.
	Definition() *mcp.Tool

	// Call executes the tool with the given arguments and context.
	// The arguments and return value are JSON-encoded data.
	// The context carries request-scoped values such as API overrides.
	Call(ctx context.Context, args json.RawMessage) (json.RawMessage, error)
}
