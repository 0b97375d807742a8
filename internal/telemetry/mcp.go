package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"mcp-tools-go/internal/tools"
)

// ToolRegistryWrapper wraps a tool registry to add telemetry
type ToolRegistryWrapper struct {
	*tools.Registry
	metrics *Metrics
}

// NewToolRegistryWrapper creates a new telemetry-aware tool registry wrapper
func NewToolRegistryWrapper(registry *tools.Registry, metrics *Metrics) *ToolRegistryWrapper {
	return &ToolRegistryWrapper{
		Registry: registry,
		metrics:  metrics,
	}
}

// Call wraps the original Call to add telemetry
func (w *ToolRegistryWrapper) Call(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	start := time.Now()

	result, err := w.Registry.Call(ctx, name, args)

	status := "success"
	if err != nil {
		status = "error"
	}
	w.metrics.RecordToolExecution(name, status, time.Since(start))

	return result, err
}
