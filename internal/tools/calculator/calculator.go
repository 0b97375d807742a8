// Package calculator exposes the precision arithmetic evaluator as the
// add and subtract tools.
package calculator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"mcp-tools-go/internal/arithmetic"
	"mcp-tools-go/internal/tools"
)

// Args represents the arguments of the add and subtract tools.
type Args struct {
	A json.Number `json:"a"`
	B json.Number `json:"b"`
}

// Result is the JSON body returned by a successful call.
type Result struct {
	Result float64 `json:"result"`
}

// Options describes the active configuration echoed in tool descriptions.
type Options struct {
	LogLevel     string
	RawPrecision string
}

// Description returns the description shared by both tools.
func (o Options) Description() string {
	return fmt.Sprintf("LOG_LEVEL=%s, NUMBER_PRECISION=%s", o.LogLevel, o.RawPrecision)
}

// Tool runs one arithmetic operation through the evaluator.
type Tool struct {
	*tools.DefaultTool
	op        arithmetic.Operation
	evaluator *arithmetic.Evaluator
	logger    zerolog.Logger
}

// NewAddTool creates the add tool.
func NewAddTool(evaluator *arithmetic.Evaluator, opts Options, logger zerolog.Logger) *Tool {
	return newTool(arithmetic.OpAdd, evaluator, opts, logger)
}

// NewSubtractTool creates the subtract tool.
func NewSubtractTool(evaluator *arithmetic.Evaluator, opts Options, logger zerolog.Logger) *Tool {
	return newTool(arithmetic.OpSubtract, evaluator, opts, logger)
}

func newTool(op arithmetic.Operation, evaluator *arithmetic.Evaluator, opts Options, logger zerolog.Logger) *Tool {
	schema := tools.ObjectSchema(map[string]any{
		"a": map[string]any{"type": "number", "title": "A"},
		"b": map[string]any{"type": "number", "title": "B"},
	}, "a", "b")

	base := tools.NewDefaultTool(op.String(), opts.Description(), schema).
		WithAnnotations(&mcp.ToolAnnotations{
			Title:          op.String(),
			ReadOnlyHint:   true,
			IdempotentHint: true,
			OpenWorldHint:  tools.Bool(false),
		})

	return &Tool{
		DefaultTool: base,
		op:          op,
		evaluator:   evaluator,
		logger:      logger.With().Str("component", "calculator").Str("tool", op.String()).Logger(),
	}
}

// Call parses a and b, evaluates the operation and returns {"result": n}.
func (t *Tool) Call(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	a, b, err := parseArgs(args)
	if err != nil {
		t.logger.Debug().Err(err).Msg("Rejected arguments")
		return nil, err
	}

	result, err := t.evaluator.Evaluate(t.op, a, b)
	if err != nil {
		return nil, tools.InvalidArguments("%v", err)
	}

	return json.Marshal(Result{Result: result})
}

func parseArgs(raw json.RawMessage) (arithmetic.Operand, arithmetic.Operand, error) {
	var zero arithmetic.Operand
	if len(bytes.TrimSpace(raw)) == 0 {
		return zero, zero, tools.InvalidArguments("arguments a and b are required")
	}

	var params Args
	if err := json.Unmarshal(raw, &params); err != nil {
		return zero, zero, tools.InvalidArguments("invalid arguments: %v", err)
	}

	a, err := operand("a", params.A)
	if err != nil {
		return zero, zero, err
	}
	b, err := operand("b", params.B)
	if err != nil {
		return zero, zero, err
	}
	return a, b, nil
}

func operand(name string, n json.Number) (arithmetic.Operand, error) {
	if n == "" {
		return arithmetic.Operand{}, tools.InvalidArguments("argument %s is required", name)
	}
	op, err := arithmetic.ParseOperand(n.String())
	if err != nil {
		return arithmetic.Operand{}, tools.InvalidArguments("argument %s must be a number", name)
	}
	return op, nil
}
