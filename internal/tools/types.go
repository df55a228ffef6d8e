// Package tools defines the Tool contract, the registry the agent dispatches
// through, and the built-in tools shipped with the CLI.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Executor runs one tool invocation. Input is the raw JSON object the model
// produced; it is not validated against the declared schema.
type Executor interface {
	Execute(ctx context.Context, input json.RawMessage) (string, error)
}

// ExecutorFunc adapts a plain function to Executor.
type ExecutorFunc func(ctx context.Context, input json.RawMessage) (string, error)

func (f ExecutorFunc) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	return f(ctx, input)
}

// Typed decodes the invocation input into P before calling fn. A malformed
// input surfaces as an ordinary executor error.
func Typed[P any](fn func(ctx context.Context, params P) (string, error)) Executor {
	return ExecutorFunc(func(ctx context.Context, input json.RawMessage) (string, error) {
		var params P
		if len(bytes.TrimSpace(input)) > 0 {
			if err := json.Unmarshal(input, &params); err != nil {
				return "", fmt.Errorf("invalid parameters: %w", err)
			}
		}
		return fn(ctx, params)
	})
}

// Tool represents a callable function the LLM can invoke
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Executor    Executor
}

// Declaration is the part of a Tool that is forwarded to the model.
type Declaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

func (t Tool) Declaration() Declaration {
	schema := t.InputSchema
	if schema == nil {
		schema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return Declaration{Name: t.Name, Description: t.Description, InputSchema: schema}
}
