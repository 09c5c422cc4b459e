package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolCall is a function call requested by the model.
type ToolCall struct {
	// Index orders partial tool calls while streaming.
	Index    *int         `json:"index,omitempty"`
	ID       string       `json:"id"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// FunctionDefinition describes a tool to the model.
type FunctionDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
	Strict      bool   `json:"strict,omitempty"`
}

// Handler executes a tool call and returns its result.
type Handler func(ctx context.Context, call ToolCall) (*ToolCallResult, error)

type Tool struct {
	Function FunctionDefinition
	Handler  Handler `json:"-"`
}

// ToolCallResult is what a tool hands back to the model.
type ToolCallResult struct {
	Output  string `json:"output"`
	IsError bool   `json:"is_error,omitempty"`
	// Meta carries structured data for UIs; never sent to the model.
	Meta any `json:"-"`
}

func ResultError(msg string) *ToolCallResult {
	return &ToolCallResult{Output: msg, IsError: true}
}

// ToolSet groups related tools with shared state and lifecycle.
type ToolSet interface {
	Tools(ctx context.Context) ([]Tool, error)
	Instructions() string
}

// Startable is implemented by toolsets that hold external resources.
type Startable interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// BaseToolSet provides no-op defaults for optional ToolSet behavior.
type BaseToolSet struct{}

func (BaseToolSet) Instructions() string { return "" }

// NewHandler adapts a typed handler to the raw JSON argument interface.
func NewHandler[T any](fn func(ctx context.Context, args T) (*ToolCallResult, error)) Handler {
	return func(ctx context.Context, call ToolCall) (*ToolCallResult, error) {
		var args T
		if raw := call.Function.Arguments; raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("parsing arguments for %s: %w", call.Function.Name, err)
			}
		}
		return fn(ctx, args)
	}
}
