package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaToMap_Nil(t *testing.T) {
	m, err := SchemaToMap(nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}, m)
}

func TestSchemaToMap_FillsMissingType(t *testing.T) {
	m, err := SchemaToMap(map[string]any{
		"properties": map[string]any{
			"question": map[string]any{
				"type": "string",
			},
			"metadata": map[string]any{
				"description": "no type here",
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{
				"type": "string",
			},
			"metadata": map[string]any{
				"type":        "object",
				"description": "no type here",
			},
		},
	}, m)
}

func TestSchemaToMap_RecursesIntoItems(t *testing.T) {
	m, err := SchemaToMap(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"entries": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"value": map[string]any{
							"description": "untyped",
						},
					},
				},
			},
		},
	})
	require.NoError(t, err)

	entries := m["properties"].(map[string]any)["entries"].(map[string]any)
	value := entries["items"].(map[string]any)["properties"].(map[string]any)["value"].(map[string]any)
	assert.Equal(t, "object", value["type"])
}

func TestSchemaFor(t *testing.T) {
	type args struct {
		Question string `json:"question" jsonschema:"The question to look up"`
	}

	schema, err := SchemaFor[args]()
	require.NoError(t, err)

	m, err := SchemaToMap(schema)
	require.NoError(t, err)

	props, ok := m["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "question")
}

func TestNewHandler_ParsesArguments(t *testing.T) {
	type args struct {
		Name string `json:"name"`
	}

	handler := NewHandler(func(_ context.Context, a args) (*ToolCallResult, error) {
		return &ToolCallResult{Output: "hello " + a.Name}, nil
	})

	res, err := handler(t.Context(), ToolCall{
		ID:       "call_1",
		Function: FunctionCall{Name: "greet", Arguments: `{"name":"Sarah"}`},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello Sarah", res.Output)
}

func TestNewHandler_InvalidArguments(t *testing.T) {
	type args struct {
		Name string `json:"name"`
	}

	handler := NewHandler(func(_ context.Context, a args) (*ToolCallResult, error) {
		return &ToolCallResult{}, nil
	})

	_, err := handler(t.Context(), ToolCall{
		Function: FunctionCall{Name: "greet", Arguments: `{not json`},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "greet")
}
