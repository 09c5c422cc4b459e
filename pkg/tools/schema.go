package tools

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// SchemaFor derives a JSON schema from a Go argument struct.
func SchemaFor[T any]() (any, error) {
	return jsonschema.For[T](&jsonschema.ForOptions{})
}

func MustSchemaFor[T any]() any {
	schema, err := SchemaFor[T]()
	if err != nil {
		panic(err)
	}
	return schema
}

// SchemaToMap normalizes a schema into a plain map. Providers reject
// schemas without a top-level type or properties object, so both are
// filled in when missing, and every property gets a type, recursively.
func SchemaToMap(params any) (map[string]any, error) {
	m := map[string]any{}
	if params != nil {
		buf, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(buf, &m); err != nil {
			return nil, err
		}
	}

	if m["type"] == nil {
		m["type"] = "object"
	}
	if m["properties"] == nil {
		m["properties"] = map[string]any{}
	}

	fillPropertyTypes(m)

	return m, nil
}

// fillPropertyTypes walks a schema and defaults missing property types
// to "object", descending into nested properties and array items.
func fillPropertyTypes(schema map[string]any) {
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return
	}

	for _, v := range props {
		prop, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if prop["type"] == nil {
			prop["type"] = "object"
		}
		fillPropertyTypes(prop)
		if items, ok := prop["items"].(map[string]any); ok {
			fillPropertyTypes(items)
		}
	}
}
