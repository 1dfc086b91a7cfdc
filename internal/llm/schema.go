package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// structuredShape describes the object the structuring prompt asks for.
// schemaName may be a single label or a list of labels.
var structuredShape = map[string]any{
	"type":     "object",
	"required": []string{"schemaName", "dataExtracted"},
	"properties": map[string]any{
		"schemaName": map[string]any{
			"oneOf": []any{
				map[string]any{"type": "string", "minLength": 1},
				map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
		},
		"dataExtracted": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"key", "value"},
				"properties": map[string]any{
					"key": map[string]any{"type": "string"},
				},
			},
		},
	},
}

var (
	shapeOnce   sync.Once
	shapeSchema *jsonschema.Schema
	shapeErr    error
)

func compiledShape() (*jsonschema.Schema, error) {
	shapeOnce.Do(func() {
		shapeSchema, shapeErr = CompileSchema(structuredShape)
	})
	return shapeSchema, shapeErr
}

// CompileSchema compiles a JSON-Schema held as a generic map.
func CompileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateStructuredShape reports whether data is a {schemaName,
// dataExtracted[]} object.
func ValidateStructuredShape(data []byte) error {
	schema, err := compiledShape()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
