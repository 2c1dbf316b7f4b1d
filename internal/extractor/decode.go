package extractor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Veraticus/pouchspec/internal/common"
	"github.com/Veraticus/pouchspec/internal/model"
)

var designFileSchemaMap = map[string]any{
	"$schema":  "https://json-schema.org/draft/2020-12/schema",
	"type":     "object",
	"required": []any{"id", "layers"},
	"properties": map[string]any{
		"id":      map[string]any{"type": "string", "minLength": 1},
		"name":    map[string]any{"type": "string"},
		"version": map[string]any{"type": "integer", "minimum": 0},
		"layers": map[string]any{
			"type":  "array",
			"items": map[string]any{"$ref": "#/$defs/layer"},
		},
		"artboards": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"width", "height"},
				"properties": map[string]any{
					"name":   map[string]any{"type": "string"},
					"unit":   map[string]any{"type": "string"},
					"width":  map[string]any{"type": "number", "minimum": 0},
					"height": map[string]any{"type": "number", "minimum": 0},
				},
			},
		},
	},
	"$defs": map[string]any{
		"layer": map[string]any{
			"type":     "object",
			"required": []any{"name"},
			"properties": map[string]any{
				"id":      map[string]any{"type": "string"},
				"name":    map[string]any{"type": "string"},
				"type":    map[string]any{"type": "string"},
				"visible": map[string]any{"type": "boolean"},
				"locked":  map[string]any{"type": "boolean"},
				"children": map[string]any{
					"type":  "array",
					"items": map[string]any{"$ref": "#/$defs/layer"},
				},
				"texts": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":     "object",
						"required": []any{"content"},
						"properties": map[string]any{
							"id":      map[string]any{"type": "string"},
							"content": map[string]any{"type": "string"},
							"font":    map[string]any{"type": "string"},
							"position": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"x": map[string]any{"type": "number"},
									"y": map[string]any{"type": "number"},
								},
							},
						},
					},
				},
			},
		},
	},
}

var quotationSchemaMap = map[string]any{
	"$schema":  "https://json-schema.org/draft/2020-12/schema",
	"type":     "object",
	"required": []any{"id", "bagTypeId", "width", "height"},
	"properties": map[string]any{
		"id":         map[string]any{"type": "string", "minLength": 1},
		"bagTypeId":  map[string]any{"type": "string"},
		"materialId": map[string]any{"type": "string"},
		"width":      map[string]any{"type": "number", "minimum": 0},
		"height":     map[string]any{"type": "number", "minimum": 0},
		"gusset":     map[string]any{"type": "number", "minimum": 0},
		"postProcessingOptions": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
}

var (
	schemaOnce      sync.Once
	designSchema    *jsonschema.Schema
	quotationSchema *jsonschema.Schema
	schemaErr       error
)

func compileSchemas() {
	designSchema, schemaErr = compileSchema("design_file.json", designFileSchemaMap)
	if schemaErr != nil {
		return
	}
	quotationSchema, schemaErr = compileSchema("quotation.json", quotationSchemaMap)
}

func compileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema %s: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schema, nil
}

func validateAgainst(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: malformed json: %w", common.ErrInvalidInput, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
	}
	return nil
}

// DecodeDesignFile parses and shape-checks design file metadata. A
// well-formed file with no useful content is not an error.
func DecodeDesignFile(data []byte) (*model.DesignFile, error) {
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return nil, schemaErr
	}
	if err := validateAgainst(designSchema, data); err != nil {
		return nil, fmt.Errorf("design file: %w", err)
	}

	var file model.DesignFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("design file: %w: %w", common.ErrInvalidInput, err)
	}
	return &file, nil
}

// DecodeQuotation parses and shape-checks a quotation document.
func DecodeQuotation(data []byte) (*model.Quotation, error) {
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return nil, schemaErr
	}
	if err := validateAgainst(quotationSchema, data); err != nil {
		return nil, fmt.Errorf("quotation: %w", err)
	}

	var q model.Quotation
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("quotation: %w: %w", common.ErrInvalidInput, err)
	}
	return &q, nil
}
