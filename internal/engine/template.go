package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schemas for the grading template and answer key the engine consumes.
// Validation runs once at startup so a malformed template fails fast instead
// of failing every sheet in the first batch.

var templateSchema = map[string]any{
	"type":     "object",
	"required": []any{"pageDimensions", "bubbleDimensions", "fieldBlocks"},
	"properties": map[string]any{
		"pageDimensions": map[string]any{
			"type": "array", "minItems": 2, "maxItems": 2,
			"items": map[string]any{"type": "number"},
		},
		"bubbleDimensions": map[string]any{
			"type": "array", "minItems": 2, "maxItems": 2,
			"items": map[string]any{"type": "number"},
		},
		"fieldBlocks": map[string]any{
			"type":          "object",
			"minProperties": 1,
		},
	},
}

var answerKeySchema = map[string]any{
	"type":     "object",
	"required": []any{"answers"},
	"properties": map[string]any{
		"answers": map[string]any{
			"type":          "object",
			"minProperties": 1,
		},
		"marking": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"correct":   map[string]any{"type": "number"},
				"incorrect": map[string]any{"type": "number"},
				"unmarked":  map[string]any{"type": "number"},
			},
		},
	},
}

// ValidateTemplateFiles checks the template and answer-key JSON files
// against their schemas.
func ValidateTemplateFiles(templatePath, answerKeyPath string) error {
	if err := validateFile(templatePath, templateSchema); err != nil {
		return fmt.Errorf("template %s: %w", templatePath, err)
	}
	if err := validateFile(answerKeyPath, answerKeySchema); err != nil {
		return fmt.Errorf("answer key %s: %w", answerKeyPath, err)
	}
	return nil
}

func validateFile(path string, schemaMap map[string]any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return validateJSONAgainstSchema(schemaMap, data)
}

// validateJSONAgainstSchema validates "data" against "schemaMap".
func validateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
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
