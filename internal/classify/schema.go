package classify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// responseSchema is the subset of the textClassification response we rely on.
var responseSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"predictions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"label":      map[string]any{"type": "string"},
					"confidence": map[string]any{"type": "number"},
				},
			},
		},
	},
}

var (
	compiledOnce   sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func compiledResponseSchema() (*jsonschema.Schema, error) {
	compiledOnce.Do(func() {
		b, err := json.Marshal(responseSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("classification.json", bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile("classification.json")
	})
	return compiledSchema, compileErr
}

// validateResponse checks raw against the response schema.
func validateResponse(raw []byte) error {
	schema, err := compiledResponseSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
