package tool

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// schemaValidator compiles tool parameter schemas once and checks raw
// argument payloads against them.
type schemaValidator struct {
	mu    sync.Mutex
	cache map[string]*gojsonschema.Schema
}

func newSchemaValidator() *schemaValidator {
	return &schemaValidator{cache: make(map[string]*gojsonschema.Schema)}
}

// validate returns a human readable violation description when args do not
// satisfy the schema, or an internal error when the schema itself is broken.
func (v *schemaValidator) validate(def Definition, args json.RawMessage) (string, error) {
	schema, err := v.compiled(string(def.Parameters))
	if err != nil {
		return "", fmt.Errorf("invalid parameter schema for tool %s: %w", def.Name, err)
	}

	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		// Malformed JSON counts as a schema violation, not an internal error.
		return fmt.Sprintf("arguments are not valid JSON: %v", err), nil
	}
	if result.Valid() {
		return "", nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return strings.Join(violations, "; "), nil
}

func (v *schemaValidator) compiled(schemaJSON string) (*gojsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if schema, ok := v.cache[schemaJSON]; ok {
		return schema, nil
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, err
	}
	v.cache[schemaJSON] = schema
	return schema, nil
}
