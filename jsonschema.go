package propria

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// TemplateSchema compiles a template's descriptive fields into a resolved
// JSON schema. Used by the opt-in value validation path; the default service
// behavior stores values without any structural check.
func TemplateSchema(template *PropertyTemplate) (*jsonschema.Resolved, error) {
	if template == nil {
		return nil, fmt.Errorf("template cannot be nil")
	}

	schemaMap := map[string]any{}
	if template.Type != "" {
		schemaMap["type"] = template.Type
	}
	if template.Format != "" {
		schemaMap["format"] = template.Format
	}
	if len(template.PossibleValues) > 0 {
		enum := make([]any, 0, len(template.PossibleValues))
		for _, v := range template.PossibleValues {
			enum = append(enum, v)
		}
		schemaMap["enum"] = enum
	}
	if template.DefaultValue != nil {
		schemaMap["default"] = template.DefaultValue
	}

	schemaBytes, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema for template %s: %w", template.Identifier, err)
	}

	var schema jsonschema.Schema
	if err := json.Unmarshal(schemaBytes, &schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into jsonschema.Schema: %w", err)
	}

	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve schema for template %s: %w", template.Identifier, err)
	}

	return resolved, nil
}

// ValidateValue checks a value against the template's compiled schema.
func ValidateValue(template *PropertyTemplate, value any) error {
	resolved, err := TemplateSchema(template)
	if err != nil {
		return err
	}

	if err := resolved.Validate(value); err != nil {
		return NewValueSchemaViolationError(template.Identifier, err)
	}

	return nil
}
