package toolexecutor

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var validParamTypes = map[string]bool{
	"string": true, "number": true, "boolean": true,
	"object": true, "array": true, "integer": true,
	"any": true,
}

// validateToolDefinition validates a tool definition
func validateToolDefinition(tool *Tool) error {
	if tool == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	if strings.TrimSpace(tool.Metadata.ID) == "" {
		return fmt.Errorf("tool id cannot be empty")
	}
	if tool.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}
	if c := tool.Metadata.Category; c != "" && !IsValidCategory(string(c)) {
		return fmt.Errorf("invalid category %s for %s", c, tool.Metadata.ID)
	}
	if rl := tool.Metadata.RateLimit; rl != nil && (rl.Requests <= 0 || rl.Period <= 0) {
		return fmt.Errorf("rate limit for %s must have positive requests and period", tool.Metadata.ID)
	}

	seen := make(map[string]bool, len(tool.Metadata.Parameters))
	for _, param := range tool.Metadata.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if seen[param.Name] {
			return fmt.Errorf("duplicate parameter %s", param.Name)
		}
		seen[param.Name] = true
		if param.Type == "" {
			return fmt.Errorf("parameter type cannot be empty for %s", param.Name)
		}
		if !validParamTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %s for %s", param.Type, param.Name)
		}
	}

	return nil
}

// generateJSONSchema generates a JSON Schema from tool parameters.
// Tools without declared parameters get no schema and accept anything.
func generateJSONSchema(meta ToolMetadata) (*gojsonschema.Schema, error) {
	if len(meta.Parameters) == 0 {
		return nil, nil
	}

	properties := make(map[string]interface{}, len(meta.Parameters))
	required := []string{}

	for _, param := range meta.Parameters {
		paramSchema := map[string]interface{}{}
		if param.Type != "any" {
			paramSchema["type"] = param.Type
		}
		if param.Description != "" {
			paramSchema["description"] = param.Description
		}
		if len(param.Enum) > 0 {
			paramSchema["enum"] = param.Enum
		}
		if param.Minimum != nil {
			paramSchema["minimum"] = *param.Minimum
		}
		if param.Maximum != nil {
			paramSchema["maximum"] = *param.Maximum
		}

		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	schemaMap := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schemaMap["required"] = required
	}

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
}

// validateParameters validates parameters against a JSON Schema
func validateParameters(schema *gojsonschema.Schema, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	if params == nil {
		params = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return err
	}

	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// applyDefaults returns a copy of params with declared defaults filled in
func applyDefaults(meta ToolMetadata, params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params)+len(meta.Parameters))
	for k, v := range params {
		out[k] = v
	}
	for _, param := range meta.Parameters {
		if param.Default == nil {
			continue
		}
		if _, ok := out[param.Name]; !ok {
			out[param.Name] = param.Default
		}
	}
	return out
}
