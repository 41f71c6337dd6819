package coretools

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/harun/toolengine/pkg/toolexecutor"
)

// TextTools returns the pure text tools
func TextTools() []*toolexecutor.Tool {
	return []*toolexecutor.Tool{
		stringifyTool(),
		uppercaseTool(),
		lowercaseTool(),
		lengthTool(),
	}
}

func stringifyTool() *toolexecutor.Tool {
	return &toolexecutor.Tool{
		Metadata: toolexecutor.ToolMetadata{
			ID:           "text.stringify",
			Name:         "stringify",
			Description:  "Encode any value as JSON text.",
			Version:      "1.0.0",
			Category:     toolexecutor.CategoryText,
			Tags:         []string{"text", "json"},
			Capabilities: []string{"text.serialize"},
			Parameters: []toolexecutor.ToolParameter{
				{Name: "value", Type: "any", Description: "Value to encode", Required: true},
			},
			Returns: toolexecutor.ReturnSpec{Type: "string", Description: "JSON encoding of value"},
		},
		Handler: func(ctx context.Context, params map[string]interface{}, toolCtx *toolexecutor.ToolContext) (interface{}, error) {
			data, err := json.Marshal(params["value"])
			if err != nil {
				return nil, fmt.Errorf("failed to encode value: %w", err)
			}
			return string(data), nil
		},
	}
}

type textParams struct {
	Text string `json:"text"`
}

func caseTool(id, name, description, capability string, fn func(string) string) *toolexecutor.Tool {
	return toolexecutor.NewTypedTool(toolexecutor.ToolMetadata{
		ID:           id,
		Name:         name,
		Description:  description,
		Version:      "1.0.0",
		Category:     toolexecutor.CategoryText,
		Tags:         []string{"text"},
		Capabilities: []string{capability},
		Parameters: []toolexecutor.ToolParameter{
			{Name: "text", Type: "string", Description: "Input text", Required: true},
		},
		Returns: toolexecutor.ReturnSpec{Type: "string"},
	}, func(ctx context.Context, p textParams, toolCtx *toolexecutor.ToolContext) (string, error) {
		return fn(p.Text), nil
	})
}

func uppercaseTool() *toolexecutor.Tool {
	return caseTool("text.uppercase", "uppercase", "Convert text to upper case.", "text.upper", strings.ToUpper)
}

func lowercaseTool() *toolexecutor.Tool {
	return caseTool("text.lowercase", "lowercase", "Convert text to lower case.", "text.lower", strings.ToLower)
}

func lengthTool() *toolexecutor.Tool {
	return &toolexecutor.Tool{
		Metadata: toolexecutor.ToolMetadata{
			ID:           "text.length",
			Name:         "length",
			Description:  "Count the characters of a string or the elements of a list or object.",
			Version:      "1.0.0",
			Category:     toolexecutor.CategoryText,
			Tags:         []string{"text"},
			Capabilities: []string{"text.measure"},
			Parameters: []toolexecutor.ToolParameter{
				{Name: "value", Type: "any", Description: "String, array or object", Required: true},
			},
			Returns: toolexecutor.ReturnSpec{Type: "integer"},
		},
		Handler: func(ctx context.Context, params map[string]interface{}, toolCtx *toolexecutor.ToolContext) (interface{}, error) {
			return Length(params["value"])
		},
	}
}

// Length counts the runes of a string or the elements of a slice, array or map
func Length(v interface{}) (int, error) {
	if s, ok := v.(string); ok {
		return utf8.RuneCountInString(s), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), nil
	}
	return 0, fmt.Errorf("cannot take length of %T", v)
}
