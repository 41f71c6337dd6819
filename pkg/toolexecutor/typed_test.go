package toolexecutor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repeatParams struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

func TestNewTypedTool(t *testing.T) {
	engine := newTestEngine(t, Options{})

	tool := NewTypedTool(ToolMetadata{
		ID: "repeat",
		Parameters: []ToolParameter{
			{Name: "text", Type: "string", Required: true},
			{Name: "count", Type: "integer", Default: 2},
		},
	}, func(ctx context.Context, p repeatParams, toolCtx *ToolContext) (string, error) {
		return strings.Repeat(p.Text, p.Count), nil
	})
	require.NoError(t, engine.RegisterTool(tool))

	result := engine.Execute(context.Background(), "repeat", map[string]interface{}{"text": "ab"}, nil)
	require.True(t, result.Success, "%v", result.Error)
	assert.Equal(t, "abab", result.Data)

	result = engine.Execute(context.Background(), "repeat", map[string]interface{}{"text": "x", "count": 3.0}, nil)
	require.True(t, result.Success, "%v", result.Error)
	assert.Equal(t, "xxx", result.Data)
}

func TestDecodeParams(t *testing.T) {
	type waitParams struct {
		Delay time.Duration `json:"delay"`
		Label string        `json:"label"`
		Count int           `json:"count"`
	}

	p, err := DecodeParams[waitParams](map[string]interface{}{
		"delay": "150ms",
		"label": "x",
		"count": "4",
	})
	require.NoError(t, err)
	assert.Equal(t, 150*time.Millisecond, p.Delay)
	assert.Equal(t, "x", p.Label)
	assert.Equal(t, 4, p.Count)

	_, err = DecodeParams[waitParams](map[string]interface{}{"count": map[string]interface{}{"a": 1}})
	assert.Error(t, err)
}
