package composite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	te "github.com/harun/toolengine/pkg/toolexecutor"
)

func TestNewTool_RegistersAsComposite(t *testing.T) {
	engine := newEngine(t)
	in := NewInterpreter(engine, nil)

	tool, err := NewTool(te.ToolMetadata{
		ID:           "text.shout_length",
		Capabilities: []string{"text.shout"},
		Parameters:   []te.ToolParameter{{Name: "message", Type: "string", Required: true}},
	}, stringifyUpperLength(false), in, map[string]ParamMapping{"input": FromKey("message")})
	require.NoError(t, err)
	require.NoError(t, engine.RegisterTool(tool))

	meta, ok := engine.GetTool("text.shout_length")
	require.True(t, ok)
	assert.Equal(t, te.ProtocolComposite, meta.Protocol)
	assert.Equal(t, te.CategoryComposite, meta.Category)

	result := engine.Execute(context.Background(), "text.shout_length", map[string]interface{}{"message": "hi"}, nil)
	require.True(t, result.Success, "%v", result.Error)
	data := result.Data.(map[string]interface{})
	assert.Equal(t, `"hi"`, data["step0"])
	assert.Equal(t, `"HI"`, data["step1"])
	assert.Equal(t, 4, data["step2"])
	assert.NotContains(t, data, "message", "input mapping replaces the params")

	result = engine.ExecuteCapability(context.Background(), "text.shout", map[string]interface{}{"message": "hey"}, nil)
	require.True(t, result.Success)
	assert.Equal(t, 5, result.Data.(map[string]interface{})["step2"])
}

func TestNewTool_PassThroughAndNesting(t *testing.T) {
	engine := newEngine(t)
	in := NewInterpreter(engine, nil)

	inner, err := NewTool(te.ToolMetadata{ID: "inner"}, &Plan{Steps: []Step{
		{Tool: "text.uppercase", Params: map[string]ParamMapping{"text": FromKey("input")}},
	}}, in, nil)
	require.NoError(t, err)
	require.NoError(t, engine.RegisterTool(inner))

	outer := &Plan{Steps: []Step{
		{Tool: "inner", Result: &ResultMapping{Path: "step0"}},
		{Tool: "text.length", Params: map[string]ParamMapping{"value": FromKey("step0")}},
	}}
	result := in.Execute(context.Background(), outer, map[string]interface{}{"input": "nested"}, nil)

	require.True(t, result.Success, "%v", result.Error)
	data := result.Data.(map[string]interface{})
	assert.Equal(t, "NESTED", data["step0"])
	assert.Equal(t, 6, data["step1"])
}

func TestNewTool_InheritsTimeoutAndRetries(t *testing.T) {
	engine := newEngine(t)
	in := NewInterpreter(engine, nil)

	var seen *te.ToolContext
	require.NoError(t, engine.RegisterTool(&te.Tool{
		Metadata: te.ToolMetadata{ID: "record.context"},
		Handler: func(ctx context.Context, params map[string]interface{}, toolCtx *te.ToolContext) (interface{}, error) {
			seen = toolCtx
			return "ok", nil
		},
	}))

	tool, err := NewTool(te.ToolMetadata{ID: "wrapped"}, &Plan{Steps: []Step{{Tool: "record.context"}}}, in, nil)
	require.NoError(t, err)
	require.NoError(t, engine.RegisterTool(tool))

	opts := (&te.ExecuteOptions{
		Timeout:   2 * time.Second,
		Requester: &te.RequesterInfo{ID: "agent-7"},
	}).WithRetries(3)
	result := engine.Execute(context.Background(), "wrapped", nil, opts)
	require.True(t, result.Success, "%v", result.Error)

	require.NotNil(t, seen)
	assert.Equal(t, 2*time.Second, seen.Timeout)
	require.NotNil(t, seen.Retries)
	assert.Equal(t, 3, *seen.Retries)
	assert.Equal(t, "agent-7", seen.RequesterID)
	assert.NotEmpty(t, seen.ParentExecutionID)

	result = engine.Execute(context.Background(), "wrapped", nil, nil)
	require.True(t, result.Success)
	assert.Zero(t, seen.Timeout)
	assert.Nil(t, seen.Retries)
}

func TestNewTool_FailureSurfacesAsExecutionFailed(t *testing.T) {
	engine := newEngine(t)
	in := NewInterpreter(engine, nil)

	tool, err := NewTool(te.ToolMetadata{ID: "broken"}, &Plan{Steps: []Step{{Tool: "missing"}}}, in, nil)
	require.NoError(t, err)
	require.NoError(t, engine.RegisterTool(tool))

	result := engine.Execute(context.Background(), "broken", nil, nil)
	require.False(t, result.Success)
	assert.Equal(t, te.CodeExecutionFailed, result.Error.Code)
	assert.Contains(t, result.Error.Message, string(te.CodeCompositeStepFailed))
}

func TestNewTool_Invalid(t *testing.T) {
	in := NewInterpreter(newEngine(t), nil)

	_, err := NewTool(te.ToolMetadata{ID: "empty"}, &Plan{}, in, nil)
	assert.ErrorIs(t, err, ErrInvalidPlan)

	_, err = NewTool(te.ToolMetadata{ID: "x"}, &Plan{Steps: []Step{{Tool: "a"}}}, nil, nil)
	assert.Error(t, err)

	_, err = NewTool(te.ToolMetadata{ID: "x"}, &Plan{Steps: []Step{{Tool: "a"}}}, in,
		map[string]ParamMapping{"input": {Kind: "eval"}})
	assert.Error(t, err)
}
