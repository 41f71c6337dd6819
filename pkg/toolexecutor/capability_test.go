package toolexecutor

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_ExecuteCapability_PrefersLeastPrivilege(t *testing.T) {
	engine := newTestEngine(t, Options{})

	medium := newTool("b", "cap.y")
	medium.Metadata.MinSecurityLevel = SecurityMedium
	low := newTool("a", "cap.y")
	low.Metadata.MinSecurityLevel = SecurityLow

	require.NoError(t, engine.RegisterTool(medium))
	require.NoError(t, engine.RegisterTool(low))

	for i := 0; i < 5; i++ {
		result := engine.ExecuteCapability(context.Background(), "cap.y", nil, nil)
		require.True(t, result.Success)
		assert.Equal(t, "a", result.Data)
	}
}

func registrations(t *testing.T, tools ...*Tool) []*registration {
	t.Helper()
	out := make([]*registration, 0, len(tools))
	for _, tool := range tools {
		reg, err := newRegistration(tool)
		require.NoError(t, err)
		out = append(out, reg)
	}
	return out
}

func TestRankProviders(t *testing.T) {
	remote := newTool("remote", "cap")
	remote.Metadata.Protocol = ProtocolHTTP
	remote.Metadata.Version = "9.0.0"

	local := newTool("local", "cap")
	local.Metadata.Protocol = ProtocolInProcess
	local.Metadata.Version = "1.0.0"

	newer := newTool("newer", "cap")
	newer.Metadata.Protocol = ProtocolInProcess
	newer.Metadata.Version = "2.0.0"

	twin := newTool("twin", "cap")
	twin.Metadata.Protocol = ProtocolInProcess
	twin.Metadata.Version = "2.0.0"

	privileged := newTool("privileged", "cap")
	privileged.Metadata.MinSecurityLevel = SecurityHigh
	privileged.Metadata.Version = "10.0.0"

	ranked := rankProviders(registrations(t, privileged, remote, local, newer, twin))

	ids := make([]string, 0, len(ranked))
	for _, reg := range ranked {
		ids = append(ids, reg.meta.ID)
	}
	assert.Equal(t, []string{"newer", "twin", "local", "remote", "privileged"}, ids)
}

func TestRankProviders_VersionIsLexicographic(t *testing.T) {
	nine := newTool("nine", "cap")
	nine.Metadata.Version = "9.0.0"
	ten := newTool("ten", "cap")
	ten.Metadata.Version = "10.0.0"

	ranked := rankProviders(registrations(t, ten, nine))
	assert.Equal(t, "nine", ranked[0].meta.ID)
}

func TestEngine_ExecuteCapability_NotFound(t *testing.T) {
	engine := newTestEngine(t, Options{})

	result := engine.ExecuteCapability(context.Background(), "cap.none", nil, nil)

	require.False(t, result.Success)
	assert.Equal(t, CodeCapabilityNotFound, result.Error.Code)
	assert.NotEmpty(t, result.ExecutionID)
}

func TestEngine_ExecuteCapability_RunsThroughPipeline(t *testing.T) {
	engine := newTestEngine(t, Options{})
	var calls int32

	require.NoError(t, engine.RegisterTool(&Tool{
		Metadata: ToolMetadata{
			ID:           "strict",
			Capabilities: []string{"cap.strict"},
			Parameters:   []ToolParameter{{Name: "text", Type: "string", Required: true}},
		},
		Handler: func(ctx context.Context, params map[string]interface{}, toolCtx *ToolContext) (interface{}, error) {
			atomic.AddInt32(&calls, 1)
			return params["text"], nil
		},
	}))

	result := engine.ExecuteCapability(context.Background(), "cap.strict", map[string]interface{}{}, nil)
	require.False(t, result.Success)
	assert.Equal(t, CodeInvalidParameters, result.Error.Code)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	result = engine.ExecuteCapability(context.Background(), "cap.strict", map[string]interface{}{"text": "x"}, nil)
	require.True(t, result.Success)
	assert.Equal(t, "x", result.Data)
}

func TestEngine_ResolveCapability(t *testing.T) {
	engine := newTestEngine(t, Options{})
	require.NoError(t, engine.RegisterTool(newTool("only", "cap.z")))

	meta, ok := engine.ResolveCapability("cap.z")
	require.True(t, ok)
	assert.Equal(t, "only", meta.ID)

	_, ok = engine.ResolveCapability("cap.missing")
	assert.False(t, ok)

	engine.UnregisterTool("only")
	_, ok = engine.ResolveCapability("cap.z")
	assert.False(t, ok)
	assert.Empty(t, engine.DiscoverCapabilities(nil))
}
