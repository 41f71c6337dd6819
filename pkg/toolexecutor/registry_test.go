package toolexecutor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTool(id string, caps ...string) *Tool {
	return &Tool{
		Metadata: ToolMetadata{
			ID:           id,
			Description:  "tool " + id,
			Version:      "1.0.0",
			Capabilities: caps,
		},
		Handler: func(ctx context.Context, params map[string]interface{}, toolCtx *ToolContext) (interface{}, error) {
			return id, nil
		},
	}
}

func TestRegistry_Register_Defaults(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newTool("echo")))

	meta, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", meta.Name)
	assert.Equal(t, CategoryGeneral, meta.Category)
	assert.Equal(t, ProtocolInProcess, meta.Protocol)
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_Register_InvalidDefinition(t *testing.T) {
	noop := func(ctx context.Context, params map[string]interface{}, toolCtx *ToolContext) (interface{}, error) {
		return nil, nil
	}

	tests := []struct {
		name string
		tool *Tool
	}{
		{"nil tool", nil},
		{"empty id", &Tool{Handler: noop}},
		{"nil handler", &Tool{Metadata: ToolMetadata{ID: "x"}}},
		{"bad param type", &Tool{
			Metadata: ToolMetadata{ID: "x", Parameters: []ToolParameter{{Name: "a", Type: "decimal"}}},
			Handler:  noop,
		}},
		{"duplicate param", &Tool{
			Metadata: ToolMetadata{ID: "x", Parameters: []ToolParameter{{Name: "a", Type: "string"}, {Name: "a", Type: "string"}}},
			Handler:  noop,
		}},
		{"bad category", &Tool{Metadata: ToolMetadata{ID: "x", Category: "spec"}, Handler: noop}},
		{"zero rate limit", &Tool{Metadata: ToolMetadata{ID: "x", RateLimit: &RateLimit{}}, Handler: noop}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			err := r.Register(tt.tool)
			assert.Error(t, err)
			assert.Equal(t, 0, r.Count())
		})
	}
}

func TestRegistry_DuplicateLeavesOriginal(t *testing.T) {
	r := NewRegistry()
	original := newTool("dup", "cap.a")
	require.NoError(t, r.Register(original))

	impostor := newTool("dup", "cap.b")
	impostor.Metadata.Description = "impostor"

	err := r.Register(impostor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateTool))

	var dupErr *DuplicateToolError
	require.True(t, errors.As(err, &dupErr))
	assert.Equal(t, "dup", dupErr.ID)

	reg, ok := r.lookup("dup")
	require.True(t, ok)
	assert.Same(t, original, reg.tool)
	assert.Equal(t, "tool dup", reg.meta.Description)

	_, ok = r.Capability("cap.b")
	assert.False(t, ok)
	assert.Empty(t, impostor.Metadata.Name, "rejected tool is not normalized")
}

func TestRegistry_CapabilityLifecycle(t *testing.T) {
	r := NewRegistry()
	a := newTool("a", "cap.x")
	a.Metadata.Tags = []string{"text"}
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(newTool("b", "cap.x")))

	capability, ok := r.Capability("cap.x")
	require.True(t, ok)
	assert.Equal(t, "cap.x", capability.Name)
	assert.Equal(t, "tool a", capability.Description)
	assert.Equal(t, []string{"text"}, capability.Tags)

	assert.True(t, r.Unregister("a"))
	caps := r.DiscoverCapabilities(nil)
	require.Len(t, caps, 1)
	assert.Equal(t, "cap.x", caps[0].ID)

	providers := r.Providers("cap.x")
	require.Len(t, providers, 1)
	assert.Equal(t, "b", providers[0].ID)

	assert.True(t, r.Unregister("b"))
	assert.Empty(t, r.DiscoverCapabilities(nil))
	_, ok = r.Capability("cap.x")
	assert.False(t, ok)
}

func TestRegistry_UnregisterUnknown(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Unregister("missing"))
}

func TestRegistry_Discover(t *testing.T) {
	r := NewRegistry()

	read := newTool("fs.read", "file.read")
	read.Metadata.Category = CategoryRead
	read.Metadata.Tags = []string{"fs"}

	fetch := newTool("http.fetch", "web.fetch")
	fetch.Metadata.Category = CategoryWeb
	fetch.Metadata.Protocol = ProtocolHTTP
	fetch.Metadata.Tags = []string{"net"}

	admin := newTool("admin.reset")
	admin.Metadata.RequiresAuth = true
	admin.Metadata.MinSecurityLevel = SecurityCritical
	admin.Metadata.Tags = []string{"fs", "admin"}

	require.NoError(t, r.Register(read))
	require.NoError(t, r.Register(fetch))
	require.NoError(t, r.Register(admin))

	yes := true
	medium := SecurityMedium

	tests := []struct {
		name   string
		filter *DiscoveryFilter
		want   []string
	}{
		{"nil filter", nil, []string{"fs.read", "http.fetch", "admin.reset"}},
		{"empty filter", &DiscoveryFilter{}, []string{"fs.read", "http.fetch", "admin.reset"}},
		{"category", &DiscoveryFilter{Category: CategoryWeb}, []string{"http.fetch"}},
		{"tags", &DiscoveryFilter{Tags: []string{"fs"}}, []string{"fs.read", "admin.reset"}},
		{"capabilities", &DiscoveryFilter{Capabilities: []string{"web.fetch", "nope"}}, []string{"http.fetch"}},
		{"protocol", &DiscoveryFilter{Protocol: ProtocolInProcess}, []string{"fs.read", "admin.reset"}},
		{"requires auth", &DiscoveryFilter{RequiresAuth: &yes}, []string{"admin.reset"}},
		{"security ceiling", &DiscoveryFilter{MaxSecurityLevel: &medium}, []string{"fs.read", "http.fetch"}},
		{"all fields must hold", &DiscoveryFilter{Tags: []string{"fs"}, Category: CategoryRead}, []string{"fs.read"}},
		{"no match", &DiscoveryFilter{Tags: []string{"missing"}}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := []string{}
			for _, meta := range r.Discover(tt.filter) {
				ids = append(ids, meta.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestRegistry_DiscoverIsIdempotent(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, r.Register(newTool(id, "cap."+id)))
	}

	first := r.Discover(nil)
	second := r.Discover(nil)
	assert.Equal(t, first, second)
	assert.Equal(t, "c", first[0].ID)
	assert.Equal(t, "b", first[2].ID)
}

func TestRegistry_DiscoverReturnsCopies(t *testing.T) {
	r := NewRegistry()
	tool := newTool("t", "cap.t")
	tool.Metadata.Tags = []string{"original"}
	require.NoError(t, r.Register(tool))

	listed := r.Discover(nil)
	listed[0].Tags[0] = "mutated"
	listed[0].Capabilities[0] = "mutated"

	again := r.Discover(nil)
	assert.Equal(t, []string{"original"}, again[0].Tags)
	assert.Equal(t, []string{"cap.t"}, again[0].Capabilities)
}

func TestRegistry_DiscoverCapabilitiesByTag(t *testing.T) {
	r := NewRegistry()
	upper := newTool("upper", "text.upper")
	upper.Metadata.Tags = []string{"text"}
	fetch := newTool("fetch", "web.fetch")
	fetch.Metadata.Tags = []string{"net"}
	require.NoError(t, r.Register(upper))
	require.NoError(t, r.Register(fetch))

	caps := r.DiscoverCapabilities([]string{"net"})
	require.Len(t, caps, 1)
	assert.Equal(t, "web.fetch", caps[0].ID)

	assert.Len(t, r.DiscoverCapabilities(nil), 2)
	assert.Empty(t, r.DiscoverCapabilities([]string{"none"}))
}

func TestRegistry_OwnsMetadataAfterRegister(t *testing.T) {
	r := NewRegistry()
	tool := newTool("a", "cap.x")
	tool.Metadata.Tags = []string{"text"}
	require.NoError(t, r.Register(tool))
	assert.Empty(t, tool.Metadata.Name, "caller's tool is not normalized in place")

	tool.Metadata.Capabilities = nil
	tool.Metadata.Tags[0] = "changed"
	tool.Metadata.Category = CategoryWeb

	found := r.Discover(&DiscoveryFilter{Capabilities: []string{"cap.x"}, Tags: []string{"text"}})
	require.Len(t, found, 1)
	assert.Equal(t, CategoryGeneral, found[0].Category)
	assert.Len(t, r.Providers("cap.x"), 1)

	require.True(t, r.Unregister("a"))
	_, ok := r.Capability("cap.x")
	assert.False(t, ok, "capability goes with its last provider")
	assert.Empty(t, r.Providers("cap.x"))
}
