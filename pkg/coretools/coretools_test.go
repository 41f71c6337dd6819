package coretools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/toolengine/pkg/toolexecutor"
)

func newEngine(t *testing.T) *toolexecutor.Engine {
	t.Helper()
	return toolexecutor.New(toolexecutor.Options{
		Authorizer: toolexecutor.AuthorizerFunc(func(ctx context.Context, creds *toolexecutor.Credentials, required toolexecutor.SecurityLevel) (bool, error) {
			return creds.SecurityLevel >= required, nil
		}),
	})
}

func TestRegisterCoreTools(t *testing.T) {
	engine := newEngine(t)
	require.NoError(t, RegisterCoreTools(engine, Options{WorkspaceRoot: t.TempDir()}))

	ids := []string{}
	for _, meta := range engine.DiscoverTools(nil) {
		ids = append(ids, meta.ID)
	}
	assert.Equal(t, []string{
		"text.stringify", "text.uppercase", "text.lowercase", "text.length",
		"fs.read_file", "fs.write_file", "http.fetch",
	}, ids)

	err := RegisterCoreTools(engine, Options{})
	assert.ErrorIs(t, err, toolexecutor.ErrDuplicateTool)
}

func TestRegisterCoreTools_WithoutWorkspace(t *testing.T) {
	engine := newEngine(t)
	require.NoError(t, RegisterCoreTools(engine, Options{}))

	_, ok := engine.GetTool("fs.read_file")
	assert.False(t, ok)
	_, ok = engine.GetTool("http.fetch")
	assert.True(t, ok)

	assert.Error(t, RegisterCoreTools(nil, Options{}))
}

func TestRegisterCoreTools_CategoryPolicy(t *testing.T) {
	engine := newEngine(t)
	policy := toolexecutor.CategoryPolicy{Deny: []toolexecutor.ToolCategory{toolexecutor.CategoryWeb, toolexecutor.CategoryWrite}}
	require.NoError(t, RegisterCoreTools(engine, Options{WorkspaceRoot: t.TempDir(), Policy: policy}))

	_, ok := engine.GetTool("http.fetch")
	assert.False(t, ok)
	_, ok = engine.GetTool("fs.write_file")
	assert.False(t, ok)
	_, ok = engine.GetTool("fs.read_file")
	assert.True(t, ok)
}

func TestTextTools(t *testing.T) {
	engine := newEngine(t)
	require.NoError(t, RegisterTextTools(engine))
	ctx := context.Background()

	tests := []struct {
		name   string
		tool   string
		params map[string]interface{}
		want   interface{}
	}{
		{"stringify object", "text.stringify", map[string]interface{}{"value": map[string]interface{}{"a": 1}}, `{"a":1}`},
		{"stringify string", "text.stringify", map[string]interface{}{"value": "test"}, `"test"`},
		{"uppercase", "text.uppercase", map[string]interface{}{"text": "abc"}, "ABC"},
		{"lowercase", "text.lowercase", map[string]interface{}{"text": "ABC"}, "abc"},
		{"length string", "text.length", map[string]interface{}{"value": "héllo"}, 5},
		{"length list", "text.length", map[string]interface{}{"value": []interface{}{1, 2, 3}}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Execute(ctx, tt.tool, tt.params, nil)
			require.True(t, result.Success, "%v", result.Error)
			assert.Equal(t, tt.want, result.Data)
		})
	}

	result := engine.Execute(ctx, "text.length", map[string]interface{}{"value": 42}, nil)
	require.False(t, result.Success)
	assert.Equal(t, toolexecutor.CodeExecutionFailed, result.Error.Code)

	result = engine.Execute(ctx, "text.uppercase", map[string]interface{}{"text": 1}, nil)
	require.False(t, result.Success)
	assert.Equal(t, toolexecutor.CodeInvalidParameters, result.Error.Code)
}

func TestTextTools_Capabilities(t *testing.T) {
	engine := newEngine(t)
	require.NoError(t, RegisterTextTools(engine))

	result := engine.ExecuteCapability(context.Background(), "text.upper", map[string]interface{}{"text": "cap"}, nil)
	require.True(t, result.Success)
	assert.Equal(t, "CAP", result.Data)
}

func TestFileTools(t *testing.T) {
	root := t.TempDir()
	engine := newEngine(t)
	require.NoError(t, RegisterCoreTools(engine, Options{WorkspaceRoot: root, MaxReadBytes: 5}))
	ctx := context.Background()

	writer := &toolexecutor.ExecuteOptions{
		Requester: &toolexecutor.RequesterInfo{
			ID:          "agent",
			Credentials: &toolexecutor.Credentials{SecurityLevel: toolexecutor.SecurityMedium},
		},
	}

	result := engine.Execute(ctx, "fs.write_file", map[string]interface{}{"path": "notes/a.txt", "content": "hello world"}, nil)
	require.False(t, result.Success)
	assert.Equal(t, toolexecutor.CodeAuthenticationRequired, result.Error.Code)

	result = engine.Execute(ctx, "fs.write_file", map[string]interface{}{"path": "notes/a.txt", "content": "hello world"}, writer)
	require.True(t, result.Success, "%v", result.Error)

	data, err := os.ReadFile(filepath.Join(root, "notes", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	result = engine.Execute(ctx, "fs.read_file", map[string]interface{}{"path": "notes/a.txt"}, nil)
	require.True(t, result.Success, "%v", result.Error)
	out := result.Data.(map[string]interface{})
	assert.Equal(t, "hello", out["content"])
	assert.Equal(t, true, out["truncated"])

	result = engine.Execute(ctx, "fs.read_file", map[string]interface{}{"path": "notes/a.txt", "max_bytes": 100}, nil)
	require.True(t, result.Success)
	out = result.Data.(map[string]interface{})
	assert.Equal(t, "hello world", out["content"])
	assert.Equal(t, false, out["truncated"])

	result = engine.Execute(ctx, "fs.read_file", map[string]interface{}{"path": "../escape.txt"}, nil)
	require.False(t, result.Success)
	assert.Contains(t, result.Error.Message, "outside workspace root")
}

func TestResolvePathInWorkspace(t *testing.T) {
	root := "/workspace"

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"relative", "a/b.txt", "/workspace/a/b.txt", false},
		{"absolute inside", "/workspace/c.txt", "/workspace/c.txt", false},
		{"root itself", ".", "/workspace", false},
		{"parent escape", "../etc/passwd", "", true},
		{"absolute outside", "/etc/passwd", "", true},
		{"url", "file://x", "", true},
		{"empty", "  ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolvePathInWorkspace(root, tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetchTool(t *testing.T) {
	var gotExecutionID, gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotExecutionID = r.Header.Get("X-Execution-ID")
		gotHeader = r.Header.Get("X-Test")
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	defer server.Close()

	engine := newEngine(t)
	require.NoError(t, RegisterCoreTools(engine, Options{HTTPClient: server.Client()}))

	result := engine.Execute(context.Background(), "http.fetch", map[string]interface{}{
		"url":     server.URL,
		"headers": map[string]interface{}{"X-Test": "yes"},
	}, nil)
	require.True(t, result.Success, "%v", result.Error)

	out := result.Data.(map[string]interface{})
	assert.Equal(t, http.StatusTeapot, out["status"])
	assert.Equal(t, "short and stout", out["body"])
	assert.Equal(t, "text/plain", out["headers"].(map[string]interface{})["Content-Type"])
	assert.Equal(t, result.ExecutionID, gotExecutionID)
	assert.Equal(t, "yes", gotHeader)
}

func TestFetchTool_RejectsBadInput(t *testing.T) {
	engine := newEngine(t)
	require.NoError(t, RegisterCoreTools(engine, Options{}))

	tests := []map[string]interface{}{
		{"url": "ftp://example.com"},
		{"url": "http://"},
		{"url": "http://example.com", "method": "PATCH"},
	}
	for _, params := range tests {
		result := engine.Execute(context.Background(), "http.fetch", params, nil)
		require.False(t, result.Success)
		assert.Equal(t, toolexecutor.CodeInvalidParameters, result.Error.Code)
	}
}

func TestFetchTool_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	engine := newEngine(t)
	require.NoError(t, RegisterCoreTools(engine, Options{HTTPClient: server.Client(), HTTPTimeout: 50 * time.Millisecond}))

	result := engine.Execute(context.Background(), "http.fetch", map[string]interface{}{"url": server.URL}, nil)
	require.False(t, result.Success)
	assert.Equal(t, toolexecutor.CodeExecutionFailed, result.Error.Code)
}

func TestLength(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  int
	}{
		{"runes not bytes", "héllo", 5},
		{"empty string", "", 0},
		{"slice", []interface{}{1, 2, 3}, 3},
		{"map", map[string]interface{}{"a": 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Length(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}

	_, err := Length(42)
	assert.Error(t, err)
}
