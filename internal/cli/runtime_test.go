package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/toolengine/internal/config"
	"github.com/harun/toolengine/pkg/composite"
	te "github.com/harun/toolengine/pkg/toolexecutor"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Logging.Console = false
	cfg.Logging.AuditFile = ""
	return cfg
}

func TestNewRuntime(t *testing.T) {
	cfg := testConfig(t)
	rt, err := NewRuntime(cfg)
	require.NoError(t, err)
	defer rt.Close()

	require.NotNil(t, rt.Authorizer)
	assert.Nil(t, rt.Plans)
	_, ok := rt.Engine.GetTool("text.uppercase")
	assert.True(t, ok)
	_, ok = rt.Engine.GetTool("fs.read_file")
	assert.False(t, ok, "fs tools need a workspace root")
	assert.NoError(t, rt.Engine.Validate())
}

func TestNewRuntime_SecurityDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.Enabled = false
	cfg.CoreTools.WorkspaceRoot = t.TempDir()

	rt, err := NewRuntime(cfg)
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.Authorizer)
	assert.ErrorIs(t, rt.Engine.Validate(), te.ErrSecurityModuleNotConfigured)

	result := rt.Engine.Execute(context.Background(), "fs.write_file", map[string]interface{}{"path": "a", "content": "b"}, nil)
	require.False(t, result.Success)
	assert.Equal(t, te.CodeSecurityModuleNotConfigured, result.Error.Code)
}

func TestNewRuntime_MissingPlansDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.PlansDir = "/definitely/not/here"

	_, err := NewRuntime(cfg)
	assert.Error(t, err)
}

func TestCoreToolOptions(t *testing.T) {
	opts := coreToolOptions(config.CoreToolsConfig{
		WorkspaceRoot:  "/w",
		HTTPTimeoutMs:  2500,
		MaxReadBytes:   10,
		FetchPerMinute: 5,
		DenyCategories: []string{"web", "WRITE"},
	})
	assert.Equal(t, "/w", opts.WorkspaceRoot)
	assert.Equal(t, 2500*time.Millisecond, opts.HTTPTimeout)
	require.NotNil(t, opts.FetchRateLimit)
	assert.Equal(t, 5, opts.FetchRateLimit.Requests)
	assert.False(t, opts.Policy.Admits(te.CategoryWeb))
	assert.False(t, opts.Policy.Admits(te.CategoryWrite))
	assert.True(t, opts.Policy.Admits(te.CategoryText))

	assert.Nil(t, coreToolOptions(config.CoreToolsConfig{}).FetchRateLimit)
}

func TestSyncPlanTool(t *testing.T) {
	rt, err := NewRuntime(testConfig(t))
	require.NoError(t, err)
	defer rt.Close()

	plan := &composite.Plan{ID: "echo", Steps: []composite.Step{
		{Tool: "text.uppercase", Params: map[string]composite.ParamMapping{"text": composite.FromKey("text")}},
	}}
	rt.syncPlanTool("echo", plan)

	meta, ok := rt.Engine.GetTool("plan.echo")
	require.True(t, ok)
	assert.Equal(t, te.ProtocolComposite, meta.Protocol)

	result := rt.Engine.Execute(context.Background(), "plan.echo", map[string]interface{}{"text": "abc"}, nil)
	require.True(t, result.Success, "%+v", result.Error)
	assert.Equal(t, "ABC", result.Data.(map[string]interface{})["step0"])

	// reload replaces the registration
	rt.syncPlanTool("echo", plan)
	_, ok = rt.Engine.GetTool("plan.echo")
	assert.True(t, ok)

	rt.syncPlanTool("echo", nil)
	_, ok = rt.Engine.GetTool("plan.echo")
	assert.False(t, ok)
}

func TestRequester(t *testing.T) {
	rt, err := NewRuntime(testConfig(t))
	require.NoError(t, err)
	defer rt.Close()

	req, err := rt.Requester("", "")
	require.NoError(t, err)
	assert.Equal(t, "cli", req.ID)
	assert.Equal(t, te.SecurityLow, req.Credentials.SecurityLevel)

	req, err = rt.Requester("ops", "high")
	require.NoError(t, err)
	assert.Equal(t, te.SecurityHigh, req.Credentials.SecurityLevel)

	_, err = rt.Requester("ops", "root")
	assert.Error(t, err)
}
