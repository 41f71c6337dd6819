package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/config.json", loader.configPath)
}

func TestLoaderLoad(t *testing.T) {
	t.Run("defaults when file doesn't exist", func(t *testing.T) {
		tmpDir := t.TempDir()
		cfg, err := NewLoader(filepath.Join(tmpDir, "missing.json")).Load()

		require.NoError(t, err)
		assert.Equal(t, 30000, cfg.Engine.DefaultTimeoutMs)
		assert.Equal(t, tmpDir, cfg.DataDir)
		assert.Equal(t, filepath.Join(tmpDir, "audit.log"), cfg.Logging.AuditFile)
	})

	t.Run("json file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")
		body := `{
			"engine": {"default_retries": 3, "default_timeout_ms": 2000},
			"core_tools": {"workspace_root": "/srv/work"},
			"hooks": {"enabled": true, "entries": [{"event": "tool:failed", "script": "echo hi", "enabled": true}]}
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(body), 0644))

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Engine.DefaultRetries)
		assert.Equal(t, 2000, cfg.Engine.DefaultTimeoutMs)
		assert.Equal(t, 100, cfg.Engine.BackoffBaseMs)
		assert.Equal(t, "/srv/work", cfg.CoreTools.WorkspaceRoot)
		require.Len(t, cfg.Hooks.Entries, 1)
		assert.Equal(t, "tool:failed", cfg.Hooks.Entries[0].Event)
	})

	t.Run("yaml file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.yaml")
		body := "plans_dir: /etc/plans\nlogging:\n  level: debug\n"
		require.NoError(t, os.WriteFile(configPath, []byte(body), 0644))

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, "/etc/plans", cfg.PlansDir)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"engine": {"default_retries": 1}}`), 0644))
		t.Setenv("TOOLENGINE_ENGINE_DEFAULT_RETRIES", "4")

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, 4, cfg.Engine.DefaultRetries)
	})

	t.Run("malformed file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{not json`), 0644))

		_, err := NewLoader(configPath).Load()
		assert.Error(t, err)
	})
}

func TestLoaderSave(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.json")
	loader := NewLoader(configPath)

	cfg := DefaultConfig()
	cfg.Engine.DefaultRetries = 2
	cfg.PlansDir = "/plans"
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Engine.DefaultRetries)
	assert.Equal(t, "/plans", loaded.PlansDir)
}

func TestLoaderGetConfigPath(t *testing.T) {
	assert.Equal(t, "/custom/config.json", NewLoader("/custom/config.json").GetConfigPath())

	path := NewLoader("").GetConfigPath()
	if path != "" {
		assert.Equal(t, "toolengine.json", filepath.Base(path))
	}
}
