package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfigFrom(filepath.Join(t.TempDir(), "missing.json"), envOf(nil))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoadConfig_Layers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"log_level": "debug",
		"direction": "LR",
		"category_order": ["Custom", "Core"],
		"metrics_addr": ":9100"
	}`), 0o644))

	cfg, err := loadConfigFrom(path, envOf(map[string]string{
		"FLOWGRAPH_LOG_LEVEL":     "warn",
		"FLOWGRAPH_POLL_INTERVAL": "5s",
	}))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "LR", cfg.Direction)
	assert.Equal(t, []string{"Custom", "Core"}, cfg.CategoryOrder)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
	assert.Equal(t, "5s", cfg.PollInterval)
	assert.Equal(t, "complicated", cfg.Density)
	assert.Empty(t, cfg.BuiltinsPath)
}

func TestLoadConfig_EnvList(t *testing.T) {
	cfg, err := loadConfigFrom(filepath.Join(t.TempDir(), "missing.json"), envOf(map[string]string{
		"FLOWGRAPH_CATEGORY_ORDER": " Core, ,Sub Workflows ",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"Core", "Sub Workflows"}, cfg.CategoryOrder)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := loadConfigFrom(path, envOf(nil))
	assert.Error(t, err)
}
