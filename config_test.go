package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearConfigEnv(t *testing.T) {
	for _, key := range []string{"PORT", "GCP_PROJECT_ID", "GCP_REGION", "GEARSCAN_MODEL", "GEARSCAN_CACHE_SIZE", "GEARSCAN_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoadConfigFile(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "gearscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
  upload_interval: 30s
gemini:
  project: my-project
cache:
  size: 16
log:
  level: debug
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.UploadInterval)
	assert.Equal(t, 60, cfg.Server.QueryRate, "unset keys keep defaults")
	assert.Equal(t, "my-project", cfg.Gemini.Project)
	assert.Equal(t, defaultModel, cfg.Gemini.Model)
	assert.Equal(t, 16, cfg.Cache.Size)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gearscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [\n"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("PORT", ":7070")
	t.Setenv("GCP_PROJECT_ID", "env-project")
	t.Setenv("GCP_REGION", "us-central1")
	t.Setenv("GEARSCAN_MODEL", "gemini-test")
	t.Setenv("GEARSCAN_CACHE_SIZE", "3")
	t.Setenv("GEARSCAN_LOG_LEVEL", "warn")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "env-project", cfg.Gemini.Project)
	assert.Equal(t, "us-central1", cfg.Gemini.Region)
	assert.Equal(t, "gemini-test", cfg.Gemini.Model)
	assert.Equal(t, 3, cfg.Cache.Size)
	assert.Equal(t, "warn", cfg.Log.Level)

	t.Setenv("GEARSCAN_CACHE_SIZE", "lots")
	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestServerConfigDefaults(t *testing.T) {
	got := ServerConfig{Port: "1234"}.withDefaults()
	def := DefaultConfig().Server
	assert.Equal(t, "1234", got.Port)
	assert.Equal(t, def.MaxUploadBytes, got.MaxUploadBytes)
	assert.Equal(t, def.UploadRate, got.UploadRate)
	assert.Equal(t, def.QueryInterval, got.QueryInterval)
}
