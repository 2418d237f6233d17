package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, GatewayRod, cfg.Gateway.Mode)
	assert.Equal(t, OracleFile, cfg.Oracle.Provider)
	assert.Equal(t, 3, cfg.Oracle.MaxAttempts)
	assert.Equal(t, "corpus", cfg.CorpusDir)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workspace: /work
gateway:
  mode: http
  http:
    base_url: http://localhost:9090
oracle:
  provider: claude-cli
  model: opus
  max_attempts: 5
debug: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, GatewayHTTP, cfg.Gateway.Mode)
	assert.Equal(t, "http://localhost:9090", cfg.Gateway.HTTP.BaseURL)
	assert.Equal(t, OracleClaudeCLI, cfg.Oracle.Provider)
	assert.Equal(t, "opus", cfg.Oracle.Model)
	assert.Equal(t, 5, cfg.Oracle.MaxAttempts)
	assert.True(t, cfg.Debug)
	assert.Equal(t, filepath.Join("/work", "corpus", "my-task"), cfg.CorpusPath("my-task"))
}

func TestLoadRejectsUnknownModes(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "gw.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("gateway:\n  mode: telepathy\n"), 0o644))
	_, err := Load(bad)
	assert.ErrorContains(t, err, "unknown gateway mode")

	bad = filepath.Join(dir, "oracle.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("oracle:\n  provider: psychic\n"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "unknown oracle provider")
}

func TestEnvOverridesAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Oracle.APIKey)
}
