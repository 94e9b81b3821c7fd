package agents

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigKeepsOmittedDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  provider: ollama
  name: llama3.1
coordinator:
  timeout: 90s
  max_steps: 0
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Model.Provider)
	assert.Equal(t, 0.2, cfg.Model.Temperature)
	assert.Equal(t, 90*time.Second, cfg.Coordinator.Timeout.Std())
	assert.Equal(t, 25, cfg.Coordinator.MaxSteps)
	assert.Equal(t, 4, cfg.Research.MaxSteps)
	assert.Equal(t, 1, cfg.Market.MaxSteps)
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("coordinator:\n  timeout: soon\n"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := DefaultConfigPath(t.TempDir())
	cfg := DefaultConfig()
	cfg.Tools.SearchInterval = Duration(500 * time.Millisecond)
	require.NoError(t, SaveConfig(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "search_interval: 500ms")

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
