package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, DefaultCapacity, cfg.Capacity)
	assert.Equal(t, DefaultCapacityMode, cfg.CapacityMode)
	assert.Equal(t, DefaultAPIPort, cfg.APIPort)
	assert.Equal(t, DefaultWatchDebounce, cfg.WatchDebounce)
	assert.False(t, cfg.WatchEnabled)
	assert.NotEmpty(t, cfg.StoriesPath)
	assert.NotEmpty(t, cfg.DatabasePath)
	assert.NotEmpty(t, cfg.CORSAllowedOrigins)
}

func TestEnsureDataDir(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "storyplan-config-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	cfg := New()
	cfg.DataDir = filepath.Join(tempDir, "nested", "data")

	require.NoError(t, cfg.EnsureDataDir())
	info, err := os.Stat(cfg.DataDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Idempotent.
	assert.NoError(t, cfg.EnsureDataDir())
}

func TestStoriesFileExists(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "storyplan-config-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	cfg := New()
	cfg.StoriesPath = filepath.Join(tempDir, "stories.yaml")
	assert.False(t, cfg.StoriesFileExists())

	require.NoError(t, os.WriteFile(cfg.StoriesPath, []byte("document: d\n"), 0644))
	assert.True(t, cfg.StoriesFileExists())
}
