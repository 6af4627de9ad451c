package xdg_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r2x-tools/r2x/internal/xdg"
)

func TestConfigDir(t *testing.T) {
	t.Run("uses XDG_CONFIG_HOME when set", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		assert.Equal(t, filepath.Join("/custom/config", "r2x"), xdg.ConfigDir())
	})

	t.Run("falls back to ~/.config", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", "/home/alex")
		assert.Equal(t, "/home/alex/.config/r2x", xdg.ConfigDir())
	})
}

func TestCacheDir(t *testing.T) {
	t.Run("uses XDG_CACHE_HOME when set", func(t *testing.T) {
		t.Setenv("XDG_CACHE_HOME", "/custom/cache")
		assert.Equal(t, filepath.Join("/custom/cache", "r2x"), xdg.CacheDir())
	})

	t.Run("falls back to ~/.cache", func(t *testing.T) {
		t.Setenv("XDG_CACHE_HOME", "")
		t.Setenv("HOME", "/home/alex")
		assert.Equal(t, "/home/alex/.cache/r2x", xdg.CacheDir())
	})
}

func TestStateDir(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", "/home/alex")
	assert.Equal(t, "/home/alex/.local/state/r2x", xdg.StateDir())
}

func TestDataDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	assert.Equal(t, filepath.Join("/custom/data", "r2x"), xdg.DataDir())
}

func TestEnsureDir(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c")

	require.NoError(t, xdg.EnsureDir(nested))
	assert.DirExists(t, nested)

	// Idempotent on existing directories.
	require.NoError(t, xdg.EnsureDir(nested))
}
