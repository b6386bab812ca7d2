package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppDir(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_DATA_HOME", base)

	dir, err := appDir("", xdgDataDir())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "spotmap"), dir)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	custom := filepath.Join(base, "elsewhere")
	dir, err = appDir(custom, xdgDataDir())
	require.NoError(t, err)
	assert.Equal(t, custom, dir)
}

func TestXDGFallback(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CACHE_HOME", "")
	assert.Equal(t, filepath.Join(home, ".cache"), xdgCacheDir())
	assert.Equal(t, filepath.Join(home, ".local", "share"), xdgDir("SPOTMAP_UNSET_XDG", ".local", "share"))
}

func TestEnvFiles(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, envFiles(dir))

	path := filepath.Join(dir, "spotmap.env")
	require.NoError(t, os.WriteFile(path, []byte("SPOTMAP_ZOOM=12\n"), 0o600))
	assert.Contains(t, envFiles(dir), path)
	assert.False(t, fileExists(dir), "directories are not files")
}
