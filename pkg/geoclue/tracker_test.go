package geoclue

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rienbien8/spotmap/pkg/spotsync"
)

func TestLocateNotStarted(t *testing.T) {
	tr := NewTracker("spotmap.desktop")
	_, err := tr.Locate(context.Background())
	assert.ErrorIs(t, err, spotsync.ErrGeolocationDenied)

	tr.store(Fix{Lat: 35.1, Lng: 139.2})
	pos, err := tr.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, spotsync.LatLng{Lat: 35.1, Lng: 139.2}, pos)
}

func TestLocateWaitsForFirstFix(t *testing.T) {
	tr := NewTracker("spotmap.desktop")
	tr.started = true
	tr.wait = time.Second

	go func() {
		time.Sleep(20 * time.Millisecond)
		tr.store(Fix{})
		tr.store(Fix{Lat: 34.7, Lng: 135.5})
	}()
	pos, err := tr.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, spotsync.LatLng{Lat: 34.7, Lng: 135.5}, pos)

	tr.store(Fix{Lat: 34.8, Lng: 135.6})
	fix, ok := tr.Current()
	assert.True(t, ok)
	assert.Equal(t, 34.8, fix.Lat)
}

func TestLocateTimesOut(t *testing.T) {
	tr := NewTracker("spotmap.desktop")
	tr.started = true
	tr.wait = 10 * time.Millisecond
	_, err := tr.Locate(context.Background())
	assert.ErrorIs(t, err, spotsync.ErrGeolocationDenied)
}

func TestEnsureDesktopFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, ensureDesktopFile("spotmap.desktop"))
	path := filepath.Join(home, ".local", "share", "applications", "spotmap.desktop")
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "X-Geoclue-2-Client=true")

	require.NoError(t, os.WriteFile(path, []byte("custom"), 0o644))
	require.NoError(t, ensureDesktopFile("spotmap.desktop"))
	b, _ = os.ReadFile(path)
	assert.Equal(t, "custom", string(b), "existing file is kept")
}
