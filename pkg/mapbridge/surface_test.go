package mapbridge

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rienbien8/spotmap/pkg/spotsync"
)

func TestBoundsWholeWorld(t *testing.T) {
	b := Bounds(spotsync.LatLng{}, 1, 512, 512)
	assert.InDelta(t, -180, b.SW.Lng, 1e-9)
	assert.InDelta(t, 180, b.NE.Lng, 1e-9)
	assert.InDelta(t, -maxLat, b.SW.Lat, 1e-6)
	assert.InDelta(t, maxLat, b.NE.Lat, 1e-6)
}

func TestBoundsContainCenter(t *testing.T) {
	c := spotsync.LatLng{Lat: 35.681236, Lng: 139.767125}
	b := Bounds(c, 13, 800, 600)
	assert.Less(t, b.SW.Lat, c.Lat)
	assert.Greater(t, b.NE.Lat, c.Lat)
	assert.Less(t, b.SW.Lng, c.Lng)
	assert.Greater(t, b.NE.Lng, c.Lng)

	// Doubling the zoom level halves the visible span.
	b14 := Bounds(c, 14, 800, 600)
	assert.InDelta(t, (b.NE.Lng-b.SW.Lng)/2, b14.NE.Lng-b14.SW.Lng, 1e-9)
}

func TestViewportNeedsSize(t *testing.T) {
	s := New()
	s.SetCenter(spotsync.LatLng{Lat: 35, Lng: 139})
	assert.Nil(t, s.Viewport().Bounds)

	s.SetSize(640, 480)
	v := s.Viewport()
	require.NotNil(t, v.Bounds)
	assert.Equal(t, spotsync.LatLng{Lat: 35, Lng: 139}, v.Center)
}

func TestMoveCauses(t *testing.T) {
	s := New()
	var causes []spotsync.MoveCause
	s.OnMove(func(c spotsync.MoveCause) { causes = append(causes, c) })

	s.SetZoom(40)
	s.SetCenter(spotsync.LatLng{Lat: 1, Lng: 2})
	s.Move(spotsync.LatLng{Lat: 89, Lng: 3}, 12, 300, 200)

	assert.Equal(t, []spotsync.MoveCause{spotsync.CauseProgrammatic, spotsync.CauseProgrammatic, spotsync.CauseUser}, causes)
	v := s.Viewport()
	assert.Equal(t, 12, v.Zoom)
	assert.InDelta(t, maxLat, v.Center.Lat, 1e-9)
	snap := s.Snapshot()
	assert.Equal(t, 300, snap.Width)
	assert.Equal(t, 200, snap.Height)
}

func TestMarkersAndClick(t *testing.T) {
	s := New()
	clicked := ""
	hs := s.ReplaceMarkers([]spotsync.MarkerOptions{
		{SpotID: "a", ZIndex: spotsync.ZIndexSpecial, OnClick: func() { clicked = "a" }},
		{SpotID: "b", ZIndex: spotsync.ZIndexNormal},
	})
	require.Len(t, hs, 2)
	b := hs[1]

	ms := s.Markers()
	require.Len(t, ms, 2)
	assert.Equal(t, spotsync.SpotID("b"), ms[0].SpotID, "normal markers draw first")

	assert.True(t, s.Click("a"))
	assert.Equal(t, "a", clicked)

	b.Remove()
	assert.False(t, s.Click("b"))
	assert.Len(t, s.Markers(), 1)
}

func TestReplaceMarkersIsAtomic(t *testing.T) {
	s := New()
	r := spotsync.NewMarkerReconciler(s, nil)

	set := func(prefix string) []spotsync.SpotRecord {
		out := make([]spotsync.SpotRecord, 50)
		for i := range out {
			out[i] = spotsync.SpotRecord{ID: spotsync.SpotID(fmt.Sprintf("%s%d", prefix, i)), Lat: 35, Lng: 139}
		}
		return out
	}
	a, b := set("a"), set("b")
	r.Commit(a)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			if i%2 == 0 {
				r.Commit(b)
			} else {
				r.Commit(a)
			}
		}
	}()

	partial := 0
	for reading := true; reading; {
		select {
		case <-done:
			reading = false
		default:
		}
		if n := len(s.Markers()); n != 50 {
			partial++
		}
		if n := len(s.Snapshot().Markers); n != 50 {
			partial++
		}
	}
	assert.Zero(t, partial, "readers saw a half-replaced marker set")
}

func TestInfoWindow(t *testing.T) {
	s := New()
	s.Open(spotsync.LatLng{Lat: 1, Lng: 2}, "<p>x</p>")
	assert.Equal(t, InfoState{Open: true, Anchor: spotsync.LatLng{Lat: 1, Lng: 2}, HTML: "<p>x</p>"}, s.InfoWindow())
	s.Close()
	assert.False(t, s.InfoWindow().Open)
}

type spotServer struct {
	mu   sync.Mutex
	hits int
}

func (h *spotServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.hits++
	h.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"count":1,"items":[{"id":"7","name":"Tower","lat":35.6586,"lng":139.7454,"is_special":"1"}]}`))
}

func (h *spotServer) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits
}

func TestSurfaceDrivesController(t *testing.T) {
	backend := &spotServer{}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	s := New()
	s.SetSize(800, 600)
	ctrl, err := spotsync.NewController(s, s, spotsync.Options{
		MapsAPIKey:  "k",
		Spots:       spotsync.NewClient(srv.URL, srv.Client()),
		QuietWindow: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	defer ctrl.Close()
	s.OnMove(ctrl.NotifyViewportChanged)

	require.NoError(t, ctrl.Start(context.Background()))
	require.Len(t, s.Markers(), 1)
	assert.Equal(t, spotsync.IconSpecial, s.Markers()[0].Icon)

	// The recenter of the initial load settles without dirtying the gate.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, spotsync.Idle, ctrl.Gate())

	s.Move(spotsync.LatLng{Lat: 35.7, Lng: 139.8}, 14, 0, 0)
	require.Eventually(t, func() bool { return ctrl.Gate() == spotsync.Dirty }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, backend.count())
}
