package spotsync

import (
	"context"
	"sync"
	"time"
)

type fakeMarker struct {
	opts    MarkerOptions
	removed bool
}

func (m *fakeMarker) Remove() { m.removed = true }

// fakeMap places markers in memory and derives bounds as center +/- span.
type fakeMap struct {
	mu      sync.Mutex
	center  LatLng
	zoom    int
	span    float64
	noBound bool
	markers []*fakeMarker
	centers []LatLng
}

func newFakeMap() *fakeMap {
	return &fakeMap{span: 0.01}
}

func (m *fakeMap) Viewport() Viewport {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := Viewport{Center: m.center, Zoom: m.zoom}
	if !m.noBound {
		v.Bounds = &LatLngBounds{
			SW: LatLng{Lat: m.center.Lat - m.span, Lng: m.center.Lng - m.span},
			NE: LatLng{Lat: m.center.Lat + m.span, Lng: m.center.Lng + m.span},
		}
	}
	return v
}

func (m *fakeMap) SetCenter(p LatLng) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.center = p
	m.centers = append(m.centers, p)
}

func (m *fakeMap) SetZoom(z int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zoom = z
}

// pan moves the center the way a user drag would, without recording it as
// a programmatic recenter.
func (m *fakeMap) pan(p LatLng) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.center = p
}

func (m *fakeMap) ReplaceMarkers(opts []MarkerOptions) []Marker {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, fm := range m.markers {
		fm.removed = true
	}
	out := make([]Marker, 0, len(opts))
	for _, o := range opts {
		fm := &fakeMarker{opts: o}
		m.markers = append(m.markers, fm)
		out = append(out, fm)
	}
	return out
}

func (m *fakeMap) live() []*fakeMarker {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*fakeMarker
	for _, fm := range m.markers {
		if !fm.removed {
			out = append(out, fm)
		}
	}
	return out
}

func (m *fakeMap) liveIDs() []SpotID {
	var ids []SpotID
	for _, fm := range m.live() {
		ids = append(ids, fm.opts.SpotID)
	}
	return ids
}

type fakeInfo struct {
	mu     sync.Mutex
	html   string
	anchor LatLng
	open   bool
	opens  int
}

func (w *fakeInfo) Open(anchor LatLng, html string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.anchor = anchor
	w.html = html
	w.open = true
	w.opens++
}

func (w *fakeInfo) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.open = false
}

func (w *fakeInfo) snapshot() (string, bool, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.html, w.open, w.opens
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeClock hands out timers that only fire when told to.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) after(d time.Duration, f func()) stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// elapse fires every live timer.
func (c *fakeClock) elapse() int {
	c.mu.Lock()
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
	return len(due)
}

func (c *fakeClock) started() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

type fakeLocator struct {
	pos LatLng
	err error
}

func (l fakeLocator) Locate(context.Context) (LatLng, error) {
	return l.pos, l.err
}

type fakeHistory struct {
	mu      sync.Mutex
	queries []string
}

func (h *fakeHistory) RecordSearch(_ context.Context, q string, _ LatLng) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queries = append(h.queries, q)
	return nil
}
