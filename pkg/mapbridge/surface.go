// Package mapbridge keeps the map state that a browser front-end renders.
//
// Surface implements spotsync.Map and spotsync.InfoWindow in-process. The
// front-end reports user pans and zooms through Move and reads markers and
// the info window back over the HTTP API.
package mapbridge

import (
	"math"
	"sort"
	"sync"

	"github.com/rienbien8/spotmap/pkg/logger"
	"github.com/rienbien8/spotmap/pkg/spotsync"
)

const (
	tileSize = 256.0
	maxLat   = 85.05112878
	MinZoom  = 0
	MaxZoom  = 22
)

// MarkerView is a marker as the front-end draws it.
type MarkerView struct {
	ID     int             `json:"id"`
	SpotID spotsync.SpotID `json:"spot_id"`
	Lat    float64         `json:"lat"`
	Lng    float64         `json:"lng"`
	Title  string          `json:"title"`
	Icon   string          `json:"icon"`
	ZIndex int             `json:"z_index"`
}

// InfoState is the shared info window.
type InfoState struct {
	Open   bool            `json:"open"`
	Anchor spotsync.LatLng `json:"anchor"`
	HTML   string          `json:"html,omitempty"`
}

// Snapshot is everything the front-end needs to redraw.
type Snapshot struct {
	Viewport   spotsync.Viewport `json:"viewport"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	Markers    []MarkerView      `json:"markers"`
	InfoWindow InfoState         `json:"info_window"`
}

type marker struct {
	s    *Surface
	id   int
	opts spotsync.MarkerOptions
}

func (m *marker) Remove() {
	m.s.mu.Lock()
	delete(m.s.markers, m.id)
	m.s.mu.Unlock()
}

// Surface is a map without pixels: a center, a zoom, a viewport size in CSS
// pixels, a marker set and one info window.
type Surface struct {
	mu      sync.RWMutex
	center  spotsync.LatLng
	zoom    int
	width   int
	height  int
	markers map[int]*marker
	nextID  int
	info    InfoState
	onMove  func(spotsync.MoveCause)
}

func New() *Surface {
	return &Surface{markers: map[int]*marker{}}
}

// OnMove registers the movement hook. Programmatic SetCenter and SetZoom
// report CauseProgrammatic, Move reports CauseUser.
func (s *Surface) OnMove(fn func(spotsync.MoveCause)) {
	s.mu.Lock()
	s.onMove = fn
	s.mu.Unlock()
}

func (s *Surface) fire(cause spotsync.MoveCause) {
	s.mu.RLock()
	fn := s.onMove
	s.mu.RUnlock()
	if fn != nil {
		fn(cause)
	}
}

// SetSize records the viewport size in pixels. Bounds are unknown until both
// sides are positive.
func (s *Surface) SetSize(width, height int) {
	s.mu.Lock()
	s.width, s.height = width, height
	s.mu.Unlock()
}

func clampZoom(z int) int {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

func clampLat(lat float64) float64 {
	return math.Max(-maxLat, math.Min(maxLat, lat))
}

// Move applies a pan or zoom made by the user.
func (s *Surface) Move(center spotsync.LatLng, zoom, width, height int) {
	s.mu.Lock()
	s.center = spotsync.LatLng{Lat: clampLat(center.Lat), Lng: center.Lng}
	s.zoom = clampZoom(zoom)
	if width > 0 && height > 0 {
		s.width, s.height = width, height
	}
	s.mu.Unlock()
	s.fire(spotsync.CauseUser)
}

func (s *Surface) SetCenter(p spotsync.LatLng) {
	s.mu.Lock()
	s.center = spotsync.LatLng{Lat: clampLat(p.Lat), Lng: p.Lng}
	s.mu.Unlock()
	s.fire(spotsync.CauseProgrammatic)
}

func (s *Surface) SetZoom(z int) {
	s.mu.Lock()
	s.zoom = clampZoom(z)
	s.mu.Unlock()
	s.fire(spotsync.CauseProgrammatic)
}

func (s *Surface) Viewport() spotsync.Viewport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewportLocked()
}

func (s *Surface) viewportLocked() spotsync.Viewport {
	v := spotsync.Viewport{Center: s.center, Zoom: s.zoom}
	if s.width > 0 && s.height > 0 {
		b := Bounds(s.center, s.zoom, s.width, s.height)
		v.Bounds = &b
	}
	return v
}

// project maps a coordinate to world pixels at zoom (Web Mercator).
func project(p spotsync.LatLng, zoom int) (x, y float64) {
	n := math.Exp2(float64(zoom))
	sinLat := math.Sin(clampLat(p.Lat) * math.Pi / 180)
	x = (p.Lng + 180.0) / 360.0 * tileSize * n
	y = (0.5 - math.Log((1+sinLat)/(1-sinLat))/(4*math.Pi)) * tileSize * n
	return x, y
}

func unproject(x, y float64, zoom int) spotsync.LatLng {
	scale := tileSize * math.Exp2(float64(zoom))
	lng := (x/scale)*360.0 - 180.0
	normY := y / scale
	lat := math.Atan(math.Sinh(math.Pi*(1-2*normY))) * 180.0 / math.Pi
	return spotsync.LatLng{Lat: lat, Lng: lng}
}

// Bounds returns the rectangle visible around center at zoom in a
// width x height pixel viewport. Edges are clamped to the world.
func Bounds(center spotsync.LatLng, zoom, width, height int) spotsync.LatLngBounds {
	cx, cy := project(center, zoom)
	world := tileSize * math.Exp2(float64(zoom))
	clamp := func(v float64) float64 { return math.Max(0, math.Min(world, v)) }
	hw, hh := float64(width)/2, float64(height)/2
	sw := unproject(clamp(cx-hw), clamp(cy+hh), zoom)
	ne := unproject(clamp(cx+hw), clamp(cy-hh), zoom)
	return spotsync.LatLngBounds{SW: sw, NE: ne}
}

// ReplaceMarkers swaps the whole marker set under one lock, so Markers and
// Snapshot see either the old set or the new one.
func (s *Surface) ReplaceMarkers(opts []spotsync.MarkerOptions) []spotsync.Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers = make(map[int]*marker, len(opts))
	out := make([]spotsync.Marker, 0, len(opts))
	for _, o := range opts {
		s.nextID++
		m := &marker{s: s, id: s.nextID, opts: o}
		s.markers[m.id] = m
		out = append(out, m)
	}
	return out
}

// Click behaves like a tap on the marker for id. It reports whether one was
// on the map.
func (s *Surface) Click(id spotsync.SpotID) bool {
	s.mu.RLock()
	var hit *marker
	for _, m := range s.markers {
		if m.opts.SpotID == id && (hit == nil || m.id > hit.id) {
			hit = m
		}
	}
	s.mu.RUnlock()
	if hit == nil {
		logger.Debug("click on unknown marker spot=%s", id)
		return false
	}
	if hit.opts.OnClick != nil {
		hit.opts.OnClick()
	}
	return true
}

// Markers returns the live markers, lowest stacking order first.
func (s *Surface) Markers() []MarkerView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.markersLocked()
}

func (s *Surface) markersLocked() []MarkerView {
	out := make([]MarkerView, 0, len(s.markers))
	for _, m := range s.markers {
		out = append(out, MarkerView{
			ID:     m.id,
			SpotID: m.opts.SpotID,
			Lat:    m.opts.Position.Lat,
			Lng:    m.opts.Position.Lng,
			Title:  m.opts.Title,
			Icon:   m.opts.Icon,
			ZIndex: m.opts.ZIndex,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ZIndex != out[j].ZIndex {
			return out[i].ZIndex < out[j].ZIndex
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Surface) Open(anchor spotsync.LatLng, html string) {
	s.mu.Lock()
	s.info = InfoState{Open: true, Anchor: anchor, HTML: html}
	s.mu.Unlock()
}

func (s *Surface) Close() {
	s.mu.Lock()
	s.info = InfoState{}
	s.mu.Unlock()
}

// InfoWindow returns the info window state.
func (s *Surface) InfoWindow() InfoState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Snapshot returns a consistent copy of the whole surface.
func (s *Surface) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Viewport:   s.viewportLocked(),
		Width:      s.width,
		Height:     s.height,
		Markers:    s.markersLocked(),
		InfoWindow: s.info,
	}
}

var (
	_ spotsync.Map        = (*Surface)(nil)
	_ spotsync.InfoWindow = (*Surface)(nil)
)
