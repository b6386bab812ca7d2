package spotsync

import (
	"sync"

	"github.com/rienbien8/spotmap/pkg/metrics"
)

// Stacking order values. Every special marker sits above every normal one.
const (
	ZIndexNormal  = 1
	ZIndexSpecial = 1000
)

// MarkerEntry is one marker on the map.
type MarkerEntry struct {
	SpotID      SpotID
	Handle      Marker
	IconVariant string
	ZIndex      int
}

// MarkerReconciler owns the on-screen marker set. Nothing else adds or
// removes markers.
type MarkerReconciler struct {
	mu      sync.RWMutex
	m       Map
	onClick func(SpotRecord)
	entries []MarkerEntry
	byID    map[SpotID]int
}

// NewMarkerReconciler returns a reconciler drawing on m. onClick is invoked
// with the spot bound to a clicked marker.
func NewMarkerReconciler(m Map, onClick func(SpotRecord)) *MarkerReconciler {
	return &MarkerReconciler{m: m, onClick: onClick, byID: map[SpotID]int{}}
}

func markerStyle(s SpotRecord) (string, int) {
	if s.IsSpecial {
		return IconSpecial, ZIndexSpecial
	}
	return IconNormal, ZIndexNormal
}

// Commit replaces every marker with one per spot. Readers never observe a
// half-applied set.
func (r *MarkerReconciler) Commit(spots []SpotRecord) {
	spots = DedupeSpots(spots)

	opts := make([]MarkerOptions, 0, len(spots))
	for _, s := range spots {
		spot := s
		icon, z := markerStyle(spot)
		opts = append(opts, MarkerOptions{
			SpotID:   spot.ID,
			Position: spot.Position(),
			Title:    spot.Name,
			Icon:     icon,
			ZIndex:   z,
			OnClick: func() {
				if r.onClick != nil {
					r.onClick(spot)
				}
			},
		})
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	handles := r.m.ReplaceMarkers(opts)
	entries := make([]MarkerEntry, 0, len(opts))
	byID := make(map[SpotID]int, len(opts))
	for i, o := range opts {
		byID[o.SpotID] = i
		entries = append(entries, MarkerEntry{SpotID: o.SpotID, Handle: handles[i], IconVariant: o.Icon, ZIndex: o.ZIndex})
	}
	r.entries = entries
	r.byID = byID
	metrics.MarkersDisplayed.Set(float64(len(entries)))
}

// Clear removes every marker.
func (r *MarkerReconciler) Clear() {
	r.Commit(nil)
}

// Entries returns a copy of the current marker set.
func (r *MarkerReconciler) Entries() []MarkerEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MarkerEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Lookup returns the marker entry for id.
func (r *MarkerReconciler) Lookup(id SpotID) (MarkerEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byID[id]
	if !ok {
		return MarkerEntry{}, false
	}
	return r.entries[i], true
}

// Len returns the number of markers on the map.
func (r *MarkerReconciler) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
