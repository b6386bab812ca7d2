package spotsync

import "context"

// Icon variants used by the marker policy.
const (
	IconSpecial = "special"
	IconNormal  = "normal"
)

// MarkerOptions describes a marker to place on the map.
type MarkerOptions struct {
	SpotID   SpotID
	Position LatLng
	Title    string
	Icon     string
	ZIndex   int
	OnClick  func()
}

// Marker is an opaque marker handle owned by the map SDK.
type Marker interface {
	Remove()
}

// Map is the subset of the map SDK the controller drives.
type Map interface {
	// Viewport returns the current viewport. Bounds is nil when the map has
	// not been laid out yet.
	Viewport() Viewport
	SetCenter(LatLng)
	SetZoom(int)
	// ReplaceMarkers removes every marker on the map and adds one per
	// option as a single step. Handles are returned in option order.
	ReplaceMarkers([]MarkerOptions) []Marker
}

// InfoWindow is the single shared popup.
type InfoWindow interface {
	Open(anchor LatLng, html string)
	Close()
}

// Geolocator resolves the device position.
type Geolocator interface {
	Locate(ctx context.Context) (LatLng, error)
}

// MoveCause tells whether a viewport change came from the user or from the
// controller itself.
type MoveCause int

const (
	CauseUser MoveCause = iota
	CauseProgrammatic
)

func (c MoveCause) String() string {
	if c == CauseProgrammatic {
		return "programmatic"
	}
	return "user"
}
