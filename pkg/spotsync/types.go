// Package spotsync keeps the spot markers on a map in step with the visible
// region. It watches viewport movement, decides when to refetch spots from the
// backend, reconciles the fetched set with on-screen markers and aggregates
// the detail lookups for a selected spot.
package spotsync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// LatLng is a WGS84 coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LatLngBounds is the visible rectangle of a map.
type LatLngBounds struct {
	SW LatLng `json:"sw"`
	NE LatLng `json:"ne"`
}

// Viewport is the map state as reported by the map SDK. Bounds is nil until
// the map has been laid out.
type Viewport struct {
	Center LatLng        `json:"center"`
	Zoom   int           `json:"zoom"`
	Bounds *LatLngBounds `json:"bounds,omitempty"`
}

// SpotID identifies a spot. The backend may send ids as numbers or strings;
// both decode into the same textual form.
type SpotID string

func (id *SpotID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = SpotID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("spot id: %w", err)
	}
	*id = SpotID(n.String())
	return nil
}

// Flag is a boolean that tolerates the loose encodings seen on the wire
// (true/false, 0/1, "true"/"1"/"false"/"0"). It never leaves this package
// as anything but a plain bool.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	switch strings.ToLower(s) {
	case "", "null", "false", "0", "no":
		*f = false
		return nil
	case "true", "1", "yes":
		*f = true
		return nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		*f = n != 0
		return nil
	}
	return fmt.Errorf("cannot decode %s as flag", string(b))
}

// SpotRecord is one spot as returned by the spot search endpoint.
type SpotRecord struct {
	ID          SpotID  `json:"id"`
	Name        string  `json:"name"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Type        string  `json:"type,omitempty"`
	IsSpecial   bool    `json:"is_special"`
	Address     string  `json:"address,omitempty"`
	Description string  `json:"description,omitempty"`
}

func (s *SpotRecord) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID          SpotID  `json:"id"`
		Name        string  `json:"name"`
		Lat         float64 `json:"lat"`
		Lng         float64 `json:"lng"`
		Type        string  `json:"type"`
		IsSpecial   Flag    `json:"is_special"`
		IsSpecialJS Flag    `json:"isSpecial"`
		Address     string  `json:"address"`
		Description string  `json:"description"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = SpotRecord{
		ID:          raw.ID,
		Name:        raw.Name,
		Lat:         raw.Lat,
		Lng:         raw.Lng,
		Type:        raw.Type,
		IsSpecial:   bool(raw.IsSpecial || raw.IsSpecialJS),
		Address:     raw.Address,
		Description: raw.Description,
	}
	return nil
}

// Position returns the spot coordinate.
func (s SpotRecord) Position() LatLng {
	return LatLng{Lat: s.Lat, Lng: s.Lng}
}

// SpotPage is the spot search response.
type SpotPage struct {
	Count int          `json:"count"`
	Items []SpotRecord `json:"items"`
}

// SpotDetail is the single-spot detail payload.
type SpotDetail struct {
	ID          SpotID  `json:"id"`
	Name        string  `json:"name"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Address     string  `json:"address,omitempty"`
	Description string  `json:"description,omitempty"`
	Type        string  `json:"type,omitempty"`
	IsSpecial   Flag    `json:"is_special"`
}

// ContentSummary is one content item attached to a spot.
type ContentSummary struct {
	ID          SpotID `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url,omitempty"`
	Lang        string `json:"lang,omitempty"`
	DurationSec int    `json:"duration_sec,omitempty"`
	Thumbnail   string `json:"thumbnail_url,omitempty"`
}

// Entity is a person or group related to a spot ("oshi").
type Entity struct {
	ID       SpotID `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// DetailBundle is what the info window shows for one spot.
type DetailBundle struct {
	Detail          SpotDetail       `json:"detail"`
	Contents        []ContentSummary `json:"contents"`
	RelatedEntities []Entity         `json:"related_entities"`
}

// Filter holds the user-selectable search filters.
type Filter struct {
	UserID       string `json:"user_id,omitempty"`
	FollowedOnly bool   `json:"followed_only,omitempty"`
	SpecialOnly  bool   `json:"special_only,omitempty"`
}
