package spotsync

import "strconv"

// BBoxQuery is the spot search request derived from a viewport and filters.
type BBoxQuery struct {
	BBox          string
	Origin        string
	IsSpecialOnly bool
	UserID        string
	FollowedOnly  bool
	Limit         int
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatLatLng renders "lat,lng" at full precision.
func FormatLatLng(p LatLng) string {
	return formatCoord(p.Lat) + "," + formatCoord(p.Lng)
}

// EncodeBBox returns the "swLat,swLng,neLat,neLng" string and the "lat,lng"
// origin for v. ok is false when the map has no bounds yet; callers skip the
// fetch in that case. Coordinates are never rounded.
func EncodeBBox(v Viewport) (bbox, origin string, ok bool) {
	if v.Bounds == nil {
		return "", "", false
	}
	b := v.Bounds
	bbox = formatCoord(b.SW.Lat) + "," + formatCoord(b.SW.Lng) + "," +
		formatCoord(b.NE.Lat) + "," + formatCoord(b.NE.Lng)
	return bbox, FormatLatLng(v.Center), true
}

// BuildQuery combines the viewport and filter state. ok mirrors EncodeBBox.
func BuildQuery(v Viewport, f Filter, limit int) (BBoxQuery, bool) {
	bbox, origin, ok := EncodeBBox(v)
	if !ok {
		return BBoxQuery{}, false
	}
	return BBoxQuery{
		BBox:          bbox,
		Origin:        origin,
		IsSpecialOnly: f.SpecialOnly,
		UserID:        f.UserID,
		FollowedOnly:  f.FollowedOnly,
		Limit:         limit,
	}, true
}
