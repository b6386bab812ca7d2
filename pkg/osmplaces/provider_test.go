package osmplaces

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/muesli/gominatim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rienbien8/spotmap/pkg/spotsync"
)

func TestPlaceIDRoundTrip(t *testing.T) {
	p := spotsync.LatLng{Lat: 35.6586, Lng: 139.7454}
	id := PlaceID(p)
	assert.Equal(t, "nominatim:35.6586,139.7454", id)
	got, err := ParsePlaceID(id)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	for _, bad := range []string{"ChIJ123", "nominatim:35.6", "nominatim:x,1", "nominatim:91,0"} {
		_, err := ParsePlaceID(bad)
		assert.Error(t, err, bad)
	}
}

func TestAutocomplete(t *testing.T) {
	p := New("")
	calls := 0
	p.search = func(q gominatim.SearchQuery) ([]gominatim.SearchResult, error) {
		calls++
		assert.Equal(t, "tokyo tower", q.Q)
		if calls == 1 {
			return nil, errors.New("unexpected EOF")
		}
		return []gominatim.SearchResult{
			{DisplayName: "Tokyo Tower, Minato", Lat: "35.6586", Lon: "139.7454"},
			{DisplayName: "broken", Lat: "n/a", Lon: "1"},
		}, nil
	}

	preds, err := p.Autocomplete(context.Background(), "tokyo tower", "ja")
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "one transient retry")
	require.Len(t, preds, 1)
	assert.Equal(t, "nominatim:35.6586,139.7454", preds[0].PlaceID)

	place, err := p.PlaceDetails(context.Background(), preds[0].PlaceID, "ja")
	require.NoError(t, err)
	assert.Equal(t, "Tokyo Tower, Minato", place.Name)
	assert.Equal(t, spotsync.LatLng{Lat: 35.6586, Lng: 139.7454}, place.Location)
}

func TestAutocompleteHardError(t *testing.T) {
	p := New("https://nominatim.example")
	p.search = func(gominatim.SearchQuery) ([]gominatim.SearchResult, error) {
		return nil, errors.New("status 503")
	}
	_, err := p.Autocomplete(context.Background(), "x", "")
	var ne *spotsync.NetworkError
	assert.True(t, errors.As(err, &ne))
}

func TestNamesAreBounded(t *testing.T) {
	p := New("")
	var res []gominatim.SearchResult
	for i := 0; i < maxNames+10; i++ {
		res = append(res, gominatim.SearchResult{
			DisplayName: fmt.Sprintf("place %d", i),
			Lat:         fmt.Sprintf("%d.5", i%80),
			Lon:         fmt.Sprintf("%d.25", i%170),
		})
	}
	p.search = func(gominatim.SearchQuery) ([]gominatim.SearchResult, error) { return res, nil }

	preds, err := p.Autocomplete(context.Background(), "many", "")
	require.NoError(t, err)
	require.Len(t, preds, maxNames+10)
	assert.Equal(t, maxNames, p.names.Len())

	// An evicted name still resolves to its coordinates.
	oldest, err := p.PlaceDetails(context.Background(), preds[0].PlaceID, "")
	require.NoError(t, err)
	assert.Empty(t, oldest.Name)
	assert.Equal(t, spotsync.LatLng{Lat: 0.5, Lng: 0.25}, oldest.Location)

	newest, err := p.PlaceDetails(context.Background(), preds[len(preds)-1].PlaceID, "")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("place %d", maxNames+9), newest.Name)
}
