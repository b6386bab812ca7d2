package spotsync

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetailAggregatorShow(t *testing.T) {
	b := newTestBackend(t)
	b.set(func(b *testBackend) {
		b.contents = `{"items":[{"id":"c1","title":"Morning walk","url":"https://example.com/v/1"}]}`
		b.oshis = `[{"id":1,"name":"Aoi"},{"id":2,"name":"Ren"}]`
	})
	info := &fakeInfo{}
	a := NewDetailAggregator(b.client(), info, NewRenderer("/route"), DetailOptions{Langs: []string{"ja"}, MaxDuration: 60})

	s := SpotRecord{ID: "5", Name: "Fallback", Lat: 35.5, Lng: 139.5}
	bundle, err := a.Show(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "Spot 5", bundle.Detail.Name)
	assert.Len(t, bundle.RelatedEntities, 2)
	assert.Len(t, bundle.Contents, 1)

	html, open, _ := info.snapshot()
	assert.True(t, open)
	assert.Equal(t, s.Position(), info.anchor)
	assert.Contains(t, html, "Spot 5")
	assert.Contains(t, html, "1-1 Chiyoda")
	assert.Contains(t, html, "Aoi")
	assert.Contains(t, html, "Ren")
	assert.Contains(t, html, "<b>view</b>")
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "/route?")

	cur, id, ok := a.Current()
	assert.True(t, ok)
	assert.Equal(t, SpotID("5"), id)
	assert.Equal(t, bundle, cur)

	for _, p := range []string{"/api/v1/spots/5", "/api/v1/spots/5/contents", "/api/v1/spots/5/oshis"} {
		assert.Equal(t, 1, b.hitCount(p), p)
	}
}

func TestDetailAggregatorFailure(t *testing.T) {
	b := newTestBackend(t)
	b.set(func(b *testBackend) {
		b.detailStatus = http.StatusInternalServerError
		b.oshis = `[{"id":1,"name":"Aoi"}]`
	})
	info := &fakeInfo{}
	a := NewDetailAggregator(b.client(), info, NewRenderer(""), DetailOptions{})

	_, err := a.Show(context.Background(), SpotRecord{ID: "5", Name: "X"})
	require.Error(t, err)

	html, open, _ := info.snapshot()
	assert.True(t, open)
	assert.Contains(t, html, DetailErrorMessage)
	assert.NotContains(t, html, "Aoi", "no partial rendering")
	_, _, ok := a.Current()
	assert.False(t, ok)
}

func TestDetailAggregatorClose(t *testing.T) {
	b := newTestBackend(t)
	info := &fakeInfo{}
	a := NewDetailAggregator(b.client(), info, NewRenderer(""), DetailOptions{})

	_, err := a.Show(context.Background(), SpotRecord{ID: "1"})
	require.NoError(t, err)
	a.Close()
	_, open, _ := info.snapshot()
	assert.False(t, open)
	_, _, ok := a.Current()
	assert.False(t, ok)
}

func TestRouteLink(t *testing.T) {
	r := NewRenderer("https://routes.example/plan?mode=car")
	link := r.RouteLink(LatLng{Lat: 35.1, Lng: 139.2}, "Tower", "")
	assert.Equal(t, "https://routes.example/plan?mode=car&lat=35.1&lng=139.2&name=Tower", link)
}
