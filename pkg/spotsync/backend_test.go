package spotsync

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// testBackend is an in-process stand-in for the spot API and maps BFF.
type testBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu           sync.Mutex
	hits         map[string]int
	spotQueries  []url.Values
	spotStatus   int
	spotBody     string
	predictions  string
	placeDetails string
	detailStatus int
	contents     string
	oshis        string
}

func newTestBackend(t *testing.T) *testBackend {
	b := &testBackend{
		t:            t,
		hits:         map[string]int{},
		spotStatus:   http.StatusOK,
		spotBody:     `{"count":0,"items":[]}`,
		predictions:  `{"predictions":[]}`,
		detailStatus: http.StatusOK,
		contents:     `{"items":[]}`,
		oshis:        `[]`,
	}
	b.srv = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *testBackend) client() *Client {
	return NewClient(b.srv.URL, b.srv.Client())
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (b *testBackend) serve(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.hits[r.URL.Path]++
	b.mu.Unlock()

	path := r.URL.Path
	switch {
	case path == "/api/v1/spots":
		b.mu.Lock()
		b.spotQueries = append(b.spotQueries, r.URL.Query())
		status, body := b.spotStatus, b.spotBody
		b.mu.Unlock()
		writeJSON(w, status, body)
	case path == "/bff/maps/autocomplete":
		b.mu.Lock()
		body := b.predictions
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, body)
	case path == "/bff/maps/place-details":
		b.mu.Lock()
		body := b.placeDetails
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, body)
	case strings.HasSuffix(path, "/contents"):
		b.mu.Lock()
		body := b.contents
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, body)
	case strings.HasSuffix(path, "/oshis"):
		b.mu.Lock()
		body := b.oshis
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, body)
	case strings.HasPrefix(path, "/api/v1/spots/"):
		id := strings.TrimPrefix(path, "/api/v1/spots/")
		b.mu.Lock()
		status := b.detailStatus
		b.mu.Unlock()
		if status != http.StatusOK {
			writeJSON(w, status, `{"detail":"boom"}`)
			return
		}
		d, _ := json.Marshal(map[string]any{
			"id": id, "name": "Spot " + id, "lat": 35.0, "lng": 139.0,
			"address": "1-1 Chiyoda", "description": "<p>Nice <b>view</b></p><script>alert(1)</script>",
		})
		writeJSON(w, http.StatusOK, string(d))
	default:
		http.NotFound(w, r)
	}
}

func (b *testBackend) hitCount(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[path]
}

func (b *testBackend) lastSpotQuery() url.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.spotQueries) == 0 {
		return nil
	}
	return b.spotQueries[len(b.spotQueries)-1]
}

func (b *testBackend) set(fn func(b *testBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}
