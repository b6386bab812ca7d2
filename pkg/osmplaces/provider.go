// Package osmplaces resolves place searches through a Nominatim server.
package osmplaces

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/muesli/gominatim"

	"github.com/rienbien8/spotmap/pkg/logger"
	"github.com/rienbien8/spotmap/pkg/spotsync"
)

const (
	DefaultServer = "https://nominatim.openstreetmap.org"
	idPrefix      = "nominatim:"

	// Nominatim's usage policy allows roughly one request per second from
	// a client; bursts of autocomplete are spaced out.
	minInterval    = 400 * time.Millisecond
	retryBackoff   = 150 * time.Millisecond
	defaultLimit   = 5
	defaultRetries = 1
	maxNames       = 256
)

// Provider implements spotsync.PlacesProvider on top of gominatim.
// PlaceDetails needs no round trip: the coordinates travel in the id.
type Provider struct {
	limit   int
	retries int

	throttleMu sync.Mutex
	last       time.Time

	// names keeps the display names of recent predictions for PlaceDetails.
	names *lru.Cache[string, string]

	search func(q gominatim.SearchQuery) ([]gominatim.SearchResult, error)
}

// New points gominatim at server (DefaultServer when empty).
func New(server string) *Provider {
	if strings.TrimSpace(server) == "" {
		server = DefaultServer
	}
	gominatim.SetServer(server)
	names, _ := lru.New[string, string](maxNames)
	return &Provider{
		limit:   defaultLimit,
		retries: defaultRetries,
		names:   names,
		search:  func(q gominatim.SearchQuery) ([]gominatim.SearchResult, error) { return q.Get() },
	}
}

// PlaceID encodes a coordinate as a provider place id.
func PlaceID(p spotsync.LatLng) string {
	return idPrefix + spotsync.FormatLatLng(p)
}

// ParsePlaceID is the inverse of PlaceID.
func ParsePlaceID(id string) (spotsync.LatLng, error) {
	rest, ok := strings.CutPrefix(id, idPrefix)
	if !ok {
		return spotsync.LatLng{}, fmt.Errorf("not a nominatim place id: %q", id)
	}
	latStr, lngStr, ok := strings.Cut(rest, ",")
	if !ok {
		return spotsync.LatLng{}, fmt.Errorf("malformed place id: %q", id)
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return spotsync.LatLng{}, fmt.Errorf("malformed place id %q: %w", id, err)
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return spotsync.LatLng{}, fmt.Errorf("malformed place id %q: %w", id, err)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return spotsync.LatLng{}, fmt.Errorf("place id out of range: %q", id)
	}
	return spotsync.LatLng{Lat: lat, Lng: lng}, nil
}

func (p *Provider) wait(ctx context.Context) error {
	p.throttleMu.Lock()
	defer p.throttleMu.Unlock()
	if d := minInterval - time.Since(p.last); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	p.last = time.Now()
	return nil
}

func transient(err error) bool {
	s := err.Error()
	return strings.Contains(s, "unexpected end of JSON") || strings.Contains(s, "EOF")
}

// Autocomplete runs a free text search. Language is not forwarded;
// Nominatim answers in the server's default locale.
func (p *Provider) Autocomplete(ctx context.Context, text, _ string) ([]spotsync.Prediction, error) {
	q := gominatim.SearchQuery{Q: text, Limit: p.limit}
	var res []gominatim.SearchResult
	var err error
	attempts := p.retries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := p.wait(ctx); err != nil {
			return nil, err
		}
		res, err = p.search(q)
		if err == nil {
			if attempt > 1 {
				logger.Info("nominatim recovered after %d attempt(s) for %q", attempt, text)
			}
			break
		}
		if !transient(err) || attempt == attempts {
			logger.Error("nominatim search error (attempt %d/%d, query=%q): %v", attempt, attempts, text, err)
			return nil, &spotsync.NetworkError{URL: "nominatim", Err: err}
		}
		logger.Warn("transient nominatim error (attempt %d/%d, will retry) query=%q err=%v", attempt, attempts, text, err)
		time.Sleep(retryBackoff)
	}

	preds := make([]spotsync.Prediction, 0, len(res))
	for _, r := range res {
		lat, err1 := strconv.ParseFloat(r.Lat, 64)
		lng, err2 := strconv.ParseFloat(r.Lon, 64)
		if err1 != nil || err2 != nil || r.DisplayName == "" {
			continue
		}
		id := PlaceID(spotsync.LatLng{Lat: lat, Lng: lng})
		p.names.Add(id, r.DisplayName)
		preds = append(preds, spotsync.Prediction{PlaceID: id, Description: r.DisplayName})
	}
	return preds, nil
}

// PlaceDetails decodes the id back into a place.
func (p *Provider) PlaceDetails(_ context.Context, placeID, _ string) (spotsync.Place, error) {
	loc, err := ParsePlaceID(placeID)
	if err != nil {
		return spotsync.Place{}, err
	}
	name, _ := p.names.Get(placeID)
	return spotsync.Place{PlaceID: placeID, Name: name, Address: name, Location: loc}, nil
}

var _ spotsync.PlacesProvider = (*Provider)(nil)
