package spotsync

import (
	"context"
	"strings"

	"github.com/rienbien8/spotmap/pkg/logger"
	"github.com/rienbien8/spotmap/pkg/metrics"
)

// Prediction is one autocomplete candidate.
type Prediction struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
}

// Place is a resolved prediction.
type Place struct {
	PlaceID  string `json:"place_id"`
	Name     string `json:"name,omitempty"`
	Address  string `json:"address,omitempty"`
	Location LatLng `json:"location"`
}

// PlacesProvider resolves free text into places.
type PlacesProvider interface {
	Autocomplete(ctx context.Context, text, language string) ([]Prediction, error)
	PlaceDetails(ctx context.Context, placeID, language string) (Place, error)
}

// PlaceSearch looks up free text and resolves the first prediction.
type PlaceSearch struct {
	provider PlacesProvider
	language string
}

func NewPlaceSearch(p PlacesProvider, language string) *PlaceSearch {
	return &PlaceSearch{provider: p, language: language}
}

// Lookup returns the place for the first autocomplete prediction of text,
// or ErrNoCandidates.
func (s *PlaceSearch) Lookup(ctx context.Context, text string) (Place, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		metrics.PlaceSearchTotal.WithLabelValues("empty").Inc()
		return Place{}, ErrNoCandidates
	}
	preds, err := s.provider.Autocomplete(ctx, text, s.language)
	if err != nil {
		metrics.PlaceSearchTotal.WithLabelValues("error").Inc()
		return Place{}, err
	}
	if len(preds) == 0 {
		logger.Debug("place search q=%q: no predictions", text)
		metrics.PlaceSearchTotal.WithLabelValues("empty").Inc()
		return Place{}, ErrNoCandidates
	}
	first := preds[0]
	place, err := s.provider.PlaceDetails(ctx, first.PlaceID, s.language)
	if err != nil {
		metrics.PlaceSearchTotal.WithLabelValues("error").Inc()
		return Place{}, err
	}
	if place.Name == "" {
		place.Name = first.Description
	}
	logger.Debug("place search q=%q -> %s (%s)", text, place.Name, FormatLatLng(place.Location))
	metrics.PlaceSearchTotal.WithLabelValues("ok").Inc()
	return place, nil
}
