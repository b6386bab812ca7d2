package placecache

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rienbien8/spotmap/pkg/logger"
	"github.com/rienbien8/spotmap/pkg/spotsync"
)

// CachedProvider answers place lookups from the Store and asks next only on
// a miss. Failed lookups are never cached; empty prediction lists are.
type CachedProvider struct {
	next  spotsync.PlacesProvider
	store *Store
}

func NewCachedProvider(next spotsync.PlacesProvider, store *Store) *CachedProvider {
	return &CachedProvider{next: next, store: store}
}

func autocompleteKey(text, language string) string {
	return "ac:" + language + ":" + strings.ToLower(strings.TrimSpace(text))
}

func detailsKey(placeID, language string) string {
	return "pd:" + language + ":" + placeID
}

func (p *CachedProvider) Autocomplete(ctx context.Context, text, language string) ([]spotsync.Prediction, error) {
	key := autocompleteKey(text, language)
	if raw, ok := p.store.Get(ctx, key); ok {
		var preds []spotsync.Prediction
		if err := json.Unmarshal(raw, &preds); err == nil {
			return preds, nil
		}
		logger.Error("place cache entry %q unreadable, refetching", key)
	}
	preds, err := p.next.Autocomplete(ctx, text, language)
	if err != nil {
		return nil, err
	}
	p.put(ctx, key, preds)
	return preds, nil
}

func (p *CachedProvider) PlaceDetails(ctx context.Context, placeID, language string) (spotsync.Place, error) {
	key := detailsKey(placeID, language)
	if raw, ok := p.store.Get(ctx, key); ok {
		var place spotsync.Place
		if err := json.Unmarshal(raw, &place); err == nil {
			return place, nil
		}
		logger.Error("place cache entry %q unreadable, refetching", key)
	}
	place, err := p.next.PlaceDetails(ctx, placeID, language)
	if err != nil {
		return spotsync.Place{}, err
	}
	p.put(ctx, key, place)
	return place, nil
}

func (p *CachedProvider) put(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if string(b) == "null" {
		b = []byte("[]")
	}
	if err := p.store.Put(ctx, key, b); err != nil {
		logger.Error("place cache write %q: %v", key, err)
	}
}

var _ spotsync.PlacesProvider = (*CachedProvider)(nil)
