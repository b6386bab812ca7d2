package spotsync

import (
	"context"
	"time"

	"github.com/rienbien8/spotmap/pkg/logger"
	"github.com/rienbien8/spotmap/pkg/metrics"
)

// SpotSearcher issues the spot search request.
type SpotSearcher interface {
	SearchSpots(ctx context.Context, q BBoxQuery) (SpotPage, error)
}

// SpotFetcher runs one spot search and normalizes the result.
type SpotFetcher struct {
	src SpotSearcher
}

func NewSpotFetcher(src SpotSearcher) *SpotFetcher {
	return &SpotFetcher{src: src}
}

// Fetch returns the spots for q. There is no retry; the caller keeps its
// previous markers on error.
func (f *SpotFetcher) Fetch(ctx context.Context, q BBoxQuery) (SpotPage, error) {
	t0 := time.Now()
	metrics.SpotFetchTotal.Inc()
	logger.Debug("spot fetch bbox=%s origin=%s limit=%d", q.BBox, q.Origin, q.Limit)
	page, err := f.src.SearchSpots(ctx, q)
	metrics.SpotFetchDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	if err != nil {
		metrics.SpotFetchFailTotal.Inc()
		return SpotPage{}, err
	}
	page.Items = DedupeSpots(page.Items)
	return page, nil
}

// DedupeSpots returns a new slice without repeated ids, preserving the first
// occurrence order. Spots without an id are dropped. The input slice is not
// modified.
func DedupeSpots(in []SpotRecord) []SpotRecord {
	seen := make(map[SpotID]struct{}, len(in))
	out := make([]SpotRecord, 0, len(in))
	for _, s := range in {
		if s.ID == "" {
			logger.Debug("dropping spot without id name=%q", s.Name)
			continue
		}
		if _, ok := seen[s.ID]; ok {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}
	return out
}
