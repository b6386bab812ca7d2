package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SpotFetchTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spotmap_spot_fetch_total",
		Help: "Total spot search requests",
	})
	SpotFetchFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spotmap_spot_fetch_fail_total",
		Help: "Total failed spot search requests",
	})
	SpotFetchDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "spotmap_spot_fetch_duration_ms",
		Help:    "Spot search duration in milliseconds",
		Buckets: []float64{5, 10, 20, 50, 100, 200, 500, 1000, 2000},
	})
	StaleCommitTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spotmap_stale_commit_total",
		Help: "Fetch results dropped because a newer fetch was issued",
	})
	MarkersDisplayed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spotmap_markers_displayed",
		Help: "Markers currently on the map",
	})
	DetailFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spotmap_detail_fetch_total",
		Help: "Spot detail aggregations by result",
	}, []string{"result"})
	PlaceSearchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spotmap_place_search_total",
		Help: "Place searches by result",
	}, []string{"result"})
	GeocodeCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spotmap_geocode_cache_total",
		Help: "Autocomplete cache lookups by tier",
	}, []string{"tier"})
)

func init() {
	prometheus.MustRegister(
		SpotFetchTotal,
		SpotFetchFailTotal,
		SpotFetchDurationMs,
		StaleCommitTotal,
		MarkersDisplayed,
		DetailFetchTotal,
		PlaceSearchTotal,
		GeocodeCacheTotal,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
