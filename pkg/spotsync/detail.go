package spotsync

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rienbien8/spotmap/pkg/logger"
	"github.com/rienbien8/spotmap/pkg/metrics"
)

// DetailSource serves the three per-spot lookups.
type DetailSource interface {
	SpotDetail(ctx context.Context, id SpotID) (SpotDetail, error)
	SpotContents(ctx context.Context, id SpotID, langs []string, maxDuration int) ([]ContentSummary, error)
	SpotEntities(ctx context.Context, id SpotID) ([]Entity, error)
}

// DetailOptions bounds the content lookup.
type DetailOptions struct {
	Langs       []string
	MaxDuration int
}

// DetailAggregator fills the shared info window for a selected spot. It owns
// the info window.
type DetailAggregator struct {
	src      DetailSource
	info     InfoWindow
	renderer *Renderer
	opts     DetailOptions

	mu      sync.Mutex
	gen     uint64
	current *DetailBundle
	spot    SpotID
	open    bool
	// notify runs under mu so window changes reach listeners in the order
	// they were applied.
	notify func(InfoWindowChanged)
}

func NewDetailAggregator(src DetailSource, info InfoWindow, r *Renderer, opts DetailOptions) *DetailAggregator {
	return &DetailAggregator{src: src, info: info, renderer: r, opts: opts}
}

// Load runs the three lookups in parallel and waits for all of them. Any
// failure fails the whole bundle.
func (a *DetailAggregator) Load(ctx context.Context, id SpotID) (DetailBundle, error) {
	var b DetailBundle
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := a.src.SpotDetail(gctx, id)
		b.Detail = d
		return err
	})
	g.Go(func() error {
		cs, err := a.src.SpotContents(gctx, id, a.opts.Langs, a.opts.MaxDuration)
		b.Contents = cs
		return err
	})
	g.Go(func() error {
		es, err := a.src.SpotEntities(gctx, id)
		b.RelatedEntities = es
		return err
	})
	if err := g.Wait(); err != nil {
		return DetailBundle{}, err
	}
	return b, nil
}

func (a *DetailAggregator) changed(e InfoWindowChanged) {
	if a.notify != nil {
		a.notify(e)
	}
}

// Show loads the bundle for spot and renders it, or a single error block,
// into the info window. A result that arrives after a newer Show or a Close
// is discarded and ErrSuperseded is returned.
func (a *DetailAggregator) Show(ctx context.Context, spot SpotRecord) (DetailBundle, error) {
	a.mu.Lock()
	a.gen++
	gen := a.gen
	a.mu.Unlock()

	b, err := a.Load(ctx, spot.ID)

	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen {
		logger.Debug("detail for spot %s superseded", spot.ID)
		metrics.DetailFetchTotal.WithLabelValues("superseded").Inc()
		return DetailBundle{}, ErrSuperseded
	}
	a.spot = spot.ID
	a.open = true
	if err != nil {
		logger.Error("detail for spot %s failed: %v", spot.ID, err)
		metrics.DetailFetchTotal.WithLabelValues("error").Inc()
		a.current = nil
		a.info.Open(spot.Position(), a.renderer.Error())
		a.changed(InfoWindowChanged{SpotID: spot.ID, Open: true, Failed: true})
		return DetailBundle{}, err
	}
	metrics.DetailFetchTotal.WithLabelValues("ok").Inc()
	a.current = &b
	a.info.Open(spot.Position(), a.renderer.Summary(b, spot))
	a.changed(InfoWindowChanged{SpotID: spot.ID, Open: true})
	return b, nil
}

// Current returns the bundle shown in the info window, if any.
func (a *DetailAggregator) Current() (DetailBundle, SpotID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return DetailBundle{}, a.spot, false
	}
	return *a.current, a.spot, true
}

// Close closes the info window and discards the bundle. In-flight loads
// are superseded.
func (a *DetailAggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gen++
	a.current = nil
	a.spot = ""
	a.info.Close()
	if a.open {
		a.open = false
		a.changed(InfoWindowChanged{Open: false})
	}
}
