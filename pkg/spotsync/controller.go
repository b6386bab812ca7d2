package spotsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rienbien8/spotmap/pkg/logger"
	"github.com/rienbien8/spotmap/pkg/metrics"
)

// Status lines shown to the user.
const (
	StatusIdle           = "ready"
	StatusLoading        = "loading spots"
	StatusNoCandidates   = "no candidates"
	StatusLocationDenied = "location unavailable"
	StatusSearchFailed   = "place search failed"
)

// Defaults used when Options leave a field zero.
var (
	DefaultCenter     = LatLng{Lat: 35.681236, Lng: 139.767125}
	DefaultZoom       = 13
	DefaultSearchZoom = 15
	DefaultLimit      = 100
)

// SearchHistory records resolved place searches.
type SearchHistory interface {
	RecordSearch(ctx context.Context, query string, at LatLng) error
}

// Options configures a Controller.
type Options struct {
	MapsAPIKey  string
	Center      LatLng
	Zoom        int
	SearchZoom  int
	Limit       int
	Filter      Filter
	QuietWindow time.Duration
	Language    string
	Detail      DetailOptions
	RouteURL    string

	Spots      SpotSearcher
	Details    DetailSource
	Places     PlacesProvider
	Geolocator Geolocator
	History    SearchHistory
}

func (o *Options) setDefaults() {
	if o.Center == (LatLng{}) {
		o.Center = DefaultCenter
	}
	if o.Zoom <= 0 {
		o.Zoom = DefaultZoom
	}
	if o.SearchZoom <= 0 {
		o.SearchZoom = DefaultSearchZoom
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.QuietWindow <= 0 {
		o.QuietWindow = DefaultQuietWindow
	}
	if o.Details == nil {
		if ds, ok := o.Spots.(DetailSource); ok {
			o.Details = ds
		}
	}
	if o.Places == nil {
		if pp, ok := o.Spots.(PlacesProvider); ok {
			o.Places = pp
		}
	}
}

func (o *Options) validate() error {
	if strings.TrimSpace(o.MapsAPIKey) == "" {
		return &ConfigError{Field: "maps_api_key", Msg: "missing"}
	}
	if o.Spots == nil {
		return &ConfigError{Field: "spots", Msg: "no spot source"}
	}
	if o.Details == nil {
		return &ConfigError{Field: "details", Msg: "no detail source"}
	}
	return nil
}

type movement struct {
	viewport Viewport
	cause    MoveCause
}

// Controller owns one map session: the map handle, the marker set, the info
// window and the refresh gate. All mutation goes through its methods.
type Controller struct {
	opts      Options
	m         Map
	fetcher   *SpotFetcher
	markers   *MarkerReconciler
	gate      *RefreshGate
	details   *DetailAggregator
	places    *PlaceSearch
	debouncer *Debouncer[movement]
	events    *Emitter

	ctx    context.Context
	cancel context.CancelFunc

	// gen is bumped for every triggered fetch; only the latest may commit.
	gen atomic.Uint64

	mu      sync.Mutex
	filter  Filter
	status  string
	spots   []SpotRecord
	byID    map[SpotID]SpotRecord
	started bool
	closed  bool
}

// NewController builds a controller for m. It fails with *ConfigError when
// the maps API key or a data source is missing.
func NewController(m Map, info InfoWindow, opts Options) (*Controller, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if m == nil || info == nil {
		return nil, &ConfigError{Field: "map", Msg: "no map surface"}
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		opts:    opts,
		m:       m,
		fetcher: NewSpotFetcher(opts.Spots),
		gate:    NewRefreshGate(),
		events:  NewEmitter(),
		ctx:     ctx,
		cancel:  cancel,
		filter:  opts.Filter,
		status:  StatusIdle,
		byID:    map[SpotID]SpotRecord{},
	}
	c.markers = NewMarkerReconciler(m, c.onMarkerClick)
	c.details = NewDetailAggregator(opts.Details, info, NewRenderer(opts.RouteURL), opts.Detail)
	c.details.notify = func(e InfoWindowChanged) { c.events.Emit(e) }
	if opts.Places != nil {
		c.places = NewPlaceSearch(opts.Places, opts.Language)
	}
	c.debouncer = NewDebouncer(opts.QuietWindow, c.onSettle)
	return c, nil
}

// Subscribe registers l for controller events.
func (c *Controller) Subscribe(l Listener) func() {
	return c.events.Subscribe(l)
}

// Start performs the initial load: default center and zoom, one fetch, and
// no trip through Dirty.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	c.recenter(c.opts.Center, c.opts.Zoom)
	c.events.Emit(CenterChanged{Center: c.opts.Center, Reason: ReasonInitial})
	return c.refresh(ctx)
}

// NotifyViewportChanged feeds one movement notification from the map into
// the debouncer.
func (c *Controller) NotifyViewportChanged(cause MoveCause) {
	if c.isClosed() {
		return
	}
	c.debouncer.Notify(movement{viewport: c.m.Viewport(), cause: cause})
}

func (c *Controller) onSettle(mv movement) {
	if c.isClosed() {
		return
	}
	if mv.cause != CauseUser {
		logger.Debug("viewport settled after programmatic move center=%s", FormatLatLng(mv.viewport.Center))
		return
	}
	events := []Event{CenterChanged{Center: mv.viewport.Center, Reason: ReasonMove}}
	if c.gate.Settled(mv.cause) {
		logger.Debug("refresh gate idle -> dirty")
		events = append(events, GateChanged{State: Dirty, AffordanceVisible: true})
	}
	c.events.Emit(events...)
}

// SearchThisArea is the manual refresh: Dirty -> Idle and fetch the current
// viewport.
func (c *Controller) SearchThisArea(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	c.confirmGate()
	return c.refresh(ctx)
}

// Search resolves text to a place, recenters there and fetches. When there
// are no candidates only the status changes.
func (c *Controller) Search(ctx context.Context, text string) error {
	if c.isClosed() {
		return ErrClosed
	}
	if c.places == nil {
		c.setStatus(StatusSearchFailed)
		return &ConfigError{Field: "places", Msg: "no places provider"}
	}
	place, err := c.places.Lookup(ctx, text)
	if errors.Is(err, ErrNoCandidates) {
		c.setStatus(StatusNoCandidates)
		return nil
	}
	if err != nil {
		logger.Error("place search %q failed: %v", text, err)
		c.setStatus(StatusSearchFailed)
		return err
	}

	c.recenter(place.Location, c.opts.SearchZoom)
	c.events.Emit(CenterChanged{Center: place.Location, Reason: ReasonSearch})
	c.confirmGate()
	if c.opts.History != nil {
		if err := c.opts.History.RecordSearch(ctx, strings.TrimSpace(text), place.Location); err != nil {
			logger.Error("record search history: %v", err)
		}
	}
	return c.refresh(ctx)
}

// LocateMe recenters on the device position and fetches.
func (c *Controller) LocateMe(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	if c.opts.Geolocator == nil {
		c.setStatus(StatusLocationDenied)
		return ErrGeolocationDenied
	}
	pos, err := c.opts.Geolocator.Locate(ctx)
	if err != nil {
		logger.Info("geolocation unavailable: %v", err)
		c.setStatus(StatusLocationDenied)
		if !errors.Is(err, ErrGeolocationDenied) {
			err = fmt.Errorf("%w: %v", ErrGeolocationDenied, err)
		}
		return err
	}
	c.recenter(pos, c.opts.SearchZoom)
	c.events.Emit(CenterChanged{Center: pos, Reason: ReasonLocate})
	c.confirmGate()
	return c.refresh(ctx)
}

// SelectSpot opens the detail popup for a spot on the map, as a marker click
// would.
func (c *Controller) SelectSpot(ctx context.Context, id SpotID) (DetailBundle, error) {
	c.mu.Lock()
	spot, ok := c.byID[id]
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return DetailBundle{}, ErrClosed
	}
	if !ok {
		return DetailBundle{}, ErrUnknownSpot
	}
	return c.showDetail(ctx, spot)
}

func (c *Controller) onMarkerClick(spot SpotRecord) {
	_, _ = c.showDetail(c.ctx, spot)
}

// showDetail fills the info window. The infowindow_changed event is emitted
// by the aggregator only for results that reach the window.
func (c *Controller) showDetail(ctx context.Context, spot SpotRecord) (DetailBundle, error) {
	b, err := c.details.Show(ctx, spot)
	if c.isClosed() {
		return DetailBundle{}, ErrClosed
	}
	return b, err
}

// CloseDetail closes the info window.
func (c *Controller) CloseDetail() {
	c.details.Close()
}

// SetFilter replaces the filter state. It applies from the next fetch.
func (c *Controller) SetFilter(f Filter) {
	c.mu.Lock()
	c.filter = f
	c.mu.Unlock()
}

// Filter returns the current filter state.
func (c *Controller) Filter() Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// refresh runs BBoxCodec -> SpotFetcher -> MarkerReconciler for the current
// viewport. A failed fetch leaves the markers as they were.
func (c *Controller) refresh(ctx context.Context) error {
	c.mu.Lock()
	filter := c.filter
	c.mu.Unlock()

	q, ok := BuildQuery(c.m.Viewport(), filter, c.opts.Limit)
	if !ok {
		logger.Debug("map has no bounds yet, skipping fetch")
		return nil
	}
	gen := c.gen.Add(1)
	c.setStatus(StatusLoading)
	c.events.Emit(BBoxChanged{BBox: q.BBox})

	page, err := c.fetcher.Fetch(ctx, q)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if gen != c.gen.Load() {
		c.mu.Unlock()
		metrics.StaleCommitTotal.Inc()
		logger.Debug("dropping spot result gen=%d latest=%d", gen, c.gen.Load())
		return nil
	}
	if err != nil {
		c.status = statusFor(err)
		status := c.status
		c.mu.Unlock()
		logger.Error("spot fetch failed bbox=%s: %v", q.BBox, err)
		c.events.Emit(StatusChanged{Status: status})
		return err
	}
	c.markers.Commit(page.Items)
	c.spots = page.Items
	c.byID = make(map[SpotID]SpotRecord, len(page.Items))
	for _, s := range page.Items {
		c.byID[s.ID] = s
	}
	c.status = fmt.Sprintf("%d spots", len(page.Items))
	status := c.status
	spots := append([]SpotRecord(nil), page.Items...)
	c.mu.Unlock()

	logger.Debug("committed %d spots gen=%d bbox=%s", len(spots), gen, q.BBox)
	c.events.Emit(SpotsUpdated{Spots: spots}, StatusChanged{Status: status})
	return nil
}

func (c *Controller) recenter(center LatLng, zoom int) {
	c.m.SetZoom(zoom)
	c.m.SetCenter(center)
}

func (c *Controller) confirmGate() {
	if c.gate.Confirm() {
		logger.Debug("refresh gate dirty -> idle")
		c.events.Emit(GateChanged{State: Idle, AffordanceVisible: false})
	}
}

func (c *Controller) setStatus(s string) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
	c.events.Emit(StatusChanged{Status: s})
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Status returns the current status line.
func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Gate returns the refresh gate state.
func (c *Controller) Gate() GateState {
	return c.gate.State()
}

// AffordanceVisible reports whether "search this area" is shown.
func (c *Controller) AffordanceVisible() bool {
	return c.gate.AffordanceVisible()
}

// Spots returns the last committed spot list.
func (c *Controller) Spots() []SpotRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SpotRecord(nil), c.spots...)
}

// Markers returns the markers currently on the map.
func (c *Controller) Markers() []MarkerEntry {
	return c.markers.Entries()
}

// Detail returns the bundle shown in the info window.
func (c *Controller) Detail() (DetailBundle, SpotID, bool) {
	return c.details.Current()
}

// Viewport returns the map viewport.
func (c *Controller) Viewport() Viewport {
	return c.m.Viewport()
}

// MapsAPIKey returns the key the front-end needs to load the map SDK.
func (c *Controller) MapsAPIKey() string {
	return c.opts.MapsAPIKey
}

// Close tears the session down. Pending settles are cancelled and results of
// in-flight fetches are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.debouncer.Stop()
	c.cancel()
	c.details.Close()
}
