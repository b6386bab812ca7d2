package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/multierr"

	"github.com/rienbien8/spotmap/pkg/config"
	"github.com/rienbien8/spotmap/pkg/geoclue"
	"github.com/rienbien8/spotmap/pkg/logger"
	"github.com/rienbien8/spotmap/pkg/mapbridge"
	"github.com/rienbien8/spotmap/pkg/osmplaces"
	"github.com/rienbien8/spotmap/pkg/placecache"
	"github.com/rienbien8/spotmap/pkg/spotsync"
)

// Size assumed for the map until the front-end reports its own, so the
// initial load has bounds to fetch.
const (
	defaultViewportWidth  = 1280
	defaultViewportHeight = 800
)

// app is one running map session and the stores behind it.
type app struct {
	cfg     config.Config
	ctrl    *spotsync.Controller
	surface *mapbridge.Surface
	cache   *placecache.Store
	history *placecache.Store
}

// newApp wires the controller. cache, history and locator may be nil.
func newApp(cfg config.Config, cache, history *placecache.Store, locator spotsync.Geolocator) (*app, error) {
	client := spotsync.NewClient(cfg.BackendURL, &http.Client{Timeout: cfg.HTTPTimeout})

	var places spotsync.PlacesProvider = client
	if cfg.PlacesProvider == config.ProviderNominatim {
		places = osmplaces.New(cfg.NominatimServer)
	}

	opts := cfg.ControllerOptions()
	opts.Spots = client
	opts.Details = client
	opts.Geolocator = locator
	if cache != nil {
		places = placecache.NewCachedProvider(places, cache)
	}
	if history != nil {
		opts.History = history
	}
	opts.Places = places

	surface := mapbridge.New()
	surface.SetSize(defaultViewportWidth, defaultViewportHeight)
	ctrl, err := spotsync.NewController(surface, surface, opts)
	if err != nil {
		return nil, err
	}
	surface.OnMove(ctrl.NotifyViewportChanged)
	return &app{cfg: cfg, ctrl: ctrl, surface: surface, cache: cache, history: history}, nil
}

func main() {
	debugFlag := flag.Bool("debug", false, "enable debug logging")
	addrFlag := flag.String("addr", "", "listen address (overrides SPOTMAP_ADDR)")
	dataDirFlag := flag.String("data-dir", "", "custom data directory (overrides XDG_DATA_HOME)")
	configDirFlag := flag.String("config-dir", "", "custom config directory (overrides XDG_CONFIG_HOME)")
	cacheDirFlag := flag.String("cache-dir", "", "custom cache directory (overrides XDG_CACHE_HOME)")
	noLocation := flag.Bool("no-location", false, "do not ask GeoClue for the device position")
	flag.Parse()

	logger.SetDebug(*debugFlag)
	defer logger.Sync()

	configDir, err := appDir(*configDirFlag, xdgConfigDir())
	if err != nil {
		logger.Error("Failed to create config dir %s: %v", configDir, err)
	}
	dataDir, err := appDir(*dataDirFlag, xdgDataDir())
	if err != nil {
		logger.Error("Failed to create data dir %s: %v", dataDir, err)
	}
	cacheDir, err := appDir(*cacheDirFlag, xdgCacheDir())
	if err != nil {
		logger.Error("Failed to create cache dir %s: %v", cacheDir, err)
	}

	cfg, err := config.Load(envFiles(configDir)...)
	if err != nil {
		logger.Fatalf("configuration: %v", err)
	}
	if *addrFlag != "" {
		cfg.Server.Addr = *addrFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, err := placecache.Open(filepath.Join(cacheDir, "geocode.sqlite"))
	if err != nil {
		logger.Error("geocode cache unavailable, continuing without: %v", err)
		cache = nil
	}
	history, err := placecache.Open(filepath.Join(dataDir, "history.sqlite"))
	if err != nil {
		logger.Error("search history unavailable, continuing without: %v", err)
		history = nil
	}

	var locator spotsync.Geolocator
	var tracker *geoclue.Tracker
	if !*noLocation {
		tracker = geoclue.NewTracker(appName + ".desktop")
		tracker.Start(ctx)
		locator = tracker
	}

	a, err := newApp(cfg, cache, history, locator)
	if err != nil {
		logger.Fatalf("startup: %v", err)
	}

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: newRouter(a)}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("spotmap API listening on http://%s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	go func() {
		if err := a.ctrl.Start(ctx); err != nil {
			logger.Error("initial spot load: %v", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			logger.Error("API server error on %s: %v", cfg.Server.Addr, err)
		}
	}

	if err := shutdown(a, srv, tracker); err != nil {
		logger.Error("shutdown: %v", err)
		os.Exit(1)
	}
}

// shutdown stops the server, then the session, then the stores. Every step
// runs; the errors are combined.
func shutdown(a *app, srv *http.Server, tracker *geoclue.Tracker) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var err error
	err = multierr.Append(err, srv.Shutdown(ctx))
	a.ctrl.Close()
	if tracker != nil {
		tracker.Stop()
	}
	if a.cache != nil {
		err = multierr.Append(err, a.cache.Close())
	}
	if a.history != nil {
		err = multierr.Append(err, a.history.Close())
	}
	return err
}
