// Package geoclue reads the device position from GeoClue2 over the D-Bus
// system bus.
//
// GeoClue only serves clients whose DesktopId matches a .desktop file that
// carries X-Geoclue-2-Client=true, so Start writes one into
// ~/.local/share/applications when it is missing. When GeoClue is not
// available Locate fails with spotsync.ErrGeolocationDenied.
package geoclue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/rienbien8/spotmap/pkg/logger"
	"github.com/rienbien8/spotmap/pkg/spotsync"
)

const (
	geoService    = "org.freedesktop.GeoClue2"
	managerPath   = dbus.ObjectPath("/org/freedesktop/GeoClue2/Manager")
	managerIface  = "org.freedesktop.GeoClue2.Manager"
	clientIface   = "org.freedesktop.GeoClue2.Client"
	locationIface = "org.freedesktop.GeoClue2.Location"
	propsIface    = "org.freedesktop.DBus.Properties"

	// DefaultWait bounds how long Locate waits for the first fix.
	DefaultWait = 5 * time.Second
)

// Fix is the last known position.
type Fix struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy_m,omitempty"`
	Altitude  float64   `json:"altitude_m,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Tracker keeps the latest GeoClue fix. It implements spotsync.Geolocator.
type Tracker struct {
	desktopID string
	wait      time.Duration

	mu      sync.RWMutex
	fix     Fix
	valid   bool
	ready   chan struct{}
	started bool
	cancel  context.CancelFunc
}

// NewTracker returns an idle tracker identifying itself as desktopID
// (for example "spotmap.desktop").
func NewTracker(desktopID string) *Tracker {
	return &Tracker{desktopID: desktopID, wait: DefaultWait, ready: make(chan struct{})}
}

// Start launches the background GeoClue loop. Calling it twice is a no-op.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.started = true
	if err := ensureDesktopFile(t.desktopID); err != nil {
		logger.Warn("location: failed to ensure desktop file: %v", err)
	}
	ctx, t.cancel = context.WithCancel(ctx)
	go t.run(ctx)
}

// Stop ends the background loop.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
}

// Current returns the last fix, if there is one.
func (t *Tracker) Current() (Fix, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fix, t.valid
}

// Locate returns the current position, waiting a bounded time for the first
// fix.
func (t *Tracker) Locate(ctx context.Context) (spotsync.LatLng, error) {
	t.mu.RLock()
	started, ready := t.started, t.ready
	t.mu.RUnlock()
	if !started {
		if fix, ok := t.Current(); ok {
			return spotsync.LatLng{Lat: fix.Lat, Lng: fix.Lng}, nil
		}
		return spotsync.LatLng{}, fmt.Errorf("%w: geoclue tracking not started", spotsync.ErrGeolocationDenied)
	}
	timer := time.NewTimer(t.wait)
	defer timer.Stop()
	select {
	case <-ready:
		fix, _ := t.Current()
		return spotsync.LatLng{Lat: fix.Lat, Lng: fix.Lng}, nil
	case <-timer.C:
		return spotsync.LatLng{}, fmt.Errorf("%w: no fix after %s", spotsync.ErrGeolocationDenied, t.wait)
	case <-ctx.Done():
		return spotsync.LatLng{}, fmt.Errorf("%w: %v", spotsync.ErrGeolocationDenied, ctx.Err())
	}
}

func (t *Tracker) store(f Fix) {
	if f.Lat == 0 && f.Lng == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fix = f
	if !t.valid {
		t.valid = true
		close(t.ready)
	}
}

// ensureDesktopFile writes a minimal desktop file unless one exists.
func ensureDesktopFile(desktopID string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	appsDir := filepath.Join(home, ".local", "share", "applications")
	if err := os.MkdirAll(appsDir, 0o755); err != nil {
		return err
	}
	dest := filepath.Join(appsDir, desktopID)
	if _, err := os.Stat(dest); err == nil {
		return nil
	}
	content := `[Desktop Entry]
Type=Application
Name=Spotmap
Comment=Spot map (GeoClue client)
Exec=spotmap
Terminal=false
Categories=Utility;
X-Geoclue-2-Client=true
X-Geoclue-2-Access-Fine=true
`
	return os.WriteFile(dest, []byte(content), 0o644)
}

// run keeps trying to establish location updates until ctx is done.
func (t *Tracker) run(ctx context.Context) {
	const (
		maxInitialRetries = 5
		retryBaseDelay    = 2 * time.Second
		requestedAccuracy = uint32(5)  // exact
		distanceThreshold = uint32(25) // meters
		timeThreshold     = uint32(5)  // seconds
	)

	var attempt int
	for {
		if ctx.Err() != nil {
			return
		}
		err := func() error {
			cl, err := newClient(t.desktopID, requestedAccuracy, distanceThreshold, timeThreshold)
			if err != nil {
				return err
			}
			defer cl.close()
			if err := cl.start(); err != nil {
				return err
			}
			if lp, err := cl.locationPath(); err == nil && lp != "" && lp != "/" {
				cl.read(lp, t.store)
			}
			return cl.listen(ctx, t.store)
		}()
		if err == nil {
			return
		}
		attempt++
		delay := 30 * time.Second
		if attempt <= maxInitialRetries {
			delay = retryBaseDelay * time.Duration(attempt)
		}
		logger.Info("location: retrying after error (%v), attempt=%d delay=%s", err, attempt, delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

type client struct {
	path dbus.ObjectPath
	bus  *dbus.Conn
}

func newClient(desktopID string, acc, dist, sec uint32) (*client, error) {
	bus, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, err
	}
	manager := bus.Object(geoService, managerPath)

	var clientPath dbus.ObjectPath
	if err := manager.Call(managerIface+".CreateClient", 0).Store(&clientPath); err != nil {
		bus.Close()
		return nil, err
	}
	obj := bus.Object(geoService, clientPath)
	setProp := func(name string, val any) error {
		return obj.Call(propsIface+".Set", 0, clientIface, name, dbus.MakeVariant(val)).Err
	}
	if err := setProp("DesktopId", desktopID); err != nil {
		bus.Close()
		return nil, fmt.Errorf("set DesktopId: %w", err)
	}
	if err := setProp("RequestedAccuracyLevel", acc); err != nil {
		bus.Close()
		return nil, fmt.Errorf("set accuracy: %w", err)
	}
	_ = setProp("DistanceThreshold", dist)
	_ = setProp("TimeThreshold", sec)
	return &client{path: clientPath, bus: bus}, nil
}

func (c *client) start() error {
	return c.bus.Object(geoService, c.path).Call(clientIface+".Start", 0).Err
}

func (c *client) close() {
	_ = c.bus.Object(geoService, c.path).Call(clientIface+".Stop", 0)
	c.bus.Close()
}

func (c *client) locationPath() (dbus.ObjectPath, error) {
	v, err := c.bus.Object(geoService, c.path).GetProperty(clientIface + ".Location")
	if err != nil {
		return "", err
	}
	lp, _ := v.Value().(dbus.ObjectPath)
	return lp, nil
}

func (c *client) listen(ctx context.Context, store func(Fix)) error {
	if err := c.bus.AddMatchSignal(
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchObjectPath(c.path),
	); err != nil {
		return err
	}
	sigCh := make(chan *dbus.Signal, 10)
	c.bus.Signal(sigCh)
	defer c.bus.RemoveSignal(sigCh)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-sigCh:
			if sig == nil {
				return errors.New("dbus signal channel closed")
			}
			if sig.Name != propsIface+".PropertiesChanged" || sig.Path != c.path || len(sig.Body) < 2 {
				continue
			}
			changed, ok := sig.Body[1].(map[string]dbus.Variant)
			if !ok {
				continue
			}
			if v, ok := changed["Location"]; ok {
				if lp, ok := v.Value().(dbus.ObjectPath); ok && lp != "" && lp != "/" {
					c.read(lp, store)
				}
			}
		}
	}
}

func (c *client) read(locPath dbus.ObjectPath, store func(Fix)) {
	var props map[string]dbus.Variant
	if err := c.bus.Object(geoService, locPath).Call(propsIface+".GetAll", 0, locationIface).Store(&props); err != nil {
		logger.Debug("location: read %s: %v", locPath, err)
		return
	}
	f64 := func(key string) float64 {
		if v, ok := props[key]; ok {
			if f, ok := v.Value().(float64); ok {
				return f
			}
		}
		return 0
	}
	store(Fix{
		Lat:       f64("Latitude"),
		Lng:       f64("Longitude"),
		Accuracy:  f64("Accuracy"),
		Altitude:  f64("Altitude"),
		Timestamp: time.Now().UTC(),
	})
}

var _ spotsync.Geolocator = (*Tracker)(nil)
