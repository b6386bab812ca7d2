package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/rienbien8/spotmap/pkg/logger"
	"github.com/rienbien8/spotmap/pkg/metrics"
	"github.com/rienbien8/spotmap/pkg/spotsync"
)

// newRouter wires every HTTP endpoint the front-end uses.
func newRouter(a *app) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	origins := a.cfg.Server.CorsOrigins
	if len(origins) == 0 {
		origins = []string{"http://127.0.0.1:*", "http://localhost:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		// Session state
		r.Get("/config", a.handleGetConfig)
		r.Get("/state", a.handleGetState)
		r.Get("/markers", a.handleGetMarkers)
		r.Get("/infowindow", a.handleGetInfoWindow)

		// Map input
		r.Post("/viewport", a.handlePostViewport)
		r.Post("/refresh", a.handlePostRefresh)
		r.Post("/search", a.handlePostSearch)
		r.Post("/locate", a.handlePostLocate)
		r.Post("/markers/{id}/click", a.handlePostMarkerClick)
		r.Post("/infowindow/close", a.handlePostInfoWindowClose)
		r.Put("/filter", a.handlePutFilter)

		// Suggest & history
		r.Get("/recent_suggest", a.handleGetRecentSuggest)

		r.Get("/events", a.handleEvents)
		r.Get("/version", a.handleGetVersion)
	})
	r.Handle("/metrics", metrics.Handler())
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t0 := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("%s %s req=%s elapsed=%v", r.Method, r.URL.Path, middleware.GetReqID(r.Context()), time.Since(t0))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusForError maps engine errors onto HTTP status codes.
func statusForError(err error) int {
	var be *spotsync.BackendError
	var ne *spotsync.NetworkError
	switch {
	case errors.Is(err, spotsync.ErrUnknownSpot):
		return http.StatusNotFound
	case errors.Is(err, spotsync.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, spotsync.ErrGeolocationDenied), errors.Is(err, spotsync.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &be), errors.As(err, &ne):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// stateDTO is the session summary returned by most mutating endpoints.
type stateDTO struct {
	Status            string             `json:"status"`
	Gate              spotsync.GateState `json:"gate"`
	AffordanceVisible bool               `json:"affordance_visible"`
	Filter            spotsync.Filter    `json:"filter"`
	Viewport          spotsync.Viewport  `json:"viewport"`
	SpotCount         int                `json:"spot_count"`
	DetailSpot        spotsync.SpotID    `json:"detail_spot,omitempty"`
}

func (a *app) state() stateDTO {
	s := stateDTO{
		Status:            a.ctrl.Status(),
		Gate:              a.ctrl.Gate(),
		AffordanceVisible: a.ctrl.AffordanceVisible(),
		Filter:            a.ctrl.Filter(),
		Viewport:          a.ctrl.Viewport(),
		SpotCount:         len(a.ctrl.Spots()),
	}
	if _, id, ok := a.ctrl.Detail(); ok {
		s.DetailSpot = id
	}
	return s
}

func (a *app) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"maps_api_key": a.ctrl.MapsAPIKey(),
		"center":       a.cfg.Center,
		"zoom":         a.cfg.Zoom,
		"search_zoom":  a.cfg.SearchZoom,
		"language":     a.cfg.Language,
	})
}

func (a *app) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.state())
}

func (a *app) handleGetMarkers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.surface.Markers())
}

func (a *app) handleGetInfoWindow(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.surface.InfoWindow())
}

// POST /api/viewport {"center":{"lat":..,"lng":..},"zoom":..,"width":..,"height":..}
// reports a pan or zoom made by the user.
func (a *app) handlePostViewport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Center *spotsync.LatLng `json:"center"`
		Zoom   int              `json:"zoom"`
		Width  int              `json:"width"`
		Height int              `json:"height"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Center == nil {
		writeError(w, http.StatusBadRequest, "center is required")
		return
	}
	if req.Center.Lat < -90 || req.Center.Lat > 90 || req.Center.Lng < -180 || req.Center.Lng > 180 {
		writeError(w, http.StatusBadRequest, "center out of range")
		return
	}
	a.surface.Move(*req.Center, req.Zoom, req.Width, req.Height)
	w.WriteHeader(http.StatusNoContent)
}

func (a *app) handlePostRefresh(w http.ResponseWriter, r *http.Request) {
	if err := a.ctrl.SearchThisArea(r.Context()); err != nil {
		writeError(w, statusForError(err), a.ctrl.Status())
		return
	}
	writeJSON(w, http.StatusOK, a.state())
}

// POST /api/search {"query":"..."}
func (a *app) handlePostSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := a.ctrl.Search(r.Context(), req.Query); err != nil {
		writeError(w, statusForError(err), a.ctrl.Status())
		return
	}
	writeJSON(w, http.StatusOK, a.state())
}

func (a *app) handlePostLocate(w http.ResponseWriter, r *http.Request) {
	if err := a.ctrl.LocateMe(r.Context()); err != nil {
		writeError(w, statusForError(err), a.ctrl.Status())
		return
	}
	writeJSON(w, http.StatusOK, a.state())
}

func (a *app) handlePostMarkerClick(w http.ResponseWriter, r *http.Request) {
	id := spotsync.SpotID(chi.URLParam(r, "id"))
	bundle, err := a.ctrl.SelectSpot(r.Context(), id)
	switch {
	case errors.Is(err, spotsync.ErrUnknownSpot):
		writeError(w, http.StatusNotFound, "no marker for spot "+string(id))
		return
	case errors.Is(err, spotsync.ErrSuperseded):
		writeError(w, http.StatusConflict, "selection replaced before spot "+string(id)+" loaded")
		return
	}
	// A failed lookup still shows the error block in the info window.
	resp := map[string]any{"info_window": a.surface.InfoWindow()}
	if err != nil {
		resp["error"] = spotsync.DetailErrorMessage
		writeJSON(w, statusForError(err), resp)
		return
	}
	resp["detail"] = bundle
	writeJSON(w, http.StatusOK, resp)
}

func (a *app) handlePostInfoWindowClose(w http.ResponseWriter, _ *http.Request) {
	a.ctrl.CloseDetail()
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/filter {"user_id":"..","followed_only":true,"special_only":false}
// applies from the next fetch.
func (a *app) handlePutFilter(w http.ResponseWriter, r *http.Request) {
	var f spotsync.Filter
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	a.ctrl.SetFilter(f)
	writeJSON(w, http.StatusOK, f)
}

// GET /api/recent_suggest?limit=N returns the distinct recent queries:
//
//	{ "queries": ["last", ...], "entries": [ {"query":"last","at":{"lat":..,"lng":..}}, ... ] }
func (a *app) handleGetRecentSuggest(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	queries := []string{}
	entries := []any{}
	if a.history == nil {
		logger.Debug("/api/recent_suggest history DB unavailable -> returning empty list")
		writeJSON(w, http.StatusOK, map[string]any{"queries": queries, "entries": entries})
		return
	}
	recent, err := a.history.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query error: "+err.Error())
		return
	}
	for _, e := range recent {
		queries = append(queries, e.Query)
		entries = append(entries, e)
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": queries, "entries": entries})
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API only listens on loopback by default; CORS already gates
	// browsers on the REST routes.
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || strings.Contains(origin, "127.0.0.1") || strings.Contains(origin, "localhost")
	},
}

// wsMessage is one controller event on the wire.
type wsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// handleEvents streams controller events over a websocket, after a "hello"
// message holding the current state. A client that
// falls behind by more than wsSendBuffer events is disconnected.
func (a *app) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade: %v", err)
		return
	}
	send := make(chan spotsync.Event, wsSendBuffer)
	overflow := make(chan struct{})
	var overflowed bool
	unsubscribe := a.ctrl.Subscribe(func(e spotsync.Event) {
		if overflowed {
			return
		}
		select {
		case send <- e:
		default:
			overflowed = true
			close(overflow)
		}
	})
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(4096)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug("websocket read: %v", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	// The hello carries the state at subscription time; events follow.
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(wsMessage{Type: "hello", Data: a.state()}); err != nil {
		return
	}

	for {
		select {
		case e := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(wsMessage{Type: e.EventType(), Data: e}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-overflow:
			logger.Info("websocket client too slow, disconnecting")
			return
		case <-done:
			return
		}
	}
}

// versionDTO describes the running build and the backend it talks to.
type versionDTO struct {
	App            string `json:"app"`
	Version        string `json:"version"`
	Commit         string `json:"commit,omitempty"`
	Dirty          bool   `json:"dirty,omitempty"`
	GoVersion      string `json:"go_version"`
	BackendURL     string `json:"backend_url"`
	PlacesProvider string `json:"places_provider"`
}

func (a *app) handleGetVersion(w http.ResponseWriter, _ *http.Request) {
	v := versionDTO{
		App:            appName,
		Version:        "devel",
		GoVersion:      runtime.Version(),
		BackendURL:     a.cfg.BackendURL,
		PlacesProvider: a.cfg.PlacesProvider,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		if bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			v.Version = bi.Main.Version
		}
		for _, st := range bi.Settings {
			switch st.Key {
			case "vcs.revision":
				v.Commit = st.Value
				if len(v.Commit) > 12 {
					v.Commit = v.Commit[:12]
				}
			case "vcs.modified":
				v.Dirty = st.Value == "true"
			}
		}
	}
	writeJSON(w, http.StatusOK, v)
}
