// Package config loads spotmap settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/rienbien8/spotmap/pkg/logger"
	"github.com/rienbien8/spotmap/pkg/spotsync"
)

// Places providers.
const (
	ProviderBFF       = "bff"
	ProviderNominatim = "nominatim"
)

// Config holds all application configuration
type Config struct {
	BackendURL string
	MapsAPIKey string
	Language   string
	RouteURL   string

	Filter     spotsync.Filter
	Center     spotsync.LatLng
	Zoom       int
	SearchZoom int
	SpotLimit  int
	Debounce   time.Duration

	ContentLangs       []string
	ContentMaxDuration int

	HTTPTimeout     time.Duration
	PlacesProvider  string
	NominatimServer string

	Server ServerConfig
}

// ServerConfig holds the local API server configuration
type ServerConfig struct {
	Addr            string
	CorsOrigins     []string
	ShutdownTimeout time.Duration
}

// Load reads files (".env" when none are given) into the environment, then
// builds the configuration. Missing files are not an error. Variables that
// are already set win over file values.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("no .env file, using environment only")
		} else {
			logger.Warn("loading .env: %v", err)
		}
	}

	cfg := Config{
		BackendURL: getEnv("SPOTMAP_BACKEND_URL", "http://localhost:8000"),
		MapsAPIKey: getEnv("SPOTMAP_MAPS_API_KEY", ""),
		Language:   getEnv("SPOTMAP_LANGUAGE", "ja"),
		RouteURL:   getEnv("SPOTMAP_ROUTE_URL", ""),
		Filter: spotsync.Filter{
			UserID:       getEnv("SPOTMAP_USER_ID", ""),
			FollowedOnly: getEnvAsBool("SPOTMAP_FOLLOWED_ONLY", false),
			SpecialOnly:  getEnvAsBool("SPOTMAP_SPECIAL_ONLY", false),
		},
		Center: spotsync.LatLng{
			Lat: getEnvAsFloat("SPOTMAP_CENTER_LAT", spotsync.DefaultCenter.Lat),
			Lng: getEnvAsFloat("SPOTMAP_CENTER_LNG", spotsync.DefaultCenter.Lng),
		},
		Zoom:               getEnvAsInt("SPOTMAP_ZOOM", spotsync.DefaultZoom),
		SearchZoom:         getEnvAsInt("SPOTMAP_SEARCH_ZOOM", spotsync.DefaultSearchZoom),
		SpotLimit:          getEnvAsInt("SPOTMAP_SPOT_LIMIT", spotsync.DefaultLimit),
		Debounce:           getEnvAsDuration("SPOTMAP_DEBOUNCE", spotsync.DefaultQuietWindow),
		ContentLangs:       getEnvAsSlice("SPOTMAP_CONTENT_LANGS", []string{"ja", "en"}),
		ContentMaxDuration: getEnvAsInt("SPOTMAP_CONTENT_MAX_DURATION", 60),
		HTTPTimeout:        getEnvAsDuration("SPOTMAP_HTTP_TIMEOUT", 10*time.Second),
		PlacesProvider:     strings.ToLower(getEnv("SPOTMAP_PLACES_PROVIDER", ProviderBFF)),
		NominatimServer:    getEnv("SPOTMAP_NOMINATIM_SERVER", ""),
		Server: ServerConfig{
			Addr:            getEnv("SPOTMAP_ADDR", "127.0.0.1:43098"),
			CorsOrigins:     getEnvAsSlice("SPOTMAP_CORS_ORIGINS", nil),
			ShutdownTimeout: getEnvAsDuration("SPOTMAP_SHUTDOWN_TIMEOUT", 5*time.Second),
		},
	}
	return cfg, validate(cfg)
}

// validate checks if config is valid
func validate(c Config) error {
	switch {
	case strings.TrimSpace(c.MapsAPIKey) == "":
		return &spotsync.ConfigError{Field: "SPOTMAP_MAPS_API_KEY", Msg: "maps API key is required"}
	case c.BackendURL == "":
		return &spotsync.ConfigError{Field: "SPOTMAP_BACKEND_URL", Msg: "backend URL is required"}
	case c.PlacesProvider != ProviderBFF && c.PlacesProvider != ProviderNominatim:
		return &spotsync.ConfigError{Field: "SPOTMAP_PLACES_PROVIDER", Msg: "must be bff or nominatim"}
	case c.HTTPTimeout <= 0:
		return &spotsync.ConfigError{Field: "SPOTMAP_HTTP_TIMEOUT", Msg: "must be positive"}
	case c.Center.Lat < -90 || c.Center.Lat > 90 || c.Center.Lng < -180 || c.Center.Lng > 180:
		return &spotsync.ConfigError{Field: "SPOTMAP_CENTER_LAT", Msg: "center out of range"}
	}
	return nil
}

// ControllerOptions maps the configuration onto spotsync.Options. Data
// sources are left for the caller to wire.
func (c Config) ControllerOptions() spotsync.Options {
	return spotsync.Options{
		MapsAPIKey:  c.MapsAPIKey,
		Center:      c.Center,
		Zoom:        c.Zoom,
		SearchZoom:  c.SearchZoom,
		Limit:       c.SpotLimit,
		Filter:      c.Filter,
		QuietWindow: c.Debounce,
		Language:    c.Language,
		RouteURL:    c.RouteURL,
		Detail: spotsync.DetailOptions{
			Langs:       c.ContentLangs,
			MaxDuration: c.ContentMaxDuration,
		},
	}
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, s := range strings.Split(valueStr, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
