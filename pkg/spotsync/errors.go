package spotsync

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCandidates is returned when place autocomplete yields nothing.
	ErrNoCandidates = errors.New("no candidates")
	// ErrGeolocationDenied is returned when the device position is unavailable.
	ErrGeolocationDenied = errors.New("geolocation denied")
	// ErrClosed is returned by operations on a closed controller.
	ErrClosed = errors.New("controller closed")
	// ErrUnknownSpot is returned when a spot id is not on the map.
	ErrUnknownSpot = errors.New("unknown spot")
	// ErrSuperseded is returned when a newer selection or a close replaced
	// a detail load before it finished.
	ErrSuperseded = errors.New("detail superseded")
)

// ConfigError is terminal: the map cannot start.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// NetworkError wraps a transport failure.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// BackendError reports a non-2xx or non-JSON response.
type BackendError struct {
	URL    string
	Status int
	Body   string
}

func (e *BackendError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend error: %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("backend error: %s: status %d: %s", e.URL, e.Status, e.Body)
}

// statusFor converts an error into the status line shown to the user.
func statusFor(err error) string {
	var be *BackendError
	var ne *NetworkError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoCandidates):
		return StatusNoCandidates
	case errors.Is(err, ErrGeolocationDenied):
		return StatusLocationDenied
	case errors.As(err, &be):
		return fmt.Sprintf("failed to load spots (status %d)", be.Status)
	case errors.As(err, &ne):
		return "failed to load spots (network error)"
	default:
		return "failed to load spots"
	}
}
