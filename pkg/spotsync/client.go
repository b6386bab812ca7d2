package spotsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rienbien8/spotmap/pkg/logger"
)

const (
	spotsPath          = "/api/v1/spots"
	autocompletePath   = "/bff/maps/autocomplete"
	placeDetailsPath   = "/bff/maps/place-details"
	maxErrorBodyBytes  = 4 << 10
	defaultHTTPTimeout = 10 * time.Second
)

// Client talks to the spot backend and its maps BFF.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
}

// NewClient returns a client rooted at baseURL. A nil hc gets a client with
// a 10s timeout.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      hc,
		userAgent: "spotmap/1.0",
	}
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// getJSON issues a GET and decodes a 2xx JSON body into out.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", reqID)

	t0 := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Debug("GET %s failed req=%s err=%v", u, reqID, err)
		return &NetworkError{URL: u, Err: err}
	}
	defer resp.Body.Close()
	logger.Debug("GET %s status=%d req=%s elapsed=%v", u, resp.StatusCode, reqID, time.Since(t0))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &BackendError{URL: u, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if !isJSON(resp.Header.Get("Content-Type")) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &BackendError{URL: u, Status: resp.StatusCode, Body: "unexpected content type " + resp.Header.Get("Content-Type") + ": " + strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &BackendError{URL: u, Status: resp.StatusCode, Body: "decode: " + err.Error()}
	}
	return nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// decodeList accepts either a bare JSON array or an {"items": [...]} page.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var out []T
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var page struct {
		Items []T `json:"items"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

func spotPath(id SpotID, suffix string) string {
	return spotsPath + "/" + url.PathEscape(string(id)) + suffix
}

// SearchSpots runs the bbox spot search. Unset filters are not sent.
func (c *Client) SearchSpots(ctx context.Context, q BBoxQuery) (SpotPage, error) {
	params := url.Values{}
	params.Set("bbox", q.BBox)
	if q.Origin != "" {
		params.Set("origin", q.Origin)
	}
	if q.IsSpecialOnly {
		params.Set("is_special", "true")
	}
	if q.UserID != "" {
		params.Set("user_id", q.UserID)
	}
	if q.FollowedOnly {
		params.Set("followed_only", "true")
	}
	if q.Limit > 0 {
		params.Set("limit", fmt.Sprint(q.Limit))
	}
	var page SpotPage
	if err := c.getJSON(ctx, spotsPath, params, &page); err != nil {
		return SpotPage{}, err
	}
	return page, nil
}

// SpotDetail fetches one spot.
func (c *Client) SpotDetail(ctx context.Context, id SpotID) (SpotDetail, error) {
	var d SpotDetail
	if err := c.getJSON(ctx, spotPath(id, ""), nil, &d); err != nil {
		return SpotDetail{}, err
	}
	return d, nil
}

// SpotContents fetches the content list of a spot filtered by language and
// maximum duration in seconds.
func (c *Client) SpotContents(ctx context.Context, id SpotID, langs []string, maxDuration int) ([]ContentSummary, error) {
	params := url.Values{}
	if len(langs) > 0 {
		params.Set("langs", strings.Join(langs, ","))
	}
	if maxDuration > 0 {
		params.Set("max_duration", fmt.Sprint(maxDuration))
	}
	var raw json.RawMessage
	if err := c.getJSON(ctx, spotPath(id, "/contents"), params, &raw); err != nil {
		return nil, err
	}
	return decodeList[ContentSummary](raw)
}

// SpotEntities fetches the entities related to a spot.
func (c *Client) SpotEntities(ctx context.Context, id SpotID) ([]Entity, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, spotPath(id, "/oshis"), nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[Entity](raw)
}

// Autocomplete implements PlacesProvider against the maps BFF.
func (c *Client) Autocomplete(ctx context.Context, text, language string) ([]Prediction, error) {
	params := url.Values{}
	params.Set("q", text)
	if language != "" {
		params.Set("language", language)
	}
	var resp struct {
		Predictions []Prediction `json:"predictions"`
	}
	if err := c.getJSON(ctx, autocompletePath, params, &resp); err != nil {
		return nil, err
	}
	return resp.Predictions, nil
}

// PlaceDetails implements PlacesProvider against the maps BFF.
func (c *Client) PlaceDetails(ctx context.Context, placeID, language string) (Place, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	if language != "" {
		params.Set("language", language)
	}
	var resp struct {
		Result *struct {
			Name             string `json:"name"`
			FormattedAddress string `json:"formatted_address"`
			Geometry         struct {
				Location *LatLng `json:"location"`
			} `json:"geometry"`
		} `json:"result"`
		Name    string   `json:"name"`
		Address string   `json:"address"`
		Lat     *float64 `json:"lat"`
		Lng     *float64 `json:"lng"`
	}
	if err := c.getJSON(ctx, placeDetailsPath, params, &resp); err != nil {
		return Place{}, err
	}
	switch {
	case resp.Result != nil && resp.Result.Geometry.Location != nil:
		return Place{
			PlaceID:  placeID,
			Name:     resp.Result.Name,
			Address:  resp.Result.FormattedAddress,
			Location: *resp.Result.Geometry.Location,
		}, nil
	case resp.Result != nil:
		// Google-shaped answer without geometry.
	case resp.Lat != nil && resp.Lng != nil:
		return Place{
			PlaceID:  placeID,
			Name:     resp.Name,
			Address:  resp.Address,
			Location: LatLng{Lat: *resp.Lat, Lng: *resp.Lng},
		}, nil
	}
	return Place{}, &BackendError{URL: c.baseURL + placeDetailsPath, Status: http.StatusOK, Body: "place has no location"}
}
