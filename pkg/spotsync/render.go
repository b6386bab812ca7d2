package spotsync

import (
	"bytes"
	"html/template"
	"net/url"

	"github.com/microcosm-cc/bluemonday"

	"github.com/rienbien8/spotmap/pkg/logger"
)

// DetailErrorMessage is the only thing shown when any detail lookup fails.
const DetailErrorMessage = "Could not load spot details. Please try again."

var summaryTmpl = template.Must(template.New("summary").Parse(`<div class="spot-card">
<h3 class="spot-name">{{.Name}}</h3>
{{- if .Address}}
<p class="spot-address">{{.Address}}</p>
{{- end}}
{{- if .Entities}}
<ul class="spot-oshis">
{{- range .Entities}}
<li class="chip">{{.Name}}</li>
{{- end}}
</ul>
{{- end}}
{{- if .Description}}
<div class="spot-description">{{.Description}}</div>
{{- end}}
{{- if .Contents}}
<ul class="spot-contents">
{{- range .Contents}}
<li>{{if .URL}}<a href="{{.URL}}" target="_blank" rel="noopener">{{.Title}}</a>{{else}}{{.Title}}{{end}}</li>
{{- end}}
</ul>
{{- end}}
<a class="spot-route" href="{{.RouteURL}}">Route here</a>
</div>`))

var errorTmpl = template.Must(template.New("error").Parse(`<div class="spot-card spot-error"><p>{{.}}</p></div>`))

// Renderer turns a DetailBundle into info window HTML.
type Renderer struct {
	policy   *bluemonday.Policy
	routeURL string
}

// NewRenderer returns a renderer whose route action points at routeURL with
// lat, lng, name and address appended as query parameters.
func NewRenderer(routeURL string) *Renderer {
	if routeURL == "" {
		routeURL = "/route"
	}
	return &Renderer{policy: bluemonday.UGCPolicy(), routeURL: routeURL}
}

// RouteLink builds the hand-off link for the external routing page.
func (r *Renderer) RouteLink(pos LatLng, name, address string) string {
	q := url.Values{}
	q.Set("lat", formatCoord(pos.Lat))
	q.Set("lng", formatCoord(pos.Lng))
	q.Set("name", name)
	if address != "" {
		q.Set("address", address)
	}
	sep := "?"
	if u, err := url.Parse(r.routeURL); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	return r.routeURL + sep + q.Encode()
}

// Summary renders the composed card. Fields missing from the detail fall
// back to the spot record the marker was built from.
func (r *Renderer) Summary(b DetailBundle, spot SpotRecord) string {
	name := b.Detail.Name
	if name == "" {
		name = spot.Name
	}
	address := b.Detail.Address
	if address == "" {
		address = spot.Address
	}
	desc := b.Detail.Description
	if desc == "" {
		desc = spot.Description
	}
	pos := spot.Position()
	if b.Detail.Lat != 0 || b.Detail.Lng != 0 {
		pos = LatLng{Lat: b.Detail.Lat, Lng: b.Detail.Lng}
	}

	data := struct {
		Name        string
		Address     string
		Description template.HTML
		Entities    []Entity
		Contents    []ContentSummary
		RouteURL    string
	}{
		Name:        name,
		Address:     address,
		Description: template.HTML(r.policy.Sanitize(desc)),
		Entities:    b.RelatedEntities,
		Contents:    b.Contents,
		RouteURL:    r.RouteLink(pos, name, address),
	}
	var buf bytes.Buffer
	if err := summaryTmpl.Execute(&buf, data); err != nil {
		logger.Error("render summary for spot %s: %v", spot.ID, err)
		return r.Error()
	}
	return buf.String()
}

// Error renders the generic failure block.
func (r *Renderer) Error() string {
	var buf bytes.Buffer
	_ = errorTmpl.Execute(&buf, DetailErrorMessage)
	return buf.String()
}
