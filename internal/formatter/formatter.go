// Package formatter shapes datastore observations into CoverageJSON and
// GeoJSON documents.
package formatter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/eurodeo/esoh/internal/datastore"
)

// ErrNoData is returned when nothing is left to put in a response.
var ErrNoData = errors.New("requested data not found")

// Media types of the response variants.
const (
	MediaTypeCoverageJSON = "application/prs.coverage+json"
	MediaTypeGeoJSON      = "application/geo+json"
)

// Response is a document ready to be serialised. Each variant writes its
// own "type" member.
type Response interface {
	MediaType() string
}

// Format is an output encoding selected with the f query parameter.
type Format string

const (
	CoverageJSON Format = "CoverageJSON"
	GeoJSON      Format = "GeoJSON"
)

// ParseFormat maps the f query parameter onto a Format. An empty value
// selects def.
func ParseFormat(s string, def Format) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "covjson", "coveragejson":
		return CoverageJSON, nil
	case "geojson":
		return GeoJSON, nil
	default:
		return "", fmt.Errorf("unsupported format %q, expected one of covjson, geojson", s)
	}
}

// Render renders observations in format f.
func Render(f Format, obs []*datastore.Metadata2) (Response, error) {
	switch f {
	case GeoJSON:
		return Features(obs)
	default:
		return Coverages(obs)
	}
}
