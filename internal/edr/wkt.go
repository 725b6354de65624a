package edr

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/eurodeo/esoh/internal/datastore"
)

// PointBufferMetres is the half-side of the square searched around a
// position query.
const PointBufferMetres = 10

const metresPerDegreeLat = 111320.0

var (
	wktPoint   = regexp.MustCompile(`(?i)^\s*POINT\s*\(\s*([^()\s]+)\s+([^()\s]+)\s*\)\s*$`)
	wktPolygon = regexp.MustCompile(`(?i)^\s*POLYGON\s*\(\s*\(([^()]+)\)\s*\)\s*$`)
)

// ParsePoint parses "POINT(lon lat)".
func ParsePoint(s string) (datastore.Point, error) {
	m := wktPoint.FindStringSubmatch(s)
	if m == nil {
		return datastore.Point{}, invalid("coords", "expected POINT(lon lat)")
	}
	return parseLonLat(m[1], m[2])
}

// ParsePolygon parses "POLYGON((lon lat, ...))". The ring must be closed
// and have at least four points.
func ParsePolygon(s string) (*datastore.Polygon, error) {
	m := wktPolygon.FindStringSubmatch(s)
	if m == nil {
		return nil, invalid("coords", "expected POLYGON((lon lat, ...))")
	}

	var poly datastore.Polygon
	for _, pair := range strings.Split(m[1], ",") {
		fields := strings.Fields(pair)
		if len(fields) != 2 {
			return nil, invalid("coords", fmt.Sprintf("%q is not a lon lat pair", strings.TrimSpace(pair)))
		}
		p, err := parseLonLat(fields[0], fields[1])
		if err != nil {
			return nil, err
		}
		poly.Points = append(poly.Points, p)
	}

	if len(poly.Points) < 4 {
		return nil, invalid("coords", "polygon needs at least 4 points")
	}
	if poly.Points[0] != poly.Points[len(poly.Points)-1] {
		return nil, invalid("coords", "polygon ring must be closed")
	}
	return &poly, nil
}

func parseLonLat(lonStr, latStr string) (datastore.Point, error) {
	lon, err := parseCoordinate(lonStr)
	if err != nil {
		return datastore.Point{}, invalid("coords", fmt.Sprintf("%q is not a number", lonStr))
	}
	lat, err := parseCoordinate(latStr)
	if err != nil {
		return datastore.Point{}, invalid("coords", fmt.Sprintf("%q is not a number", latStr))
	}
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return datastore.Point{}, invalid("coords", fmt.Sprintf("(%g %g) is outside -180,-90,180,90", lon, lat))
	}
	return datastore.Point{Lat: lat, Lon: lon}, nil
}

// PointBuffer returns a square of the given half-side in metres centred on p.
// Near the poles the longitude half-width is capped at 180 degrees and the
// latitudes are clamped to [-90, 90].
func PointBuffer(p datastore.Point, metres float64) *datastore.Polygon {
	dLat := metres / metresPerDegreeLat
	dLon := math.Min(dLat/math.Cos(p.Lat*math.Pi/180), 180)

	south := math.Max(p.Lat-dLat, -90)
	north := math.Min(p.Lat+dLat, 90)

	return &datastore.Polygon{Points: []datastore.Point{
		{Lat: south, Lon: p.Lon - dLon},
		{Lat: south, Lon: p.Lon + dLon},
		{Lat: north, Lon: p.Lon + dLon},
		{Lat: north, Lon: p.Lon - dLon},
		{Lat: south, Lon: p.Lon - dLon},
	}}
}
