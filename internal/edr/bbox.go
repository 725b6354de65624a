package edr

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/eurodeo/esoh/internal/datastore"
)

// MaxBBoxSpan is the largest extent, in degrees, allowed on either axis.
const MaxBBoxSpan = 90

// BBox is a WGS-84 bounding box in decimal degrees.
type BBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// ParseBBox parses "minLon,minLat,maxLon,maxLat".
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, invalid("bbox", "expected minLon,minLat,maxLon,maxLat")
	}

	var v [4]float64
	for i, p := range parts {
		f, err := parseCoordinate(p)
		if err != nil {
			return BBox{}, invalid("bbox", fmt.Sprintf("%q is not a number", strings.TrimSpace(p)))
		}
		v[i] = f
	}
	b := BBox{MinLon: v[0], MinLat: v[1], MaxLon: v[2], MaxLat: v[3]}

	switch {
	case b.MinLon > b.MaxLon || b.MinLat > b.MaxLat:
		return BBox{}, invalid("bbox", "minimum must not exceed maximum")
	case b.MinLon < -180 || b.MaxLon > 180 || b.MinLat < -90 || b.MaxLat > 90:
		return BBox{}, invalid("bbox", "bounds must lie within -180,-90,180,90")
	case b.MaxLon-b.MinLon > MaxBBoxSpan || b.MaxLat-b.MinLat > MaxBBoxSpan:
		return BBox{}, invalid("bbox", fmt.Sprintf("span must not exceed %d degrees on either axis", MaxBBoxSpan))
	}

	return b, nil
}

// parseCoordinate parses a finite decimal number of degrees.
func parseCoordinate(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, strconv.ErrSyntax
	}
	return f, nil
}

// Polygon returns the box as a closed counter-clockwise ring.
func (b BBox) Polygon() *datastore.Polygon {
	return &datastore.Polygon{Points: []datastore.Point{
		{Lat: b.MinLat, Lon: b.MinLon},
		{Lat: b.MinLat, Lon: b.MaxLon},
		{Lat: b.MaxLat, Lon: b.MaxLon},
		{Lat: b.MaxLat, Lon: b.MinLon},
		{Lat: b.MinLat, Lon: b.MinLon},
	}}
}
