package formatter

import (
	"encoding/json"
	"sort"

	"github.com/eurodeo/esoh/internal/datastore"
	"github.com/eurodeo/esoh/internal/lexicon"
)

// OSCARStationURL links a WIGOS id to its station report.
const OSCARStationURL = "https://oscar.wmo.int/surface/#/search/station/stationReportDetails/"

// PointGeometry is a GeoJSON Point.
type PointGeometry struct {
	Coordinates [2]float64
}

func (g PointGeometry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type        string     `json:"type"`
		Coordinates [2]float64 `json:"coordinates"`
	}{"Point", g.Coordinates})
}

// Feature is a GeoJSON Feature.
type Feature struct {
	ID         string         `json:"id"`
	Geometry   PointGeometry  `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

func (Feature) MediaType() string { return MediaTypeGeoJSON }

func (f Feature) MarshalJSON() ([]byte, error) {
	type plain Feature
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{"Feature", plain(f)})
}

// FeatureCollection is a GeoJSON FeatureCollection. Parameters is set by
// the station listing only.
type FeatureCollection struct {
	Features   []Feature            `json:"features"`
	Parameters map[string]Parameter `json:"parameters,omitempty"`
}

func (FeatureCollection) MediaType() string { return MediaTypeGeoJSON }

func (c FeatureCollection) MarshalJSON() ([]byte, error) {
	type plain FeatureCollection
	if c.Features == nil {
		c.Features = []Feature{}
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{"FeatureCollection", plain(c)})
}

func pointOf(md *datastore.Metadata2) PointGeometry {
	if len(md.ObsMdata) == 0 || md.ObsMdata[0].GeoPoint == nil {
		return PointGeometry{}
	}
	p := md.ObsMdata[0].GeoPoint
	return PointGeometry{Coordinates: [2]float64{p.Lon, p.Lat}}
}

// seriesProperties copies the published subset of the series metadata.
func seriesProperties(md *datastore.Metadata2) map[string]any {
	ts := md.TSMdata
	props := map[string]any{
		"platform":       ts.Platform,
		"standard_name":  ts.StandardName,
		"unit":           ts.Unit,
		"level":          float64(ts.Level) / 100,
		"period":         lexicon.FormatDuration(ts.Period),
		"function":       ts.Function,
		"parameter_name": ParameterName(ts),
	}

	optional := map[string]string{
		"platform_name":    ts.PlatformName,
		"naming_authority": ts.NamingAuthority,
		"institution":      ts.Institution,
		"instrument":       ts.Instrument,
		"title":            ts.Title,
		"summary":          ts.Summary,
		"keywords":         ts.Keywords,
		"license":          ts.License,
		"creator_name":     ts.CreatorName,
		"creator_url":      ts.CreatorURL,
		"source":           ts.Source,
	}
	for k, v := range optional {
		if v != "" {
			props[k] = v
		}
	}

	if len(md.ObsMdata) > 0 {
		first := md.ObsMdata[0]
		if first.History != "" {
			props["history"] = first.History
		}
		if first.ProcessingLevel != "" {
			props["processing_level"] = first.ProcessingLevel
		}
	}
	return props
}

// Features emits one Feature per series, sorted by platform. A single
// series is returned as a bare Feature, anything else as a collection.
func Features(obs []*datastore.Metadata2) (Response, error) {
	type entry struct {
		platform string
		feature  Feature
	}
	entries := make([]entry, 0, len(obs))
	for _, md := range obs {
		if md.TSMdata == nil {
			continue
		}
		entries = append(entries, entry{
			platform: md.TSMdata.Platform,
			feature: Feature{
				ID:         md.TSMdata.TimeseriesID,
				Geometry:   pointOf(md),
				Properties: seriesProperties(md),
			},
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].platform != entries[j].platform {
			return entries[i].platform < entries[j].platform
		}
		return entries[i].feature.ID < entries[j].feature.ID
	})

	if len(entries) == 1 {
		return entries[0].feature, nil
	}

	features := make([]Feature, len(entries))
	for i := range entries {
		features[i] = entries[i].feature
	}
	return FeatureCollection{Features: features}, nil
}

// Locations lists the stations behind obs, one Feature per platform with
// the sorted parameter names it reports, plus the parameters they name.
func Locations(obs []*datastore.Metadata2) FeatureCollection {
	type station struct {
		feature Feature
		names   map[string]struct{}
	}
	stations := make(map[string]*station)
	params := make(map[string]Parameter)

	for _, md := range obs {
		ts := md.TSMdata
		if ts == nil || ts.Platform == "" {
			continue
		}
		st, ok := stations[ts.Platform]
		if !ok {
			name := ts.PlatformName
			if name == "" {
				name = ts.Platform
			}
			st = &station{
				feature: Feature{
					ID:       ts.Platform,
					Geometry: pointOf(md),
					Properties: map[string]any{
						"name":   name,
						"detail": OSCARStationURL + ts.Platform,
					},
				},
				names: make(map[string]struct{}),
			}
			stations[ts.Platform] = st
		}
		pn := ParameterName(ts)
		st.names[pn] = struct{}{}
		params[pn] = NewParameter(ts)
	}

	ids := make([]string, 0, len(stations))
	for id := range stations {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	features := make([]Feature, 0, len(ids))
	for _, id := range ids {
		st := stations[id]
		names := make([]string, 0, len(st.names))
		for n := range st.names {
			names = append(names, n)
		}
		sort.Strings(names)
		st.feature.Properties["parameter-name"] = names
		features = append(features, st.feature)
	}

	return FeatureCollection{Features: features, Parameters: params}
}
