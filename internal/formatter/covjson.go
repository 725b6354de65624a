package formatter

import (
	"cmp"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/eurodeo/esoh/internal/datastore"
)

// CRS identifiers used in referencing.
const (
	CRS84         = "http://www.opengis.net/def/crs/EPSG/0/4326"
	CalendarGreg  = "Gregorian"
	domainPointTS = "PointSeries"
)

type ValuesAxis[T any] struct {
	Values []T `json:"values"`
}

type Axes struct {
	X ValuesAxis[float64] `json:"x"`
	Y ValuesAxis[float64] `json:"y"`
	T ValuesAxis[string]  `json:"t"`
}

type ReferenceSystem struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	Calendar string `json:"calendar,omitempty"`
}

type ReferenceSystemConnection struct {
	Coordinates []string        `json:"coordinates"`
	System      ReferenceSystem `json:"system"`
}

type Domain struct {
	Type        string                      `json:"type"`
	DomainType  string                      `json:"domainType"`
	Axes        Axes                        `json:"axes"`
	Referencing []ReferenceSystemConnection `json:"referencing"`
}

// NdArray holds one series; nil entries encode missing values.
type NdArray struct {
	Type      string     `json:"type"`
	DataType  string     `json:"dataType"`
	AxisNames []string   `json:"axisNames"`
	Shape     []int      `json:"shape"`
	Values    []*float64 `json:"values"`
}

// Coverage is a single CoverageJSON coverage.
type Coverage struct {
	Domain     Domain               `json:"domain"`
	Parameters map[string]Parameter `json:"parameters"`
	Ranges     map[string]NdArray   `json:"ranges"`
}

func (Coverage) MediaType() string { return MediaTypeCoverageJSON }

func (c Coverage) MarshalJSON() ([]byte, error) {
	type plain Coverage
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{"Coverage", plain(c)})
}

// CoverageCollection holds coverages that do not share a domain.
type CoverageCollection struct {
	Parameters map[string]Parameter `json:"parameters"`
	Coverages  []Coverage           `json:"coverages"`
}

func (CoverageCollection) MediaType() string { return MediaTypeCoverageJSON }

func (c CoverageCollection) MarshalJSON() ([]byte, error) {
	type plain CoverageCollection
	return json.Marshal(struct {
		Type       string `json:"type"`
		DomainType string `json:"domainType"`
		plain
	}{"CoverageCollection", domainPointTS, plain(c)})
}

func referencing() []ReferenceSystemConnection {
	return []ReferenceSystemConnection{
		{Coordinates: []string{"y", "x"}, System: ReferenceSystem{Type: "GeographicCRS", ID: CRS84}},
		{Coordinates: []string{"t"}, System: ReferenceSystem{Type: "TemporalRS", Calendar: CalendarGreg}},
	}
}

type domainKey struct {
	lat, lon float64
	times    []time.Time
}

func (k domainKey) compare(o domainKey) int {
	if c := cmp.Compare(k.lat, o.lat); c != 0 {
		return c
	}
	if c := cmp.Compare(k.lon, o.lon); c != 0 {
		return c
	}
	for i := 0; i < len(k.times) && i < len(o.times); i++ {
		if c := k.times[i].Compare(o.times[i]); c != 0 {
			return c
		}
	}
	return len(k.times) - len(o.times)
}

type series struct {
	key    domainKey
	name   string
	ts     *datastore.TSMetadata
	values []float64
}

// newSeries orders the observations of md by time and keeps the first of
// any repeated instant. The position is taken from the first observation.
func newSeries(md *datastore.Metadata2) (series, bool) {
	if md.TSMdata == nil || len(md.ObsMdata) == 0 {
		return series{}, false
	}

	obs := make([]*datastore.ObsMetadata, len(md.ObsMdata))
	copy(obs, md.ObsMdata)
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].ObstimeInstant.Before(obs[j].ObstimeInstant)
	})

	s := series{name: ParameterName(md.TSMdata), ts: md.TSMdata}
	if p := md.ObsMdata[0].GeoPoint; p != nil {
		s.key.lat, s.key.lon = p.Lat, p.Lon
	}
	for i, o := range obs {
		if i > 0 && o.ObstimeInstant.Equal(obs[i-1].ObstimeInstant) {
			continue
		}
		s.key.times = append(s.key.times, o.ObstimeInstant)
		s.values = append(s.values, parseValue(o.Value))
	}
	return s, true
}

func parseValue(v string) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func allNaN(values []float64) bool {
	for _, v := range values {
		if !math.IsNaN(v) {
			return false
		}
	}
	return true
}

func ndArray(values []float64) NdArray {
	out := make([]*float64, len(values))
	for i := range values {
		if !math.IsNaN(values[i]) && !math.IsInf(values[i], 0) {
			v := values[i]
			out[i] = &v
		}
	}
	return NdArray{
		Type:      "NdArray",
		DataType:  "float",
		AxisNames: []string{"t", "y", "x"},
		Shape:     []int{len(values), 1, 1},
		Values:    out,
	}
}

// Coverages groups observations by shared domain. One group yields a
// Coverage, several a CoverageCollection. Series whose values are all
// missing are dropped; if nothing remains ErrNoData is returned.
func Coverages(obs []*datastore.Metadata2) (Response, error) {
	all := make([]series, 0, len(obs))
	for _, md := range obs {
		if s, ok := newSeries(md); ok && !allNaN(s.values) {
			all = append(all, s)
		}
	}
	if len(all) == 0 {
		return nil, ErrNoData
	}

	sort.SliceStable(all, func(i, j int) bool {
		if c := all[i].key.compare(all[j].key); c != 0 {
			return c < 0
		}
		if all[i].name != all[j].name {
			return all[i].name < all[j].name
		}
		return all[i].ts.TimeseriesID < all[j].ts.TimeseriesID
	})

	var coverages []Coverage
	for start := 0; start < len(all); {
		end := start + 1
		for end < len(all) && all[end].key.compare(all[start].key) == 0 {
			end++
		}
		for _, group := range splitByName(all[start:end]) {
			coverages = append(coverages, newCoverage(group))
		}
		start = end
	}

	if len(coverages) == 1 {
		return coverages[0], nil
	}

	union := make(map[string]Parameter)
	for _, c := range coverages {
		for name, p := range c.Parameters {
			union[name] = p
		}
	}
	return CoverageCollection{Parameters: union, Coverages: coverages}, nil
}

// splitByName spreads series sharing a domain over as many groups as
// needed for each parameter name to occur at most once per group, for
// example when one station reports a parameter under two naming
// authorities.
func splitByName(domain []series) [][]series {
	var groups [][]series
	var names []map[string]struct{}

next:
	for _, s := range domain {
		for i := range groups {
			if _, dup := names[i][s.name]; !dup {
				groups[i] = append(groups[i], s)
				names[i][s.name] = struct{}{}
				continue next
			}
		}
		groups = append(groups, []series{s})
		names = append(names, map[string]struct{}{s.name: {}})
	}
	return groups
}

func newCoverage(group []series) Coverage {
	key := group[0].key
	times := make([]string, len(key.times))
	for i, t := range key.times {
		times[i] = t.UTC().Format(time.RFC3339Nano)
	}

	c := Coverage{
		Domain: Domain{
			Type:       "Domain",
			DomainType: domainPointTS,
			Axes: Axes{
				X: ValuesAxis[float64]{Values: []float64{key.lon}},
				Y: ValuesAxis[float64]{Values: []float64{key.lat}},
				T: ValuesAxis[string]{Values: times},
			},
			Referencing: referencing(),
		},
		Parameters: make(map[string]Parameter, len(group)),
		Ranges:     make(map[string]NdArray, len(group)),
	}
	for _, s := range group {
		c.Parameters[s.name] = NewParameter(s.ts)
		c.Ranges[s.name] = ndArray(s.values)
	}
	return c
}
