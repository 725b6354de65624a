package edr

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/eurodeo/esoh/internal/datastore"
	"github.com/eurodeo/esoh/internal/lexicon"
)

// Filter keys understood by the store.
const (
	KeyPlatform        = "platform"
	KeyParameterName   = "parameter_name"
	KeyStandardName    = "standard_name"
	KeyLevel           = "level"
	KeyPeriod          = "period"
	KeyFunction        = "function"
	KeyNamingAuthority = "naming_authority"
	KeyInstitution     = "institution"
	KeyUnit            = "unit"
	KeyInstrument      = "instrument"
	KeyTimeseriesID    = "timeseries_id"
)

// TemporalModeLatest asks the store for the newest observation per series.
const TemporalModeLatest = "latest"

// Query is a validated EDR query ready for translation.
type Query struct {
	Polygon        *datastore.Polygon
	Time           *TimeRange
	ParameterNames []lexicon.ParameterName
	Filter         map[string][]string
	Latest         bool
}

// HasWildcard reports whether any requested parameter name has a wildcard
// component and therefore needs the live name set to expand.
func (q Query) HasWildcard() bool {
	for _, p := range q.ParameterNames {
		if p.HasWildcard() {
			return true
		}
	}
	return false
}

func (q *Query) addFilter(key string, values ...string) {
	if len(values) == 0 {
		return
	}
	if q.Filter == nil {
		q.Filter = make(map[string][]string)
	}
	q.Filter[key] = append(q.Filter[key], values...)
}

// Matcher drops series the store could not filter out itself.
type Matcher []lexicon.ParameterName

// Keep reports whether the series of md matches any pattern. A nil
// Matcher keeps everything.
func (m Matcher) Keep(md *datastore.Metadata2) bool {
	if m == nil {
		return true
	}
	if md.TSMdata == nil {
		return false
	}
	ts := md.TSMdata
	name := lexicon.NewParameterName(ts.StandardName, ts.Level, ts.Function, ts.Period)
	for _, p := range m {
		if p.Matches(name) {
			return true
		}
	}
	return false
}

// Filter returns the observations Keep accepts.
func (m Matcher) Filter(obs []*datastore.Metadata2) []*datastore.Metadata2 {
	if m == nil {
		return obs
	}
	out := obs[:0:0]
	for _, md := range obs {
		if m.Keep(md) {
			out = append(out, md)
		}
	}
	return out
}

// Translate builds the GetObservations request for q.
//
// Names without wildcards become a parameter_name filter. Wildcards are
// expanded against live, the names currently in the store; when live is
// nil the request instead filters on every component no wildcard touches
// and the returned Matcher narrows the result on the gateway side.
func Translate(q Query, live []string) (*datastore.GetObsRequest, Matcher, error) {
	req := &datastore.GetObsRequest{
		SpatialPolygon: q.Polygon,
		Filter:         make(map[string][]string, len(q.Filter)+1),
	}
	for k, v := range q.Filter {
		req.Filter[k] = append([]string(nil), v...)
	}
	if q.Time != nil {
		req.TemporalInterval = &datastore.TimeInterval{Start: q.Time.Start, End: q.Time.End}
	}
	if q.Latest {
		req.TemporalMode = TemporalModeLatest
	}

	if len(q.ParameterNames) == 0 {
		return req, nil, nil
	}

	if !q.HasWildcard() {
		req.Filter[KeyParameterName] = parameterNameStrings(q.ParameterNames)
		return req, nil, nil
	}

	if live != nil {
		names := expandWildcards(q.ParameterNames, live)
		if len(names) == 0 {
			return nil, nil, ErrNoParameterMatch
		}
		req.Filter[KeyParameterName] = names
		return req, nil, nil
	}

	if err := componentFilters(req.Filter, q.ParameterNames); err != nil {
		return nil, nil, err
	}
	return req, Matcher(q.ParameterNames), nil
}

func parameterNameStrings(names []lexicon.ParameterName) []string {
	out := make([]string, 0, len(names))
	for _, p := range names {
		out = append(out, p.String())
	}
	return out
}

func expandWildcards(patterns []lexicon.ParameterName, live []string) []string {
	set := make(map[string]struct{})
	for _, p := range patterns {
		if !p.HasWildcard() {
			set[p.String()] = struct{}{}
		}
	}
	for _, name := range live {
		stored, err := lexicon.SplitParameterName(name)
		if err != nil {
			continue
		}
		for _, p := range patterns {
			if p.HasWildcard() && p.Matches(stored) {
				set[name] = struct{}{}
				break
			}
		}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// componentFilters adds one union filter per component that no pattern
// leaves open. Levels and periods go to the store in cm and seconds.
func componentFilters(filter map[string][]string, patterns []lexicon.ParameterName) error {
	type component struct {
		key   string
		value func(lexicon.ParameterName) string
		conv  func(string) (string, error)
	}
	components := []component{
		{KeyStandardName, func(p lexicon.ParameterName) string { return p.StandardName }, nil},
		{KeyLevel, func(p lexicon.ParameterName) string { return p.Level }, func(s string) (string, error) {
			cm, err := lexicon.ParseLevel(s)
			return strconv.FormatInt(cm, 10), err
		}},
		{KeyFunction, func(p lexicon.ParameterName) string { return p.Function }, nil},
		{KeyPeriod, func(p lexicon.ParameterName) string { return p.Period }, func(s string) (string, error) {
			secs, err := lexicon.ParseDuration(s)
			return strconv.FormatInt(secs, 10), err
		}},
	}

	for _, c := range components {
		var values []string
		seen := make(map[string]struct{})
		open := false
		for _, p := range patterns {
			v := c.value(p)
			if v == lexicon.Wildcard {
				open = true
				break
			}
			if c.conv != nil {
				var err error
				if v, err = c.conv(v); err != nil {
					return invalid("parameter-name", fmt.Sprintf("%s: %v", c.key, err))
				}
			}
			if _, dup := seen[v]; !dup {
				seen[v] = struct{}{}
				values = append(values, v)
			}
		}
		if !open {
			filter[c.key] = values
		}
	}
	return nil
}

// splitList splits a comma-separated query value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
