package edr

import (
	"strings"

	"github.com/eurodeo/esoh/internal/lexicon"
)

// DataParams are the raw query parameters shared by the data queries.
type DataParams struct {
	ParameterName string
	Datetime      string
}

func (p DataParams) apply(vocab *lexicon.Vocabulary, q *Query) error {
	t, err := ParseDatetimeRange(p.Datetime)
	if err != nil {
		return err
	}
	q.Time = t

	names, err := ParseParameterNames(vocab, p.ParameterName)
	if err != nil {
		return err
	}
	q.ParameterNames = names
	return nil
}

// PositionQuery builds the query for /position. The point is widened to
// a small square so the store's polygon search can hit the station.
func PositionQuery(vocab *lexicon.Vocabulary, coords string, params DataParams) (Query, error) {
	var q Query
	if err := params.apply(vocab, &q); err != nil {
		return Query{}, err
	}
	if strings.TrimSpace(coords) == "" {
		return Query{}, invalid("coords", "required")
	}
	pt, err := ParsePoint(coords)
	if err != nil {
		return Query{}, err
	}
	q.Polygon = PointBuffer(pt, PointBufferMetres)
	return q, nil
}

// AreaQuery builds the query for /area.
func AreaQuery(vocab *lexicon.Vocabulary, coords string, params DataParams) (Query, error) {
	var q Query
	if err := params.apply(vocab, &q); err != nil {
		return Query{}, err
	}
	if strings.TrimSpace(coords) == "" {
		return Query{}, invalid("coords", "required")
	}
	poly, err := ParsePolygon(coords)
	if err != nil {
		return Query{}, err
	}
	q.Polygon = poly
	return q, nil
}

// LocationQuery builds the query for /locations/{id}.
func LocationQuery(vocab *lexicon.Vocabulary, locationID string, params DataParams) (Query, error) {
	var q Query
	if err := params.apply(vocab, &q); err != nil {
		return Query{}, err
	}
	q.addFilter(KeyPlatform, locationID)
	return q, nil
}

// LocationsQuery builds the query behind the /locations station listing.
// Only the newest observation of each series is needed.
func LocationsQuery(vocab *lexicon.Vocabulary, bbox string, params DataParams) (Query, error) {
	var q Query
	if err := params.apply(vocab, &q); err != nil {
		return Query{}, err
	}
	if strings.TrimSpace(bbox) != "" {
		b, err := ParseBBox(bbox)
		if err != nil {
			return Query{}, err
		}
		q.Polygon = b.Polygon()
	}
	q.Latest = true
	return q, nil
}

// ItemsParams are the raw query parameters of /items.
type ItemsParams struct {
	BBox            string
	Platform        string
	IDs             string
	ParameterName   string
	NamingAuthority string
	Institution     string
	StandardName    string
	Unit            string
	Instrument      string
	Level           string
	Period          string
	Function        string
	Datetime        string
}

// ItemsQuery builds the metadata query for /items. Either bbox or
// platform must narrow the search.
func ItemsQuery(vocab *lexicon.Vocabulary, p ItemsParams) (Query, error) {
	if strings.TrimSpace(p.BBox) == "" && strings.TrimSpace(p.Platform) == "" {
		return Query{}, invalid("bbox", "either bbox or platform must be specified")
	}

	q := Query{Latest: true}
	if err := (DataParams{ParameterName: p.ParameterName, Datetime: p.Datetime}).apply(vocab, &q); err != nil {
		return Query{}, err
	}

	if strings.TrimSpace(p.BBox) != "" {
		b, err := ParseBBox(p.BBox)
		if err != nil {
			return Query{}, err
		}
		q.Polygon = b.Polygon()
	}

	q.addFilter(KeyPlatform, splitList(p.Platform)...)
	q.addFilter(KeyTimeseriesID, splitList(p.IDs)...)
	q.addFilter(KeyNamingAuthority, splitList(p.NamingAuthority)...)
	q.addFilter(KeyInstitution, splitList(p.Institution)...)
	q.addFilter(KeyUnit, splitList(p.Unit)...)
	q.addFilter(KeyInstrument, splitList(p.Instrument)...)

	for _, sn := range splitList(p.StandardName) {
		canonical, err := vocab.ValidateStandardName(sn)
		if err != nil {
			return Query{}, invalid("standard-name", err.Error())
		}
		q.addFilter(KeyStandardName, canonical)
	}

	for _, f := range splitList(p.Function) {
		if !lexicon.IsFunction(f) {
			return Query{}, invalid("function", "unknown function "+f)
		}
		q.addFilter(KeyFunction, f)
	}

	levels, err := ExpandLevels(p.Level)
	if err != nil {
		return Query{}, err
	}
	q.addFilter(KeyLevel, levels...)

	periods, err := ExpandPeriods(p.Period)
	if err != nil {
		return Query{}, err
	}
	q.addFilter(KeyPeriod, periods...)

	return q, nil
}

// ItemQuery builds the lookup for /items/{id}.
func ItemQuery(id string) Query {
	q := Query{Latest: true}
	q.addFilter(KeyTimeseriesID, id)
	return q
}
