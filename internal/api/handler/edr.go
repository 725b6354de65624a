package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/eurodeo/esoh/internal/api/middleware"
	"github.com/eurodeo/esoh/internal/api/models"
	"github.com/eurodeo/esoh/internal/api/response"
	"github.com/eurodeo/esoh/internal/datastore"
	"github.com/eurodeo/esoh/internal/edr"
	"github.com/eurodeo/esoh/internal/formatter"
	"github.com/eurodeo/esoh/internal/lexicon"
)

// CollectionID is the only collection served.
const CollectionID = "observations"

// Query types advertised in the collection metadata.
const (
	QueryPosition  = "position"
	QueryLocations = "locations"
	QueryArea      = "area"
)

const (
	crsWGS84 = "http://www.opengis.net/def/crs/OGC/1.3/CRS84"
	trsISO   = "http://www.opengis.net/def/uom/ISO-8601/0/Gregorian"
)

// fallbackBBox is advertised when the store cannot report its extent.
var fallbackBBox = [4]float64{-180, -90, 180, 90}

// collectionAttrs are the series attributes that define a parameter.
var collectionAttrs = []string{"parameter_name", "standard_name", "unit", "level", "period", "function"}

// ConformanceClasses are the OGC conformance classes implemented.
var ConformanceClasses = []string{
	"http://www.opengis.net/spec/ogcapi-common-1/1.0/conf/core",
	"http://www.opengis.net/spec/ogcapi-common-2/1.0/conf/collections",
	"http://www.opengis.net/spec/ogcapi-edr-1/1.1/conf/core",
	"http://www.opengis.net/spec/ogcapi-edr-1/1.1/conf/covjson",
	"http://www.opengis.net/spec/ogcapi-edr-1/1.1/conf/geojson",
	"http://www.opengis.net/spec/ogcapi-features-1/1.0/conf/core",
	"http://www.opengis.net/spec/ogcapi-features-1/1.0/conf/geojson",
}

// Store is the part of the datastore client the EDR handlers call.
type Store interface {
	GetObservations(ctx context.Context, req *datastore.GetObsRequest) (*datastore.GetObsResponse, error)
	GetTSAttrGroups(ctx context.Context, req *datastore.GetTSAGRequest) (*datastore.GetTSAGResponse, error)
	GetExtents(ctx context.Context) (*datastore.GetExtentsResponse, error)
}

// ParameterLister returns the parameter names currently in the store.
type ParameterLister interface {
	List(ctx context.Context) ([]string, error)
}

// EDRConfig holds the dependencies of EDRHandler.
type EDRConfig struct {
	Store      Store
	Vocabulary *lexicon.Vocabulary

	// ParameterNames expands wildcards. When nil, wildcard queries are
	// filtered per component and matched on the gateway.
	ParameterNames ParameterLister

	Logger zerolog.Logger
}

// EDRHandler serves the landing page, collection metadata and the
// position, area, locations and items queries.
type EDRHandler struct {
	store  Store
	vocab  *lexicon.Vocabulary
	names  ParameterLister
	logger zerolog.Logger
}

// NewEDRHandler creates a new EDRHandler.
func NewEDRHandler(cfg EDRConfig) *EDRHandler {
	return &EDRHandler{
		store:  cfg.Store,
		vocab:  cfg.Vocabulary,
		names:  cfg.ParameterNames,
		logger: cfg.Logger,
	}
}

// Landing handles GET /.
func (h *EDRHandler) Landing(w http.ResponseWriter, r *http.Request) {
	base := middleware.GetBaseURL(r.Context())
	page := models.LandingPage{
		Title:       "E-SOH EDR API",
		Description: "Environmental Data Retrieval API for surface observations from the E-SOH datastore",
		Keywords:    []string{"weather", "temperature", "wind", "humidity", "pressure", "clouds", "radiation", "observations"},
		Provider: models.Provider{
			Name: "RODEO",
			URL:  "https://rodeo-project.eu/",
		},
		Contact: models.Contact{
			Email: "rodeoproject@fmi.fi",
			URL:   "https://rodeo-project.eu/contact",
		},
		Links: []models.Link{
			{Href: base + "/", Rel: "self", Type: "application/json", Title: "Landing Page"},
			{Href: base + "/conformance", Rel: "conformance", Type: "application/json", Title: "Conformance"},
			{Href: base + "/collections", Rel: "data", Type: "application/json", Title: "Collections"},
		},
	}
	response.JSON(w, r, http.StatusOK, page)
}

// Conformance handles GET /conformance.
func (h *EDRHandler) Conformance(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Conformance{ConformsTo: ConformanceClasses})
}

// Collections handles GET /collections.
func (h *EDRHandler) Collections(w http.ResponseWriter, r *http.Request) {
	base := middleware.GetBaseURL(r.Context())
	c, err := h.collection(r.Context(), base)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.Collections{
		Links:       []models.Link{{Href: base + "/collections", Rel: "self", Type: "application/json"}},
		Collections: []models.Collection{c},
	})
}

// Collection handles GET /collections/observations.
func (h *EDRHandler) Collection(w http.ResponseWriter, r *http.Request) {
	c, err := h.collection(r.Context(), middleware.GetBaseURL(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, c)
}

func (h *EDRHandler) collection(ctx context.Context, base string) (models.Collection, error) {
	params, err := h.parameters(ctx)
	if err != nil {
		return models.Collection{}, err
	}

	self := base + "/collections/" + CollectionID
	dataQueries := make(map[string]models.DataQuery, 3)
	for _, qt := range []string{QueryPosition, QueryLocations, QueryArea} {
		dataQueries[qt] = models.DataQuery{Link: models.Link{
			Href: self + "/" + qt,
			Rel:  "data",
			Variables: &models.QueryVariable{
				QueryType:           qt,
				OutputFormats:       []string{string(formatter.CoverageJSON)},
				DefaultOutputFormat: string(formatter.CoverageJSON),
			},
		}}
	}

	return models.Collection{
		ID:          CollectionID,
		Title:       "Observations from the E-SOH datastore",
		Description: "Surface observations from weather stations",
		Keywords:    []string{"observations", "surface", "weather"},
		Links: []models.Link{
			{Href: self, Rel: "self", Type: "application/json"},
			{Href: base + "/collections", Rel: "parent", Type: "application/json"},
		},
		Extent:         h.extent(ctx),
		DataQueries:    dataQueries,
		CRS:            []string{crsWGS84},
		OutputFormats:  []string{string(formatter.CoverageJSON)},
		ParameterNames: params,
	}, nil
}

// parameters builds the advertised parameter map. A parameter name stored
// with two different definitions is a store inconsistency.
func (h *EDRHandler) parameters(ctx context.Context) (map[string]formatter.Parameter, error) {
	resp, err := h.store.GetTSAttrGroups(ctx, &datastore.GetTSAGRequest{Attrs: collectionAttrs})
	if err != nil {
		return nil, err
	}

	type definition struct {
		standardName, unit, function string
		level, period                int64
	}
	seen := make(map[string]definition, len(resp.Groups))
	params := make(map[string]formatter.Parameter, len(resp.Groups))

	for _, g := range resp.Groups {
		ts := g.Combo
		if ts == nil {
			continue
		}
		name := formatter.ParameterName(ts)
		def := definition{ts.StandardName, ts.Unit, ts.Function, ts.Level, ts.Period}
		if prev, ok := seen[name]; ok {
			if prev != def {
				return nil, fmt.Errorf("%w: %s", errConflictingParameter, name)
			}
			continue
		}
		seen[name] = def
		params[name] = formatter.NewParameter(ts)
	}
	return params, nil
}

func (h *EDRHandler) extent(ctx context.Context) models.Extent {
	ext := models.Extent{Spatial: models.SpatialExtent{Bbox: [][4]float64{fallbackBBox}, CRS: crsWGS84}}

	resp, err := h.store.GetExtents(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Msg("extents unavailable, advertising global bbox")
		return ext
	}

	if b := resp.SpatialExtent; b != nil {
		ext.Spatial.Bbox = [][4]float64{{b.Left, b.Bottom, b.Right, b.Top}}
	}
	if t := resp.TemporalExtent; t != nil {
		ext.Temporal = &models.TemporalExtent{
			Interval: [][2]*string{{formatBound(t.Start), formatBound(t.End)}},
			TRS:      trsISO,
		}
	}
	return ext
}

func formatBound(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// Locations handles GET /collections/observations/locations, the station
// listing.
func (h *EDRHandler) Locations(w http.ResponseWriter, r *http.Request) {
	if _, err := outputFormat(r, formatter.CoverageJSON); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	q, err := edr.LocationsQuery(h.vocab, r.URL.Query().Get("bbox"), dataParams(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.serve(w, r, q, func(obs []*datastore.Metadata2) (formatter.Response, error) {
		return formatter.Locations(obs), nil
	})
}

// Location handles GET /collections/observations/locations/{location_id}.
func (h *EDRHandler) Location(w http.ResponseWriter, r *http.Request) {
	f, err := outputFormat(r, formatter.CoverageJSON)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	q, err := edr.LocationQuery(h.vocab, chi.URLParam(r, "location_id"), dataParams(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.serve(w, r, q, renderAs(f))
}

// Position handles GET /collections/observations/position.
func (h *EDRHandler) Position(w http.ResponseWriter, r *http.Request) {
	f, err := outputFormat(r, formatter.CoverageJSON)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	q, err := edr.PositionQuery(h.vocab, r.URL.Query().Get("coords"), dataParams(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.serve(w, r, q, renderAs(f))
}

// Area handles GET /collections/observations/area.
func (h *EDRHandler) Area(w http.ResponseWriter, r *http.Request) {
	f, err := outputFormat(r, formatter.CoverageJSON)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	q, err := edr.AreaQuery(h.vocab, r.URL.Query().Get("coords"), dataParams(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.serve(w, r, q, renderAs(f))
}

// Items handles GET /collections/observations/items.
func (h *EDRHandler) Items(w http.ResponseWriter, r *http.Request) {
	f, err := outputFormat(r, formatter.GeoJSON)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	v := r.URL.Query()
	q, err := edr.ItemsQuery(h.vocab, edr.ItemsParams{
		BBox:            v.Get("bbox"),
		Platform:        v.Get("platform"),
		IDs:             v.Get("ids"),
		ParameterName:   v.Get("parameter-name"),
		NamingAuthority: v.Get("naming-authority"),
		Institution:     v.Get("institution"),
		StandardName:    v.Get("standard-name"),
		Unit:            v.Get("unit"),
		Instrument:      v.Get("instrument"),
		Level:           v.Get("level"),
		Period:          v.Get("period"),
		Function:        v.Get("function"),
		Datetime:        v.Get("datetime"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.serve(w, r, q, renderAs(f))
}

// Item handles GET /collections/observations/items/{item_id}.
func (h *EDRHandler) Item(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, edr.ItemQuery(chi.URLParam(r, "item_id")), formatter.Features)
}

// serve runs q against the store and renders the result. An empty result
// answers 404.
func (h *EDRHandler) serve(w http.ResponseWriter, r *http.Request, q edr.Query, render func([]*datastore.Metadata2) (formatter.Response, error)) {
	obs, err := h.fetch(r.Context(), q)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if len(obs) == 0 {
		response.NotFound(w, r)
		return
	}

	doc, err := render(obs)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Document(w, r, doc)
}

func (h *EDRHandler) fetch(ctx context.Context, q edr.Query) ([]*datastore.Metadata2, error) {
	var live []string
	if q.HasWildcard() && h.names != nil {
		names, err := h.names.List(ctx)
		if err != nil {
			h.logger.Warn().Err(err).Msg("live parameter names unavailable, matching wildcards on the gateway")
		} else {
			live = names
		}
	}

	req, matcher, err := edr.Translate(q, live)
	if err != nil {
		return nil, err
	}

	resp, err := h.store.GetObservations(ctx, req)
	if err != nil {
		return nil, err
	}
	return matcher.Filter(resp.Observations), nil
}

func dataParams(r *http.Request) edr.DataParams {
	v := r.URL.Query()
	return edr.DataParams{
		ParameterName: v.Get("parameter-name"),
		Datetime:      v.Get("datetime"),
	}
}

func outputFormat(r *http.Request, def formatter.Format) (formatter.Format, error) {
	f, err := formatter.ParseFormat(r.URL.Query().Get("f"), def)
	if err != nil {
		return "", &edr.ValidationError{Field: "f", Message: err.Error()}
	}
	return f, nil
}

func renderAs(f formatter.Format) func([]*datastore.Metadata2) (formatter.Response, error) {
	return func(obs []*datastore.Metadata2) (formatter.Response, error) {
		return formatter.Render(f, obs)
	}
}
