// Package datastore is the gRPC client for the observation store.
//
// Messages are plain Go structs encoded by a hand-written protobuf codec, so
// the package carries no generated code. Field numbers follow the store's
// datastore.proto.
package datastore

import "time"

// Point is a WGS-84 position in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Polygon is a closed ring of points; the last point repeats the first.
type Polygon struct {
	Points []Point
}

// BoundingBox is a WGS-84 envelope.
type BoundingBox struct {
	Left   float64
	Bottom float64
	Right  float64
	Top    float64
}

// TimeInterval is a half-open [Start, End) interval.
type TimeInterval struct {
	Start time.Time
	End   time.Time
}

// Link is a typed hyperlink attached to a time series.
type Link struct {
	Href     string
	Rel      string
	Type     string
	Hreflang string
	Title    string
}

// TSMetadata describes one time series. Level is in centimetres and Period
// in seconds.
type TSMetadata struct {
	Version              string
	Type                 string
	Title                string
	Summary              string
	Keywords             string
	KeywordsVocabulary   string
	License              string
	Conventions          string
	NamingAuthority      string
	CreatorType          string
	CreatorName          string
	CreatorEmail         string
	CreatorURL           string
	Institution          string
	Project              string
	Source               string
	Platform             string
	PlatformVocabulary   string
	PlatformName         string
	StandardName         string
	Unit                 string
	Instrument           string
	InstrumentVocabulary string
	Links                []Link
	Level                int64
	Period               int64
	Function             string
	ParameterName        string
	TimeseriesID         string
}

// ObsMetadata describes one observation within a series.
type ObsMetadata struct {
	ID              string
	GeoPoint        *Point
	Pubtime         time.Time
	DataID          string
	History         string
	MetadataID      string
	ObstimeInstant  time.Time
	ProcessingLevel string
	Value           string
	QualityCode     int32
}

// Metadata1 pairs a series with a single observation, the unit of writes.
type Metadata1 struct {
	TSMdata  *TSMetadata
	ObsMdata *ObsMetadata
}

// Metadata2 pairs a series with its observations, the unit of reads.
type Metadata2 struct {
	TSMdata  *TSMetadata
	ObsMdata []*ObsMetadata
}

type PutObsRequest struct {
	Observations []*Metadata1
}

type PutObsResponse struct {
	Status int32
	Error  string
}

// GetObsRequest is the filter sent to GetObservations. Filter maps an
// attribute name to the literal values it may take.
type GetObsRequest struct {
	TemporalInterval       *TimeInterval
	SpatialPolygon         *Polygon
	Filter                 map[string][]string
	TemporalMode           string
	IncludedResponseFields []string
}

type GetObsResponse struct {
	Observations []*Metadata2
}

type GetTSAGRequest struct {
	Attrs            []string
	IncludeInstances bool
}

// TSMdataGroup is one distinct combination of the requested attributes.
type TSMdataGroup struct {
	Combo     *TSMetadata
	Instances []*TSMetadata
}

type GetTSAGResponse struct {
	Groups []*TSMdataGroup
}

type GetExtentsRequest struct{}

type GetExtentsResponse struct {
	TemporalExtent *TimeInterval
	SpatialExtent  *BoundingBox
}
