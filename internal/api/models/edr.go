package models

import "github.com/eurodeo/esoh/internal/formatter"

// Link is an OGC API hyperlink.
type Link struct {
	Href      string         `json:"href"`
	Rel       string         `json:"rel"`
	Type      string         `json:"type,omitempty"`
	Title     string         `json:"title,omitempty"`
	Templated bool           `json:"templated,omitempty"`
	Variables *QueryVariable `json:"variables,omitempty"`
}

type LandingPage struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Provider    Provider `json:"provider"`
	Contact     Contact  `json:"contact"`
	Links       []Link   `json:"links"`
}

type Provider struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Contact struct {
	Email string `json:"email"`
	URL   string `json:"url,omitempty"`
}

type Conformance struct {
	ConformsTo []string `json:"conformsTo"`
}

type SpatialExtent struct {
	Bbox [][4]float64 `json:"bbox"`
	CRS  string       `json:"crs"`
}

type TemporalExtent struct {
	// Interval holds [start, end] pairs; nil bounds encode as null.
	Interval [][2]*string `json:"interval"`
	TRS      string       `json:"trs"`
}

type Extent struct {
	Spatial  SpatialExtent   `json:"spatial"`
	Temporal *TemporalExtent `json:"temporal,omitempty"`
}

type QueryVariable struct {
	Title               string   `json:"title,omitempty"`
	QueryType           string   `json:"query_type"`
	OutputFormats       []string `json:"output_formats"`
	DefaultOutputFormat string   `json:"default_output_format"`
	CRSDetails          []CRS    `json:"crs_details,omitempty"`
}

type CRS struct {
	CRS string `json:"crs"`
	WKT string `json:"wkt"`
}

type DataQuery struct {
	Link Link `json:"link"`
}

// Collection is the metadata of one EDR collection.
type Collection struct {
	ID             string                         `json:"id"`
	Title          string                         `json:"title"`
	Description    string                         `json:"description"`
	Keywords       []string                       `json:"keywords"`
	Links          []Link                         `json:"links"`
	Extent         Extent                         `json:"extent"`
	DataQueries    map[string]DataQuery           `json:"data_queries"`
	CRS            []string                       `json:"crs"`
	OutputFormats  []string                       `json:"output_formats"`
	ParameterNames map[string]formatter.Parameter `json:"parameter_names"`
}

type Collections struct {
	Links       []Link       `json:"links"`
	Collections []Collection `json:"collections"`
}
