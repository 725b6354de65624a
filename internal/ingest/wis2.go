package ingest

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

const wis2ConformsTo = "http://wis.wmo.int/spec/wnm/1/conf/core"

// WIS2Config enables WIS2 notification messages when Topic is set.
type WIS2Config struct {
	Topic            string
	MetadataRecordID string
	// EDRBaseURL is the public base of the query API.
	EDRBaseURL string
}

func (c WIS2Config) Enabled() bool { return c.Topic != "" }

type wis2Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

type wis2Properties struct {
	DataID     string `json:"data_id"`
	MetadataID string `json:"metadata_id,omitempty"`
	Pubtime    string `json:"pubtime"`
	Datetime   string `json:"datetime"`
}

// WIS2Notification is a WIS2 notification message pointing at the EDR
// query that returns the observation.
type WIS2Notification struct {
	ID         string         `json:"id"`
	ConformsTo []string       `json:"conformsTo"`
	Type       string         `json:"type"`
	Geometry   wis2Geometry   `json:"geometry"`
	Properties wis2Properties `json:"properties"`
	Links      []Link         `json:"links"`
}

// NewWIS2Notification builds the notification for a stamped envelope.
func NewWIS2Notification(cfg WIS2Config, env *Envelope) WIS2Notification {
	p := &env.Properties

	q := url.Values{}
	q.Set("parameter-name", ParameterName(p))
	q.Set("datetime", p.Datetime)
	href := strings.TrimRight(cfg.EDRBaseURL, "/") +
		"/collections/observations/locations/" + url.PathEscape(p.Platform) + "?" + q.Encode()

	metadataID := cfg.MetadataRecordID
	if metadataID == "" {
		metadataID = p.MetadataID
	}

	return WIS2Notification{
		ID:         uuid.NewString(),
		ConformsTo: []string{wis2ConformsTo},
		Type:       "Feature",
		Geometry: wis2Geometry{
			Type:        "Point",
			Coordinates: [2]float64{env.Geometry.Coordinates.Lon, env.Geometry.Coordinates.Lat},
		},
		Properties: wis2Properties{
			DataID:     p.DataID,
			MetadataID: metadataID,
			Pubtime:    p.Pubtime,
			Datetime:   p.Datetime,
		},
		Links: []Link{{
			Href:  href,
			Rel:   "canonical",
			Type:  "application/prs.coverage+json",
			Title: "Observation in CoverageJSON",
		}},
	}
}

func (n WIS2Notification) payload() ([]byte, error) {
	return json.Marshal(n)
}
