// Package ingest validates observation messages and dispatches them to the
// datastore and the pub/sub broker.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Envelope is one observation message, a GeoJSON Feature.
type Envelope struct {
	ID         string     `json:"id,omitempty"`
	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
	Links      []Link     `json:"links,omitempty"`
}

type Geometry struct {
	Type        string      `json:"type"`
	Coordinates Coordinates `json:"coordinates"`
}

// Coordinates accepts either {"lat": .., "lon": ..} or a GeoJSON [lon, lat]
// array and always marshals as the object form.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c *Coordinates) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var pos []float64
		if err := json.Unmarshal(b, &pos); err != nil {
			return err
		}
		if len(pos) < 2 {
			return fmt.Errorf("coordinates: need [lon, lat], got %d values", len(pos))
		}
		c.Lon, c.Lat = pos[0], pos[1]
		return nil
	}

	type plain Coordinates
	return json.Unmarshal(b, (*plain)(c))
}

// Level holds a height in metres given as a JSON number or string.
type Level string

func (l *Level) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = Level(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("level: %w", err)
	}
	*l = Level(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

type Content struct {
	Encoding     string `json:"encoding"`
	StandardName string `json:"standard_name"`
	Unit         string `json:"unit"`
	Size         int    `json:"size,omitempty"`
	Value        string `json:"value"`
}

type Properties struct {
	DataID               string  `json:"data_id,omitempty"`
	MetadataID           string  `json:"metadata_id,omitempty"`
	Datetime             string  `json:"datetime"`
	Pubtime              string  `json:"pubtime,omitempty"`
	Title                string  `json:"title,omitempty"`
	Summary              string  `json:"summary,omitempty"`
	Keywords             string  `json:"keywords,omitempty"`
	KeywordsVocabulary   string  `json:"keywords_vocabulary,omitempty"`
	License              string  `json:"license,omitempty"`
	Conventions          string  `json:"Conventions,omitempty"`
	NamingAuthority      string  `json:"naming_authority"`
	CreatorType          string  `json:"creator_type,omitempty"`
	CreatorName          string  `json:"creator_name,omitempty"`
	CreatorEmail         string  `json:"creator_email,omitempty"`
	CreatorURL           string  `json:"creator_url,omitempty"`
	Institution          string  `json:"institution,omitempty"`
	Project              string  `json:"project,omitempty"`
	Source               string  `json:"source,omitempty"`
	Platform             string  `json:"platform"`
	PlatformVocabulary   string  `json:"platform_vocabulary,omitempty"`
	PlatformName         string  `json:"platform_name,omitempty"`
	Instrument           string  `json:"instrument,omitempty"`
	InstrumentVocabulary string  `json:"instrument_vocabulary,omitempty"`
	Level                Level   `json:"level"`
	Period               string  `json:"period"`
	Function             string  `json:"function"`
	History              string  `json:"history,omitempty"`
	ProcessingLevel      string  `json:"processing_level,omitempty"`
	QualityCode          int32   `json:"quality_code,omitempty"`
	TimeseriesID         string  `json:"timeseries_id,omitempty"`
	Content              Content `json:"content"`

	// Filled in by validation.
	LevelCm       int64 `json:"-"`
	PeriodSeconds int64 `json:"-"`
}

type Link struct {
	Href     string `json:"href"`
	Rel      string `json:"rel"`
	Type     string `json:"type,omitempty"`
	Hreflang string `json:"hreflang,omitempty"`
	Title    string `json:"title,omitempty"`
}

// SplitMessages accepts a single message or a JSON array of messages.
func SplitMessages(body []byte) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidMessage)
	}

	if body[0] == '[' {
		var msgs []json.RawMessage
		if err := json.Unmarshal(body, &msgs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		return msgs, nil
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: body is not valid JSON", ErrInvalidMessage)
	}
	return []json.RawMessage{body}, nil
}
