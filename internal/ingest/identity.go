package ingest

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/eurodeo/esoh/internal/datastore"
	"github.com/eurodeo/esoh/internal/lexicon"
)

// TimeseriesID fingerprints the attributes that identify a series.
func TimeseriesID(p *Properties) string {
	key := strings.Join([]string{
		p.NamingAuthority,
		p.Platform,
		p.Content.StandardName,
		strconv.FormatInt(p.LevelCm, 10),
		p.Function,
		strconv.FormatInt(p.PeriodSeconds, 10),
	}, ";")
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ParameterName is the compound parameter identifier of the series.
func ParameterName(p *Properties) string {
	return lexicon.NewParameterName(p.Content.StandardName, p.LevelCm, p.Function, p.PeriodSeconds).String()
}

// stamp fills the synthesised identifiers of a validated envelope.
func stamp(env *Envelope, id, prefix string, now time.Time) {
	p := &env.Properties
	env.ID = id
	if p.DataID == "" {
		p.DataID = prefix + id
	}
	p.TimeseriesID = TimeseriesID(p)
	p.Pubtime = now.UTC().Format(time.RFC3339Nano)
}

// toMetadata converts a stamped envelope into the store's write unit.
func toMetadata(env *Envelope) *datastore.Metadata1 {
	p := &env.Properties

	links := make([]datastore.Link, len(env.Links))
	for i, l := range env.Links {
		links[i] = datastore.Link{Href: l.Href, Rel: l.Rel, Type: l.Type, Hreflang: l.Hreflang, Title: l.Title}
	}

	// Both timestamps were produced by validation and stamping.
	obstime, _ := time.Parse(time.RFC3339Nano, p.Datetime)
	pubtime, _ := time.Parse(time.RFC3339Nano, p.Pubtime)

	return &datastore.Metadata1{
		TSMdata: &datastore.TSMetadata{
			Version:              "v4.0",
			Type:                 env.Type,
			Title:                p.Title,
			Summary:              p.Summary,
			Keywords:             p.Keywords,
			KeywordsVocabulary:   p.KeywordsVocabulary,
			License:              p.License,
			Conventions:          p.Conventions,
			NamingAuthority:      p.NamingAuthority,
			CreatorType:          p.CreatorType,
			CreatorName:          p.CreatorName,
			CreatorEmail:         p.CreatorEmail,
			CreatorURL:           p.CreatorURL,
			Institution:          p.Institution,
			Project:              p.Project,
			Source:               p.Source,
			Platform:             p.Platform,
			PlatformVocabulary:   p.PlatformVocabulary,
			PlatformName:         p.PlatformName,
			StandardName:         p.Content.StandardName,
			Unit:                 p.Content.Unit,
			Instrument:           p.Instrument,
			InstrumentVocabulary: p.InstrumentVocabulary,
			Links:                links,
			Level:                p.LevelCm,
			Period:               p.PeriodSeconds,
			Function:             p.Function,
			ParameterName:        ParameterName(p),
			TimeseriesID:         p.TimeseriesID,
		},
		ObsMdata: &datastore.ObsMetadata{
			ID:              env.ID,
			GeoPoint:        &datastore.Point{Lat: env.Geometry.Coordinates.Lat, Lon: env.Geometry.Coordinates.Lon},
			Pubtime:         pubtime,
			DataID:          p.DataID,
			History:         p.History,
			MetadataID:      p.MetadataID,
			ObstimeInstant:  obstime,
			ProcessingLevel: p.ProcessingLevel,
			Value:           p.Content.Value,
			QualityCode:     p.QualityCode,
		},
	}
}
