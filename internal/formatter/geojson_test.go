package formatter_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eurodeo/esoh/internal/datastore"
	"github.com/eurodeo/esoh/internal/formatter"
)

func TestFeatures_SingleSeriesIsFeature(t *testing.T) {
	md := series("0-20000-0-06260", "air_temperature", 200, 52.1, 5.18, "12.5")
	md.TSMdata.NamingAuthority = "nl.knmi"
	md.ObsMdata[0].History = "ingested"
	md.ObsMdata[0].ProcessingLevel = "raw"

	resp, err := formatter.Features([]*datastore.Metadata2{md})
	require.NoError(t, err)

	f, ok := resp.(formatter.Feature)
	require.True(t, ok, "expected a Feature, got %T", resp)
	assert.Equal(t, "0-20000-0-06260/air_temperature", f.ID)
	assert.Equal(t, [2]float64{5.18, 52.1}, f.Geometry.Coordinates)
	assert.Equal(t, "nl.knmi", f.Properties["naming_authority"])
	assert.Equal(t, "ingested", f.Properties["history"])
	assert.Equal(t, "raw", f.Properties["processing_level"])
	assert.Equal(t, "PT10M", f.Properties["period"])
	assert.InDelta(t, 2.0, f.Properties["level"], 1e-9)
	assert.NotContains(t, f.Properties, "institution")

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "Feature", doc["type"])
	assert.Equal(t, "Point", doc["geometry"].(map[string]any)["type"])
}

func TestFeatures_SortedByPlatform(t *testing.T) {
	obs := []*datastore.Metadata2{
		series("0-20000-0-06280", "wind_speed", 1000, 53, 6, "1"),
		series("0-20000-0-06260", "wind_speed", 1000, 52, 5, "1"),
		series("0-20000-0-06260", "air_temperature", 200, 52, 5, "1"),
	}

	resp, err := formatter.Features(obs)
	require.NoError(t, err)

	coll, ok := resp.(formatter.FeatureCollection)
	require.True(t, ok)
	require.Len(t, coll.Features, 3)
	assert.Equal(t, "0-20000-0-06260/air_temperature", coll.Features[0].ID)
	assert.Equal(t, "0-20000-0-06260/wind_speed", coll.Features[1].ID)
	assert.Equal(t, "0-20000-0-06280/wind_speed", coll.Features[2].ID)
}

func TestFeatures_EmptyIsCollection(t *testing.T) {
	resp, err := formatter.Features(nil)
	require.NoError(t, err)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(raw))
}

func TestLocations(t *testing.T) {
	obs := []*datastore.Metadata2{
		series("0-20000-0-06280", "wind_speed", 1000, 53, 6, "1"),
		series("0-20000-0-06260", "wind_speed", 1000, 52, 5, "1"),
		series("0-20000-0-06260", "air_temperature", 200, 52, 5, "1"),
	}
	obs[1].TSMdata.PlatformName = "De Bilt"

	coll := formatter.Locations(obs)
	require.Len(t, coll.Features, 2)

	first := coll.Features[0]
	assert.Equal(t, "0-20000-0-06260", first.ID)
	assert.Equal(t, "De Bilt", first.Properties["name"])
	assert.Equal(t, formatter.OSCARStationURL+"0-20000-0-06260", first.Properties["detail"])
	assert.Equal(t, []string{"air_temperature:2.0:mean:PT10M", "wind_speed:10.0:mean:PT10M"}, first.Properties["parameter-name"])

	assert.Equal(t, "0-20000-0-06280", coll.Features[1].Properties["name"])
	assert.Len(t, coll.Parameters, 2)
}
