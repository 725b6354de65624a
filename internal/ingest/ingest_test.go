package ingest_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eurodeo/esoh/internal/datastore"
	"github.com/eurodeo/esoh/internal/ingest"
	"github.com/eurodeo/esoh/internal/lexicon"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// message returns a valid envelope; edit mutates its generic form before
// encoding.
func message(t *testing.T, edit func(props, content map[string]any)) []byte {
	t.Helper()

	content := map[string]any{
		"encoding":      "utf-8",
		"standard_name": "air_temperature",
		"unit":          "degC",
		"value":         "12.5",
	}
	props := map[string]any{
		"datetime":         "2022-12-31T00:10:00Z",
		"naming_authority": "nl.knmi",
		"platform":         "0-20000-0-06260",
		"platform_name":    "De Bilt",
		"level":            "2",
		"period":           "PT10M",
		"function":         "mean",
		"content":          content,
	}
	if edit != nil {
		edit(props, content)
	}

	b, err := json.Marshal(map[string]any{
		"type":       "Feature",
		"geometry":   map[string]any{"type": "Point", "coordinates": map[string]any{"lat": 52.1, "lon": 5.18}},
		"properties": props,
	})
	require.NoError(t, err)
	return b
}

func newValidator(t *testing.T) *ingest.Validator {
	t.Helper()
	v, err := ingest.NewValidator(lexicon.MustLoadBundled())
	require.NoError(t, err)
	return v
}

type fakeStore struct {
	mu   sync.Mutex
	reqs []*datastore.PutObsRequest
	err  error
}

func (f *fakeStore) PutObservations(_ context.Context, req *datastore.PutObsRequest) (*datastore.PutObsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &datastore.PutObsResponse{Status: 0}, nil
}

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic: topic, payload: payload})
	return f.err
}

func (f *fakePublisher) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.msgs))
	for i, m := range f.msgs {
		out[i] = m.topic
	}
	return out
}

type fakeDecoder struct {
	msgs []json.RawMessage
	err  error
}

func (f fakeDecoder) Decode(context.Context, []byte) ([]json.RawMessage, error) {
	return f.msgs, f.err
}

func newService(t *testing.T, store *fakeStore, pub ingest.Publisher, edit func(*ingest.Config)) *ingest.Service {
	t.Helper()
	cfg := ingest.Config{
		Store:        store,
		Validator:    newValidator(t),
		TopicPrepend: "esoh/",
		IDPrefix:     "esoh-",
		Logger:       zerolog.Nop(),
		Now:          func() time.Time { return fixedNow },
	}
	if pub != nil {
		cfg.Publisher = pub
	}
	if edit != nil {
		edit(&cfg)
	}
	return ingest.NewService(cfg)
}

func TestValidate_Canonicalises(t *testing.T) {
	v := newValidator(t)

	env, err := v.Validate(message(t, func(props, content map[string]any) {
		props["level"] = 1.5
		props["period"] = "pt1h"
		content["unit"] = "K"
		content["value"] = "283.15"
	}))
	require.NoError(t, err)

	p := env.Properties
	assert.Equal(t, int64(150), p.LevelCm)
	assert.Equal(t, "1.5", string(p.Level))
	assert.Equal(t, int64(3600), p.PeriodSeconds)
	assert.Equal(t, "PT1H", p.Period)
	assert.Equal(t, "degC", p.Content.Unit)
	assert.Equal(t, "10.00", p.Content.Value)
	assert.Equal(t, "2022-12-31T00:10:00Z", p.Datetime)
}

func TestValidate_StandardNameAlias(t *testing.T) {
	v := newValidator(t)

	env, err := v.Validate(message(t, func(_, content map[string]any) {
		content["standard_name"] = "cloud_cover"
		content["unit"] = "%"
		content["value"] = "75"
	}))
	require.NoError(t, err)
	assert.Equal(t, "cloud_area_fraction", env.Properties.Content.StandardName)
	assert.Equal(t, "percent", env.Properties.Content.Unit)
}

func TestValidate_ArrayCoordinates(t *testing.T) {
	v := newValidator(t)

	raw := strings.Replace(string(message(t, nil)), `{"lat":52.1,"lon":5.18}`, `[5.18,52.1]`, 1)
	env, err := v.Validate([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 52.1, env.Geometry.Coordinates.Lat)
	assert.Equal(t, 5.18, env.Geometry.Coordinates.Lon)
}

func TestValidate_ContentEncodings(t *testing.T) {
	v := newValidator(t)

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write([]byte("7.25"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	tests := []struct {
		name     string
		encoding string
		value    string
	}{
		{"base64", "base64", base64.StdEncoding.EncodeToString([]byte("7.25"))},
		{"gzip", "gzip", base64.StdEncoding.EncodeToString(gz.Bytes())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := v.Validate(message(t, func(_, content map[string]any) {
				content["encoding"] = tt.encoding
				content["value"] = tt.value
			}))
			require.NoError(t, err)
			assert.Equal(t, "utf-8", env.Properties.Content.Encoding)
			assert.Equal(t, "7.25", env.Properties.Content.Value)
		})
	}
}

func TestValidate_GzipContentTooLarge(t *testing.T) {
	v := newValidator(t)

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write(bytes.Repeat([]byte("0"), 4*ingest.MaxDecodedContent))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.Less(t, gz.Len(), ingest.MaxDecodedContent/100)

	_, err = v.Validate(message(t, func(_, c map[string]any) {
		c["encoding"] = "gzip"
		c["value"] = base64.StdEncoding.EncodeToString(gz.Bytes())
	}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ingest.ErrInvalidMessage)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestValidate_Rejects(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name string
		edit func(props, content map[string]any)
		want string
	}{
		{"missing platform", func(p, _ map[string]any) { delete(p, "platform") }, "platform"},
		{"unknown function", func(p, _ map[string]any) { p["function"] = "average" }, "function"},
		{"unknown standard name", func(_, c map[string]any) { c["standard_name"] = "air_temp" }, "air_temp"},
		{"unknown unit", func(_, c map[string]any) { c["unit"] = "furlong" }, "furlong"},
		{"bad platform", func(p, _ map[string]any) { p["platform"] = "06260" }, "WIGOS"},
		{"non-UTC datetime", func(p, _ map[string]any) { p["datetime"] = "2022-12-31T01:10:00+01:00" }, "UTC"},
		{"bad datetime", func(p, _ map[string]any) { p["datetime"] = "31-12-2022" }, "RFC 3339"},
		{"bad period", func(p, _ map[string]any) { p["period"] = "10 minutes" }, "duration"},
		{"bad level", func(p, _ map[string]any) { p["level"] = "high" }, "level"},
		{"bad encoding", func(_, c map[string]any) { c["encoding"] = "base64"; c["value"] = "!!" }, "base64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(message(t, tt.edit))
			require.Error(t, err)
			assert.ErrorIs(t, err, ingest.ErrInvalidMessage)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_WrongGeometryType(t *testing.T) {
	v := newValidator(t)
	raw := strings.Replace(string(message(t, nil)), `"type":"Point"`, `"type":"Polygon"`, 1)
	_, err := v.Validate([]byte(raw))
	assert.ErrorIs(t, err, ingest.ErrInvalidMessage)
}

func TestTimeseriesID_Deterministic(t *testing.T) {
	v := newValidator(t)

	a, err := v.Validate(message(t, nil))
	require.NoError(t, err)
	b, err := v.Validate(message(t, func(p, _ map[string]any) {
		p["level"] = 2.0
		p["datetime"] = "2023-01-01T00:00:00Z"
	}))
	require.NoError(t, err)
	c, err := v.Validate(message(t, func(p, _ map[string]any) { p["level"] = "10" }))
	require.NoError(t, err)

	assert.Len(t, ingest.TimeseriesID(&a.Properties), 32)
	assert.Equal(t, ingest.TimeseriesID(&a.Properties), ingest.TimeseriesID(&b.Properties))
	assert.NotEqual(t, ingest.TimeseriesID(&a.Properties), ingest.TimeseriesID(&c.Properties))
	assert.Equal(t, "air_temperature:2.0:mean:PT10M", ingest.ParameterName(&a.Properties))
}

func TestDedupe(t *testing.T) {
	v := newValidator(t)

	first, err := v.Validate(message(t, nil))
	require.NoError(t, err)
	// Same observation spelled differently.
	same, err := v.Validate(message(t, func(p, _ map[string]any) {
		p["level"] = 2
		p["period"] = "pt10m"
	}))
	require.NoError(t, err)
	other, err := v.Validate(message(t, func(p, _ map[string]any) { p["datetime"] = "2022-12-31T00:20:00Z" }))
	require.NoError(t, err)

	out, dropped := ingest.Dedupe([]*ingest.Envelope{first, same, other})
	assert.Equal(t, 1, dropped)
	require.Len(t, out, 2)
	assert.Same(t, first, out[0])
	assert.Same(t, other, out[1])
}

func TestService_IngestJSON(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	svc := newService(t, store, pub, nil)

	res, err := svc.IngestJSON(context.Background(), message(t, nil))
	require.NoError(t, err)
	assert.Equal(t, ingest.Result{StatusMessage: ingest.MessageIngested, StatusCode: http.StatusOK}, res)

	require.Len(t, store.reqs, 1)
	require.Len(t, store.reqs[0].Observations, 1)
	obs := store.reqs[0].Observations[0]

	ts := obs.TSMdata
	assert.Equal(t, "air_temperature", ts.StandardName)
	assert.Equal(t, "degC", ts.Unit)
	assert.Equal(t, int64(200), ts.Level)
	assert.Equal(t, int64(600), ts.Period)
	assert.Equal(t, "air_temperature:2.0:mean:PT10M", ts.ParameterName)
	assert.Len(t, ts.TimeseriesID, 32)

	o := obs.ObsMdata
	assert.True(t, strings.HasPrefix(o.DataID, "esoh-"))
	assert.Equal(t, "esoh-"+o.ID, o.DataID)
	assert.Equal(t, fixedNow, o.Pubtime)
	assert.Equal(t, time.Date(2022, 12, 31, 0, 10, 0, 0, time.UTC), o.ObstimeInstant)
	assert.Equal(t, &datastore.Point{Lat: 52.1, Lon: 5.18}, o.GeoPoint)
	assert.Equal(t, "12.5", o.Value)

	assert.Equal(t, []string{"esoh/nl.knmi"}, pub.topics())
	var sent ingest.Envelope
	require.NoError(t, json.Unmarshal(pub.msgs[0].payload, &sent))
	assert.Equal(t, ts.TimeseriesID, sent.Properties.TimeseriesID)
	assert.Equal(t, "2.0", string(sent.Properties.Level))
}

func TestService_IngestJSON_List(t *testing.T) {
	store := &fakeStore{}
	svc := newService(t, store, nil, nil)

	body := "[" + string(message(t, nil)) + "," +
		string(message(t, func(p, _ map[string]any) { p["datetime"] = "2022-12-31T00:20:00Z" })) + "]"

	res, err := svc.IngestJSON(context.Background(), []byte(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, store.reqs, 1)
	assert.Len(t, store.reqs[0].Observations, 2)
}

func TestService_DuplicatesRemoved(t *testing.T) {
	store := &fakeStore{}
	svc := newService(t, store, nil, nil)

	body := "[" + string(message(t, nil)) + "," + string(message(t, nil)) + "]"
	res, err := svc.IngestJSON(context.Background(), []byte(body))
	require.NoError(t, err)
	assert.Equal(t, ingest.MessageDuplicatesRemoved, res.StatusMessage)
	assert.Equal(t, 1, res.DuplicatesRemoved)
	assert.Len(t, store.reqs[0].Observations, 1)
}

func TestService_InvalidMessageStoresNothing(t *testing.T) {
	store := &fakeStore{}
	svc := newService(t, store, nil, nil)

	body := "[" + string(message(t, nil)) + "," +
		string(message(t, func(p, _ map[string]any) { p["platform"] = "bad" })) + "]"
	_, err := svc.IngestJSON(context.Background(), []byte(body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message 1")
	assert.Empty(t, store.reqs)

	res := ingest.ErrorResult(err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestService_EmptyBody(t *testing.T) {
	svc := newService(t, &fakeStore{}, nil, nil)

	for _, body := range []string{"", "[]", "{not json"} {
		_, err := svc.IngestJSON(context.Background(), []byte(body))
		assert.ErrorIs(t, err, ingest.ErrInvalidMessage, body)
	}
}

func TestService_StoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	pub := &fakePublisher{}
	svc := newService(t, store, pub, nil)

	_, err := svc.IngestJSON(context.Background(), message(t, nil))
	require.ErrorIs(t, err, ingest.ErrStore)
	assert.Empty(t, pub.topics())

	res := ingest.ErrorResult(err)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Contains(t, res.StatusMessage, "connection refused")
}

func TestService_PublishFailure(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := newService(t, store, pub, nil)

	_, err := svc.IngestJSON(context.Background(), message(t, nil))
	require.ErrorIs(t, err, ingest.ErrPublish)
	assert.Len(t, store.reqs, 1)

	res := ingest.ErrorResult(err)
	assert.Equal(t, ingest.Result{StatusMessage: ingest.MessagePublishFailed, StatusCode: http.StatusInternalServerError}, res)
}

func TestService_WIS2Notification(t *testing.T) {
	pub := &fakePublisher{}
	svc := newService(t, &fakeStore{}, pub, func(cfg *ingest.Config) {
		cfg.WIS2 = ingest.WIS2Config{
			Topic:            "origin/a/wis2/nl-knmi/data/core/weather",
			MetadataRecordID: "urn:wmo:md:nl-knmi:surface",
			EDRBaseURL:       "https://edr.example.org/",
		}
	})

	_, err := svc.IngestJSON(context.Background(), message(t, nil))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"esoh/nl.knmi", "origin/a/wis2/nl-knmi/data/core/weather"}, pub.topics())

	var note ingest.WIS2Notification
	for _, m := range pub.msgs {
		if m.topic == "origin/a/wis2/nl-knmi/data/core/weather" {
			require.NoError(t, json.Unmarshal(m.payload, &note))
		}
	}
	assert.Equal(t, "Feature", note.Type)
	require.Len(t, note.Links, 1)
	assert.True(t, strings.HasPrefix(note.Links[0].Href,
		"https://edr.example.org/collections/observations/locations/0-20000-0-06260?"))
	assert.Contains(t, note.Links[0].Href, "parameter-name=air_temperature%3A2.0%3Amean%3APT10M")
}

func TestService_IngestBUFR(t *testing.T) {
	store := &fakeStore{}
	svc := newService(t, store, nil, func(cfg *ingest.Config) {
		cfg.Decoder = fakeDecoder{msgs: []json.RawMessage{message(t, nil)}}
	})

	res, err := svc.IngestBUFR(context.Background(), []byte("BUFR"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, store.reqs, 1)
}

func TestService_IngestBUFR_NothingDecoded(t *testing.T) {
	svc := newService(t, &fakeStore{}, nil, func(cfg *ingest.Config) {
		cfg.Decoder = fakeDecoder{}
	})

	_, err := svc.IngestBUFR(context.Background(), []byte("BUFR"))
	assert.ErrorIs(t, err, ingest.ErrInvalidMessage)
}

func TestTopic(t *testing.T) {
	env := &ingest.Envelope{Properties: ingest.Properties{NamingAuthority: "no.met"}}

	assert.Equal(t, "esoh/no.met", newService(t, &fakeStore{}, nil, nil).Topic(env))
	assert.Equal(t, "no.met", newService(t, &fakeStore{}, nil, func(cfg *ingest.Config) { cfg.TopicPrepend = "" }).Topic(env))
}

func TestParseMessageStream(t *testing.T) {
	msgs, err := ingest.ParseMessageStream([]byte(`{"a":1}
{"b":2}`))
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	msgs, err = ingest.ParseMessageStream([]byte(`[{"a":1},{"b":2},{"c":3}]`))
	require.NoError(t, err)
	assert.Len(t, msgs, 3)

	msgs, err = ingest.ParseMessageStream(nil)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = ingest.ParseMessageStream([]byte(`{"a":`))
	assert.ErrorIs(t, err, ingest.ErrDecode)
}
