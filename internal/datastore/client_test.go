package datastore_test

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/eurodeo/esoh/internal/datastore"
	"github.com/eurodeo/esoh/internal/resilience"
)

type fakeStore struct {
	mu       sync.Mutex
	lastGet  *datastore.GetObsRequest
	lastPut  *datastore.PutObsRequest
	lastTSAG *datastore.GetTSAGRequest
	calls    atomic.Int32

	getFn func(ctx context.Context, req *datastore.GetObsRequest) (*datastore.GetObsResponse, error)
	putFn func(ctx context.Context, req *datastore.PutObsRequest) (*datastore.PutObsResponse, error)
}

func (f *fakeStore) PutObservations(ctx context.Context, req *datastore.PutObsRequest) (*datastore.PutObsResponse, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastPut = req
	f.mu.Unlock()
	if f.putFn != nil {
		return f.putFn(ctx, req)
	}
	return &datastore.PutObsResponse{}, nil
}

func (f *fakeStore) GetObservations(ctx context.Context, req *datastore.GetObsRequest) (*datastore.GetObsResponse, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastGet = req
	f.mu.Unlock()
	if f.getFn != nil {
		return f.getFn(ctx, req)
	}
	return &datastore.GetObsResponse{}, nil
}

func (f *fakeStore) GetTSAttrGroups(_ context.Context, req *datastore.GetTSAGRequest) (*datastore.GetTSAGResponse, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastTSAG = req
	f.mu.Unlock()
	return &datastore.GetTSAGResponse{Groups: []*datastore.TSMdataGroup{
		{Combo: &datastore.TSMetadata{ParameterName: "air_temperature:2.0:mean:PT10M"}},
		{Combo: &datastore.TSMetadata{ParameterName: "wind_speed:10.0:mean:PT10M"}},
	}}, nil
}

func (f *fakeStore) GetExtents(context.Context, *datastore.GetExtentsRequest) (*datastore.GetExtentsResponse, error) {
	f.calls.Add(1)
	return &datastore.GetExtentsResponse{
		TemporalExtent: &datastore.TimeInterval{
			Start: time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		SpatialExtent: &datastore.BoundingBox{Left: 3.1, Bottom: 50.7, Right: 7.2, Top: 53.6},
	}, nil
}

func newTestClient(t *testing.T, store *fakeStore, timeout time.Duration) *datastore.Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ForceServerCodec(datastore.Codec{}))
	datastore.RegisterServer(srv, store)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	retry := resilience.DefaultRetryConfig("datastore-test")
	retry.InitialInterval = time.Millisecond
	retry.MaxInterval = 5 * time.Millisecond

	client, err := datastore.NewClient(datastore.Config{
		Target:  "passthrough:///bufnet",
		Timeout: timeout,
		Retry:   retry,
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
		},
		Logger: zerolog.New(io.Discard),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestClient_GetObservationsRoundTrip(t *testing.T) {
	obstime := time.Date(2022, 12, 31, 0, 10, 0, 0, time.UTC)
	store := &fakeStore{
		getFn: func(context.Context, *datastore.GetObsRequest) (*datastore.GetObsResponse, error) {
			return &datastore.GetObsResponse{Observations: []*datastore.Metadata2{{
				TSMdata: &datastore.TSMetadata{
					Platform:      "0-20000-0-06260",
					StandardName:  "air_temperature",
					Unit:          "degC",
					Level:         200,
					Period:        600,
					Function:      "mean",
					ParameterName: "air_temperature:2.0:mean:PT10M",
					Links:         []datastore.Link{{Href: "https://oscar.wmo.int", Rel: "related"}},
				},
				ObsMdata: []*datastore.ObsMetadata{{
					ID:             "abc",
					GeoPoint:       &datastore.Point{Lat: 52.1, Lon: 5.18},
					ObstimeInstant: obstime,
					Value:          "12.5",
					QualityCode:    -1,
				}},
			}}}, nil
		},
	}
	client := newTestClient(t, store, time.Second)

	req := &datastore.GetObsRequest{
		TemporalInterval: &datastore.TimeInterval{
			Start: time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   obstime.Add(time.Second),
		},
		SpatialPolygon: &datastore.Polygon{Points: []datastore.Point{
			{Lat: 52, Lon: 5}, {Lat: 52, Lon: 6}, {Lat: 52.1, Lon: 6}, {Lat: 52, Lon: 5},
		}},
		Filter: map[string][]string{
			"platform":       {"0-20000-0-06260"},
			"parameter_name": {"air_temperature:2.0:mean:PT10M", "wind_speed:10.0:mean:PT10M"},
		},
		TemporalMode:           "latest",
		IncludedResponseFields: []string{"platform", "value"},
	}

	resp, err := client.GetObservations(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Observations, 1)

	got := resp.Observations[0]
	assert.Equal(t, "air_temperature:2.0:mean:PT10M", got.TSMdata.ParameterName)
	assert.Equal(t, int64(200), got.TSMdata.Level)
	assert.Equal(t, int64(600), got.TSMdata.Period)
	assert.Equal(t, []datastore.Link{{Href: "https://oscar.wmo.int", Rel: "related"}}, got.TSMdata.Links)
	require.Len(t, got.ObsMdata, 1)
	assert.Equal(t, obstime, got.ObsMdata[0].ObstimeInstant)
	assert.Equal(t, &datastore.Point{Lat: 52.1, Lon: 5.18}, got.ObsMdata[0].GeoPoint)
	assert.Equal(t, int32(-1), got.ObsMdata[0].QualityCode)
	assert.True(t, got.ObsMdata[0].Pubtime.IsZero())

	sent := store.lastGet
	require.NotNil(t, sent)
	assert.True(t, sent.TemporalInterval.Start.IsZero())
	assert.Equal(t, obstime.Add(time.Second), sent.TemporalInterval.End)
	assert.Equal(t, req.SpatialPolygon, sent.SpatialPolygon)
	assert.Equal(t, req.Filter, sent.Filter)
	assert.Equal(t, "latest", sent.TemporalMode)
	assert.Equal(t, []string{"platform", "value"}, sent.IncludedResponseFields)
}

func TestClient_GetTSAttrGroups(t *testing.T) {
	store := &fakeStore{}
	client := newTestClient(t, store, time.Second)

	resp, err := client.GetTSAttrGroups(context.Background(), &datastore.GetTSAGRequest{
		Attrs:            []string{"parameter_name"},
		IncludeInstances: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Groups, 2)
	assert.Equal(t, "wind_speed:10.0:mean:PT10M", resp.Groups[1].Combo.ParameterName)
	assert.Equal(t, []string{"parameter_name"}, store.lastTSAG.Attrs)
	assert.True(t, store.lastTSAG.IncludeInstances)
}

func TestClient_GetExtents(t *testing.T) {
	client := newTestClient(t, &fakeStore{}, time.Second)

	resp, err := client.GetExtents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &datastore.BoundingBox{Left: 3.1, Bottom: 50.7, Right: 7.2, Top: 53.6}, resp.SpatialExtent)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), resp.TemporalExtent.End)
}

func TestClient_PutObservations(t *testing.T) {
	store := &fakeStore{}
	client := newTestClient(t, store, time.Second)

	pubtime := time.Date(2024, 5, 1, 12, 0, 0, 500, time.UTC)
	_, err := client.PutObservations(context.Background(), &datastore.PutObsRequest{
		Observations: []*datastore.Metadata1{{
			TSMdata:  &datastore.TSMetadata{Platform: "0-20000-0-06260", TimeseriesID: "f00"},
			ObsMdata: &datastore.ObsMetadata{ID: "1", Pubtime: pubtime, Value: "1.0"},
		}},
	})
	require.NoError(t, err)

	require.Len(t, store.lastPut.Observations, 1)
	assert.Equal(t, "f00", store.lastPut.Observations[0].TSMdata.TimeseriesID)
	assert.Equal(t, pubtime, store.lastPut.Observations[0].ObsMdata.Pubtime)
}

func TestClient_PutObservationsRejected(t *testing.T) {
	store := &fakeStore{
		putFn: func(context.Context, *datastore.PutObsRequest) (*datastore.PutObsResponse, error) {
			return &datastore.PutObsResponse{Status: -1, Error: "duplicate key"}, nil
		},
	}
	client := newTestClient(t, store, time.Second)

	_, err := client.PutObservations(context.Background(), &datastore.PutObsRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, datastore.ErrRejected)
	assert.Contains(t, err.Error(), "duplicate key")
}

func TestClient_RetriesInternal(t *testing.T) {
	var attempts atomic.Int32
	store := &fakeStore{
		getFn: func(context.Context, *datastore.GetObsRequest) (*datastore.GetObsResponse, error) {
			if attempts.Add(1) < 3 {
				return nil, status.Error(codes.Internal, "transient")
			}
			return &datastore.GetObsResponse{}, nil
		},
	}
	client := newTestClient(t, store, time.Second)

	_, err := client.GetObservations(context.Background(), &datastore.GetObsRequest{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_DoesNotRetryInvalidArgument(t *testing.T) {
	var attempts atomic.Int32
	store := &fakeStore{
		getFn: func(context.Context, *datastore.GetObsRequest) (*datastore.GetObsResponse, error) {
			attempts.Add(1)
			return nil, status.Error(codes.InvalidArgument, "bad polygon")
		},
	}
	client := newTestClient(t, store, time.Second)

	_, err := client.GetObservations(context.Background(), &datastore.GetObsRequest{})
	require.Error(t, err)

	var dsErr *datastore.Error
	require.True(t, errors.As(err, &dsErr))
	assert.Equal(t, codes.InvalidArgument, dsErr.Code)
	assert.Equal(t, "bad polygon", dsErr.Detail)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestClient_DeadlineExceeded(t *testing.T) {
	store := &fakeStore{
		getFn: func(ctx context.Context, _ *datastore.GetObsRequest) (*datastore.GetObsResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	client := newTestClient(t, store, 50*time.Millisecond)

	_, err := client.GetObservations(context.Background(), &datastore.GetObsRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, datastore.ErrDeadline)
}

func TestClient_CallerCancellation(t *testing.T) {
	store := &fakeStore{
		getFn: func(ctx context.Context, _ *datastore.GetObsRequest) (*datastore.GetObsResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	client := newTestClient(t, store, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.GetObservations(ctx, &datastore.GetObsRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, datastore.ErrCanceled)
}

func TestClient_TimeoutAppliesPerAttempt(t *testing.T) {
	var attempts atomic.Int32
	store := &fakeStore{
		getFn: func(context.Context, *datastore.GetObsRequest) (*datastore.GetObsResponse, error) {
			if attempts.Add(1) < 4 {
				time.Sleep(30 * time.Millisecond)
				return nil, status.Error(codes.Internal, "transient")
			}
			return &datastore.GetObsResponse{}, nil
		},
	}
	// Three slow failures together outlast the timeout, but none does alone.
	client := newTestClient(t, store, 50*time.Millisecond)

	_, err := client.GetObservations(context.Background(), &datastore.GetObsRequest{})
	require.NoError(t, err)
	assert.Equal(t, int32(4), attempts.Load())
}
