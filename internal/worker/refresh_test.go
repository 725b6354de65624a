package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eurodeo/esoh/internal/worker"
)

type fakeNames struct {
	calls atomic.Int64
	names []string
	err   error
}

func (f *fakeNames) Refresh(ctx context.Context) ([]string, error) {
	f.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("refresh without deadline")
	}
	return f.names, f.err
}

func TestDefaultRefreshConfig(t *testing.T) {
	cfg := worker.DefaultRefreshConfig()

	assert.Equal(t, 2*time.Minute, cfg.Interval)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestRefreshJob_RunOnce(t *testing.T) {
	names := &fakeNames{names: []string{"air_temperature:2.0:mean:PT1M", "wind_speed:10.0:mean:PT10M"}}
	job := worker.NewRefreshJob(names, worker.RefreshConfig{}, zerolog.Nop())

	require.NoError(t, job.RunOnce(context.Background()))

	stats := job.Stats()
	assert.Equal(t, int64(1), stats.TotalRefreshes)
	assert.Equal(t, int64(0), stats.FailedRefreshes)
	assert.Equal(t, 2, stats.LastNameCount)
	assert.Empty(t, stats.LastError)
	assert.False(t, stats.LastRefreshAt.IsZero())
}

func TestRefreshJob_RunOnceFailure(t *testing.T) {
	names := &fakeNames{err: errors.New("datastore unavailable")}
	job := worker.NewRefreshJob(names, worker.RefreshConfig{}, zerolog.Nop())

	err := job.RunOnce(context.Background())
	require.Error(t, err)

	stats := job.Stats()
	assert.Equal(t, int64(1), stats.FailedRefreshes)
	assert.Equal(t, "datastore unavailable", stats.LastError)
}

func TestRefreshJob_RunStopsOnCancel(t *testing.T) {
	names := &fakeNames{names: []string{"x"}}
	job := worker.NewRefreshJob(names, worker.RefreshConfig{Interval: 10 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return names.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresh job did not stop")
	}
}
