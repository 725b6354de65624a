// Package worker runs the background jobs of the EDR gateway.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// NameSet is a cached set that can be refetched from the store.
type NameSet interface {
	Refresh(ctx context.Context) ([]string, error)
}

// RefreshConfig holds configuration for the parameter-name refresh job.
type RefreshConfig struct {
	// Interval between refreshes. It should be shorter than the cache TTL
	// so the cache never goes cold.
	// Default: 2 minutes
	Interval time.Duration

	// Timeout bounds a single refresh.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Interval: 2 * time.Minute,
		Timeout:  30 * time.Second,
	}
}

// RefreshStats tracks refresh job statistics.
type RefreshStats struct {
	TotalRefreshes  int64
	FailedRefreshes int64

	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	LastNameCount       int
	LastError           string
}

// RefreshJob keeps the live parameter-name set warm so wildcard queries
// rarely wait on the store.
type RefreshJob struct {
	config RefreshConfig
	names  NameSet
	logger zerolog.Logger

	mu    sync.RWMutex
	stats RefreshStats
}

// NewRefreshJob creates a new refresh job. Zero config fields take the defaults.
func NewRefreshJob(names NameSet, cfg RefreshConfig, logger zerolog.Logger) *RefreshJob {
	def := DefaultRefreshConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &RefreshJob{config: cfg, names: names, logger: logger}
}

// RunOnce performs a single refresh.
func (j *RefreshJob) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	start := time.Now()
	names, err := j.names.Refresh(ctx)
	duration := time.Since(start)

	j.mu.Lock()
	j.stats.TotalRefreshes++
	j.stats.LastRefreshAt = start
	j.stats.LastRefreshDuration = duration
	if err != nil {
		j.stats.FailedRefreshes++
		j.stats.LastError = err.Error()
	} else {
		j.stats.LastNameCount = len(names)
		j.stats.LastError = ""
	}
	j.mu.Unlock()

	if err != nil {
		j.logger.Warn().Err(err).Dur("duration", duration).Msg("parameter name refresh failed")
		return err
	}
	j.logger.Debug().Int("names", len(names)).Dur("duration", duration).Msg("parameter names refreshed")
	return nil
}

// Run refreshes immediately and then every interval until ctx is done.
func (j *RefreshJob) Run(ctx context.Context) {
	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.logger.Info().Dur("interval", j.config.Interval).Msg("starting parameter name refresh job")
	_ = j.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("parameter name refresh job stopped")
			return
		case <-ticker.C:
			_ = j.RunOnce(ctx)
		}
	}
}

// Stats returns a copy of the job statistics.
func (j *RefreshJob) Stats() RefreshStats {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.stats
}
