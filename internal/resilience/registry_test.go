package resilience_test

import (
	"context"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/eurodeo/esoh/internal/resilience"
)

func TestRegistry_RegisterAndGetHealth(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := fastConfig("datastore")
	cfg.Registry = registry

	p := resilience.NewPolicy(cfg)
	assert.Equal(t, "datastore", p.Name())

	health := registry.GetHealth("datastore")
	require.NotNil(t, health)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.True(t, health.IsHealthy())
	assert.False(t, health.IsDegraded())
	assert.False(t, health.IsUnhealthy())
	assert.Nil(t, health.LastSuccessAt)

	assert.Nil(t, registry.GetHealth("unknown"))
}

func TestRegistry_RecordsOutcomes(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := fastConfig("datastore")
	cfg.Registry = registry
	p := resilience.NewPolicy(cfg)

	require.NoError(t, p.Do(context.Background(), func(context.Context) error { return nil }))
	health := registry.GetHealth("datastore")
	require.NotNil(t, health.LastSuccessAt)

	err := p.Do(context.Background(), func(context.Context) error {
		return status.Error(codes.NotFound, "missing")
	})
	require.Error(t, err)

	health = registry.GetHealth("datastore")
	require.NotNil(t, health.LastFailureAt)
	assert.Contains(t, health.LastError, "missing")
}

func TestRegistry_GetAllHealthSorted(t *testing.T) {
	registry := resilience.NewRegistry()
	for _, name := range []string{"publisher", "datastore"} {
		cfg := fastConfig(name)
		cfg.Registry = registry
		resilience.NewPolicy(cfg)
	}

	all := registry.GetAllHealth()
	require.Len(t, all, 2)
	assert.Equal(t, "datastore", all[0].Name)
	assert.Equal(t, "publisher", all[1].Name)
}
