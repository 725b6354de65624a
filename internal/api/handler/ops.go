// Package handler provides the HTTP handlers of the EDR gateway and the
// ingest front-end.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/eurodeo/esoh/internal/api/models"
	"github.com/eurodeo/esoh/internal/api/response"
	"github.com/eurodeo/esoh/internal/datastore"
	"github.com/eurodeo/esoh/internal/resilience"
)

// readinessTimeout bounds the readiness check independently of the datastore deadline.
const readinessTimeout = 2 * time.Second

// ExtentsChecker is the datastore call used by the readiness check.
type ExtentsChecker interface {
	GetExtents(ctx context.Context) (*datastore.GetExtentsResponse, error)
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	store     ExtentsChecker
	registry  *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler. store and registry may be nil.
func NewOpsHandler(version, buildTime string, store ExtentsChecker, registry *resilience.Registry) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		store:     store,
		registry:  registry,
	}
}

// HealthCheck handles GET /health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /ready. The datastore is checked with
// GetExtents; the circuit breaker state of every registered policy is
// reported alongside.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ready := models.Readiness{
		Status:       models.HealthStatusOK,
		Time:         models.Timestamp(time.Now()),
		Dependencies: []models.DependencyStatus{},
	}

	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		dep := models.DependencyStatus{Name: "datastore-extents", Status: models.HealthStatusOK}
		if _, err := h.store.GetExtents(ctx); err != nil {
			msg := err.Error()
			dep.Status = models.HealthStatusFail
			dep.Message = &msg
			ready.Status = models.HealthStatusFail
		}
		ready.Dependencies = append(ready.Dependencies, dep)
	}

	if h.registry != nil {
		for _, hlth := range h.registry.GetAllHealth() {
			dep := models.DependencyStatus{
				Name:         hlth.Name,
				Status:       models.HealthStatusOK,
				CircuitState: hlth.CircuitState.String(),
			}
			if hlth.LastSuccessAt != nil {
				ts := models.Timestamp(*hlth.LastSuccessAt)
				dep.LastSuccessAt = &ts
			}
			if hlth.LastFailureAt != nil {
				ts := models.Timestamp(*hlth.LastFailureAt)
				dep.LastFailureAt = &ts
			}
			if hlth.LastError != "" {
				msg := hlth.LastError
				dep.Message = &msg
			}

			switch {
			case hlth.IsUnhealthy():
				dep.Status = models.HealthStatusFail
				ready.Status = models.HealthStatusFail
			case hlth.IsDegraded():
				dep.Status = models.HealthStatusDegraded
				if ready.Status == models.HealthStatusOK {
					ready.Status = models.HealthStatusDegraded
				}
			}
			ready.Dependencies = append(ready.Dependencies, dep)
		}
	}

	status := http.StatusOK
	if ready.Status == models.HealthStatusFail {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, ready)
}
