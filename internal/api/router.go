// Package api wires the HTTP routers of the EDR gateway and the ingest
// front-end.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/eurodeo/esoh/internal/api/handler"
	"github.com/eurodeo/esoh/internal/api/middleware"
	"github.com/eurodeo/esoh/internal/api/models"
	"github.com/eurodeo/esoh/internal/api/response"
	"github.com/eurodeo/esoh/internal/metrics"
	"github.com/eurodeo/esoh/internal/resilience"
)

// RouterConfig holds configuration shared by both routers.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// Registry reports circuit breaker state on /ready.
	Registry *resilience.Registry
}

// EDRRouterConfig configures the query gateway router.
type EDRRouterConfig struct {
	RouterConfig
	handler.EDRConfig
}

// IngestRouterConfig configures the ingest router.
type IngestRouterConfig struct {
	RouterConfig
	Service handler.Ingester

	// Extents is called by /ready; nil skips the datastore check.
	Extents handler.ExtentsChecker

	RequireTLS bool
}

func newBaseRouter(cfg RouterConfig, defaultName string, extra ...func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = defaultName
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(chimiddleware.RealIP)            // Real IP extraction before logging
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(middleware.SecurityHeaders)
	r.Use(extra...)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, http.StatusNotFound, models.NewErrorDetail("Not Found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, http.StatusMethodNotAllowed, models.NewErrorDetail("Method Not Allowed"))
	})

	r.Handle("/metrics", metrics.Handler())
	return r
}

// NewRouter creates the EDR query gateway router.
func NewRouter(cfg EDRRouterConfig) *chi.Mux {
	r := newBaseRouter(cfg.RouterConfig, "esoh-edr-api", middleware.CORS, middleware.BaseURL)

	ops := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Store, cfg.Registry)
	edr := handler.NewEDRHandler(cfg.EDRConfig)

	r.Get("/health", ops.HealthCheck)
	r.Get("/ready", ops.ReadinessCheck)

	r.Get("/", edr.Landing)
	r.Get("/conformance", edr.Conformance)
	r.Get("/collections", edr.Collections)

	r.Route("/collections/"+handler.CollectionID, func(r chi.Router) {
		r.Get("/", edr.Collection)
		r.Get("/locations", edr.Locations)
		r.Get("/locations/{location_id}", edr.Location)
		r.Get("/position", edr.Position)
		r.Get("/area", edr.Area)
		r.Get("/items", edr.Items)
		r.Get("/items/{item_id}", edr.Item)
	})

	return r
}

// NewIngestRouter creates the ingest front-end router.
func NewIngestRouter(cfg IngestRouterConfig) *chi.Mux {
	r := newBaseRouter(cfg.RouterConfig, "esoh-ingest")

	ops := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Extents, cfg.Registry)
	ingest := handler.NewIngestHandler(cfg.Service, cfg.Logger)

	r.Get("/health", ops.HealthCheck)
	r.Get("/ready", ops.ReadinessCheck)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireTLS(cfg.RequireTLS))
		r.With(middleware.RequireContentType("application/json", "application/geo+json")).
			Post("/json", ingest.JSON)
		r.With(middleware.RequireContentType("multipart/form-data")).
			Post("/bufr", ingest.BUFR)
	})

	return r
}
