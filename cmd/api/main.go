// Package main provides the entrypoint for the E-SOH EDR query gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eurodeo/esoh/internal/api"
	"github.com/eurodeo/esoh/internal/api/handler"
	"github.com/eurodeo/esoh/internal/api/middleware"
	"github.com/eurodeo/esoh/internal/config"
	"github.com/eurodeo/esoh/internal/datastore"
	"github.com/eurodeo/esoh/internal/lexicon"
	"github.com/eurodeo/esoh/internal/resilience"
	"github.com/eurodeo/esoh/internal/telemetry"
	"github.com/eurodeo/esoh/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "esoh-edr-api"

func main() {
	f, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		if config.IsHelp(err) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := config.Load(serviceName, "8080", f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := cfg.Logger(Version)
	log.Info().
		Str("build_time", BuildTime).
		Msg("starting EDR API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, cfg.TelemetryConfig(Version))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	vocab, err := lexicon.Load(cfg.Lexicon)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load vocabulary")
	}
	log.Info().Str("standard_name_table", vocab.Version()).Msg("vocabulary loaded")

	registry := resilience.NewRegistry()
	store, err := datastore.NewClient(cfg.DatastoreClient(registry, log))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create datastore client")
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close datastore client")
		}
	}()

	names := lexicon.NewParameterNames(store, cfg.ParameterNamesTTL)
	refreshCtx, stopRefresh := context.WithCancel(ctx)
	defer stopRefresh()
	go worker.NewRefreshJob(names, worker.RefreshConfig{Interval: cfg.ParameterNamesTTL / 2}, log).Run(refreshCtx)

	router := api.NewRouter(api.EDRRouterConfig{
		RouterConfig: api.RouterConfig{
			Version:     Version,
			BuildTime:   BuildTime,
			Logger:      log,
			ServiceName: serviceName,
			Metrics:     httpMetrics,
			Registry:    registry,
		},
		EDRConfig: handler.EDRConfig{
			Store:          store,
			Vocabulary:     vocab,
			ParameterNames: names,
			Logger:         log,
		},
	})

	// Write timeout leaves room for a datastore attempt that runs to its deadline.
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Datastore.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("datastore", fmt.Sprintf("%s:%d", cfg.Datastore.Host, cfg.Datastore.Port)).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	stopRefresh()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
