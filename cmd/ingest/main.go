// Package main provides the entrypoint for the E-SOH ingestion front-end.
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
	"github.com/eurodeo/esoh/internal/api/middleware"
	"github.com/eurodeo/esoh/internal/config"
	"github.com/eurodeo/esoh/internal/datastore"
	"github.com/eurodeo/esoh/internal/ingest"
	"github.com/eurodeo/esoh/internal/lexicon"
	"github.com/eurodeo/esoh/internal/publisher"
	"github.com/eurodeo/esoh/internal/resilience"
	"github.com/eurodeo/esoh/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "esoh-ingest"

func main() {
	f, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		if config.IsHelp(err) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := config.Load(serviceName, "8001", f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := cfg.Logger(Version)
	log.Info().
		Str("build_time", BuildTime).
		Str("pubsub_driver", cfg.PubSubDriver).
		Msg("starting ingest API")

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
	validator, err := ingest.NewValidator(vocab)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to compile message schema")
	}

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

	pub, err := publisher.New(ctx, cfg.Publisher(log))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to pub/sub")
	}
	defer func() {
		if closeErr := pub.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close publisher")
		}
	}()

	svcCfg := ingest.Config{
		Store:        store,
		Validator:    validator,
		Decoder:      ingest.CommandDecoder{Command: cfg.BUFRDecoderCmd},
		TopicPrepend: cfg.MQTT.TopicPrepend,
		WIS2:         cfg.WIS2Config(),
		IDPrefix:     cfg.IDPrefix,
		Logger:       log,
	}
	if !publisher.IsNop(pub) {
		svcCfg.Publisher = pub
	}
	if cfg.WIS2Config().Enabled() && svcCfg.Publisher == nil {
		log.Warn().Str("topic", cfg.WIS2.Topic).Msg("WIS2 topic set without a pub/sub driver, notifications disabled")
	}

	router := api.NewIngestRouter(api.IngestRouterConfig{
		RouterConfig: api.RouterConfig{
			Version:     Version,
			BuildTime:   BuildTime,
			Logger:      log,
			ServiceName: serviceName,
			Metrics:     httpMetrics,
			Registry:    registry,
		},
		Service:    ingest.NewService(svcCfg),
		Extents:    store,
		RequireTLS: cfg.RequireTLS,
	})

	// BUFR decoding runs an external process, so writes get extra time.
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.Datastore.Timeout + 60*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
