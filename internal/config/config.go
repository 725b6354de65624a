// Package config loads the settings shared by the api and ingest binaries
// from flags, the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/eurodeo/esoh/internal/datastore"
	"github.com/eurodeo/esoh/internal/ingest"
	"github.com/eurodeo/esoh/internal/lexicon"
	"github.com/eurodeo/esoh/internal/publisher"
	"github.com/eurodeo/esoh/internal/resilience"
	"github.com/eurodeo/esoh/internal/telemetry"
)

// Flags are the command-line options of both binaries.
type Flags struct {
	Addr     string `long:"addr" description:"Listen address, overrides APP_PORT"`
	EnvFile  string `long:"env-file" default:".env" description:"Optional file of environment defaults"`
	LogLevel string `long:"log-level" description:"Log level (debug, info, warn, error), overrides LOG_LEVEL"`
}

// ParseFlags parses args. A help request is returned as a *flags.Error of
// type flags.ErrHelp.
func ParseFlags(args []string) (Flags, error) {
	var f Flags
	if _, err := flags.ParseArgs(&f, args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// IsHelp reports whether err is a help request from ParseFlags.
func IsHelp(err error) bool {
	var flagsErr *flags.Error
	return errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp
}

type Datastore struct {
	Host    string
	Port    int
	Timeout time.Duration

	RetryInitial     time.Duration
	RetryMaxInterval time.Duration
	RetryMultiplier  float64
	RetryMaxAttempts uint64
}

type MQTT struct {
	Host         string
	Port         int
	Username     string
	Password     string
	TopicPrepend string
	EnableTLS    bool
}

type WIS2 struct {
	Topic            string
	MetadataRecordID string
}

type Telemetry struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRatio  float64
}

// Config is the merged configuration of one binary.
type Config struct {
	Service     string
	Addr        string
	Environment string
	LogLevel    string
	LogConsole  bool

	// RequireTLS rejects ingest requests a proxy reports as plain HTTP.
	RequireTLS bool

	Datastore Datastore

	PubSubDriver string
	MQTT         MQTT
	GCPProjectID string
	GCPTopic     string
	KafkaBrokers []string
	NATSURL      string

	EDRAPIURL      string
	WIS2           WIS2
	IDPrefix       string
	BUFRDecoderCmd string

	Lexicon           lexicon.Config
	ParameterNamesTTL time.Duration

	Telemetry Telemetry
}

// Load reads the environment, after loading f.EnvFile if it exists, and
// applies the flag overrides. defaultPort is used when APP_PORT is unset.
func Load(service, defaultPort string, f Flags) (Config, error) {
	if f.EnvFile != "" {
		if err := godotenv.Load(f.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", f.EnvFile, err)
		}
	}

	var errs []error
	cfg := Config{
		Service:     service,
		Addr:        ":" + getEnvOrDefault("APP_PORT", defaultPort),
		Environment: getEnvOrDefault("APP_ENV", "development"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		LogConsole:  getBool("LOG_CONSOLE", false, &errs),
		RequireTLS:  getBool("REQUIRE_TLS", false, &errs),

		Datastore: Datastore{
			Host:             getEnvOrDefault("DSHOST", "localhost"),
			Port:             getInt("DSPORT", 50050, &errs),
			Timeout:          getDuration("DS_TIMEOUT", datastore.DefaultTimeout, &errs),
			RetryInitial:     getDuration("DS_RETRY_INITIAL", 100*time.Millisecond, &errs),
			RetryMaxInterval: getDuration("DS_RETRY_MAX_INTERVAL", 10*time.Second, &errs),
			RetryMultiplier:  getFloat("DS_RETRY_MULTIPLIER", 2, &errs),
			RetryMaxAttempts: uint64(getInt("DS_RETRY_MAX_ATTEMPTS", 10, &errs)), //nolint:gosec // validated below
		},

		MQTT: MQTT{
			Host:         os.Getenv("MQTT_HOST"),
			Port:         getInt("MQTT_PORT", 1883, &errs),
			Username:     os.Getenv("MQTT_USERNAME"),
			Password:     os.Getenv("MQTT_PASSWORD"),
			TopicPrepend: os.Getenv("MQTT_TOPIC_PREPEND"),
			EnableTLS:    getBool("MQTT_ENABLE_TLS", false, &errs),
		},
		GCPProjectID: os.Getenv("GCP_PROJECT_ID"),
		GCPTopic:     os.Getenv("GCP_PUBSUB_TOPIC"),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		NATSURL:      os.Getenv("NATS_URL"),

		EDRAPIURL: os.Getenv("EDR_API_URL"),
		WIS2: WIS2{
			Topic:            os.Getenv("WIS2_TOPIC"),
			MetadataRecordID: os.Getenv("WIS2_METADATA_RECORD_ID"),
		},
		IDPrefix:       os.Getenv("ID_PREFIX"),
		BUFRDecoderCmd: getEnvOrDefault("BUFR_DECODER_CMD", ingest.DefaultBUFRDecoderCommand),

		Lexicon: lexicon.Config{
			StandardNamesPath: os.Getenv("LEXICON_STANDARD_NAMES"),
			AliasesPath:       os.Getenv("LEXICON_ALIASES"),
			UnitsPath:         os.Getenv("LEXICON_UNITS"),
		},
		ParameterNamesTTL: getDuration("PARAMETER_NAMES_TTL", lexicon.DefaultParameterNamesTTL, &errs),

		Telemetry: Telemetry{
			Enabled:      getBool("OTEL_ENABLED", false, &errs),
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRatio:  getFloat("OTEL_SAMPLE_RATIO", 1, &errs),
		},
	}

	cfg.PubSubDriver = os.Getenv("PUBSUB_DRIVER")
	if cfg.PubSubDriver == "" {
		cfg.PubSubDriver = publisher.DriverNone
		if cfg.MQTT.Host != "" {
			cfg.PubSubDriver = publisher.DriverMQTT
		}
	}

	if f.Addr != "" {
		cfg.Addr = f.Addr
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}

	if cfg.Datastore.RetryMaxAttempts == 0 {
		errs = append(errs, errors.New("DS_RETRY_MAX_ATTEMPTS must be at least 1"))
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level %q", cfg.LogLevel))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Logger builds the root logger of the binary.
func (c Config) Logger(version string) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if c.LogConsole {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stdout)
	}

	return log.Level(level).
		With().
		Timestamp().
		Str("service", c.Service).
		Str("version", version).
		Logger()
}

// DatastoreClient returns the transport client configuration.
func (c Config) DatastoreClient(registry *resilience.Registry, logger zerolog.Logger) datastore.Config {
	retry := resilience.DefaultRetryConfig("datastore")
	retry.InitialInterval = c.Datastore.RetryInitial
	retry.MaxInterval = c.Datastore.RetryMaxInterval
	retry.Multiplier = c.Datastore.RetryMultiplier
	retry.MaxAttempts = c.Datastore.RetryMaxAttempts
	retry.Registry = registry

	return datastore.Config{
		Host:    c.Datastore.Host,
		Port:    c.Datastore.Port,
		Timeout: c.Datastore.Timeout,
		Retry:   retry,
		Logger:  logger,
	}
}

// Publisher returns the pub/sub driver configuration.
func (c Config) Publisher(logger zerolog.Logger) publisher.Config {
	return publisher.Config{
		Driver: c.PubSubDriver,
		MQTT: publisher.MQTTConfig{
			Host:      c.MQTT.Host,
			Port:      c.MQTT.Port,
			Username:  c.MQTT.Username,
			Password:  c.MQTT.Password,
			EnableTLS: c.MQTT.EnableTLS,
		},
		GCP:    publisher.GCPConfig{ProjectID: c.GCPProjectID, Topic: c.GCPTopic},
		Kafka:  publisher.KafkaConfig{Brokers: c.KafkaBrokers},
		NATS:   publisher.NATSConfig{URL: c.NATSURL},
		Logger: logger,
	}
}

// WIS2Config returns the notification settings of the ingest service.
func (c Config) WIS2Config() ingest.WIS2Config {
	return ingest.WIS2Config{
		Topic:            c.WIS2.Topic,
		MetadataRecordID: c.WIS2.MetadataRecordID,
		EDRBaseURL:       c.EDRAPIURL,
	}
}

// TelemetryConfig returns the OpenTelemetry settings.
func (c Config) TelemetryConfig(version string) telemetry.Config {
	return telemetry.Config{
		ServiceName:    c.Service,
		ServiceVersion: version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.Telemetry.OTLPEndpoint,
		Enabled:        c.Telemetry.Enabled,
		SampleRatio:    c.Telemetry.SampleRatio,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		*errs = append(*errs, fmt.Errorf("invalid %s: %q", key, v))
		return def
	}
	return n
}

func getFloat(key string, def float64, errs *[]error) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		*errs = append(*errs, fmt.Errorf("invalid %s: %q", key, v))
		return def
	}
	return f
}

func getBool(key string, def bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %q", key, v))
		return def
	}
	return b
}

func getDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		*errs = append(*errs, fmt.Errorf("invalid %s: %q", key, v))
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
