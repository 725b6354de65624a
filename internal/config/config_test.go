package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eurodeo/esoh/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("MQTT_HOST", "")
	t.Setenv("PUBSUB_DRIVER", "")

	cfg, err := config.Load("esoh-api", "8080", config.Flags{})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "localhost", cfg.Datastore.Host)
	assert.Equal(t, 50050, cfg.Datastore.Port)
	assert.Equal(t, 30*time.Second, cfg.Datastore.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Datastore.RetryInitial)
	assert.Equal(t, 10*time.Second, cfg.Datastore.RetryMaxInterval)
	assert.Equal(t, 2.0, cfg.Datastore.RetryMultiplier)
	assert.Equal(t, uint64(10), cfg.Datastore.RetryMaxAttempts)
	assert.Equal(t, "none", cfg.PubSubDriver)
	assert.Equal(t, "bufr2geojson", cfg.BUFRDecoderCmd)
	assert.Equal(t, 5*time.Minute, cfg.ParameterNamesTTL)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("APP_PORT", "8001")
	t.Setenv("DSHOST", "store")
	t.Setenv("DSPORT", "6000")
	t.Setenv("DS_TIMEOUT", "5s")
	t.Setenv("MQTT_HOST", "broker")
	t.Setenv("MQTT_ENABLE_TLS", "true")
	t.Setenv("PUBSUB_DRIVER", "")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("WIS2_TOPIC", "origin/a/wis2/x")
	t.Setenv("EDR_API_URL", "https://edr.example.org")

	cfg, err := config.Load("esoh-ingest", "8080", config.Flags{})
	require.NoError(t, err)

	assert.Equal(t, ":8001", cfg.Addr)
	assert.Equal(t, "mqtt", cfg.PubSubDriver)
	assert.True(t, cfg.MQTT.EnableTLS)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)

	ds := cfg.DatastoreClient(nil, zerolog.Nop())
	assert.Equal(t, "store", ds.Host)
	assert.Equal(t, 6000, ds.Port)
	assert.Equal(t, 5*time.Second, ds.Timeout)
	assert.Equal(t, uint64(10), ds.Retry.MaxAttempts)

	wis2 := cfg.WIS2Config()
	assert.True(t, wis2.Enabled())
	assert.Equal(t, "https://edr.example.org", wis2.EDRBaseURL)

	pub := cfg.Publisher(zerolog.Nop())
	assert.Equal(t, "broker", pub.MQTT.Host)
	assert.Equal(t, 1883, pub.MQTT.Port)
}

func TestLoad_FlagsOverride(t *testing.T) {
	t.Setenv("APP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "info")

	f, err := config.ParseFlags([]string{"--addr", "127.0.0.1:7000", "--log-level", "debug"})
	require.NoError(t, err)

	cfg, err := config.Load("esoh-api", "8080", f)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ID_PREFIX=knmi-\n"), 0o600))
	t.Setenv("ID_PREFIX", "")
	// godotenv does not override variables that are already set.
	require.NoError(t, os.Unsetenv("ID_PREFIX"))

	cfg, err := config.Load("esoh-ingest", "8001", config.Flags{EnvFile: path})
	require.NoError(t, err)
	assert.Equal(t, "knmi-", cfg.IDPrefix)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	_, err := config.Load("esoh-api", "8080", config.Flags{EnvFile: filepath.Join(t.TempDir(), "absent.env")})
	assert.NoError(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("DSPORT", "not-a-port")
	t.Setenv("DS_TIMEOUT", "soon")
	t.Setenv("LOG_LEVEL", "chatty")

	_, err := config.Load("esoh-api", "8080", config.Flags{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSPORT")
	assert.Contains(t, err.Error(), "DS_TIMEOUT")
	assert.Contains(t, err.Error(), "chatty")
}

func TestParseFlags_Help(t *testing.T) {
	_, err := config.ParseFlags([]string{"--help"})
	require.Error(t, err)
	assert.True(t, config.IsHelp(err))
}
