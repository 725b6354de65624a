// Package publisher fans accepted observations out to a pub/sub broker.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/eurodeo/esoh/internal/metrics"
)

// Drivers.
const (
	DriverNone  = "none"
	DriverMQTT  = "mqtt"
	DriverGCP   = "gcp"
	DriverKafka = "kafka"
	DriverNATS  = "nats"
)

// ErrUnknownDriver is returned by New for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown pub/sub driver")

// Publisher sends one payload to a topic. Topics use "/" as separator;
// drivers whose brokers use another separator translate it.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// Config selects and configures a driver.
type Config struct {
	Driver string
	MQTT   MQTTConfig
	GCP    GCPConfig
	Kafka  KafkaConfig
	NATS   NATSConfig
	Logger zerolog.Logger
}

// New connects the configured driver. The returned publisher records every
// publish in the Prometheus counters.
func New(ctx context.Context, cfg Config) (Publisher, error) {
	var (
		p   Publisher
		err error
	)

	driver := strings.ToLower(cfg.Driver)
	switch driver {
	case "", DriverNone:
		return Nop{}, nil
	case DriverMQTT:
		p, err = NewMQTT(cfg.MQTT)
	case DriverGCP:
		p, err = NewGCP(ctx, cfg.GCP)
	case DriverKafka:
		p, err = NewKafka(cfg.Kafka)
	case DriverNATS:
		p, err = NewNATS(cfg.NATS)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting %s publisher: %w", driver, err)
	}

	cfg.Logger.Info().Str("driver", driver).Msg("pub/sub publisher connected")
	return Instrument(driver, p), nil
}

// Nop discards every message.
type Nop struct{}

func (Nop) Publish(context.Context, string, []byte) error { return nil }
func (Nop) Close() error                                  { return nil }

// IsNop reports whether p discards its messages.
func IsNop(p Publisher) bool {
	if p == nil {
		return true
	}
	_, ok := p.(Nop)
	return ok
}

type instrumented struct {
	driver string
	next   Publisher
}

// Instrument counts the results of p's publishes under driver.
func Instrument(driver string, p Publisher) Publisher {
	return &instrumented{driver: driver, next: p}
}

func (i *instrumented) Publish(ctx context.Context, topic string, payload []byte) error {
	err := i.next.Publish(ctx, topic, payload)
	metrics.ObservePublish(i.driver, err)
	return err
}

func (i *instrumented) Close() error {
	return i.next.Close()
}

// dotted maps an MQTT-style topic onto a dot-separated subject.
func dotted(topic string) string {
	return strings.ReplaceAll(strings.Trim(topic, "/"), "/", ".")
}
