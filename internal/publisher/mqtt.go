package publisher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

type MQTTConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	EnableTLS bool
	ClientID  string
	QoS       byte
	Timeout   time.Duration
}

// MQTT publishes to an MQTT broker.
type MQTT struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
}

func NewMQTT(cfg MQTTConfig) (*MQTT, error) {
	if cfg.Host == "" {
		return nil, errors.New("mqtt: host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 1883
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "esoh-ingest-" + uuid.NewString()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.QoS == 0 {
		cfg.QoS = 1
	}

	scheme := "tcp"
	if cfg.EnableTLS {
		scheme = "ssl"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(cfg.Timeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}
	if cfg.EnableTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt: connect to %s:%d timed out", cfg.Host, cfg.Port)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect: %w", err)
	}

	return &MQTT{client: client, qos: cfg.QoS, timeout: cfg.Timeout}, nil
}

func (m *MQTT) Publish(ctx context.Context, topic string, payload []byte) error {
	token := m.client.Publish(topic, m.qos, false, payload)

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.timeout):
		return fmt.Errorf("mqtt: publish to %s timed out", topic)
	}
}

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
