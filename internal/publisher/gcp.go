package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
)

type GCPConfig struct {
	ProjectID string
	// Topic is the Pub/Sub topic every message goes to; the logical topic
	// travels as the "topic" attribute.
	Topic string
}

// GCP publishes to a Google Cloud Pub/Sub topic.
type GCP struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
}

func NewGCP(ctx context.Context, cfg GCPConfig) (*GCP, error) {
	if cfg.ProjectID == "" || cfg.Topic == "" {
		return nil, errors.New("gcp: project id and topic are required")
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	publisher := client.Publisher(cfg.Topic)
	publisher.PublishSettings.DelayThreshold = 50 * time.Millisecond
	publisher.PublishSettings.CountThreshold = 100

	return &GCP{client: client, publisher: publisher}, nil
}

func (g *GCP) Publish(ctx context.Context, topic string, payload []byte) error {
	res := g.publisher.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"topic": topic},
	})
	_, err := res.Get(ctx)
	return err
}

func (g *GCP) Close() error {
	g.publisher.Stop()
	return g.client.Close()
}
