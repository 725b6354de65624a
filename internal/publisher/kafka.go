package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
)

type KafkaConfig struct {
	Brokers []string
}

// Kafka publishes with a synchronous producer. Topic separators "/" become
// ".", since Kafka topic names may not contain slashes.
type Kafka struct {
	prod sarama.SyncProducer
}

func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}

	scfg := sarama.NewConfig()
	scfg.Version = sarama.V2_5_0_0
	scfg.Producer.RequiredAcks = sarama.WaitForLocal
	scfg.Producer.Return.Successes = true
	scfg.Producer.Return.Errors = true

	prod, err := sarama.NewSyncProducer(cfg.Brokers, scfg)
	if err != nil {
		return nil, fmt.Errorf("kafka: create sync producer: %w", err)
	}
	return &Kafka{prod: prod}, nil
}

func (k *Kafka) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := k.prod.SendMessage(&sarama.ProducerMessage{
		Topic: dotted(topic),
		Value: sarama.ByteEncoder(payload),
	})
	return err
}

func (k *Kafka) Close() error {
	if err := k.prod.Close(); err != nil {
		return fmt.Errorf("kafka: close producer: %w", err)
	}
	return nil
}
