package repository

import (
	"context"
	"fmt"

	"MacroPull/internal/domain/models"
	pkgkafka "MacroPull/pkg/kafka"
)

// KafkaPublisher emits persisted records to a Kafka topic, keyed by
// date, for downstream model-feed consumers.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishRecord(ctx context.Context, rec *models.DailyIndicatorRecord) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(rec.Date), rec); err != nil {
		return fmt.Errorf("publish record %s: %w", rec.Date, err)
	}
	return nil
}
