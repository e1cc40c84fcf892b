package repository

import (
	"context"

	"MandiCast/internal/domain/models"
	domrepo "MandiCast/internal/domain/repository"
	pkgkafka "MandiCast/pkg/kafka"
)

// KafkaAuditPublisher ships prediction records as JSON, keyed by market|crop.
type KafkaAuditPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaAuditPublisher(producer *pkgkafka.Producer, topic string) *KafkaAuditPublisher {
	return &KafkaAuditPublisher{producer: producer, topic: topic}
}

func (p *KafkaAuditPublisher) Publish(ctx context.Context, rec *models.PredictionRecord) error {
	return p.producer.Publish(ctx, p.topic, []byte(rec.Key()), rec)
}

// PublishBatch sends recs in a single write.
func (p *KafkaAuditPublisher) PublishBatch(ctx context.Context, recs []*models.PredictionRecord) error {
	msgs := make([]pkgkafka.Message, 0, len(recs))
	for _, r := range recs {
		msgs = append(msgs, pkgkafka.Message{Key: []byte(r.Key()), Value: r})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// Close is a no-op; the producer is shared with the log collector and
// closed by its owner.
func (p *KafkaAuditPublisher) Close() error {
	return nil
}

var _ domrepo.AuditPublisher = (*KafkaAuditPublisher)(nil)
