package repository

import (
	"context"

	"MandiCast/internal/domain/models"
	domrepo "MandiCast/internal/domain/repository"
	"MandiCast/pkg/queue"
)

// RedisAuditPublisher enqueues prediction records on the redis work queue.
type RedisAuditPublisher struct {
	q queue.QueueService
}

func NewRedisAuditPublisher(q queue.QueueService) *RedisAuditPublisher {
	return &RedisAuditPublisher{q: q}
}

func (p *RedisAuditPublisher) Publish(ctx context.Context, rec *models.PredictionRecord) error {
	return p.q.PublishMessage(ctx, models.AuditMessageType, rec)
}

// Close is a no-op; the queue is stopped by the app lifecycle.
func (p *RedisAuditPublisher) Close() error { return nil }

var _ domrepo.AuditPublisher = (*RedisAuditPublisher)(nil)
