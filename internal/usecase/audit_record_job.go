package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"MandiCast/internal/domain/models"
	domrepo "MandiCast/internal/domain/repository"
	"MandiCast/pkg/queue"
)

// AuditRecordJob drains prediction records from the redis queue into the
// audit store.
type AuditRecordJob struct {
	store   domrepo.AuditStore
	metrics domrepo.Metrics
}

func NewAuditRecordJob(store domrepo.AuditStore, metrics domrepo.Metrics) *AuditRecordJob {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &AuditRecordJob{store: store, metrics: metrics}
}

func (j *AuditRecordJob) Name() string { return "audit-record" }
func (j *AuditRecordJob) Type() string { return models.AuditMessageType }

func (j *AuditRecordJob) Handle(ctx context.Context, payload json.RawMessage) error {
	rec, err := queue.ParsePayload[models.PredictionRecord](payload)
	if err != nil {
		j.metrics.RecordError("queue_unmarshal")
		return err
	}
	if rec.Market == "" || rec.Crop == "" {
		j.metrics.RecordError("queue_invalid")
		return fmt.Errorf("audit record without market or crop")
	}
	if err := j.store.Append(ctx, rec); err != nil {
		j.metrics.RecordError("queue_store")
		return err
	}
	return nil
}

var _ queue.Job = (*AuditRecordJob)(nil)
