package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"MandiCast/internal/domain/models"
	domrepo "MandiCast/internal/domain/repository"
	pkgkafka "MandiCast/pkg/kafka"
)

// KafkaAuditHandler drains the audit topic into the audit store.
type KafkaAuditHandler struct {
	topic   string
	store   domrepo.AuditStore
	metrics domrepo.Metrics
}

func NewKafkaAuditHandler(topic string, store domrepo.AuditStore, metrics domrepo.Metrics) *KafkaAuditHandler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &KafkaAuditHandler{topic: topic, store: store, metrics: metrics}
}

func (h *KafkaAuditHandler) Topic() string { return h.topic }

// Handle decodes one PredictionRecord and appends it.
func (h *KafkaAuditHandler) Handle(ctx context.Context, b []byte) error {
	var rec models.PredictionRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if rec.Market == "" || rec.Crop == "" {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("audit record without market or crop")
	}
	if !rec.CreatedAt.IsZero() {
		h.metrics.RecordLatency("audit_e2e", time.Since(rec.CreatedAt).Seconds())
	}

	start := time.Now()
	err := h.store.Append(ctx, &rec)
	h.metrics.RecordLatency("audit_store_append", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaAuditHandler)(nil)
