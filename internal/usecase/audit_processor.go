package usecase

import (
	"context"
	"fmt"
	"time"

	"MandiCast/internal/domain/models"
	drepo "MandiCast/internal/domain/repository"
	mid "MandiCast/internal/middleware"
)

// Audit backends a processor can route to.
const (
	BackendKafka      = "kafka"
	BackendRedis      = "redis"
	BackendSQLite     = "sqlite"
	BackendClickHouse = "clickhouse"
)

type batchPublisher interface {
	PublishBatch(ctx context.Context, recs []*models.PredictionRecord) error
}

type batchStore interface {
	AppendBatch(ctx context.Context, recs []*models.PredictionRecord) error
}

// AuditProcessor routes prediction records to the configured backend.
type AuditProcessor struct {
	pub     drepo.AuditPublisher
	store   drepo.AuditStore
	metrics drepo.Metrics
	backend string
}

// NewAuditProcessor creates a processor. pub is used by the broker backends
// and store by the database ones; the other may be nil.
func NewAuditProcessor(pub drepo.AuditPublisher, store drepo.AuditStore, metrics drepo.Metrics, backend string) *AuditProcessor {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &AuditProcessor{pub: pub, store: store, metrics: metrics, backend: backend}
}

// Backend returns the routing target.
func (p *AuditProcessor) Backend() string { return p.backend }

// Process delivers a single record.
func (p *AuditProcessor) Process(ctx context.Context, rec *models.PredictionRecord) error {
	if rec == nil {
		return fmt.Errorf("record is nil")
	}

	start := time.Now()
	var err error

	switch p.backend {
	case BackendKafka, BackendRedis:
		if p.pub == nil {
			return fmt.Errorf("backend %s: no publisher", p.backend)
		}
		err = p.pub.Publish(ctx, rec)
	case BackendSQLite, BackendClickHouse:
		if p.store == nil {
			return fmt.Errorf("backend %s: no store", p.backend)
		}
		err = p.store.Append(ctx, rec)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("audit_process")
		return fmt.Errorf("process record: %w", err)
	}
	p.metrics.RecordLatency("audit_process", time.Since(start).Seconds())
	return nil
}

// ProcessBatch delivers recs together when the backend supports it and one
// at a time otherwise.
func (p *AuditProcessor) ProcessBatch(ctx context.Context, recs []*models.PredictionRecord) error {
	if len(recs) == 0 {
		return nil
	}

	start := time.Now()
	var err error

	switch {
	case p.backend == BackendKafka || p.backend == BackendRedis:
		if bp, ok := p.pub.(batchPublisher); ok {
			err = bp.PublishBatch(ctx, recs)
			break
		}
		err = p.each(ctx, recs)
	case p.backend == BackendClickHouse:
		if bs, ok := p.store.(batchStore); ok {
			err = bs.AppendBatch(ctx, recs)
			break
		}
		err = p.each(ctx, recs)
	default:
		err = p.each(ctx, recs)
	}

	if err != nil {
		p.metrics.RecordError("audit_process_batch")
		return fmt.Errorf("process batch: %w", err)
	}
	p.metrics.RecordLatency("audit_process_batch", time.Since(start).Seconds())
	return nil
}

func (p *AuditProcessor) each(ctx context.Context, recs []*models.PredictionRecord) error {
	for _, r := range recs {
		if err := p.Process(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

var _ mid.BatchProc = (*AuditProcessor)(nil)
