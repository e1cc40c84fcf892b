package usecase

import (
	"context"

	"MandiCast/internal/domain/models"
	drepo "MandiCast/internal/domain/repository"
	mid "MandiCast/internal/middleware"
	applogger "MandiCast/pkg/logger"
)

// AuditCollector owns the audit path: it accepts served forecasts and feeds
// them through the background pipeline into the processor.
type AuditCollector struct {
	proc   *AuditProcessor
	pipe   *mid.AuditPipeline
	logger *applogger.Logger
}

// NewAuditCollector creates a collector. A nil proc disables auditing.
func NewAuditCollector(proc *AuditProcessor, metrics drepo.Metrics, l *applogger.Logger, opts ...mid.PipelineOption) *AuditCollector {
	if l == nil {
		l = applogger.NewNop()
	}
	c := &AuditCollector{proc: proc, logger: l}
	if proc != nil {
		c.pipe = mid.NewAuditPipeline(proc, metrics, l, opts...)
	}
	return c
}

// Enabled reports whether records go anywhere.
func (c *AuditCollector) Enabled() bool { return c.pipe != nil }

// Emit hands rec to the pipeline without blocking.
func (c *AuditCollector) Emit(rec *models.PredictionRecord) {
	if c.pipe == nil {
		return
	}
	c.pipe.Emit(rec)
}

// Pending returns how many records wait for delivery.
func (c *AuditCollector) Pending() int {
	if c.pipe == nil {
		return 0
	}
	return c.pipe.Pending()
}

// Start launches background delivery.
func (c *AuditCollector) Start(ctx context.Context) error {
	if c.pipe == nil {
		c.logger.Info("audit disabled")
		return nil
	}
	c.pipe.Start(ctx)
	c.logger.Info("audit collector started", applogger.String("backend", c.proc.Backend()))
	return nil
}

// Shutdown flushes what is buffered.
func (c *AuditCollector) Shutdown(ctx context.Context) error {
	if c.pipe == nil {
		return nil
	}
	return c.pipe.Stop(ctx)
}

var _ drepo.AuditSink = (*AuditCollector)(nil)
