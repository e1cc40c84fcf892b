package middleware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"MandiCast/internal/domain/models"
	domrepo "MandiCast/internal/domain/repository"
	applogger "MandiCast/pkg/logger"
)

// Proc is the downstream the pipeline hands records to.
type Proc interface {
	Process(ctx context.Context, rec *models.PredictionRecord) error
}

// BatchProc is a Proc that can also deliver several records in one call.
// Stop uses it to flush whatever is still buffered.
type BatchProc interface {
	Proc
	ProcessBatch(ctx context.Context, recs []*models.PredictionRecord) error
}

type envelope struct {
	rec      *models.PredictionRecord
	attempts int
}

// AuditPipeline decouples serving a forecast from recording it. Emit never
// blocks; a background worker delivers records to Proc, backing off and
// requeueing on failure and dropping once the buffer is full or attempts run
// out.
type AuditPipeline struct {
	proc        Proc
	metrics     domrepo.Metrics
	log         *applogger.Logger
	bufSize     int
	maxAttempts int
	backoffMin  time.Duration
	backoffMax  time.Duration

	bufCh   chan envelope
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopped bool
}

type PipelineOption func(*AuditPipeline)

// WithBufferSize sets how many records may wait for delivery.
func WithBufferSize(n int) PipelineOption {
	return func(p *AuditPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithMaxAttempts sets delivery attempts per record before it is dropped.
func WithMaxAttempts(n int) PipelineOption {
	return func(p *AuditPipeline) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithBackoff sets the retry backoff range.
func WithBackoff(min, max time.Duration) PipelineOption {
	return func(p *AuditPipeline) {
		if min > 0 {
			p.backoffMin = min
		}
		if max >= p.backoffMin {
			p.backoffMax = max
		}
	}
}

// NewAuditPipeline creates a pipeline over proc. metrics and logger may be nil.
func NewAuditPipeline(proc Proc, metrics domrepo.Metrics, l *applogger.Logger, opts ...PipelineOption) *AuditPipeline {
	p := &AuditPipeline{
		proc:        proc,
		metrics:     metrics,
		log:         l,
		bufSize:     1024,
		maxAttempts: 5,
		backoffMin:  50 * time.Millisecond,
		backoffMax:  2 * time.Second,
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan envelope, p.bufSize)
	return p
}

// Emit queues rec for delivery. Invalid records and records arriving while
// the buffer is full are dropped and counted.
func (p *AuditPipeline) Emit(rec *models.PredictionRecord) {
	if err := validateRecord(rec); err != nil {
		p.recordError("audit_invalid")
		if p.log != nil {
			p.log.Warn("audit record rejected", applogger.Error(err))
		}
		return
	}
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped {
		p.recordError("audit_after_stop")
		return
	}
	select {
	case p.bufCh <- envelope{rec: rec}:
	default:
		p.recordError("audit_buffer_full")
	}
}

// Pending returns the number of records waiting for delivery.
func (p *AuditPipeline) Pending() int {
	return len(p.bufCh)
}

// Start launches the delivery worker.
func (p *AuditPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	p.wg.Add(1)
	go p.run(ctx)
}

func (p *AuditPipeline) run(ctx context.Context) {
	defer p.wg.Done()
	backoff := p.backoffMin
	for {
		// a closed stopCh wins over buffered work; Stop flushes the rest
		select {
		case <-p.stopCh:
			return
		default:
		}
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case env := <-p.bufCh:
			if p.deliver(ctx, &env) {
				backoff = p.backoffMin
				continue
			}
			select {
			case <-time.After(backoff):
			case <-p.stopCh:
				p.requeue(env)
				return
			case <-ctx.Done():
				return
			}
			backoff = min(backoff*2, p.backoffMax)
			p.requeue(env)
		}
	}
}

// deliver reports whether the record left the pipeline, delivered or dropped.
func (p *AuditPipeline) deliver(ctx context.Context, env *envelope) bool {
	start := time.Now()
	env.attempts++
	err := p.proc.Process(ctx, env.rec)
	if err == nil {
		if p.metrics != nil {
			p.metrics.RecordLatency("audit_deliver", time.Since(start).Seconds())
		}
		return true
	}
	p.recordError("audit_deliver")
	if env.attempts >= p.maxAttempts {
		p.recordError("audit_dropped")
		if p.log != nil {
			p.log.Error("audit record dropped",
				applogger.String("market", env.rec.Market),
				applogger.String("crop", env.rec.Crop),
				applogger.Int("attempts", env.attempts),
				applogger.Error(err),
			)
		}
		return true
	}
	return false
}

func (p *AuditPipeline) requeue(env envelope) {
	select {
	case p.bufCh <- env:
	default:
		p.recordError("audit_buffer_full")
	}
}

// Stop stops the worker and flushes every record still buffered. A BatchProc
// receives them in one ProcessBatch call; other procs get one Process call
// per record until ctx expires.
func (p *AuditPipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.stopped = true
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()

	var recs []*models.PredictionRecord
	for len(p.bufCh) > 0 {
		env := <-p.bufCh
		recs = append(recs, env.rec)
	}
	if len(recs) == 0 {
		return nil
	}

	if bp, ok := p.proc.(BatchProc); ok {
		if err := bp.ProcessBatch(ctx, recs); err != nil {
			for range recs {
				p.recordError("audit_dropped")
			}
			return fmt.Errorf("audit pipeline: flush %d records: %w", len(recs), err)
		}
		return nil
	}

	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("audit pipeline: %d records not flushed: %w", len(recs)-i, err)
		}
		if err := p.proc.Process(ctx, rec); err != nil {
			p.recordError("audit_dropped")
		}
	}
	return nil
}

func (p *AuditPipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}

func validateRecord(rec *models.PredictionRecord) error {
	if rec == nil {
		return fmt.Errorf("record nil")
	}
	if rec.Market == "" || rec.Crop == "" {
		return fmt.Errorf("market and crop are required")
	}
	for _, v := range []float64{rec.CurrentPrice, rec.Price30, rec.Price60, rec.Price90} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("price %v out of range", v)
		}
	}
	return nil
}

var _ domrepo.AuditSink = (*AuditPipeline)(nil)
