package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	applogger "MandiCast/pkg/logger"
)

// ErrPoolStopped is returned by Run once the pool has been stopped.
var ErrPoolStopped = errors.New("inference pool stopped")

type inferenceJob struct {
	ctx  context.Context
	fn   func() (float64, error)
	done chan inferenceResult
}

type inferenceResult struct {
	val float64
	err error
}

// InferencePool runs model predictions on a fixed set of workers fed by a
// bounded job channel.
type InferencePool struct {
	logger  *applogger.Logger
	workers int
	jobs    chan inferenceJob

	mu        sync.RWMutex
	isRunning bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewInferencePool creates a stopped pool. Non-positive sizes fall back to
// 4 workers and a queue of 64.
func NewInferencePool(workers, queueSize int, l *applogger.Logger) *InferencePool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &InferencePool{
		logger:  l,
		workers: workers,
		jobs:    make(chan inferenceJob, queueSize),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the workers.
func (p *InferencePool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isRunning {
		return fmt.Errorf("inference pool already running")
	}
	p.isRunning = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("inference pool started", applogger.Int("workers", p.workers), applogger.Int("queue", cap(p.jobs)))
	return nil
}

// Stop waits for in-flight predictions. Queued jobs that never started are
// answered with ErrPoolStopped.
func (p *InferencePool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	close(p.stopCh)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		p.logger.Warn("timeout waiting for inference workers", applogger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
	}

	for {
		select {
		case j := <-p.jobs:
			j.done <- inferenceResult{err: ErrPoolStopped}
		default:
			p.logger.Info("inference pool stopped")
			return nil
		}
	}
}

// Run schedules fn and waits for its result. It returns ctx.Err() if the
// context ends first, whether the job was still queued or already running.
func (p *InferencePool) Run(ctx context.Context, fn func() (float64, error)) (float64, error) {
	j := inferenceJob{ctx: ctx, fn: fn, done: make(chan inferenceResult, 1)}

	p.mu.RLock()
	if !p.isRunning {
		p.mu.RUnlock()
		return 0, ErrPoolStopped
	}
	select {
	case p.jobs <- j:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		return 0, ctx.Err()
	}

	select {
	case r := <-j.done:
		return r.val, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Pending returns the number of queued jobs.
func (p *InferencePool) Pending() int { return len(p.jobs) }

func (p *InferencePool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			p.logger.Debug("inference worker stopping", applogger.Int("worker_id", id))
			return
		case j := <-p.jobs:
			p.execute(j)
		}
	}
}

func (p *InferencePool) execute(j inferenceJob) {
	if err := j.ctx.Err(); err != nil {
		j.done <- inferenceResult{err: err}
		return
	}

	var res inferenceResult
	start := time.Now()
	func() {
		defer func() {
			if r := recover(); r != nil {
				res = inferenceResult{err: fmt.Errorf("inference panic: %v", r)}
			}
		}()
		res.val, res.err = j.fn()
	}()
	if d := time.Since(start); d > time.Second {
		p.logger.Warn("slow inference", applogger.Duration("elapsed", d))
	}
	j.done <- res
}
