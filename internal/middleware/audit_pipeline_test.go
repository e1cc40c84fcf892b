package middleware

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"MandiCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProc struct {
	mu       sync.Mutex
	got      []*models.PredictionRecord
	failures int
	block    chan struct{}
}

func (p *recordingProc) Process(_ context.Context, rec *models.PredictionRecord) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("store down")
	}
	p.got = append(p.got, rec)
	return nil
}

func (p *recordingProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.got)
}

type errorCounter struct {
	mu   sync.Mutex
	errs map[string]int
}

func (m *errorCounter) RecordForecast(string, string)              {}
func (m *errorCounter) RecordCurrentPrice(string, string, float64) {}
func (m *errorCounter) RecordLatency(string, float64)              {}
func (m *errorCounter) SetModelsCached(int)                        {}
func (m *errorCounter) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errs == nil {
		m.errs = map[string]int{}
	}
	m.errs[kind]++
}

func (m *errorCounter) get(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errs[kind]
}

func rec(market string) *models.PredictionRecord {
	return &models.PredictionRecord{Market: market, Crop: "Rice", CurrentPrice: 2000, Price30: 2080, Price60: 2160, Price90: 2240}
}

func TestPipelineDeliversInOrder(t *testing.T) {
	proc := &recordingProc{}
	p := NewAuditPipeline(proc, nil, nil)
	p.Start(context.Background())

	for _, m := range []string{"a", "b", "c"} {
		p.Emit(rec(m))
	}
	require.Eventually(t, func() bool { return proc.count() == 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Stop(context.Background()))

	assert.Equal(t, "a", proc.got[0].Market)
	assert.Equal(t, "c", proc.got[2].Market)
}

func TestPipelineRetriesThenDelivers(t *testing.T) {
	proc := &recordingProc{failures: 2}
	m := &errorCounter{}
	p := NewAuditPipeline(proc, m, nil, WithBackoff(time.Millisecond, 2*time.Millisecond))
	p.Start(context.Background())

	p.Emit(rec("a"))
	require.Eventually(t, func() bool { return proc.count() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, 2, m.get("audit_deliver"))
	assert.Equal(t, 0, m.get("audit_dropped"))
}

func TestPipelineDropsAfterMaxAttempts(t *testing.T) {
	proc := &recordingProc{failures: 100}
	m := &errorCounter{}
	p := NewAuditPipeline(proc, m, nil, WithMaxAttempts(2), WithBackoff(time.Millisecond, time.Millisecond))
	p.Start(context.Background())

	p.Emit(rec("a"))
	require.Eventually(t, func() bool { return m.get("audit_dropped") == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, 0, proc.count())
}

func TestEmitNeverBlocks(t *testing.T) {
	proc := &recordingProc{block: make(chan struct{})}
	m := &errorCounter{}
	p := NewAuditPipeline(proc, m, nil, WithBufferSize(1))
	p.Start(context.Background())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			p.Emit(rec("a"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked")
	}
	assert.Greater(t, m.get("audit_buffer_full"), 0)

	close(proc.block)
	require.NoError(t, p.Stop(context.Background()))
}

func TestEmitRejectsInvalidRecords(t *testing.T) {
	proc := &recordingProc{}
	m := &errorCounter{}
	p := NewAuditPipeline(proc, m, nil)

	p.Emit(nil)
	p.Emit(&models.PredictionRecord{Crop: "Rice"})
	bad := rec("a")
	bad.Price30 = math.NaN()
	p.Emit(bad)

	assert.Equal(t, 3, m.get("audit_invalid"))
	assert.Equal(t, 0, p.Pending())
}

func TestStopFlushesBuffered(t *testing.T) {
	proc := &recordingProc{}
	p := NewAuditPipeline(proc, nil, nil)
	p.Start(context.Background())
	p.Emit(rec("a"))
	p.Emit(rec("b"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))
	assert.Equal(t, 2, proc.count())
}

type batchingProc struct {
	recordingProc
	batches  [][]*models.PredictionRecord
	batchErr error
}

func (p *batchingProc) ProcessBatch(_ context.Context, recs []*models.PredictionRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.batchErr != nil {
		return p.batchErr
	}
	p.batches = append(p.batches, recs)
	return nil
}

// holdWorker parks the delivery worker inside Process on the first record,
// buffers the rest behind it, and returns once Stop has begun.
func holdWorker(t *testing.T, p *AuditPipeline, proc *batchingProc, markets ...string) <-chan error {
	t.Helper()
	proc.block = make(chan struct{})
	p.Start(context.Background())

	p.Emit(rec(markets[0]))
	require.Eventually(t, func() bool { return p.Pending() == 0 }, time.Second, time.Millisecond)
	for _, m := range markets[1:] {
		p.Emit(rec(m))
	}

	stopped := make(chan error, 1)
	go func() { stopped <- p.Stop(context.Background()) }()
	require.Eventually(t, func() bool {
		select {
		case <-p.stopCh:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
	close(proc.block)
	return stopped
}

func TestStopFlushesBufferedAsOneBatch(t *testing.T) {
	proc := &batchingProc{}
	p := NewAuditPipeline(proc, nil, nil)

	require.NoError(t, <-holdWorker(t, p, proc, "a", "b", "c"))

	require.Len(t, proc.got, 1)
	assert.Equal(t, "a", proc.got[0].Market)
	require.Len(t, proc.batches, 1)
	require.Len(t, proc.batches[0], 2)
	assert.Equal(t, "b", proc.batches[0][0].Market)
	assert.Equal(t, "c", proc.batches[0][1].Market)
	assert.Zero(t, p.Pending())
}

func TestStopReportsFailedBatch(t *testing.T) {
	proc := &batchingProc{batchErr: errors.New("broker down")}
	m := &errorCounter{}
	p := NewAuditPipeline(proc, m, nil)

	err := <-holdWorker(t, p, proc, "a", "b", "c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush 2 records")
	assert.Equal(t, 2, m.get("audit_dropped"))
}

func TestStopWithNothingBufferedSkipsBatch(t *testing.T) {
	proc := &batchingProc{}
	p := NewAuditPipeline(proc, nil, nil)
	p.Start(context.Background())
	p.Emit(rec("a"))
	require.Eventually(t, func() bool { return proc.count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, p.Stop(context.Background()))
	assert.Empty(t, proc.batches)
}
