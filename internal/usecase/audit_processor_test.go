package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"MandiCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPublisher struct {
	mu      sync.Mutex
	recs    []*models.PredictionRecord
	batches int
	err     error
}

func (p *memPublisher) Publish(_ context.Context, rec *models.PredictionRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.recs = append(p.recs, rec)
	return nil
}

func (p *memPublisher) PublishBatch(_ context.Context, recs []*models.PredictionRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches++
	p.recs = append(p.recs, recs...)
	return nil
}

func (p *memPublisher) Close() error { return nil }

type memStore struct {
	mu   sync.Mutex
	recs []*models.PredictionRecord
	err  error
}

func (s *memStore) Init(context.Context) error { return nil }

func (s *memStore) Append(_ context.Context, rec *models.PredictionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.recs = append(s.recs, rec)
	return nil
}

func (s *memStore) Latest(_ context.Context, market, crop string) (*models.PredictionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.recs) - 1; i >= 0; i-- {
		if s.recs[i].Market == market && s.recs[i].Crop == crop {
			return s.recs[i], nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *memStore) Health(context.Context) error { return s.err }
func (s *memStore) Close() error                 { return nil }

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

func sampleRecord(market, crop string) *models.PredictionRecord {
	now := time.Now().UTC()
	return &models.PredictionRecord{
		ID:           "id-" + market + "-" + crop,
		Market:       market,
		Crop:         crop,
		Date:         now.Truncate(24 * time.Hour),
		CurrentPrice: 2000,
		Price30:      2080,
		Price60:      2160,
		Price90:      2240,
		CreatedAt:    now,
	}
}

func TestAuditProcessor_Routes(t *testing.T) {
	tests := []struct {
		backend  string
		wantPub  int
		wantRows int
	}{
		{BackendKafka, 1, 0},
		{BackendRedis, 1, 0},
		{BackendSQLite, 0, 1},
		{BackendClickHouse, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			pub, store := &memPublisher{}, &memStore{}
			p := NewAuditProcessor(pub, store, nil, tt.backend)

			require.NoError(t, p.Process(context.Background(), sampleRecord("Kolar Mandi", "Ragi")))
			assert.Len(t, pub.recs, tt.wantPub)
			assert.Equal(t, tt.wantRows, store.len())
		})
	}
}

func TestAuditProcessor_Errors(t *testing.T) {
	p := NewAuditProcessor(nil, nil, nil, "carrier-pigeon")
	assert.Error(t, p.Process(context.Background(), sampleRecord("a", "b")))
	assert.Error(t, p.Process(context.Background(), nil))

	p = NewAuditProcessor(nil, nil, nil, BackendSQLite)
	assert.Error(t, p.Process(context.Background(), sampleRecord("a", "b")))

	boom := errors.New("disk full")
	p = NewAuditProcessor(nil, &memStore{err: boom}, nil, BackendSQLite)
	assert.ErrorIs(t, p.Process(context.Background(), sampleRecord("a", "b")), boom)
}

func TestAuditProcessor_ProcessBatch(t *testing.T) {
	recs := []*models.PredictionRecord{sampleRecord("a", "x"), sampleRecord("b", "y")}

	pub := &memPublisher{}
	require.NoError(t, NewAuditProcessor(pub, nil, nil, BackendKafka).ProcessBatch(context.Background(), recs))
	assert.Equal(t, 1, pub.batches)
	assert.Len(t, pub.recs, 2)

	store := &memStore{}
	require.NoError(t, NewAuditProcessor(nil, store, nil, BackendSQLite).ProcessBatch(context.Background(), recs))
	assert.Equal(t, 2, store.len())

	require.NoError(t, NewAuditProcessor(nil, nil, nil, BackendSQLite).ProcessBatch(context.Background(), nil))
}

func TestAuditCollector_DeliversToStore(t *testing.T) {
	store := &memStore{}
	c := NewAuditCollector(NewAuditProcessor(nil, store, nil, BackendSQLite), nil, nil)
	require.True(t, c.Enabled())

	c.Emit(sampleRecord("Kunigal", "Groundnut"))
	assert.Equal(t, 1, c.Pending())
	require.NoError(t, c.Start(context.Background()))

	require.Eventually(t, func() bool { return store.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, c.Pending())
	require.NoError(t, c.Shutdown(context.Background()))
}

func TestAuditCollector_Disabled(t *testing.T) {
	c := NewAuditCollector(nil, nil, nil)
	assert.False(t, c.Enabled())
	c.Emit(sampleRecord("a", "b"))
	assert.Zero(t, c.Pending())
	assert.NoError(t, c.Start(context.Background()))
	assert.NoError(t, c.Shutdown(context.Background()))
}

func TestKafkaAuditHandler_Handle(t *testing.T) {
	store := &memStore{}
	h := NewKafkaAuditHandler("mandicast.audit", store, nil)
	assert.Equal(t, "mandicast.audit", h.Topic())

	payload := []byte(`{"id":"r1","market":"Tumkur Mandi","crop":"Sunflower","date":"2024-05-01T00:00:00Z",` +
		`"current_price":5000,"price_30":5200,"price_60":5400,"price_90":5600,"created_at":"2024-05-01T10:00:00Z"}`)
	require.NoError(t, h.Handle(context.Background(), payload))

	got, err := store.Latest(context.Background(), "Tumkur Mandi", "Sunflower")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, 5200.0, got.Price30)

	assert.Error(t, h.Handle(context.Background(), []byte("{")))
	assert.Error(t, h.Handle(context.Background(), []byte(`{"id":"r2"}`)))
}

func TestHistoryUseCase(t *testing.T) {
	f := newFixture(t)
	f.series.data["Kolar Mandi|Rice"] = ascending("Kolar Mandi", "Rice", 120, 3000)
	cat := f.service(t).Catalog()
	uc := NewHistoryUseCase(cat, f.series)

	res, err := uc.GetHistory(context.Background(), GetHistoryParams{Market: "Kolar Mandi", Crop: "Rice"})
	require.NoError(t, err)
	assert.Equal(t, DefaultHistoryLimit, res.Count)
	assert.Equal(t, 3000.0, res.Points[res.Count-1].Price)

	res, err = uc.GetHistory(context.Background(), GetHistoryParams{Market: "Mulbagal", Crop: "Rice", Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, res.Count)
	assert.NotNil(t, res.Points)

	_, err = uc.GetHistory(context.Background(), GetHistoryParams{Market: "Kolar Mandi", Crop: "Cotton"})
	assert.ErrorIs(t, err, models.ErrCropNotServed)
}

func TestPredictionsUseCase(t *testing.T) {
	store := &memStore{}
	uc := NewPredictionsUseCase(store)
	_, err := uc.Latest(context.Background(), "a", "b")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, "connected", uc.Health(context.Background()))

	require.NoError(t, store.Append(context.Background(), sampleRecord("a", "b")))
	got, err := uc.Latest(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Market)

	assert.Equal(t, "disabled", NewPredictionsUseCase(nil).Health(context.Background()))
	assert.Equal(t, "unavailable", NewPredictionsUseCase(&memStore{err: errors.New("x")}).Health(context.Background()))
}

func TestAuditRecordJob(t *testing.T) {
	store := &memStore{}
	j := NewAuditRecordJob(store, nil)
	assert.Equal(t, models.AuditMessageType, j.Type())

	require.NoError(t, j.Handle(context.Background(), []byte(`{"id":"q1","market":"Kunigal","crop":"Chikpea","price_30":10}`)))
	assert.Equal(t, 1, store.len())

	assert.Error(t, j.Handle(context.Background(), []byte(`{"id":"q2"}`)))
	assert.Error(t, j.Handle(context.Background(), []byte(`nope`)))
}
