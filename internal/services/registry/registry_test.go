package registry

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"MandiCast/internal/domain/models"
	domsvc "MandiCast/internal/domain/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constModel float64

func (c constModel) Predict([]float64) (float64, error) { return float64(c), nil }

type fakeStore struct {
	mu     sync.Mutex
	models map[string]domsvc.PriceModel
	fail   map[string]error
	calls  map[string]*int32
	delay  time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		models: map[string]domsvc.PriceModel{},
		fail:   map[string]error{},
		calls:  map[string]*int32{},
	}
}

func (s *fakeStore) counter(key string) *int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[key]
	if !ok {
		c = new(int32)
		s.calls[key] = c
	}
	return c
}

func (s *fakeStore) Load(key string) (domsvc.PriceModel, error) {
	atomic.AddInt32(s.counter(key), 1)
	time.Sleep(s.delay)
	if err, ok := s.fail[key]; ok {
		return nil, err
	}
	if m, ok := s.models[key]; ok {
		return m, nil
	}
	return nil, models.ErrModelAbsent
}

func (s *fakeStore) Save(string, domsvc.PersistentModel) error { return nil }
func (s *fakeStore) Path(key string) string                    { return "mem://" + key }

func TestKey(t *testing.T) {
	assert.Equal(t, "Bangalore_Bangalore_Central_Rice", Key("Bangalore", "Bangalore Central", "Rice"))
	assert.Equal(t, "Bangalore_K.R._Puram_Onion", Key("Bangalore", "K.R. Puram", "Onion"))
}

func TestGetCachesLoadedModel(t *testing.T) {
	store := newFakeStore()
	store.models["Kolar_Kolar_Mandi_Ragi"] = constModel(0.5)
	r := New(store, nil, nil)

	for i := 0; i < 3; i++ {
		m, err := r.Get("Kolar", "Kolar Mandi", "Ragi")
		require.NoError(t, err)
		v, _ := m.Predict(nil)
		assert.Equal(t, 0.5, v)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(store.counter("Kolar_Kolar_Mandi_Ragi")))
	assert.Equal(t, 1, r.Loaded())
}

func TestGetAbsentIsNotRetried(t *testing.T) {
	store := newFakeStore()
	store.fail["Kolar_Mulbagal_Rice"] = errors.New("unexpected EOF")
	r := New(store, nil, nil)

	for i := 0; i < 3; i++ {
		_, err := r.Get("Kolar", "Mulbagal", "Rice")
		assert.ErrorIs(t, err, models.ErrModelAbsent)
		_, err = r.Get("Tumkur", "Kunigal", "Sugarcane")
		assert.ErrorIs(t, err, models.ErrModelAbsent)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(store.counter("Kolar_Mulbagal_Rice")))
	assert.EqualValues(t, 1, atomic.LoadInt32(store.counter("Tumkur_Kunigal_Sugarcane")))
	assert.Equal(t, 0, r.Loaded())
}

func TestGetConcurrentColdLoadOnce(t *testing.T) {
	store := newFakeStore()
	store.delay = 20 * time.Millisecond
	store.models["Tumkur_Tumkur_Mandi_Groundnut"] = constModel(1)
	r := New(store, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Get("Tumkur", "Tumkur Mandi", "Groundnut")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, atomic.LoadInt32(store.counter("Tumkur_Tumkur_Mandi_Groundnut")))
}
