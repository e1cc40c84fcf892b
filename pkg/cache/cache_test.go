package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quote struct {
	Price  float64 `json:"price"`
	Source string  `json:"source"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", quote{Price: 2150.5, Source: "live"}, time.Minute))

	var got quote
	require.NoError(t, mc.Get(ctx, "k", &got))
	assert.Equal(t, quote{Price: 2150.5, Source: "live"}, got)

	var s string
	require.NoError(t, mc.Set(ctx, "s", "plain", time.Minute))
	require.NoError(t, mc.Get(ctx, "s", &s))
	assert.Equal(t, "plain", s)
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Set(ctx, "k", 1.0, time.Minute))
	ok, err := mc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	var v float64
	assert.True(t, errors.Is(mc.Get(ctx, "k", &v), ErrCacheMiss))
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Set(ctx, "a", 1, 0))
	now = now.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "b", 2, 0))
	now = now.Add(time.Second)

	var v int
	require.NoError(t, mc.Get(ctx, "a", &v)) // a is now fresher than b
	now = now.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "c", 3, 0))

	assert.NoError(t, mc.Get(ctx, "a", &v))
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "c", &v))
}

// mapService is a minimal remote layer for LayeredCache tests.
type mapService struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
}

func (m *mapService) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b, err := encode(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
	return nil
}

func (m *mapService) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	b, ok := m.data[key]
	if !ok {
		return ErrCacheMiss
	}
	return decode(b, dest)
}

func (m *mapService) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *mapService) Exists(_ context.Context, keys ...string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (m *mapService) Close() error { return nil }

func TestLayeredCachePromotesRemoteHits(t *testing.T) {
	remote := &mapService{data: map[string][]byte{}}
	lc := NewLayeredCache(remote, 10, time.Minute)
	defer lc.Close()
	ctx := context.Background()

	require.NoError(t, remote.Set(ctx, "k", quote{Price: 10}, 0))

	var got quote
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, 10.0, got.Price)
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, 1, remote.gets)

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.ErrorIs(t, lc.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "feed:rice:bangalore_central", GenerateKey("feed", "Rice", "Bangalore Central"))
}
