package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"MandiCast/internal/domain/models"
	"MandiCast/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, retries int) *CEDAClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewCEDAClient(Config{BaseURL: srv.URL, APIKey: "k", Timeout: time.Second, Retries: retries}, nil, nil)
}

func TestCurrentPriceSendsQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/commodities", r.URL.Path)
		assert.Equal(t, "Rice", r.URL.Query().Get("commodity"))
		assert.Equal(t, "Bangalore Central", r.URL.Query().Get("market"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "k", r.Header.Get("X-API-Key"))
		_, _ = w.Write([]byte(`[{"price": 2150.5}, {"price": 1}]`))
	}, 0)

	p, err := c.CurrentPrice(context.Background(), "Rice", "Bangalore Central")
	require.NoError(t, err)
	assert.Equal(t, 2150.5, p)
}

func TestCurrentPriceAcceptsStringsAndEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [{"price": "1,980"}]}`))
	}, 0)

	p, err := c.CurrentPrice(context.Background(), "Rice", "Kolar Mandi")
	require.NoError(t, err)
	assert.Equal(t, 1980.0, p)
}

func TestCurrentPriceFailuresAreFeedUnavailable(t *testing.T) {
	bodies := map[string]string{
		"empty list": `[]`,
		"no price":   `[{"market": "x"}]`,
		"zero price": `[{"price": 0}]`,
		"garbage":    `not json`,
		"text price": `[{"price": "n/a"}]`,
		"null price": `[{"price": null}]`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}, 0)
			_, err := c.CurrentPrice(context.Background(), "Rice", "Kolar Mandi")
			assert.ErrorIs(t, err, models.ErrFeedUnavailable)
		})
	}
}

func TestCurrentPriceRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"price": 2000}]`))
	}, 1)

	p, err := c.CurrentPrice(context.Background(), "Rice", "Kolar Mandi")
	require.NoError(t, err)
	assert.Equal(t, 2000.0, p)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCurrentPriceDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}, 3)

	_, err := c.CurrentPrice(context.Background(), "Rice", "Kolar Mandi")
	assert.ErrorIs(t, err, models.ErrFeedUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.CurrentPrice(context.Background(), "Rice", "Kolar Mandi")
	assert.ErrorIs(t, err, models.ErrFeedUnavailable)
}

type countingFeed struct {
	calls atomic.Int32
	price float64
	err   error
}

func (f *countingFeed) CurrentPrice(context.Context, string, string) (float64, error) {
	f.calls.Add(1)
	return f.price, f.err
}

func TestCachedServesRepeatQuotesFromCache(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	inner := &countingFeed{price: 2100}
	c := NewCached(inner, mc, time.Minute, nil)

	for i := 0; i < 3; i++ {
		p, err := c.CurrentPrice(context.Background(), "Rice", "Kolar Mandi")
		require.NoError(t, err)
		assert.Equal(t, 2100.0, p)
	}
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedDoesNotCacheFailures(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	inner := &countingFeed{err: models.ErrFeedUnavailable}
	c := NewCached(inner, mc, time.Minute, nil)

	for i := 0; i < 2; i++ {
		_, err := c.CurrentPrice(context.Background(), "Rice", "Kolar Mandi")
		assert.ErrorIs(t, err, models.ErrFeedUnavailable)
	}
	assert.Equal(t, int32(2), inner.calls.Load())
}
