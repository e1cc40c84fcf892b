package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_BaseURLHeadersAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/commodities", r.URL.Path)
		assert.Equal(t, "Rice", r.URL.Query().Get("commodity"))
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"price": 2100.5}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL+"/v1/"), WithHeader("X-API-Key", "secret"), WithHeader("X-Empty", ""))
	var out struct {
		Price float64 `json:"price"`
	}
	err := c.SendAndParse(context.Background(), &RequestOptions{
		URL:         "/commodities",
		QueryParams: map[string][]string{"commodity": {"Rice"}},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, 2100.5, out.Price)
}

func TestClient_RetriesTemporaryStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(2, time.Millisecond))
	var body []byte
	require.NoError(t, c.SendAndParse(context.Background(), &RequestOptions{URL: "/"}, &body))
	assert.Equal(t, "ok", string(body))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(3, time.Millisecond))
	err := c.SendAndParse(context.Background(), &RequestOptions{URL: "/"}, nil)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.False(t, se.Temporary())
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestClient_DecodeErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(3, time.Millisecond))
	var out map[string]any
	err := c.SendAndParse(context.Background(), &RequestOptions{URL: "/"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode json")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestAppErrorResponse(t *testing.T) {
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	appErr := NotFoundError("market Nowhere not found").WithError(errors.New("lookup"))
	require.NoError(t, AppErrorResponse(c, appErr))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var env struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, http.StatusNotFound, env.Status)
	require.Len(t, env.Data, 1)
	assert.Equal(t, "ERR_NOT_FOUND", env.Data[0].Code)
	assert.Equal(t, "market Nowhere not found: lookup", appErr.Error())

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, AppErrorResponse(c, errors.New("plain")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
