package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordForecast("historical fallback", "trend")
	r.RecordForecast("historical fallback", "trend")
	r.RecordError("prediction")
	r.RecordCurrentPrice("Kolar Mandi", "Ragi", 3120.5)
	r.RecordLatency("forecast", 0.02)
	r.SetModelsCached(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.forecasts.WithLabelValues("historical fallback", "trend")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("prediction")))
	assert.Equal(t, 3120.5, testutil.ToFloat64(r.currentPrice.WithLabelValues("Kolar Mandi", "Ragi")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.modelsCached))
	assert.Equal(t, 1, testutil.CollectAndCount(r.latency))
}
