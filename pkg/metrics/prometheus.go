package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	forecasts    *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	currentPrice *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
	modelsCached prometheus.Gauge
}

// New creates a recorder registered on reg, or on the default registry when
// reg is nil.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		forecasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mandicast_forecasts_total",
				Help: "Forecasts served by current-price and prediction source",
			},
			[]string{"current_source", "prediction_source"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mandicast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		currentPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mandicast_current_price",
				Help: "Last served current price per market and crop",
			},
			[]string{"market", "crop"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mandicast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		modelsCached: f.NewGauge(prometheus.GaugeOpts{
			Name: "mandicast_models_cached",
			Help: "Forecast models held in memory",
		}),
	}
}

// RecordForecast counts a served forecast.
func (r *Recorder) RecordForecast(currentSource, predictionSource string) {
	r.forecasts.WithLabelValues(currentSource, predictionSource).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordCurrentPrice records the last current price for a pair.
func (r *Recorder) RecordCurrentPrice(market, crop string, price float64) {
	r.currentPrice.WithLabelValues(market, crop).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) SetModelsCached(n int) {
	r.modelsCached.Set(float64(n))
}
