package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mandicast",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of market endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mandicast",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by market endpoint",
		},
		[]string{"endpoint", "code"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors)
	})
}

// Observe records the latency of one endpoint call started at start.
func Observe(endpoint string, start time.Time) {
	APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// Fail counts an endpoint error by its application code.
func Fail(endpoint, code string) {
	APIErrors.WithLabelValues(endpoint, code).Inc()
}

// WatchQueue exports the depth of an in-process queue as
// mandicast_queue_depth{queue=name}. Registering the same name twice is a no-op.
func WatchQueue(reg prometheus.Registerer, name string, depth func() int) error {
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   "mandicast",
		Subsystem:   "queue",
		Name:        "depth",
		Help:        "Items waiting in an in-process queue",
		ConstLabels: prometheus.Labels{"queue": name},
	}, func() float64 { return float64(depth()) })

	if err := reg.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return nil
		}
		return err
	}
	return nil
}
