package proxy

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for forwarding.
type Metrics struct {
	forwardTotal    *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	backendDuration prometheus.Histogram
	requestBytes    prometheus.Histogram
}

// NewMetrics creates forwarding metrics registered with registerer.
// A nil registerer leaves them unregistered.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		forwardTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "proxy",
				Name:      "forward_total",
				Help:      "Total number of forwarded requests by status returned to the client",
			},
			[]string{"status"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "proxy",
				Name:      "errors_total",
				Help:      "Total number of forwarding errors",
			},
			[]string{"error_type"},
		),
		backendDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "gateway",
				Subsystem: "proxy",
				Name:      "backend_duration_seconds",
				Help:      "Duration of backend round trips including response body",
				Buckets: []float64{
					.001, .005, .01, .025,
					.05, .1, .25, .5,
					1, 2.5, 5, 10, 30,
				},
			},
		),
		requestBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "gateway",
				Subsystem: "proxy",
				Name:      "request_body_bytes",
				Help:      "Size of buffered request bodies",
				Buckets:   prometheus.ExponentialBuckets(64, 8, 8),
			},
		),
	}
}

// Init pre-populates the error_type label values.
func (m *Metrics) Init() {
	for k := KindBodyReadError; k <= KindInternalError; k++ {
		m.errorsTotal.WithLabelValues(k.String())
	}
}

func (m *Metrics) recordSuccess(status int, duration time.Duration) {
	m.forwardTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	m.backendDuration.Observe(duration.Seconds())
}

func (m *Metrics) recordError(kind Kind, duration time.Duration) {
	m.forwardTotal.WithLabelValues(strconv.Itoa(kind.StatusCode())).Inc()
	m.errorsTotal.WithLabelValues(kind.String()).Inc()
	if kind != KindBodyReadError {
		m.backendDuration.Observe(duration.Seconds())
	}
}

func (m *Metrics) recordBodySize(n int) {
	m.requestBytes.Observe(float64(n))
}
