package jwt

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for token verification and the key cache.
type Metrics struct {
	verificationTotal    *prometheus.CounterVec
	verificationDuration *prometheus.HistogramVec
	jwksFetchTotal       *prometheus.CounterVec
	jwksFetchDuration    prometheus.Histogram
	cacheLookups         *prometheus.CounterVec
	cachedKeys           prometheus.Gauge
}

// NewMetrics creates a new Metrics instance. Collectors are not registered
// until MustRegister is called.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}

	m := &Metrics{}

	m.verificationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jwt",
			Name:      "verifications_total",
			Help:      "Total number of token verification attempts",
		},
		[]string{"result", "reason"},
	)

	m.verificationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jwt",
			Name:      "verification_duration_seconds",
			Help:      "Token verification duration in seconds, including key set fetches",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		},
		[]string{"result"},
	)

	m.jwksFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jwt",
			Name:      "jwks_fetches_total",
			Help:      "Total number of key set fetch attempts",
		},
		[]string{"result"},
	)

	m.jwksFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jwt",
			Name:      "jwks_fetch_duration_seconds",
			Help:      "Key set fetch duration in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	m.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jwt",
			Name:      "jwks_cache_lookups_total",
			Help:      "Total number of key set cache lookups by result",
		},
		[]string{"result"},
	)

	m.cachedKeys = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jwt",
			Name:      "jwks_keys",
			Help:      "Number of keys in the cached key set",
		},
	)

	return m
}

// Init pre-initializes label combinations so the series show up at startup.
func (m *Metrics) Init() {
	for _, result := range []string{"success", "error"} {
		m.verificationDuration.WithLabelValues(result)
		m.jwksFetchTotal.WithLabelValues(result)
	}
	m.verificationTotal.WithLabelValues("success", "")
	for k := KindMalformedToken; k <= KindKeySetUnavailable; k++ {
		m.verificationTotal.WithLabelValues("error", k.String())
	}
	m.cacheLookups.WithLabelValues("hit")
	m.cacheLookups.WithLabelValues("miss")
}

// RecordVerification records a verification attempt. A nil err is a success.
func (m *Metrics) RecordVerification(err error, duration time.Duration) {
	if err == nil {
		m.verificationTotal.WithLabelValues("success", "").Inc()
		m.verificationDuration.WithLabelValues("success").Observe(duration.Seconds())
		return
	}
	m.verificationTotal.WithLabelValues("error", KindOf(err).String()).Inc()
	m.verificationDuration.WithLabelValues("error").Observe(duration.Seconds())
}

// RecordFetch records a key set fetch attempt.
func (m *Metrics) RecordFetch(success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "error"
	}
	m.jwksFetchTotal.WithLabelValues(result).Inc()
	m.jwksFetchDuration.Observe(duration.Seconds())
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit() {
	m.cacheLookups.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records a cache miss or expiry.
func (m *Metrics) RecordCacheMiss() {
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// SetCachedKeys records the size of the current key set.
func (m *Metrics) SetCachedKeys(n int) {
	m.cachedKeys.Set(float64(n))
}

// MustRegister registers the metrics with registerer. Duplicate registration
// is tolerated; any other error panics.
func (m *Metrics) MustRegister(registerer prometheus.Registerer) {
	for _, c := range m.collectors() {
		if err := registerer.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
		}
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.verificationTotal,
		m.verificationDuration,
		m.jwksFetchTotal,
		m.jwksFetchDuration,
		m.cacheLookups,
		m.cachedKeys,
	}
}
