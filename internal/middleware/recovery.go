package middleware

import (
	"io"
	"net/http"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vyrodovalexey/authgw/internal/observability"
)

// Metrics holds middleware counters.
type Metrics struct {
	panicsRecovered prometheus.Counter
}

// NewMetrics registers the middleware counters with registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	return &Metrics{
		panicsRecovered: promauto.With(registerer).NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "middleware",
			Name:      "panics_recovered_total",
			Help:      "Total number of recovered handler panics",
		}),
	}
}

// Recovery returns a middleware that recovers from panics. metrics may be nil.
func Recovery(logger observability.Logger, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity
						panic(err)
					}

					logger.WithContext(r.Context()).Error("panic recovered",
						observability.String("path", r.URL.Path),
						observability.String("method", r.Method),
						observability.Any("error", err),
						observability.String("stack", string(debug.Stack())),
					)

					if metrics != nil {
						metrics.panicsRecovered.Inc()
					}

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = io.WriteString(w, `{"error":"internal server error"}`)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
