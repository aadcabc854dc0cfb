package main

import (
	"net/http"

	"github.com/vyrodovalexey/authgw/internal/middleware"
	"github.com/vyrodovalexey/authgw/internal/observability"
)

// buildMiddlewareChain wraps the gateway handler, outermost first:
// recovery, request id, tracing, access log, HTTP metrics.
func buildMiddlewareChain(
	handler http.Handler,
	logger observability.Logger,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	middlewareMetrics *middleware.Metrics,
) http.Handler {
	return middleware.Chain(handler,
		middleware.Recovery(logger, middlewareMetrics),
		middleware.RequestID(),
		observability.TracingMiddleware(tracer),
		middleware.Logging(logger),
		observability.MetricsMiddleware(metrics),
	)
}
