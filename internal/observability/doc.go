// Package observability provides structured logging, Prometheus metrics
// and OpenTelemetry tracing for the gateway.
//
// The logger wraps zap behind a small interface so components can take
// a NopLogger in tests. Metrics live in a dedicated registry exposed on
// the metrics server, and per-package collectors register into it via
// RegisterCollector. Tracing is optional; when disabled the global otel
// no-op provider is used and middleware still propagates context.
package observability
