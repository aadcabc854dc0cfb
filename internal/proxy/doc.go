// Package proxy relays authenticated requests to the single configured
// backend and maps transport failures to HTTP status codes.
//
// The Forwarder buffers the inbound body (bounded by a maximum size),
// drops the content-length, transfer-encoding and host headers, sends the
// request with a fixed timeout and buffers the backend response. Failures
// are reported as *ForwardError values whose Kind determines the status
// returned to the client:
//
//	BodyReadError      400
//	InternalError      500
//	BadGateway         502
//	ServiceUnavailable 503
//	GatewayTimeout     504
//
// Forwarding is never retried.
package proxy
