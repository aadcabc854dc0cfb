// Package middleware provides the HTTP middleware wrapped around the
// gateway handler: panic recovery, request ids and access logging.
//
// Every middleware has the signature func(http.Handler) http.Handler and
// is composed with Chain, outermost first:
//
//	handler := middleware.Chain(route,
//	    middleware.Recovery(logger, metrics),
//	    middleware.RequestID(),
//	    middleware.Logging(logger),
//	)
package middleware
