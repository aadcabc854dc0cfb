// Package gateway provides the authenticating front door of the service.
//
// Handler extracts the bearer token from each request, verifies it through
// a jwt.Verifier, stamps the caller's identity onto the request as
// X-User-Sub, X-Org-Id and X-User-Roles, and relays it through a
// Forwarder. Every authentication failure is a 401; forwarding failures
// are mapped by the proxy package.
//
// Gateway owns the HTTP listener, mounts the health endpoints and serves
// Handler for every other route:
//
//	gw, err := gateway.New(cfg,
//	    gateway.WithLogger(logger),
//	    gateway.WithRouteHandler(handler),
//	    gateway.WithHealthChecker(checker),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := gw.Start(ctx); err != nil {
//	    return err
//	}
//	defer gw.Stop(ctx)
package gateway
