package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vyrodovalexey/authgw/internal/auth/jwt"
	"github.com/vyrodovalexey/authgw/internal/config"
	"github.com/vyrodovalexey/authgw/internal/gateway"
	"github.com/vyrodovalexey/authgw/internal/health"
	"github.com/vyrodovalexey/authgw/internal/middleware"
	"github.com/vyrodovalexey/authgw/internal/observability"
	"github.com/vyrodovalexey/authgw/internal/proxy"
)

// readinessFetchTimeout bounds the key set fetch a readiness probe may trigger.
const readinessFetchTimeout = 5 * time.Second

// application holds all application components.
type application struct {
	config        *config.GatewayConfig
	logger        observability.Logger
	gateway       *gateway.Gateway
	healthChecker *health.Checker
	metrics       *observability.Metrics
	tracer        *observability.Tracer
	keyCache      *jwt.KeySetCache
	fetcher       jwt.Fetcher
	metricsServer *http.Server
}

// newApplication wires the gateway from configuration.
func newApplication(
	ctx context.Context,
	cfg *config.GatewayConfig,
	logger observability.Logger,
) (*application, error) {
	tracer, err := initTracer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	metrics := observability.NewMetrics(observability.DefaultNamespace)
	metrics.SetBuildInfo(version, gitCommit, buildTime)

	jwtMetrics := jwt.NewMetrics(observability.DefaultNamespace)
	jwtMetrics.MustRegister(metrics.Registry())
	jwtMetrics.Init()

	proxyMetrics := proxy.NewMetrics(metrics.Registry())
	proxyMetrics.Init()

	middlewareMetrics := middleware.NewMetrics(metrics.Registry())

	keyCache := jwt.NewKeySetCache(cfg.JWKS.CacheTTL.Duration(),
		jwt.WithCacheLogger(logger),
		jwt.WithCacheMetrics(jwtMetrics),
	)
	fetcher := newFetcher(cfg.JWKS, logger)
	verifier := jwt.NewVerifier(keyCache, fetcher,
		jwt.WithVerifierLogger(logger),
		jwt.WithVerifierMetrics(jwtMetrics),
	)

	forwarder, err := proxy.NewForwarder(cfg.Backend.URL,
		proxy.WithForwarderLogger(logger),
		proxy.WithForwarderMetrics(proxyMetrics),
		proxy.WithTimeout(cfg.Backend.Timeout.Duration()),
		proxy.WithMaxBodySize(cfg.Backend.MaxBodySize),
		proxy.WithPreservePath(cfg.Backend.PreservePath),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create forwarder: %w", err)
	}

	handler := gateway.NewHandler(verifier, forwarder, gateway.WithHandlerLogger(logger))
	chain := buildMiddlewareChain(handler, logger, metrics, tracer, middlewareMetrics)

	checker := health.NewChecker(version)
	checker.RegisterCheck("jwks", health.KeySetCheck(keySetSource(keyCache, fetcher)))

	gw, err := gateway.New(cfg,
		gateway.WithLogger(logger),
		gateway.WithRouteHandler(chain),
		gateway.WithHealthChecker(checker),
		gateway.WithShutdownTimeout(cfg.Listener.ShutdownTimeout.Duration()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	logger.Info("gateway configured",
		observability.String("version", version),
		observability.String("jwks_url", cfg.JWKS.URL),
		observability.String("backend_url", forwarder.Target()),
		observability.Duration("jwks_cache_ttl", keyCache.TTL()),
		observability.Bool("tracing", tracer.Enabled()),
	)

	return &application{
		config:        cfg,
		logger:        logger,
		gateway:       gw,
		healthChecker: checker,
		metrics:       metrics,
		tracer:        tracer,
		keyCache:      keyCache,
		fetcher:       fetcher,
	}, nil
}

// newFetcher builds the key set fetcher, behind a circuit breaker when enabled.
func newFetcher(cfg config.JWKSConfig, logger observability.Logger) *jwt.HTTPFetcher {
	opts := []jwt.FetcherOption{
		jwt.WithFetchTimeout(cfg.FetchTimeout.Duration()),
		jwt.WithFetcherLogger(logger),
	}
	if cb := cfg.CircuitBreaker; cb != nil && cb.Enabled {
		opts = append(opts, jwt.WithCircuitBreaker(cb.MaxFailures, cb.Timeout.Duration()))
	}
	return jwt.NewHTTPFetcher(cfg.URL, opts...)
}

// keySetSource reports the cached key set, refreshing it through fetcher
// when it is missing or stale.
func keySetSource(cache *jwt.KeySetCache, fetcher jwt.Fetcher) health.KeySetSource {
	return health.KeySetSourceFunc(func() (time.Time, int, bool) {
		ctx, cancel := context.WithTimeout(context.Background(), readinessFetchTimeout)
		defer cancel()

		keys, err := cache.Get(ctx, fetcher)
		if err != nil {
			return time.Time{}, 0, false
		}
		_, fetchedAt, ok := cache.Snapshot()
		return fetchedAt, keys.Len(), ok
	})
}

// initTracer initializes the tracer.
func initTracer(ctx context.Context, cfg *config.GatewayConfig) (*observability.Tracer, error) {
	tracing := cfg.Observability.Tracing
	return observability.NewTracer(ctx, observability.TracerConfig{
		ServiceName:    tracing.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   tracing.OTLPEndpoint,
		SamplingRate:   tracing.SamplingRate,
		Enabled:        tracing.Enabled,
	})
}

// warmKeyCache fetches the key set once so the first request does not pay
// for it. Failure is not fatal; the next request retries.
func (a *application) warmKeyCache(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, a.config.JWKS.FetchTimeout.Duration())
	defer cancel()

	keys, err := a.keyCache.Get(ctx, a.fetcher)
	if err != nil {
		a.logger.Warn("initial key set fetch failed", observability.Error(err))
		return
	}
	a.logger.Info("key set loaded", observability.Strings("kids", keys.KeyIDs()))
}
