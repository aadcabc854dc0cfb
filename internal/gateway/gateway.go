package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/authgw/internal/config"
	"github.com/vyrodovalexey/authgw/internal/health"
	"github.com/vyrodovalexey/authgw/internal/observability"
)

// Health endpoint paths. They are served without authentication.
const (
	HealthPath    = "/health"
	ReadinessPath = "/ready"
)

// State represents the gateway state.
type State int32

const (
	// StateStopped indicates the gateway is stopped.
	StateStopped State = iota
	// StateStarting indicates the gateway is starting.
	StateStarting
	// StateRunning indicates the gateway is running.
	StateRunning
	// StateStopping indicates the gateway is stopping.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Gateway serves the authenticated route handler and the health endpoints
// on one listener.
type Gateway struct {
	config    *config.GatewayConfig
	logger    observability.Logger
	engine    *gin.Engine
	listener  *Listener
	state     atomic.Int32
	startTime time.Time
	mu        sync.RWMutex

	routeHandler http.Handler
	checker      *health.Checker

	shutdownTimeout time.Duration
}

// Option is a functional option for configuring the gateway.
type Option func(*Gateway)

// WithLogger sets the logger for the gateway.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithShutdownTimeout sets the shutdown timeout.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		g.shutdownTimeout = timeout
	}
}

// WithRouteHandler sets the handler for every non-health route.
func WithRouteHandler(handler http.Handler) Option {
	return func(g *Gateway) {
		g.routeHandler = handler
	}
}

// WithHealthChecker sets the checker backing /health and /ready.
func WithHealthChecker(checker *health.Checker) Option {
	return func(g *Gateway) {
		g.checker = checker
	}
}

// New creates a new Gateway instance.
func New(cfg *config.GatewayConfig, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	g := &Gateway{
		config:          cfg,
		logger:          observability.NopLogger(),
		shutdownTimeout: cfg.Listener.ShutdownTimeout.Duration(),
	}
	if g.shutdownTimeout <= 0 {
		g.shutdownTimeout = config.DefaultShutdownTimeout
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.checker == nil {
		g.checker = health.NewChecker("")
	}

	g.state.Store(int32(StateStopped))

	return g, nil
}

// Start builds the router and starts the listener.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrGatewayNotStopped
	}

	g.logger.Info("starting gateway")

	gin.SetMode(gin.ReleaseMode)

	g.mu.Lock()
	g.engine = gin.New()
	g.setupRoutes()
	g.listener = NewListener(g.config.Listener, g.engine, WithListenerLogger(g.logger))
	g.mu.Unlock()

	if err := g.listener.Start(ctx); err != nil {
		g.state.Store(int32(StateStopped))
		return fmt.Errorf("failed to start listener %s: %w", g.listener.Name(), err)
	}

	g.startTime = time.Now()
	g.state.Store(int32(StateRunning))

	g.logger.Info("gateway started",
		observability.String("address", g.listener.Addr().String()),
	)

	return nil
}

// Stop stops the gateway gracefully.
func (g *Gateway) Stop(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return ErrGatewayNotRunning
	}

	g.logger.Info("stopping gateway")

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.shutdownTimeout)
		defer cancel()
	}

	err := g.listener.Stop(ctx)

	g.state.Store(int32(StateStopped))

	if err != nil {
		g.logger.Error("failed to stop listener", observability.Error(err))
		return err
	}

	g.logger.Info("gateway stopped",
		observability.Duration("uptime", g.Uptime()),
	)

	return nil
}

// State returns the current gateway state.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// IsRunning returns true if the gateway is running.
func (g *Gateway) IsRunning() bool {
	return g.State() == StateRunning
}

// Uptime returns the gateway uptime.
func (g *Gateway) Uptime() time.Duration {
	if g.startTime.IsZero() {
		return 0
	}
	return time.Since(g.startTime)
}

// Config returns the gateway configuration.
func (g *Gateway) Config() *config.GatewayConfig {
	return g.config
}

// Engine returns the gin engine. It is nil before Start.
func (g *Gateway) Engine() *gin.Engine {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.engine
}

// Addr returns the bound listener address, nil before Start.
func (g *Gateway) Addr() net.Addr {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.listener == nil {
		return nil
	}
	return g.listener.Addr()
}

func (g *Gateway) setupRoutes() {
	g.engine.Use(gin.Recovery())

	g.engine.Any(HealthPath, gin.WrapF(g.checker.HealthHandler()))
	g.engine.GET(ReadinessPath, gin.WrapF(g.checker.ReadinessHandler()))
	g.engine.HEAD(ReadinessPath, gin.WrapF(g.checker.ReadinessHandler()))

	if g.routeHandler != nil {
		g.engine.NoRoute(gin.WrapH(g.routeHandler))
	}
}
