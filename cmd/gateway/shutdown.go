package main

import (
	"context"
	"fmt"
	"time"

	"github.com/vyrodovalexey/authgw/internal/observability"
)

// run starts the gateway and blocks until ctx is cancelled, then shuts
// everything down.
func (a *application) run(ctx context.Context) error {
	if err := a.gateway.Start(ctx); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	startMetricsServerIfEnabled(a)
	a.warmKeyCache(ctx)

	<-ctx.Done()
	a.logger.Info("received shutdown signal")

	return a.shutdown()
}

// shutdown stops the servers and flushes telemetry.
func (a *application) shutdown() error {
	timeout := a.config.Listener.ShutdownTimeout.Duration()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var firstErr error

	if a.metricsServer != nil {
		a.logger.Info("stopping metrics server")
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("failed to stop metrics server gracefully", observability.Error(err))
		}
	}

	if err := a.gateway.Stop(shutdownCtx); err != nil {
		a.logger.Error("failed to stop gateway gracefully", observability.Error(err))
		firstErr = err
	}

	if err := a.tracer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("failed to shutdown tracer", observability.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}

	a.logger.Info("gateway stopped")
	return firstErr
}
