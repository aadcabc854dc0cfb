package gateway

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/authgw/internal/config"
	"github.com/vyrodovalexey/authgw/internal/health"
)

func testConfig() *config.GatewayConfig {
	cfg := config.DefaultConfig()
	cfg.Listener.Bind = "127.0.0.1"
	cfg.Listener.Port = 0
	cfg.Listener.ShutdownTimeout = config.Duration(2 * time.Second)
	return cfg
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "starting", StateStarting.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopping", StateStopping.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestNew_NilConfig(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilConfig)
}

func TestGateway_Lifecycle(t *testing.T) {
	t.Parallel()

	checker := health.NewChecker("test")
	route := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, r.Method+" "+r.URL.Path)
	})

	gw, err := New(testConfig(), WithRouteHandler(route), WithHealthChecker(checker))
	require.NoError(t, err)
	assert.Equal(t, StateStopped, gw.State())
	assert.Nil(t, gw.Addr())
	assert.Zero(t, gw.Uptime())

	ctx := context.Background()
	require.NoError(t, gw.Start(ctx))
	t.Cleanup(func() { _ = gw.Stop(context.Background()) })

	assert.True(t, gw.IsRunning())
	assert.NotNil(t, gw.Engine())
	assert.ErrorIs(t, gw.Start(ctx), ErrGatewayNotStopped)

	base := "http://" + gw.Addr().String()

	tests := []struct {
		method   string
		path     string
		wantCode int
		wantBody string
	}{
		{http.MethodGet, "/health", http.StatusOK, `{"status":"UP"}`},
		{http.MethodPost, "/health", http.StatusOK, `{"status":"UP"}`},
		{http.MethodGet, "/graphql", http.StatusTeapot, "GET /graphql"},
		{http.MethodPost, "/", http.StatusTeapot, "POST /"},
		{http.MethodDelete, "/a/b/c", http.StatusTeapot, "DELETE /a/b/c"},
	}

	for _, tt := range tests {
		req, err := http.NewRequestWithContext(ctx, tt.method, base+tt.path, http.NoBody)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		require.NoError(t, err)

		assert.Equal(t, tt.wantCode, resp.StatusCode, tt.method+" "+tt.path)
		assert.Equal(t, tt.wantBody, string(body), tt.method+" "+tt.path)
	}

	resp, err := http.Get(base + "/ready")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	checker.RegisterCheck("jwks", func() health.Check { return health.Check{Status: health.StatusDown} })
	resp, err = http.Get(base + "/ready")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	require.NoError(t, gw.Stop(ctx))
	assert.Equal(t, StateStopped, gw.State())
	assert.ErrorIs(t, gw.Stop(ctx), ErrGatewayNotRunning)
}

func TestGateway_StartFailsOnBusyPort(t *testing.T) {
	t.Parallel()

	first, err := New(testConfig())
	require.NoError(t, err)
	require.NoError(t, first.Start(context.Background()))
	t.Cleanup(func() { _ = first.Stop(context.Background()) })

	cfg := testConfig()
	cfg.Listener.Port = first.Addr().(*net.TCPAddr).Port
	second, err := New(cfg)
	require.NoError(t, err)

	assert.Error(t, second.Start(context.Background()))
	assert.Equal(t, StateStopped, second.State())
}
