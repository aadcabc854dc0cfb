package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoBackend returns the received headers as X-Echo-* response headers
// and the received body verbatim.
func echoBackend(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		for k, vv := range r.Header {
			for _, v := range vv {
				w.Header().Add("X-Echo-"+k, v)
			}
		}
		w.Header().Set("X-Echo-Host", r.Host)
		w.Header().Set("X-Echo-Path", r.URL.RequestURI())
		w.Header().Set("X-Echo-Method", r.Method)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

// closedPortURL returns a URL on which nothing is listening.
func closedPortURL(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return "http://" + addr
}

func TestNewForwarder_InvalidURL(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "backend:8080", "://bad", "/relative"} {
		_, err := NewForwarder(raw)
		assert.Error(t, err, raw)
	}
}

func TestForwarder_RoundTrip(t *testing.T) {
	t.Parallel()

	backend := echoBackend(t)
	f, err := NewForwarder(backend.URL + "/graphql")
	require.NoError(t, err)

	payload := bytes.Repeat([]byte{0x00, 0xff, 'a', '\n'}, 4096)
	req := httptest.NewRequest(http.MethodPost, "http://gateway.local/anything?x=1", bytes.NewReader(payload))
	req.Header.Set("X-User-Sub", "user-1")
	req.Header.Add("X-Multi", "one")
	req.Header.Add("X-Multi", "two")
	req.Header.Set("Authorization", "Bearer abc")

	resp, err := f.Forward(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, payload, resp.Body)
	assert.Equal(t, "user-1", resp.Header.Get("X-Echo-X-User-Sub"))
	assert.Equal(t, []string{"one", "two"}, resp.Header.Values("X-Echo-X-Multi"))
	assert.Equal(t, "Bearer abc", resp.Header.Get("X-Echo-Authorization"))
	assert.Equal(t, "/graphql", resp.Header.Get("X-Echo-Path"), "fixed URL ignores the inbound path")
	assert.Equal(t, http.MethodPost, resp.Header.Get("X-Echo-Method"))
	assert.Equal(t, backend.Listener.Addr().String(), resp.Header.Get("X-Echo-Host"))
}

func TestForwarder_PreservePath(t *testing.T) {
	t.Parallel()

	backend := echoBackend(t)
	f, err := NewForwarder(backend.URL+"/api/", WithPreservePath(true))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/users?limit=5", nil)
	resp, err := f.Forward(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/users?limit=5", resp.Header.Get("X-Echo-Path"))
}

func TestForwarder_StripsFramingHeaders(t *testing.T) {
	t.Parallel()

	var got http.Header
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	f, err := NewForwarder(backend.URL)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("hello"))
	req.Header["content-length"] = []string{"999"}
	req.Header["TRANSFER-ENCODING"] = []string{"chunked"}
	req.Header["host"] = []string{"evil.example.com"}
	req.Header.Set("Content-Length", "5")
	req.Header.Set("X-Keep", "yes")

	_, err = f.Forward(context.Background(), req)
	require.NoError(t, err)

	for k := range got {
		assert.NotEqual(t, "transfer-encoding", strings.ToLower(k))
		assert.NotEqual(t, "host", strings.ToLower(k))
	}
	assert.Equal(t, "yes", got.Get("X-Keep"))
}

func TestOutboundHeader(t *testing.T) {
	t.Parallel()

	in := http.Header{
		"content-length":    {"1"},
		"Transfer-Encoding": {"chunked"},
		"HOST":              {"a"},
		"X-Org-Id":          {"org"},
	}
	out := outboundHeader(in)

	assert.Equal(t, http.Header{"X-Org-Id": {"org"}}, out)
	assert.Len(t, in, 4, "input must not be modified")
	assert.NotNil(t, outboundHeader(nil))
}

func TestForwarder_StripsResponseTransferEncoding(t *testing.T) {
	t.Parallel()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-First", "1")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		_, _ = w.Write([]byte(`{"ok":`))
		flusher.Flush()
		_, _ = w.Write([]byte(`true}`))
	}))
	defer backend.Close()

	f, err := NewForwarder(backend.URL)
	require.NoError(t, err)

	resp, err := f.Forward(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	assert.Equal(t, `{"ok":true}`, string(resp.Body))
	assert.Empty(t, resp.Header.Values("Transfer-Encoding"))
	assert.Equal(t, "1", resp.Header.Get("X-First"))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestForwarder_PassesBackendStatus(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusOK, http.StatusNoContent, http.StatusFound, http.StatusNotFound, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Location", "/elsewhere")
			w.WriteHeader(status)
		}))

		f, err := NewForwarder(backend.URL)
		require.NoError(t, err)

		resp, err := f.Forward(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, status, resp.StatusCode)
		backend.Close()
	}
}

func TestForwarder_ConnectionRefused(t *testing.T) {
	t.Parallel()

	f, err := NewForwarder(closedPortURL(t))
	require.NoError(t, err)

	_, err = f.Forward(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
}

func TestForwarder_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer backend.Close()
	defer close(release)

	f, err := NewForwarder(backend.URL, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = f.Forward(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGatewayTimeout)
	assert.Equal(t, http.StatusGatewayTimeout, StatusCode(err))
}

func TestForwarder_BodyTooLarge(t *testing.T) {
	t.Parallel()

	called := false
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	defer backend.Close()

	f, err := NewForwarder(backend.URL)
	require.NoError(t, err)

	tests := []struct {
		name string
		req  *http.Request
	}{
		{
			name: "declared length",
			req:  httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(make([]byte, DefaultMaxBodySize+1))),
		},
		{
			name: "unknown length",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/", io.NopCloser(bytes.NewReader(make([]byte, DefaultMaxBodySize+1))))
				r.ContentLength = -1
				return r
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Forward(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrBodyRead)
			assert.ErrorIs(t, err, ErrBodyTooLarge)
			assert.Equal(t, http.StatusBadRequest, StatusCode(err))
		})
	}
	assert.False(t, called, "backend must not be called")
}

func TestForwarder_BodyExactlyAtLimit(t *testing.T) {
	t.Parallel()

	backend := echoBackend(t)
	f, err := NewForwarder(backend.URL, WithMaxBodySize(1024))
	require.NoError(t, err)

	resp, err := f.Forward(context.Background(),
		httptest.NewRequest(http.MethodPut, "/", bytes.NewReader(make([]byte, 1024))))
	require.NoError(t, err)
	assert.Len(t, resp.Body, 1024)

	_, err = f.Forward(context.Background(),
		httptest.NewRequest(http.MethodPut, "/", bytes.NewReader(make([]byte, 1025))))
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("client went away") }

func TestForwarder_BodyReadFailure(t *testing.T) {
	t.Parallel()

	f, err := NewForwarder("http://127.0.0.1:1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", io.NopCloser(failingReader{}))
	_, err = f.Forward(context.Background(), req)
	assert.ErrorIs(t, err, ErrBodyRead)
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (fn roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return fn(r) }

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
func (errReader) Close() error             { return nil }

func TestForwarder_TransportFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		transport roundTripFunc
		want      error
		status    int
	}{
		{
			name: "generic transport error",
			transport: func(*http.Request) (*http.Response, error) {
				return nil, errors.New("tls: handshake failure")
			},
			want:   ErrBadGateway,
			status: http.StatusBadGateway,
		},
		{
			name: "dial error",
			transport: func(*http.Request) (*http.Response, error) {
				return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
			},
			want:   ErrServiceUnavailable,
			status: http.StatusServiceUnavailable,
		},
		{
			name: "dns error",
			transport: func(*http.Request) (*http.Response, error) {
				return nil, &net.DNSError{Err: "no such host", Name: "backend"}
			},
			want:   ErrServiceUnavailable,
			status: http.StatusServiceUnavailable,
		},
		{
			name: "deadline",
			transport: func(*http.Request) (*http.Response, error) {
				return nil, context.DeadlineExceeded
			},
			want:   ErrGatewayTimeout,
			status: http.StatusGatewayTimeout,
		},
		{
			name: "response body read failure",
			transport: func(r *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: errReader{}, Request: r}, nil
			},
			want:   ErrBadGateway,
			status: http.StatusBadGateway,
		},
		{
			name: "invalid status",
			transport: func(r *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: 42, Header: http.Header{}, Body: http.NoBody, Request: r}, nil
			},
			want:   ErrInternal,
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, err := NewForwarder("http://backend.internal", WithTransport(tt.transport))
			require.NoError(t, err)

			_, err = f.Forward(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.status, StatusCode(err))
		})
	}
}

func TestForwarder_NoRetry(t *testing.T) {
	t.Parallel()

	calls := 0
	f, err := NewForwarder("http://backend.internal", WithTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls++
		return nil, errors.New("reset by peer")
	})))
	require.NoError(t, err)

	_, err = f.Forward(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestForwarder_Metrics(t *testing.T) {
	t.Parallel()

	backend := echoBackend(t)
	metrics := NewMetrics(prometheus.NewRegistry())
	metrics.Init()

	f, err := NewForwarder(backend.URL, WithForwarderMetrics(metrics))
	require.NoError(t, err)
	refused, err := NewForwarder(closedPortURL(t), WithForwarderMetrics(metrics))
	require.NoError(t, err)

	_, err = f.Forward(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	_, err = refused.Forward(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.forwardTotal.WithLabelValues("201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.forwardTotal.WithLabelValues("503")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.errorsTotal.WithLabelValues("service_unavailable")))
}

func TestResponse_Render(t *testing.T) {
	t.Parallel()

	resp := &Response{
		StatusCode: http.StatusAccepted,
		Header:     http.Header{"X-A": {"1", "2"}, "Content-Type": {"text/plain"}},
		Body:       []byte("done"),
	}

	rec := httptest.NewRecorder()
	require.NoError(t, resp.Render(rec))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"1", "2"}, rec.Header().Values("X-A"))
	assert.Equal(t, "done", rec.Body.String())

	rec = httptest.NewRecorder()
	err := (&Response{StatusCode: 0}).Render(rec)
	assert.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
