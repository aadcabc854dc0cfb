package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/authgw/internal/observability"
)

// Forwarding defaults.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxBodySize = 10 << 20
)

// strippedRequestHeaders are never relayed to the backend.
var strippedRequestHeaders = []string{"Content-Length", "Transfer-Encoding", "Host"}

// strippedResponseHeaders are never relayed to the client.
var strippedResponseHeaders = []string{"Transfer-Encoding"}

// Response is a fully buffered backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Render writes the response to w.
func (r *Response) Render(w http.ResponseWriter) error {
	if r.StatusCode < 100 || r.StatusCode > 999 {
		err := &ForwardError{Kind: KindInternalError, Op: "render",
			Cause: fmt.Errorf("invalid status code %d", r.StatusCode)}
		WriteError(w, err)
		return err
	}

	dst := w.Header()
	for k, vv := range r.Header {
		dst[k] = append([]string(nil), vv...)
	}
	w.WriteHeader(r.StatusCode)
	_, err := w.Write(r.Body)
	return err
}

// Forwarder relays requests to one fixed backend URL.
type Forwarder struct {
	target       *url.URL
	client       *http.Client
	timeout      time.Duration
	maxBodySize  int64
	preservePath bool
	logger       observability.Logger
	metrics      *Metrics
	tracer       trace.Tracer
}

// ForwarderOption is a functional option for configuring the forwarder.
type ForwarderOption func(*Forwarder)

// WithForwarderLogger sets the logger.
func WithForwarderLogger(logger observability.Logger) ForwarderOption {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithForwarderMetrics sets the metrics sink.
func WithForwarderMetrics(metrics *Metrics) ForwarderOption {
	return func(f *Forwarder) {
		f.metrics = metrics
	}
}

// WithTransport sets the transport used for backend requests.
func WithTransport(transport http.RoundTripper) ForwarderOption {
	return func(f *Forwarder) {
		f.client.Transport = transport
	}
}

// WithTimeout bounds each forward, including reading the response body.
func WithTimeout(timeout time.Duration) ForwarderOption {
	return func(f *Forwarder) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// WithMaxBodySize limits the buffered request body.
func WithMaxBodySize(n int64) ForwarderOption {
	return func(f *Forwarder) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithPreservePath appends the inbound path and query to the backend URL
// instead of sending every request to the URL as configured.
func WithPreservePath(preserve bool) ForwarderOption {
	return func(f *Forwarder) {
		f.preservePath = preserve
	}
}

// NewForwarder creates a forwarder for backendURL.
func NewForwarder(backendURL string, opts ...ForwarderOption) (*Forwarder, error) {
	target, err := url.Parse(backendURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL %q: %w", backendURL, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme and host are required", backendURL)
	}

	f := &Forwarder{
		target:      target,
		client:      &http.Client{Transport: defaultTransport(), CheckRedirect: noRedirect},
		timeout:     DefaultTimeout,
		maxBodySize: DefaultMaxBodySize,
		logger:      observability.NopLogger(),
		tracer:      otel.Tracer("github.com/vyrodovalexey/authgw/internal/proxy"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// defaultTransport keeps content-encoding untouched so the backend's
// compressed bodies reach the client as sent.
func defaultTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DisableCompression = true
	t.MaxIdleConnsPerHost = 64
	return t
}

// Redirects are relayed to the client, not followed.
func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// Target returns the backend URL.
func (f *Forwarder) Target() string {
	return f.target.String()
}

// Forward relays r to the backend and returns the buffered response.
// Failures are returned as *ForwardError.
func (f *Forwarder) Forward(ctx context.Context, r *http.Request) (*Response, error) {
	start := time.Now()

	ctx, span := f.tracer.Start(ctx, "proxy.forward",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("server.address", f.target.Host),
		),
	)
	defer span.End()

	resp, err := f.forward(ctx, r)
	duration := time.Since(start)

	if err != nil {
		var fe *ForwardError
		if !errors.As(err, &fe) {
			fe = &ForwardError{Kind: KindInternalError, Op: "forward", Target: f.target.Host, Cause: err}
			err = fe
		}
		if f.metrics != nil {
			f.metrics.recordError(fe.Kind, duration)
		}
		span.SetAttributes(attribute.String("proxy.error_type", fe.Kind.String()))
		observability.RecordError(span, err)
		f.logger.WithContext(ctx).Warn("forward failed",
			observability.String("error_type", fe.Kind.String()),
			observability.Int("status", fe.StatusCode()),
			observability.Duration("duration", duration),
			observability.Error(fe.Cause),
		)
		return nil, err
	}

	if f.metrics != nil {
		f.metrics.recordSuccess(resp.StatusCode, duration)
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	f.logger.WithContext(ctx).Debug("forwarded request",
		observability.Int("status", resp.StatusCode),
		observability.Int("response_bytes", len(resp.Body)),
		observability.Duration("duration", duration),
	)
	return resp, nil
}

func (f *Forwarder) forward(ctx context.Context, r *http.Request) (*Response, error) {
	body, err := f.readBody(r)
	if err != nil {
		return nil, err
	}
	if f.metrics != nil {
		f.metrics.recordBodySize(len(body))
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	outReq, err := http.NewRequestWithContext(ctx, r.Method, f.targetURL(r), bytes.NewReader(body))
	if err != nil {
		return nil, &ForwardError{Kind: KindInternalError, Op: "build_request", Target: f.target.Host, Cause: err}
	}
	outReq.Header = outboundHeader(r.Header)
	observability.InjectTraceContext(ctx, outReq.Header)

	resp, err := f.client.Do(outReq)
	if err != nil {
		return nil, &ForwardError{Kind: classifyTransportError(err), Op: "send", Target: f.target.Host, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ForwardError{Kind: KindBadGateway, Op: "read_response", Target: f.target.Host, Cause: err}
	}

	if resp.StatusCode < 100 || resp.StatusCode > 999 {
		return nil, &ForwardError{Kind: KindInternalError, Op: "build_response", Target: f.target.Host,
			Cause: fmt.Errorf("invalid status code %d", resp.StatusCode)}
	}

	header := resp.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	deleteHeaders(header, strippedResponseHeaders)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     header,
		Body:       respBody,
	}, nil
}

// readBody buffers at most maxBodySize bytes; one more byte is an error.
func (f *Forwarder) readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	if r.ContentLength > f.maxBodySize {
		return nil, &ForwardError{Kind: KindBodyReadError, Op: "read_body", Cause: ErrBodyTooLarge}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, f.maxBodySize+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			err = fmt.Errorf("%w: %w", ErrBodyTooLarge, err)
		}
		return nil, &ForwardError{Kind: KindBodyReadError, Op: "read_body", Cause: err}
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, &ForwardError{Kind: KindBodyReadError, Op: "read_body", Cause: ErrBodyTooLarge}
	}
	return body, nil
}

func (f *Forwarder) targetURL(r *http.Request) string {
	if !f.preservePath || r.URL == nil {
		return f.target.String()
	}
	u := *f.target
	u.Path = strings.TrimSuffix(f.target.Path, "/") + "/" + strings.TrimPrefix(r.URL.Path, "/")
	u.RawPath = ""
	u.RawQuery = r.URL.RawQuery
	return u.String()
}

// outboundHeader copies in, minus hop-by-hop framing headers in any case.
func outboundHeader(in http.Header) http.Header {
	out := in.Clone()
	if out == nil {
		out = http.Header{}
	}
	deleteHeaders(out, strippedRequestHeaders)
	return out
}

// deleteHeaders removes names case-insensitively, including keys that
// were set without canonicalization.
func deleteHeaders(h http.Header, names []string) {
	for k := range h {
		for _, name := range names {
			if strings.EqualFold(k, name) {
				delete(h, k)
			}
		}
	}
}

// classifyTransportError maps a client.Do failure to a Kind. Connection
// failures are checked first, so a dial that times out is still 503.
func classifyTransportError(err error) Kind {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindServiceUnavailable
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindServiceUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindGatewayTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindGatewayTimeout
	}
	return KindBadGateway
}
