package jwt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/authgw/internal/observability"
)

// Fetch limits.
const (
	DefaultFetchTimeout = 10 * time.Second
	maxKeySetBodySize   = 1 << 20
)

// Fetch errors.
var (
	ErrKeySetStatus        = errors.New("unexpected key set response status")
	ErrKeySetTooLarge      = errors.New("key set response exceeds size limit")
	ErrEmptyKeySetResponse = errors.New("fetcher returned no key set")
)

// HTTPFetcher retrieves a key set document over HTTP.
type HTTPFetcher struct {
	url     string
	client  *http.Client
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  observability.Logger
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient replaces the HTTP client. The client is not modified.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		f.client = client
	}
}

// WithFetchTimeout bounds each fetch, regardless of option order.
func WithFetchTimeout(timeout time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(logger observability.Logger) FetcherOption {
	return func(f *HTTPFetcher) {
		f.logger = logger
	}
}

// WithCircuitBreaker trips after maxFailures consecutive failed fetches and
// fails fast for timeout before probing the publisher again.
func WithCircuitBreaker(maxFailures int, timeout time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		threshold := safeIntToUint32(maxFailures)
		f.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "jwks",
			MaxRequests: 1,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				f.logger.Warn("circuit breaker state change",
					observability.String("name", name),
					observability.String("from", from.String()),
					observability.String("to", to.String()),
				)
			},
		})
	}
}

func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if n > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n) //nolint:gosec // bounds checked above
}

// NewHTTPFetcher creates a fetcher for the key set at url.
func NewHTTPFetcher(url string, opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		url:     url,
		client:  &http.Client{},
		timeout: DefaultFetchTimeout,
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// URL returns the key set endpoint.
func (f *HTTPFetcher) URL() string {
	return f.url
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context) (*KeySet, error) {
	if f.breaker == nil {
		return f.fetch(ctx)
	}

	result, err := f.breaker.Execute(func() (interface{}, error) {
		return f.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*KeySet), nil
}

func (f *HTTPFetcher) fetch(ctx context.Context) (*KeySet, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create key set request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	observability.InjectTraceContext(ctx, req.Header)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch key set from %s: %w", f.url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %d from %s", ErrKeySetStatus, resp.StatusCode, f.url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read key set response: %w", err)
	}
	if len(body) > maxKeySetBodySize {
		return nil, ErrKeySetTooLarge
	}

	keys, err := ParseKeySet(body)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("fetched key set",
		observability.String("url", f.url),
		observability.Int("keys", keys.Len()),
	)
	return keys, nil
}
