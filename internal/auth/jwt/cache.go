package jwt

import (
	"context"
	"sync"
	"time"

	"github.com/vyrodovalexey/authgw/internal/observability"
)

// DefaultCacheTTL is how long a fetched key set is served before refresh.
const DefaultCacheTTL = 300 * time.Second

// Fetcher retrieves the current key set from its publisher.
type Fetcher interface {
	Fetch(ctx context.Context) (*KeySet, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (*KeySet, error)

// Fetch calls f(ctx).
func (f FetcherFunc) Fetch(ctx context.Context) (*KeySet, error) {
	return f(ctx)
}

// cachedKeySet is the unit swapped on refresh.
type cachedKeySet struct {
	fetchedAt time.Time
	keys      *KeySet
}

// KeySetCache serves the most recently fetched KeySet for up to ttl.
//
// Concurrent callers that observe a stale snapshot may each fetch; the
// last successful fetch to complete wins. A failed fetch never modifies
// the cache.
type KeySetCache struct {
	mu       sync.RWMutex
	snapshot *cachedKeySet

	ttl     time.Duration
	now     func() time.Time
	logger  observability.Logger
	metrics *Metrics
}

// CacheOption configures a KeySetCache.
type CacheOption func(*KeySetCache)

// WithCacheLogger sets the logger.
func WithCacheLogger(logger observability.Logger) CacheOption {
	return func(c *KeySetCache) {
		c.logger = logger
	}
}

// WithCacheMetrics sets the metrics sink.
func WithCacheMetrics(metrics *Metrics) CacheOption {
	return func(c *KeySetCache) {
		c.metrics = metrics
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) CacheOption {
	return func(c *KeySetCache) {
		c.now = now
	}
}

// NewKeySetCache creates an empty cache. A non-positive ttl uses DefaultCacheTTL.
func NewKeySetCache(ttl time.Duration, opts ...CacheOption) *KeySetCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &KeySetCache{
		ttl:    ttl,
		now:    time.Now,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured time-to-live.
func (c *KeySetCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the cached key set if it is younger than the TTL, otherwise
// refreshes it through fetcher. A failed refresh returns a
// KindKeySetUnavailable error and leaves any previous snapshot in place.
func (c *KeySetCache) Get(ctx context.Context, fetcher Fetcher) (*KeySet, error) {
	if keys, ok := c.fresh(); ok {
		if c.metrics != nil {
			c.metrics.RecordCacheHit()
		}
		return keys, nil
	}

	if c.metrics != nil {
		c.metrics.RecordCacheMiss()
	}
	return c.refresh(ctx, fetcher)
}

func (c *KeySetCache) fresh() (*KeySet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snapshot == nil {
		return nil, false
	}
	if c.now().Sub(c.snapshot.fetchedAt) >= c.ttl {
		return nil, false
	}
	return c.snapshot.keys, true
}

func (c *KeySetCache) refresh(ctx context.Context, fetcher Fetcher) (*KeySet, error) {
	start := c.now()
	keys, err := fetcher.Fetch(ctx)
	if err == nil && keys == nil {
		err = ErrEmptyKeySetResponse
	}
	if c.metrics != nil {
		c.metrics.RecordFetch(err == nil, c.now().Sub(start))
	}
	if err != nil {
		c.logger.Warn("key set refresh failed",
			observability.Error(err),
			observability.Bool("has_stale_snapshot", c.hasSnapshot()),
		)
		return nil, &VerificationError{
			Kind:    KindKeySetUnavailable,
			Message: "failed to refresh key set",
			Cause:   err,
		}
	}

	next := &cachedKeySet{fetchedAt: c.now(), keys: keys}

	c.mu.Lock()
	c.snapshot = next
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.SetCachedKeys(keys.Len())
	}
	c.logger.Debug("key set refreshed",
		observability.Int("keys", keys.Len()),
		observability.Strings("kids", keys.KeyIDs()),
	)

	return keys, nil
}

func (c *KeySetCache) hasSnapshot() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot != nil
}

// Snapshot returns the current key set and when it was fetched, regardless
// of staleness. ok is false until the first successful fetch.
func (c *KeySetCache) Snapshot() (keys *KeySet, fetchedAt time.Time, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil {
		return nil, time.Time{}, false
	}
	return c.snapshot.keys, c.snapshot.fetchedAt, true
}

// Invalidate drops the cached snapshot so the next Get fetches.
func (c *KeySetCache) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.mu.Unlock()
}
