package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrCacheCorrupt is returned when a stored entry cannot be decoded.
var ErrCacheCorrupt = errors.New("infra: cache entry corrupt")

// DashboardKey is the cache key of the homepage bundle.
const DashboardKey = "dashboard"

// StockKey returns the cache key for one stock lookup.
func StockKey(ticker, rng string) string {
	return "stock-" + strings.ToUpper(strings.TrimSpace(ticker)) + "-" + strings.ToUpper(rng)
}

// entry is the stored form of a cached aggregate.
type entry struct {
	FetchedAtEpochMillis int64           `json:"fetchedAtEpochMillis"`
	Payload              json.RawMessage `json:"payload"`
}

// SessionCache is a TTL cache of JSON-encoded aggregates on top of a
// Storage. Freshness is judged against the injected clock at read time, so
// one entry can serve callers with different TTLs.
type SessionCache struct {
	storage Storage
	clock   Clock
	logger  *slog.Logger
}

// CacheOption configures a SessionCache.
type CacheOption func(*SessionCache)

// WithClock replaces the system clock.
func WithClock(c Clock) CacheOption {
	return func(sc *SessionCache) { sc.clock = c }
}

// WithLogger sets the logger used for corruption warnings.
func WithLogger(l *slog.Logger) CacheOption {
	return func(sc *SessionCache) { sc.logger = l }
}

// NewSessionCache creates a cache over storage. A nil storage gets a fresh
// MemoryStorage.
func NewSessionCache(storage Storage, opts ...CacheOption) *SessionCache {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	sc := &SessionCache{storage: storage, clock: SystemClock{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(sc)
	}
	if sc.logger == nil {
		sc.logger = slog.Default()
	}
	return sc
}

// Get decodes the entry under key into v when it is younger than ttl.
// It reports false on a miss or an expired entry. A corrupt entry yields
// ErrCacheCorrupt.
func (c *SessionCache) Get(ctx context.Context, key string, ttl time.Duration, v any) (bool, error) {
	raw, ok, err := c.storage.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil || len(e.Payload) == 0 {
		return false, fmt.Errorf("%w: %q", ErrCacheCorrupt, key)
	}

	age := c.clock.Now().Sub(time.UnixMilli(e.FetchedAtEpochMillis))
	if age < 0 || age >= ttl {
		return false, nil
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return false, fmt.Errorf("%w: %q: %v", ErrCacheCorrupt, key, err)
	}
	return true, nil
}

// Put stores v under key stamped with the current time, replacing any
// previous entry.
func (c *SessionCache) Put(ctx context.Context, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("infra: encode %q: %w", key, err)
	}
	raw, err := json.Marshal(entry{
		FetchedAtEpochMillis: c.clock.Now().UnixMilli(),
		Payload:              payload,
	})
	if err != nil {
		return fmt.Errorf("infra: encode %q: %w", key, err)
	}
	return c.storage.Set(ctx, key, raw)
}

// Invalidate removes key.
func (c *SessionCache) Invalidate(ctx context.Context, key string) error {
	return c.storage.Delete(ctx, key)
}

// Fetch is a read-through lookup. A fresh entry is returned without calling
// fetch; otherwise fetch runs once and its result overwrites the entry.
// Errors from fetch are returned and never cached. Concurrent misses may each
// call fetch; the last writer wins.
func Fetch[T any](ctx context.Context, c *SessionCache, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var cached T
	hit, err := c.Get(ctx, key, ttl, &cached)
	switch {
	case hit:
		c.logger.Debug("cache hit", "key", key)
		return cached, nil
	case errors.Is(err, ErrCacheCorrupt):
		c.logger.Warn("discarding corrupt cache entry", "key", key, "error", err)
	case err != nil:
		c.logger.Warn("cache read failed", "key", key, "error", err)
	}

	fresh, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := c.Put(ctx, key, fresh); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
	return fresh, nil
}
