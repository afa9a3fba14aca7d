package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sscache "github.com/c360studio/semstreams/pkg/cache"
	"github.com/c360studio/semstreams/metric"
)

// Defaults for InMemoryCache.
const (
	DefaultMaxEntries = 256
	DefaultTTL        = time.Hour
)

// InMemoryCache is a bounded cache whose entries expire after a TTL.
type InMemoryCache struct {
	entries sscache.Cache[[]byte]
	logger  *slog.Logger
}

// MemoryOption configures an InMemoryCache.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	maxEntries int
	ttl        time.Duration
	registry   *metric.MetricsRegistry
	logger     *slog.Logger
}

// WithMaxEntries bounds the number of entries; the least recently used
// entry is evicted first.
func WithMaxEntries(n int) MemoryOption {
	return func(c *memoryConfig) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithTTL sets how long entries live.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(c *memoryConfig) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMetrics exports cache statistics to the registry.
func WithMetrics(registry *metric.MetricsRegistry) MemoryOption {
	return func(c *memoryConfig) {
		c.registry = registry
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) MemoryOption {
	return func(c *memoryConfig) {
		c.logger = logger
	}
}

// NewInMemoryCache returns a cache. Expired entries are swept in the
// background until ctx is done or Close is called.
func NewInMemoryCache(ctx context.Context, opts ...MemoryOption) (*InMemoryCache, error) {
	cfg := memoryConfig{
		maxEntries: DefaultMaxEntries,
		ttl:        DefaultTTL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	cleanup := cfg.ttl / 4
	if cleanup > time.Minute {
		cleanup = time.Minute
	}
	entries, err := sscache.NewFromConfig(ctx, sscache.Config{
		Enabled:         true,
		Strategy:        sscache.StrategyHybrid,
		MaxSize:         cfg.maxEntries,
		TTL:             cfg.ttl,
		CleanupInterval: cleanup,
	}, sscache.WithMetrics[[]byte](cfg.registry, "semlink_ld_cache"))
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &InMemoryCache{entries: entries, logger: cfg.logger}, nil
}

func (c *InMemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	return c.entries.Get(key)
}

func (c *InMemoryCache) Set(_ context.Context, key string, value []byte) error {
	if _, err := c.entries.Set(key, value); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

func (c *InMemoryCache) Delete(_ context.Context, key string) error {
	if _, err := c.entries.Delete(key); err != nil {
		return fmt.Errorf("cache delete %q: %w", key, err)
	}
	return nil
}

func (c *InMemoryCache) Clear(context.Context) error {
	return c.entries.Clear()
}

func (c *InMemoryCache) Len(context.Context) int {
	return c.entries.Size()
}

// Keys returns the keys currently cached.
func (c *InMemoryCache) Keys() []string {
	return c.entries.Keys()
}

// Close stops the background sweeper.
func (c *InMemoryCache) Close() error {
	if err := c.entries.Close(); err != nil {
		c.logger.Debug("Cache close failed", "error", err)
		return err
	}
	return nil
}
