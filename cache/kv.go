package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go/jetstream"
)

// LDCacheBucket is the KV bucket for cached linked-data documents.
const LDCacheBucket = "SEMLINK_LD_CACHE"

// KVCache stores entries in a JetStream key-value bucket so that separate
// processes share retrieved documents. Entries expire with the bucket TTL.
type KVCache struct {
	bucket jetstream.KeyValue
	logger *slog.Logger
}

// KVOption configures a KVCache.
type KVOption func(*kvConfig)

type kvConfig struct {
	bucket string
	ttl    time.Duration
	logger *slog.Logger
}

// WithKVBucket overrides the bucket name.
func WithKVBucket(name string) KVOption {
	return func(c *kvConfig) {
		if name != "" {
			c.bucket = name
		}
	}
}

// WithKVTTL sets the bucket TTL.
func WithKVTTL(ttl time.Duration) KVOption {
	return func(c *kvConfig) {
		c.ttl = ttl
	}
}

// WithKVLogger sets the logger.
func WithKVLogger(logger *slog.Logger) KVOption {
	return func(c *kvConfig) {
		c.logger = logger
	}
}

// NewKVCache opens, creating if needed, the cache bucket.
func NewKVCache(ctx context.Context, nc *natsclient.Client, opts ...KVOption) (*KVCache, error) {
	if nc == nil {
		return nil, fmt.Errorf("NATS client required")
	}
	cfg := kvConfig{bucket: LDCacheBucket, ttl: DefaultTTL, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("get jetstream: %w", err)
	}
	bucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.bucket,
		Description: "Retrieved linked-data documents and JSON-LD contexts",
		TTL:         cfg.ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("create/update kv bucket: %w", err)
	}
	return &KVCache{bucket: bucket, logger: cfg.logger}, nil
}

// kvKey encodes an arbitrary cache key. URLs carry characters that KV keys
// reject.
func kvKey(key string) string {
	return "k." + hex.EncodeToString([]byte(key))
}

func isMissing(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted)
}

func (c *KVCache) Get(ctx context.Context, key string) ([]byte, bool) {
	entry, err := c.bucket.Get(ctx, kvKey(key))
	if err != nil {
		if !isMissing(err) {
			c.logger.Warn("Cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return entry.Value(), true
}

func (c *KVCache) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return fmt.Errorf("cache key cannot be empty")
	}
	if _, err := c.bucket.Put(ctx, kvKey(key), value); err != nil {
		return fmt.Errorf("cache put %q: %w", key, err)
	}
	return nil
}

func (c *KVCache) Delete(ctx context.Context, key string) error {
	if err := c.bucket.Delete(ctx, kvKey(key)); err != nil && !isMissing(err) {
		return fmt.Errorf("cache delete %q: %w", key, err)
	}
	return nil
}

func (c *KVCache) Clear(ctx context.Context) error {
	keys, err := c.bucket.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil
		}
		return fmt.Errorf("list cache keys: %w", err)
	}
	for _, k := range keys {
		if err := c.bucket.Purge(ctx, k); err != nil && !isMissing(err) {
			return fmt.Errorf("purge %q: %w", k, err)
		}
	}
	return nil
}

func (c *KVCache) Len(ctx context.Context) int {
	keys, err := c.bucket.Keys(ctx)
	if err != nil {
		if !errors.Is(err, jetstream.ErrNoKeysFound) {
			c.logger.Warn("Cache key listing failed", "error", err)
		}
		return 0
	}
	return len(keys)
}
