// Package cache keeps retrieved linked-data documents and JSON-LD contexts
// so repeated lookups avoid the network.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
)

// Key prefixes used by the retriever and the vocabulary loader.
const (
	LODPrefix     = "lod:"
	ContextPrefix = "ctx:"
)

// LODKey returns the cache key of a retrieved resource.
func LODKey(uri string) string { return LODPrefix + uri }

// ContextKey returns the cache key of a loaded JSON-LD context.
func ContextKey(url string) string { return ContextPrefix + url }

// Cache stores byte values by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Len(ctx context.Context) int
}

// GetJSON decodes the value stored under key into v. It reports false when
// the key is absent.
func GetJSON(ctx context.Context, c Cache, key string, v any) (bool, error) {
	data, ok := c.Get(ctx, key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode cached %q: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v encoded as JSON under key.
func SetJSON(ctx context.Context, c Cache, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return c.Set(ctx, key, data)
}
