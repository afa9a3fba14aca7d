package graph

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/semlink/rdf"
)

// GraphsBucket is the default KV bucket for named graphs.
const GraphsBucket = "SEMLINK_GRAPHS"

const (
	defaultGraphKey = "graph.default"
	namedGraphKey   = "graph.n."
)

// KVBackend stores each named graph as one N-Quads value in a JetStream
// key-value bucket, so graphs outlive the process and are shared between
// instances.
type KVBackend struct {
	bucket jetstream.KeyValue
	logger *slog.Logger

	// serialises read-modify-write of a graph value within this process
	mu sync.Mutex
}

// KVBackendOption configures a KVBackend.
type KVBackendOption func(*kvConfig)

type kvConfig struct {
	bucket string
	logger *slog.Logger
}

// WithBucket overrides the bucket name.
func WithBucket(name string) KVBackendOption {
	return func(c *kvConfig) {
		if name != "" {
			c.bucket = name
		}
	}
}

// WithKVLogger sets the logger used by the backend.
func WithKVLogger(logger *slog.Logger) KVBackendOption {
	return func(c *kvConfig) {
		c.logger = logger
	}
}

// NewKVBackend opens, creating if needed, the graph bucket.
func NewKVBackend(ctx context.Context, nc *natsclient.Client, opts ...KVBackendOption) (*KVBackend, error) {
	if nc == nil {
		return nil, fmt.Errorf("NATS client required")
	}
	cfg := kvConfig{bucket: GraphsBucket, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("get jetstream: %w", err)
	}
	bucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.bucket,
		Description: "Named RDF graphs as N-Quads",
	})
	if err != nil {
		return nil, fmt.Errorf("create/update kv bucket: %w", err)
	}
	return &KVBackend{bucket: bucket, logger: cfg.logger}, nil
}

// graphKey maps a graph name to a bucket key. Graph IRIs contain characters
// KV keys do not allow, so names are base64url encoded.
func graphKey(graphID string) string {
	if graphID == "" {
		return defaultGraphKey
	}
	return namedGraphKey + base64.RawURLEncoding.EncodeToString([]byte(graphID))
}

func graphIDFromKey(key string) (string, bool) {
	if key == defaultGraphKey {
		return "", true
	}
	enc, ok := strings.CutPrefix(key, namedGraphKey)
	if !ok {
		return "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func (b *KVBackend) AddNQuads(ctx context.Context, nquads, graphID string) (int, error) {
	return b.add(ctx, nquads, graphID, false)
}

func (b *KVBackend) AddNamedGraph(ctx context.Context, graphID, nquads string) (int, error) {
	if graphID == "" {
		return 0, fmt.Errorf("%w: graph id is required", ErrInvalidGraph)
	}
	return b.add(ctx, nquads, graphID, true)
}

func (b *KVBackend) add(ctx context.Context, nquads, graphID string, force bool) (int, error) {
	quads, err := targetQuads(nquads, graphID, force)
	if err != nil {
		return 0, err
	}
	byGraph := make(map[string][]rdf.Quad)
	var order []string
	for _, q := range quads {
		if _, ok := byGraph[q.Graph]; !ok {
			order = append(order, q.Graph)
		}
		byGraph[q.Graph] = append(byGraph[q.Graph], q)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	added := 0
	for _, name := range order {
		g, err := b.loadGraph(ctx, name)
		if err != nil {
			return added, err
		}
		n := 0
		for _, q := range byGraph[name] {
			if g.Add(q.Triple) {
				n++
			}
		}
		if n == 0 {
			continue
		}
		if err := b.storeGraph(ctx, name, g); err != nil {
			return added, err
		}
		added += n
	}
	return added, nil
}

// loadGraph returns the stored graph, or an empty graph when absent.
func (b *KVBackend) loadGraph(ctx context.Context, graphID string) (*rdf.Graph, error) {
	entry, err := b.bucket.Get(ctx, graphKey(graphID))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
			return rdf.NewGraph(), nil
		}
		return nil, fmt.Errorf("get graph %q: %w", graphID, err)
	}
	ds, err := rdf.ParseNQuadsKeepLabels(string(entry.Value()))
	if err != nil {
		return nil, fmt.Errorf("decode graph %q: %w", graphID, err)
	}
	return ds.Default(), nil
}

func (b *KVBackend) storeGraph(ctx context.Context, graphID string, g *rdf.Graph) error {
	if _, err := b.bucket.Put(ctx, graphKey(graphID), []byte(rdf.WriteNTriples(g))); err != nil {
		return fmt.Errorf("put graph %q: %w", graphID, err)
	}
	return nil
}

func (b *KVBackend) Triples(ctx context.Context, s, p, o *rdf.Term) ([]rdf.Triple, error) {
	ds, err := b.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return matchDataset(ds, s, p, o), nil
}

func (b *KVBackend) Size(ctx context.Context) (int, error) {
	ds, err := b.Dataset(ctx)
	if err != nil {
		return 0, err
	}
	return ds.Len(), nil
}

// Dataset reads every graph in the bucket.
func (b *KVBackend) Dataset(ctx context.Context) (*rdf.Dataset, error) {
	keys, err := b.bucket.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return rdf.NewDataset(), nil
		}
		return nil, fmt.Errorf("list graphs: %w", err)
	}

	ds := rdf.NewDataset()
	for _, key := range keys {
		graphID, ok := graphIDFromKey(key)
		if !ok {
			b.logger.Debug("Skipping unknown key in graph bucket", "key", key)
			continue
		}
		g, err := b.loadGraph(ctx, graphID)
		if err != nil {
			return nil, err
		}
		ds.Graph(graphID).Merge(g)
	}
	return ds, nil
}

// Delete removes a named graph.
func (b *KVBackend) Delete(ctx context.Context, graphID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.bucket.Delete(ctx, graphKey(graphID)); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("delete graph %q: %w", graphID, err)
	}
	return nil
}
