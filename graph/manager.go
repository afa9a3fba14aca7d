package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/c360studio/semstreams/natsclient"
	"github.com/google/uuid"
	"github.com/piprate/json-gold/ld"

	"github.com/c360studio/semlink/rdf"
	"github.com/c360studio/semlink/vocabulary/semlink"
)

// ErrInvalidGraph is returned for malformed graph input.
var ErrInvalidGraph = errors.New("invalid graph")

var (
	schemaHasPart  = rdf.NewIRI(rdf.SchemaHasPart)
	schemaIsPartOf = rdf.NewIRI(rdf.SchemaIsPartOf)
)

// Manager stores linked data in a Backend and remembers the parent/child
// structure of ingested JSON-LD entities.
type Manager struct {
	backend Backend
	loader  ld.DocumentLoader
	nc      *natsclient.Client
	logger  *slog.Logger

	mu          sync.RWMutex
	children    map[string][]string
	graphGroups map[string][]string
}

// Option configures a Manager.
type Option func(*Manager)

// WithBackend selects the store. The default is a MemoryBackend.
func WithBackend(b Backend) Option {
	return func(m *Manager) {
		if b != nil {
			m.backend = b
		}
	}
}

// WithDocumentLoader sets the loader used to resolve JSON-LD contexts.
func WithDocumentLoader(loader ld.DocumentLoader) Option {
	return func(m *Manager) {
		m.loader = loader
	}
}

// WithPublisher publishes a metadata entity for every stored named graph.
// A nil client disables publishing.
func WithPublisher(nc *natsclient.Client) Option {
	return func(m *Manager) {
		m.nc = nc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager returns a Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		backend:     NewMemoryBackend(),
		logger:      slog.Default(),
		children:    make(map[string][]string),
		graphGroups: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Backend returns the underlying store.
func (m *Manager) Backend() Backend { return m.backend }

// IngestNQuads stores N-Quads text, placing default-graph triples in graphID.
// It returns the number of new quads.
func (m *Manager) IngestNQuads(ctx context.Context, nquads, graphID string) (int, error) {
	n, err := m.backend.AddNQuads(ctx, nquads, graphID)
	if err != nil {
		return 0, fmt.Errorf("ingest n-quads: %w", err)
	}
	if graphID != "" {
		m.publish(ctx, GraphInfo{ID: graphID, Source: graphID, TripleCount: n})
	}
	return n, nil
}

// Query returns the stored triples matching the pattern. Nil terms are
// wildcards.
func (m *Manager) Query(ctx context.Context, s, p, o *rdf.Term) ([]rdf.Triple, error) {
	return m.backend.Triples(ctx, s, p, o)
}

// Size returns the number of stored quads.
func (m *Manager) Size(ctx context.Context) (int, error) {
	return m.backend.Size(ctx)
}

// Dataset returns a snapshot of everything stored, for SPARQL evaluation.
func (m *Manager) Dataset(ctx context.Context) (*rdf.Dataset, error) {
	return m.backend.Dataset(ctx)
}

// ExportNQuads serialises everything stored.
func (m *Manager) ExportNQuads(ctx context.Context) (string, error) {
	ds, err := m.backend.Dataset(ctx)
	if err != nil {
		return "", err
	}
	return rdf.WriteNQuads(ds), nil
}

// Children returns the ids of entities ingested with id as their parent.
func (m *Manager) Children(id string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.children[id]...)
}

// GraphEntries returns the named graphs created from the @graph array of
// the container entity id.
func (m *Manager) GraphEntries(id string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.graphGroups[id]...)
}

// IngestJSONLD decodes a JSON-LD object and ingests it as an entity.
func (m *Manager) IngestJSONLD(ctx context.Context, doc any, parentID string) (string, error) {
	obj, ok := doc.(map[string]any)
	if !ok {
		return "", fmt.Errorf("%w: JSON-LD entity must be an object, got %T", ErrInvalidGraph, doc)
	}
	return m.IngestEntity(ctx, obj, parentID)
}

// IngestEntity stores a JSON-LD entity and returns its id.
//
// An entity with a @graph array becomes a container: every entry is stored
// in its own named graph (minting urn:graph:<uuid> when it has no @id) and
// the container node lists them. Otherwise the entity goes to the default
// graph. Nested objects with an @id are children: they are stored in the
// named graph <parent>#child and linked with schema:hasPart and
// schema:isPartOf. Entities without an @id are given urn:uuid:<uuid>.
func (m *Manager) IngestEntity(ctx context.Context, entity map[string]any, parentID string) (string, error) {
	if entries, ok := entity["@graph"].([]any); ok {
		return m.ingestGraphArray(ctx, entity, entries)
	}

	id := entityID(entity, semlink.PartitionIDPrefix)
	nq, err := m.toNQuads(entity)
	if err != nil {
		return "", err
	}
	if _, err := m.backend.AddNQuads(ctx, nq, ""); err != nil {
		return "", fmt.Errorf("ingest entity %s: %w", id, err)
	}

	if parentID != "" {
		if err := m.link(ctx, parentID, id); err != nil {
			return "", err
		}
	}

	for _, child := range childEntities(entity) {
		if err := m.ingestChild(ctx, id, child); err != nil {
			return "", err
		}
	}
	return id, nil
}

func (m *Manager) ingestChild(ctx context.Context, parentID string, child map[string]any) error {
	nq, err := m.toNQuads(child)
	if err != nil {
		return err
	}
	graphID := parentID + "#child"
	n, err := m.backend.AddNamedGraph(ctx, graphID, nq)
	if err != nil {
		return fmt.Errorf("ingest child graph %s: %w", graphID, err)
	}
	m.publish(ctx, GraphInfo{ID: graphID, Parent: parentID, TripleCount: n})
	_, err = m.IngestEntity(ctx, child, parentID)
	return err
}

func (m *Manager) ingestGraphArray(ctx context.Context, container map[string]any, entries []any) (string, error) {
	id := entityID(container, semlink.PartitionIDPrefix)
	shared := container["@context"]

	var graphIDs []string
	for i, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			m.logger.Debug("Skipping non-object @graph entry", "container", id, "index", i)
			continue
		}
		graphID := entityID(entry, semlink.GraphIDPrefix)
		if _, has := entry["@context"]; !has && shared != nil {
			entry = withContext(entry, shared)
		}

		nq, err := m.toNQuads(entry)
		if err != nil {
			return "", err
		}
		n, err := m.backend.AddNamedGraph(ctx, graphID, nq)
		if err != nil {
			return "", fmt.Errorf("ingest graph entry %s: %w", graphID, err)
		}
		m.publish(ctx, GraphInfo{ID: graphID, Parent: id, TripleCount: n})
		graphIDs = append(graphIDs, graphID)

		for _, child := range childEntities(entry) {
			if err := m.ingestChild(ctx, graphID, child); err != nil {
				return "", err
			}
		}
	}

	m.mu.Lock()
	m.graphGroups[id] = graphIDs
	m.mu.Unlock()

	node := map[string]any{
		"@id":   id,
		"@type": semlink.ClassGraphContainer,
	}
	if len(graphIDs) > 0 {
		refs := make([]any, len(graphIDs))
		for i, g := range graphIDs {
			refs[i] = map[string]any{"@id": g}
		}
		node[semlink.PropGraphEntry] = refs
	}
	nq, err := m.toNQuads(node)
	if err != nil {
		return "", err
	}
	if _, err := m.backend.AddNQuads(ctx, nq, ""); err != nil {
		return "", fmt.Errorf("ingest container %s: %w", id, err)
	}
	return id, nil
}

// link records parent/child and stores hasPart and isPartOf triples.
func (m *Manager) link(ctx context.Context, parentID, childID string) error {
	m.mu.Lock()
	m.children[parentID] = append(m.children[parentID], childID)
	m.mu.Unlock()

	parent, child := rdf.NewIRI(parentID), rdf.NewIRI(childID)
	g := rdf.GraphOf(
		rdf.Triple{S: parent, P: schemaHasPart, O: child},
		rdf.Triple{S: child, P: schemaIsPartOf, O: parent},
	)
	if _, err := m.backend.AddNQuads(ctx, rdf.WriteNTriples(g), ""); err != nil {
		return fmt.Errorf("link %s to %s: %w", childID, parentID, err)
	}
	return nil
}

func (m *Manager) toNQuads(entity map[string]any) (string, error) {
	ds, err := rdf.JSONLDToDataset(entity, &rdf.ParseOptions{DocumentLoader: m.loader})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidGraph, err)
	}
	return rdf.WriteNQuads(ds), nil
}

func (m *Manager) publish(ctx context.Context, info GraphInfo) {
	if m.nc == nil {
		return
	}
	info.LoadedAt = time.Now()
	if err := PublishGraph(ctx, m.nc, info); err != nil {
		m.logger.Warn("Failed to publish graph metadata", "graph", info.ID, "error", err)
	}
}

// entityID returns the @id of entity, minting and assigning one with prefix
// when it is missing.
func entityID(entity map[string]any, prefix string) string {
	if id, ok := entity["@id"].(string); ok && id != "" {
		return id
	}
	id := prefix + uuid.NewString()
	entity["@id"] = id
	return id
}

func withContext(entity map[string]any, jsonldContext any) map[string]any {
	out := make(map[string]any, len(entity)+1)
	for k, v := range entity {
		out[k] = v
	}
	out["@context"] = jsonldContext
	return out
}

// childEntities returns the nested node objects with an @id, in key order.
// Children inherit the parent's @context when they have none.
func childEntities(entity map[string]any) []map[string]any {
	keys := make([]string, 0, len(entity))
	for k := range entity {
		if !strings.HasPrefix(k, "@") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	shared := entity["@context"]
	var out []map[string]any
	add := func(v any) {
		obj, ok := v.(map[string]any)
		if !ok {
			return
		}
		if id, _ := obj["@id"].(string); id == "" {
			return
		}
		if _, has := obj["@context"]; !has && shared != nil {
			obj = withContext(obj, shared)
		}
		out = append(out, obj)
	}
	for _, k := range keys {
		switch v := entity[k].(type) {
		case []any:
			for _, item := range v {
				add(item)
			}
		default:
			add(v)
		}
	}
	return out
}
