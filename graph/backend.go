// Package graph stores linked data as named RDF graphs and tracks how
// ingested JSON-LD entities relate to one another.
package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/c360studio/semlink/rdf"
)

// Backend holds quads grouped by named graph.
type Backend interface {
	// AddNQuads adds N-Quads text. Triples in the default graph of the text
	// are stored under graphID; quads naming a graph keep it.
	AddNQuads(ctx context.Context, nquads, graphID string) (int, error)

	// AddNamedGraph adds every statement of nquads to graphID regardless of
	// the graph the text names.
	AddNamedGraph(ctx context.Context, graphID, nquads string) (int, error)

	// Triples returns the statements of all graphs matching the pattern.
	// A nil term matches anything.
	Triples(ctx context.Context, s, p, o *rdf.Term) ([]rdf.Triple, error)

	// Size returns the number of quads stored.
	Size(ctx context.Context) (int, error)

	// Dataset returns a copy of the stored data.
	Dataset(ctx context.Context) (*rdf.Dataset, error)
}

// targetQuads parses nquads and assigns graph names for storage. When force
// is set every quad moves to graphID, otherwise only default-graph triples do.
func targetQuads(nquads, graphID string, force bool) ([]rdf.Quad, error) {
	ds, err := rdf.ParseNQuads(nquads)
	if err != nil {
		return nil, err
	}
	quads := ds.Quads()
	for i := range quads {
		if force || quads[i].Graph == "" {
			quads[i].Graph = graphID
		}
	}
	return quads, nil
}

// MemoryBackend keeps quads in an rdf.Dataset.
type MemoryBackend struct {
	mu sync.RWMutex
	ds *rdf.Dataset
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{ds: rdf.NewDataset()}
}

func (b *MemoryBackend) AddNQuads(_ context.Context, nquads, graphID string) (int, error) {
	return b.add(nquads, graphID, false)
}

func (b *MemoryBackend) AddNamedGraph(_ context.Context, graphID, nquads string) (int, error) {
	if graphID == "" {
		return 0, fmt.Errorf("%w: graph id is required", ErrInvalidGraph)
	}
	return b.add(nquads, graphID, true)
}

func (b *MemoryBackend) add(nquads, graphID string, force bool) (int, error) {
	quads, err := targetQuads(nquads, graphID, force)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ds.AddQuads(quads), nil
}

func (b *MemoryBackend) Triples(_ context.Context, s, p, o *rdf.Term) ([]rdf.Triple, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return matchDataset(b.ds, s, p, o), nil
}

func (b *MemoryBackend) Size(context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ds.Len(), nil
}

func (b *MemoryBackend) Dataset(context.Context) (*rdf.Dataset, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := rdf.NewDataset()
	out.AddQuads(b.ds.Quads())
	return out, nil
}

func matchDataset(ds *rdf.Dataset, s, p, o *rdf.Term) []rdf.Triple {
	out := ds.Default().Match(s, p, o)
	for _, name := range ds.Names() {
		g, _ := ds.Lookup(name)
		out = append(out, g.Match(s, p, o)...)
	}
	return out
}
