package graph

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semlink/rdf"
	"github.com/c360studio/semlink/vocabulary/semlink"
)

var schemaVocab = map[string]any{"@vocab": rdf.SchemaNS}

func iri(s string) *rdf.Term {
	t := rdf.NewIRI(s)
	return &t
}

func TestManager_IngestNQuads(t *testing.T) {
	ctx := context.Background()
	m := NewManager()

	n, err := m.IngestNQuads(ctx, `<http://example.org/s> <http://example.org/p> "o" <http://example.org/g> .`, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	size, err := m.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	triples, err := m.Query(ctx, iri("http://example.org/s"), nil, nil)
	require.NoError(t, err)
	require.Len(t, triples, 1)
	assert.Equal(t, rdf.NewLiteral("o"), triples[0].O)

	ds, err := m.Dataset(ctx)
	require.NoError(t, err)
	g, ok := ds.Lookup("http://example.org/g")
	require.True(t, ok)
	assert.Equal(t, 1, g.Len())
}

func TestManager_IngestNQuadsGraphID(t *testing.T) {
	ctx := context.Background()
	m := NewManager()

	nt := "<http://example.org/a> <http://example.org/p> <http://example.org/b> .\n" +
		"<http://example.org/b> <http://example.org/p> <http://example.org/c> <http://example.org/kept> .\n"
	n, err := m.IngestNQuads(ctx, nt, "urn:graph:fetched")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ds, err := m.Dataset(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://example.org/kept", "urn:graph:fetched"}, ds.Names())
	assert.Equal(t, 0, ds.Default().Len())

	// Re-ingesting the same statements adds nothing.
	n, err = m.IngestNQuads(ctx, nt, "urn:graph:fetched")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	out, err := m.ExportNQuads(ctx)
	require.NoError(t, err)
	assert.Contains(t, out, "<urn:graph:fetched> .")
}

func TestManager_IngestNQuadsInvalid(t *testing.T) {
	m := NewManager()
	_, err := m.IngestNQuads(context.Background(), "<not n-quads", "")
	assert.Error(t, err)
}

func TestManager_DatasetIsSnapshot(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	_, err := m.IngestNQuads(ctx, "<http://example.org/a> <http://example.org/p> <http://example.org/b> .", "")
	require.NoError(t, err)

	ds, err := m.Dataset(ctx)
	require.NoError(t, err)
	ds.Default().AddSPO(rdf.NewIRI("http://example.org/x"), rdf.NewIRI("http://example.org/p"), rdf.NewIRI("http://example.org/y"))

	size, err := m.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestManager_IngestEntityChildren(t *testing.T) {
	ctx := context.Background()
	m := NewManager()

	doc := map[string]any{
		"@context": schemaVocab,
		"@id":      "http://example.org/book",
		"@type":    "Book",
		"name":     "Linked Data",
		"author": map[string]any{
			"@id":  "http://example.org/alice",
			"name": "Alice",
		},
	}
	id, err := m.IngestEntity(ctx, doc, "")
	require.NoError(t, err)
	assert.Equal(t, "http://example.org/book", id)
	assert.Equal(t, []string{"http://example.org/alice"}, m.Children("http://example.org/book"))
	assert.Empty(t, m.Children("http://example.org/alice"))

	parts, err := m.Query(ctx, iri("http://example.org/book"), iri(rdf.SchemaHasPart), nil)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "http://example.org/alice", parts[0].O.Value)

	partOf, err := m.Query(ctx, iri("http://example.org/alice"), iri(rdf.SchemaIsPartOf), iri("http://example.org/book"))
	require.NoError(t, err)
	assert.Len(t, partOf, 1)

	ds, err := m.Dataset(ctx)
	require.NoError(t, err)
	child, ok := ds.Lookup("http://example.org/book#child")
	require.True(t, ok)
	name, ok := child.Object(rdf.NewIRI("http://example.org/alice"), rdf.NewIRI(rdf.SchemaName))
	require.True(t, ok)
	assert.Equal(t, "Alice", name.Value)
}

func TestManager_IngestEntityMintsID(t *testing.T) {
	m := NewManager()
	doc := map[string]any{"@context": schemaVocab, "name": "Anonymous"}

	id, err := m.IngestEntity(context.Background(), doc, "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, semlink.PartitionIDPrefix), id)
	assert.Equal(t, id, doc["@id"])
}

func TestManager_IngestGraphArray(t *testing.T) {
	ctx := context.Background()
	m := NewManager()

	doc := map[string]any{
		"@context": schemaVocab,
		"@id":      "http://example.org/collection",
		"@graph": []any{
			map[string]any{"@id": "http://example.org/a", "name": "A"},
			map[string]any{"name": "B"},
			"not an object",
		},
	}
	id, err := m.IngestJSONLD(ctx, doc, "")
	require.NoError(t, err)
	assert.Equal(t, "http://example.org/collection", id)

	entries := m.GraphEntries(id)
	require.Len(t, entries, 2)
	assert.Equal(t, "http://example.org/a", entries[0])
	assert.True(t, strings.HasPrefix(entries[1], semlink.GraphIDPrefix), entries[1])

	ds, err := m.Dataset(ctx)
	require.NoError(t, err)
	for _, e := range entries {
		g, ok := ds.Lookup(e)
		require.True(t, ok, e)
		assert.Equal(t, 1, g.Len(), e)
	}

	typed, err := m.Query(ctx, iri(id), iri(rdf.RDFType), iri(semlink.ClassGraphContainer))
	require.NoError(t, err)
	assert.Len(t, typed, 1)

	refs, err := m.Query(ctx, iri(id), iri(semlink.PropGraphEntry), nil)
	require.NoError(t, err)
	assert.Len(t, refs, 2)
}

func TestManager_IngestJSONLDRejectsNonObject(t *testing.T) {
	m := NewManager()
	_, err := m.IngestJSONLD(context.Background(), []any{"x"}, "")
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

func TestMemoryBackend_AddNamedGraph(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	_, err := b.AddNamedGraph(ctx, "", "<http://example.org/a> <http://example.org/p> <http://example.org/b> .")
	assert.ErrorIs(t, err, ErrInvalidGraph)

	n, err := b.AddNamedGraph(ctx, "urn:g",
		"<http://example.org/a> <http://example.org/p> <http://example.org/b> <http://example.org/other> .")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ds, err := b.Dataset(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"urn:g"}, ds.Names())
}

func TestGraphKey(t *testing.T) {
	tests := []string{
		"",
		"http://example.org/g",
		"urn:graph:123e4567-e89b-12d3-a456-426614174000",
		"http://example.org/book#child",
	}
	for _, id := range tests {
		key := graphKey(id)
		assert.NotContains(t, key, "#")
		assert.NotContains(t, key, ":")
		got, ok := graphIDFromKey(key)
		require.True(t, ok, key)
		assert.Equal(t, id, got)
	}

	_, ok := graphIDFromKey("other.key")
	assert.False(t, ok)
}
