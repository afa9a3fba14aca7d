//go:build integration

package graph

import (
	"context"
	"testing"

	"github.com/c360studio/semstreams/natsclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semlink/rdf"
)

func TestKVBackend_RoundTrip(t *testing.T) {
	tc := natsclient.NewTestClient(t, natsclient.WithJetStream())
	ctx := context.Background()

	b, err := NewKVBackend(ctx, tc.Client, WithBucket("SEMLINK_GRAPHS_TEST"))
	require.NoError(t, err)

	size, err := b.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, size)

	n, err := b.AddNQuads(ctx, "<http://example.org/a> <http://example.org/p> _:x .\n_:x <http://example.org/q> \"v\" .\n", "http://example.org/g")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = b.AddNamedGraph(ctx, "urn:graph:other", "<http://example.org/c> <http://example.org/p> <http://example.org/d> .")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ds, err := b.Dataset(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://example.org/g", "urn:graph:other"}, ds.Names())
	assert.Equal(t, 3, ds.Len())

	// Stored blank nodes keep their identity across reads.
	g, _ := ds.Lookup("http://example.org/g")
	obj, ok := g.Object(rdf.NewIRI("http://example.org/a"), rdf.NewIRI("http://example.org/p"))
	require.True(t, ok)
	v, ok := g.Object(obj, rdf.NewIRI("http://example.org/q"))
	require.True(t, ok)
	assert.Equal(t, "v", v.Value)

	p := rdf.NewIRI("http://example.org/p")
	triples, err := b.Triples(ctx, nil, &p, nil)
	require.NoError(t, err)
	assert.Len(t, triples, 2)

	require.NoError(t, b.Delete(ctx, "urn:graph:other"))
	size, err = b.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, size)
}

func TestKVBackend_Manager(t *testing.T) {
	tc := natsclient.NewTestClient(t, natsclient.WithJetStream())
	ctx := context.Background()

	b, err := NewKVBackend(ctx, tc.Client, WithBucket("SEMLINK_GRAPHS_MANAGER"))
	require.NoError(t, err)
	m := NewManager(WithBackend(b))

	_, err = m.IngestEntity(ctx, map[string]any{
		"@context": schemaVocab,
		"@id":      "http://example.org/book",
		"author":   map[string]any{"@id": "http://example.org/alice", "name": "Alice"},
	}, "")
	require.NoError(t, err)

	// A second manager over the same bucket sees the stored graphs.
	other, err := NewKVBackend(ctx, tc.Client, WithBucket("SEMLINK_GRAPHS_MANAGER"))
	require.NoError(t, err)
	ds, err := NewManager(WithBackend(other)).Dataset(ctx)
	require.NoError(t, err)
	_, ok := ds.Lookup("http://example.org/book#child")
	assert.True(t, ok)
}

func TestNewKVBackend_RequiresClient(t *testing.T) {
	_, err := NewKVBackend(context.Background(), nil)
	assert.Error(t, err)
}
