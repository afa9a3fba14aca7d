package knowledge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const peopleDoc = `{
  "@context": {
    "ex": "http://example.org/",
    "schema": "https://schema.org/",
    "name": "https://schema.org/name",
    "knows": {"@id": "https://schema.org/knows", "@type": "@id"},
    "worksFor": {"@id": "https://schema.org/worksFor", "@type": "@id"},
    "label": "http://www.w3.org/2000/01/rdf-schema#label"
  },
  "@graph": [
    {"@id": "http://example.org/alice", "@type": "schema:Person", "name": "Alice", "label": "Alice Liddell",
     "knows": {"@id": "http://example.org/bob"}, "worksFor": {"@id": "http://example.org/acme"}},
    {"@id": "http://example.org/bob", "@type": "https://schema.org/Person", "name": "Bob",
     "knows": [{"@id": "http://example.org/carol"}, {"@id": "http://example.org/zed"}]},
    {"@id": "http://example.org/carol", "@type": ["schema:Person", "ex:Author"], "name": "Carol"},
    {"@id": "http://example.org/acme", "@type": "schema:Organization", "name": "ACME", "label": "Acme Corporation"}
  ]
}`

func loadDoc(t *testing.T, doc string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(doc), &m))
	return m
}

func ids(entities []Entity) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		id, _ := e["@id"].(string)
		out = append(out, id)
	}
	return out
}

func TestNew_Empty(t *testing.T) {
	b := New(nil)
	assert.Empty(t, b.Graph())
	assert.Empty(t, b.Entities())
	assert.Equal(t, map[string]any{}, b.Context())
	assert.Equal(t, "knowledge base with 0 entities", b.String())
}

func TestBase_Entities(t *testing.T) {
	b := New(map[string]any{"@id": "http://example.org/x", "@context": "https://schema.org/", "name": "X"})
	entities := b.Entities()
	require.Len(t, entities, 1)
	assert.Equal(t, "X", entities[0]["name"])
	assert.NotContains(t, entities[0], "@context")
	assert.Nil(t, b.Context())
}

func TestBase_FindEntity(t *testing.T) {
	b := New(loadDoc(t, peopleDoc))
	tests := []struct {
		name string
		opts FindOptions
		want []string
	}{
		{"exact id", FindOptions{ID: "http://example.org/bob"}, []string{"http://example.org/bob"}},
		{"last segment", FindOptions{ID: "carol"}, []string{"http://example.org/carol"}},
		{"case insensitive", FindOptions{ID: "ACME"}, []string{"http://example.org/acme"}},
		{"case sensitive miss", FindOptions{ID: "ACME", CaseSensitive: true}, []string{}},
		{"label", FindOptions{Label: "liddell"}, []string{"http://example.org/alice"}},
		{"id used as label", FindOptions{ID: "corporation"}, []string{"http://example.org/acme"}},
		{"type only", FindOptions{Type: "schema:Person"}, []string{"http://example.org/alice", "http://example.org/bob", "http://example.org/carol"}},
		{"type and id", FindOptions{Type: "Organization", ID: "acme"}, []string{"http://example.org/acme"}},
		{"no match", FindOptions{ID: "nobody"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(b.FindEntity(tt.opts)))
		})
	}
}

func TestBase_FindEntityOrdering(t *testing.T) {
	b := New(map[string]any{"@graph": []any{
		map[string]any{"@id": "urn:n:node-x"},
		map[string]any{"@id": "urn:n:other", "label": "about x things"},
		map[string]any{"@id": "x"},
	}})
	assert.Equal(t, []string{"x", "urn:n:other", "urn:n:node-x"},
		ids(b.FindEntity(FindOptions{ID: "x"})))
	assert.Equal(t, []string{"x", "urn:n:node-x"},
		ids(b.FindEntity(FindOptions{ID: "x", IDFirst: true})))
}

func TestBase_HasType(t *testing.T) {
	b := New(loadDoc(t, peopleDoc))
	alice := b.FindEntity(FindOptions{ID: "http://example.org/alice"})[0]
	bob := b.FindEntity(FindOptions{ID: "http://example.org/bob"})[0]
	tests := []struct {
		name   string
		entity Entity
		typ    string
		want   bool
	}{
		{"exact", alice, "schema:Person", true},
		{"prefixed to full iri", bob, "schema:Person", true},
		{"full iri to prefixed", alice, "https://schema.org/Person", true},
		{"local name", bob, "Person", true},
		{"standard prefix", Entity{"@type": "http://www.w3.org/2002/07/owl#Class"}, "owl:Class", true},
		{"other type", alice, "schema:Organization", false},
		{"no type", Entity{"@id": "x"}, "Person", false},
		{"nil entity", nil, "Person", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.HasType(tt.entity, tt.typ))
		})
	}
}

func TestBase_Query(t *testing.T) {
	b := New(loadDoc(t, peopleDoc))

	got, err := b.Query("type", "schema:Person")
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = b.Query("property", "worksFor")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://example.org/alice"}, ids(got))

	got, err = b.Query("value", "Bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://example.org/bob"}, ids(got))

	_, err = b.Query("shape", "x")
	assert.ErrorIs(t, err, ErrUnknownQuery)

	assert.Contains(t, b.QueryMarkdown("value", "Bob"), "# Query Results: value='Bob'")
	assert.Equal(t, "*No results found for value='Nobody'*", b.QueryMarkdown("value", "Nobody"))
}

func TestBase_Markdown(t *testing.T) {
	b := New(loadDoc(t, peopleDoc))

	summary := b.SummarizeMarkdown()
	assert.Contains(t, summary, "- **Graph Entities:** 4")
	assert.Contains(t, summary, "- **schema:Person**: 2")

	md := b.Markdown()
	assert.Contains(t, md, "### Context (6 prefixes)")
	assert.Contains(t, md, "... and more")
	assert.Contains(t, md, "### Graph (4 entities)")

	display := b.DisplayEntity("http://example.org/bob")
	assert.Contains(t, display, "### https://schema.org/Person: http://example.org/bob")
	assert.Contains(t, display, "- [http://example.org/carol](http://example.org/carol)")
	assert.Equal(t, "*Entity with ID 'nope' not found*", b.DisplayEntity("nope"))

	desc := b.DescribeEntity(b.FindEntity(FindOptions{ID: "acme"})[0])
	assert.Contains(t, desc, "## Entity: http://example.org/acme")
	assert.Contains(t, desc, "**Labels**: Acme Corporation")
	assert.Contains(t, desc, "- name: ACME")
	assert.Equal(t, "No entity provided", b.DescribeEntity(nil))
}

func TestBase_FindTerm(t *testing.T) {
	b := New(loadDoc(t, peopleDoc))

	out := b.FindTerm("carol", "all")
	assert.Contains(t, out, "# Found 1 terms matching 'carol'")
	assert.Contains(t, out, "## Term 1: carol")

	out = b.FindTerm("Author", "type")
	assert.Contains(t, out, "## Entity: http://example.org/carol")

	assert.Equal(t, "No terms found matching 'zzz' in the vocabulary.", b.FindTerm("zzz", ""))
}
