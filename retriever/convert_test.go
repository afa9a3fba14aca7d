package retriever

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semlink/rdf"
)

func TestJSONParse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    any
		warning string
		wantErr bool
	}{
		{"valid", `{"a": 1}`, map[string]any{"a": 1.0}, "", false},
		{"list", `[1, 2]`, []any{1.0, 2.0}, "", false},
		{"code fence", "```json\n{\"a\": 1,}\n```", map[string]any{"a": 1.0}, "", false},
		{"trailing commas", `{"a": [1, 2,], "b": 3,}`, map[string]any{"a": []any{1.0, 2.0}, "b": 3.0}, "", false},
		{"unterminated string", "{\"a\": \"hello\n}", map[string]any{"a": "hello"}, "", false},
		{"partial", `garbage {"a": 1} more {"bb": 22, "c": 3} end`, map[string]any{"bb": 22.0, "c": 3.0}, PartialJSON, false},
		{"hopeless", `not json at all`, nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, warning, err := JSONParse(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.warning, warning)
		})
	}
}

const personTurtle = `@prefix schema: <https://schema.org/> .
<http://example.org/alice> a schema:Person ; schema:name "Alice" .
`

const personRDFXML = `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns:schema="https://schema.org/">
  <rdf:Description rdf:about="http://example.org/alice">
    <schema:name>Alice</schema:name>
  </rdf:Description>
</rdf:RDF>`

func TestRDFToJSONLD(t *testing.T) {
	doc, format, err := RDFToJSONLD(personTurtle, rdf.FormatTurtle, "")
	require.NoError(t, err)
	assert.Equal(t, rdf.FormatTurtle, format)
	assert.Equal(t, map[string]any{}, doc["@context"])
	graph := doc["@graph"].([]any)
	require.Len(t, graph, 1)
	node := graph[0].(map[string]any)
	assert.Equal(t, "http://example.org/alice", node["@id"])
	assert.Equal(t, []any{"https://schema.org/Person"}, node["@type"])

	_, format, err = RDFToJSONLD(personRDFXML, "", "")
	require.NoError(t, err)
	assert.Equal(t, rdf.FormatRDFXML, format)

	_, _, err = RDFToJSONLD("@prefix ex: <http://example.org/> .", rdf.FormatTurtle, "")
	assert.ErrorIs(t, err, ErrNoTriples)

	_, _, err = RDFToJSONLD("this is { not rdf", "", "")
	assert.Error(t, err)
}
