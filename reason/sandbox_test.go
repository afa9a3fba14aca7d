package reason

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semlink/rdf"
)

const peopleJSONLD = `{
  "@context": {"ex": "http://example.org/"},
  "@graph": [
    {"@id": "ex:alice", "@type": "ex:Person", "ex:name": "Alice", "ex:parent": {"@id": "ex:carol"}},
    {"@id": "ex:bob", "@type": "ex:Person"}
  ]
}`

const nameShapes = `@prefix ex: <http://example.org/> .
@prefix sh: <http://www.w3.org/ns/shacl#> .

ex:PersonShape a sh:NodeShape ;
    sh:targetClass ex:Person ;
    sh:property [ sh:path ex:name ; sh:minCount 1 ] .
`

const ruleShapes = `@prefix ex: <http://example.org/> .
@prefix sh: <http://www.w3.org/ns/shacl#> .

ex:ChildShape a sh:NodeShape ;
    sh:targetSubjectsOf ex:parent ;
    sh:rule [ a sh:TripleRule ;
        sh:subject [ sh:path ex:parent ] ; sh:predicate ex:child ; sh:object sh:this ] .
`

func patchGraph(t *testing.T, patch string) *rdf.Graph {
	t.Helper()
	ds, err := rdf.ParseJSONLD(patch, nil)
	require.NoError(t, err)
	return ds.Union()
}

func TestReasonOverShapes(t *testing.T) {
	patch, summary, err := ReasonOver(context.Background(), peopleJSONLD, nameShapes, "")
	require.NoError(t, err)

	g := patchGraph(t, patch)
	reports := g.Subjects(rdfType, rdf.NewIRI(rdf.SHNS+"ValidationReport"))
	require.Len(t, reports, 1)
	conforms, ok := g.Object(reports[0], rdf.NewIRI(rdf.SHNS+"conforms"))
	require.True(t, ok)
	assert.Equal(t, "false", conforms.Value)

	focus := g.Objects(g.Objects(reports[0], rdf.NewIRI(rdf.SHNS+"result"))[0], rdf.NewIRI(rdf.SHNS+"focusNode"))
	assert.Equal(t, []rdf.Term{rdf.NewIRI("http://example.org/bob")}, focus)

	assert.Contains(t, summary, "SHACL run; conforms:false; added ")
	assert.Contains(t, summary, "; violations found")
	acts := g.Subjects(rdfType, provActivity)
	require.Len(t, acts, 1)
	gen, ok := g.Object(reports[0], provWasGeneratedBy)
	require.True(t, ok)
	assert.Equal(t, acts[0], gen)
}

func TestReasonOverRules(t *testing.T) {
	patch, summary, err := ReasonOver(context.Background(), peopleJSONLD, ruleShapes, "")
	require.NoError(t, err)
	assert.Contains(t, summary, "conforms:true")
	assert.NotContains(t, summary, "violations found")

	g := patchGraph(t, patch)
	assert.True(t, g.Has(rdf.Triple{
		S: rdf.NewIRI("http://example.org/carol"),
		P: rdf.NewIRI("http://example.org/child"),
		O: rdf.NewIRI("http://example.org/alice"),
	}))
	gen, ok := g.Object(rdf.NewIRI("http://example.org/carol"), provWasGeneratedBy)
	require.True(t, ok)
	assert.True(t, g.HasType(gen, rdf.PROVActivity))
}

func TestReasonOverConstruct(t *testing.T) {
	query := `PREFIX ex: <http://example.org/>
CONSTRUCT { ?p ex:label ?n } WHERE { ?p ex:name ?n }`

	patch, summary, err := ReasonOver(context.Background(), peopleJSONLD, "", query)
	require.NoError(t, err)
	assert.Equal(t, "CONSTRUCT produced 1 triples", summary)

	g := patchGraph(t, patch)
	label, ok := g.Object(rdf.NewIRI("http://example.org/alice"), rdf.NewIRI("http://example.org/label"))
	require.True(t, ok)
	assert.Equal(t, "Alice", label.Value)
	_, ok = g.Object(rdf.NewIRI("http://example.org/alice"), provWasGeneratedBy)
	assert.True(t, ok)
}

func TestReasonOverNoop(t *testing.T) {
	patch, summary, err := ReasonOver(context.Background(), peopleJSONLD, "", "")
	require.NoError(t, err)
	assert.Equal(t, "no-op", summary)

	g := patchGraph(t, patch)
	assert.Equal(t, 2, g.Len(), "only the activity remains")
}

func TestReasonOverErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		shapes  string
		query   string
		wantErr error
		msg     string
	}{
		{name: "invalid json", data: `{"@id": `, msg: "parse data"},
		{name: "invalid shapes", data: peopleJSONLD, shapes: `ex:S a`, msg: "parse shapes"},
		{name: "select query", data: peopleJSONLD, query: `SELECT * WHERE { ?s ?p ?o }`, wantErr: ErrNotConstruct},
		{name: "bad query", data: peopleJSONLD, query: `CONSTRUCT {`, msg: "evaluate query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReasonOver(context.Background(), tt.data, tt.shapes, tt.query)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestRunShapesCountsReportTriples(t *testing.T) {
	ds, err := rdf.ParseJSONLD(peopleJSONLD, nil)
	require.NoError(t, err)
	shapes, err := rdf.ParseTurtle(ruleShapes + `
ex:NameShape a sh:NodeShape ;
    sh:targetClass ex:Person ;
    sh:property [ sh:path ex:name ; sh:minCount 1 ] .
`)
	require.NoError(t, err)

	patch, summary, err := runShapes(context.Background(), ds.Union(), shapes)
	require.NoError(t, err)

	child := rdf.NewIRI("http://example.org/child")
	assert.Len(t, patch.Match(nil, &child, nil), 1)
	assert.NotEmpty(t, patch.Subjects(rdfType, rdf.NewIRI(rdf.SHNS+"ValidationReport")))
	assert.Contains(t, summary, fmt.Sprintf("added %d triples", patch.Len()))
}
