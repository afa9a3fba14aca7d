package shacl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semlink/rdf"
)

const ancestorShapes = `ex:S a sh:NodeShape ; sh:targetSubjectsOf ex:parent ;
    sh:rule [ a sh:TripleRule ; sh:order 1 ;
        sh:subject sh:this ; sh:predicate ex:ancestor ; sh:object [ sh:path ex:parent ] ] ;
    sh:rule [ a sh:TripleRule ; sh:order 2 ;
        sh:subject sh:this ; sh:predicate ex:ancestor ; sh:object [ sh:path ( ex:parent ex:ancestor ) ] ] .`

const ancestorData = `ex:a ex:parent ex:b .
ex:b ex:parent ex:c .
ex:c ex:parent ex:d .`

func ancestors(g *rdf.Graph) int {
	p := ex("ancestor")
	return len(g.Match(nil, &p, nil))
}

func TestTripleRuleIteration(t *testing.T) {
	tests := []struct {
		name    string
		iterate bool
		want    int
	}{
		{name: "single pass", iterate: false, want: 5},
		{name: "iterated to fixed point", iterate: true, want: 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := run(t, ancestorShapes, ancestorData, WithAdvanced(true), WithIterateRules(tt.iterate))
			assert.Equal(t, tt.want, ancestors(out.Data))
			assert.Equal(t, tt.want, out.Inferred.Len())
		})
	}
}

func TestRulesRequireAdvanced(t *testing.T) {
	out := run(t, ancestorShapes, ancestorData)
	assert.Zero(t, out.Inferred.Len())
	assert.Zero(t, ancestors(out.Data))
}

func TestSPARQLRule(t *testing.T) {
	shapes := `ex:S a sh:NodeShape ; sh:targetClass ex:Person ;
    sh:rule [ a sh:SPARQLRule ;
        sh:construct "CONSTRUCT { $this ex:label ?upper } WHERE { $this ex:name ?n BIND(UCASE(?n) AS ?upper) }" ] .`
	out := run(t, shapes, `ex:a a ex:Person ; ex:name "alice" .`, WithAdvanced(true))

	label, ok := out.Data.Object(ex("a"), ex("label"))
	require.True(t, ok)
	assert.Equal(t, "ALICE", label.Value)
	assert.Equal(t, 1, out.Inferred.Len())
}

func TestSPARQLRuleBlankNodesAreFresh(t *testing.T) {
	shapes := `ex:S a sh:NodeShape ; sh:targetNode ex:q ;
    sh:rule [ a sh:SPARQLRule ; sh:order 1 ; sh:construct "CONSTRUCT { _:v a ex:First } WHERE { }" ] ;
    sh:rule [ a sh:SPARQLRule ; sh:order 2 ; sh:construct "CONSTRUCT { _:v a ex:Second } WHERE { }" ] .`
	out := run(t, shapes, `ex:q ex:p ex:o .`, WithAdvanced(true))

	first := out.Data.Subjects(rdfType, ex("First"))
	second := out.Data.Subjects(rdfType, ex("Second"))
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0], second[0])
}

func TestRuleCondition(t *testing.T) {
	shapes := `ex:S a sh:NodeShape ; sh:targetClass ex:Person ;
    sh:rule [ a sh:TripleRule ;
        sh:condition [ sh:property [ sh:path ex:age ; sh:minInclusive 18 ] ] ;
        sh:subject sh:this ; sh:predicate rdf:type ; sh:object ex:Adult ] .`
	data := `ex:a a ex:Person ; ex:age 30 .
ex:b a ex:Person ; ex:age 10 .`

	out := run(t, shapes, data, WithAdvanced(true))
	assert.Equal(t, []rdf.Term{ex("a")}, out.Data.Subjects(rdfType, ex("Adult")))
}

func TestDeactivatedRule(t *testing.T) {
	shapes := `ex:S a sh:NodeShape ; sh:targetClass ex:Person ;
    sh:rule [ a sh:TripleRule ; sh:deactivated true ;
        sh:subject sh:this ; sh:predicate rdf:type ; sh:object ex:Agent ] .`
	out := run(t, shapes, `ex:a a ex:Person .`, WithAdvanced(true))
	assert.Zero(t, out.Inferred.Len())

	sg, err := ParseShapes(parse(t, shapes))
	require.NoError(t, err)
	assert.Empty(t, sg.Rules())
}

func TestRuleIterationLimit(t *testing.T) {
	shapes := `ex:S a sh:NodeShape ; sh:targetClass ex:Person ;
    sh:rule [ a sh:SPARQLRule ; sh:construct "CONSTRUCT { $this ex:next _:n } WHERE { }" ] .`

	_, err := Validate(context.Background(), parse(t, `ex:a a ex:Person .`), parse(t, shapes),
		WithAdvanced(true), WithIterateRules(true), WithMaxIterations(3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 iterations")
}

func TestRulesBeforeValidation(t *testing.T) {
	shapes := `ex:S a sh:NodeShape ; sh:targetClass ex:Person ;
    sh:rule [ a sh:TripleRule ; sh:subject sh:this ; sh:predicate ex:status ; sh:object "checked" ] ;
    sh:property [ sh:path ex:status ; sh:minCount 1 ] .`

	out := run(t, shapes, `ex:a a ex:Person .`, WithAdvanced(true))
	assert.True(t, out.Conforms)

	out = run(t, shapes, `ex:a a ex:Person .`)
	assert.False(t, out.Conforms)
}
