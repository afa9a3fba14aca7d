package reason

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semlink/rdf"
	"github.com/c360studio/semlink/sparql"
	"github.com/c360studio/semlink/vocabulary/semlink"
)

const libraryOntology = `
@prefix rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#> .
@prefix rdfs: <http://www.w3.org/2000/01/rdf-schema#> .
@prefix owl: <http://www.w3.org/2002/07/owl#> .
@prefix schema: <https://schema.org/> .
@prefix ex: <http://example.org/> .

ex:Person a rdfs:Class .
ex:Book a rdfs:Class .
ex:Organization a rdfs:Class .
ex:Author rdfs:subClassOf ex:Person .

ex:name a rdf:Property ;
    rdfs:domain ex:Person ;
    rdfs:range rdfs:Literal .

ex:author a rdf:Property ;
    rdfs:domain ex:Book ;
    rdfs:range ex:Person .

ex:publisher a rdf:Property ;
    rdfs:domain ex:Book ;
    rdfs:range ex:Organization .

ex:worksFor a rdf:Property ;
    rdfs:domain ex:Person ;
    rdfs:range ex:Organization .

ex:title a rdf:Property ;
    schema:domainIncludes ex:Book ;
    schema:domainIncludes ex:Organization ;
    rdfs:range rdfs:Literal .
`

func TestCheckQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name: "valid query",
			query: `PREFIX ex: <http://example.org/>
SELECT ?person ?name WHERE {
    ?person a ex:Person .
    ?person ex:name ?name .
}`,
			want: "",
		},
		{
			name: "subclass satisfies domain",
			query: `PREFIX ex: <http://example.org/>
SELECT ?a ?name WHERE { ?a a ex:Author ; ex:name ?name }`,
			want: "",
		},
		{
			name: "domain violation",
			query: `PREFIX ex: <http://example.org/>
SELECT ?book ?name WHERE {
    ?book a ex:Book .
    ?book ex:name ?name .
}`,
			want: "Violation type: https://w3id.org/obqc#DomainViolation - Subject ?book is not typed as " +
				"http://example.org/Person which is the declared domain of http://example.org/name.",
		},
		{
			name: "undefined property",
			query: `PREFIX ex: <http://example.org/>
SELECT ?person ?age WHERE {
    ?person a ex:Person .
    ?person ex:age ?age .
}`,
			want: "Violation type: https://w3id.org/obqc#UndefinedProperty - Property " +
				"http://example.org/age is not defined in ontology or as schema:Property.",
		},
		{
			name: "multiple domains on untyped subject",
			query: `PREFIX ex: <http://example.org/>
SELECT ?something ?title WHERE {
    ?something ex:title ?title .
}`,
			want: "Violation type: https://w3id.org/obqc#MultipleDomain - Property " +
				"http://example.org/title has multiple domain declarations; specify subject type.",
		},
		{
			name: "range violation",
			query: `PREFIX ex: <http://example.org/>
SELECT ?b ?o WHERE {
    ?b a ex:Book ; ex:publisher ?o .
    ?o a ex:Person .
}`,
			want: "Violation type: https://w3id.org/obqc#RangeViolation - Object ?o is not typed as " +
				"http://example.org/Organization which is the declared range of http://example.org/publisher.",
		},
		{
			name: "property lists and literals",
			query: `PREFIX ex: <http://example.org/>
SELECT ?person ?org WHERE {
    ?person a ex:Person ;
            ex:name "John" ;
            ex:worksFor ?org .
    ?org a ex:Organization .
}`,
			want: "",
		},
		{
			name: "patterns inside optional and union",
			query: `PREFIX ex: <http://example.org/>
SELECT * WHERE {
    ?person a ex:Person .
    OPTIONAL { ?person ex:age ?age }
    { ?book a ex:Book } UNION { ?book ex:name ?n }
}`,
			want: "Violation type: https://w3id.org/obqc#DomainViolation - Subject ?book is not typed as " +
				"http://example.org/Person which is the declared domain of http://example.org/name.\n" +
				"Violation type: https://w3id.org/obqc#UndefinedProperty - Property " +
				"http://example.org/age is not defined in ontology or as schema:Property.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckQuery(context.Background(), tt.query, libraryOntology)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckQueryInvalidOntology(t *testing.T) {
	_, err := CheckQuery(context.Background(), `SELECT * WHERE { ?s ?p ?o }`, `ex:broken a`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse ontology")
}

func TestQueryGraph(t *testing.T) {
	g := QueryGraph(`PREFIX ex: <http://example.org/>
SELECT ?s WHERE { ?s ex:knows [ ex:name "Ann" ] ; ^ex:member ?team . }`)

	s := rdf.NewIRI(semlink.VarNamespace + "s")
	team := rdf.NewIRI(semlink.VarNamespace + "team")
	assert.True(t, g.HasType(s, semlink.VarVariable))
	assert.True(t, g.HasType(team, semlink.VarVariable))
	assert.True(t, g.Has(rdf.Triple{S: team, P: rdf.NewIRI("http://example.org/member"), O: s}))

	friends := g.Objects(s, rdf.NewIRI("http://example.org/knows"))
	require.Len(t, friends, 1)
	assert.True(t, strings.HasPrefix(friends[0].Value, semlink.VarNamespace+"bnode_"))
	name, ok := g.Object(friends[0], rdf.NewIRI("http://example.org/name"))
	require.True(t, ok)
	assert.Equal(t, rdf.NewLiteral("Ann"), name)
	assert.Equal(t, "http://example.org/", g.Prefixes()["ex"])
}

func TestQueryGraphFallback(t *testing.T) {
	query := `PREFIX ex: <http://example.org/>
# people with an age
SELECT ?x WHERE { ?x ex:name ?n . ?x ex:age ?a . FILTER(?a > ) }`

	g := QueryGraph(query)
	x := rdf.NewIRI(semlink.VarNamespace + "x")
	assert.True(t, g.HasType(x, semlink.VarVariable))
	assert.True(t, g.Has(rdf.Triple{
		S: x,
		P: rdf.NewIRI("http://example.org/age"),
		O: rdf.NewIRI(semlink.VarNamespace + "a"),
	}))
	assert.Equal(t, rdf.SchemaNS, g.Prefixes()["schema"])

	got, err := CheckQuery(context.Background(), query, libraryOntology)
	require.NoError(t, err)
	assert.Contains(t, got, "http://example.org/age is not defined")
}

func TestQueryGraphFallbackWithoutWhere(t *testing.T) {
	g := QueryGraph(`this is not sparql`)
	assert.Zero(t, g.Len())
}

func TestTermFromToken(t *testing.T) {
	prefixes := map[string]string{"ex": "http://example.org/"}
	tests := []struct {
		tok  string
		want rdf.Term
	}{
		{"<http://example.org/a>", rdf.NewIRI("http://example.org/a")},
		{`"John"`, rdf.NewLiteral("John")},
		{`'John'`, rdf.NewLiteral("John")},
		{"?person", rdf.NewIRI(semlink.VarNamespace + "person")},
		{"ex:name", rdf.NewIRI("http://example.org/name")},
		{"a", rdfType},
		{"42", rdf.NewInteger(42)},
		{"4.5", rdf.NewDouble(4.5)},
		{"unknown:thing", rdf.NewLiteral("unknown:thing")},
		{"plain", rdf.NewLiteral("plain")},
	}
	for _, tt := range tests {
		t.Run(tt.tok, func(t *testing.T) {
			assert.Equal(t, tt.want, termFromToken(tt.tok, prefixes))
		})
	}
}

func TestValidateQueryAgainstOntology(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.ttl")
	require.NoError(t, os.WriteFile(path, []byte(libraryOntology), 0o644))

	res, err := ValidateQueryAgainstOntology(context.Background(), `PREFIX ex: <http://example.org/>
SELECT ?p ?age WHERE { ?p a ex:Person ; ex:age ?age }`, "", path)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	require.Len(t, res.Issues, 1)
	assert.Contains(t, res.Issues[0], "UndefinedProperty")
	assert.Equal(t, []string{"Check for typos or use a defined property from the ontology."}, res.Suggestions)

	res, err = ValidateQueryAgainstOntology(context.Background(), `PREFIX ex: <http://example.org/>
SELECT ?p WHERE { ?p a ex:Person }`, libraryOntology, "")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Issues)

	_, err = ValidateQueryAgainstOntology(context.Background(), `SELECT * WHERE { ?s ?p ?o }`, "", "")
	assert.ErrorIs(t, err, ErrNoOntology)

	_, err = ValidateQueryAgainstOntology(context.Background(), `SELECT * WHERE { ?s ?p ?o }`, "", filepath.Join(t.TempDir(), "missing.ttl"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRefineQueryWithOntology(t *testing.T) {
	t.Run("valid query", func(t *testing.T) {
		res, err := RefineQueryWithOntology(context.Background(), `PREFIX ex: <http://example.org/>
SELECT ?person ?name WHERE { ?person a ex:Person . ?person ex:name ?name . } LIMIT 10`, libraryOntology, "", 0)
		require.NoError(t, err)
		assert.True(t, res.IsValid)
		assert.True(t, res.RefinementComplete)
		assert.Zero(t, res.IterationsCount)
		assert.Empty(t, res.Iterations)
		assert.Empty(t, res.Message)
	})

	t.Run("unresolvable issue hits the iteration cap", func(t *testing.T) {
		query := `PREFIX ex: <http://example.org/>
SELECT ?person ?age WHERE { ?person a ex:Person . ?person ex:age ?age . }`
		res, err := RefineQueryWithOntology(context.Background(), query, libraryOntology, "", 3)
		require.NoError(t, err)

		assert.True(t, res.Success)
		assert.False(t, res.IsValid)
		assert.False(t, res.RefinementComplete)
		assert.Equal(t, 3, res.IterationsCount)
		require.Len(t, res.Iterations, 3)
		assert.Equal(t, StepPatternCheck, res.Iterations[0].Type)
		assert.Equal(t, StepOntologyValidation, res.Iterations[1].Type)
		assert.Equal(t, 1, res.Iterations[1].IssuesFound)
		assert.Contains(t, res.RefinedQuery, "LIMIT 100")
		assert.Equal(t, query, res.OriginalQuery)
		assert.Equal(t, "Reached maximum iterations (3) without fully resolving all issues.", res.Message)
	})
}

func TestEmbeddedRulesParse(t *testing.T) {
	g, err := rdf.ParseTurtle(obqcShapes)
	require.NoError(t, err)

	sh := rdf.SHNS
	shape := rdf.NewIRI("https://w3id.org/obqc#QueryShape")
	rules := g.Objects(shape, rdf.NewIRI(sh+"rule"))
	require.Len(t, rules, 4)

	for _, rule := range rules {
		construct, ok := g.Object(rule, rdf.NewIRI(sh+"construct"))
		require.True(t, ok, "rule %v has no sh:construct", rule)
		q, err := sparql.Parse(construct.Value)
		require.NoError(t, err)
		assert.Equal(t, sparql.FormConstruct, q.Form)
	}
}
