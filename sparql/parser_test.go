package sparql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueryForms(t *testing.T) {
	tests := []struct {
		name  string
		query string
		form  QueryForm
	}{
		{"select", "SELECT ?s WHERE { ?s ?p ?o }", FormSelect},
		{"select lowercase", "select ?s where { ?s ?p ?o }", FormSelect},
		{"ask", "ASK { ?s ?p ?o }", FormAsk},
		{"ask with where", "ASK WHERE { ?s ?p ?o }", FormAsk},
		{"construct", "CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }", FormConstruct},
		{"describe iri", "DESCRIBE <http://example.org/a>", FormDescribe},
		{"describe var", "DESCRIBE ?s WHERE { ?s a <http://example.org/T> }", FormDescribe},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.form, q.Form)
		})
	}
}

func TestParsePrefixesAndModifiers(t *testing.T) {
	q, err := Parse(`
PREFIX ex: <http://example.org/>
PREFIX foaf: <http://xmlns.com/foaf/0.1/>
SELECT DISTINCT ?name (COUNT(?f) AS ?friends)
WHERE {
  ?p a foaf:Person ;
     foaf:name ?name ;
     foaf:knows ?f .
}
GROUP BY ?name
ORDER BY DESC(?friends)
LIMIT 10 OFFSET 5`)
	require.NoError(t, err)

	assert.Equal(t, "http://example.org/", q.Prefixes["ex"])
	assert.True(t, q.Distinct)
	require.Len(t, q.Projection, 2)
	assert.Equal(t, "name", q.Projection[0].Var)
	assert.Equal(t, "friends", q.Projection[1].Var)
	assert.IsType(t, ExprAggregate{}, q.Projection[1].Expr)
	require.Len(t, q.GroupBy, 1)
	require.Len(t, q.OrderBy, 1)
	assert.True(t, q.OrderBy[0].Desc)
	assert.Equal(t, 10, q.Limit)
	assert.Equal(t, 5, q.Offset)

	triples := q.TriplePatterns()
	require.Len(t, triples, 3)
	assert.Equal(t, "p", triples[0].S.Var)
	assert.Equal(t, "http://www.w3.org/1999/02/22-rdf-syntax-ns#type", triples[0].P.Term.Value)
	assert.Equal(t, "http://xmlns.com/foaf/0.1/Person", triples[0].O.Term.Value)
}

func TestParseNoLimit(t *testing.T) {
	q, err := Parse("SELECT * WHERE { ?s ?p ?o }")
	require.NoError(t, err)
	assert.True(t, q.Star)
	assert.Equal(t, -1, q.Limit)
}

func TestTriplePatternsRecurse(t *testing.T) {
	q, err := Parse(`PREFIX ex: <http://example.org/>
SELECT ?s WHERE {
  ?s a ex:A .
  OPTIONAL { ?s ex:p ?o }
  { ?s ex:q ?x } UNION { ?s ex:r ?x }
  MINUS { ?s ex:hidden true }
  GRAPH ?g { ?s ex:inGraph ?y }
}`)
	require.NoError(t, err)
	assert.Len(t, q.TriplePatterns(), 6)
}

func TestParsePaths(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  any
	}{
		{"sequence", "SELECT * { ?s <http://e/a>/<http://e/b> ?o }", PathSequence{}},
		{"alternative", "SELECT * { ?s <http://e/a>|<http://e/b> ?o }", PathAlternative{}},
		{"inverse", "SELECT * { ?s ^<http://e/a> ?o }", PathInverse{}},
		{"one or more", "SELECT * { ?s <http://e/a>+ ?o }", PathRepeat{}},
		{"zero or more", "SELECT * { ?s <http://e/a>* ?o }", PathRepeat{}},
		{"zero or one", "SELECT * { ?s <http://e/a>? ?o }", PathRepeat{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(tt.query)
			require.NoError(t, err)
			triples := q.TriplePatterns()
			require.Len(t, triples, 1)
			require.NotNil(t, triples[0].Path)
			assert.IsType(t, tt.want, triples[0].Path)
		})
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"empty", ""},
		{"unknown form", "INSERT DATA { <a> <b> <c> }"},
		{"unclosed group", "SELECT ?s WHERE { ?s ?p ?o"},
		{"undeclared prefix", "SELECT ?s WHERE { ?s ex:p ?o }"},
		{"bad limit", "SELECT ?s WHERE { ?s ?p ?o } LIMIT x"},
		{"trailing tokens", "ASK { ?s ?p ?o } garbage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.query)
			require.Error(t, err)
			var se *SyntaxError
			assert.True(t, errors.As(err, &se), "want *SyntaxError, got %T", err)
		})
	}
}

func TestParseWithPrefixes(t *testing.T) {
	q, err := ParseWithPrefixes("ASK { ?s sh:path ?p }", map[string]string{
		"sh": "http://www.w3.org/ns/shacl#",
	})
	require.NoError(t, err)
	triples := q.TriplePatterns()
	require.Len(t, triples, 1)
	assert.Equal(t, "http://www.w3.org/ns/shacl#path", triples[0].P.Term.Value)
}

func TestParseGroupByStopsAtClauseWords(t *testing.T) {
	tests := []struct {
		name      string
		modifiers string
		having    int
		orderBy   int
		limit     int
	}{
		{"having", `GROUP BY ?type HAVING (COUNT(?s) > 5)`, 1, 0, -1},
		{"having with call", `GROUP BY ?type HAVING BOUND(?type) (COUNT(?s) > 1)`, 2, 0, -1},
		{"having then order", `GROUP BY ?type HAVING (COUNT(?s) > 1) ORDER BY DESC(?type) LIMIT 3`, 1, 1, 3},
		{"order after group", `GROUP BY ?type ORDER BY ASC(?type)`, 0, 1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(`SELECT ?type (COUNT(?s) AS ?n) WHERE { ?s a ?type } ` + tt.modifiers)
			require.NoError(t, err)

			require.Len(t, q.GroupBy, 1)
			assert.Equal(t, ExprVar{Name: "type"}, q.GroupBy[0].Expr)
			assert.Len(t, q.Having, tt.having)
			assert.Len(t, q.OrderBy, tt.orderBy)
			if tt.limit >= 0 {
				assert.Equal(t, tt.limit, q.Limit)
			}
		})
	}
}
