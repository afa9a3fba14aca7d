package endpoint

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/c360studio/semstreams/agentic"
	"github.com/c360studio/semstreams/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semlink/fetch"
	"github.com/c360studio/semlink/graph"
	"github.com/c360studio/semlink/rdf"
	"github.com/c360studio/semlink/sparql"
)

const peopleTurtle = `@prefix foaf: <http://xmlns.com/foaf/0.1/> .
@prefix ex: <http://example.org/> .
ex:alice a foaf:Person ; foaf:name "Alice" ; foaf:knows ex:bob .
ex:bob a foaf:Person ; foaf:name "Bob" .
`

const prologue = "PREFIX foaf: <http://xmlns.com/foaf/0.1/>\nPREFIX ex: <http://example.org/>\n"

func testFetcher() *fetch.Fetcher {
	cfg := fetch.DefaultConfig()
	cfg.Timeout = 5 * time.Second
	cfg.Guard = fetch.Guard{AllowHTTP: true, AllowPrivate: true}
	cfg.Retry = retry.Config{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}
	return fetch.New(cfg)
}

// newServer serves a SPARQL endpoint at /sparql over the people graph and
// the same graph as Turtle at /people.ttl.
func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	g, err := rdf.ParseTurtle(peopleTurtle)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/sparql", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		if r.Method == http.MethodPost {
			require.NoError(t, r.ParseForm())
			query = r.PostForm.Get("query")
		}
		res, err := sparql.ExecGraph(r.Context(), g, query)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if res.Graph != nil {
			w.Header().Set("Content-Type", "application/n-triples")
			io.WriteString(w, rdf.WriteNTriples(res.Graph))
			return
		}
		out, err := res.Serialize(sparql.ResultsJSON)
		require.NoError(t, err)
		w.Header().Set("Content-Type", sparql.ResultsAccept[sparql.ResultsJSON])
		io.WriteString(w, out)
	})
	mux.HandleFunc("/people.ttl", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/turtle")
		io.WriteString(w, peopleTurtle)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestExecutor(store Store) *Executor {
	f := testFetcher()
	var ingester fetch.Ingester
	if store != nil {
		ingester = store
	}
	return NewExecutor(
		sparql.NewTools(sparql.NewClient(f, nil), ingester, nil),
		fetch.NewLDFetcher(f, ingester, nil, nil),
		store,
		WithTimeout(5*time.Second),
	)
}

func decode(t *testing.T, result agentic.ToolResult) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content), &out), result.Content)
	return out
}

func TestExecutor_ListTools(t *testing.T) {
	e := newTestExecutor(nil)
	var names []string
	for _, tool := range e.ListTools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
		assert.Equal(t, "object", tool.Parameters["type"])
	}
	assert.Equal(t, []string{
		"sparql_query", "describe_resource", "sparql_discover", "ld_fetch",
		"sparql_json_to_jsonld", "check_query_patterns", "generate_query_fixes", "query_graph",
	}, names)
}

func TestExecutor_UnknownTool(t *testing.T) {
	e := newTestExecutor(nil)
	result, err := e.Execute(context.Background(), agentic.ToolCall{ID: "c1", Name: "nope"})
	require.Error(t, err)
	assert.Contains(t, result.Error, "unknown tool")
}

func TestExecutor_SPARQLQuery(t *testing.T) {
	srv := newServer(t)
	e := newTestExecutor(nil)
	ctx := context.Background()

	result, err := e.Execute(ctx, agentic.ToolCall{ID: "c1", Name: "sparql_query", Arguments: map[string]any{
		"endpoint_url": srv.URL + "/sparql",
		"query":        prologue + "SELECT ?name WHERE { ?p a foaf:Person ; foaf:name ?name } ORDER BY ?name",
	}})
	require.NoError(t, err)
	require.Empty(t, result.Error)
	out := decode(t, result)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "SELECT", out["query_type"])
	rows, ok := out["results"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 2)

	result, err = e.Execute(ctx, agentic.ToolCall{ID: "c2", Name: "sparql_query", Arguments: map[string]any{
		"endpoint_url": srv.URL + "/sparql",
		"query":        prologue + "ASK { ex:alice foaf:knows ex:bob }",
		"query_type":   "ASK",
	}})
	require.NoError(t, err)
	assert.Equal(t, true, decode(t, result)["result"])
}

func TestExecutor_SPARQLQueryErrors(t *testing.T) {
	srv := newServer(t)
	e := newTestExecutor(nil)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]any
	}{
		{name: "missing endpoint", args: map[string]any{"query": "ASK {}"}},
		{name: "missing query", args: map[string]any{"endpoint_url": srv.URL + "/sparql"}},
		{name: "bad query", args: map[string]any{"endpoint_url": srv.URL + "/sparql", "query": "SELEKT nothing"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.Execute(ctx, agentic.ToolCall{ID: "c", Name: "sparql_query", Arguments: tt.args})
			require.NoError(t, err)
			assert.NotEmpty(t, result.Error)
		})
	}
}

func TestExecutor_DescribeStoresAndQueryGraph(t *testing.T) {
	srv := newServer(t)
	store := graph.NewManager()
	e := newTestExecutor(store)
	ctx := context.Background()

	result, err := e.Execute(ctx, agentic.ToolCall{ID: "c1", Name: "describe_resource", Arguments: map[string]any{
		"endpoint_url":  srv.URL + "/sparql",
		"uri":           "http://example.org/alice",
		"result_format": "n-triples",
	}})
	require.NoError(t, err)
	require.Empty(t, result.Error)
	out := decode(t, result)
	assert.Equal(t, true, out["stored"])
	assert.Equal(t, "http://example.org/alice", out["graph_id"])

	result, err = e.Execute(ctx, agentic.ToolCall{ID: "c2", Name: "query_graph", Arguments: map[string]any{
		"query": prologue + "SELECT ?name WHERE { ex:alice foaf:name ?name }",
	}})
	require.NoError(t, err)
	require.Empty(t, result.Error)
	out = decode(t, result)
	assert.Equal(t, float64(1), out["count"])
	assert.Equal(t, []any{"name"}, out["vars"])
}

func TestExecutor_LDFetchAndConstruct(t *testing.T) {
	srv := newServer(t)
	store := graph.NewManager()
	e := newTestExecutor(store)
	ctx := context.Background()

	result, err := e.Execute(ctx, agentic.ToolCall{ID: "c1", Name: "ld_fetch", Arguments: map[string]any{
		"uri":    srv.URL + "/people.ttl",
		"format": "turtle",
	}})
	require.NoError(t, err)
	require.Empty(t, result.Error)
	out := decode(t, result)
	assert.Equal(t, true, out["stored"])
	assert.Equal(t, float64(5), out["triple_count"])

	result, err = e.Execute(ctx, agentic.ToolCall{ID: "c2", Name: "query_graph", Arguments: map[string]any{
		"query":         prologue + "CONSTRUCT { ?a foaf:knows ?b } WHERE { ?a foaf:knows ?b }",
		"result_format": "n-triples",
	}})
	require.NoError(t, err)
	require.Empty(t, result.Error)
	out = decode(t, result)
	assert.Equal(t, float64(1), out["triple_count"])
	assert.Contains(t, out["data"], "<http://example.org/alice> <http://xmlns.com/foaf/0.1/knows> <http://example.org/bob>")
}

func TestExecutor_LDFetchFailure(t *testing.T) {
	srv := newServer(t)
	e := newTestExecutor(graph.NewManager())

	result, err := e.Execute(context.Background(), agentic.ToolCall{ID: "c1", Name: "ld_fetch", Arguments: map[string]any{
		"uri": srv.URL + "/missing",
	}})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, false, decode(t, result)["success"])
}

func TestExecutor_QueryGraphWithoutStore(t *testing.T) {
	e := newTestExecutor(nil)
	result, err := e.Execute(context.Background(), agentic.ToolCall{ID: "c1", Name: "query_graph", Arguments: map[string]any{
		"query": "SELECT * WHERE { ?s ?p ?o }",
	}})
	require.NoError(t, err)
	assert.Contains(t, result.Error, "no graph store")
}

func TestExecutor_CheckPatternsAndFixes(t *testing.T) {
	e := newTestExecutor(nil)
	ctx := context.Background()
	query := prologue + "SELECT ?name WHERE { ?p foaf:name ?name }"

	result, err := e.Execute(ctx, agentic.ToolCall{ID: "c1", Name: "check_query_patterns", Arguments: map[string]any{"query": query}})
	require.NoError(t, err)
	require.Empty(t, result.Error)
	check := decode(t, result)
	assert.Equal(t, true, check["success"])
	warnings, ok := check["warnings"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, warnings)
	first := warnings[0].(map[string]any)
	assert.Equal(t, sparql.WarnMissingLimit, first["type"])

	result, err = e.Execute(ctx, agentic.ToolCall{ID: "c2", Name: "generate_query_fixes", Arguments: map[string]any{
		"query":             query,
		"validation_result": check,
	}})
	require.NoError(t, err)
	fixes := decode(t, result)
	assert.Equal(t, true, fixes["needs_fixes"])
	assert.Contains(t, fixes["fixed_query"], "LIMIT 100")

	result, err = e.Execute(ctx, agentic.ToolCall{ID: "c3", Name: "check_query_patterns", Arguments: map[string]any{"query": "SELEKT"}})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Error)
}

func TestExecutor_SPARQLJSONToJSONLD(t *testing.T) {
	e := newTestExecutor(nil)
	sparqlJSON := `{"head":{"vars":["name"]},"results":{"bindings":[{"name":{"type":"literal","value":"Alice"}}]}}`

	result, err := e.Execute(context.Background(), agentic.ToolCall{ID: "c1", Name: "sparql_json_to_jsonld", Arguments: map[string]any{
		"sparql_json": sparqlJSON,
	}})
	require.NoError(t, err)
	require.Empty(t, result.Error)
	assert.Contains(t, result.Content, "Alice")
	assert.Contains(t, result.Content, "@context")

	result, err = e.Execute(context.Background(), agentic.ToolCall{ID: "c2", Name: "sparql_json_to_jsonld", Arguments: map[string]any{
		"sparql_json": "not json",
	}})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Error)
}
