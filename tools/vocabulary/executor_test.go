package vocabulary

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/c360studio/semstreams/agentic"
	"github.com/c360studio/semstreams/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semlink/fetch"
	"github.com/c360studio/semlink/retriever"
	"github.com/c360studio/semlink/vocab"
)

const widgetContext = `{"@context": {"name": "http://example.org/widgets/name", "Widget": "http://example.org/widgets/Widget"}}`

const widgetDoc = `{"@context": {"@vocab": "https://schema.org/"}, "@id": "http://example.org/w/1", "@type": "Product", "name": "Widget"}`

func testFetcher() *fetch.Fetcher {
	cfg := fetch.DefaultConfig()
	cfg.Timeout = 5 * time.Second
	cfg.Guard = fetch.Guard{AllowHTTP: true, AllowPrivate: true}
	cfg.Retry = retry.Config{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}
	return fetch.New(cfg)
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/widgets/context.jsonld", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/ld+json")
		io.WriteString(w, widgetContext)
	})
	mux.HandleFunc("/w/1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/ld+json")
		io.WriteString(w, widgetDoc)
	})
	mux.HandleFunc("/w/api.php", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"search": []any{
				map[string]any{"id": "Q42", "label": "Douglas Adams", "description": "English writer"},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newTestExecutor uses the built-in registry plus a "widgets" vocabulary
// served by srv.
func newTestExecutor(t *testing.T, srv *httptest.Server) *Executor {
	t.Helper()
	reg := vocab.NewRegistry()
	extra, err := vocab.ParseRegistry([]byte(strings.ReplaceAll(`
widgets:
  uri: "BASE/widgets/"
  prefix: wd
  support_level: direct
  resources:
    context: "BASE/widgets/context.jsonld"
`, "BASE", srv.URL)))
	require.NoError(t, err)
	reg.Merge(extra)

	f := testFetcher()
	return NewExecutor(
		vocab.NewManager(f, vocab.WithRegistry(reg)),
		retriever.New(f, retriever.WithRegistry(reg), retriever.WithWikidataBase(srv.URL)),
	)
}

func execute(t *testing.T, e *Executor, name string, args map[string]any) agentic.ToolResult {
	t.Helper()
	result, err := e.Execute(context.Background(), agentic.ToolCall{ID: "call-1", Name: name, Arguments: args})
	require.NoError(t, err)
	return result
}

func decode(t *testing.T, result agentic.ToolResult) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content), &out), result.Content)
	return out
}

func TestExecutor_ListTools(t *testing.T) {
	e := newTestExecutor(t, newServer(t))
	var names []string
	for _, tool := range e.ListTools() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{
		"vocab_lookup", "vocab_list", "compose_context", "detect_vocabularies",
		"apply_collision_strategy", "lod_retrieve", "search_wikidata", "wikidata_entity",
	}, names)
}

func TestExecutor_VocabLookup(t *testing.T) {
	e := newTestExecutor(t, newServer(t))

	result := execute(t, e, "vocab_lookup", map[string]any{"name": "schema"})
	require.Empty(t, result.Error)
	out := decode(t, result)
	info := out["vocabulary"].(map[string]any)
	assert.Equal(t, "schema", info["name"])
	assert.Equal(t, "https://schema.org/", info["uri"])
	assert.Equal(t, false, info["loaded"])

	result = execute(t, e, "vocab_lookup", map[string]any{"name": "wd", "load_context": true})
	require.Empty(t, result.Error)
	out = decode(t, result)
	assert.Equal(t, true, out["loaded"])
	ctx := out["context"].(map[string]any)
	assert.Equal(t, "http://example.org/widgets/name", ctx["name"])

	result = execute(t, e, "vocab_list", nil)
	require.Empty(t, result.Error)
	assert.Contains(t, decode(t, result)["loaded"], "widgets")

	result = execute(t, e, "vocab_lookup", map[string]any{"name": "klingon"})
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, false, decode(t, result)["success"])

	result = execute(t, e, "vocab_lookup", nil)
	assert.Contains(t, result.Error, "name argument is required")
}

func TestExecutor_VocabList(t *testing.T) {
	e := newTestExecutor(t, newServer(t))

	out := decode(t, execute(t, e, "vocab_list", nil))
	vocabs := out["vocabularies"].([]any)
	names := make([]string, 0, len(vocabs))
	for _, v := range vocabs {
		names = append(names, v.(map[string]any)["name"].(string))
	}
	assert.Contains(t, names, "schema")
	assert.Contains(t, names, "widgets")
	assert.Len(t, out["strategies"], len(vocab.Strategies()))
	assert.Len(t, out["collisions"], len(vocab.StrategyPairs()))
	assert.Empty(t, out["loaded"])
}

func TestExecutor_ComposeContext(t *testing.T) {
	e := newTestExecutor(t, newServer(t))

	result := execute(t, e, "compose_context", map[string]any{"vocabularies": []any{"schema", "foaf"}})
	require.Empty(t, result.Error)
	composed := decode(t, result)["result"].(map[string]any)
	ctx := composed["@context"].(map[string]any)
	assert.Equal(t, "https://schema.org/", ctx["schema"])
	assert.Equal(t, "http://xmlns.com/foaf/0.1/", ctx["foaf"])
	collisions := composed["collisions"].([]any)
	require.Len(t, collisions, 1)
	assert.Equal(t, vocab.StrategyPropertyMapping, collisions[0].(map[string]any)["strategy"])

	// A comma separated string is accepted too.
	result = execute(t, e, "compose_context", map[string]any{"vocabularies": "schema,foaf", "strategy": vocab.StrategyGraphPartition})
	require.Empty(t, result.Error)
	collisions = decode(t, result)["result"].(map[string]any)["collisions"].([]any)
	assert.Equal(t, vocab.StrategyGraphPartition, collisions[0].(map[string]any)["strategy"])

	result = execute(t, e, "compose_context", map[string]any{"vocabularies": []any{"schema"}, "strategy": "bogus"})
	assert.NotEmpty(t, result.Error)

	result = execute(t, e, "compose_context", nil)
	assert.Contains(t, result.Error, "vocabularies")
}

func TestExecutor_DetectVocabularies(t *testing.T) {
	e := newTestExecutor(t, newServer(t))

	tests := []struct {
		name    string
		context any
		want    []any
	}{
		{name: "url", context: "https://schema.org/", want: []any{"schema"}},
		{name: "list", context: []any{"https://www.w3.org/ns/credentials/v2", "https://ref.gs1.org/epcis/"}, want: []any{"epcis", "vc"}},
		{name: "wrapped object", context: map[string]any{"@context": map[string]any{"@vocab": "http://xmlns.com/foaf/0.1/"}}, want: []any{"foaf"}},
		{name: "json string", context: `{"dcat": "http://www.w3.org/ns/dcat#"}`, want: []any{"dcat"}},
		{name: "unknown", context: "https://example.org/context", want: []any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := execute(t, e, "detect_vocabularies", map[string]any{"context": tt.context})
			require.Empty(t, result.Error)
			assert.Equal(t, tt.want, decode(t, result)["vocabularies"])
		})
	}

	result := execute(t, e, "detect_vocabularies", nil)
	assert.NotEmpty(t, result.Error)
}

func TestExecutor_ApplyCollisionStrategy(t *testing.T) {
	e := newTestExecutor(t, newServer(t))
	doc := map[string]any{
		"@context": []any{"https://schema.org/", "http://xmlns.com/foaf/0.1/"},
		"name":     "Alice",
	}

	result := execute(t, e, "apply_collision_strategy", map[string]any{"data": doc, "vocabularies": []any{"schema", "foaf"}})
	require.Empty(t, result.Error)
	out := decode(t, result)
	assert.Equal(t, vocab.StrategyPropertyMapping, out["strategy"].(map[string]any)["strategy"])
	ctx := out["data"].(map[string]any)["@context"].(map[string]any)
	assert.Equal(t, "https://schema.org/", ctx["@vocab"])

	result = execute(t, e, "apply_collision_strategy", map[string]any{
		"data":     doc,
		"strategy": map[string]any{"strategy": vocab.StrategyContextVersioning, "context_version": "1.1"},
	})
	require.Empty(t, result.Error)
	ctx = decode(t, result)["data"].(map[string]any)["@context"].(map[string]any)
	assert.Equal(t, 1.1, ctx["@version"])

	result = execute(t, e, "apply_collision_strategy", map[string]any{"data": doc, "vocabularies": []any{"croissant", "dcat"}})
	assert.Contains(t, result.Error, "no collision strategy")

	result = execute(t, e, "apply_collision_strategy", map[string]any{"vocabularies": []any{"schema", "foaf"}})
	assert.Contains(t, result.Error, "data")
}

func TestExecutor_LODRetrieve(t *testing.T) {
	srv := newServer(t)
	e := newTestExecutor(t, srv)

	result := execute(t, e, "lod_retrieve", map[string]any{"uri": srv.URL + "/w/1"})
	require.Empty(t, result.Error)
	out := decode(t, result)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Widget", out["data"].(map[string]any)["name"])

	result = execute(t, e, "lod_retrieve", map[string]any{"uri": srv.URL + "/missing"})
	assert.NotEmpty(t, result.Error)
}

func TestExecutor_SearchWikidata(t *testing.T) {
	srv := newServer(t)
	e := newTestExecutor(t, srv)

	result := execute(t, e, "search_wikidata", map[string]any{"query": "Douglas Adams", "limit": 3})
	require.Empty(t, result.Error)
	out := decode(t, result)
	assert.Equal(t, float64(1), out["count"])
	hit := out["results"].([]any)[0].(map[string]any)
	assert.Equal(t, "Q42", hit["id"])
	assert.Equal(t, "English writer", hit["description"])

	result = execute(t, e, "search_wikidata", nil)
	assert.Contains(t, result.Error, "query")
}

func TestExecutor_UnknownTool(t *testing.T) {
	e := newTestExecutor(t, newServer(t))
	result, err := e.Execute(context.Background(), agentic.ToolCall{ID: "c1", Name: "vocab_delete"})
	require.Error(t, err)
	assert.NotEmpty(t, result.Error)
}
