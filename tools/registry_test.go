package tools

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/c360studio/semstreams/agentic"
	"github.com/c360studio/semstreams/metric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, recorder CallRecorder) *Registry {
	t.Helper()
	r, err := NewRegistry(Deps{Metrics: metric.NewMetricsRegistry(), Recorder: recorder})
	require.NoError(t, err)
	return r
}

func TestNewRegistry_ListTools(t *testing.T) {
	r := newTestRegistry(t, nil)

	tools := r.ListTools()
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	assert.True(t, sort.StringsAreSorted(names), "tools are sorted by name")

	for _, want := range []string{
		"sparql_query", "describe_resource", "sparql_discover", "ld_fetch", "query_graph",
		"check_query_patterns", "generate_query_fixes", "sparql_json_to_jsonld",
		"reason_over", "check_query", "validate_query_against_ontology", "refine_query_with_ontology", "temporal_reasoning",
		"vocab_lookup", "vocab_list", "compose_context", "detect_vocabularies", "apply_collision_strategy",
		"lod_retrieve", "search_wikidata", "wikidata_entity",
		"load_knowledge", "find_vocabulary_term", "follow_relationship", "summarize_vocabulary",
		"create_scoped_context", "explore_graph", "entity_neighborhood", "find_paths",
		"explore_dataset", "search_dataset", "get_dataset_evidence", "collect_evidence", "summarize_evidence",
		"graph_import", "graph_export", "graph_files",
	} {
		assert.Contains(t, names, want)
	}
	assert.Len(t, r.Executors(), 5)
}

func TestRegistry_Lookup(t *testing.T) {
	r := newTestRegistry(t, nil)

	tool, ok := r.Lookup("compose_context")
	require.True(t, ok)
	assert.Equal(t, "compose_context", tool.Name)
	assert.NotEmpty(t, tool.Description)

	_, ok = r.Lookup("git_commit")
	assert.False(t, ok)
}

func TestRegistry_Execute(t *testing.T) {
	recorder := &memoryRecorder{}
	r := newTestRegistry(t, recorder)
	ctx := context.Background()

	result, err := r.Execute(ctx, agentic.ToolCall{ID: "c1", Name: "vocab_list"})
	require.NoError(t, err)
	require.Empty(t, result.Error)
	var list map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content), &list))
	assert.Equal(t, true, list["success"])
	assert.NotEmpty(t, list["vocabularies"])

	result, err = r.Execute(ctx, agentic.ToolCall{ID: "c2", Name: "check_query_patterns", Arguments: map[string]any{
		"query": "SELECT ?s WHERE { ?s ?p ?o } LIMIT 5",
	}})
	require.NoError(t, err)
	require.Empty(t, result.Error)
	assert.Contains(t, result.Content, `"query_type": "SELECT"`)

	r.Wait()
	records := recorder.all()
	require.Len(t, records, 2)
	byTool := map[string]string{}
	for _, rec := range records {
		byTool[rec.ToolName] = rec.Status
	}
	assert.Equal(t, "success", byTool["vocab_list"])
	assert.Equal(t, "success", byTool["check_query_patterns"])
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	r := newTestRegistry(t, nil)
	result, err := r.Execute(context.Background(), agentic.ToolCall{ID: "c1", Name: "file_write"})
	require.Error(t, err)
	assert.Equal(t, "c1", result.CallID)
	assert.Contains(t, result.Error, "unknown tool: file_write")
}

func TestRegistry_SharedComponents(t *testing.T) {
	r := newTestRegistry(t, nil)
	deps := r.Deps()
	require.NotNil(t, deps.Fetcher)
	require.NotNil(t, deps.Vocab)
	require.NotNil(t, deps.Graph)
	require.NotNil(t, deps.Retriever)
	require.NotNil(t, deps.Session)
	require.NotNil(t, deps.Temporal)
	assert.NotNil(t, deps.Logger)
}
