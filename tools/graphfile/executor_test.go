package graphfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/c360studio/semstreams/agentic"

	"github.com/c360studio/semlink/graph"
)

const aliceTurtle = `@prefix ex: <http://example.org/> .
ex:alice a ex:Person ; ex:name "Alice" .
`

func decode(t *testing.T, result agentic.ToolResult) map[string]any {
	t.Helper()
	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(result.Content), &out); err != nil {
		t.Fatalf("content is not JSON: %v", err)
	}
	return out
}

func TestGraphImport(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "people.ttl"), []byte(aliceTurtle), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	store := graph.NewManager()
	executor := NewExecutor(tmpDir, store)

	tests := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{
			name: "import turtle by extension",
			args: map[string]any{"path": "people.ttl", "graph_id": "urn:people"},
		},
		{
			name:    "missing path",
			args:    map[string]any{},
			wantErr: true,
		},
		{
			name:    "non-existent file",
			args:    map[string]any{"path": "nope.ttl"},
			wantErr: true,
		},
		{
			name:    "outside workspace",
			args:    map[string]any{"path": "../../../etc/passwd"},
			wantErr: true,
		},
		{
			name:    "unknown format",
			args:    map[string]any{"path": "notes.txt"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := agentic.ToolCall{ID: "test-call", Name: "graph_import", Arguments: tt.args}
			result, err := executor.Execute(context.Background(), call)
			if err != nil {
				t.Fatalf("unexpected Go error: %v", err)
			}
			if tt.wantErr {
				if result.Error == "" {
					t.Error("expected error, got none")
				}
				return
			}
			out := decode(t, result)
			if out["triple_count"] != float64(2) {
				t.Errorf("expected 2 triples, got %v", out["triple_count"])
			}
			if out["graph_id"] != "urn:people" {
				t.Errorf("unexpected graph id %v", out["graph_id"])
			}
		})
	}

	size, err := store.Size(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if size != 2 {
		t.Errorf("expected 2 stored quads, got %d", size)
	}
}

func TestGraphExport(t *testing.T) {
	tmpDir := t.TempDir()
	ctx := context.Background()
	store := graph.NewManager()
	executor := NewExecutor(tmpDir, store)

	if _, err := store.IngestNQuads(ctx, `<http://example.org/alice> <http://example.org/name> "Alice" .
<http://example.org/bob> <http://example.org/name> "Bob" <urn:other> .
`, "urn:people"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		args      map[string]any
		wantErr   bool
		wantMatch string
		wantCount float64
	}{
		{
			name:      "all graphs as n-quads",
			args:      map[string]any{"path": "out/all.nq"},
			wantMatch: "<urn:other>",
			wantCount: 2,
		},
		{
			name:      "one graph as turtle",
			args:      map[string]any{"path": "out/people.ttl", "graph_id": "urn:people"},
			wantMatch: `"Alice"`,
			wantCount: 1,
		},
		{
			name:      "format argument wins",
			args:      map[string]any{"path": "out/people.data", "format": "ntriples", "graph_id": "urn:people"},
			wantMatch: `<http://example.org/alice> <http://example.org/name> "Alice" .`,
			wantCount: 1,
		},
		{
			name:    "unknown graph",
			args:    map[string]any{"path": "out/x.nq", "graph_id": "urn:missing"},
			wantErr: true,
		},
		{
			name:    "unsupported export format",
			args:    map[string]any{"path": "out/x.rdf"},
			wantErr: true,
		},
		{
			name:    "outside workspace",
			args:    map[string]any{"path": "/tmp/escape.nq"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := agentic.ToolCall{ID: "test-call", Name: "graph_export", Arguments: tt.args}
			result, _ := executor.Execute(ctx, call)
			if tt.wantErr {
				if result.Error == "" {
					t.Error("expected error, got none")
				}
				return
			}
			out := decode(t, result)
			if out["triple_count"] != tt.wantCount {
				t.Errorf("expected %v triples, got %v", tt.wantCount, out["triple_count"])
			}
			content, err := os.ReadFile(filepath.Join(tmpDir, tt.args["path"].(string)))
			if err != nil {
				t.Fatalf("exported file missing: %v", err)
			}
			if !strings.Contains(string(content), tt.wantMatch) {
				t.Errorf("exported content %q does not contain %q", content, tt.wantMatch)
			}
		})
	}
}

func TestGraphFiles(t *testing.T) {
	tmpDir := t.TempDir()
	for _, name := range []string{"a.ttl", "nested/b.jsonld", "nested/readme.md"} {
		path := filepath.Join(tmpDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	executor := NewExecutor(tmpDir, graph.NewManager())

	result, _ := executor.Execute(context.Background(), agentic.ToolCall{ID: "c1", Name: "graph_files"})
	out := decode(t, result)
	files, _ := out["files"].([]any)
	if len(files) != 2 {
		t.Fatalf("expected 2 RDF files, got %v", out["files"])
	}

	result, _ = executor.Execute(context.Background(), agentic.ToolCall{
		ID:        "c2",
		Name:      "graph_files",
		Arguments: map[string]any{"pattern": "nested/*.md"},
	})
	out = decode(t, result)
	if files, _ := out["files"].([]any); len(files) != 1 || files[0] != "nested/readme.md" {
		t.Errorf("unexpected files %v", out["files"])
	}

	result, _ = executor.Execute(context.Background(), agentic.ToolCall{
		ID:        "c3",
		Name:      "graph_files",
		Arguments: map[string]any{"pattern": "[a-"},
	})
	if result.Error == "" {
		t.Error("expected invalid pattern error")
	}
}

func TestDisabledWorkspace(t *testing.T) {
	executor := NewExecutor("", graph.NewManager())
	result, _ := executor.Execute(context.Background(), agentic.ToolCall{
		ID:        "c1",
		Name:      "graph_files",
		Arguments: map[string]any{},
	})
	if !strings.Contains(result.Error, "disabled") {
		t.Errorf("expected disabled error, got %q", result.Error)
	}
}

func TestUnknownTool(t *testing.T) {
	executor := NewExecutor(t.TempDir(), graph.NewManager())
	result, err := executor.Execute(context.Background(), agentic.ToolCall{ID: "c1", Name: "file_read"})
	if err == nil {
		t.Error("expected error for unknown tool")
	}
	if result.CallID != "c1" {
		t.Errorf("expected call id c1, got %s", result.CallID)
	}
}
