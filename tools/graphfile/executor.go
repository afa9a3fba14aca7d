// Package graphfile provides tools that move RDF between the graph store
// and files under a workspace directory.
package graphfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/c360studio/semstreams/agentic"

	"github.com/c360studio/semlink/rdf"
	"github.com/c360studio/semlink/tools/toolcall"
)

// Store is the graph store files are imported into and exported from.
type Store interface {
	IngestNQuads(ctx context.Context, nquads, graphID string) (int, error)
	Dataset(ctx context.Context) (*rdf.Dataset, error)
}

// Executor implements the graph file tools
type Executor struct {
	root  string
	store Store
}

// NewExecutor creates a graph file executor confined to root. An empty
// root disables file access.
func NewExecutor(root string, store Store) *Executor {
	return &Executor{root: root, store: store}
}

// Execute executes a graph file tool call
func (e *Executor) Execute(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	switch call.Name {
	case "graph_import":
		return e.graphImport(ctx, call)
	case "graph_export":
		return e.graphExport(ctx, call)
	case "graph_files":
		return e.graphFiles(call)
	default:
		return toolcall.Unknown(call)
	}
}

// ListTools returns the tool definitions for graph files
func (e *Executor) ListTools() []agentic.ToolDefinition {
	path := toolcall.Param("string", "Path of the file, relative to the workspace directory")
	format := toolcall.Enum("RDF format (default: from the extension, then the content)",
		"turtle", "ntriples", "nquads", "jsonld", "rdfxml")
	return []agentic.ToolDefinition{
		{
			Name:        "graph_import",
			Description: "Parse an RDF file from the workspace and store its triples. Default-graph triples go into graph_id.",
			Parameters: toolcall.Schema(map[string]any{
				"path":     path,
				"format":   format,
				"graph_id": toolcall.Param("string", "Named graph for default-graph triples (default: the file path)"),
			}, "path"),
		},
		{
			Name:        "graph_export",
			Description: "Write the stored graphs, or one named graph, to a workspace file.",
			Parameters: toolcall.Schema(map[string]any{
				"path":     path,
				"format":   toolcall.Enum("Output format (default: from the extension)", "turtle", "ntriples", "nquads", "jsonld"),
				"graph_id": toolcall.Param("string", "Export only this named graph"),
			}, "path"),
		},
		{
			Name:        "graph_files",
			Description: "List RDF files in the workspace matching a glob pattern.",
			Parameters: toolcall.Schema(map[string]any{
				"pattern": toolcall.Param("string", "Glob pattern, ** matches directories (default: **/*.{ttl,nt,nq,jsonld,rdf})"),
			}),
		},
	}
}

func (e *Executor) graphImport(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	path, err := toolcall.Required(call, "path")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	fullPath, err := e.validatePath(path)
	if err != nil {
		return toolcall.Error(call, err), nil
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return toolcall.Error(call, fmt.Errorf("file not found: %s", path)), nil
		}
		return toolcall.Error(call, fmt.Errorf("failed to read file: %w", err)), nil
	}

	format, err := formatFor(toolcall.String(call, "format", ""), path, string(content))
	if err != nil {
		return toolcall.Failure(call, err), nil
	}
	ds, err := rdf.Parse(string(content), format, &rdf.ParseOptions{Base: "file://" + filepath.ToSlash(fullPath)})
	if err != nil {
		return toolcall.Failure(call, fmt.Errorf("parse %s: %w", path, err)), nil
	}

	graphID := toolcall.String(call, "graph_id", "file:"+filepath.ToSlash(path))
	added, err := e.store.IngestNQuads(ctx, rdf.WriteNQuads(ds), graphID)
	if err != nil {
		return toolcall.Failure(call, err), nil
	}
	return toolcall.JSON(call, map[string]any{
		"success":      true,
		"path":         path,
		"format":       string(format),
		"graph_id":     graphID,
		"triple_count": ds.Len(),
		"added":        added,
	}), nil
}

func (e *Executor) graphExport(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	path, err := toolcall.Required(call, "path")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	fullPath, err := e.validatePath(path)
	if err != nil {
		return toolcall.Error(call, err), nil
	}

	format := rdf.FormatNQuads
	if name := toolcall.String(call, "format", strings.TrimPrefix(filepath.Ext(path), ".")); name != "" {
		if format, err = rdf.ParseFormat(name); err != nil {
			return toolcall.Error(call, fmt.Errorf("%s: %w", name, err)), nil
		}
	}

	ds, err := e.store.Dataset(ctx)
	if err != nil {
		return toolcall.Failure(call, err), nil
	}
	if graphID := toolcall.String(call, "graph_id", ""); graphID != "" {
		g, ok := ds.Lookup(graphID)
		if !ok {
			return toolcall.Failure(call, fmt.Errorf("graph not found: %s", graphID)), nil
		}
		ds = rdf.DatasetOf(g)
	}

	content, err := serialize(ds, format)
	if err != nil {
		return toolcall.Failure(call, err), nil
	}

	// Create parent directories if needed
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return toolcall.Error(call, fmt.Errorf("failed to create directory: %w", err)), nil
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		return toolcall.Error(call, fmt.Errorf("failed to write file: %w", err)), nil
	}

	return toolcall.JSON(call, map[string]any{
		"success":      true,
		"path":         path,
		"format":       string(format),
		"triple_count": ds.Len(),
		"bytes":        len(content),
	}), nil
}

// DefaultPattern matches the RDF files graph_files lists by default.
const DefaultPattern = "**/*.{ttl,nt,nq,jsonld,rdf}"

func (e *Executor) graphFiles(call agentic.ToolCall) (agentic.ToolResult, error) {
	root, err := e.validatePath(".")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	pattern := toolcall.String(call, "pattern", DefaultPattern)
	if !doublestar.ValidatePattern(pattern) {
		return toolcall.Error(call, fmt.Errorf("invalid pattern: %s", pattern)), nil
	}

	files, err := doublestar.Glob(os.DirFS(root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return toolcall.Error(call, fmt.Errorf("failed to list files: %w", err)), nil
	}
	if files == nil {
		files = []string{}
	}
	return toolcall.JSON(call, map[string]any{
		"success": true,
		"pattern": pattern,
		"files":   files,
	}), nil
}

// formatFor picks the format named by the call, then the extension, then
// the content.
func formatFor(name, path, content string) (rdf.Format, error) {
	if name != "" {
		return rdf.ParseFormat(name)
	}
	if f, err := rdf.ParseFormat(strings.TrimPrefix(filepath.Ext(path), ".")); err == nil {
		return f, nil
	}
	if f, ok := rdf.SniffFormat(content); ok {
		return f, nil
	}
	return "", fmt.Errorf("cannot tell the RDF format of %s", path)
}

func serialize(ds *rdf.Dataset, format rdf.Format) (string, error) {
	switch format {
	case rdf.FormatNQuads:
		return rdf.WriteNQuads(ds), nil
	case rdf.FormatNTriples:
		return rdf.WriteNTriples(ds.Union()), nil
	case rdf.FormatTurtle:
		return rdf.WriteTurtle(ds.Union()), nil
	case rdf.FormatJSONLD:
		return rdf.GraphToJSONLDString(ds.Union(), nil)
	}
	return "", fmt.Errorf("cannot export %s", format)
}

// validatePath resolves path inside the workspace root.
func (e *Executor) validatePath(path string) (string, error) {
	if e.root == "" {
		return "", fmt.Errorf("graph files are disabled: no workspace directory")
	}

	var fullPath string
	if filepath.IsAbs(path) {
		fullPath = filepath.Clean(path)
	} else {
		fullPath = filepath.Clean(filepath.Join(e.root, path))
	}

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	absRoot, err := filepath.Abs(e.root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve workspace root: %w", err)
	}

	if !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) && absPath != absRoot {
		return "", fmt.Errorf("access denied: path is outside the workspace directory")
	}
	return absPath, nil
}
