// Package reasoning provides tools for SHACL reasoning, ontology-based
// query checking and temporal reasoning over events.
package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/c360studio/semstreams/agentic"

	"github.com/c360studio/semlink/reason"
	"github.com/c360studio/semlink/temporal"
	"github.com/c360studio/semlink/tools/toolcall"
)

// OpIntegrateSHACL runs SHACL reasoning over the events before analysing
// their relations.
const OpIntegrateSHACL = "integrate_shacl"

// Executor implements the reasoning tools.
type Executor struct {
	temporal     *temporal.Reasoner
	ontologyRoot string
}

// NewExecutor creates the executor. Ontology files named by ontology_path
// must lie under ontologyRoot.
func NewExecutor(reasoner *temporal.Reasoner, ontologyRoot string) *Executor {
	if reasoner == nil {
		reasoner = temporal.New()
	}
	return &Executor{temporal: reasoner, ontologyRoot: ontologyRoot}
}

// Execute executes a reasoning tool call.
func (e *Executor) Execute(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	switch call.Name {
	case "reason_over":
		return e.reasonOver(ctx, call)
	case "check_query":
		return e.checkQuery(ctx, call)
	case "validate_query_against_ontology":
		return e.validateQuery(ctx, call)
	case "refine_query_with_ontology":
		return e.refineQuery(ctx, call)
	case "temporal_reasoning":
		return e.temporalReasoning(ctx, call)
	default:
		return toolcall.Unknown(call)
	}
}

// ListTools returns the tool definitions for reasoning operations.
func (e *Executor) ListTools() []agentic.ToolDefinition {
	query := toolcall.Param("string", "SPARQL query string")
	ontologyTTL := toolcall.Param("string", "Ontology in Turtle")
	ontologyPath := toolcall.Param("string", "Path of an ontology file, used when ontology_ttl is empty")
	return []agentic.ToolDefinition{
		{
			Name:        "reason_over",
			Description: "Run SHACL rules and validation, or a SPARQL CONSTRUCT query, over JSON-LD data. Returns the inferred triples as a PROV-wrapped JSON-LD patch and a one-line summary.",
			Parameters: toolcall.Schema(map[string]any{
				"jsonld":        toolcall.Param("string", "JSON-LD data to reason over"),
				"shapes_turtle": toolcall.Param("string", "SHACL shapes and rules in Turtle"),
				"query":         toolcall.Param("string", "SPARQL CONSTRUCT query, used when no shapes are given"),
			}, "jsonld"),
		},
		{
			Name:        "check_query",
			Description: "Check the triple patterns of a SPARQL query against an ontology's domains, ranges and properties.",
			Parameters: toolcall.Schema(map[string]any{
				"query":         query,
				"ontology_ttl":  ontologyTTL,
				"ontology_path": ontologyPath,
			}, "query"),
		},
		{
			Name:        "validate_query_against_ontology",
			Description: "Validate a SPARQL query against an ontology and report issues with suggestions.",
			Parameters: toolcall.Schema(map[string]any{
				"query":         query,
				"ontology_ttl":  ontologyTTL,
				"ontology_path": ontologyPath,
			}, "query"),
		},
		{
			Name:        "refine_query_with_ontology",
			Description: "Iteratively fix a SPARQL query using pattern checks and ontology validation.",
			Parameters: toolcall.Schema(map[string]any{
				"query":          query,
				"ontology_ttl":   ontologyTTL,
				"ontology_path":  ontologyPath,
				"max_iterations": toolcall.Param("integer", fmt.Sprintf("Maximum validation rounds (default: %d)", reason.DefaultMaxRefinements)),
			}, "query"),
		},
		{
			Name:        "temporal_reasoning",
			Description: "Infer Allen interval relations between events in JSON-LD and analyse relations, durations, overlaps or participants.",
			Parameters: toolcall.Schema(map[string]any{
				"operation":     toolcall.Enum("Operation to run", append(append([]string{}, temporal.Operations...), OpIntegrateSHACL)...),
				"event_data":    toolcall.Param("string", "JSON-LD event data"),
				"query_params":  toolcall.Param("object", `Filters: "relation" for analyze_relations, "event" for the others`),
				"shapes_turtle": toolcall.Param("string", "SHACL shapes for integrate_shacl"),
				"query":         toolcall.Param("string", "CONSTRUCT query for integrate_shacl"),
			}, "operation", "event_data"),
		},
	}
}

func (e *Executor) reasonOver(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	data, err := toolcall.Document(call, "jsonld")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	patch, summary, err := reason.ReasonOver(ctx, data, toolcall.String(call, "shapes_turtle", ""), toolcall.String(call, "query", ""))
	if err != nil {
		return toolcall.Failure(call, err), nil
	}
	return toolcall.JSON(call, map[string]any{
		"success": true,
		"summary": summary,
		"patch":   json.RawMessage(patch),
	}), nil
}

// ontology returns the ontology text of a call.
func (e *Executor) ontology(call agentic.ToolCall) (string, error) {
	ttl := toolcall.String(call, "ontology_ttl", "")
	path := toolcall.String(call, "ontology_path", "")
	if ttl == "" && path != "" {
		resolved, err := e.resolvePath(path)
		if err != nil {
			return "", err
		}
		path = resolved
	}
	return reason.LoadOntology(ttl, path)
}

// resolvePath resolves path against the ontology root and rejects paths
// outside it.
func (e *Executor) resolvePath(path string) (string, error) {
	if e.ontologyRoot == "" {
		return "", fmt.Errorf("ontology files are disabled")
	}
	root, err := filepath.Abs(e.ontologyRoot)
	if err != nil {
		return "", fmt.Errorf("resolve ontology root: %w", err)
	}
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, path)
	}
	full = filepath.Clean(full)
	if !strings.HasPrefix(full, root+string(filepath.Separator)) && full != root {
		return "", fmt.Errorf("access denied: %s is outside the ontology directory", path)
	}
	if _, err := os.Stat(full); err != nil {
		return "", fmt.Errorf("ontology file: %w", err)
	}
	return full, nil
}

func (e *Executor) checkQuery(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	query, err := toolcall.Required(call, "query")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	ont, err := e.ontology(call)
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	report, err := reason.CheckQuery(ctx, query, ont)
	if err != nil {
		return toolcall.Failure(call, err), nil
	}
	var violations []string
	if report != "" {
		violations = strings.Split(report, "\n")
	}
	return toolcall.JSON(call, map[string]any{
		"success":    true,
		"consistent": report == "",
		"violations": violations,
	}), nil
}

func (e *Executor) validateQuery(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	query, err := toolcall.Required(call, "query")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	ont, err := e.ontology(call)
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	v, err := reason.ValidateQueryAgainstOntology(ctx, query, ont, "")
	if err != nil {
		return toolcall.Failure(call, err), nil
	}
	return toolcall.JSON(call, v), nil
}

func (e *Executor) refineQuery(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	query, err := toolcall.Required(call, "query")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	ont, err := e.ontology(call)
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	r, err := reason.RefineQueryWithOntology(ctx, query, ont, "", toolcall.Int(call, "max_iterations", 0))
	if err != nil {
		return toolcall.Failure(call, err), nil
	}
	return toolcall.JSON(call, r), nil
}

func (e *Executor) temporalReasoning(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	operation, err := toolcall.Required(call, "operation")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	events, err := toolcall.Document(call, "event_data")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	params, err := toolcall.Object(call, "query_params")
	if err != nil {
		return toolcall.Error(call, err), nil
	}

	var out any
	if operation == OpIntegrateSHACL {
		out, err = e.temporal.WithSHACL(ctx, events, toolcall.String(call, "shapes_turtle", ""), toolcall.String(call, "query", ""))
	} else {
		out, err = e.temporal.Reason(ctx, operation, events, params)
	}
	if err != nil {
		return toolcall.Failure(call, err), nil
	}
	return toolcall.JSON(call, out), nil
}
