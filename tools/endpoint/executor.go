// Package endpoint provides tools for querying SPARQL endpoints, fetching
// linked data resources and checking queries before they are sent.
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/c360studio/semstreams/agentic"

	"github.com/c360studio/semlink/fetch"
	"github.com/c360studio/semlink/rdf"
	"github.com/c360studio/semlink/sparql"
	"github.com/c360studio/semlink/tools/toolcall"
)

// DefaultTimeout bounds remote requests when the call sets no timeout.
const DefaultTimeout = 30 * time.Second

// DefaultLocalLimit is added to local SELECT queries without a LIMIT.
const DefaultLocalLimit = 100

// Store is the graph store that fetched and constructed data is ingested
// into and that local queries run against.
type Store interface {
	fetch.Ingester
	Dataset(ctx context.Context) (*rdf.Dataset, error)
}

// Executor implements the SPARQL and linked data fetch tools.
type Executor struct {
	sparql  *sparql.Tools
	fetcher *fetch.LDFetcher
	store   Store
	timeout time.Duration
	limit   int
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout sets the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLocalLimit sets the LIMIT added to unbounded local queries.
func WithLocalLimit(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.limit = n
		}
	}
}

// NewExecutor creates the executor. store may be nil, in which case results
// cannot be stored and local queries fail.
func NewExecutor(tools *sparql.Tools, fetcher *fetch.LDFetcher, store Store, opts ...Option) *Executor {
	e := &Executor{
		sparql:  tools,
		fetcher: fetcher,
		store:   store,
		timeout: DefaultTimeout,
		limit:   DefaultLocalLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute executes a SPARQL tool call.
func (e *Executor) Execute(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	switch call.Name {
	case "sparql_query":
		return e.query(ctx, call)
	case "describe_resource":
		return e.describe(ctx, call)
	case "sparql_discover":
		return e.discover(ctx, call)
	case "ld_fetch":
		return e.ldFetch(ctx, call)
	case "sparql_json_to_jsonld":
		return e.toJSONLD(call)
	case "check_query_patterns":
		return e.checkPatterns(call)
	case "generate_query_fixes":
		return e.generateFixes(call)
	case "query_graph":
		return e.queryGraph(ctx, call)
	default:
		return toolcall.Unknown(call)
	}
}

// ListTools returns the tool definitions for SPARQL operations.
func (e *Executor) ListTools() []agentic.ToolDefinition {
	endpointURL := toolcall.Param("string", "URL of the SPARQL endpoint")
	timeout := toolcall.Param("integer", "Request timeout in seconds (default: 30)")
	graphID := toolcall.Param("string", "Named graph that stored results go to")
	return []agentic.ToolDefinition{
		{
			Name:        "sparql_query",
			Description: "Execute a SPARQL query against a SPARQL 1.1 endpoint. SELECT and ASK return bindings or a boolean; CONSTRUCT and DESCRIBE return RDF that can be stored in the local graph.",
			Parameters: toolcall.Schema(map[string]any{
				"endpoint_url":  endpointURL,
				"query":         toolcall.Param("string", "SPARQL query string"),
				"query_type":    toolcall.Enum("Query form (default: SELECT)", "SELECT", "ASK", "CONSTRUCT", "DESCRIBE"),
				"result_format": toolcall.Param("string", "json, xml, csv or tsv for SELECT/ASK; json-ld, turtle, n-triples or xml for CONSTRUCT/DESCRIBE"),
				"store_result":  toolcall.Param("boolean", "Store CONSTRUCT/DESCRIBE results in the local graph"),
				"graph_id":      graphID,
				"timeout":       timeout,
			}, "endpoint_url", "query"),
		},
		{
			Name:        "describe_resource",
			Description: "DESCRIBE a resource at a SPARQL endpoint and store the description in the local graph.",
			Parameters: toolcall.Schema(map[string]any{
				"endpoint_url":  endpointURL,
				"uri":           toolcall.Param("string", "Resource URI to describe"),
				"result_format": toolcall.Param("string", "RDF serialization (default: json-ld)"),
				"store_result":  toolcall.Param("boolean", "Store the description (default: true)"),
				"graph_id":      graphID,
			}, "endpoint_url", "uri"),
		},
		{
			Name:        "sparql_discover",
			Description: "Discover what a SPARQL endpoint holds using VoID, its service description and sample queries.",
			Parameters: toolcall.Schema(map[string]any{
				"endpoint_url": endpointURL,
				"method":       toolcall.Enum("Discovery method (default: all)", sparql.DiscoverVoID, sparql.DiscoverServiceDesc, sparql.DiscoverIntrospect, sparql.DiscoverAll),
				"timeout":      timeout,
			}, "endpoint_url"),
		},
		{
			Name:        "ld_fetch",
			Description: "Fetch a linked data resource with content negotiation and store it in the local graph.",
			Parameters: toolcall.Schema(map[string]any{
				"uri":          toolcall.Param("string", "Resource URI to fetch"),
				"format":       toolcall.Enum("Preferred RDF format (default: json-ld)", "json-ld", "turtle", "xml", "n-triples"),
				"store_result": toolcall.Param("boolean", "Store the fetched data (default: true)"),
				"graph_id":     graphID,
				"timeout":      timeout,
			}, "uri"),
		},
		{
			Name:        "sparql_json_to_jsonld",
			Description: "Convert SPARQL SELECT or ASK JSON results into a JSON-LD document.",
			Parameters: toolcall.Schema(map[string]any{
				"sparql_json": toolcall.Param("string", "SPARQL JSON results"),
				"base_uri":    toolcall.Param("string", "Base URI of the result document"),
			}, "sparql_json"),
		},
		{
			Name:        "check_query_patterns",
			Description: "Check a SPARQL query for syntax errors and risky patterns such as a missing LIMIT, unbound variables or cartesian products.",
			Parameters: toolcall.Schema(map[string]any{
				"query": toolcall.Param("string", "SPARQL query string"),
			}, "query"),
		},
		{
			Name:        "generate_query_fixes",
			Description: "Suggest fixes for a SPARQL query from the output of check_query_patterns or validate_query_against_ontology.",
			Parameters: toolcall.Schema(map[string]any{
				"query":             toolcall.Param("string", "SPARQL query string"),
				"validation_result": toolcall.Param("object", "Warnings and violations found for the query"),
			}, "query"),
		},
		{
			Name:        "query_graph",
			Description: "Run a SPARQL query over the local graph, including every stored named graph.",
			Parameters: toolcall.Schema(map[string]any{
				"query":         toolcall.Param("string", "SPARQL query string"),
				"result_format": toolcall.Param("string", "json, xml, csv or tsv for SELECT/ASK; turtle, n-triples or json-ld for CONSTRUCT/DESCRIBE"),
			}, "query"),
		},
	}
}

func (e *Executor) queryOptions(call agentic.ToolCall, format string, store bool) sparql.QueryOptions {
	return sparql.QueryOptions{
		QueryType:    toolcall.String(call, "query_type", ""),
		ResultFormat: toolcall.String(call, "result_format", format),
		Store:        toolcall.Bool(call, "store_result", store),
		GraphID:      toolcall.String(call, "graph_id", ""),
		Timeout:      toolcall.Seconds(call, "timeout", e.timeout),
	}
}

func (e *Executor) query(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	endpointURL, err := toolcall.Required(call, "endpoint_url")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	query, err := toolcall.Required(call, "query")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	return payload(call, e.sparql.Query(ctx, endpointURL, query, e.queryOptions(call, "", false))), nil
}

func (e *Executor) describe(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	endpointURL, err := toolcall.Required(call, "endpoint_url")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	uri, err := toolcall.Required(call, "uri")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	return payload(call, e.sparql.DescribeResource(ctx, endpointURL, uri, e.queryOptions(call, "json-ld", true))), nil
}

// payload encodes a tool map, surfacing success=false as the result error.
func payload(call agentic.ToolCall, out map[string]any) agentic.ToolResult {
	res := toolcall.JSON(call, out)
	if ok, _ := out["success"].(bool); !ok {
		if msg, _ := out["error"].(string); msg != "" {
			res.Error = msg
		}
	}
	return res
}

func (e *Executor) discover(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	endpointURL, err := toolcall.Required(call, "endpoint_url")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	d := e.sparql.Discover(ctx, endpointURL, toolcall.String(call, "method", sparql.DiscoverAll), toolcall.Seconds(call, "timeout", e.timeout))
	res := toolcall.JSON(call, d)
	if !d.Success {
		res.Error = d.Error
	}
	return res, nil
}

func (e *Executor) ldFetch(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	uri, err := toolcall.Required(call, "uri")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	out := e.fetcher.Fetch(ctx, uri, fetch.LDFetchOptions{
		Format:  toolcall.String(call, "format", "json-ld"),
		Store:   toolcall.Bool(call, "store_result", true) && e.store != nil,
		GraphID: toolcall.String(call, "graph_id", ""),
		Timeout: toolcall.Seconds(call, "timeout", e.timeout),
	})
	res := toolcall.JSON(call, out)
	if !out.Success {
		res.Error = out.Error
	}
	return res, nil
}

func (e *Executor) toJSONLD(call agentic.ToolCall) (agentic.ToolResult, error) {
	data, err := toolcall.Document(call, "sparql_json")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	out, err := e.sparql.ToJSONLD([]byte(data), toolcall.String(call, "base_uri", ""))
	if err != nil {
		return toolcall.Failure(call, err), nil
	}
	return toolcall.Text(call, out), nil
}

func (e *Executor) checkPatterns(call agentic.ToolCall) (agentic.ToolResult, error) {
	query, err := toolcall.Required(call, "query")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	check := sparql.CheckPatterns(query)
	res := toolcall.JSON(call, check)
	if !check.Success {
		res.Error = check.Error
	}
	return res, nil
}

// validationResult accepts both lint output (warnings) and ontology
// validation output (violations, issues).
type validationResult struct {
	Warnings   []sparql.Warning `json:"warnings"`
	Violations []any            `json:"violations"`
	Issues     []string         `json:"issues"`
}

func (e *Executor) generateFixes(call agentic.ToolCall) (agentic.ToolResult, error) {
	query, err := toolcall.Required(call, "query")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	var vr validationResult
	if err := toolcall.Decode(call, "validation_result", &vr); err != nil {
		return toolcall.Error(call, err), nil
	}
	v := sparql.Validation{Warnings: vr.Warnings}
	for _, item := range vr.Violations {
		switch item := item.(type) {
		case string:
			v.Violations = append(v.Violations, item)
		case map[string]any:
			s, _ := item["type"].(string)
			if expl, _ := item["explanation"].(string); expl != "" {
				s += " - " + expl
			}
			v.Violations = append(v.Violations, s)
		}
	}
	if len(v.Violations) == 0 {
		v.Violations = vr.Issues
	}
	return toolcall.JSON(call, sparql.GenerateFixes(query, v)), nil
}

// queryGraph evaluates a query over a snapshot of the local store.
func (e *Executor) queryGraph(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	query, err := toolcall.Required(call, "query")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	if e.store == nil {
		return toolcall.Failure(call, errors.New("no graph store configured")), nil
	}
	ds, err := e.store.Dataset(ctx)
	if err != nil {
		return toolcall.Failure(call, fmt.Errorf("read graph: %w", err)), nil
	}
	q, err := sparql.Parse(query)
	if err != nil {
		return toolcall.Failure(call, err), nil
	}
	if q.Form == sparql.FormSelect && q.Limit < 0 {
		query = sparql.AddLimit(query, e.limit)
	}
	results, err := sparql.Exec(ctx, ds, query, sparql.WithUnionDefaultGraph())
	if err != nil {
		return toolcall.Failure(call, err), nil
	}

	format := strings.ToLower(toolcall.String(call, "result_format", ""))
	out := map[string]any{"success": true, "query_type": string(results.Form)}
	switch results.Form {
	case sparql.FormSelect, sparql.FormAsk:
		if format == "" || format == sparql.ResultsJSON {
			if results.Form == sparql.FormAsk {
				out["result"] = results.Boolean
			} else {
				out["vars"] = results.Vars
				out["results"] = results.Simplify()
				out["count"] = len(results.Solutions)
			}
			return toolcall.JSON(call, out), nil
		}
		data, err := results.Serialize(format)
		if err != nil {
			return toolcall.Failure(call, err), nil
		}
		out["format"] = format
		out["data"] = data
	default:
		data, err := writeGraph(results.Graph, format)
		if err != nil {
			return toolcall.Failure(call, err), nil
		}
		out["format"] = format
		out["triple_count"] = results.Graph.Len()
		out["data"] = data
	}
	return toolcall.JSON(call, out), nil
}

func writeGraph(g *rdf.Graph, format string) (string, error) {
	switch format {
	case "", "turtle", "ttl":
		return rdf.WriteTurtle(g), nil
	case "n-triples", "ntriples", "nt":
		return rdf.WriteNTriples(g), nil
	case "json-ld", "jsonld":
		return rdf.GraphToJSONLDString(g, nil)
	}
	return "", fmt.Errorf("unsupported graph format %q", format)
}
