// Package session provides the exploration tools an agent uses on the
// vocabulary and dataset it has loaded: term lookup, relationship
// navigation, dataset search and evidence collection.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/c360studio/semstreams/agentic"

	"github.com/c360studio/semlink/fetch"
	"github.com/c360studio/semlink/knowledge"
	"github.com/c360studio/semlink/retriever"
	"github.com/c360studio/semlink/tools/toolcall"
)

// Kinds of knowledge load_knowledge accepts.
const (
	KindVocabulary = "vocabulary"
	KindDataset    = "dataset"
)

// Executor implements the knowledge exploration tools over one session.
type Executor struct {
	session   *knowledge.Session
	fetcher   *fetch.Fetcher
	retriever *retriever.Retriever
	opts      []knowledge.Option
}

// NewExecutor creates the executor. opts apply to knowledge bases built
// from fetched vocabularies and must match those of the session.
func NewExecutor(s *knowledge.Session, f *fetch.Fetcher, r *retriever.Retriever, opts ...knowledge.Option) *Executor {
	return &Executor{session: s, fetcher: f, retriever: r, opts: opts}
}

// Session returns the session the tools work on.
func (e *Executor) Session() *knowledge.Session { return e.session }

// Execute executes a knowledge tool call.
func (e *Executor) Execute(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	switch call.Name {
	case "load_knowledge":
		return e.load(ctx, call)
	case "find_vocabulary_term":
		return e.findTerm(call)
	case "follow_relationship":
		return e.followRelationship(call)
	case "summarize_vocabulary":
		return e.summarizeVocabulary(call)
	case "create_scoped_context":
		return e.scopedContext(call)
	case "explore_graph":
		return e.exploreGraph(call)
	case "entity_neighborhood":
		return e.neighborhood(call)
	case "find_paths":
		return e.findPaths(call)
	case "explore_dataset":
		return e.exploreDataset(call)
	case "search_dataset":
		return e.searchDataset(call)
	case "get_dataset_evidence":
		return e.datasetEvidence(call)
	case "collect_evidence":
		return e.collectEvidence(call)
	case "summarize_evidence":
		return toolcall.Text(call, e.session.SummarizeEvidence(toolcall.String(call, "topic", ""))), nil
	default:
		return toolcall.Unknown(call)
	}
}

// ListTools returns the tool definitions for knowledge operations.
func (e *Executor) ListTools() []agentic.ToolDefinition {
	entityID := toolcall.Param("string", "Entity @id, prefixed name or last path segment")
	return []agentic.ToolDefinition{
		{
			Name:        "load_knowledge",
			Description: "Load a vocabulary or a dataset to explore, from a URL, a JSON-LD document or an HTML page with embedded JSON-LD.",
			Parameters: toolcall.Schema(map[string]any{
				"kind":               toolcall.Enum("What is loaded", KindVocabulary, KindDataset),
				"uri":                toolcall.Param("string", "URL to fetch"),
				"data":               toolcall.Param("string", "JSON-LD document"),
				"html":               toolcall.Param("string", "HTML page whose JSON-LD scripts are loaded (vocabulary only)"),
				"merge":              toolcall.Param("boolean", "Merge into the loaded vocabulary instead of replacing it"),
				"ignore_link_header": toolcall.Param("boolean", "Do not follow a JSON-LD alternate Link header"),
			}, "kind"),
		},
		{
			Name:        "find_vocabulary_term",
			Description: "Find a term in the loaded vocabulary and return its definition.",
			Parameters: toolcall.Schema(map[string]any{
				"term":        toolcall.Param("string", `Term to find, e.g. "Person", "schema:Person" or a full URI`),
				"search_type": toolcall.Enum("How to search (default: all)", "all", "id", "label", "type"),
			}, "term"),
		},
		{
			Name:        "follow_relationship",
			Description: "List the relationships of an entity in the loaded vocabulary, or follow one to the related entities.",
			Parameters: toolcall.Schema(map[string]any{
				"entity_id":       entityID,
				"relationship":    toolcall.Param("string", "Relationship to follow; omit to list the available ones"),
				"include_inverse": toolcall.Param("boolean", "Include relationships where the entity is the object"),
			}, "entity_id"),
		},
		{
			Name:        "summarize_vocabulary",
			Description: "Summarize the classes and properties of the loaded vocabulary.",
			Parameters:  toolcall.Schema(map[string]any{}),
		},
		{
			Name:        "create_scoped_context",
			Description: "Compact the loaded vocabulary with a type-scoped context for one domain class.",
			Parameters: toolcall.Schema(map[string]any{
				"domain":     toolcall.Param("string", "Class the scoped context belongs to"),
				"properties": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Properties scoped to the class"},
				"base_uri":   toolcall.Param("string", "Namespace of the properties (default: schema.org)"),
			}, "domain", "properties"),
		},
		{
			Name:        "explore_graph",
			Description: "Explore the named graphs of the loaded vocabulary: list them, summarize one, or inspect an entity or property inside it.",
			Parameters: toolcall.Schema(map[string]any{
				"graph_id":    toolcall.Param("string", "Named graph to explore"),
				"entity_id":   entityID,
				"property":    toolcall.Param("string", "Property to sample"),
				"sample_size": toolcall.Param("integer", "Number of sampled values (default: 5)"),
			}),
		},
		{
			Name:        "entity_neighborhood",
			Description: "Return the entities within a number of relationship steps of an entity as a JSON-LD graph.",
			Parameters: toolcall.Schema(map[string]any{
				"entity_id":       entityID,
				"depth":           toolcall.Param("integer", "Number of steps (default: 1)"),
				"max_relations":   toolcall.Param("integer", "Maximum relations followed per entity (default: 10)"),
				"include_inverse": toolcall.Param("boolean", "Also follow relationships pointing at the entity"),
			}, "entity_id"),
		},
		{
			Name:        "find_paths",
			Description: "Find relationship paths between two entities of the loaded vocabulary.",
			Parameters: toolcall.Schema(map[string]any{
				"from":      entityID,
				"to":        entityID,
				"max_depth": toolcall.Param("integer", "Maximum path length (default: 3)"),
			}, "from", "to"),
		},
		{
			Name:        "explore_dataset",
			Description: "Explore the loaded dataset at a dotted path such as recordSet[0].field.",
			Parameters: toolcall.Schema(map[string]any{
				"path":     toolcall.Param("string", "Path to explore; empty for the root"),
				"max_size": toolcall.Param("integer", "Maximum size of the returned JSON in characters (default: 4000)"),
			}),
		},
		{
			Name:        "search_dataset",
			Description: "Search keys and values of the loaded dataset and return the matching paths.",
			Parameters: toolcall.Schema(map[string]any{
				"query":          toolcall.Param("string", "Text to search for"),
				"case_sensitive": toolcall.Param("boolean", "Match case"),
			}, "query"),
		},
		{
			Name:        "get_dataset_evidence",
			Description: "Find values in the loaded dataset about a topic, with the objects they belong to.",
			Parameters: toolcall.Schema(map[string]any{
				"topic":       toolcall.Param("string", "Topic to find evidence about"),
				"max_results": toolcall.Param("integer", "Maximum number of items (default: 5)"),
			}, "topic"),
		},
		{
			Name:        "collect_evidence",
			Description: "Record an observation made while exploring linked data.",
			Parameters: toolcall.Schema(map[string]any{
				"topic":       toolcall.Param("string", "Topic of the observation"),
				"observation": toolcall.Param("string", "What was observed"),
				"source_term": toolcall.Param("string", "Term or path the observation comes from"),
				"importance":  toolcall.Enum("Importance (default: medium)", "high", "medium", "low"),
			}, "topic", "observation"),
		},
		{
			Name:        "summarize_evidence",
			Description: "Summarize the collected evidence, optionally for one topic.",
			Parameters: toolcall.Schema(map[string]any{
				"topic": toolcall.Param("string", "Topic to summarize; omit for all"),
			}),
		},
	}
}

func (e *Executor) load(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	kind, err := toolcall.Required(call, "kind")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	switch kind {
	case KindVocabulary:
		return e.loadVocabulary(ctx, call)
	case KindDataset:
		return e.loadDataset(ctx, call)
	}
	return toolcall.Error(call, fmt.Errorf("unknown kind %q", kind)), nil
}

func (e *Executor) loadVocabulary(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	uri := toolcall.String(call, "uri", "")
	data := toolcall.String(call, "data", "")
	html := toolcall.String(call, "html", "")
	if uri == "" && data == "" && html == "" {
		return toolcall.Error(call, errors.New("one of uri, data or html is required")), nil
	}

	fill := func(b *knowledge.Base) error {
		if uri != "" {
			opts := knowledge.FetchOptions{IgnoreLinkHeader: toolcall.Bool(call, "ignore_link_header", false)}
			if err := b.FetchVocabulary(ctx, e.fetcher, uri, opts); err != nil {
				return err
			}
		}
		if data != "" {
			doc, err := parseDocument(data)
			if err != nil {
				return err
			}
			b.Merge(doc)
		}
		if html != "" {
			n, err := b.ExtractJSONLDFromHTML(html)
			if err != nil {
				return err
			}
			if n == 0 {
				return errors.New("no JSON-LD found in the HTML")
			}
		}
		return nil
	}

	var entities int
	if toolcall.Bool(call, "merge", false) {
		err := e.session.UpdateVocabulary(func(b *knowledge.Base) error {
			if err := fill(b); err != nil {
				return err
			}
			entities = len(b.Entities())
			return nil
		})
		if err != nil {
			return toolcall.Failure(call, err), nil
		}
	} else {
		b := knowledge.New(nil, e.opts...)
		if err := fill(b); err != nil {
			return toolcall.Failure(call, err), nil
		}
		entities = len(b.Entities())
		e.session.LoadVocabulary(b.Data())
	}
	return toolcall.JSON(call, map[string]any{
		"success":  true,
		"kind":     KindVocabulary,
		"entities": entities,
	}), nil
}

func (e *Executor) loadDataset(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	var doc map[string]any
	switch {
	case toolcall.String(call, "data", "") != "":
		var err error
		if doc, err = parseDocument(toolcall.String(call, "data", "")); err != nil {
			return toolcall.Failure(call, err), nil
		}
	case toolcall.String(call, "uri", "") != "":
		res, err := e.retriever.Retrieve(ctx, toolcall.String(call, "uri", ""))
		if err != nil {
			return toolcall.Failure(call, err), nil
		}
		if doc = asDocument(res.Data); doc == nil {
			return toolcall.Failure(call, fmt.Errorf("retrieved data is %T, not a JSON-LD document", res.Data)), nil
		}
	default:
		return toolcall.Error(call, errors.New("one of uri or data is required")), nil
	}

	e.session.LoadDataset(doc)
	return toolcall.JSON(call, map[string]any{
		"success": true,
		"kind":    KindDataset,
		"keys":    len(doc),
	}), nil
}

// parseDocument reads JSON leniently and requires a document.
func parseDocument(data string) (map[string]any, error) {
	v, _, err := retriever.JSONParse(data)
	if err != nil {
		return nil, err
	}
	doc := asDocument(v)
	if doc == nil {
		return nil, fmt.Errorf("expected a JSON-LD document, got %T", v)
	}
	return doc, nil
}

func asDocument(v any) map[string]any {
	switch v := v.(type) {
	case map[string]any:
		return v
	case []any:
		return map[string]any{"@graph": v}
	}
	return nil
}

// onVocabulary runs fn on the vocabulary and returns its markdown.
func (e *Executor) onVocabulary(call agentic.ToolCall, fn func(*knowledge.Base) string) agentic.ToolResult {
	var out string
	err := e.session.Vocabulary(func(b *knowledge.Base) error {
		out = fn(b)
		return nil
	})
	if err != nil {
		return toolcall.Error(call, err)
	}
	return toolcall.Text(call, out)
}

// onDataset runs fn on the dataset and returns its markdown.
func (e *Executor) onDataset(call agentic.ToolCall, fn func(*knowledge.Base) (string, error)) agentic.ToolResult {
	var out string
	err := e.session.Dataset(func(b *knowledge.Base) error {
		var err error
		out, err = fn(b)
		return err
	})
	if err != nil {
		return toolcall.Error(call, err)
	}
	return toolcall.Text(call, out)
}

func (e *Executor) findTerm(call agentic.ToolCall) (agentic.ToolResult, error) {
	term, err := toolcall.Required(call, "term")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	searchType := toolcall.String(call, "search_type", "all")
	return e.onVocabulary(call, func(b *knowledge.Base) string {
		return b.FindTerm(term, searchType)
	}), nil
}

func (e *Executor) followRelationship(call agentic.ToolCall) (agentic.ToolResult, error) {
	id, err := toolcall.Required(call, "entity_id")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	rel := toolcall.String(call, "relationship", "")
	inverse := toolcall.Bool(call, "include_inverse", false)
	return e.onVocabulary(call, func(b *knowledge.Base) string {
		return b.RelationshipReport(id, rel, inverse)
	}), nil
}

func (e *Executor) summarizeVocabulary(call agentic.ToolCall) (agentic.ToolResult, error) {
	return e.onVocabulary(call, func(b *knowledge.Base) string {
		return b.SummarizeVocabulary()
	}), nil
}

func (e *Executor) scopedContext(call agentic.ToolCall) (agentic.ToolResult, error) {
	domain, err := toolcall.Required(call, "domain")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	props := toolcall.Strings(call, "properties")
	if len(props) == 0 {
		return toolcall.Error(call, errors.New("properties argument is required")), nil
	}
	var ctxDoc any
	err = e.session.UpdateVocabulary(func(b *knowledge.Base) error {
		if err := b.CreateScopedContext(domain, props, toolcall.String(call, "base_uri", "")); err != nil {
			return err
		}
		ctxDoc = b.Context()
		return nil
	})
	if err != nil {
		return toolcall.Failure(call, err), nil
	}
	return toolcall.JSON(call, map[string]any{"success": true, "context": ctxDoc}), nil
}

func (e *Executor) exploreGraph(call agentic.ToolCall) (agentic.ToolResult, error) {
	graphID := toolcall.String(call, "graph_id", "")
	entityID := toolcall.String(call, "entity_id", "")
	property := toolcall.String(call, "property", "")
	sample := toolcall.Int(call, "sample_size", 5)
	return e.onVocabulary(call, func(b *knowledge.Base) string {
		return b.ExploreGraph(graphID, entityID, property, sample)
	}), nil
}

func (e *Executor) neighborhood(call agentic.ToolCall) (agentic.ToolResult, error) {
	id, err := toolcall.Required(call, "entity_id")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	var out map[string]any
	err = e.session.Vocabulary(func(b *knowledge.Base) error {
		out = b.Neighborhood(id, toolcall.Int(call, "depth", 1), toolcall.Int(call, "max_relations", 10), toolcall.Bool(call, "include_inverse", false))
		return nil
	})
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	return toolcall.JSON(call, out), nil
}

func (e *Executor) findPaths(call agentic.ToolCall) (agentic.ToolResult, error) {
	from, err := toolcall.Required(call, "from")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	to, err := toolcall.Required(call, "to")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	maxDepth := toolcall.Int(call, "max_depth", 3)
	return e.onVocabulary(call, func(b *knowledge.Base) string {
		paths := b.FindPaths(from, to, maxDepth)
		if len(paths) == 0 {
			return fmt.Sprintf("No paths found from '%s' to '%s' within %d steps.", from, to, maxDepth)
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "# Paths from '%s' to '%s'\n", from, to)
		for i, path := range paths {
			ids := make([]string, 0, len(path))
			for _, entity := range path {
				id, _ := entity["@id"].(string)
				ids = append(ids, id)
			}
			fmt.Fprintf(&sb, "\n%d. %s", i+1, strings.Join(ids, " -> "))
		}
		return sb.String()
	}), nil
}

func (e *Executor) exploreDataset(call agentic.ToolCall) (agentic.ToolResult, error) {
	path := toolcall.String(call, "path", "")
	maxSize := toolcall.Int(call, "max_size", 4000)
	return e.onDataset(call, func(b *knowledge.Base) (string, error) {
		return b.Explore(path, maxSize)
	}), nil
}

func (e *Executor) searchDataset(call agentic.ToolCall) (agentic.ToolResult, error) {
	query, err := toolcall.Required(call, "query")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	caseSensitive := toolcall.Bool(call, "case_sensitive", false)
	return e.onDataset(call, func(b *knowledge.Base) (string, error) {
		return b.SearchMarkdown(query, caseSensitive), nil
	}), nil
}

func (e *Executor) datasetEvidence(call agentic.ToolCall) (agentic.ToolResult, error) {
	topic, err := toolcall.Required(call, "topic")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	limit := toolcall.Int(call, "max_results", 5)
	return e.onDataset(call, func(b *knowledge.Base) (string, error) {
		return b.EvidenceMarkdown(topic, limit), nil
	}), nil
}

func (e *Executor) collectEvidence(call agentic.ToolCall) (agentic.ToolResult, error) {
	topic, err := toolcall.Required(call, "topic")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	observation, err := toolcall.Required(call, "observation")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	importance := toolcall.String(call, "importance", "medium")
	n := e.session.CollectEvidence(topic, observation, toolcall.String(call, "source_term", ""), importance)
	return toolcall.Text(call, fmt.Sprintf("Evidence collected about '%s' (importance: %s). Total evidence items: %d", topic, importance, n)), nil
}

