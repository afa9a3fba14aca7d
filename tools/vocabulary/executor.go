// Package vocabulary provides tools for looking up registered JSON-LD
// vocabularies, composing contexts from them and retrieving linked data
// resources.
package vocabulary

import (
	"context"
	"errors"
	"fmt"

	"github.com/c360studio/semstreams/agentic"

	"github.com/c360studio/semlink/retriever"
	"github.com/c360studio/semlink/tools/toolcall"
	"github.com/c360studio/semlink/vocab"
)

// Executor implements the vocabulary tools.
type Executor struct {
	manager   *vocab.Manager
	retriever *retriever.Retriever
}

// NewExecutor creates the executor.
func NewExecutor(manager *vocab.Manager, r *retriever.Retriever) *Executor {
	return &Executor{manager: manager, retriever: r}
}

// Execute executes a vocabulary tool call.
func (e *Executor) Execute(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	switch call.Name {
	case "vocab_lookup":
		return e.lookup(ctx, call)
	case "vocab_list":
		return e.list(call)
	case "compose_context":
		return e.composeContext(call)
	case "detect_vocabularies":
		return e.detect(call)
	case "apply_collision_strategy":
		return e.applyStrategy(call)
	case "lod_retrieve":
		return e.retrieve(ctx, call)
	case "search_wikidata":
		return e.searchWikidata(ctx, call)
	case "wikidata_entity":
		return e.wikidataEntity(ctx, call)
	default:
		return toolcall.Unknown(call)
	}
}

// ListTools returns the tool definitions for vocabulary operations.
func (e *Executor) ListTools() []agentic.ToolDefinition {
	strategies := make([]string, 0, len(vocab.Strategies()))
	for _, s := range vocab.Strategies() {
		strategies = append(strategies, s.Name)
	}
	return []agentic.ToolDefinition{
		{
			Name:        "vocab_lookup",
			Description: "Describe a registered vocabulary by name or prefix: its namespace, context location, features and common terms. Optionally load its JSON-LD context.",
			Parameters: toolcall.Schema(map[string]any{
				"name":         toolcall.Param("string", "Vocabulary name or prefix, e.g. schema or dcat"),
				"load_context": toolcall.Param("boolean", "Also load and return the vocabulary's @context"),
			}, "name"),
		},
		{
			Name:        "vocab_list",
			Description: "List the registered vocabularies, the collision strategies between them and which contexts are loaded.",
			Parameters:  toolcall.Schema(map[string]any{}),
		},
		{
			Name:        "compose_context",
			Description: "Compose a JSON-LD 1.1 @context from several vocabularies and report how their term collisions are resolved.",
			Parameters: toolcall.Schema(map[string]any{
				"vocabularies": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Vocabulary names or prefixes"},
				"strategy":     toolcall.Enum("Collision strategy overriding the registered ones", strategies...),
			}, "vocabularies"),
		},
		{
			Name:        "detect_vocabularies",
			Description: "Detect which registered vocabularies a JSON-LD @context uses.",
			Parameters: toolcall.Schema(map[string]any{
				"context": toolcall.Param("object", "A JSON-LD @context value: a URL, an object or a list of them"),
			}, "context"),
		},
		{
			Name:        "apply_collision_strategy",
			Description: "Rewrite a JSON-LD document so that terms of two colliding vocabularies no longer clash.",
			Parameters: toolcall.Schema(map[string]any{
				"data":         toolcall.Param("object", "JSON-LD document with a @context"),
				"vocabularies": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "The two colliding vocabularies"},
				"strategy":     toolcall.Param("string", "Strategy name, or a full strategy object"),
			}, "data"),
		},
		{
			Name:        "lod_retrieve",
			Description: "Retrieve any linked data URI as JSON-LD, choosing the access strategy by domain and extracting embedded data from HTML pages.",
			Parameters: toolcall.Schema(map[string]any{
				"uri": toolcall.Param("string", "URI to retrieve"),
			}, "uri"),
		},
		{
			Name:        "search_wikidata",
			Description: "Search Wikidata items by label.",
			Parameters: toolcall.Schema(map[string]any{
				"query":    toolcall.Param("string", "Search text"),
				"limit":    toolcall.Param("integer", "Maximum number of results (default: 10)"),
				"language": toolcall.Param("string", "Search language (default: en)"),
			}, "query"),
		},
		{
			Name:        "wikidata_entity",
			Description: "Get the labels, descriptions, classes and common properties of a Wikidata entity.",
			Parameters: toolcall.Schema(map[string]any{
				"id": toolcall.Param("string", "Entity ID such as Q42"),
			}, "id"),
		},
	}
}

func (e *Executor) lookup(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	name, err := toolcall.Required(call, "name")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	info, err := e.manager.VocabularyInfo(name)
	if err != nil {
		return toolcall.Failure(call, err), nil
	}
	out := map[string]any{"success": true, "vocabulary": info}
	if toolcall.Bool(call, "load_context", false) {
		doc, err := e.manager.LoadContext(ctx, info.Name)
		if err != nil {
			return toolcall.Failure(call, err), nil
		}
		out["context"] = doc["@context"]
		out["loaded"] = true
	}
	return toolcall.JSON(call, out), nil
}

type vocabSummary struct {
	Name         string `json:"name"`
	Prefix       string `json:"prefix"`
	URI          string `json:"uri"`
	Title        string `json:"title,omitempty"`
	SupportLevel string `json:"support_level"`
}

func (e *Executor) list(call agentic.ToolCall) (agentic.ToolResult, error) {
	all := e.manager.Registry().All()
	summaries := make([]vocabSummary, 0, len(all))
	for _, v := range all {
		summaries = append(summaries, vocabSummary{
			Name:         v.Name,
			Prefix:       v.Prefix,
			URI:          v.URI,
			Title:        v.Title,
			SupportLevel: string(v.SupportLevel),
		})
	}
	return toolcall.JSON(call, map[string]any{
		"success":      true,
		"vocabularies": summaries,
		"strategies":   vocab.Strategies(),
		"collisions":   vocab.StrategyPairs(),
		"loaded":       e.manager.LoadedVocabularies(),
	}), nil
}

func (e *Executor) composeContext(call agentic.ToolCall) (agentic.ToolResult, error) {
	names := toolcall.Strings(call, "vocabularies")
	if len(names) == 0 {
		return toolcall.Error(call, errors.New("vocabularies argument is required")), nil
	}
	composed, err := e.manager.Registry().ComposeContext(names, toolcall.String(call, "strategy", ""))
	if err != nil {
		return toolcall.Failure(call, err), nil
	}
	return toolcall.JSON(call, map[string]any{"success": true, "result": composed}), nil
}

func (e *Executor) detect(call agentic.ToolCall) (agentic.ToolResult, error) {
	raw, ok := call.Arguments["context"]
	if !ok || raw == nil {
		return toolcall.Error(call, errors.New("context argument is required")), nil
	}
	if m, err := toolcall.Object(call, "context"); err == nil && m != nil {
		raw = m
		if inner, ok := m["@context"]; ok {
			raw = inner
		}
	}
	names := e.manager.Registry().DetectVocabularies(raw)
	if names == nil {
		names = []string{}
	}
	return toolcall.JSON(call, map[string]any{"success": true, "vocabularies": names}), nil
}

func (e *Executor) applyStrategy(call agentic.ToolCall) (agentic.ToolResult, error) {
	data, err := toolcall.Object(call, "data")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	if data == nil {
		return toolcall.Error(call, errors.New("data argument is required")), nil
	}
	reg := e.manager.Registry()

	var strategy *vocab.CollisionStrategy
	if _, ok := call.Arguments["strategy"].(map[string]any); ok {
		strategy = &vocab.CollisionStrategy{}
		if err := toolcall.Decode(call, "strategy", strategy); err != nil {
			return toolcall.Error(call, err), nil
		}
	} else {
		names := toolcall.Strings(call, "vocabularies")
		if len(names) == 2 {
			if s, ok := reg.StrategyFor(names[0], names[1]); ok {
				strategy = s
			}
		}
		if name := toolcall.String(call, "strategy", ""); name != "" {
			if strategy == nil {
				strategy = &vocab.CollisionStrategy{Vocabs: names}
			}
			strategy.Strategy = name
		}
	}
	if strategy == nil {
		return toolcall.Failure(call, fmt.Errorf("no collision strategy given or registered for %v", toolcall.Strings(call, "vocabularies"))), nil
	}
	return toolcall.JSON(call, map[string]any{
		"success":  true,
		"strategy": strategy,
		"data":     reg.ApplyCollisionStrategy(data, strategy),
	}), nil
}

func (e *Executor) retrieve(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	uri, err := toolcall.Required(call, "uri")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	res, err := e.retriever.Retrieve(ctx, uri)
	if res == nil {
		return toolcall.Failure(call, err), nil
	}
	out := toolcall.JSON(call, res)
	if err != nil {
		out.Error = err.Error()
	}
	return out, nil
}

func (e *Executor) searchWikidata(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	query, err := toolcall.Required(call, "query")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	hits, err := e.retriever.SearchWikidata(ctx, query, toolcall.Int(call, "limit", 10), toolcall.String(call, "language", "en"))
	if err != nil {
		return toolcall.Failure(call, err), nil
	}
	return toolcall.JSON(call, map[string]any{"success": true, "results": hits, "count": len(hits)}), nil
}

func (e *Executor) wikidataEntity(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	id, err := toolcall.Required(call, "id")
	if err != nil {
		return toolcall.Error(call, err), nil
	}
	details, err := e.retriever.EntityDetails(ctx, id)
	if err != nil {
		return toolcall.Failure(call, err), nil
	}
	return toolcall.JSON(call, map[string]any{"success": true, "entity": details}), nil
}
