package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/c360studio/semstreams/agentic"
	"github.com/c360studio/semstreams/metric"
	agentictools "github.com/c360studio/semstreams/processor/agentic-tools"

	"github.com/c360studio/semlink/cache"
	"github.com/c360studio/semlink/fetch"
	"github.com/c360studio/semlink/graph"
	"github.com/c360studio/semlink/knowledge"
	"github.com/c360studio/semlink/retriever"
	"github.com/c360studio/semlink/sparql"
	"github.com/c360studio/semlink/temporal"
	"github.com/c360studio/semlink/tools/endpoint"
	"github.com/c360studio/semlink/tools/graphfile"
	"github.com/c360studio/semlink/tools/reasoning"
	"github.com/c360studio/semlink/tools/session"
	"github.com/c360studio/semlink/tools/vocabulary"
	"github.com/c360studio/semlink/vocab"
)

// Deps are the components the tools run on. Nil fields are built with
// defaults sharing the same fetcher, cache and vocabulary manager.
type Deps struct {
	Fetcher   *fetch.Fetcher
	Cache     cache.Cache
	Graph     *graph.Manager
	Vocab     *vocab.Manager
	Retriever *retriever.Retriever
	Session   *knowledge.Session
	Temporal  *temporal.Reasoner

	// OntologyRoot is the directory ontology_path arguments resolve
	// against. Empty disables ontology files.
	OntologyRoot string
	// WorkspaceRoot is the directory graph files are read from and
	// written to. Empty disables the graph file tools.
	WorkspaceRoot string

	SPARQLTimeout time.Duration
	SPARQLLimit   int

	Logger   *slog.Logger
	Metrics  *metric.MetricsRegistry
	Recorder CallRecorder
}

// Registry holds every tool, each executor wrapped for recording.
type Registry struct {
	executors *agentictools.ExecutorRegistry
	byName    map[string]*RecordingExecutor
	wrapped   []*RecordingExecutor
	deps      Deps
}

// NewRegistry builds the tool executors from deps and registers their
// tools.
func NewRegistry(deps Deps) (*Registry, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	logger := deps.Logger

	if deps.Fetcher == nil {
		deps.Fetcher = fetch.New(fetch.DefaultConfig(), fetch.WithLogger(logger), fetch.WithMetrics(deps.Metrics))
	}
	if deps.Vocab == nil {
		opts := []vocab.ManagerOption{vocab.WithLogger(logger)}
		if deps.Cache != nil {
			opts = append(opts, vocab.WithCache(deps.Cache))
		}
		deps.Vocab = vocab.NewManager(deps.Fetcher, opts...)
	}
	if deps.Graph == nil {
		deps.Graph = graph.NewManager(graph.WithDocumentLoader(deps.Vocab), graph.WithLogger(logger))
	}
	if deps.Retriever == nil {
		opts := []retriever.Option{retriever.WithRegistry(deps.Vocab.Registry()), retriever.WithLogger(logger)}
		if deps.Cache != nil {
			opts = append(opts, retriever.WithCache(deps.Cache))
		}
		deps.Retriever = retriever.New(deps.Fetcher, opts...)
	}
	knowledgeOpts := []knowledge.Option{knowledge.WithDocumentLoader(deps.Vocab), knowledge.WithLogger(logger)}
	if deps.Session == nil {
		deps.Session = knowledge.NewSession(knowledgeOpts...)
	}
	if deps.Temporal == nil {
		deps.Temporal = temporal.New(temporal.WithDocumentLoader(deps.Vocab), temporal.WithLogger(logger))
	}

	metrics, err := newToolMetrics(deps.Metrics)
	if err != nil {
		return nil, fmt.Errorf("register tool metrics: %w", err)
	}

	client := sparql.NewClient(deps.Fetcher, logger)
	executors := []agentictools.ToolExecutor{
		endpoint.NewExecutor(
			sparql.NewTools(client, deps.Graph, logger),
			fetch.NewLDFetcher(deps.Fetcher, deps.Graph, deps.Vocab, logger),
			deps.Graph,
			endpoint.WithTimeout(deps.SPARQLTimeout),
			endpoint.WithLocalLimit(deps.SPARQLLimit),
		),
		reasoning.NewExecutor(deps.Temporal, deps.OntologyRoot),
		vocabulary.NewExecutor(deps.Vocab, deps.Retriever),
		session.NewExecutor(deps.Session, deps.Fetcher, deps.Retriever, knowledgeOpts...),
		graphfile.NewExecutor(deps.WorkspaceRoot, deps.Graph),
	}

	r := &Registry{
		executors: agentictools.NewExecutorRegistry(),
		byName:    make(map[string]*RecordingExecutor),
		deps:      deps,
	}
	recOpts := []RecordingOption{withToolMetrics(metrics), WithRecordingLogger(logger)}
	if deps.Recorder != nil {
		recOpts = append(recOpts, WithRecorder(deps.Recorder))
	}
	for _, exec := range executors {
		wrapped := NewRecordingExecutor(exec, recOpts...)
		r.wrapped = append(r.wrapped, wrapped)
		for _, tool := range wrapped.ListTools() {
			if err := r.executors.RegisterTool(tool.Name, wrapped); err != nil {
				return nil, fmt.Errorf("register tool %s: %w", tool.Name, err)
			}
			r.byName[tool.Name] = wrapped
		}
	}
	return r, nil
}

// Deps returns the components the tools were built on.
func (r *Registry) Deps() Deps { return r.deps }

// Execute runs the named tool.
func (r *Registry) Execute(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	if _, ok := r.byName[call.Name]; !ok {
		return agentic.ToolResult{
			CallID: call.ID,
			Error:  fmt.Sprintf("unknown tool: %s", call.Name),
		}, fmt.Errorf("unknown tool: %s", call.Name)
	}
	return r.executors.Execute(ctx, call)
}

// ListTools returns every tool definition sorted by name.
func (r *Registry) ListTools() []agentic.ToolDefinition {
	tools := r.executors.ListTools()
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// Lookup returns the definition of the named tool.
func (r *Registry) Lookup(name string) (agentic.ToolDefinition, bool) {
	exec, ok := r.byName[name]
	if !ok {
		return agentic.ToolDefinition{}, false
	}
	for _, tool := range exec.ListTools() {
		if tool.Name == name {
			return tool, true
		}
	}
	return agentic.ToolDefinition{}, false
}

// Executors returns the recording executors, one per tool group.
func (r *Registry) Executors() []*RecordingExecutor {
	return r.wrapped
}

// Wait blocks until every pending tool call record has been stored.
func (r *Registry) Wait() {
	for _, exec := range r.wrapped {
		exec.Wait()
	}
}
