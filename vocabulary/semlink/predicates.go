package semlink

import "github.com/c360studio/semstreams/vocabulary"

// Tool call predicates describe recorded tool invocations.
const (
	// ToolCallName is the invoked tool name.
	ToolCallName = "semlink.toolcall.name"

	// ToolCallArguments is the JSON-encoded argument object.
	ToolCallArguments = "semlink.toolcall.arguments"

	// ToolCallStatus is the outcome.
	// Values: success, error
	ToolCallStatus = "semlink.toolcall.status"

	// ToolCallStartedAt is when the call started (RFC3339).
	ToolCallStartedAt = "semlink.toolcall.started_at"

	// ToolCallDuration is the call duration in milliseconds.
	ToolCallDuration = "semlink.toolcall.duration"

	// ToolCallError is the error message of a failed call.
	ToolCallError = "semlink.toolcall.error"
)

// Named graph predicates describe graphs held by the graph manager.
const (
	// GraphSource is the URL or endpoint the graph was loaded from.
	GraphSource = "semlink.graph.source"

	// GraphTripleCount is the number of triples in the graph.
	GraphTripleCount = "semlink.graph.triple_count"

	// GraphLoadedAt is when the graph was stored (RFC3339).
	GraphLoadedAt = "semlink.graph.loaded_at"

	// GraphParent links a child graph to the entity that owns it.
	GraphParent = "semlink.graph.parent"
)

// Cached document predicates describe entries of the linked-data cache.
const (
	// CacheURL is the URL a cached document was retrieved from.
	CacheURL = "semlink.cache.url"

	// CacheContentType is the content type of the cached document.
	CacheContentType = "semlink.cache.content_type"

	// CacheFetchedAt is when the document was fetched (RFC3339).
	CacheFetchedAt = "semlink.cache.fetched_at"
)

func init() {
	vocabulary.Register(ToolCallName,
		vocabulary.WithDescription("Name of the invoked linked-data tool"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(Namespace+"toolName"))

	vocabulary.Register(ToolCallArguments,
		vocabulary.WithDescription("JSON-encoded tool arguments"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(Namespace+"toolArguments"))

	vocabulary.Register(ToolCallStatus,
		vocabulary.WithDescription("Outcome of the tool call: success or error"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(Namespace+"toolStatus"))

	vocabulary.Register(ToolCallStartedAt,
		vocabulary.WithDescription("Time the tool call started"),
		vocabulary.WithDataType("time.Time"),
		vocabulary.WithIRI("http://www.w3.org/ns/prov#startedAtTime"))

	vocabulary.Register(ToolCallDuration,
		vocabulary.WithDescription("Tool call duration"),
		vocabulary.WithDataType("int"),
		vocabulary.WithUnits("ms"),
		vocabulary.WithIRI(Namespace+"durationMs"))

	vocabulary.Register(ToolCallError,
		vocabulary.WithDescription("Error message of a failed tool call"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(Namespace+"toolError"))

	vocabulary.Register(GraphSource,
		vocabulary.WithDescription("Origin of a named graph"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI("http://www.w3.org/ns/prov#hadPrimarySource"))

	vocabulary.Register(GraphTripleCount,
		vocabulary.WithDescription("Number of triples in a named graph"),
		vocabulary.WithDataType("int"),
		vocabulary.WithIRI("http://rdfs.org/ns/void#triples"))

	vocabulary.Register(GraphLoadedAt,
		vocabulary.WithDescription("Time the named graph was stored"),
		vocabulary.WithDataType("time.Time"),
		vocabulary.WithIRI("http://purl.org/dc/terms/modified"))

	vocabulary.Register(GraphParent,
		vocabulary.WithDescription("Entity that owns the named graph"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI("https://schema.org/isPartOf"))

	vocabulary.Register(CacheURL,
		vocabulary.WithDescription("URL of a cached linked-data document"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI("http://www.w3.org/ns/prov#atLocation"))

	vocabulary.Register(CacheContentType,
		vocabulary.WithDescription("Content type of a cached document"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI("http://purl.org/dc/terms/format"))

	vocabulary.Register(CacheFetchedAt,
		vocabulary.WithDescription("Time a cached document was fetched"),
		vocabulary.WithDataType("time.Time"),
		vocabulary.WithIRI("http://www.w3.org/ns/prov#generatedAtTime"))
}

// IRI returns the standard IRI registered for a dotted predicate, or the
// predicate itself under Namespace when none is registered.
func IRI(predicate string) string {
	if meta := vocabulary.GetPredicateMetadata(predicate); meta != nil && meta.StandardIRI != "" {
		return meta.StandardIRI
	}
	return Namespace + predicate
}
