package semlink

// Namespace is the base IRI for semlink ontology terms.
const Namespace = "https://semlink.dev/ontology/"

// EntityNamespace is the base IRI for semlink-minted entity instances.
const EntityNamespace = "https://semlink.dev/entity/"

// Query checking (OBQC) terms.
const (
	// OBQCNamespace holds the violation classes produced by query checking.
	OBQCNamespace = "https://w3id.org/obqc#"

	// OBQCExpl links a violation to its English explanation.
	OBQCExpl = OBQCNamespace + "expl"

	// OBQCDomainViolation marks a subject not typed with a property's domain.
	OBQCDomainViolation = OBQCNamespace + "DomainViolation"

	// OBQCRangeViolation marks an object not typed with a property's range.
	OBQCRangeViolation = OBQCNamespace + "RangeViolation"

	// OBQCUndefinedProperty marks a predicate unknown to the ontology.
	OBQCUndefinedProperty = OBQCNamespace + "UndefinedProperty"

	// OBQCMultipleDomain marks a property with several domains used on an
	// untyped subject.
	OBQCMultipleDomain = OBQCNamespace + "MultipleDomain"

	// OBQCProperty links a violation to the offending property.
	OBQCProperty = OBQCNamespace + "property"

	// OBQCSubject links a violation to the offending query term.
	OBQCSubject = OBQCNamespace + "subject"
)

// Query variable terms. Variables of a checked query become IRIs in this
// namespace typed VarVariable.
const (
	VarNamespace = "http://example.org/var/"
	VarVariable  = VarNamespace + "Variable"
)

// Temporal relation and event ontology namespaces.
const (
	TemporalNamespace = "https://example.org/temporal-relations#"
	EventNamespace    = "https://example.org/event-ontology#"

	EventClass           = EventNamespace + "Event"
	EventHasTimeInterval = EventNamespace + "hasTimeInterval"
	EventHasParticipant  = EventNamespace + "hasParticipant"
	EventHasRole         = EventNamespace + "hasRole"
)

// SPARQL result vocabulary used when results are converted to JSON-LD.
const (
	SPARQLResultsNamespace = "http://www.w3.org/2005/sparql-results#"

	ResultSet      = SPARQLResultsNamespace + "ResultSet"
	ResultRow      = SPARQLResultsNamespace + "ResultRow"
	AskResult      = SPARQLResultsNamespace + "AskResult"
	ResultBoolean  = SPARQLResultsNamespace + "boolean"
	ResultVariable = SPARQLResultsNamespace + "resultVariable"
)

// Graph container terms used when JSON-LD @graph arrays become named graphs.
const (
	// ClassGraphContainer types the node that owns a set of named graphs.
	ClassGraphContainer = Namespace + "GraphContainer"

	// PropGraphEntry links a container to one of its named graphs.
	PropGraphEntry = Namespace + "graphEntry"

	// GraphIDPrefix prefixes minted named graph identifiers.
	GraphIDPrefix = "urn:graph:"

	// PartitionIDPrefix prefixes minted partition identifiers.
	PartitionIDPrefix = "urn:uuid:"
)
