// Package semlink defines the semlink vocabulary: namespace IRIs for the
// query-checking, temporal and SPARQL-result terms used by the tools, and
// dotted predicates for records persisted to NATS KV.
//
// Predicates are registered with the semstreams vocabulary registry so that
// stored records can be exported with standard IRIs:
//
//	meta := vocabulary.GetPredicateMetadata(semlink.ToolCallName)
//	iri := meta.StandardIRI
package semlink
