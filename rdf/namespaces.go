package rdf

// Well-known namespace IRIs.
const (
	RDFNS    = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFSNS   = "http://www.w3.org/2000/01/rdf-schema#"
	OWLNS    = "http://www.w3.org/2002/07/owl#"
	XSDNS    = "http://www.w3.org/2001/XMLSchema#"
	SHNS     = "http://www.w3.org/ns/shacl#"
	PROVNS   = "http://www.w3.org/ns/prov#"
	SchemaNS = "https://schema.org/"
	DCNS     = "http://purl.org/dc/terms/"
	SKOSNS   = "http://www.w3.org/2004/02/skos/core#"
	TimeNS   = "http://www.w3.org/2006/time#"
	VoIDNS   = "http://rdfs.org/ns/void#"
	SDNS     = "http://www.w3.org/ns/sparql-service-description#"
	FOAFNS   = "http://xmlns.com/foaf/0.1/"
)

// Frequently used IRIs.
const (
	RDFType       = RDFNS + "type"
	RDFProperty   = RDFNS + "Property"
	RDFLangString = RDFNS + "langString"
	RDFFirst      = RDFNS + "first"
	RDFRest       = RDFNS + "rest"
	RDFNil        = RDFNS + "nil"

	RDFSLabel         = RDFSNS + "label"
	RDFSComment       = RDFSNS + "comment"
	RDFSClass         = RDFSNS + "Class"
	RDFSDomain        = RDFSNS + "domain"
	RDFSRange         = RDFSNS + "range"
	RDFSSubClassOf    = RDFSNS + "subClassOf"
	RDFSSubPropertyOf = RDFSNS + "subPropertyOf"
	RDFSLiteral       = RDFSNS + "Literal"

	OWLClass              = OWLNS + "Class"
	OWLObjectProperty     = OWLNS + "ObjectProperty"
	OWLDatatypeProperty   = OWLNS + "DatatypeProperty"
	OWLAnnotationProperty = OWLNS + "AnnotationProperty"

	XSDString   = XSDNS + "string"
	XSDBoolean  = XSDNS + "boolean"
	XSDInteger  = XSDNS + "integer"
	XSDDecimal  = XSDNS + "decimal"
	XSDDouble   = XSDNS + "double"
	XSDFloat    = XSDNS + "float"
	XSDDateTime = XSDNS + "dateTime"
	XSDDate     = XSDNS + "date"

	PROVActivity       = PROVNS + "Activity"
	PROVStartedAtTime  = PROVNS + "startedAtTime"
	PROVWasGeneratedBy = PROVNS + "wasGeneratedBy"

	SchemaProperty       = SchemaNS + "Property"
	SchemaDomainIncludes = SchemaNS + "domainIncludes"
	SchemaRangeIncludes  = SchemaNS + "rangeIncludes"
	SchemaHasPart        = SchemaNS + "hasPart"
	SchemaIsPartOf       = SchemaNS + "isPartOf"
	SchemaName           = SchemaNS + "name"
	SchemaPosition       = SchemaNS + "position"
)

// DefaultPrefixes returns the standard prefix map used by the Turtle writer
// and by CURIE expansion.
func DefaultPrefixes() map[string]string {
	return map[string]string{
		"rdf":    RDFNS,
		"rdfs":   RDFSNS,
		"owl":    OWLNS,
		"xsd":    XSDNS,
		"sh":     SHNS,
		"prov":   PROVNS,
		"schema": SchemaNS,
		"dc":     DCNS,
		"skos":   SKOSNS,
		"time":   TimeNS,
		"void":   VoIDNS,
		"sd":     SDNS,
		"foaf":   FOAFNS,
	}
}
