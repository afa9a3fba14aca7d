package shacl

import "github.com/c360studio/semlink/rdf"

// SHACL terms.
const (
	ns = rdf.SHNS

	NodeShape         = ns + "NodeShape"
	PropertyShape     = ns + "PropertyShape"
	ValidationReport  = ns + "ValidationReport"
	ValidationResult  = ns + "ValidationResult"
	SeverityViolation = ns + "Violation"
	SeverityWarning   = ns + "Warning"
	SeverityInfo      = ns + "Info"

	shConforms         = ns + "conforms"
	shResult           = ns + "result"
	shFocusNode        = ns + "focusNode"
	shResultPath       = ns + "resultPath"
	shValue            = ns + "value"
	shResultSeverity   = ns + "resultSeverity"
	shSourceShape      = ns + "sourceShape"
	shSourceConstraint = ns + "sourceConstraint"
	shSourceComponent  = ns + "sourceConstraintComponent"
	shResultMessage    = ns + "resultMessage"

	shTargetClass      = ns + "targetClass"
	shTargetNode       = ns + "targetNode"
	shTargetSubjectsOf = ns + "targetSubjectsOf"
	shTargetObjectsOf  = ns + "targetObjectsOf"

	shPath             = ns + "path"
	shInversePath      = ns + "inversePath"
	shAlternativePath  = ns + "alternativePath"
	shZeroOrMorePath   = ns + "zeroOrMorePath"
	shOneOrMorePath    = ns + "oneOrMorePath"
	shZeroOrOnePath    = ns + "zeroOrOnePath"
	shProperty         = ns + "property"
	shDeactivated      = ns + "deactivated"
	shSeverity         = ns + "severity"
	shMessage          = ns + "message"
	shClass            = ns + "class"
	shDatatype         = ns + "datatype"
	shNodeKind         = ns + "nodeKind"
	shMinCount         = ns + "minCount"
	shMaxCount         = ns + "maxCount"
	shMinInclusive     = ns + "minInclusive"
	shMaxInclusive     = ns + "maxInclusive"
	shMinExclusive     = ns + "minExclusive"
	shMaxExclusive     = ns + "maxExclusive"
	shMinLength        = ns + "minLength"
	shMaxLength        = ns + "maxLength"
	shPattern          = ns + "pattern"
	shFlags            = ns + "flags"
	shLanguageIn       = ns + "languageIn"
	shUniqueLang       = ns + "uniqueLang"
	shEquals           = ns + "equals"
	shDisjoint         = ns + "disjoint"
	shLessThan         = ns + "lessThan"
	shLessThanOrEquals = ns + "lessThanOrEquals"
	shIn               = ns + "in"
	shHasValue         = ns + "hasValue"
	shNode             = ns + "node"
	shNot              = ns + "not"
	shAnd              = ns + "and"
	shOr               = ns + "or"
	shXone             = ns + "xone"
	shClosed           = ns + "closed"
	shIgnoredProps     = ns + "ignoredProperties"
	shSPARQL           = ns + "sparql"
	shSelect           = ns + "select"
	shPrefixes         = ns + "prefixes"
	shDeclare          = ns + "declare"
	shPrefix           = ns + "prefix"
	shNamespace        = ns + "namespace"

	shBlankNode          = ns + "BlankNode"
	shIRI                = ns + "IRI"
	shLiteral            = ns + "Literal"
	shBlankNodeOrIRI     = ns + "BlankNodeOrIRI"
	shBlankNodeOrLiteral = ns + "BlankNodeOrLiteral"
	shIRIOrLiteral       = ns + "IRIOrLiteral"

	shRule      = ns + "rule"
	TripleRule  = ns + "TripleRule"
	SPARQLRule  = ns + "SPARQLRule"
	shSubject   = ns + "subject"
	shPredicate = ns + "predicate"
	shObject    = ns + "object"
	shThis      = ns + "this"
	shConstruct = ns + "construct"
	shCondition = ns + "condition"
	shOrder     = ns + "order"
)

// Constraint component IRIs.
const (
	ClassComponent            = ns + "ClassConstraintComponent"
	DatatypeComponent         = ns + "DatatypeConstraintComponent"
	NodeKindComponent         = ns + "NodeKindConstraintComponent"
	MinCountComponent         = ns + "MinCountConstraintComponent"
	MaxCountComponent         = ns + "MaxCountConstraintComponent"
	MinInclusiveComponent     = ns + "MinInclusiveConstraintComponent"
	MaxInclusiveComponent     = ns + "MaxInclusiveConstraintComponent"
	MinExclusiveComponent     = ns + "MinExclusiveConstraintComponent"
	MaxExclusiveComponent     = ns + "MaxExclusiveConstraintComponent"
	MinLengthComponent        = ns + "MinLengthConstraintComponent"
	MaxLengthComponent        = ns + "MaxLengthConstraintComponent"
	PatternComponent          = ns + "PatternConstraintComponent"
	LanguageInComponent       = ns + "LanguageInConstraintComponent"
	UniqueLangComponent       = ns + "UniqueLangConstraintComponent"
	EqualsComponent           = ns + "EqualsConstraintComponent"
	DisjointComponent         = ns + "DisjointConstraintComponent"
	LessThanComponent         = ns + "LessThanConstraintComponent"
	LessThanOrEqualsComponent = ns + "LessThanOrEqualsConstraintComponent"
	InComponent               = ns + "InConstraintComponent"
	HasValueComponent         = ns + "HasValueConstraintComponent"
	NodeComponent             = ns + "NodeConstraintComponent"
	NotComponent              = ns + "NotConstraintComponent"
	AndComponent              = ns + "AndConstraintComponent"
	OrComponent               = ns + "OrConstraintComponent"
	XoneComponent             = ns + "XoneConstraintComponent"
	ClosedComponent           = ns + "ClosedConstraintComponent"
	SPARQLComponent           = ns + "SPARQLConstraintComponent"
)

func iri(s string) rdf.Term { return rdf.NewIRI(s) }

var rdfType = rdf.NewIRI(rdf.RDFType)
