// Package rdf provides the RDF data model shared by the semlink tools: terms,
// triples, indexed graphs and datasets, plus codecs for N-Quads, N-Triples,
// Turtle, RDF/XML and JSON-LD.
package rdf

import (
	"fmt"
	"strconv"
	"strings"
)

// TermKind identifies the kind of an RDF term.
type TermKind uint8

const (
	// KindIRI is an IRI reference.
	KindIRI TermKind = iota + 1

	// KindBlank is a blank node.
	KindBlank

	// KindLiteral is a literal value.
	KindLiteral
)

// String returns the kind name.
func (k TermKind) String() string {
	switch k {
	case KindIRI:
		return "iri"
	case KindBlank:
		return "bnode"
	case KindLiteral:
		return "literal"
	default:
		return "unknown"
	}
}

// Term is an RDF term. Terms are comparable and usable as map keys.
//
// For literals, Datatype is always set: plain literals carry xsd:string and
// language-tagged literals carry rdf:langString.
type Term struct {
	Kind     TermKind
	Value    string
	Datatype string
	Lang     string
}

// NewIRI returns an IRI term.
func NewIRI(iri string) Term {
	return Term{Kind: KindIRI, Value: iri}
}

// NewBlank returns a blank node term. A leading "_:" is stripped.
func NewBlank(id string) Term {
	return Term{Kind: KindBlank, Value: strings.TrimPrefix(id, "_:")}
}

// NewLiteral returns a plain xsd:string literal.
func NewLiteral(value string) Term {
	return Term{Kind: KindLiteral, Value: value, Datatype: XSDString}
}

// NewTypedLiteral returns a literal with the given datatype.
// An empty datatype yields xsd:string.
func NewTypedLiteral(value, datatype string) Term {
	if datatype == "" {
		datatype = XSDString
	}
	return Term{Kind: KindLiteral, Value: value, Datatype: datatype}
}

// NewLangLiteral returns a language-tagged literal.
func NewLangLiteral(value, lang string) Term {
	if lang == "" {
		return NewLiteral(value)
	}
	return Term{Kind: KindLiteral, Value: value, Datatype: RDFLangString, Lang: strings.ToLower(lang)}
}

// NewInteger returns an xsd:integer literal.
func NewInteger(v int64) Term {
	return NewTypedLiteral(strconv.FormatInt(v, 10), XSDInteger)
}

// NewDecimal returns an xsd:decimal literal.
func NewDecimal(v float64) Term {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return NewTypedLiteral(s, XSDDecimal)
}

// NewDouble returns an xsd:double literal.
func NewDouble(v float64) Term {
	return NewTypedLiteral(strconv.FormatFloat(v, 'E', -1, 64), XSDDouble)
}

// NewBoolean returns an xsd:boolean literal.
func NewBoolean(v bool) Term {
	return NewTypedLiteral(strconv.FormatBool(v), XSDBoolean)
}

// IsZero reports whether t is the zero Term (an unbound value).
func (t Term) IsZero() bool { return t.Kind == 0 }

// IsIRI reports whether t is an IRI.
func (t Term) IsIRI() bool { return t.Kind == KindIRI }

// IsBlank reports whether t is a blank node.
func (t Term) IsBlank() bool { return t.Kind == KindBlank }

// IsLiteral reports whether t is a literal.
func (t Term) IsLiteral() bool { return t.Kind == KindLiteral }

// IsResource reports whether t is an IRI or blank node.
func (t Term) IsResource() bool { return t.Kind == KindIRI || t.Kind == KindBlank }

// IsNumeric reports whether t is a literal with a numeric XSD datatype.
func (t Term) IsNumeric() bool {
	if t.Kind != KindLiteral {
		return false
	}
	return isNumericType(t.Datatype)
}

// Float returns the numeric value of a numeric literal.
func (t Term) Float() (float64, bool) {
	if !t.IsNumeric() {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(t.Value), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// String returns the N-Triples form of the term.
func (t Term) String() string {
	switch t.Kind {
	case KindIRI:
		return "<" + escapeIRI(t.Value) + ">"
	case KindBlank:
		return "_:" + t.Value
	case KindLiteral:
		s := `"` + EscapeString(t.Value) + `"`
		if t.Lang != "" {
			return s + "@" + t.Lang
		}
		if t.Datatype != "" && t.Datatype != XSDString {
			return s + "^^<" + escapeIRI(t.Datatype) + ">"
		}
		return s
	default:
		return ""
	}
}

// GoString implements fmt.GoStringer for test output.
func (t Term) GoString() string {
	return fmt.Sprintf("rdf.Term(%s)", t.String())
}

// LocalName returns the part of an IRI after the last '#' or '/'.
func LocalName(iri string) string {
	if i := strings.LastIndexAny(iri, "#/"); i >= 0 && i < len(iri)-1 {
		return iri[i+1:]
	}
	return iri
}

// EscapeString escapes a literal lexical form for N-Triples and Turtle.
func EscapeString(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func escapeIRI(s string) string {
	if !strings.ContainsAny(s, "<>\" {}|^`\\") {
		return s
	}
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '<', '>', '"', ' ', '{', '}', '|', '^', '`', '\\':
			fmt.Fprintf(&sb, `\u%04X`, r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func isNumericType(dt string) bool {
	switch dt {
	case XSDInteger, XSDDecimal, XSDDouble, XSDFloat:
		return true
	}
	if !strings.HasPrefix(dt, XSDNS) {
		return false
	}
	switch strings.TrimPrefix(dt, XSDNS) {
	case "int", "long", "short", "byte",
		"nonNegativeInteger", "positiveInteger", "negativeInteger", "nonPositiveInteger",
		"unsignedInt", "unsignedLong", "unsignedShort", "unsignedByte":
		return true
	}
	return false
}
