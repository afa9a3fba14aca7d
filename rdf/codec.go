package rdf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	knakk "github.com/knakk/rdf"
	"github.com/piprate/json-gold/ld"
)

// blankScope distinguishes blank node labels from separate parse calls so
// that merging two parsed graphs never conflates their blank nodes.
var blankScope atomic.Uint64

func newScope() string {
	return "s" + strconv.FormatUint(blankScope.Add(1), 36)
}

func scoped(scope, label string) string {
	return strings.TrimPrefix(label, "_:") + scope
}

// ParseOptions controls parsing.
type ParseOptions struct {
	// Base resolves relative IRIs in JSON-LD.
	Base string

	// DocumentLoader resolves remote JSON-LD contexts. Nil uses json-gold's
	// default HTTP loader.
	DocumentLoader ld.DocumentLoader
}

// Parse reads data in the given format into a dataset.
func Parse(data string, format Format, opts *ParseOptions) (*Dataset, error) {
	if opts == nil {
		opts = &ParseOptions{}
	}
	switch format {
	case FormatNQuads, FormatNTriples:
		return ParseNQuads(data)
	case FormatTurtle:
		g, err := ParseTurtle(data)
		if err != nil {
			return nil, err
		}
		return DatasetOf(g), nil
	case FormatRDFXML:
		g, err := ParseRDFXML(data)
		if err != nil {
			return nil, err
		}
		return DatasetOf(g), nil
	case FormatJSONLD:
		return ParseJSONLD(data, opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// ParseGraph parses data and returns the union of all of its graphs.
func ParseGraph(data string, format Format, opts *ParseOptions) (*Graph, error) {
	ds, err := Parse(data, format, opts)
	if err != nil {
		return nil, err
	}
	if len(ds.Names()) == 0 {
		return ds.Default(), nil
	}
	return ds.Union(), nil
}

// ParseNQuads parses N-Quads (or N-Triples) text.
func ParseNQuads(data string) (*Dataset, error) {
	parsed, err := ld.ParseNQuads(data)
	if err != nil {
		return nil, fmt.Errorf("parse n-quads: %w", err)
	}
	return fromLDDataset(parsed, newScope())
}

// ParseNQuadsKeepLabels parses N-Quads keeping blank node labels as written.
// Use it only for text this package produced, such as stored graphs.
func ParseNQuadsKeepLabels(data string) (*Dataset, error) {
	parsed, err := ld.ParseNQuads(data)
	if err != nil {
		return nil, fmt.Errorf("parse n-quads: %w", err)
	}
	return fromLDDataset(parsed, "")
}

// ParseTurtle parses Turtle text into a graph.
func ParseTurtle(data string) (*Graph, error) {
	g, err := decodeKnakk(strings.NewReader(data), knakk.Turtle)
	if err != nil {
		return nil, fmt.Errorf("parse turtle: %w", err)
	}
	for p, ns := range turtlePrefixes(data) {
		g.Bind(p, ns)
	}
	return g, nil
}

// ParseRDFXML parses RDF/XML text into a graph.
func ParseRDFXML(data string) (*Graph, error) {
	g, err := decodeKnakk(strings.NewReader(data), knakk.RDFXML)
	if err != nil {
		return nil, fmt.Errorf("parse rdf/xml: %w", err)
	}
	return g, nil
}

func decodeKnakk(r io.Reader, f knakk.Format) (*Graph, error) {
	dec := knakk.NewTripleDecoder(r, f)
	triples, err := dec.DecodeAll()
	if err != nil {
		return nil, err
	}
	scope := newScope()
	g := NewGraph()
	for _, t := range triples {
		s, err := fromKnakk(t.Subj, scope)
		if err != nil {
			return nil, err
		}
		p, err := fromKnakk(t.Pred, scope)
		if err != nil {
			return nil, err
		}
		o, err := fromKnakk(t.Obj, scope)
		if err != nil {
			return nil, err
		}
		g.AddSPO(s, p, o)
	}
	return g, nil
}

func fromKnakk(t knakk.Term, scope string) (Term, error) {
	switch v := t.(type) {
	case knakk.IRI:
		return NewIRI(v.String()), nil
	case knakk.Blank:
		return NewBlank(scoped(scope, v.String())), nil
	case knakk.Literal:
		if lang := v.Lang(); lang != "" {
			return NewLangLiteral(v.String(), lang), nil
		}
		return NewTypedLiteral(v.String(), v.DataType.String()), nil
	default:
		return Term{}, fmt.Errorf("unexpected term %T", t)
	}
}

// turtlePrefixes collects @prefix / PREFIX declarations so that serialisers
// can reuse the author's prefixes.
func turtlePrefixes(data string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		if !strings.HasPrefix(lower, "@prefix") && !strings.HasPrefix(lower, "prefix") {
			continue
		}
		rest := strings.TrimSpace(line[strings.Index(lower, "prefix")+len("prefix"):])
		colon := strings.Index(rest, ":")
		lt := strings.Index(rest, "<")
		gt := strings.Index(rest, ">")
		if colon < 0 || lt < colon || gt < lt {
			continue
		}
		out[strings.TrimSpace(rest[:colon])] = rest[lt+1 : gt]
	}
	return out
}

// ParseJSONLD converts a JSON-LD document (string) to RDF.
func ParseJSONLD(data string, opts *ParseOptions) (*Dataset, error) {
	var doc any
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("parse json-ld: %w", err)
	}
	return JSONLDToDataset(doc, opts)
}

// JSONLDToDataset converts a decoded JSON-LD document to RDF.
func JSONLDToDataset(doc any, opts *ParseOptions) (*Dataset, error) {
	if opts == nil {
		opts = &ParseOptions{}
	}
	proc := ld.NewJsonLdProcessor()
	ldOpts := ld.NewJsonLdOptions(opts.Base)
	if opts.DocumentLoader != nil {
		ldOpts.DocumentLoader = opts.DocumentLoader
	}
	out, err := proc.ToRDF(doc, ldOpts)
	if err != nil {
		return nil, fmt.Errorf("json-ld to rdf: %w", err)
	}
	dataset, ok := out.(*ld.RDFDataset)
	if !ok {
		return nil, fmt.Errorf("json-ld to rdf: unexpected result %T", out)
	}
	return fromLDDataset(dataset, newScope())
}

func fromLDDataset(in *ld.RDFDataset, scope string) (*Dataset, error) {
	ds := NewDataset()
	for name, quads := range in.Graphs {
		graphName := name
		if name == "@default" {
			graphName = ""
		} else if strings.HasPrefix(name, "_:") {
			graphName = "_:" + scoped(scope, name)
		}
		g := ds.Graph(graphName)
		for _, q := range quads {
			s, err := fromLDNode(q.Subject, scope)
			if err != nil {
				return nil, err
			}
			p, err := fromLDNode(q.Predicate, scope)
			if err != nil {
				return nil, err
			}
			o, err := fromLDNode(q.Object, scope)
			if err != nil {
				return nil, err
			}
			g.AddSPO(s, p, o)
		}
	}
	return ds, nil
}

func fromLDNode(n ld.Node, scope string) (Term, error) {
	switch v := n.(type) {
	case ld.IRI:
		return NewIRI(v.Value), nil
	case *ld.IRI:
		return NewIRI(v.Value), nil
	case ld.BlankNode:
		return NewBlank(scoped(scope, v.Attribute)), nil
	case *ld.BlankNode:
		return NewBlank(scoped(scope, v.Attribute)), nil
	case ld.Literal:
		return fromLDLiteral(v.Value, v.Datatype, v.Language), nil
	case *ld.Literal:
		return fromLDLiteral(v.Value, v.Datatype, v.Language), nil
	default:
		return Term{}, fmt.Errorf("unexpected json-ld node %T", n)
	}
}

func fromLDLiteral(value, datatype, lang string) Term {
	if lang != "" {
		return NewLangLiteral(value, lang)
	}
	return NewTypedLiteral(value, datatype)
}

func toLDNode(t Term) ld.Node {
	switch t.Kind {
	case KindIRI:
		return ld.NewIRI(t.Value)
	case KindBlank:
		return ld.NewBlankNode("_:" + t.Value)
	default:
		if t.Lang != "" {
			return ld.NewLiteral(t.Value, RDFLangString, t.Lang)
		}
		return ld.NewLiteral(t.Value, t.Datatype, "")
	}
}

// ToLDDataset converts a dataset to json-gold's representation.
func ToLDDataset(ds *Dataset) *ld.RDFDataset {
	out := ld.NewRDFDataset()
	for _, q := range ds.Quads() {
		name := "@default"
		if q.Graph != "" {
			name = q.Graph
		}
		out.Graphs[name] = append(out.Graphs[name],
			ld.NewQuad(toLDNode(q.S), toLDNode(q.P), toLDNode(q.O), name))
	}
	return out
}

// WriteNQuads serialises every quad of the dataset.
func WriteNQuads(ds *Dataset) string {
	var buf bytes.Buffer
	for _, q := range ds.Quads() {
		buf.WriteString(q.String())
		buf.WriteByte('\n')
	}
	return buf.String()
}

// WriteNTriples serialises a graph as N-Triples.
func WriteNTriples(g *Graph) string {
	var buf bytes.Buffer
	for _, t := range g.Triples() {
		buf.WriteString(t.String())
		buf.WriteByte('\n')
	}
	return buf.String()
}

// JSONLDOptions controls JSON-LD output.
type JSONLDOptions struct {
	// Context compacts the output when non-nil.
	Context any

	// DocumentLoader resolves remote contexts during compaction.
	DocumentLoader ld.DocumentLoader
}

// ToJSONLD converts a dataset to a JSON-LD document: expanded form by
// default, compacted when a context is given.
func ToJSONLD(ds *Dataset, opts *JSONLDOptions) (any, error) {
	if opts == nil {
		opts = &JSONLDOptions{}
	}
	ldOpts := ld.NewJsonLdOptions("")
	if opts.DocumentLoader != nil {
		ldOpts.DocumentLoader = opts.DocumentLoader
	}
	// The processor's FromRDF only accepts serialised input; the API level
	// takes the dataset directly.
	expanded, err := ld.NewJsonLdApi().FromRDF(ToLDDataset(ds), ldOpts)
	if err != nil {
		return nil, fmt.Errorf("rdf to json-ld: %w", err)
	}
	if expanded == nil {
		expanded = []any{}
	}
	if opts.Context == nil {
		return expanded, nil
	}
	compacted, err := ld.NewJsonLdProcessor().Compact(expanded, opts.Context, ldOpts)
	if err != nil {
		return nil, fmt.Errorf("compact json-ld: %w", err)
	}
	return compacted, nil
}

// GraphToJSONLDString serialises a graph as indented JSON-LD.
func GraphToJSONLDString(g *Graph, opts *JSONLDOptions) (string, error) {
	doc, err := ToJSONLD(DatasetOf(g), opts)
	if err != nil {
		return "", err
	}
	if doc == nil {
		doc = []any{}
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json-ld: %w", err)
	}
	return string(b), nil
}

// Expand expands a JSON-LD document.
func Expand(doc any, loader ld.DocumentLoader) ([]any, error) {
	proc := ld.NewJsonLdProcessor()
	opts := ld.NewJsonLdOptions("")
	if loader != nil {
		opts.DocumentLoader = loader
	}
	out, err := proc.Expand(doc, opts)
	if err != nil {
		return nil, fmt.Errorf("expand json-ld: %w", err)
	}
	return out, nil
}

// Compact compacts a JSON-LD document against context.
func Compact(doc, context any, loader ld.DocumentLoader) (map[string]any, error) {
	proc := ld.NewJsonLdProcessor()
	opts := ld.NewJsonLdOptions("")
	if loader != nil {
		opts.DocumentLoader = loader
	}
	out, err := proc.Compact(doc, context, opts)
	if err != nil {
		return nil, fmt.Errorf("compact json-ld: %w", err)
	}
	return out, nil
}

// Normalize returns the URDNA2015 canonical N-Quads of a JSON-LD document.
func Normalize(doc any, loader ld.DocumentLoader) (string, error) {
	proc := ld.NewJsonLdProcessor()
	opts := ld.NewJsonLdOptions("")
	opts.Format = "application/n-quads"
	opts.Algorithm = "URDNA2015"
	if loader != nil {
		opts.DocumentLoader = loader
	}
	out, err := proc.Normalize(doc, opts)
	if err != nil {
		return "", fmt.Errorf("normalize json-ld: %w", err)
	}
	s, _ := out.(string)
	return s, nil
}
