package retriever

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/c360studio/semlink/rdf"
)

// PartialJSON is the warning JSONParse returns when only a fragment of the
// input could be decoded.
const PartialJSON = "partial JSON extracted"

// ErrNoTriples is returned by RDFToJSONLD when the content parses but holds
// no statements.
var ErrNoTriples = errors.New("no RDF statements found")

var (
	fenceRe         = regexp.MustCompile("(?s)^\\s*```[a-zA-Z+-]*\\s*\n(.*?)\n?```\\s*$")
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
	flatObjectRe    = regexp.MustCompile(`\{[^{}]*\}`)
)

// JSONParse decodes JSON, recovering from the damage usually found in
// hand-written or model-written documents: a surrounding code fence,
// trailing commas and a string left unterminated at the end of a line. As a
// last resort the largest flat object in the content is decoded and the
// PartialJSON warning is returned.
func JSONParse(content string) (any, string, error) {
	var v any
	err := json.Unmarshal([]byte(content), &v)
	if err == nil {
		return v, "", nil
	}
	firstErr := err

	candidate := content
	if m := fenceRe.FindStringSubmatch(candidate); m != nil {
		candidate = m[1]
	}
	candidate = trailingCommaRe.ReplaceAllString(candidate, "$1")
	if err := json.Unmarshal([]byte(candidate), &v); err == nil {
		return v, "", nil
	}
	if fixed, ok := closeString(candidate); ok {
		if err := json.Unmarshal([]byte(fixed), &v); err == nil {
			return v, "", nil
		}
	}

	var largest string
	for _, m := range flatObjectRe.FindAllString(content, -1) {
		if len(m) > len(largest) {
			largest = m
		}
	}
	if largest != "" {
		if err := json.Unmarshal([]byte(largest), &v); err == nil {
			return v, PartialJSON, nil
		}
	}
	return nil, "", fmt.Errorf("parse json: %w", firstErr)
}

// closeString inserts a closing quote before the newline that interrupted
// a string literal.
func closeString(content string) (string, bool) {
	var v any
	err := json.Unmarshal([]byte(content), &v)
	var syn *json.SyntaxError
	if !errors.As(err, &syn) || !strings.Contains(syn.Error(), "in string literal") {
		return "", false
	}
	at := int(syn.Offset) - 1
	if at < 0 || at > len(content) {
		return "", false
	}
	return content[:at] + `"` + content[at:], true
}

// fallbackFormats are tried in order when the format of RDF content is
// unknown.
var fallbackFormats = []rdf.Format{rdf.FormatTurtle, rdf.FormatRDFXML, rdf.FormatNTriples}

// RDFToJSONLD parses RDF content and returns it as a JSON-LD document with
// an empty context and the expanded nodes in @graph. An empty format tries
// Turtle, RDF/XML and N-Triples in turn and reports the one that worked.
func RDFToJSONLD(content string, format rdf.Format, base string) (map[string]any, rdf.Format, error) {
	formats := []rdf.Format{format}
	if format == "" {
		formats = fallbackFormats
	}
	var firstErr error
	for _, f := range formats {
		doc, err := convert(content, f, base)
		if err == nil {
			return doc, f, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, "", fmt.Errorf("rdf conversion: %w", firstErr)
}

func convert(content string, format rdf.Format, base string) (map[string]any, error) {
	ds, err := rdf.Parse(content, format, &rdf.ParseOptions{Base: base})
	if err != nil {
		return nil, err
	}
	if ds.Len() == 0 {
		return nil, ErrNoTriples
	}
	return datasetDocument(ds)
}

// datasetDocument wraps the expanded JSON-LD of ds in a document.
func datasetDocument(ds *rdf.Dataset) (map[string]any, error) {
	out, err := rdf.ToJSONLD(ds, nil)
	if err != nil {
		return nil, err
	}
	graph, _ := out.([]any)
	if graph == nil {
		graph = []any{}
	}
	return map[string]any{"@context": map[string]any{}, "@graph": graph}, nil
}
