package rdf

import (
	"errors"
	"mime"
	"strings"
)

// Format identifies an RDF serialisation.
type Format string

const (
	// FormatTurtle is Turtle (.ttl).
	FormatTurtle Format = "turtle"

	// FormatNTriples is N-Triples (.nt).
	FormatNTriples Format = "ntriples"

	// FormatNQuads is N-Quads (.nq).
	FormatNQuads Format = "nquads"

	// FormatJSONLD is JSON-LD (.jsonld).
	FormatJSONLD Format = "jsonld"

	// FormatRDFXML is RDF/XML (.rdf).
	FormatRDFXML Format = "rdfxml"

	// FormatHTML marks HTML content that may embed RDF.
	FormatHTML Format = "html"
)

// ErrUnsupportedFormat is returned for serialisations without a codec.
var ErrUnsupportedFormat = errors.New("unsupported RDF format")

// FormatInfo provides metadata about a serialisation.
type FormatInfo struct {
	// Name is the format identifier.
	Name Format

	// MIMEType is the preferred media type.
	MIMEType string

	// Extension is the file extension (with dot).
	Extension string

	// Description describes the format.
	Description string
}

// FormatRegistry contains metadata for every supported format.
var FormatRegistry = map[Format]FormatInfo{
	FormatTurtle: {
		Name:        FormatTurtle,
		MIMEType:    "text/turtle",
		Extension:   ".ttl",
		Description: "Turtle - Terse RDF Triple Language",
	},
	FormatNTriples: {
		Name:        FormatNTriples,
		MIMEType:    "application/n-triples",
		Extension:   ".nt",
		Description: "N-Triples - Line-based RDF format",
	},
	FormatNQuads: {
		Name:        FormatNQuads,
		MIMEType:    "application/n-quads",
		Extension:   ".nq",
		Description: "N-Quads - Line-based RDF dataset format",
	},
	FormatJSONLD: {
		Name:        FormatJSONLD,
		MIMEType:    "application/ld+json",
		Extension:   ".jsonld",
		Description: "JSON-LD - JSON for Linked Data",
	},
	FormatRDFXML: {
		Name:        FormatRDFXML,
		MIMEType:    "application/rdf+xml",
		Extension:   ".rdf",
		Description: "RDF/XML - XML serialisation of RDF",
	},
}

// GetFormatInfo returns metadata for a format.
func GetFormatInfo(format Format) (FormatInfo, bool) {
	info, ok := FormatRegistry[format]
	return info, ok
}

// ParseFormat resolves a user-supplied format name, alias or media type.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "turtle", "ttl", "text/turtle", "application/x-turtle", "n3", "text/n3":
		return FormatTurtle, nil
	case "ntriples", "n-triples", "nt", "application/n-triples":
		return FormatNTriples, nil
	case "nquads", "n-quads", "nq", "application/n-quads":
		return FormatNQuads, nil
	case "jsonld", "json-ld", "application/ld+json", "json", "application/json":
		return FormatJSONLD, nil
	case "rdfxml", "rdf/xml", "xml", "rdf", "application/rdf+xml", "text/xml", "application/xml":
		return FormatRDFXML, nil
	case "html", "text/html", "application/xhtml+xml":
		return FormatHTML, nil
	}
	return "", ErrUnsupportedFormat
}

// FormatFromContentType maps a Content-Type header value to a format.
func FormatFromContentType(contentType string) (Format, bool) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	f, err := ParseFormat(mt)
	if err != nil {
		return "", false
	}
	return f, true
}

// SniffFormat guesses the serialisation of content from its leading bytes.
func SniffFormat(content string) (Format, bool) {
	s := strings.TrimSpace(strings.TrimPrefix(content, "\ufeff"))
	if s == "" {
		return "", false
	}
	lower := strings.ToLower(s[:min(len(s), 512)])
	switch {
	case s[0] == '{' || s[0] == '[':
		return FormatJSONLD, true
	case strings.Contains(lower, "<rdf:rdf"):
		return FormatRDFXML, true
	case strings.HasPrefix(lower, "<!doctype html") || strings.Contains(lower, "<html"):
		return FormatHTML, true
	case strings.HasPrefix(lower, "<?xml"):
		return FormatRDFXML, true
	case strings.Contains(lower, "@prefix") || strings.Contains(lower, "@base") ||
		strings.HasPrefix(lower, "prefix ") || strings.HasPrefix(lower, "base "):
		return FormatTurtle, true
	}
	if looksLikeNTriples(s) {
		return FormatNTriples, true
	}
	return FormatTurtle, true
}

func looksLikeNTriples(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !(strings.HasPrefix(line, "<") || strings.HasPrefix(line, "_:")) || !strings.HasSuffix(line, ".") {
			return false
		}
		if strings.Contains(line, ";") && !strings.Contains(line, `"`) {
			return false
		}
	}
	return true
}
