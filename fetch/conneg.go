package fetch

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/c360studio/semlink/rdf"
)

// LDFormats is the default preference order for linked-data negotiation.
var LDFormats = []rdf.Format{
	rdf.FormatJSONLD,
	rdf.FormatRDFXML,
	rdf.FormatTurtle,
	rdf.FormatNTriples,
}

// AcceptHeader builds an Accept header listing the media types of formats
// with q-values descending from 1.0 in steps of 0.1.
func AcceptHeader(formats ...rdf.Format) string {
	parts := make([]string, 0, len(formats)+1)
	q := 10
	for _, f := range formats {
		info, ok := rdf.GetFormatInfo(f)
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s;q=%s", info.MIMEType, qValue(q)))
		if f == rdf.FormatTurtle {
			q--
			parts = append(parts, fmt.Sprintf("text/n3;q=%s", qValue(q)))
		}
		if q > 1 {
			q--
		}
	}
	return strings.Join(parts, ", ")
}

func qValue(tenths int) string {
	return strconv.FormatFloat(float64(tenths)/10, 'f', 1, 64)
}

// AcceptFor returns the Accept header for a single requested format name,
// defaulting to JSON-LD.
func AcceptFor(format string) string {
	f, err := rdf.ParseFormat(format)
	if err != nil {
		return "application/ld+json"
	}
	if info, ok := rdf.GetFormatInfo(f); ok {
		return info.MIMEType
	}
	return "application/ld+json"
}

// Link is one entry of an HTTP Link header.
type Link struct {
	URI  string
	Rel  string
	Type string
}

var linkRe = regexp.MustCompile(`<([^>]+)>\s*((?:;\s*[A-Za-z]+\s*=\s*(?:"[^"]*"|[^;,]+)\s*)*)`)
var linkParamRe = regexp.MustCompile(`;\s*([A-Za-z]+)\s*=\s*(?:"([^"]*)"|([^;,]+))`)

// ParseLinkHeader parses an RFC 8288 Link header.
func ParseLinkHeader(header string) []Link {
	var out []Link
	for _, m := range linkRe.FindAllStringSubmatch(header, -1) {
		l := Link{URI: m[1]}
		for _, p := range linkParamRe.FindAllStringSubmatch(m[2], -1) {
			val := p[2]
			if val == "" {
				val = strings.TrimSpace(p[3])
			}
			switch strings.ToLower(p[1]) {
			case "rel":
				l.Rel = val
			case "type":
				l.Type = val
			}
		}
		out = append(out, l)
	}
	return out
}

// AlternateJSONLD returns the absolute target of a rel="alternate" link
// typed application/ld+json, resolved against base.
func AlternateJSONLD(header, base string) (string, bool) {
	for _, l := range ParseLinkHeader(header) {
		if !hasToken(l.Rel, "alternate") || l.Type != "application/ld+json" {
			continue
		}
		return resolve(base, l.URI), true
	}
	return "", false
}

func hasToken(list, tok string) bool {
	for _, f := range strings.Fields(list) {
		if strings.EqualFold(f, tok) {
			return true
		}
	}
	return false
}

func resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// MediaType strips parameters from a Content-Type value.
func MediaType(contentType string) string {
	return strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
}
