// Package htmlld extracts linked data embedded in HTML pages: JSON-LD script
// blocks, RDFa Lite attributes, microdata items and links to RDF
// serialisations.
package htmlld

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/c360studio/semlink/rdf"
)

const (
	jsonLDSelector    = `script[type="application/ld+json"]`
	rdfaSelector      = "[vocab], [typeof], [property], [resource]"
	microdataSelector = "[itemscope], [itemtype], [itemprop]"
)

// dataLinkTerms mark anchors that point at RDF downloads.
var dataLinkTerms = []string{"json-ld", "jsonld", "rdf", "turtle", "n3", "owl", ".ttl", ".nt", ".nq"}

// Document is a parsed HTML page.
type Document struct {
	doc  *goquery.Document
	base *url.URL
}

// Link is an HTML <link> element.
type Link struct {
	Href string `json:"href"`
	Rel  string `json:"rel,omitempty"`
	Type string `json:"type,omitempty"`
}

// Parse reads an HTML page. base resolves relative references and is the
// default RDFa subject; it may be empty.
func Parse(r io.Reader, base string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	d := &Document{doc: doc}
	if base != "" {
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		d.base = u
	}
	return d, nil
}

// ParseString is Parse over a string.
func ParseString(html, base string) (*Document, error) {
	return Parse(strings.NewReader(html), base)
}

// Base returns the document's base URL, or "".
func (d *Document) Base() string {
	if d.base == nil {
		return ""
	}
	return d.base.String()
}

// Title returns the trimmed <title> text.
func (d *Document) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// HTML renders the document back to markup.
func (d *Document) HTML() (string, error) {
	return d.doc.Html()
}

// Scripts returns the raw text of every JSON-LD script block.
func (d *Document) Scripts() []string {
	var out []string
	d.doc.Find(jsonLDSelector).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}

// JSONLD decodes the JSON-LD script blocks. Blocks that are not valid JSON
// are skipped and reported in the returned error slice.
func (d *Document) JSONLD() ([]any, []error) {
	var (
		blocks []any
		errs   []error
	)
	for i, script := range d.Scripts() {
		var v any
		if err := json.Unmarshal([]byte(script), &v); err != nil {
			errs = append(errs, fmt.Errorf("json-ld block %d: %w", i, err))
			continue
		}
		blocks = append(blocks, v)
	}
	return blocks, errs
}

// RDFaCount is the number of elements carrying RDFa attributes.
func (d *Document) RDFaCount() int {
	return d.doc.Find(rdfaSelector).Length()
}

// MicrodataCount is the number of elements carrying microdata attributes.
func (d *Document) MicrodataCount() int {
	return d.doc.Find(microdataSelector).Length()
}

// AlternateLinks returns rel="alternate" links whose type is an RDF
// serialisation, with absolute hrefs.
func (d *Document) AlternateLinks() []Link {
	var out []Link
	d.doc.Find(`link[rel~="alternate"][href]`).Each(func(_ int, s *goquery.Selection) {
		typ := s.AttrOr("type", "")
		f, ok := rdf.FormatFromContentType(typ)
		if !ok || f == rdf.FormatHTML {
			return
		}
		out = append(out, Link{
			Href: d.resolve(s.AttrOr("href", "")),
			Rel:  s.AttrOr("rel", ""),
			Type: typ,
		})
	})
	return out
}

// DataLinks returns the absolute targets of anchors that look like links to
// RDF files, in document order without duplicates.
func (d *Document) DataLinks() []string {
	var out []string
	seen := map[string]bool{}
	d.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		hay := strings.ToLower(href + " " + s.Text())
		for _, term := range dataLinkTerms {
			if !strings.Contains(hay, term) {
				continue
			}
			abs := d.resolve(href)
			if !seen[abs] {
				seen[abs] = true
				out = append(out, abs)
			}
			return
		}
	})
	return out
}

func (d *Document) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if d.base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return d.base.ResolveReference(u).String()
}
