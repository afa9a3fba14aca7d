package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/c360studio/semlink/fetch"
	"github.com/c360studio/semlink/htmlld"
	"github.com/c360studio/semlink/rdf"
)

// Extraction methods reported by AnalyzeHTML.
const (
	ExtractEmbeddedJSONLD  = "embedded_jsonld"
	ExtractFollowReference = "follow_reference"
	ExtractRDFa            = "rdfa"
	ExtractMicrodata       = "microdata"
	ExtractNone            = "none"
)

// Analysis describes where the linked data of an HTML page is.
type Analysis struct {
	Method     string   `json:"extraction_method"`
	Location   string   `json:"data_location,omitempty"`
	Count      int      `json:"count"`
	References []string `json:"all_references,omitempty"`
}

// AnalyzeHTML finds the best source of linked data in a page, in order:
// JSON-LD scripts, alternate links to RDF, RDFa attributes, microdata
// attributes and finally anchors that look like RDF downloads.
func AnalyzeHTML(doc *htmlld.Document) Analysis {
	if n := len(doc.Scripts()); n > 0 {
		return Analysis{Method: ExtractEmbeddedJSONLD, Location: `script[type="application/ld+json"]`, Count: n}
	}
	if links := doc.AlternateLinks(); len(links) > 0 {
		best := links[0]
		for _, l := range links {
			if fetch.MediaType(l.Type) == "application/ld+json" {
				best = l
				break
			}
		}
		return Analysis{Method: ExtractFollowReference, Location: best.Href, Count: len(links)}
	}
	if n := doc.RDFaCount(); n > 0 {
		return Analysis{Method: ExtractRDFa, Location: "html", Count: n}
	}
	if n := doc.MicrodataCount(); n > 0 {
		return Analysis{Method: ExtractMicrodata, Location: "html", Count: n}
	}
	if refs := doc.DataLinks(); len(refs) > 0 {
		return Analysis{Method: ExtractFollowReference, Location: refs[0], Count: len(refs), References: refs}
	}
	return Analysis{Method: ExtractNone}
}

// process converts a fetched response to JSON-LD according to its content
// type, sniffing the content when the type is unknown.
func (r *Retriever) process(ctx context.Context, uri string, resp *fetch.Response, follow bool) (*Result, error) {
	contentType := strings.ToLower(resp.ContentType)
	mediaType := strings.ToLower(fetch.MediaType(resp.ContentType))
	content := string(resp.Body)
	base := resp.URL
	if base == "" {
		base = uri
	}
	res := &Result{SourceURI: uri, URL: resp.URL, ContentType: contentType}

	switch {
	case mediaType == "application/ld+json" || mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		return r.jsonResult(res, content, "")

	case mediaType == "text/turtle" || mediaType == "application/x-turtle" || mediaType == "text/n3":
		return r.rdfResult(res, content, rdf.FormatTurtle, base, "turtle")

	case mediaType == "application/rdf+xml" || mediaType == "application/xml" || mediaType == "text/xml":
		return r.rdfResult(res, content, rdf.FormatRDFXML, base, "rdf-xml")

	case mediaType == "application/n-triples":
		return r.rdfResult(res, content, rdf.FormatNTriples, base, "ntriples")

	case mediaType == "application/n-quads":
		return r.rdfResult(res, content, rdf.FormatNQuads, base, "nquads")

	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		return r.htmlResult(ctx, res, content, base, follow)
	}
	return r.guessResult(res, content, base)
}

func (r *Retriever) jsonResult(res *Result, content, extractedFrom string) (*Result, error) {
	data, warning, err := JSONParse(content)
	if err != nil {
		return r.fail(res, fmt.Errorf("parse JSON-LD: %w", err))
	}
	res.Success = true
	res.Data = data
	res.Format = ResultFormat
	res.Warning = warning
	res.ExtractedFrom = extractedFrom
	return res, nil
}

func (r *Retriever) rdfResult(res *Result, content string, format rdf.Format, base, name string) (*Result, error) {
	doc, _, err := RDFToJSONLD(content, format, base)
	if err != nil {
		return r.fail(res, fmt.Errorf("convert %s: %w", name, err))
	}
	res.Success = true
	res.Data = doc
	res.Format = ResultFormat
	res.ConvertedFrom = name
	return res, nil
}

func (r *Retriever) fail(res *Result, err error) (*Result, error) {
	res.Success = false
	res.Error = err.Error()
	return res, err
}

// htmlResult extracts linked data from a page using the analysed method,
// then tries embedded JSON-LD and RDFa generically. A page without linked
// data is returned as markdown with ErrNoLinkedData.
func (r *Retriever) htmlResult(ctx context.Context, res *Result, content, base string, follow bool) (*Result, error) {
	doc, err := htmlld.ParseString(content, base)
	if err != nil {
		return r.fail(res, err)
	}
	analysis := AnalyzeHTML(doc)
	res.Analysis = &analysis

	switch analysis.Method {
	case ExtractRDFa:
		if r.rdfaResult(res, doc) {
			return res, nil
		}
	case ExtractMicrodata:
		if items := doc.Microdata(); len(items) > 0 {
			res.Success = true
			res.Format = ResultFormat
			res.ExtractedFrom = "html-microdata"
			if len(items) == 1 {
				res.Data = items[0]
			} else {
				graph := make([]any, 0, len(items))
				for _, item := range items {
					graph = append(graph, item)
				}
				res.Data = map[string]any{"@graph": graph}
			}
			return res, nil
		}
	case ExtractFollowReference:
		if follow && analysis.Location != "" {
			ref, err := r.retrieve(ctx, analysis.Location, false)
			if err == nil && ref.Success {
				ref.SourceURI = res.SourceURI
				ref.ExtractedFrom = "html-reference"
				ref.Analysis = res.Analysis
				return ref, nil
			}
			r.logger.Debug("Following data reference failed", "reference", analysis.Location, "error", err)
		}
	}

	// Generic pass: the first JSON-LD script, then RDFa.
	if scripts := doc.Scripts(); len(scripts) > 0 {
		if out, err := r.jsonResult(res, scripts[0], "html-script"); err == nil {
			return out, nil
		}
		res.Error = ""
	}
	if r.rdfaResult(res, doc) {
		return res, nil
	}

	page, err := r.markdown.Convert(content, base)
	if err != nil {
		r.logger.Debug("Markdown conversion failed", "url", base, "error", err)
	} else {
		res.Page = page
	}
	return r.fail(res, ErrNoLinkedData)
}

func (r *Retriever) rdfaResult(res *Result, doc *htmlld.Document) bool {
	g := doc.RDFa()
	if g.Len() == 0 {
		return false
	}
	data, err := datasetDocument(rdf.DatasetOf(g))
	if err != nil {
		r.logger.Debug("RDFa conversion failed", "error", err)
		return false
	}
	res.Success = true
	res.Data = data
	res.Format = ResultFormat
	res.ExtractedFrom = "html-rdfa"
	return true
}

// guessResult handles content of unknown type by its leading characters,
// then by trying each RDF syntax in turn.
func (r *Retriever) guessResult(res *Result, content, base string) (*Result, error) {
	trimmed := strings.TrimSpace(content)
	switch {
	case strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "["):
		if out, err := r.jsonResult(res, content, ""); err == nil {
			out.GuessedFormat = "json"
			return out, nil
		}
	case strings.HasPrefix(trimmed, "@prefix") || strings.HasPrefix(trimmed, "@base"):
		if out, err := r.rdfResult(res, content, rdf.FormatTurtle, base, "turtle"); err == nil {
			out.GuessedFormat = "turtle"
			out.ConvertedFrom = ""
			return out, nil
		}
	case strings.HasPrefix(trimmed, "<?xml") || strings.HasPrefix(trimmed, "<rdf:RDF"):
		if out, err := r.rdfResult(res, content, rdf.FormatRDFXML, base, "rdf-xml"); err == nil {
			out.GuessedFormat = "rdf-xml"
			out.ConvertedFrom = ""
			return out, nil
		}
	}
	res.Error = ""

	if doc, format, err := RDFToJSONLD(content, "", base); err == nil {
		res.Success = true
		res.Data = doc
		res.Format = ResultFormat
		res.ConvertedFrom = string(format)
		return res, nil
	}
	return r.fail(res, fmt.Errorf("%w: %s", ErrUnsupportedContent, res.ContentType))
}
