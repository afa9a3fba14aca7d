package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/piprate/json-gold/ld"

	"github.com/c360studio/semlink/rdf"
)

// Ingester stores N-Quads under a named graph.
type Ingester interface {
	IngestNQuads(ctx context.Context, nquads, graphID string) (int, error)
}

// LDFetchOptions controls one linked-data fetch.
type LDFetchOptions struct {
	// Format is the preferred format: json-ld, turtle, xml or n-triples.
	Format string

	// Store ingests the parsed data. GraphID defaults to the URI.
	Store   bool
	GraphID string

	Timeout time.Duration
}

// LDFetchResult is the JSON-serialisable outcome of a fetch.
type LDFetchResult struct {
	Success      bool   `json:"success"`
	URI          string `json:"uri"`
	Format       string `json:"format,omitempty"`
	ContentType  string `json:"content_type,omitempty"`
	DataSize     int    `json:"data_size,omitempty"`
	StatusCode   int    `json:"status_code,omitempty"`
	Stored       bool   `json:"stored,omitempty"`
	TripleCount  int    `json:"triple_count,omitempty"`
	GraphID      string `json:"graph_id,omitempty"`
	ActualFormat string `json:"actual_format,omitempty"`
	Data         string `json:"data,omitempty"`
	Error        string `json:"error,omitempty"`
}

// LDFetcher fetches RDF resources with content negotiation and optionally
// stores them.
type LDFetcher struct {
	fetcher *Fetcher
	store   Ingester
	loader  ld.DocumentLoader
	logger  *slog.Logger
}

// NewLDFetcher creates an LDFetcher. store may be nil when results are never
// stored; loader resolves remote JSON-LD contexts and may be nil.
func NewLDFetcher(f *Fetcher, store Ingester, loader ld.DocumentLoader, logger *slog.Logger) *LDFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LDFetcher{fetcher: f, store: store, loader: loader, logger: logger}
}

// fallbackOrder lists parse attempts after the detected format fails, with
// the names reported as actual_format.
var fallbackOrder = []struct {
	format rdf.Format
	name   string
}{
	{rdf.FormatJSONLD, "json-ld"},
	{rdf.FormatTurtle, "turtle"},
	{rdf.FormatRDFXML, "xml"},
	{rdf.FormatNTriples, "nt"},
}

// Fetch retrieves uri and reports what was fetched. Failures are reported
// in the result rather than returned.
func (l *LDFetcher) Fetch(ctx context.Context, uri string, opts LDFetchOptions) *LDFetchResult {
	if opts.Format == "" {
		opts.Format = "json-ld"
	}
	if opts.Store && opts.GraphID == "" {
		opts.GraphID = uri
	}

	h := http.Header{}
	h.Set("Accept", AcceptFor(opts.Format))
	resp, err := l.fetcher.Do(ctx, Request{Method: http.MethodGet, URL: uri, Header: h, Timeout: opts.Timeout})
	if err != nil {
		l.logger.Error("LD fetch error", "uri", uri, "error", err)
		return &LDFetchResult{URI: uri, Error: err.Error()}
	}

	content := string(resp.Body)
	contentType := MediaType(resp.ContentType)
	res := &LDFetchResult{
		Success:     true,
		URI:         uri,
		Format:      opts.Format,
		ContentType: contentType,
		DataSize:    len(content),
		StatusCode:  resp.StatusCode,
	}
	if !opts.Store {
		res.Data = content
		return res
	}

	primary := detectParseFormat(contentType, opts.Format)
	ds, parseErr := rdf.Parse(content, primary, l.parseOptions(uri))
	if parseErr != nil {
		l.logger.Warn("Failed to parse fetched content, trying alternatives",
			"uri", uri, "format", primary, "error", parseErr)
		for _, fb := range fallbackOrder {
			if fb.format == primary {
				continue
			}
			alt, err := rdf.Parse(content, fb.format, l.parseOptions(uri))
			if err == nil && alt.Len() > 0 {
				ds = alt
				res.ActualFormat = fb.name
				break
			}
		}
		if ds == nil {
			res.Success = false
			res.Error = fmt.Sprintf("Failed to parse content in any supported format: %v", parseErr)
			res.Data = content
			return res
		}
	}

	if err := l.ingest(ctx, ds, opts.GraphID); err != nil {
		res.Success = false
		res.Error = err.Error()
		res.ActualFormat = ""
		return res
	}
	res.Stored = true
	res.TripleCount = ds.Len()
	res.GraphID = opts.GraphID
	return res
}

func (l *LDFetcher) parseOptions(base string) *rdf.ParseOptions {
	return &rdf.ParseOptions{Base: base, DocumentLoader: l.loader}
}

func (l *LDFetcher) ingest(ctx context.Context, ds *rdf.Dataset, graphID string) error {
	if l.store == nil {
		return fmt.Errorf("no graph store configured")
	}
	if _, err := l.store.IngestNQuads(ctx, rdf.WriteNQuads(ds), graphID); err != nil {
		return fmt.Errorf("store %s: %w", graphID, err)
	}
	return nil
}

// detectParseFormat picks the parser from the response media type, falling
// back to the requested format.
func detectParseFormat(contentType, requested string) rdf.Format {
	switch {
	case strings.Contains(contentType, "json"):
		return rdf.FormatJSONLD
	case strings.Contains(contentType, "turtle"):
		return rdf.FormatTurtle
	case strings.Contains(contentType, "rdf+xml"):
		return rdf.FormatRDFXML
	case strings.Contains(contentType, "n-triples"):
		return rdf.FormatNTriples
	}
	if f, err := rdf.ParseFormat(requested); err == nil && f != rdf.FormatHTML {
		return f
	}
	return rdf.FormatJSONLD
}
