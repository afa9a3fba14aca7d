// Package retriever dereferences linked open data URIs and returns the
// resource as JSON-LD, whatever the publisher serves: JSON-LD, Turtle,
// RDF/XML, N-Triples or HTML with embedded JSON-LD, RDFa or microdata.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/c360studio/semlink/cache"
	"github.com/c360studio/semlink/fetch"
	"github.com/c360studio/semlink/rdf"
	"github.com/c360studio/semlink/vocab"
)

// Access methods.
const (
	MethodDirect             = "direct"
	MethodContentNegotiation = "content_negotiation"
	MethodHTMLAnalysis       = "html_analysis"
)

// ResultFormat is the format of every successful Result.
const ResultFormat = "json-ld"

// DefaultWikidataBase is where Wikidata entity data and search are served.
const DefaultWikidataBase = "https://www.wikidata.org"

var (
	// ErrNoLinkedData is returned when an HTML page carries no linked data
	// that could be extracted.
	ErrNoLinkedData = errors.New("could not extract linked data from HTML")

	// ErrUnsupportedContent is returned when the content is in no
	// recognisable format.
	ErrUnsupportedContent = errors.New("unsupported content type")
)

// Strategy is how a URI is fetched.
type Strategy struct {
	Method string `json:"method"`
	URL    string `json:"url"`
	Accept string `json:"accept,omitempty"`
	Format string `json:"format"`
}

// Result is a retrieved resource.
type Result struct {
	Success       bool      `json:"success"`
	Data          any       `json:"data,omitempty"`
	Format        string    `json:"format,omitempty"`
	SourceURI     string    `json:"source_uri"`
	URL           string    `json:"url,omitempty"`
	ContentType   string    `json:"content_type,omitempty"`
	ConvertedFrom string    `json:"converted_from,omitempty"`
	ExtractedFrom string    `json:"extracted_from,omitempty"`
	GuessedFormat string    `json:"guessed_format,omitempty"`
	Warning       string    `json:"warning,omitempty"`
	Error         string    `json:"error,omitempty"`
	Strategy      *Strategy `json:"strategy,omitempty"`
	Analysis      *Analysis `json:"html_analysis,omitempty"`

	// Page holds the readable content of HTML without linked data.
	Page *Page `json:"page,omitempty"`
}

// Retriever fetches linked data resources.
type Retriever struct {
	fetcher      *fetch.Fetcher
	registry     *vocab.Registry
	cache        cache.Cache
	logger       *slog.Logger
	markdown     *markdownConverter
	wikidataBase string
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithCache stores successful results under lod:<uri>.
func WithCache(c cache.Cache) Option {
	return func(r *Retriever) {
		r.cache = c
	}
}

// WithRegistry sets the vocabulary registry consulted for access
// strategies.
func WithRegistry(reg *vocab.Registry) Option {
	return func(r *Retriever) {
		r.registry = reg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) {
		r.logger = logger
	}
}

// WithWikidataBase overrides the Wikidata host used for entity data and
// search.
func WithWikidataBase(base string) Option {
	return func(r *Retriever) {
		r.wikidataBase = strings.TrimSuffix(base, "/")
	}
}

// New creates a Retriever.
func New(f *fetch.Fetcher, opts ...Option) *Retriever {
	r := &Retriever{
		fetcher:      f,
		registry:     vocab.DefaultRegistry(),
		logger:       slog.Default(),
		markdown:     newMarkdownConverter(),
		wikidataBase: DefaultWikidataBase,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve dereferences uri and converts it to JSON-LD. Fetch failures
// return only an error. When the content was fetched but could not be
// converted, the returned Result describes the failure (and, for HTML,
// carries the page as markdown) alongside the error.
func (r *Retriever) Retrieve(ctx context.Context, uri string) (*Result, error) {
	key := cache.LODKey(uri)
	if r.cache != nil {
		var cached Result
		if ok, err := cache.GetJSON(ctx, r.cache, key, &cached); ok {
			return &cached, nil
		} else if err != nil {
			r.logger.Warn("Ignoring unreadable cache entry", "key", key, "error", err)
		}
	}

	res, err := r.retrieve(ctx, uri, true)
	if err != nil {
		return res, err
	}
	if r.cache != nil {
		if err := cache.SetJSON(ctx, r.cache, key, res); err != nil {
			r.logger.Warn("Failed to cache retrieved resource", "uri", uri, "error", err)
		}
	}
	return res, nil
}

func (r *Retriever) retrieve(ctx context.Context, uri string, follow bool) (*Result, error) {
	strategy := r.DetermineStrategy(uri)
	r.logger.Debug("Retrieving linked data", "uri", uri, "method", strategy.Method, "url", strategy.URL)

	resp, err := r.fetcher.Get(ctx, strategy.URL, strategy.Accept)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", strategy.URL, err)
	}
	res, err := r.process(ctx, uri, resp, follow)
	if res != nil {
		res.Strategy = &strategy
	}
	return res, err
}

// DetermineStrategy chooses how to fetch uri: registered vocabularies by
// name, Wikidata entities as Turtle entity data, DBpedia resources as
// N-Triples data, schema.org, GS1 and W3C pages by HTML analysis, and
// content negotiation for everything else.
func (r *Retriever) DetermineStrategy(uri string) Strategy {
	conneg := Strategy{
		Method: MethodContentNegotiation,
		URL:    uri,
		Accept: fetch.AcceptHeader(rdf.FormatJSONLD, rdf.FormatTurtle, rdf.FormatRDFXML, rdf.FormatNTriples) + ", application/json;q=0.5, text/html;q=0.4",
		Format: "unknown",
	}
	u, err := url.Parse(uri)
	if err != nil {
		return conneg
	}
	host := strings.ToLower(u.Hostname())
	path := strings.ToLower(u.Path)

	switch {
	case strings.HasSuffix(host, "wikidata.org") && strings.HasPrefix(u.Path, "/entity/"):
		id := u.Path[strings.LastIndex(u.Path, "/")+1:]
		if strings.HasPrefix(id, "Q") || strings.HasPrefix(id, "P") {
			return Strategy{
				Method: MethodDirect,
				URL:    r.wikidataBase + "/wiki/Special:EntityData/" + id + ".ttl",
				Accept: "text/turtle",
				Format: string(rdf.FormatTurtle),
			}
		}
		return conneg

	case strings.HasSuffix(host, "dbpedia.org") && strings.HasPrefix(u.Path, "/resource/"):
		name := strings.TrimPrefix(u.Path, "/resource/")
		return Strategy{
			Method: MethodDirect,
			URL:    u.Scheme + "://" + u.Host + "/data/" + name + ".ntriples",
			Accept: "application/n-triples",
			Format: string(rdf.FormatNTriples),
		}
	}

	if v := r.registered(uri, host); v != nil {
		switch v.Name {
		case "schema":
			if path == "" || path == "/" {
				return Strategy{Method: MethodContentNegotiation, URL: uri, Accept: "application/ld+json", Format: string(rdf.FormatJSONLD)}
			}
			return Strategy{Method: MethodHTMLAnalysis, URL: uri, Format: string(rdf.FormatHTML)}
		case "dc":
			return Strategy{Method: MethodContentNegotiation, URL: uri, Accept: "text/turtle, application/rdf+xml", Format: string(rdf.FormatTurtle)}
		}
		return conneg
	}

	for _, d := range []string{"schema.org", "gs1.org", "w3.org"} {
		if strings.HasSuffix(host, d) {
			return Strategy{Method: MethodHTMLAnalysis, URL: uri, Format: string(rdf.FormatHTML)}
		}
	}
	return conneg
}

// registered returns the vocabulary uri belongs to, matching its URIs or
// its host.
func (r *Retriever) registered(uri, host string) *vocab.Vocabulary {
	for _, v := range r.registry.All() {
		if v.Matches(uri) {
			return v
		}
	}
	if host == "" {
		return nil
	}
	for _, v := range r.registry.All() {
		for _, base := range append([]string{v.URI}, v.AlternativeURIs...) {
			if u, err := url.Parse(base); err == nil && strings.EqualFold(u.Hostname(), host) {
				return v
			}
		}
	}
	return nil
}
