package sparql

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/c360studio/semlink/fetch"
	"github.com/c360studio/semlink/rdf"
)

// maxGETLength is the longest request URL sent with GET; longer queries are
// POSTed as a form.
const maxGETLength = 2048

// graphAccept lists media types accepted for CONSTRUCT and DESCRIBE by
// requested format.
var graphAccept = map[string]string{
	"json-ld":   "application/ld+json",
	"turtle":    "text/turtle",
	"n-triples": "application/n-triples",
	"xml":       "application/rdf+xml",
}

// DefaultGraphAccept is sent for graph results when no format is requested.
const DefaultGraphAccept = "text/turtle, application/n-triples;q=0.9, application/rdf+xml;q=0.8, application/ld+json;q=0.7"

// Client speaks the SPARQL 1.1 protocol.
type Client struct {
	fetcher *fetch.Fetcher
	logger  *slog.Logger
}

// NewClient creates a protocol client on top of a guarded fetcher.
func NewClient(f *fetch.Fetcher, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{fetcher: f, logger: logger}
}

// Request sends query to endpoint with the given Accept header and returns
// the raw response.
func (c *Client) Request(ctx context.Context, endpoint, query, accept string, timeout time.Duration) (*fetch.Response, error) {
	h := http.Header{}
	if accept != "" {
		h.Set("Accept", accept)
	}
	req := fetch.Request{Header: h, Timeout: timeout}

	form := url.Values{"query": {query}}.Encode()
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	if get := endpoint + sep + form; len(get) <= maxGETLength {
		req.Method = http.MethodGet
		req.URL = get
	} else {
		req.Method = http.MethodPost
		req.URL = endpoint
		req.Body = []byte(form)
		h.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	c.logger.Debug("SPARQL request", "endpoint", endpoint, "method", req.Method)
	resp, err := c.fetcher.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("sparql request to %s: %w", endpoint, err)
	}
	return resp, nil
}

// Select runs a SELECT or ASK query and decodes the JSON results.
func (c *Client) Select(ctx context.Context, endpoint, query string, timeout time.Duration) (*Results, error) {
	resp, err := c.Request(ctx, endpoint, query, ResultsAccept[ResultsJSON], timeout)
	if err != nil {
		return nil, err
	}
	return ParseJSONResults(resp.Body)
}

// Ask runs an ASK query.
func (c *Client) Ask(ctx context.Context, endpoint, query string, timeout time.Duration) (bool, error) {
	res, err := c.Select(ctx, endpoint, query, timeout)
	if err != nil {
		return false, err
	}
	return res.Boolean, nil
}

// Graph runs a CONSTRUCT or DESCRIBE query and parses the returned RDF.
func (c *Client) Graph(ctx context.Context, endpoint, query string, timeout time.Duration) (*rdf.Graph, error) {
	resp, err := c.Request(ctx, endpoint, query, DefaultGraphAccept, timeout)
	if err != nil {
		return nil, err
	}
	return ParseGraphResponse(resp)
}

// ParseGraphResponse parses an RDF response body using its Content-Type,
// sniffing the content when the header is missing or generic.
func ParseGraphResponse(resp *fetch.Response) (*rdf.Graph, error) {
	body := string(resp.Body)
	format, ok := rdf.FormatFromContentType(resp.ContentType)
	if !ok || format == rdf.FormatHTML {
		if format, ok = rdf.SniffFormat(body); !ok {
			return rdf.NewGraph(), nil
		}
	}
	return rdf.ParseGraph(body, format, nil)
}
