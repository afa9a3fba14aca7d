package sparql

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/c360studio/semstreams/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semlink/fetch"
	"github.com/c360studio/semlink/rdf"
)

const voidTurtle = `@prefix void: <http://rdfs.org/ns/void#> .
<http://example.org/dataset/people> a void:Dataset ;
    void:sparqlEndpoint <http://example.org/sparql> ;
    void:triples 14 ;
    void:dataDump <http://example.org/dumps/people.nt> .
`

const serviceTurtle = `@prefix sd: <http://www.w3.org/ns/sparql-service-description#> .
[] a sd:Service ;
    sd:feature sd:UnionDefaultGraph ;
    sd:defaultGraph <http://example.org/graphs/default> ;
    sd:namedGraph [ sd:name <http://example.org/graphs/people> ] .
`

// endpoint is a SPARQL protocol server that evaluates queries locally.
type endpoint struct {
	t      *testing.T
	server *httptest.Server
	graph  *rdf.Graph

	mu      sync.Mutex
	methods []string
	accepts []string
}

func newEndpoint(t *testing.T) *endpoint {
	t.Helper()
	e := &endpoint{t: t, graph: peopleGraph(t)}
	mux := http.NewServeMux()
	mux.HandleFunc("/sparql", e.handle)
	mux.HandleFunc("/.well-known/void", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/turtle")
		io.WriteString(w, voidTurtle)
	})
	e.server = httptest.NewServer(mux)
	t.Cleanup(e.server.Close)
	return e
}

func (e *endpoint) URL() string { return e.server.URL + "/sparql" }

func (e *endpoint) seen() (methods, accepts []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.methods...), append([]string(nil), e.accepts...)
}

func (e *endpoint) handle(w http.ResponseWriter, r *http.Request) {
	var query string
	switch r.Method {
	case http.MethodGet:
		query = r.URL.Query().Get("query")
	case http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		form, err := url.ParseQuery(string(body))
		require.NoError(e.t, err)
		query = form.Get("query")
	}
	e.mu.Lock()
	e.methods = append(e.methods, r.Method)
	e.accepts = append(e.accepts, r.Header.Get("Accept"))
	e.mu.Unlock()

	if query == "DESCRIBE <"+e.URL()+">" {
		w.Header().Set("Content-Type", "text/turtle")
		io.WriteString(w, serviceTurtle)
		return
	}

	res, err := ExecGraph(r.Context(), e.graph, query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if res.Graph != nil {
		w.Header().Set("Content-Type", "application/n-triples")
		io.WriteString(w, rdf.WriteNTriples(res.Graph))
		return
	}
	format := ResultsJSON
	for f, mime := range ResultsAccept {
		if r.Header.Get("Accept") == mime {
			format = f
		}
	}
	out, err := res.Serialize(format)
	require.NoError(e.t, err)
	w.Header().Set("Content-Type", ResultsAccept[format])
	io.WriteString(w, out)
}

func testFetcher() *fetch.Fetcher {
	cfg := fetch.DefaultConfig()
	cfg.Timeout = 5 * time.Second
	cfg.Guard = fetch.Guard{AllowHTTP: true, AllowPrivate: true}
	cfg.Retry = retry.Config{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}
	return fetch.New(cfg)
}

func TestClientSelectUsesGET(t *testing.T) {
	ep := newEndpoint(t)
	c := NewClient(testFetcher(), nil)

	res, err := c.Select(context.Background(), ep.URL(), prologue+`SELECT ?n WHERE { ex:bob foaf:name ?n }`, 0)
	require.NoError(t, err)
	require.Len(t, res.Solutions, 1)
	assert.Equal(t, "Bob", res.Solutions[0]["n"].Value)
	methods, accepts := ep.seen()
	assert.Equal(t, []string{http.MethodGet}, methods)
	assert.Equal(t, []string{ResultsAccept[ResultsJSON]}, accepts)
}

func TestClientLongQueryUsesPOST(t *testing.T) {
	ep := newEndpoint(t)
	c := NewClient(testFetcher(), nil)

	filler := strings.Repeat("x", maxGETLength)
	ok, err := c.Ask(context.Background(), ep.URL(),
		prologue+`ASK { ?p foaf:name ?n FILTER(?n != "`+filler+`") }`, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	methods, _ := ep.seen()
	assert.Equal(t, []string{http.MethodPost}, methods)
}

func TestClientGraph(t *testing.T) {
	ep := newEndpoint(t)
	c := NewClient(testFetcher(), nil)

	g, err := c.Graph(context.Background(), ep.URL(), prologue+`DESCRIBE ex:carol`, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())
	_, accepts := ep.seen()
	assert.Equal(t, []string{DefaultGraphAccept}, accepts)
}

func TestClientHTTPError(t *testing.T) {
	ep := newEndpoint(t)
	c := NewClient(testFetcher(), nil)

	_, err := c.Select(context.Background(), ep.URL(), "SELECT nonsense", 0)
	require.Error(t, err)
	var se *fetch.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
}

func TestParseGraphResponseSniffs(t *testing.T) {
	resp := &fetch.Response{
		ContentType: "text/plain",
		Body:        []byte("@prefix ex: <http://example.org/> .\nex:a ex:b ex:c .\n"),
	}
	g, err := ParseGraphResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())
}
