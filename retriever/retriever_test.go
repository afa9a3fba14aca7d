package retriever

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/c360studio/semstreams/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semlink/cache"
	"github.com/c360studio/semlink/fetch"
)

const (
	personJSONLD = `{"@context": "https://schema.org/", "@id": "http://example.org/alice", "@type": "Person", "name": "Alice"}`

	scriptPage = `<html><head><title>Alice</title>
<script type="application/ld+json">` + personJSONLD + `</script></head><body></body></html>`

	rdfaPage = `<html><body vocab="https://schema.org/">
<div about="http://example.org/alice" typeof="Person"><span property="name">Alice</span></div>
</body></html>`

	microdataPage = `<html><body>
<div itemscope itemtype="https://schema.org/Person" itemid="http://example.org/alice"><span itemprop="name">Alice</span></div>
</body></html>`

	alternatePage = `<html><head><link rel="alternate" type="application/ld+json" href="/alice.jsonld"></head><body></body></html>`

	plainPage = `<html><head><title>Release notes</title></head><body>
<nav class="menu"><a href="/">Home</a></nav>
<main><h1>Release notes</h1><p>The retriever now understands microdata and RDFa on every page it fetches.</p></main>
<footer>Copyright</footer>
</body></html>`
)

type testServer struct {
	*httptest.Server
	mu   sync.Mutex
	hits map[string]int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := &testServer{hits: map[string]int{}}
	routes := map[string][2]string{
		"/alice.jsonld":   {"application/ld+json", personJSONLD},
		"/alice.ttl":      {"text/turtle; charset=utf-8", personTurtle},
		"/alice.rdf":      {"application/rdf+xml", personRDFXML},
		"/sniff-turtle":   {"text/plain", personTurtle},
		"/sniff-json":     {"text/plain", personJSONLD},
		"/sniff-ntriples": {"application/octet-stream", `<http://example.org/alice> <https://schema.org/name> "Alice" .`},
		"/blob":           {"application/octet-stream", "\x00\x01\x02"},
		"/script":         {"text/html", scriptPage},
		"/rdfa":           {"text/html", rdfaPage},
		"/microdata":      {"text/html; charset=utf-8", microdataPage},
		"/alternate":      {"text/html", alternatePage},
		"/plain":          {"text/html", plainPage},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()
		route, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", route[0])
		w.Write([]byte(route[1]))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *testServer) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func testFetcher() *fetch.Fetcher {
	cfg := fetch.DefaultConfig()
	cfg.Timeout = 5 * time.Second
	cfg.Guard = fetch.Guard{AllowHTTP: true, AllowPrivate: true}
	cfg.Retry = retry.Config{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}
	return fetch.New(cfg)
}

func TestRetriever_DetermineStrategy(t *testing.T) {
	r := New(testFetcher(), WithWikidataBase("http://wd.test/"))
	tests := []struct {
		uri    string
		method string
		url    string
		accept string
	}{
		{"http://www.wikidata.org/entity/Q42", MethodDirect, "http://wd.test/wiki/Special:EntityData/Q42.ttl", "text/turtle"},
		{"http://dbpedia.org/resource/Berlin", MethodDirect, "http://dbpedia.org/data/Berlin.ntriples", "application/n-triples"},
		{"https://schema.org/", MethodContentNegotiation, "https://schema.org/", "application/ld+json"},
		{"https://schema.org", MethodContentNegotiation, "https://schema.org", "application/ld+json"},
		{"https://schema.org/Person", MethodHTMLAnalysis, "https://schema.org/Person", ""},
		{"http://purl.org/dc/terms/title", MethodContentNegotiation, "http://purl.org/dc/terms/title", "text/turtle, application/rdf+xml"},
		{"https://www.gs1.org/voc/Product", MethodHTMLAnalysis, "https://www.gs1.org/voc/Product", ""},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			s := r.DetermineStrategy(tt.uri)
			assert.Equal(t, tt.method, s.Method)
			assert.Equal(t, tt.url, s.URL)
			assert.Equal(t, tt.accept, s.Accept)
		})
	}

	generic := r.DetermineStrategy("https://example.org/thing")
	assert.Equal(t, MethodContentNegotiation, generic.Method)
	assert.True(t, strings.HasPrefix(generic.Accept, "application/ld+json"), generic.Accept)

	lexeme := r.DetermineStrategy("http://www.wikidata.org/entity/L7")
	assert.Equal(t, MethodContentNegotiation, lexeme.Method)
}

func TestRetriever_Retrieve(t *testing.T) {
	srv := newTestServer(t)
	r := New(testFetcher())
	ctx := context.Background()

	tests := []struct {
		path          string
		convertedFrom string
		extractedFrom string
		guessedFormat string
	}{
		{"/alice.jsonld", "", "", ""},
		{"/alice.ttl", "turtle", "", ""},
		{"/alice.rdf", "rdf-xml", "", ""},
		{"/sniff-turtle", "", "", "turtle"},
		{"/sniff-json", "", "", "json"},
		{"/sniff-ntriples", "turtle", "", ""},
		{"/script", "", "html-script", ""},
		{"/rdfa", "", "html-rdfa", ""},
		{"/microdata", "", "html-microdata", ""},
		{"/alternate", "", "html-reference", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			res, err := r.Retrieve(ctx, srv.URL+tt.path)
			require.NoError(t, err)
			assert.True(t, res.Success)
			assert.Equal(t, ResultFormat, res.Format)
			assert.Equal(t, srv.URL+tt.path, res.SourceURI)
			assert.Equal(t, tt.convertedFrom, res.ConvertedFrom)
			assert.Equal(t, tt.extractedFrom, res.ExtractedFrom)
			assert.Equal(t, tt.guessedFormat, res.GuessedFormat)
			assert.Contains(t, toJSON(t, res.Data), "http://example.org/alice")
		})
	}
}

func TestRetriever_RetrieveAnalysis(t *testing.T) {
	srv := newTestServer(t)
	r := New(testFetcher())
	ctx := context.Background()

	res, err := r.Retrieve(ctx, srv.URL+"/script")
	require.NoError(t, err)
	require.NotNil(t, res.Analysis)
	assert.Equal(t, ExtractEmbeddedJSONLD, res.Analysis.Method)
	assert.Equal(t, 1, res.Analysis.Count)

	res, err = r.Retrieve(ctx, srv.URL+"/alternate")
	require.NoError(t, err)
	assert.Equal(t, ExtractFollowReference, res.Analysis.Method)
	assert.Equal(t, srv.URL+"/alice.jsonld", res.Analysis.Location)
	assert.Equal(t, 1, srv.count("/alice.jsonld"))
}

func TestRetriever_RetrieveFailures(t *testing.T) {
	srv := newTestServer(t)
	r := New(testFetcher())
	ctx := context.Background()

	res, err := r.Retrieve(ctx, srv.URL+"/plain")
	assert.ErrorIs(t, err, ErrNoLinkedData)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, ExtractNone, res.Analysis.Method)
	require.NotNil(t, res.Page)
	assert.Contains(t, res.Page.Markdown, "understands microdata")

	res, err = r.Retrieve(ctx, srv.URL+"/blob")
	assert.ErrorIs(t, err, ErrUnsupportedContent)
	require.NotNil(t, res)
	assert.Contains(t, res.Error, "application/octet-stream")

	res, err = r.Retrieve(ctx, srv.URL+"/missing")
	assert.Error(t, err)
	assert.Nil(t, res)
}

func TestRetriever_Cache(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, err := cache.NewInMemoryCache(ctx)
	require.NoError(t, err)
	r := New(testFetcher(), WithCache(c))

	for range 2 {
		res, err := r.Retrieve(ctx, srv.URL+"/alice.ttl")
		require.NoError(t, err)
		assert.True(t, res.Success)
	}
	assert.Equal(t, 1, srv.count("/alice.ttl"))
	_, ok := c.Get(ctx, cache.LODKey(srv.URL+"/alice.ttl"))
	assert.True(t, ok)

	_, err = r.Retrieve(ctx, srv.URL+"/blob")
	require.Error(t, err)
	_, ok = c.Get(ctx, cache.LODKey(srv.URL+"/blob"))
	assert.False(t, ok, "failures are not cached")
}

func TestMarkdownConverter(t *testing.T) {
	page, err := newMarkdownConverter().Convert(plainPage, "http://example.org/notes")
	require.NoError(t, err)
	assert.Equal(t, "Release notes", page.Title)
	assert.Contains(t, page.Markdown, "understands microdata")

	title, body := extractMainContent(`<html><body><div class="sidebar">Links</div><p>Body text</p><script>x()</script></body></html>`)
	assert.Empty(t, title)
	assert.Contains(t, body, "Body text")
	assert.NotContains(t, body, "Links")
	assert.NotContains(t, body, "x()")

	assert.Equal(t, "a\n\n\nb", cleanMarkdown("a  \n\n\n\n\n\nb\t"))
	assert.Equal(t, "Heading", markdownTitle("text\n# Heading\n## Sub"))
}
