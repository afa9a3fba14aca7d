package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/c360studio/semlink/rdf"
)

func TestAcceptHeader(t *testing.T) {
	got := AcceptHeader(LDFormats...)
	assert.Equal(t,
		"application/ld+json;q=1.0, application/rdf+xml;q=0.9, text/turtle;q=0.8, text/n3;q=0.7, application/n-triples;q=0.6",
		got)

	assert.Equal(t, "text/turtle;q=1.0, text/n3;q=0.9", AcceptHeader(rdf.FormatTurtle))
}

func TestAcceptFor(t *testing.T) {
	tests := map[string]string{
		"json-ld":   "application/ld+json",
		"turtle":    "text/turtle",
		"xml":       "application/rdf+xml",
		"n-triples": "application/n-triples",
		"bogus":     "application/ld+json",
	}
	for format, want := range tests {
		assert.Equal(t, want, AcceptFor(format), format)
	}
}

func TestParseLinkHeader(t *testing.T) {
	links := ParseLinkHeader(`</docs/jsonldcontext.jsonld>; rel="alternate"; type="application/ld+json", <https://ex.org/next>; rel=next`)
	if assert.Len(t, links, 2) {
		assert.Equal(t, Link{URI: "/docs/jsonldcontext.jsonld", Rel: "alternate", Type: "application/ld+json"}, links[0])
		assert.Equal(t, Link{URI: "https://ex.org/next", Rel: "next"}, links[1])
	}
}

func TestAlternateJSONLD(t *testing.T) {
	target, ok := AlternateJSONLD(`</docs/jsonldcontext.jsonld>; rel="alternate"; type="application/ld+json"`, "https://schema.org/Person")
	assert.True(t, ok)
	assert.Equal(t, "https://schema.org/docs/jsonldcontext.jsonld", target)

	_, ok = AlternateJSONLD(`<https://ex.org/x.ttl>; rel="alternate"; type="text/turtle"`, "https://ex.org/")
	assert.False(t, ok)
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, "text/turtle", MediaType("text/turtle; charset=utf-8"))
	assert.Equal(t, "", MediaType(""))
}
