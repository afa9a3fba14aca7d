package htmlld

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semlink/rdf"
)

const rdfaPage = `<!DOCTYPE html>
<html><head><title> People </title>
<meta property="dc:title" content="People page">
</head>
<body vocab="https://schema.org/">
 <div typeof="Person" resource="http://example.org/alice">
   <span property="name">Alice</span>
   <a property="url" href="/alice">home</a>
   <span property="birthDate" datatype="xsd:date">1990-01-01</span>
   <div property="address" typeof="PostalAddress">
     <span property="addressLocality">Paris</span>
   </div>
 </div>
 <p lang="fr" property="description">Bonjour</p>
</body></html>`

func TestDocument_RDFa(t *testing.T) {
	d, err := ParseString(rdfaPage, "http://example.org/page")
	require.NoError(t, err)
	assert.Equal(t, "People", d.Title())

	g := d.RDFa()
	assert.Equal(t, 9, g.Len())

	page := rdf.NewIRI("http://example.org/page")
	alice := rdf.NewIRI("http://example.org/alice")
	schema := func(local string) rdf.Term { return rdf.NewIRI(rdf.SchemaNS + local) }

	title, ok := g.Object(page, rdf.NewIRI(rdf.DCNS+"title"))
	require.True(t, ok)
	assert.Equal(t, rdf.NewLiteral("People page"), title)

	assert.True(t, g.HasType(alice, rdf.SchemaNS+"Person"))
	name, _ := g.Object(alice, schema("name"))
	assert.Equal(t, rdf.NewLiteral("Alice"), name)
	url, _ := g.Object(alice, schema("url"))
	assert.Equal(t, alice, url)
	birth, _ := g.Object(alice, schema("birthDate"))
	assert.Equal(t, rdf.NewTypedLiteral("1990-01-01", rdf.XSDDate), birth)

	addr, ok := g.Object(alice, schema("address"))
	require.True(t, ok)
	assert.True(t, addr.IsBlank())
	assert.True(t, g.HasType(addr, rdf.SchemaNS+"PostalAddress"))
	city, _ := g.Object(addr, schema("addressLocality"))
	assert.Equal(t, "Paris", city.Value)

	desc, _ := g.Object(page, schema("description"))
	assert.Equal(t, rdf.NewLangLiteral("Bonjour", "fr"), desc)
	assert.Equal(t, 9, d.RDFaCount())
}

func TestDocument_RDFaPrefixesAndUnknownTerms(t *testing.T) {
	d, err := ParseString(`<div prefix="ex: http://example.org/ns#" about="ex:thing">
<span property="ex:label">Thing</span>
<span property="nolocal">dropped without a vocab</span>
<span property="urn:x:prop">absolute</span>
</div>`, "")
	require.NoError(t, err)

	g := d.RDFa()
	thing := rdf.NewIRI("http://example.org/ns#thing")
	label, ok := g.Object(thing, rdf.NewIRI("http://example.org/ns#label"))
	require.True(t, ok)
	assert.Equal(t, "Thing", label.Value)
	_, ok = g.Object(thing, rdf.NewIRI("urn:x:prop"))
	assert.True(t, ok)
	assert.Equal(t, 2, g.Len())
}

const microdataPage = `<html><body>
<div itemscope itemtype="https://schema.org/Person" itemid="/people/bob">
  <span itemprop="name">Bob</span>
  <a itemprop="url" href="https://bob.example.org/">site</a>
  <div itemprop="address" itemscope itemtype="https://schema.org/PostalAddress">
    <span itemprop="addressLocality">Berlin</span>
  </div>
  <meta itemprop="email" content="bob@example.org">
  <span itemprop="knows">Carol</span><span itemprop="knows">Dave</span>
  <time itemprop="birthDate" datetime="1980-02-03">Feb 3</time>
</div>
</body></html>`

func TestDocument_Microdata(t *testing.T) {
	d, err := ParseString(microdataPage, "http://example.org/")
	require.NoError(t, err)

	items := d.Microdata()
	require.Len(t, items, 1)
	bob := items[0]
	assert.Equal(t, "https://schema.org/Person", bob["@type"])
	assert.Equal(t, "http://example.org/people/bob", bob["@id"])
	assert.Equal(t, map[string]any{"@vocab": "https://schema.org/"}, bob["@context"])
	assert.Equal(t, "Bob", bob["name"])
	assert.Equal(t, map[string]any{"@id": "https://bob.example.org/"}, bob["url"])
	assert.Equal(t, "bob@example.org", bob["email"])
	assert.Equal(t, []any{"Carol", "Dave"}, bob["knows"])
	assert.Equal(t, "1980-02-03", bob["birthDate"])
	assert.NotContains(t, bob, "addressLocality")

	addr := bob["address"].(map[string]any)
	assert.Equal(t, "Berlin", addr["addressLocality"])

	ds, err := rdf.JSONLDToDataset(bob, nil)
	require.NoError(t, err)
	name, ok := ds.Default().Object(rdf.NewIRI("http://example.org/people/bob"), rdf.NewIRI(rdf.SchemaName))
	require.True(t, ok)
	assert.Equal(t, "Bob", name.Value)
}

func TestDocument_JSONLD(t *testing.T) {
	d, err := ParseString(`<html><head>
<script type="application/ld+json">{"@id": "http://example.org/a", "name": "A"}</script>
<script type="application/ld+json">{not json</script>
<script type="text/javascript">var x = 1;</script>
</head></html>`, "")
	require.NoError(t, err)

	assert.Len(t, d.Scripts(), 2)
	blocks, errs := d.JSONLD()
	require.Len(t, blocks, 1)
	assert.Len(t, errs, 1)
	assert.Equal(t, "A", blocks[0].(map[string]any)["name"])
}

func TestDocument_Links(t *testing.T) {
	d, err := ParseString(`<html><head>
<link rel="alternate" type="application/ld+json" href="/data.jsonld">
<link rel="alternate stylesheet" type="text/css" href="x.css">
<link rel="alternate" type="text/turtle" href="data.ttl">
</head><body>
<a href="/dump.ttl">Download</a>
<a href="/about">About</a>
<a href="/x">RDF dump</a>
<a href="/dump.ttl">again</a>
</body></html>`, "http://example.org/dir/page")
	require.NoError(t, err)

	assert.Equal(t, []Link{
		{Href: "http://example.org/data.jsonld", Rel: "alternate", Type: "application/ld+json"},
		{Href: "http://example.org/dir/data.ttl", Rel: "alternate", Type: "text/turtle"},
	}, d.AlternateLinks())
	assert.Equal(t, []string{"http://example.org/dump.ttl", "http://example.org/x"}, d.DataLinks())
	assert.Zero(t, d.RDFaCount())
	assert.Zero(t, d.MicrodataCount())
}
