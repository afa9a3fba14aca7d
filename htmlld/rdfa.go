package htmlld

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/c360studio/semlink/rdf"
)

// rdfaPrefixes is the initial prefix mapping for RDFa processing.
func rdfaPrefixes() map[string]string {
	p := rdf.DefaultPrefixes()
	p["dcterms"] = rdf.DCNS
	p["og"] = "http://ogp.me/ns#"
	p["xhv"] = "http://www.w3.org/1999/xhtml/vocab#"
	return p
}

type rdfaContext struct {
	subject  rdf.Term
	vocab    string
	prefixes map[string]string
	lang     string
}

type rdfaParser struct {
	doc   *Document
	graph *rdf.Graph
	scope string
	next  int
}

// RDFa extracts RDFa Lite 1.1 statements (vocab, prefix, typeof, property,
// resource, plus about, content and datatype) into a graph. Statements
// without an explicit subject describe the base URL.
func (d *Document) RDFa() *rdf.Graph {
	p := &rdfaParser{
		doc:   d,
		graph: rdf.NewGraph(),
		scope: strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
	}
	ctx := rdfaContext{prefixes: rdfaPrefixes()}
	if base := d.Base(); base != "" {
		ctx.subject = rdf.NewIRI(base)
	} else {
		ctx.subject = p.blank()
	}
	d.doc.Children().Each(func(_ int, s *goquery.Selection) {
		p.element(s, ctx)
	})
	return p.graph
}

func (p *rdfaParser) element(s *goquery.Selection, ctx rdfaContext) {
	if v, ok := s.Attr("vocab"); ok {
		ctx.vocab = p.doc.resolve(v)
	}
	if v, ok := s.Attr("prefix"); ok {
		ctx.prefixes = parsePrefixAttr(ctx.prefixes, v)
	}
	if v, ok := s.Attr("lang"); ok {
		ctx.lang = v
	} else if v, ok := s.Attr("xml:lang"); ok {
		ctx.lang = v
	}

	props := strings.Fields(s.AttrOr("property", ""))
	types := strings.Fields(s.AttrOr("typeof", ""))
	_, hasTypeof := s.Attr("typeof")
	about, hasAbout := s.Attr("about")
	resource, hasResource := resourceAttr(s)
	_, hasContent := s.Attr("content")
	_, hasDatatype := s.Attr("datatype")

	subject := ctx.subject
	if hasAbout {
		subject = p.term(about, ctx)
	}
	childSubject := subject
	var typed rdf.Term

	switch {
	case len(props) > 0:
		var object rdf.Term
		switch {
		case hasTypeof:
			if hasResource {
				object = p.term(resource, ctx)
			} else {
				object = p.blank()
			}
			typed = object
			childSubject = object
		case hasResource && !hasContent && !hasDatatype:
			object = p.term(resource, ctx)
		default:
			object = p.literal(s, ctx)
		}
		for _, prop := range props {
			if iri := p.expand(prop, ctx); iri != "" {
				p.graph.AddSPO(subject, rdf.NewIRI(iri), object)
			}
		}
	case hasTypeof:
		switch {
		case hasAbout:
			typed = subject
		case hasResource:
			typed = p.term(resource, ctx)
		default:
			typed = p.blank()
		}
		childSubject = typed
	case !hasAbout:
		if r, ok := s.Attr("resource"); ok {
			childSubject = p.term(r, ctx)
		}
	}

	if !typed.IsZero() {
		for _, t := range types {
			if iri := p.expand(t, ctx); iri != "" {
				p.graph.AddSPO(typed, rdf.NewIRI(rdf.RDFType), rdf.NewIRI(iri))
			}
		}
	}

	ctx.subject = childSubject
	s.Children().Each(func(_ int, c *goquery.Selection) {
		p.element(c, ctx)
	})
}

// resourceAttr returns the first of resource, href and src.
func resourceAttr(s *goquery.Selection) (string, bool) {
	for _, name := range []string{"resource", "href", "src"} {
		if v, ok := s.Attr(name); ok {
			return v, true
		}
	}
	return "", false
}

func (p *rdfaParser) literal(s *goquery.Selection, ctx rdfaContext) rdf.Term {
	value, ok := s.Attr("content")
	if !ok {
		value = strings.TrimSpace(s.Text())
	}
	if dt, ok := s.Attr("datatype"); ok && dt != "" {
		if iri := p.expand(dt, ctx); iri != "" {
			return rdf.NewTypedLiteral(value, iri)
		}
	}
	if ctx.lang != "" {
		return rdf.NewLangLiteral(value, ctx.lang)
	}
	return rdf.NewLiteral(value)
}

// term resolves a subject or object reference: a blank node label, a safe
// or plain CURIE, or a relative IRI.
func (p *rdfaParser) term(v string, ctx rdfaContext) rdf.Term {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]") {
		v = v[1 : len(v)-1]
	}
	if label, ok := strings.CutPrefix(v, "_:"); ok {
		return rdf.NewBlank(label + p.scope)
	}
	if prefix, local, ok := strings.Cut(v, ":"); ok && !strings.HasPrefix(local, "//") {
		if ns, known := ctx.prefixes[prefix]; known {
			return rdf.NewIRI(ns + local)
		}
	}
	return rdf.NewIRI(p.doc.resolve(v))
}

// expand turns a property, type or datatype term into an IRI. Bare terms
// need a vocabulary; "" means the term is dropped.
func (p *rdfaParser) expand(t string, ctx rdfaContext) string {
	if strings.HasPrefix(t, "_:") {
		return ""
	}
	if prefix, local, ok := strings.Cut(t, ":"); ok {
		if strings.HasPrefix(local, "//") {
			return t
		}
		if ns, known := ctx.prefixes[prefix]; known {
			return ns + local
		}
		return t
	}
	if ctx.vocab == "" {
		return ""
	}
	return ctx.vocab + t
}

func (p *rdfaParser) blank() rdf.Term {
	p.next++
	return rdf.NewBlank("rdfa" + p.scope + strconv.Itoa(p.next))
}

// parsePrefixAttr returns a copy of prefixes extended with the mappings of
// an RDFa prefix attribute ("p1: iri1 p2: iri2").
func parsePrefixAttr(prefixes map[string]string, attr string) map[string]string {
	out := make(map[string]string, len(prefixes)+2)
	for k, v := range prefixes {
		out[k] = v
	}
	fields := strings.Fields(attr)
	for i := 0; i+1 < len(fields); i++ {
		name, ok := strings.CutSuffix(fields[i], ":")
		if !ok || name == "" {
			continue
		}
		out[strings.ToLower(name)] = fields[i+1]
		i++
	}
	return out
}
