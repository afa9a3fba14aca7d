package htmlld

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Microdata converts top-level microdata items to JSON-LD node objects.
// Each typed item carries an @vocab context derived from its itemtype so
// that its property names expand against the type's vocabulary; URL-valued
// properties become node references.
func (d *Document) Microdata() []map[string]any {
	var items []map[string]any
	d.doc.Find("[itemscope]").Each(func(_ int, s *goquery.Selection) {
		if _, ok := s.Attr("itemprop"); ok {
			return
		}
		items = append(items, d.microdataItem(s, map[*html.Node]bool{}))
	})
	return items
}

func (d *Document) microdataItem(item *goquery.Selection, seen map[*html.Node]bool) map[string]any {
	node := item.Get(0)
	seen[node] = true
	out := map[string]any{}

	types := strings.Fields(item.AttrOr("itemtype", ""))
	switch len(types) {
	case 0:
	case 1:
		out["@type"] = types[0]
	default:
		list := make([]any, len(types))
		for i, t := range types {
			list[i] = t
		}
		out["@type"] = list
	}
	if len(types) > 0 {
		out["@context"] = map[string]any{"@vocab": vocabularyOf(types[0])}
	}
	if id, ok := item.Attr("itemid"); ok {
		out["@id"] = d.resolve(id)
	}

	item.Find("[itemprop]").Each(func(_ int, prop *goquery.Selection) {
		owner := prop.Parent().Closest("[itemscope]")
		if owner.Length() == 0 || owner.Get(0) != node {
			return
		}
		var value any
		if _, nested := prop.Attr("itemscope"); nested {
			if seen[prop.Get(0)] {
				return
			}
			value = d.microdataItem(prop, seen)
		} else {
			value = d.microdataValue(prop)
		}
		for _, name := range strings.Fields(prop.AttrOr("itemprop", "")) {
			addValue(out, name, value)
		}
	})
	return out
}

// microdataValue reads a property value the way the HTML microdata model
// defines it per element.
func (d *Document) microdataValue(s *goquery.Selection) any {
	switch goquery.NodeName(s) {
	case "meta":
		return s.AttrOr("content", "")
	case "a", "area", "link":
		return map[string]any{"@id": d.resolve(s.AttrOr("href", ""))}
	case "audio", "embed", "iframe", "img", "source", "track", "video":
		return map[string]any{"@id": d.resolve(s.AttrOr("src", ""))}
	case "object":
		return map[string]any{"@id": d.resolve(s.AttrOr("data", ""))}
	case "data", "meter":
		return s.AttrOr("value", "")
	case "time":
		if v, ok := s.Attr("datetime"); ok {
			return v
		}
	}
	return strings.TrimSpace(s.Text())
}

func addValue(m map[string]any, key string, value any) {
	existing, ok := m[key]
	if !ok {
		m[key] = value
		return
	}
	if list, isList := existing.([]any); isList {
		m[key] = append(list, value)
		return
	}
	m[key] = []any{existing, value}
}

// vocabularyOf returns the namespace of a type IRI: everything up to the
// last '#' or '/'.
func vocabularyOf(typeIRI string) string {
	if i := strings.LastIndex(typeIRI, "#"); i >= 0 {
		return typeIRI[:i+1]
	}
	if i := strings.LastIndex(typeIRI, "/"); i >= 0 {
		return typeIRI[:i+1]
	}
	return typeIRI
}
