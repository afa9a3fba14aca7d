package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/c360studio/semlink/fetch"
	"github.com/c360studio/semlink/htmlld"
	"github.com/c360studio/semlink/rdf"
)

// SchemaOrgContextURL is the JSON-LD context schema.org publishes for its
// vocabulary.
const SchemaOrgContextURL = "https://schema.org/docs/jsonldcontext.jsonld"

// ErrUnknownFormat is returned when no RDF serialisation can be recognised
// in a fetched vocabulary.
var ErrUnknownFormat = errors.New("could not determine RDF format")

// guessOrder is tried when neither the content type nor the content
// reveals the format.
var guessOrder = []rdf.Format{rdf.FormatRDFXML, rdf.FormatTurtle, rdf.FormatNTriples, rdf.FormatJSONLD}

// MergeDocuments merges JSON-LD documents into a copy of the first. Later
// documents contribute their @graph, their entities when they are lists,
// or themselves when they are a single node with @id; map contexts are
// merged with later terms winning.
func MergeDocuments(docs ...any) map[string]any {
	if len(docs) == 0 {
		return emptyDocument()
	}
	result := map[string]any{}
	switch first := docs[0].(type) {
	case map[string]any:
		for k, v := range first {
			result[k] = v
		}
	case []any:
		result["@graph"] = first
	}
	graph := append([]any{}, asList(result["@graph"])...)
	ctx, isMap := result["@context"].(map[string]any)
	switch {
	case result["@context"] == nil:
		ctx, isMap = map[string]any{}, true
	case isMap:
		ctx = copyMap(ctx)
	}

	for _, doc := range docs[1:] {
		switch d := doc.(type) {
		case []any:
			graph = append(graph, d...)
		case map[string]any:
			if g, ok := d["@graph"]; ok {
				graph = append(graph, asList(g)...)
			} else if _, ok := d["@id"]; ok {
				graph = append(graph, d)
			}
			if dctx, ok := d["@context"].(map[string]any); ok && isMap {
				for k, v := range dctx {
					ctx[k] = v
				}
			}
		}
	}
	result["@graph"] = graph
	if isMap {
		result["@context"] = ctx
	}
	return result
}

// Merge merges docs into the knowledge base.
func (b *Base) Merge(docs ...any) {
	b.data = MergeDocuments(append([]any{b.data}, docs...)...)
}

// FetchOptions controls FetchVocabulary.
type FetchOptions struct {
	// IgnoreLinkHeader disables following a rel="alternate" JSON-LD Link.
	IgnoreLinkHeader bool

	// FallbackContexts maps a URI substring to a JSON-LD document fetched
	// when the vocabulary's format cannot be recognised. Nil uses the
	// schema.org context for schema.org URIs.
	FallbackContexts map[string]string
}

// FetchVocabulary fetches uri with content negotiation and merges the
// vocabulary into the knowledge base. It follows a JSON-LD alternate Link,
// reads JSON-LD and then RDFa embedded in HTML, and otherwise parses the
// body in the format announced or sniffed.
func (b *Base) FetchVocabulary(ctx context.Context, f *fetch.Fetcher, uri string, opts FetchOptions) error {
	accept := fetch.AcceptHeader(rdf.FormatJSONLD, rdf.FormatRDFXML, rdf.FormatTurtle, rdf.FormatNTriples)
	resp, err := f.Get(ctx, uri, accept)
	if err != nil {
		return fmt.Errorf("fetch vocabulary %s: %w", uri, err)
	}

	if !opts.IgnoreLinkHeader {
		if alt, ok := fetch.AlternateJSONLD(resp.Header.Get("Link"), resp.URL); ok {
			doc, err := b.fetchJSON(ctx, f, alt)
			if err == nil {
				b.logger.Debug("Vocabulary loaded from alternate link", "uri", uri, "link", alt)
				b.Merge(doc)
				return nil
			}
			b.logger.Warn("Alternate JSON-LD link failed", "link", alt, "error", err)
		}
	}

	body := string(resp.Body)
	mediaType := strings.ToLower(fetch.MediaType(resp.ContentType))
	if mediaType == "text/html" {
		if n, err := b.ExtractJSONLDFromHTML(body); err == nil && n > 0 && len(b.Graph()) > 0 {
			return nil
		}
		if doc, err := htmlld.ParseString(body, resp.URL); err == nil {
			if g := doc.RDFa(); g.Len() > 0 {
				return b.mergeDataset(rdf.DatasetOf(g))
			}
		}
	}

	format, ok := DetermineFormat(mediaType, body)
	if !ok {
		if doc, found := b.fallbackContext(ctx, f, uri, opts); found {
			b.Merge(doc)
			return nil
		}
		for _, candidate := range guessOrder {
			ds, err := rdf.Parse(body, candidate, b.parseOptions(resp.URL))
			if err == nil && ds.Len() > 0 {
				return b.mergeDataset(ds)
			}
		}
		return fmt.Errorf("%w: %s", ErrUnknownFormat, uri)
	}

	if format == rdf.FormatHTML {
		doc, err := htmlld.ParseString(body, resp.URL)
		if err != nil {
			return err
		}
		return b.mergeDataset(rdf.DatasetOf(doc.RDFa()))
	}
	ds, err := rdf.Parse(body, format, b.parseOptions(resp.URL))
	if err != nil {
		return fmt.Errorf("parse vocabulary %s as %s: %w", uri, format, err)
	}
	return b.mergeDataset(ds)
}

func (b *Base) parseOptions(base string) *rdf.ParseOptions {
	return &rdf.ParseOptions{Base: base, DocumentLoader: b.loader}
}

// mergeDataset adds the expanded JSON-LD form of ds to @graph.
func (b *Base) mergeDataset(ds *rdf.Dataset) error {
	doc, err := rdf.ToJSONLD(ds, &rdf.JSONLDOptions{DocumentLoader: b.loader})
	if err != nil {
		return err
	}
	b.Merge(doc)
	return nil
}

func (b *Base) fetchJSON(ctx context.Context, f *fetch.Fetcher, uri string) (any, error) {
	resp, err := f.Get(ctx, uri, "application/ld+json, application/json;q=0.9")
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", uri, err)
	}
	return doc, nil
}

func (b *Base) fallbackContext(ctx context.Context, f *fetch.Fetcher, uri string, opts FetchOptions) (any, bool) {
	fallbacks := opts.FallbackContexts
	if fallbacks == nil {
		fallbacks = map[string]string{"schema.org": SchemaOrgContextURL}
	}
	keys := make([]string, 0, len(fallbacks))
	for k := range fallbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !strings.Contains(uri, k) {
			continue
		}
		doc, err := b.fetchJSON(ctx, f, fallbacks[k])
		if err != nil {
			b.logger.Warn("Fallback context failed", "uri", uri, "context", fallbacks[k], "error", err)
			continue
		}
		return doc, true
	}
	return nil, false
}

// DetermineFormat picks the RDF format from a media type, then from the
// content itself. JSON only counts as JSON-LD when it carries JSON-LD
// keywords, and markup only as RDFa when it has property or typeof
// attributes.
func DetermineFormat(mediaType, content string) (rdf.Format, bool) {
	switch mediaType {
	case "application/rdf+xml":
		return rdf.FormatRDFXML, true
	case "text/turtle", "text/n3":
		return rdf.FormatTurtle, true
	case "application/n-triples":
		return rdf.FormatNTriples, true
	case "application/n-quads":
		return rdf.FormatNQuads, true
	case "application/ld+json":
		return rdf.FormatJSONLD, true
	case "application/json":
		if looksLikeJSONLD(content) {
			return rdf.FormatJSONLD, true
		}
	}

	trimmed := strings.TrimSpace(content)
	switch {
	case strings.HasPrefix(trimmed, "<"):
		if strings.Contains(content, "xmlns:rdf") || strings.Contains(content, "<rdf:RDF") {
			return rdf.FormatRDFXML, true
		}
		if doc, err := htmlld.ParseString(content, ""); err == nil && doc.RDFaCount() > 0 {
			return rdf.FormatHTML, true
		}
	case strings.Contains(content, "@prefix"):
		return rdf.FormatTurtle, true
	case strings.HasPrefix(trimmed, "{"):
		if looksLikeJSONLD(content) {
			return rdf.FormatJSONLD, true
		}
	}
	return "", false
}

func looksLikeJSONLD(content string) bool {
	var v any
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case map[string]any:
		_, hasCtx := t["@context"]
		_, hasGraph := t["@graph"]
		return hasCtx || hasGraph
	case []any:
		if len(t) == 0 {
			return false
		}
		first, ok := t[0].(map[string]any)
		if !ok {
			return false
		}
		_, hasID := first["@id"]
		_, hasType := first["@type"]
		return hasID || hasType
	}
	return false
}

// ExtractJSONLDFromHTML merges the JSON-LD script blocks of an HTML page
// into the knowledge base and returns how many blocks were merged. Blocks
// with @graph contribute their nodes; other blocks are added as single
// entities without their @context. A block's context replaces an empty base
// context and is merged into a map context.
func (b *Base) ExtractJSONLDFromHTML(html string) (int, error) {
	doc, err := htmlld.ParseString(html, "")
	if err != nil {
		return 0, err
	}
	blocks, errs := doc.JSONLD()
	for _, e := range errs {
		b.logger.Debug("Skipping invalid JSON-LD block", "error", e)
	}

	merged := 0
	for _, block := range blocks {
		var items []map[string]any
		switch v := block.(type) {
		case map[string]any:
			items = []map[string]any{v}
		case []any:
			items = nodes(v)
		}
		for _, item := range items {
			graph := asList(b.data["@graph"])
			if g, ok := item["@graph"]; ok {
				graph = append(graph, asList(g)...)
			} else if entity := withoutContext(item); len(entity) > 0 {
				graph = append(graph, entity)
			}
			b.data["@graph"] = graph
			b.mergeContext(item["@context"])
			merged++
		}
	}
	return merged, nil
}

func (b *Base) mergeContext(ctx any) {
	if ctx == nil {
		return
	}
	existing, present := b.data["@context"]
	current, isMap := existing.(map[string]any)
	switch {
	case !present || (isMap && len(current) == 0):
		b.data["@context"] = ctx
	case isMap:
		if m, ok := ctx.(map[string]any); ok {
			for k, v := range m {
				current[k] = v
			}
		}
	}
}

func withoutContext(m map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range m {
		if k != "@context" {
			out[k] = v
		}
	}
	return out
}

// CreateScopedContext compacts the knowledge base with a JSON-LD 1.1
// context that defines domain as a type-scoped term whose properties are
// namespaced under baseURI (schema.org by default).
func (b *Base) CreateScopedContext(domain string, properties []string, baseURI string) error {
	if baseURI == "" {
		baseURI = rdf.SchemaNS
	}
	scoped := map[string]any{}
	for _, p := range properties {
		scoped[p] = map[string]any{"@id": baseURI + p}
	}
	ctx := map[string]any{
		"@version": 1.1,
		domain: map[string]any{
			"@id":      baseURI + domain,
			"@context": scoped,
		},
	}
	compacted, err := rdf.Compact(b.data, ctx, b.loader)
	if err != nil {
		return err
	}
	b.data = compacted
	return nil
}

// SummarizeVocabulary reports the classes, properties and other types in
// @graph, the top-level classes with the properties whose domain they are,
// and the properties used by the most classes.
func (b *Base) SummarizeVocabulary() string {
	graph := b.Graph()
	if len(graph) == 0 {
		return "Vocabulary is empty"
	}

	var classes, properties []Entity
	others := map[string]int{}
	for _, e := range graph {
		types := stringList(e["@type"])
		switch {
		case anyContains(types, "Class"):
			classes = append(classes, e)
		case anyContains(types, "Property"):
			properties = append(properties, e)
		default:
			for _, t := range types {
				others[lastSegment(t, "/")]++
			}
		}
	}

	lines := []string{
		"# Vocabulary Summary", "",
		"## Overview",
		fmt.Sprintf("- Total entities: %d", len(graph)),
		fmt.Sprintf("- Classes: %d", len(classes)),
		fmt.Sprintf("- Properties: %d", len(properties)),
	}
	if len(others) > 0 {
		lines = append(lines, "- Other types:")
		counts := make([]typeCount, 0, len(others))
		for name, n := range others {
			counts = append(counts, typeCount{name, n})
		}
		sort.Slice(counts, func(i, j int) bool {
			if counts[i].count != counts[j].count {
				return counts[i].count > counts[j].count
			}
			return counts[i].name < counts[j].name
		})
		for _, tc := range counts {
			lines = append(lines, fmt.Sprintf("  - %s: %d", tc.name, tc.count))
		}
	}

	classIDs := map[string]bool{}
	for _, c := range classes {
		if id, ok := c["@id"].(string); ok {
			classIDs[id] = true
		}
	}
	var top []Entity
	for _, c := range classes {
		internal := false
		for _, super := range keyedRefs(c, "subClassOf", false) {
			if classIDs[super] {
				internal = true
				break
			}
		}
		if !internal {
			top = append(top, c)
		}
	}
	sort.SliceStable(top, func(i, j int) bool {
		return fmt.Sprint(top[i]["@id"]) < fmt.Sprint(top[j]["@id"])
	})

	if len(top) > 0 {
		lines = append(lines, "\n## Top-Level Classes")
		for _, c := range top[:min(10, len(top))] {
			id, _ := c["@id"].(string)
			lines = append(lines, "### "+entityLabel(c, lastSegment(id, "/")), fmt.Sprintf("**ID**: `%s`", id))
			if d := entityDescription(c); d != "" {
				lines = append(lines, "**Description**: "+d)
			}
			var related []Entity
			for _, p := range properties {
				for _, dom := range keyedRefs(p, "domain", true) {
					if dom == id {
						related = append(related, p)
						break
					}
				}
			}
			if len(related) > 0 {
				lines = append(lines, fmt.Sprintf("**Properties**: %d", len(related)), "Top properties:")
				for _, p := range related[:min(5, len(related))] {
					pid, _ := p["@id"].(string)
					lines = append(lines, fmt.Sprintf("- `%s`: %s", entityLabel(p, lastSegment(pid, "/")), pid))
				}
				if len(related) > 5 {
					lines = append(lines, fmt.Sprintf("- ... and %d more", len(related)-5))
				}
			}
			lines = append(lines, "")
		}
		if len(top) > 10 {
			lines = append(lines, fmt.Sprintf("... and %d more top-level classes", len(top)-10))
		}
	}

	if len(properties) > 0 {
		type usage struct {
			prop    Entity
			id      string
			domains int
		}
		usages := make([]usage, 0, len(properties))
		for _, p := range properties {
			id, _ := p["@id"].(string)
			usages = append(usages, usage{p, id, len(keyedRefs(p, "domain", true))})
		}
		sort.SliceStable(usages, func(i, j int) bool {
			if usages[i].domains != usages[j].domains {
				return usages[i].domains > usages[j].domains
			}
			return usages[i].id < usages[j].id
		})
		lines = append(lines, "\n## Most Used Properties")
		for _, u := range usages[:min(10, len(usages))] {
			lines = append(lines,
				"### "+entityLabel(u.prop, lastSegment(u.id, "/")),
				fmt.Sprintf("**ID**: `%s`", u.id),
				fmt.Sprintf("**Used by**: %d classes", u.domains))
			if d := entityDescription(u.prop); d != "" {
				lines = append(lines, "**Description**: "+d)
			}
			lines = append(lines, "")
		}
	}
	return strings.Join(lines, "\n")
}

func anyContains(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// keyedRefs collects the @id references of every property whose name
// contains key.
func keyedRefs(e Entity, key string, caseInsensitive bool) []string {
	var out []string
	for _, k := range sortedKeys(e) {
		name := k
		if caseInsensitive {
			name = strings.ToLower(k)
		}
		if !strings.Contains(name, key) {
			continue
		}
		for _, v := range asList(e[k]) {
			if m, ok := v.(map[string]any); ok {
				if id, ok := m["@id"].(string); ok {
					out = append(out, id)
				}
			}
		}
	}
	return out
}

// entityLabel returns the first value of the first label-like property, or
// fallback.
func entityLabel(e Entity, fallback string) string {
	return firstKeyedValue(e, fallback, "label")
}

func entityDescription(e Entity) string {
	return firstKeyedValue(e, "", "comment", "description")
}

func firstKeyedValue(e Entity, fallback string, keys ...string) string {
	for _, k := range sortedKeys(e) {
		lower := strings.ToLower(k)
		for _, key := range keys {
			if !strings.Contains(lower, key) {
				continue
			}
			for _, v := range asList(e[k]) {
				switch t := v.(type) {
				case string:
					return t
				case map[string]any:
					if val, ok := t["@value"]; ok {
						return fmt.Sprint(val)
					}
				}
			}
			return fallback
		}
	}
	return fallback
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
