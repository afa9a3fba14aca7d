// Package knowledge wraps a JSON-LD document with lookup, navigation,
// vocabulary loading and dataset exploration helpers. The markdown produced
// here is what the knowledge tools hand back to an agent.
package knowledge

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/piprate/json-gold/ld"

	"github.com/c360studio/semlink/rdf"
)

// Entity is a JSON-LD node object.
type Entity = map[string]any

var (
	// ErrUnknownQuery is returned by Query for an unsupported query type.
	ErrUnknownQuery = errors.New("unknown query type")

	// ErrPath is returned when a dataset path cannot be resolved.
	ErrPath = errors.New("invalid path")
)

// standardPrefixes are expanded by HasType even when the document's context
// does not declare them.
var standardPrefixes = map[string]string{
	"rdf":  rdf.RDFNS,
	"rdfs": rdf.RDFSNS,
	"owl":  rdf.OWLNS,
	"xsd":  rdf.XSDNS,
}

// Base is a knowledge base over one JSON-LD document plus any number of
// named graphs. A Base is not safe for concurrent use; Session serialises
// access for the tools.
type Base struct {
	data   map[string]any
	graphs map[string]map[string]any
	loader ld.DocumentLoader
	logger *slog.Logger
}

// Option configures a Base.
type Option func(*Base)

// WithDocumentLoader sets the loader used to resolve remote contexts when
// the document is expanded or compacted.
func WithDocumentLoader(l ld.DocumentLoader) Option {
	return func(b *Base) {
		b.loader = l
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Base) {
		b.logger = logger
	}
}

// New wraps data. A nil document starts as an empty graph.
func New(data map[string]any, opts ...Option) *Base {
	if data == nil {
		data = emptyDocument()
	}
	b := &Base{
		data:   data,
		graphs: map[string]map[string]any{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func emptyDocument() map[string]any {
	return map[string]any{"@context": map[string]any{}, "@graph": []any{}}
}

// Data returns the underlying document.
func (b *Base) Data() map[string]any { return b.data }

// Context returns the document's @context as a map, or nil when it is
// absent or not a map.
func (b *Base) Context() map[string]any {
	ctx, _ := b.data["@context"].(map[string]any)
	return ctx
}

// Graph returns the node objects of @graph.
func (b *Base) Graph() []Entity {
	return nodes(b.data["@graph"])
}

// Included returns the node objects of @included.
func (b *Base) Included() []Entity {
	return nodes(b.data["@included"])
}

// Entities returns the @graph nodes, or the document itself when it is a
// single resource without @graph.
func (b *Base) Entities() []Entity {
	if _, ok := b.data["@graph"]; ok {
		return b.Graph()
	}
	if _, ok := b.data["@id"]; ok {
		return []Entity{rootEntity(b.data)}
	}
	return nil
}

func (b *Base) String() string {
	return fmt.Sprintf("knowledge base with %d entities", len(b.Graph()))
}

// FindOptions selects entities. Empty fields do not filter.
type FindOptions struct {
	// ID matches a full IRI, a substring of it or its last path/fragment
	// segment.
	ID string

	// Type keeps only entities with this type (see HasType).
	Type string

	// Label matches against any property whose name contains "label".
	// When Label is empty, ID is also tried as a label.
	Label string

	// IDFirst orders ID matches before label matches. By default label
	// matches come first.
	IDFirst bool

	CaseSensitive bool
}

// FindEntity returns the entities matching opts. An exact @id match always
// comes first. With only Type set, every entity of that type is returned.
func (b *Base) FindEntity(opts FindOptions) []Entity {
	id, label := opts.ID, opts.Label
	if !opts.CaseSensitive {
		id, label = strings.ToLower(id), strings.ToLower(label)
	}
	typeOnly := opts.Type != "" && id == "" && label == ""

	entities := b.Entities()
	var typed, exact, byID, byLabel []int
	for i, e := range entities {
		if opts.Type != "" && !b.HasType(e, opts.Type) {
			continue
		}
		if typeOnly {
			typed = append(typed, i)
			continue
		}
		if eid, ok := e["@id"].(string); ok && id != "" {
			cmp := eid
			if !opts.CaseSensitive {
				cmp = strings.ToLower(eid)
			}
			switch {
			case cmp == id:
				exact = append(exact, i)
			case strings.Contains(cmp, id) || lastSegment(cmp, "/") == id || lastSegment(cmp, "#") == id:
				byID = append(byID, i)
			}
		}
		search := label
		if search == "" && !opts.IDFirst {
			search = id
		}
		if search != "" && labelMatches(e, search, opts.CaseSensitive) {
			byLabel = append(byLabel, i)
		}
	}

	order := exact
	switch {
	case typeOnly:
		order = typed
	case opts.IDFirst:
		order = append(append(order, byID...), byLabel...)
	default:
		order = append(append(order, byLabel...), byID...)
	}
	seen := map[int]bool{}
	out := make([]Entity, 0, len(order))
	for _, i := range order {
		if !seen[i] {
			seen[i] = true
			out = append(out, entities[i])
		}
	}
	return out
}

func labelMatches(e Entity, search string, caseSensitive bool) bool {
	for _, key := range sortedKeys(e) {
		if !strings.Contains(strings.ToLower(key), "label") {
			continue
		}
		for _, v := range asList(e[key]) {
			s := literalString(v)
			if !caseSensitive {
				s = strings.ToLower(s)
			}
			if strings.Contains(s, search) {
				return true
			}
		}
	}
	return false
}

// HasType reports whether entity has typ, matching exact values, prefixed
// names expanded through the document context or the rdf/rdfs/owl/xsd
// prefixes, local names and finally substrings.
func (b *Base) HasType(entity Entity, typ string) bool {
	if entity == nil || typ == "" {
		return false
	}
	types := stringList(entity["@type"])
	if len(types) == 0 {
		return false
	}
	for _, t := range types {
		if t == typ {
			return true
		}
	}
	if _, local, ok := strings.Cut(typ, ":"); ok {
		for _, t := range types {
			if strings.HasSuffix(t, local) {
				return true
			}
		}
	}

	ctx := map[string]any{}
	for k, v := range b.Context() {
		ctx[k] = v
	}
	for k, v := range standardPrefixes {
		if _, ok := ctx[k]; !ok {
			ctx[k] = v
		}
	}

	typIsIRI := isHTTP(typ)
	var expanded string
	if prefix, local, ok := strings.Cut(typ, ":"); ok && !typIsIRI {
		if ns, ok := ctx[prefix].(string); ok {
			expanded = joinIRI(ns, local)
		}
	}

	for _, t := range types {
		if expanded != "" && strings.Contains(t, expanded) {
			return true
		}
		if isHTTP(t) && strings.Contains(typ, ":") && !typIsIRI {
			for prefix, v := range ctx {
				ns, ok := v.(string)
				if !ok || !strings.HasPrefix(t, ns) {
					continue
				}
				local := strings.TrimLeft(t[len(ns):], "/#")
				if prefix+":"+local == typ {
					return true
				}
			}
		}
		if typIsIRI && strings.Contains(t, ":") && !isHTTP(t) {
			prefix, local, _ := strings.Cut(t, ":")
			if ns, ok := ctx[prefix].(string); ok && strings.Contains(typ, joinIRI(ns, local)) {
				return true
			}
		}
	}

	if !typIsIRI && !strings.Contains(typ, ":") {
		for _, t := range types {
			if lastSegment(t, "/") == typ || lastSegment(t, "#") == typ || (strings.Contains(t, ":") && lastSegment(t, ":") == typ) {
				return true
			}
		}
	}
	for _, t := range types {
		if strings.Contains(t, typ) {
			return true
		}
	}
	return false
}

// expandTerm expands a prefixed name or a context term to an IRI.
func (b *Base) expandTerm(term string) string {
	if isHTTP(term) {
		return term
	}
	ctx := b.Context()
	if prefix, local, ok := strings.Cut(term, ":"); ok {
		if ns, ok := ctx[prefix].(string); ok {
			return joinIRI(ns, local)
		}
		return term
	}
	if def, ok := ctx[term]; ok {
		switch d := def.(type) {
		case string:
			return d
		case map[string]any:
			if id, ok := d["@id"].(string); ok {
				return id
			}
		}
		return term
	}
	if vocab, ok := ctx["@vocab"].(string); ok {
		return joinIRI(vocab, term)
	}
	return term
}

// Query searches the expanded document. queryType is "property" (entities
// carrying the property), "type" (entities of the type) or "value"
// (entities with a literal equal to value). Prefixed names and context
// terms are expanded first.
func (b *Base) Query(queryType, value string) ([]Entity, error) {
	if queryType != "property" && queryType != "type" && queryType != "value" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuery, queryType)
	}
	expandedValue := b.expandTerm(value)
	expanded, err := rdf.Expand(b.data, b.loader)
	if err != nil {
		return nil, err
	}

	var out []Entity
	for _, n := range expanded {
		e, ok := n.(map[string]any)
		if !ok {
			continue
		}
		switch queryType {
		case "property":
			_, a := e[value]
			_, c := e[expandedValue]
			if a || c {
				out = append(out, e)
			}
		case "type":
			for _, t := range stringList(e["@type"]) {
				if t == value || t == expandedValue {
					out = append(out, e)
					break
				}
			}
		case "value":
			if hasLiteral(e, value) {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func hasLiteral(e Entity, value string) bool {
	for prop, values := range e {
		if prop == "@id" || prop == "@type" {
			continue
		}
		for _, v := range asList(values) {
			m, ok := v.(map[string]any)
			if !ok {
				continue
			}
			if lit, ok := m["@value"]; ok && fmt.Sprint(lit) == value {
				return true
			}
		}
	}
	return false
}

// QueryMarkdown runs Query and renders up to five results.
func (b *Base) QueryMarkdown(queryType, value string) string {
	results, err := b.Query(queryType, value)
	if err != nil {
		return fmt.Sprintf("*Query failed: %v*", err)
	}
	if len(results) == 0 {
		return fmt.Sprintf("*No results found for %s='%s'*", queryType, value)
	}
	lines := []string{
		fmt.Sprintf("# Query Results: %s='%s'", queryType, value),
		fmt.Sprintf("Found %d matching entities", len(results)),
	}
	for i, e := range results[:min(5, len(results))] {
		lines = append(lines, fmt.Sprintf("\n## Result %d", i+1), entityMarkdown(e))
	}
	if len(results) > 5 {
		lines = append(lines, fmt.Sprintf("\n*...and %d more results*", len(results)-5))
	}
	return strings.Join(lines, "\n")
}

// DescribeEntity renders an entity's labels, definitions and remaining
// relationships as markdown.
func (b *Base) DescribeEntity(e Entity) string {
	if e == nil {
		return "No entity provided"
	}
	id, _ := e["@id"].(string)
	if id == "" {
		id = "Unknown ID"
	}
	lines := []string{
		"## Entity: " + id,
		"**Type**: " + strings.Join(stringList(e["@type"]), ", "),
	}

	var labels, comments []string
	var rels []string
	for _, key := range sortedKeys(e) {
		lower := strings.ToLower(key)
		switch {
		case key == "@id" || key == "@type":
		case strings.Contains(lower, "label"):
			for _, v := range asList(e[key]) {
				if m, ok := v.(map[string]any); ok && m["@value"] != nil {
					lang, _ := m["@language"].(string)
					if lang == "" {
						lang = "no language"
					}
					labels = append(labels, fmt.Sprintf("%v (%s)", m["@value"], lang))
				} else {
					labels = append(labels, literalString(v))
				}
			}
		case strings.Contains(lower, "comment") || strings.Contains(lower, "definition"):
			for _, v := range asList(e[key]) {
				comments = append(comments, literalString(v))
			}
		default:
			rels = append(rels, key)
		}
	}
	if len(labels) > 0 {
		lines = append(lines, "**Labels**: "+strings.Join(labels, ", "))
	}
	if len(comments) > 0 {
		lines = append(lines, "\n**Definition**:")
		for _, c := range comments {
			lines = append(lines, "- "+c)
		}
	}
	if len(rels) > 0 {
		lines = append(lines, "\n**Relationships**:")
		for _, key := range rels {
			if list, ok := e[key].([]any); ok {
				lines = append(lines, fmt.Sprintf("- %s:", key))
				for _, v := range list {
					lines = append(lines, "  - "+literalString(v))
				}
				continue
			}
			lines = append(lines, fmt.Sprintf("- %s: %s", key, literalString(e[key])))
		}
	}
	return strings.Join(lines, "\n")
}

// DisplayEntity renders the entity with exactly the given @id, looking in
// @graph, then @included, then the document itself.
func (b *Base) DisplayEntity(id string) string {
	for _, e := range append(b.Graph(), b.Included()...) {
		if e["@id"] == id {
			return entityMarkdown(e)
		}
	}
	if b.data["@id"] == id {
		return entityMarkdown(b.data)
	}
	return fmt.Sprintf("*Entity with ID '%s' not found*", id)
}

// SummarizeMarkdown gives counts of contexts and entities and the ten most
// frequent types.
func (b *Base) SummarizeMarkdown() string {
	lines := []string{
		"# Knowledge Base Summary",
		fmt.Sprintf("- **Contexts:** %d", contextSize(b.data["@context"])),
		fmt.Sprintf("- **Graph Entities:** %d", len(b.Graph())),
	}
	if n := len(b.Included()); n > 0 {
		lines = append(lines, fmt.Sprintf("- **Included Entities:** %d", n))
	}

	all := append(b.Graph(), b.Included()...)
	if _, hasID := b.data["@id"]; hasID && b.data["@type"] != nil {
		all = append(all, b.data)
	}
	counts := typeCounts(all)
	if len(counts) > 0 {
		lines = append(lines, "\n## Entity Types")
		for _, tc := range counts[:min(10, len(counts))] {
			lines = append(lines, fmt.Sprintf("- **%s**: %d", tc.name, tc.count))
		}
		if len(counts) > 10 {
			lines = append(lines, fmt.Sprintf("- *...and %d more types*", len(counts)-10))
		}
	}
	return strings.Join(lines, "\n")
}

// Markdown is a fuller overview: a context preview, type counts, a sample
// entity and the types of @included entities.
func (b *Base) Markdown() string {
	lines := []string{"## LinkedDataKnowledge"}
	ctx := b.Context()
	lines = append(lines, fmt.Sprintf("### Context (%d prefixes)", contextSize(b.data["@context"])))
	if len(ctx) > 0 {
		keys := sortedKeys(ctx)
		preview := map[string]any{}
		for _, k := range keys[:min(5, len(keys))] {
			preview[k] = ctx[k]
		}
		lines = append(lines, "```json", indentJSON(preview))
		if len(keys) > 5 {
			lines = append(lines, "... and more")
		}
		lines = append(lines, "```")
	}

	graph := b.Graph()
	lines = append(lines, fmt.Sprintf("### Graph (%d entities)", len(graph)))
	if counts := typeCounts(graph); len(counts) > 0 {
		lines = append(lines, "**Entity types:**")
		for _, tc := range counts {
			lines = append(lines, fmt.Sprintf("- %s: %d", tc.name, tc.count))
		}
	}
	if len(graph) > 0 {
		lines = append(lines, "\n**Sample entity:**", "```json", indentJSON(graph[0]), "```")
	}
	if _, ok := b.data["@included"]; ok {
		included := b.Included()
		lines = append(lines,
			fmt.Sprintf("\n### Included (%d entities)", len(included)),
			"**Types of included entities:**")
		for _, tc := range typeCounts(included) {
			lines = append(lines, fmt.Sprintf("- %s: %d", tc.name, tc.count))
		}
	}
	return strings.Join(lines, "\n")
}

// entityMarkdown renders an entity with one bullet per value.
func entityMarkdown(e Entity) string {
	id, _ := e["@id"].(string)
	if id == "" {
		id = "No ID"
	}
	typ := strings.Join(stringList(e["@type"]), ", ")
	if typ == "" {
		typ = "Unknown"
	}
	lines := []string{fmt.Sprintf("### %s: %s", typ, id)}
	for _, prop := range sortedKeys(e) {
		if prop == "@id" || prop == "@type" || prop == "@context" {
			continue
		}
		lines = append(lines, fmt.Sprintf("**%s**:", lastSegment(prop, "/")))
		for _, v := range asList(e[prop]) {
			m, ok := v.(map[string]any)
			switch {
			case ok && m["@value"] != nil:
				text := fmt.Sprint(m["@value"])
				if lang, ok := m["@language"].(string); ok {
					text += " @" + lang
				}
				lines = append(lines, "- "+text)
			case ok && m["@id"] != nil:
				lines = append(lines, fmt.Sprintf("- [%v](%v)", m["@id"], m["@id"]))
			default:
				lines = append(lines, "- "+literalString(v))
			}
		}
	}
	return strings.Join(lines, "\n")
}

type typeCount struct {
	name  string
	count int
}

// typeCounts counts @type values, most frequent first.
func typeCounts(entities []Entity) []typeCount {
	counts := map[string]int{}
	for _, e := range entities {
		for _, t := range stringList(e["@type"]) {
			counts[t]++
		}
	}
	out := make([]typeCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, typeCount{name, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	return out
}

func nodes(v any) []Entity {
	list, _ := v.([]any)
	out := make([]Entity, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// rootEntity is the document without its framing keys.
func rootEntity(doc map[string]any) Entity {
	e := Entity{}
	for k, v := range doc {
		if k != "@context" && k != "@graph" && k != "@included" {
			e[k] = v
		}
	}
	return e
}

func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{t}
	}
}

func stringList(v any) []string {
	var out []string
	for _, item := range asList(v) {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// literalString renders a value: the @value or @id of an object, or the
// plain value.
func literalString(v any) string {
	if m, ok := v.(map[string]any); ok {
		if val, ok := m["@value"]; ok {
			return fmt.Sprint(val)
		}
		if id, ok := m["@id"]; ok {
			return fmt.Sprint(id)
		}
		b, _ := json.Marshal(m)
		return string(b)
	}
	return fmt.Sprint(v)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contextSize(ctx any) int {
	switch c := ctx.(type) {
	case map[string]any:
		return len(c)
	case []any:
		return len(c)
	case nil:
		return 0
	default:
		return 1
	}
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// joinIRI appends local to ns, adding a slash unless ns already ends in a
// separator.
func joinIRI(ns, local string) string {
	if strings.HasSuffix(ns, "/") || strings.HasSuffix(ns, "#") {
		return ns + local
	}
	return ns + "/" + local
}

func lastSegment(s, sep string) string {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[i+len(sep):]
	}
	return s
}

func indentJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
