package knowledge

import (
	"fmt"
	"strconv"
	"strings"
)

type pathStep struct {
	key   string
	index int
	isIdx bool
}

// parsePath splits "a.b[2].c" into steps. A segment may carry any number
// of [i] suffixes and may omit the key ("[0]").
func parsePath(path string) ([]pathStep, error) {
	var steps []pathStep
	if path == "" {
		return nil, nil
	}
	for _, seg := range strings.Split(path, ".") {
		key, rest, _ := strings.Cut(seg, "[")
		if key != "" {
			steps = append(steps, pathStep{key: key})
		}
		if rest == "" {
			if key == "" {
				return nil, fmt.Errorf("%w: empty segment in %q", ErrPath, path)
			}
			continue
		}
		for _, idx := range strings.Split(strings.TrimSuffix(rest, "]"), "][") {
			n, err := strconv.Atoi(idx)
			if err != nil || !strings.HasSuffix(rest, "]") {
				return nil, fmt.Errorf("%w: bad index in %q", ErrPath, seg)
			}
			steps = append(steps, pathStep{index: n, isIdx: true})
		}
	}
	return steps, nil
}

// Lookup resolves a dot path with [i] list indices against the document.
// The empty path is the document itself.
func (b *Base) Lookup(path string) (any, error) {
	steps, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	var cur any = b.data
	for _, s := range steps {
		if s.isIdx {
			list, ok := cur.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: %q: [%d] applied to %T", ErrPath, path, s.index, cur)
			}
			if s.index < 0 || s.index >= len(list) {
				return nil, fmt.Errorf("%w: %q: index %d out of range", ErrPath, path, s.index)
			}
			cur = list[s.index]
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %q: key %q applied to %T", ErrPath, path, s.key, cur)
		}
		v, ok := m[s.key]
		if !ok {
			return nil, fmt.Errorf("%w: %q: no key %q", ErrPath, path, s.key)
		}
		cur = v
	}
	return cur, nil
}

// Explore renders the value at path: an object's properties, the first
// five items of a list, or a scalar. Raw JSON is truncated to maxSize
// characters (4000 by default).
func (b *Base) Explore(path string, maxSize int) (string, error) {
	if maxSize <= 0 {
		maxSize = 4000
	}
	cur, err := b.Lookup(path)
	if err != nil {
		return "", err
	}
	where := path
	if where == "" {
		where = "root"
	}

	switch v := cur.(type) {
	case map[string]any:
		lines := []string{"# Structure at path: " + where}
		lines = append(lines, idAndType(v)...)
		lines = append(lines, "\n## Properties")
		for _, k := range sortedKeys(v) {
			if k == "@id" || k == "@type" {
				continue
			}
			switch val := v[k].(type) {
			case map[string]any:
				if id, ok := val["@id"]; ok {
					lines = append(lines, fmt.Sprintf("- **%s**: Reference to `%v`", k, id))
				} else {
					lines = append(lines, fmt.Sprintf("- **%s**: Complex object with %d properties", k, len(val)))
				}
			case []any:
				lines = append(lines, fmt.Sprintf("- **%s**: List with %d items", k, len(val)))
			default:
				lines = append(lines, fmt.Sprintf("- **%s**: %v", k, val))
			}
		}
		lines = append(lines, "\n## Raw JSON", "```json", truncate(indentJSON(v), maxSize), "```")
		return strings.Join(lines, "\n"), nil

	case []any:
		lines := []string{"# List at path: " + where, fmt.Sprintf("Contains %d items", len(v))}
		head := v[:min(5, len(v))]
		for i, item := range head {
			lines = append(lines, fmt.Sprintf("\n## Item %d", i+1))
			m, ok := item.(map[string]any)
			if !ok {
				lines = append(lines, fmt.Sprintf("Value: %v", item))
				continue
			}
			lines = append(lines, idAndType(m)...)
			var keys []string
			for _, k := range sortedKeys(m) {
				if k != "@id" && k != "@type" {
					keys = append(keys, k)
				}
			}
			if len(keys) > 0 {
				lines = append(lines, "\n**Properties**:")
				for _, k := range keys[:min(5, len(keys))] {
					switch m[k].(type) {
					case map[string]any, []any:
						lines = append(lines, fmt.Sprintf("- **%s**: Complex value", k))
					default:
						lines = append(lines, fmt.Sprintf("- **%s**: %v", k, m[k]))
					}
				}
				if len(keys) > 5 {
					lines = append(lines, fmt.Sprintf("- ... and %d more properties", len(keys)-5))
				}
			}
		}
		if len(v) > 5 {
			lines = append(lines, fmt.Sprintf("\n... and %d more items", len(v)-5))
		}
		lines = append(lines, "\n## Raw JSON (first 5 items)", "```json", truncate(indentJSON(head), maxSize), "```")
		return strings.Join(lines, "\n"), nil

	default:
		return fmt.Sprintf("# Value at path: %s\n\n%v", where, v), nil
	}
}

func idAndType(m map[string]any) []string {
	var lines []string
	if id, ok := m["@id"]; ok {
		lines = append(lines, fmt.Sprintf("**ID**: `%v`", id))
	}
	if t, ok := m["@type"]; ok {
		var quoted []string
		for _, s := range asList(t) {
			quoted = append(quoted, fmt.Sprintf("`%v`", s))
		}
		lines = append(lines, "**Type**: "+strings.Join(quoted, ", "))
	}
	return lines
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// SearchMatch is one hit of Search: a key whose name contains the query,
// or a string value containing it (truncated to 50 characters).
type SearchMatch struct {
	Path  string `json:"path"`
	Key   bool   `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
}

// Search walks the document and reports keys and string values that
// contain query.
func (b *Base) Search(query string, caseSensitive bool) []SearchMatch {
	contains := func(s string) bool {
		if caseSensitive {
			return strings.Contains(s, query)
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(query))
	}
	var out []SearchMatch
	var walk func(v any, path string)
	walk = func(v any, path string) {
		switch t := v.(type) {
		case map[string]any:
			for _, k := range sortedKeys(t) {
				child := k
				if path != "" {
					child = path + "." + k
				}
				if contains(k) {
					out = append(out, SearchMatch{Path: child, Key: true})
				}
				walk(t[k], child)
			}
		case []any:
			for i, item := range t {
				walk(item, fmt.Sprintf("%s[%d]", path, i))
			}
		case string:
			if contains(t) {
				display := t
				if len(display) > 50 {
					display = display[:50] + "..."
				}
				out = append(out, SearchMatch{Path: path, Value: display})
			}
		}
	}
	walk(b.data, "")
	return out
}

func splitMatches(matches []SearchMatch) (keys, values []SearchMatch) {
	for _, m := range matches {
		if m.Key {
			keys = append(keys, m)
		} else {
			values = append(values, m)
		}
	}
	return keys, values
}

// SearchMarkdown renders Search results, at most ten keys and ten values.
func (b *Base) SearchMarkdown(query string, caseSensitive bool) string {
	matches := b.Search(query, caseSensitive)
	if len(matches) == 0 {
		return fmt.Sprintf("No matches found for '%s'", query)
	}
	lines := []string{fmt.Sprintf("# Found %d matches for '%s'", len(matches), query)}
	keys, values := splitMatches(matches)
	if len(keys) > 0 {
		lines = append(lines, "\n## Matching keys")
		for _, m := range keys[:min(10, len(keys))] {
			lines = append(lines, fmt.Sprintf("- `%s`", m.Path))
		}
		if len(keys) > 10 {
			lines = append(lines, fmt.Sprintf("- ... and %d more", len(keys)-10))
		}
	}
	if len(values) > 0 {
		lines = append(lines, "\n## Matching values")
		for _, m := range values[:min(10, len(values))] {
			lines = append(lines, fmt.Sprintf("- `%s` = \"%s\"", m.Path, m.Value))
		}
		if len(values) > 10 {
			lines = append(lines, fmt.Sprintf("- ... and %d more", len(values)-10))
		}
	}
	return strings.Join(lines, "\n")
}

// Evidence is a dataset value found for a topic with identifying context
// from the object that holds it.
type Evidence struct {
	Path    string         `json:"path"`
	Context map[string]any `json:"context,omitempty"`
	Value   any            `json:"value"`
}

// Evidence searches the dataset for topic and returns up to limit values
// with the @id, @type and name of their enclosing object. Top-level keys
// are not evidence.
func (b *Base) Evidence(topic string, limit int) []Evidence {
	if limit <= 0 {
		limit = 5
	}
	keys, values := splitMatches(b.Search(topic, false))
	candidates := append(keys[:min(10, len(keys))], values[:min(10, len(values))]...)

	var out []Evidence
	for _, m := range candidates {
		if len(out) >= limit {
			break
		}
		if !strings.ContainsAny(m.Path, ".[") {
			continue
		}
		value, err := b.Lookup(m.Path)
		if err != nil {
			continue
		}
		ev := Evidence{Path: m.Path, Value: value, Context: map[string]any{}}
		holder, isMap := value.(map[string]any)
		if !isMap {
			parent, last := "", m.Path
			if i := strings.LastIndex(m.Path, "."); i >= 0 {
				parent, last = m.Path[:i], m.Path[i+1:]
			}
			ev.Context["property"] = last
			p, err := b.Lookup(parent)
			if err != nil {
				continue
			}
			holder, _ = p.(map[string]any)
		}
		for src, dst := range map[string]string{"@id": "id", "@type": "type", "name": "name"} {
			if v, ok := holder[src]; ok {
				ev.Context[dst] = v
			}
		}
		out = append(out, ev)
	}
	return out
}

// EvidenceMarkdown renders Evidence.
func (b *Base) EvidenceMarkdown(topic string, limit int) string {
	if len(b.Search(topic, false)) == 0 {
		return fmt.Sprintf("No evidence found for topic: '%s'", topic)
	}
	items := b.Evidence(topic, limit)
	if len(items) == 0 {
		return fmt.Sprintf("No structured evidence found for topic: '%s'", topic)
	}
	lines := []string{fmt.Sprintf("# Evidence for topic: '%s'", topic)}
	for i, ev := range items {
		lines = append(lines, fmt.Sprintf("\n## Evidence %d", i+1), fmt.Sprintf("**Path**: `%s`", ev.Path))
		if len(ev.Context) > 0 {
			lines = append(lines, "\n**Context**:")
			for _, k := range sortedKeys(ev.Context) {
				lines = append(lines, fmt.Sprintf("- %s: %v", k, ev.Context[k]))
			}
		}
		lines = append(lines, "\n**Value**:")
		switch v := ev.Value.(type) {
		case map[string]any:
			keys := sortedKeys(v)
			lines = append(lines, fmt.Sprintf("Object with %d properties:", len(keys)))
			for _, k := range keys[:min(5, len(keys))] {
				switch v[k].(type) {
				case map[string]any, []any:
					lines = append(lines, fmt.Sprintf("- %s: (complex value)", k))
				default:
					lines = append(lines, fmt.Sprintf("- %s: %v", k, v[k]))
				}
			}
			if len(keys) > 5 {
				lines = append(lines, fmt.Sprintf("- ... and %d more properties", len(keys)-5))
			}
		case []any:
			lines = append(lines, fmt.Sprintf("List with %d items", len(v)))
		default:
			lines = append(lines, fmt.Sprint(v))
		}
	}
	return strings.Join(lines, "\n")
}
