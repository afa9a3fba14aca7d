package knowledge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/c360studio/semlink/vocabulary/semlink"
)

// MainGraph names the base document in graph-aware operations.
const MainGraph = "main"

// NormalizeGraphID qualifies a short graph name with the urn:graph: prefix.
// IRIs and URNs are returned unchanged.
func NormalizeGraphID(id string) string {
	for _, p := range []string{"urn:", "did:", "http://", "https://"} {
		if strings.HasPrefix(id, p) {
			return id
		}
	}
	return semlink.GraphIDPrefix + id
}

// AddGraph stores data as a named graph and returns its normalised ID. An
// empty id mints urn:graph:<uuid>.
func (b *Base) AddGraph(id string, data map[string]any) string {
	if id == "" {
		id = uuid.NewString()
	}
	id = NormalizeGraphID(id)
	b.graphs[id] = data
	return id
}

// NamedGraph returns a named graph's document.
func (b *Base) NamedGraph(id string) (map[string]any, bool) {
	data, ok := b.graphs[NormalizeGraphID(id)]
	return data, ok
}

// GraphIDs lists the named graphs, sorted.
func (b *Base) GraphIDs() []string {
	ids := make([]string, 0, len(b.graphs))
	for id := range b.graphs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// view wraps another document with the same loader and logger.
func (b *Base) view(data map[string]any) *Base {
	return &Base{data: data, graphs: map[string]map[string]any{}, loader: b.loader, logger: b.logger}
}

func isReferenceTo(v any, id string) bool {
	switch t := v.(type) {
	case map[string]any:
		return t["@id"] == id
	case []any:
		for _, item := range t {
			if isReferenceTo(item, id) {
				return true
			}
		}
	}
	return false
}

// Relationships lists the properties of the entity found for id. With
// includeInverse, properties of other entities that reference it are added
// with a "^" prefix.
func (b *Base) Relationships(id string, includeInverse bool) []string {
	found := b.FindEntity(FindOptions{ID: id})
	if len(found) == 0 {
		return nil
	}
	entity := found[0]
	seen := map[string]bool{}
	var rels []string
	for key := range entity {
		if key != "@id" && key != "@type" {
			seen[key] = true
			rels = append(rels, key)
		}
	}
	if fullID, ok := entity["@id"].(string); ok && includeInverse {
		for _, other := range b.Graph() {
			if other["@id"] == fullID {
				continue
			}
			for key, v := range other {
				if key == "@id" || key == "@type" || !isReferenceTo(v, fullID) {
					continue
				}
				if inv := "^" + key; !seen[inv] {
					seen[inv] = true
					rels = append(rels, inv)
				}
			}
		}
	}
	sort.Strings(rels)
	return rels
}

// FollowRelationship returns the entities reached from id through rel.
// A "^rel" follows the relationship backwards. References to entities not
// in the graph yield {"@id": ...}; literal values yield
// {"@value": ..., "@relationship": rel}.
func (b *Base) FollowRelationship(id, rel string) []Entity {
	found := b.FindEntity(FindOptions{ID: id})
	if len(found) == 0 {
		return nil
	}
	entity := found[0]

	if inverse, ok := strings.CutPrefix(rel, "^"); ok {
		fullID, ok := entity["@id"].(string)
		if !ok {
			return nil
		}
		var out []Entity
		for _, other := range b.Graph() {
			if other["@id"] != fullID && isReferenceTo(other[inverse], fullID) {
				out = append(out, other)
			}
		}
		return out
	}

	var out []Entity
	for _, v := range asList(entity[rel]) {
		m, isMap := v.(map[string]any)
		switch {
		case isMap && m["@id"] != nil:
			relatedID := fmt.Sprint(m["@id"])
			if related := b.FindEntity(FindOptions{ID: relatedID}); len(related) > 0 {
				out = append(out, related...)
			} else {
				out = append(out, Entity{"@id": relatedID})
			}
		case isMap && m["@value"] != nil:
			out = append(out, Entity{"@value": m["@value"], "@relationship": rel})
		case !isMap:
			out = append(out, Entity{"@value": v, "@relationship": rel})
		}
	}
	return out
}

// graphViews returns the documents to search: a single named graph when
// graphID is set, otherwise the main document followed by every named
// graph.
func (b *Base) graphViews(graphID string) []*Base {
	if graphID != "" {
		if data, ok := b.NamedGraph(graphID); ok {
			return []*Base{b.view(data)}
		}
		return nil
	}
	views := []*Base{b}
	for _, id := range b.GraphIDs() {
		views = append(views, b.view(b.graphs[id]))
	}
	return views
}

// RelationshipsAcrossGraphs is Relationships over the main document and
// every named graph, or only graphID when it is set.
func (b *Base) RelationshipsAcrossGraphs(id string, includeInverse bool, graphID string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range b.graphViews(graphID) {
		for _, rel := range v.Relationships(id, includeInverse) {
			if !seen[rel] {
				seen[rel] = true
				out = append(out, rel)
			}
		}
	}
	return out
}

// FollowRelationshipAcrossGraphs is FollowRelationship over the main
// document and every named graph, or only graphID when it is set. Results
// are deduplicated by @id; literal values are dropped.
func (b *Base) FollowRelationshipAcrossGraphs(id, rel, graphID string) []Entity {
	seen := map[string]bool{}
	var out []Entity
	for _, v := range b.graphViews(graphID) {
		for _, e := range v.FollowRelationship(id, rel) {
			eid, ok := e["@id"].(string)
			if !ok || seen[eid] {
				continue
			}
			seen[eid] = true
			out = append(out, e)
		}
	}
	return out
}

// NavigatePath follows each relationship of path in turn from the entities
// found for start. It returns nil as soon as a step reaches nothing.
func (b *Base) NavigatePath(start string, path []string) []Entity {
	current := b.FindEntity(FindOptions{ID: start})
	if len(path) == 0 || len(current) == 0 {
		return current
	}
	for _, rel := range path {
		var next []Entity
		for _, e := range current {
			if id, ok := e["@id"].(string); ok {
				next = append(next, b.FollowRelationship(id, rel)...)
			}
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

// ExploreGraph describes a graph: an overview with type counts and sample
// entities, one entity as JSON, or one property of that entity. graphID
// "main" is the base document.
func (b *Base) ExploreGraph(graphID, entityID, property string, sampleSize int) string {
	id := NormalizeGraphID(graphID)
	data, ok := b.graphs[id]
	if !ok {
		if id != NormalizeGraphID(MainGraph) {
			return "Graph not found: " + id
		}
		data = b.data
	}
	if sampleSize <= 0 {
		sampleSize = 5
	}

	if entityID != "" {
		entity := findByIDSuffix(data, entityID)
		if entity == nil {
			return "Entity not found: " + entityID
		}
		if property != "" {
			v, ok := entity[property]
			if !ok {
				return "Property not found: " + property
			}
			return fmt.Sprintf("# Property: %s\n\n```json\n%s\n```", property, indentJSON(v))
		}
		return fmt.Sprintf("# Entity: %v\n\n```json\n%s\n```", entity["@id"], indentJSON(entity))
	}

	entities := nodes(data["@graph"])
	included := nodes(data["@included"])
	if _, ok := data["@id"]; ok {
		entities = append([]Entity{rootEntity(data)}, entities...)
	}
	total := len(entities) + len(included)
	all := append(entities, included...)

	lines := []string{
		"# Graph: " + id,
		fmt.Sprintf("Contains %d entities (%d in @graph, %d in @included)", total, len(entities), len(included)),
		"",
	}
	if counts := typeCounts(all); len(counts) > 0 {
		lines = append(lines, "## Entity Types")
		for _, tc := range counts[:min(10, len(counts))] {
			lines = append(lines, fmt.Sprintf("- %s: %d", tc.name, tc.count))
		}
		if len(counts) > 10 {
			lines = append(lines, fmt.Sprintf("- ... and %d more types", len(counts)-10))
		}
		lines = append(lines, "")
	}
	sample := all[:min(sampleSize, len(all))]
	lines = append(lines, fmt.Sprintf("## Sample Entities (showing %d of %d)", len(sample), total))
	for _, e := range sample {
		eid, _ := e["@id"].(string)
		if eid == "" {
			eid = "Unknown ID"
		}
		typ := strings.Join(stringList(e["@type"]), ", ")
		if typ == "" {
			typ = "Unknown Type"
		}
		lines = append(lines, fmt.Sprintf("- **%s** (Type: %s)", eid, typ))
	}
	return strings.Join(lines, "\n")
}

// findByIDSuffix looks for an entity whose @id equals or ends with id in
// @graph, @included and finally the document itself.
func findByIDSuffix(data map[string]any, id string) Entity {
	matches := func(e Entity) bool {
		eid, ok := e["@id"].(string)
		return ok && strings.HasSuffix(eid, id)
	}
	for _, e := range append(nodes(data["@graph"]), nodes(data["@included"])...) {
		if matches(e) {
			return e
		}
	}
	if matches(data) {
		return data
	}
	return nil
}

// Neighborhood collects the entities within depth relationship steps of
// id into a JSON-LD document sharing the base context. maxRelations > 0
// caps the relationships followed per entity.
func (b *Base) Neighborhood(id string, depth, maxRelations int, includeInverse bool) map[string]any {
	found := b.FindEntity(FindOptions{ID: id})
	if len(found) == 0 {
		return map[string]any{"@graph": []any{}}
	}
	central := found[0]
	centralID, _ := central["@id"].(string)

	collected := []any{central}
	visited := map[string]bool{centralID: true}
	current := []string{centralID}
	for step := 0; step < depth && len(current) > 0; step++ {
		var next []string
		for _, cur := range current {
			rels := b.Relationships(cur, includeInverse)
			if maxRelations > 0 && len(rels) > maxRelations {
				rels = rels[:maxRelations]
			}
			for _, rel := range rels {
				for _, e := range b.FollowRelationship(cur, rel) {
					eid, ok := e["@id"].(string)
					if !ok || visited[eid] {
						continue
					}
					visited[eid] = true
					collected = append(collected, e)
					next = append(next, eid)
				}
			}
		}
		current = next
	}

	ctx := b.data["@context"]
	if ctx == nil {
		ctx = map[string]any{}
	}
	return map[string]any{"@context": ctx, "@graph": collected}
}

// NeighborhoodAcrossGraphs merges the neighborhoods of id in the main
// document and in the named graphs (all of them when graphIDs is empty).
// Entities are deduplicated by @id and map contexts are merged.
func (b *Base) NeighborhoodAcrossGraphs(id string, depth, maxRelations int, includeInverse bool, graphIDs []string) map[string]any {
	views := []*Base{b}
	if len(graphIDs) == 0 {
		graphIDs = b.GraphIDs()
	}
	for _, gid := range graphIDs {
		if data, ok := b.NamedGraph(gid); ok {
			views = append(views, b.view(data))
		}
	}

	ctx := map[string]any{}
	var graph []any
	seen := map[string]bool{}
	for _, v := range views {
		hood := v.Neighborhood(id, depth, maxRelations, includeInverse)
		for _, e := range nodes(hood["@graph"]) {
			eid, ok := e["@id"].(string)
			if !ok || seen[eid] {
				continue
			}
			seen[eid] = true
			graph = append(graph, e)
		}
		if m, ok := hood["@context"].(map[string]any); ok && len(nodes(hood["@graph"])) > 0 {
			for k, val := range m {
				ctx[k] = val
			}
		}
	}
	if graph == nil {
		graph = []any{}
	}
	return map[string]any{"@context": ctx, "@graph": graph}
}

// maxPaths bounds FindPaths.
const maxPaths = 10

// FindPaths returns up to ten shortest-first paths of entities from one
// entity to another over forward relationships of at most maxDepth steps.
func (b *Base) FindPaths(from, to string, maxDepth int) [][]Entity {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	starts := b.FindEntity(FindOptions{ID: from})
	ends := b.FindEntity(FindOptions{ID: to})
	if len(starts) == 0 || len(ends) == 0 {
		return nil
	}
	startID, _ := starts[0]["@id"].(string)
	endID, _ := ends[0]["@id"].(string)
	if startID == "" || endID == "" {
		return nil
	}
	if startID == endID {
		return [][]Entity{{starts[0]}}
	}

	type step struct {
		path    []string
		visited map[string]bool
	}
	var paths [][]Entity
	queue := []step{{path: []string{startID}, visited: map[string]bool{startID: true}}}
	for len(queue) > 0 && len(paths) < maxPaths {
		cur := queue[0]
		queue = queue[1:]
		last := cur.path[len(cur.path)-1]

		if last == endID {
			var entities []Entity
			for _, id := range cur.path {
				if found := b.FindEntity(FindOptions{ID: id}); len(found) > 0 {
					entities = append(entities, found[0])
				}
			}
			paths = append(paths, entities)
			continue
		}
		if len(cur.path) > maxDepth {
			continue
		}
		for _, rel := range b.Relationships(last, false) {
			for _, e := range b.FollowRelationship(last, rel) {
				next, ok := e["@id"].(string)
				if !ok || cur.visited[next] {
					continue
				}
				visited := make(map[string]bool, len(cur.visited)+1)
				for k := range cur.visited {
					visited[k] = true
				}
				visited[next] = true
				path := append(append([]string{}, cur.path...), next)
				queue = append(queue, step{path: path, visited: visited})
			}
		}
	}
	return paths
}
