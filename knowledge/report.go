package knowledge

import (
	"fmt"
	"strings"
)

// FindTerm looks term up by id, label and/or type (searchType "id",
// "label", "type" or "all") and describes each distinct match.
func (b *Base) FindTerm(term, searchType string) string {
	if searchType == "" {
		searchType = "all"
	}
	var found []Entity
	if searchType == "id" || searchType == "all" {
		found = append(found, b.FindEntity(FindOptions{ID: term})...)
	}
	if searchType == "label" || searchType == "all" {
		found = append(found, b.FindEntity(FindOptions{Label: term})...)
	}
	if searchType == "type" || searchType == "all" {
		for _, e := range b.Graph() {
			for _, t := range stringList(e["@type"]) {
				if strings.Contains(t, term) {
					found = append(found, e)
					break
				}
			}
		}
	}

	seen := map[string]bool{}
	var unique []Entity
	for _, e := range found {
		id, _ := e["@id"].(string)
		if !seen[id] {
			seen[id] = true
			unique = append(unique, e)
		}
	}
	if len(unique) == 0 {
		return fmt.Sprintf("No terms found matching '%s' in the vocabulary.", term)
	}

	lines := []string{fmt.Sprintf("# Found %d terms matching '%s'", len(unique), term)}
	for i, e := range unique {
		id, _ := e["@id"].(string)
		if id == "" {
			id = "Unknown ID"
		}
		lines = append(lines, fmt.Sprintf("\n## Term %d: %s", i+1, lastSegment(id, "/")), b.DescribeEntity(e))
	}
	return strings.Join(lines, "\n")
}

// RelationshipReport lists an entity's relationships when rel is empty,
// split into direct and inverse ones, or describes the entities reached
// through rel.
func (b *Base) RelationshipReport(id, rel string, includeInverse bool) string {
	found := b.FindEntity(FindOptions{ID: id})
	if len(found) == 0 {
		return fmt.Sprintf("Entity '%s' not found.", id)
	}
	fullID, _ := found[0]["@id"].(string)
	if fullID == "" {
		fullID = "Unknown"
	}
	label := lastSegment(fullID, "/")

	if rel == "" {
		rels := b.Relationships(fullID, includeInverse)
		if len(rels) == 0 {
			return fmt.Sprintf("Entity '%s' has no relationships.", label)
		}
		lines := []string{fmt.Sprintf("# Available relationships for '%s'", label)}
		var direct, inverse []string
		for _, r := range rels {
			if name, ok := strings.CutPrefix(r, "^"); ok {
				inverse = append(inverse, name)
			} else {
				direct = append(direct, r)
			}
		}
		if len(direct) > 0 {
			lines = append(lines, "\n## Direct relationships (where this entity is the subject)")
			for _, r := range direct {
				lines = append(lines, "- "+lastSegment(r, "/"))
			}
		}
		if len(inverse) > 0 {
			lines = append(lines, "\n## Inverse relationships (where this entity is the object)")
			for _, r := range inverse {
				lines = append(lines, "- "+lastSegment(r, "/"))
			}
		}
		return strings.Join(lines, "\n")
	}

	related := b.FollowRelationship(fullID, rel)
	if len(related) == 0 {
		return fmt.Sprintf("No entities found related to '%s' via '%s'.", label, rel)
	}
	lines := []string{fmt.Sprintf("# Entities related to '%s' via '%s'", label, rel)}
	for i, e := range related {
		rid, _ := e["@id"].(string)
		if rid == "" {
			rid = "Unknown"
		}
		lines = append(lines, fmt.Sprintf("\n## %d. %s", i+1, lastSegment(rid, "/")), b.DescribeEntity(e))
	}
	return strings.Join(lines, "\n")
}
