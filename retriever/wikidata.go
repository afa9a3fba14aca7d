package retriever

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	wikidataEntityNS = "http://www.wikidata.org/entity/"
	wikidataDirectNS = "http://www.wikidata.org/prop/direct/"
	rdfsLabel        = "http://www.w3.org/2000/01/rdf-schema#label"
	schemaDesc       = "http://schema.org/description"
)

// ErrEntityNotFound is returned when retrieved Wikidata entity data does not
// describe the requested entity.
var ErrEntityNotFound = errors.New("entity node not found in the graph")

// commonProperties are the Wikidata properties EntityDetails reports.
var commonProperties = []struct{ id, name string }{
	{"P18", "image"},
	{"P569", "date of birth"},
	{"P570", "date of death"},
	{"P856", "website"},
	{"P27", "country of citizenship"},
	{"P106", "occupation"},
}

// WikidataHit is one result of SearchWikidata.
type WikidataHit struct {
	ID          string `json:"id"`
	URI         string `json:"uri"`
	Label       string `json:"label"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// SearchWikidata looks items up by label with the wbsearchentities API.
// limit defaults to 10 and language to "en".
func (r *Retriever) SearchWikidata(ctx context.Context, query string, limit int, language string) ([]WikidataHit, error) {
	if limit <= 0 {
		limit = 10
	}
	if language == "" {
		language = "en"
	}
	params := url.Values{
		"action":   {"wbsearchentities"},
		"format":   {"json"},
		"search":   {query},
		"language": {language},
		"limit":    {strconv.Itoa(limit)},
		"type":     {"item"},
	}
	resp, err := r.fetcher.Get(ctx, r.wikidataBase+"/w/api.php?"+params.Encode(), "application/json")
	if err != nil {
		return nil, fmt.Errorf("wikidata search: %w", err)
	}

	var body struct {
		Search []struct {
			ID          string `json:"id"`
			Label       string `json:"label"`
			Description string `json:"description"`
			URL         string `json:"url"`
		} `json:"search"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("decode wikidata search: %w", err)
	}
	hits := make([]WikidataHit, 0, len(body.Search))
	for _, item := range body.Search {
		hit := WikidataHit{
			ID:          item.ID,
			URI:         wikidataEntityNS + item.ID,
			Label:       item.Label,
			Description: item.Description,
			URL:         item.URL,
		}
		if hit.Description == "" {
			hit.Description = "No description available"
		}
		switch {
		case hit.URL == "":
			hit.URL = "https://www.wikidata.org/wiki/" + item.ID
		case strings.HasPrefix(hit.URL, "//"):
			hit.URL = "https:" + hit.URL
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// EntityDetails summarises a Wikidata entity.
type EntityDetails struct {
	ID           string            `json:"id"`
	URI          string            `json:"uri"`
	Labels       map[string]string `json:"labels"`
	Descriptions map[string]string `json:"descriptions"`
	InstanceOf   []string          `json:"instance_of"`
	Properties   map[string]any    `json:"properties"`
}

// EntityDetails retrieves a Wikidata entity ("Q42" or "42") and extracts
// its labels and descriptions by language, its classes (P31) and a few
// common properties.
func (r *Retriever) EntityDetails(ctx context.Context, id string) (*EntityDetails, error) {
	if !strings.HasPrefix(id, "Q") {
		id = "Q" + id
	}
	uri := wikidataEntityNS + id
	res, err := r.Retrieve(ctx, uri)
	if err != nil {
		return nil, err
	}
	doc, _ := res.Data.(map[string]any)
	graph, _ := doc["@graph"].([]any)

	var node map[string]any
	for _, n := range graph {
		if m, ok := n.(map[string]any); ok && m["@id"] == uri {
			node = m
			break
		}
	}
	if node == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, uri)
	}

	details := &EntityDetails{
		ID:           id,
		URI:          uri,
		Labels:       languageMap(node[rdfsLabel]),
		Descriptions: languageMap(node[schemaDesc]),
		InstanceOf:   []string{},
		Properties:   map[string]any{},
	}
	for _, v := range asList(node[wikidataDirectNS+"P31"]) {
		if m, ok := v.(map[string]any); ok {
			if ref, ok := m["@id"].(string); ok {
				details.InstanceOf = append(details.InstanceOf, ref)
			}
		}
	}
	for _, p := range commonProperties {
		if v, ok := node[wikidataDirectNS+p.id]; ok {
			details.Properties[p.name] = v
		}
	}
	return details, nil
}

// languageMap collects language-tagged values by language.
func languageMap(v any) map[string]string {
	out := map[string]string{}
	for _, item := range asList(v) {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		lang, hasLang := m["@language"].(string)
		value, hasValue := m["@value"].(string)
		if hasLang && hasValue {
			out[lang] = value
		}
	}
	return out
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
