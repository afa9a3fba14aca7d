package vocab

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/semlink/vocabulary/semlink"
)

//go:embed collisions.yaml
var collisionsYAML []byte

// Collision strategy names.
const (
	StrategyPropertyScoped    = "property_scoped"
	StrategyGraphPartition    = "graph_partition"
	StrategyPropertyMapping   = "property_mapping"
	StrategyNestedContexts    = "nested_contexts"
	StrategyContextVersioning = "context_versioning"
	StrategySeparateGraphs    = "separate_graphs"
)

// StrategyInfo documents a collision strategy.
type StrategyInfo struct {
	Name        string `yaml:"-" json:"name"`
	Description string `yaml:"description" json:"description"`
	AppliesWhen string `yaml:"applies_when" json:"applies_when"`
	Example     string `yaml:"example" json:"example"`
}

// CollisionStrategy says how to combine two vocabularies.
type CollisionStrategy struct {
	Vocabs         []string          `yaml:"vocabs" json:"vocabs,omitempty"`
	Strategy       string            `yaml:"strategy" json:"strategy"`
	Primary        string            `yaml:"primary,omitempty" json:"primary,omitempty"`
	Secondary      string            `yaml:"secondary,omitempty" json:"secondary,omitempty"`
	Property       string            `yaml:"property,omitempty" json:"property,omitempty"`
	Mappings       map[string]string `yaml:"mappings,omitempty" json:"mappings,omitempty"`
	Outer          string            `yaml:"outer,omitempty" json:"outer,omitempty"`
	Inner          string            `yaml:"inner,omitempty" json:"inner,omitempty"`
	ContextVersion string            `yaml:"context_version,omitempty" json:"context_version,omitempty"`
	Description    string            `yaml:"description" json:"description"`
}

type collisionTable struct {
	Strategies map[string]*StrategyInfo `yaml:"strategies"`
	Pairs      []*CollisionStrategy     `yaml:"pairs"`
}

var (
	collisions     collisionTable
	collisionsOnce sync.Once
)

func loadCollisions() collisionTable {
	collisionsOnce.Do(func() {
		if err := yaml.Unmarshal(collisionsYAML, &collisions); err != nil {
			panic("invalid embedded collision strategies: " + err.Error())
		}
		for name, s := range collisions.Strategies {
			s.Name = name
		}
	})
	return collisions
}

// Strategies returns the documented collision strategies ordered by name.
func Strategies() []StrategyInfo {
	t := loadCollisions()
	out := make([]StrategyInfo, 0, len(t.Strategies))
	for _, s := range t.Strategies {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StrategyPairs returns the registered vocabulary pair strategies.
func StrategyPairs() []CollisionStrategy {
	t := loadCollisions()
	out := make([]CollisionStrategy, len(t.Pairs))
	for i, p := range t.Pairs {
		out[i] = *p
	}
	return out
}

// StrategyFor returns the strategy registered for vocabularies a and b in
// either order. When none is registered but either vocabulary uses
// @protected terms, the protected default applies.
func (r *Registry) StrategyFor(a, b string) (*CollisionStrategy, bool) {
	var protectedDefault *CollisionStrategy
	for _, p := range loadCollisions().Pairs {
		if len(p.Vocabs) != 2 {
			continue
		}
		if (p.Vocabs[0] == a && p.Vocabs[1] == b) || (p.Vocabs[0] == b && p.Vocabs[1] == a) {
			s := *p
			return &s, true
		}
		if strings.HasSuffix(p.Vocabs[1], "_protected") {
			protectedDefault = p
		}
	}
	if protectedDefault != nil && (r.usesProtection(a) || r.usesProtection(b)) {
		s := *protectedDefault
		return &s, true
	}
	return nil, false
}

func (r *Registry) usesProtection(name string) bool {
	v, ok := r.Get(name)
	return ok && v.Features.UsesProtection
}

// ApplyCollisionStrategy rewrites a JSON-LD document according to the
// strategy. Documents without a @context, and strategies that do not fit the
// document, are returned unchanged. The input is never modified.
func (r *Registry) ApplyCollisionStrategy(doc map[string]any, s *CollisionStrategy) map[string]any {
	if s == nil || doc == nil {
		return doc
	}
	if _, ok := doc["@context"]; !ok {
		return doc
	}
	switch s.Strategy {
	case StrategyPropertyScoped:
		return r.applyPropertyScoped(doc, s)
	case StrategyGraphPartition, StrategySeparateGraphs:
		return CreateGraphPartition(doc)
	case StrategyPropertyMapping:
		return applyPropertyMapping(doc, s)
	case StrategyNestedContexts:
		return r.applyNestedContexts(doc, s)
	case StrategyContextVersioning:
		return applyContextVersioning(doc, s)
	}
	return doc
}

func (r *Registry) applyPropertyScoped(doc map[string]any, s *CollisionStrategy) map[string]any {
	if s.Property == "" {
		return doc
	}
	if _, ok := doc[s.Property].(map[string]any); !ok {
		return doc
	}
	contexts, ok := doc["@context"].([]any)
	if !ok || len(contexts) < 2 {
		return doc
	}

	out := deepCopy(doc)
	ctx := map[string]any{"@version": 1.1}
	if v, ok := r.Get(s.Primary); ok {
		ctx["@vocab"] = v.URI
	} else {
		ctx["@vocab"] = contexts[0]
	}
	base, _ := ctx["@vocab"].(string)

	var inner any = contexts[1]
	if v, ok := r.Get(s.Secondary); ok {
		inner = map[string]any{"@vocab": v.URI}
	}
	ctx[s.Property] = map[string]any{
		"@id":        base + s.Property,
		"@context":   inner,
		"@protected": false,
	}
	out["@context"] = ctx
	return out
}

func applyPropertyMapping(doc map[string]any, s *CollisionStrategy) map[string]any {
	out := deepCopy(doc)
	contexts, ok := out["@context"].([]any)
	if !ok || len(contexts) == 0 {
		return out
	}

	ctx := map[string]any{"@version": 1.1}
	switch first := contexts[0].(type) {
	case string:
		ctx["@vocab"] = first
	case map[string]any:
		for k, v := range first {
			ctx[k] = v
		}
	}
	for source, target := range s.Mappings {
		term := source
		if _, local, ok := strings.Cut(source, ":"); ok {
			term = local
		}
		ctx[term] = map[string]any{"@id": target}
	}
	out["@context"] = ctx
	return out
}

func (r *Registry) applyNestedContexts(doc map[string]any, s *CollisionStrategy) map[string]any {
	out := deepCopy(doc)
	outer, ok1 := r.Get(s.Outer)
	inner, ok2 := r.Get(s.Inner)
	if !ok1 || !ok2 {
		return out
	}
	out["@context"] = map[string]any{
		"@version": 1.1,
		"@vocab":   outer.URI,
		"inner": map[string]any{
			"@id":      outer.URI + "inner",
			"@context": map[string]any{"@vocab": inner.URI},
		},
	}
	return out
}

func applyContextVersioning(doc map[string]any, s *CollisionStrategy) map[string]any {
	out := deepCopy(doc)
	contexts, ok := out["@context"].([]any)
	if !ok {
		return out
	}

	var version any = 1.1
	if s.ContextVersion != "" && s.ContextVersion != "1.1" {
		version = s.ContextVersion
	}
	ctx := map[string]any{"@version": version}
	for _, c := range contexts {
		switch c := c.(type) {
		case string:
			ctx[fmt.Sprintf("ctx%d", len(ctx))] = c
		case map[string]any:
			for k, v := range c {
				if _, exists := ctx[k]; !exists {
					ctx[k] = v
				}
			}
		}
	}
	out["@context"] = ctx
	return out
}

// CreateGraphPartition flattens nested objects of doc into a @graph array.
// Nested objects with more than one key are replaced by an @id reference,
// minting urn:uuid: identifiers where needed, and every object of a list
// becomes its own node.
func CreateGraphPartition(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	var nodes []any
	var visit func(obj map[string]any) string
	visit = func(obj map[string]any) string {
		id, _ := obj["@id"].(string)
		if id == "" {
			id, _ = obj["id"].(string)
		}
		if id == "" {
			id = semlink.PartitionIDPrefix + uuid.NewString()
		}

		node := make(map[string]any, len(obj)+1)
		for k, v := range obj {
			node[k] = v
		}
		if _, has := node["id"]; !has {
			node["@id"] = id
		}

		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch v := node[k].(type) {
			case map[string]any:
				if len(v) > 1 {
					node[k] = map[string]any{"@id": visit(v)}
				}
			case []any:
				list := make([]any, len(v))
				for i, item := range v {
					if m, ok := item.(map[string]any); ok {
						list[i] = map[string]any{"@id": visit(m)}
					} else {
						list[i] = item
					}
				}
				node[k] = list
			}
		}
		nodes = append(nodes, node)
		return id
	}
	visit(deepCopy(doc))
	return map[string]any{"@graph": nodes}
}

func deepCopy(doc map[string]any) map[string]any {
	data, err := json.Marshal(doc)
	if err != nil {
		return doc
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return doc
	}
	return out
}
