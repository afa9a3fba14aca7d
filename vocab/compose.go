package vocab

import (
	"fmt"
	"sort"

	"github.com/c360studio/semlink/rdf"
)

// prefixAliases maps common prefix spellings to registry names.
var prefixAliases = map[string]string{
	"dct":     "dc",
	"dcterms": "dc",
	"sdo":     "schema",
	"rocrate": "ro-crate",
}

// ComposedContext is the result of ComposeContext.
type ComposedContext struct {
	Context      map[string]any      `json:"@context"`
	Vocabularies []string            `json:"vocabularies"`
	Collisions   []CollisionStrategy `json:"collisions,omitempty"`
	Strategy     string              `json:"strategy,omitempty"`
}

// ComposeContext builds a JSON-LD 1.1 context binding each named vocabulary
// or prefix to its namespace. Names unknown to the registry fall back to the
// well-known RDF prefixes. Registered collision strategies between the
// selected vocabularies are reported; strategy, when set, overrides them.
func (r *Registry) ComposeContext(names []string, strategy string) (*ComposedContext, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one vocabulary is required")
	}
	if strategy != "" {
		if _, ok := loadCollisions().Strategies[strategy]; !ok {
			return nil, fmt.Errorf("unknown collision strategy %q", strategy)
		}
	}

	defaults := rdf.DefaultPrefixes()
	ctx := map[string]any{"@version": 1.1}
	var resolved []string
	for _, name := range names {
		key := name
		if alias, ok := prefixAliases[name]; ok {
			key = alias
		}
		if v, ok := r.Resolve(key); ok {
			prefix := v.Prefix
			if prefix == "" {
				prefix = v.Name
			}
			ctx[prefix] = v.URI
			if name != prefix {
				ctx[name] = v.URI
			}
			resolved = append(resolved, v.Name)
			continue
		}
		if ns, ok := defaults[name]; ok {
			ctx[name] = ns
			resolved = append(resolved, name)
			continue
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownVocabulary, name)
	}

	out := &ComposedContext{Context: ctx, Vocabularies: resolved, Strategy: strategy}
	for i := 0; i < len(resolved); i++ {
		for j := i + 1; j < len(resolved); j++ {
			s, ok := r.StrategyFor(resolved[i], resolved[j])
			if !ok {
				continue
			}
			if strategy != "" {
				s.Strategy = strategy
			}
			s.Vocabs = []string{resolved[i], resolved[j]}
			out.Collisions = append(out.Collisions, *s)
		}
	}
	sort.SliceStable(out.Collisions, func(i, j int) bool {
		return out.Collisions[i].Vocabs[0] < out.Collisions[j].Vocabs[0]
	})
	return out, nil
}
