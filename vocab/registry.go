// Package vocab knows the JSON-LD vocabularies semlink works with: where
// their contexts live, how to load them when the canonical location fails,
// and how to combine vocabularies whose terms collide.
package vocab

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed registry.yaml
var registryYAML []byte

// ErrUnknownVocabulary is returned for names missing from the registry.
var ErrUnknownVocabulary = errors.New("unknown vocabulary")

// SupportLevel says how a vocabulary's context is obtained.
type SupportLevel string

const (
	// SupportDirect fetches the registered context location, falling back
	// to a backup location, access patterns and finally a minimal context.
	SupportDirect SupportLevel = "direct"
	// SupportCache dereferences the URL (after URL transformations) and
	// caches the result.
	SupportCache SupportLevel = "cache"
	// SupportDiscover probes common context locations.
	SupportDiscover SupportLevel = "discover"
)

// Resources are the published artefacts of a vocabulary.
type Resources struct {
	TTL      string `yaml:"ttl,omitempty" json:"ttl,omitempty"`
	Context  string `yaml:"context,omitempty" json:"context,omitempty"`
	Backup   string `yaml:"backup,omitempty" json:"backup,omitempty"`
	Homepage string `yaml:"homepage,omitempty" json:"homepage,omitempty"`
}

// AccessPatterns name the strategies for retrieving a context.
type AccessPatterns struct {
	Primary   string   `yaml:"primary,omitempty" json:"primary,omitempty"`
	Fallbacks []string `yaml:"fallbacks,omitempty" json:"fallbacks"`
}

// URLTransformation rewrites matching URLs before they are dereferenced.
// Replacement uses regexp.Expand syntax.
type URLTransformation struct {
	Pattern     string `yaml:"pattern" json:"pattern"`
	Replacement string `yaml:"replacement" json:"replacement"`

	re *regexp.Regexp
}

// Features are JSON-LD traits of a vocabulary's context.
type Features struct {
	InlineContext          bool `yaml:"inline_context" json:"inline_context"`
	UsesProtection         bool `yaml:"uses_protection" json:"uses_protection"`
	SupportsScopedContexts bool `yaml:"supports_scoped_contexts" json:"supports_scoped_contexts"`
}

// Vocabulary is one registry entry.
type Vocabulary struct {
	Name               string              `yaml:"-" json:"name"`
	URI                string              `yaml:"uri" json:"uri"`
	AlternativeURIs    []string            `yaml:"alternative_uris,omitempty" json:"alternative_uris"`
	Prefix             string              `yaml:"prefix" json:"prefix"`
	Title              string              `yaml:"title" json:"title"`
	Description        string              `yaml:"description" json:"description"`
	Version            string              `yaml:"version" json:"version"`
	Publisher          string              `yaml:"publisher" json:"publisher"`
	SupportLevel       SupportLevel        `yaml:"support_level" json:"support_level"`
	Resources          Resources           `yaml:"resources" json:"resources"`
	AccessPatterns     AccessPatterns      `yaml:"access_patterns" json:"access_patterns"`
	URLTransformations []URLTransformation `yaml:"url_transformations,omitempty" json:"url_transformations"`
	Features           Features            `yaml:"features" json:"features"`
	CommonTerms        []string            `yaml:"common_terms,omitempty" json:"common_terms"`
	CommonTypes        []string            `yaml:"common_types,omitempty" json:"common_types"`
	RelatedVocabs      []string            `yaml:"related_vocabs,omitempty" json:"related_vocabs"`
}

// Matches reports whether uri is, or lies under, the vocabulary URI or one
// of its alternatives.
func (v *Vocabulary) Matches(uri string) bool {
	for _, base := range append([]string{v.URI}, v.AlternativeURIs...) {
		if base != "" && strings.HasPrefix(uri, base) {
			return true
		}
	}
	return false
}

// TransformURL applies the first URL transformation that changes u.
func (v *Vocabulary) TransformURL(u string) string {
	for _, t := range v.URLTransformations {
		if t.re == nil {
			continue
		}
		if out := t.re.ReplaceAllString(u, t.Replacement); out != u {
			return out
		}
	}
	return u
}

// Registry is a set of vocabularies keyed by name.
type Registry struct {
	mu     sync.RWMutex
	vocabs map[string]*Vocabulary
}

// ParseRegistry reads a registry from YAML.
func ParseRegistry(data []byte) (*Registry, error) {
	var raw map[string]*Vocabulary
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse vocabulary registry: %w", err)
	}
	r := &Registry{vocabs: make(map[string]*Vocabulary, len(raw))}
	for name, v := range raw {
		if err := v.init(name); err != nil {
			return nil, err
		}
		r.vocabs[name] = v
	}
	return r, nil
}

func (v *Vocabulary) init(name string) error {
	if v == nil {
		return fmt.Errorf("vocabulary %q: empty entry", name)
	}
	if v.URI == "" {
		return fmt.Errorf("vocabulary %q: uri is required", name)
	}
	v.Name = name
	if v.SupportLevel == "" {
		v.SupportLevel = SupportDiscover
	}
	for i := range v.URLTransformations {
		re, err := regexp.Compile(v.URLTransformations[i].Pattern)
		if err != nil {
			return fmt.Errorf("vocabulary %q: url transformation %d: %w", name, i, err)
		}
		v.URLTransformations[i].re = re
	}
	return nil
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the built-in registry.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		r, err := ParseRegistry(registryYAML)
		if err != nil {
			panic("invalid embedded vocabulary registry: " + err.Error())
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// NewRegistry returns a copy of the built-in registry that can be modified
// independently.
func NewRegistry() *Registry {
	r, _ := ParseRegistry(registryYAML)
	return r
}

// Get returns the vocabulary called name.
func (r *Registry) Get(name string) (*Vocabulary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vocabs[name]
	return v, ok
}

// Resolve finds a vocabulary by name or by prefix.
func (r *Registry) Resolve(nameOrPrefix string) (*Vocabulary, bool) {
	if v, ok := r.Get(nameOrPrefix); ok {
		return v, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.namesLocked() {
		if v := r.vocabs[name]; v.Prefix == nameOrPrefix {
			return v, true
		}
	}
	return nil, false
}

// Names returns the registered names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.vocabs))
	for n := range r.vocabs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// All returns every vocabulary ordered by name.
func (r *Registry) All() []*Vocabulary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Vocabulary, 0, len(r.vocabs))
	for _, n := range r.namesLocked() {
		out = append(out, r.vocabs[n])
	}
	return out
}

// ForURL returns the vocabulary whose primary URI prefixes u.
func (r *Registry) ForURL(u string) (*Vocabulary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range r.namesLocked() {
		v := r.vocabs[n]
		if strings.HasPrefix(u, v.URI) {
			return v, true
		}
	}
	return nil, false
}

// TransformURL applies the URL transformations of every vocabulary and
// returns the first rewrite.
func (r *Registry) TransformURL(u string) string {
	for _, v := range r.All() {
		if out := v.TransformURL(u); out != u {
			return out
		}
	}
	return u
}

// Merge adds or replaces entries from other.
func (r *Registry) Merge(other *Registry) {
	other.mu.RLock()
	defer other.mu.RUnlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, v := range other.vocabs {
		r.vocabs[name] = v
	}
}

// Add registers v under its name.
func (r *Registry) Add(v *Vocabulary) error {
	if v.Name == "" {
		return fmt.Errorf("vocabulary name is required")
	}
	if err := v.init(v.Name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vocabs[v.Name] = v
	return nil
}

// DetectVocabularies returns the registered vocabularies referenced by a
// JSON-LD @context value: context URLs matching a vocabulary URI, an @vocab
// equal to one, or a term named after a vocabulary prefix.
func (r *Registry) DetectVocabularies(context any) []string {
	var items []any
	switch c := context.(type) {
	case []any:
		items = c
	case []string:
		for _, s := range c {
			items = append(items, s)
		}
	default:
		items = []any{c}
	}

	found := make(map[string]bool)
	vocabs := r.All()
	for _, item := range items {
		switch c := item.(type) {
		case string:
			for _, v := range vocabs {
				if v.Matches(c) {
					found[v.Name] = true
				}
			}
		case map[string]any:
			if base, ok := c["@vocab"].(string); ok {
				for _, v := range vocabs {
					if base == v.URI || slices.Contains(v.AlternativeURIs, base) {
						found[v.Name] = true
					}
				}
			}
			for _, v := range vocabs {
				if _, ok := c[v.Prefix]; ok && v.Prefix != "" {
					found[v.Name] = true
				}
			}
		}
	}

	out := make([]string, 0, len(found))
	for n := range found {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
