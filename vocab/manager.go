package vocab

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/piprate/json-gold/ld"

	"github.com/c360studio/semlink/cache"
	"github.com/c360studio/semlink/fetch"
	"github.com/c360studio/semlink/rdf"
)

const contextAccept = "application/ld+json, application/json;q=0.9, */*;q=0.1"

const jsonLDContextRel = "http://www.w3.org/ns/json-ld#context"

// Manager resolves JSON-LD contexts through the vocabulary registry. It
// implements ld.DocumentLoader so it can be handed to any JSON-LD operation.
type Manager struct {
	registry *Registry
	fetcher  *fetch.Fetcher
	cache    cache.Cache
	logger   *slog.Logger

	mu     sync.Mutex
	loaded map[string]bool
}

var _ ld.DocumentLoader = (*Manager)(nil)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRegistry replaces the built-in registry.
func WithRegistry(r *Registry) ManagerOption {
	return func(m *Manager) {
		m.registry = r
	}
}

// WithCache caches loaded contexts.
func WithCache(c cache.Cache) ManagerOption {
	return func(m *Manager) {
		m.cache = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager that fetches through f.
func NewManager(f *fetch.Fetcher, opts ...ManagerOption) *Manager {
	m := &Manager{
		fetcher: f,
		logger:  slog.Default(),
		loaded:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = DefaultRegistry()
	}
	return m
}

// Registry returns the registry in use.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// LoadDocument implements ld.DocumentLoader.
func (m *Manager) LoadDocument(u string) (*ld.RemoteDocument, error) {
	ctx := context.Background()
	if timeout := m.fetcher.Config().Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return m.LoadDocumentContext(ctx, u)
}

// LoadDocumentContext loads the document at u. Registered vocabularies are
// loaded according to their support level; other URLs are rewritten by the
// registry's URL transformations and dereferenced.
func (m *Manager) LoadDocumentContext(ctx context.Context, u string) (*ld.RemoteDocument, error) {
	if doc, ok := m.cached(ctx, u); ok {
		return doc, nil
	}

	if v, ok := m.registry.ForURL(u); ok {
		m.markLoaded(v.Name)
		switch v.SupportLevel {
		case SupportDirect:
			return m.loadDirect(ctx, v, u), nil
		case SupportCache:
			return m.loadCached(ctx, v, u), nil
		default:
			return m.loadDiscover(ctx, u), nil
		}
	}

	target := m.registry.TransformURL(u)
	doc, err := m.remote(ctx, target)
	if err != nil {
		return nil, &ld.JsonLdError{Code: ld.LoadingDocumentFailed, Details: fmt.Sprintf("load %s: %v", u, err)}
	}
	m.store(ctx, doc, u, target)
	return doc, nil
}

func (m *Manager) loadDirect(ctx context.Context, v *Vocabulary, u string) *ld.RemoteDocument {
	if loc := v.Resources.Context; loc != "" {
		doc, err := m.remote(ctx, loc)
		if err == nil {
			m.store(ctx, doc, u, loc)
			return doc
		}
		m.logger.Warn("Context location failed", "vocabulary", v.Name, "url", loc, "error", err)

		if v.Resources.Backup != "" {
			if doc, err := m.remote(ctx, v.Resources.Backup); err == nil {
				m.store(ctx, doc, u)
				return doc
			}
			m.logger.Warn("Backup context failed", "vocabulary", v.Name, "url", v.Resources.Backup, "error", err)
		}
	}

	for _, pattern := range v.AccessPatterns.Fallbacks {
		if pattern != "direct_download" {
			continue
		}
		if doc, err := m.remote(ctx, u); err == nil {
			m.store(ctx, doc, u)
			return doc
		}
	}

	m.logger.Warn("Using minimal context", "vocabulary", v.Name, "url", u)
	return &ld.RemoteDocument{DocumentURL: u, Document: MinimalContext(v)}
}

func (m *Manager) loadCached(ctx context.Context, v *Vocabulary, u string) *ld.RemoteDocument {
	target := v.TransformURL(u)
	doc, err := m.remote(ctx, target)
	if err == nil {
		m.store(ctx, doc, u, target)
		return doc
	}
	m.logger.Warn("Cached vocabulary fetch failed", "vocabulary", v.Name, "url", target, "error", err)

	if loc := v.Resources.Context; loc != "" && loc != target {
		if doc, err := m.remote(ctx, loc); err == nil {
			doc.DocumentURL = u
			m.store(ctx, doc, u)
			return doc
		}
	}
	return &ld.RemoteDocument{DocumentURL: u, Document: MinimalContext(v)}
}

// contextVariations lists the locations probed for an undeclared context.
func contextVariations(u string) []string {
	trimmed := strings.TrimRight(u, "/")
	return []string{
		u + "/context",
		trimmed + "/context.jsonld",
		u + "/latest/context",
		trimmed + "/.well-known/context.jsonld",
	}
}

func (m *Manager) loadDiscover(ctx context.Context, u string) *ld.RemoteDocument {
	if doc, err := m.remote(ctx, u); err == nil {
		m.store(ctx, doc, u)
		return doc
	}
	for _, candidate := range contextVariations(u) {
		doc, err := m.remote(ctx, candidate)
		if err != nil {
			m.logger.Debug("Context variation failed", "url", candidate, "error", err)
			continue
		}
		m.store(ctx, doc, u, candidate)
		return doc
	}
	m.logger.Warn("No context discovered, using @vocab", "url", u)
	return &ld.RemoteDocument{
		DocumentURL: u,
		Document:    map[string]any{"@context": map[string]any{"@vocab": u}},
	}
}

// remote dereferences u as JSON, following a Link alternate to JSON-LD when
// the server answers with something else.
func (m *Manager) remote(ctx context.Context, u string) (*ld.RemoteDocument, error) {
	resp, err := m.fetcher.Get(ctx, u, contextAccept)
	if err != nil {
		return nil, err
	}

	if mt := fetch.MediaType(resp.ContentType); mt != "" && !strings.Contains(mt, "json") {
		alt, ok := fetch.AlternateJSONLD(resp.Header.Get("Link"), resp.URL)
		if !ok || alt == u {
			return nil, fmt.Errorf("%s: not JSON (%s)", u, mt)
		}
		return m.remote(ctx, alt)
	}

	doc, err := ld.DocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", u, err)
	}
	rd := &ld.RemoteDocument{DocumentURL: resp.URL, Document: doc}
	for _, link := range fetch.ParseLinkHeader(resp.Header.Get("Link")) {
		if link.Rel == jsonLDContextRel {
			rd.ContextURL = link.URI
			break
		}
	}
	return rd, nil
}

type cachedDocument struct {
	DocumentURL string `json:"document_url"`
	ContextURL  string `json:"context_url,omitempty"`
	Document    any    `json:"document"`
}

func (m *Manager) cached(ctx context.Context, u string) (*ld.RemoteDocument, bool) {
	if m.cache == nil {
		return nil, false
	}
	var entry cachedDocument
	ok, err := cache.GetJSON(ctx, m.cache, cache.ContextKey(u), &entry)
	if err != nil {
		m.logger.Debug("Discarding cached context", "url", u, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return &ld.RemoteDocument{DocumentURL: entry.DocumentURL, ContextURL: entry.ContextURL, Document: entry.Document}, true
}

// store caches a fetched document under every URL it answers for.
// Fallback contexts are never stored so later loads retry the network.
func (m *Manager) store(ctx context.Context, doc *ld.RemoteDocument, urls ...string) {
	if m.cache == nil {
		return
	}
	entry := cachedDocument{DocumentURL: doc.DocumentURL, ContextURL: doc.ContextURL, Document: doc.Document}
	for _, u := range urls {
		if err := cache.SetJSON(ctx, m.cache, cache.ContextKey(u), entry); err != nil {
			m.logger.Warn("Failed to cache context", "url", u, "error", err)
		}
	}
}

func (m *Manager) markLoaded(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded[name] = true
}

// LoadedVocabularies returns the registered vocabularies loaded so far.
func (m *Manager) LoadedVocabularies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.loaded))
	for name := range m.loaded {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Info is a registry entry together with its load state.
type Info struct {
	*Vocabulary
	Loaded bool `json:"loaded"`
}

// VocabularyInfo describes the vocabulary with the given name or prefix.
func (m *Manager) VocabularyInfo(name string) (*Info, error) {
	v, ok := m.registry.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVocabulary, name)
	}
	m.mu.Lock()
	loaded := m.loaded[v.Name]
	m.mu.Unlock()
	return &Info{Vocabulary: v, Loaded: loaded}, nil
}

// MinimalContext returns a context mapping every term into the vocabulary
// namespace, with explicit entries for the common terms of vocabularies that
// publish an inline context.
func MinimalContext(v *Vocabulary) map[string]any {
	ctx := map[string]any{"@vocab": v.URI}
	if v.Features.InlineContext {
		for _, term := range v.CommonTerms {
			ctx[term] = v.URI + term
		}
	}
	return map[string]any{"@context": ctx}
}

// LoadContext returns the context document of a registered vocabulary.
func (m *Manager) LoadContext(ctx context.Context, name string) (map[string]any, error) {
	v, ok := m.registry.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVocabulary, name)
	}
	m.markLoaded(v.Name)
	if rd, ok := m.cached(ctx, v.URI); ok {
		if doc, ok := rd.Document.(map[string]any); ok {
			return doc, nil
		}
	}
	doc, ok := m.loadDirect(ctx, v, v.URI).Document.(map[string]any)
	if !ok {
		return MinimalContext(v), nil
	}
	return doc, nil
}

// CompactWithVocabulary compacts a JSON-LD entity against the context of a
// registered vocabulary.
func (m *Manager) CompactWithVocabulary(ctx context.Context, entity map[string]any, name string) (map[string]any, error) {
	doc, err := m.LoadContext(ctx, name)
	if err != nil {
		return nil, err
	}
	out, err := rdf.Compact(entity, doc, m)
	if err != nil {
		return nil, fmt.Errorf("compact with %s: %w", name, err)
	}
	return out, nil
}

// DatasetWithVocabulary returns data with the vocabulary URI as its
// @context. A @context already present in data wins.
func (m *Manager) DatasetWithVocabulary(data map[string]any, name string) (map[string]any, error) {
	v, ok := m.registry.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVocabulary, name)
	}
	out := make(map[string]any, len(data)+1)
	out["@context"] = v.URI
	for k, val := range data {
		out[k] = val
	}
	return out, nil
}
