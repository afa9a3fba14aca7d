// Package config provides configuration loading and management for semlink.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	semconfig "github.com/c360studio/semstreams/config"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/semlink/fetch"
)

// Backend names for the cache and graph sections.
const (
	BackendMemory = "memory"
	BackendKV     = "kv"
)

// Config represents the complete semlink configuration
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Cache      CacheConfig      `yaml:"cache"`
	Graph      GraphConfig      `yaml:"graph"`
	Vocabulary VocabularyConfig `yaml:"vocabulary"`
	SPARQL     SPARQLConfig     `yaml:"sparql"`
	Reasoning  ReasoningConfig  `yaml:"reasoning"`
	Shapes     ShapesConfig     `yaml:"shapes"`
	NATS       NATSConfig       `yaml:"nats"`
	Server     ServerConfig     `yaml:"server"`
}

// HTTPConfig configures outbound HTTP fetches
type HTTPConfig struct {
	// Timeout bounds a single request including retries
	Timeout time.Duration `yaml:"timeout"`
	// UserAgent is sent with every request
	UserAgent string `yaml:"user_agent"`
	// MaxBodySize caps response bodies in bytes
	MaxBodySize int64 `yaml:"max_body_size"`
	// HTTPSOnly rejects plain http:// URLs
	HTTPSOnly bool `yaml:"https_only"`
	// AllowPrivate permits loopback and private network addresses
	AllowPrivate bool `yaml:"allow_private"`
	// MaxRetries is the number of attempts for transient failures
	MaxRetries int `yaml:"max_retries"`
}

// CacheConfig configures the context and LOD cache
type CacheConfig struct {
	// Backend is "memory" or "kv"
	Backend    string        `yaml:"backend"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	// Bucket is the KV bucket used by the kv backend
	Bucket string `yaml:"bucket"`
}

// GraphConfig configures named graph storage
type GraphConfig struct {
	// Backend is "memory" or "kv"
	Backend string `yaml:"backend"`
	Bucket  string `yaml:"bucket"`
	// Publish announces stored graphs on NATS
	Publish bool `yaml:"publish"`
	// FilesDir is the workspace the graph file tools read and write
	// (empty = disabled)
	FilesDir string `yaml:"files_dir"`
}

// VocabularyConfig configures the vocabulary registry
type VocabularyConfig struct {
	// RegistryPath is a YAML file merged over the built-in registry
	RegistryPath string `yaml:"registry_path"`
	// Watch reloads RegistryPath when it changes
	Watch bool `yaml:"watch"`
}

// SPARQLConfig configures SPARQL tools
type SPARQLConfig struct {
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	// DefaultLimit caps local graph query results (0 = no cap)
	DefaultLimit int `yaml:"default_limit"`
}

// ReasoningConfig configures ontology access for the reasoning tools
type ReasoningConfig struct {
	// OntologyDir is where ontology_path arguments resolve (empty = disabled)
	OntologyDir string `yaml:"ontology_dir"`
}

// ShapesConfig lists SHACL shape files
type ShapesConfig struct {
	// Patterns are doublestar globs relative to the working directory
	Patterns []string `yaml:"patterns"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = run without NATS)
	URL string `yaml:"url"`
}

// ServerConfig configures the serve command
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	fc := fetch.DefaultConfig()
	return &Config{
		HTTP: HTTPConfig{
			Timeout:     fc.Timeout,
			UserAgent:   fc.UserAgent,
			MaxBodySize: fc.MaxContentSize,
			HTTPSOnly:   !fc.Guard.AllowHTTP,
			MaxRetries:  fc.Retry.MaxAttempts,
		},
		Cache: CacheConfig{
			Backend:    BackendMemory,
			TTL:        24 * time.Hour,
			MaxEntries: 1000,
			Bucket:     "SEMLINK_CACHE",
		},
		Graph: GraphConfig{
			Backend: BackendMemory,
			Bucket:  "SEMLINK_GRAPHS",
		},
		SPARQL: SPARQLConfig{
			DefaultTimeout: 30 * time.Second,
			DefaultLimit:   1000,
		},
		Shapes: ShapesConfig{
			Patterns: []string{"shapes/**/*.ttl"},
		},
		Server: ServerConfig{
			Addr:           ":8080",
			MetricsEnabled: true,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive")
	}
	if c.HTTP.MaxBodySize <= 0 {
		return fmt.Errorf("http.max_body_size must be positive")
	}
	if c.HTTP.MaxRetries < 1 {
		return fmt.Errorf("http.max_retries must be at least 1")
	}
	if err := validBackend("cache.backend", c.Cache.Backend); err != nil {
		return err
	}
	if err := validBackend("graph.backend", c.Graph.Backend); err != nil {
		return err
	}
	if c.Cache.Backend == BackendKV || c.Graph.Backend == BackendKV || c.Graph.Publish {
		if c.NATS.URL == "" {
			return fmt.Errorf("nats.url is required for the kv backend and graph publishing")
		}
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries must not be negative")
	}
	if c.SPARQL.DefaultLimit < 0 {
		return fmt.Errorf("sparql.default_limit must not be negative")
	}
	if c.Vocabulary.Watch && c.Vocabulary.RegistryPath == "" {
		return fmt.Errorf("vocabulary.watch requires vocabulary.registry_path")
	}
	for _, p := range c.Shapes.Patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("shapes.patterns: invalid pattern %q", p)
		}
	}
	return nil
}

func validBackend(field, backend string) error {
	switch backend {
	case BackendMemory, BackendKV:
		return nil
	}
	return fmt.Errorf("%s must be %q or %q, got %q", field, BackendMemory, BackendKV, backend)
}

// FetchConfig converts the http section to a fetcher configuration.
func (c *Config) FetchConfig() fetch.Config {
	fc := fetch.DefaultConfig()
	fc.Timeout = c.HTTP.Timeout
	if c.HTTP.UserAgent != "" {
		fc.UserAgent = c.HTTP.UserAgent
	}
	fc.MaxContentSize = c.HTTP.MaxBodySize
	fc.Guard.AllowHTTP = !c.HTTP.HTTPSOnly
	fc.Guard.AllowPrivate = c.HTTP.AllowPrivate
	fc.Retry.MaxAttempts = c.HTTP.MaxRetries
	return fc
}

// ShapeFiles returns the files under root matching the shapes patterns,
// sorted and without duplicates.
func (c *Config) ShapeFiles(root string) ([]string, error) {
	fsys := os.DirFS(root)
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range c.Shapes.Patterns {
		matches, err := doublestar.Glob(fsys, filepath.ToSlash(pattern), doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			files = append(files, filepath.Join(root, filepath.FromSlash(m)))
		}
	}
	sort.Strings(files)
	return files, nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// parseFile reads a config layer without defaults so that Merge only sees
// the fields the file sets. ${VAR} and ${VAR:-default} are expanded.
func parseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	expanded := semconfig.ExpandEnvWithDefaults(string(data))
	var layer Config
	if err := yaml.Unmarshal([]byte(expanded), &layer); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &layer, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values). Booleans only ever switch on.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// HTTP
	if other.HTTP.Timeout != 0 {
		c.HTTP.Timeout = other.HTTP.Timeout
	}
	if other.HTTP.UserAgent != "" {
		c.HTTP.UserAgent = other.HTTP.UserAgent
	}
	if other.HTTP.MaxBodySize != 0 {
		c.HTTP.MaxBodySize = other.HTTP.MaxBodySize
	}
	if other.HTTP.HTTPSOnly {
		c.HTTP.HTTPSOnly = true
	}
	if other.HTTP.AllowPrivate {
		c.HTTP.AllowPrivate = true
	}
	if other.HTTP.MaxRetries != 0 {
		c.HTTP.MaxRetries = other.HTTP.MaxRetries
	}

	// Cache
	if other.Cache.Backend != "" {
		c.Cache.Backend = other.Cache.Backend
	}
	if other.Cache.TTL != 0 {
		c.Cache.TTL = other.Cache.TTL
	}
	if other.Cache.MaxEntries != 0 {
		c.Cache.MaxEntries = other.Cache.MaxEntries
	}
	if other.Cache.Bucket != "" {
		c.Cache.Bucket = other.Cache.Bucket
	}

	// Graph
	if other.Graph.Backend != "" {
		c.Graph.Backend = other.Graph.Backend
	}
	if other.Graph.Bucket != "" {
		c.Graph.Bucket = other.Graph.Bucket
	}
	if other.Graph.Publish {
		c.Graph.Publish = true
	}
	if other.Graph.FilesDir != "" {
		c.Graph.FilesDir = other.Graph.FilesDir
	}

	// Vocabulary
	if other.Vocabulary.RegistryPath != "" {
		c.Vocabulary.RegistryPath = other.Vocabulary.RegistryPath
	}
	if other.Vocabulary.Watch {
		c.Vocabulary.Watch = true
	}

	// SPARQL
	if other.SPARQL.DefaultTimeout != 0 {
		c.SPARQL.DefaultTimeout = other.SPARQL.DefaultTimeout
	}
	if other.SPARQL.DefaultLimit != 0 {
		c.SPARQL.DefaultLimit = other.SPARQL.DefaultLimit
	}

	if other.Reasoning.OntologyDir != "" {
		c.Reasoning.OntologyDir = other.Reasoning.OntologyDir
	}
	if len(other.Shapes.Patterns) > 0 {
		c.Shapes.Patterns = other.Shapes.Patterns
	}
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}

	// Server
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
}
