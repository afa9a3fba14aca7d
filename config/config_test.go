package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.HTTP.Timeout != 30*time.Second {
		t.Errorf("expected default http timeout 30s, got %v", cfg.HTTP.Timeout)
	}
	if cfg.HTTP.HTTPSOnly {
		t.Error("expected plain http to be allowed by default")
	}
	if cfg.Cache.Backend != BackendMemory || cfg.Graph.Backend != BackendMemory {
		t.Errorf("expected memory backends, got cache=%s graph=%s", cfg.Cache.Backend, cfg.Graph.Backend)
	}
	if cfg.NATS.URL != "" {
		t.Errorf("expected no NATS by default, got %s", cfg.NATS.URL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "zero timeout",
			modify:  func(c *Config) { c.HTTP.Timeout = 0 },
			wantErr: true,
		},
		{
			name:    "no retries",
			modify:  func(c *Config) { c.HTTP.MaxRetries = 0 },
			wantErr: true,
		},
		{
			name:    "unknown cache backend",
			modify:  func(c *Config) { c.Cache.Backend = "redis" },
			wantErr: true,
		},
		{
			name:    "kv graph without nats",
			modify:  func(c *Config) { c.Graph.Backend = BackendKV },
			wantErr: true,
		},
		{
			name: "kv graph with nats",
			modify: func(c *Config) {
				c.Graph.Backend = BackendKV
				c.NATS.URL = "nats://localhost:4222"
			},
			wantErr: false,
		},
		{
			name:    "publish without nats",
			modify:  func(c *Config) { c.Graph.Publish = true },
			wantErr: true,
		},
		{
			name:    "watch without registry path",
			modify:  func(c *Config) { c.Vocabulary.Watch = true },
			wantErr: true,
		},
		{
			name:    "negative sparql limit",
			modify:  func(c *Config) { c.SPARQL.DefaultLimit = -1 },
			wantErr: true,
		},
		{
			name:    "bad shapes pattern",
			modify:  func(c *Config) { c.Shapes.Patterns = []string{"shapes/[a-"} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
http:
  timeout: 10s
  user_agent: "test-agent/1.0"
  https_only: true
cache:
  backend: kv
  ttl: 1h
nats:
  url: "nats://test:4222"
sparql:
  default_limit: 50
shapes:
  patterns:
    - "rules/*.ttl"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.HTTP.Timeout != 10*time.Second {
		t.Errorf("expected timeout 10s, got %v", cfg.HTTP.Timeout)
	}
	if cfg.HTTP.UserAgent != "test-agent/1.0" {
		t.Errorf("expected user agent test-agent/1.0, got %s", cfg.HTTP.UserAgent)
	}
	if !cfg.HTTP.HTTPSOnly {
		t.Error("expected https_only")
	}
	if cfg.Cache.Backend != BackendKV || cfg.Cache.TTL != time.Hour {
		t.Errorf("unexpected cache section %+v", cfg.Cache)
	}
	// Unset fields keep their defaults.
	if cfg.Cache.MaxEntries != 1000 {
		t.Errorf("expected default max entries, got %d", cfg.Cache.MaxEntries)
	}
	if cfg.SPARQL.DefaultLimit != 50 {
		t.Errorf("expected limit 50, got %d", cfg.SPARQL.DefaultLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("http: [not, a, map"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		HTTP:   HTTPConfig{UserAgent: "override/2.0", AllowPrivate: true},
		Graph:  GraphConfig{Backend: BackendKV, Publish: true, FilesDir: "data"},
		Shapes: ShapesConfig{Patterns: []string{"a/*.ttl"}},
	}

	base.Merge(override)

	if base.HTTP.UserAgent != "override/2.0" {
		t.Errorf("expected user agent override/2.0, got %s", base.HTTP.UserAgent)
	}
	// Timeout should remain from base since override didn't set it
	if base.HTTP.Timeout != 30*time.Second {
		t.Errorf("expected timeout to remain default, got %v", base.HTTP.Timeout)
	}
	if !base.HTTP.AllowPrivate || !base.Graph.Publish {
		t.Error("expected booleans to switch on")
	}
	if base.Graph.Backend != BackendKV || base.Graph.Bucket != "SEMLINK_GRAPHS" {
		t.Errorf("unexpected graph section %+v", base.Graph)
	}
	if base.Graph.FilesDir != "data" {
		t.Errorf("expected files dir data, got %q", base.Graph.FilesDir)
	}
	if len(base.Shapes.Patterns) != 1 || base.Shapes.Patterns[0] != "a/*.ttl" {
		t.Errorf("unexpected shapes patterns %v", base.Shapes.Patterns)
	}

	base.Merge(nil)
}

func TestFetchConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTP.HTTPSOnly = true
	cfg.HTTP.AllowPrivate = true
	cfg.HTTP.MaxRetries = 2
	cfg.HTTP.UserAgent = "agent"

	fc := cfg.FetchConfig()
	if fc.Guard.AllowHTTP {
		t.Error("expected http to be refused")
	}
	if !fc.Guard.AllowPrivate {
		t.Error("expected private addresses to be allowed")
	}
	if fc.Retry.MaxAttempts != 2 {
		t.Errorf("expected 2 attempts, got %d", fc.Retry.MaxAttempts)
	}
	if fc.UserAgent != "agent" || fc.Timeout != cfg.HTTP.Timeout {
		t.Errorf("unexpected fetch config %+v", fc)
	}
}

func TestShapeFiles(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"shapes/person.ttl", "shapes/nested/book.ttl", "shapes/readme.md", "extra/org.ttl"} {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("# shapes"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := DefaultConfig()
	cfg.Shapes.Patterns = []string{"shapes/**/*.ttl", "extra/*.ttl", "shapes/person.ttl"}

	files, err := cfg.ShapeFiles(root)
	if err != nil {
		t.Fatalf("ShapeFiles() error = %v", err)
	}
	want := []string{
		filepath.Join(root, "extra", "org.ttl"),
		filepath.Join(root, "shapes", "nested", "book.ttl"),
		filepath.Join(root, "shapes", "person.ttl"),
	}
	if len(files) != len(want) {
		t.Fatalf("expected %d files, got %v", len(want), files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("file %d: expected %s, got %s", i, want[i], files[i])
		}
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.HTTP.UserAgent = "saved-agent"
	cfg.SPARQL.DefaultTimeout = 45 * time.Second

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.HTTP.UserAgent != "saved-agent" {
		t.Errorf("expected user agent saved-agent, got %s", loaded.HTTP.UserAgent)
	}
	if loaded.SPARQL.DefaultTimeout != 45*time.Second {
		t.Errorf("expected sparql timeout 45s, got %v", loaded.SPARQL.DefaultTimeout)
	}
}
