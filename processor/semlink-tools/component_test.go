package semlinktools

import (
	"context"
	"testing"
	"time"

	"github.com/c360studio/semstreams/agentic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoExecutor returns the "text" argument of every call.
type echoExecutor struct {
	names []string
}

func (e *echoExecutor) Execute(_ context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	text, _ := call.Arguments["text"].(string)
	return agentic.ToolResult{CallID: call.ID, Content: text}, nil
}

func (e *echoExecutor) ListTools() []agentic.ToolDefinition {
	defs := make([]agentic.ToolDefinition, len(e.names))
	for i, name := range e.names {
		defs[i] = agentic.ToolDefinition{
			Name:        name,
			Description: "echo " + name,
			Parameters:  map[string]any{"type": "object"},
		}
	}
	return defs
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"missing stream", func(c *Config) { c.StreamName = "" }, true},
		{"bad timeout", func(c *Config) { c.Timeout = "soon" }, true},
		{"negative timeout", func(c *Config) { c.Timeout = "-1s" }, true},
		{"bad heartbeat", func(c *Config) { c.HeartbeatInterval = "often" }, true},
		{"negative workers", func(c *Config) { c.Workers = -1 }, true},
		{"empty timeout uses default", func(c *Config) { c.Timeout = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigDurations(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 60*time.Second, cfg.timeout())
	assert.Equal(t, 10*time.Second, cfg.heartbeatInterval())

	cfg.Timeout = "2s"
	cfg.HeartbeatInterval = ""
	assert.Equal(t, 2*time.Second, cfg.timeout())
	assert.Equal(t, 10*time.Second, cfg.heartbeatInterval())
}

func TestConsumerNameForTool(t *testing.T) {
	assert.Equal(t, "semlink-tool-sparql-query", consumerNameForTool("sparql_query"))
	assert.Equal(t, "semlink-tool-vocab-list-v2", consumerNameForTool("vocab.list_v2"))
}

func TestNewComponent(t *testing.T) {
	_, err := NewComponent(Config{}, &echoExecutor{}, nil)
	assert.Error(t, err)

	_, err = NewComponent(DefaultConfig(), nil, nil)
	assert.Error(t, err)

	c, err := NewComponent(DefaultConfig(), &echoExecutor{names: []string{"echo"}}, nil)
	require.NoError(t, err)
	assert.False(t, c.Stats().Running)

	// Without NATS the worker cannot start.
	assert.Error(t, c.Start(context.Background()))
	assert.NoError(t, c.Stop(time.Second))
}

func TestAllowlist(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Allowlist = []string{"sparql_query"}

	c, err := NewComponent(cfg, &echoExecutor{names: []string{"sparql_query", "vocab_list"}}, nil)
	require.NoError(t, err)

	tools := c.tools()
	require.Len(t, tools, 1)
	assert.Equal(t, "sparql_query", tools[0].Name)

	result, err := c.execute(context.Background(), agentic.ToolCall{ID: "c1", Name: "vocab_list"})
	require.NoError(t, err)
	assert.Contains(t, result.Error, "not allowed")

	result, err = c.execute(context.Background(), agentic.ToolCall{
		ID:        "c2",
		Name:      "sparql_query",
		Arguments: map[string]any{"text": "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", result.Content)

	_, err = c.execute(context.Background(), agentic.ToolCall{Name: "sparql_query"})
	assert.Error(t, err)
}
