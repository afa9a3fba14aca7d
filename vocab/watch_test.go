package vocab

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_LoadOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ex:\n  uri: http://example.org/\n  prefix: ex\n"), 0o644))

	r := NewRegistry()
	require.NoError(t, r.LoadOverride(path))
	v, ok := r.Resolve("ex")
	require.True(t, ok)
	assert.Equal(t, "http://example.org/", v.URI)

	assert.Error(t, r.LoadOverride(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestRegistry_WatchRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ex:\n  uri: http://example.org/v1/\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloads := make(chan error, 4)
	r := NewRegistry()
	require.NoError(t, r.WatchRegistry(ctx, path,
		WithReloadDelay(10*time.Millisecond),
		WithReloadHook(func(err error) { reloads <- err })))

	v, _ := r.Get("ex")
	assert.Equal(t, "http://example.org/v1/", v.URI)

	require.NoError(t, os.WriteFile(path, []byte("ex:\n  uri: http://example.org/v2/\n"), 0o644))
	select {
	case err := <-reloads:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("registry was not reloaded")
	}
	assert.Eventually(t, func() bool {
		v, _ := r.Get("ex")
		return v.URI == "http://example.org/v2/"
	}, time.Second, 10*time.Millisecond)
}

func TestRegistry_WatchRegistryInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ex:\n  prefix: ex\n"), 0o644))
	err := NewRegistry().WatchRegistry(context.Background(), path)
	assert.ErrorContains(t, err, "uri is required")
}
