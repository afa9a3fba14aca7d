package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with an isolated home directory and
// an explicit, empty config file.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NATS_URL", "")

	cfgPath := filepath.Join(t.TempDir(), "semlink.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("sparql:\n  default_limit: 100\n"), 0644))

	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(`{"query": "ASK { ?s ?p ?o }"}`))
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "semlink version "+Version)
}

func TestListToolsCommand(t *testing.T) {
	out, err := runCLI(t, "list-tools")
	require.NoError(t, err)
	for _, name := range []string{"sparql_query", "vocab_list", "reason_over", "load_knowledge"} {
		assert.Contains(t, out, name)
	}

	out, err = runCLI(t, "list-tools", "--json")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "["))
}

func TestRunToolCommand(t *testing.T) {
	out, err := runCLI(t, "run-tool", "check_query_patterns", "--arg", "query=SELECT ?s WHERE { ?s ?p ?o }")
	require.NoError(t, err)
	assert.Contains(t, out, `"query_type": "SELECT"`)

	out, err = runCLI(t, "run-tool", "check_query_patterns", "--args-file", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"query_type": "ASK"`)

	out, err = runCLI(t, "run-tool", "vocab_list", "--result")
	require.NoError(t, err)
	assert.Contains(t, out, `"call_id"`)

	_, err = runCLI(t, "run-tool", "no_such_tool")
	assert.ErrorContains(t, err, "unknown tool")

	_, err = runCLI(t, "run-tool", "vocab_lookup")
	assert.ErrorContains(t, err, "name argument is required")

	_, err = runCLI(t, "run-tool", "vocab_list", "--args", "[1,2]")
	assert.ErrorContains(t, err, "JSON object")
}

func TestRunToolFlagOnRoot(t *testing.T) {
	out, err := runCLI(t, "--run-tool", "check_query_patterns", "--args", `{"query": "SELECT ?s WHERE { ?s ?p ?o }"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"query_type": "SELECT"`)
}

func TestToolArgs(t *testing.T) {
	ta := toolArgs{json: `{"limit": 5, "query": "q"}`, pairs: []string{"query=override", "graph=a=b"}}
	args, err := ta.arguments(nil)
	require.NoError(t, err)
	assert.Equal(t, float64(5), args["limit"])
	assert.Equal(t, "override", args["query"])
	assert.Equal(t, "a=b", args["graph"])

	ta = toolArgs{pairs: []string{"novalue"}}
	_, err = ta.arguments(nil)
	assert.Error(t, err)

	ta = toolArgs{file: filepath.Join(t.TempDir(), "missing.json")}
	_, err = ta.arguments(nil)
	assert.Error(t, err)
}

const personShapes = `@prefix sh: <http://www.w3.org/ns/shacl#> .
@prefix ex: <http://example.org/> .

ex:PersonShape a sh:NodeShape ;
    sh:targetClass ex:Person ;
    sh:property [ sh:path ex:name ; sh:minCount 1 ] .
`

func TestValidateCommand(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "shapes", "people"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "shapes", "people", "person.ttl"), []byte(personShapes), 0644))

	good := filepath.Join(root, "good.ttl")
	require.NoError(t, os.WriteFile(good, []byte(`@prefix ex: <http://example.org/> .
ex:alice a ex:Person ; ex:name "Alice" .
`), 0644))
	bad := filepath.Join(root, "bad.nt")
	require.NoError(t, os.WriteFile(bad, []byte(
		"<http://example.org/bob> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://example.org/Person> .\n"), 0644))

	out, err := runCLI(t, "validate", good, "--root", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Conforms: true")

	out, err = runCLI(t, "validate", bad, "--root", root)
	require.Error(t, err)
	assert.Contains(t, out, "Conforms: false")
	assert.Contains(t, err.Error(), "does not conform")

	_, err = runCLI(t, "validate", good, "--root", root, "--shapes", "missing/*.ttl")
	assert.ErrorContains(t, err, "no shape files")

	_, err = runCLI(t, "validate", good, "--root", root, "--format", "yaml")
	assert.Error(t, err)
}

func TestConfigShowCommand(t *testing.T) {
	out, err := runCLI(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "default_limit: 100")
	assert.Contains(t, out, "backend: memory")
}
