// Package tools provides the linked data tools of semlink: SPARQL and
// fetch tools, reasoning tools, vocabulary tools and knowledge exploration
// tools. Tools are registered globally via init() for use by agentic-tools.
package tools

import (
	"log/slog"
	"os"
	"path/filepath"

	agentictools "github.com/c360studio/semstreams/processor/agentic-tools"
)

// OntologyDirEnv names the directory ontology files are read from.
const OntologyDirEnv = "SEMLINK_ONTOLOGY_DIR"

func init() {
	ontologyRoot := os.Getenv(OntologyDirEnv)
	if ontologyRoot != "" {
		if abs, err := filepath.Abs(ontologyRoot); err == nil {
			ontologyRoot = abs
		}
	}

	registry, err := NewRegistry(Deps{OntologyRoot: ontologyRoot})
	if err != nil {
		slog.Default().Warn("Tool registration skipped", "error", err)
		return
	}

	for _, exec := range registry.Executors() {
		for _, tool := range exec.ListTools() {
			if err := agentictools.RegisterTool(tool.Name, exec); err != nil {
				// Tool might already be registered
				continue
			}
		}
	}
}
