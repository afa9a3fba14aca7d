package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/c360studio/semstreams/agentic"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/semlink/tools"
)

// maxRequestBody caps tool call request bodies.
const maxRequestBody = 16 << 20

// CallIDHeader lets clients choose the call id of an HTTP tool call.
const CallIDHeader = "X-Call-ID"

type toolServer struct {
	registry *tools.Registry
	logger   *slog.Logger
}

// newHandler serves the tool registry over HTTP:
//
//	GET  /tools         tool definitions
//	GET  /tools/{name}  one definition
//	POST /tools/{name}  run a tool; the body is the argument object
//	GET  /healthz
//	GET  /metrics       when metrics are enabled
func newHandler(app *App, metricsEnabled bool) http.Handler {
	s := &toolServer{registry: app.Registry(), logger: app.logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /tools", s.handleList)
	mux.HandleFunc("GET /tools/{name}", s.handleDescribe)
	mux.HandleFunc("POST /tools/{name}", s.handleExecute)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metricsEnabled {
		mux.Handle("GET /metrics", promhttp.HandlerFor(app.Metrics().PrometheusRegistry(), promhttp.HandlerOpts{}))
	}
	return mux
}

func (s *toolServer) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.ListTools())
}

func (s *toolServer) handleDescribe(w http.ResponseWriter, r *http.Request) {
	def, ok := s.registry.Lookup(r.PathValue("name"))
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown tool: %s", r.PathValue("name")))
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *toolServer) handleExecute(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, ok := s.registry.Lookup(name); !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown tool: %s", name))
		return
	}

	args, err := decodeArguments(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	callID := r.Header.Get(CallIDHeader)
	if callID == "" {
		callID = uuid.NewString()
	}
	call := agentic.ToolCall{ID: callID, Name: name, Arguments: args}

	result, err := s.registry.Execute(r.Context(), call)
	if err != nil {
		s.logger.Error("Tool execution failed", "tool", name, "call_id", callID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// decodeArguments reads a JSON object. An empty body is no arguments.
func decodeArguments(body io.Reader) (map[string]any, error) {
	var args map[string]any
	if err := json.NewDecoder(body).Decode(&args); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
