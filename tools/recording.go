package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/c360studio/semstreams/agentic"
	agentictools "github.com/c360studio/semstreams/processor/agentic-tools"
)

// MaxRecordedParamsLength is the max length of serialized parameters in a record.
const MaxRecordedParamsLength = 1000

// MaxRecordedResultLength is the max length of result content in a record.
const MaxRecordedResultLength = 2000

// RecordingExecutor wraps a ToolExecutor, counting each call in the tool
// metrics and storing a record of it when a recorder is configured.
type RecordingExecutor struct {
	inner    agentictools.ToolExecutor
	recorder CallRecorder
	metrics  *toolMetrics
	logger   *slog.Logger
	pending  sync.WaitGroup
}

// RecordingOption configures a RecordingExecutor.
type RecordingOption func(*RecordingExecutor)

// WithRecorder stores a record of every call.
func WithRecorder(recorder CallRecorder) RecordingOption {
	return func(r *RecordingExecutor) {
		r.recorder = recorder
	}
}

// WithRecordingLogger sets the logger.
func WithRecordingLogger(logger *slog.Logger) RecordingOption {
	return func(r *RecordingExecutor) {
		r.logger = logger
	}
}

func withToolMetrics(m *toolMetrics) RecordingOption {
	return func(r *RecordingExecutor) {
		r.metrics = m
	}
}

// NewRecordingExecutor wraps an executor.
func NewRecordingExecutor(inner agentictools.ToolExecutor, opts ...RecordingOption) *RecordingExecutor {
	r := &RecordingExecutor{
		inner:  inner,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute runs the underlying executor and records the call.
func (r *RecordingExecutor) Execute(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	startedAt := time.Now()
	result, execErr := r.inner.Execute(ctx, call)
	completedAt := time.Now()

	status, errMsg := callStatus(result, execErr)
	r.metrics.record(call.Name, status, completedAt.Sub(startedAt))
	r.logger.Debug("Tool call finished", "tool", call.Name, "call_id", call.ID, "status", status,
		"duration_ms", completedAt.Sub(startedAt).Milliseconds())

	if r.recorder != nil {
		record := &CallRecord{
			CallID:      call.ID,
			ToolName:    call.Name,
			Parameters:  truncateJSON(call.Arguments, MaxRecordedParamsLength),
			Result:      truncate(result.Content, MaxRecordedResultLength),
			Status:      status,
			Error:       errMsg,
			StartedAt:   startedAt,
			CompletedAt: completedAt,
			DurationMs:  completedAt.Sub(startedAt).Milliseconds(),
		}
		// Stored in the background so recording never slows a tool down.
		r.pending.Add(1)
		go r.store(record)
	}
	return result, execErr
}

// ListTools delegates to the inner executor.
func (r *RecordingExecutor) ListTools() []agentic.ToolDefinition {
	return r.inner.ListTools()
}

// Wait blocks until every started record has been stored.
func (r *RecordingExecutor) Wait() {
	r.pending.Wait()
}

func (r *RecordingExecutor) store(record *CallRecord) {
	defer r.pending.Done()
	if record.CallID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.recorder.Store(ctx, record); err != nil {
		r.logger.Warn("Failed to record tool call",
			"tool", record.ToolName,
			"call_id", record.CallID,
			"error", err)
	}
}

func callStatus(result agentic.ToolResult, err error) (string, string) {
	switch {
	case err != nil:
		return "error", err.Error()
	case result.Error != "":
		return "error", result.Error
	}
	return "success", ""
}

// truncateJSON marshals a map to JSON and truncates to maxLen.
func truncateJSON(m map[string]any, maxLen int) string {
	if m == nil {
		return "{}"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return truncate(string(data), maxLen)
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
