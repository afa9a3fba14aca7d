package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go/jetstream"
)

// ToolCallsBucket is the KV bucket that tool call records are stored in.
const ToolCallsBucket = "SEMLINK_TOOL_CALLS"

// DefaultToolCallsTTL is how long records are kept (7 days).
const DefaultToolCallsTTL = 7 * 24 * time.Hour

// CallRecord is one tool execution.
type CallRecord struct {
	CallID      string    `json:"call_id"`
	ToolName    string    `json:"tool_name"`
	Parameters  string    `json:"parameters"` // JSON, truncated
	Result      string    `json:"result"`     // truncated
	Status      string    `json:"status"`     // "success" or "error"
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
}

// Key is the KV key of the record: tool name, then call ID. The dot lets
// callers list every call of one tool by prefix.
func (r *CallRecord) Key() string {
	return r.ToolName + "." + r.CallID
}

// CallRecorder persists tool call records.
type CallRecorder interface {
	Store(ctx context.Context, record *CallRecord) error
}

// ToolCallStore keeps tool call records in a NATS KV bucket.
type ToolCallStore struct {
	bucket jetstream.KeyValue
	ttl    time.Duration
	logger *slog.Logger
}

// ToolCallStoreOption configures a ToolCallStore.
type ToolCallStoreOption func(*ToolCallStore)

// WithToolCallsTTL sets the TTL of stored records.
func WithToolCallsTTL(ttl time.Duration) ToolCallStoreOption {
	return func(s *ToolCallStore) {
		s.ttl = ttl
	}
}

// WithToolCallStoreLogger sets the logger.
func WithToolCallStoreLogger(logger *slog.Logger) ToolCallStoreOption {
	return func(s *ToolCallStore) {
		s.logger = logger
	}
}

// NewToolCallStore creates or updates the bucket and returns the store.
func NewToolCallStore(ctx context.Context, nc *natsclient.Client, opts ...ToolCallStoreOption) (*ToolCallStore, error) {
	if nc == nil {
		return nil, fmt.Errorf("NATS client required")
	}

	s := &ToolCallStore{
		ttl:    DefaultToolCallsTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("get jetstream: %w", err)
	}

	bucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      ToolCallsBucket,
		Description: "semlink tool call records",
		TTL:         s.ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("create/update kv bucket: %w", err)
	}
	s.bucket = bucket
	return s, nil
}

// Store saves a record under its Key.
func (s *ToolCallStore) Store(ctx context.Context, record *CallRecord) error {
	if record.CallID == "" {
		return fmt.Errorf("call_id is required")
	}
	if record.ToolName == "" {
		return fmt.Errorf("tool_name is required")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if _, err := s.bucket.Put(ctx, record.Key(), data); err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

// Get returns the record stored under key.
func (s *ToolCallStore) Get(ctx context.Context, key string) (*CallRecord, error) {
	entry, err := s.bucket.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}

	var record CallRecord
	if err := json.Unmarshal(entry.Value(), &record); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &record, nil
}

// ByTool returns every record of one tool, oldest first.
func (s *ToolCallStore) ByTool(ctx context.Context, tool string) ([]*CallRecord, error) {
	if tool == "" {
		return nil, fmt.Errorf("tool name is required")
	}
	return s.list(ctx, tool+".")
}

// All returns every record, oldest first.
func (s *ToolCallStore) All(ctx context.Context) ([]*CallRecord, error) {
	return s.list(ctx, "")
}

func (s *ToolCallStore) list(ctx context.Context, prefix string) ([]*CallRecord, error) {
	keys, err := s.bucket.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return []*CallRecord{}, nil
		}
		return nil, fmt.Errorf("list keys: %w", err)
	}

	records := []*CallRecord{}
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entry, err := s.bucket.Get(ctx, key)
		if err != nil {
			// Keys may expire or be deleted while listing.
			if !errors.Is(err, jetstream.ErrKeyDeleted) && !errors.Is(err, jetstream.ErrKeyNotFound) {
				s.logger.Warn("Failed to get tool call record", "key", key, "error", err)
			}
			continue
		}
		var record CallRecord
		if err := json.Unmarshal(entry.Value(), &record); err != nil {
			s.logger.Warn("Failed to unmarshal tool call record", "key", key, "error", err)
			continue
		}
		records = append(records, &record)
	}

	SortByStartTime(records)
	return records, nil
}

// Delete removes the record stored under key.
func (s *ToolCallStore) Delete(ctx context.Context, key string) error {
	return s.bucket.Delete(ctx, key)
}

// SortByStartTime sorts records chronologically.
func SortByStartTime(records []*CallRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
}
