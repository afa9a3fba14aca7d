package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/google/uuid"

	"github.com/c360studio/semlink/vocabulary/semlink"
)

// GraphIngestSubject is the stream subject graph metadata is published on.
const GraphIngestSubject = "graph.ingest.entity"

const publishSource = "semlink.graph"

// GraphInfo describes a stored named graph.
type GraphInfo struct {
	ID          string
	Source      string
	Parent      string
	TripleCount int
	LoadedAt    time.Time
}

// GraphTriples returns the metadata triples for info.
func GraphTriples(info GraphInfo) []message.Triple {
	entityID := GraphEntityID(info.ID)
	triple := func(pred string, obj any) message.Triple {
		return message.Triple{
			Subject:    entityID,
			Predicate:  pred,
			Object:     obj,
			Source:     publishSource,
			Timestamp:  info.LoadedAt,
			Confidence: 1.0,
		}
	}

	triples := []message.Triple{
		triple(semlink.GraphTripleCount, info.TripleCount),
		triple(semlink.GraphLoadedAt, info.LoadedAt.Format(time.RFC3339)),
	}
	if info.Source != "" {
		triples = append(triples, triple(semlink.GraphSource, info.Source))
	}
	if info.Parent != "" {
		triples = append(triples, triple(semlink.GraphParent, info.Parent))
	}
	return triples
}

// PublishGraph publishes metadata for a stored graph. A nil client is a no-op.
func PublishGraph(ctx context.Context, nc *natsclient.Client, info GraphInfo) error {
	if nc == nil {
		return nil
	}
	payload := NewGraphPayload(info)
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("invalid graph entity: %w", err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal graph entity: %w", err)
	}
	if err := nc.PublishToStream(ctx, GraphIngestSubject, data); err != nil {
		return fmt.Errorf("publish graph entity: %w", err)
	}
	return nil
}

// GraphEntityID returns the entity id for a named graph.
// Format: semlink.local.graph.named.<uuid derived from the graph name>
func GraphEntityID(graphID string) string {
	return fmt.Sprintf("semlink.local.graph.named.%s", uuid.NewSHA1(uuid.NameSpaceURL, []byte(graphID)))
}
