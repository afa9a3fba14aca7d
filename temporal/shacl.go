package temporal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/c360studio/semlink/reason"
)

// Integration combines a ReasonOver run with relation analysis of its patch.
type Integration struct {
	ShaclSummary     string           `json:"shacl_summary"`
	TemporalAnalysis *RelationsResult `json:"temporal_analysis"`
	CombinedJSONLD   json.RawMessage  `json:"combined_jsonld"`
}

// WithSHACL runs reason.ReasonOver over eventData with the given shapes or
// CONSTRUCT query and analyses the interval relations of the resulting
// patch.
func (r *Reasoner) WithSHACL(ctx context.Context, eventData, shapesTurtle, query string) (*Integration, error) {
	patch, summary, err := reason.ReasonOver(ctx, eventData, shapesTurtle, query)
	if err != nil {
		return nil, fmt.Errorf("reason over events: %w", err)
	}
	analysis, err := r.Reason(ctx, OpAnalyzeRelations, patch, nil)
	if err != nil {
		return nil, fmt.Errorf("analyze patch: %w", err)
	}
	return &Integration{
		ShaclSummary:     summary,
		TemporalAnalysis: analysis.(*RelationsResult),
		CombinedJSONLD:   json.RawMessage(patch),
	}, nil
}

// WithSHACL runs Reasoner.WithSHACL with a default Reasoner.
func WithSHACL(ctx context.Context, eventData, shapesTurtle, query string) (*Integration, error) {
	return New().WithSHACL(ctx, eventData, shapesTurtle, query)
}
