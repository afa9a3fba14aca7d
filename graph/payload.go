package graph

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
)

func init() {
	err := component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "semlink",
		Category:    "graph",
		Version:     "v1",
		Description: "Metadata of a stored named RDF graph",
		Factory:     func() any { return &GraphPayload{} },
	})
	if err != nil {
		panic("failed to register GraphPayload: " + err.Error())
	}
}

// GraphType is the message type for named graph metadata payloads.
var GraphType = message.Type{Domain: "semlink", Category: "graph", Version: "v1"}

// GraphPayload implements message.Payload for named graph metadata.
type GraphPayload struct {
	EntityID_  string           `json:"id"`
	TripleData []message.Triple `json:"triples"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// NewGraphPayload builds the payload describing info.
func NewGraphPayload(info GraphInfo) *GraphPayload {
	if info.LoadedAt.IsZero() {
		info.LoadedAt = time.Now()
	}
	return &GraphPayload{
		EntityID_:  GraphEntityID(info.ID),
		TripleData: GraphTriples(info),
		UpdatedAt:  info.LoadedAt,
	}
}

func (p *GraphPayload) EntityID() string          { return p.EntityID_ }
func (p *GraphPayload) Triples() []message.Triple { return p.TripleData }
func (p *GraphPayload) Schema() message.Type      { return GraphType }

func (p *GraphPayload) Validate() error {
	if p.EntityID_ == "" {
		return errors.New("entity ID is required")
	}
	if len(p.TripleData) == 0 {
		return errors.New("graph metadata has no triples")
	}
	return nil
}

func (p *GraphPayload) MarshalJSON() ([]byte, error) {
	type Alias GraphPayload
	return json.Marshal((*Alias)(p))
}

func (p *GraphPayload) UnmarshalJSON(data []byte) error {
	type Alias GraphPayload
	return json.Unmarshal(data, (*Alias)(p))
}
