package knowledge

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNoVocabulary is returned when a vocabulary tool runs before one
	// was loaded.
	ErrNoVocabulary = errors.New("no vocabulary loaded, load a vocabulary first")

	// ErrNoDataset is returned when a dataset tool runs before one was
	// loaded.
	ErrNoDataset = errors.New("no dataset loaded, load a dataset first")
)

// Finding is one observation recorded while exploring linked data.
type Finding struct {
	Topic       string    `json:"topic"`
	Observation string    `json:"observation"`
	Source      string    `json:"source,omitempty"`
	Importance  string    `json:"importance"`
	Timestamp   time.Time `json:"timestamp"`
}

// Session holds the vocabulary and dataset an agent is working with and
// the findings it has collected. All access goes through the session lock.
type Session struct {
	mu       sync.Mutex
	opts     []Option
	vocab    *Base
	dataset  *Base
	findings []Finding
	now      func() time.Time
}

// NewSession creates an empty session. opts apply to every Base it
// creates.
func NewSession(opts ...Option) *Session {
	return &Session{opts: opts, now: time.Now}
}

// LoadVocabulary replaces the session vocabulary with data. A nil data
// starts an empty vocabulary.
func (s *Session) LoadVocabulary(data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vocab = New(data, s.opts...)
}

// LoadDataset replaces the session dataset with data.
func (s *Session) LoadDataset(data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataset = New(data, s.opts...)
}

// Vocabulary runs fn on the vocabulary.
func (s *Session) Vocabulary(fn func(*Base) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vocab == nil {
		return ErrNoVocabulary
	}
	return fn(s.vocab)
}

// UpdateVocabulary runs fn on the vocabulary, creating an empty one first
// if none is loaded. The vocabulary is kept only when fn succeeds.
func (s *Session) UpdateVocabulary(fn func(*Base) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.vocab
	if b == nil {
		b = New(nil, s.opts...)
	}
	if err := fn(b); err != nil {
		return err
	}
	s.vocab = b
	return nil
}

// Dataset runs fn on the dataset.
func (s *Session) Dataset(fn func(*Base) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dataset == nil {
		return ErrNoDataset
	}
	return fn(s.dataset)
}

// CollectEvidence records a finding and returns the number collected so
// far. Importance defaults to "medium".
func (s *Session) CollectEvidence(topic, observation, source, importance string) int {
	if importance == "" {
		importance = "medium"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findings = append(s.findings, Finding{
		Topic:       topic,
		Observation: observation,
		Source:      source,
		Importance:  importance,
		Timestamp:   s.now(),
	})
	return len(s.findings)
}

// Findings returns the collected findings whose topic contains topic,
// case-insensitively; all of them when topic is empty.
func (s *Session) Findings(topic string) []Finding {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Finding
	for _, f := range s.findings {
		if topic == "" || strings.Contains(strings.ToLower(f.Topic), strings.ToLower(topic)) {
			out = append(out, f)
		}
	}
	return out
}

// SummarizeEvidence renders the findings for topic: high-importance items
// first, then every finding grouped by topic in collection order.
func (s *Session) SummarizeEvidence(topic string) string {
	s.mu.Lock()
	empty := len(s.findings) == 0
	s.mu.Unlock()
	if empty {
		return "No evidence has been collected yet."
	}
	items := s.Findings(topic)
	if len(items) == 0 {
		return fmt.Sprintf("No evidence found for topic '%s'.", topic)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Evidence Collection Summary (%d items)\n\n", len(items))

	var topics []string
	byTopic := map[string][]Finding{}
	var high []Finding
	for _, f := range items {
		if _, ok := byTopic[f.Topic]; !ok {
			topics = append(topics, f.Topic)
		}
		byTopic[f.Topic] = append(byTopic[f.Topic], f)
		if f.Importance == "high" {
			high = append(high, f)
		}
	}
	if len(high) > 0 {
		sb.WriteString("## Key Findings\n")
		for _, f := range high {
			fmt.Fprintf(&sb, "- **%s**: %s\n", f.Topic, f.Observation)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Detailed Findings by Topic\n\n")
	for _, t := range topics {
		fmt.Fprintf(&sb, "### %s (%d findings)\n", t, len(byTopic[t]))
		for _, f := range byTopic[t] {
			sb.WriteString("- " + f.Observation)
			if f.Source != "" {
				fmt.Fprintf(&sb, " (Source: %s)", f.Source)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("## Relationships Between Topics\n")
	sb.WriteString("Consider how these topics relate to each other to form a complete data model.\n\n")
	return sb.String()
}
