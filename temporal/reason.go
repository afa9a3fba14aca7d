package temporal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/piprate/json-gold/ld"

	"github.com/c360studio/semlink/rdf"
	"github.com/c360studio/semlink/sparql"
	"github.com/c360studio/semlink/vocabulary/semlink"
)

// Operations understood by Reason.
const (
	OpAnalyzeRelations  = "analyze_relations"
	OpCalculateDuration = "calculate_duration"
	OpCheckOverlap      = "check_overlap"
	OpFindParticipants  = "find_participants"
)

// Operations lists the supported operations.
var Operations = []string{OpAnalyzeRelations, OpCalculateDuration, OpCheckOverlap, OpFindParticipants}

var (
	// ErrUnknownOperation is returned for an operation not in Operations.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrInvalidData is returned when the event data is not valid JSON-LD.
	ErrInvalidData = errors.New("invalid JSON-LD data")
)

// RelationFact is one inferred relation between two events.
type RelationFact struct {
	Event1     string `json:"event1"`
	Event1Name string `json:"event1Name"`
	Relation   string `json:"relation"`
	Event2     string `json:"event2"`
	Event2Name string `json:"event2Name"`
}

// RelationsResult is the result of analyze_relations.
type RelationsResult struct {
	Operation string         `json:"operation"`
	Relations []RelationFact `json:"relations"`
	Count     int            `json:"count"`
}

// Duration describes the span of one event.
type Duration struct {
	EventID           string   `json:"eventId"`
	EventName         string   `json:"eventName"`
	StartTime         string   `json:"startTime"`
	EndTime           *string  `json:"endTime"`
	DurationSeconds   *float64 `json:"durationSeconds"`
	DurationFormatted string   `json:"durationFormatted"`
}

// DurationsResult is the result of calculate_duration.
type DurationsResult struct {
	Operation string     `json:"operation"`
	Durations []Duration `json:"durations"`
	Count     int        `json:"count"`
}

// Overlap is a pair of events whose intervals share time.
type Overlap struct {
	Event1     string `json:"event1"`
	Event1Name string `json:"event1Name"`
	Event2     string `json:"event2"`
	Event2Name string `json:"event2Name"`
}

// OverlapResult is the result of check_overlap.
type OverlapResult struct {
	Operation   string    `json:"operation"`
	Overlaps    []Overlap `json:"overlaps"`
	HasOverlaps bool      `json:"hasOverlaps"`
	Count       int       `json:"count"`
}

// Participant is one participant of an event.
type Participant struct {
	ParticipantID   string  `json:"participantId"`
	ParticipantName *string `json:"participantName"`
	Role            *string `json:"role"`
}

// EventParticipants groups the participants of one event.
type EventParticipants struct {
	EventID      string        `json:"eventId"`
	EventName    string        `json:"eventName"`
	Participants []Participant `json:"participants"`
}

// ParticipantsResult is the result of find_participants.
type ParticipantsResult struct {
	Operation string              `json:"operation"`
	Events    []EventParticipants `json:"events"`
	Count     int                 `json:"count"`
}

// Reasoner runs temporal operations over JSON-LD event data.
type Reasoner struct {
	loader ld.DocumentLoader
	logger *slog.Logger
}

// Option configures a Reasoner.
type Option func(*Reasoner)

// WithDocumentLoader resolves remote JSON-LD contexts in event data.
func WithDocumentLoader(loader ld.DocumentLoader) Option {
	return func(r *Reasoner) {
		r.loader = loader
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reasoner) {
		r.logger = logger
	}
}

// New creates a Reasoner.
func New(opts ...Option) *Reasoner {
	r := &Reasoner{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reason parses eventData, infers interval relations and runs operation.
// params may restrict the output:
//
//   - "relation": analyze_relations keeps only this relation name
//   - "event": other operations keep only rows involving this event IRI
func (r *Reasoner) Reason(ctx context.Context, operation, eventData string, params map[string]any) (any, error) {
	ds, err := rdf.ParseJSONLD(eventData, &rdf.ParseOptions{DocumentLoader: r.loader})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	g := ds.Union()
	n := InferRelations(g)
	r.logger.Debug("Inferred temporal relations", "triples", n, "operation", operation)

	switch operation {
	case OpAnalyzeRelations:
		return analyzeRelations(ctx, g, stringParam(params, "relation"))
	case OpCalculateDuration:
		return calculateDurations(ctx, g, stringParam(params, "event"))
	case OpCheckOverlap:
		return checkOverlap(ctx, g, stringParam(params, "event"))
	case OpFindParticipants:
		return findParticipants(ctx, g, stringParam(params, "event"))
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, operation)
}

// ReasonJSON runs Reason and encodes the result, reporting failures as
// {"error": "..."}.
func (r *Reasoner) ReasonJSON(ctx context.Context, operation, eventData string, params map[string]any) string {
	res, err := r.Reason(ctx, operation, eventData, params)
	if err != nil {
		return errorJSON(err)
	}
	b, err := json.Marshal(res)
	if err != nil {
		return errorJSON(err)
	}
	return string(b)
}

// Reason runs operation with a default Reasoner.
func Reason(ctx context.Context, operation, eventData string, params map[string]any) (any, error) {
	return New().Reason(ctx, operation, eventData, params)
}

func errorJSON(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(b)
}

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

const eventPrologue = `PREFIX event: <` + semlink.EventNamespace + `>
PREFIX temp: <` + semlink.TemporalNamespace + `>
PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>
PREFIX time: <http://www.w3.org/2006/time#>
`

const relationsQuery = eventPrologue + `
SELECT ?event1 ?event1Label ?relation ?event2 ?event2Label
WHERE {
    ?event1 a event:Event ;
            rdfs:label ?event1Label ;
            event:hasTimeInterval ?interval1 .
    ?interval1 ?relation ?interval2 .
    ?event2 a event:Event ;
            rdfs:label ?event2Label ;
            event:hasTimeInterval ?interval2 .
    FILTER(STRSTARTS(STR(?relation), '` + semlink.TemporalNamespace + `'))
    FILTER(?event1 != ?event2)
}
ORDER BY ?event1 ?relation ?event2`

func analyzeRelations(ctx context.Context, g *rdf.Graph, only string) (*RelationsResult, error) {
	res, err := sparql.ExecGraph(ctx, g, relationsQuery)
	if err != nil {
		return nil, fmt.Errorf("analyze relations: %w", err)
	}
	out := &RelationsResult{Operation: OpAnalyzeRelations, Relations: []RelationFact{}}
	for _, row := range res.Solutions {
		name := strings.TrimPrefix(row["relation"].Value, semlink.TemporalNamespace)
		if only != "" && name != only {
			continue
		}
		out.Relations = append(out.Relations, RelationFact{
			Event1:     row["event1"].Value,
			Event1Name: row["event1Label"].Value,
			Relation:   name,
			Event2:     row["event2"].Value,
			Event2Name: row["event2Label"].Value,
		})
	}
	out.Count = len(out.Relations)
	return out, nil
}

const durationsQuery = eventPrologue + `
SELECT ?event ?eventLabel ?start ?end
WHERE {
    ?event a event:Event ;
           rdfs:label ?eventLabel ;
           event:hasTimeInterval ?interval .
    ?interval time:hasBeginning/time:inXSDDateTime ?start .
    OPTIONAL { ?interval time:hasEnd/time:inXSDDateTime ?end . }
}
ORDER BY ?start ?event`

func calculateDurations(ctx context.Context, g *rdf.Graph, event string) (*DurationsResult, error) {
	res, err := sparql.ExecGraph(ctx, g, durationsQuery)
	if err != nil {
		return nil, fmt.Errorf("calculate durations: %w", err)
	}
	out := &DurationsResult{Operation: OpCalculateDuration, Durations: []Duration{}}
	for _, row := range res.Solutions {
		if event != "" && row["event"].Value != event {
			continue
		}
		d := Duration{
			EventID:   row["event"].Value,
			EventName: row["eventLabel"].Value,
			StartTime: row["start"].Value,
		}
		end, ok := row["end"]
		if !ok {
			d.DurationFormatted = "Unknown (no end time)"
			out.Durations = append(out.Durations, d)
			continue
		}
		endValue := end.Value
		d.EndTime = &endValue

		start, err1 := ParseTime(d.StartTime)
		stop, err2 := ParseTime(endValue)
		if err := errors.Join(err1, err2); err != nil {
			d.DurationFormatted = "Error: " + err.Error()
		} else {
			secs := stop.Sub(start).Seconds()
			d.DurationSeconds = &secs
			d.DurationFormatted = FormatDuration(secs)
		}
		out.Durations = append(out.Durations, d)
	}
	out.Count = len(out.Durations)
	return out, nil
}

// FormatDuration renders seconds as [D day[s], ]H:MM:SS[.ffffff].
// Negative spans borrow whole days, so -3600 is "-1 day, 23:00:00".
func FormatDuration(seconds float64) string {
	micros := int64(math.Round(seconds * 1e6))
	const perDay = int64(86400 * 1e6)
	days := micros / perDay
	rem := micros % perDay
	if rem < 0 {
		days--
		rem += perDay
	}
	secs := rem / 1e6
	frac := rem % 1e6

	s := fmt.Sprintf("%d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
	if frac != 0 {
		s += fmt.Sprintf(".%06d", frac)
	}
	switch {
	case days == 1 || days == -1:
		s = fmt.Sprintf("%d day, %s", days, s)
	case days != 0:
		s = fmt.Sprintf("%d days, %s", days, s)
	}
	return s
}

const overlapQuery = eventPrologue + `
SELECT DISTINCT ?event1 ?event1Label ?event2 ?event2Label
WHERE {
    ?event1 a event:Event ;
            rdfs:label ?event1Label ;
            event:hasTimeInterval ?interval1 .
    ?event2 a event:Event ;
            rdfs:label ?event2Label ;
            event:hasTimeInterval ?interval2 .
    { ?interval1 temp:overlaps ?interval2 . }
    UNION { ?interval1 temp:contains ?interval2 . }
    UNION { ?interval1 temp:during ?interval2 . }
    FILTER(?event1 != ?event2)
}
ORDER BY ?event1 ?event2`

func checkOverlap(ctx context.Context, g *rdf.Graph, event string) (*OverlapResult, error) {
	res, err := sparql.ExecGraph(ctx, g, overlapQuery)
	if err != nil {
		return nil, fmt.Errorf("check overlap: %w", err)
	}
	out := &OverlapResult{Operation: OpCheckOverlap, Overlaps: []Overlap{}}
	for _, row := range res.Solutions {
		if event != "" && row["event1"].Value != event && row["event2"].Value != event {
			continue
		}
		out.Overlaps = append(out.Overlaps, Overlap{
			Event1:     row["event1"].Value,
			Event1Name: row["event1Label"].Value,
			Event2:     row["event2"].Value,
			Event2Name: row["event2Label"].Value,
		})
	}
	out.Count = len(out.Overlaps)
	out.HasOverlaps = out.Count > 0
	return out, nil
}

const participantsQuery = eventPrologue + `
SELECT ?event ?eventLabel ?participant ?participantName ?role
WHERE {
    ?event a event:Event ;
           rdfs:label ?eventLabel ;
           event:hasParticipant ?participant .
    OPTIONAL { ?participant rdfs:label ?participantName . }
    OPTIONAL { ?participant event:hasRole ?role . }
}
ORDER BY ?event ?participant`

func findParticipants(ctx context.Context, g *rdf.Graph, event string) (*ParticipantsResult, error) {
	res, err := sparql.ExecGraph(ctx, g, participantsQuery)
	if err != nil {
		return nil, fmt.Errorf("find participants: %w", err)
	}
	out := &ParticipantsResult{Operation: OpFindParticipants, Events: []EventParticipants{}}
	index := make(map[string]int)
	for _, row := range res.Solutions {
		id := row["event"].Value
		if event != "" && id != event {
			continue
		}
		i, ok := index[id]
		if !ok {
			i = len(out.Events)
			index[id] = i
			out.Events = append(out.Events, EventParticipants{
				EventID:      id,
				EventName:    row["eventLabel"].Value,
				Participants: []Participant{},
			})
		}
		p := Participant{ParticipantID: row["participant"].Value}
		if v, ok := row["participantName"]; ok {
			p.ParticipantName = &v.Value
		}
		if v, ok := row["role"]; ok {
			p.Role = &v.Value
		}
		out.Events[i].Participants = append(out.Events[i].Participants, p)
	}
	out.Count = len(out.Events)
	return out, nil
}
