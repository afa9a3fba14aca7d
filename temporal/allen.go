// Package temporal infers Allen interval relations between events and
// answers questions about their timing and participants.
//
// Events are RDF resources typed event:Event whose event:hasTimeInterval
// points at an OWL-Time interval:
//
//	ex:launch a event:Event ;
//	    rdfs:label "Launch" ;
//	    event:hasTimeInterval [
//	        time:hasBeginning [ time:inXSDDateTime "2024-01-01T09:00:00Z"^^xsd:dateTime ] ;
//	        time:hasEnd [ time:inXSDDateTime "2024-01-01T10:00:00Z"^^xsd:dateTime ]
//	    ] .
//
// InferRelations links every pair of intervals with the temp: relation that
// holds between them.
package temporal

import (
	"sort"
	"time"

	"github.com/araddon/dateparse"

	"github.com/c360studio/semlink/rdf"
	"github.com/c360studio/semlink/vocabulary/semlink"
)

// Relation is one of the thirteen Allen interval relations.
type Relation string

// Allen relations, named by their local name in the temp: namespace.
const (
	Before       Relation = "before"
	After        Relation = "after"
	Meets        Relation = "meets"
	MetBy        Relation = "metBy"
	Overlaps     Relation = "overlaps"
	OverlappedBy Relation = "overlappedBy"
	Starts       Relation = "starts"
	StartedBy    Relation = "startedBy"
	During       Relation = "during"
	Contains     Relation = "contains"
	Finishes     Relation = "finishes"
	FinishedBy   Relation = "finishedBy"
	Equals       Relation = "equals"
)

// IRI returns the relation IRI.
func (r Relation) IRI() string { return semlink.TemporalNamespace + string(r) }

var (
	timeHasBeginning       = rdf.NewIRI(rdf.TimeNS + "hasBeginning")
	timeHasEnd             = rdf.NewIRI(rdf.TimeNS + "hasEnd")
	timeInXSDDateTime      = rdf.NewIRI(rdf.TimeNS + "inXSDDateTime")
	timeInXSDDateTimeStamp = rdf.NewIRI(rdf.TimeNS + "inXSDDateTimeStamp")
)

// Interval is a time interval with known bounds.
type Interval struct {
	Node  rdf.Term
	Begin time.Time
	End   time.Time
}

// Relate returns the Allen relation of a to b.
func Relate(a, b Interval) Relation {
	switch {
	case a.Begin.Equal(b.Begin) && a.End.Equal(b.End):
		return Equals
	case a.End.Before(b.Begin):
		return Before
	case a.Begin.After(b.End):
		return After
	case a.End.Equal(b.Begin):
		return Meets
	case a.Begin.Equal(b.End):
		return MetBy
	case a.Begin.Equal(b.Begin):
		if a.End.Before(b.End) {
			return Starts
		}
		return StartedBy
	case a.End.Equal(b.End):
		if a.Begin.After(b.Begin) {
			return Finishes
		}
		return FinishedBy
	case a.Begin.After(b.Begin) && a.End.Before(b.End):
		return During
	case a.Begin.Before(b.Begin) && a.End.After(b.End):
		return Contains
	case a.Begin.Before(b.Begin):
		return Overlaps
	}
	return OverlappedBy
}

// Intervals returns the intervals of g that have both a beginning and an
// end instant with a parseable time:inXSDDateTime, ordered by beginning.
func Intervals(g *rdf.Graph) []Interval {
	var out []Interval
	seen := make(map[rdf.Term]bool)
	g.ForEach(nil, &timeHasBeginning, nil, func(t rdf.Triple) bool {
		if seen[t.S] {
			return true
		}
		seen[t.S] = true
		begin, ok := instantTime(g, t.O)
		if !ok {
			return true
		}
		endNode, ok := g.Object(t.S, timeHasEnd)
		if !ok {
			return true
		}
		end, ok := instantTime(g, endNode)
		if !ok || end.Before(begin) {
			return true
		}
		out = append(out, Interval{Node: t.S, Begin: begin, End: end})
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Begin.Equal(out[j].Begin) {
			return out[i].Begin.Before(out[j].Begin)
		}
		return rdf.CompareTerms(out[i].Node, out[j].Node) < 0
	})
	return out
}

func instantTime(g *rdf.Graph, instant rdf.Term) (time.Time, bool) {
	for _, p := range []rdf.Term{timeInXSDDateTime, timeInXSDDateTimeStamp} {
		if v, ok := g.Object(instant, p); ok {
			t, err := ParseTime(v.Value)
			return t, err == nil
		}
	}
	return time.Time{}, false
}

// ParseTime parses an xsd:dateTime or any common timestamp layout. Times
// without a zone are read as UTC.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return dateparse.ParseIn(s, time.UTC)
}

// InferRelations adds a temp: relation triple for every ordered pair of
// distinct intervals in g and returns the number of triples added.
func InferRelations(g *rdf.Graph) int {
	intervals := Intervals(g)
	added := 0
	for i, a := range intervals {
		for j, b := range intervals {
			if i == j {
				continue
			}
			rel := rdf.NewIRI(Relate(a, b).IRI())
			if g.AddSPO(a.Node, rel, b.Node) {
				added++
			}
		}
	}
	return added
}
