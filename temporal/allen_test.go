package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semlink/rdf"
)

func span(begin, end int) Interval {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return Interval{Begin: base.Add(time.Duration(begin) * time.Hour), End: base.Add(time.Duration(end) * time.Hour)}
}

func TestRelate(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want Relation
	}{
		{"before", span(0, 1), span(2, 3), Before},
		{"after", span(2, 3), span(0, 1), After},
		{"meets", span(0, 1), span(1, 2), Meets},
		{"met by", span(1, 2), span(0, 1), MetBy},
		{"overlaps", span(0, 2), span(1, 3), Overlaps},
		{"overlapped by", span(1, 3), span(0, 2), OverlappedBy},
		{"starts", span(0, 1), span(0, 3), Starts},
		{"started by", span(0, 3), span(0, 1), StartedBy},
		{"during", span(1, 2), span(0, 3), During},
		{"contains", span(0, 3), span(1, 2), Contains},
		{"finishes", span(2, 3), span(0, 3), Finishes},
		{"finished by", span(0, 3), span(2, 3), FinishedBy},
		{"equals", span(0, 3), span(0, 3), Equals},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Relate(tt.a, tt.b))
		})
	}
}

func TestInferRelations(t *testing.T) {
	g, err := rdf.ParseTurtle(`@prefix time: <http://www.w3.org/2006/time#> .
@prefix xsd: <http://www.w3.org/2001/XMLSchema#> .
@prefix ex: <http://example.org/> .

ex:i1 time:hasBeginning [ time:inXSDDateTime "2024-01-01T09:00:00Z"^^xsd:dateTime ] ;
      time:hasEnd [ time:inXSDDateTime "2024-01-01T11:00:00Z"^^xsd:dateTime ] .
ex:i2 time:hasBeginning [ time:inXSDDateTime "2024-01-01T10:00:00Z"^^xsd:dateTime ] ;
      time:hasEnd [ time:inXSDDateTimeStamp "2024-01-01T12:00:00Z"^^xsd:dateTimeStamp ] .
ex:open time:hasBeginning [ time:inXSDDateTime "2024-01-01T10:00:00Z"^^xsd:dateTime ] .
`)
	require.NoError(t, err)

	require.Len(t, Intervals(g), 2)
	assert.Equal(t, 2, InferRelations(g))
	assert.True(t, g.Has(rdf.Triple{S: rdf.NewIRI("http://example.org/i1"), P: rdf.NewIRI(Overlaps.IRI()), O: rdf.NewIRI("http://example.org/i2")}))
	assert.True(t, g.Has(rdf.Triple{S: rdf.NewIRI("http://example.org/i2"), P: rdf.NewIRI(OverlappedBy.IRI()), O: rdf.NewIRI("http://example.org/i1")}))
	assert.Zero(t, InferRelations(g), "relations are only added once")
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-01T09:00:00Z", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)},
		{"2024-01-01T09:00:00.5+01:00", time.Date(2024, 1, 1, 8, 0, 0, 5e8, time.UTC)},
		{"2024-01-01 09:00:00", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)},
		{"2024-01-01", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTime(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, err := ParseTime("not a time")
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00:00"},
		{3600, "1:00:00"},
		{5400.5, "1:30:00.500000"},
		{86400 + 7200, "1 day, 2:00:00"},
		{3 * 86400, "3 days, 0:00:00"},
		{-3600, "-1 day, 23:00:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.seconds), "seconds=%v", tt.seconds)
	}
}
