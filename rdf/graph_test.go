package rdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ex(local string) Term { return NewIRI("http://example.org/" + local) }

func TestGraph_AddIsSetSemantics(t *testing.T) {
	g := NewGraph()
	assert.True(t, g.AddSPO(ex("s"), ex("p"), NewLiteral("o")))
	assert.False(t, g.AddSPO(ex("s"), ex("p"), NewLiteral("o")))
	assert.Equal(t, 1, g.Len())
}

func TestGraph_Match(t *testing.T) {
	g := GraphOf(
		Triple{ex("alice"), ex("knows"), ex("bob")},
		Triple{ex("alice"), ex("name"), NewLiteral("Alice")},
		Triple{ex("bob"), ex("name"), NewLiteral("Bob")},
	)

	tests := []struct {
		name    string
		s, p, o *Term
		want    int
	}{
		{"all", nil, nil, nil, 3},
		{"by subject", ptr(ex("alice")), nil, nil, 2},
		{"by predicate", nil, ptr(ex("name")), nil, 2},
		{"by object", nil, nil, ptr(ex("bob")), 1},
		{"subject and predicate", ptr(ex("alice")), ptr(ex("name")), nil, 1},
		{"predicate and object", nil, ptr(ex("name")), ptr(NewLiteral("Bob")), 1},
		{"no match", ptr(ex("carol")), nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, g.Match(tt.s, tt.p, tt.o), tt.want)
		})
	}
}

func TestGraph_RemoveAndDifference(t *testing.T) {
	a := GraphOf(
		Triple{ex("s"), ex("p"), ex("o1")},
		Triple{ex("s"), ex("p"), ex("o2")},
	)
	b := a.Clone()
	b.Remove(Triple{ex("s"), ex("p"), ex("o1")})

	assert.Equal(t, 1, b.Len())
	diff := a.Difference(b)
	require.Equal(t, 1, diff.Len())
	assert.True(t, diff.Has(Triple{ex("s"), ex("p"), ex("o1")}))
	assert.Empty(t, b.Match(nil, nil, ptr(ex("o1"))))
}

func TestGraph_List(t *testing.T) {
	g := NewGraph()
	n1, n2 := NewBlank("l1"), NewBlank("l2")
	g.AddSPO(n1, NewIRI(RDFFirst), NewLiteral("a"))
	g.AddSPO(n1, NewIRI(RDFRest), n2)
	g.AddSPO(n2, NewIRI(RDFFirst), NewLiteral("b"))
	g.AddSPO(n2, NewIRI(RDFRest), NewIRI(RDFNil))

	assert.Equal(t, []Term{NewLiteral("a"), NewLiteral("b")}, g.List(n1))
}

func TestTerm_String(t *testing.T) {
	tests := []struct {
		term Term
		want string
	}{
		{NewIRI("http://example.org/a"), "<http://example.org/a>"},
		{NewBlank("_:b1"), "_:b1"},
		{NewLiteral("hi \"there\"\n"), `"hi \"there\"\n"`},
		{NewLangLiteral("chat", "FR"), `"chat"@fr`},
		{NewInteger(42), `"42"^^<http://www.w3.org/2001/XMLSchema#integer>`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.term.String())
	}
}

func TestTerm_Numeric(t *testing.T) {
	f, ok := NewTypedLiteral("3.5", XSDDecimal).Float()
	require.True(t, ok)
	assert.Equal(t, 3.5, f)

	_, ok = NewLiteral("3.5").Float()
	assert.False(t, ok)
	assert.True(t, NewTypedLiteral("7", XSDNS+"nonNegativeInteger").IsNumeric())
}

func TestDataset_NamedGraphs(t *testing.T) {
	ds := NewDataset()
	ds.AddQuad(Quad{Triple: Triple{ex("s"), ex("p"), ex("o")}})
	ds.AddQuad(Quad{Triple: Triple{ex("s"), ex("p"), ex("o")}, Graph: "http://example.org/g"})

	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, []string{"http://example.org/g"}, ds.Names())
	assert.Equal(t, 1, ds.Union().Len())
}

func TestLocalName(t *testing.T) {
	assert.Equal(t, "Person", LocalName("https://schema.org/Person"))
	assert.Equal(t, "type", LocalName(RDFType))
	assert.Equal(t, "urn:x", LocalName("urn:x"))
}

func ptr(t Term) *Term { return &t }
