package rdf

import (
	"sort"
	"strings"
)

// Triple is an RDF statement.
type Triple struct {
	S Term
	P Term
	O Term
}

// String returns the N-Triples line for the triple, without a trailing newline.
func (t Triple) String() string {
	return t.S.String() + " " + t.P.String() + " " + t.O.String() + " ."
}

// Quad is a triple in a named graph. An empty Graph is the default graph.
type Quad struct {
	Triple
	Graph string
}

// String returns the N-Quads line for the quad, without a trailing newline.
func (q Quad) String() string {
	if q.Graph == "" {
		return q.Triple.String()
	}
	g := NewIRI(q.Graph)
	if strings.HasPrefix(q.Graph, "_:") {
		g = NewBlank(q.Graph)
	}
	return q.S.String() + " " + q.P.String() + " " + q.O.String() + " " + g.String() + " ."
}

type index map[Term]map[Term]map[Term]struct{}

func (ix index) add(a, b, c Term) bool {
	m1, ok := ix[a]
	if !ok {
		m1 = make(map[Term]map[Term]struct{})
		ix[a] = m1
	}
	m2, ok := m1[b]
	if !ok {
		m2 = make(map[Term]struct{})
		m1[b] = m2
	}
	if _, exists := m2[c]; exists {
		return false
	}
	m2[c] = struct{}{}
	return true
}

func (ix index) remove(a, b, c Term) {
	m1, ok := ix[a]
	if !ok {
		return
	}
	m2, ok := m1[b]
	if !ok {
		return
	}
	delete(m2, c)
	if len(m2) == 0 {
		delete(m1, b)
	}
	if len(m1) == 0 {
		delete(ix, a)
	}
}

// Graph is an in-memory set of triples indexed by subject, predicate and
// object. The zero value is not usable; call NewGraph.
type Graph struct {
	spo      index
	pos      index
	osp      index
	size     int
	prefixes map[string]string
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		spo:      make(index),
		pos:      make(index),
		osp:      make(index),
		prefixes: make(map[string]string),
	}
}

// GraphOf returns a graph holding the given triples.
func GraphOf(triples ...Triple) *Graph {
	g := NewGraph()
	g.AddAll(triples)
	return g
}

// Add inserts a triple and reports whether it was new.
func (g *Graph) Add(t Triple) bool {
	if !g.spo.add(t.S, t.P, t.O) {
		return false
	}
	g.pos.add(t.P, t.O, t.S)
	g.osp.add(t.O, t.S, t.P)
	g.size++
	return true
}

// AddSPO is shorthand for Add(Triple{s, p, o}).
func (g *Graph) AddSPO(s, p, o Term) bool {
	return g.Add(Triple{S: s, P: p, O: o})
}

// AddAll inserts triples and returns the number that were new.
func (g *Graph) AddAll(triples []Triple) int {
	n := 0
	for _, t := range triples {
		if g.Add(t) {
			n++
		}
	}
	return n
}

// Merge adds every triple of other and returns the number that were new.
// Prefixes of other are adopted where g has none for the same name.
func (g *Graph) Merge(other *Graph) int {
	if other == nil {
		return 0
	}
	for p, ns := range other.prefixes {
		if _, ok := g.prefixes[p]; !ok {
			g.prefixes[p] = ns
		}
	}
	return g.AddAll(other.Triples())
}

// Remove deletes a triple if present.
func (g *Graph) Remove(t Triple) {
	if !g.Has(t) {
		return
	}
	g.spo.remove(t.S, t.P, t.O)
	g.pos.remove(t.P, t.O, t.S)
	g.osp.remove(t.O, t.S, t.P)
	g.size--
}

// Has reports whether the graph contains t.
func (g *Graph) Has(t Triple) bool {
	_, ok := g.spo[t.S][t.P][t.O]
	return ok
}

// Len returns the number of triples.
func (g *Graph) Len() int { return g.size }

// Match returns triples matching the pattern. A nil argument is a wildcard.
func (g *Graph) Match(s, p, o *Term) []Triple {
	var out []Triple
	g.ForEach(s, p, o, func(t Triple) bool {
		out = append(out, t)
		return true
	})
	return out
}

// ForEach calls fn for each triple matching the pattern until fn returns false.
func (g *Graph) ForEach(s, p, o *Term, fn func(Triple) bool) {
	switch {
	case s != nil:
		for pp, objs := range g.spo[*s] {
			if p != nil && pp != *p {
				continue
			}
			for oo := range objs {
				if o != nil && oo != *o {
					continue
				}
				if !fn(Triple{S: *s, P: pp, O: oo}) {
					return
				}
			}
		}
	case p != nil:
		for oo, subs := range g.pos[*p] {
			if o != nil && oo != *o {
				continue
			}
			for ss := range subs {
				if !fn(Triple{S: ss, P: *p, O: oo}) {
					return
				}
			}
		}
	case o != nil:
		for ss, preds := range g.osp[*o] {
			for pp := range preds {
				if !fn(Triple{S: ss, P: pp, O: *o}) {
					return
				}
			}
		}
	default:
		for ss, preds := range g.spo {
			for pp, objs := range preds {
				for oo := range objs {
					if !fn(Triple{S: ss, P: pp, O: oo}) {
						return
					}
				}
			}
		}
	}
}

// Triples returns all triples in a stable order.
func (g *Graph) Triples() []Triple {
	out := g.Match(nil, nil, nil)
	SortTriples(out)
	return out
}

// Objects returns the objects of triples with the given subject and predicate.
func (g *Graph) Objects(s, p Term) []Term {
	var out []Term
	for o := range g.spo[s][p] {
		out = append(out, o)
	}
	SortTerms(out)
	return out
}

// Object returns one object for s and p, if any.
func (g *Graph) Object(s, p Term) (Term, bool) {
	objs := g.Objects(s, p)
	if len(objs) == 0 {
		return Term{}, false
	}
	return objs[0], true
}

// Subjects returns the subjects of triples with the given predicate and object.
func (g *Graph) Subjects(p, o Term) []Term {
	var out []Term
	for s := range g.pos[p][o] {
		out = append(out, s)
	}
	SortTerms(out)
	return out
}

// AllSubjects returns every distinct subject.
func (g *Graph) AllSubjects() []Term {
	out := make([]Term, 0, len(g.spo))
	for s := range g.spo {
		out = append(out, s)
	}
	SortTerms(out)
	return out
}

// Predicates returns the distinct predicates used with subject s.
func (g *Graph) Predicates(s Term) []Term {
	var out []Term
	for p := range g.spo[s] {
		out = append(out, p)
	}
	SortTerms(out)
	return out
}

// HasType reports whether s has rdf:type class.
func (g *Graph) HasType(s Term, class string) bool {
	return g.Has(Triple{S: s, P: NewIRI(RDFType), O: NewIRI(class)})
}

// Clone returns a copy of the graph.
func (g *Graph) Clone() *Graph {
	c := NewGraph()
	for p, ns := range g.prefixes {
		c.prefixes[p] = ns
	}
	g.ForEach(nil, nil, nil, func(t Triple) bool {
		c.Add(t)
		return true
	})
	return c
}

// Difference returns the triples of g not present in other.
func (g *Graph) Difference(other *Graph) *Graph {
	d := NewGraph()
	g.ForEach(nil, nil, nil, func(t Triple) bool {
		if other == nil || !other.Has(t) {
			d.Add(t)
		}
		return true
	})
	return d
}

// Bind registers a namespace prefix used when serialising.
func (g *Graph) Bind(prefix, namespace string) {
	g.prefixes[prefix] = namespace
}

// Prefixes returns a copy of the bound namespace prefixes.
func (g *Graph) Prefixes() map[string]string {
	out := make(map[string]string, len(g.prefixes))
	for k, v := range g.prefixes {
		out[k] = v
	}
	return out
}

// List returns the members of an RDF collection starting at head.
func (g *Graph) List(head Term) []Term {
	var out []Term
	seen := make(map[Term]bool)
	first, rest := NewIRI(RDFFirst), NewIRI(RDFRest)
	for cur := head; !(cur.IsIRI() && cur.Value == RDFNil) && !cur.IsZero(); {
		if seen[cur] {
			break
		}
		seen[cur] = true
		v, ok := g.Object(cur, first)
		if !ok {
			break
		}
		out = append(out, v)
		next, ok := g.Object(cur, rest)
		if !ok {
			break
		}
		cur = next
	}
	return out
}

// SortTerms orders terms by kind then N-Triples form.
func SortTerms(ts []Term) {
	sort.Slice(ts, func(i, j int) bool { return CompareTerms(ts[i], ts[j]) < 0 })
}

// SortTriples orders triples by subject, predicate, object.
func SortTriples(ts []Triple) {
	sort.Slice(ts, func(i, j int) bool {
		if c := CompareTerms(ts[i].S, ts[j].S); c != 0 {
			return c < 0
		}
		if c := CompareTerms(ts[i].P, ts[j].P); c != 0 {
			return c < 0
		}
		return CompareTerms(ts[i].O, ts[j].O) < 0
	})
}

// CompareTerms orders blank nodes before IRIs before literals, then lexically.
func CompareTerms(a, b Term) int {
	if a.Kind != b.Kind {
		rank := func(k TermKind) int {
			switch k {
			case KindBlank:
				return 1
			case KindIRI:
				return 2
			case KindLiteral:
				return 3
			}
			return 0
		}
		if rank(a.Kind) < rank(b.Kind) {
			return -1
		}
		return 1
	}
	if c := strings.Compare(a.Value, b.Value); c != 0 {
		return c
	}
	if c := strings.Compare(a.Datatype, b.Datatype); c != 0 {
		return c
	}
	return strings.Compare(a.Lang, b.Lang)
}
