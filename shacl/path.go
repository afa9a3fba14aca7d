package shacl

import (
	"fmt"
	"strings"

	"github.com/c360studio/semlink/rdf"
)

// Path is a SHACL property path.
type Path interface {
	// Values returns the nodes reachable from focus in g.
	Values(g *rdf.Graph, focus rdf.Term) []rdf.Term
	// String renders the path in SPARQL property path syntax.
	String() string
}

type predicatePath struct{ p rdf.Term }

type inversePath struct{ path Path }

type sequencePath struct{ steps []Path }

type alternativePath struct{ alts []Path }

type repeatPath struct {
	path      Path
	min       int
	unbounded bool
}

// Predicate returns the IRI of a simple predicate path.
func Predicate(p Path) (rdf.Term, bool) {
	pp, ok := p.(predicatePath)
	return pp.p, ok
}

func (p predicatePath) Values(g *rdf.Graph, focus rdf.Term) []rdf.Term {
	return g.Objects(focus, p.p)
}

func (p predicatePath) String() string { return p.p.String() }

func (p inversePath) Values(g *rdf.Graph, focus rdf.Term) []rdf.Term {
	if pp, ok := p.path.(predicatePath); ok {
		return g.Subjects(pp.p, focus)
	}
	// Complex inverse paths: scan candidates whose forward values reach focus.
	var out []rdf.Term
	for _, s := range allNodes(g) {
		for _, v := range p.path.Values(g, s) {
			if v == focus {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func (p inversePath) String() string { return "^" + group(p.path) }

func (p sequencePath) Values(g *rdf.Graph, focus rdf.Term) []rdf.Term {
	current := []rdf.Term{focus}
	for _, step := range p.steps {
		next := newTermSet()
		for _, n := range current {
			next.addAll(step.Values(g, n))
		}
		current = next.list()
	}
	return current
}

func (p sequencePath) String() string {
	parts := make([]string, len(p.steps))
	for i, s := range p.steps {
		parts[i] = group(s)
	}
	return strings.Join(parts, "/")
}

func (p alternativePath) Values(g *rdf.Graph, focus rdf.Term) []rdf.Term {
	set := newTermSet()
	for _, a := range p.alts {
		set.addAll(a.Values(g, focus))
	}
	return set.list()
}

func (p alternativePath) String() string {
	parts := make([]string, len(p.alts))
	for i, a := range p.alts {
		parts[i] = group(a)
	}
	return strings.Join(parts, "|")
}

func (p repeatPath) Values(g *rdf.Graph, focus rdf.Term) []rdf.Term {
	set := newTermSet()
	if p.min == 0 {
		set.add(focus)
	}
	frontier := []rdf.Term{focus}
	visited := map[rdf.Term]bool{focus: true}
	for len(frontier) > 0 {
		var next []rdf.Term
		for _, n := range frontier {
			for _, v := range p.path.Values(g, n) {
				set.add(v)
				if !visited[v] {
					visited[v] = true
					next = append(next, v)
				}
			}
		}
		if !p.unbounded {
			break
		}
		frontier = next
	}
	return set.list()
}

func (p repeatPath) String() string {
	switch {
	case p.unbounded && p.min == 0:
		return group(p.path) + "*"
	case p.unbounded:
		return group(p.path) + "+"
	}
	return group(p.path) + "?"
}

func group(p Path) string {
	switch p.(type) {
	case predicatePath:
		return p.String()
	}
	return "(" + p.String() + ")"
}

// parsePath reads the path rooted at node in the shapes graph.
func parsePath(g *rdf.Graph, node rdf.Term) (Path, error) {
	return parsePathDepth(g, node, 0)
}

func parsePathDepth(g *rdf.Graph, node rdf.Term, depth int) (Path, error) {
	if depth > 32 {
		return nil, fmt.Errorf("path %s: nested too deeply", node)
	}
	if node.IsIRI() {
		return predicatePath{p: node}, nil
	}
	if !node.IsBlank() {
		return nil, fmt.Errorf("path %s: must be an IRI or blank node", node)
	}

	if _, ok := g.Object(node, iri(rdf.RDFFirst)); ok {
		members := g.List(node)
		if len(members) < 2 {
			return nil, fmt.Errorf("sequence path %s: needs at least two members", node)
		}
		steps := make([]Path, 0, len(members))
		for _, m := range members {
			s, err := parsePathDepth(g, m, depth+1)
			if err != nil {
				return nil, err
			}
			steps = append(steps, s)
		}
		return sequencePath{steps: steps}, nil
	}
	if v, ok := g.Object(node, iri(shInversePath)); ok {
		inner, err := parsePathDepth(g, v, depth+1)
		if err != nil {
			return nil, err
		}
		return inversePath{path: inner}, nil
	}
	if v, ok := g.Object(node, iri(shAlternativePath)); ok {
		members := g.List(v)
		if len(members) < 2 {
			return nil, fmt.Errorf("alternative path %s: needs at least two members", node)
		}
		alts := make([]Path, 0, len(members))
		for _, m := range members {
			a, err := parsePathDepth(g, m, depth+1)
			if err != nil {
				return nil, err
			}
			alts = append(alts, a)
		}
		return alternativePath{alts: alts}, nil
	}
	for pred, rp := range map[string]repeatPath{
		shZeroOrMorePath: {min: 0, unbounded: true},
		shOneOrMorePath:  {min: 1, unbounded: true},
		shZeroOrOnePath:  {min: 0},
	} {
		if v, ok := g.Object(node, iri(pred)); ok {
			inner, err := parsePathDepth(g, v, depth+1)
			if err != nil {
				return nil, err
			}
			rp.path = inner
			return rp, nil
		}
	}
	return nil, fmt.Errorf("path %s: unrecognised path expression", node)
}

func allNodes(g *rdf.Graph) []rdf.Term {
	set := newTermSet()
	g.ForEach(nil, nil, nil, func(t rdf.Triple) bool {
		set.add(t.S)
		set.add(t.O)
		return true
	})
	return set.list()
}

// termSet is an insertion-ordered set of terms.
type termSet struct {
	seen  map[rdf.Term]bool
	items []rdf.Term
}

func newTermSet() *termSet { return &termSet{seen: make(map[rdf.Term]bool)} }

func (s *termSet) add(t rdf.Term) bool {
	if s.seen[t] {
		return false
	}
	s.seen[t] = true
	s.items = append(s.items, t)
	return true
}

func (s *termSet) addAll(ts []rdf.Term) {
	for _, t := range ts {
		s.add(t)
	}
}

func (s *termSet) has(t rdf.Term) bool { return s.seen[t] }

func (s *termSet) list() []rdf.Term { return s.items }
