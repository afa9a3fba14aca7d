package shacl

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/c360studio/semlink/rdf"
)

// TargetKind identifies how a target selects focus nodes.
type TargetKind int

const (
	// TargetNode selects the given node.
	TargetNode TargetKind = iota
	// TargetClass selects SHACL instances of a class.
	TargetClass
	// TargetSubjectsOf selects subjects of triples with a predicate.
	TargetSubjectsOf
	// TargetObjectsOf selects objects of triples with a predicate.
	TargetObjectsOf
)

// Target is one target declaration of a shape.
type Target struct {
	Kind TargetKind
	Term rdf.Term
}

// Shape is a node shape or a property shape.
type Shape struct {
	ID          rdf.Term
	Property    bool
	Path        Path
	Targets     []Target
	Deactivated bool
	Severity    rdf.Term
	Messages    []rdf.Term

	pathNode    rdf.Term
	constraints []constraint
	properties  []rdf.Term
	rules       []*Rule
}

// ShapesGraph is a parsed shapes graph.
type ShapesGraph struct {
	graph  *rdf.Graph
	shapes map[rdf.Term]*Shape
	order  []*Shape
	rules  []*Rule
}

// Shape returns the shape with the given node.
func (sg *ShapesGraph) Shape(id rdf.Term) (*Shape, bool) {
	s, ok := sg.shapes[id]
	return s, ok
}

// Shapes returns every shape in a stable order.
func (sg *ShapesGraph) Shapes() []*Shape { return sg.order }

// Rules returns the active rules sorted by sh:order.
func (sg *ShapesGraph) Rules() []*Rule { return sg.rules }

// Graph returns the underlying shapes graph.
func (sg *ShapesGraph) Graph() *rdf.Graph { return sg.graph }

// ParseShapes extracts shapes, constraints and rules from g.
func ParseShapes(g *rdf.Graph) (*ShapesGraph, error) {
	sg := &ShapesGraph{graph: g, shapes: make(map[rdf.Term]*Shape)}

	candidates := newTermSet()
	for _, class := range []string{NodeShape, PropertyShape} {
		candidates.addAll(g.Subjects(rdfType, iri(class)))
	}
	for _, p := range []string{shTargetClass, shTargetNode, shTargetSubjectsOf, shTargetObjectsOf, shRule, shPath} {
		pred := iri(p)
		for _, t := range sortedTriples(g, nil, &pred) {
			candidates.add(t.S)
		}
	}
	for _, p := range []string{shProperty, shNode, shNot} {
		pred := iri(p)
		for _, t := range sortedTriples(g, nil, &pred) {
			candidates.add(t.O)
		}
	}
	for _, p := range []string{shAnd, shOr, shXone} {
		pred := iri(p)
		for _, t := range sortedTriples(g, nil, &pred) {
			candidates.addAll(g.List(t.O))
		}
	}

	for _, id := range candidates.list() {
		if !id.IsResource() {
			continue
		}
		if _, err := sg.parseShape(id); err != nil {
			return nil, err
		}
	}
	sort.SliceStable(sg.rules, func(i, j int) bool { return sg.rules[i].Order < sg.rules[j].Order })
	return sg, nil
}

func sortedTriples(g *rdf.Graph, s, p *rdf.Term) []rdf.Triple {
	ts := g.Match(s, p, nil)
	rdf.SortTriples(ts)
	return ts
}

func (sg *ShapesGraph) parseShape(id rdf.Term) (*Shape, error) {
	if s, ok := sg.shapes[id]; ok {
		return s, nil
	}
	g := sg.graph
	s := &Shape{ID: id, Severity: iri(SeverityViolation)}
	sg.shapes[id] = s
	sg.order = append(sg.order, s)

	if pathNode, ok := g.Object(id, iri(shPath)); ok {
		path, err := parsePath(g, pathNode)
		if err != nil {
			return nil, fmt.Errorf("shape %s: %w", id, err)
		}
		s.Property, s.Path, s.pathNode = true, path, pathNode
	} else if g.HasType(id, PropertyShape) {
		return nil, fmt.Errorf("shape %s: property shape has no sh:path", id)
	}

	if v, ok := g.Object(id, iri(shDeactivated)); ok && v.Value == "true" {
		s.Deactivated = true
	}
	if v, ok := g.Object(id, iri(shSeverity)); ok {
		s.Severity = v
	}
	s.Messages = g.Objects(id, iri(shMessage))

	for _, c := range g.Objects(id, iri(shTargetClass)) {
		s.Targets = append(s.Targets, Target{Kind: TargetClass, Term: c})
	}
	if g.HasType(id, rdf.RDFSClass) || g.HasType(id, rdf.OWLClass) {
		if g.HasType(id, NodeShape) || g.HasType(id, PropertyShape) {
			s.Targets = append(s.Targets, Target{Kind: TargetClass, Term: id})
		}
	}
	for _, n := range g.Objects(id, iri(shTargetNode)) {
		s.Targets = append(s.Targets, Target{Kind: TargetNode, Term: n})
	}
	for _, p := range g.Objects(id, iri(shTargetSubjectsOf)) {
		s.Targets = append(s.Targets, Target{Kind: TargetSubjectsOf, Term: p})
	}
	for _, p := range g.Objects(id, iri(shTargetObjectsOf)) {
		s.Targets = append(s.Targets, Target{Kind: TargetObjectsOf, Term: p})
	}

	for _, p := range g.Objects(id, iri(shProperty)) {
		ps, err := sg.parseShape(p)
		if err != nil {
			return nil, err
		}
		if !ps.Property {
			return nil, fmt.Errorf("shape %s: sh:property value %s has no sh:path", id, p)
		}
		s.properties = append(s.properties, p)
	}

	cs, err := sg.parseConstraints(s)
	if err != nil {
		return nil, fmt.Errorf("shape %s: %w", id, err)
	}
	s.constraints = cs

	for _, r := range g.Objects(id, iri(shRule)) {
		rule, err := sg.parseRule(s, r)
		if err != nil {
			return nil, fmt.Errorf("shape %s: %w", id, err)
		}
		if rule != nil {
			s.rules = append(s.rules, rule)
			sg.rules = append(sg.rules, rule)
		}
	}
	return s, nil
}

// prefixesFor collects the sh:declare prefixes reachable through sh:prefixes
// from node, on top of the prefixes bound in the shapes graph.
func (sg *ShapesGraph) prefixesFor(node rdf.Term) map[string]string {
	g := sg.graph
	out := g.Prefixes()
	for _, owner := range g.Objects(node, iri(shPrefixes)) {
		for _, decl := range g.Objects(owner, iri(shDeclare)) {
			prefix, ok1 := g.Object(decl, iri(shPrefix))
			namespace, ok2 := g.Object(decl, iri(shNamespace))
			if ok1 && ok2 {
				out[prefix.Value] = namespace.Value
			}
		}
	}
	return out
}

func integerValue(t rdf.Term) (int, error) {
	n, err := strconv.Atoi(t.Value)
	if err != nil {
		return 0, fmt.Errorf("expected integer, got %s", t)
	}
	return n, nil
}

// focusNodes returns the focus nodes selected by the shape's targets in
// data, in a stable order.
func focusNodes(s *Shape, data *rdf.Graph) []rdf.Term {
	set := newTermSet()
	for _, t := range s.Targets {
		switch t.Kind {
		case TargetNode:
			set.add(t.Term)
		case TargetClass:
			set.addAll(instancesOf(data, t.Term))
		case TargetSubjectsOf:
			p := t.Term
			nodes := newTermSet()
			data.ForEach(nil, &p, nil, func(tr rdf.Triple) bool {
				nodes.add(tr.S)
				return true
			})
			items := nodes.list()
			rdf.SortTerms(items)
			set.addAll(items)
		case TargetObjectsOf:
			p := t.Term
			nodes := newTermSet()
			data.ForEach(nil, &p, nil, func(tr rdf.Triple) bool {
				nodes.add(tr.O)
				return true
			})
			items := nodes.list()
			rdf.SortTerms(items)
			set.addAll(items)
		}
	}
	return set.list()
}

var subClassOf = rdf.NewIRI(rdf.RDFSSubClassOf)

// subClasses returns class and every class with an rdfs:subClassOf chain to
// it in g.
func subClasses(g *rdf.Graph, class rdf.Term) []rdf.Term {
	set := newTermSet()
	set.add(class)
	for i := 0; i < len(set.items); i++ {
		for _, sub := range g.Subjects(subClassOf, set.items[i]) {
			set.add(sub)
		}
	}
	return set.list()
}

// instancesOf returns the SHACL instances of class: nodes typed with class
// or one of its subclasses.
func instancesOf(g *rdf.Graph, class rdf.Term) []rdf.Term {
	set := newTermSet()
	for _, c := range subClasses(g, class) {
		set.addAll(g.Subjects(rdfType, c))
	}
	return set.list()
}

// isInstance reports whether node is a SHACL instance of class in g.
func isInstance(g *rdf.Graph, node, class rdf.Term) bool {
	if !node.IsResource() {
		return false
	}
	seen := make(map[rdf.Term]bool)
	queue := g.Objects(node, rdfType)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == class {
			return true
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		queue = append(queue, g.Objects(c, subClassOf)...)
	}
	return false
}
