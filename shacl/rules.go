package shacl

import (
	"fmt"
	"strconv"

	"github.com/c360studio/semlink/rdf"
	"github.com/c360studio/semlink/sparql"
)

// RuleKind is the type of a SHACL rule.
type RuleKind int

const (
	// RuleTriple is an sh:TripleRule.
	RuleTriple RuleKind = iota
	// RuleSPARQL is an sh:SPARQLRule.
	RuleSPARQL
)

// Rule is an active SHACL-AF rule attached to a shape.
type Rule struct {
	ID    rdf.Term
	Kind  RuleKind
	Shape *Shape
	Order float64

	conditions []rdf.Term
	subject    nodeExpr
	predicate  nodeExpr
	object     nodeExpr
	construct  *sparql.Query
}

// nodeExpr is a SHACL-AF node expression.
type nodeExpr interface {
	eval(g *rdf.Graph, focus rdf.Term) []rdf.Term
}

type thisExpr struct{}

func (thisExpr) eval(_ *rdf.Graph, focus rdf.Term) []rdf.Term { return []rdf.Term{focus} }

type constantExpr struct{ term rdf.Term }

func (c constantExpr) eval(*rdf.Graph, rdf.Term) []rdf.Term { return []rdf.Term{c.term} }

type pathExpr struct{ path Path }

func (p pathExpr) eval(g *rdf.Graph, focus rdf.Term) []rdf.Term { return p.path.Values(g, focus) }

func (sg *ShapesGraph) parseRule(s *Shape, node rdf.Term) (*Rule, error) {
	g := sg.graph
	if v, ok := g.Object(node, iri(shDeactivated)); ok && v.Value == "true" {
		return nil, nil
	}
	r := &Rule{ID: node, Shape: s, conditions: g.Objects(node, iri(shCondition))}
	if v, ok := g.Object(node, iri(shOrder)); ok {
		f, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("rule %s: invalid sh:order %s", node, v)
		}
		r.Order = f
	}
	for _, c := range r.conditions {
		if _, err := sg.parseShape(c); err != nil {
			return nil, err
		}
	}

	switch {
	case g.HasType(node, TripleRule):
		r.Kind = RuleTriple
		var err error
		for pred, dst := range map[string]*nodeExpr{shSubject: &r.subject, shPredicate: &r.predicate, shObject: &r.object} {
			v, ok := g.Object(node, iri(pred))
			if !ok {
				return nil, fmt.Errorf("triple rule %s: missing %s", node, rdf.LocalName(pred))
			}
			if *dst, err = parseNodeExpr(g, v); err != nil {
				return nil, fmt.Errorf("triple rule %s: %w", node, err)
			}
		}
	case g.HasType(node, SPARQLRule):
		r.Kind = RuleSPARQL
		text, ok := g.Object(node, iri(shConstruct))
		if !ok {
			return nil, fmt.Errorf("sparql rule %s: missing sh:construct", node)
		}
		q, err := sparql.ParseWithPrefixes(text.Value, sg.prefixesFor(node))
		if err != nil {
			return nil, fmt.Errorf("sparql rule %s: %w", node, err)
		}
		if q.Form != sparql.FormConstruct {
			return nil, fmt.Errorf("sparql rule %s: sh:construct must be a CONSTRUCT query", node)
		}
		r.construct = q
	default:
		return nil, fmt.Errorf("rule %s: unknown rule type", node)
	}
	return r, nil
}

func parseNodeExpr(g *rdf.Graph, node rdf.Term) (nodeExpr, error) {
	if node.IsIRI() && node.Value == shThis {
		return thisExpr{}, nil
	}
	if node.IsBlank() {
		if p, ok := g.Object(node, iri(shPath)); ok {
			path, err := parsePath(g, p)
			if err != nil {
				return nil, err
			}
			return pathExpr{path: path}, nil
		}
		return nil, fmt.Errorf("unsupported node expression %s", node)
	}
	return constantExpr{term: node}, nil
}

// apply runs the rule once over every focus node of its shape and returns
// the inferred triples not already present in the data graph.
func (r *Rule) apply(ec *evalContext) ([]rdf.Triple, error) {
	if r.Shape.Deactivated {
		return nil, nil
	}
	var out []rdf.Triple
	seen := make(map[rdf.Triple]bool)
	emit := func(t rdf.Triple) {
		if !t.S.IsResource() || !t.P.IsIRI() || t.O.IsZero() {
			return
		}
		if seen[t] || ec.data.Has(t) {
			return
		}
		seen[t] = true
		out = append(out, t)
	}

	for _, focus := range focusNodes(r.Shape, ec.data) {
		if err := ec.ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := r.conditionsHold(ec, focus)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		switch r.Kind {
		case RuleTriple:
			for _, s := range r.subject.eval(ec.data, focus) {
				for _, p := range r.predicate.eval(ec.data, focus) {
					for _, o := range r.object.eval(ec.data, focus) {
						emit(rdf.Triple{S: s, P: p, O: o})
					}
				}
			}
		case RuleSPARQL:
			res, err := sparql.Evaluate(ec.ctx, r.construct, ec.dataset,
				sparql.WithBindings(sparql.Binding{"this": focus}))
			if err != nil {
				return nil, fmt.Errorf("sparql rule %s: %w", r.ID, err)
			}
			fresh := make(map[rdf.Term]rdf.Term)
			for _, t := range res.Graph.Triples() {
				t.S = ec.relabel(fresh, t.S)
				t.O = ec.relabel(fresh, t.O)
				emit(t)
			}
		}
	}
	return out, nil
}

func (r *Rule) conditionsHold(ec *evalContext, focus rdf.Term) (bool, error) {
	for _, c := range r.conditions {
		shape, ok := ec.shapes.Shape(c)
		if !ok {
			return false, fmt.Errorf("rule %s: unknown condition shape %s", r.ID, c)
		}
		ok, err := ec.conforms(shape, focus)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
