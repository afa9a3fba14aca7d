package shacl

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360studio/semlink/rdf"
)

// Inference selects the entailment applied to the data graph before
// validation.
type Inference string

const (
	InferenceNone Inference = "none"
	InferenceRDFS Inference = "rdfs"
)

const defaultMaxIterations = 15

// Validator validates data graphs against a parsed shapes graph.
type Validator struct {
	shapes        *ShapesGraph
	inference     Inference
	advanced      bool
	iterateRules  bool
	maxIterations int
	inPlace       bool
	ontology      *rdf.Graph
	logger        *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithInference sets the entailment regime applied before validation.
func WithInference(i Inference) Option {
	return func(v *Validator) { v.inference = i }
}

// WithAdvanced enables SHACL-AF rules.
func WithAdvanced(enabled bool) Option {
	return func(v *Validator) { v.advanced = enabled }
}

// WithIterateRules re-applies rules until no new triples are inferred.
func WithIterateRules(enabled bool) Option {
	return func(v *Validator) { v.iterateRules = enabled }
}

// WithMaxIterations bounds rule iteration.
func WithMaxIterations(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.maxIterations = n
		}
	}
}

// WithInPlace makes rules and inference modify the data graph passed to
// Validate instead of a copy.
func WithInPlace(enabled bool) Option {
	return func(v *Validator) { v.inPlace = enabled }
}

// WithOntology mixes an ontology graph into the data graph before
// inference and validation.
func WithOntology(g *rdf.Graph) Option {
	return func(v *Validator) { v.ontology = g }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) { v.logger = logger }
}

// New parses the shapes graph and returns a Validator.
func New(shapes *rdf.Graph, opts ...Option) (*Validator, error) {
	v := &Validator{
		inference:     InferenceNone,
		maxIterations: defaultMaxIterations,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	sg, err := ParseShapes(shapes)
	if err != nil {
		return nil, fmt.Errorf("parse shapes: %w", err)
	}
	v.shapes = sg
	return v, nil
}

// Shapes returns the parsed shapes graph.
func (v *Validator) Shapes() *ShapesGraph { return v.shapes }

// Outcome is the result of a validation run.
type Outcome struct {
	Conforms bool
	Report   *Report
	// Inferred holds the triples added by inference and rules.
	Inferred *rdf.Graph
	// Data is the graph that was validated, including inferred triples.
	Data *rdf.Graph
}

// Validate runs inference, rules and validation over data.
func (v *Validator) Validate(ctx context.Context, data *rdf.Graph) (*Outcome, error) {
	g := data
	if !v.inPlace {
		g = data.Clone()
	}
	if v.ontology != nil {
		g.Merge(v.ontology)
	}

	inferred := rdf.NewGraph()
	if v.inference == InferenceRDFS {
		before := g.Clone()
		n := expandRDFS(g)
		inferred.Merge(g.Difference(before))
		v.logger.Debug("RDFS inference complete", "added", n)
	}

	ec := newEvalContext(ctx, g, v.shapes)

	if v.advanced && len(v.shapes.rules) > 0 {
		if err := v.runRules(ec, inferred); err != nil {
			return nil, err
		}
	}

	report := &Report{shapes: v.shapes.graph}
	for _, s := range v.shapes.order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(s.Targets) == 0 || s.Deactivated {
			continue
		}
		for _, focus := range focusNodes(s, g) {
			results, err := ec.validateShape(s, focus)
			if err != nil {
				return nil, err
			}
			report.Results = append(report.Results, results...)
		}
	}
	report.Conforms = len(report.Results) == 0

	v.logger.Debug("SHACL validation complete",
		"conforms", report.Conforms,
		"results", len(report.Results),
		"inferred", inferred.Len())

	return &Outcome{Conforms: report.Conforms, Report: report, Inferred: inferred, Data: g}, nil
}

func (v *Validator) runRules(ec *evalContext, inferred *rdf.Graph) error {
	for i := 1; ; i++ {
		added := 0
		for _, r := range v.shapes.rules {
			triples, err := r.apply(ec)
			if err != nil {
				return err
			}
			for _, t := range triples {
				if ec.data.Add(t) {
					inferred.Add(t)
					added++
				}
			}
		}
		v.logger.Debug("SHACL rules applied", "iteration", i, "added", added)
		if added == 0 || !v.iterateRules {
			return nil
		}
		if i >= v.maxIterations {
			return fmt.Errorf("rules still inferring new triples after %d iterations", v.maxIterations)
		}
	}
}

// Validate is a convenience wrapper around New and Validator.Validate.
func Validate(ctx context.Context, data, shapes *rdf.Graph, opts ...Option) (*Outcome, error) {
	v, err := New(shapes, opts...)
	if err != nil {
		return nil, err
	}
	return v.Validate(ctx, data)
}

type visit struct {
	shape rdf.Term
	node  rdf.Term
}

// evalContext carries per-run state through constraint evaluation.
type evalContext struct {
	ctx     context.Context
	data    *rdf.Graph
	dataset *rdf.Dataset
	shapes  *ShapesGraph
	active  map[visit]bool
	bnodes  int
}

func newEvalContext(ctx context.Context, data *rdf.Graph, shapes *ShapesGraph) *evalContext {
	return &evalContext{
		ctx:     ctx,
		data:    data,
		dataset: rdf.DatasetOf(data),
		shapes:  shapes,
		active:  make(map[visit]bool),
	}
}

// validateShape returns the results of validating focus against s and its
// nested property shapes.
func (ec *evalContext) validateShape(s *Shape, focus rdf.Term) ([]Result, error) {
	if s.Deactivated {
		return nil, nil
	}
	values := []rdf.Term{focus}
	if s.Property {
		values = s.Path.Values(ec.data, focus)
	}

	var out []Result
	for _, c := range s.constraints {
		findings, err := c.evaluate(ec, s, focus, values)
		if err != nil {
			return nil, err
		}
		for _, f := range findings {
			out = append(out, ec.result(s, c, focus, f))
		}
	}
	for _, id := range s.properties {
		ps := ec.shapes.shapes[id]
		for _, v := range values {
			results, err := ec.validateShape(ps, v)
			if err != nil {
				return nil, err
			}
			out = append(out, results...)
		}
	}
	return out, nil
}

func (ec *evalContext) result(s *Shape, c constraint, focus rdf.Term, f finding) Result {
	r := Result{
		FocusNode:        focus,
		Path:             s.pathNode,
		Value:            f.value,
		Severity:         s.Severity,
		SourceShape:      s.ID,
		Component:        c.component(),
		SourceConstraint: f.source,
	}
	if !f.path.IsZero() {
		r.Path = f.path
	}
	switch {
	case len(f.messages) > 0:
		r.Messages = f.messages
	case len(s.Messages) > 0:
		r.Messages = s.Messages
	default:
		r.Messages = []rdf.Term{rdf.NewLiteral(f.message)}
	}
	return r
}

// conforms reports whether node conforms to s. Recursive shape references
// are assumed to conform.
func (ec *evalContext) conforms(s *Shape, node rdf.Term) (bool, error) {
	key := visit{shape: s.ID, node: node}
	if ec.active[key] {
		return true, nil
	}
	ec.active[key] = true
	defer delete(ec.active, key)

	results, err := ec.validateShape(s, node)
	if err != nil {
		return false, err
	}
	return len(results) == 0, nil
}

// relabel maps blank nodes minted by a CONSTRUCT template to labels unique
// within this run. Blank nodes already in the data graph are kept.
func (ec *evalContext) relabel(fresh map[rdf.Term]rdf.Term, t rdf.Term) rdf.Term {
	if !t.IsBlank() {
		return t
	}
	if n, ok := fresh[t]; ok {
		return n
	}
	if len(ec.data.Match(&t, nil, nil)) > 0 || len(ec.data.Match(nil, nil, &t)) > 0 {
		return t
	}
	for {
		ec.bnodes++
		n := rdf.NewBlank(fmt.Sprintf("inferred%d", ec.bnodes))
		if len(ec.data.Match(&n, nil, nil)) == 0 && len(ec.data.Match(nil, nil, &n)) == 0 {
			fresh[t] = n
			return n
		}
	}
}
