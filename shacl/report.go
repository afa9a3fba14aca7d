package shacl

import (
	"fmt"
	"strings"

	"github.com/c360studio/semlink/rdf"
)

// Result is one sh:ValidationResult.
type Result struct {
	FocusNode rdf.Term
	// Path is the sh:resultPath node. Zero for node shapes.
	Path             rdf.Term
	Value            rdf.Term
	Severity         rdf.Term
	SourceShape      rdf.Term
	Component        string
	SourceConstraint rdf.Term
	Messages         []rdf.Term
}

// Message returns the first result message, or an empty string.
func (r Result) Message() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0].Value
}

// Report is a SHACL validation report.
type Report struct {
	Conforms bool
	Results  []Result

	shapes *rdf.Graph
}

// Violations returns the results with sh:Violation severity.
func (r *Report) Violations() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Severity.Value == SeverityViolation {
			out = append(out, res)
		}
	}
	return out
}

// Graph renders the report as an RDF graph. Complex result paths are copied
// from the shapes graph so the report is self-contained.
func (r *Report) Graph() *rdf.Graph {
	g := rdf.NewGraph()
	g.Bind("sh", rdf.SHNS)
	report := rdf.NewBlank("report")
	g.AddSPO(report, rdfType, iri(ValidationReport))
	g.AddSPO(report, iri(shConforms), rdf.NewBoolean(r.Conforms))

	copied := make(map[rdf.Term]bool)
	for i, res := range r.Results {
		node := rdf.NewBlank(fmt.Sprintf("result%d", i))
		g.AddSPO(report, iri(shResult), node)
		g.AddSPO(node, rdfType, iri(ValidationResult))
		g.AddSPO(node, iri(shFocusNode), res.FocusNode)
		g.AddSPO(node, iri(shResultSeverity), res.Severity)
		g.AddSPO(node, iri(shSourceShape), res.SourceShape)
		g.AddSPO(node, iri(shSourceComponent), iri(res.Component))
		if !res.Path.IsZero() {
			g.AddSPO(node, iri(shResultPath), res.Path)
			if res.Path.IsBlank() && r.shapes != nil {
				copyReachable(g, r.shapes, res.Path, copied)
			}
		}
		if !res.Value.IsZero() {
			g.AddSPO(node, iri(shValue), res.Value)
		}
		if !res.SourceConstraint.IsZero() {
			g.AddSPO(node, iri(shSourceConstraint), res.SourceConstraint)
		}
		for _, m := range res.Messages {
			g.AddSPO(node, iri(shResultMessage), m)
		}
	}
	return g
}

func copyReachable(dst, src *rdf.Graph, node rdf.Term, seen map[rdf.Term]bool) {
	if seen[node] || !node.IsBlank() {
		return
	}
	seen[node] = true
	n := node
	for _, t := range src.Match(&n, nil, nil) {
		dst.Add(t)
		copyReachable(dst, src, t.O, seen)
	}
}

// Text renders the report in a human readable form.
func (r *Report) Text() string {
	var b strings.Builder
	b.WriteString("Validation Report\n")
	fmt.Fprintf(&b, "Conforms: %t\n", r.Conforms)
	if len(r.Results) > 0 {
		fmt.Fprintf(&b, "Results (%d):\n", len(r.Results))
	}
	for _, res := range r.Results {
		fmt.Fprintf(&b, "%s in %s:\n", severityLabel(res.Severity), rdf.LocalName(res.Component))
		fmt.Fprintf(&b, "\tSeverity: %s\n", res.Severity)
		fmt.Fprintf(&b, "\tSource Shape: %s\n", res.SourceShape)
		fmt.Fprintf(&b, "\tFocus Node: %s\n", res.FocusNode)
		if !res.Value.IsZero() {
			fmt.Fprintf(&b, "\tValue Node: %s\n", res.Value)
		}
		if !res.Path.IsZero() {
			fmt.Fprintf(&b, "\tResult Path: %s\n", res.Path)
		}
		for _, m := range res.Messages {
			fmt.Fprintf(&b, "\tMessage: %s\n", m.Value)
		}
	}
	return b.String()
}

func severityLabel(sev rdf.Term) string {
	switch sev.Value {
	case SeverityWarning:
		return "Validation Warning"
	case SeverityInfo:
		return "Validation Info"
	}
	return "Constraint Violation"
}
