package reason

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/c360studio/semlink/rdf"
	"github.com/c360studio/semlink/sparql"
	"github.com/c360studio/semlink/vocabulary/semlink"
)

//go:embed obqc.ttl
var obqcShapes string

var (
	varVariable = rdf.NewIRI(semlink.VarVariable)
	obqcExpl    = rdf.NewIRI(semlink.OBQCExpl)
)

// defaultQueryPrefixes are known to the regex fallback even when the query
// does not declare them.
var defaultQueryPrefixes = map[string]string{
	"rdf":    rdf.RDFNS,
	"rdfs":   rdf.RDFSNS,
	"owl":    rdf.OWLNS,
	"schema": rdf.SchemaNS,
}

// CheckQuery checks the triple patterns of a SPARQL query against an
// ontology in Turtle. It returns one "Violation type: <type> - <explanation>"
// line per problem found, or "" when the query is consistent with the
// ontology.
func CheckQuery(ctx context.Context, query, ontologyTTL string) (string, error) {
	violations, err := checkQuery(ctx, query, ontologyTTL)
	if err != nil {
		return "", err
	}
	lines := make([]string, len(violations))
	for i, v := range violations {
		lines[i] = v.String()
	}
	return strings.Join(lines, "\n"), nil
}

// Violation is one OBQC finding.
type Violation struct {
	Type        string `json:"type"`
	Explanation string `json:"explanation,omitempty"`
}

func (v Violation) String() string {
	s := "Violation type: " + v.Type
	if v.Explanation != "" {
		s += " - " + v.Explanation
	}
	return s
}

func checkQuery(ctx context.Context, query, ontologyTTL string) ([]Violation, error) {
	g := QueryGraph(query)
	if strings.TrimSpace(ontologyTTL) != "" {
		ont, err := rdf.ParseTurtle(ontologyTTL)
		if err != nil {
			return nil, fmt.Errorf("parse ontology: %w", err)
		}
		g.Merge(ont)
	}

	shapes, err := rdf.ParseTurtle(obqcShapes)
	if err != nil {
		return nil, fmt.Errorf("parse query check rules: %w", err)
	}
	patch, summary, err := runShapes(ctx, g, shapes)
	if err != nil {
		return nil, err
	}
	slog.Debug("Query check finished", "summary", summary, "patch", patch.Len())
	return collectViolations(patch), nil
}

// collectViolations returns the nodes of patch typed in the OBQC namespace,
// ordered by type and explanation.
func collectViolations(patch *rdf.Graph) []Violation {
	var out []Violation
	patch.ForEach(nil, &rdfType, nil, func(t rdf.Triple) bool {
		if !t.O.IsIRI() || !strings.HasPrefix(t.O.Value, semlink.OBQCNamespace) {
			return true
		}
		v := Violation{Type: t.O.Value}
		if expl, ok := patch.Object(t.S, obqcExpl); ok {
			v.Explanation = expl.Value
		}
		out = append(out, v)
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Explanation < out[j].Explanation
	})
	return out
}

// QueryGraph converts the triple patterns of query into a graph. Variables
// become IRIs in the query variable namespace typed var:Variable. Queries
// the parser rejects are read with a regular-expression extractor that
// understands simple basic graph patterns.
func QueryGraph(query string) *rdf.Graph {
	q, err := sparql.Parse(query)
	if err != nil {
		slog.Warn("Using fallback extraction for unparseable query", "error", err)
		return fallbackQueryGraph(query)
	}

	g := rdf.NewGraph()
	for prefix, ns := range q.Prefixes {
		g.Bind(prefix, ns)
	}
	g.Bind("var", semlink.VarNamespace)
	for _, tp := range q.TriplePatterns() {
		s := patternTerm(g, tp.S)
		o := patternTerm(g, tp.O)
		if tp.Path == nil {
			g.AddSPO(s, patternTerm(g, tp.P), o)
			continue
		}
		addPathTriples(g, s, tp.Path, o)
	}
	return g
}

func patternTerm(g *rdf.Graph, n sparql.Node) rdf.Term {
	if !n.IsVar() {
		return n.Term
	}
	name := n.Var
	if sparql.IsHiddenVar(name) {
		name = "bnode_" + strings.Trim(strings.TrimPrefix(name, "_:"), "_")
	}
	t := rdf.NewIRI(semlink.VarNamespace + name)
	g.AddSPO(t, rdfType, varVariable)
	return t
}

// addPathTriples records the predicates a property path can traverse. Only
// single-step forms keep their endpoints; longer paths contribute nothing.
func addPathTriples(g *rdf.Graph, s rdf.Term, path sparql.Path, o rdf.Term) {
	switch p := path.(type) {
	case sparql.PathIRI:
		g.AddSPO(s, rdf.NewIRI(p.IRI), o)
	case sparql.PathInverse:
		addPathTriples(g, o, p.Path, s)
	case sparql.PathAlternative:
		for _, alt := range p.Alternatives {
			addPathTriples(g, s, alt, o)
		}
	case sparql.PathRepeat:
		if p.Min <= 1 {
			addPathTriples(g, s, p.Path, o)
		}
	}
}

var (
	prefixDeclRe = regexp.MustCompile(`(?i)PREFIX\s+(\w+):\s*<([^>]+)>`)
	commentRe    = regexp.MustCompile(`(?m)#.*$`)
	whereBodyRe  = regexp.MustCompile(`(?is)WHERE\s*\{(.*?)\}`)
	triplePatRe  = regexp.MustCompile(`([^.;{}\s]+)\s+([^.;{}\s]+)\s+([^.;{}\s]+)\s*[.;]?`)
	decimalLexRe = regexp.MustCompile(`^[0-9.]+$`)
	integerLexRe = regexp.MustCompile(`^[0-9]+$`)
)

func fallbackQueryGraph(query string) *rdf.Graph {
	prefixes := make(map[string]string, len(defaultQueryPrefixes))
	for p, ns := range defaultQueryPrefixes {
		prefixes[p] = ns
	}
	for _, m := range prefixDeclRe.FindAllStringSubmatch(query, -1) {
		prefixes[m[1]] = m[2]
	}

	g := rdf.NewGraph()
	for p, ns := range prefixes {
		g.Bind(p, ns)
	}
	for _, tr := range extractTriples(query) {
		s := termFromToken(tr[0], prefixes)
		p := termFromToken(tr[1], prefixes)
		o := termFromToken(tr[2], prefixes)
		if s.IsLiteral() || !p.IsIRI() {
			slog.Debug("Skipping unusable pattern", "subject", tr[0], "predicate", tr[1])
			continue
		}
		g.AddSPO(s, p, o)
		for _, term := range []rdf.Term{s, o} {
			if term.IsIRI() && strings.HasPrefix(term.Value, semlink.VarNamespace) {
				g.AddSPO(term, rdfType, varVariable)
			}
		}
	}
	return g
}

// extractTriples finds whitespace-separated triples in the first WHERE
// block of query.
func extractTriples(query string) [][3]string {
	clean := prefixDeclRe.ReplaceAllString(query, "")
	clean = commentRe.ReplaceAllString(clean, "")
	m := whereBodyRe.FindStringSubmatch(clean)
	if m == nil {
		slog.Warn("Could not find WHERE clause in query", "query", truncateQuery(query))
		return nil
	}
	var out [][3]string
	for _, tm := range triplePatRe.FindAllStringSubmatch(m[1], -1) {
		out = append(out, [3]string{tm[1], tm[2], tm[3]})
	}
	return out
}

func truncateQuery(q string) string {
	if len(q) <= 100 {
		return q
	}
	return q[:100] + "..."
}

// termFromToken reads one token of a simple triple pattern.
func termFromToken(tok string, prefixes map[string]string) rdf.Term {
	switch {
	case strings.HasPrefix(tok, "<") && strings.HasSuffix(tok, ">"):
		return rdf.NewIRI(tok[1 : len(tok)-1])
	case len(tok) >= 2 && (tok[0] == '"' || tok[0] == '\'') && tok[len(tok)-1] == tok[0]:
		return rdf.NewLiteral(tok[1 : len(tok)-1])
	case strings.HasPrefix(tok, "?") || strings.HasPrefix(tok, "$"):
		return rdf.NewIRI(semlink.VarNamespace + tok[1:])
	case tok == "a":
		return rdfType
	}
	if prefix, local, ok := strings.Cut(tok, ":"); ok {
		if ns, known := prefixes[prefix]; known {
			return rdf.NewIRI(ns + local)
		}
	}
	if integerLexRe.MatchString(tok) {
		if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
			return rdf.NewInteger(n)
		}
	}
	if decimalLexRe.MatchString(tok) {
		if f, err := strconv.ParseFloat(tok, 64); err == nil {
			return rdf.NewDouble(f)
		}
	}
	return rdf.NewLiteral(tok)
}
