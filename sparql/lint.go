package sparql

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/c360studio/semlink/rdf"
)

// Warning types reported by CheckPatterns and understood by GenerateFixes.
const (
	WarnMissingLimit        = "missing_limit"
	WarnUnboundVariables    = "unbound_variables"
	WarnUnboundedSelectStar = "unbounded_select_star"
	WarnCartesianProduct    = "cartesian_product"
	WarnUnusedPrefix        = "unused_prefix"
	WarnLiteralNoFilter     = "literal_without_filter"
)

// Warning is one lint finding.
type Warning struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// PatternCheck is the result of CheckPatterns.
type PatternCheck struct {
	Success     bool      `json:"success"`
	QueryType   string    `json:"query_type,omitempty"`
	Warnings    []Warning `json:"warnings,omitempty"`
	Suggestions []string  `json:"suggestions,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// CheckPatterns validates query syntax and reports risky patterns.
func CheckPatterns(query string) *PatternCheck {
	q, err := Parse(query)
	if err != nil {
		return &PatternCheck{Error: err.Error()}
	}
	res := &PatternCheck{Success: true, QueryType: string(q.Form)}
	warn := func(w Warning, suggestion string) {
		res.Warnings = append(res.Warnings, w)
		res.Suggestions = append(res.Suggestions, suggestion)
	}

	if (q.Form == FormSelect || q.Form == FormConstruct) && q.Limit < 0 {
		warn(Warning{
			Type:     WarnMissingLimit,
			Message:  "Query does not include a LIMIT clause, which could return too many results",
			Severity: "medium",
		}, "Add a LIMIT clause to avoid potentially large result sets.")
	}

	if q.Form == FormSelect {
		if unbound := unboundProjections(q); len(unbound) > 0 {
			warn(Warning{
				Type:     WarnUnboundVariables,
				Message:  "Projected variables never bound in WHERE: " + strings.Join(unbound, ", "),
				Severity: "high",
			}, "Bind every projected variable in the WHERE clause or remove it from SELECT.")
		}
		if q.Star && q.Limit < 0 && hasOpenPattern(q.Where) {
			warn(Warning{
				Type:     WarnUnboundedSelectStar,
				Message:  "SELECT * over a pattern with no constants returns every triple",
				Severity: "high",
			}, "Name the variables you need and constrain at least one position of each triple pattern.")
		}
	}

	if q.Where != nil {
		if n := components(q.Where); n > 1 {
			warn(Warning{
				Type:     WarnCartesianProduct,
				Message:  fmt.Sprintf("Query has %d disconnected groups of triple patterns", n),
				Severity: "high",
			}, "Join the disconnected parts of the query through shared variables.")
		}
	}

	if lits := exactStringLiterals(q); len(lits) > 0 {
		warn(Warning{
			Type:     WarnLiteralNoFilter,
			Message:  fmt.Sprintf("Literal %q is matched exactly and misses language-tagged values", lits[0]),
			Severity: "low",
		}, "Match literals with FILTER(STR(?var) = ...) or a case-insensitive REGEX.")
	}

	if unused := unusedPrefixes(query); len(unused) > 0 {
		warn(Warning{
			Type:     WarnUnusedPrefix,
			Message:  "Declared but unused prefixes: " + strings.Join(unused, ", "),
			Severity: "low",
		}, "Remove unused PREFIX declarations.")
	}
	return res
}

func unboundProjections(q *Query) []string {
	if q.Star {
		return nil
	}
	bound := make(map[string]bool)
	mark := func(name string) { bound[name] = true }
	if q.Where != nil {
		collectVars(q.Where, mark)
	}
	if q.Values != nil {
		for _, v := range q.Values.Vars {
			mark(v)
		}
	}
	for _, gc := range q.GroupBy {
		mark(gc.Var)
	}
	var out []string
	for _, p := range q.Projection {
		if p.Expr == nil && !bound[p.Var] {
			out = append(out, "?"+p.Var)
		}
	}
	return out
}

// hasOpenPattern reports whether a required triple pattern of g has
// variables in all three positions.
func hasOpenPattern(g *Group) bool {
	if g == nil {
		return false
	}
	for _, el := range g.Elements {
		switch x := el.(type) {
		case *BGP:
			for _, tp := range x.Triples {
				if tp.Path == nil && tp.S.IsVar() && tp.P.IsVar() && tp.O.IsVar() {
					return true
				}
			}
		case *Group:
			if hasOpenPattern(x) {
				return true
			}
		}
	}
	return false
}

// components counts the connected components of the required triple
// patterns of g, joined through shared variables. FILTER and BIND
// expressions that mention variables of two components connect them.
func components(g *Group) int {
	parent := make(map[string]string)
	var find func(string) string
	find = func(x string) string {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(vars []string) {
		if len(vars) == 0 {
			return
		}
		for _, v := range vars {
			if _, ok := parent[v]; !ok {
				parent[v] = v
			}
		}
		root := find(vars[0])
		for _, v := range vars[1:] {
			parent[find(v)] = root
		}
	}

	patterns := 0
	var joins [][]string
	var walk func(*Group)
	walk = func(g *Group) {
		for _, el := range g.Elements {
			switch x := el.(type) {
			case *BGP:
				for _, tp := range x.Triples {
					var vars []string
					for _, n := range []Node{tp.S, tp.P, tp.O} {
						if n.IsVar() {
							vars = append(vars, n.Var)
						}
					}
					if len(vars) > 0 {
						patterns++
						union(vars)
					}
				}
			case *Group:
				walk(x)
			case *Filter:
				joins = append(joins, exprVars(x.Expr))
			case *Bind:
				joins = append(joins, append(exprVars(x.Expr), x.Var))
			}
		}
	}
	walk(g)
	for _, vars := range joins {
		union(knownVars(parent, vars))
	}
	if patterns < 2 {
		return 1
	}
	roots := make(map[string]bool)
	for v := range parent {
		roots[find(v)] = true
	}
	return len(roots)
}

func knownVars(parent map[string]string, vars []string) []string {
	var out []string
	for _, v := range vars {
		if _, ok := parent[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

// exprVars lists the variables an expression mentions.
func exprVars(e Expr) []string {
	var out []string
	var walk func(Expr)
	walk = func(e Expr) {
		switch x := e.(type) {
		case ExprVar:
			out = append(out, x.Name)
		case ExprBinary:
			walk(x.Left)
			walk(x.Right)
		case ExprUnary:
			walk(x.X)
		case ExprCall:
			for _, a := range x.Args {
				walk(a)
			}
		case ExprIn:
			walk(x.X)
			for _, a := range x.List {
				walk(a)
			}
		case ExprAggregate:
			if x.Arg != nil {
				walk(x.Arg)
			}
		}
	}
	walk(e)
	return out
}

func exactStringLiterals(q *Query) []string {
	var out []string
	for _, tp := range q.TriplePatterns() {
		t := tp.O.Term
		if !tp.O.IsVar() && t.IsLiteral() && t.Lang == "" && t.Datatype == rdf.XSDString {
			out = append(out, t.Value)
		}
	}
	return out
}

var prefixDeclRe = regexp.MustCompile(`(?i)\bPREFIX\s+([A-Za-z][\w.-]*)?:\s*<[^>]*>`)

func unusedPrefixes(query string) []string {
	decls := prefixDeclRe.FindAllStringSubmatch(query, -1)
	if len(decls) == 0 {
		return nil
	}
	body := prefixDeclRe.ReplaceAllString(query, "")
	body = stripIRIs(body)
	var out []string
	for _, d := range decls {
		name := d[1]
		used := regexp.MustCompile(`(^|[\s(){}.,;^/|!]|\^\^)` + regexp.QuoteMeta(name) + `:`)
		if !used.MatchString(body) {
			out = append(out, name+":")
		}
	}
	sort.Strings(out)
	return out
}

var iriRefRe = regexp.MustCompile(`<[^<>"{}|^\x60\s]*>`)

// stripIRIs removes <...> references so that scheme names inside IRIs
// are not mistaken for prefix uses.
func stripIRIs(s string) string {
	return iriRefRe.ReplaceAllString(s, "<>")
}

// Validation carries findings from CheckPatterns and ontology validation.
type Validation struct {
	Warnings   []Warning `json:"warnings,omitempty"`
	Violations []string  `json:"violations,omitempty"`
}

// Fixes is the result of GenerateFixes.
type Fixes struct {
	Success         bool     `json:"success"`
	NeedsFixes      bool     `json:"needs_fixes"`
	OriginalQuery   string   `json:"original_query"`
	FixedQuery      string   `json:"fixed_query"`
	FixExplanations []string `json:"fix_explanations"`
	Guidance        []string `json:"guidance"`
}

var (
	limitRe     = regexp.MustCompile(`(?i)\bLIMIT\b\s+\d+`)
	domainRe    = regexp.MustCompile(`(?i)domain.*?\b(\w+:\w+)\b`)
	rangeRe     = regexp.MustCompile(`(?i)range.*?\b(\w+:\w+)\b`)
	undefinedRe = regexp.MustCompile(`(?i)Property\s+(\S+)\s+is not defined`)
	wordLitRe   = regexp.MustCompile(`['"](\w+)['"]`)
)

// DefaultFixLimit is the LIMIT added to queries that lack one.
const DefaultFixLimit = 100

// GenerateFixes proposes fixes for the issues in v. Only a missing LIMIT is
// repaired automatically; other findings produce guidance.
func GenerateFixes(query string, v Validation) *Fixes {
	res := &Fixes{
		Success:         true,
		OriginalQuery:   query,
		FixedQuery:      query,
		FixExplanations: []string{},
		Guidance:        []string{},
	}
	explain := func(explanation, guidance string) {
		res.FixExplanations = append(res.FixExplanations, explanation)
		res.Guidance = append(res.Guidance, guidance)
	}

	if len(v.Warnings) > 0 {
		res.NeedsFixes = true
		fixed := query
		for _, w := range v.Warnings {
			switch w.Type {
			case WarnMissingLimit:
				if !limitRe.MatchString(fixed) {
					fixed = AddLimit(fixed, DefaultFixLimit)
					explain("Added LIMIT 100 clause to prevent large result sets.",
						"Adjust the LIMIT value based on how many results you need.")
				}
			case WarnUnboundVariables:
				explain("Unbound variables detected: "+w.Message,
					"Add triple patterns in the WHERE clause to bind all variables used in the SELECT clause.")
			case WarnCartesianProduct:
				explain("Cartesian product detected in query.",
					"Add join conditions between disconnected parts of your query to avoid performance issues.")
			case WarnLiteralNoFilter:
				if m := wordLitRe.FindStringSubmatch(fixed); m != nil {
					explain("Fixed literals to use FILTER with case-insensitive matching.",
						fmt.Sprintf(`Consider using patterns like: FILTER(REGEX(str(?var), "%s", "i"))`, m[1]))
				}
			case WarnUnboundedSelectStar:
				explain("Unconstrained SELECT * detected.",
					"Project only the variables you need and bind a constant in at least one triple position.")
			case WarnUnusedPrefix:
				explain("Unused prefixes: "+w.Message, "Remove PREFIX declarations the query does not use.")
			}
		}
		res.FixedQuery = fixed
	}

	if len(v.Violations) > 0 {
		res.NeedsFixes = true
		for _, violation := range v.Violations {
			if m := domainRe.FindStringSubmatch(violation); m != nil {
				explain("Domain violation for "+m[1], fmt.Sprintf("Add the correct type to subjects using %s.", m[1]))
			} else if m := rangeRe.FindStringSubmatch(violation); m != nil {
				explain("Range violation for "+m[1], fmt.Sprintf("Ensure objects of %s have the correct type.", m[1]))
			} else if m := undefinedRe.FindStringSubmatch(violation); m != nil {
				explain("Undefined property: "+m[1], "Check for typos or use a defined property from the ontology.")
			} else {
				explain("Ontology violation: "+violation, "Review the ontology to understand valid property usage patterns.")
			}
		}
	}

	if !res.NeedsFixes {
		res.Guidance = append(res.Guidance, "No significant issues detected. The query appears to be well-formed.")
	}
	return res
}

// AddLimit appends a LIMIT clause to a query that has none.
func AddLimit(query string, n int) string {
	if limitRe.MatchString(query) {
		return query
	}
	return fmt.Sprintf("%s\nLIMIT %d", strings.TrimRight(query, " \t\r\n"), n)
}
