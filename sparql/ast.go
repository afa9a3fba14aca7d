package sparql

import "github.com/c360studio/semlink/rdf"

// QueryForm is the kind of a SPARQL query.
type QueryForm string

const (
	FormSelect    QueryForm = "SELECT"
	FormAsk       QueryForm = "ASK"
	FormConstruct QueryForm = "CONSTRUCT"
	FormDescribe  QueryForm = "DESCRIBE"
)

// Query is a parsed SPARQL query.
type Query struct {
	Form     QueryForm
	Base     string
	Prefixes map[string]string

	// From and FromNamed record dataset clauses. Local evaluation ignores them.
	From      []string
	FromNamed []string

	Distinct   bool
	Reduced    bool
	Star       bool
	Projection []Projection

	// Template holds CONSTRUCT template triples.
	Template []TriplePattern

	// Describe lists the DESCRIBE targets; empty with Star means all.
	Describe []Node

	Where   *Group
	GroupBy []GroupCondition
	Having  []Expr
	OrderBy []OrderCondition
	// Limit is -1 when the query has no LIMIT clause.
	Limit   int
	Offset  int
	Values  *Values
}

// Projection is a SELECT item: a variable or (expr AS ?var).
type Projection struct {
	Var  string
	Expr Expr
}

// GroupCondition is a GROUP BY item.
type GroupCondition struct {
	Expr Expr
	Var  string
}

// OrderCondition is an ORDER BY item.
type OrderCondition struct {
	Expr Expr
	Desc bool
}

// Node is a variable or a constant RDF term in a pattern.
type Node struct {
	Var  string
	Term rdf.Term
}

// IsVar reports whether the node is a variable.
func (n Node) IsVar() bool { return n.Var != "" }

// String renders the node in SPARQL syntax.
func (n Node) String() string {
	if n.Var != "" {
		return "?" + n.Var
	}
	return n.Term.String()
}

// TriplePattern is a triple with variables. Path is set instead of P for
// property path predicates.
type TriplePattern struct {
	S    Node
	P    Node
	O    Node
	Path Path
}

// Pattern is a graph pattern element.
type Pattern interface {
	isPattern()
}

// Group is a sequence of pattern elements evaluated as a join.
type Group struct {
	Elements []Pattern
}

// BGP is a basic graph pattern.
type BGP struct {
	Triples []TriplePattern
}

// Optional is OPTIONAL { ... }.
type Optional struct {
	Group *Group
}

// Union is { ... } UNION { ... } [UNION ...].
type Union struct {
	Alternatives []*Group
}

// Minus is MINUS { ... }.
type Minus struct {
	Group *Group
}

// Filter is FILTER(expr).
type Filter struct {
	Expr Expr
}

// Bind is BIND(expr AS ?var).
type Bind struct {
	Expr Expr
	Var  string
}

// Values is an inline VALUES block. Zero terms are UNDEF.
type Values struct {
	Vars []string
	Rows [][]rdf.Term
}

// GraphPattern is GRAPH name { ... }.
type GraphPattern struct {
	Name  Node
	Group *Group
}

// SubQuery is a nested SELECT.
type SubQuery struct {
	Query *Query
}

func (*Group) isPattern()        {}
func (*BGP) isPattern()          {}
func (*Optional) isPattern()     {}
func (*Union) isPattern()        {}
func (*Minus) isPattern()        {}
func (*Filter) isPattern()       {}
func (*Bind) isPattern()         {}
func (*Values) isPattern()       {}
func (*GraphPattern) isPattern() {}
func (*SubQuery) isPattern()     {}

// Path is a property path expression.
type Path interface {
	isPath()
}

// PathIRI is a single predicate.
type PathIRI struct{ IRI string }

// PathInverse is ^path.
type PathInverse struct{ Path Path }

// PathSequence is path1/path2/...
type PathSequence struct{ Parts []Path }

// PathAlternative is path1|path2|...
type PathAlternative struct{ Alternatives []Path }

// PathRepeat is path*, path+ or path?.
type PathRepeat struct {
	Path Path
	Min  int
	// Max is 1 for path? and -1 for unbounded.
	Max int
}

// PathNegated is !(iri|^iri...).
type PathNegated struct {
	Forward []string
	Inverse []string
}

func (PathIRI) isPath()         {}
func (PathInverse) isPath()     {}
func (PathSequence) isPath()    {}
func (PathAlternative) isPath() {}
func (PathRepeat) isPath()      {}
func (PathNegated) isPath()     {}

// Expr is a SPARQL expression.
type Expr interface {
	isExpr()
}

// ExprVar is a variable reference.
type ExprVar struct{ Name string }

// ExprTerm is a constant.
type ExprTerm struct{ Term rdf.Term }

// ExprBinary is a binary operator application.
type ExprBinary struct {
	Op    string
	Left  Expr
	Right Expr
}

// ExprUnary is !, unary + or unary -.
type ExprUnary struct {
	Op string
	X  Expr
}

// ExprCall is a built-in or IRI function call.
type ExprCall struct {
	Name string
	Args []Expr
}

// ExprIn is expr [NOT] IN (list).
type ExprIn struct {
	X    Expr
	List []Expr
	Not  bool
}

// ExprExists is [NOT] EXISTS { ... }.
type ExprExists struct {
	Group *Group
	Not   bool
}

// ExprAggregate is an aggregate function.
type ExprAggregate struct {
	Name      string
	Arg       Expr
	Distinct  bool
	Star      bool
	Separator string
}

func (ExprVar) isExpr()       {}
func (ExprTerm) isExpr()      {}
func (ExprBinary) isExpr()    {}
func (ExprUnary) isExpr()     {}
func (ExprCall) isExpr()      {}
func (ExprIn) isExpr()        {}
func (ExprExists) isExpr()    {}
func (ExprAggregate) isExpr() {}

// TriplePatterns returns every triple pattern of the WHERE clause, including
// those nested in OPTIONAL, UNION, MINUS, GRAPH and sub-select blocks.
func (q *Query) TriplePatterns() []TriplePattern {
	var out []TriplePattern
	if q.Where != nil {
		walkTriples(q.Where, func(tp TriplePattern) { out = append(out, tp) })
	}
	return out
}

func walkTriples(g *Group, fn func(TriplePattern)) {
	for _, el := range g.Elements {
		switch x := el.(type) {
		case *BGP:
			for _, tp := range x.Triples {
				fn(tp)
			}
		case *Group:
			walkTriples(x, fn)
		case *Optional:
			walkTriples(x.Group, fn)
		case *Minus:
			walkTriples(x.Group, fn)
		case *Union:
			for _, alt := range x.Alternatives {
				walkTriples(alt, fn)
			}
		case *GraphPattern:
			walkTriples(x.Group, fn)
		case *SubQuery:
			if x.Query.Where != nil {
				walkTriples(x.Query.Where, fn)
			}
		}
	}
}
