package sparql

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/c360studio/semlink/rdf"
)

// aggregateNames lists the SPARQL 1.1 aggregate functions.
var aggregateNames = map[string]bool{
	"COUNT": true, "SUM": true, "MIN": true, "MAX": true,
	"AVG": true, "SAMPLE": true, "GROUP_CONCAT": true,
}

type parser struct {
	toks     []token
	pos      int
	prefixes map[string]string
	base     string
	bnodes   int
	// template is set while parsing a CONSTRUCT template, where blank
	// nodes stay blank nodes instead of becoming hidden variables.
	template bool
}

// Parse parses a SPARQL 1.1 query. Undeclared prefixes fall back to the
// well-known ones (rdf, rdfs, owl, xsd, ...).
func Parse(query string) (*Query, error) {
	return ParseWithPrefixes(query, nil)
}

// ParseWithPrefixes parses a query with extra prefix bindings in scope.
// Bindings declared in the query take precedence.
func ParseWithPrefixes(query string, prefixes map[string]string) (q *Query, err error) {
	toks, err := tokenize(query)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, prefixes: make(map[string]string)}
	for k, v := range rdf.DefaultPrefixes() {
		p.prefixes[k] = v
	}
	for k, v := range prefixes {
		p.prefixes[k] = v
	}

	defer func() {
		if r := recover(); r != nil {
			se, ok := r.(*SyntaxError)
			if !ok {
				panic(r)
			}
			q, err = nil, se
		}
	}()
	q = p.parseQuery()
	return q, nil
}

// IsHiddenVar reports whether a variable was introduced by the parser for a
// blank node in a query pattern. Hidden variables are not projected by *.
func IsHiddenVar(name string) bool { return strings.HasPrefix(name, "_:") }

func (p *parser) errorf(format string, args ...any) {
	panic(&SyntaxError{Pos: p.peek().pos, Msg: fmt.Sprintf(format, args...)})
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(off int) token {
	if p.pos+off >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+off]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isWord(kw string) bool {
	t := p.peek()
	return t.kind == tokWord && strings.EqualFold(t.text, kw)
}

func (p *parser) acceptWord(kw string) bool {
	if p.isWord(kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectWord(kw string) {
	if !p.acceptWord(kw) {
		p.errorf("expected %s, found %s", kw, p.peek())
	}
}

func (p *parser) isPunct(s string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.text == s
}

func (p *parser) acceptPunct(s string) bool {
	if p.isPunct(s) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectPunct(s string) {
	if !p.acceptPunct(s) {
		p.errorf("expected %q, found %s", s, p.peek())
	}
}

func (p *parser) expectVar() string {
	t := p.peek()
	if t.kind != tokVar {
		p.errorf("expected variable, found %s", t)
	}
	p.pos++
	return t.text
}

func (p *parser) parseQuery() *Query {
	q := &Query{Limit: -1, Prefixes: map[string]string{}}
	p.parsePrologue(q)

	switch {
	case p.acceptWord("SELECT"):
		q.Form = FormSelect
		p.parseSelectClause(q)
		p.parseDatasetClauses(q)
		p.acceptWord("WHERE")
		q.Where = p.parseGroup()
	case p.acceptWord("ASK"):
		q.Form = FormAsk
		p.parseDatasetClauses(q)
		p.acceptWord("WHERE")
		q.Where = p.parseGroup()
	case p.acceptWord("CONSTRUCT"):
		q.Form = FormConstruct
		if p.isPunct("{") {
			q.Template = p.parseTemplate()
			p.parseDatasetClauses(q)
			p.acceptWord("WHERE")
			q.Where = p.parseGroup()
		} else {
			p.parseDatasetClauses(q)
			p.expectWord("WHERE")
			q.Where = p.parseGroup()
			for _, el := range q.Where.Elements {
				bgp, ok := el.(*BGP)
				if !ok {
					p.errorf("CONSTRUCT WHERE allows only triple patterns")
				}
				q.Template = append(q.Template, bgp.Triples...)
			}
		}
	case p.acceptWord("DESCRIBE"):
		q.Form = FormDescribe
		if p.acceptPunct("*") {
			q.Star = true
		} else {
			for {
				t := p.peek()
				if t.kind != tokVar && t.kind != tokIRI && t.kind != tokPName {
					break
				}
				q.Describe = append(q.Describe, p.parseVarOrTerm())
			}
			if len(q.Describe) == 0 {
				p.errorf("DESCRIBE needs a target")
			}
		}
		p.parseDatasetClauses(q)
		if p.acceptWord("WHERE") || p.isPunct("{") {
			q.Where = p.parseGroup()
		}
	default:
		p.errorf("expected SELECT, ASK, CONSTRUCT or DESCRIBE, found %s", p.peek())
	}

	p.parseSolutionModifiers(q)
	if p.acceptWord("VALUES") {
		q.Values = p.parseDataBlock()
	}
	if p.peek().kind != tokEOF {
		p.errorf("unexpected %s after query", p.peek())
	}
	return q
}

func (p *parser) parsePrologue(q *Query) {
	for {
		switch {
		case p.acceptWord("PREFIX"):
			t := p.next()
			if t.kind != tokPName || !strings.HasSuffix(t.text, ":") {
				p.pos--
				p.errorf("expected prefix name, found %s", t)
			}
			iri := p.next()
			if iri.kind != tokIRI {
				p.pos--
				p.errorf("expected IRI for prefix %s", t.text)
			}
			prefix := strings.TrimSuffix(t.text, ":")
			ns := p.resolve(iri.text)
			p.prefixes[prefix] = ns
			q.Prefixes[prefix] = ns
		case p.acceptWord("BASE"):
			iri := p.next()
			if iri.kind != tokIRI {
				p.pos--
				p.errorf("expected IRI after BASE")
			}
			p.base = iri.text
			q.Base = iri.text
		default:
			return
		}
	}
}

func (p *parser) parseDatasetClauses(q *Query) {
	for p.acceptWord("FROM") {
		named := p.acceptWord("NAMED")
		iri := p.parseIRI()
		if named {
			q.FromNamed = append(q.FromNamed, iri)
		} else {
			q.From = append(q.From, iri)
		}
	}
}

func (p *parser) parseSelectClause(q *Query) {
	if p.acceptWord("DISTINCT") {
		q.Distinct = true
	} else if p.acceptWord("REDUCED") {
		q.Reduced = true
	}
	if p.acceptPunct("*") {
		q.Star = true
		return
	}
	for {
		switch t := p.peek(); {
		case t.kind == tokVar:
			p.pos++
			q.Projection = append(q.Projection, Projection{Var: t.text})
			continue
		case t.kind == tokPunct && t.text == "(":
			p.pos++
			e := p.parseExpr()
			p.expectWord("AS")
			v := p.expectVar()
			p.expectPunct(")")
			q.Projection = append(q.Projection, Projection{Var: v, Expr: e})
			continue
		}
		break
	}
	if len(q.Projection) == 0 {
		p.errorf("SELECT needs variables or *")
	}
}

func (p *parser) parseSolutionModifiers(q *Query) {
	if p.acceptWord("GROUP") {
		p.expectWord("BY")
		for {
			t := p.peek()
			if t.kind == tokVar {
				p.pos++
				q.GroupBy = append(q.GroupBy, GroupCondition{Expr: ExprVar{Name: t.text}})
				continue
			}
			if t.kind == tokPunct && t.text == "(" {
				p.pos++
				e := p.parseExpr()
				var v string
				if p.acceptWord("AS") {
					v = p.expectVar()
				}
				p.expectPunct(")")
				q.GroupBy = append(q.GroupBy, GroupCondition{Expr: e, Var: v})
				continue
			}
			if p.startsCall() {
				q.GroupBy = append(q.GroupBy, GroupCondition{Expr: p.parsePrimary()})
				continue
			}
			break
		}
		if len(q.GroupBy) == 0 {
			p.errorf("GROUP BY needs a condition")
		}
	}
	if p.acceptWord("HAVING") {
		for p.isPunct("(") || p.startsCall() {
			q.Having = append(q.Having, p.parseConstraint())
		}
		if len(q.Having) == 0 {
			p.errorf("HAVING needs a condition")
		}
	}
	if p.acceptWord("ORDER") {
		p.expectWord("BY")
		for {
			switch {
			case p.isWord("ASC") || p.isWord("DESC"):
				desc := p.next().text
				p.expectPunct("(")
				e := p.parseExpr()
				p.expectPunct(")")
				q.OrderBy = append(q.OrderBy, OrderCondition{Expr: e, Desc: strings.EqualFold(desc, "DESC")})
				continue
			case p.peek().kind == tokVar:
				q.OrderBy = append(q.OrderBy, OrderCondition{Expr: ExprVar{Name: p.next().text}})
				continue
			case p.isPunct("(") || p.startsCall():
				q.OrderBy = append(q.OrderBy, OrderCondition{Expr: p.parseConstraint()})
				continue
			}
			break
		}
		if len(q.OrderBy) == 0 {
			p.errorf("ORDER BY needs a condition")
		}
	}
	for {
		switch {
		case p.acceptWord("LIMIT"):
			q.Limit = p.parseNonNegative("LIMIT")
			continue
		case p.acceptWord("OFFSET"):
			q.Offset = p.parseNonNegative("OFFSET")
			continue
		}
		return
	}
}

func (p *parser) parseNonNegative(clause string) int {
	t := p.peek()
	if t.kind != tokInteger {
		p.errorf("%s expects an integer, found %s", clause, t)
	}
	p.pos++
	n, err := strconv.Atoi(t.text)
	if err != nil || n < 0 {
		p.errorf("invalid %s %q", clause, t.text)
	}
	return n
}

// clauseWords start the clauses that may follow a solution modifier. They
// are never function names, even when a parenthesis follows.
var clauseWords = map[string]bool{
	"GROUP": true, "HAVING": true, "ORDER": true, "LIMIT": true,
	"OFFSET": true, "VALUES": true, "ASC": true, "DESC": true,
}

// startsCall reports whether the next tokens begin a built-in or IRI
// function call.
func (p *parser) startsCall() bool {
	t := p.peek()
	if t.kind != tokWord && t.kind != tokIRI && t.kind != tokPName {
		return false
	}
	if t.kind == tokWord && clauseWords[strings.ToUpper(t.text)] {
		return false
	}
	n := p.peekAt(1)
	return (n.kind == tokPunct && n.text == "(") || n.kind == tokNil
}

func (p *parser) parseConstraint() Expr {
	if p.acceptPunct("(") {
		e := p.parseExpr()
		p.expectPunct(")")
		return e
	}
	return p.parsePrimary()
}

func (p *parser) parseTemplate() []TriplePattern {
	p.expectPunct("{")
	p.template = true
	defer func() { p.template = false }()
	var out []TriplePattern
	for !p.acceptPunct("}") {
		if p.acceptPunct(".") {
			continue
		}
		if p.peek().kind == tokEOF {
			p.errorf("unterminated CONSTRUCT template")
		}
		p.parseTriplesSameSubject(func(tp TriplePattern) { out = append(out, tp) })
	}
	return out
}

// parseGroup parses a GroupGraphPattern including the braces.
func (p *parser) parseGroup() *Group {
	p.expectPunct("{")
	g := &Group{}
	if p.isWord("SELECT") {
		sub := p.parseSubSelect()
		p.expectPunct("}")
		g.Elements = append(g.Elements, &SubQuery{Query: sub})
		return g
	}

	addTriple := func(tp TriplePattern) {
		if n := len(g.Elements); n > 0 {
			if bgp, ok := g.Elements[n-1].(*BGP); ok {
				bgp.Triples = append(bgp.Triples, tp)
				return
			}
		}
		g.Elements = append(g.Elements, &BGP{Triples: []TriplePattern{tp}})
	}

	for {
		t := p.peek()
		switch {
		case t.kind == tokEOF:
			p.errorf("unterminated group pattern")
		case t.kind == tokPunct && t.text == "}":
			p.pos++
			return g
		case t.kind == tokPunct && t.text == ".":
			p.pos++
		case p.acceptWord("OPTIONAL"):
			g.Elements = append(g.Elements, &Optional{Group: p.parseGroup()})
		case p.acceptWord("MINUS"):
			g.Elements = append(g.Elements, &Minus{Group: p.parseGroup()})
		case p.acceptWord("GRAPH"):
			name := p.parseVarOrTerm()
			if !name.IsVar() && !name.Term.IsIRI() {
				p.errorf("GRAPH expects a variable or IRI")
			}
			g.Elements = append(g.Elements, &GraphPattern{Name: name, Group: p.parseGroup()})
		case p.acceptWord("FILTER"):
			g.Elements = append(g.Elements, &Filter{Expr: p.parseConstraint()})
		case p.acceptWord("BIND"):
			p.expectPunct("(")
			e := p.parseExpr()
			p.expectWord("AS")
			v := p.expectVar()
			p.expectPunct(")")
			g.Elements = append(g.Elements, &Bind{Expr: e, Var: v})
		case p.acceptWord("VALUES"):
			g.Elements = append(g.Elements, p.parseDataBlock())
		case p.isWord("SERVICE"):
			p.errorf("SERVICE is not supported")
		case t.kind == tokPunct && t.text == "{":
			first := p.parseGroup()
			if !p.isWord("UNION") {
				g.Elements = append(g.Elements, first)
				continue
			}
			u := &Union{Alternatives: []*Group{first}}
			for p.acceptWord("UNION") {
				u.Alternatives = append(u.Alternatives, p.parseGroup())
			}
			g.Elements = append(g.Elements, u)
		case p.startsTerm():
			p.parseTriplesSameSubject(addTriple)
		default:
			p.errorf("unexpected %s in group pattern", t)
		}
	}
}

func (p *parser) parseSubSelect() *Query {
	p.expectWord("SELECT")
	q := &Query{Form: FormSelect, Limit: -1, Prefixes: map[string]string{}}
	p.parseSelectClause(q)
	p.acceptWord("WHERE")
	q.Where = p.parseGroup()
	p.parseSolutionModifiers(q)
	if p.acceptWord("VALUES") {
		q.Values = p.parseDataBlock()
	}
	return q
}

func (p *parser) startsTerm() bool {
	t := p.peek()
	switch t.kind {
	case tokVar, tokIRI, tokPName, tokBlank, tokAnon, tokNil, tokString,
		tokInteger, tokDecimal, tokDouble:
		return true
	case tokPunct:
		return t.text == "[" || t.text == "(" ||
			((t.text == "+" || t.text == "-") && isNumberKind(p.peekAt(1).kind))
	case tokWord:
		return strings.EqualFold(t.text, "true") || strings.EqualFold(t.text, "false")
	}
	return false
}

func isNumberKind(k tokenKind) bool {
	return k == tokInteger || k == tokDecimal || k == tokDouble
}

func (p *parser) parseDataBlock() *Values {
	v := &Values{}
	if t := p.peek(); t.kind == tokVar {
		p.pos++
		v.Vars = []string{t.text}
		p.expectPunct("{")
		for !p.acceptPunct("}") {
			v.Rows = append(v.Rows, []rdf.Term{p.parseDataValue()})
		}
		return v
	}
	if p.peek().kind == tokNil {
		p.pos++
	} else {
		p.expectPunct("(")
		for !p.acceptPunct(")") {
			v.Vars = append(v.Vars, p.expectVar())
		}
	}
	p.expectPunct("{")
	for !p.acceptPunct("}") {
		if p.peek().kind == tokNil {
			p.pos++
			if len(v.Vars) != 0 {
				p.errorf("VALUES row has 0 values, want %d", len(v.Vars))
			}
			v.Rows = append(v.Rows, nil)
			continue
		}
		p.expectPunct("(")
		var row []rdf.Term
		for !p.acceptPunct(")") {
			row = append(row, p.parseDataValue())
		}
		if len(row) != len(v.Vars) {
			p.errorf("VALUES row has %d values, want %d", len(row), len(v.Vars))
		}
		v.Rows = append(v.Rows, row)
	}
	return v
}

func (p *parser) parseDataValue() rdf.Term {
	if p.acceptWord("UNDEF") {
		return rdf.Term{}
	}
	n := p.parseVarOrTerm()
	if n.IsVar() || n.Term.IsBlank() {
		p.errorf("VALUES accepts only IRIs, literals and UNDEF")
	}
	return n.Term
}

// parseTriplesSameSubject parses a subject with its property list and calls
// emit for every triple pattern produced.
func (p *parser) parseTriplesSameSubject(emit func(TriplePattern)) {
	var subj Node
	switch t := p.peek(); {
	case t.kind == tokPunct && t.text == "[":
		p.pos++
		subj = p.freshBlank()
		p.parsePropertyList(subj, emit, true)
		p.expectPunct("]")
		if p.startsVerb() {
			p.parsePropertyList(subj, emit, true)
		}
		return
	case t.kind == tokPunct && t.text == "(":
		subj = p.parseCollection(emit)
		if p.startsVerb() {
			p.parsePropertyList(subj, emit, true)
		}
		return
	}
	subj = p.parseVarOrTerm()
	p.parsePropertyList(subj, emit, true)
}

func (p *parser) startsVerb() bool {
	t := p.peek()
	switch t.kind {
	case tokVar, tokIRI, tokPName:
		return true
	case tokWord:
		return t.text == "a"
	case tokPunct:
		return t.text == "^" || t.text == "!" || t.text == "("
	}
	return false
}

func (p *parser) parsePropertyList(subj Node, emit func(TriplePattern), required bool) {
	if !p.startsVerb() {
		if required {
			p.errorf("expected predicate, found %s", p.peek())
		}
		return
	}
	for {
		tp := TriplePattern{S: subj}
		if t := p.peek(); t.kind == tokVar {
			p.pos++
			tp.P = Node{Var: t.text}
		} else {
			path := p.parsePath()
			if iri, ok := path.(PathIRI); ok {
				tp.P = Node{Term: rdf.NewIRI(iri.IRI)}
			} else {
				tp.Path = path
			}
		}
		for {
			o := tp
			o.O = p.parseObject(emit)
			emit(o)
			if !p.acceptPunct(",") {
				break
			}
		}
		if !p.acceptPunct(";") {
			return
		}
		for p.acceptPunct(";") {
			// repeated separators are allowed
		}
		if !p.startsVerb() {
			return
		}
	}
}

func (p *parser) parseObject(emit func(TriplePattern)) Node {
	switch t := p.peek(); {
	case t.kind == tokPunct && t.text == "[":
		p.pos++
		b := p.freshBlank()
		p.parsePropertyList(b, emit, true)
		p.expectPunct("]")
		return b
	case t.kind == tokPunct && t.text == "(":
		return p.parseCollection(emit)
	}
	return p.parseVarOrTerm()
}

func (p *parser) parseCollection(emit func(TriplePattern)) Node {
	p.expectPunct("(")
	var items []Node
	for !p.acceptPunct(")") {
		if p.peek().kind == tokEOF {
			p.errorf("unterminated collection")
		}
		items = append(items, p.parseObject(emit))
	}
	nilNode := Node{Term: rdf.NewIRI(rdf.RDFNil)}
	if len(items) == 0 {
		return nilNode
	}
	first := Node{Term: rdf.NewIRI(rdf.RDFFirst)}
	rest := Node{Term: rdf.NewIRI(rdf.RDFRest)}
	head := p.freshBlank()
	cur := head
	for i, item := range items {
		emit(TriplePattern{S: cur, P: first, O: item})
		next := nilNode
		if i < len(items)-1 {
			next = p.freshBlank()
		}
		emit(TriplePattern{S: cur, P: rest, O: next})
		cur = next
	}
	return head
}

func (p *parser) freshBlank() Node {
	p.bnodes++
	return p.blankNode("b" + strconv.Itoa(p.bnodes) + "_")
}

func (p *parser) blankNode(label string) Node {
	if p.template {
		return Node{Term: rdf.NewBlank(label)}
	}
	return Node{Var: "_:" + label}
}

func (p *parser) parsePath() Path {
	alts := []Path{p.parsePathSequence()}
	for p.acceptPunct("|") {
		alts = append(alts, p.parsePathSequence())
	}
	if len(alts) == 1 {
		return alts[0]
	}
	return PathAlternative{Alternatives: alts}
}

func (p *parser) parsePathSequence() Path {
	parts := []Path{p.parsePathEltOrInverse()}
	for p.acceptPunct("/") {
		parts = append(parts, p.parsePathEltOrInverse())
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return PathSequence{Parts: parts}
}

func (p *parser) parsePathEltOrInverse() Path {
	if p.acceptPunct("^") {
		return PathInverse{Path: p.parsePathElt()}
	}
	return p.parsePathElt()
}

func (p *parser) parsePathElt() Path {
	prim := p.parsePathPrimary()
	switch {
	case p.acceptPunct("?"):
		return PathRepeat{Path: prim, Min: 0, Max: 1}
	case p.acceptPunct("*"):
		return PathRepeat{Path: prim, Min: 0, Max: -1}
	case p.acceptPunct("+"):
		return PathRepeat{Path: prim, Min: 1, Max: -1}
	}
	return prim
}

func (p *parser) parsePathPrimary() Path {
	switch t := p.peek(); {
	case t.kind == tokWord && t.text == "a":
		p.pos++
		return PathIRI{IRI: rdf.RDFType}
	case t.kind == tokIRI || t.kind == tokPName:
		return PathIRI{IRI: p.parseIRI()}
	case t.kind == tokPunct && t.text == "!":
		p.pos++
		neg := PathNegated{}
		if p.acceptPunct("(") {
			for {
				p.parseNegatedOne(&neg)
				if !p.acceptPunct("|") {
					break
				}
			}
			p.expectPunct(")")
		} else {
			p.parseNegatedOne(&neg)
		}
		return neg
	case t.kind == tokPunct && t.text == "(":
		p.pos++
		path := p.parsePath()
		p.expectPunct(")")
		return path
	}
	p.errorf("expected property path, found %s", p.peek())
	return nil
}

func (p *parser) parseNegatedOne(neg *PathNegated) {
	inverse := p.acceptPunct("^")
	var iri string
	if p.peek().kind == tokWord && p.peek().text == "a" {
		p.pos++
		iri = rdf.RDFType
	} else {
		iri = p.parseIRI()
	}
	if inverse {
		neg.Inverse = append(neg.Inverse, iri)
	} else {
		neg.Forward = append(neg.Forward, iri)
	}
}

func (p *parser) parseIRI() string {
	t := p.next()
	switch t.kind {
	case tokIRI:
		return p.resolve(t.text)
	case tokPName:
		return p.expand(t.text)
	}
	p.pos--
	p.errorf("expected IRI, found %s", t)
	return ""
}

func (p *parser) expand(pname string) string {
	i := strings.IndexByte(pname, ':')
	prefix, local := pname[:i], pname[i+1:]
	ns, ok := p.prefixes[prefix]
	if !ok {
		p.pos--
		p.errorf("unknown prefix %q", prefix)
	}
	return ns + local
}

func (p *parser) resolve(iri string) string {
	if p.base == "" {
		return iri
	}
	ref, err := url.Parse(iri)
	if err != nil || ref.IsAbs() {
		return iri
	}
	base, err := url.Parse(p.base)
	if err != nil {
		return iri
	}
	return base.ResolveReference(ref).String()
}

func (p *parser) parseVarOrTerm() Node {
	t := p.peek()
	switch t.kind {
	case tokVar:
		p.pos++
		return Node{Var: t.text}
	case tokBlank:
		p.pos++
		return p.blankNode(t.text)
	case tokAnon:
		p.pos++
		return p.freshBlank()
	case tokNil:
		p.pos++
		return Node{Term: rdf.NewIRI(rdf.RDFNil)}
	case tokIRI, tokPName:
		return Node{Term: rdf.NewIRI(p.parseIRI())}
	}
	if lit, ok := p.parseLiteral(); ok {
		return Node{Term: lit}
	}
	p.errorf("expected term, found %s", t)
	return Node{}
}

// parseLiteral parses a string, numeric or boolean literal.
func (p *parser) parseLiteral() (rdf.Term, bool) {
	t := p.peek()
	switch t.kind {
	case tokString:
		p.pos++
		if lt := p.peek(); lt.kind == tokLangTag {
			p.pos++
			return rdf.NewLangLiteral(t.text, lt.text), true
		}
		if p.acceptPunct("^^") {
			return rdf.NewTypedLiteral(t.text, p.parseIRI()), true
		}
		return rdf.NewLiteral(t.text), true
	case tokInteger, tokDecimal, tokDouble:
		p.pos++
		return numericLiteral(t.kind, t.text), true
	case tokPunct:
		if (t.text == "+" || t.text == "-") && isNumberKind(p.peekAt(1).kind) {
			p.pos++
			n := p.next()
			text := n.text
			if t.text == "-" {
				text = "-" + text
			}
			return numericLiteral(n.kind, text), true
		}
	case tokWord:
		switch {
		case strings.EqualFold(t.text, "true"):
			p.pos++
			return rdf.NewBoolean(true), true
		case strings.EqualFold(t.text, "false"):
			p.pos++
			return rdf.NewBoolean(false), true
		}
	}
	return rdf.Term{}, false
}

func numericLiteral(kind tokenKind, text string) rdf.Term {
	switch kind {
	case tokDecimal:
		return rdf.NewTypedLiteral(text, rdf.XSDDecimal)
	case tokDouble:
		return rdf.NewTypedLiteral(text, rdf.XSDDouble)
	}
	return rdf.NewTypedLiteral(text, rdf.XSDInteger)
}

// Expressions, lowest precedence first.

func (p *parser) parseExpr() Expr {
	left := p.parseAnd()
	for p.acceptPunct("||") {
		left = ExprBinary{Op: "||", Left: left, Right: p.parseAnd()}
	}
	return left
}

func (p *parser) parseAnd() Expr {
	left := p.parseRelational()
	for p.acceptPunct("&&") {
		left = ExprBinary{Op: "&&", Left: left, Right: p.parseRelational()}
	}
	return left
}

func (p *parser) parseRelational() Expr {
	left := p.parseAdditive()
	for _, op := range []string{"=", "!=", "<=", ">=", "<", ">"} {
		if p.acceptPunct(op) {
			return ExprBinary{Op: op, Left: left, Right: p.parseAdditive()}
		}
	}
	if p.isWord("IN") {
		p.pos++
		return ExprIn{X: left, List: p.parseExprList()}
	}
	if p.isWord("NOT") && p.peekAt(1).kind == tokWord && strings.EqualFold(p.peekAt(1).text, "IN") {
		p.pos += 2
		return ExprIn{X: left, List: p.parseExprList(), Not: true}
	}
	return left
}

func (p *parser) parseAdditive() Expr {
	left := p.parseMultiplicative()
	for {
		switch {
		case p.acceptPunct("+"):
			left = ExprBinary{Op: "+", Left: left, Right: p.parseMultiplicative()}
		case p.acceptPunct("-"):
			left = ExprBinary{Op: "-", Left: left, Right: p.parseMultiplicative()}
		default:
			return left
		}
	}
}

func (p *parser) parseMultiplicative() Expr {
	left := p.parseUnary()
	for {
		switch {
		case p.acceptPunct("*"):
			left = ExprBinary{Op: "*", Left: left, Right: p.parseUnary()}
		case p.acceptPunct("/"):
			left = ExprBinary{Op: "/", Left: left, Right: p.parseUnary()}
		default:
			return left
		}
	}
}

func (p *parser) parseUnary() Expr {
	switch {
	case p.acceptPunct("!"):
		return ExprUnary{Op: "!", X: p.parseUnary()}
	case p.isPunct("+") && !isNumberKind(p.peekAt(1).kind):
		p.pos++
		return ExprUnary{Op: "+", X: p.parseUnary()}
	case p.isPunct("-") && !isNumberKind(p.peekAt(1).kind):
		p.pos++
		return ExprUnary{Op: "-", X: p.parseUnary()}
	}
	return p.parsePrimary()
}

func (p *parser) parseExprList() []Expr {
	if p.peek().kind == tokNil {
		p.pos++
		return nil
	}
	p.expectPunct("(")
	var out []Expr
	for {
		out = append(out, p.parseExpr())
		if !p.acceptPunct(",") {
			break
		}
	}
	p.expectPunct(")")
	return out
}

func (p *parser) parsePrimary() Expr {
	t := p.peek()
	switch t.kind {
	case tokVar:
		p.pos++
		return ExprVar{Name: t.text}
	case tokPunct:
		if t.text == "(" {
			p.pos++
			e := p.parseExpr()
			p.expectPunct(")")
			return e
		}
	case tokIRI, tokPName:
		iri := p.parseIRI()
		if p.isPunct("(") || p.peek().kind == tokNil {
			return ExprCall{Name: iri, Args: p.parseExprList()}
		}
		return ExprTerm{Term: rdf.NewIRI(iri)}
	case tokWord:
		name := strings.ToUpper(t.text)
		switch {
		case name == "TRUE" || name == "FALSE":
		case name == "EXISTS":
			p.pos++
			return ExprExists{Group: p.parseGroup()}
		case name == "NOT":
			p.pos++
			p.expectWord("EXISTS")
			return ExprExists{Group: p.parseGroup(), Not: true}
		case aggregateNames[name]:
			p.pos++
			return p.parseAggregate(name)
		default:
			p.pos++
			if name == "BOUND" {
				p.expectPunct("(")
				v := p.expectVar()
				p.expectPunct(")")
				return ExprCall{Name: name, Args: []Expr{ExprVar{Name: v}}}
			}
			if !p.isPunct("(") && p.peek().kind != tokNil {
				p.pos--
				p.errorf("unknown keyword %s", t)
			}
			return ExprCall{Name: name, Args: p.parseExprList()}
		}
	}
	if lit, ok := p.parseLiteral(); ok {
		return ExprTerm{Term: lit}
	}
	p.errorf("expected expression, found %s", t)
	return nil
}

func (p *parser) parseAggregate(name string) Expr {
	agg := ExprAggregate{Name: name}
	p.expectPunct("(")
	agg.Distinct = p.acceptWord("DISTINCT")
	if name == "COUNT" && p.acceptPunct("*") {
		agg.Star = true
	} else {
		agg.Arg = p.parseExpr()
	}
	if name == "GROUP_CONCAT" {
		agg.Separator = " "
		if p.acceptPunct(";") {
			p.expectWord("SEPARATOR")
			p.expectPunct("=")
			t := p.next()
			if t.kind != tokString {
				p.pos--
				p.errorf("SEPARATOR expects a string")
			}
			agg.Separator = t.text
		}
	}
	p.expectPunct(")")
	return agg
}
