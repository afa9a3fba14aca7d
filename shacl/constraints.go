package shacl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/c360studio/semlink/rdf"
	"github.com/c360studio/semlink/sparql"
)

// constraint is one constraint component instance of a shape.
type constraint interface {
	component() string
	evaluate(ec *evalContext, s *Shape, focus rdf.Term, values []rdf.Term) ([]finding, error)
}

// finding is a single constraint failure before it becomes a Result.
type finding struct {
	value    rdf.Term
	path     rdf.Term
	message  string
	messages []rdf.Term
	source   rdf.Term
}

func (sg *ShapesGraph) parseConstraints(s *Shape) ([]constraint, error) {
	g := sg.graph
	id := s.ID
	var out []constraint

	for _, c := range g.Objects(id, iri(shClass)) {
		out = append(out, classConstraint{class: c})
	}
	for _, dt := range g.Objects(id, iri(shDatatype)) {
		out = append(out, datatypeConstraint{datatype: dt})
	}
	for _, k := range g.Objects(id, iri(shNodeKind)) {
		out = append(out, nodeKindConstraint{kind: k})
	}

	for _, spec := range []struct {
		pred string
		max  bool
	}{{shMinCount, false}, {shMaxCount, true}} {
		if v, ok := g.Object(id, iri(spec.pred)); ok {
			if !s.Property {
				return nil, fmt.Errorf("%s is only allowed on property shapes", rdf.LocalName(spec.pred))
			}
			n, err := integerValue(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", rdf.LocalName(spec.pred), err)
			}
			out = append(out, countConstraint{n: n, max: spec.max})
		}
	}

	for op, pred := range []string{shMinInclusive, shMaxInclusive, shMinExclusive, shMaxExclusive} {
		if v, ok := g.Object(id, iri(pred)); ok {
			out = append(out, rangeConstraint{op: rangeOp(op), bound: v})
		}
	}

	for _, spec := range []struct {
		pred string
		max  bool
	}{{shMinLength, false}, {shMaxLength, true}} {
		if v, ok := g.Object(id, iri(spec.pred)); ok {
			n, err := integerValue(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", rdf.LocalName(spec.pred), err)
			}
			out = append(out, lengthConstraint{n: n, max: spec.max})
		}
	}

	flags, _ := g.Object(id, iri(shFlags))
	for _, p := range g.Objects(id, iri(shPattern)) {
		re, err := compilePattern(p.Value, flags.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, patternConstraint{source: p.Value, re: re})
	}

	if v, ok := g.Object(id, iri(shLanguageIn)); ok {
		var langs []string
		for _, l := range g.List(v) {
			langs = append(langs, l.Value)
		}
		out = append(out, languageInConstraint{langs: langs})
	}
	if v, ok := g.Object(id, iri(shUniqueLang)); ok && v.Value == "true" {
		if !s.Property {
			return nil, fmt.Errorf("uniqueLang is only allowed on property shapes")
		}
		out = append(out, uniqueLangConstraint{})
	}

	for _, p := range g.Objects(id, iri(shEquals)) {
		out = append(out, pairConstraint{kind: pairEquals, pred: p})
	}
	for _, p := range g.Objects(id, iri(shDisjoint)) {
		out = append(out, pairConstraint{kind: pairDisjoint, pred: p})
	}
	for _, p := range g.Objects(id, iri(shLessThan)) {
		out = append(out, pairConstraint{kind: pairLessThan, pred: p})
	}
	for _, p := range g.Objects(id, iri(shLessThanOrEquals)) {
		out = append(out, pairConstraint{kind: pairLessThanOrEquals, pred: p})
	}

	if v, ok := g.Object(id, iri(shIn)); ok {
		out = append(out, inConstraint{list: g.List(v)})
	}
	for _, v := range g.Objects(id, iri(shHasValue)) {
		out = append(out, hasValueConstraint{value: v})
	}

	for _, n := range g.Objects(id, iri(shNode)) {
		out = append(out, logicalConstraint{kind: logicalNode, shapes: []rdf.Term{n}, source: n})
	}
	for _, n := range g.Objects(id, iri(shNot)) {
		out = append(out, logicalConstraint{kind: logicalNot, shapes: []rdf.Term{n}, source: n})
	}
	for i, pred := range []string{shAnd, shOr, shXone} {
		for _, list := range g.Objects(id, iri(pred)) {
			out = append(out, logicalConstraint{kind: logicalAnd + logicalKind(i), shapes: g.List(list), source: list})
		}
	}

	if v, ok := g.Object(id, iri(shClosed)); ok && v.Value == "true" {
		allowed := make(map[rdf.Term]bool)
		for _, p := range g.Objects(id, iri(shProperty)) {
			if pathNode, ok := g.Object(p, iri(shPath)); ok && pathNode.IsIRI() {
				allowed[pathNode] = true
			}
		}
		if ignored, ok := g.Object(id, iri(shIgnoredProps)); ok {
			for _, p := range g.List(ignored) {
				allowed[p] = true
			}
		}
		out = append(out, closedConstraint{allowed: allowed})
	}

	for _, node := range g.Objects(id, iri(shSPARQL)) {
		c, err := sg.parseSPARQLConstraint(s, node)
		if err != nil {
			return nil, err
		}
		if c != nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

type classConstraint struct{ class rdf.Term }

func (classConstraint) component() string { return ClassComponent }

func (c classConstraint) evaluate(ec *evalContext, _ *Shape, _ rdf.Term, values []rdf.Term) ([]finding, error) {
	var out []finding
	for _, v := range values {
		if !isInstance(ec.data, v, c.class) {
			out = append(out, finding{value: v, message: fmt.Sprintf("Value does not have class %s", c.class)})
		}
	}
	return out, nil
}

type datatypeConstraint struct{ datatype rdf.Term }

func (datatypeConstraint) component() string { return DatatypeComponent }

func (c datatypeConstraint) evaluate(_ *evalContext, _ *Shape, _ rdf.Term, values []rdf.Term) ([]finding, error) {
	var out []finding
	for _, v := range values {
		if !hasDatatype(v, c.datatype.Value) {
			out = append(out, finding{value: v, message: fmt.Sprintf("Value is not Literal with datatype %s", c.datatype)})
		}
	}
	return out, nil
}

func hasDatatype(v rdf.Term, dt string) bool {
	if !v.IsLiteral() {
		return false
	}
	actual := v.Datatype
	switch {
	case v.Lang != "":
		actual = rdf.RDFLangString
	case actual == "":
		actual = rdf.XSDString
	}
	if actual != dt {
		return false
	}
	return wellFormed(v.Value, dt)
}

// wellFormed checks the lexical form of the common XSD datatypes.
func wellFormed(lex, dt string) bool {
	switch dt {
	case rdf.XSDInteger, rdf.XSDNS + "int", rdf.XSDNS + "long", rdf.XSDNS + "short",
		rdf.XSDNS + "nonNegativeInteger", rdf.XSDNS + "positiveInteger":
		n, err := strconv.ParseInt(lex, 10, 64)
		if err != nil {
			return false
		}
		switch dt {
		case rdf.XSDNS + "nonNegativeInteger":
			return n >= 0
		case rdf.XSDNS + "positiveInteger":
			return n > 0
		}
		return true
	case rdf.XSDDecimal, rdf.XSDDouble, rdf.XSDFloat:
		switch lex {
		case "INF", "-INF", "NaN":
			return dt != rdf.XSDDecimal
		}
		_, err := strconv.ParseFloat(lex, 64)
		return err == nil
	case rdf.XSDBoolean:
		switch lex {
		case "true", "false", "1", "0":
			return true
		}
		return false
	case rdf.XSDDateTime, rdf.XSDDate:
		_, err := sparql.ParseDateTime(lex)
		return err == nil
	}
	return true
}

type nodeKindConstraint struct{ kind rdf.Term }

func (nodeKindConstraint) component() string { return NodeKindComponent }

func (c nodeKindConstraint) evaluate(_ *evalContext, _ *Shape, _ rdf.Term, values []rdf.Term) ([]finding, error) {
	var out []finding
	for _, v := range values {
		if !matchesNodeKind(v, c.kind.Value) {
			out = append(out, finding{value: v, message: fmt.Sprintf("Value is not of Node Kind %s", c.kind)})
		}
	}
	return out, nil
}

func matchesNodeKind(v rdf.Term, kind string) bool {
	switch kind {
	case shIRI:
		return v.IsIRI()
	case shBlankNode:
		return v.IsBlank()
	case shLiteral:
		return v.IsLiteral()
	case shBlankNodeOrIRI:
		return v.IsResource()
	case shBlankNodeOrLiteral:
		return v.IsBlank() || v.IsLiteral()
	case shIRIOrLiteral:
		return v.IsIRI() || v.IsLiteral()
	}
	return false
}

type countConstraint struct {
	n   int
	max bool
}

func (c countConstraint) component() string {
	if c.max {
		return MaxCountComponent
	}
	return MinCountComponent
}

func (c countConstraint) evaluate(_ *evalContext, s *Shape, focus rdf.Term, values []rdf.Term) ([]finding, error) {
	if c.max && len(values) > c.n {
		return []finding{{message: fmt.Sprintf("More than %d values on %s->%s", c.n, focus, s.Path)}}, nil
	}
	if !c.max && len(values) < c.n {
		return []finding{{message: fmt.Sprintf("Less than %d values on %s->%s", c.n, focus, s.Path)}}, nil
	}
	return nil, nil
}

type rangeOp int

const (
	opMinInclusive rangeOp = iota
	opMaxInclusive
	opMinExclusive
	opMaxExclusive
)

type rangeConstraint struct {
	op    rangeOp
	bound rdf.Term
}

func (c rangeConstraint) component() string {
	return [...]string{MinInclusiveComponent, MaxInclusiveComponent, MinExclusiveComponent, MaxExclusiveComponent}[c.op]
}

func (c rangeConstraint) evaluate(_ *evalContext, _ *Shape, _ rdf.Term, values []rdf.Term) ([]finding, error) {
	symbol := [...]string{">=", "<=", ">", "<"}[c.op]
	var out []finding
	for _, v := range values {
		cmp, ok := compareValues(v, c.bound)
		pass := ok
		if ok {
			switch c.op {
			case opMinInclusive:
				pass = cmp >= 0
			case opMaxInclusive:
				pass = cmp <= 0
			case opMinExclusive:
				pass = cmp > 0
			case opMaxExclusive:
				pass = cmp < 0
			}
		}
		if !pass {
			out = append(out, finding{value: v, message: fmt.Sprintf("Value is not %s %s", symbol, c.bound)})
		}
	}
	return out, nil
}

// compareValues orders two literals of compatible types. The boolean is
// false when the values cannot be compared.
func compareValues(a, b rdf.Term) (int, bool) {
	if !a.IsLiteral() || !b.IsLiteral() {
		return 0, false
	}
	if af, ok := a.Float(); ok {
		bf, ok := b.Float()
		if !ok {
			return 0, false
		}
		return compareOrdered(af, bf), true
	}
	if isTemporal(a.Datatype) && isTemporal(b.Datatype) {
		at, err1 := sparql.ParseDateTime(a.Value)
		bt, err2 := sparql.ParseDateTime(b.Value)
		if err1 != nil || err2 != nil {
			return 0, false
		}
		return at.Compare(bt), true
	}
	if isStringLike(a) && isStringLike(b) && a.Lang == b.Lang {
		return strings.Compare(a.Value, b.Value), true
	}
	return 0, false
}

func compareOrdered(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func isTemporal(dt string) bool { return dt == rdf.XSDDateTime || dt == rdf.XSDDate }

func isStringLike(t rdf.Term) bool {
	return t.Datatype == "" || t.Datatype == rdf.XSDString || t.Datatype == rdf.RDFLangString
}

type lengthConstraint struct {
	n   int
	max bool
}

func (c lengthConstraint) component() string {
	if c.max {
		return MaxLengthComponent
	}
	return MinLengthComponent
}

func (c lengthConstraint) evaluate(_ *evalContext, _ *Shape, _ rdf.Term, values []rdf.Term) ([]finding, error) {
	var out []finding
	for _, v := range values {
		n := utf8.RuneCountInString(v.Value)
		pass := !v.IsBlank() && ((c.max && n <= c.n) || (!c.max && n >= c.n))
		if pass {
			continue
		}
		symbol := ">="
		if c.max {
			symbol = "<="
		}
		out = append(out, finding{value: v, message: fmt.Sprintf("String length not %s %d", symbol, c.n)})
	}
	return out, nil
}

type patternConstraint struct {
	source string
	re     *regexp.Regexp
}

func (patternConstraint) component() string { return PatternComponent }

func (c patternConstraint) evaluate(_ *evalContext, _ *Shape, _ rdf.Term, values []rdf.Term) ([]finding, error) {
	var out []finding
	for _, v := range values {
		if v.IsBlank() || !c.re.MatchString(v.Value) {
			out = append(out, finding{value: v, message: fmt.Sprintf("Value does not match pattern %q", c.source)})
		}
	}
	return out, nil
}

func compilePattern(pattern, flags string) (*regexp.Regexp, error) {
	var goFlags string
	for _, f := range flags {
		switch f {
		case 'i', 's', 'm':
			goFlags += string(f)
		case 'x', 'q':
		default:
			return nil, fmt.Errorf("unsupported pattern flag %q", f)
		}
	}
	if goFlags != "" {
		pattern = "(?" + goFlags + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid sh:pattern: %w", err)
	}
	return re, nil
}

type languageInConstraint struct{ langs []string }

func (languageInConstraint) component() string { return LanguageInComponent }

func (c languageInConstraint) evaluate(_ *evalContext, _ *Shape, _ rdf.Term, values []rdf.Term) ([]finding, error) {
	var out []finding
	for _, v := range values {
		ok := false
		for _, l := range c.langs {
			if v.IsLiteral() && langMatches(v.Lang, l) {
				ok = true
				break
			}
		}
		if !ok {
			out = append(out, finding{value: v, message: fmt.Sprintf("String language is not in %s", strings.Join(c.langs, ", "))})
		}
	}
	return out, nil
}

func langMatches(tag, rangeTag string) bool {
	if tag == "" {
		return false
	}
	tag, rangeTag = strings.ToLower(tag), strings.ToLower(rangeTag)
	return rangeTag == "*" || tag == rangeTag || strings.HasPrefix(tag, rangeTag+"-")
}

type uniqueLangConstraint struct{}

func (uniqueLangConstraint) component() string { return UniqueLangComponent }

func (uniqueLangConstraint) evaluate(_ *evalContext, _ *Shape, _ rdf.Term, values []rdf.Term) ([]finding, error) {
	counts := make(map[string]int)
	var order []string
	for _, v := range values {
		if !v.IsLiteral() || v.Lang == "" {
			continue
		}
		lang := strings.ToLower(v.Lang)
		if counts[lang] == 0 {
			order = append(order, lang)
		}
		counts[lang]++
	}
	var out []finding
	for _, lang := range order {
		if counts[lang] > 1 {
			out = append(out, finding{message: fmt.Sprintf("More than one String shares the same Language %q", lang)})
		}
	}
	return out, nil
}

type pairKind int

const (
	pairEquals pairKind = iota
	pairDisjoint
	pairLessThan
	pairLessThanOrEquals
)

type pairConstraint struct {
	kind pairKind
	pred rdf.Term
}

func (c pairConstraint) component() string {
	return [...]string{EqualsComponent, DisjointComponent, LessThanComponent, LessThanOrEqualsComponent}[c.kind]
}

func (c pairConstraint) evaluate(ec *evalContext, _ *Shape, focus rdf.Term, values []rdf.Term) ([]finding, error) {
	others := ec.data.Objects(focus, c.pred)
	otherSet := newTermSet()
	otherSet.addAll(others)
	valueSet := newTermSet()
	valueSet.addAll(values)

	var out []finding
	switch c.kind {
	case pairEquals:
		for _, v := range values {
			if !otherSet.has(v) {
				out = append(out, finding{value: v, message: fmt.Sprintf("Value of %s != %s", focus, c.pred)})
			}
		}
		for _, o := range others {
			if !valueSet.has(o) {
				out = append(out, finding{value: o, message: fmt.Sprintf("Value of %s != %s", focus, c.pred)})
			}
		}
	case pairDisjoint:
		for _, v := range values {
			if otherSet.has(v) {
				out = append(out, finding{value: v, message: fmt.Sprintf("Value node %s is also among values of %s", v, c.pred)})
			}
		}
	default:
		symbol := "<"
		if c.kind == pairLessThanOrEquals {
			symbol = "<="
		}
		for _, v := range values {
			for _, o := range others {
				cmp, ok := compareValues(v, o)
				if ok && (cmp < 0 || (cmp == 0 && c.kind == pairLessThanOrEquals)) {
					continue
				}
				out = append(out, finding{value: v, message: fmt.Sprintf("Value is not %s value of %s", symbol, c.pred)})
				break
			}
		}
	}
	return out, nil
}

type inConstraint struct{ list []rdf.Term }

func (inConstraint) component() string { return InComponent }

func (c inConstraint) evaluate(_ *evalContext, _ *Shape, _ rdf.Term, values []rdf.Term) ([]finding, error) {
	var out []finding
	for _, v := range values {
		found := false
		for _, m := range c.list {
			if m == v {
				found = true
				break
			}
		}
		if !found {
			out = append(out, finding{value: v, message: fmt.Sprintf("Value %s not in list %s", v, termList(c.list))})
		}
	}
	return out, nil
}

func termList(ts []rdf.Term) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

type hasValueConstraint struct{ value rdf.Term }

func (hasValueConstraint) component() string { return HasValueComponent }

func (c hasValueConstraint) evaluate(_ *evalContext, _ *Shape, focus rdf.Term, values []rdf.Term) ([]finding, error) {
	for _, v := range values {
		if v == c.value {
			return nil, nil
		}
	}
	return []finding{{message: fmt.Sprintf("Node %s does not contain a value of %s", focus, c.value)}}, nil
}

type logicalKind int

const (
	logicalNode logicalKind = iota
	logicalNot
	logicalAnd
	logicalOr
	logicalXone
)

type logicalConstraint struct {
	kind   logicalKind
	shapes []rdf.Term
	source rdf.Term
}

func (c logicalConstraint) component() string {
	return [...]string{NodeComponent, NotComponent, AndComponent, OrComponent, XoneComponent}[c.kind]
}

func (c logicalConstraint) evaluate(ec *evalContext, _ *Shape, _ rdf.Term, values []rdf.Term) ([]finding, error) {
	var out []finding
	for _, v := range values {
		passed := 0
		for _, id := range c.shapes {
			shape, ok := ec.shapes.Shape(id)
			if !ok {
				return nil, fmt.Errorf("%s refers to unknown shape %s", rdf.LocalName(c.component()), id)
			}
			ok, err := ec.conforms(shape, v)
			if err != nil {
				return nil, err
			}
			if ok {
				passed++
			}
		}

		var msg string
		switch c.kind {
		case logicalNode:
			if passed == 0 {
				msg = fmt.Sprintf("Value does not conform to Shape %s", c.source)
			}
		case logicalNot:
			if passed > 0 {
				msg = fmt.Sprintf("Node %s conforms to shape %s", v, c.source)
			}
		case logicalAnd:
			if passed < len(c.shapes) {
				msg = fmt.Sprintf("Node %s must conform to all shapes in %s", v, termList(c.shapes))
			}
		case logicalOr:
			if passed == 0 {
				msg = fmt.Sprintf("Node %s must conform to one or more shapes in %s", v, termList(c.shapes))
			}
		case logicalXone:
			if passed != 1 {
				msg = fmt.Sprintf("Node %s must conform to exactly one shape in %s", v, termList(c.shapes))
			}
		}
		if msg != "" {
			out = append(out, finding{value: v, message: msg})
		}
	}
	return out, nil
}

type closedConstraint struct{ allowed map[rdf.Term]bool }

func (closedConstraint) component() string { return ClosedComponent }

func (c closedConstraint) evaluate(ec *evalContext, _ *Shape, _ rdf.Term, values []rdf.Term) ([]finding, error) {
	var out []finding
	for _, v := range values {
		if !v.IsResource() {
			continue
		}
		node := v
		triples := ec.data.Match(&node, nil, nil)
		rdf.SortTriples(triples)
		for _, t := range triples {
			if c.allowed[t.P] {
				continue
			}
			out = append(out, finding{
				value:   t.O,
				path:    t.P,
				message: fmt.Sprintf("Node %s is closed. It cannot have value: %s", v, t.O),
			})
		}
	}
	return out, nil
}

// sparqlConstraint is an sh:sparql SELECT-based constraint.
type sparqlConstraint struct {
	node     rdf.Term
	query    *sparql.Query
	messages []rdf.Term
}

func (sparqlConstraint) component() string { return SPARQLComponent }

func (sg *ShapesGraph) parseSPARQLConstraint(s *Shape, node rdf.Term) (*sparqlConstraint, error) {
	g := sg.graph
	if v, ok := g.Object(node, iri(shDeactivated)); ok && v.Value == "true" {
		return nil, nil
	}
	sel, ok := g.Object(node, iri(shSelect))
	if !ok {
		return nil, fmt.Errorf("sparql constraint %s has no sh:select", node)
	}
	text := sel.Value
	if s.Property {
		text = strings.ReplaceAll(text, "$PATH", s.Path.String())
	}
	q, err := sparql.ParseWithPrefixes(text, sg.prefixesFor(node))
	if err != nil {
		return nil, fmt.Errorf("sparql constraint %s: %w", node, err)
	}
	if q.Form != sparql.FormSelect {
		return nil, fmt.Errorf("sparql constraint %s: sh:select must be a SELECT query", node)
	}
	return &sparqlConstraint{node: node, query: q, messages: g.Objects(node, iri(shMessage))}, nil
}

func (c sparqlConstraint) evaluate(ec *evalContext, s *Shape, focus rdf.Term, _ []rdf.Term) ([]finding, error) {
	res, err := sparql.Evaluate(ec.ctx, c.query, ec.dataset,
		sparql.WithBindings(sparql.Binding{"this": focus, "currentShape": s.ID}))
	if err != nil {
		return nil, fmt.Errorf("sparql constraint %s: %w", c.node, err)
	}
	var out []finding
	for _, row := range res.Solutions {
		if f, ok := row["failure"]; ok && f.Value == "true" {
			return nil, fmt.Errorf("sparql constraint %s reported a failure", c.node)
		}
		f := finding{source: c.node, message: "Validation error from SPARQL constraint"}
		if v, ok := row["value"]; ok {
			f.value = v
		} else if !s.Property {
			f.value = focus
		}
		if p, ok := row["path"]; ok && p.IsIRI() {
			f.path = p
		}
		for _, m := range c.messages {
			f.messages = append(f.messages, substituteMessage(m, row, focus))
		}
		out = append(out, f)
	}
	return out, nil
}

var messageVar = regexp.MustCompile(`\{[?$]([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteMessage replaces {?var} and {$var} in a message template with
// the solution's bindings.
func substituteMessage(m rdf.Term, row sparql.Binding, focus rdf.Term) rdf.Term {
	out := messageVar.ReplaceAllStringFunc(m.Value, func(match string) string {
		name := messageVar.FindStringSubmatch(match)[1]
		v, ok := row[name]
		if !ok && name == "this" {
			v, ok = focus, true
		}
		if !ok {
			return match
		}
		if v.IsLiteral() {
			return v.Value
		}
		return v.String()
	})
	m.Value = out
	return m
}
