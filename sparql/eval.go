package sparql

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/c360studio/semlink/rdf"
)

// Binding maps variable names to bound terms.
type Binding map[string]rdf.Term

func (b Binding) clone() Binding {
	c := make(Binding, len(b)+2)
	for k, v := range b {
		c[k] = v
	}
	return c
}

// compatible reports whether a and b agree on every shared variable.
func compatible(a, b Binding) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for k, v := range a {
		if w, ok := b[k]; ok && w != v {
			return false
		}
	}
	return true
}

func merge(a, b Binding) Binding {
	c := a.clone()
	for k, v := range b {
		c[k] = v
	}
	return c
}

// Results is the outcome of evaluating a query.
type Results struct {
	Form QueryForm
	// Vars and Solutions are set for SELECT.
	Vars      []string
	Solutions []Binding
	// Boolean is set for ASK.
	Boolean bool
	// Graph is set for CONSTRUCT and DESCRIBE.
	Graph *rdf.Graph
}

// EvalOption configures evaluation.
type EvalOption func(*evaluator)

// WithBindings pre-binds variables before evaluation.
func WithBindings(b Binding) EvalOption {
	return func(ev *evaluator) {
		for k, v := range b {
			ev.initial[k] = v
		}
	}
}

// WithUnionDefaultGraph makes the default graph the union of all graphs in
// the dataset.
func WithUnionDefaultGraph() EvalOption {
	return func(ev *evaluator) { ev.unionDefault = true }
}

// WithNow fixes the value returned by NOW().
func WithNow(t time.Time) EvalOption {
	return func(ev *evaluator) { ev.now = t }
}

type evaluator struct {
	ctx          context.Context
	ds           *rdf.Dataset
	active       *rdf.Graph
	initial      Binding
	unionDefault bool
	now          time.Time
	bnodes       int
	regexps      map[string]*regexp.Regexp
	// group holds the rows of the current group while evaluating aggregates.
	group []Binding
}

// Exec parses and evaluates a query against a dataset.
func Exec(ctx context.Context, ds *rdf.Dataset, query string, opts ...EvalOption) (*Results, error) {
	q, err := Parse(query)
	if err != nil {
		return nil, err
	}
	return Evaluate(ctx, q, ds, opts...)
}

// ExecGraph evaluates a query with g as the default graph.
func ExecGraph(ctx context.Context, g *rdf.Graph, query string, opts ...EvalOption) (*Results, error) {
	return Exec(ctx, rdf.DatasetOf(g), query, opts...)
}

// Evaluate runs a parsed query against a dataset.
func Evaluate(ctx context.Context, q *Query, ds *rdf.Dataset, opts ...EvalOption) (*Results, error) {
	if ds == nil {
		ds = rdf.NewDataset()
	}
	ev := &evaluator{
		ctx:     ctx,
		ds:      ds,
		initial: Binding{},
		now:     time.Now(),
		regexps: make(map[string]*regexp.Regexp),
	}
	for _, opt := range opts {
		opt(ev)
	}
	ev.active = ds.Default()
	if ev.unionDefault {
		ev.active = ds.Union()
	}

	res := &Results{Form: q.Form}
	switch q.Form {
	case FormSelect:
		vars, sols, err := ev.selectQuery(q, ev.initial)
		if err != nil {
			return nil, err
		}
		res.Vars, res.Solutions = vars, sols
	case FormAsk:
		sols, err := ev.where(q, ev.initial)
		if err != nil {
			return nil, err
		}
		res.Boolean = len(sols) > 0
	case FormConstruct:
		sols, err := ev.modifiedSolutions(q, ev.initial)
		if err != nil {
			return nil, err
		}
		res.Graph = ev.construct(q.Template, sols)
	case FormDescribe:
		var sols []Binding
		if q.Where != nil {
			var err error
			if sols, err = ev.modifiedSolutions(q, ev.initial); err != nil {
				return nil, err
			}
		}
		res.Graph = ev.describe(q, sols)
	default:
		return nil, fmt.Errorf("unsupported query form %q", q.Form)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (ev *evaluator) where(q *Query, seed Binding) ([]Binding, error) {
	sols := []Binding{seed.clone()}
	if q.Where != nil {
		sols = ev.evalGroup(q.Where, sols)
	}
	if q.Values != nil {
		sols = joinValues(sols, q.Values)
	}
	return sols, ev.ctx.Err()
}

// modifiedSolutions applies ORDER BY, OFFSET and LIMIT to the WHERE solutions.
func (ev *evaluator) modifiedSolutions(q *Query, seed Binding) ([]Binding, error) {
	sols, err := ev.where(q, seed)
	if err != nil {
		return nil, err
	}
	ev.orderBy(q.OrderBy, sols, nil)
	return slice(sols, q.Offset, q.Limit), nil
}

func (ev *evaluator) selectQuery(q *Query, seed Binding) ([]string, []Binding, error) {
	sols, err := ev.where(q, seed)
	if err != nil {
		return nil, nil, err
	}

	var groups [][]Binding
	if q.GroupBy != nil || ev.hasAggregates(q) {
		sols, groups = ev.groupSolutions(q, sols)
	} else {
		for _, s := range sols {
			for _, p := range q.Projection {
				if p.Expr == nil {
					continue
				}
				if v, err := ev.eval(p.Expr, s); err == nil {
					s[p.Var] = v
				}
			}
		}
	}

	ev.orderBy(q.OrderBy, sols, groups)

	vars := projectedVars(q)
	out := make([]Binding, 0, len(sols))
	seen := make(map[string]bool)
	for _, s := range sols {
		row := make(Binding, len(vars))
		for _, v := range vars {
			if t, ok := s[v]; ok {
				row[v] = t
			}
		}
		if q.Distinct || q.Reduced {
			key := rowKey(vars, row)
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		out = append(out, row)
	}
	return vars, slice(out, q.Offset, q.Limit), nil
}

func (ev *evaluator) hasAggregates(q *Query) bool {
	for _, p := range q.Projection {
		if p.Expr != nil && containsAggregate(p.Expr) {
			return true
		}
	}
	for _, h := range q.Having {
		if containsAggregate(h) {
			return true
		}
	}
	return false
}

func containsAggregate(e Expr) bool {
	switch x := e.(type) {
	case ExprAggregate:
		return true
	case ExprBinary:
		return containsAggregate(x.Left) || containsAggregate(x.Right)
	case ExprUnary:
		return containsAggregate(x.X)
	case ExprCall:
		for _, a := range x.Args {
			if containsAggregate(a) {
				return true
			}
		}
	case ExprIn:
		if containsAggregate(x.X) {
			return true
		}
		for _, a := range x.List {
			if containsAggregate(a) {
				return true
			}
		}
	}
	return false
}

// groupSolutions partitions solutions by the GROUP BY keys, filters groups
// with HAVING and evaluates the projection per group. It returns one row per
// group together with the group members.
func (ev *evaluator) groupSolutions(q *Query, sols []Binding) ([]Binding, [][]Binding) {
	type group struct {
		key  Binding
		rows []Binding
	}
	var order []string
	byKey := make(map[string]*group)
	if len(q.GroupBy) == 0 {
		order = append(order, "")
		byKey[""] = &group{key: Binding{}, rows: sols}
	} else {
		for _, s := range sols {
			key := Binding{}
			var sb strings.Builder
			for i, gc := range q.GroupBy {
				v, err := ev.eval(gc.Expr, s)
				if err != nil {
					v = rdf.Term{}
				}
				name := gc.Var
				if name == "" {
					if ve, ok := gc.Expr.(ExprVar); ok {
						name = ve.Name
					} else {
						name = "\x00g" + strconv.Itoa(i)
					}
				}
				if !v.IsZero() {
					key[name] = v
				}
				sb.WriteString(v.String())
				sb.WriteByte(0)
			}
			k := sb.String()
			g, ok := byKey[k]
			if !ok {
				g = &group{key: key}
				byKey[k] = g
				order = append(order, k)
			}
			g.rows = append(g.rows, s)
		}
	}

	defer func() { ev.group = nil }()
	var rows []Binding
	var members [][]Binding
	for _, k := range order {
		g := byKey[k]
		ev.group = g.rows
		keep := true
		for _, h := range q.Having {
			ok, err := ev.ebvOf(h, g.key)
			if err != nil || !ok {
				keep = false
				break
			}
		}
		if !keep {
			continue
		}
		row := g.key.clone()
		for _, p := range q.Projection {
			if p.Expr == nil {
				continue
			}
			if v, err := ev.eval(p.Expr, row); err == nil {
				row[p.Var] = v
			}
		}
		rows = append(rows, row)
		members = append(members, g.rows)
	}
	return rows, members
}

func (ev *evaluator) orderBy(conds []OrderCondition, sols []Binding, groups [][]Binding) {
	if len(conds) == 0 || len(sols) < 2 {
		return
	}
	keys := make([][]rdf.Term, len(sols))
	for i, s := range sols {
		if groups != nil {
			ev.group = groups[i]
		}
		keys[i] = make([]rdf.Term, len(conds))
		for j, c := range conds {
			if v, err := ev.eval(c.Expr, s); err == nil {
				keys[i][j] = v
			}
		}
	}
	ev.group = nil
	idx := make([]int, len(sols))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		for j, c := range conds {
			cmp := orderCompare(keys[idx[a]][j], keys[idx[b]][j])
			if cmp == 0 {
				continue
			}
			if c.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	sorted := make([]Binding, len(sols))
	for i, k := range idx {
		sorted[i] = sols[k]
	}
	copy(sols, sorted)
}

func slice(sols []Binding, offset, limit int) []Binding {
	if offset > 0 {
		if offset >= len(sols) {
			return nil
		}
		sols = sols[offset:]
	}
	if limit >= 0 && limit < len(sols) {
		sols = sols[:limit]
	}
	return sols
}

func rowKey(vars []string, row Binding) string {
	var sb strings.Builder
	for _, v := range vars {
		sb.WriteString(row[v].String())
		sb.WriteByte(0)
	}
	return sb.String()
}

// projectedVars returns the SELECT variables; for * all visible variables
// of the pattern in order of appearance.
func projectedVars(q *Query) []string {
	if !q.Star {
		out := make([]string, len(q.Projection))
		for i, p := range q.Projection {
			out[i] = p.Var
		}
		return out
	}
	var out []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name != "" && !IsHiddenVar(name) && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	if q.Where != nil {
		collectVars(q.Where, add)
	}
	if q.Values != nil {
		for _, v := range q.Values.Vars {
			add(v)
		}
	}
	return out
}

func collectVars(g *Group, add func(string)) {
	for _, el := range g.Elements {
		switch x := el.(type) {
		case *BGP:
			for _, tp := range x.Triples {
				add(tp.S.Var)
				add(tp.P.Var)
				add(tp.O.Var)
			}
		case *Group:
			collectVars(x, add)
		case *Optional:
			collectVars(x.Group, add)
		case *Union:
			for _, alt := range x.Alternatives {
				collectVars(alt, add)
			}
		case *GraphPattern:
			add(x.Name.Var)
			collectVars(x.Group, add)
		case *Bind:
			add(x.Var)
		case *Values:
			for _, v := range x.Vars {
				add(v)
			}
		case *SubQuery:
			for _, v := range projectedVars(x.Query) {
				add(v)
			}
		}
	}
}

// evalGroup evaluates the group once per seed solution and returns the
// combined solutions. Filters apply to the whole group.
func (ev *evaluator) evalGroup(g *Group, seeds []Binding) []Binding {
	sols := seeds
	var filters []Expr
	for _, el := range g.Elements {
		if len(sols) == 0 {
			return nil
		}
		if ev.ctx.Err() != nil {
			return nil
		}
		switch x := el.(type) {
		case *BGP:
			sols = ev.evalBGP(x.Triples, sols)
		case *Group:
			sols = ev.evalGroup(x, sols)
		case *Optional:
			var out []Binding
			for _, s := range sols {
				ext := ev.evalGroup(x.Group, []Binding{s.clone()})
				if len(ext) == 0 {
					out = append(out, s)
				} else {
					out = append(out, ext...)
				}
			}
			sols = out
		case *Union:
			var out []Binding
			for _, alt := range x.Alternatives {
				out = append(out, ev.evalGroup(alt, cloneAll(sols))...)
			}
			sols = out
		case *Minus:
			right := ev.evalGroup(x.Group, []Binding{{}})
			sols = minus(sols, right)
		case *Filter:
			filters = append(filters, x.Expr)
		case *Bind:
			for _, s := range sols {
				if _, bound := s[x.Var]; bound {
					continue
				}
				if v, err := ev.eval(x.Expr, s); err == nil {
					s[x.Var] = v
				}
			}
		case *Values:
			sols = joinValues(sols, x)
		case *GraphPattern:
			sols = ev.evalGraph(x, sols)
		case *SubQuery:
			_, sub, err := ev.selectQuery(x.Query, Binding{})
			if err != nil {
				return nil
			}
			sols = join(sols, sub)
		}
	}
	if len(filters) == 0 {
		return sols
	}
	out := sols[:0:0]
	for _, s := range sols {
		keep := true
		for _, f := range filters {
			ok, err := ev.ebvOf(f, s)
			if err != nil || !ok {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, s)
		}
	}
	return out
}

func cloneAll(sols []Binding) []Binding {
	out := make([]Binding, len(sols))
	for i, s := range sols {
		out[i] = s.clone()
	}
	return out
}

func join(left, right []Binding) []Binding {
	var out []Binding
	for _, l := range left {
		for _, r := range right {
			if compatible(l, r) {
				out = append(out, merge(l, r))
			}
		}
	}
	return out
}

func minus(left, right []Binding) []Binding {
	var out []Binding
	for _, l := range left {
		removed := false
		for _, r := range right {
			shared := false
			for k := range r {
				if _, ok := l[k]; ok {
					shared = true
					break
				}
			}
			if shared && compatible(l, r) {
				removed = true
				break
			}
		}
		if !removed {
			out = append(out, l)
		}
	}
	return out
}

func joinValues(sols []Binding, v *Values) []Binding {
	rows := make([]Binding, 0, len(v.Rows))
	for _, r := range v.Rows {
		b := Binding{}
		for i, name := range v.Vars {
			if i < len(r) && !r[i].IsZero() {
				b[name] = r[i]
			}
		}
		rows = append(rows, b)
	}
	return join(sols, rows)
}

func (ev *evaluator) evalGraph(gp *GraphPattern, sols []Binding) []Binding {
	saved := ev.active
	defer func() { ev.active = saved }()

	var out []Binding
	for _, s := range sols {
		name := gp.Name.Term
		if gp.Name.IsVar() {
			name = s[gp.Name.Var]
		}
		if !name.IsZero() {
			g, ok := ev.ds.Lookup(name.Value)
			if !ok || name.Value == "" {
				continue
			}
			ev.active = g
			out = append(out, ev.evalGroup(gp.Group, []Binding{s})...)
			continue
		}
		for _, n := range ev.ds.Names() {
			g, _ := ev.ds.Lookup(n)
			ev.active = g
			seed := s.clone()
			seed[gp.Name.Var] = rdf.NewIRI(n)
			out = append(out, ev.evalGroup(gp.Group, []Binding{seed})...)
		}
	}
	return out
}

// evalBGP joins triple patterns, picking the most constrained pattern next.
func (ev *evaluator) evalBGP(triples []TriplePattern, sols []Binding) []Binding {
	remaining := append([]TriplePattern(nil), triples...)
	for len(remaining) > 0 && len(sols) > 0 {
		best := 0
		bestScore := -1
		for i, tp := range remaining {
			if score := boundScore(tp, sols[0]); score > bestScore {
				best, bestScore = i, score
			}
		}
		tp := remaining[best]
		remaining = append(remaining[:best], remaining[best+1:]...)

		var out []Binding
		for _, s := range sols {
			out = append(out, ev.matchTriple(tp, s)...)
		}
		sols = out
		if ev.ctx.Err() != nil {
			return nil
		}
	}
	return sols
}

func boundScore(tp TriplePattern, b Binding) int {
	score := 0
	for i, n := range []Node{tp.S, tp.P, tp.O} {
		if i == 1 && tp.Path != nil {
			continue
		}
		if !n.IsVar() {
			score += 2
		} else if _, ok := b[n.Var]; ok {
			score += 2
		}
	}
	return score
}

func resolveNode(n Node, b Binding) (rdf.Term, bool) {
	if !n.IsVar() {
		return n.Term, true
	}
	t, ok := b[n.Var]
	return t, ok
}

func (ev *evaluator) matchTriple(tp TriplePattern, b Binding) []Binding {
	s, sBound := resolveNode(tp.S, b)
	o, oBound := resolveNode(tp.O, b)
	if sBound && s.IsLiteral() {
		return nil
	}

	if tp.Path != nil {
		var out []Binding
		for _, pair := range ev.pathPairs(tp.Path, s, sBound, o, oBound) {
			nb := b.clone()
			if !sBound && !assign(nb, tp.S.Var, pair[0]) {
				continue
			}
			if !oBound && !assign(nb, tp.O.Var, pair[1]) {
				continue
			}
			out = append(out, nb)
		}
		return out
	}

	p, pBound := resolveNode(tp.P, b)
	var sp, pp, op *rdf.Term
	if sBound {
		sp = &s
	}
	if pBound {
		pp = &p
	}
	if oBound {
		op = &o
	}
	var out []Binding
	ev.active.ForEach(sp, pp, op, func(t rdf.Triple) bool {
		nb := b.clone()
		if !sBound && !assign(nb, tp.S.Var, t.S) {
			return true
		}
		if !pBound && !assign(nb, tp.P.Var, t.P) {
			return true
		}
		if !oBound && !assign(nb, tp.O.Var, t.O) {
			return true
		}
		out = append(out, nb)
		return true
	})
	return out
}

// assign binds name to v, failing when name already holds a different term.
// It handles variables repeated within one pattern.
func assign(b Binding, name string, v rdf.Term) bool {
	if cur, ok := b[name]; ok {
		return cur == v
	}
	b[name] = v
	return true
}

func (ev *evaluator) construct(template []TriplePattern, sols []Binding) *rdf.Graph {
	out := rdf.NewGraph()
	for _, s := range sols {
		blanks := make(map[string]rdf.Term)
		inst := func(n Node) (rdf.Term, bool) {
			if n.IsVar() {
				t, ok := s[n.Var]
				return t, ok
			}
			if n.Term.IsBlank() {
				t, ok := blanks[n.Term.Value]
				if !ok {
					ev.bnodes++
					t = rdf.NewBlank("c" + strconv.Itoa(ev.bnodes))
					blanks[n.Term.Value] = t
				}
				return t, true
			}
			return n.Term, true
		}
		for _, tp := range template {
			if tp.Path != nil {
				continue
			}
			st, ok1 := inst(tp.S)
			pt, ok2 := inst(tp.P)
			ot, ok3 := inst(tp.O)
			if !ok1 || !ok2 || !ok3 || st.IsLiteral() || !pt.IsIRI() {
				continue
			}
			out.AddSPO(st, pt, ot)
		}
	}
	return out
}

// describe returns the concise bounded description of each target: its
// outgoing triples and, recursively, those of blank node objects.
func (ev *evaluator) describe(q *Query, sols []Binding) *rdf.Graph {
	var targets []rdf.Term
	seen := make(map[rdf.Term]bool)
	add := func(t rdf.Term) {
		if !t.IsZero() && !t.IsLiteral() && !seen[t] {
			seen[t] = true
			targets = append(targets, t)
		}
	}
	if q.Star {
		for _, s := range sols {
			for _, v := range projectedVars(q) {
				add(s[v])
			}
		}
	}
	for _, n := range q.Describe {
		if !n.IsVar() {
			add(n.Term)
			continue
		}
		for _, s := range sols {
			add(s[n.Var])
		}
	}

	out := rdf.NewGraph()
	visited := make(map[rdf.Term]bool)
	var walk func(rdf.Term)
	walk = func(node rdf.Term) {
		if visited[node] {
			return
		}
		visited[node] = true
		for _, t := range ev.active.Match(&node, nil, nil) {
			out.Add(t)
			if t.O.IsBlank() {
				walk(t.O)
			}
		}
	}
	for _, t := range targets {
		walk(t)
	}
	return out
}
