package sparql

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/c360studio/semlink/rdf"
)

var (
	errUnbound = errors.New("unbound variable")
	errType    = errors.New("type error")
)

func (ev *evaluator) ebvOf(e Expr, b Binding) (bool, error) {
	v, err := ev.eval(e, b)
	if err != nil {
		return false, err
	}
	return ebv(v)
}

// ebv computes the effective boolean value of a term.
func ebv(t rdf.Term) (bool, error) {
	if !t.IsLiteral() {
		return false, errType
	}
	switch {
	case t.Datatype == rdf.XSDBoolean:
		return t.Value == "true" || t.Value == "1", nil
	case t.IsNumeric():
		f, ok := t.Float()
		if !ok {
			return false, nil
		}
		return f != 0 && !math.IsNaN(f), nil
	case t.Datatype == rdf.XSDString || t.Datatype == rdf.RDFLangString:
		return t.Value != "", nil
	}
	return false, errType
}

func (ev *evaluator) eval(e Expr, b Binding) (rdf.Term, error) {
	switch x := e.(type) {
	case ExprVar:
		if t, ok := b[x.Name]; ok {
			return t, nil
		}
		return rdf.Term{}, errUnbound
	case ExprTerm:
		return x.Term, nil
	case ExprUnary:
		return ev.evalUnary(x, b)
	case ExprBinary:
		return ev.evalBinary(x, b)
	case ExprIn:
		v, err := ev.eval(x.X, b)
		if err != nil {
			return rdf.Term{}, err
		}
		found := false
		var lastErr error
		for _, item := range x.List {
			w, err := ev.eval(item, b)
			if err != nil {
				lastErr = err
				continue
			}
			if eq, err := termsEqual(v, w); err == nil && eq {
				found = true
				break
			}
		}
		if !found && lastErr != nil {
			return rdf.Term{}, lastErr
		}
		return rdf.NewBoolean(found != x.Not), nil
	case ExprExists:
		sols := ev.evalGroup(x.Group, []Binding{b.clone()})
		return rdf.NewBoolean((len(sols) > 0) != x.Not), nil
	case ExprAggregate:
		return ev.aggregate(x)
	case ExprCall:
		return ev.call(x, b)
	}
	return rdf.Term{}, fmt.Errorf("unsupported expression %T", e)
}

func (ev *evaluator) evalUnary(x ExprUnary, b Binding) (rdf.Term, error) {
	if x.Op == "!" {
		ok, err := ev.ebvOf(x.X, b)
		if err != nil {
			return rdf.Term{}, err
		}
		return rdf.NewBoolean(!ok), nil
	}
	v, err := ev.eval(x.X, b)
	if err != nil {
		return rdf.Term{}, err
	}
	if !v.IsNumeric() {
		return rdf.Term{}, errType
	}
	if x.Op == "-" {
		return arith("*", rdf.NewInteger(-1), v)
	}
	return v, nil
}

func (ev *evaluator) evalBinary(x ExprBinary, b Binding) (rdf.Term, error) {
	switch x.Op {
	case "||":
		l, lerr := ev.ebvOf(x.Left, b)
		if lerr == nil && l {
			return rdf.NewBoolean(true), nil
		}
		r, rerr := ev.ebvOf(x.Right, b)
		if rerr == nil && r {
			return rdf.NewBoolean(true), nil
		}
		if lerr != nil {
			return rdf.Term{}, lerr
		}
		if rerr != nil {
			return rdf.Term{}, rerr
		}
		return rdf.NewBoolean(false), nil
	case "&&":
		l, lerr := ev.ebvOf(x.Left, b)
		if lerr == nil && !l {
			return rdf.NewBoolean(false), nil
		}
		r, rerr := ev.ebvOf(x.Right, b)
		if rerr == nil && !r {
			return rdf.NewBoolean(false), nil
		}
		if lerr != nil {
			return rdf.Term{}, lerr
		}
		if rerr != nil {
			return rdf.Term{}, rerr
		}
		return rdf.NewBoolean(true), nil
	}

	l, err := ev.eval(x.Left, b)
	if err != nil {
		return rdf.Term{}, err
	}
	r, err := ev.eval(x.Right, b)
	if err != nil {
		return rdf.Term{}, err
	}
	switch x.Op {
	case "=", "!=":
		eq, err := termsEqual(l, r)
		if err != nil {
			return rdf.Term{}, err
		}
		return rdf.NewBoolean(eq == (x.Op == "=")), nil
	case "<", ">", "<=", ">=":
		c, err := compareValues(l, r)
		if err != nil {
			return rdf.Term{}, err
		}
		var ok bool
		switch x.Op {
		case "<":
			ok = c < 0
		case ">":
			ok = c > 0
		case "<=":
			ok = c <= 0
		default:
			ok = c >= 0
		}
		return rdf.NewBoolean(ok), nil
	case "+", "-", "*", "/":
		return arith(x.Op, l, r)
	}
	return rdf.Term{}, fmt.Errorf("unknown operator %q", x.Op)
}

func isStringLiteral(t rdf.Term) bool {
	return t.IsLiteral() && (t.Datatype == rdf.XSDString || t.Datatype == rdf.RDFLangString)
}

func isDateType(dt string) bool {
	return dt == rdf.XSDDateTime || dt == rdf.XSDDate
}

// termsEqual implements RDFterm-equal with value comparison for numbers,
// dates and booleans.
func termsEqual(a, b rdf.Term) (bool, error) {
	if a == b {
		return true, nil
	}
	if !a.IsLiteral() || !b.IsLiteral() {
		return false, nil
	}
	if a.IsNumeric() && b.IsNumeric() {
		fa, ok1 := a.Float()
		fb, ok2 := b.Float()
		if !ok1 || !ok2 {
			return false, errType
		}
		return fa == fb, nil
	}
	if isDateType(a.Datatype) && isDateType(b.Datatype) {
		ta, err1 := ParseDateTime(a.Value)
		tb, err2 := ParseDateTime(b.Value)
		if err1 != nil || err2 != nil {
			return false, errType
		}
		return ta.Equal(tb), nil
	}
	if a.Datatype == rdf.XSDBoolean && b.Datatype == rdf.XSDBoolean {
		av, _ := ebv(a)
		bv, _ := ebv(b)
		return av == bv, nil
	}
	return false, nil
}

// compareValues orders two literals of comparable types.
func compareValues(a, b rdf.Term) (int, error) {
	switch {
	case a.IsNumeric() && b.IsNumeric():
		fa, ok1 := a.Float()
		fb, ok2 := b.Float()
		if !ok1 || !ok2 {
			return 0, errType
		}
		switch {
		case fa < fb:
			return -1, nil
		case fa > fb:
			return 1, nil
		}
		return 0, nil
	case isStringLiteral(a) && isStringLiteral(b):
		return strings.Compare(a.Value, b.Value), nil
	case isDateType(a.Datatype) && isDateType(b.Datatype):
		ta, err1 := ParseDateTime(a.Value)
		tb, err2 := ParseDateTime(b.Value)
		if err1 != nil || err2 != nil {
			return 0, errType
		}
		return ta.Compare(tb), nil
	case a.Datatype == rdf.XSDBoolean && b.Datatype == rdf.XSDBoolean:
		av, _ := ebv(a)
		bv, _ := ebv(b)
		switch {
		case av == bv:
			return 0, nil
		case !av:
			return -1, nil
		}
		return 1, nil
	}
	return 0, errType
}

// orderCompare is the total order used by ORDER BY: unbound, blank nodes,
// IRIs, then literals by value.
func orderCompare(a, b rdf.Term) int {
	rank := func(t rdf.Term) int {
		switch t.Kind {
		case rdf.KindBlank:
			return 1
		case rdf.KindIRI:
			return 2
		case rdf.KindLiteral:
			return 3
		}
		return 0
	}
	if ra, rb := rank(a), rank(b); ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	if a.IsLiteral() {
		if c, err := compareValues(a, b); err == nil {
			return c
		}
	}
	return rdf.CompareTerms(a, b)
}

// ParseDateTime parses xsd:dateTime and xsd:date lexical forms.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05Z0700",
		"2006-01-02Z07:00",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid dateTime %q", s)
}

func numericRank(dt string) int {
	switch dt {
	case rdf.XSDDouble, rdf.XSDFloat:
		return 3
	case rdf.XSDDecimal:
		return 2
	}
	return 1
}

func arith(op string, l, r rdf.Term) (rdf.Term, error) {
	if !l.IsNumeric() || !r.IsNumeric() {
		return rdf.Term{}, errType
	}
	rank := max(numericRank(l.Datatype), numericRank(r.Datatype))
	if rank == 1 && op != "/" {
		a, err1 := strconv.ParseInt(strings.TrimSpace(l.Value), 10, 64)
		c, err2 := strconv.ParseInt(strings.TrimSpace(r.Value), 10, 64)
		if err1 == nil && err2 == nil {
			switch op {
			case "+":
				return rdf.NewInteger(a + c), nil
			case "-":
				return rdf.NewInteger(a - c), nil
			case "*":
				return rdf.NewInteger(a * c), nil
			}
		}
	}
	a, _ := l.Float()
	c, _ := r.Float()
	var v float64
	switch op {
	case "+":
		v = a + c
	case "-":
		v = a - c
	case "*":
		v = a * c
	case "/":
		if c == 0 && rank < 3 {
			return rdf.Term{}, errors.New("division by zero")
		}
		v = a / c
	}
	if rank == 3 {
		return rdf.NewDouble(v), nil
	}
	return rdf.NewDecimal(v), nil
}

func (ev *evaluator) aggregate(x ExprAggregate) (rdf.Term, error) {
	var vals []rdf.Term
	seen := make(map[rdf.Term]bool)
	for _, row := range ev.group {
		if x.Star {
			vals = append(vals, rdf.Term{})
			continue
		}
		v, err := ev.eval(x.Arg, row)
		if err != nil {
			continue
		}
		if x.Distinct {
			if seen[v] {
				continue
			}
			seen[v] = true
		}
		vals = append(vals, v)
	}
	if x.Star && x.Distinct {
		keys := make(map[string]bool)
		for _, row := range ev.group {
			var sb strings.Builder
			for k, v := range row {
				sb.WriteString(k + "=" + v.String() + ";")
			}
			keys[sb.String()] = true
		}
		return rdf.NewInteger(int64(len(keys))), nil
	}

	switch x.Name {
	case "COUNT":
		return rdf.NewInteger(int64(len(vals))), nil
	case "SUM", "AVG":
		sum := rdf.NewInteger(0)
		for _, v := range vals {
			s, err := arith("+", sum, v)
			if err != nil {
				return rdf.Term{}, err
			}
			sum = s
		}
		if x.Name == "SUM" {
			return sum, nil
		}
		if len(vals) == 0 {
			return rdf.NewInteger(0), nil
		}
		return arith("/", sum, rdf.NewInteger(int64(len(vals))))
	case "MIN", "MAX":
		if len(vals) == 0 {
			return rdf.Term{}, errUnbound
		}
		best := vals[0]
		for _, v := range vals[1:] {
			c := orderCompare(v, best)
			if (x.Name == "MIN" && c < 0) || (x.Name == "MAX" && c > 0) {
				best = v
			}
		}
		return best, nil
	case "SAMPLE":
		if len(vals) == 0 {
			return rdf.Term{}, errUnbound
		}
		return vals[0], nil
	case "GROUP_CONCAT":
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = v.Value
		}
		return rdf.NewLiteral(strings.Join(parts, x.Separator)), nil
	}
	return rdf.Term{}, fmt.Errorf("unknown aggregate %s", x.Name)
}

func (ev *evaluator) call(x ExprCall, b Binding) (rdf.Term, error) {
	// Functions with lazy argument evaluation.
	switch x.Name {
	case "BOUND":
		if len(x.Args) != 1 {
			return rdf.Term{}, errType
		}
		v, ok := x.Args[0].(ExprVar)
		if !ok {
			return rdf.Term{}, errType
		}
		_, bound := b[v.Name]
		return rdf.NewBoolean(bound), nil
	case "IF":
		if len(x.Args) != 3 {
			return rdf.Term{}, errType
		}
		cond, err := ev.ebvOf(x.Args[0], b)
		if err != nil {
			return rdf.Term{}, err
		}
		if cond {
			return ev.eval(x.Args[1], b)
		}
		return ev.eval(x.Args[2], b)
	case "COALESCE":
		for _, a := range x.Args {
			if v, err := ev.eval(a, b); err == nil && !v.IsZero() {
				return v, nil
			}
		}
		return rdf.Term{}, errUnbound
	}

	args := make([]rdf.Term, len(x.Args))
	for i, a := range x.Args {
		v, err := ev.eval(a, b)
		if err != nil {
			return rdf.Term{}, err
		}
		args[i] = v
	}
	if strings.HasPrefix(x.Name, rdf.XSDNS) {
		if len(args) != 1 {
			return rdf.Term{}, errType
		}
		return castTo(x.Name, args[0])
	}
	fn, ok := builtins[x.Name]
	if !ok {
		return rdf.Term{}, fmt.Errorf("unsupported function %s", x.Name)
	}
	if fn.arity >= 0 && len(args) != fn.arity {
		if fn.optional == 0 || len(args) < fn.arity || len(args) > fn.arity+fn.optional {
			return rdf.Term{}, fmt.Errorf("%s: wrong number of arguments", x.Name)
		}
	}
	return fn.impl(ev, args)
}

type builtin struct {
	arity    int
	optional int
	impl     func(ev *evaluator, args []rdf.Term) (rdf.Term, error)
}

var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"STR":            {1, 0, fnStr},
		"LANG":           {1, 0, fnLang},
		"DATATYPE":       {1, 0, fnDatatype},
		"IRI":            {1, 0, fnIRI},
		"URI":            {1, 0, fnIRI},
		"BNODE":          {0, 1, fnBNode},
		"ISIRI":          {1, 0, kindTest(rdf.Term.IsIRI)},
		"ISURI":          {1, 0, kindTest(rdf.Term.IsIRI)},
		"ISBLANK":        {1, 0, kindTest(rdf.Term.IsBlank)},
		"ISLITERAL":      {1, 0, kindTest(rdf.Term.IsLiteral)},
		"ISNUMERIC":      {1, 0, kindTest(rdf.Term.IsNumeric)},
		"SAMETERM":       {2, 0, fnSameTerm},
		"LANGMATCHES":    {2, 0, fnLangMatches},
		"STRSTARTS":      {2, 0, strTest(strings.HasPrefix)},
		"STRENDS":        {2, 0, strTest(strings.HasSuffix)},
		"CONTAINS":       {2, 0, strTest(strings.Contains)},
		"STRBEFORE":      {2, 0, fnStrBefore},
		"STRAFTER":       {2, 0, fnStrAfter},
		"REGEX":          {2, 1, fnRegex},
		"REPLACE":        {3, 1, fnReplace},
		"LCASE":          {1, 0, strMap(strings.ToLower)},
		"UCASE":          {1, 0, strMap(strings.ToUpper)},
		"STRLEN":         {1, 0, fnStrLen},
		"SUBSTR":         {2, 1, fnSubstr},
		"CONCAT":         {-1, 0, fnConcat},
		"ENCODE_FOR_URI": {1, 0, fnEncodeForURI},
		"STRDT":          {2, 0, fnStrDT},
		"STRLANG":        {2, 0, fnStrLang},
		"ABS":            {1, 0, numMap(math.Abs)},
		"ROUND":          {1, 0, numMap(math.Round)},
		"CEIL":           {1, 0, numMap(math.Ceil)},
		"FLOOR":          {1, 0, numMap(math.Floor)},
		"YEAR":           {1, 0, datePart(time.Time.Year)},
		"MONTH":          {1, 0, datePart(func(t time.Time) int { return int(t.Month()) })},
		"DAY":            {1, 0, datePart(time.Time.Day)},
		"HOURS":          {1, 0, datePart(time.Time.Hour)},
		"MINUTES":        {1, 0, datePart(time.Time.Minute)},
		"SECONDS":        {1, 0, datePart(time.Time.Second)},
		"NOW":            {0, 0, fnNow},
		"MD5":            {1, 0, hashFn(md5Sum)},
		"SHA1":           {1, 0, hashFn(sha1Sum)},
		"SHA256":         {1, 0, hashFn(sha256Sum)},
		"SHA512":         {1, 0, hashFn(sha512Sum)},
		"UUID":           {0, 0, fnUUID},
		"STRUUID":        {0, 0, fnStrUUID},
	}
}

func fnEncodeForURI(_ *evaluator, a []rdf.Term) (rdf.Term, error) {
	if !a[0].IsLiteral() {
		return rdf.Term{}, errType
	}
	return rdf.NewLiteral(EncodeForURI(a[0].Value)), nil
}

func fnNow(ev *evaluator, _ []rdf.Term) (rdf.Term, error) {
	return rdf.NewTypedLiteral(ev.now.Format(time.RFC3339Nano), rdf.XSDDateTime), nil
}

func fnUUID(*evaluator, []rdf.Term) (rdf.Term, error) {
	return rdf.NewIRI("urn:uuid:" + uuid.NewString()), nil
}

func fnStrUUID(*evaluator, []rdf.Term) (rdf.Term, error) {
	return rdf.NewLiteral(uuid.NewString()), nil
}

func md5Sum(b []byte) []byte    { s := md5.Sum(b); return s[:] }
func sha1Sum(b []byte) []byte   { s := sha1.Sum(b); return s[:] }
func sha256Sum(b []byte) []byte { s := sha256.Sum256(b); return s[:] }
func sha512Sum(b []byte) []byte { s := sha512.Sum512(b); return s[:] }

func fnStr(_ *evaluator, a []rdf.Term) (rdf.Term, error) {
	if a[0].IsBlank() {
		return rdf.Term{}, errType
	}
	return rdf.NewLiteral(a[0].Value), nil
}

func fnLang(_ *evaluator, a []rdf.Term) (rdf.Term, error) {
	if !a[0].IsLiteral() {
		return rdf.Term{}, errType
	}
	return rdf.NewLiteral(a[0].Lang), nil
}

func fnDatatype(_ *evaluator, a []rdf.Term) (rdf.Term, error) {
	if !a[0].IsLiteral() {
		return rdf.Term{}, errType
	}
	return rdf.NewIRI(a[0].Datatype), nil
}

func fnIRI(_ *evaluator, a []rdf.Term) (rdf.Term, error) {
	switch {
	case a[0].IsIRI():
		return a[0], nil
	case isStringLiteral(a[0]) && a[0].Lang == "":
		return rdf.NewIRI(a[0].Value), nil
	}
	return rdf.Term{}, errType
}

func fnBNode(ev *evaluator, a []rdf.Term) (rdf.Term, error) {
	ev.bnodes++
	label := "f" + strconv.Itoa(ev.bnodes)
	if len(a) == 1 {
		label = "f" + hex.EncodeToString([]byte(a[0].Value))
	}
	return rdf.NewBlank(label), nil
}

func kindTest(test func(rdf.Term) bool) func(*evaluator, []rdf.Term) (rdf.Term, error) {
	return func(_ *evaluator, a []rdf.Term) (rdf.Term, error) {
		return rdf.NewBoolean(test(a[0])), nil
	}
}

func fnSameTerm(_ *evaluator, a []rdf.Term) (rdf.Term, error) {
	return rdf.NewBoolean(a[0] == a[1]), nil
}

func fnLangMatches(_ *evaluator, a []rdf.Term) (rdf.Term, error) {
	tag, rng := strings.ToLower(a[0].Value), strings.ToLower(a[1].Value)
	if rng == "*" {
		return rdf.NewBoolean(tag != ""), nil
	}
	return rdf.NewBoolean(tag == rng || strings.HasPrefix(tag, rng+"-")), nil
}

func strTest(test func(s, sub string) bool) func(*evaluator, []rdf.Term) (rdf.Term, error) {
	return func(_ *evaluator, a []rdf.Term) (rdf.Term, error) {
		if !a[0].IsLiteral() || !a[1].IsLiteral() {
			return rdf.Term{}, errType
		}
		return rdf.NewBoolean(test(a[0].Value, a[1].Value)), nil
	}
}

// sameKind returns a string literal carrying the language tag of src.
func sameKind(src rdf.Term, value string) rdf.Term {
	if src.Lang != "" {
		return rdf.NewLangLiteral(value, src.Lang)
	}
	return rdf.NewLiteral(value)
}

func fnStrBefore(_ *evaluator, a []rdf.Term) (rdf.Term, error) {
	if !a[0].IsLiteral() || !a[1].IsLiteral() {
		return rdf.Term{}, errType
	}
	i := strings.Index(a[0].Value, a[1].Value)
	if i < 0 {
		return rdf.NewLiteral(""), nil
	}
	return sameKind(a[0], a[0].Value[:i]), nil
}

func fnStrAfter(_ *evaluator, a []rdf.Term) (rdf.Term, error) {
	if !a[0].IsLiteral() || !a[1].IsLiteral() {
		return rdf.Term{}, errType
	}
	i := strings.Index(a[0].Value, a[1].Value)
	if i < 0 {
		return rdf.NewLiteral(""), nil
	}
	return sameKind(a[0], a[0].Value[i+len(a[1].Value):]), nil
}

func (ev *evaluator) compile(pattern, flags string) (*regexp.Regexp, error) {
	key := flags + "/" + pattern
	if re, ok := ev.regexps[key]; ok {
		return re, nil
	}
	goFlags := ""
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			goFlags += string(f)
		case 'q':
			pattern = regexp.QuoteMeta(pattern)
		}
	}
	if goFlags != "" {
		pattern = "(?" + goFlags + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	ev.regexps[key] = re
	return re, nil
}

func fnRegex(ev *evaluator, a []rdf.Term) (rdf.Term, error) {
	if !a[0].IsLiteral() {
		return rdf.Term{}, errType
	}
	flags := ""
	if len(a) == 3 {
		flags = a[2].Value
	}
	re, err := ev.compile(a[1].Value, flags)
	if err != nil {
		return rdf.Term{}, err
	}
	return rdf.NewBoolean(re.MatchString(a[0].Value)), nil
}

func fnReplace(ev *evaluator, a []rdf.Term) (rdf.Term, error) {
	if !a[0].IsLiteral() {
		return rdf.Term{}, errType
	}
	flags := ""
	if len(a) == 4 {
		flags = a[3].Value
	}
	re, err := ev.compile(a[1].Value, flags)
	if err != nil {
		return rdf.Term{}, err
	}
	return sameKind(a[0], re.ReplaceAllString(a[0].Value, a[2].Value)), nil
}

func strMap(fn func(string) string) func(*evaluator, []rdf.Term) (rdf.Term, error) {
	return func(_ *evaluator, a []rdf.Term) (rdf.Term, error) {
		if !a[0].IsLiteral() {
			return rdf.Term{}, errType
		}
		return sameKind(a[0], fn(a[0].Value)), nil
	}
}

func fnStrLen(_ *evaluator, a []rdf.Term) (rdf.Term, error) {
	if !a[0].IsLiteral() {
		return rdf.Term{}, errType
	}
	return rdf.NewInteger(int64(utf8.RuneCountInString(a[0].Value))), nil
}

func fnSubstr(_ *evaluator, a []rdf.Term) (rdf.Term, error) {
	if !a[0].IsLiteral() {
		return rdf.Term{}, errType
	}
	runes := []rune(a[0].Value)
	start, ok := a[1].Float()
	if !ok {
		return rdf.Term{}, errType
	}
	from := int(math.Round(start)) - 1
	to := len(runes)
	if len(a) == 3 {
		n, ok := a[2].Float()
		if !ok {
			return rdf.Term{}, errType
		}
		to = from + int(math.Round(n))
	}
	from = max(from, 0)
	to = min(to, len(runes))
	if from >= to {
		return sameKind(a[0], ""), nil
	}
	return sameKind(a[0], string(runes[from:to])), nil
}

func fnConcat(_ *evaluator, a []rdf.Term) (rdf.Term, error) {
	var sb strings.Builder
	lang := ""
	for i, t := range a {
		if !t.IsLiteral() {
			return rdf.Term{}, errType
		}
		sb.WriteString(t.Value)
		if i == 0 {
			lang = t.Lang
		} else if t.Lang != lang {
			lang = ""
		}
	}
	if lang != "" {
		return rdf.NewLangLiteral(sb.String(), lang), nil
	}
	return rdf.NewLiteral(sb.String()), nil
}

// EncodeForURI percent-encodes every character outside the RFC 3986
// unreserved set.
func EncodeForURI(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAlpha(c) || isDigit(c) || c == '-' || c == '.' || c == '_' || c == '~' {
			sb.WriteByte(c)
			continue
		}
		fmt.Fprintf(&sb, "%%%02X", c)
	}
	return sb.String()
}

func fnStrDT(_ *evaluator, a []rdf.Term) (rdf.Term, error) {
	if !a[0].IsLiteral() || !a[1].IsIRI() {
		return rdf.Term{}, errType
	}
	return rdf.NewTypedLiteral(a[0].Value, a[1].Value), nil
}

func fnStrLang(_ *evaluator, a []rdf.Term) (rdf.Term, error) {
	if !a[0].IsLiteral() || !a[1].IsLiteral() || a[1].Value == "" {
		return rdf.Term{}, errType
	}
	return rdf.NewLangLiteral(a[0].Value, a[1].Value), nil
}

func numMap(fn func(float64) float64) func(*evaluator, []rdf.Term) (rdf.Term, error) {
	return func(_ *evaluator, a []rdf.Term) (rdf.Term, error) {
		f, ok := a[0].Float()
		if !ok {
			return rdf.Term{}, errType
		}
		v := fn(f)
		switch a[0].Datatype {
		case rdf.XSDDouble, rdf.XSDFloat:
			return rdf.NewDouble(v), nil
		case rdf.XSDDecimal:
			return rdf.NewDecimal(v), nil
		}
		return rdf.NewInteger(int64(v)), nil
	}
}

func datePart(part func(time.Time) int) func(*evaluator, []rdf.Term) (rdf.Term, error) {
	return func(_ *evaluator, a []rdf.Term) (rdf.Term, error) {
		if !a[0].IsLiteral() {
			return rdf.Term{}, errType
		}
		t, err := ParseDateTime(a[0].Value)
		if err != nil {
			return rdf.Term{}, errType
		}
		return rdf.NewInteger(int64(part(t))), nil
	}
}

func hashFn(sum func([]byte) []byte) func(*evaluator, []rdf.Term) (rdf.Term, error) {
	return func(_ *evaluator, a []rdf.Term) (rdf.Term, error) {
		if !a[0].IsLiteral() {
			return rdf.Term{}, errType
		}
		return rdf.NewLiteral(hex.EncodeToString(sum([]byte(a[0].Value)))), nil
	}
}

func castTo(datatype string, v rdf.Term) (rdf.Term, error) {
	if v.IsBlank() {
		return rdf.Term{}, errType
	}
	s := strings.TrimSpace(v.Value)
	switch datatype {
	case rdf.XSDString:
		return rdf.NewLiteral(v.Value), nil
	case rdf.XSDInteger:
		if f, ok := v.Float(); ok {
			return rdf.NewInteger(int64(f)), nil
		}
		if v.Datatype == rdf.XSDBoolean {
			if s == "true" || s == "1" {
				return rdf.NewInteger(1), nil
			}
			return rdf.NewInteger(0), nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return rdf.Term{}, errType
		}
		return rdf.NewInteger(n), nil
	case rdf.XSDDecimal, rdf.XSDDouble, rdf.XSDFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return rdf.Term{}, errType
		}
		if datatype == rdf.XSDDecimal {
			return rdf.NewDecimal(f), nil
		}
		return rdf.NewTypedLiteral(strconv.FormatFloat(f, 'E', -1, 64), datatype), nil
	case rdf.XSDBoolean:
		switch {
		case s == "true" || s == "1":
			return rdf.NewBoolean(true), nil
		case s == "false" || s == "0":
			return rdf.NewBoolean(false), nil
		}
		if f, ok := v.Float(); ok {
			return rdf.NewBoolean(f != 0), nil
		}
		return rdf.Term{}, errType
	case rdf.XSDDateTime, rdf.XSDDate:
		t, err := ParseDateTime(s)
		if err != nil {
			return rdf.Term{}, errType
		}
		if datatype == rdf.XSDDate {
			return rdf.NewTypedLiteral(t.Format("2006-01-02"), datatype), nil
		}
		return rdf.NewTypedLiteral(t.Format(time.RFC3339Nano), datatype), nil
	}
	return rdf.NewTypedLiteral(v.Value, datatype), nil
}
