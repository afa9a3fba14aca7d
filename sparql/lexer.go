package sparql

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIRI
	tokPName
	tokBlank
	tokVar
	tokString
	tokLangTag
	tokInteger
	tokDecimal
	tokDouble
	tokWord
	tokPunct
	tokAnon
	tokNil
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of query"
	}
	return fmt.Sprintf("%q", t.text)
}

// SyntaxError describes a query that could not be parsed.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("sparql syntax error at offset %d: %s", e.Pos, e.Msg)
}

type lexer struct {
	src  string
	pos  int
	toks []token
}

func tokenize(src string) ([]token, error) {
	lx := &lexer{src: src}
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		lx.toks = append(lx.toks, tok)
		if tok.kind == tokEOF {
			return lx.toks, nil
		}
	}
}

func (lx *lexer) errorf(format string, args ...any) error {
	return &SyntaxError{Pos: lx.pos, Msg: fmt.Sprintf(format, args...)}
}

func (lx *lexer) peekByte(off int) byte {
	if lx.pos+off < len(lx.src) {
		return lx.src[lx.pos+off]
	}
	return 0
}

func (lx *lexer) skipSpace() {
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			lx.pos++
		case c == '#':
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.pos++
			}
		default:
			return
		}
	}
}

func (lx *lexer) next() (token, error) {
	lx.skipSpace()
	start := lx.pos
	if lx.pos >= len(lx.src) {
		return token{kind: tokEOF, pos: start}, nil
	}
	c := lx.src[lx.pos]
	switch {
	case c == '<':
		if iri, ok := lx.scanIRI(); ok {
			return token{kind: tokIRI, text: iri, pos: start}, nil
		}
		if lx.peekByte(1) == '=' {
			lx.pos += 2
			return token{kind: tokPunct, text: "<=", pos: start}, nil
		}
		lx.pos++
		return token{kind: tokPunct, text: "<", pos: start}, nil
	case c == '?' || c == '$':
		if isNameStart(lx.runeAt(lx.pos + 1)) || isDigit(lx.peekByte(1)) {
			lx.pos++
			name := lx.scanName(false)
			return token{kind: tokVar, text: name, pos: start}, nil
		}
		lx.pos++
		return token{kind: tokPunct, text: string(c), pos: start}, nil
	case c == '"' || c == '\'':
		s, err := lx.scanString()
		if err != nil {
			return token{}, err
		}
		return token{kind: tokString, text: s, pos: start}, nil
	case c == '@':
		lx.pos++
		begin := lx.pos
		for lx.pos < len(lx.src) && (isAlpha(lx.src[lx.pos]) || isDigit(lx.src[lx.pos]) || lx.src[lx.pos] == '-') {
			lx.pos++
		}
		if begin == lx.pos {
			return token{}, lx.errorf("empty language tag")
		}
		return token{kind: tokLangTag, text: lx.src[begin:lx.pos], pos: start}, nil
	case c == '_' && lx.peekByte(1) == ':':
		lx.pos += 2
		return token{kind: tokBlank, text: lx.scanName(true), pos: start}, nil
	case isDigit(c) || (c == '.' && isDigit(lx.peekByte(1))):
		return lx.scanNumber(), nil
	case c == '[':
		if end, ok := lx.matchEmpty(']'); ok {
			lx.pos = end
			return token{kind: tokAnon, text: "[]", pos: start}, nil
		}
	case c == '(':
		if end, ok := lx.matchEmpty(')'); ok {
			lx.pos = end
			return token{kind: tokNil, text: "()", pos: start}, nil
		}
	}

	for _, p := range []string{"^^", "&&", "||", "!=", ">=", "<="} {
		if strings.HasPrefix(lx.src[lx.pos:], p) {
			lx.pos += len(p)
			return token{kind: tokPunct, text: p, pos: start}, nil
		}
	}
	if strings.ContainsRune("{}()[].,;*/|^!=<>+-", rune(c)) {
		lx.pos++
		return token{kind: tokPunct, text: string(c), pos: start}, nil
	}

	r := lx.runeAt(lx.pos)
	if isNameStart(r) || c == ':' {
		word := lx.scanName(true)
		if strings.Contains(word, ":") {
			return token{kind: tokPName, text: word, pos: start}, nil
		}
		return token{kind: tokWord, text: word, pos: start}, nil
	}
	return token{}, lx.errorf("unexpected character %q", r)
}

func (lx *lexer) runeAt(i int) rune {
	if i >= len(lx.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(lx.src[i:])
	return r
}

// matchEmpty reports whether the bracket at pos is followed only by
// whitespace and the closing bracket.
func (lx *lexer) matchEmpty(closer byte) (int, bool) {
	i := lx.pos + 1
	for i < len(lx.src) && (lx.src[i] == ' ' || lx.src[i] == '\t' || lx.src[i] == '\n' || lx.src[i] == '\r') {
		i++
	}
	if i < len(lx.src) && lx.src[i] == closer {
		return i + 1, true
	}
	return 0, false
}

func (lx *lexer) scanIRI() (string, bool) {
	i := lx.pos + 1
	for i < len(lx.src) {
		c := lx.src[i]
		switch {
		case c == '>':
			iri := lx.src[lx.pos+1 : i]
			lx.pos = i + 1
			return unescapeIRI(iri), true
		case c <= ' ' || strings.IndexByte("<\"{}|^`", c) >= 0:
			return "", false
		}
		i++
	}
	return "", false
}

func unescapeIRI(s string) string {
	if !strings.Contains(s, `\u`) && !strings.Contains(s, `\U`) {
		return s
	}
	out, err := unescape(s)
	if err != nil {
		return s
	}
	return out
}

// scanName reads a variable name, blank node label or prefixed name.
func (lx *lexer) scanName(allowColon bool) string {
	begin := lx.pos
	for lx.pos < len(lx.src) {
		r, size := utf8.DecodeRuneInString(lx.src[lx.pos:])
		switch {
		case isNameChar(r) && (allowColon || r != '-'):
		case allowColon && r == ':':
		case allowColon && r == '.' && lx.pos > begin:
		case allowColon && r == '%' && lx.pos+2 < len(lx.src) && isHex(lx.src[lx.pos+1]) && isHex(lx.src[lx.pos+2]):
			size = 3
		case allowColon && r == '\\' && lx.pos+1 < len(lx.src) && strings.IndexByte("_~.-!$&'()*+,;=/?#@%", lx.src[lx.pos+1]) >= 0:
			size = 2
		default:
			return lx.finishName(begin)
		}
		lx.pos += size
	}
	return lx.finishName(begin)
}

func (lx *lexer) finishName(begin int) string {
	for lx.pos > begin && lx.src[lx.pos-1] == '.' {
		lx.pos--
	}
	name := lx.src[begin:lx.pos]
	if strings.Contains(name, `\`) {
		var sb strings.Builder
		for i := 0; i < len(name); i++ {
			if name[i] == '\\' && i+1 < len(name) {
				i++
			}
			sb.WriteByte(name[i])
		}
		return sb.String()
	}
	return name
}

func (lx *lexer) scanNumber() token {
	start := lx.pos
	kind := tokInteger
	for lx.pos < len(lx.src) && isDigit(lx.src[lx.pos]) {
		lx.pos++
	}
	if lx.pos < len(lx.src) && lx.src[lx.pos] == '.' && isDigit(lx.peekByte(1)) {
		kind = tokDecimal
		lx.pos++
		for lx.pos < len(lx.src) && isDigit(lx.src[lx.pos]) {
			lx.pos++
		}
	}
	if c := lx.peekByte(0); c == 'e' || c == 'E' {
		j := lx.pos + 1
		if j < len(lx.src) && (lx.src[j] == '+' || lx.src[j] == '-') {
			j++
		}
		if j < len(lx.src) && isDigit(lx.src[j]) {
			kind = tokDouble
			lx.pos = j
			for lx.pos < len(lx.src) && isDigit(lx.src[lx.pos]) {
				lx.pos++
			}
		}
	}
	return token{kind: kind, text: lx.src[start:lx.pos], pos: start}
}

func (lx *lexer) scanString() (string, error) {
	q := lx.src[lx.pos]
	delim := strings.Repeat(string(q), 3)
	long := strings.HasPrefix(lx.src[lx.pos:], delim)
	if long {
		lx.pos += 3
	} else {
		lx.pos++
	}
	var sb strings.Builder
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '\\' && lx.pos+1 < len(lx.src):
			sb.WriteByte(c)
			sb.WriteByte(lx.src[lx.pos+1])
			lx.pos += 2
		case long && strings.HasPrefix(lx.src[lx.pos:], delim) && !strings.HasPrefix(lx.src[lx.pos+1:], delim):
			lx.pos += 3
			return unescape(sb.String())
		case !long && c == q:
			lx.pos++
			return unescape(sb.String())
		case !long && (c == '\n' || c == '\r'):
			return "", lx.errorf("newline in string literal")
		default:
			sb.WriteByte(c)
			lx.pos++
		}
	}
	return "", lx.errorf("unterminated string")
}

func unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 't':
			sb.WriteByte('\t')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case '"', '\'', '\\':
			sb.WriteByte(s[i])
		case 'u', 'U':
			n := 4
			if s[i] == 'U' {
				n = 8
			}
			if i+n >= len(s) {
				return "", fmt.Errorf("short unicode escape")
			}
			v, err := strconv.ParseUint(s[i+1:i+1+n], 16, 32)
			if err != nil {
				return "", fmt.Errorf("bad unicode escape: %w", err)
			}
			sb.WriteRune(rune(v))
			i += n
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		}
	}
	return sb.String(), nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isAlpha(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }
func isHex(c byte) bool   { return isDigit(c) || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F' }

func isNameStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isNameChar(r rune) bool {
	return r == '_' || r == '-' || r == '·' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
