package query

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/cognicore/ontoreason/pkg/ontoreason/graph"
)

type tokenKind int

const (
	tokSep tokenKind = iota // '.' or newline
	tokVar
	tokIRI
	tokPName
	tokLiteral
	tokNumber
	tokA
	tokKeyword
	tokLBrace
	tokRBrace
	tokStar
)

type token struct {
	kind  tokenKind
	text  string // variable name, IRI, prefixed name, lexical form, keyword
	lang  string
	dtype string // datatype as written: <iri> or prefixed name
	pos   int
}

var keywords = map[string]bool{
	"SELECT":   true,
	"DISTINCT": true,
	"WHERE":    true,
	"PREFIX":   true,
	"LIMIT":    true,
}

type lexer struct {
	src  string
	pos  int
	toks []token
}

func lex(src string) ([]token, error) {
	l := &lexer{src: src}
	for l.pos < len(l.src) {
		if err := l.next(); err != nil {
			return nil, err
		}
	}
	return l.toks, nil
}

func (l *lexer) emit(t token) { l.toks = append(l.toks, t) }

func (l *lexer) fail(format string, args ...any) error {
	return errorf(l.src, l.pos, format, args...)
}

func (l *lexer) next() error {
	start := l.pos
	c := l.src[l.pos]
	switch {
	case c == '\n' || c == '.':
		l.pos++
		l.emit(token{kind: tokSep, pos: start})
	case c == ' ' || c == '\t' || c == '\r':
		l.pos++
	case c == '#':
		for l.pos < len(l.src) && l.src[l.pos] != '\n' {
			l.pos++
		}
	case c == '{':
		l.pos++
		l.emit(token{kind: tokLBrace, pos: start})
	case c == '}':
		l.pos++
		l.emit(token{kind: tokRBrace, pos: start})
	case c == '*':
		l.pos++
		l.emit(token{kind: tokStar, pos: start})
	case c == '?' || c == '$':
		l.pos++
		name := l.word(isVarChar)
		if name == "" {
			return errorf(l.src, start, "empty variable name")
		}
		l.emit(token{kind: tokVar, text: name, pos: start})
	case c == '<':
		iri, err := l.iriRef()
		if err != nil {
			return err
		}
		l.emit(token{kind: tokIRI, text: iri, pos: start})
	case c == '"':
		return l.literal()
	default:
		w := l.name()
		switch {
		case w == "":
			return l.fail("unexpected character %q", c)
		case w == "a":
			l.emit(token{kind: tokA, pos: start})
		case keywords[strings.ToUpper(w)]:
			l.emit(token{kind: tokKeyword, text: strings.ToUpper(w), pos: start})
		case numberType(w) != "":
			l.emit(token{kind: tokNumber, text: w, dtype: numberType(w), pos: start})
		case strings.Contains(w, ":"):
			l.emit(token{kind: tokPName, text: w, pos: start})
		default:
			return errorf(l.src, start, "malformed token %q", w)
		}
	}
	return nil
}

func (l *lexer) word(ok func(rune) bool) string {
	start := l.pos
	for l.pos < len(l.src) {
		r := rune(l.src[l.pos])
		if r >= 0x80 {
			// multi-byte names are accepted whole
			r = 'x'
		}
		if !ok(r) {
			break
		}
		l.pos++
	}
	return l.src[start:l.pos]
}

// name reads a prefixed name, keyword or number. A '.' stays inside the
// token when a name character follows it; a trailing '.' ends the pattern.
func (l *lexer) name() string {
	start := l.pos
	for {
		l.word(isNameChar)
		if l.pos+1 >= len(l.src) || l.src[l.pos] != '.' || !isNameByte(l.src[l.pos+1]) {
			break
		}
		l.pos++
	}
	return l.src[start:l.pos]
}

func isNameByte(b byte) bool {
	return b >= 0x80 || isNameChar(rune(b))
}

func (l *lexer) iriRef() (string, error) {
	start := l.pos
	end := strings.IndexByte(l.src[l.pos:], '>')
	if end < 0 {
		return "", errorf(l.src, start, "unterminated IRI")
	}
	iri := l.src[l.pos+1 : l.pos+end]
	if iri == "" || strings.ContainsAny(iri, " \t\n<\"") {
		return "", errorf(l.src, start, "malformed IRI <%s>", iri)
	}
	l.pos += end + 1
	return iri, nil
}

func (l *lexer) literal() error {
	start := l.pos
	l.pos++
	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return errorf(l.src, start, "unterminated literal")
		}
		c := l.src[l.pos]
		if c == '"' {
			l.pos++
			break
		}
		if c == '\n' {
			return errorf(l.src, start, "unterminated literal")
		}
		if c == '\\' && l.pos+1 < len(l.src) {
			l.pos++
			switch e := l.src[l.pos]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"', '\\':
				b.WriteByte(e)
			default:
				return l.fail("unknown escape \\%c", e)
			}
			l.pos++
			continue
		}
		b.WriteByte(c)
		l.pos++
	}

	t := token{kind: tokLiteral, text: b.String(), pos: start}
	switch {
	case strings.HasPrefix(l.src[l.pos:], "@"):
		l.pos++
		t.lang = l.word(func(r rune) bool { return r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r) })
		if t.lang == "" {
			return l.fail("empty language tag")
		}
	case strings.HasPrefix(l.src[l.pos:], "^^"):
		l.pos += 2
		if l.pos < len(l.src) && l.src[l.pos] == '<' {
			iri, err := l.iriRef()
			if err != nil {
				return err
			}
			t.dtype = "<" + iri + ">"
		} else {
			t.dtype = l.name()
			if !strings.Contains(t.dtype, ":") {
				return l.fail("malformed datatype %q", t.dtype)
			}
		}
	}
	l.emit(t)
	return nil
}

func isVarChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isNameChar(r rune) bool {
	return isVarChar(r) || r == ':' || r == '-' || r == '%'
}

// numberType returns the XSD datatype of a numeric token: integer, decimal
// or double. It returns "" when w is not a number.
func numberType(w string) string {
	digits := func(s string) (string, bool) {
		i := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		return s[i:], i > 0
	}
	rest, ok := digits(strings.TrimPrefix(w, "-"))
	if !ok {
		return ""
	}
	dtype := graph.XSDNS + "integer"
	if strings.HasPrefix(rest, ".") {
		if rest, ok = digits(rest[1:]); !ok {
			return ""
		}
		dtype = graph.XSDNS + "decimal"
	}
	if len(rest) > 0 && (rest[0] == 'e' || rest[0] == 'E') {
		if rest, ok = digits(strings.TrimPrefix(rest[1:], "-")); !ok {
			return ""
		}
		dtype = graph.XSDNS + "double"
	}
	if rest != "" {
		return ""
	}
	return dtype
}

// Query is a parsed query: optional projection and modifiers around a
// basic graph pattern.
type Query struct {
	Select   []string
	Distinct bool
	Limit    int
	Patterns []Pattern
}

// Options converts the query modifiers to evaluation options.
func (q *Query) Options() []Option {
	var opts []Option
	if len(q.Select) > 0 {
		opts = append(opts, Select(q.Select...))
	}
	if q.Distinct {
		opts = append(opts, Distinct())
	}
	if q.Limit > 0 {
		opts = append(opts, Limit(q.Limit))
	}
	return opts
}

// Parse reads a pattern body: triple patterns separated by '.' or newlines.
// Names are expanded with ns.
func Parse(text string, ns *graph.Namespaces) ([]Pattern, error) {
	q, err := ParseQuery(text, ns)
	if err != nil {
		return nil, err
	}
	return q.Patterns, nil
}

// ParseQuery reads either a bare pattern body or the SPARQL-shaped form
//
//	PREFIX ex: <http://example.org/>
//	SELECT DISTINCT ?x WHERE { ?x a ex:Thing } LIMIT 10
//
// PREFIX declarations apply to this query only.
func ParseQuery(text string, ns *graph.Namespaces) (*Query, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	if ns == nil {
		ns = graph.NewNamespaces()
	}
	p := &parser{src: text, toks: toks, ns: ns}
	return p.query()
}

type parser struct {
	src    string
	toks   []token
	i      int
	ns     *graph.Namespaces
	cloned bool
}

func (p *parser) peek() (token, bool) {
	for p.i < len(p.toks) && p.toks[p.i].kind == tokSep {
		p.i++
	}
	if p.i >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.i], true
}

func (p *parser) keyword(kw string) bool {
	t, ok := p.peek()
	if ok && t.kind == tokKeyword && t.text == kw {
		p.i++
		return true
	}
	return false
}

func (p *parser) failAt(t token, format string, args ...any) error {
	return errorf(p.src, t.pos, format, args...)
}

func (p *parser) query() (*Query, error) {
	q := &Query{}

	for p.keyword("PREFIX") {
		t, ok := p.peek()
		if !ok || t.kind != tokPName || !strings.HasSuffix(t.text, ":") {
			return nil, p.failAt(t, "PREFIX expects a name ending in ':'")
		}
		p.i++
		iri, ok := p.peek()
		if !ok || iri.kind != tokIRI {
			return nil, p.failAt(iri, "PREFIX %s expects an <IRI>", t.text)
		}
		p.i++
		if !p.cloned {
			p.ns = p.ns.Clone()
			p.cloned = true
		}
		p.ns.Bind(strings.TrimSuffix(t.text, ":"), iri.text)
	}

	wrapped := false
	if p.keyword("SELECT") {
		q.Distinct = p.keyword("DISTINCT")
		for {
			t, ok := p.peek()
			if !ok {
				return nil, p.failAt(t, "SELECT without WHERE")
			}
			if t.kind == tokStar {
				p.i++
				continue
			}
			if t.kind != tokVar {
				break
			}
			q.Select = append(q.Select, t.text)
			p.i++
		}
		p.keyword("WHERE")
		t, ok := p.peek()
		if !ok || t.kind != tokLBrace {
			return nil, p.failAt(t, "expected '{'")
		}
		p.i++
		wrapped = true
	} else {
		p.keyword("WHERE")
		if t, ok := p.peek(); ok && t.kind == tokLBrace {
			p.i++
			wrapped = true
		}
	}

	pats, err := p.patterns(wrapped)
	if err != nil {
		return nil, err
	}
	q.Patterns = pats

	if p.keyword("LIMIT") {
		t, ok := p.peek()
		if !ok || t.kind != tokNumber {
			return nil, p.failAt(t, "LIMIT expects a number")
		}
		n, err := strconv.Atoi(t.text)
		if err != nil || n < 0 {
			return nil, p.failAt(t, "LIMIT expects a non-negative integer")
		}
		p.i++
		q.Limit = n
	}
	if t, ok := p.peek(); ok {
		return nil, p.failAt(t, "unexpected trailing input")
	}
	if len(q.Patterns) == 0 {
		return nil, errorf(p.src, -1, "no triple patterns")
	}
	return q, nil
}

// patterns reads nodes three at a time; a separator may only fall between
// complete patterns.
func (p *parser) patterns(wrapped bool) ([]Pattern, error) {
	var out []Pattern
	var cur []Node
	var first token

	flush := func() error {
		switch len(cur) {
		case 0:
			return nil
		case 3:
			out = append(out, Pattern{Subject: cur[0], Predicate: cur[1], Object: cur[2]})
			cur = cur[:0]
			return nil
		default:
			return p.failAt(first, "incomplete triple pattern (%d of 3 terms)", len(cur))
		}
	}

	for p.i < len(p.toks) {
		t := p.toks[p.i]
		switch t.kind {
		case tokSep:
			p.i++
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		case tokRBrace:
			if !wrapped {
				return nil, p.failAt(t, "unexpected '}'")
			}
			p.i++
			return out, flush()
		case tokKeyword:
			if wrapped {
				return nil, p.failAt(t, "unexpected %s inside pattern block", t.text)
			}
			return out, flush()
		}

		if len(cur) == 3 {
			return nil, p.failAt(t, "expected '.' or newline after triple pattern")
		}
		n, err := p.node(t, len(cur))
		if err != nil {
			return nil, err
		}
		if len(cur) == 0 {
			first = t
		}
		cur = append(cur, n)
		p.i++
	}
	if wrapped {
		return nil, errorf(p.src, len(p.src), "missing '}'")
	}
	return out, flush()
}

var positions = [3]string{"subject", "predicate", "object"}

func (p *parser) node(t token, pos int) (Node, error) {
	switch t.kind {
	case tokVar:
		return Var(t.text), nil
	case tokA:
		if pos != 1 {
			return Node{}, p.failAt(t, "'a' is only valid as a predicate")
		}
		return Const(graph.RDFType), nil
	case tokIRI:
		return Const(graph.IRI(t.text)), nil
	case tokPName:
		iri, err := p.expand(t, t.text)
		if err != nil {
			return Node{}, err
		}
		return Const(graph.IRI(iri)), nil
	case tokLiteral, tokNumber:
		if pos != 2 {
			return Node{}, p.failAt(t, "literal not allowed in %s position", positions[pos])
		}
		if t.kind == tokNumber {
			return Const(graph.TypedLiteral(t.text, t.dtype)), nil
		}
		switch {
		case t.lang != "":
			return Const(graph.LangLiteral(t.text, t.lang)), nil
		case t.dtype != "":
			dt := strings.TrimSuffix(strings.TrimPrefix(t.dtype, "<"), ">")
			if !strings.HasPrefix(t.dtype, "<") {
				var err error
				if dt, err = p.expand(t, t.dtype); err != nil {
					return Node{}, err
				}
			}
			return Const(graph.TypedLiteral(t.text, dt)), nil
		default:
			return Const(graph.Literal(t.text)), nil
		}
	default:
		return Node{}, p.failAt(t, "unexpected token in %s position", positions[pos])
	}
}

func (p *parser) expand(t token, name string) (string, error) {
	iri, ok := p.ns.Expand(name)
	if !ok {
		prefix, _, _ := strings.Cut(name, ":")
		return "", p.failAt(t, "unknown prefix %q", prefix)
	}
	return iri, nil
}
