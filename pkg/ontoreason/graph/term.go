// Package graph implements the in-memory fact graph: RDF-style terms and
// triples, a hash-indexed triple set, copy-free overlays used as per-request
// working graphs, and N-Triples/Turtle serialisation.
package graph

import (
	"strconv"
	"strings"
)

// TermKind distinguishes IRIs from literals.
type TermKind uint8

const (
	// KindIRI is a resource identifier.
	KindIRI TermKind = iota + 1
	// KindLiteral is a lexical value with optional datatype or language.
	KindLiteral
)

// Term is a node in the graph: an IRI or a literal.
// The zero Term is used as a wildcard by Match.
type Term struct {
	Kind     TermKind
	Value    string
	Datatype string // literals only; empty means xsd:string
	Lang     string // literals only
}

// Any is the wildcard term accepted by Match.
var Any Term

// IRI returns an IRI term.
func IRI(v string) Term { return Term{Kind: KindIRI, Value: v} }

// Literal returns a plain string literal.
func Literal(v string) Term { return Term{Kind: KindLiteral, Value: v} }

// TypedLiteral returns a literal carrying a datatype IRI.
func TypedLiteral(v, datatype string) Term {
	if datatype == XSDString {
		datatype = ""
	}
	return Term{Kind: KindLiteral, Value: v, Datatype: datatype}
}

// LangLiteral returns a language-tagged literal.
func LangLiteral(v, lang string) Term {
	return Term{Kind: KindLiteral, Value: v, Lang: strings.ToLower(lang)}
}

// IsZero reports whether t is the wildcard.
func (t Term) IsZero() bool { return t.Kind == 0 }

// IsIRI reports whether t is an IRI.
func (t Term) IsIRI() bool { return t.Kind == KindIRI }

// IsLiteral reports whether t is a literal.
func (t Term) IsLiteral() bool { return t.Kind == KindLiteral }

// DatatypeIRI returns the effective datatype of a literal. Plain literals are
// xsd:string, language-tagged literals are rdf:langString.
func (t Term) DatatypeIRI() string {
	switch {
	case !t.IsLiteral():
		return ""
	case t.Lang != "":
		return RDFLangString
	case t.Datatype == "":
		return XSDString
	default:
		return t.Datatype
	}
}

// String renders the term in N-Triples syntax.
func (t Term) String() string {
	switch t.Kind {
	case KindIRI:
		return "<" + t.Value + ">"
	case KindLiteral:
		s := quote(t.Value)
		if t.Lang != "" {
			return s + "@" + t.Lang
		}
		if t.Datatype != "" {
			return s + "^^<" + t.Datatype + ">"
		}
		return s
	default:
		return "*"
	}
}

func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				b.WriteString(`\u`)
				h := strconv.FormatInt(int64(r), 16)
				b.WriteString(strings.Repeat("0", 4-len(h)))
				b.WriteString(h)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Compare orders terms: IRIs before literals, then by value, datatype, lang.
func Compare(a, b Term) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	if c := strings.Compare(a.Value, b.Value); c != 0 {
		return c
	}
	if c := strings.Compare(a.Datatype, b.Datatype); c != 0 {
		return c
	}
	return strings.Compare(a.Lang, b.Lang)
}

// Triple is a single (subject, predicate, object) fact.
type Triple struct {
	Subject   Term `json:"subject"`
	Predicate Term `json:"predicate"`
	Object    Term `json:"object"`
}

// T is shorthand for building a triple whose subject and predicate are IRIs.
func T(subject, predicate string, object Term) Triple {
	return Triple{Subject: IRI(subject), Predicate: IRI(predicate), Object: object}
}

// Valid reports whether the triple can be stored: IRI subject and predicate,
// non-wildcard object.
func (t Triple) Valid() bool {
	return t.Subject.IsIRI() && t.Predicate.IsIRI() && !t.Object.IsZero()
}

// String renders the triple as an N-Triples statement.
func (t Triple) String() string {
	return t.Subject.String() + " " + t.Predicate.String() + " " + t.Object.String() + " ."
}

// CompareTriples orders triples by subject, predicate, object.
func CompareTriples(a, b Triple) int {
	if c := Compare(a.Subject, b.Subject); c != 0 {
		return c
	}
	if c := Compare(a.Predicate, b.Predicate); c != 0 {
		return c
	}
	return Compare(a.Object, b.Object)
}
