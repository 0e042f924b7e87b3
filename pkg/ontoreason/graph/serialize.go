package graph

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Format names a serialisation format.
type Format string

const (
	FormatTurtle   Format = "turtle"
	FormatNTriples Format = "ntriples"
)

// ParseFormat accepts the common aliases ("ttl", "nt", "n-triples").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "turtle", "ttl", "":
		return FormatTurtle, nil
	case "ntriples", "n-triples", "nt":
		return FormatNTriples, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// Write serialises v in the requested format.
func Write(w io.Writer, v View, ns *Namespaces, f Format) error {
	switch f {
	case FormatTurtle:
		return WriteTurtle(w, v, ns)
	case FormatNTriples:
		return WriteNTriples(w, v)
	default:
		return fmt.Errorf("unsupported format: %s", f)
	}
}

// WriteNTriples writes one statement per line in canonical order.
func WriteNTriples(w io.Writer, v View) error {
	bw := bufio.NewWriter(w)
	for _, t := range Sorted(v) {
		bw.WriteString(t.String())
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// WriteTurtle writes prefix declarations followed by subject blocks.
func WriteTurtle(w io.Writer, v View, ns *Namespaces) error {
	if ns == nil {
		ns = NewNamespaces()
	}
	bw := bufio.NewWriter(w)
	for _, p := range ns.Prefixes() {
		iri, _ := ns.Lookup(p)
		fmt.Fprintf(bw, "@prefix %s: <%s> .\n", p, iri)
	}

	var (
		curSubj, curPred Term
		open             bool
	)
	for _, t := range Sorted(v) {
		switch {
		case open && t.Subject == curSubj && t.Predicate == curPred:
			bw.WriteString(", ")
		case open && t.Subject == curSubj:
			bw.WriteString(" ;\n    ")
			bw.WriteString(turtlePredicate(t.Predicate, ns))
			bw.WriteByte(' ')
		default:
			if open {
				bw.WriteString(" .\n")
			}
			bw.WriteByte('\n')
			bw.WriteString(turtleTerm(t.Subject, ns))
			bw.WriteByte(' ')
			bw.WriteString(turtlePredicate(t.Predicate, ns))
			bw.WriteByte(' ')
		}
		bw.WriteString(turtleTerm(t.Object, ns))
		curSubj, curPred, open = t.Subject, t.Predicate, true
	}
	if open {
		bw.WriteString(" .\n")
	}
	return bw.Flush()
}

func turtlePredicate(t Term, ns *Namespaces) string {
	if t == RDFType {
		return "a"
	}
	return turtleTerm(t, ns)
}

func turtleTerm(t Term, ns *Namespaces) string {
	switch {
	case t.IsIRI():
		if c, ok := turtleName(t.Value, ns); ok {
			return c
		}
	case t.IsLiteral() && t.Datatype != "" && t.Lang == "":
		if c, ok := turtleName(t.Datatype, ns); ok {
			return quote(t.Value) + "^^" + c
		}
	}
	return t.String()
}

// turtleName returns the prefixed form of iri when its local part can be
// written unescaped.
func turtleName(iri string, ns *Namespaces) (string, bool) {
	c := ns.Compact(iri)
	if c == iri {
		return "", false
	}
	_, local, _ := strings.Cut(c, ":")
	return c, validLocal(local)
}

// validLocal reports whether s is a Turtle local name that needs no
// backslash escapes.
func validLocal(s string) bool {
	if s == "" {
		return true
	}
	if s[0] == '.' || s[0] == '-' || s[len(s)-1] == '.' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 0x80:
			// non-ASCII letters are PN_CHARS
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_' || c == '-' || c == '.':
		case c == '%':
			if i+2 >= len(s) || !isHex(s[i+1]) || !isHex(s[i+2]) {
				return false
			}
			i += 2
		default:
			return false
		}
	}
	return true
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}
