package graph

import (
	"sort"
	"strings"
)

// Well-known namespaces.
const (
	RDFNS    = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFSNS   = "http://www.w3.org/2000/01/rdf-schema#"
	OWLNS    = "http://www.w3.org/2002/07/owl#"
	XSDNS    = "http://www.w3.org/2001/XMLSchema#"
	SchemaNS = "http://schema.org/"
	NANS     = "http://newsanalyzer.org/ontology#"
	EntityNS = "http://newsanalyzer.org/entity/"
)

// Vocabulary IRIs used by the ontology encoding and the rules.
const (
	XSDString     = XSDNS + "string"
	RDFLangString = RDFNS + "langString"
)

var (
	RDFType               = IRI(RDFNS + "type")
	RDFSSubClassOf        = IRI(RDFSNS + "subClassOf")
	RDFSSubPropertyOf     = IRI(RDFSNS + "subPropertyOf")
	RDFSDomain            = IRI(RDFSNS + "domain")
	RDFSRange             = IRI(RDFSNS + "range")
	RDFSLabel             = IRI(RDFSNS + "label")
	OWLClass              = IRI(OWLNS + "Class")
	OWLObjectProperty     = IRI(OWLNS + "ObjectProperty")
	OWLDatatypeProperty   = IRI(OWLNS + "DatatypeProperty")
	OWLFunctionalProperty = IRI(OWLNS + "FunctionalProperty")
	OWLNamedIndividual    = IRI(OWLNS + "NamedIndividual")
	SchemaName            = IRI(SchemaNS + "name")
)

// Namespaces is a prefix table used to expand and compact IRIs.
// It is not safe for concurrent Bind; readers may share a table once
// binding is complete.
type Namespaces struct {
	byPrefix map[string]string
}

// NewNamespaces returns a table with rdf, rdfs, owl, xsd, schema and na bound.
func NewNamespaces() *Namespaces {
	ns := &Namespaces{byPrefix: make(map[string]string)}
	ns.Bind("rdf", RDFNS)
	ns.Bind("rdfs", RDFSNS)
	ns.Bind("owl", OWLNS)
	ns.Bind("xsd", XSDNS)
	ns.Bind("schema", SchemaNS)
	ns.Bind("na", NANS)
	return ns
}

// Bind associates prefix with a namespace IRI, replacing any existing binding.
func (n *Namespaces) Bind(prefix, iri string) {
	n.byPrefix[prefix] = iri
}

// Lookup returns the namespace bound to prefix.
func (n *Namespaces) Lookup(prefix string) (string, bool) {
	iri, ok := n.byPrefix[prefix]
	return iri, ok
}

// Expand resolves a prefixed name such as "na:memberOf". Absolute IRIs
// (containing "://") and "<...>" forms are returned unchanged.
func (n *Namespaces) Expand(name string) (string, bool) {
	if strings.HasPrefix(name, "<") && strings.HasSuffix(name, ">") {
		return name[1 : len(name)-1], true
	}
	if IsAbsolute(name) {
		return name, true
	}
	prefix, local, ok := strings.Cut(name, ":")
	if !ok {
		return "", false
	}
	base, ok := n.byPrefix[prefix]
	if !ok {
		return "", false
	}
	return base + local, true
}

// Compact returns the shortest prefixed form of iri, or iri itself when no
// prefix matches.
func (n *Namespaces) Compact(iri string) string {
	best, bestLen := "", 0
	for prefix, base := range n.byPrefix {
		if len(base) > bestLen && strings.HasPrefix(iri, base) {
			local := iri[len(base):]
			if local == "" || strings.ContainsAny(local, "/#:") {
				continue
			}
			best, bestLen = prefix+":"+local, len(base)
		}
	}
	if best == "" {
		return iri
	}
	return best
}

// Prefixes returns the bound prefixes in sorted order.
func (n *Namespaces) Prefixes() []string {
	out := make([]string, 0, len(n.byPrefix))
	for p := range n.byPrefix {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy of the table.
func (n *Namespaces) Clone() *Namespaces {
	c := &Namespaces{byPrefix: make(map[string]string, len(n.byPrefix))}
	for p, iri := range n.byPrefix {
		c.byPrefix[p] = iri
	}
	return c
}

// IsAbsolute reports whether s looks like an absolute IRI.
func IsAbsolute(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "urn:")
}

// HasScheme reports whether s starts with an IRI scheme ("mailto:",
// "did:", "tag:") followed by a non-empty remainder without spaces.
func HasScheme(s string) bool {
	scheme, rest, ok := strings.Cut(s, ":")
	if !ok || scheme == "" || rest == "" || strings.ContainsAny(s, " \t\n<>\"{}|\\^`") {
		return false
	}
	for i, r := range scheme {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

// LocalName returns the part of iri after the last '#' or '/'.
func LocalName(iri string) string {
	if i := strings.LastIndexAny(iri, "#/"); i >= 0 && i < len(iri)-1 {
		return iri[i+1:]
	}
	return iri
}
