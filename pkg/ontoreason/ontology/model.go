// Package ontology holds the static ontology: classes with their superclass
// closure, properties, named individuals and the rule table that parameterises
// inference. A Model is built once by Load and is read-only afterwards.
package ontology

import (
	"maps"
	"slices"
	"strings"

	"github.com/cognicore/ontoreason/pkg/ontoreason/graph"
)

// PropertyKind distinguishes object-valued from data-valued properties.
type PropertyKind string

const (
	KindObject PropertyKind = "object"
	KindData   PropertyKind = "data"
)

// Class is an ontology class.
type Class struct {
	IRI          string
	Label        string
	Superclasses []string // direct only
	Restrictions []Restriction
	// GroupingFor is the subtype implied for members of instances of this
	// class (see the membership rule). Empty when the class is not a
	// grouping class.
	GroupingFor string
}

// Restriction bounds the number of values a property may take on instances
// of the owning class.
type Restriction struct {
	Property       string
	MaxCardinality int
}

// Property is an ontology property.
type Property struct {
	IRI           string
	Label         string
	Kind          PropertyKind
	Domain        string
	Range         string // class IRI for object properties, datatype IRI for data properties
	Functional    bool
	SubPropertyOf string
}

// Individual is a named instance declared by the ontology.
type Individual struct {
	IRI    string
	Types  []string
	Values map[string][]string // property IRI -> literal values
}

// RuleTable parameterises the fixed inference rules.
type RuleTable struct {
	// MembershipProperty links a member to a grouping instance (na:memberOf).
	MembershipProperty string
	// ActionProperty links an actor to an action individual (na:performsAction).
	ActionProperty string
	// Actions maps action individuals to the subtype their performers gain.
	Actions map[string]string
	// PropertyActions maps predicates to the subtype their subjects gain.
	PropertyActions map[string]string
	// RegulatedBy links a regulated entity to its regulator.
	RegulatedBy string
	// Regulator is the subtype assigned to regulators.
	Regulator string
	// TypeMapping maps extraction labels (person, government_org...) to classes.
	TypeMapping map[string]string
	// DefaultType is used for unknown extraction labels.
	DefaultType string
}

// Model is a loaded, validated ontology.
type Model struct {
	source      string
	ns          *graph.Namespaces
	classes     map[string]*Class
	classOrder  []string
	properties  map[string]*Property
	propOrder   []string
	individuals map[string]*Individual
	indOrder    []string
	byLocalName map[string]string
	rules       RuleTable
	closure     map[string]map[string]struct{}
}

// Source names where the model was loaded from.
func (m *Model) Source() string { return m.source }

// Namespaces returns the prefix table declared by the ontology. The returned
// table must not be modified.
func (m *Model) Namespaces() *graph.Namespaces { return m.ns }

// Class returns the class with the given IRI.
func (m *Model) Class(iri string) (*Class, bool) {
	c, ok := m.classes[iri]
	return c, ok
}

// Property returns the property with the given IRI.
func (m *Model) Property(iri string) (*Property, bool) {
	p, ok := m.properties[iri]
	return p, ok
}

// Individual returns the individual with the given IRI.
func (m *Model) Individual(iri string) (*Individual, bool) {
	i, ok := m.individuals[iri]
	return i, ok
}

// Classes returns classes in declaration order.
func (m *Model) Classes() []*Class {
	out := make([]*Class, len(m.classOrder))
	for i, iri := range m.classOrder {
		out[i] = m.classes[iri]
	}
	return out
}

// Properties returns properties in declaration order.
func (m *Model) Properties() []*Property {
	out := make([]*Property, len(m.propOrder))
	for i, iri := range m.propOrder {
		out[i] = m.properties[iri]
	}
	return out
}

// Individuals returns individuals in declaration order.
func (m *Model) Individuals() []*Individual {
	out := make([]*Individual, len(m.indOrder))
	for i, iri := range m.indOrder {
		out[i] = m.individuals[iri]
	}
	return out
}

// Rules returns the rule table.
func (m *Model) Rules() RuleTable { return m.rules }

// ClassHierarchy returns the transitive superclass closure of every class.
// The closure is computed at load; callers receive a copy.
func (m *Model) ClassHierarchy() map[string]map[string]struct{} {
	out := make(map[string]map[string]struct{}, len(m.closure))
	for c, supers := range m.closure {
		out[c] = maps.Clone(supers)
	}
	return out
}

// Superclasses returns every ancestor of class (not including itself), sorted.
func (m *Model) Superclasses(class string) []string {
	supers := m.closure[class]
	out := make([]string, 0, len(supers))
	for s := range supers {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// IsSubclassOf reports whether sub equals super or has it as an ancestor.
func (m *Model) IsSubclassOf(sub, super string) bool {
	if sub == super {
		return true
	}
	_, ok := m.closure[sub][super]
	return ok
}

// GroupingClasses returns grouping class -> implied subtype.
func (m *Model) GroupingClasses() map[string]string {
	out := make(map[string]string)
	for _, iri := range m.classOrder {
		if g := m.classes[iri].GroupingFor; g != "" {
			out[iri] = g
		}
	}
	return out
}

// Resolve turns a user-supplied name into an IRI: absolute IRIs and prefixed
// names are expanded; bare local names match declared individuals, classes
// and properties, in that order.
func (m *Model) Resolve(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	if iri, ok := m.ns.Expand(name); ok {
		return iri, true
	}
	if iri, ok := m.byLocalName[name]; ok {
		return iri, true
	}
	return "", false
}

// PropertyByName resolves a property by IRI, prefixed name or local name.
func (m *Model) PropertyByName(name string) (*Property, bool) {
	iri, ok := m.Resolve(name)
	if !ok {
		return nil, false
	}
	p, ok := m.properties[iri]
	return p, ok
}

// MapType resolves an extraction label or class name to a class IRI, falling
// back to the rule table default. Unknown names never fail.
func (m *Model) MapType(label string) string {
	if iri, ok := m.rules.TypeMapping[strings.ToLower(strings.TrimSpace(label))]; ok {
		return iri
	}
	if iri, ok := m.Resolve(label); ok && (m.IsClass(iri) || strings.Contains(label, ":")) {
		return iri
	}
	return m.rules.DefaultType
}

// IsClass reports whether iri names a declared class.
func (m *Model) IsClass(iri string) bool {
	_, ok := m.classes[iri]
	return ok
}

// Triples encodes the ontology as rdf/rdfs/owl statements plus the declared
// individuals. It is the seed of the base graph.
func (m *Model) Triples() []graph.Triple {
	var out []graph.Triple
	add := func(s string, p graph.Term, o graph.Term) {
		out = append(out, graph.Triple{Subject: graph.IRI(s), Predicate: p, Object: o})
	}

	for _, c := range m.Classes() {
		add(c.IRI, graph.RDFType, graph.OWLClass)
		if c.Label != "" {
			add(c.IRI, graph.RDFSLabel, graph.Literal(c.Label))
		}
		for _, s := range c.Superclasses {
			add(c.IRI, graph.RDFSSubClassOf, graph.IRI(s))
		}
	}
	for _, p := range m.Properties() {
		if p.Kind == KindObject {
			add(p.IRI, graph.RDFType, graph.OWLObjectProperty)
		} else {
			add(p.IRI, graph.RDFType, graph.OWLDatatypeProperty)
		}
		if p.Functional {
			add(p.IRI, graph.RDFType, graph.OWLFunctionalProperty)
		}
		if p.Label != "" {
			add(p.IRI, graph.RDFSLabel, graph.Literal(p.Label))
		}
		if p.Domain != "" {
			add(p.IRI, graph.RDFSDomain, graph.IRI(p.Domain))
		}
		if p.Range != "" {
			add(p.IRI, graph.RDFSRange, graph.IRI(p.Range))
		}
		if p.SubPropertyOf != "" {
			add(p.IRI, graph.RDFSSubPropertyOf, graph.IRI(p.SubPropertyOf))
		}
	}
	for _, ind := range m.Individuals() {
		for _, t := range ind.Types {
			add(ind.IRI, graph.RDFType, graph.IRI(t))
		}
		for _, prop := range slices.Sorted(maps.Keys(ind.Values)) {
			for _, v := range ind.Values[prop] {
				add(ind.IRI, graph.IRI(prop), m.ValueTerm(prop, v))
			}
		}
	}
	return out
}

// ValueTerm builds the object term for a value of prop: object properties
// resolve to IRIs, XSD-typed data properties to typed literals.
func (m *Model) ValueTerm(prop, v string) graph.Term {
	p, ok := m.properties[prop]
	if ok && p.Kind == KindObject {
		if iri, ok := m.Resolve(v); ok {
			return graph.IRI(iri)
		}
	}
	if ok && strings.HasPrefix(p.Range, graph.XSDNS) && p.Range != graph.XSDString {
		return graph.TypedLiteral(v, p.Range)
	}
	return graph.Literal(v)
}
