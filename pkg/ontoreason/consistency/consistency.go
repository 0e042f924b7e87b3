// Package consistency reports cardinality, range and domain violations in a
// fact graph. It never modifies the graph and never fails: restrictions are
// detected, not enforced.
package consistency

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/cognicore/ontoreason/pkg/ontoreason/graph"
	"github.com/cognicore/ontoreason/pkg/ontoreason/ontology"
)

// Kind classifies a violation.
type Kind string

const (
	KindCardinality    Kind = "cardinality"
	KindRangeMismatch  Kind = "range-mismatch"
	KindDomainMismatch Kind = "domain-mismatch"
)

// Violation is one detected constraint breach.
type Violation struct {
	Kind     Kind         `json:"kind"`
	Subject  graph.Term   `json:"subject"`
	Property string       `json:"property"`
	Values   []graph.Term `json:"values,omitempty"`
	// Bound is the cardinality limit that was exceeded; zero for other kinds.
	Bound   int    `json:"bound,omitempty"`
	Message string `json:"message"`
}

func (v Violation) String() string { return v.Message }

// Involves reports whether term appears as the subject or one of the values.
func (v Violation) Involves(term graph.Term) bool {
	return v.Subject == term || slices.Contains(v.Values, term)
}

// Check evaluates g against the constraints declared in m. The result is
// sorted by kind, subject and property.
func Check(g graph.View, m *ontology.Model) []Violation {
	c := &checker{g: g, m: m}
	c.cardinality()
	c.ranges()
	c.domains()

	slices.SortFunc(c.out, func(a, b Violation) int {
		return cmp.Or(
			cmp.Compare(a.Kind, b.Kind),
			graph.Compare(a.Subject, b.Subject),
			cmp.Compare(a.Property, b.Property),
		)
	})
	return c.out
}

// Touching keeps the violations that involve term.
func Touching(vs []Violation, term graph.Term) []Violation {
	var out []Violation
	for _, v := range vs {
		if v.Involves(term) {
			out = append(out, v)
		}
	}
	return out
}

// CountByKind tallies violations per kind.
func CountByKind(vs []Violation) map[Kind]int {
	out := make(map[Kind]int, 3)
	for _, v := range vs {
		out[v.Kind]++
	}
	return out
}

type checker struct {
	g       graph.View
	m       *ontology.Model
	out     []Violation
}

type subjectProp struct {
	subject  graph.Term
	property string
}

// cardinality checks functional properties (bound 1) and class-scoped max
// cardinality restrictions. When several bounds apply to the same subject
// and property, only the tightest is reported.
func (c *checker) cardinality() {
	bounds := make(map[subjectProp]int)
	tighten := func(k subjectProp, n int) {
		if cur, ok := bounds[k]; !ok || n < cur {
			bounds[k] = n
		}
	}

	for _, p := range c.m.Properties() {
		if !p.Functional {
			continue
		}
		for t := range c.g.Match(graph.Any, graph.IRI(p.IRI), graph.Any) {
			tighten(subjectProp{t.Subject, p.IRI}, 1)
		}
	}
	for _, cls := range c.m.Classes() {
		for _, r := range cls.Restrictions {
			for t := range c.g.Match(graph.Any, graph.RDFType, graph.IRI(cls.IRI)) {
				tighten(subjectProp{t.Subject, r.Property}, r.MaxCardinality)
			}
		}
	}

	for k, bound := range bounds {
		values := graph.Objects(c.g, k.subject, graph.IRI(k.property))
		if len(values) <= bound {
			continue
		}
		slices.SortFunc(values, graph.Compare)
		c.out = append(c.out, Violation{
			Kind:     KindCardinality,
			Subject:  k.subject,
			Property: k.property,
			Values:   values,
			Bound:    bound,
			Message: fmt.Sprintf("%s has %d values for %s (max %d allowed)",
				k.subject.Value, len(values), k.property, bound),
		})
	}
}

// ranges checks each use of a property with a declared range.
func (c *checker) ranges() {
	for _, p := range c.m.Properties() {
		if p.Range == "" {
			continue
		}
		bad := make(map[graph.Term][]graph.Term)
		var order []graph.Term
		for t := range c.g.Match(graph.Any, graph.IRI(p.IRI), graph.Any) {
			if c.inRange(p, t.Object) {
				continue
			}
			if _, seen := bad[t.Subject]; !seen {
				order = append(order, t.Subject)
			}
			bad[t.Subject] = append(bad[t.Subject], t.Object)
		}
		for _, s := range order {
			values := bad[s]
			slices.SortFunc(values, graph.Compare)
			c.out = append(c.out, Violation{
				Kind:     KindRangeMismatch,
				Subject:  s,
				Property: p.IRI,
				Values:   values,
				Message:  fmt.Sprintf("%s: value of %s outside range %s", s.Value, p.IRI, p.Range),
			})
		}
	}
}

func (c *checker) inRange(p *ontology.Property, o graph.Term) bool {
	if p.Kind == ontology.KindData {
		if !o.IsLiteral() {
			return false
		}
		return datatypeMatches(o, p.Range)
	}
	if !o.IsIRI() {
		return false
	}
	return c.typedWithin(o, p.Range)
}

// domains checks that subjects of properties with a declared domain carry
// the domain class.
func (c *checker) domains() {
	for _, p := range c.m.Properties() {
		if p.Domain == "" {
			continue
		}
		seen := make(map[graph.Term]struct{})
		for t := range c.g.Match(graph.Any, graph.IRI(p.IRI), graph.Any) {
			if _, dup := seen[t.Subject]; dup {
				continue
			}
			seen[t.Subject] = struct{}{}
			if c.typedWithin(t.Subject, p.Domain) {
				continue
			}
			c.out = append(c.out, Violation{
				Kind:     KindDomainMismatch,
				Subject:  t.Subject,
				Property: p.IRI,
				Message:  fmt.Sprintf("%s uses %s but is not a %s", t.Subject.Value, p.IRI, p.Domain),
			})
		}
	}
}

// typedWithin reports whether node is typed in the graph with class or one
// of its subclasses. An untyped node is not a member of any class.
func (c *checker) typedWithin(node graph.Term, class string) bool {
	for t := range c.g.Match(node, graph.RDFType, graph.Any) {
		ty := t.Object.Value
		if ty == class || c.m.IsSubclassOf(ty, class) {
			return true
		}
	}
	return false
}

func datatypeMatches(lit graph.Term, want string) bool {
	got := lit.DatatypeIRI()
	if got == want {
		return true
	}
	if want == graph.XSDString {
		return got == graph.RDFLangString
	}
	return false
}
