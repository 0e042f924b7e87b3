package inference

import (
	"maps"
	"slices"

	"github.com/cognicore/ontoreason/pkg/ontoreason/graph"
	"github.com/cognicore/ontoreason/pkg/ontoreason/ontology"
)

// Rule names.
const (
	RuleSubclass       = "subclass-transitivity"
	RuleMembership     = "membership-subtype"
	RuleAction         = "action-subtype"
	RulePropertyAction = "property-action-subtype"
	RuleRegulation     = "regulation-subtype"
	RuleSubProperty    = "subproperty-propagation"
)

// RulesFor builds the fixed rule table from the ontology. Rules whose
// parameters are not declared are omitted.
func RulesFor(m *ontology.Model) []Rule {
	rt := m.Rules()
	rules := []Rule{SubclassTransitivity(m.ClassHierarchy())}

	if rt.MembershipProperty != "" {
		rules = append(rules, MembershipSubtype(rt.MembershipProperty, m.GroupingClasses()))
	}
	if rt.ActionProperty != "" && len(rt.Actions) > 0 {
		rules = append(rules, ActionSubtype(rt.ActionProperty, rt.Actions))
	}
	if len(rt.PropertyActions) > 0 {
		rules = append(rules, PropertyActionSubtype(rt.PropertyActions))
	}
	if rt.RegulatedBy != "" {
		rules = append(rules, RegulationSubtype(rt.RegulatedBy, rt.Regulator))
	}

	supers := make(map[string][]string)
	for _, p := range m.Properties() {
		if p.SubPropertyOf != "" {
			supers[p.IRI] = append(supers[p.IRI], p.SubPropertyOf)
		}
	}
	if len(supers) > 0 {
		rules = append(rules, SubPropertyPropagation(supers))
	}
	return rules
}

// ruleFunc adapts a function to Rule.
type ruleFunc struct {
	name string
	fn   func(graph.View) []graph.Triple
}

func (r ruleFunc) Name() string                      { return r.name }
func (r ruleFunc) Apply(g graph.View) []graph.Triple { return r.fn(g) }

// Func wraps fn as a named rule.
func Func(name string, fn func(graph.View) []graph.Triple) Rule {
	return ruleFunc{name: name, fn: fn}
}

// collector gathers candidate triples, skipping ones already in the graph
// or already proposed in this pass.
type collector struct {
	g    graph.View
	seen map[graph.Triple]struct{}
	out  []graph.Triple
}

func newCollector(g graph.View) *collector {
	return &collector{g: g, seen: make(map[graph.Triple]struct{})}
}

func (c *collector) add(t graph.Triple) {
	if _, dup := c.seen[t]; dup || c.g.Contains(t) {
		return
	}
	c.seen[t] = struct{}{}
	c.out = append(c.out, t)
}

func (c *collector) typed(s graph.Term, class string) {
	c.add(graph.Triple{Subject: s, Predicate: graph.RDFType, Object: graph.IRI(class)})
}

// SubclassTransitivity: X rdf:type A, A subClassOf* B => X rdf:type B.
// Superclasses come from the cached ontology hierarchy and from any
// rdfs:subClassOf statements present in the graph itself.
func SubclassTransitivity(hierarchy map[string]map[string]struct{}) Rule {
	return Func(RuleSubclass, func(g graph.View) []graph.Triple {
		c := newCollector(g)
		for t := range g.Match(graph.Any, graph.RDFType, graph.Any) {
			if !t.Object.IsIRI() {
				continue
			}
			for super := range hierarchy[t.Object.Value] {
				c.typed(t.Subject, super)
			}
			for sc := range g.Match(t.Object, graph.RDFSSubClassOf, graph.Any) {
				if sc.Object.IsIRI() {
					c.typed(t.Subject, sc.Object.Value)
				}
			}
		}
		return c.out
	})
}

// MembershipSubtype: X memberOf O, O rdf:type C, C groups D => X rdf:type D.
func MembershipSubtype(memberOf string, grouping map[string]string) Rule {
	prop := graph.IRI(memberOf)
	return Func(RuleMembership, func(g graph.View) []graph.Triple {
		c := newCollector(g)
		for t := range g.Match(graph.Any, prop, graph.Any) {
			if !t.Object.IsIRI() {
				continue
			}
			for ty := range g.Match(t.Object, graph.RDFType, graph.Any) {
				if sub, ok := grouping[ty.Object.Value]; ok {
					c.typed(t.Subject, sub)
				}
			}
		}
		return c.out
	})
}

// ActionSubtype: X performsAction P, P maps to D => X rdf:type D.
func ActionSubtype(actionProp string, actions map[string]string) Rule {
	prop := graph.IRI(actionProp)
	return Func(RuleAction, func(g graph.View) []graph.Triple {
		c := newCollector(g)
		for t := range g.Match(graph.Any, prop, graph.Any) {
			if sub, ok := actions[t.Object.Value]; ok && t.Object.IsIRI() {
				c.typed(t.Subject, sub)
			}
		}
		return c.out
	})
}

// PropertyActionSubtype: X p Y, p maps to D => X rdf:type D. This covers
// actions expressed directly as predicates (na:issuesRegulation).
func PropertyActionSubtype(byProperty map[string]string) Rule {
	props := slices.Sorted(maps.Keys(byProperty))
	return Func(RulePropertyAction, func(g graph.View) []graph.Triple {
		c := newCollector(g)
		for _, p := range props {
			for t := range g.Match(graph.Any, graph.IRI(p), graph.Any) {
				c.typed(t.Subject, byProperty[p])
			}
		}
		return c.out
	})
}

// RegulationSubtype: Y regulatedBy X => X rdf:type Regulator.
func RegulationSubtype(regulatedBy, regulator string) Rule {
	prop := graph.IRI(regulatedBy)
	return Func(RuleRegulation, func(g graph.View) []graph.Triple {
		c := newCollector(g)
		for t := range g.Match(graph.Any, prop, graph.Any) {
			if t.Object.IsIRI() {
				c.typed(t.Object, regulator)
			}
		}
		return c.out
	})
}

// SubPropertyPropagation: X p Y, p subPropertyOf q => X q Y.
func SubPropertyPropagation(supers map[string][]string) Rule {
	props := slices.Sorted(maps.Keys(supers))
	return Func(RuleSubProperty, func(g graph.View) []graph.Triple {
		c := newCollector(g)
		for _, p := range props {
			for t := range g.Match(graph.Any, graph.IRI(p), graph.Any) {
				for _, q := range supers[p] {
					c.add(graph.Triple{Subject: t.Subject, Predicate: graph.IRI(q), Object: t.Object})
				}
			}
		}
		return c.out
	})
}
