package ontology

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/ontoreason/pkg/ontoreason/graph"
	"github.com/cognicore/ontoreason/pkg/ontoreason/internalerr"
)

//go:embed newsanalyzer.yaml
var defaultOntology []byte

// LoadError reports a malformed or unreadable ontology definition. It is
// fatal: a process cannot serve requests without a valid ontology.
type LoadError struct {
	Source string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	msg := "ontology " + e.Source + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the cause and internalerr.ErrInvalidConfig.
func (e *LoadError) Unwrap() []error {
	if e.Err != nil {
		return []error{internalerr.ErrInvalidConfig, e.Err}
	}
	return []error{internalerr.ErrInvalidConfig}
}

// IsLoadError reports whether err is (or wraps) a *LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// Definition is the YAML form of an ontology.
type Definition struct {
	Prefixes    map[string]string `yaml:"prefixes"`
	Classes     []ClassDef        `yaml:"classes"`
	Properties  []PropertyDef     `yaml:"properties"`
	Individuals []IndividualDef   `yaml:"individuals"`
	Rules       RulesDef          `yaml:"rules"`
}

// ClassDef declares a class.
type ClassDef struct {
	ID           string           `yaml:"id"`
	Label        string           `yaml:"label"`
	SubClassOf   []string         `yaml:"subClassOf"`
	Restrictions []RestrictionDef `yaml:"restrictions"`
	Grouping     string           `yaml:"grouping"`
}

// RestrictionDef declares a class-scoped cardinality bound.
type RestrictionDef struct {
	Property       string `yaml:"property"`
	MaxCardinality int    `yaml:"maxCardinality"`
}

// PropertyDef declares a property.
type PropertyDef struct {
	ID            string `yaml:"id"`
	Label         string `yaml:"label"`
	Kind          string `yaml:"kind"`
	Domain        string `yaml:"domain"`
	Range         string `yaml:"range"`
	Functional    bool   `yaml:"functional"`
	SubPropertyOf string `yaml:"subPropertyOf"`
}

// IndividualDef declares a named individual.
type IndividualDef struct {
	ID     string                `yaml:"id"`
	Types  []string              `yaml:"types"`
	Values map[string]StringList `yaml:"values"`
}

// RulesDef is the YAML form of the rule table.
type RulesDef struct {
	MembershipProperty string            `yaml:"membershipProperty"`
	ActionProperty     string            `yaml:"actionProperty"`
	Actions            map[string]string `yaml:"actions"`
	PropertyActions    map[string]string `yaml:"propertyActions"`
	RegulatedBy        string            `yaml:"regulatedBy"`
	Regulator          string            `yaml:"regulator"`
	TypeMapping        map[string]string `yaml:"typeMapping"`
	DefaultType        string            `yaml:"defaultType"`
}

// StringList accepts either a scalar or a sequence of scalars.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var vals []string
		if err := node.Decode(&vals); err != nil {
			return err
		}
		*l = vals
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list of strings", node.Line)
	}
}

// Default loads the embedded NewsAnalyzer ontology.
func Default() (*Model, error) {
	return Load(bytes.NewReader(defaultOntology), "embedded:newsanalyzer.yaml")
}

// LoadFile reads and loads an ontology definition from path.
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Source: path, Reason: "open", Err: err}
	}
	defer f.Close()
	return Load(f, path)
}

// Load parses and validates an ontology definition. source names the input
// in error messages.
func Load(r io.Reader, source string) (*Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &LoadError{Source: source, Reason: "read", Err: err}
	}
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil && !errors.Is(err, io.EOF) {
		return nil, &LoadError{Source: source, Reason: "syntax", Err: err}
	}
	return Build(def, source)
}

// Build validates a decoded definition and constructs the model.
func Build(def Definition, source string) (*Model, error) {
	b := &builder{
		source: source,
		m: &Model{
			source:      source,
			ns:          graph.NewNamespaces(),
			classes:     make(map[string]*Class),
			properties:  make(map[string]*Property),
			individuals: make(map[string]*Individual),
			byLocalName: make(map[string]string),
		},
	}
	for _, p := range slices.Sorted(maps.Keys(def.Prefixes)) {
		iri := def.Prefixes[p]
		if !graph.IsAbsolute(iri) {
			return nil, b.fail("prefix %q: namespace %q is not an absolute IRI", p, iri)
		}
		b.m.ns.Bind(p, iri)
	}

	steps := []func(Definition) error{
		b.declareClasses,
		b.declareProperties,
		b.declareIndividuals,
		b.checkClassRefs,
		b.computeClosure,
		b.buildRules,
	}
	for _, step := range steps {
		if err := step(def); err != nil {
			return nil, err
		}
	}
	b.indexLocalNames()
	return b.m, nil
}

type builder struct {
	source string
	m      *Model
}

func (b *builder) fail(format string, args ...any) error {
	return &LoadError{Source: b.source, Reason: fmt.Sprintf(format, args...)}
}

func (b *builder) expand(name, what string) (string, error) {
	iri, ok := b.m.ns.Expand(strings.TrimSpace(name))
	if !ok || iri == "" {
		return "", b.fail("%s: cannot resolve %q (unknown prefix or not an IRI)", what, name)
	}
	return iri, nil
}

func (b *builder) declareClasses(def Definition) error {
	for i, cd := range def.Classes {
		iri, err := b.expand(cd.ID, fmt.Sprintf("class #%d", i+1))
		if err != nil {
			return err
		}
		if _, dup := b.m.classes[iri]; dup {
			return b.fail("class %s declared twice", iri)
		}
		c := &Class{IRI: iri, Label: cd.Label}
		for _, s := range cd.SubClassOf {
			sup, err := b.expand(s, "class "+cd.ID+" subClassOf")
			if err != nil {
				return err
			}
			c.Superclasses = append(c.Superclasses, sup)
		}
		if cd.Grouping != "" {
			if c.GroupingFor, err = b.expand(cd.Grouping, "class "+cd.ID+" grouping"); err != nil {
				return err
			}
		}
		b.m.classes[iri] = c
		b.m.classOrder = append(b.m.classOrder, iri)
	}
	// Restrictions reference properties, which are declared next; they are
	// resolved here and checked in checkClassRefs.
	for _, cd := range def.Classes {
		iri, _ := b.expand(cd.ID, "class")
		c := b.m.classes[iri]
		for _, rd := range cd.Restrictions {
			prop, err := b.expand(rd.Property, "class "+cd.ID+" restriction")
			if err != nil {
				return err
			}
			if rd.MaxCardinality < 0 {
				return b.fail("class %s: negative maxCardinality for %s", cd.ID, rd.Property)
			}
			c.Restrictions = append(c.Restrictions, Restriction{Property: prop, MaxCardinality: rd.MaxCardinality})
		}
	}
	return nil
}

func (b *builder) declareProperties(def Definition) error {
	for i, pd := range def.Properties {
		iri, err := b.expand(pd.ID, fmt.Sprintf("property #%d", i+1))
		if err != nil {
			return err
		}
		if _, dup := b.m.properties[iri]; dup {
			return b.fail("property %s declared twice", iri)
		}
		if _, clash := b.m.classes[iri]; clash {
			return b.fail("%s declared as both class and property", iri)
		}
		p := &Property{IRI: iri, Label: pd.Label, Functional: pd.Functional}
		switch PropertyKind(strings.ToLower(pd.Kind)) {
		case KindObject:
			p.Kind = KindObject
		case KindData, "":
			p.Kind = KindData
		default:
			return b.fail("property %s: unknown kind %q", pd.ID, pd.Kind)
		}
		if pd.Domain != "" {
			if p.Domain, err = b.expand(pd.Domain, "property "+pd.ID+" domain"); err != nil {
				return err
			}
		}
		if pd.Range != "" {
			if p.Range, err = b.expand(pd.Range, "property "+pd.ID+" range"); err != nil {
				return err
			}
		}
		if pd.SubPropertyOf != "" {
			if p.SubPropertyOf, err = b.expand(pd.SubPropertyOf, "property "+pd.ID+" subPropertyOf"); err != nil {
				return err
			}
		}
		b.m.properties[iri] = p
		b.m.propOrder = append(b.m.propOrder, iri)
	}
	return nil
}

func (b *builder) declareIndividuals(def Definition) error {
	for i, id := range def.Individuals {
		iri, err := b.expand(id.ID, fmt.Sprintf("individual #%d", i+1))
		if err != nil {
			return err
		}
		if _, dup := b.m.individuals[iri]; dup {
			return b.fail("individual %s declared twice", iri)
		}
		if len(id.Types) == 0 {
			return b.fail("individual %s has no type", id.ID)
		}
		ind := &Individual{IRI: iri, Values: make(map[string][]string)}
		for _, t := range id.Types {
			cls, err := b.expand(t, "individual "+id.ID+" type")
			if err != nil {
				return err
			}
			ind.Types = append(ind.Types, cls)
		}
		for prop, vals := range id.Values {
			piri, err := b.expand(prop, "individual "+id.ID+" value")
			if err != nil {
				return err
			}
			ind.Values[piri] = append(ind.Values[piri], vals...)
		}
		b.m.individuals[iri] = ind
		b.m.indOrder = append(b.m.indOrder, iri)
	}
	return nil
}

// checkClassRefs rejects references to undeclared classes and properties.
func (b *builder) checkClassRefs(Definition) error {
	needClass := func(iri, where string) error {
		if _, ok := b.m.classes[iri]; !ok {
			return b.fail("%s references undeclared class %s", where, iri)
		}
		return nil
	}
	needProp := func(iri, where string) error {
		if _, ok := b.m.properties[iri]; !ok {
			return b.fail("%s references undeclared property %s", where, iri)
		}
		return nil
	}

	for _, c := range b.m.Classes() {
		for _, s := range c.Superclasses {
			if err := needClass(s, "class "+c.IRI); err != nil {
				return err
			}
		}
		if c.GroupingFor != "" {
			if err := needClass(c.GroupingFor, "grouping class "+c.IRI); err != nil {
				return err
			}
		}
		for _, r := range c.Restrictions {
			if err := needProp(r.Property, "restriction on "+c.IRI); err != nil {
				return err
			}
		}
	}
	for _, p := range b.m.Properties() {
		if p.Domain != "" {
			if err := needClass(p.Domain, "domain of "+p.IRI); err != nil {
				return err
			}
		}
		if p.Range != "" {
			if p.Kind == KindObject {
				if err := needClass(p.Range, "range of "+p.IRI); err != nil {
					return err
				}
			} else if !isDatatype(p.Range) {
				return b.fail("data property %s has non-datatype range %s", p.IRI, p.Range)
			}
		}
		if p.SubPropertyOf != "" {
			if err := needProp(p.SubPropertyOf, "property "+p.IRI); err != nil {
				return err
			}
		}
	}
	for _, ind := range b.m.Individuals() {
		for _, t := range ind.Types {
			if err := needClass(t, "individual "+ind.IRI); err != nil {
				return err
			}
		}
		for prop := range ind.Values {
			if err := needProp(prop, "individual "+ind.IRI); err != nil {
				return err
			}
		}
	}
	return nil
}

func isDatatype(iri string) bool {
	return strings.HasPrefix(iri, graph.XSDNS) || iri == graph.RDFSNS+"Literal" || iri == graph.RDFLangString
}

// computeClosure detects superclass cycles and caches the transitive closure.
func (b *builder) computeClosure(Definition) error {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(b.m.classes))
	closure := make(map[string]map[string]struct{}, len(b.m.classes))
	var stack []string

	var visit func(c string) error
	visit = func(c string) error {
		switch color[c] {
		case grey:
			i := slices.Index(stack, c)
			cycle := append(slices.Clone(stack[i:]), c)
			return b.fail("cyclic superclass chain: %s", strings.Join(cycle, " -> "))
		case black:
			return nil
		}
		color[c] = grey
		stack = append(stack, c)
		supers := make(map[string]struct{})
		for _, s := range b.m.classes[c].Superclasses {
			if err := visit(s); err != nil {
				return err
			}
			supers[s] = struct{}{}
			for anc := range closure[s] {
				supers[anc] = struct{}{}
			}
		}
		stack = stack[:len(stack)-1]
		color[c] = black
		closure[c] = supers
		return nil
	}

	for _, c := range b.m.classOrder {
		if err := visit(c); err != nil {
			return err
		}
	}
	b.m.closure = closure
	return nil
}

func (b *builder) buildRules(def Definition) error {
	rd := def.Rules
	rt := RuleTable{
		Actions:         make(map[string]string),
		PropertyActions: make(map[string]string),
		TypeMapping:     make(map[string]string),
	}
	var err error

	propRef := func(name, what string) (string, error) {
		if name == "" {
			return "", nil
		}
		iri, err := b.expand(name, "rules "+what)
		if err != nil {
			return "", err
		}
		if _, ok := b.m.properties[iri]; !ok {
			return "", b.fail("rules %s references undeclared property %s", what, iri)
		}
		return iri, nil
	}
	classRef := func(name, what string) (string, error) {
		if name == "" {
			return "", nil
		}
		iri, err := b.expand(name, "rules "+what)
		if err != nil {
			return "", err
		}
		if _, ok := b.m.classes[iri]; !ok {
			return "", b.fail("rules %s references undeclared class %s", what, iri)
		}
		return iri, nil
	}

	if rt.MembershipProperty, err = propRef(rd.MembershipProperty, "membershipProperty"); err != nil {
		return err
	}
	if rt.ActionProperty, err = propRef(rd.ActionProperty, "actionProperty"); err != nil {
		return err
	}
	if rt.RegulatedBy, err = propRef(rd.RegulatedBy, "regulatedBy"); err != nil {
		return err
	}
	if rt.Regulator, err = classRef(rd.Regulator, "regulator"); err != nil {
		return err
	}
	if (rt.RegulatedBy == "") != (rt.Regulator == "") {
		return b.fail("rules regulatedBy and regulator must be declared together")
	}
	if len(rd.Actions) > 0 && rt.ActionProperty == "" {
		return b.fail("rules actions require actionProperty")
	}
	for action, sub := range rd.Actions {
		a, err := b.expand(action, "rules actions")
		if err != nil {
			return err
		}
		if rt.Actions[a], err = classRef(sub, "actions["+action+"]"); err != nil {
			return err
		}
	}
	for prop, sub := range rd.PropertyActions {
		p, err := propRef(prop, "propertyActions")
		if err != nil {
			return err
		}
		if rt.PropertyActions[p], err = classRef(sub, "propertyActions["+prop+"]"); err != nil {
			return err
		}
	}
	for label, cls := range rd.TypeMapping {
		if rt.TypeMapping[strings.ToLower(label)], err = classRef(cls, "typeMapping["+label+"]"); err != nil {
			return err
		}
	}
	if rt.DefaultType, err = classRef(rd.DefaultType, "defaultType"); err != nil {
		return err
	}
	if rt.DefaultType == "" {
		rt.DefaultType = graph.SchemaNS + "Thing"
	}
	b.m.rules = rt
	return nil
}

// indexLocalNames maps bare local names to IRIs. Individuals take precedence
// over classes, classes over properties; the first declaration wins.
func (b *builder) indexLocalNames() {
	put := func(iri string) {
		local := graph.LocalName(iri)
		if _, taken := b.m.byLocalName[local]; !taken {
			b.m.byLocalName[local] = iri
		}
	}
	for _, iri := range b.m.indOrder {
		put(iri)
	}
	for _, iri := range b.m.classOrder {
		put(iri)
	}
	for _, iri := range b.m.propOrder {
		put(iri)
	}
}
