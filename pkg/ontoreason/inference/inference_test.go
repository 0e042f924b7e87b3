package inference

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cognicore/ontoreason/pkg/ontoreason/graph"
	"github.com/cognicore/ontoreason/pkg/ontoreason/ontology"
)

const (
	na     = graph.NANS
	schema = graph.SchemaNS
	ent    = graph.EntityNS
)

func model(t *testing.T) *ontology.Model {
	t.Helper()
	m, err := ontology.Default()
	require.NoError(t, err)
	return m
}

// materialised returns the ontology graph closed under its own rules.
func materialised(t *testing.T, m *ontology.Model) *graph.Graph {
	t.Helper()
	base := graph.FromTriples(m.Triples())
	res := ForModel(m).Infer(base)
	require.False(t, res.Capped)
	return base
}

func typeOf(s, class string) graph.Triple {
	return graph.Triple{Subject: graph.IRI(s), Predicate: graph.RDFType, Object: graph.IRI(class)}
}

func link(s, p, o string) graph.Triple {
	return graph.Triple{Subject: graph.IRI(s), Predicate: graph.IRI(p), Object: graph.IRI(o)}
}

func TestRulesFor_DefaultTable(t *testing.T) {
	e := ForModel(model(t))
	assert.Equal(t, []string{
		RuleSubclass,
		RuleMembership,
		RuleAction,
		RulePropertyAction,
		RuleRegulation,
		RuleSubProperty,
	}, e.Rules())
	assert.Equal(t, DefaultMaxPasses, e.MaxPasses())
}

func TestInfer_BaseMaterialisation(t *testing.T) {
	m := model(t)
	base := materialised(t, m)

	assert.True(t, base.Contains(typeOf(na+"EPA", schema+"GovernmentOrganization")))
	assert.True(t, base.Contains(typeOf(na+"EPA", schema+"Organization")))
	assert.True(t, base.Contains(typeOf(na+"SenateChamber", schema+"Organization")))
}

func TestInfer_AssertedRootTypeAddsNothing(t *testing.T) {
	m := model(t)
	ov := graph.NewOverlay(materialised(t, m))
	ov.Add(typeOf(ent+"jane_doe", schema+"Person"))

	res := ForModel(m).Infer(ov)
	assert.Zero(t, res.Added)
	assert.Equal(t, 1, res.Passes)
	assert.Equal(t, 1, ov.Delta().Size())
}

func TestInfer_MembershipYieldsLegislator(t *testing.T) {
	m := model(t)
	ov := graph.NewOverlay(materialised(t, m))
	x := ent + "senator_smith"
	ov.Add(typeOf(x, schema+"Person"))
	ov.Add(link(x, na+"memberOf", na+"SenateChamber"))

	res := ForModel(m).Infer(ov)

	assert.True(t, ov.Contains(typeOf(x, na+"Legislator")))
	assert.True(t, ov.Contains(typeOf(x, na+"GovernmentOfficial")))
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 1, res.ByRule[RuleMembership])
	assert.Equal(t, 1, res.ByRule[RuleSubclass])
}

func TestInfer_MembershipInJudicialBody(t *testing.T) {
	m := model(t)
	ov := graph.NewOverlay(materialised(t, m))
	x := ent + "justice_roe"
	ov.Add(link(x, na+"memberOf", na+"SupremeCourt"))

	ForModel(m).Infer(ov)

	assert.True(t, ov.Contains(typeOf(x, na+"Judge")))
	assert.False(t, ov.Contains(typeOf(x, na+"Legislator")))
}

func TestInfer_ActionYieldsExecutiveAgency(t *testing.T) {
	m := model(t)
	ov := graph.NewOverlay(materialised(t, m))
	x := ent + "osha"
	ov.Add(link(x, na+"performsAction", na+"IssuingRegulations"))

	ForModel(m).Infer(ov)

	assert.True(t, ov.Contains(typeOf(x, na+"ExecutiveAgency")))
	assert.True(t, ov.Contains(typeOf(x, schema+"GovernmentOrganization")))
	assert.True(t, ov.Contains(typeOf(x, schema+"Organization")))
}

func TestInfer_PropertyAction(t *testing.T) {
	m := model(t)
	ov := graph.NewOverlay(materialised(t, m))
	x := ent + "state_senate"
	ov.Add(link(x, na+"passedLegislation", ent+"clean_air_act"))

	ForModel(m).Infer(ov)

	assert.True(t, ov.Contains(typeOf(x, na+"LegislativeBody")))
}

func TestInfer_RegulationTypesTheRegulator(t *testing.T) {
	m := model(t)
	ov := graph.NewOverlay(materialised(t, m))
	ov.Add(link(ent+"pesticides", na+"regulatedBy", ent+"agency_x"))

	ForModel(m).Infer(ov)

	assert.True(t, ov.Contains(typeOf(ent+"agency_x", na+"ExecutiveAgency")))
	assert.False(t, ov.Contains(typeOf(ent+"pesticides", na+"ExecutiveAgency")))
}

func TestInfer_SubPropertyPropagation(t *testing.T) {
	m := model(t)
	ov := graph.NewOverlay(materialised(t, m))
	ov.Add(link(ent+"region_9", na+"subAgencyOf", na+"EPA"))

	ForModel(m).Infer(ov)

	assert.True(t, ov.Contains(link(ent+"region_9", schema+"parentOrganization", na+"EPA")))
}

func TestInfer_MonotoneAndIdempotent(t *testing.T) {
	m := model(t)
	g := graph.FromTriples(m.Triples())
	x := ent + "senator_smith"
	g.Add(link(x, na+"memberOf", na+"HouseChamber"))
	g.Add(link(x, na+"performsAction", na+"PassingLegislation"))
	before := g.Triples()

	e := ForModel(m)
	first := e.Infer(g)
	require.Positive(t, first.Added)
	for _, tr := range before {
		assert.True(t, g.Contains(tr), "lost %s", tr)
	}
	assert.Equal(t, len(before)+first.Added, g.Size())

	second := e.Infer(g)
	assert.Zero(t, second.Added)
	assert.Equal(t, 1, second.Passes)
}

func TestInfer_RuleOrderIndependent(t *testing.T) {
	m := model(t)
	seed := func() *graph.Graph {
		g := graph.FromTriples(m.Triples())
		g.Add(link(ent+"a", na+"memberOf", na+"SenateChamber"))
		g.Add(link(ent+"b", na+"regulatedBy", ent+"c"))
		g.Add(link(ent+"c", na+"subAgencyOf", na+"EPA"))
		return g
	}

	rules := RulesFor(m)
	reversed := slices.Clone(rules)
	slices.Reverse(reversed)

	g1, g2 := seed(), seed()
	New(rules).Infer(g1)
	New(reversed).Infer(g2)
	assert.Equal(t, g1.Triples(), g2.Triples())
}

func chain() *graph.Graph {
	g := graph.New()
	g.Add(typeOf("http://x/i", "http://x/A"))
	g.Add(link("http://x/A", graph.RDFSSubClassOf.Value, "http://x/B"))
	g.Add(link("http://x/B", graph.RDFSSubClassOf.Value, "http://x/C"))
	return g
}

func TestInfer_GraphSubclassStatements(t *testing.T) {
	g := chain()
	res := New([]Rule{SubclassTransitivity(nil)}).Infer(g)

	assert.True(t, g.Contains(typeOf("http://x/i", "http://x/C")))
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 3, res.Passes)
	assert.False(t, res.Capped)
}

func TestInfer_PassCapLogsAndFlags(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	g := chain()

	res := New([]Rule{SubclassTransitivity(nil)},
		WithMaxPasses(1),
		WithLogger(zap.New(core)),
	).Infer(g)

	assert.True(t, res.Capped)
	assert.Equal(t, 1, res.Passes)
	assert.Equal(t, 1, res.Added)
	assert.False(t, g.Contains(typeOf("http://x/i", "http://x/C")))
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "pass cap")
}

type recorder struct{ got []Result }

func (r *recorder) ObserveInference(res Result) { r.got = append(r.got, res) }

func TestInfer_NotifiesObserver(t *testing.T) {
	rec := &recorder{}
	New([]Rule{SubclassTransitivity(nil)}, WithObserver(rec)).Infer(chain())

	require.Len(t, rec.got, 1)
	assert.Equal(t, 2, rec.got[0].Added)
}

func TestInfer_PackageFunc(t *testing.T) {
	m := model(t)
	g := graph.FromTriples(m.Triples())
	g.Add(link(ent+"x", na+"performsAction", na+"AdjudicatingCases"))

	assert.Positive(t, Infer(g, m))
	assert.True(t, g.Contains(typeOf(ent+"x", na+"JudicialBody")))
	assert.Zero(t, Infer(g, m))
}

func TestFunc_CustomRule(t *testing.T) {
	r := Func("tag-everything", func(v graph.View) []graph.Triple {
		var out []graph.Triple
		for tr := range v.Match(graph.Any, graph.RDFType, graph.Any) {
			out = append(out, graph.Triple{Subject: tr.Subject, Predicate: graph.RDFSLabel, Object: graph.Literal("typed")})
		}
		return out
	})
	g := chain()
	res := New([]Rule{r}).Infer(g)

	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.ByRule["tag-everything"])
}
