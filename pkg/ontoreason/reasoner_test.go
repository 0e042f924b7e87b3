package ontoreason

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cognicore/ontoreason/pkg/ontoreason/config"
	"github.com/cognicore/ontoreason/pkg/ontoreason/consistency"
	"github.com/cognicore/ontoreason/pkg/ontoreason/enrich"
	"github.com/cognicore/ontoreason/pkg/ontoreason/graph"
	"github.com/cognicore/ontoreason/pkg/ontoreason/internalerr"
	"github.com/cognicore/ontoreason/pkg/ontoreason/journal/memjournal"
	"github.com/cognicore/ontoreason/pkg/ontoreason/query"
)

const (
	na     = graph.NANS
	schema = graph.SchemaNS
)

func initReasoner(t *testing.T, opts Options) *Reasoner {
	t.Helper()
	r, err := Initialize(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestInitialize_LogsAndFreezes(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := initReasoner(t, Options{Logger: zap.New(core)})

	entries := logs.FilterMessage("ontology loaded").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(r.OntologyStats().TripleCount), entries[0].ContextMap()["triples"])

	base, ok := r.Base().(*graph.Graph)
	require.True(t, ok)
	assert.True(t, base.Frozen())
	assert.True(t, graph.HasType(base, graph.IRI(na+"EPA"), graph.IRI(schema+"Organization")))
}

func TestInitialize_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Initialize(ctx, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOntologyStats(t *testing.T) {
	r := initReasoner(t, Options{})
	m := r.Model()

	st := r.OntologyStats()
	assert.Equal(t, len(m.Classes()), st.ClassCount)
	assert.Equal(t, len(m.Properties()), st.PropertyCount)
	assert.Equal(t, len(m.Individuals()), st.IndividualCount)
	assert.Equal(t, 6, st.RuleCount)
	assert.Equal(t, r.Base().Size(), st.TripleCount)
	assert.Greater(t, st.TripleCount, len(m.Triples()))
}

func TestQuery_ExecutiveAgencies(t *testing.T) {
	r := initReasoner(t, Options{Metrics: true})

	rows, err := r.Query(`SELECT ?agency WHERE { ?agency a na:ExecutiveAgency . ?agency schema:name ?name }`)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	var got []string
	for _, b := range rows {
		got = append(got, b["agency"].Value)
	}
	assert.Equal(t, []string{na + "DOJ", na + "EPA", na + "FDA"}, got)

	rows, err = r.Query(`?agency a na:ExecutiveAgency`, query.Limit(1))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestQuery_Errors(t *testing.T) {
	r := initReasoner(t, Options{})

	_, err := r.Query(`?s ?p`)
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)

	rows, err := r.Query(`?s a na:Nothing`)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestEnrich_DoesNotLeakIntoBase(t *testing.T) {
	r := initReasoner(t, Options{})

	ent, err := r.Enrich(context.Background(), enrich.Request{
		Text:         "Jane Doe",
		AssertedType: "person",
		Properties:   map[string][]string{"memberOf": {"SenateChamber"}},
	})
	require.NoError(t, err)
	assert.True(t, ent.HasType(na+"Legislator"))

	rows, err := r.Query(`?x a na:Legislator`)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCheckConsistency(t *testing.T) {
	ctx := context.Background()
	r := initReasoner(t, Options{Journal: memjournal.New(10)})

	vs, err := r.CheckConsistency(ctx, CheckOptions{})
	require.NoError(t, err)
	assert.Empty(t, vs)

	_, err = r.Enrich(ctx, enrich.Request{
		Text:         "Pat Smith",
		AssertedType: "person",
		Properties: map[string][]string{
			"memberOf":       {"HouseChamber"},
			"affiliatedWith": {"DemocraticParty", "RepublicanParty"},
		},
	})
	require.NoError(t, err)

	vs, err = r.CheckConsistency(ctx, CheckOptions{})
	require.NoError(t, err)
	assert.Empty(t, vs, "base graph is unaffected by enrichments")

	vs, err = r.CheckConsistency(ctx, CheckOptions{IncludeRecent: 5})
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, consistency.KindCardinality, vs[0].Kind)
	assert.Equal(t, graph.EntityNS+"pat_smith", vs[0].Subject.Value)
}

func TestCheckConsistency_RecentNeedsJournal(t *testing.T) {
	r := initReasoner(t, Options{})
	_, err := r.CheckConsistency(context.Background(), CheckOptions{IncludeRecent: 1})
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
}

func TestExport(t *testing.T) {
	r := initReasoner(t, Options{})

	var ttl bytes.Buffer
	require.NoError(t, r.Export(&ttl, graph.FormatTurtle))
	assert.Contains(t, ttl.String(), "@prefix na: <"+na+"> .")
	assert.Contains(t, ttl.String(), "\nna:EPA ")
	assert.Contains(t, ttl.String(), "a na:ExecutiveAgency")

	var nt bytes.Buffer
	require.NoError(t, r.Export(&nt, graph.FormatNTriples))
	lines := strings.Count(nt.String(), "\n")
	assert.Equal(t, r.OntologyStats().TripleCount, lines)
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Enrich.Check = true

	r, err := FromConfig(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	assert.NotNil(t, r.Journal())
	ent, err := r.Enrich(context.Background(), enrich.Request{
		Text:         "Pat Smith",
		AssertedType: "person",
		Properties: map[string][]string{
			"memberOf":       {"HouseChamber"},
			"affiliatedWith": {"DemocraticParty", "RepublicanParty"},
		},
	})
	require.NoError(t, err)
	assert.Len(t, ent.Violations, 1)

	rec, err := r.Journal().Get(context.Background(), ent.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Violations)
}

func TestGate(t *testing.T) {
	g := &ReadyGate{}
	_, err := g.Get()
	assert.ErrorIs(t, err, internalerr.ErrNotReady)
	assert.False(t, g.Ready())

	r := initReasoner(t, Options{})
	g.Set(r)
	got, err := g.Get()
	require.NoError(t, err)
	assert.Same(t, r, got)
	assert.True(t, g.Ready())
}
