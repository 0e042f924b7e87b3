package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/ontoreason/pkg/ontoreason"
	"github.com/cognicore/ontoreason/pkg/ontoreason/enrich"
	"github.com/cognicore/ontoreason/pkg/ontoreason/graph"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, version)
}

func TestStats(t *testing.T) {
	out, err := run(t, "", "stats")
	require.NoError(t, err)

	var st ontoreason.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, 6, st.RuleCount)
	assert.Positive(t, st.TripleCount)
}

func TestQuery(t *testing.T) {
	out, err := run(t, "", "query", "?a a na:ExecutiveAgency . ?a schema:alternateName ?abbr")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "?a")
	assert.Contains(t, lines[0], "?abbr")
	assert.Contains(t, lines[1], "na:DOJ")

	out, err = run(t, "", "query", "?a a na:Legislator")
	require.NoError(t, err)
	assert.Contains(t, out, "(no results)")

	_, err = run(t, "", "query", "?a ?b")
	assert.Error(t, err)
}

func TestEnrich(t *testing.T) {
	out, err := run(t, "", "enrich", "--text", "Jane Doe", "--type", "person", "--prop", "memberOf=SenateChamber")
	require.NoError(t, err)

	var ent enrich.Entity
	require.NoError(t, json.Unmarshal([]byte(out), &ent))
	assert.Contains(t, ent.InferredTypes, graph.NANS+"Legislator")

	_, err = run(t, "", "enrich", "--text", "Jane Doe", "--prop", "memberOf")
	assert.Error(t, err)
}

func TestEnrichBatchFromStdin(t *testing.T) {
	in := `[{"text":"Acme","entity_type":"organization","properties":{"regulatedBy":["Federal Aviation Administration"]}},
	        {"text":"Jane Doe","entity_type":"person"}]`
	out, err := run(t, in, "enrich", "--file", "-")
	require.NoError(t, err)

	var ents []enrich.Entity
	require.NoError(t, json.Unmarshal([]byte(out), &ents))
	require.Len(t, ents, 2)
	assert.Equal(t, graph.EntityNS+"acme", ents[0].URI)
	assert.NotEmpty(t, ents[0].Related)
}

func TestCheckWithSQLiteJournal(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "journal.db")

	_, err := run(t, "", "enrich", "--journal", dsn,
		"--text", "Pat Smith", "--type", "person",
		"-p", "memberOf=HouseChamber", "-p", "affiliatedWith=DemocraticParty", "-p", "affiliatedWith=RepublicanParty")
	require.NoError(t, err)

	out, err := run(t, "", "check", "--journal", dsn)
	require.NoError(t, err)
	assert.Equal(t, "no violations found\n", out)

	out, err = run(t, "", "check", "--journal", dsn, "--recent", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "pat_smith")

	_, err = run(t, "", "check", "--journal", dsn, "--recent", "10", "--strict")
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "base.nt")
	_, err := run(t, "", "export", "--format", "nt", "-o", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<"+graph.NANS+"SenateChamber>")

	_, err = run(t, "", "export", "--format", "rdfxml")
	assert.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("inference:\n  max_passes: 0\n"), 0644))

	_, err := run(t, "", "stats", "--config", path)
	assert.Error(t, err)
}
