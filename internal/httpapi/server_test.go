package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cognicore/ontoreason/pkg/ontoreason"
	"github.com/cognicore/ontoreason/pkg/ontoreason/config"
	"github.com/cognicore/ontoreason/pkg/ontoreason/graph"
	"github.com/cognicore/ontoreason/pkg/ontoreason/journal/memjournal"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func readyServer(t *testing.T) *Server {
	t.Helper()
	r, err := ontoreason.Initialize(context.Background(), ontoreason.Options{
		Journal: memjournal.New(10),
		Check:   true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	gate := &ontoreason.ReadyGate{}
	gate.Set(r)
	cfg := config.Default().Server
	cfg.MaxBatch = 3
	return New(gate, cfg, nil)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestNotReady(t *testing.T) {
	s := New(&ontoreason.ReadyGate{}, config.Default().Server, nil)

	w := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/ontology/stats", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decode(t, w)["error"], "not initialized")

	w = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealth(t *testing.T) {
	w := do(t, readyServer(t), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestEnrich(t *testing.T) {
	s := readyServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/enrich",
		`{"text":"Jane Doe","entity_type":"person","confidence":0.8,"properties":{"memberOf":["SenateChamber"]}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, graph.EntityNS+"jane_doe", body["uri"])
	assert.Contains(t, body["inferred_types"], graph.NANS+"Legislator")
	assert.Equal(t, "returned", body["state"])
	assert.EqualValues(t, 2, body["inferred_triples"])
}

func TestEnrich_BadRequests(t *testing.T) {
	s := readyServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/enrich", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/api/v1/enrich", `{"entity_type":"person"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrichBatch(t *testing.T) {
	s := readyServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/enrich/batch",
		`{"entities":[{"text":"A","entity_type":"person"},{"text":"B","entity_type":"organization"}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, decode(t, w)["count"])

	w = do(t, s, http.MethodPost, "/api/v1/enrich/batch",
		`{"entities":[{"text":"A"},{"text":"B"},{"text":"C"},{"text":"D"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuery(t *testing.T) {
	s := readyServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/query",
		`{"query":"SELECT ?a WHERE { ?a a na:ExecutiveAgency . ?a schema:name ?n }"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Count    int                     `json:"count"`
		Bindings []map[string]graph.Term `json:"bindings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, graph.IRI(graph.NANS+"DOJ"), resp.Bindings[0]["a"])

	w = do(t, s, http.MethodPost, "/api/v1/query", `{"query":"?a a na:ExecutiveAgency","limit":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = do(t, s, http.MethodPost, "/api/v1/query", `{"query":"?a ?b"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsAndExport(t *testing.T) {
	s := readyServer(t)

	w := do(t, s, http.MethodGet, "/api/v1/ontology/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 6, decode(t, w)["rule_count"])

	w = do(t, s, http.MethodGet, "/api/v1/ontology/export?format=nt", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/n-triples", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "<"+graph.NANS+"EPA>")

	w = do(t, s, http.MethodGet, "/api/v1/ontology/export?format=rdfxml", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConsistency(t *testing.T) {
	s := readyServer(t)

	w := do(t, s, http.MethodGet, "/api/v1/consistency", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["violations_found"])

	w = do(t, s, http.MethodPost, "/api/v1/enrich",
		`{"text":"Pat Smith","entity_type":"person","properties":{"memberOf":["HouseChamber"],"affiliatedWith":["DemocraticParty","RepublicanParty"]}}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/consistency?recent=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["violations_found"])
	assert.Len(t, body["violations"], 1)

	w = do(t, s, http.MethodGet, "/api/v1/consistency?recent=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServe_Shutdown(t *testing.T) {
	s := readyServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 5 * time.Second}
	resp, err := client.Post("http://"+ln.Addr().String()+"/api/v1/query", "application/json",
		bytes.NewBufferString(`{"query":"?a a na:JudicialBody"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
