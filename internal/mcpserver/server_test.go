package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/ontoreason/pkg/ontoreason"
	"github.com/cognicore/ontoreason/pkg/ontoreason/graph"
	"github.com/cognicore/ontoreason/pkg/ontoreason/journal/memjournal"
)

func readyServer(t *testing.T) *Server {
	t.Helper()
	r, err := ontoreason.Initialize(context.Background(), ontoreason.Options{Journal: memjournal.New(10)})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	gate := &ontoreason.ReadyGate{}
	gate.Set(r)
	return New(gate, "test", nil)
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return tc.Text
}

func TestEnrichEntity(t *testing.T) {
	s := readyServer(t)

	res, err := s.handleEnrich(context.Background(), call(map[string]any{
		"text":        "Jane Doe",
		"entity_type": "person",
		"properties":  map[string]any{"memberOf": []any{"SenateChamber"}},
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	var got struct {
		URI           string   `json:"uri"`
		InferredTypes []string `json:"inferred_types"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	assert.Equal(t, graph.EntityNS+"jane_doe", got.URI)
	assert.Contains(t, got.InferredTypes, graph.NANS+"Legislator")
}

func TestEnrichEntity_Invalid(t *testing.T) {
	s := readyServer(t)

	res, err := s.handleEnrich(context.Background(), call(map[string]any{"entity_type": "person"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestQueryGraph(t *testing.T) {
	s := readyServer(t)

	res, err := s.handleQuery(context.Background(), call(map[string]any{
		"query": "?a a na:ExecutiveAgency . ?a schema:name ?n",
		"limit": float64(2),
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	var got struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	assert.Equal(t, 2, got.Count)

	res, err = s.handleQuery(context.Background(), call(map[string]any{"query": "?a"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleQuery(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestCheckConsistency(t *testing.T) {
	s := readyServer(t)

	res, err := s.handleCheck(context.Background(), call(map[string]any{"recent": float64(10)}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))
	assert.Contains(t, text(t, res), `"violations_found": 0`)
}

func TestNotReady(t *testing.T) {
	s := New(&ontoreason.ReadyGate{}, "test", nil)

	res, err := s.handleQuery(context.Background(), call(map[string]any{"query": "?a ?b ?c"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "not initialized")

	var req mcp.ReadResourceRequest
	req.Params.URI = StatsURI
	_, err = s.handleReadStats(context.Background(), req)
	assert.Error(t, err)
}

func TestStatsResource(t *testing.T) {
	s := readyServer(t)

	var req mcp.ReadResourceRequest
	req.Params.URI = StatsURI
	contents, err := s.handleReadStats(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)

	tc, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	var st ontoreason.Stats
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &st))
	assert.Equal(t, 6, st.RuleCount)
	assert.Equal(t, StatsURI, tc.URI)
}
