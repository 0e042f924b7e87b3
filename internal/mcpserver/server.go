// Package mcpserver exposes the reasoner as Model Context Protocol tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/cognicore/ontoreason/pkg/ontoreason"
	"github.com/cognicore/ontoreason/pkg/ontoreason/consistency"
	"github.com/cognicore/ontoreason/pkg/ontoreason/enrich"
	"github.com/cognicore/ontoreason/pkg/ontoreason/query"
)

// StatsURI names the ontology statistics resource.
const StatsURI = "ontoreason://ontology/stats"

// Server adapts a Reasoner to MCP.
type Server struct {
	mcpServer *server.MCPServer
	gate      *ontoreason.ReadyGate
	logger    *zap.Logger
}

// New creates a server reading the Reasoner from gate.
func New(gate *ontoreason.ReadyGate, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		mcpServer: server.NewMCPServer(
			"ontoreason",
			version,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
		gate:   gate,
		logger: logger,
	}
	s.registerResources()
	s.registerTools()
	return s
}

// Serve runs the server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer { return s.mcpServer }

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		StatsURI,
		"Ontology statistics",
		mcp.WithResourceDescription("Triple, class, property, individual and rule counts of the base graph"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadStats)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"enrich_entity",
		mcp.WithDescription("Classify an extracted entity against the ontology and return its inferred types and properties."),
		mcp.WithString("text", mcp.Description("Surface text of the entity; used to mint a URI when none is given")),
		mcp.WithString("uri", mcp.Description("Entity IRI or prefixed name")),
		mcp.WithString("entity_type", mcp.Description("Extraction label (person, government_org, ...) or class name")),
		mcp.WithNumber("confidence", mcp.Description("Extraction confidence between 0 and 1")),
		mcp.WithObject("properties", mcp.Description("Property name to list of values, e.g. {\"memberOf\": [\"SenateChamber\"]}")),
	), s.handleEnrich)

	s.mcpServer.AddTool(mcp.NewTool(
		"query_graph",
		mcp.WithDescription("Run a triple-pattern query (e.g. '?a a na:ExecutiveAgency . ?a schema:name ?n') against the base graph."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Pattern query, optionally wrapped in SELECT ... WHERE { }")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of bindings")),
	), s.handleQuery)

	s.mcpServer.AddTool(mcp.NewTool(
		"check_consistency",
		mcp.WithDescription("Report cardinality, range and domain violations in the base graph."),
		mcp.WithNumber("recent", mcp.Description("Also include the N most recent enrichments")),
	), s.handleCheck)
}

func (s *Server) reasoner() (*ontoreason.Reasoner, *mcp.CallToolResult) {
	r, err := s.gate.Get()
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return r, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

type enrichArgs struct {
	Text       string              `json:"text"`
	URI        string              `json:"uri"`
	EntityType string              `json:"entity_type"`
	Confidence float64             `json:"confidence"`
	Properties map[string][]string `json:"properties"`
}

func (s *Server) handleEnrich(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, notReady := s.reasoner()
	if notReady != nil {
		return notReady, nil
	}
	var args enrichArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	ent, err := r.Enrich(ctx, enrich.Request{
		URI:          args.URI,
		Text:         args.Text,
		AssertedType: args.EntityType,
		Confidence:   args.Confidence,
		Properties:   args.Properties,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(ent)
}

func (s *Server) handleQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, notReady := s.reasoner()
	if notReady != nil {
		return notReady, nil
	}
	text, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var opts []query.Option
	if limit := request.GetInt("limit", 0); limit > 0 {
		opts = append(opts, query.Limit(limit))
	}

	rows, err := r.Query(text, opts...)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"bindings": rows, "count": len(rows)})
}

func (s *Server) handleCheck(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, notReady := s.reasoner()
	if notReady != nil {
		return notReady, nil
	}
	recent := request.GetInt("recent", 0)
	if recent < 0 {
		return mcp.NewToolResultError("recent must not be negative"), nil
	}

	vs, err := r.CheckConsistency(ctx, ontoreason.CheckOptions{IncludeRecent: recent})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if vs == nil {
		vs = []consistency.Violation{}
	}
	s.logger.Debug("consistency checked via mcp", zap.Int("violations", len(vs)))
	return jsonResult(map[string]any{
		"violations_found": len(vs),
		"violations":       vs,
	})
}

func (s *Server) handleReadStats(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	r, err := s.gate.Get()
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(r.OntologyStats(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stats: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
