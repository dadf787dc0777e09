package mcpserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/semdex/pkg/engine"
	"github.com/Aman-CERP/semdex/pkg/version"
)

// serverName is the implementation name reported during the MCP handshake.
const serverName = "semdex"

// Server bridges MCP clients with the engine facade.
type Server struct {
	mcp    *mcp.Server
	engine *engine.Engine
	logger *slog.Logger
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// New creates an MCP server over an initialized engine.
func New(eng *engine.Engine, logger *slog.Logger) (*Server, error) {
	if eng == nil {
		return nil, errors.New("engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine: eng,
		logger: logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		nil, // capabilities are inferred from registered tools
	)

	s.registerTools()
	return s, nil
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return serverName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	tools := make([]ToolInfo, len(toolDefs))
	for i, def := range toolDefs {
		tools[i] = ToolInfo{Name: def.name, Description: def.description}
	}
	return tools
}

// toolDefs is the single source of truth for tool names and descriptions.
var toolDefs = []struct {
	name        string
	description string
}{
	{
		name: "search",
		description: "Search the indexed codebase by meaning and keywords. " +
			"Finds code and documentation relevant to a natural-language query, " +
			"ranked by a blend of semantic similarity and keyword match. " +
			"Prefer this over grep when looking for concepts rather than exact strings.",
	},
	{
		name: "index_status",
		description: "Check whether the index is ready, which embedding backend is active, " +
			"and how far along any in-flight indexing run is. " +
			"Call this before searching if a previous search returned no results.",
	},
	{
		name: "stats",
		description: "Index size and local query telemetry: file and chunk counts, " +
			"query volume by kind, zero-result rate, and frequent query terms.",
	},
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolDefs[0].name,
		Description: toolDefs[0].description,
	}, s.searchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolDefs[1].name,
		Description: toolDefs[1].description,
	}, s.indexStatusHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolDefs[2].name,
		Description: toolDefs[2].description,
	}, s.statsHandler)

	s.logger.Info("mcp_tools_registered", slog.Int("count", len(toolDefs)))
}

// Run serves MCP over the given transport until ctx is canceled.
// Only stdio is supported; the port-based transport is reserved in the
// config surface but not wired yet.
func (s *Server) Run(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting",
		slog.String("transport", transport),
		slog.String("version", version.Version))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport %q (supported: stdio)", transport)
	}
}

// newRequestID creates a short unique ID for log correlation.
func newRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
