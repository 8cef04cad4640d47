package mcpServer

import (
	"context"
	"errors"

	"github.com/akolanti/TenderRAG/internal/rag"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const Version = "1.0.0"

// Server exposes ask and search to MCP clients such as desktop assistants.
type Server struct {
	service rag.Service
	server  *mcp.Server
	logger  *logger_i.Logger
}

func NewServer(service rag.Service) (*Server, error) {
	if service == nil {
		return nil, errors.New("rag service is required")
	}
	s := &Server{
		service: service,
		server:  mcp.NewServer(&mcp.Implementation{Name: "tenderrag", Version: Version}, nil),
		logger:  logger_i.NewLogger("MCP"),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("MCP server listening on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
