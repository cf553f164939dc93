package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/solmem/solution-memory-mcp/internal/config"
	"github.com/solmem/solution-memory-mcp/internal/embedder"
	"github.com/solmem/solution-memory-mcp/internal/search"
	"github.com/solmem/solution-memory-mcp/internal/storage"
	"github.com/solmem/solution-memory-mcp/internal/vectorindex"
)

const (
	// ServerName is the MCP server name
	ServerName = "solution-memory-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	store   storage.RecordStore
	vectors *vectorindex.Index
	emb     embedder.Embedder
	engine  *search.Engine
}

// NewServer creates a new MCP server instance. The data directory holds
// both database files; it is created on first run.
func NewServer(cfg config.Config) (*Server, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.NewSQLiteStore(filepath.Join(cfg.DataDir, "solutions.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	vectors, err := vectorindex.New(filepath.Join(cfg.DataDir, "vectors.db"), emb)
	if err != nil {
		_ = emb.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}

	engine := search.NewEngine(store, vectors, cfg.SemanticWeight)

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:     mcpServer,
		store:   store,
		vectors: vectors,
		emb:     emb,
		engine:  engine,
	}

	s.registerTools()

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer s.closeAll()
	return server.ServeStdio(s.mcp)
}

func (s *Server) closeAll() {
	_ = s.vectors.Close()
	_ = s.emb.Close()
	_ = s.store.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(saveSolutionTool(), s.handleSaveSolution)
	s.mcp.AddTool(searchSolutionsTool(), s.handleSearchSolutions)
	s.mcp.AddTool(getSolutionTool(), s.handleGetSolution)
	s.mcp.AddTool(listTagsTool(), s.handleListTags)
	s.mcp.AddTool(reconcileIndexTool(), s.handleReconcileIndex)
}
