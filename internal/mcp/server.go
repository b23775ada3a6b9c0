// Package mcp exposes the assembler pipeline's four core operations -
// index, search, assemble, verify - as MCP tools over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/jamaly87/assembly-engine/internal/assembler"
	"github.com/jamaly87/assembly-engine/internal/indexer"
	"github.com/jamaly87/assembly-engine/internal/models"
	"github.com/jamaly87/assembly-engine/internal/retriever"
	"github.com/jamaly87/assembly-engine/internal/verifier"
	"github.com/jamaly87/assembly-engine/pkg/config"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// indexArtifactName is the on-disk index filename, written inside the
// indexed workspace so the artifact travels with the repository it
// describes.
const indexArtifactName = "inverted_index.json"

// Server is the MCP-exposed assembler pipeline. The model handle and
// indexer are constructed once in main and owned here for the process
// lifetime - never a package global.
type Server struct {
	cfg       *config.Config
	mcpServer *server.MCPServer
	idx       *indexer.Indexer
	retriever *retriever.Retriever
	assembler *assembler.Assembler
	verifier  *verifier.Verifier
}

// NewServer constructs a Server wired to model (may be nil, in which case
// assembly always uses the deterministic fallback).
func NewServer(cfg *config.Config, model assembler.Model) (*Server, error) {
	idx, err := indexer.NewIndexer(cfg)
	if err != nil {
		return nil, fmt.Errorf("grammar unavailable: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		idx:       idx,
		retriever: retriever.NewRetriever(&cfg.Retrieval),
		assembler: assembler.NewAssembler(model, cfg.Model.MaxTokens),
		verifier:  verifier.New(&cfg.Verifier),
	}

	mcpServer := server.NewMCPServer(cfg.Server.Name, cfg.Server.Version)
	for _, tool := range s.getTools() {
		mcpServer.AddTool(tool, s.createToolHandler(tool.Name))
	}
	s.mcpServer = mcpServer

	log.Printf("MCP server initialized: %s v%s", cfg.Server.Name, cfg.Server.Version)
	return s, nil
}

func (s *Server) createToolHandler(toolName string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		log.Printf("Handling tool call: %s", toolName)

		var args map[string]interface{}
		if request.Params.Arguments != nil {
			var ok bool
			args, ok = request.Params.Arguments.(map[string]interface{})
			if !ok {
				return errorResult("invalid arguments format"), nil
			}
		} else {
			args = make(map[string]interface{})
		}

		switch toolName {
		case "index_workspace":
			return s.handleIndexWorkspace(ctx, args)
		case "search":
			return s.handleSearch(ctx, args)
		case "assemble":
			return s.handleAssemble(ctx, args)
		case "verify":
			return s.handleVerify(ctx, args)
		default:
			return errorResult(fmt.Sprintf("unknown tool: %s", toolName)), nil
		}
	}
}

// Start starts the MCP server over stdio transport.
func (s *Server) Start(ctx context.Context) error {
	log.Printf("Starting MCP server on stdio transport...")
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Close releases the server's indexer resources.
func (s *Server) Close() error {
	log.Printf("Shutting down MCP server...")
	s.idx.Close()
	return nil
}

// indexPathFor is the per-workspace index artifact path.
func indexPathFor(repoPath string) string {
	return filepath.Join(repoPath, indexArtifactName)
}

// loadOrBuildIndex loads the persisted index for repoPath, degrading to
// an empty index if it isn't there yet.
func loadOrBuildIndex(repoPath string) (models.Index, error) {
	return indexer.LoadIndex(indexPathFor(repoPath))
}

// writeIndex persists idx to path, returning the path written.
func writeIndex(idx models.Index, path string) (string, error) {
	if err := indexer.ExportIndex(idx, path); err != nil {
		return "", err
	}
	return path, nil
}

// runVerified drives the verifier's assemble -> compile -> re-prompt loop
// using s's long-lived assembler and verifier.
func runVerified(ctx context.Context, s *Server, chunks []models.Chunk, query string) (models.AssemblyResult, bool, string) {
	return verifier.Run(ctx, s.assembler, s.verifier, chunks, query)
}
