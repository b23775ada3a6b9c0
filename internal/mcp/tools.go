package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jamaly87/assembly-engine/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

// getTools defines the MCP tool surface: the pipeline's four core
// operations (index, search, assemble, verify).
func (s *Server) getTools() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "index_workspace",
			Description: "Index a workspace of Go source files to enable retrieval-augmented assembly. Parses every .go file into function/method chunks with signatures and writes an inverted_index.json artifact inside the workspace. Run this before search or assemble on a new or changed workspace.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"repo_path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the workspace to index",
					},
				},
				Required: []string{"repo_path"},
			},
		},
		{
			Name:        "search",
			Description: "Retrieve the chunks in an indexed workspace matching every salient token of a natural-language query (strict conjunctive match - not ranked similarity). Returns the empty/insufficient-data outcome rather than a guess when no chunk matches every token.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"repo_path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the previously indexed workspace",
					},
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Natural-language description of the functionality to retrieve",
					},
				},
				Required: []string{"repo_path", "query"},
			},
		},
		{
			Name:        "assemble",
			Description: "Retrieve matching chunks for query and assemble a Go program that calls them - never inventing new business logic. Falls back to a deterministic signature-driven assembler if the model is unavailable or its output fails validation.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"repo_path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the previously indexed workspace",
					},
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Natural-language description of what to assemble",
					},
				},
				Required: []string{"repo_path", "query"},
			},
		},
		{
			Name:        "verify",
			Description: "Write assembled code to disk and compile-check it with `go build`. On failure, re-invokes assembly once with the compiler's stderr as error context before surfacing the remaining failure.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"repo_path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the previously indexed workspace",
					},
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Natural-language description of what to assemble and verify",
					},
				},
				Required: []string{"repo_path", "query"},
			},
		},
	}
}

func (s *Server) handleIndexWorkspace(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	repoPath, ok := args["repo_path"].(string)
	if !ok || repoPath == "" {
		return errorResult("repo_path is required and must be a string"), nil
	}

	index, job, err := s.idx.IndexWorkspace(repoPath)
	if err != nil {
		return errorResult(fmt.Sprintf("indexing failed: %v", err)), nil
	}

	if _, err := writeIndex(index, indexPathFor(repoPath)); err != nil {
		return errorResult(fmt.Sprintf("failed to persist index: %v", err)), nil
	}

	return successResult(job), nil
}

func (s *Server) handleSearch(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	repoPath, query, errResult := requireRepoAndQuery(args)
	if errResult != nil {
		return errResult, nil
	}

	index, err := loadOrBuildIndex(repoPath)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to load index: %v", err)), nil
	}

	chunks, found := s.retriever.Search(index, query)
	if !found {
		return successResult(map[string]interface{}{
			"insufficient_data": true,
			"chunks":            []models.Chunk{},
		}), nil
	}

	return successResult(map[string]interface{}{
		"insufficient_data": false,
		"chunks":            chunks,
	}), nil
}

func (s *Server) handleAssemble(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	repoPath, query, errResult := requireRepoAndQuery(args)
	if errResult != nil {
		return errResult, nil
	}

	index, err := loadOrBuildIndex(repoPath)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to load index: %v", err)), nil
	}

	chunks, _ := s.retriever.Search(index, query)
	result := s.assembler.Generate(ctx, chunks, query, "")
	return successResult(result), nil
}

func (s *Server) handleVerify(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	repoPath, query, errResult := requireRepoAndQuery(args)
	if errResult != nil {
		return errResult, nil
	}

	index, err := loadOrBuildIndex(repoPath)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to load index: %v", err)), nil
	}

	chunks, _ := s.retriever.Search(index, query)
	result, ok, stderr := runVerified(ctx, s, chunks, query)

	return successResult(map[string]interface{}{
		"result": result,
		"ok":     ok,
		"stderr": stderr,
	}), nil
}

func requireRepoAndQuery(args map[string]interface{}) (string, string, *mcp.CallToolResult) {
	repoPath, ok := args["repo_path"].(string)
	if !ok || repoPath == "" {
		return "", "", errorResult("repo_path is required and must be a string")
	}
	query, ok := args["query"].(string)
	if !ok {
		return "", "", errorResult("query is required and must be a string")
	}
	return repoPath, query, nil
}

func successResult(data interface{}) *mcp.CallToolResult {
	jsonData, _ := json.MarshalIndent(data, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: string(jsonData)},
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: fmt.Sprintf("Error: %s", message)},
		},
		IsError: true,
	}
}
