// Command assemblectl is the interactive front end to the assembly
// engine: an index/search/assemble/verify REPL, plus a one-shot JSON
// wire mode for scripting.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jamaly87/assembly-engine/internal/assembler"
	"github.com/jamaly87/assembly-engine/internal/indexer"
	"github.com/jamaly87/assembly-engine/internal/models"
	"github.com/jamaly87/assembly-engine/internal/retriever"
	"github.com/jamaly87/assembly-engine/internal/verifier"
	"github.com/jamaly87/assembly-engine/pkg/config"
)

// jsonRequest is the one-shot wire protocol's input shape: a pre-retrieved
// chunk set plus the query that produced it. This bypasses the retriever
// entirely, for callers that already did their own search.
type jsonRequest struct {
	Chunks []models.Chunk `json:"chunks"`
	Query  string         `json:"query"`
}

func main() {
	repoPath := flag.String("repo", "", "Workspace to index and assemble against")
	jsonMode := flag.Bool("json", false, "Read a single {chunks,query} JSON request from stdin, write an assembly result to stdout, and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *repoPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			log.Fatalf("Failed to get current directory: %v", err)
		}
		*repoPath = wd
	}

	model := assembler.NewOllamaModel(&cfg.Model)
	a := assembler.NewAssembler(model, cfg.Model.MaxTokens)
	v := verifier.New(&cfg.Verifier)

	if *jsonMode {
		runJSONMode(a)
		return
	}

	runREPL(cfg, *repoPath, a, v)
}

// placeholderCode stands in for assembled output when the wire request
// itself couldn't be parsed: a valid program that fails loudly at runtime.
const placeholderCode = `package main

func main() {
	panic("malformed assembly request")
}
`

// runJSONMode implements the stdin/stdout wire protocol: one JSON request
// in, one assembly result out. No verification happens here - the
// protocol is assemble-only. Malformed input never panics or exits
// non-zero; it surfaces as a reasoning string a caller can display,
// mirroring the rest of the pipeline's "degrade, never crash" policy.
func runJSONMode(a *assembler.Assembler) {
	decoder := json.NewDecoder(os.Stdin)

	var req jsonRequest
	if err := decoder.Decode(&req); err != nil {
		writeJSONResult(models.AssemblyResult{
			Reasoning: fmt.Sprintf("JSON Parse Error: %v", err),
			Code:      placeholderCode,
			Filename:  models.DefaultOutputFilename,
		})
		return
	}

	writeJSONResult(a.Generate(context.Background(), req.Chunks, req.Query, ""))
}

func writeJSONResult(result models.AssemblyResult) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
}

// runREPL drives the indexer once up front, then loops reading queries
// from stdin, retrieving, assembling, and printing the reasoning and
// code for each.
func runREPL(cfg *config.Config, repoPath string, a *assembler.Assembler, v *verifier.Verifier) {
	fmt.Println("Assembly Engine Compiler - interactive mode")
	fmt.Println("Type a query to assemble, or exit/quit/q to leave.")

	idx, err := indexer.NewIndexer(cfg)
	if err != nil {
		log.Fatalf("Failed to create indexer: %v", err)
	}
	defer idx.Close()

	slog.Info("indexing workspace", "repository", repoPath)
	start := time.Now()
	index, job, err := idx.IndexWorkspace(repoPath)
	if err != nil {
		log.Fatalf("Failed to index workspace: %v", err)
	}
	slog.Info("indexing complete",
		"files_indexed", job.FilesIndexed,
		"chunks_total", job.ChunksTotal,
		"duration", time.Since(start))

	r := retriever.NewRetriever(&cfg.Retrieval)
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			fmt.Println("\nGoodbye!")
			return
		}

		query := strings.TrimSpace(scanner.Text())
		lowered := strings.ToLower(query)
		if lowered == "exit" || lowered == "quit" || lowered == "q" {
			fmt.Println("Goodbye!")
			return
		}
		if query == "" {
			continue
		}

		chunks, found := r.Search(index, query)
		if !found {
			fmt.Println("Retrieved 0 relevant chunks.")
		} else {
			fmt.Printf("Retrieved %d relevant chunks.\n", len(chunks))
		}

		result, ok, stderr := verifier.Run(context.Background(), a, v, chunks, query)

		fmt.Println("\n--- Reasoning ---")
		fmt.Println(result.Reasoning)
		fmt.Printf("\n--- Generated: %s ---\n", result.Filename)
		fmt.Println(result.Code)

		if ok {
			fmt.Println("\nVerification passed: compiles cleanly.")
		} else if stderr != "" {
			fmt.Printf("\nVerification failed:\n%s\n", stderr)
		}
	}
}
