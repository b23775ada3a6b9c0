package indexer

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jamaly87/assembly-engine/internal/models"
	"github.com/jamaly87/assembly-engine/pkg/config"
)

// Indexer orchestrates workspace indexing: scan, parse, extract, upsert.
// Every call is synchronous and sequential - a file is never parsed
// concurrently with another, matching the single-threaded control flow
// the core pipeline requires.
type Indexer struct {
	scanner   *Scanner
	extractor *ASTExtractor
}

// NewIndexer constructs an Indexer bound to the Go grammar. A failure to
// obtain the grammar is fatal: the caller must not retain this Indexer.
func NewIndexer(cfg *config.Config) (*Indexer, error) {
	extractor, err := NewASTExtractor()
	if err != nil {
		return nil, fmt.Errorf("grammar unavailable: %w", err)
	}

	scanner := NewScanner(&cfg.Indexing, cfg.Ignore.Patterns)

	return &Indexer{
		scanner:   scanner,
		extractor: extractor,
	}, nil
}

// IndexFile parses a single file and returns the chunks extracted from
// it, without touching any Index. A chunk's Filename is the path's
// basename without extension - the module stem, not the full path.
func (idx *Indexer) IndexFile(path string) ([]models.Chunk, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	return idx.extractor.ExtractChunks(stem, string(content))
}

// IndexWorkspace walks repoPath and indexes every discovered .go file one
// at a time, upserting each chunk into a fresh Index by function name -
// a later definition of the same name overwrites the earlier one. A file
// that fails to parse is logged and skipped; it never aborts the run.
func (idx *Indexer) IndexWorkspace(repoPath string) (models.Index, *models.IndexJob, error) {
	job := &models.IndexJob{
		ID:        uuid.NewString(),
		RepoPath:  repoPath,
		Status:    models.IndexStatusRunning,
		StartTime: time.Now(),
	}

	scanResult, err := idx.scanner.Scan(repoPath)
	if err != nil {
		job.Status = models.IndexStatusFailed
		job.Error = err.Error()
		job.EndTime = time.Now()
		return nil, job, fmt.Errorf("scan failed: %w", err)
	}

	job.FilesTotal = len(scanResult.Files)
	index := make(models.Index)

	for _, path := range scanResult.Files {
		chunks, err := idx.IndexFile(path)
		if err != nil {
			log.Printf("indexer: skipping %s: %v", path, err)
			continue
		}

		for _, chunk := range chunks {
			index[chunk.FuncName] = chunk
		}
		job.FilesIndexed++
	}

	job.ChunksTotal = len(index)
	job.Status = models.IndexStatusCompleted
	job.EndTime = time.Now()

	return index, job, nil
}

// Close releases resources held by the Indexer's grammar.
func (idx *Indexer) Close() {
	idx.extractor.Close()
}
