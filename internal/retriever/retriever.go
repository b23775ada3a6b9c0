package retriever

import (
	"log"
	"sort"
	"strings"

	"github.com/jamaly87/assembly-engine/internal/models"
	"github.com/jamaly87/assembly-engine/pkg/config"
)

// Retriever performs strict set-intersection retrieval over an Index: a
// chunk survives only if every salient token from the query appears,
// case-insensitively, in its function name or its source. There is no
// ranking and no partial credit - this is the "zero-hallucination"
// contract the rest of the pipeline depends on.
type Retriever struct {
	noiseFilterLength int
}

// NewRetriever constructs a Retriever tuned by cfg. A nil cfg (or an
// unset threshold) uses the default noise filter. The Index is passed per
// call so a caller can reload it between queries.
func NewRetriever(cfg *config.RetrievalConfig) *Retriever {
	length := DefaultNoiseFilterLength
	if cfg != nil && cfg.NoiseFilterLength > 0 {
		length = cfg.NoiseFilterLength
	}
	return &Retriever{noiseFilterLength: length}
}

// Search returns every chunk in index that matches every salient token in
// query. The second return value is false for "insufficient data": either
// the query carried no salient tokens, or no chunk satisfied all of them.
// A false result is a first-class outcome, not an error.
func (r *Retriever) Search(index models.Index, query string) ([]models.Chunk, bool) {
	tokens := ExtractSalientTokens(query, r.noiseFilterLength)
	if len(tokens) == 0 {
		log.Printf("retriever: query %q has no salient tokens", query)
		return nil, false
	}

	var matched []models.Chunk
	for _, chunk := range index {
		if matchesAllTokens(chunk, tokens) {
			matched = append(matched, chunk)
		}
	}

	if len(matched) == 0 {
		log.Printf("retriever: no chunk matched every token in %q", query)
		return nil, false
	}

	// Map iteration order is unspecified; sort by FuncName so repeated
	// calls against the same index return chunks in the same order.
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].FuncName < matched[j].FuncName
	})

	return matched, true
}

func matchesAllTokens(chunk models.Chunk, tokens SalientTokens) bool {
	haystack := strings.ToLower(chunk.FuncName) + "\n" + strings.ToLower(chunk.Source)
	for token := range tokens {
		if !strings.Contains(haystack, token) {
			return false
		}
	}
	return true
}
