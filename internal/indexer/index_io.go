package indexer

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jamaly87/assembly-engine/internal/models"
)

// rawChunk is the tagged Legacy/Structured sum type the index artifact's
// loose on-disk shape requires: a value is either a bare source string
// (Legacy) or a full structured object (Structured). UnmarshalJSON
// first tries to decode the raw value as a string and, if that fails,
// decodes it as a structured object.
type rawChunk struct {
	legacySource string
	structured   *models.Chunk
}

func (r *rawChunk) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		r.legacySource = asString
		return nil
	}

	var chunk models.Chunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return fmt.Errorf("index entry is neither a string nor a chunk object: %w", err)
	}
	r.structured = &chunk
	return nil
}

// normalize lifts a Legacy entry into Structured form: unknown filename,
// empty signature.
func (r rawChunk) normalize(funcName string) models.Chunk {
	if r.structured != nil {
		return *r.structured
	}
	return models.Chunk{
		FuncName: funcName,
		Filename: "unknown",
		Source:   r.legacySource,
		Signature: models.Signature{
			Params: []string{},
		},
	}
}

// ExportIndex serializes idx to path as the on-disk index artifact: a
// top-level object keyed by func_name.
func ExportIndex(idx models.Index, path string) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write index file: %w", err)
	}
	return nil
}

// LoadIndex reads the on-disk index artifact at path. A missing file
// degrades to an empty index rather than an error - the caller then sees
// every subsequent search return "insufficient data" rather than
// crashing.
func LoadIndex(path string) (models.Index, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return models.Index{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}

	var raw map[string]rawChunk
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse index file: %w", err)
	}

	idx := make(models.Index, len(raw))
	for funcName, entry := range raw {
		idx[funcName] = entry.normalize(funcName)
	}
	return idx, nil
}
