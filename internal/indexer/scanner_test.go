package indexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jamaly87/assembly-engine/pkg/config"
)

func TestScanRepository(t *testing.T) {
	// Create temporary directory structure
	tmpDir := t.TempDir()

	// Create test files
	files := map[string]string{
		"utils.go":       "package utils",
		"src/helpers.go": "package src",
		"notes.txt":      "not a code file",
		"README.md":      "# README",
	}

	for path, content := range files {
		fullPath := filepath.Join(tmpDir, path)
		dir := filepath.Dir(fullPath)

		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}

		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}

	cfg := &config.IndexingConfig{
		MaxFileSizeMB: 1, // 1MB
	}

	patterns := []string{}
	scanner := NewScanner(cfg, patterns)

	result, err := scanner.Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(result.Files) != 2 {
		t.Errorf("Expected 2 Go files, got %d", len(result.Files))
	}

	for _, file := range result.Files {
		if filepath.Ext(file) != ".go" {
			t.Errorf("Non-Go file found: %s", file)
		}
	}
}

func TestScanRespectsIgnorePatterns(t *testing.T) {
	tmpDir := t.TempDir()

	files := map[string]string{
		"keep.go":            "package keep",
		"vendor/dep.go":      "package dep",
		"pkg/utils_test.go":  "package utils",
		"build/gen.go":       "package gen",
	}

	for path, content := range files {
		fullPath := filepath.Join(tmpDir, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}

	cfg := config.DefaultConfig()
	scanner := NewScanner(&cfg.Indexing, cfg.Ignore.Patterns)

	result, err := scanner.Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(result.Files) != 1 {
		t.Fatalf("Expected only keep.go to survive, got %v", result.Files)
	}
	if filepath.Base(result.Files[0]) != "keep.go" {
		t.Fatalf("Expected keep.go, got %s", result.Files[0])
	}

	if result.SkippedFiles == 0 {
		t.Errorf("Expected skipped files to be counted")
	}
}

func TestIsSupported(t *testing.T) {
	cfg := config.DefaultConfig()
	scanner := NewScanner(&cfg.Indexing, nil)

	if !scanner.IsSupported("main.go") {
		t.Errorf("Expected .go to be supported")
	}
	if scanner.IsSupported("main.py") {
		t.Errorf("Expected .py to be unsupported")
	}
}
