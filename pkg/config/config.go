package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the assembly engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Model     ModelConfig     `yaml:"model"`
	Verifier  VerifierConfig  `yaml:"verifier"`
	Logging   LoggingConfig   `yaml:"logging"`
	Ignore    IgnoreConfig    `yaml:"ignore_patterns"`
}

// ServerConfig names this process for the MCP surface.
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// IndexingConfig controls workspace scanning.
type IndexingConfig struct {
	MaxFileSizeMB int `yaml:"max_file_size_mb"`
}

// RetrievalConfig tunes the intersection retriever.
type RetrievalConfig struct {
	// NoiseFilterLength is the minimum salient-token length (exclusive).
	// The threshold is empirical; kept as config rather than baked into
	// the matching logic.
	NoiseFilterLength int `yaml:"noise_filter_length"`
}

// ModelConfig points the constrained assembler at its backing LLM.
type ModelConfig struct {
	Identifier string `yaml:"identifier"`
	OllamaURL  string `yaml:"ollama_url"`
	MaxTokens  int    `yaml:"max_tokens"`
}

// VerifierConfig controls the compile-and-fix loop.
type VerifierConfig struct {
	GoBin        string `yaml:"go_bin"`
	ScratchDir   string `yaml:"scratch_dir"`
	MaxReprompts int    `yaml:"max_reprompts"`
}

// LoggingConfig controls file + stderr logging and rotation.
type LoggingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Directory  string `yaml:"directory"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// IgnoreConfig lists workspace-scan ignore patterns.
type IgnoreConfig struct {
	Patterns []string `yaml:"patterns"`
}

// Load loads configuration from file (if present) or returns defaults,
// then applies environment overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if configPath := getConfigPath(); configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	cfg.Logging.Directory = expandPath(cfg.Logging.Directory)
	cfg.Verifier.ScratchDir = expandPath(cfg.Verifier.ScratchDir)

	return cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:    "assembly-engine",
			Version: "0.1.0",
		},
		Indexing: IndexingConfig{
			MaxFileSizeMB: 1,
		},
		Retrieval: RetrievalConfig{
			NoiseFilterLength: 3,
		},
		Model: ModelConfig{
			Identifier: "qwen2.5-coder:1.5b",
			OllamaURL:  "http://localhost:11434",
			MaxTokens:  400,
		},
		Verifier: VerifierConfig{
			GoBin:        "go",
			ScratchDir:   "~/.assembly-engine/scratch",
			MaxReprompts: 1,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Directory:  "~/.assembly-engine/logs",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   false,
		},
		Ignore: IgnoreConfig{
			Patterns: []string{
				"vendor/**",
				"build/**",
				"dist/**",
				"bin/**",
				".git/**",
				".idea/**",
				".vscode/**",
				"**/*_test.go",
			},
		},
	}
}

func getConfigPath() string {
	if path := os.Getenv("ASSEMBLER_CONFIG"); path != "" {
		return path
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}

	home, err := os.UserHomeDir()
	if err == nil {
		path := filepath.Join(home, ".assembly-engine", "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides lets the environment override the model identifier
// (ASSEMBLER_MODEL) and its serving URL (OLLAMA_URL). These are the only
// overrides; ASSEMBLER_CONFIG, read by getConfigPath, only selects the
// config file.
func applyEnvOverrides(cfg *Config) {
	if model := os.Getenv("ASSEMBLER_MODEL"); model != "" {
		cfg.Model.Identifier = model
	}
	if url := os.Getenv("OLLAMA_URL"); url != "" {
		cfg.Model.OllamaURL = url
	}
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
