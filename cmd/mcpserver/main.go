// Command mcpserver runs the assembly engine as an MCP server over stdio
// transport, exposing index_workspace/search/assemble/verify to any MCP
// client. Logs go to stderr and, when enabled, a size-rotated file.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/jamaly87/assembly-engine/internal/assembler"
	"github.com/jamaly87/assembly-engine/internal/mcp"
	"github.com/jamaly87/assembly-engine/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logCtx, logCancel := context.WithCancel(context.Background())
	defer logCancel()

	logCloser, err := setupLogging(logCtx, cfg)
	if err != nil {
		log.Fatalf("Failed to setup logging: %v", err)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	log.Printf("Configuration loaded successfully")
	log.Printf("Assembler model: %s", cfg.Model.Identifier)
	log.Printf("Ollama URL: %s", cfg.Model.OllamaURL)
	if cfg.Logging.Enabled {
		log.Printf("Logging to: %s", filepath.Join(cfg.Logging.Directory, "assembly-engine.log"))
	}

	model := assembler.NewOllamaModel(&cfg.Model)

	server, err := mcp.NewServer(cfg, model)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal...")
		cancel()
	}()

	log.Println("Starting MCP server...")
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// logManager handles log file rotation with proper synchronization.
type logManager struct {
	mu          sync.Mutex
	logFilePath string
	logFile     *os.File
	config      config.LoggingConfig
}

func newLogManager(logFilePath string, cfg config.LoggingConfig) (*logManager, error) {
	lm := &logManager{
		logFilePath: logFilePath,
		config:      cfg,
	}

	if err := lm.openLogFile(); err != nil {
		return nil, err
	}

	return lm, nil
}

func (lm *logManager) openLogFile() error {
	logFile, err := os.OpenFile(lm.logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	lm.logFile = logFile

	multiWriter := io.MultiWriter(os.Stderr, logFile)
	log.SetOutput(multiWriter)

	return nil
}

func (lm *logManager) rotate() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if lm.logFile != nil {
		lm.logFile.Close()
	}

	timestamp := time.Now().Format("2006-01-02-15-04-05")
	backupPath := fmt.Sprintf("%s.%s", lm.logFilePath, timestamp)

	if err := os.Rename(lm.logFilePath, backupPath); err != nil {
		lm.openLogFile()
		return fmt.Errorf("failed to rotate log file: %w", err)
	}

	if err := lm.openLogFile(); err != nil {
		return err
	}

	log.Printf("Log file rotated: %s", backupPath)

	if lm.config.Compress {
		go compressLogFile(backupPath)
	}

	cleanOldLogFiles(filepath.Dir(lm.logFilePath), lm.config.MaxBackups, lm.config.MaxAgeDays)

	return nil
}

func (lm *logManager) Close() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if lm.logFile != nil {
		return lm.logFile.Close()
	}
	return nil
}

// setupLogging configures logging to write to both file and stderr.
func setupLogging(ctx context.Context, cfg *config.Config) (io.Closer, error) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetPrefix("[assembly-engine] ")

	if !cfg.Logging.Enabled || cfg.Logging.Directory == "" {
		return nil, nil
	}

	if err := os.MkdirAll(cfg.Logging.Directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFileName := "assembly-engine.log"
	logFilePath := filepath.Join(cfg.Logging.Directory, logFileName)

	logMgr, err := newLogManager(logFilePath, cfg.Logging)
	if err != nil {
		return nil, err
	}

	go rotateLogFileWithContext(ctx, logMgr)

	return logMgr, nil
}

func rotateLogFileWithContext(ctx context.Context, logMgr *logManager) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Log rotation goroutine shutting down...")
			return
		case <-ticker.C:
			fileInfo, err := os.Stat(logMgr.logFilePath)
			if err != nil {
				continue
			}

			maxSizeBytes := int64(logMgr.config.MaxSizeMB) * 1024 * 1024
			if fileInfo.Size() > maxSizeBytes {
				if err := logMgr.rotate(); err != nil {
					log.Printf("Failed to rotate log file: %v", err)
				}
			}
		}
	}
}

func compressLogFile(filePath string) {
	log.Printf("Log compression requested for: %s (not implemented)", filePath)
}

func cleanOldLogFiles(logDir string, maxBackups, maxAgeDays int) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}

	var backupFiles []os.DirEntry
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".log" && entry.Name() != "assembly-engine.log" {
			backupFiles = append(backupFiles, entry)
		}
	}

	now := time.Now()
	maxAge := time.Duration(maxAgeDays) * 24 * time.Hour

	for _, file := range backupFiles {
		info, err := file.Info()
		if err != nil {
			continue
		}

		if now.Sub(info.ModTime()) > maxAge {
			filePath := filepath.Join(logDir, file.Name())
			os.Remove(filePath)
			log.Printf("Removed old log file: %s", filePath)
		}
	}

	if len(backupFiles) > maxBackups {
		log.Printf("Log backup count (%d) exceeds max (%d), oldest files should be removed", len(backupFiles), maxBackups)
	}
}
