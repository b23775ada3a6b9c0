package assembler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jamaly87/assembly-engine/pkg/config"
)

// Model is the narrow boundary to the backing statistical language
// model: a bounded text generator, nothing more. The constrained
// assembler treats it as a black box it cannot trust - every response
// still passes through the validator chain.
type Model interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// OllamaModel calls Ollama's /api/generate endpoint. It is constructed
// once and owned by a single long-lived Assembler - never a package
// global - so the connection pool and model handle are shared across
// queries without introducing true global mutable state.
type OllamaModel struct {
	identifier string
	baseURL    string
	httpClient *http.Client
}

// NewOllamaModel constructs a model bound to cfg's identifier and URL.
func NewOllamaModel(cfg *config.ModelConfig) *OllamaModel {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
		ForceAttemptHTTP2:   false,
	}

	return &OllamaModel{
		identifier: cfg.Identifier,
		baseURL:    cfg.OllamaURL,
		httpClient: &http.Client{
			Timeout:   60 * time.Second,
			Transport: transport,
		},
	}
}

type generateRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	Stream    bool   `json:"stream"`
	NumPredict int    `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate issues a single-shot, non-streaming completion bounded by
// maxTokens. There is no retry inside this call - retries are the
// verifier's concern, driven by compile failures, not model flakiness.
func (m *OllamaModel) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	reqBody, err := json.Marshal(generateRequest{
		Model:     m.identifier,
		Prompt:    prompt,
		Stream:    false,
		NumPredict: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/generate", m.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return out.Response, nil
}

// MockModel is a canned-response stand-in for tests and offline use,
// satisfying the same Model boundary as OllamaModel.
type MockModel struct {
	Response string
	Err      error
}

func (m *MockModel) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}
