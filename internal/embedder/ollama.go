package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Ollama defaults.
const (
	defaultOllamaBatch   = 64
	defaultOllamaTimeout = 60 * time.Second
)

// OllamaConfig holds the settings for an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the server base URL, e.g. "http://localhost:11434".
	Host string
	// Model is the embedding model, e.g. "nomic-embed-text".
	Model string
	// Dimensions is the expected vector length. Responses of any other
	// length are rejected.
	Dimensions int
	// BatchSize caps texts per request. Zero means 64.
	BatchSize int
	// Timeout bounds each request. Zero means 60s.
	Timeout time.Duration
}

// OllamaEmbedder embeds text with a local Ollama server's /api/embed
// endpoint. It is safe for concurrent use.
type OllamaEmbedder struct {
	cfg    OllamaConfig
	client *http.Client
}

// NewOllamaEmbedder constructs an OllamaEmbedder.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	c := *cfg
	c.Host = strings.TrimRight(c.Host, "/")
	if c.BatchSize <= 0 {
		c.BatchSize = defaultOllamaBatch
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultOllamaTimeout
	}
	return &OllamaEmbedder{cfg: c, client: &http.Client{Timeout: c.Timeout}}
}

func (e *OllamaEmbedder) Dimensions() int { return e.cfg.Dimensions }

func (e *OllamaEmbedder) Name() string { return "ollama/" + e.cfg.Model }

// Embed returns one vector per text, in input order.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := inBatches(ctx, texts, e.cfg.BatchSize, e.embedBatch)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}
	if err := checkDimensions(vecs, e.cfg.Dimensions); err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}
	return vecs, nil
}

func (e *OllamaEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	req := struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}{Model: e.cfg.Model, Input: batch}

	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := postJSON(ctx, e.client, e.cfg.Host+"/api/embed", nil, req, &resp, ollamaError); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}

// ollamaError extracts {"error": "..."} from an Ollama failure body.
func ollamaError(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Error
}
