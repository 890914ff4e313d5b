package embedder

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// Gemini defaults. The Gemini API accepts at most 100 texts per batch call.
const (
	defaultGeminiBatch   = 100
	defaultGeminiTimeout = 30 * time.Second
)

// GeminiConfig holds the settings for a GeminiEmbedder.
type GeminiConfig struct {
	// APIKey is the Gemini API key.
	APIKey string
	// Model is the embedding model, e.g. "gemini-embedding-001".
	Model string
	// Dimensions is requested as the output dimensionality and enforced on
	// every response.
	Dimensions int
	// BaseURL overrides the Gemini API endpoint. Empty uses the SDK default.
	BaseURL string
	// BatchSize caps texts per request. Zero means 100.
	BatchSize int
	// Timeout bounds each request. Zero means 30s.
	Timeout time.Duration
}

// GeminiEmbedder embeds text through the Gemini API's embedContent method.
// It is safe for concurrent use.
type GeminiEmbedder struct {
	cfg    GeminiConfig
	models *genai.Models
}

// NewGeminiEmbedder constructs a GeminiEmbedder. No network call is made.
func NewGeminiEmbedder(ctx context.Context, cfg *GeminiConfig) (*GeminiEmbedder, error) {
	c := *cfg
	if c.APIKey == "" {
		return nil, fmt.Errorf("gemini embedder: API key is required")
	}
	if c.BatchSize <= 0 || c.BatchSize > defaultGeminiBatch {
		c.BatchSize = defaultGeminiBatch
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultGeminiTimeout
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      c.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: c.Timeout},
		HTTPOptions: genai.HTTPOptions{BaseURL: c.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embedder: failed to create client: %w", err)
	}
	return &GeminiEmbedder{cfg: c, models: client.Models}, nil
}

func (e *GeminiEmbedder) Dimensions() int { return e.cfg.Dimensions }

func (e *GeminiEmbedder) Name() string { return "gemini/" + e.cfg.Model }

// Embed returns one vector per text, in input order.
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := inBatches(ctx, texts, e.cfg.BatchSize, e.embedBatch)
	if err != nil {
		return nil, fmt.Errorf("gemini embedder: %w", err)
	}
	if err := checkDimensions(vecs, e.cfg.Dimensions); err != nil {
		return nil, fmt.Errorf("gemini embedder: %w", err)
	}
	return vecs, nil
}

func (e *GeminiEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(batch))
	for i, t := range batch {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	cfg := &genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"}
	if e.cfg.Dimensions > 0 {
		dims := int32(e.cfg.Dimensions)
		cfg.OutputDimensionality = &dims
	}

	resp, err := e.models.EmbedContent(ctx, e.cfg.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("embedding %d missing from response", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}
