// Package ragclient talks to the external RAG chunking service that documents
// can be imported from. It implements [docstore.RAGSource].
package ragclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/54b3r/docvec-go/internal/docstore"
)

// DocumentMeta describes an upstream document.
type DocumentMeta struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Format     string    `json:"format"`
	Status     string    `json:"status"`
	ChunkCount int       `json:"chunkCount"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Chunk is one piece of an upstream document.
type Chunk struct {
	ChunkID    string            `json:"chunkId"`
	DocumentID string            `json:"documentId"`
	StableID   string            `json:"stableId"`
	Text       string            `json:"text"`
	ChunkType  string            `json:"chunkType"`
	Hash       string            `json:"hash"`
	Metadata   map[string]string `json:"metadata"`
	WordCount  int               `json:"wordCount"`
	CharCount  int               `json:"charCount"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// Config holds the settings for constructing a Client.
type Config struct {
	// BaseURL is the service root, e.g. "http://localhost:8080".
	BaseURL string
	// Timeout bounds each request. Zero means 30s.
	Timeout time.Duration
}

// Client is an HTTP client for the RAG service. It is safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
}

var _ docstore.RAGSource = (*Client)(nil)

// New constructs a Client.
func New(cfg *Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ragclient: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("ragclient: invalid base URL %q: %w", cfg.BaseURL, err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Meta fetches GET /api/documents/{id}.
func (c *Client) Meta(ctx context.Context, id string) (DocumentMeta, error) {
	var out DocumentMeta
	if err := c.getJSON(ctx, "/api/documents/"+url.PathEscape(id), &out); err != nil {
		return DocumentMeta{}, err
	}
	return out, nil
}

// Chunks fetches GET /api/documents/{id}/chunks.
func (c *Client) Chunks(ctx context.Context, id string) ([]Chunk, error) {
	var out []Chunk
	if err := c.getJSON(ctx, "/api/documents/"+url.PathEscape(id)+"/chunks", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Document implements docstore.RAGSource.
func (c *Client) Document(ctx context.Context, id string) (docstore.RAGDocument, error) {
	m, err := c.Meta(ctx, id)
	if err != nil {
		return docstore.RAGDocument{}, err
	}
	return docstore.RAGDocument{ID: m.ID, Filename: m.Filename}, nil
}

// ChunkTexts implements docstore.RAGSource. A chunk without text
// contributes an empty string.
func (c *Client) ChunkTexts(ctx context.Context, id string) ([]string, error) {
	chunks, err := c.Chunks(ctx, id)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	return texts, nil
}

// Ping checks that the service answers at all. Any HTTP response counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("ragclient: create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ragclient: unreachable: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("ragclient: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ragclient: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ragclient: GET %s: HTTP %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ragclient: GET %s: decode response: %w", path, err)
	}
	return nil
}
