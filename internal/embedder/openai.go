package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OpenAI defaults. The embeddings API accepts at most 2048 inputs per call.
const (
	defaultOpenAIBatch   = 256
	maxOpenAIBatch       = 2048
	defaultOpenAITimeout = 30 * time.Second
)

// OpenAIConfig holds the settings for an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is "https://api.openai.com/v1" for OpenAI, or
	// "https://<resource>.openai.azure.com/openai" for Azure.
	BaseURL string
	// APIKey authenticates every request.
	APIKey string
	// Model is the model name, or the deployment name on Azure.
	Model string
	// Dimensions is sent as the requested vector length and enforced on
	// responses. Zero keeps the model default.
	Dimensions int
	// Azure switches to the api-key header and the deployments URL.
	Azure bool
	// APIVersion is the Azure api-version query value.
	APIVersion string
	// BatchSize caps inputs per request. Zero means 256.
	BatchSize int
	// Timeout bounds each request. Zero means 30s.
	Timeout time.Duration
}

// OpenAIEmbedder embeds text with the OpenAI or Azure OpenAI embeddings API.
// It is safe for concurrent use.
type OpenAIEmbedder struct {
	cfg      OpenAIConfig
	endpoint string
	header   http.Header
	client   *http.Client
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	c := *cfg
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.BatchSize <= 0 {
		c.BatchSize = defaultOpenAIBatch
	}
	c.BatchSize = min(c.BatchSize, maxOpenAIBatch)
	if c.Timeout <= 0 {
		c.Timeout = defaultOpenAITimeout
	}

	e := &OpenAIEmbedder{cfg: c, header: http.Header{}, client: &http.Client{Timeout: c.Timeout}}
	if c.Azure {
		e.endpoint = c.BaseURL + "/deployments/" + url.PathEscape(c.Model) + "/embeddings?api-version=" + url.QueryEscape(c.APIVersion)
		e.header.Set("api-key", c.APIKey)
	} else {
		e.endpoint = c.BaseURL + "/embeddings"
		e.header.Set("Authorization", "Bearer "+c.APIKey)
	}
	return e
}

func (e *OpenAIEmbedder) Dimensions() int { return e.cfg.Dimensions }

// Name returns "openai/<model>" or "azure/<deployment>".
func (e *OpenAIEmbedder) Name() string {
	if e.cfg.Azure {
		return "azure/" + e.cfg.Model
	}
	return "openai/" + e.cfg.Model
}

// Embed returns one vector per text, in input order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := inBatches(ctx, texts, e.cfg.BatchSize, e.embedBatch)
	if err != nil {
		return nil, fmt.Errorf("%s embedder: %w", e.backend(), err)
	}
	if err := checkDimensions(vecs, e.cfg.Dimensions); err != nil {
		return nil, fmt.Errorf("%s embedder: %w", e.backend(), err)
	}
	return vecs, nil
}

func (e *OpenAIEmbedder) backend() string {
	if e.cfg.Azure {
		return BackendAzure
	}
	return BackendOpenAI
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	req := struct {
		Input      []string `json:"input"`
		Model      string   `json:"model"`
		Dimensions int      `json:"dimensions,omitempty"`
	}{Input: batch, Model: e.cfg.Model, Dimensions: e.cfg.Dimensions}

	var resp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := postJSON(ctx, e.client, e.endpoint, e.header, req, &resp, openAIError); err != nil {
		return nil, err
	}

	// Results carry their input index and may arrive in any order.
	out := make([][]float32, len(batch))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(batch) {
			return nil, fmt.Errorf("result index %d out of range [0, %d)", d.Index, len(batch))
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
	}
	return out, nil
}

// openAIError extracts {"error": {"message": "..."}} from a failure body.
func openAIError(body []byte) string {
	var e struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil || e.Error == nil {
		return ""
	}
	return e.Error.Message
}
