package retrieval

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einoembed "github.com/cloudwego/eino/components/embedding"

	"github.com/54b3r/docvec-go/internal/embedder"
)

// Embedder adapts an embedder.Embedder to eino's embedding.Embedder.
type Embedder struct {
	inner embedder.Embedder
}

var _ einoembed.Embedder = (*Embedder)(nil)

// NewEmbedder wraps e.
func NewEmbedder(e embedder.Embedder) (*Embedder, error) {
	if e == nil {
		return nil, fmt.Errorf("retrieval: embedder must not be nil")
	}
	return &Embedder{inner: e}, nil
}

// GetType reports the wrapped backend name.
func (e *Embedder) GetType() string { return e.inner.Name() }

// IsCallbacksEnabled tells eino graphs that EmbedStrings emits its own callbacks.
func (e *Embedder) IsCallbacksEnabled() bool { return true }

// EmbedStrings embeds texts and widens the vectors to float64.
func (e *Embedder) EmbedStrings(ctx context.Context, texts []string, _ ...einoembed.Option) (out [][]float64, err error) {
	ctx = callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
		Name:      e.GetType(),
		Type:      e.GetType(),
		Component: components.ComponentOfEmbedding,
	})
	ctx = callbacks.OnStart(ctx, &einoembed.CallbackInput{Texts: texts})
	defer func() {
		if err != nil {
			callbacks.OnError(ctx, err)
		}
	}()

	vecs, err := e.inner.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embedding failed: %w", err)
	}
	out = make([][]float64, len(vecs))
	for i, v := range vecs {
		row := make([]float64, len(v))
		for j, f := range v {
			row[j] = float64(f)
		}
		out[i] = row
	}

	callbacks.OnEnd(ctx, &einoembed.CallbackOutput{Embeddings: out})
	return out, nil
}
