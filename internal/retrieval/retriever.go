// Package retrieval exposes the document store as eino components so it can
// be composed into eino chains and graphs, and traced by any registered
// callback handler (Langfuse in production).
package retrieval

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docvec-go/internal/docstore"
	"github.com/54b3r/docvec-go/internal/metadata"
)

// DefaultTopK is used when neither the constructor nor the call sets a TopK.
const DefaultTopK = 5

// Searcher is the subset of *docstore.Store the retriever needs.
type Searcher interface {
	SearchScored(ctx context.Context, query string, n int) ([]docstore.Hit, error)
}

// Retriever implements retriever.Retriever over a document store.
type Retriever struct {
	store Searcher
	topK  int
}

var _ retriever.Retriever = (*Retriever)(nil)

// NewRetriever constructs a Retriever. defaultTopK sets the result count when
// the call does not pass retriever.WithTopK.
func NewRetriever(store Searcher, defaultTopK int) (*Retriever, error) {
	if store == nil {
		return nil, fmt.Errorf("retrieval: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	return &Retriever{store: store, topK: defaultTopK}, nil
}

// GetType reports the component implementation name used in callbacks.
func (r *Retriever) GetType() string { return "DocStore" }

// IsCallbacksEnabled tells eino graphs that Retrieve emits its own callbacks.
func (r *Retriever) IsCallbacksEnabled() bool { return true }

// Retrieve returns the documents most similar to query, best first. The
// document score is the cosine similarity and the title is carried in
// MetaData["title"]. Hits below retriever.WithScoreThreshold are dropped.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts ...retriever.Option) (docs []*schema.Document, err error) {
	o := retriever.GetCommonOptions(&retriever.Options{}, opts...)
	topK := r.topK
	if o.TopK != nil && *o.TopK > 0 {
		topK = *o.TopK
	}

	ctx = callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
		Name:      r.GetType(),
		Type:      r.GetType(),
		Component: components.ComponentOfRetriever,
	})
	ctx = callbacks.OnStart(ctx, &retriever.CallbackInput{
		Query:          query,
		TopK:           topK,
		ScoreThreshold: o.ScoreThreshold,
	})
	defer func() {
		if err != nil {
			callbacks.OnError(ctx, err)
		}
	}()

	hits, err := r.store.SearchScored(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval: search failed: %w", err)
	}

	docs = make([]*schema.Document, 0, len(hits))
	for _, h := range hits {
		if o.ScoreThreshold != nil && float64(h.Score) < *o.ScoreThreshold {
			continue
		}
		docs = append(docs, ToSchema(h.Document).WithScore(float64(h.Score)))
	}

	callbacks.OnEnd(ctx, &retriever.CallbackOutput{Docs: docs})
	return docs, nil
}

// ToSchema converts a stored document into an eino document. The title is
// placed in MetaData under metadata.TitleKey.
func ToSchema(d docstore.Document) *schema.Document {
	md := metadata.Flatten(d.Title, d.Metadata).Any()
	return &schema.Document{
		ID:       d.ID,
		Content:  d.Content,
		MetaData: md,
	}
}
