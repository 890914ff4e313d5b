package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docvec-go/internal/docstore"
	"github.com/54b3r/docvec-go/internal/metadata"
)

// Creator is the subset of *docstore.Store the indexer needs.
type Creator interface {
	Create(ctx context.Context, title, content string, md metadata.Map) (docstore.Document, error)
}

// Indexer implements indexer.Indexer by creating one stored document per
// eino document. The store assigns ids; incoming document ids are ignored.
type Indexer struct {
	store Creator
}

var _ indexer.Indexer = (*Indexer)(nil)

// NewIndexer constructs an Indexer.
func NewIndexer(store Creator) (*Indexer, error) {
	if store == nil {
		return nil, fmt.Errorf("retrieval: store must not be nil")
	}
	return &Indexer{store: store}, nil
}

// GetType reports the component implementation name used in callbacks.
func (ix *Indexer) GetType() string { return "DocStore" }

// IsCallbacksEnabled tells eino graphs that Store emits its own callbacks.
func (ix *Indexer) IsCallbacksEnabled() bool { return true }

// Store persists docs and returns the assigned ids in input order. The
// title is read from MetaData["title"]. Keys with a leading underscore are
// eino bookkeeping (score, vectors) and are not stored.
func (ix *Indexer) Store(ctx context.Context, docs []*schema.Document, _ ...indexer.Option) (ids []string, err error) {
	ctx = callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
		Name:      ix.GetType(),
		Type:      ix.GetType(),
		Component: components.ComponentOfIndexer,
	})
	ctx = callbacks.OnStart(ctx, &indexer.CallbackInput{Docs: docs})
	defer func() {
		if err != nil {
			callbacks.OnError(ctx, err)
		}
	}()

	ids = make([]string, 0, len(docs))
	for i, d := range docs {
		if d == nil {
			return ids, fmt.Errorf("retrieval: document %d is nil", i)
		}
		title, md, err := fromSchemaMeta(d.MetaData)
		if err != nil {
			return ids, fmt.Errorf("retrieval: document %d: %w", i, err)
		}
		created, err := ix.store.Create(ctx, title, d.Content, md)
		if err != nil {
			return ids, fmt.Errorf("retrieval: storing document %d: %w", i, err)
		}
		ids = append(ids, created.ID)
	}

	callbacks.OnEnd(ctx, &indexer.CallbackOutput{IDs: ids})
	return ids, nil
}

func fromSchemaMeta(in map[string]any) (string, metadata.Map, error) {
	plain := make(map[string]any, len(in))
	for k, v := range in {
		if strings.HasPrefix(k, "_") {
			continue
		}
		plain[k] = v
	}
	rec, err := metadata.FromAny(plain)
	if err != nil {
		return "", nil, err
	}
	title, md := metadata.Unflatten(rec)
	return title, md, nil
}
