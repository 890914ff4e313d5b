package retrieval

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/docvec-go/internal/docstore"
	"github.com/54b3r/docvec-go/internal/embedder"
	"github.com/54b3r/docvec-go/internal/index"
	"github.com/54b3r/docvec-go/internal/metadata"
)

func newStore(t *testing.T) *docstore.Store {
	t.Helper()
	s, err := docstore.New(index.NewMemoryEngine(embedder.NewHashEmbedder()))
	require.NoError(t, err)
	return s
}

type recorder struct {
	mu     sync.Mutex
	starts []*callbacks.RunInfo
	inputs []callbacks.CallbackInput
	ends   int
	errs   []error
}

func (r *recorder) handler() callbacks.Handler {
	return callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *callbacks.RunInfo, in callbacks.CallbackInput) context.Context {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.starts = append(r.starts, info)
			r.inputs = append(r.inputs, in)
			return ctx
		}).
		OnEndFn(func(ctx context.Context, _ *callbacks.RunInfo, _ callbacks.CallbackOutput) context.Context {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.ends++
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, _ *callbacks.RunInfo, err error) context.Context {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
			return ctx
		}).
		Build()
}

func TestRetriever_Retrieve(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := context.Background()

	want, err := store.Create(ctx, "Cats", "the cat sat on the mat", metadata.Map{"kind": metadata.String("pet")})
	require.NoError(t, err)
	_, err = store.Create(ctx, "Quantum", "quantum chromodynamics lattice", nil)
	require.NoError(t, err)

	r, err := NewRetriever(store, 0)
	require.NoError(t, err)

	docs, err := r.Retrieve(ctx, "the cat sat on the mat", retriever.WithTopK(1))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, want.ID, docs[0].ID)
	assert.Equal(t, "Cats", docs[0].MetaData[metadata.TitleKey])
	assert.Equal(t, "pet", docs[0].MetaData["kind"])
	assert.InDelta(t, 1.0, docs[0].Score(), 1e-5)

	all, err := r.Retrieve(ctx, "the cat sat on the mat")
	require.NoError(t, err)
	assert.Len(t, all, 2, "default top-k clamps to stored count")
}

func TestRetriever_ScoreThreshold(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "a", "the cat sat on the mat", nil)
	require.NoError(t, err)
	_, err = store.Create(ctx, "b", "quantum chromodynamics lattice", nil)
	require.NoError(t, err)

	r, err := NewRetriever(store, 5)
	require.NoError(t, err)

	docs, err := r.Retrieve(ctx, "the cat sat on the mat", retriever.WithScoreThreshold(0.99))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].MetaData[metadata.TitleKey])
}

func TestRetriever_EmptyStore(t *testing.T) {
	t.Parallel()
	r, err := NewRetriever(newStore(t), 3)
	require.NoError(t, err)

	docs, err := r.Retrieve(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestRetriever_Callbacks(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	rec := &recorder{}
	ctx := callbacks.InitCallbacks(context.Background(), &callbacks.RunInfo{}, rec.handler())

	_, err := store.Create(context.Background(), "t", "some content", nil)
	require.NoError(t, err)

	r, err := NewRetriever(store, 2)
	require.NoError(t, err)
	_, err = r.Retrieve(ctx, "some content")
	require.NoError(t, err)

	require.Len(t, rec.starts, 1)
	assert.Equal(t, components.ComponentOfRetriever, rec.starts[0].Component)
	in := retriever.ConvCallbackInput(rec.inputs[0])
	require.NotNil(t, in)
	assert.Equal(t, "some content", in.Query)
	assert.Equal(t, 2, in.TopK)
	assert.Equal(t, 1, rec.ends)
	assert.Empty(t, rec.errs)
}

type failingSearcher struct{}

func (failingSearcher) SearchScored(context.Context, string, int) ([]docstore.Hit, error) {
	return nil, docstore.ErrStorage
}

func TestRetriever_ErrorCallback(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	ctx := callbacks.InitCallbacks(context.Background(), &callbacks.RunInfo{}, rec.handler())

	r, err := NewRetriever(failingSearcher{}, 1)
	require.NoError(t, err)
	_, err = r.Retrieve(ctx, "q")
	require.ErrorIs(t, err, docstore.ErrStorage)
	require.Len(t, rec.errs, 1)
	assert.True(t, errors.Is(rec.errs[0], docstore.ErrStorage))
	assert.Zero(t, rec.ends)
}

func TestIndexer_Store(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := context.Background()

	ix, err := NewIndexer(store)
	require.NoError(t, err)

	in := []*schema.Document{
		{ID: "ignored", Content: "first body", MetaData: map[string]any{"title": "First", "rank": 1}},
		(&schema.Document{Content: "second body"}).WithScore(0.5),
	}
	ids, err := ix.Store(ctx, in)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.NotEqual(t, "ignored", ids[0])

	first, found, err := store.Get(ctx, ids[0])
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "First", first.Title)
	assert.Equal(t, metadata.Map{"rank": metadata.Number(1)}, first.Metadata)

	second, found, err := store.Get(ctx, ids[1])
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "", second.Title)
	assert.Empty(t, second.Metadata, "eino bookkeeping keys are dropped")
}

func TestIndexer_RejectsNestedMetadata(t *testing.T) {
	t.Parallel()
	ix, err := NewIndexer(newStore(t))
	require.NoError(t, err)

	_, err = ix.Store(context.Background(), []*schema.Document{
		{Content: "x", MetaData: map[string]any{"tags": []string{"a"}}},
	})
	assert.ErrorIs(t, err, metadata.ErrUnsupported)
}

func TestEmbedder_EmbedStrings(t *testing.T) {
	t.Parallel()
	e, err := NewEmbedder(embedder.NewHashEmbedder())
	require.NoError(t, err)
	assert.Equal(t, "hash", e.GetType())

	out, err := e.EmbedStrings(context.Background(), []string{"abc", ""})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Len(t, out[0], embedder.HashDimensions)

	want := embedder.HashVector("abc")
	for i := range want {
		assert.Equal(t, float64(want[i]), out[0][i])
	}
	for _, f := range out[1] {
		assert.Zero(t, f)
	}
}

func TestConstructors_RejectNil(t *testing.T) {
	t.Parallel()
	_, err := NewRetriever(nil, 1)
	assert.Error(t, err)
	_, err = NewIndexer(nil)
	assert.Error(t, err)
	_, err = NewEmbedder(nil)
	assert.Error(t, err)
}

func TestToSchema(t *testing.T) {
	t.Parallel()
	d := ToSchema(docstore.Document{ID: "1", Title: "T", Content: "c", Metadata: metadata.Map{"n": metadata.Number(2)}})
	assert.Equal(t, map[string]any{"title": "T", "n": 2.0}, d.MetaData)
}
