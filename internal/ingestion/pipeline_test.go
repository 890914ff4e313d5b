package ingestion

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/docvec-go/internal/docstore"
	"github.com/54b3r/docvec-go/internal/embedder"
	"github.com/54b3r/docvec-go/internal/index"
	"github.com/54b3r/docvec-go/internal/metadata"
	"github.com/54b3r/docvec-go/internal/retrieval"
)

func newStore(t *testing.T) *docstore.Store {
	t.Helper()
	s, err := docstore.New(index.NewMemoryEngine(embedder.NewHashEmbedder()))
	require.NoError(t, err)
	return s
}

// newStorePipeline returns a pipeline that indexes into a fresh memory store.
func newStorePipeline(t *testing.T, cfg *Config) (*Pipeline, *docstore.Store) {
	t.Helper()
	store := newStore(t)
	idx, err := retrieval.NewIndexer(store)
	require.NoError(t, err)
	p, err := NewPipeline(idx, cfg)
	require.NoError(t, err)
	return p, store
}

// fetchAll loads the documents behind ids, failing on any miss.
func fetchAll(t *testing.T, store *docstore.Store, ids []string) []docstore.Document {
	t.Helper()
	docs := make([]docstore.Document, 0, len(ids))
	for _, id := range ids {
		d, found, err := store.Get(context.Background(), id)
		require.NoError(t, err)
		require.True(t, found, "document %s", id)
		docs = append(docs, d)
	}
	return docs
}

func TestNewPipeline_RequiresIndexer(t *testing.T) {
	t.Parallel()
	_, err := NewPipeline(nil, nil)
	assert.Error(t, err)
}

func TestPipeline_IngestFile(t *testing.T) {
	t.Parallel()
	p, store := newStorePipeline(t, &Config{ChunkTokens: 10})
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "guide.md")
	body := "First paragraph text here.\n\nSecond paragraph text here."
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	var msgs []string
	ids, err := p.Ingest(ctx, []Source{{
		Path:     path,
		Metadata: metadata.Map{"team": metadata.String("docs"), MetaFormat: metadata.String("custom")},
	}}, func(m string) { msgs = append(msgs, m) })
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Len(t, msgs, 3)

	docs := fetchAll(t, store, ids)
	for i, d := range docs {
		assert.Equal(t, "guide.md", d.Title)
		assert.Equal(t, metadata.String(path), d.Metadata[MetaSource])
		assert.Equal(t, metadata.Number(float64(i)), d.Metadata[MetaChunkIndex])
		assert.Equal(t, metadata.Number(2), d.Metadata[MetaTotalChunks])
		assert.Equal(t, metadata.String("file"), d.Metadata[MetaSourceType])
		assert.Equal(t, metadata.String("custom"), d.Metadata[MetaFormat], "caller metadata wins over inferred")
		assert.Equal(t, metadata.String("docs"), d.Metadata["team"])
	}
	assert.Equal(t, "First paragraph text here.", docs[0].Content)
	assert.Equal(t, "Second paragraph text here.", docs[1].Content)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPipeline_IngestURL(t *testing.T) {
	t.Parallel()
	p, store := newStorePipeline(t, &Config{ChunkTokens: 10})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/docs/intro.txt" {
			http.NotFound(w, r)
			return
		}
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, strings.Repeat("Sentence number one. ", 10))
	}))
	t.Cleanup(srv.Close)

	ids, err := p.Ingest(context.Background(), []Source{{URL: srv.URL + "/docs/intro.txt", Title: "Intro"}}, nil)
	require.NoError(t, err)
	require.Greater(t, len(ids), 1)
	docs := fetchAll(t, store, ids)
	for _, d := range docs {
		assert.Equal(t, "Intro", d.Title)
		assert.Equal(t, metadata.String("url"), d.Metadata[MetaSourceType])
		assert.Equal(t, metadata.String("text"), d.Metadata[MetaFormat])
		assert.Equal(t, metadata.Number(float64(len(docs))), d.Metadata[MetaTotalChunks])
	}

	_, err = p.Ingest(context.Background(), []Source{{URL: srv.URL + "/missing"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
}

func TestPipeline_InvalidSource(t *testing.T) {
	t.Parallel()
	p, _ := newStorePipeline(t, nil)

	_, err := p.Ingest(context.Background(), []Source{{}}, nil)
	assert.Error(t, err)

	_, err = p.Ingest(context.Background(), []Source{{URL: "https://example.com", Path: "x"}}, nil)
	assert.Error(t, err)
}

func TestPipeline_MissingFile(t *testing.T) {
	t.Parallel()
	p, _ := newStorePipeline(t, nil)

	_, err := p.Ingest(context.Background(), []Source{{Path: filepath.Join(t.TempDir(), "nope.txt")}}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

type failingCreator struct{ calls int }

func (f *failingCreator) Create(context.Context, string, string, metadata.Map) (docstore.Document, error) {
	f.calls++
	if f.calls > 1 {
		return docstore.Document{}, docstore.ErrStorage
	}
	return docstore.Document{ID: "first"}, nil
}

func TestPipeline_StopsOnStoreError(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("one two three.\n\n"+strings.Repeat("b", 39)), 0o600))

	idx, err := retrieval.NewIndexer(&failingCreator{})
	require.NoError(t, err)
	p, err := NewPipeline(idx, &Config{ChunkTokens: 10})
	require.NoError(t, err)

	ids, err := p.Ingest(context.Background(), []Source{{Path: path}}, nil)
	require.ErrorIs(t, err, docstore.ErrStorage)
	assert.Equal(t, []string{"first"}, ids)
}

func TestPipeline_BlankSourceCreatesNothing(t *testing.T) {
	t.Parallel()
	p, store := newStorePipeline(t, nil)

	path := filepath.Join(t.TempDir(), "blank.txt")
	require.NoError(t, os.WriteFile(path, []byte(" \n\n\t "), 0o600))

	ids, err := p.Ingest(context.Background(), []Source{{Path: path}}, nil)
	require.NoError(t, err)
	assert.Empty(t, ids)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChunkDocuments_TitleAndBookkeeping(t *testing.T) {
	t.Parallel()
	src := Source{
		Path:     "/srv/notes/plan.md",
		Metadata: metadata.Map{metadata.TitleKey: metadata.String("ignored"), MetaChunkIndex: metadata.Number(99)},
	}
	docs := chunkDocuments(src, []string{"a", "b"})
	require.Len(t, docs, 2)
	for i, d := range docs {
		assert.Equal(t, "plan.md", d.MetaData[metadata.TitleKey])
		assert.Equal(t, float64(i), d.MetaData[MetaChunkIndex])
		assert.Equal(t, float64(2), d.MetaData[MetaTotalChunks])
		assert.Equal(t, "/srv/notes/plan.md", d.MetaData[MetaSource])
	}
}

func TestDefaultTitle(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "notes.txt", defaultTitle(Source{Path: "/tmp/notes.txt"}))
	assert.Equal(t, "page", defaultTitle(Source{URL: "https://example.com/a/page?x=1"}))
	assert.Equal(t, "example.com", defaultTitle(Source{URL: "https://example.com/"}))
}
