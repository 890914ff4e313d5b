package docstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/docvec-go/internal/metadata"
)

type fakeSource struct {
	doc    RAGDocument
	chunks []string
	docErr error
	chErr  error
}

func (f *fakeSource) Document(_ context.Context, id string) (RAGDocument, error) {
	if f.docErr != nil {
		return RAGDocument{}, f.docErr
	}
	d := f.doc
	d.ID = id
	return d, nil
}

func (f *fakeSource) ChunkTexts(context.Context, string) ([]string, error) {
	return f.chunks, f.chErr
}

func TestImportRAG_Defaults(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	src := &fakeSource{doc: RAGDocument{Filename: "notes.md"}, chunks: []string{"one", "two"}}
	doc, err := s.ImportRAG(ctx, src, "rag-1", ImportRequest{})
	require.NoError(t, err)

	assert.Equal(t, "notes.md", doc.Title)
	assert.Equal(t, "one\n\ntwo", doc.Content)
	assert.Equal(t, metadata.Map{
		MetaRAGDocumentID: metadata.String("rag-1"),
		MetaRAGFilename:   metadata.String("notes.md"),
		MetaImportedFrom:  metadata.String("rag"),
	}, doc.Metadata)

	stored, found, err := s.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, doc, stored)
}

func TestImportRAG_TitleFallbacks(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	src := &fakeSource{chunks: []string{"x"}}
	doc, err := s.ImportRAG(ctx, src, "rag-2", ImportRequest{})
	require.NoError(t, err)
	assert.Equal(t, DefaultImportTitle, doc.Title)
	assert.NotContains(t, doc.Metadata, MetaRAGFilename)

	src.doc.Filename = "file.txt"
	doc, err = s.ImportRAG(ctx, src, "rag-2", ImportRequest{Title: "Explicit"})
	require.NoError(t, err)
	assert.Equal(t, "Explicit", doc.Title)
}

func TestImportRAG_CustomSeparator(t *testing.T) {
	t.Parallel()
	s := newStore(t)

	sep := " | "
	src := &fakeSource{chunks: []string{"a", "b", "c"}}
	doc, err := s.ImportRAG(context.Background(), src, "rag-3", ImportRequest{JoinSeparator: &sep})
	require.NoError(t, err)
	assert.Equal(t, "a | b | c", doc.Content)
}

func TestImportRAG_ImportKeysWinOverCaller(t *testing.T) {
	t.Parallel()
	s := newStore(t)

	src := &fakeSource{chunks: []string{"a"}}
	doc, err := s.ImportRAG(context.Background(), src, "rag-4", ImportRequest{
		Metadata: metadata.Map{MetaImportedFrom: metadata.String("elsewhere"), "keep": metadata.Bool(true)},
	})
	require.NoError(t, err)
	assert.Equal(t, metadata.String("rag"), doc.Metadata[MetaImportedFrom])
	assert.Equal(t, metadata.Bool(true), doc.Metadata["keep"])
}

func TestImportRAG_UpstreamFailures(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	boom := errors.New("connection refused")
	_, err := s.ImportRAG(ctx, &fakeSource{docErr: boom}, "rag-5", ImportRequest{})
	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, boom)

	_, err = s.ImportRAG(ctx, &fakeSource{chErr: boom}, "rag-5", ImportRequest{})
	assert.ErrorIs(t, err, ErrUpstream)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImportRAG_EmptyID(t *testing.T) {
	t.Parallel()
	s := newStore(t)

	_, err := s.ImportRAG(context.Background(), &fakeSource{}, "  ", ImportRequest{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
