package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/54b3r/docvec-go/internal/metadata"
)

// Defaults applied by ImportRAG.
const (
	DefaultJoinSeparator = "\n\n"
	DefaultImportTitle   = "RAG Document"
)

// Metadata keys written by ImportRAG.
const (
	MetaRAGDocumentID = "ragDocumentId"
	MetaRAGFilename   = "ragFilename"
	MetaImportedFrom  = "importedFrom"
)

// RAGDocument is the subset of an upstream document description that the
// import uses.
type RAGDocument struct {
	ID       string
	Filename string
}

// RAGSource is an external chunking service documents can be imported from.
type RAGSource interface {
	// Document returns the description of the upstream document.
	Document(ctx context.Context, id string) (RAGDocument, error)
	// ChunkTexts returns the text of every chunk in document order.
	ChunkTexts(ctx context.Context, id string) ([]string, error)
}

// ImportRequest customises an import. Zero values select the defaults.
type ImportRequest struct {
	// Title overrides the upstream filename as the document title.
	Title string
	// Metadata is merged under the import keys.
	Metadata metadata.Map
	// JoinSeparator is placed between chunks. Nil means "\n\n".
	JoinSeparator *string
}

// ImportRAG fetches every chunk of an upstream document, joins them in order
// and stores the result as one new document.
//
// The title is the request title, else the upstream filename, else
// "RAG Document". Metadata records the upstream id, the filename when known,
// and importedFrom=rag. Upstream failures wrap ErrUpstream.
func (s *Store) ImportRAG(ctx context.Context, src RAGSource, ragDocumentID string, req ImportRequest) (Document, error) {
	start := time.Now()
	if strings.TrimSpace(ragDocumentID) == "" {
		s.metrics.observe("import", outcomeInvalid, start)
		return Document{}, fmt.Errorf("docstore: import: %w: empty rag document id", ErrInvalidInput)
	}
	if err := req.Metadata.Validate(); err != nil {
		s.metrics.observe("import", outcomeInvalid, start)
		return Document{}, fmt.Errorf("docstore: import: %w: %w", ErrInvalidInput, err)
	}

	meta, err := src.Document(ctx, ragDocumentID)
	if err != nil {
		s.metrics.observe("import", outcomeError, start)
		return Document{}, fmt.Errorf("docstore: import: fetch document %s: %w: %w", ragDocumentID, ErrUpstream, err)
	}
	chunks, err := src.ChunkTexts(ctx, ragDocumentID)
	if err != nil {
		s.metrics.observe("import", outcomeError, start)
		return Document{}, fmt.Errorf("docstore: import: fetch chunks %s: %w: %w", ragDocumentID, ErrUpstream, err)
	}

	sep := DefaultJoinSeparator
	if req.JoinSeparator != nil {
		sep = *req.JoinSeparator
	}
	content := strings.Join(chunks, sep)

	title := req.Title
	if title == "" {
		title = meta.Filename
	}
	if title == "" {
		title = DefaultImportTitle
	}

	md := req.Metadata.Clone()
	md[MetaRAGDocumentID] = metadata.String(ragDocumentID)
	if meta.Filename != "" {
		md[MetaRAGFilename] = metadata.String(meta.Filename)
	}
	md[MetaImportedFrom] = metadata.String("rag")

	doc, err := s.Create(ctx, title, content, md)
	if err != nil {
		s.metrics.observe("import", outcomeError, start)
		return Document{}, err
	}

	s.metrics.observe("import", outcomeOK, start)
	s.logger(ctx).Info("docstore: imported rag document",
		slog.String("rag_document_id", ragDocumentID),
		slog.String("id", doc.ID),
		slog.Int("chunks", len(chunks)),
		slog.Int("content_chars", len(content)),
	)
	return doc, nil
}
