// Package docstore keeps logical documents (title, content, metadata) in a
// vector index that only knows about content text and a flat metadata record.
//
// The store is constructed once with an [index.Engine] and shared by every
// caller. It holds no locks of its own; atomicity of each write and
// read-your-writes visibility come from the engine. Not-found is never an
// error here: lookups return a found flag alongside the document.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/docvec-go/internal/index"
	"github.com/54b3r/docvec-go/internal/logging"
	"github.com/54b3r/docvec-go/internal/metadata"
)

// Pagination bounds for List.
const (
	MinListLimit = 1
	MaxListLimit = 1000
)

var (
	// ErrInvalidInput marks a request rejected before it reached the index.
	ErrInvalidInput = errors.New("docstore: invalid input")

	// ErrStorage marks a failure of the underlying index engine. The engine
	// error is wrapped alongside it.
	ErrStorage = errors.New("docstore: storage failure")

	// ErrUpstream marks a failure of an external document source.
	ErrUpstream = errors.New("docstore: upstream failure")
)

// Document is the logical document exposed to callers.
type Document struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Content  string       `json:"content"`
	Metadata metadata.Map `json:"metadata"`
}

// Hit is a search result with its cosine similarity to the query.
type Hit struct {
	Document
	Score float32 `json:"score"`
}

// Patch carries the fields of a partial update. A nil field keeps the
// current value. A non-nil empty Metadata replaces metadata with nothing.
type Patch struct {
	Title    *string
	Content  *string
	Metadata metadata.Map
}

// Store implements the document operations over an index engine.
type Store struct {
	engine  index.Engine
	log     *slog.Logger
	newID   func() string
	metrics *storeMetrics
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the fallback logger used when the request context does not
// carry one.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithIDGenerator replaces the random UUID generator. Ids must be unique.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithMetrics registers the store's Prometheus metrics against reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Store) { s.metrics = newStoreMetrics(reg) }
}

// New returns a Store backed by engine.
func New(engine index.Engine, opts ...Option) (*Store, error) {
	if engine == nil {
		return nil, fmt.Errorf("docstore: engine must not be nil")
	}
	s := &Store{
		engine: engine,
		log:    slog.Default(),
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = newStoreMetrics(nil)
	}
	return s, nil
}

// Engine returns the underlying index engine.
func (s *Store) Engine() index.Engine { return s.engine }

func (s *Store) logger(ctx context.Context) *slog.Logger {
	if l, ok := logging.Lookup(ctx); ok {
		return l
	}
	return s.log
}

func storageErr(op string, err error) error {
	return fmt.Errorf("docstore: %s: %w: %w", op, ErrStorage, err)
}

func fromRecord(rec index.Record) Document {
	title, md := metadata.Unflatten(rec.Metadata)
	return Document{ID: rec.ID, Title: title, Content: rec.Content, Metadata: md}
}

// Create stores a new document under a freshly generated id.
func (s *Store) Create(ctx context.Context, title, content string, md metadata.Map) (Document, error) {
	start := time.Now()
	if err := md.Validate(); err != nil {
		s.metrics.observe("create", outcomeInvalid, start)
		return Document{}, fmt.Errorf("docstore: create: %w: %w", ErrInvalidInput, err)
	}

	id := s.newID()
	rec := index.Record{ID: id, Content: content, Metadata: metadata.Flatten(title, md)}
	if err := s.engine.Add(ctx, rec); err != nil {
		s.metrics.observe("create", outcomeError, start)
		return Document{}, storageErr("create", err)
	}

	s.metrics.observe("create", outcomeOK, start)
	s.logger(ctx).Debug("docstore: document created",
		slog.String("id", id),
		slog.Int("content_chars", len(content)),
	)
	return Document{ID: id, Title: title, Content: content, Metadata: md.Clone()}, nil
}

// Get returns the document with id. found is false when it does not exist.
func (s *Store) Get(ctx context.Context, id string) (doc Document, found bool, err error) {
	start := time.Now()
	recs, err := s.engine.Get(ctx, []string{id})
	if err != nil {
		s.metrics.observe("get", outcomeError, start)
		return Document{}, false, storageErr("get", err)
	}
	if len(recs) == 0 {
		s.metrics.observe("get", outcomeNotFound, start)
		return Document{}, false, nil
	}
	s.metrics.observe("get", outcomeOK, start)
	return fromRecord(recs[0]), true, nil
}

// List returns up to limit documents starting at offset. limit must be in
// [1, 1000] and offset must not be negative.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Document, error) {
	start := time.Now()
	if limit < MinListLimit || limit > MaxListLimit {
		s.metrics.observe("list", outcomeInvalid, start)
		return nil, fmt.Errorf("docstore: list: %w: limit %d outside [%d, %d]", ErrInvalidInput, limit, MinListLimit, MaxListLimit)
	}
	if offset < 0 {
		s.metrics.observe("list", outcomeInvalid, start)
		return nil, fmt.Errorf("docstore: list: %w: negative offset %d", ErrInvalidInput, offset)
	}

	recs, err := s.engine.List(ctx, limit, offset)
	if err != nil {
		s.metrics.observe("list", outcomeError, start)
		return nil, storageErr("list", err)
	}
	docs := make([]Document, 0, len(recs))
	for _, r := range recs {
		docs = append(docs, fromRecord(r))
	}
	s.metrics.observe("list", outcomeOK, start)
	return docs, nil
}

// Update applies p to the document with id and re-embeds it under the same
// id. found is false when the document does not exist.
func (s *Store) Update(ctx context.Context, id string, p Patch) (doc Document, found bool, err error) {
	start := time.Now()
	if err := p.Metadata.Validate(); err != nil {
		s.metrics.observe("update", outcomeInvalid, start)
		return Document{}, false, fmt.Errorf("docstore: update: %w: %w", ErrInvalidInput, err)
	}

	current, found, err := s.Get(ctx, id)
	if err != nil {
		s.metrics.observe("update", outcomeError, start)
		return Document{}, false, err
	}
	if !found {
		s.metrics.observe("update", outcomeNotFound, start)
		return Document{}, false, nil
	}

	next := current
	if p.Title != nil {
		next.Title = *p.Title
	}
	if p.Content != nil {
		next.Content = *p.Content
	}
	if p.Metadata != nil {
		next.Metadata = p.Metadata.Clone()
	}

	rec := index.Record{ID: id, Content: next.Content, Metadata: metadata.Flatten(next.Title, next.Metadata)}
	if err := s.engine.Update(ctx, rec); err != nil {
		// Deleted between the read and the write.
		if errors.Is(err, index.ErrNotFound) {
			s.metrics.observe("update", outcomeNotFound, start)
			return Document{}, false, nil
		}
		s.metrics.observe("update", outcomeError, start)
		return Document{}, false, storageErr("update", err)
	}

	s.metrics.observe("update", outcomeOK, start)
	s.logger(ctx).Debug("docstore: document updated",
		slog.String("id", id),
		slog.Bool("title", p.Title != nil),
		slog.Bool("content", p.Content != nil),
		slog.Bool("metadata", p.Metadata != nil),
	)
	return next, true, nil
}

// Delete removes the document with id. It reports false when there was
// nothing to delete.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	_, found, err := s.Get(ctx, id)
	if err != nil {
		s.metrics.observe("delete", outcomeError, start)
		return false, err
	}
	if !found {
		s.metrics.observe("delete", outcomeNotFound, start)
		return false, nil
	}
	if err := s.engine.Delete(ctx, []string{id}); err != nil {
		s.metrics.observe("delete", outcomeError, start)
		return false, storageErr("delete", err)
	}
	s.metrics.observe("delete", outcomeOK, start)
	s.logger(ctx).Debug("docstore: document deleted", slog.String("id", id))
	return true, nil
}

// Search returns up to n documents ordered by similarity to query.
func (s *Store) Search(ctx context.Context, query string, n int) ([]Document, error) {
	hits, err := s.SearchScored(ctx, query, n)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, len(hits))
	for i, h := range hits {
		docs[i] = h.Document
	}
	return docs, nil
}

// SearchScored is Search with similarity scores. An empty index returns no
// hits without querying the engine, and n is clamped to the number of
// stored documents.
func (s *Store) SearchScored(ctx context.Context, query string, n int) ([]Hit, error) {
	start := time.Now()
	if n < 1 {
		s.metrics.observe("search", outcomeInvalid, start)
		return nil, fmt.Errorf("docstore: search: %w: n_results must be positive, got %d", ErrInvalidInput, n)
	}

	count, err := s.engine.Count(ctx)
	if err != nil {
		s.metrics.observe("search", outcomeError, start)
		return nil, storageErr("search", err)
	}
	if count == 0 {
		s.metrics.observe("search", outcomeOK, start)
		s.metrics.searchResults.Observe(0)
		return []Hit{}, nil
	}

	matches, err := s.engine.Query(ctx, query, min(n, count))
	if err != nil {
		s.metrics.observe("search", outcomeError, start)
		return nil, storageErr("search", err)
	}

	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, Hit{Document: fromRecord(m.Record), Score: m.Score})
	}
	s.metrics.observe("search", outcomeOK, start)
	s.metrics.searchResults.Observe(float64(len(hits)))
	s.logger(ctx).Debug("docstore: search",
		slog.Int("requested", n),
		slog.Int("stored", count),
		slog.Int("returned", len(hits)),
	)
	return hits, nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.engine.Count(ctx)
	if err != nil {
		return 0, storageErr("count", err)
	}
	return n, nil
}
