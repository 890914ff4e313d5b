// Package index defines the vector index contract used by the document store
// and provides three engines that satisfy it: an in-process [MemoryEngine],
// an embedded [SQLiteEngine] and a networked [QdrantEngine].
//
// Every engine owns an embedder. Add, Update and Query embed the supplied
// text themselves, so callers never handle vectors directly. Similarity is
// cosine in all three.
package index

import (
	"context"
	"errors"
	"sort"

	"github.com/viant/sqlite-vec/vector"

	"github.com/54b3r/docvec-go/internal/metadata"
)

var (
	// ErrNotFound is returned by Update when the id does not exist.
	ErrNotFound = errors.New("index: record not found")

	// ErrDuplicateID is returned by Add when the id already exists.
	ErrDuplicateID = errors.New("index: duplicate id")

	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("index: engine closed")
)

// Record is one stored entry: the text that was embedded plus its flat
// metadata record.
type Record struct {
	ID       string
	Content  string
	Metadata metadata.Map
}

// Match is a query result. Score is the cosine similarity between the query
// and the stored content, in [-1, 1]; higher is closer.
type Match struct {
	Record
	Score float32
}

// Engine is a persistent store of records with similarity search.
// Implementations must be safe for concurrent use and must make a write
// visible to every read that starts after it returns.
type Engine interface {
	// Add inserts a new record and embeds its content.
	Add(ctx context.Context, rec Record) error

	// Get returns the records for the ids that exist, in the order given.
	// Unknown ids are skipped.
	Get(ctx context.Context, ids []string) ([]Record, error)

	// List returns up to limit records starting at offset, in an order that
	// is stable while the index is not written.
	List(ctx context.Context, limit, offset int) ([]Record, error)

	// Update replaces the content and metadata of an existing record and
	// re-embeds it. Returns ErrNotFound if the id does not exist.
	Update(ctx context.Context, rec Record) error

	// Delete removes the given ids. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error

	// Query embeds text and returns the n most similar records, most similar
	// first.
	Query(ctx context.Context, text string, n int) ([]Match, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases the engine's resources.
	Close() error
}

// Pinger is implemented by engines with a remote dependency worth probing.
type Pinger interface {
	Ping(ctx context.Context) error
}

// cosine scores a stored vector against a query. Zero-magnitude vectors (the
// hash embedder's output for very short text) score 0 rather than erroring.
func cosine(query, stored []float32) float32 {
	if len(query) != len(stored) || len(query) == 0 {
		return 0
	}
	sim, err := vector.CosineSimilarity(query, stored)
	if err != nil {
		return 0
	}
	return float32(sim)
}

// topN sorts matches by descending score and truncates to n. Ties keep their
// input order.
func topN(matches []Match, n int) []Match {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if n < len(matches) {
		matches = matches[:n]
	}
	return matches
}
