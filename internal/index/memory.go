package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/54b3r/docvec-go/internal/embedder"
)

type memEntry struct {
	rec Record
	vec []float32
}

// MemoryEngine keeps every record in process memory. Listing order is
// insertion order. It is intended for tests and short-lived runs.
type MemoryEngine struct {
	emb embedder.Embedder

	mu      sync.RWMutex
	order   []string
	entries map[string]*memEntry
	closed  bool
}

// NewMemoryEngine returns an empty engine that embeds with emb.
func NewMemoryEngine(emb embedder.Embedder) *MemoryEngine {
	return &MemoryEngine{
		emb:     emb,
		entries: make(map[string]*memEntry),
	}
}

// Add inserts rec. The embedding is computed before the lock is taken.
func (m *MemoryEngine) Add(ctx context.Context, rec Record) error {
	vec, err := embedder.EmbedOne(ctx, m.emb, rec.Content)
	if err != nil {
		return fmt.Errorf("index: memory: add: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.entries[rec.ID]; ok {
		return fmt.Errorf("index: memory: add %q: %w", rec.ID, ErrDuplicateID)
	}
	m.entries[rec.ID] = &memEntry{rec: cloneRecord(rec), vec: vec}
	m.order = append(m.order, rec.ID)
	return nil
}

// Get returns the stored records for ids, skipping unknown ones.
func (m *MemoryEngine) Get(_ context.Context, ids []string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		if e, ok := m.entries[id]; ok {
			out = append(out, cloneRecord(e.rec))
		}
	}
	return out, nil
}

// List returns a window of records in insertion order.
func (m *MemoryEngine) List(_ context.Context, limit, offset int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	if offset >= len(m.order) || limit <= 0 {
		return []Record{}, nil
	}
	end := min(offset+limit, len(m.order))
	out := make([]Record, 0, end-offset)
	for _, id := range m.order[offset:end] {
		out = append(out, cloneRecord(m.entries[id].rec))
	}
	return out, nil
}

// Update replaces an existing record in place, keeping its list position.
func (m *MemoryEngine) Update(ctx context.Context, rec Record) error {
	vec, err := embedder.EmbedOne(ctx, m.emb, rec.Content)
	if err != nil {
		return fmt.Errorf("index: memory: update: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	e, ok := m.entries[rec.ID]
	if !ok {
		return fmt.Errorf("index: memory: update %q: %w", rec.ID, ErrNotFound)
	}
	e.rec = cloneRecord(rec)
	e.vec = vec
	return nil
}

// Delete removes ids.
func (m *MemoryEngine) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := m.entries[id]; ok {
			delete(m.entries, id)
			drop[id] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return nil
	}
	kept := m.order[:0]
	for _, id := range m.order {
		if _, gone := drop[id]; !gone {
			kept = append(kept, id)
		}
	}
	m.order = kept
	return nil
}

// Query ranks every record by cosine similarity to text.
func (m *MemoryEngine) Query(ctx context.Context, text string, n int) ([]Match, error) {
	q, err := embedder.EmbedOne(ctx, m.emb, text)
	if err != nil {
		return nil, fmt.Errorf("index: memory: query: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	matches := make([]Match, 0, len(m.order))
	for _, id := range m.order {
		e := m.entries[id]
		matches = append(matches, Match{Record: cloneRecord(e.rec), Score: cosine(q, e.vec)})
	}
	return topN(matches, n), nil
}

// Count returns the number of records.
func (m *MemoryEngine) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	return len(m.order), nil
}

// Close drops all records. Further calls return ErrClosed.
func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.entries = nil
	m.order = nil
	return nil
}

func cloneRecord(r Record) Record {
	r.Metadata = r.Metadata.Clone()
	return r
}
