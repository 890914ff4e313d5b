package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/viant/sqlite-vec/engine"
	"github.com/viant/sqlite-vec/vector"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/54b3r/docvec-go/internal/embedder"
	"github.com/54b3r/docvec-go/internal/metadata"
)

// DBFileName is the database file created inside the persistence directory.
const DBFileName = "docvec.db"

// ErrEmbedderMismatch is returned when a database was filled by a different
// embedder than the one it is being opened with.
var ErrEmbedderMismatch = errors.New("index: sqlite: embedder mismatch")

// SQLiteEngine stores records and their embeddings in a single SQLite file.
// Similarity search is a brute-force cosine scan over every row, which is
// adequate up to tens of thousands of documents.
type SQLiteEngine struct {
	db  *sql.DB
	emb embedder.Embedder
}

// DefaultDBPath returns the database path inside dir, creating dir if needed.
func DefaultDBPath(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("index: sqlite: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, DBFileName), nil
}

// OpenSQLite opens (or creates) the database at path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func OpenSQLite(ctx context.Context, path string, emb embedder.Embedder) (*SQLiteEngine, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := engine.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("index: sqlite: open %s: %w", path, err)
	}
	// One connection serialises writers and keeps a :memory: database alive.
	db.SetMaxOpenConns(1)

	e := &SQLiteEngine{db: db, emb: emb}
	if err := e.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := e.checkEmbedder(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return e, nil
}

func (e *SQLiteEngine) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT    NOT NULL UNIQUE,
    content    TEXT    NOT NULL,
    metadata   TEXT    NOT NULL,  -- JSON object of scalar values
    embedding  BLOB               -- little-endian float32
);
CREATE TABLE IF NOT EXISTS index_meta (
    key    TEXT PRIMARY KEY,
    value  TEXT NOT NULL
);
`
	if _, err := e.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("index: sqlite: migrate: %w", err)
	}
	return nil
}

// checkEmbedder records the embedder identity on first use and refuses to
// mix vectors from different embedders afterwards.
func (e *SQLiteEngine) checkEmbedder(ctx context.Context) error {
	want := e.emb.Name() + ":" + strconv.Itoa(e.emb.Dimensions())

	var got string
	err := e.db.QueryRowContext(ctx, `SELECT value FROM index_meta WHERE key = 'embedder'`).Scan(&got)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := e.db.ExecContext(ctx, `INSERT INTO index_meta (key, value) VALUES ('embedder', ?)`, want); err != nil {
			return fmt.Errorf("index: sqlite: record embedder: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("index: sqlite: read embedder: %w", err)
	case got != want:
		return fmt.Errorf("%w: database has %s, configured %s", ErrEmbedderMismatch, got, want)
	default:
		return nil
	}
}

func (e *SQLiteEngine) encode(ctx context.Context, rec Record) (meta string, blob []byte, err error) {
	raw, err := json.Marshal(rec.Metadata.Clone())
	if err != nil {
		return "", nil, fmt.Errorf("encode metadata: %w", err)
	}
	vec, err := embedder.EmbedOne(ctx, e.emb, rec.Content)
	if err != nil {
		return "", nil, fmt.Errorf("embed: %w", err)
	}
	blob, err = vector.EncodeEmbedding(vec)
	if err != nil {
		return "", nil, fmt.Errorf("encode embedding: %w", err)
	}
	return string(raw), blob, nil
}

// Add inserts rec.
func (e *SQLiteEngine) Add(ctx context.Context, rec Record) error {
	meta, blob, err := e.encode(ctx, rec)
	if err != nil {
		return fmt.Errorf("index: sqlite: add: %w", err)
	}
	const q = `INSERT INTO documents (id, content, metadata, embedding) VALUES (?, ?, ?, ?)`
	if _, err := e.db.ExecContext(ctx, q, rec.ID, rec.Content, meta, blob); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("index: sqlite: add %q: %w", rec.ID, ErrDuplicateID)
		}
		return fmt.Errorf("index: sqlite: add: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure,
// accepting the primary code when extended codes are off.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT:
		return true
	}
	return false
}

// Get returns the records for ids in the order given.
func (e *SQLiteEngine) Get(ctx context.Context, ids []string) ([]Record, error) {
	if len(ids) == 0 {
		return []Record{}, nil
	}
	q := `SELECT id, content, metadata FROM documents WHERE id IN (` + placeholders(len(ids)) + `)`
	rows, err := e.db.QueryContext(ctx, q, anySlice(ids)...)
	if err != nil {
		return nil, fmt.Errorf("index: sqlite: get: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]Record, len(ids))
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("index: sqlite: get scan: %w", err)
		}
		byID[rec.ID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: sqlite: get rows: %w", err)
	}

	out := make([]Record, 0, len(byID))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			out = append(out, rec)
			delete(byID, id)
		}
	}
	return out, nil
}

// List returns a window of records in insertion order.
func (e *SQLiteEngine) List(ctx context.Context, limit, offset int) ([]Record, error) {
	const q = `SELECT id, content, metadata FROM documents ORDER BY seq LIMIT ? OFFSET ?`
	rows, err := e.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("index: sqlite: list: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("index: sqlite: list scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: sqlite: list rows: %w", err)
	}
	return out, nil
}

// Update rewrites content, metadata and embedding for an existing id. The
// row keeps its seq, so list order does not change.
func (e *SQLiteEngine) Update(ctx context.Context, rec Record) error {
	meta, blob, err := e.encode(ctx, rec)
	if err != nil {
		return fmt.Errorf("index: sqlite: update: %w", err)
	}
	const q = `UPDATE documents SET content = ?, metadata = ?, embedding = ? WHERE id = ?`
	res, err := e.db.ExecContext(ctx, q, rec.Content, meta, blob, rec.ID)
	if err != nil {
		return fmt.Errorf("index: sqlite: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("index: sqlite: update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("index: sqlite: update %q: %w", rec.ID, ErrNotFound)
	}
	return nil
}

// Delete removes ids.
func (e *SQLiteEngine) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	q := `DELETE FROM documents WHERE id IN (` + placeholders(len(ids)) + `)`
	if _, err := e.db.ExecContext(ctx, q, anySlice(ids)...); err != nil {
		return fmt.Errorf("index: sqlite: delete: %w", err)
	}
	return nil
}

// Query scans every stored embedding and returns the n closest records.
func (e *SQLiteEngine) Query(ctx context.Context, text string, n int) ([]Match, error) {
	qvec, err := embedder.EmbedOne(ctx, e.emb, text)
	if err != nil {
		return nil, fmt.Errorf("index: sqlite: query: %w", err)
	}

	rows, err := e.db.QueryContext(ctx, `SELECT id, content, metadata, embedding FROM documents ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("index: sqlite: query: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			rec  Record
			meta string
			blob []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Content, &meta, &blob); err != nil {
			return nil, fmt.Errorf("index: sqlite: query scan: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("index: sqlite: query decode metadata for %q: %w", rec.ID, err)
		}
		if rec.Metadata == nil {
			rec.Metadata = metadata.Map{}
		}
		vec, err := vector.DecodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("index: sqlite: query decode embedding for %q: %w", rec.ID, err)
		}
		matches = append(matches, Match{Record: rec, Score: cosine(qvec, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: sqlite: query rows: %w", err)
	}
	return topN(matches, n), nil
}

// Count returns the number of rows.
func (e *SQLiteEngine) Count(ctx context.Context) (int, error) {
	var n int
	if err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: sqlite: count: %w", err)
	}
	return n, nil
}

// Ping checks that the database is reachable.
func (e *SQLiteEngine) Ping(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return fmt.Errorf("index: sqlite: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (e *SQLiteEngine) Close() error {
	if err := e.db.Close(); err != nil {
		return fmt.Errorf("index: sqlite: close: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		rec  Record
		meta string
	)
	if err := s.Scan(&rec.ID, &rec.Content, &meta); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(meta), &rec.Metadata); err != nil {
		return Record{}, fmt.Errorf("decode metadata for %q: %w", rec.ID, err)
	}
	if rec.Metadata == nil {
		rec.Metadata = metadata.Map{}
	}
	return rec, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func anySlice(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
