package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/54b3r/docvec-go/internal/embedder"
)

// Backend names accepted by DOCVEC_INDEX.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendQdrant = "qdrant"
)

// DefaultPersistDir is used when DOCVEC_PERSIST_DIR is unset.
const DefaultPersistDir = "./docvec_data"

// NewFromEnv opens the engine selected by DOCVEC_INDEX (default sqlite).
//
//	sqlite: DOCVEC_PERSIST_DIR (default ./docvec_data)
//	qdrant: QDRANT_HOST, QDRANT_PORT, QDRANT_API_KEY, QDRANT_TLS, DOCVEC_COLLECTION
//	memory: no settings; contents are lost on exit
func NewFromEnv(ctx context.Context, emb embedder.Embedder, log *slog.Logger) (Engine, error) {
	backend := envOr("DOCVEC_INDEX", BackendSQLite)

	switch backend {
	case BackendSQLite:
		path, err := DefaultDBPath(envOr("DOCVEC_PERSIST_DIR", DefaultPersistDir))
		if err != nil {
			return nil, err
		}
		e, err := OpenSQLite(ctx, path, emb)
		if err != nil {
			return nil, err
		}
		log.Info("index: sqlite engine opened", slog.String("path", path))
		return e, nil

	case BackendMemory:
		log.Warn("index: memory engine selected; documents will not survive a restart")
		return NewMemoryEngine(emb), nil

	case BackendQdrant:
		port := 6334
		if v := os.Getenv("QDRANT_PORT"); v != "" {
			p, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("index: invalid QDRANT_PORT %q: %w", v, err)
			}
			port = p
		}
		cfg := &QdrantConfig{
			Host:       envOr("QDRANT_HOST", "localhost"),
			Port:       port,
			Collection: envOr("DOCVEC_COLLECTION", "documents"),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		}
		e, err := NewQdrantEngine(ctx, cfg, emb)
		if err != nil {
			return nil, err
		}
		log.Info("index: qdrant engine connected",
			slog.String("host", cfg.Host),
			slog.Int("port", cfg.Port),
			slog.String("collection", cfg.Collection),
		)
		return e, nil

	default:
		return nil, fmt.Errorf("index: unknown backend %q (valid values: sqlite, memory, qdrant)", backend)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
