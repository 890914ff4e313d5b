package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/docvec-go/internal/docstore"
	"github.com/54b3r/docvec-go/internal/embedder"
	"github.com/54b3r/docvec-go/internal/index"
	"github.com/54b3r/docvec-go/internal/ragclient"
)

// openedStore bundles a document store with the engine it owns so callers
// can close the engine and probe it for readiness.
type openedStore struct {
	store  *docstore.Store
	engine index.Engine
}

// Close releases the underlying index engine.
func (o *openedStore) Close() error { return o.engine.Close() }

// openStore validates the embedding configuration, then opens the index
// engine selected by DOCVEC_INDEX and wraps it in a document store. reg may
// be nil, in which case store metrics are not exported.
func openStore(ctx context.Context, log *slog.Logger, reg prometheus.Registerer) (*openedStore, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, err
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised",
		slog.String("provider", embedder.Backend()),
		slog.String("name", emb.Name()),
	)

	engine, err := index.NewFromEnv(ctx, emb, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	opts := []docstore.Option{docstore.WithLogger(log)}
	if reg != nil {
		opts = append(opts, docstore.WithMetrics(reg))
	}
	store, err := docstore.New(engine, opts...)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	return &openedStore{store: store, engine: engine}, nil
}

// newRAGClient builds the upstream chunking service client from
// RAG_SERVICE_URL. It returns nil without error when the URL is unset.
func newRAGClient() (*ragclient.Client, error) {
	baseURL := os.Getenv("RAG_SERVICE_URL")
	if baseURL == "" {
		return nil, nil
	}
	timeout := time.Duration(getEnvInt("RAG_SERVICE_TIMEOUT_SECONDS", 30)) * time.Second
	return ragclient.New(&ragclient.Config{BaseURL: baseURL, Timeout: timeout})
}

// getEnvOrDefault returns the env var value or the fallback if unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or fallback if unset or invalid.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvFloat returns the env var parsed as float64, or fallback if unset or
// invalid.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
