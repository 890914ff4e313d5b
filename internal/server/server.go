// Package server implements the HTTP server that exposes the document store
// as a REST API. The server is started by the `docvec serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/docvec-go/internal/logging"
	"github.com/54b3r/docvec-go/internal/version"
)

// New constructs a Server from the provided store and config.
func New(store documentStore, cfg *Config) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("server: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Remote embedding backends can be slow on large documents.
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		store:   store,
		cfg:     cfg,
		log:     cfg.Logger,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}

	throttle, stopThrottle := newWriteThrottle(cfg.RateLimit, cfg.RateBurst, func(route string) {
		s.metrics.throttledTotal.WithLabelValues(route).Inc()
	})
	s.stopThrottle = stopThrottle

	read := func(name string, h http.HandlerFunc) http.Handler { return s.instrument(name, h) }
	write := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, throttle.wrap(name, h))
	}

	docs := http.NewServeMux()
	docs.Handle("POST /documents", write("create", s.handleCreate))
	docs.Handle("POST /documents/{$}", write("create", s.handleCreate))
	docs.Handle("GET /documents", read("list", s.handleList))
	docs.Handle("GET /documents/{$}", read("list", s.handleList))
	docs.Handle("GET /documents/{id}", read("get", s.handleGet))
	docs.Handle("PUT /documents/{id}", write("update", s.handleUpdate))
	docs.Handle("DELETE /documents/{id}", write("delete", s.handleDelete))
	docs.Handle("POST /documents/search", read("search", s.handleSearch))
	docs.Handle("POST /documents/search/{$}", read("search", s.handleSearch))
	docs.Handle("POST /documents/import/rag/{ragDocumentId}", write("import_rag", s.handleImportRAG))

	mux := http.NewServeMux()
	mux.Handle("/documents", requireAPIKey(cfg.APIKey, docs))
	mux.Handle("/documents/", requireAPIKey(cfg.APIKey, docs))
	mux.Handle("GET /health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.handler = requestLogger(s.log, mux)
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	if cfg.APIKey == "" {
		s.log.Warn("server: authentication disabled, set DOCVEC_API_KEY to protect /documents")
	}

	return s, nil
}

// Handler returns the fully wrapped route tree, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopThrottle()
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", "http://"+s.httpServer.Addr), slog.String("version", version.String()))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		s.log.Info("server: stopped")
		return nil
	}
}

// handleHealth handles GET /health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok", "version": version.Version})
}

// writeJSON encodes v with the given status code.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(ctx).Error("server: encode response", slog.Any("error", err))
	}
}

// writeError sends an errorResponse.
func writeError(ctx context.Context, w http.ResponseWriter, status int, detail string) {
	writeJSON(ctx, w, status, errorResponse{Detail: detail})
}
