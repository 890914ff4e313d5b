package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/docvec-go/internal/docstore"
	"github.com/54b3r/docvec-go/internal/metadata"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// MaxBodyBytes caps request bodies. Defaults to 10 MiB.
	MaxBodyBytes int64
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /ready.
	// If empty, /ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on write
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all /documents routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// RAG is the upstream source for POST /documents/import/rag/{id}.
	// If nil, that route answers 503.
	RAG docstore.RAGSource
	// MetricsRegistry receives the server metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer is served on GET /metrics. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// documentStore is the set of store operations the handlers call.
// *docstore.Store satisfies it.
type documentStore interface {
	Create(ctx context.Context, title, content string, md metadata.Map) (docstore.Document, error)
	Get(ctx context.Context, id string) (docstore.Document, bool, error)
	List(ctx context.Context, limit, offset int) ([]docstore.Document, error)
	Update(ctx context.Context, id string, p docstore.Patch) (docstore.Document, bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	Search(ctx context.Context, query string, n int) ([]docstore.Document, error)
	ImportRAG(ctx context.Context, src docstore.RAGSource, ragDocumentID string, req docstore.ImportRequest) (docstore.Document, error)
}

// Server is the HTTP server that exposes the document store.
type Server struct {
	// store handles every /documents request.
	store documentStore
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// handler is the fully wrapped route tree; httpServer serves it.
	handler http.Handler
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors owned by the server.
	metrics *serverMetrics
	// stopThrottle ends the write throttle's eviction loop.
	stopThrottle func()
}

// createRequest is the JSON body for POST /documents.
type createRequest struct {
	// Title is required.
	Title *string `json:"title"`
	// Content is required.
	Content *string `json:"content"`
	// Metadata is optional; scalar values only.
	Metadata metadata.Map `json:"metadata"`
}

// updateRequest is the JSON body for PUT /documents/{id}. Absent or null
// fields keep their stored value.
type updateRequest struct {
	Title    *string      `json:"title"`
	Content  *string      `json:"content"`
	Metadata metadata.Map `json:"metadata"`
}

// searchRequest is the JSON body for POST /documents/search.
type searchRequest struct {
	// Query is the natural language search text. Required.
	Query *string `json:"query"`
	// NResults is the number of results to return (1..50, default 5).
	NResults *int `json:"n_results"`
}

// importRequest is the optional JSON body for POST /documents/import/rag/{id}.
type importRequest struct {
	Title         string       `json:"title"`
	Metadata      metadata.Map `json:"metadata"`
	JoinSeparator *string      `json:"joinSeparator"`
}

// errorResponse is the JSON body of every non-2xx response.
type errorResponse struct {
	Detail string `json:"detail"`
}
