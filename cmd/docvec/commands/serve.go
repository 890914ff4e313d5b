package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/docvec-go/internal/index"
	"github.com/54b3r/docvec-go/internal/logging"
	"github.com/54b3r/docvec-go/internal/server"
	"github.com/54b3r/docvec-go/internal/tracing"
)

// NewServeCmd constructs the `docvec serve` command, which starts the HTTP
// server exposing the document store.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docvec HTTP server",
		Long: `Start the docvec HTTP server.

The server exposes the document store as a JSON REST API under /documents,
plus /health (liveness), /ready (dependency probes) and /metrics
(Prometheus). Set DOCVEC_API_KEY to require a Bearer token on /documents.
Set RAG_SERVICE_URL to enable POST /documents/import/rag/{id}.

Examples:
  docvec serve
  docvec serve --port 9090
  DOCVEC_INDEX=qdrant docvec serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("index", getEnvOrDefault("DOCVEC_INDEX", index.BackendSQLite)))

			// Langfuse tracing is opt-in and a no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			opened, err := openStore(ctx, log, prometheus.DefaultRegisterer)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() {
				if cerr := opened.Close(); cerr != nil {
					log.Warn("serve: closing index", slog.Any("error", cerr))
				}
			}()

			// Config file values land in the environment after flag defaults
			// are computed, so unset flags are resolved here.
			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("DOCVEC_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("DOCVEC_PORT", port)
			}

			var pingers []server.Pinger
			if p, ok := opened.engine.(index.Pinger); ok {
				pingers = append(pingers, server.NewPinger(getEnvOrDefault("DOCVEC_INDEX", index.BackendSQLite), p.Ping))
			}

			cfg := &server.Config{
				Host:      host,
				Port:      port,
				Logger:    log,
				APIKey:    os.Getenv("DOCVEC_API_KEY"),
				RateLimit: getEnvFloat("DOCVEC_RATE_LIMIT", 0),
				RateBurst: getEnvInt("DOCVEC_RATE_BURST", 0),
			}

			rag, err := newRAGClient()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			if rag != nil {
				cfg.RAG = rag
				pingers = append(pingers, server.NewPinger("rag", rag.Ping))
				log.Info("rag import enabled", slog.String("url", os.Getenv("RAG_SERVICE_URL")))
			}
			cfg.Pingers = pingers

			srv, err := server.New(opened.store, cfg)
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (env: DOCVEC_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (env: DOCVEC_PORT)")

	return cmd
}
