package commands

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/54b3r/docvec-go/internal/budget"
	"github.com/54b3r/docvec-go/internal/ingestion"
	"github.com/54b3r/docvec-go/internal/logging"
	"github.com/54b3r/docvec-go/internal/metadata"
	"github.com/54b3r/docvec-go/internal/retrieval"
	"github.com/54b3r/docvec-go/internal/tracing"
)

// NewIngestCmd constructs the `docvec ingest` command, which reads files or
// URLs, chunks them and stores every chunk as a document.
func NewIngestCmd() *cobra.Command {
	var urls []string
	var files []string
	var title string
	var chunkTokens int
	var metaPairs []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk files or URLs into the document store",
		Long: `Read local files or fetch URLs, split them into chunks of roughly
--chunk-tokens tokens, and store each chunk as its own document.

Each chunk carries source, chunkIndex and totalChunks metadata, plus
sourceType, host and format inferred from the location. Values passed with
--meta take precedence over inferred ones.

Examples:
  docvec ingest --file ./notes/design.md
  docvec ingest --url https://example.com/handbook.html --title Handbook
  docvec ingest --file a.txt --file b.txt --meta team=search --chunk-tokens 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if len(urls) == 0 && len(files) == 0 {
				return fmt.Errorf("ingest: at least one --url or --file is required")
			}

			extra, err := parseMetaPairs(metaPairs)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			if !cmd.Flags().Changed("chunk-tokens") {
				chunkTokens = getEnvInt("CHUNK_SIZE_TOKENS", chunkTokens)
			}

			if handler, flush, ok := tracing.Setup(); ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
			}

			opened, err := openStore(ctx, log, nil)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = opened.Close() }()

			idx, err := retrieval.NewIndexer(opened.store)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			pipeline, err := ingestion.NewPipeline(idx, &ingestion.Config{ChunkTokens: chunkTokens})
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			sources := make([]ingestion.Source, 0, len(urls)+len(files))
			for _, u := range urls {
				sources = append(sources, ingestion.Source{URL: u, Title: title, Metadata: extra})
			}
			for _, f := range files {
				sources = append(sources, ingestion.Source{Path: f, Title: title, Metadata: extra})
			}

			log.Info("starting ingestion",
				slog.Int("sources", len(sources)),
				slog.Int("chunk_tokens", chunkTokens),
			)

			ids, err := pipeline.Ingest(ctx, sources, func(msg string) {
				log.Info(msg)
			})
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			if err != nil {
				return fmt.Errorf("ingest: pipeline failed after %d documents: %w", len(ids), err)
			}
			log.Info("ingestion complete", slog.Int("sources", len(sources)), slog.Int("documents", len(ids)))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&urls, "url", "u", nil, "URL to fetch and ingest (repeatable)")
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "Local file to ingest (repeatable)")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Title for every chunk (default: derived from the source)")
	cmd.Flags().IntVar(&chunkTokens, "chunk-tokens", budget.DefaultChunkTokens, "Target chunk size in estimated tokens (env: CHUNK_SIZE_TOKENS)")
	cmd.Flags().StringArrayVarP(&metaPairs, "meta", "m", nil, "Extra metadata as key=value (repeatable)")

	return cmd
}

// parseMetaPairs turns key=value flags into string metadata.
func parseMetaPairs(pairs []string) (metadata.Map, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(metadata.Map, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --meta %q, expected key=value", p)
		}
		out[strings.TrimSpace(k)] = metadata.String(v)
	}
	return out, nil
}
