package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/docvec-go/internal/docstore"
	"github.com/54b3r/docvec-go/internal/logging"
)

// NewImportRAGCmd constructs the `docvec import-rag` command, which copies a
// document from the upstream chunking service into the store.
func NewImportRAGCmd() *cobra.Command {
	var title string
	var separator string
	var metaPairs []string

	cmd := &cobra.Command{
		Use:   "import-rag [rag-document-id]",
		Short: "Import a document from the RAG service",
		Long: `Fetch every chunk of a document held by the RAG service (RAG_SERVICE_URL),
join them in order and store the result as a single document.

The title defaults to the upstream filename. The new document records
ragDocumentId, ragFilename and importedFrom=rag in its metadata.

Examples:
  docvec import-rag 3f2b8c1e-4d5a-4b6c-8d7e-9f0a1b2c3d4e
  docvec import-rag --title "Q3 report" --separator " " 3f2b8c1e-4d5a-4b6c-8d7e-9f0a1b2c3d4e`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			rag, err := newRAGClient()
			if err != nil {
				return fmt.Errorf("import-rag: %w", err)
			}
			if rag == nil {
				return fmt.Errorf("import-rag: RAG_SERVICE_URL is not set")
			}

			extra, err := parseMetaPairs(metaPairs)
			if err != nil {
				return fmt.Errorf("import-rag: %w", err)
			}

			opened, err := openStore(ctx, log, nil)
			if err != nil {
				return fmt.Errorf("import-rag: %w", err)
			}
			defer func() { _ = opened.Close() }()

			req := docstore.ImportRequest{Title: title, Metadata: extra}
			if cmd.Flags().Changed("separator") {
				req.JoinSeparator = &separator
			}

			doc, err := opened.store.ImportRAG(ctx, rag, args[0], req)
			if err != nil {
				return fmt.Errorf("import-rag: %w", err)
			}
			log.Info("import complete", slog.String("id", doc.ID), slog.String("title", doc.Title))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Title for the imported document (default: upstream filename)")
	cmd.Flags().StringVar(&separator, "separator", docstore.DefaultJoinSeparator, "String placed between chunks")
	cmd.Flags().StringArrayVarP(&metaPairs, "meta", "m", nil, "Extra metadata as key=value (repeatable)")

	return cmd
}
