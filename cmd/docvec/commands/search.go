package commands

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/54b3r/docvec-go/internal/budget"
	"github.com/54b3r/docvec-go/internal/logging"
	"github.com/54b3r/docvec-go/internal/metadata"
	"github.com/54b3r/docvec-go/internal/retrieval"
	"github.com/54b3r/docvec-go/internal/tracing"
)

// previewRunes bounds how much of each result's content is printed.
const previewRunes = 200

// NewSearchCmd constructs the `docvec search` command, which runs a semantic
// search and prints the ranked results.
func NewSearchCmd() *cobra.Command {
	var n int
	var threshold float64
	var full bool
	var maxTokens int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search documents by meaning",
		Long: `Embed the query and print the most similar documents, best first.

Examples:
  docvec search "how do I rotate credentials"
  docvec search -n 10 --min-score 0.3 "quarterly revenue"
  docvec search -n 20 --max-tokens 2000 --full "onboarding checklist"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if n < 1 || n > 50 {
				return fmt.Errorf("search: -n must be between 1 and 50")
			}

			if handler, flush, ok := tracing.Setup(); ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
			}

			opened, err := openStore(ctx, log, nil)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer func() { _ = opened.Close() }()

			r, err := retrieval.NewRetriever(opened.store, n)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			opts := []retriever.Option{retriever.WithTopK(n)}
			if cmd.Flags().Changed("min-score") {
				opts = append(opts, retriever.WithScoreThreshold(threshold))
			}

			query := strings.Join(args, " ")
			docs, err := r.Retrieve(ctx, query, opts...)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			found := len(docs)
			docs = budget.TrimDocuments(docs, maxTokens)
			log.Debug("search complete",
				slog.Int("found", found),
				slog.Int("shown", len(docs)),
				slog.Int("est_tokens", budget.EstimateDocuments(docs)),
			)

			printResults(cmd.OutOrStdout(), docs, full)
			return nil
		},
	}

	cmd.Flags().IntVarP(&n, "n-results", "n", retrieval.DefaultTopK, "Number of results (1-50)")
	cmd.Flags().Float64Var(&threshold, "min-score", 0, "Drop results with a lower similarity score")
	cmd.Flags().BoolVar(&full, "full", false, "Print full content instead of a preview")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Drop the lowest-ranked results once their content exceeds this many estimated tokens (0 = no cap)")

	return cmd
}

// printResults writes one block per document: rank, score, title and id,
// then metadata and a content preview.
func printResults(w io.Writer, docs []*schema.Document, full bool) {
	if len(docs) == 0 {
		fmt.Fprintln(w, color.YellowString("no results"))
		return
	}

	head := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.Faint)
	for i, d := range docs {
		title, _ := d.MetaData[metadata.TitleKey].(string)
		head.Fprintf(w, "%d. %s", i+1, title)
		fmt.Fprintf(w, "  %s\n", color.GreenString("%.4f", d.Score()))
		dim.Fprintf(w, "   id: %s\n", d.ID)

		keys := make([]string, 0, len(d.MetaData))
		for k := range d.MetaData {
			if k != metadata.TitleKey && !strings.HasPrefix(k, "_") {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			dim.Fprintf(w, "   %s: %v\n", k, d.MetaData[k])
		}

		content := d.Content
		if !full {
			content = preview(content, previewRunes)
		}
		fmt.Fprintf(w, "   %s\n\n", strings.ReplaceAll(content, "\n", "\n   "))
	}
}

// preview truncates s to at most limit runes, adding an ellipsis when cut.
func preview(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
