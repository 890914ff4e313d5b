package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/54b3r/docvec-go/internal/embedder"
	"github.com/54b3r/docvec-go/internal/logging"
	"github.com/54b3r/docvec-go/internal/retrieval"
	"github.com/54b3r/docvec-go/internal/tracing"
)

// embedReport is the JSON printed by `docvec embed`.
type embedReport struct {
	Backend    string    `json:"backend"`
	Dimensions int       `json:"dimensions"`
	Norm       float64   `json:"norm"`
	Vector     []float64 `json:"vector,omitempty"`
}

// NewEmbedCmd constructs the `docvec embed` command, which embeds a piece of
// text with the configured backend. It is a quick way to check credentials
// and dimensions before ingesting anything.
func NewEmbedCmd() *cobra.Command {
	var showVector bool

	cmd := &cobra.Command{
		Use:   "embed [text]",
		Short: "Embed text with the configured backend and report the result",
		Long: `Embed the given text with the backend selected by EMBEDDING_PROVIDER and
print the backend name, vector length and L2 norm as JSON.

Examples:
  docvec embed "hello world"
  EMBEDDING_PROVIDER=ollama docvec embed --vector "hello world"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("embed: %w", err)
			}
			if handler, flush, ok := tracing.Setup(); ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
			}

			inner, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("embed: %w", err)
			}
			emb, err := retrieval.NewEmbedder(inner)
			if err != nil {
				return fmt.Errorf("embed: %w", err)
			}

			vecs, err := emb.EmbedStrings(ctx, []string{strings.Join(args, " ")})
			if err != nil {
				return fmt.Errorf("embed: %w", err)
			}
			if len(vecs) != 1 {
				return fmt.Errorf("embed: backend returned %d vectors for one text", len(vecs))
			}
			return writeEmbedReport(cmd.OutOrStdout(), inner.Name(), vecs[0], showVector)
		},
	}

	cmd.Flags().BoolVar(&showVector, "vector", false, "Include the full vector in the output")

	return cmd
}

func writeEmbedReport(w io.Writer, backend string, vec []float64, withVector bool) error {
	var sum float64
	for _, x := range vec {
		sum += x * x
	}
	report := embedReport{Backend: backend, Dimensions: len(vec), Norm: math.Sqrt(sum)}
	if withVector {
		report.Vector = vec
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
