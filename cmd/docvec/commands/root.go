// Package commands defines all Cobra CLI commands for the docvec binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/docvec-go/internal/audit"
	"github.com/54b3r/docvec-go/internal/config"
	"github.com/54b3r/docvec-go/internal/logging"
)

// configPath holds the --config flag value for config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docvec",
		Short: "docvec: a document store with semantic search",
		Long: `docvec stores titled text documents with flat metadata and finds them
again by meaning. Documents are embedded on write and kept in a local SQLite
index, an in-memory index, or a Qdrant collection.

The index backend is selected via DOCVEC_INDEX (sqlite, memory, qdrant) and
the embedding backend via EMBEDDING_PROVIDER (hash, ollama, openai, azure),
either as environment variables or in a YAML/TOML config file
(~/.docvec/config.yaml). See 'docvec --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Env vars always override config file values.
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML or TOML config file (default: ~/.docvec/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewImportRAGCmd(),
		NewSearchCmd(),
		NewEmbedCmd(),
		NewGetCmd(),
		NewDeleteCmd(),
		NewVersionCmd(),
	)

	return root
}
