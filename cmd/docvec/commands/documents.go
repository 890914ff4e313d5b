package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/docvec-go/internal/logging"
)

// errNotFound is returned by get and delete for unknown ids.
var errNotFound = errors.New("document not found")

// NewGetCmd constructs the `docvec get` command, which prints a document as
// JSON.
func NewGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [id]",
		Short: "Print a document as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			opened, err := openStore(ctx, log, nil)
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}
			defer func() { _ = opened.Close() }()

			doc, found, err := opened.store.Get(ctx, args[0])
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}
			if !found {
				return fmt.Errorf("get %s: %w", args[0], errNotFound)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}
}

// NewDeleteCmd constructs the `docvec delete` command.
func NewDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id...]",
		Short: "Delete one or more documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			opened, err := openStore(ctx, log, nil)
			if err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			defer func() { _ = opened.Close() }()

			var missing []string
			for _, id := range args {
				deleted, err := opened.store.Delete(ctx, id)
				if err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
				if !deleted {
					missing = append(missing, id)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
			if len(missing) > 0 {
				return fmt.Errorf("delete %v: %w", missing, errNotFound)
			}
			return nil
		},
	}
}
