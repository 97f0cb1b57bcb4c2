package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kotaeru-ai/kensaku/internal/chunk"
	"github.com/kotaeru-ai/kensaku/internal/ingest"
	"github.com/kotaeru-ai/kensaku/internal/output"
)

func newDocumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "Manage a tenant's documents",
	}

	cmd.AddCommand(newDocumentsListCmd())
	cmd.AddCommand(newDocumentsRemoveCmd())
	cmd.AddCommand(newDocumentsActivateCmd(true))
	cmd.AddCommand(newDocumentsActivateCmd(false))

	return cmd
}

func newDocumentsListCmd() *cobra.Command {
	var tenant string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a tenant's documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFromContext(cmd.Context())
			out := output.New(cmd.OutOrStdout())

			a, err := openApp(cfg, false)
			if err != nil {
				return err
			}
			defer a.close()

			docs, err := a.corpus.Documents(cmd.Context(), tenant)
			if err != nil {
				return fmt.Errorf("list documents: %w", err)
			}
			if len(docs) == 0 {
				out.Statusf("", "No documents for tenant %q", tenant)
				return nil
			}

			counts, err := a.corpus.DocumentChunkCounts(cmd.Context(), tenant)
			if err != nil {
				return fmt.Errorf("count chunks: %w", err)
			}

			out.Statusf("📚", "%d documents for tenant %q:", len(docs), tenant)
			for _, d := range docs {
				state := "active"
				if !d.Active {
					state = "inactive"
				}
				out.Statusf("", "%s  (%s, %d chunks, %s)", d.ID, state, counts[d.ID], d.CreatedAt.Format("2006-01-02"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "Tenant ID (required)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func newDocumentsRemoveCmd() *cobra.Command {
	var tenant string

	cmd := &cobra.Command{
		Use:     "remove <document-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a document and its chunks",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromContext(cmd.Context())
			out := output.New(cmd.OutOrStdout())

			a, err := openApp(cfg, true)
			if err != nil {
				return err
			}
			defer a.close()

			pipeline, err := ingest.NewPipeline(a.corpus, a.keyword, chunk.New(chunk.Options{}),
				ingest.WithVectorIndex(a.vector),
				ingest.WithLogger(slog.Default()))
			if err != nil {
				return err
			}
			defer pipeline.Close()

			if err := pipeline.DeleteDocument(cmd.Context(), tenant, args[0]); err != nil {
				return err
			}
			if err := a.saveVector(); err != nil {
				return fmt.Errorf("save vector index: %w", err)
			}
			out.Successf("removed %s", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "Tenant ID (required)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

// newDocumentsActivateCmd builds the activate or deactivate subcommand.
// Deactivated documents keep their chunks but stop surfacing in search.
func newDocumentsActivateCmd(active bool) *cobra.Command {
	var tenant string

	use, short := "activate <document-id>", "Re-enable a document for search"
	if !active {
		use, short = "deactivate <document-id>", "Hide a document from search without deleting it"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromContext(cmd.Context())
			out := output.New(cmd.OutOrStdout())

			a, err := openApp(cfg, true)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.corpus.SetDocumentActive(cmd.Context(), tenant, args[0], active); err != nil {
				return err
			}
			if active {
				out.Successf("activated %s", args[0])
			} else {
				out.Successf("deactivated %s", args[0])
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "Tenant ID (required)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
