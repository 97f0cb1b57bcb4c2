package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kotaeru-ai/kensaku/internal/chunk"
	"github.com/kotaeru-ai/kensaku/internal/ingest"
	"github.com/kotaeru-ai/kensaku/internal/output"
	"github.com/kotaeru-ai/kensaku/internal/store"
)

// ingestOptions holds CLI flags for ingest.
type ingestOptions struct {
	tenant      string
	docID       string
	name        string
	contentType string
	hint        string
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest <file...>",
		Short: "Ingest documents into the corpus",
		Long: `Ingest one or more text files into a tenant's corpus.

Each file is chunked, embedded if the embedding service is reachable,
and indexed for keyword and vector search. Re-ingesting a document ID
replaces its previous content.

Examples:
  kensaku ingest --tenant acme manual.txt
  kensaku ingest --tenant acme --hint record inventory.tsv
  kensaku ingest --tenant acme --id faq --name "FAQ 2026" faq.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.tenant, "tenant", "t", "", "Tenant ID (required)")
	cmd.Flags().StringVar(&opts.docID, "id", "", "Document ID (default: file name; single file only)")
	cmd.Flags().StringVar(&opts.name, "name", "", "Display name (default: file name; single file only)")
	cmd.Flags().StringVar(&opts.contentType, "type", "text/plain", "Content type stored with the document")
	cmd.Flags().StringVar(&opts.hint, "hint", "auto", "Chunking hint: auto, record, freeform")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func runIngest(cmd *cobra.Command, files []string, opts ingestOptions) error {
	ctx := cmd.Context()
	cfg := configFromContext(ctx)
	out := output.New(cmd.OutOrStdout())

	hint, err := parseHint(opts.hint)
	if err != nil {
		return err
	}
	if len(files) > 1 && (opts.docID != "" || opts.name != "") {
		return fmt.Errorf("--id and --name apply to a single file")
	}

	a, err := openApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	// Probing the embedder up front sizes the vector index and decides
	// whether this run produces vectors at all.
	if a.vector == nil {
		if a.embedder.Available(ctx) {
			if _, err := a.embedder.Embed(ctx, "kensaku"); err == nil {
				if err := a.ensureVector(a.embedder.Dimensions()); err != nil {
					return fmt.Errorf("create vector index: %w", err)
				}
			}
		}
		if a.vector == nil {
			out.Warningf("embedding service unreachable, ingesting without vectors")
		}
	}

	chunker := chunk.New(chunk.Options{
		TargetSize:    cfg.Chunking.TargetSize,
		MaxSize:       cfg.Chunking.MaxSize,
		MinCutSize:    cfg.Chunking.MinCut,
		Overlap:       cfg.Chunking.Overlap,
		MinRecordSize: cfg.Chunking.MinRecordSize,
	})

	pipelineOpts := []ingest.Option{
		ingest.WithPoolSize(cfg.Ingest.Workers),
		ingest.WithBatchSize(cfg.Ingest.EmbedBatchSize),
		ingest.WithLogger(slog.Default()),
		ingest.WithEmbedder(a.embedder),
	}
	if a.vector != nil {
		pipelineOpts = append(pipelineOpts, ingest.WithVectorIndex(a.vector))
	}
	pipeline, err := ingest.NewPipeline(a.corpus, a.keyword, chunker, pipelineOpts...)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	defer pipeline.Close()

	for i, file := range files {
		report, err := ingestFile(ctx, pipeline, file, hint, opts)
		if err != nil {
			out.Errorf("%s: %v", file, err)
			return err
		}
		out.Progress(i+1, len(files), filepath.Base(file))
		out.Successf("%s: %d chunks (%d embedded) in %s",
			report.DocumentID, report.Chunks, report.Embedded, report.Elapsed.Round(time.Millisecond))
	}

	if err := a.saveVector(); err != nil {
		return fmt.Errorf("save vector index: %w", err)
	}
	return nil
}

func ingestFile(ctx context.Context, pipeline *ingest.Pipeline, file string, hint chunk.Hint, opts ingestOptions) (*ingest.Report, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	docID := opts.docID
	if docID == "" {
		docID = filepath.Base(file)
	}
	name := opts.name
	if name == "" {
		name = filepath.Base(file)
	}

	doc := &store.Document{
		ID:          docID,
		TenantID:    opts.tenant,
		Name:        name,
		ContentType: opts.contentType,
		Active:      true,
	}
	return pipeline.IngestDocument(ctx, doc, string(data), hint)
}

func parseHint(s string) (chunk.Hint, error) {
	switch strings.ToLower(s) {
	case "auto", "":
		return chunk.HintAuto, nil
	case "record":
		return chunk.HintRecord, nil
	case "freeform":
		return chunk.HintFreeform, nil
	default:
		return chunk.HintAuto, fmt.Errorf("unknown chunking hint %q (want auto, record, or freeform)", s)
	}
}
