package commands

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/docai-go/internal/extract"
	"github.com/54b3r/docai-go/internal/ingestion"
	"github.com/54b3r/docai-go/internal/logging"
	"github.com/54b3r/docai-go/internal/rag"
)

// NewIngestCmd constructs the `docai ingest` command, which extracts and
// indexes local files exactly as POST /upload does.
func NewIngestCmd() *cobra.Command {
	var files []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Extract and index local documents for retrieval",
		Long: `Extract the text of one or more local files, register them and index their
chunks in the configured vector index.

Documents are registered in the state store selected by DOCAI_HISTORY_DB.
The default store lives in memory, so set DOCAI_HISTORY_DB=sqlite (or a file
path) to share the printed document IDs with 'docai ask --doc' or a running
server's POST /generate.

Supported types: .txt, .md, .sql, .pdf, .docx, .doc

Examples:
  DOCAI_HISTORY_DB=sqlite docai ingest --file handbook.pdf
  docai ingest -f notes.md -f schema.sql
  VECTOR_BACKEND=pgvector PGVECTOR_DSN=postgres://... docai ingest -f report.docx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(files) == 0 {
				return fmt.Errorf("ingest: at least one --file is required")
			}

			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			state, err := openState(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = state.Close() }()

			backend, err := buildRAG(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer backend.Close()

			pipeline, err := newPipeline(backend, state)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(out, "FILE\tDOCUMENT ID\tCHUNKS\tINDEXED\tSKIPPED")

			for _, path := range files {
				name := filepath.Base(path)
				text, err := extract.Extract(ctx, path, name)
				if err != nil {
					return fmt.Errorf("ingest: %s: %w", path, err)
				}

				now := time.Now()
				res, err := pipeline.Ingest(ctx, rag.Document{
					ID:        ingestion.NewDocumentID(name, now),
					Name:      name,
					Text:      text,
					CreatedAt: now,
				})
				if err != nil {
					return fmt.Errorf("ingest: %s: %w", path, err)
				}
				for _, o := range res.Outcomes {
					if o.Status == ingestion.StatusSkipped {
						log.Warn("chunk skipped",
							slog.String("file", name),
							slog.Int("chunk_index", o.Index),
							slog.String("reason", o.Reason),
						)
					}
				}
				fmt.Fprintf(out, "%s\t%s\t%d\t%d\t%d\n", name, res.DocumentID, res.Attempted, res.Indexed(), res.Skipped())
			}
			return out.Flush()
		},
	}

	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "File to ingest (repeatable)")

	return cmd
}
