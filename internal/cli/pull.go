package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/caiatech/tunelab/internal/db"
	"github.com/caiatech/tunelab/internal/models"
	"github.com/caiatech/tunelab/internal/workspace"
)

func (c *CLI) pullCommand() *cobra.Command {
	var (
		databaseURL string
		dataset     string
		limit       int
		dir         string
	)

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Export a dataset stored in a datalab Postgres database",
		Long: `Read the items of a datalab dataset, parse each one as a JSONL record and
write them to dataset.jsonl. Items that do not parse are logged and skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				return errors.New("--database-url or TUNELAB_DATABASE_URL is required")
			}
			logger := loggerFromContext(cmd.Context())
			prog := newProgress(logger)

			database, err := db.Open(cmd.Context(), databaseURL, db.Options{MaxOpenConns: 1})
			if err != nil {
				return fmt.Errorf("db open: %w", err)
			}
			defer database.Close()

			im := &models.Importer{Logger: logger}
			report, err := models.ImportDatalabItems(cmd.Context(), database, im, models.DatalabItemsParams{
				Dataset: dataset,
				Limit:   limit,
			})
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					return fmt.Errorf("dataset %q not found", dataset)
				}
				return err
			}

			ws := workspace.New()
			ws.Load(report.Records)
			if err := ws.Download(cmd.Context(), models.DirTarget{Dir: dir}); err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Pulled %d datasets from %q, skipped %d", ws.Len(), dataset, len(report.Skipped)))
			return nil
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", os.Getenv("TUNELAB_DATABASE_URL"), "Postgres URL (or set TUNELAB_DATABASE_URL)")
	cmd.Flags().StringVar(&dataset, "dataset", "", "datalab dataset name")
	cmd.Flags().IntVar(&limit, "limit", 0, "read at most N items (0 = all)")
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory to write dataset.jsonl into")
	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}
