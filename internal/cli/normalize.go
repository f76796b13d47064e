package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caiatech/tunelab/internal/models"
	"github.com/caiatech/tunelab/internal/workspace"
)

func (c *CLI) normalizeCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "normalize FILE",
		Short: "Load a JSONL file into a working set and write it back out",
		Long: `Load a JSONL file the way the editor does, then export it again. Bad lines
are dropped, and the first system instruction and tool list found are applied
to every line of the output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			prog := newProgress(logger)

			im := &models.Importer{Logger: logger}
			report, err := im.Import(cmd.Context(), models.FileSource(args[0]))
			if err != nil {
				return err
			}

			ws := workspace.New()
			ws.Load(report.Records)
			if err := ws.Download(cmd.Context(), models.DirTarget{Dir: dir}); err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Wrote %d datasets, dropped %d lines", ws.Len(), len(report.Skipped)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory to write dataset.jsonl into")
	return cmd
}
