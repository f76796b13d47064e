package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/caiatech/tunelab/internal/models"
	"github.com/caiatech/tunelab/internal/workspace"
)

const (
	variantDatasets = "datasets"
	variantLines    = "lines"
	variantExports  = "exports"
)

// importOutput mirrors what the editor loads: the datasets plus the system
// instruction and tools they share.
type importOutput struct {
	Items             any           `json:"items"`
	SystemInstruction string        `json:"system_instruction,omitempty"`
	Tools             []models.Tool `json:"tools"`
}

func (c *CLI) importCommand() *cobra.Command {
	var (
		variant    string
		badOut     string
		out        string
		maxRecords int
	)

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Parse a JSONL dataset file and print it as JSON",
		Long: `Parse a line-delimited JSON dataset file. Lines that are not valid JSON
objects are logged and skipped; the rest are printed as a JSON document.

Variants:
  datasets  datasets with positional ids "0", "1", ... (default)
  lines     datasets whose id is the source line index
  exports   the raw per-line records, including system_instruction and tools`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			variant = strings.ToLower(strings.TrimSpace(variant))
			switch variant {
			case variantDatasets, variantLines, variantExports:
			default:
				return fmt.Errorf("invalid variant: %q", variant)
			}

			logger := loggerFromContext(cmd.Context())
			im := &models.Importer{Logger: logger}
			if badOut != "" {
				f, err := os.Create(badOut)
				if err != nil {
					return fmt.Errorf("open bad-out: %w", err)
				}
				defer f.Close()
				im.Rejects = f
			}

			prog := newProgress(logger)
			report, err := im.Import(cmd.Context(), models.FileSource(args[0]))
			if err != nil {
				return err
			}
			if maxRecords > 0 && len(report.Records) > maxRecords {
				report.Records = report.Records[:maxRecords]
				report.Lines = report.Lines[:maxRecords]
			}

			si, tools := workspace.SharedSettings(report.Records)
			if tools == nil {
				tools = []models.Tool{}
			}
			res := importOutput{SystemInstruction: si, Tools: tools}
			switch variant {
			case variantExports:
				res.Items = report.Records
			case variantLines:
				res.Items = report.LineDatasets()
			default:
				res.Items = report.Datasets()
			}

			if err := c.writeJSON(out, res); err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Imported %d records, skipped %d", len(report.Records), len(report.Skipped)))
			return nil
		},
	}

	cmd.Flags().StringVar(&variant, "variant", variantDatasets, "output shape: datasets|lines|exports")
	cmd.Flags().StringVar(&badOut, "bad-out", "", "write skipped lines to this file")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write JSON here instead of stdout")
	cmd.Flags().IntVar(&maxRecords, "max", 0, "keep at most N records (0 = unlimited)")

	return cmd
}
