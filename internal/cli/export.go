package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/caiatech/tunelab/internal/models"
)

func (c *CLI) exportCommand() *cobra.Command {
	var (
		systemInstruction     string
		systemInstructionFile string
		toolsPath             string
		dir                   string
		stdout                bool
	)

	cmd := &cobra.Command{
		Use:   "export DATASETS_JSON",
		Short: "Render datasets to dataset.jsonl",
		Long: `Render a JSON array of datasets (as printed by "tunelab import") to
line-delimited JSON. The system instruction and tools are applied to every line.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())

			datasets, err := readDatasets(args[0])
			if err != nil {
				return err
			}

			si := systemInstruction
			if systemInstructionFile != "" {
				b, err := os.ReadFile(systemInstructionFile)
				if err != nil {
					return fmt.Errorf("read system instruction: %w", err)
				}
				si = string(b)
			}

			var tools []models.Tool
			if toolsPath != "" {
				if err := readJSONFile(toolsPath, &tools); err != nil {
					return fmt.Errorf("read tools: %w", err)
				}
				if err := models.ValidateTools(tools); err != nil {
					return err
				}
			}

			if stdout {
				out, err := models.ExportToJSONL(datasets, si, tools)
				if err != nil {
					return err
				}
				_, err = io.WriteString(c.Out, out)
				return err
			}

			prog := newProgress(logger)
			if err := models.DownloadJSONL(cmd.Context(), models.DirTarget{Dir: dir}, datasets, si, tools); err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Exported %d datasets to %s", len(datasets), models.ExportFilename))
			return nil
		},
	}

	cmd.Flags().StringVarP(&systemInstruction, "system-instruction", "s", "", "system instruction applied to every line")
	cmd.Flags().StringVar(&systemInstructionFile, "system-instruction-file", "", "read the system instruction from a file")
	cmd.Flags().StringVarP(&toolsPath, "tools", "t", "", "JSON file holding a tool list")
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory to write dataset.jsonl into")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "print the JSONL instead of writing a file")
	cmd.MarkFlagsMutuallyExclusive("system-instruction", "system-instruction-file")

	return cmd
}

// readDatasets accepts either a bare array of datasets or the object printed
// by "tunelab import" with an items field.
func readDatasets(path string) ([]models.Dataset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var datasets []models.Dataset
	if err := json.Unmarshal(b, &datasets); err == nil {
		return datasets, nil
	}
	var wrapped struct {
		Items []models.Dataset `json:"items"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return nil, fmt.Errorf("%s: expected a dataset array: %w", path, err)
	}
	return wrapped.Items, nil
}

func readJSONFile(path string, dst any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
