// Package cli implements the tunelab command-line interface.
//
// Commands read and write the line-delimited JSON files consumed by the
// training pipeline:
//   - import: parse a JSONL file and print its datasets as JSON
//   - export: render datasets (JSON) to dataset.jsonl
//   - normalize: load a JSONL file into a working set and write it back out
//   - pull: read a dataset out of a datalab Postgres database
//
// All commands accept --verbose (-v) for debug logging.
package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Out    io.Writer
}

// New creates a CLI that logs to logw and prints results to out.
func New(out, logw io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(logw, level), Out: out}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "tunelab",
		Short:        "tunelab builds and converts fine-tuning datasets",
		Long:         `tunelab imports, edits and exports line-delimited JSON datasets of conversation turns and tool declarations for model training.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.AddCommand(c.importCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.normalizeCommand())
	root.AddCommand(c.pullCommand())

	return root
}

// writeJSON pretty-prints v to path, or to c.Out when path is empty.
func (c *CLI) writeJSON(path string, v any) error {
	w := c.Out
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
