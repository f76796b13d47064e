package models

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// SaveTarget hands out a writer for one named file. The writer is held only
// for the duration of a single save and must be closed afterwards.
type SaveTarget interface {
	Open(name, mediaType string) (io.WriteCloser, error)
}

// DirTarget saves files into a directory.
type DirTarget struct {
	Dir string
}

func (t DirTarget) Open(name, mediaType string) (io.WriteCloser, error) {
	dir := t.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return os.Create(filepath.Join(dir, name))
}

// BuildExportLines applies the shared system instruction and tool list to
// every dataset. Contents are referenced, not copied.
func BuildExportLines(datasets []Dataset, systemInstruction string, tools []Tool) []DatasetExport {
	var si *Content
	if trimJS(systemInstruction) != "" {
		si = &Content{Parts: []Part{TextPart(systemInstruction)}}
	}
	if len(tools) == 0 {
		tools = nil
	}

	out := make([]DatasetExport, len(datasets))
	for i, d := range datasets {
		contents := d.Contents
		if contents == nil {
			contents = []Content{}
		}
		out[i] = DatasetExport{
			SystemInstruction: si,
			Contents:          contents,
			Tools:             tools,
		}
	}
	return out
}

// WriteJSONL streams one line per dataset to w, separated by a single
// newline and without a trailing one.
func WriteJSONL(w io.Writer, datasets []Dataset, systemInstruction string, tools []Tool) error {
	bw := bufio.NewWriter(w)

	for i, line := range BuildExportLines(datasets, systemInstruction, tools) {
		data, err := encodeJSON(line)
		if err != nil {
			return fmt.Errorf("encode dataset %d: %w", i, err)
		}
		if i > 0 {
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
		if _, err := bw.Write(data); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ExportToJSONL renders datasets as line-delimited JSON. An empty or
// whitespace-only systemInstruction is left out, as is an empty tool list.
func ExportToJSONL(datasets []Dataset, systemInstruction string, tools []Tool) (string, error) {
	var b strings.Builder
	if err := WriteJSONL(&b, datasets, systemInstruction, tools); err != nil {
		return "", err
	}
	return b.String(), nil
}

// DownloadJSONL renders datasets and offers them to target as dataset.jsonl.
// The handle opened on target is released before returning, whatever the
// outcome of the write.
func DownloadJSONL(ctx context.Context, target SaveTarget, datasets []Dataset, systemInstruction string, tools []Tool) (err error) {
	content, err := ExportToJSONL(datasets, systemInstruction, tools)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	w, err := target.Open(ExportFilename, JSONLMediaType)
	if err != nil {
		return fmt.Errorf("open %s: %w", ExportFilename, err)
	}
	defer func() {
		err = errors.Join(err, w.Close())
	}()

	_, err = io.WriteString(w, content)
	return err
}
