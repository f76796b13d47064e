package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"
)

// Source yields the full text of an import file.
type Source interface {
	ReadAll(ctx context.Context) ([]byte, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]byte, error)

func (f SourceFunc) ReadAll(ctx context.Context) ([]byte, error) { return f(ctx) }

// FileSource reads the file at path.
func FileSource(path string) Source {
	return SourceFunc(func(ctx context.Context) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return os.ReadFile(path)
	})
}

// ReaderSource drains r.
func ReaderSource(r io.Reader) Source {
	return SourceFunc(func(ctx context.Context) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return io.ReadAll(r)
	})
}

// BytesSource returns b unchanged.
func BytesSource(b []byte) Source {
	return SourceFunc(func(ctx context.Context) ([]byte, error) {
		return b, nil
	})
}

// RowScanner is the subset of *sql.Rows the row importer needs.
type RowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// ImportReport is the outcome of one import. Lines[i] is the 0-based index
// of the source line Records[i] came from.
type ImportReport struct {
	Records []DatasetExport
	Lines   []int
	Skipped []*LineParseError
}

// Importer turns line-delimited JSON into export records. A line that cannot
// be parsed is logged, copied to Rejects when set, and dropped; the rest of
// the file still loads.
type Importer struct {
	Logger  *log.Logger
	Rejects io.Writer
}

func (im *Importer) logger() *log.Logger {
	if im != nil && im.Logger != nil {
		return im.Logger
	}
	return log.Default()
}

// Import reads src and parses every line. The only error returned is a
// *FileReadError when src itself fails.
func (im *Importer) Import(ctx context.Context, src Source) (ImportReport, error) {
	data, err := src.ReadAll(ctx)
	if err != nil {
		im.logger().Error("Error reading file", "err", err)
		return ImportReport{}, &FileReadError{Err: err}
	}

	report := ImportReport{Records: []DatasetExport{}, Lines: []int{}}
	text := trimJS(string(data))
	if text == "" {
		return report, nil
	}

	for idx, line := range strings.Split(text, "\n") {
		rec, err := parseExportLine([]byte(line))
		if err != nil {
			report.Skipped = append(report.Skipped, im.reject(idx+1, line, err))
			continue
		}
		im.noteOddParts(idx+1, rec)
		report.Records = append(report.Records, rec)
		report.Lines = append(report.Lines, idx)
	}
	return report, nil
}

// ImportExports returns the parsed records of src in file order.
func (im *Importer) ImportExports(ctx context.Context, src Source) ([]DatasetExport, error) {
	report, err := im.Import(ctx, src)
	if err != nil {
		return nil, err
	}
	return report.Records, nil
}

// ImportDatasets returns one Dataset per parsed line. The id is the 0-based
// index of the source line, so dropped lines leave gaps in the ids.
func (im *Importer) ImportDatasets(ctx context.Context, src Source) ([]Dataset, error) {
	report, err := im.Import(ctx, src)
	if err != nil {
		return nil, err
	}
	return report.LineDatasets(), nil
}

// Datasets converts the records with positional ids.
func (r ImportReport) Datasets() []Dataset {
	return ConvertRawDatasets(r.Records)
}

// LineDatasets converts the records using source line indexes as ids.
func (r ImportReport) LineDatasets() []Dataset {
	out := make([]Dataset, len(r.Records))
	for i, rec := range r.Records {
		out[i] = Dataset{ID: strconv.Itoa(r.Lines[i]), Contents: rec.Contents}
	}
	return out
}

// ImportRows applies the same per-line policy to rows holding one JSON
// object each, scanned as (source_ref, data).
func (im *Importer) ImportRows(ctx context.Context, rows RowScanner) (ImportReport, error) {
	report := ImportReport{Records: []DatasetExport{}, Lines: []int{}}
	idx := 0
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		var sourceRef string
		var data []byte
		if err := rows.Scan(&sourceRef, &data); err != nil {
			return report, fmt.Errorf("scan row %d: %w", idx+1, err)
		}
		rec, err := parseExportLine(data)
		if err != nil {
			lpe := im.reject(idx+1, string(data), err)
			im.logger().Debug("dropped row", "source_ref", sourceRef)
			report.Skipped = append(report.Skipped, lpe)
		} else {
			im.noteOddParts(idx+1, rec)
			report.Records = append(report.Records, rec)
			report.Lines = append(report.Lines, idx)
		}
		idx++
	}
	if err := rows.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// noteOddParts logs parts that carry no payload or more than one. They are
// kept as they are.
func (im *Importer) noteOddParts(lineNo int, rec DatasetExport) {
	for ci, c := range rec.Contents {
		for pi, p := range c.Parts {
			if k := p.Kind(); k == PartKindEmpty || k == PartKindMixed {
				im.logger().Debug("unusual part", "line", lineNo, "content", ci, "part", pi, "kind", k)
			}
		}
	}
}

func (im *Importer) reject(lineNo int, raw string, cause error) *LineParseError {
	lpe := &LineParseError{Line: lineNo, Err: cause}
	im.logger().Error("Error parsing line", "line", lineNo, "err", cause)
	if im != nil && im.Rejects != nil {
		_, _ = io.WriteString(im.Rejects, raw+"\n")
	}
	return lpe
}

// ConvertRawDatasets assigns positional ids to export records. Only the
// contents are carried over.
func ConvertRawDatasets(exports []DatasetExport) []Dataset {
	out := make([]Dataset, len(exports))
	for i, e := range exports {
		contents := e.Contents
		if contents == nil {
			contents = []Content{}
		}
		out[i] = Dataset{ID: strconv.Itoa(i), Contents: contents}
	}
	return out
}

var errNotObject = errors.New("expected a JSON object")

func parseExportLine(line []byte) (DatasetExport, error) {
	if !gjson.ValidBytes(line) {
		return DatasetExport{}, errors.New("invalid json")
	}
	if res := gjson.ParseBytes(line); !res.IsObject() {
		return DatasetExport{}, errNotObject
	}

	var rec DatasetExport
	if err := json.Unmarshal(line, &rec); err != nil {
		return DatasetExport{}, err
	}
	if rec.Contents == nil {
		rec.Contents = []Content{}
	}
	if rec.Tools == nil {
		rec.Tools = []Tool{}
	}
	return rec, nil
}

// trimJS trims the same characters as JavaScript's String.prototype.trim.
func trimJS(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		if r == '\u0085' {
			return false
		}
		return r == '\uFEFF' || unicode.IsSpace(r)
	})
}
