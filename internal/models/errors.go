package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// FileReadError is returned when the import source could not be read. Its
// message is fixed so callers can surface it to users as-is.
type FileReadError struct {
	Err error
}

func (e *FileReadError) Error() string { return "Error reading file" }

func (e *FileReadError) Unwrap() error { return e.Err }

// LineParseError describes one input line that was dropped during import.
type LineParseError struct {
	Line int // 1-based
	Err  error
}

func (e *LineParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineParseError) Unwrap() error { return e.Err }
