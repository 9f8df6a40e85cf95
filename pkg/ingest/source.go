// Package ingest reads row-oriented sources (delimited text and spreadsheets)
// and turns them into fixed-size batches of text columns.
//
// A Batcher walks its source exactly once. The first row is read ahead to
// resolve the header, and one row is always held back after a batch is
// built so that the caller can tell whether another batch follows without
// counting the source up front.
package ingest

import (
	"path/filepath"
	"strings"
)

// RowSource yields the raw fields of each row in order. Next returns io.EOF
// after the last row.
type RowSource interface {
	Next() ([]string, error)
	Close() error
}

// IsSpreadsheet reports whether path has a spreadsheet extension that
// OpenSpreadsheet accepts.
func IsSpreadsheet(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return true
	default:
		return false
	}
}

// Open opens path as a spreadsheet or as delimited text, depending on its
// extension.
func Open(path string, csvOpts CSVOptions, sheetOpts SheetOptions) (RowSource, error) {
	if IsSpreadsheet(path) {
		return OpenSpreadsheet(path, sheetOpts)
	}
	return OpenCSV(path, csvOpts)
}
