package ingest

import (
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ajitpratap0/transmuta/pkg/errors"
)

// SheetOptions configures spreadsheet sources.
type SheetOptions struct {
	// Sheet names the worksheet to read. Empty selects the first one.
	Sheet string
}

// SpreadsheetSource streams the rows of one worksheet. Cell values are the
// formatted text shown by the spreadsheet application.
type SpreadsheetSource struct {
	path string
	file *excelize.File
	rows *excelize.Rows
}

// OpenSpreadsheet opens an Office Open XML workbook.
func OpenSpreadsheet(path string, opts SheetOptions) (*SpreadsheetSource, error) {
	if !IsSpreadsheet(path) {
		return nil, errors.New(errors.ErrorTypeMalformedInput,
			"unsupported spreadsheet format: expected .xlsx, .xlsm, .xltx or .xltm").
			WithDetail("file", path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to open spreadsheet").
			WithDetail("file", path)
	}

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			f.Close()
			return nil, errors.EmptySource(path)
		}
		sheet = sheets[0]
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to read worksheet").
			WithDetail("file", path).
			WithDetail("sheet", sheet)
	}

	return &SpreadsheetSource{path: path, file: f, rows: rows}, nil
}

// Next implements RowSource.
func (s *SpreadsheetSource) Next() ([]string, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to read worksheet").
				WithDetail("file", s.path)
		}
		return nil, io.EOF
	}

	cols, err := s.rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to read row").
			WithDetail("file", s.path)
	}
	if cols == nil {
		cols = []string{}
	}
	return cols, nil
}

// Close implements RowSource.
func (s *SpreadsheetSource) Close() error {
	rerr := s.rows.Close()
	if err := s.file.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to close spreadsheet")
	}
	if rerr != nil {
		return errors.Wrap(rerr, errors.ErrorTypeIO, "failed to close spreadsheet")
	}
	return nil
}
