package sink

import (
	"encoding/csv"
	"io"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/transmuta/pkg/codec"
)

type csvWriter struct {
	delimiter rune
}

func newCSVWriter(opts Options) *csvWriter {
	d := opts.Delimiter
	if d == 0 {
		d = ','
	}
	return &csvWriter{delimiter: d}
}

func (c *csvWriter) Format() Format { return CSV }

func (c *csvWriter) Write(w io.Writer, rec arrow.Record) error {
	cw := csv.NewWriter(w)
	cw.Comma = c.delimiter

	ncols := int(rec.NumCols())
	header := make([]string, ncols)
	for i := 0; i < ncols; i++ {
		header[i] = rec.ColumnName(i)
	}
	if err := cw.Write(header); err != nil {
		return csvError(err)
	}

	row := make([]string, ncols)
	for r := 0; r < int(rec.NumRows()); r++ {
		for i := 0; i < ncols; i++ {
			row[i] = codec.RenderText(rec.Column(i), r)
		}
		if err := cw.Write(row); err != nil {
			return csvError(err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return csvError(err)
	}
	return nil
}

func csvError(err error) error {
	return encodingError(err, CSV, "failed to write csv")
}
