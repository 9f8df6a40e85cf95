package sink

import (
	"bufio"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/transmuta/pkg/codec"
)

// jsonWriter writes a pretty-printed array of row objects. Keys follow
// schema order, so rows are assembled by hand instead of through a map.
type jsonWriter struct{}

func (j *jsonWriter) Format() Format { return JSON }

func (j *jsonWriter) Write(w io.Writer, rec arrow.Record) error {
	keys, err := columnKeys(rec)
	if err != nil {
		return encodingError(err, JSON, "failed to encode column name")
	}

	bw := bufio.NewWriter(w)
	nrows := int(rec.NumRows())
	if nrows == 0 {
		bw.WriteString("[]\n")
		return flush(bw, JSON)
	}

	bw.WriteString("[\n")
	for r := 0; r < nrows; r++ {
		bw.WriteString("  {\n")
		for i, key := range keys {
			v, err := gojson.MarshalIndentWithOption(codec.RenderStructured(rec.Column(i), r),
				"    ", "  ", gojson.DisableHTMLEscape())
			if err != nil {
				return encodingError(err, JSON, "failed to encode value of column "+rec.ColumnName(i))
			}
			bw.WriteString("    ")
			bw.Write(key)
			bw.WriteString(": ")
			bw.Write(v)
			if i < len(keys)-1 {
				bw.WriteByte(',')
			}
			bw.WriteByte('\n')
		}
		bw.WriteString("  }")
		if r < nrows-1 {
			bw.WriteByte(',')
		}
		bw.WriteByte('\n')
	}
	bw.WriteString("]\n")
	return flush(bw, JSON)
}

// jsonlWriter writes one compact row object per line.
type jsonlWriter struct{}

func (j *jsonlWriter) Format() Format { return JSONL }

func (j *jsonlWriter) Write(w io.Writer, rec arrow.Record) error {
	keys, err := columnKeys(rec)
	if err != nil {
		return encodingError(err, JSONL, "failed to encode column name")
	}

	bw := bufio.NewWriter(w)
	for r := 0; r < int(rec.NumRows()); r++ {
		bw.WriteByte('{')
		for i, key := range keys {
			v, err := gojson.MarshalWithOption(codec.RenderStructured(rec.Column(i), r), gojson.DisableHTMLEscape())
			if err != nil {
				return encodingError(err, JSONL, "failed to encode value of column "+rec.ColumnName(i))
			}
			if i > 0 {
				bw.WriteByte(',')
			}
			bw.Write(key)
			bw.WriteByte(':')
			bw.Write(v)
		}
		bw.WriteString("}\n")
	}
	return flush(bw, JSONL)
}

func columnKeys(rec arrow.Record) ([][]byte, error) {
	keys := make([][]byte, rec.NumCols())
	for i := range keys {
		k, err := gojson.MarshalWithOption(rec.ColumnName(i), gojson.DisableHTMLEscape())
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}
	return keys, nil
}

// flush reports the first write error; bufio.Writer keeps it sticky.
func flush(bw *bufio.Writer, format Format) error {
	if err := bw.Flush(); err != nil {
		return ioError(err, format)
	}
	return nil
}
