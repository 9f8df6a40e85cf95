package sink

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	gojson "github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/transmuta/pkg/codec"
	"github.com/ajitpratap0/transmuta/pkg/datatype"
	"github.com/ajitpratap0/transmuta/pkg/errors"
)

const avroRecordName = "Row"

type avroWriter struct {
	codec string
}

func newAvroWriter(opts Options) (*avroWriter, error) {
	switch c := strings.ToLower(strings.TrimSpace(opts.AvroCodec)); c {
	case "", "null", "none":
		return &avroWriter{codec: goavro.CompressionNullLabel}, nil
	case goavro.CompressionDeflateLabel, goavro.CompressionSnappyLabel:
		return &avroWriter{codec: c}, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported avro codec %q", opts.AvroCodec)
	}
}

func (a *avroWriter) Format() Format { return Avro }

// avroField is the avro shape of one arrow column.
type avroField struct {
	name string
	// branch is the union branch name for non-null values, "" for null columns.
	branch string
}

func (a *avroWriter) Write(w io.Writer, rec arrow.Record) error {
	fields, schemaJSON, err := avroSchema(rec.Schema())
	if err != nil {
		return err
	}

	c, err := goavro.NewCodec(schemaJSON)
	if err != nil {
		return encodingError(err, Avro, "failed to build avro schema")
	}
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           c,
		CompressionName: a.codec,
	})
	if err != nil {
		return encodingError(err, Avro, "failed to create avro writer")
	}

	const blockRows = 1024
	block := make([]any, 0, blockRows)
	for r := 0; r < int(rec.NumRows()); r++ {
		datum := make(map[string]any, len(fields))
		for i, f := range fields {
			v, err := avroValue(rec.Column(i), r)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeEncoding, "cannot encode value").
					WithDetail("column", rec.ColumnName(i)).
					WithDetail("row", r)
			}
			if v == nil || f.branch == "" {
				datum[f.name] = nil
			} else {
				datum[f.name] = goavro.Union(f.branch, v)
			}
		}
		block = append(block, datum)
		if len(block) == blockRows {
			if err := ocf.Append(block); err != nil {
				return encodingError(err, Avro, "failed to write avro block")
			}
			block = block[:0]
		}
	}
	if len(block) > 0 {
		if err := ocf.Append(block); err != nil {
			return encodingError(err, Avro, "failed to write avro block")
		}
	}
	return nil
}

// avroSchema derives a record schema with one nullable field per column.
// Names are reduced to the avro name grammar and made unique.
func avroSchema(s *arrow.Schema) ([]avroField, string, error) {
	fields := make([]avroField, s.NumFields())
	schemaFields := make([]map[string]any, s.NumFields())
	seen := make(map[string]int, s.NumFields())

	for i, f := range s.Fields() {
		name := uniqueName(sanitizeAvroName(f.Name), seen)
		typ, branch, err := avroType(f.Type, name)
		if err != nil {
			return nil, "", errors.Wrap(err, errors.ErrorTypeUnsupportedType, "cannot map column to avro").
				WithDetail("column", f.Name)
		}

		field := map[string]any{"name": name}
		if branch == "" {
			field["type"] = "null"
		} else {
			field["type"] = []any{"null", typ}
			field["default"] = nil
		}
		doc := f.Type.String()
		if logical, ok := f.Metadata.GetValue(datatype.MetadataKey); ok {
			doc = logical
		}
		if name != f.Name {
			doc += " (column " + strconv.Quote(f.Name) + ")"
		}
		field["doc"] = doc

		fields[i] = avroField{name: name, branch: branch}
		schemaFields[i] = field
	}

	out, err := gojson.Marshal(map[string]any{
		"type":   "record",
		"name":   avroRecordName,
		"fields": schemaFields,
	})
	if err != nil {
		return nil, "", encodingError(err, Avro, "failed to encode avro schema")
	}
	return fields, string(out), nil
}

// avroType returns the schema and union branch name for an arrow type.
func avroType(dt arrow.DataType, fieldName string) (any, string, error) {
	switch dt.ID() {
	case arrow.NULL:
		return "null", "", nil
	case arrow.BOOL:
		return "boolean", "boolean", nil
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.UINT8, arrow.UINT16, arrow.DATE32, arrow.TIME32:
		return "int", "int", nil
	case arrow.INT64, arrow.UINT32, arrow.UINT64, arrow.TIMESTAMP, arrow.TIME64, arrow.DURATION, arrow.DATE64:
		return "long", "long", nil
	case arrow.FLOAT32:
		return "float", "float", nil
	case arrow.FLOAT64:
		return "double", "double", nil
	case arrow.STRING, arrow.LARGE_STRING, arrow.INTERVAL_MONTH_DAY_NANO:
		return "string", "string", nil
	case arrow.BINARY, arrow.LARGE_BINARY:
		return "bytes", "bytes", nil
	case arrow.FIXED_SIZE_BINARY:
		name := fieldName + "_fixed"
		return map[string]any{
			"type": "fixed",
			"name": name,
			"size": dt.(*arrow.FixedSizeBinaryType).ByteWidth,
		}, name, nil
	default:
		return nil, "", errors.UnsupportedType(dt.String())
	}
}

func avroValue(col arrow.Array, row int) (any, error) {
	if codec.IsNull(col, row) {
		return nil, nil
	}

	switch c := col.(type) {
	case *array.Boolean:
		return c.Value(row), nil
	case *array.Int8:
		return int32(c.Value(row)), nil
	case *array.Int16:
		return int32(c.Value(row)), nil
	case *array.Int32:
		return c.Value(row), nil
	case *array.Uint8:
		return int32(c.Value(row)), nil
	case *array.Uint16:
		return int32(c.Value(row)), nil
	case *array.Date32:
		return int32(c.Value(row)), nil
	case *array.Time32:
		return int32(c.Value(row)), nil
	case *array.Int64:
		return c.Value(row), nil
	case *array.Uint32:
		return int64(c.Value(row)), nil
	case *array.Uint64:
		v := c.Value(row)
		if v > math.MaxInt64 {
			return nil, errors.Newf(errors.ErrorTypeEncoding, "uint64 value %d overflows avro long", v)
		}
		return int64(v), nil
	case *array.Timestamp:
		return int64(c.Value(row)), nil
	case *array.Time64:
		return int64(c.Value(row)), nil
	case *array.Duration:
		return int64(c.Value(row)), nil
	case *array.Date64:
		return int64(c.Value(row)), nil
	case *array.Float32:
		return c.Value(row), nil
	case *array.Float64:
		return c.Value(row), nil
	case *array.String:
		return c.Value(row), nil
	case *array.LargeString:
		return c.Value(row), nil
	case *array.MonthDayNanoInterval:
		return codec.FormatInterval(c.Value(row)), nil
	case *array.Binary:
		return c.Value(row), nil
	case *array.LargeBinary:
		return c.Value(row), nil
	case *array.FixedSizeBinary:
		return c.Value(row), nil
	case *array.Null:
		return nil, nil
	default:
		return nil, errors.UnsupportedType(col.DataType().String())
	}
}

func sanitizeAvroName(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

func uniqueName(name string, seen map[string]int) string {
	seen[name]++
	if seen[name] == 1 {
		return name
	}
	for {
		candidate := name + "_" + strconv.Itoa(seen[name])
		if _, taken := seen[candidate]; !taken {
			seen[candidate] = 1
			return candidate
		}
		seen[name]++
	}
}
