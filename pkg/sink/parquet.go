package sink

import (
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"go.uber.org/zap"

	"github.com/ajitpratap0/transmuta/pkg/codec"
	"github.com/ajitpratap0/transmuta/pkg/errors"
)

// CoercedFromKey is the field metadata key recording the arrow type a
// column had before it was converted to a parquet-storable type.
const CoercedFromKey = "transmuta.coerced_from"

type parquetWriter struct {
	compression compress.Compression
	mem         memory.Allocator
	logger      *zap.Logger
}

func newParquetWriter(opts Options, log *zap.Logger) (*parquetWriter, error) {
	c, err := parquetCompression(opts.ParquetCompression)
	if err != nil {
		return nil, err
	}
	return &parquetWriter{compression: c, mem: opts.Allocator, logger: log}, nil
}

func parquetCompression(name string) (compress.Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	default:
		return compress.Codecs.Uncompressed, errors.Newf(errors.ErrorTypeConfig,
			"unsupported parquet compression %q", name)
	}
}

func (p *parquetWriter) Format() Format { return Parquet }

func (p *parquetWriter) Write(w io.Writer, rec arrow.Record) error {
	stored := p.coerce(rec)
	defer stored.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(p.compression),
		parquet.WithAllocator(p.mem),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithStoreSchema(),
		pqarrow.WithAllocator(p.mem),
	)

	fw, err := pqarrow.NewFileWriter(stored.Schema(), w, props, arrowProps)
	if err != nil {
		return encodingError(err, Parquet, "failed to create parquet writer")
	}
	if err := fw.Write(stored); err != nil {
		fw.Close()
		return encodingError(err, Parquet, "failed to write record batch")
	}
	if err := fw.Close(); err != nil {
		return encodingError(err, Parquet, "failed to close parquet writer")
	}
	return nil
}

// coerce replaces columns parquet cannot store. Intervals become their text
// rendering and durations their int64 count. The returned record must be
// released; it is rec itself, retained, when nothing changes.
func (p *parquetWriter) coerce(rec arrow.Record) arrow.Record {
	var (
		fields  []arrow.Field
		columns []arrow.Array
	)
	for i, f := range rec.Schema().Fields() {
		var replaced arrow.Array
		switch col := rec.Column(i).(type) {
		case *array.MonthDayNanoInterval:
			replaced = intervalsAsText(p.mem, col)
			f.Type = arrow.BinaryTypes.String
		case *array.Duration:
			replaced = durationsAsInt64(p.mem, col)
			f.Type = arrow.PrimitiveTypes.Int64
		}
		if replaced == nil {
			continue
		}

		if fields == nil {
			fields = append([]arrow.Field(nil), rec.Schema().Fields()...)
			columns = append([]arrow.Array(nil), rec.Columns()...)
		}
		keys := append(append([]string(nil), f.Metadata.Keys()...), CoercedFromKey)
		values := append(append([]string(nil), f.Metadata.Values()...), rec.Column(i).DataType().String())
		f.Metadata = arrow.NewMetadata(keys, values)
		fields[i] = f
		columns[i] = replaced
		defer replaced.Release()

		p.logger.Debug("coerced column for parquet",
			zap.String("column", f.Name),
			zap.String("from", rec.Column(i).DataType().String()),
			zap.String("to", f.Type.String()))
	}

	if fields == nil {
		rec.Retain()
		return rec
	}
	meta := rec.Schema().Metadata()
	return array.NewRecord(arrow.NewSchema(fields, &meta), columns, rec.NumRows())
}

func intervalsAsText(mem memory.Allocator, col *array.MonthDayNanoInterval) arrow.Array {
	b := array.NewStringBuilder(mem)
	defer b.Release()
	b.Reserve(col.Len())
	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			b.AppendNull()
			continue
		}
		b.Append(codec.FormatInterval(col.Value(i)))
	}
	return b.NewArray()
}

func durationsAsInt64(mem memory.Allocator, col *array.Duration) arrow.Array {
	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.Reserve(col.Len())
	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			b.AppendNull()
			continue
		}
		b.Append(int64(col.Value(i)))
	}
	return b.NewArray()
}
