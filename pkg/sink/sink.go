// Package sink encodes one arrow record into a complete output file.
//
// Every Writer produces a self-contained file per call: a header row for
// delimited text, a full array for JSON, and a footer-terminated file for the
// columnar formats. The orchestrator calls Write once per batch and part file.
package sink

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/transmuta/pkg/compression"
	"github.com/ajitpratap0/transmuta/pkg/errors"
	"github.com/ajitpratap0/transmuta/pkg/logger"
)

// Format represents an output encoding
type Format string

const (
	// CSV is delimited text with a header row
	CSV Format = "csv"
	// JSON is a pretty-printed array of row objects
	JSON Format = "json"
	// JSONL is one compact row object per line
	JSONL Format = "jsonl"
	// Parquet is Apache Parquet with the arrow schema embedded
	Parquet Format = "parquet"
	// Arrow is the Arrow IPC file format
	Arrow Format = "arrow"
	// Avro is an Avro object container file
	Avro Format = "avro"
)

// Formats lists every supported format.
func Formats() []Format {
	return []Format{CSV, JSON, JSONL, Parquet, Arrow, Avro}
}

var extensions = map[string]Format{
	".csv":     CSV,
	".tsv":     CSV,
	".txt":     CSV,
	".json":    JSON,
	".jsonl":   JSONL,
	".ndjson":  JSONL,
	".parquet": Parquet,
	".arrow":   Arrow,
	".feather": Arrow,
	".ipc":     Arrow,
	".avro":    Avro,
}

// ParseFormat resolves a format name. Extension aliases such as "ndjson"
// and "feather" are accepted.
func ParseFormat(name string) (Format, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if f, ok := extensions["."+n]; ok {
		return f, nil
	}
	return "", errors.Newf(errors.ErrorTypeConfig, "unsupported output format %q", name).
		WithDetail("format", name)
}

// FormatFromPath guesses the format from the extension of path, looking
// through a trailing compression extension ("out.csv.gz" is CSV).
func FormatFromPath(path string) (Format, bool) {
	_, rest := compression.FromPath(path)
	f, ok := extensions[strings.ToLower(filepath.Ext(rest))]
	return f, ok
}

// Extension returns the canonical file extension of f.
func (f Format) Extension() string {
	return "." + string(f)
}

// Writer encodes records as files of one format.
type Writer interface {
	// Write encodes rec as a complete file on w. It never closes w.
	Write(w io.Writer, rec arrow.Record) error
	// Format returns the encoding produced by Write.
	Format() Format
}

// Options configures writers. Fields that do not apply to the selected
// format are ignored.
type Options struct {
	// Delimiter separates CSV fields. Zero means ','.
	Delimiter rune
	// ParquetCompression is one of none, snappy, gzip, brotli, zstd.
	ParquetCompression string
	// ArrowCompression is one of none, lz4, zstd.
	ArrowCompression string
	// AvroCodec is one of null, deflate, snappy.
	AvroCodec string
	Allocator memory.Allocator
	Logger    *zap.Logger
}

// New returns a writer for format.
func New(format Format, opts Options) (Writer, error) {
	if opts.Allocator == nil {
		opts.Allocator = memory.DefaultAllocator
	}
	log := logger.OrGlobal(opts.Logger).With(zap.String("component", "sink"), zap.String("format", string(format)))

	switch format {
	case CSV:
		return newCSVWriter(opts), nil
	case JSON:
		return &jsonWriter{}, nil
	case JSONL:
		return &jsonlWriter{}, nil
	case Parquet:
		w, err := newParquetWriter(opts, log)
		if err != nil {
			return nil, err
		}
		return w, nil
	case Arrow:
		w, err := newArrowWriter(opts)
		if err != nil {
			return nil, err
		}
		return w, nil
	case Avro:
		w, err := newAvroWriter(opts)
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported output format %q", format)
	}
}

func encodingError(err error, format Format, msg string) error {
	return errors.Wrap(err, errors.ErrorTypeEncoding, msg).WithDetail("format", string(format))
}

func ioError(err error, format Format) error {
	return errors.Wrap(err, errors.ErrorTypeIO, "failed to write output").WithDetail("format", string(format))
}
