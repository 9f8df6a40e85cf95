package ingest

import (
	stderrors "errors"
	"io"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/transmuta/pkg/errors"
	"github.com/ajitpratap0/transmuta/pkg/logger"
	"github.com/ajitpratap0/transmuta/pkg/schema"
)

// DefaultBatchSize is used when Options.BatchSize is not positive.
const DefaultBatchSize = 10000

// Options configures a Batcher.
type Options struct {
	// HasHeader treats the first row after SkipRows as column names.
	// Otherwise names are synthesized as Column1..ColumnN and the first row
	// stays data.
	HasHeader bool
	// SkipRows discards leading rows before the header is resolved.
	SkipRows int
	// BatchSize caps the rows per record.
	BatchSize int
	// Name identifies the source in errors and logs.
	Name      string
	Allocator memory.Allocator
	Logger    *zap.Logger
}

// Batcher turns a RowSource into records of text columns.
type Batcher struct {
	src     RowSource
	opts    Options
	header  []string
	schema  *schema.Schema
	builder *array.RecordBuilder
	logger  *zap.Logger

	pending []string
	batches int
	rows    int64
}

// NewBatcher resolves the header of src. The batcher owns src from here on
// and closes it in Close, also when NewBatcher fails.
func NewBatcher(src RowSource, opts Options) (*Batcher, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Allocator == nil {
		opts.Allocator = memory.DefaultAllocator
	}

	b := &Batcher{
		src:    src,
		opts:   opts,
		logger: logger.OrGlobal(opts.Logger).With(zap.String("component", "ingest"), zap.String("source", opts.Name)),
	}
	if err := b.resolveHeader(); err != nil {
		src.Close()
		return nil, err
	}
	return b, nil
}

func (b *Batcher) resolveHeader() error {
	for i := 0; i < b.opts.SkipRows; i++ {
		if _, err := b.read(); err != nil {
			return err
		}
	}

	first, err := b.read()
	if err != nil {
		return err
	}
	if first == nil {
		return errors.EmptySource(b.opts.Name)
	}

	if b.opts.HasHeader {
		b.header = make([]string, len(first))
		for i, name := range first {
			if name == "" {
				name = "Column" + strconv.Itoa(i+1)
			}
			b.header[i] = name
		}
		if b.pending, err = b.read(); err != nil {
			return err
		}
	} else {
		b.header = make([]string, len(first))
		for i := range first {
			b.header[i] = "Column" + strconv.Itoa(i+1)
		}
		b.pending = first
	}

	if len(b.header) == 0 {
		return errors.EmptySource(b.opts.Name)
	}

	s, err := schema.AllText(b.header)
	if err != nil {
		return err
	}
	as, err := s.Arrow()
	if err != nil {
		return err
	}
	b.schema = s
	b.builder = array.NewRecordBuilder(b.opts.Allocator, as)

	b.logger.Debug("resolved header",
		zap.Strings("columns", b.header),
		zap.Bool("has_header", b.opts.HasHeader),
		zap.Int("skip_rows", b.opts.SkipRows))
	return nil
}

// read returns the next row, or nil at the end of the source.
func (b *Batcher) read() ([]string, error) {
	row, err := b.src.Next()
	if stderrors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Header returns the resolved column names.
func (b *Batcher) Header() []string { return b.header }

// Schema returns the all-text schema of the source.
func (b *Batcher) Schema() *schema.Schema { return b.schema }

// Rows returns the number of data rows emitted so far.
func (b *Batcher) Rows() int64 { return b.rows }

// More reports whether Next will return another record. A source with a
// header and no data still yields one empty record.
func (b *Batcher) More() bool {
	return b.pending != nil || b.batches == 0
}

// Next builds the next record of up to BatchSize rows. It returns io.EOF
// once the source is exhausted. The caller releases the record.
func (b *Batcher) Next() (arrow.Record, error) {
	if !b.More() {
		return nil, io.EOF
	}

	width := len(b.header)
	n := 0
	for b.pending != nil && n < b.opts.BatchSize {
		row := b.pending
		for i := 0; i < width; i++ {
			fb := b.builder.Field(i).(*array.StringBuilder)
			if i < len(row) {
				fb.Append(row[i])
			} else {
				fb.Append("")
			}
		}
		n++

		next, err := b.read()
		if err != nil {
			// drop the partial batch
			b.builder.NewRecord().Release()
			return nil, err
		}
		b.pending = next
	}

	rec := b.builder.NewRecord()
	b.batches++
	b.rows += int64(n)
	return rec, nil
}

// Close releases the builder and closes the source.
func (b *Batcher) Close() error {
	if b.builder != nil {
		b.builder.Release()
		b.builder = nil
	}
	return b.src.Close()
}
