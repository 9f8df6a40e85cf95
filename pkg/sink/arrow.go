package sink

import (
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/transmuta/pkg/errors"
)

type arrowWriter struct {
	mem  memory.Allocator
	opts []ipc.Option
}

func newArrowWriter(opts Options) (*arrowWriter, error) {
	aw := &arrowWriter{mem: opts.Allocator}
	switch strings.ToLower(strings.TrimSpace(opts.ArrowCompression)) {
	case "", "none":
	case "lz4":
		aw.opts = append(aw.opts, ipc.WithLZ4())
	case "zstd":
		aw.opts = append(aw.opts, ipc.WithZstd())
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported arrow compression %q", opts.ArrowCompression)
	}
	return aw, nil
}

func (a *arrowWriter) Format() Format { return Arrow }

func (a *arrowWriter) Write(w io.Writer, rec arrow.Record) error {
	opts := append([]ipc.Option{ipc.WithSchema(rec.Schema()), ipc.WithAllocator(a.mem)}, a.opts...)
	fw, err := ipc.NewFileWriter(w, opts...)
	if err != nil {
		return encodingError(err, Arrow, "failed to create arrow writer")
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return encodingError(err, Arrow, "failed to write record batch")
	}
	if err := fw.Close(); err != nil {
		return encodingError(err, Arrow, "failed to close arrow writer")
	}
	return nil
}
