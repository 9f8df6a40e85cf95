// Package compression wraps part-file writers and source readers in a
// streaming compression codec.
//
// # Algorithm Selection
//
//   - Snappy/S2: fastest, moderate ratio
//   - LZ4: very fast, decent ratio
//   - Zstd: best ratio, good speed
//   - Gzip: widest compatibility
//
// The codec of a file is identified by its trailing extension (".gz",
// ".zst", ".sz", ".s2", ".lz4"), so a compressed part file keeps the sink's
// own extension in front of it: "out_part0001.csv.gz".
package compression

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/transmuta/pkg/errors"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents framed snappy compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
)

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

var extensions = map[Algorithm]string{
	Gzip:   ".gz",
	Snappy: ".sz",
	LZ4:    ".lz4",
	Zstd:   ".zst",
	S2:     ".s2",
}

// Algorithms lists every supported algorithm, None first.
func Algorithms() []Algorithm {
	return []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2}
}

// Parse resolves an algorithm name. The empty string means None.
func Parse(name string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	switch a {
	case "":
		return None, nil
	case "gz":
		return Gzip, nil
	case "zst":
		return Zstd, nil
	}
	for _, known := range Algorithms() {
		if a == known {
			return a, nil
		}
	}
	return None, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", name)
}

// Extension returns the file extension appended for a, or "" for None.
func (a Algorithm) Extension() string {
	return extensions[a]
}

// FromPath detects a trailing compression extension. It returns the
// algorithm and the path with that extension removed; paths without one
// return None and the path unchanged.
func FromPath(path string) (Algorithm, string) {
	ext := strings.ToLower(filepath.Ext(path))
	for a, e := range extensions {
		if ext == e {
			return a, path[:len(path)-len(ext)]
		}
	}
	return None, path
}

// NewWriter wraps w so that everything written is compressed with a. Closing
// the returned writer flushes the codec but never closes w.
func NewWriter(w io.Writer, a Algorithm, level Level) (io.WriteCloser, error) {
	switch a {
	case None, "":
		return nopWriteCloser{w}, nil
	case Gzip:
		gw, err := gzip.NewWriterLevel(w, mapGzipLevel(level))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid gzip level")
		}
		return gw, nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	case LZ4:
		lw := lz4.NewWriter(w)
		if err := lw.Apply(lz4.CompressionLevelOption(mapLZ4Level(level))); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid lz4 level")
		}
		return lw, nil
	case Zstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(mapZstdLevel(level)))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid zstd options")
		}
		return enc, nil
	case S2:
		opts := []s2.WriterOption{}
		if level >= Better {
			opts = append(opts, s2.WriterBetterCompression())
		}
		return s2.NewWriter(w, opts...), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", a)
	}
}

// NewReader wraps r so that reads return decompressed bytes. Closing the
// returned reader releases codec state but never closes r.
func NewReader(r io.Reader, a Algorithm) (io.ReadCloser, error) {
	switch a {
	case None, "":
		return io.NopCloser(r), nil
	case Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to open gzip stream")
		}
		return gr, nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to open zstd stream")
		}
		return zstdReadCloser{dec}, nil
	case S2:
		return io.NopCloser(s2.NewReader(r)), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", a)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// zstd.Decoder.Close returns nothing.
type zstdReadCloser struct {
	*zstd.Decoder
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
