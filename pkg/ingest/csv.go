package ingest

import (
	"encoding/csv"
	stderrors "errors"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ajitpratap0/transmuta/pkg/compression"
	"github.com/ajitpratap0/transmuta/pkg/errors"
)

// CSVOptions configures delimited-text sources.
type CSVOptions struct {
	// Delimiter separates fields. Zero means ','.
	Delimiter rune
	// Encoding is a WHATWG charset label such as "windows-1252" or
	// "shift_jis". Empty means UTF-8; a leading byte order mark is dropped.
	Encoding string
	// LazyQuotes tolerates bare quotes inside unquoted fields.
	LazyQuotes bool
}

// CSVSource reads delimited text. Rows may have any number of fields.
type CSVSource struct {
	path   string
	file   *os.File
	decomp io.ReadCloser
	reader *csv.Reader
}

// OpenCSV opens a delimited text file. Files ending in a compression
// extension (".gz", ".zst", ...) are decompressed on the fly.
func OpenCSV(path string, opts CSVOptions) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to open source").
			WithDetail("file", path)
	}

	alg, _ := compression.FromPath(path)
	decomp, err := compression.NewReader(f, alg)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to open compressed source").
			WithDetail("file", path)
	}

	text, err := decodeCharset(decomp, opts.Encoding)
	if err != nil {
		decomp.Close()
		f.Close()
		return nil, err
	}

	reader := csv.NewReader(text)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = opts.LazyQuotes

	return &CSVSource{path: path, file: f, decomp: decomp, reader: reader}, nil
}

func decodeCharset(r io.Reader, label string) (io.Reader, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" || label == "utf-8" || label == "utf8" {
		return transform.NewReader(r, unicode.UTF8BOM.NewDecoder()), nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "unknown source encoding").
			WithDetail("encoding", label)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// Next implements RowSource.
func (s *CSVSource) Next() ([]string, error) {
	record, err := s.reader.Read()
	if stderrors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		e := errors.Wrap(err, errors.ErrorTypeIO, "failed to read row").WithDetail("file", s.path)
		var perr *csv.ParseError
		if stderrors.As(err, &perr) {
			e = e.WithDetail("line", perr.Line)
		}
		return nil, e
	}
	return record, nil
}

// Close implements RowSource.
func (s *CSVSource) Close() error {
	derr := s.decomp.Close()
	if err := s.file.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to close source")
	}
	if derr != nil {
		return errors.Wrap(derr, errors.ErrorTypeIO, "failed to close source")
	}
	return nil
}
