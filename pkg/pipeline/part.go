package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/ajitpratap0/transmuta/pkg/compression"
)

// PartPath returns the name of the index-th (1-based) part file for output:
// the stem suffixed with _partNNNN followed by the original extension. A
// trailing compression extension stays last, so "out.csv.gz" becomes
// "out_part0001.csv.gz".
func PartPath(output string, index int) string {
	dir, file := filepath.Split(output)

	algo, rest := compression.FromPath(file)
	var compExt string
	if algo != compression.None {
		compExt = file[len(rest):]
	}
	ext := filepath.Ext(rest)
	stem := strings.TrimSuffix(rest, ext)

	return filepath.Join(dir, fmt.Sprintf("%s_part%04d%s%s", stem, index, ext, compExt))
}

// checksumWriter counts and hashes the bytes that reach the file.
type checksumWriter struct {
	w     io.Writer
	hash  *xxh3.Hasher
	count int64
}

func newChecksumWriter(w io.Writer) *checksumWriter {
	return &checksumWriter{w: w, hash: xxh3.New()}
}

func (c *checksumWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.count += int64(n)
	_, _ = c.hash.Write(p[:n])
	return n, err
}

func (c *checksumWriter) Sum() string {
	return fmt.Sprintf("%016x", c.hash.Sum64())
}

// writerOnly hides Close from encoders that close writers they are given.
type writerOnly struct {
	io.Writer
}

// partFile is the write side of one output file:
// encoder -> compression -> checksum -> buffer -> file.
type partFile struct {
	file     *os.File
	buf      *bufio.Writer
	sum      *checksumWriter
	compress io.WriteCloser
}

func createPart(path string, algo compression.Algorithm, level compression.Level) (*partFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriterSize(f, 256*1024)
	sum := newChecksumWriter(buf)
	cw, err := compression.NewWriter(sum, algo, level)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return &partFile{file: f, buf: buf, sum: sum, compress: cw}, nil
}

func (p *partFile) Writer() io.Writer { return writerOnly{p.compress} }

// Close finishes the compression stream and flushes everything to disk.
func (p *partFile) Close() error {
	err := p.compress.Close()
	if ferr := p.buf.Flush(); err == nil {
		err = ferr
	}
	if cerr := p.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Abort closes and removes a part that failed mid-write.
func (p *partFile) Abort() {
	p.file.Close()
	os.Remove(p.file.Name())
}
