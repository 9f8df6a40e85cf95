// Package fieldset compares the header fields of two delimited files.
//
// The first line of each file is split on the delimiter, normalised, sorted
// and de-duplicated. A single sorted merge then yields the union and the
// fields unique to either side, from which every output Mode is derived.
package fieldset

import (
	"bufio"
	"io"
	"os"
	"slices"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ajitpratap0/transmuta/pkg/errors"
	"github.com/ajitpratap0/transmuta/pkg/logger"
)

// Mode selects which fields are written.
type Mode string

const (
	// Union is every field of either file
	Union Mode = "union"
	// Complement is the fields present in exactly one file
	Complement Mode = "complement"
	// DiffBasedOnFile1 is file 1 plus the fields only file 2 has
	DiffBasedOnFile1 Mode = "diff-based-on-file1"
	// DiffBasedOnFile2 is file 2 plus the fields only file 1 has
	DiffBasedOnFile2 Mode = "diff-based-on-file2"
	// OnlyInFile1 is file 1 minus file 2
	OnlyInFile1 Mode = "only-in-file1"
	// OnlyInFile2 is file 2 minus file 1
	OnlyInFile2 Mode = "only-in-file2"
	// SortFile1 is the normalised fields of file 1
	SortFile1 Mode = "sort-file1"
	// SortFile2 is the normalised fields of file 2
	SortFile2 Mode = "sort-file2"
)

// Modes lists every mode.
func Modes() []Mode {
	return []Mode{Union, Complement, DiffBasedOnFile1, DiffBasedOnFile2, OnlyInFile1, OnlyInFile2, SortFile1, SortFile2}
}

// ParseMode resolves a mode name.
func ParseMode(name string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(name)))
	if slices.Contains(Modes(), m) {
		return m, nil
	}
	return "", errors.Newf(errors.ErrorTypeConfig, "unsupported diff mode %q", name).
		WithDetail("mode", name)
}

// Options controls how fields are split and compared.
type Options struct {
	Delimiter rune
	// IgnoreCase compares fields case-folded
	IgnoreCase bool
	// IgnoreWhitespace removes all white space inside fields instead of
	// only trimming the ends
	IgnoreWhitespace bool
}

var folder = cases.Fold()

func (o Options) normalize(field string) string {
	if o.IgnoreWhitespace {
		field = strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, field)
	} else {
		field = strings.TrimSpace(field)
	}
	if o.IgnoreCase {
		field = folder.String(field)
	}
	return field
}

// ReadFields returns the sorted, de-duplicated fields of the first line of r.
// Empty fields are dropped. name identifies r in errors.
func ReadFields(r io.Reader, name string, opts Options) ([]string, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}

	br := bufio.NewReader(transform.NewReader(r, xunicode.UTF8BOM.NewDecoder()))
	line, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to read header line").
			WithDetail("file", name)
	}
	if line == "" {
		return nil, errors.EmptySource(name)
	}
	line = strings.TrimRight(line, "\r\n")

	var fields []string
	for _, f := range strings.Split(line, string(opts.Delimiter)) {
		if n := opts.normalize(f); n != "" {
			fields = append(fields, n)
		}
	}
	slices.Sort(fields)
	return slices.Compact(fields), nil
}

// ReadFile is ReadFields on the file at path.
func ReadFile(path string, opts Options) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to open file").WithDetail("file", path)
	}
	defer f.Close()
	return ReadFields(f, path, opts)
}

// Diff is the comparison of two sorted field sets.
type Diff struct {
	Fields1 []string
	Fields2 []string
	Union   []string
	OnlyIn1 []string
	OnlyIn2 []string
}

// Compare merges two sorted, de-duplicated field lists.
func Compare(fields1, fields2 []string) Diff {
	d := Diff{Fields1: fields1, Fields2: fields2}
	i, j := 0, 0
	for i < len(fields1) && j < len(fields2) {
		switch a, b := fields1[i], fields2[j]; {
		case a < b:
			d.Union = append(d.Union, a)
			d.OnlyIn1 = append(d.OnlyIn1, a)
			i++
		case a > b:
			d.Union = append(d.Union, b)
			d.OnlyIn2 = append(d.OnlyIn2, b)
			j++
		default:
			d.Union = append(d.Union, a)
			i++
			j++
		}
	}
	for ; i < len(fields1); i++ {
		d.Union = append(d.Union, fields1[i])
		d.OnlyIn1 = append(d.OnlyIn1, fields1[i])
	}
	for ; j < len(fields2); j++ {
		d.Union = append(d.Union, fields2[j])
		d.OnlyIn2 = append(d.OnlyIn2, fields2[j])
	}
	return d
}

// Common returns how many fields both files share.
func (d Diff) Common() int {
	return len(d.Fields1) + len(d.Fields2) - len(d.Union)
}

// Select returns the fields of mode m, sorted.
func (d Diff) Select(m Mode) []string {
	switch m {
	case Union:
		return d.Union
	case Complement:
		return sorted(d.OnlyIn1, d.OnlyIn2)
	case DiffBasedOnFile1:
		return sorted(d.Fields1, d.OnlyIn2)
	case DiffBasedOnFile2:
		return sorted(d.Fields2, d.OnlyIn1)
	case OnlyInFile1:
		return d.OnlyIn1
	case OnlyInFile2:
		return d.OnlyIn2
	case SortFile1:
		return d.Fields1
	case SortFile2:
		return d.Fields2
	default:
		return nil
	}
}

func sorted(a, b []string) []string {
	out := slices.Concat(a, b)
	slices.Sort(out)
	return out
}

// WriteFields writes fields joined by delim, without a trailing newline.
func WriteFields(w io.Writer, fields []string, delim rune) error {
	if delim == 0 {
		delim = ','
	}
	_, err := io.WriteString(w, strings.Join(fields, string(delim)))
	return err
}

// Request describes one comparison run.
type Request struct {
	File1, File2 string
	Output       string
	// Report, when set, receives a plain-text summary
	Report  string
	Mode    Mode
	Options Options
	Logger  *zap.Logger
}

// Run compares the files of req and writes the selected fields and the
// optional report.
func Run(req Request) (Diff, error) {
	log := logger.OrGlobal(req.Logger).With(zap.String("component", "fieldset"))
	if !slices.Contains(Modes(), req.Mode) {
		return Diff{}, errors.Newf(errors.ErrorTypeConfig, "unsupported diff mode %q", req.Mode)
	}

	fields1, err := ReadFile(req.File1, req.Options)
	if err != nil {
		return Diff{}, err
	}
	fields2, err := ReadFile(req.File2, req.Options)
	if err != nil {
		return Diff{}, err
	}

	d := Compare(fields1, fields2)
	out := d.Select(req.Mode)

	if err := writeFile(req.Output, func(w io.Writer) error {
		return WriteFields(w, out, req.Options.Delimiter)
	}); err != nil {
		return Diff{}, err
	}
	if req.Report != "" {
		if err := writeFile(req.Report, func(w io.Writer) error {
			return WriteReport(w, req.File1, req.File2, d)
		}); err != nil {
			return Diff{}, err
		}
	}

	log.Info("compared field sets",
		zap.String("file1", req.File1),
		zap.String("file2", req.File2),
		zap.String("mode", string(req.Mode)),
		zap.Int("fields1", len(d.Fields1)),
		zap.Int("fields2", len(d.Fields2)),
		zap.Int("union", len(d.Union)),
		zap.Int("common", d.Common()),
		zap.Int("written", len(out)))
	return d, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to create file").WithDetail("file", path)
	}
	bw := bufio.NewWriter(f)
	err = fn(bw)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write file").WithDetail("file", path)
	}
	return nil
}
