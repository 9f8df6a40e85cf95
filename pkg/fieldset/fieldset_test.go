package fieldset

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/transmuta/pkg/errors"
	"github.com/ajitpratap0/transmuta/pkg/testutil"
)

func TestReadFields(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  Options
		want  []string
	}{
		{"sorted and deduplicated", "b,a,c,a\n1,2,3\n", Options{}, []string{"a", "b", "c"}},
		{"trimmed", " b , a\r\n", Options{}, []string{"a", "b"}},
		{"empty fields dropped", "a,,b, ,\n", Options{}, []string{"a", "b"}},
		{"no newline", "x;y", Options{Delimiter: ';'}, []string{"x", "y"}},
		{"ignore case", "Name,name,ID\n", Options{IgnoreCase: true}, []string{"id", "name"}},
		{"ignore whitespace", "first name,firstname,last\tname\n", Options{IgnoreWhitespace: true}, []string{"firstname", "lastname"}},
		{"case kept", "Name,name\n", Options{}, []string{"Name", "name"}},
		{"bom", "\ufeffid,name\n", Options{}, []string{"id", "name"}},
		{"tab", "b\ta\n", Options{Delimiter: '\t'}, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadFields(strings.NewReader(tt.input), "in", tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadFieldsEmpty(t *testing.T) {
	_, err := ReadFields(strings.NewReader(""), "empty.csv", Options{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMalformedInput))
	assert.Contains(t, err.Error(), "empty.csv")
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.csv"), Options{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
}

func TestCompare(t *testing.T) {
	d := Compare([]string{"a", "b", "d", "f"}, []string{"b", "c", "d", "e", "g"})

	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g"}, d.Union)
	assert.Equal(t, []string{"a", "f"}, d.OnlyIn1)
	assert.Equal(t, []string{"c", "e", "g"}, d.OnlyIn2)
	assert.Equal(t, 2, d.Common())
}

func TestCompareEmptySides(t *testing.T) {
	d := Compare(nil, []string{"a"})
	assert.Equal(t, []string{"a"}, d.Union)
	assert.Empty(t, d.OnlyIn1)
	assert.Equal(t, []string{"a"}, d.OnlyIn2)
	assert.Equal(t, 0, d.Common())
}

func TestSelect(t *testing.T) {
	d := Compare([]string{"a", "b", "d"}, []string{"b", "c"})

	tests := map[Mode][]string{
		Union:            {"a", "b", "c", "d"},
		Complement:       {"a", "c", "d"},
		DiffBasedOnFile1: {"a", "b", "c", "d"},
		DiffBasedOnFile2: {"a", "b", "c", "d"},
		OnlyInFile1:      {"a", "d"},
		OnlyInFile2:      {"c"},
		SortFile1:        {"a", "b", "d"},
		SortFile2:        {"b", "c"},
	}
	for mode, want := range tests {
		assert.Equal(t, want, d.Select(mode), mode)
	}
	assert.Nil(t, d.Select("bogus"))
}

func TestParseMode(t *testing.T) {
	for _, m := range Modes() {
		got, err := ParseMode(" " + strings.ToUpper(string(m)) + " ")
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("intersection")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestWriteFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFields(&buf, []string{"a", "b"}, '|'))
	assert.Equal(t, "a|b", buf.String())

	buf.Reset()
	require.NoError(t, WriteFields(&buf, nil, 0))
	assert.Empty(t, buf.String())
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	file1 := filepath.Join(dir, "one.csv")
	file2 := filepath.Join(dir, "two.csv")
	require.NoError(t, os.WriteFile(file1, []byte("id,Name,email\n1,a,b\n"), 0o600))
	require.NoError(t, os.WriteFile(file2, []byte("ID,phone\n"), 0o600))

	out := filepath.Join(dir, "out.txt")
	report := filepath.Join(dir, "report.txt")
	d, err := Run(Request{
		File1:   file1,
		File2:   file2,
		Output:  out,
		Report:  report,
		Mode:    Complement,
		Options: Options{IgnoreCase: true},
		Logger:  testutil.TestLogger(t),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, d.Common())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "email,name,phone", string(data))

	text, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(text), "Common fields: 1\n")
	assert.Contains(t, string(text), "Only in file 1\n--------------\n- email\n- name\n")
	assert.Contains(t, string(text), "Only in file 2\n--------------\n- phone\n")
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	file := testutil.WriteFile(t, "a.csv", "a,b\n")

	_, err := Run(Request{File1: file, File2: file, Output: filepath.Join(dir, "o"), Mode: "bogus"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = Run(Request{File1: file, File2: filepath.Join(dir, "missing"), Output: filepath.Join(dir, "o"), Mode: Union})
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))

	_, err = Run(Request{File1: file, File2: file, Output: filepath.Join(dir, "no", "such", "dir"), Mode: Union})
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
}

func TestReportWithoutDifferences(t *testing.T) {
	var buf bytes.Buffer
	d := Compare([]string{"a"}, []string{"a"})
	require.NoError(t, WriteReport(&buf, "x", "y", d))
	assert.Contains(t, buf.String(), "Only in file 1\n--------------\n(none)\n")
}
