package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"

	"github.com/ajitpratap0/transmuta/pkg/compression"
	"github.com/ajitpratap0/transmuta/pkg/datagen"
	"github.com/ajitpratap0/transmuta/pkg/datatype"
	"github.com/ajitpratap0/transmuta/pkg/errors"
	"github.com/ajitpratap0/transmuta/pkg/ingest"
	"github.com/ajitpratap0/transmuta/pkg/metrics"
	"github.com/ajitpratap0/transmuta/pkg/schema"
	"github.com/ajitpratap0/transmuta/pkg/sink"
	"github.com/ajitpratap0/transmuta/pkg/testutil"
)

func TestPartPath(t *testing.T) {
	tests := []struct {
		output string
		index  int
		want   string
	}{
		{"out.csv", 1, "out_part0001.csv"},
		{"dir/out.parquet", 12, filepath.Join("dir", "out_part0012.parquet")},
		{"/tmp/a/data.json", 10000, "/tmp/a/data_part10000.json"},
		{"noext", 3, "noext_part0003"},
		{"out.csv.gz", 2, "out_part0002.csv.gz"},
		{"out.jsonl.zst", 1, "out_part0001.jsonl.zst"},
		{"my.data.set.csv", 1, "my.data.set_part0001.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			assert.Equal(t, tt.want, PartPath(tt.output, tt.index))
		})
	}
}

func csvWriter(t *testing.T) sink.Writer {
	t.Helper()
	w, err := sink.New(sink.CSV, sink.Options{Logger: testutil.TestLogger(t)})
	require.NoError(t, err)
	return w
}

func batcher(t *testing.T, path string, batchSize int) *ingest.Batcher {
	t.Helper()
	src, err := ingest.OpenCSV(path, ingest.CSVOptions{})
	require.NoError(t, err)
	b, err := ingest.NewBatcher(src, ingest.Options{
		HasHeader: true,
		BatchSize: batchSize,
		Name:      path,
		Logger:    testutil.TestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func runner(t *testing.T, opts Options) *Runner {
	t.Helper()
	if opts.Writer == nil {
		opts.Writer = csvWriter(t)
	}
	opts.Logger = testutil.TestLogger(t)
	r, err := New(opts)
	require.NoError(t, err)
	return r
}

func TestRunIngestWritesPartFiles(t *testing.T) {
	dir := t.TempDir()
	in := testutil.WriteRowsCSV(t, dir, "in.csv", 25)
	outDir := filepath.Join(dir, "out")
	output := filepath.Join(outDir, "result.csv")

	for _, threads := range []int{1, 4} {
		t.Run(fmt.Sprintf("threads=%d", threads), func(t *testing.T) {
			require.NoError(t, os.RemoveAll(outDir))
			r := runner(t, Options{Output: output, Threads: threads})

			res, err := r.RunIngest(testutil.TestContext(t), batcher(t, in, 10))
			require.NoError(t, err)

			assert.EqualValues(t, 25, res.Rows)
			require.Len(t, res.Parts, 3)
			assert.Equal(t, []string{"result_part0001.csv", "result_part0002.csv", "result_part0003.csv"},
				testutil.Files(t, outDir))

			want := []int64{10, 10, 5}
			next := 0
			for i, p := range res.Parts {
				assert.Equal(t, i+1, p.Index)
				assert.Equal(t, PartPath(output, i+1), p.Path)
				assert.Equal(t, want[i], p.Rows)

				records := testutil.ReadCSV(t, p.Path)
				require.Len(t, records, int(want[i])+1)
				assert.Equal(t, []string{"id", "name", "value"}, records[0])
				for _, rec := range records[1:] {
					assert.Equal(t, fmt.Sprint(next), rec[0], "part %d keeps source order", p.Index)
					next++
				}
			}
			assert.Equal(t, 25, next)
		})
	}
}

func TestRunIngestSingleBatchUsesOutputPath(t *testing.T) {
	dir := t.TempDir()
	in := testutil.WriteRowsCSV(t, dir, "in.csv", 10)
	output := filepath.Join(dir, "out", "result.csv")
	r := runner(t, Options{Output: output})

	res, err := r.RunIngest(testutil.TestContext(t), batcher(t, in, 10))
	require.NoError(t, err)

	require.Len(t, res.Parts, 1)
	assert.Equal(t, output, res.Parts[0].Path)
	assert.Equal(t, []string{"result.csv"}, testutil.Files(t, filepath.Dir(output)))
	assert.Len(t, testutil.ReadCSV(t, output), 11)
}

func TestRunIngestHeaderOnly(t *testing.T) {
	dir := t.TempDir()
	in := testutil.WriteRowsCSV(t, dir, "in.csv", 0)
	output := filepath.Join(dir, "result.csv")

	res, err := runner(t, Options{Output: output}).RunIngest(testutil.TestContext(t), batcher(t, in, 10))
	require.NoError(t, err)

	assert.EqualValues(t, 0, res.Rows)
	assert.Equal(t, [][]string{{"id", "name", "value"}}, testutil.ReadCSV(t, output))
}

func TestRunIngestSourceFailure(t *testing.T) {
	dir := t.TempDir()
	content := "a,b\n"
	for i := 0; i < 5; i++ {
		content += fmt.Sprintf("%d,x\n", i)
	}
	content += "1,\"unterminated\n"
	in := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(in, []byte(content), 0o600))

	output := filepath.Join(dir, "out", "result.csv")
	_, err := runner(t, Options{Output: output, Threads: 1}).RunIngest(testutil.TestContext(t), batcher(t, in, 2))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))

	// parts flushed before the failure stay on disk
	assert.Contains(t, testutil.Files(t, filepath.Dir(output)), "result_part0001.csv")
}

var testSchema = func() *schema.Schema {
	s, err := schema.New([]schema.Column{
		{Name: "id", Type: datatype.MustParse("int64")},
		{Name: "label", Type: datatype.MustParse("string")},
		{Name: "at", Type: datatype.MustParse("timestamp")},
		{Name: "ratio", Type: datatype.MustParse("float64")},
	})
	if err != nil {
		panic(err)
	}
	return s
}()

func generator(t *testing.T, seed uint64) *datagen.Generator {
	return datagen.New(datagen.Options{
		Seed:   &seed,
		Clock:  datagen.FixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		Logger: testutil.TestLogger(t),
	})
}

func TestRunGenerate(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "gen.csv")

	res, err := runner(t, Options{Output: output, Threads: 3}).
		RunGenerate(testutil.TestContext(t), generator(t, 7), testSchema, 95, 20)
	require.NoError(t, err)

	assert.EqualValues(t, 95, res.Rows)
	require.Len(t, res.Parts, 5)
	assert.EqualValues(t, 15, res.Parts[4].Rows)
	for _, p := range res.Parts {
		assert.Len(t, testutil.ReadCSV(t, p.Path), int(p.Rows)+1)
	}
}

func TestRunGenerateIsReproducible(t *testing.T) {
	checksums := func(threads int) []string {
		output := filepath.Join(t.TempDir(), "gen.csv")
		res, err := runner(t, Options{Output: output, Threads: threads}).
			RunGenerate(testutil.TestContext(t), generator(t, 42), testSchema, 50, 10)
		require.NoError(t, err)
		var out []string
		for _, p := range res.Parts {
			out = append(out, p.Checksum)
		}
		return out
	}

	sequential := checksums(1)
	assert.Len(t, sequential, 5)
	assert.Equal(t, sequential, checksums(8))
}

func TestRunGenerateMatchesGenerateBatches(t *testing.T) {
	output := filepath.Join(t.TempDir(), "gen.csv")
	res, err := runner(t, Options{Output: output, Threads: 2}).
		RunGenerate(testutil.TestContext(t), generator(t, 9), testSchema, 30, 10)
	require.NoError(t, err)

	w := csvWriter(t)
	var i int
	err = generator(t, 9).GenerateBatches(testSchema, 30, 10, func(rec arrow.Record) error {
		path := filepath.Join(t.TempDir(), "expected.csv")
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, w.Write(f, rec))
		require.NoError(t, f.Close())

		want, err := os.ReadFile(path)
		require.NoError(t, err)
		got, err := os.ReadFile(res.Parts[i].Path)
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got), "part %d", i+1)
		i++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, i)
}

func TestRunGenerateSingleFile(t *testing.T) {
	for _, batchSize := range []int{0, 100, 1000} {
		output := filepath.Join(t.TempDir(), "gen.csv")
		res, err := runner(t, Options{Output: output}).
			RunGenerate(testutil.TestContext(t), generator(t, 1), testSchema, 100, batchSize)
		require.NoError(t, err)
		require.Len(t, res.Parts, 1)
		assert.Equal(t, output, res.Parts[0].Path)
	}
}

func TestRunGenerateZeroRows(t *testing.T) {
	output := filepath.Join(t.TempDir(), "gen.csv")
	res, err := runner(t, Options{Output: output}).
		RunGenerate(testutil.TestContext(t), generator(t, 1), testSchema, 0, 10)
	require.NoError(t, err)
	require.Len(t, res.Parts, 1)
	assert.Equal(t, [][]string{{"id", "label", "at", "ratio"}}, testutil.ReadCSV(t, output))
}

func TestRunGenerateNegativeRows(t *testing.T) {
	output := filepath.Join(t.TempDir(), "gen.csv")
	_, err := runner(t, Options{Output: output}).
		RunGenerate(testutil.TestContext(t), generator(t, 1), testSchema, -1, 10)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestManifest(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "gen.csv")
	manifestPath := filepath.Join(dir, "manifest.json")

	res, err := runner(t, Options{Output: output, ManifestPath: manifestPath}).
		RunGenerate(testutil.TestContext(t), generator(t, 5), testSchema, 25, 10)
	require.NoError(t, err)

	m, err := ReadManifest(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, output, m.Output)
	assert.Equal(t, "csv", m.Format)
	assert.Equal(t, "none", m.Compression)
	assert.EqualValues(t, 25, m.Rows)
	require.NotNil(t, m.Seed)
	assert.EqualValues(t, 5, *m.Seed)
	assert.Equal(t, res.Parts, m.Parts)

	for _, p := range m.Parts {
		data, err := os.ReadFile(p.Path)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("%016x", xxh3.Hash(data)), p.Checksum)
		assert.EqualValues(t, len(data), p.Bytes)
	}
}

func TestReadManifestErrors(t *testing.T) {
	_, err := ReadManifest(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))

	bad := testutil.WriteFile(t, "bad.json", "{")
	_, err = ReadManifest(bad)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMalformedInput))
}

func TestCompressedOutput(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "gen.csv")

	r := runner(t, Options{Output: output, Compression: compression.Gzip})
	assert.Equal(t, output+".gz", r.Output())

	res, err := r.RunGenerate(testutil.TestContext(t), generator(t, 3), testSchema, 20, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"gen_part0001.csv.gz", "gen_part0002.csv.gz"}, testutil.Files(t, dir))

	f, err := os.Open(res.Parts[0].Path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := compression.NewReader(f, compression.Gzip)
	require.NoError(t, err)
	defer zr.Close()
	text, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(text), "id,label,at,ratio\n")
}

func TestCompressionExtensionNotDuplicated(t *testing.T) {
	r := runner(t, Options{Output: "out.json.zst", Compression: compression.Zstd})
	assert.Equal(t, "out.json.zst", r.Output())
}

type failingWriter struct{}

func (f *failingWriter) Format() sink.Format { return sink.CSV }

func (f *failingWriter) Write(w io.Writer, rec arrow.Record) error {
	if _, err := io.WriteString(w, "partial"); err != nil {
		return err
	}
	return errors.New(errors.ErrorTypeEncoding, "cannot encode")
}

func TestWriterFailureRemovesPart(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "gen.csv")

	_, err := runner(t, Options{Output: output, Writer: &failingWriter{}}).
		RunGenerate(testutil.TestContext(t), generator(t, 1), testSchema, 5, 10)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeEncoding))
	assert.Empty(t, testutil.Files(t, dir))
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	output := filepath.Join(t.TempDir(), "gen.csv")
	_, err := runner(t, Options{Output: output}).RunGenerate(ctx, generator(t, 1), testSchema, 30, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMetricsAreRecorded(t *testing.T) {
	dir := t.TempDir()
	c := metrics.NewCollector("datagen")

	_, err := runner(t, Options{Output: filepath.Join(dir, "gen.csv"), Metrics: c}).
		RunGenerate(testutil.TestContext(t), generator(t, 1), testSchema, 30, 10)
	require.NoError(t, err)

	prom := filepath.Join(dir, "run.prom")
	require.NoError(t, c.WriteTextfile(prom))
	data, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(data), `transmuta_rows_written_total{command="datagen"} 30`)
	assert.Contains(t, string(data), `transmuta_parts_written_total{command="datagen"} 3`)
}

func TestNewValidation(t *testing.T) {
	w := csvWriter(t)

	_, err := New(Options{Writer: w})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = New(Options{Output: "x.csv"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = New(Options{Output: "x.csv", Writer: w, Threads: -1})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
