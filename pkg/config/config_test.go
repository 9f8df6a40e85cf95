package config

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/transmuta/pkg/compression"
	"github.com/ajitpratap0/transmuta/pkg/errors"
	"github.com/ajitpratap0/transmuta/pkg/sink"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 10000, cfg.Output.BatchSize)
	assert.Equal(t, 0, cfg.Output.Threads)
	assert.Equal(t, runtime.NumCPU(), cfg.Output.Workers())
	assert.Equal(t, ",", cfg.Output.Delimiter)
	assert.Equal(t, "none", cfg.Output.Compression)
	assert.Equal(t, "snappy", cfg.Output.ParquetCompression)
	assert.True(t, cfg.Ingest.HasHeader)
	assert.Equal(t, 0, cfg.Ingest.SkipRows)
	assert.Equal(t, "utf-8", cfg.Ingest.Encoding)
	assert.Equal(t, 1000, cfg.Generate.Rows)
	assert.Nil(t, cfg.Generate.Seed)
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("TRANSMUTA_OUTPUT_BATCH_SIZE", "250")
	t.Setenv("TRANSMUTA_INGEST_HAS_HEADER", "false")
	t.Setenv("TRANSMUTA_GENERATE_SEED", "42")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Output.BatchSize)
	assert.False(t, cfg.Ingest.HasHeader)
	require.NotNil(t, cfg.Generate.Seed)
	assert.EqualValues(t, 42, *cfg.Generate.Seed)
}

func TestConfigFile(t *testing.T) {
	t.Setenv("PROM_DIR", "/var/lib/prom")
	path := filepath.Join(t.TempDir(), "transmuta.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
output:
  batch_size: 500
  threads: 3
  delimiter: '\t'
ingest:
  skip_rows: 2
generate:
  seed: 7
metrics:
  file: ${PROM_DIR}/run.prom
`), 0o600))

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Output.BatchSize)
	assert.Equal(t, 3, cfg.Output.Workers())
	assert.Equal(t, `\t`, cfg.Output.Delimiter)
	assert.Equal(t, 2, cfg.Ingest.SkipRows)
	assert.Equal(t, "/var/lib/prom/run.prom", cfg.Metrics.File)
	require.NotNil(t, cfg.Generate.Seed)
	assert.EqualValues(t, 7, *cfg.Generate.Seed)

	opts, err := cfg.Output.SinkOptions()
	require.NoError(t, err)
	assert.Equal(t, '\t', opts.Delimiter)
}

func TestOutputDelimiterFollowsIngest(t *testing.T) {
	t.Setenv("TRANSMUTA_INGEST_DELIMITER", `\t`)
	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, `\t`, cfg.Output.Delimiter)

	t.Setenv("TRANSMUTA_OUTPUT_DELIMITER", ";")
	cfg, err = Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, ";", cfg.Output.Delimiter, "explicit output delimiter wins")
	assert.Equal(t, `\t`, cfg.Ingest.Delimiter)
}

func TestPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transmuta.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"output": {"batch_size": 500, "threads": 2}}`), 0o600))
	t.Setenv("TRANSMUTA_OUTPUT_BATCH_SIZE", "600")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("batch-size", 10000, "")
	require.NoError(t, flags.Parse([]string{"--batch-size", "700"}))

	v := New()
	require.NoError(t, v.BindPFlag("output.batch_size", flags.Lookup("batch-size")))

	cfg, err := Load(v, path)
	require.NoError(t, err)
	assert.Equal(t, 700, cfg.Output.BatchSize, "flag wins")
	assert.Equal(t, 2, cfg.Output.Threads, "file beats default")
}

func TestUnchangedFlagKeepsLowerLayers(t *testing.T) {
	t.Setenv("TRANSMUTA_OUTPUT_BATCH_SIZE", "600")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("batch-size", 10000, "")
	require.NoError(t, flags.Parse(nil))

	v := New()
	require.NoError(t, v.BindPFlag("output.batch_size", flags.Lookup("batch-size")))

	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, 600, cfg.Output.BatchSize)
}

func TestConfigFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(New(), filepath.Join(dir, "missing.yaml"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))

	ini := filepath.Join(dir, "conf.ini")
	require.NoError(t, os.WriteFile(ini, []byte("a=b"), 0o600))
	_, err = Load(New(), ini)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("output: [unclosed"), 0o600))
	_, err = Load(New(), bad)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch size", func(c *Config) { c.Output.BatchSize = 0 }},
		{"negative threads", func(c *Config) { c.Output.Threads = -1 }},
		{"negative skip rows", func(c *Config) { c.Ingest.SkipRows = -2 }},
		{"negative rows", func(c *Config) { c.Generate.Rows = -1 }},
		{"compression level", func(c *Config) { c.Output.CompressionLevel = 10 }},
		{"output delimiter", func(c *Config) { c.Output.Delimiter = ";;" }},
		{"ingest delimiter", func(c *Config) { c.Ingest.Delimiter = "" }},
		{"compression", func(c *Config) { c.Output.Compression = "rar" }},
		{"format", func(c *Config) { c.Output.Format = "xml" }},
		{"log format", func(c *Config) { c.Log.Format = "pretty" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), err.Error())
		})
	}
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in   string
		want rune
	}{
		{",", ','},
		{";", ';'},
		{`\t`, '\t'},
		{`\n`, '\n'},
		{`\r`, '\r'},
		{"\t", '\t'},
		{"§", '§'},
	}
	for _, tt := range tests {
		got, err := ParseDelimiter(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", ",,", `\x`, "ab"} {
		_, err := ParseDelimiter(bad)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), bad)
	}
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		flag, output string
		want         sink.Format
	}{
		{"", "out.csv", sink.CSV},
		{"", "out.tsv", sink.CSV},
		{"", "out.json", sink.JSON},
		{"", "out.jsonl", sink.JSONL},
		{"", "out.ndjson", sink.JSONL},
		{"", "dir/out.PARQUET", sink.Parquet},
		{"", "out.arrow", sink.Arrow},
		{"", "out.feather", sink.Arrow},
		{"", "out.ipc", sink.Arrow},
		{"", "out.avro", sink.Avro},
		{"", "out.csv.gz", sink.CSV},
		{"", "out.json.zst", sink.JSON},
		{"parquet", "out.csv", sink.Parquet},
		{"JSONL", "out", sink.JSONL},
	}
	for _, tt := range tests {
		got, err := ResolveFormat(tt.flag, tt.output)
		require.NoError(t, err, tt.output)
		assert.Equal(t, tt.want, got, tt.output)
	}

	_, err := ResolveFormat("", "out.bin")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "out.bin")

	_, err = ResolveFormat("xml", "out.csv")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestCheckCompression(t *testing.T) {
	assert.NoError(t, CheckCompression(sink.Parquet, compression.None))
	assert.NoError(t, CheckCompression(sink.CSV, compression.Gzip))
	assert.NoError(t, CheckCompression(sink.JSONL, compression.Zstd))
	assert.True(t, errors.IsType(CheckCompression(sink.Parquet, compression.Gzip), errors.ErrorTypeConfig))
	assert.True(t, errors.IsType(CheckCompression(sink.Avro, compression.LZ4), errors.ErrorTypeConfig))
}

func TestEncode(t *testing.T) {
	cfg := Default()
	seed := uint64(99)
	cfg.Generate.Seed = &seed

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, cfg))

	var decoded Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, cfg.Output, decoded.Output)
	require.NotNil(t, decoded.Generate.Seed)
	assert.EqualValues(t, 99, *decoded.Generate.Seed)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("A", "x")
	assert.Equal(t, "x-x-", substituteEnvVars("${A}-${A}-${UNSET_TRANSMUTA_VAR}"))
	assert.Equal(t, "keep ${open", substituteEnvVars("keep ${open"))
}

func TestIngestOptions(t *testing.T) {
	cfg := Default()
	cfg.Ingest.Delimiter = "|"
	cfg.Ingest.Encoding = "latin1"

	opts, err := cfg.Ingest.CSVOptions()
	require.NoError(t, err)
	assert.Equal(t, '|', opts.Delimiter)
	assert.Equal(t, "latin1", opts.Encoding)

	algo, err := cfg.Output.CompressionAlgorithm()
	require.NoError(t, err)
	assert.Equal(t, compression.None, algo)

	assert.Equal(t, "info", cfg.Log.Logger().Level)
}
