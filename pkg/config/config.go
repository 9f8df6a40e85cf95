package config

import (
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/transmuta/pkg/compression"
	"github.com/ajitpratap0/transmuta/pkg/errors"
	"github.com/ajitpratap0/transmuta/pkg/ingest"
	"github.com/ajitpratap0/transmuta/pkg/logger"
	"github.com/ajitpratap0/transmuta/pkg/sink"
)

// EnvPrefix prefixes every environment variable read by Load, so
// output.batch_size is read from TRANSMUTA_OUTPUT_BATCH_SIZE.
const EnvPrefix = "TRANSMUTA"

// Config is the complete configuration of a run.
type Config struct {
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Ingest   IngestConfig   `mapstructure:"ingest" yaml:"ingest"`
	Generate GenerateConfig `mapstructure:"generate" yaml:"generate"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
	// Format is json or console
	Format      string `mapstructure:"format" yaml:"format"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// OutputConfig describes where and how records are written.
type OutputConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
	// Format overrides the format guessed from Path
	Format    string `mapstructure:"format" yaml:"format"`
	BatchSize int    `mapstructure:"batch_size" yaml:"batch_size"`
	// Threads bounds concurrent part encoding, 0 means one per CPU
	Threads int `mapstructure:"threads" yaml:"threads"`
	// Delimiter separates fields of CSV output
	Delimiter string `mapstructure:"delimiter" yaml:"delimiter"`
	// Compression wraps text output files (none, gzip, zstd, snappy, s2, lz4)
	Compression        string `mapstructure:"compression" yaml:"compression"`
	CompressionLevel   int    `mapstructure:"compression_level" yaml:"compression_level"`
	ParquetCompression string `mapstructure:"parquet_compression" yaml:"parquet_compression"`
	ArrowCompression   string `mapstructure:"arrow_compression" yaml:"arrow_compression"`
	AvroCodec          string `mapstructure:"avro_codec" yaml:"avro_codec"`
	Manifest           string `mapstructure:"manifest" yaml:"manifest"`
}

// IngestConfig describes the row source.
type IngestConfig struct {
	Input      string `mapstructure:"input" yaml:"input"`
	Delimiter  string `mapstructure:"delimiter" yaml:"delimiter"`
	HasHeader  bool   `mapstructure:"has_header" yaml:"has_header"`
	SkipRows   int    `mapstructure:"skip_rows" yaml:"skip_rows"`
	Encoding   string `mapstructure:"encoding" yaml:"encoding"`
	LazyQuotes bool   `mapstructure:"lazy_quotes" yaml:"lazy_quotes"`
	Sheet      string `mapstructure:"sheet" yaml:"sheet"`
}

// GenerateConfig describes a synthetic run.
type GenerateConfig struct {
	Schema string `mapstructure:"schema" yaml:"schema"`
	// SchemaFormat is csv, json or yaml; empty guesses from the extension
	SchemaFormat string `mapstructure:"schema_format" yaml:"schema_format"`
	Rows         int    `mapstructure:"rows" yaml:"rows"`
	// Seed is nil when no seed was configured
	Seed *uint64 `mapstructure:"-" yaml:"seed,omitempty"`
}

// MetricsConfig enables the Prometheus textfile written at the end of a run.
type MetricsConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

// New returns a viper instance with every default registered and
// environment lookup enabled.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.development", false)

	v.SetDefault("output.path", "")
	v.SetDefault("output.format", "")
	v.SetDefault("output.batch_size", ingest.DefaultBatchSize)
	v.SetDefault("output.threads", 0)
	// empty follows ingest.delimiter
	v.SetDefault("output.delimiter", "")
	v.SetDefault("output.compression", string(compression.None))
	v.SetDefault("output.compression_level", int(compression.Default))
	v.SetDefault("output.parquet_compression", "snappy")
	v.SetDefault("output.arrow_compression", "none")
	v.SetDefault("output.avro_codec", "null")
	v.SetDefault("output.manifest", "")

	v.SetDefault("ingest.input", "")
	v.SetDefault("ingest.delimiter", ",")
	v.SetDefault("ingest.has_header", true)
	v.SetDefault("ingest.skip_rows", 0)
	v.SetDefault("ingest.encoding", "utf-8")
	v.SetDefault("ingest.lazy_quotes", false)
	v.SetDefault("ingest.sheet", "")

	v.SetDefault("generate.schema", "")
	v.SetDefault("generate.schema_format", "")
	v.SetDefault("generate.rows", 1000)

	v.SetDefault("metrics.file", "")
}

// Load reads the optional config file at path into v and decodes the
// merged settings. The result is validated.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		if err := readFile(v, path); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode configuration")
	}
	if cfg.Output.Delimiter == "" {
		cfg.Output.Delimiter = cfg.Ingest.Delimiter
	}
	if v.IsSet("generate.seed") {
		seed := v.GetUint64("generate.seed")
		cfg.Generate.Seed = &seed
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration produced by the defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := Load(v, "")
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate checks ranges and names. It does not touch the filesystem.
func (c *Config) Validate() error {
	if c.Output.BatchSize <= 0 {
		return invalid("output.batch_size", "must be positive", c.Output.BatchSize)
	}
	if c.Output.Threads < 0 {
		return invalid("output.threads", "cannot be negative", c.Output.Threads)
	}
	if c.Ingest.SkipRows < 0 {
		return invalid("ingest.skip_rows", "cannot be negative", c.Ingest.SkipRows)
	}
	if c.Generate.Rows < 0 {
		return invalid("generate.rows", "cannot be negative", c.Generate.Rows)
	}
	if l := c.Output.CompressionLevel; l < int(compression.Fastest) || l > int(compression.Best) {
		return invalid("output.compression_level", "must be between 1 and 9", l)
	}
	if _, err := ParseDelimiter(c.Output.Delimiter); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid output.delimiter")
	}
	if _, err := ParseDelimiter(c.Ingest.Delimiter); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid ingest.delimiter")
	}
	if _, err := compression.Parse(c.Output.Compression); err != nil {
		return err
	}
	if c.Output.Format != "" {
		if _, err := sink.ParseFormat(c.Output.Format); err != nil {
			return err
		}
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return invalid("log.format", "must be json or console", c.Log.Format)
	}
	return nil
}

func invalid(key, msg string, value any) error {
	return errors.Newf(errors.ErrorTypeConfig, "%s %s", key, msg).
		WithDetail("key", key).
		WithDetail("value", value)
}

// Workers returns the effective thread count.
func (o OutputConfig) Workers() int {
	if o.Threads <= 0 {
		return runtime.NumCPU()
	}
	return o.Threads
}

// SinkOptions builds writer options from the output section.
func (o OutputConfig) SinkOptions() (sink.Options, error) {
	delim, err := ParseDelimiter(o.Delimiter)
	if err != nil {
		return sink.Options{}, err
	}
	return sink.Options{
		Delimiter:          delim,
		ParquetCompression: o.ParquetCompression,
		ArrowCompression:   o.ArrowCompression,
		AvroCodec:          o.AvroCodec,
	}, nil
}

// CompressionAlgorithm resolves the text compression setting.
func (o OutputConfig) CompressionAlgorithm() (compression.Algorithm, error) {
	return compression.Parse(o.Compression)
}

// CSVOptions builds source options from the ingest section.
func (i IngestConfig) CSVOptions() (ingest.CSVOptions, error) {
	delim, err := ParseDelimiter(i.Delimiter)
	if err != nil {
		return ingest.CSVOptions{}, err
	}
	return ingest.CSVOptions{
		Delimiter:  delim,
		Encoding:   i.Encoding,
		LazyQuotes: i.LazyQuotes,
	}, nil
}

// Logger converts the log section for logger.Init.
func (l LogConfig) Logger() logger.Config {
	return logger.Config{
		Level:       l.Level,
		Development: l.Development,
		Encoding:    l.Format,
	}
}
