package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/transmuta/pkg/config"
	"github.com/ajitpratap0/transmuta/pkg/logger"
)

// flagKeys maps command line flags to configuration keys. Only flags of the
// command being executed are bound, so subcommands may share flag names.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",

	"output":              "output.path",
	"format":              "output.format",
	"batch-size":          "output.batch_size",
	"threads":             "output.threads",
	"output-delimiter":    "output.delimiter",
	"compression":         "output.compression",
	"compression-level":   "output.compression_level",
	"parquet-compression": "output.parquet_compression",
	"arrow-compression":   "output.arrow_compression",
	"avro-codec":          "output.avro_codec",
	"manifest":            "output.manifest",

	"input":       "ingest.input",
	"delimiter":   "ingest.delimiter",
	"has-header":  "ingest.has_header",
	"skip-rows":   "ingest.skip_rows",
	"encoding":    "ingest.encoding",
	"lazy-quotes": "ingest.lazy_quotes",
	"sheet":       "ingest.sheet",

	"schema":        "generate.schema",
	"schema-format": "generate.schema_format",
	"rows":          "generate.rows",
	"seed":          "generate.seed",

	"metrics-file": "metrics.file",
}

// app carries state shared by every subcommand of one invocation.
type app struct {
	configFile string
	cfg        *config.Config
	log        *zap.Logger
	ctx        context.Context
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "transmuta",
		Short: "transmuta - typed tabular conversion and synthetic data tool",
		Long: `transmuta converts spreadsheets and delimited text into CSV, JSON, JSONL,
Parquet, Arrow IPC and Avro files, generates random datasets from a column
schema and compares the header fields of two files.

Large inputs are written in batches; a run that spans more than one batch
produces numbered part files (out_part0001.parquet, out_part0002.parquet, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Path to a YAML, JSON or TOML config file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "console", "Log encoding (console, json)")

	root.AddCommand(
		newExcelCmd(a),
		newCSVCmd(a),
		newDatagenCmd(a),
		newDiffCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup resolves the configuration of cmd and installs the global logger.
func (a *app) setup(cmd *cobra.Command) error {
	v := config.New()
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}

	cfg, err := config.Load(v, a.configFile)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log.Logger()); err != nil {
		return err
	}

	runID := uuid.NewString()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, logger.RunIDKey, runID)
	ctx = context.WithValue(ctx, logger.CommandKey, cmd.Name())

	a.cfg = cfg
	a.ctx = ctx
	a.log = logger.WithContext(ctx)
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}

// outputFlags registers the flags shared by every command that writes
// converted data.
func outputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("output", "o", "", "Output file; part files are named after it")
	f.StringP("format", "f", "", "Output format (csv, json, jsonl, parquet, arrow, avro); guessed from --output when empty")
	f.IntP("batch-size", "b", 10000, "Rows per batch and per part file")
	f.IntP("threads", "t", 0, "Part files encoded concurrently (0 = one per CPU)")
	f.String("output-delimiter", "", "CSV output delimiter (default: the --delimiter value)")
	f.String("compression", "none", "Stream compression for text output (none, gzip, zstd, snappy, s2, lz4)")
	f.Int("compression-level", 5, "Compression level from 1 (fastest) to 9 (best)")
	f.String("parquet-compression", "snappy", "Parquet codec (none, snappy, gzip, brotli, zstd)")
	f.String("arrow-compression", "none", "Arrow IPC body compression (none, lz4, zstd)")
	f.String("avro-codec", "null", "Avro block codec (null, deflate, snappy)")
	f.String("manifest", "", "Write a JSON manifest of the written files")
	f.String("metrics-file", "", "Write Prometheus metrics in textfile format")
	_ = cmd.MarkFlagRequired("output")
}
