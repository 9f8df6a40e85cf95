package main

import (
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/transmuta/pkg/compression"
	"github.com/ajitpratap0/transmuta/pkg/config"
	"github.com/ajitpratap0/transmuta/pkg/datagen"
	"github.com/ajitpratap0/transmuta/pkg/errors"
	"github.com/ajitpratap0/transmuta/pkg/fieldset"
	"github.com/ajitpratap0/transmuta/pkg/ingest"
	"github.com/ajitpratap0/transmuta/pkg/metrics"
	"github.com/ajitpratap0/transmuta/pkg/pipeline"
	"github.com/ajitpratap0/transmuta/pkg/schema"
	"github.com/ajitpratap0/transmuta/pkg/sink"
)

func inputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("input", "i", "", "Input file")
	f.Bool("has-header", true, "Treat the first row as column names")
	f.Int("skip-rows", 0, "Rows to skip before the header")
	_ = cmd.MarkFlagRequired("input")
}

func newExcelCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "excel",
		Short: "Convert a spreadsheet worksheet",
		Example: `  transmuta excel -i report.xlsx -o report.parquet
  transmuta excel -i report.xlsx --sheet Q3 -o q3.jsonl -b 50000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.convert(cmd, func(path string) (ingest.RowSource, error) {
				return ingest.OpenSpreadsheet(path, ingest.SheetOptions{Sheet: a.cfg.Ingest.Sheet})
			})
		},
	}
	inputFlags(cmd)
	cmd.Flags().String("sheet", "", "Worksheet to read (default: first sheet)")
	cmd.Flags().StringP("delimiter", "d", ",", `Delimiter of CSV output (single character, \t allowed)`)
	outputFlags(cmd)
	return cmd
}

func newCSVCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Convert a delimited text file",
		Example: `  transmuta csv -i data.csv -o data.parquet
  transmuta csv -i data.tsv -d '\t' -o data.json.gz --compression gzip`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.cfg.Ingest.CSVOptions()
			if err != nil {
				return err
			}
			return a.convert(cmd, func(path string) (ingest.RowSource, error) {
				return ingest.OpenCSV(path, opts)
			})
		},
	}
	inputFlags(cmd)
	f := cmd.Flags()
	f.StringP("delimiter", "d", ",", `Delimiter of the input and of CSV output (single character, \t allowed)`)
	f.String("encoding", "utf-8", "Input character set (utf-8, windows-1252, shift_jis, ...)")
	f.Bool("lazy-quotes", false, "Tolerate bare quotes in unquoted fields")
	outputFlags(cmd)
	return cmd
}

func newDatagenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datagen",
		Short: "Generate random rows from a column schema",
		Long: `Generate random rows that conform to a schema.

The schema is a delimited file with one "name,type" line per column, or a
JSON or YAML list of {name, type} objects. The same seed always produces the
same rows.`,
		Example: `  transmuta datagen -s schema.csv -r 1000000 -o data.parquet --seed 42
  transmuta datagen -s schema.yaml -r 500 -o sample.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.generate(cmd)
		},
	}
	f := cmd.Flags()
	f.StringP("schema", "s", "", "Schema file")
	f.String("schema-format", "", "Schema format (csv, json, yaml); guessed from the extension when empty")
	f.StringP("delimiter", "d", ",", "Delimiter of a CSV schema and of CSV output")
	f.IntP("rows", "r", 1000, "Rows to generate")
	f.Uint64("seed", 0, "Random seed (default: current time)")
	_ = cmd.MarkFlagRequired("schema")
	outputFlags(cmd)
	return cmd
}

func newDiffCmd(a *app) *cobra.Command {
	var (
		file1, file2, output, report, mode, delimiter string
		opts                                          fieldset.Options
	)
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare the header fields of two delimited files",
		Example: `  transmuta diff --file1 a.csv --file2 b.csv -o fields.txt -m complement
  transmuta diff --file1 a.csv --file2 b.csv -o fields.txt --report report.txt --ignore-case`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := fieldset.ParseMode(mode)
			if err != nil {
				return err
			}
			if opts.Delimiter, err = config.ParseDelimiter(delimiter); err != nil {
				return err
			}
			d, err := fieldset.Run(fieldset.Request{
				File1:   file1,
				File2:   file2,
				Output:  output,
				Report:  report,
				Mode:    m,
				Options: opts,
				Logger:  a.log,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d fields in %s, %d in %s, %d common; wrote %d to %s\n",
				len(d.Fields1), file1, len(d.Fields2), file2, d.Common(), len(d.Select(m)), output)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&file1, "file1", "", "First file")
	f.StringVar(&file2, "file2", "", "Second file")
	f.StringVarP(&output, "output", "o", "", "File receiving the selected fields")
	f.StringVar(&report, "report", "", "Optional plain-text comparison report")
	f.StringVarP(&mode, "mode", "m", string(fieldset.Union), fmt.Sprintf("Selection mode %v", fieldset.Modes()))
	f.StringVarP(&delimiter, "delimiter", "d", ",", "Field delimiter of both files and of the output")
	f.BoolVar(&opts.IgnoreCase, "ignore-case", false, "Compare fields case-insensitively")
	f.BoolVar(&opts.IgnoreWhitespace, "ignore-whitespace", false, "Remove all white space inside fields")
	for _, name := range []string{"file1", "file2", "output"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Encode(cmd.OutOrStdout(), a.cfg)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// the root pre-run would load configuration for nothing
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "transmuta version %s\n", version)
			fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(w, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// convert runs an ingest command: rows from the source opened by open are
// batched and written in the configured output format.
func (a *app) convert(cmd *cobra.Command, open func(path string) (ingest.RowSource, error)) error {
	in := a.cfg.Ingest
	src, err := open(in.Input)
	if err != nil {
		return err
	}
	b, err := ingest.NewBatcher(src, ingest.Options{
		HasHeader: in.HasHeader,
		SkipRows:  in.SkipRows,
		BatchSize: a.cfg.Output.BatchSize,
		Name:      in.Input,
		Logger:    a.log,
	})
	if err != nil {
		return err
	}
	defer b.Close()

	col := metrics.NewCollector(cmd.Name())
	r, err := a.runner(col)
	if err != nil {
		return err
	}
	res, err := r.RunIngest(a.ctx, b)
	if err != nil {
		return err
	}
	return a.finish(cmd.OutOrStdout(), col, r, res)
}

func (a *app) generate(cmd *cobra.Command) error {
	gen := a.cfg.Generate
	format, err := schema.ParseFormat(gen.SchemaFormat)
	if err != nil {
		return err
	}
	delim, err := config.ParseDelimiter(a.cfg.Ingest.Delimiter)
	if err != nil {
		return err
	}
	s, err := schema.LoadFile(gen.Schema, format, delim)
	if err != nil {
		return err
	}

	g := datagen.New(datagen.Options{Seed: gen.Seed, Logger: a.log})
	a.log.Debug("generator ready",
		zap.String("schema", gen.Schema),
		zap.Int("columns", s.Len()),
		zap.Uint64("seed", g.Seed()))

	col := metrics.NewCollector(cmd.Name())
	r, err := a.runner(col)
	if err != nil {
		return err
	}
	res, err := r.RunGenerate(a.ctx, g, s, gen.Rows, a.cfg.Output.BatchSize)
	if err != nil {
		return err
	}
	return a.finish(cmd.OutOrStdout(), col, r, res)
}

// runner builds the sink writer and orchestrator from the output section.
func (a *app) runner(col *metrics.Collector) (*pipeline.Runner, error) {
	out := a.cfg.Output
	if out.Path == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "output path is required")
	}
	format, err := config.ResolveFormat(out.Format, out.Path)
	if err != nil {
		return nil, err
	}
	algo, err := out.CompressionAlgorithm()
	if err != nil {
		return nil, err
	}
	if err := config.CheckCompression(format, algo); err != nil {
		return nil, err
	}

	sinkOpts, err := out.SinkOptions()
	if err != nil {
		return nil, err
	}
	sinkOpts.Logger = a.log
	w, err := sink.New(format, sinkOpts)
	if err != nil {
		return nil, err
	}

	return pipeline.New(pipeline.Options{
		Output:       out.Path,
		Writer:       w,
		Compression:  algo,
		Level:        compression.Level(out.CompressionLevel),
		Threads:      out.Workers(),
		ManifestPath: out.Manifest,
		Logger:       a.log,
		Metrics:      col,
	})
}

func (a *app) finish(w io.Writer, col *metrics.Collector, r *pipeline.Runner, res *pipeline.Result) error {
	if path := a.cfg.Metrics.File; path != "" {
		if err := col.WriteTextfile(path); err != nil {
			return err
		}
	}

	if len(res.Parts) == 1 {
		fmt.Fprintf(w, "wrote %d rows to %s in %s\n", res.Rows, res.Parts[0].Path, res.Elapsed.Round(time.Millisecond))
		return nil
	}
	fmt.Fprintf(w, "wrote %d rows in %d parts named after %s in %s\n",
		res.Rows, len(res.Parts), r.Output(), res.Elapsed.Round(time.Millisecond))
	for _, p := range res.Parts {
		fmt.Fprintf(w, "  %s (%d rows)\n", p.Path, p.Rows)
	}
	return nil
}
