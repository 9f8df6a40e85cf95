// Package transmuta converts tabular data between row-oriented sources and
// typed sinks, and generates random datasets that conform to a schema.
//
// # Architecture
//
// The engine is split into small packages that agree on one type model:
//
//   - pkg/datatype: the logical type taxonomy and its Arrow mapping
//   - pkg/schema: ordered (name, type) columns loaded from CSV, JSON or YAML
//   - pkg/datagen: a seeded random generator producing Arrow records
//   - pkg/codec: rendering of any column value as text or a structured value
//   - pkg/ingest: batched reading of delimited text and spreadsheets
//   - pkg/sink: CSV, JSON, JSONL, Parquet, Arrow IPC and Avro writers
//   - pkg/pipeline: the orchestrator writing one file or numbered part files
//
// Ambient concerns live in pkg/config (viper), pkg/logger (zap),
// pkg/errors, pkg/metrics (Prometheus) and pkg/compression.
//
// # Quick Start
//
// Convert a CSV file to Parquet, 100k rows per part file:
//
//	transmuta csv -i events.csv -o events.parquet -b 100000
//
// Generate one million reproducible rows:
//
//	transmuta datagen -s schema.yaml -r 1000000 --seed 7 -o sample.jsonl
//
// The same pipeline from Go:
//
//	w, _ := sink.New(sink.Parquet, sink.Options{})
//	r, _ := pipeline.New(pipeline.Options{Output: "events.parquet", Writer: w})
//	src, _ := ingest.OpenCSV("events.csv", ingest.CSVOptions{})
//	b, _ := ingest.NewBatcher(src, ingest.Options{HasHeader: true, BatchSize: 100000})
//	defer b.Close()
//	res, err := r.RunIngest(ctx, b)
//
// # Part Files
//
// A run whose source fits into one batch writes the output path as given.
// Otherwise every batch becomes out_partNNNN.ext, numbered from 1 in source
// order, regardless of how many parts are encoded concurrently.
package transmuta
