// Package config holds the settings of one transmuta run.
//
// Values are resolved by viper in this order, highest first:
//
//  1. command line flags bound with BindPFlag
//  2. TRANSMUTA_* environment variables (output.batch_size is read from
//     TRANSMUTA_OUTPUT_BATCH_SIZE)
//  3. an optional YAML, JSON or TOML config file passed to Load
//  4. the defaults registered by New
//
// # Sections
//
//   - Log: level and encoding of the structured logger
//   - Output: destination path, format, batching and compression
//   - Ingest: source path, delimiter, header handling and charset
//   - Generate: schema file, row count and seed for synthetic data
//   - Metrics: optional Prometheus textfile
//
// # Config File
//
//	output:
//	  path: out/orders.parquet
//	  batch_size: 50000
//	  threads: 4
//	  parquet_compression: zstd
//	  manifest: out/manifest.json
//	ingest:
//	  delimiter: '\t'
//	  encoding: windows-1252
//	metrics:
//	  file: ${TEXTFILE_DIR}/transmuta.prom
//
// ${VAR} references in the file are replaced with environment values before
// parsing.
package config
