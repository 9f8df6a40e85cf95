// Package pipeline writes the batches of one run to disk.
//
// A Runner pulls records either from an ingest.Batcher or from a
// datagen.Generator and hands each one to a sink.Writer. A run that fits in
// a single batch writes the configured output path verbatim. Larger runs
// write one file per batch, named after the output path's stem with a
// 1-based, four digit part index:
//
//	out.parquet     ->  out_part0001.parquet, out_part0002.parquet, ...
//	out.csv.gz      ->  out_part0001.csv.gz, ...
//
// # Concurrency
//
// Batches are always read sequentially, so part N holds the N-th batch of
// the source. Encoding runs on up to Options.Threads goroutines through an
// errgroup; the first failure cancels the remaining parts. Parts that were
// already written stay on disk, the failing part is removed.
//
// # Basic Usage
//
//	w, _ := sink.New(sink.Parquet, sink.Options{})
//	r, err := pipeline.New(pipeline.Options{
//		Output:       "out/data.parquet",
//		Writer:       w,
//		Threads:      4,
//		ManifestPath: "out/manifest.json",
//	})
//	if err != nil {
//		return err
//	}
//	res, err := r.RunIngest(ctx, batcher)
//
// The optional manifest lists every part with its row count, byte size and
// xxh3-64 checksum of the bytes on disk.
package pipeline
