package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/transmuta/pkg/compression"
	"github.com/ajitpratap0/transmuta/pkg/datagen"
	"github.com/ajitpratap0/transmuta/pkg/errors"
	"github.com/ajitpratap0/transmuta/pkg/ingest"
	"github.com/ajitpratap0/transmuta/pkg/logger"
	"github.com/ajitpratap0/transmuta/pkg/metrics"
	"github.com/ajitpratap0/transmuta/pkg/schema"
	"github.com/ajitpratap0/transmuta/pkg/sink"
)

// Options configures a Runner.
type Options struct {
	// Output is the file written by single-batch runs and the template for
	// part names otherwise.
	Output string
	Writer sink.Writer
	// Compression wraps every output file. The algorithm's extension is
	// appended to Output when missing.
	Compression compression.Algorithm
	Level       compression.Level
	// Threads bounds how many parts are encoded at once. Zero means
	// runtime.NumCPU().
	Threads int
	// ManifestPath, when set, receives a JSON description of the run.
	ManifestPath string
	Logger       *zap.Logger
	Metrics      *metrics.Collector
}

// Part describes one written output file.
type Part struct {
	Index    int    `json:"index"`
	Path     string `json:"path"`
	Rows     int64  `json:"rows"`
	Bytes    int64  `json:"bytes"`
	Checksum string `json:"xxh3"`
}

// Result summarises a run.
type Result struct {
	Parts   []Part
	Rows    int64
	Elapsed time.Duration
}

// Runner drives batches from a source to the sink writer, deciding between
// a single output file and numbered part files.
type Runner struct {
	opts   Options
	logger *zap.Logger
}

// New validates opts and returns a Runner.
func New(opts Options) (*Runner, error) {
	if opts.Output == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "output path is required")
	}
	if opts.Writer == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "sink writer is required")
	}
	if opts.Threads < 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "threads must not be negative, got %d", opts.Threads)
	}
	if opts.Threads == 0 {
		opts.Threads = runtime.NumCPU()
	}
	if opts.Compression == "" {
		opts.Compression = compression.None
	}
	if opts.Level == 0 {
		opts.Level = compression.Default
	}
	if opts.Compression != compression.None {
		if algo, _ := compression.FromPath(opts.Output); algo != opts.Compression {
			opts.Output += opts.Compression.Extension()
		}
	}

	return &Runner{
		opts: opts,
		logger: logger.OrGlobal(opts.Logger).With(
			zap.String("component", "pipeline"),
			zap.String("output", opts.Output),
			zap.String("format", string(opts.Writer.Format())),
		),
	}, nil
}

// Output returns the effective output path.
func (r *Runner) Output() string { return r.opts.Output }

// batchSource yields records in source order.
type batchSource interface {
	// next returns io.EOF when no batch is left.
	next() (arrow.Record, error)
	// more reports whether next would return another batch.
	more() bool
}

// RunIngest writes every batch of b. The batcher is not closed.
func (r *Runner) RunIngest(ctx context.Context, b *ingest.Batcher) (*Result, error) {
	return r.run(ctx, batcherSource{b}, nil)
}

// RunGenerate writes rows random rows for s in batches of batchSize.
// A batchSize <= 0 writes a single file.
func (r *Runner) RunGenerate(ctx context.Context, g *datagen.Generator, s *schema.Schema, rows, batchSize int) (*Result, error) {
	if rows < 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "row count must not be negative, got %d", rows)
	}
	if batchSize <= 0 || batchSize > rows {
		batchSize = rows
	}
	seed := g.Seed()
	return r.run(ctx, &generatedSource{gen: g, schema: s, remaining: rows, batchSize: batchSize}, &seed)
}

func (r *Runner) run(ctx context.Context, src batchSource, seed *uint64) (*Result, error) {
	start := time.Now()
	r.logger.Info("run started", zap.Int("threads", r.opts.Threads),
		zap.String("compression", string(r.opts.Compression)))

	if dir := filepath.Dir(r.opts.Output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to create output directory").
				WithDetail("file", dir)
		}
	}

	first, err := src.next()
	if err != nil {
		return nil, err
	}

	res := &Result{}
	if !src.more() {
		part, err := r.flush(1, r.opts.Output, first)
		first.Release()
		if err != nil {
			return nil, err
		}
		res.Parts = []Part{part}
	} else {
		parts, err := r.fanOut(ctx, src, first)
		if err != nil {
			return nil, err
		}
		res.Parts = parts
	}

	for _, p := range res.Parts {
		res.Rows += p.Rows
	}
	res.Elapsed = time.Since(start)

	if r.opts.ManifestPath != "" {
		if err := writeManifest(r.opts.ManifestPath, r.manifest(res, seed)); err != nil {
			return nil, err
		}
	}
	r.opts.Metrics.Finish()

	r.logger.Info("run finished",
		zap.Int("parts", len(res.Parts)),
		zap.Int64("rows", res.Rows),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// fanOut writes first and every following batch to numbered part files,
// encoding up to Threads parts at once. Batches are pulled in order so part
// N always holds the N-th batch.
func (r *Runner) fanOut(ctx context.Context, src batchSource, first arrow.Record) ([]Part, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Threads)

	var (
		mu    sync.Mutex
		parts []Part
	)
	submit := func(index int, rec arrow.Record) {
		g.Go(func() error {
			defer rec.Release()
			if err := gctx.Err(); err != nil {
				return err
			}
			part, err := r.flush(index, PartPath(r.opts.Output, index), rec)
			if err != nil {
				return err
			}
			mu.Lock()
			parts = append(parts, part)
			mu.Unlock()
			return nil
		})
	}

	submit(1, first)
	var readErr error
	for index := 2; gctx.Err() == nil; index++ {
		rec, err := src.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			readErr = err
			break
		}
		submit(index, rec)
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(parts, func(i, j int) bool { return parts[i].Index < parts[j].Index })
	return parts, nil
}

// flush encodes rec as one complete file at path.
func (r *Runner) flush(index int, path string, rec arrow.Record) (Part, error) {
	timer := metrics.NewTimer()

	pf, err := createPart(path, r.opts.Compression, r.opts.Level)
	if err != nil {
		return Part{}, errors.Wrap(err, errors.ErrorTypeIO, "failed to create output file").
			WithDetail("file", path)
	}
	if err := r.opts.Writer.Write(pf.Writer(), rec); err != nil {
		pf.Abort()
		kind := errors.TypeOf(err)
		if kind == "" {
			kind = errors.ErrorTypeEncoding
		}
		return Part{}, errors.Wrap(err, kind, "failed to write output file").
			WithDetail("file", path).
			WithDetail("part", index)
	}
	if err := pf.Close(); err != nil {
		os.Remove(path)
		return Part{}, errors.Wrap(err, errors.ErrorTypeIO, "failed to finish output file").
			WithDetail("file", path)
	}

	took := timer.Stop()
	part := Part{
		Index:    index,
		Path:     path,
		Rows:     rec.NumRows(),
		Bytes:    pf.sum.count,
		Checksum: pf.sum.Sum(),
	}
	r.opts.Metrics.ObservePart(string(r.opts.Writer.Format()), part.Rows, part.Bytes, took)
	r.logger.Info("part written",
		zap.String("path", path),
		zap.Int("part", index),
		zap.Int64("rows", part.Rows),
		zap.Int64("bytes", part.Bytes),
		zap.Duration("took", took))
	return part, nil
}

type batcherSource struct {
	b *ingest.Batcher
}

func (s batcherSource) next() (arrow.Record, error) { return s.b.Next() }
func (s batcherSource) more() bool                  { return s.b.More() }

// generatedSource draws consecutive batches from one generator state.
type generatedSource struct {
	gen       *datagen.Generator
	schema    *schema.Schema
	remaining int
	batchSize int
	started   bool
}

func (s *generatedSource) next() (arrow.Record, error) {
	if !s.more() {
		return nil, io.EOF
	}
	n := min(s.batchSize, s.remaining)
	rec, err := s.gen.Generate(s.schema, n)
	if err != nil {
		return nil, err
	}
	s.started = true
	s.remaining -= n
	return rec, nil
}

// more is true until the first batch is drawn, so zero rows still yields
// one empty file.
func (s *generatedSource) more() bool {
	return s.remaining > 0 || !s.started
}
