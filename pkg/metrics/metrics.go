// Package metrics tracks the output of one conversion run using Prometheus
// collectors on a private registry.
//
// A Collector is created per run and handed to the pipeline, which reports
// every flushed part file. When the run ends the registry can be written in
// the node_exporter textfile format so batch jobs can be scraped after they
// exit.
//
// # Basic Usage
//
//	c := metrics.NewCollector("csv")
//	timer := metrics.NewTimer()
//	n := writePart(rec)
//	c.ObservePart("parquet", rec.NumRows(), n, timer.Stop())
//	c.Finish()
//	err := c.WriteTextfile("/var/lib/node_exporter/transmuta.prom")
//
// All methods are safe for concurrent use and are no-ops on a nil Collector.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ajitpratap0/transmuta/pkg/errors"
)

const namespace = "transmuta"

// Collector holds the metrics of one run.
type Collector struct {
	registry     *prometheus.Registry
	rowsWritten  prometheus.Counter       // Rows written across all parts
	partsWritten prometheus.Counter       // Part files completed
	bytesWritten *prometheus.CounterVec   // Encoded bytes by output format
	partFlush    prometheus.Histogram     // Seconds spent encoding one part
	throughput   prometheus.Gauge         // Rows per second over the whole run
	duration     prometheus.Gauge         // Wall time of the run
	rows         atomic.Int64
	startTime    time.Time
}

// NewCollector creates a collector whose metrics carry a constant
// command label.
func NewCollector(command string) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"command": command}

	return &Collector{
		registry: reg,
		rowsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "rows_written_total",
			Help:        "Total number of rows written to output files",
			ConstLabels: labels,
		}),
		partsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "parts_written_total",
			Help:        "Total number of output files completed",
			ConstLabels: labels,
		}),
		bytesWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "bytes_written_total",
			Help:        "Total number of bytes written to output files",
			ConstLabels: labels,
		}, []string{"format"}),
		partFlush: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "part_flush_seconds",
			Help:        "Time taken to encode and write one output file",
			ConstLabels: labels,
			Buckets: []float64{
				0.001, // 1ms - tiny batches
				0.01,
				0.1,
				0.5,
				1,
				5,
				30, // large parquet parts
			},
		}),
		throughput: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "throughput_rows_per_second",
			Help:        "Rows written per second over the run",
			ConstLabels: labels,
		}),
		duration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "run_duration_seconds",
			Help:        "Wall time of the run",
			ConstLabels: labels,
		}),
		startTime: time.Now(),
	}
}

// ObservePart records one completed part file.
func (c *Collector) ObservePart(format string, rows, bytes int64, took time.Duration) {
	if c == nil {
		return
	}
	c.rows.Add(rows)
	c.rowsWritten.Add(float64(rows))
	c.partsWritten.Inc()
	c.bytesWritten.WithLabelValues(format).Add(float64(bytes))
	c.partFlush.Observe(took.Seconds())
}

// Finish sets the run duration and throughput gauges from the time elapsed
// since NewCollector.
func (c *Collector) Finish() {
	if c == nil {
		return
	}
	elapsed := time.Since(c.startTime).Seconds()
	c.duration.Set(elapsed)
	if elapsed > 0 {
		c.throughput.Set(float64(c.rows.Load()) / elapsed)
	}
}

// Registry exposes the underlying registry, for example to serve it over
// HTTP in a long-running embedding.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	if c == nil {
		return time.Time{}
	}
	return c.startTime
}

// WriteTextfile writes every metric to path in the text exposition format.
// The file is written atomically.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write metrics file").
			WithDetail("file", path)
	}
	return nil
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. It may be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
