// Package datagen synthesizes typed columnar batches for a schema.
//
// Output is a pure function of the schema, the row count, the seed and the
// call order: columns are filled one after another from a single ChaCha8
// stream. Unseeded generators take their seed from the clock and are therefore
// not reproducible.
package datagen

import (
	"encoding/binary"
	"math"
	"math/rand/v2"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ajitpratap0/transmuta/pkg/datatype"
	"github.com/ajitpratap0/transmuta/pkg/errors"
	"github.com/ajitpratap0/transmuta/pkg/logger"
	"github.com/ajitpratap0/transmuta/pkg/schema"
)

// Generation ranges. Bounds are inclusive unless the name says otherwise.
const (
	minDateDays = 10957 // 2000-01-01
	// maxDateDays is a fixed horizon (mid 2022), not derived from the clock.
	maxDateDays = 19000

	minTimestampMillis = 946684800000 // 2000-01-01T00:00:00Z

	millisPerDay        = 86_400_000        // exclusive
	nanosPerDay         = 86_400_000_000_000 // exclusive
	maxDurationNanos    = 31_536_000_000_000_000
	maxIntervalMonths   = 1200
	maxIntervalDays     = 3650
	decimalFractionBase = 1_000_000
	maxDecimalWhole     = 10_000 // exclusive

	alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Options configures a Generator.
type Options struct {
	// Seed fixes the random stream. Nil derives a seed from Clock.
	Seed      *uint64
	Clock     Clock
	Allocator memory.Allocator
	Logger    *zap.Logger
}

// Generator produces random batches. It is not safe for concurrent use.
type Generator struct {
	seed   uint64
	rng    *rand.Rand
	clock  Clock
	mem    memory.Allocator
	logger *zap.Logger
}

// New creates a generator.
func New(opts Options) *Generator {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	mem := opts.Allocator
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	var seed uint64
	if opts.Seed != nil {
		seed = *opts.Seed
	} else {
		seed = uint64(clock.Now().Unix())
	}

	return &Generator{
		seed:   seed,
		rng:    rand.New(rand.NewChaCha8(expandSeed(seed))),
		clock:  clock,
		mem:    mem,
		logger: logger.OrGlobal(opts.Logger).With(zap.String("component", "datagen")),
	}
}

// Seed returns the effective seed.
func (g *Generator) Seed() uint64 { return g.seed }

// expandSeed stretches a 64-bit seed into a ChaCha8 key with splitmix64.
func expandSeed(seed uint64) [32]byte {
	var key [32]byte
	state := seed
	for i := 0; i < len(key); i += 8 {
		state += 0x9e3779b97f4a7c15
		z := state
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		z ^= z >> 31
		binary.LittleEndian.PutUint64(key[i:], z)
	}
	return key
}

// Generate builds a record of rows random rows for s.
func (g *Generator) Generate(s *schema.Schema, rows int) (arrow.Record, error) {
	if rows < 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "row count must not be negative, got %d", rows)
	}
	as, err := s.Arrow()
	if err != nil {
		return nil, err
	}

	cols := make([]arrow.Array, 0, s.Len())
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	for i := 0; i < s.Len(); i++ {
		col := s.Column(i)
		arr, err := g.column(col.Type, rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeUnsupportedType, "cannot generate column "+col.Name)
		}
		cols = append(cols, arr)
	}

	g.logger.Debug("generated batch", zap.Int("rows", rows), zap.Int("columns", len(cols)))
	return array.NewRecord(as, cols, int64(rows)), nil
}

// GenerateBatches generates rows rows in consecutive batches of at most
// batchSize rows, handing each record to fn. The record is released once fn
// returns. A batchSize <= 0 or >= rows yields a single batch.
func (g *Generator) GenerateBatches(s *schema.Schema, rows, batchSize int, fn func(arrow.Record) error) error {
	if batchSize <= 0 || batchSize >= rows {
		batchSize = rows
	}

	remaining := rows
	for {
		n := min(batchSize, remaining)
		rec, err := g.Generate(s, n)
		if err != nil {
			return err
		}
		err = fn(rec)
		rec.Release()
		if err != nil {
			return err
		}
		remaining -= n
		if remaining <= 0 {
			return nil
		}
	}
}

type appender[T any] interface {
	Append(T)
	Reserve(int)
	NewArray() arrow.Array
	Release()
}

func fill[T any, B appender[T]](b B, rows int, next func() T) arrow.Array {
	defer b.Release()
	b.Reserve(rows)
	for i := 0; i < rows; i++ {
		b.Append(next())
	}
	return b.NewArray()
}

func (g *Generator) column(t datatype.Type, rows int) (arrow.Array, error) {
	r := g.rng
	mem := g.mem

	switch t.Kind {
	case datatype.String:
		return fill(array.NewStringBuilder(mem), rows, g.alphanumeric), nil
	case datatype.Boolean:
		return fill(array.NewBooleanBuilder(mem), rows, func() bool { return r.IntN(2) == 1 }), nil
	case datatype.Integer:
		return fill(array.NewInt32Builder(mem), rows, func() int32 { return int32(r.IntN(2001) - 1000) }), nil
	case datatype.Int32:
		return fill(array.NewInt32Builder(mem), rows, func() int32 {
			return int32(g.int64In(math.MinInt32/2, math.MaxInt32/2))
		}), nil
	case datatype.Int64:
		return fill(array.NewInt64Builder(mem), rows, func() int64 {
			return g.int64In(math.MinInt64/1000, math.MaxInt64/1000)
		}), nil
	case datatype.Int8:
		return fill(array.NewInt8Builder(mem), rows, func() int8 { return int8(r.IntN(1<<8) + math.MinInt8) }), nil
	case datatype.Int16:
		return fill(array.NewInt16Builder(mem), rows, func() int16 { return int16(r.IntN(1<<16) + math.MinInt16) }), nil
	case datatype.UInt8:
		return fill(array.NewUint8Builder(mem), rows, func() uint8 { return uint8(r.IntN(1 << 8)) }), nil
	case datatype.UInt16:
		return fill(array.NewUint16Builder(mem), rows, func() uint16 { return uint16(r.IntN(1 << 16)) }), nil
	case datatype.UInt32:
		return fill(array.NewUint32Builder(mem), rows, func() uint32 { return r.Uint32N(math.MaxUint32/2 + 1) }), nil
	case datatype.UInt64:
		return fill(array.NewUint64Builder(mem), rows, func() uint64 { return r.Uint64N(math.MaxUint64/1000 + 1) }), nil
	case datatype.Float:
		return fill(array.NewFloat64Builder(mem), rows, func() float64 { return g.float64In(-1000, 1000) }), nil
	case datatype.Float64:
		return fill(array.NewFloat64Builder(mem), rows, func() float64 { return g.float64In(-1e6, 1e6) }), nil
	case datatype.Float32:
		return fill(array.NewFloat32Builder(mem), rows, func() float32 { return float32(g.float64In(-1000, 1000)) }), nil
	case datatype.Decimal, datatype.Decimal128, datatype.Decimal256:
		return fill(array.NewStringBuilder(mem), rows, g.decimal), nil
	case datatype.Date, datatype.Date32:
		return fill(array.NewDate32Builder(mem), rows, func() arrow.Date32 {
			return arrow.Date32(g.int64In(minDateDays, maxDateDays))
		}), nil
	case datatype.Timestamp:
		hi := max(g.clock.Now().UnixMilli(), minTimestampMillis)
		b := array.NewTimestampBuilder(mem, &arrow.TimestampType{Unit: arrow.Millisecond})
		return fill(b, rows, func() arrow.Timestamp {
			return arrow.Timestamp(g.int64In(minTimestampMillis, hi))
		}), nil
	case datatype.Time32:
		b := array.NewTime32Builder(mem, &arrow.Time32Type{Unit: arrow.Millisecond})
		return fill(b, rows, func() arrow.Time32 { return arrow.Time32(r.IntN(millisPerDay)) }), nil
	case datatype.Time64:
		b := array.NewTime64Builder(mem, &arrow.Time64Type{Unit: arrow.Nanosecond})
		return fill(b, rows, func() arrow.Time64 { return arrow.Time64(r.Int64N(nanosPerDay)) }), nil
	case datatype.Interval:
		return fill(array.NewMonthDayNanoIntervalBuilder(mem), rows, g.interval), nil
	case datatype.Duration:
		b := array.NewDurationBuilder(mem, &arrow.DurationType{Unit: arrow.Nanosecond})
		return fill(b, rows, func() arrow.Duration { return arrow.Duration(r.Int64N(maxDurationNanos)) }), nil
	case datatype.Binary:
		b := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
		return fill(b, rows, func() []byte { return g.bytes(r.IntN(17) + 4) }), nil
	case datatype.FixedSizeBinary:
		b := array.NewFixedSizeBinaryBuilder(mem, &arrow.FixedSizeBinaryType{ByteWidth: datatype.DefaultFixedSizeBinaryWidth})
		return fill(b, rows, func() []byte { return g.bytes(datatype.DefaultFixedSizeBinaryWidth) }), nil
	case datatype.Uuid:
		return fill(array.NewStringBuilder(mem), rows, g.uuid), nil
	case datatype.Null:
		return array.NewNull(rows), nil
	default:
		return nil, errors.UnsupportedType(t.String())
	}
}

// int64In returns a uniform value in [lo, hi]. hi-lo must fit in an int64.
func (g *Generator) int64In(lo, hi int64) int64 {
	return lo + g.rng.Int64N(hi-lo+1)
}

func (g *Generator) float64In(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func (g *Generator) alphanumeric() string {
	buf := make([]byte, g.rng.IntN(16)+5)
	for i := range buf {
		buf[i] = alphanumeric[g.rng.IntN(len(alphanumeric))]
	}
	return string(buf)
}

func (g *Generator) decimal() string {
	whole := int64(g.rng.IntN(maxDecimalWhole))
	frac := int64(g.rng.IntN(decimalFractionBase))
	return decimal.New(whole*decimalFractionBase+frac, -6).StringFixed(6)
}

func (g *Generator) interval() arrow.MonthDayNanoInterval {
	months := g.int64In(-maxIntervalMonths, maxIntervalMonths)
	days := g.int64In(-maxIntervalDays, maxIntervalDays)
	millis := int64(g.rng.IntN(2*millisPerDay)) - millisPerDay
	return arrow.MonthDayNanoInterval{
		Months:      int32(months),
		Days:        int32(days),
		Nanoseconds: millis * 1_000_000,
	}
}

// bytes draws n bytes, eight at a time, from the shared stream.
func (g *Generator) bytes(n int) []byte {
	buf := make([]byte, (n+7)/8*8)
	for i := 0; i < len(buf); i += 8 {
		binary.LittleEndian.PutUint64(buf[i:], g.rng.Uint64())
	}
	return buf[:n]
}

func (g *Generator) uuid() string {
	var b [16]byte
	copy(b[:], g.bytes(len(b)))
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // RFC 4122 variant
	return uuid.UUID(b).String()
}
