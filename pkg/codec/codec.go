// Package codec renders single values of arrow columns as text fields or as
// structured (JSON-ready) values.
//
// Both renderers are total: nulls become "" or nil, temporal values that fall
// outside the representable calendar degrade to their raw integer, and array
// types outside the taxonomy fall back to the array's own debug rendering.
package codec

import (
	"encoding/hex"
	"math"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	gojson "github.com/goccy/go-json"
)

// Calendar bounds for time.Time formatting, 0001-01-01 .. 9999-12-31.
const (
	minEpochSecond = -62135596800
	maxEpochSecond = 253402300799

	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
	timeLayout     = "15:04:05"
	secondsPerDay  = 86400
)

// Interval is the structured form of a month-day-nanosecond interval.
type Interval struct {
	Months      int32 `json:"months"`
	Days        int32 `json:"days"`
	Nanoseconds int64 `json:"nanoseconds"`
}

// IsNull reports whether row of arr is null. Null-typed arrays carry no
// validity bitmap, so their IsNull reports false for every row.
func IsNull(arr arrow.Array, row int) bool {
	return arr.DataType().ID() == arrow.NULL || arr.IsNull(row)
}

// RenderText renders row of arr as a text field.
func RenderText(arr arrow.Array, row int) string {
	if IsNull(arr, row) {
		return ""
	}

	switch a := arr.(type) {
	case *array.String:
		return a.Value(row)
	case *array.LargeString:
		return a.Value(row)
	case *array.Boolean:
		return strconv.FormatBool(a.Value(row))
	case *array.Int8:
		return strconv.FormatInt(int64(a.Value(row)), 10)
	case *array.Int16:
		return strconv.FormatInt(int64(a.Value(row)), 10)
	case *array.Int32:
		return strconv.FormatInt(int64(a.Value(row)), 10)
	case *array.Int64:
		return strconv.FormatInt(a.Value(row), 10)
	case *array.Uint8:
		return strconv.FormatUint(uint64(a.Value(row)), 10)
	case *array.Uint16:
		return strconv.FormatUint(uint64(a.Value(row)), 10)
	case *array.Uint32:
		return strconv.FormatUint(uint64(a.Value(row)), 10)
	case *array.Uint64:
		return strconv.FormatUint(a.Value(row), 10)
	case *array.Float32:
		return strconv.FormatFloat(float64(a.Value(row)), 'f', -1, 32)
	case *array.Float64:
		return strconv.FormatFloat(a.Value(row), 'f', -1, 64)
	case *array.Binary:
		return hex.EncodeToString(a.Value(row))
	case *array.LargeBinary:
		return hex.EncodeToString(a.Value(row))
	case *array.FixedSizeBinary:
		return hex.EncodeToString(a.Value(row))
	case *array.Date32:
		// day count, not a calendar date
		return strconv.FormatInt(int64(a.Value(row)), 10)
	case *array.Date64:
		return formatDate64(int64(a.Value(row)))
	case *array.Timestamp:
		return FormatTimestamp(int64(a.Value(row)), a.DataType().(*arrow.TimestampType).Unit)
	case *array.Time32:
		return FormatTimeOfDay(int64(a.Value(row)), a.DataType().(*arrow.Time32Type).Unit)
	case *array.Time64:
		return FormatTimeOfDay(int64(a.Value(row)), a.DataType().(*arrow.Time64Type).Unit)
	case *array.Duration:
		return strconv.FormatInt(int64(a.Value(row)), 10)
	case *array.MonthDayNanoInterval:
		return FormatInterval(a.Value(row))
	default:
		return arr.ValueStr(row)
	}
}

// RenderStructured renders row of arr as a value suitable for a JSON encoder:
// nil, bool, int64, uint64, float64, string, gojson.Number or Interval.
func RenderStructured(arr arrow.Array, row int) any {
	if IsNull(arr, row) {
		return nil
	}

	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(row)
	case *array.Int8:
		return int64(a.Value(row))
	case *array.Int16:
		return int64(a.Value(row))
	case *array.Int32:
		return int64(a.Value(row))
	case *array.Int64:
		return a.Value(row)
	case *array.Uint8:
		return uint64(a.Value(row))
	case *array.Uint16:
		return uint64(a.Value(row))
	case *array.Uint32:
		return uint64(a.Value(row))
	case *array.Uint64:
		return a.Value(row)
	case *array.Float32:
		v := float64(a.Value(row))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return strconv.FormatFloat(v, 'f', -1, 32)
		}
		// keep the float32 shortest form instead of its float64 widening
		return gojson.Number(strconv.FormatFloat(v, 'f', -1, 32))
	case *array.Float64:
		v := a.Value(row)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
		return v
	case *array.Duration:
		return int64(a.Value(row))
	case *array.MonthDayNanoInterval:
		v := a.Value(row)
		return Interval{Months: v.Months, Days: v.Days, Nanoseconds: v.Nanoseconds}
	default:
		return RenderText(arr, row)
	}
}

// FormatTimestamp renders an epoch value of the given unit as
// "YYYY-MM-DD HH:MM:SS" with a 0, 3, 6 or 9 digit fraction. Values outside
// years 1..9999 render as the raw number.
func FormatTimestamp(v int64, unit arrow.TimeUnit) string {
	perSecond := unitsPerSecond(unit)
	sec, rem := floorDivMod(v, perSecond)
	if sec < minEpochSecond || sec > maxEpochSecond {
		return strconv.FormatInt(v, 10)
	}
	nanos := rem * (int64(time.Second) / perSecond)
	return time.Unix(sec, nanos).UTC().Format(dateTimeLayout + fractionLayout(unit))
}

// FormatTimeOfDay renders a time-of-day value of the given unit as
// "HH:MM:SS" plus the unit's fraction. Values outside [0, 1 day) render as
// the raw number.
func FormatTimeOfDay(v int64, unit arrow.TimeUnit) string {
	perSecond := unitsPerSecond(unit)
	if v < 0 || v >= secondsPerDay*perSecond {
		return strconv.FormatInt(v, 10)
	}
	nanos := v * (int64(time.Second) / perSecond)
	return time.Unix(0, nanos).UTC().Format(timeLayout + fractionLayout(unit))
}

// FormatInterval renders an interval as "<months>mo<days>d<nanos>ns".
func FormatInterval(v arrow.MonthDayNanoInterval) string {
	return strconv.FormatInt(int64(v.Months), 10) + "mo" +
		strconv.FormatInt(int64(v.Days), 10) + "d" +
		strconv.FormatInt(v.Nanoseconds, 10) + "ns"
}

func formatDate64(ms int64) string {
	sec, _ := floorDivMod(ms, 1000)
	if sec < minEpochSecond || sec > maxEpochSecond {
		return strconv.FormatInt(ms, 10)
	}
	return time.Unix(sec, 0).UTC().Format(dateLayout)
}

func unitsPerSecond(unit arrow.TimeUnit) int64 {
	switch unit {
	case arrow.Millisecond:
		return 1_000
	case arrow.Microsecond:
		return 1_000_000
	case arrow.Nanosecond:
		return 1_000_000_000
	default:
		return 1
	}
}

func fractionLayout(unit arrow.TimeUnit) string {
	switch unit {
	case arrow.Millisecond:
		return ".000"
	case arrow.Microsecond:
		return ".000000"
	case arrow.Nanosecond:
		return ".000000000"
	default:
		return ""
	}
}

// floorDivMod splits v so that v == q*d + r with 0 <= r < d.
func floorDivMod(v, d int64) (q, r int64) {
	q, r = v/d, v%d
	if r < 0 {
		q--
		r += d
	}
	return q, r
}
