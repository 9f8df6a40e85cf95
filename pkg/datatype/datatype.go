// Package datatype defines the closed set of logical column types understood by
// transmuta, how their names resolve, and which Arrow physical type stores each
// of them.
//
// Every consumer (schema loading, random generation, sinks) switches over Kind.
// Go has no exhaustive switch, so each of those switches ends in a default arm
// that returns an error, and the package tests walk AllKinds to prove that no
// member falls through.
package datatype

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/transmuta/pkg/errors"
)

// Kind identifies a member of the logical type taxonomy.
type Kind uint8

const (
	String Kind = iota + 1
	Boolean
	// Integer is the generic back-compat integer, stored as Int32.
	Integer
	// Float is the generic back-compat float, stored as Float64.
	Float
	Int8
	Int16
	Int32
	Int64
	UInt8
	UInt16
	UInt32
	UInt64
	Float32
	Float64
	Decimal
	Decimal128
	Decimal256
	// Date is an alias of Date32 (days since the epoch).
	Date
	Date32
	// Timestamp is a millisecond epoch.
	Timestamp
	Time32
	Time64
	Interval
	Duration
	Binary
	FixedSizeBinary
	Uuid
	Null
)

// DefaultFixedSizeBinaryWidth is the physical width of FixedSizeBinary columns.
const DefaultFixedSizeBinaryWidth = 16

// MetadataKey is the arrow field metadata key carrying the logical type name.
const MetadataKey = "transmuta.logical_type"

var kindNames = [...]string{
	String:          "string",
	Boolean:         "boolean",
	Integer:         "integer",
	Float:           "float",
	Int8:            "int8",
	Int16:           "int16",
	Int32:           "int32",
	Int64:           "int64",
	UInt8:           "uint8",
	UInt16:          "uint16",
	UInt32:          "uint32",
	UInt64:          "uint64",
	Float32:         "float32",
	Float64:         "float64",
	Decimal:         "decimal",
	Decimal128:      "decimal128",
	Decimal256:      "decimal256",
	Date:            "date",
	Date32:          "date32",
	Timestamp:       "timestamp",
	Time32:          "time32",
	Time64:          "time64",
	Interval:        "interval",
	Duration:        "duration",
	Binary:          "binary",
	FixedSizeBinary: "fixedsizebinary",
	Uuid:            "uuid",
	Null:            "null",
}

// synonyms maps alternative spellings to their kind. Canonical names are
// added in init so lookups go through a single table.
var synonyms = map[string]Kind{
	"int":              Integer,
	"double":           Float64,
	"double precision": Float64,
	"bool":             Boolean,
	"tinyint":          Int8,
	"smallint":         Int16,
	"bigint":           Int64,
	"utinyint":         UInt8,
	"usmallint":        UInt16,
	"uint":             UInt32,
	"ubigint":          UInt64,
	"real":             Float32,
	"numeric":          Decimal,
	"varbinary":        Binary,
}

var byName map[string]Kind

func init() {
	byName = make(map[string]Kind, len(kindNames)+len(synonyms))
	for _, k := range AllKinds() {
		byName[kindNames[k]] = k
	}
	for name, k := range synonyms {
		byName[name] = k
	}
}

// AllKinds returns every member of the taxonomy in declaration order.
func AllKinds() []Kind {
	kinds := make([]Kind, 0, len(kindNames)-1)
	for k := String; k <= Null; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// String returns the canonical lower-case name of the kind.
func (k Kind) String() string {
	if k < String || k > Null {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Type is a logical column type together with its per-kind metadata.
type Type struct {
	Kind Kind
	// Width is the declared byte width of a FixedSizeBinary column. It is
	// informational: generated and stored values are always
	// DefaultFixedSizeBinaryWidth bytes wide.
	Width int
}

// Of returns the Type for k with default metadata.
func Of(k Kind) Type {
	if k == FixedSizeBinary {
		return Type{Kind: k, Width: DefaultFixedSizeBinaryWidth}
	}
	return Type{Kind: k}
}

// Parse resolves a case-insensitive type name (canonical name or synonym) to a
// Type. FixedSizeBinary accepts an optional declared width: "fixedsizebinary(8)".
func Parse(name string) (Type, error) {
	norm := strings.ToLower(strings.TrimSpace(name))
	norm = strings.Join(strings.Fields(norm), " ")

	if k, ok := byName[norm]; ok {
		return Of(k), nil
	}

	if rest, ok := strings.CutPrefix(norm, kindNames[FixedSizeBinary]); ok {
		inner, ok := strings.CutPrefix(strings.TrimSpace(rest), "(")
		if ok {
			inner, ok = strings.CutSuffix(inner, ")")
		}
		if ok {
			width, err := strconv.Atoi(strings.TrimSpace(inner))
			if err == nil && width > 0 {
				return Type{Kind: FixedSizeBinary, Width: width}, nil
			}
		}
	}

	return Type{}, errors.UnsupportedType(name)
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level tables.
func MustParse(name string) Type {
	t, err := Parse(name)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the canonical name, including a non-default declared width.
func (t Type) String() string {
	if t.Kind == FixedSizeBinary && t.Width > 0 && t.Width != DefaultFixedSizeBinaryWidth {
		return fmt.Sprintf("%s(%d)", kindNames[FixedSizeBinary], t.Width)
	}
	return t.Kind.String()
}

// Arrow returns the physical Arrow type that stores values of t.
func (t Type) Arrow() (arrow.DataType, error) {
	switch t.Kind {
	case String, Decimal, Decimal128, Decimal256, Uuid:
		return arrow.BinaryTypes.String, nil
	case Boolean:
		return arrow.FixedWidthTypes.Boolean, nil
	case Integer, Int32:
		return arrow.PrimitiveTypes.Int32, nil
	case Float, Float64:
		return arrow.PrimitiveTypes.Float64, nil
	case Int8:
		return arrow.PrimitiveTypes.Int8, nil
	case Int16:
		return arrow.PrimitiveTypes.Int16, nil
	case Int64:
		return arrow.PrimitiveTypes.Int64, nil
	case UInt8:
		return arrow.PrimitiveTypes.Uint8, nil
	case UInt16:
		return arrow.PrimitiveTypes.Uint16, nil
	case UInt32:
		return arrow.PrimitiveTypes.Uint32, nil
	case UInt64:
		return arrow.PrimitiveTypes.Uint64, nil
	case Float32:
		return arrow.PrimitiveTypes.Float32, nil
	case Date, Date32:
		return arrow.FixedWidthTypes.Date32, nil
	case Timestamp:
		// zone-less: values are wall-clock epochs, rendered without offset
		return &arrow.TimestampType{Unit: arrow.Millisecond}, nil
	case Time32:
		return arrow.FixedWidthTypes.Time32ms, nil
	case Time64:
		return arrow.FixedWidthTypes.Time64ns, nil
	case Interval:
		return arrow.FixedWidthTypes.MonthDayNanoInterval, nil
	case Duration:
		return arrow.FixedWidthTypes.Duration_ns, nil
	case Binary:
		return arrow.BinaryTypes.Binary, nil
	case FixedSizeBinary:
		return &arrow.FixedSizeBinaryType{ByteWidth: DefaultFixedSizeBinaryWidth}, nil
	case Null:
		return arrow.Null, nil
	default:
		return nil, errors.UnsupportedType(t.Kind.String())
	}
}

// Field returns a nullable arrow field named name that stores t. The logical
// type name is kept in the field metadata so aliases (Integer vs Int32,
// Uuid vs String) survive in self-describing sinks.
func (t Type) Field(name string) (arrow.Field, error) {
	dt, err := t.Arrow()
	if err != nil {
		return arrow.Field{}, err
	}
	return arrow.Field{
		Name:     name,
		Type:     dt,
		Nullable: true,
		Metadata: arrow.NewMetadata([]string{MetadataKey}, []string{t.String()}),
	}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if t.Kind < String || t.Kind > Null {
		return nil, errors.UnsupportedType(t.Kind.String())
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler via Parse.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
