// Package schema implements column type inference for crossbow.
//
// Every column carries an InferenceState that folds the natural type of each
// non-empty cell through a fixed promotion lattice:
//
//	Null  <  Boolean  <  Int64  <  Float64  <  Utf8String
//	Null  <  Timestamp  <  Utf8String
//
// Null is the identity of the fold. Timestamp only merges with itself; any other
// non-empty type arriving in a Timestamp column (and vice versa) yields
// Utf8String. The fold is monotonic, a column never moves back down.
//
// A column whose scope held only empty cells resolves to Utf8String with every
// value null. Null never appears in a finished batch.
package schema

import (
	"fmt"

	"github.com/pranav-jay26/Crossbow/pkg/cell"
)

// LogicalType is the type bound to a column for the lifetime of a batch.
type LogicalType uint8

const (
	Null LogicalType = iota
	Boolean
	Int64
	Float64
	Utf8String
	Timestamp
)

var typeNames = [...]string{
	Null:       "null",
	Boolean:    "boolean",
	Int64:      "int64",
	Float64:    "float64",
	Utf8String: "utf8",
	Timestamp:  "timestamp",
}

func (t LogicalType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("LogicalType(%d)", uint8(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t LogicalType) MarshalText() ([]byte, error) {
	if int(t) >= len(typeNames) {
		return nil, fmt.Errorf("unknown logical type %d", uint8(t))
	}
	return []byte(typeNames[t]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *LogicalType) UnmarshalText(b []byte) error {
	for i, name := range typeNames {
		if name == string(b) {
			*t = LogicalType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown logical type %q", b)
}

// Numeric reports whether t is Int64 or Float64.
func (t LogicalType) Numeric() bool {
	return t == Int64 || t == Float64
}

// rank orders the linear part of the lattice. Timestamp sits outside it.
func (t LogicalType) rank() int {
	switch t {
	case Boolean:
		return 1
	case Int64:
		return 2
	case Float64:
		return 3
	case Utf8String:
		return 4
	default:
		return 0
	}
}

// Merge folds two types through the promotion lattice.
func Merge(a, b LogicalType) LogicalType {
	switch {
	case a == Null:
		return b
	case b == Null:
		return a
	case a == b:
		return a
	case a == Utf8String || b == Utf8String:
		return Utf8String
	case a == Timestamp || b == Timestamp:
		return Utf8String
	case a.rank() >= b.rank():
		return a
	default:
		return b
	}
}

// Resolve maps the internal Null placeholder to Utf8String.
func Resolve(t LogicalType) LogicalType {
	if t == Null {
		return Utf8String
	}
	return t
}

// NaturalType returns the type a single cell would give an empty column.
// Floats with no fractional part inside the int64 range map to Int64 when
// integralAsInt is set.
func NaturalType(c cell.RawCell, integralAsInt bool) LogicalType {
	switch c.Kind() {
	case cell.KindBoolean:
		return Boolean
	case cell.KindInteger:
		return Int64
	case cell.KindFloat:
		if integralAsInt {
			if _, ok := IntegralFloat(c.Float()); ok {
				return Int64
			}
		}
		return Float64
	case cell.KindText:
		return Utf8String
	case cell.KindDateTime:
		return Timestamp
	default:
		return Null
	}
}

// IntegralFloat returns f as an int64 when it has no fractional part and
// fits the int64 range.
func IntegralFloat(f float64) (int64, bool) {
	// -2^63 is exact in float64, 2^63 is the first value out of range
	if f != f || f < -9223372036854775808.0 || f >= 9223372036854775808.0 {
		return 0, false
	}
	i := int64(f)
	if float64(i) != f {
		return 0, false
	}
	return i, true
}
