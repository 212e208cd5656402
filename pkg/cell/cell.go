// Package cell defines RawCell, the tagged value every format adapter yields,
// together with the text classifier used by text-based adapters and the
// deterministic formatting rules used when a value is coerced to text.
package cell

import (
	"math"
	"time"
	"unsafe"
)

// Kind tags the variant held by a RawCell.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindBoolean
	KindInteger
	KindFloat
	KindText
	KindDateTime
)

var kindNames = [...]string{
	KindEmpty:    "empty",
	KindBoolean:  "boolean",
	KindInteger:  "integer",
	KindFloat:    "float",
	KindText:     "text",
	KindDateTime: "datetime",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// RawCell is an immutable tagged value decoded from a source.
//
// Chunks keep one RawCell per pending cell, so the layout is packed into 32
// bytes: the integer, the float bits and the unix seconds of a DateTime share
// one word, and the nanoseconds share the header word with the tag.
type RawCell struct {
	kind Kind
	b    bool
	nsec int32
	v    uint64
	s    string
}

// Size is the in-memory size of a RawCell in bytes.
const Size = int(unsafe.Sizeof(RawCell{}))

// Empty returns the empty cell.
func Empty() RawCell { return RawCell{} }

// Bool returns a Boolean cell.
func Bool(v bool) RawCell { return RawCell{kind: KindBoolean, b: v} }

// Int returns an Integer cell.
func Int(v int64) RawCell { return RawCell{kind: KindInteger, v: uint64(v)} }

// Float returns a Float cell.
func Float(v float64) RawCell { return RawCell{kind: KindFloat, v: math.Float64bits(v)} }

// Text returns a Text cell.
func Text(v string) RawCell { return RawCell{kind: KindText, s: v} }

// DateTime returns a DateTime cell. The instant is kept in UTC.
func DateTime(v time.Time) RawCell {
	return RawCell{kind: KindDateTime, nsec: int32(v.Nanosecond()), v: uint64(v.Unix())}
}

func (c RawCell) Kind() Kind    { return c.kind }
func (c RawCell) IsEmpty() bool { return c.kind == KindEmpty }
func (c RawCell) Bool() bool    { return c.kind == KindBoolean && c.b }
func (c RawCell) Text() string  { return c.s }

func (c RawCell) Int() int64 {
	if c.kind != KindInteger {
		return 0
	}
	return int64(c.v)
}

func (c RawCell) Float() float64 {
	if c.kind != KindFloat {
		return 0
	}
	return math.Float64frombits(c.v)
}

func (c RawCell) Time() time.Time {
	if c.kind != KindDateTime {
		return time.Time{}
	}
	return time.Unix(int64(c.v), int64(c.nsec)).UTC()
}

// String renders the cell with the canonical text formatting.
func (c RawCell) String() string {
	return Format(c)
}
