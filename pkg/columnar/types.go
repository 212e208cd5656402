package columnar

import (
	"time"

	"github.com/pranav-jay26/Crossbow/pkg/cell"
	"github.com/pranav-jay26/Crossbow/pkg/schema"
)

// Column is a finished, immutable typed column. It owns one contiguous value
// buffer matching its type and a validity bitmap (1 = present). Null slots
// hold the zero value of the type.
//
// Buffer layout per type:
//
//	Boolean     bit-packed values, same layout as the validity bitmap
//	Int64       []int64
//	Float64     []float64
//	Timestamp   []int64, microseconds since the Unix epoch, no zone
//	Utf8String  []int32 offsets (Len+1 entries) into a []byte data buffer
type Column struct {
	typ      schema.LogicalType
	length   int
	nulls    int
	validity []byte
	bools    []byte
	ints     []int64
	floats   []float64
	offsets  []int32
	data     []byte
}

func (c *Column) Type() schema.LogicalType { return c.typ }
func (c *Column) Len() int                 { return c.length }
func (c *Column) NullCount() int           { return c.nulls }

// IsValid reports whether row i holds a value.
func (c *Column) IsValid(i int) bool {
	return c.validity[i/8]&(1<<(i%8)) != 0
}

// IsNull reports whether row i is null.
func (c *Column) IsNull(i int) bool {
	return !c.IsValid(i)
}

func (c *Column) Bool(i int) bool {
	return c.bools[i/8]&(1<<(i%8)) != 0
}

func (c *Column) Int64(i int) int64 {
	return c.ints[i]
}

func (c *Column) Float64(i int) float64 {
	return c.floats[i]
}

func (c *Column) String(i int) string {
	return string(c.data[c.offsets[i]:c.offsets[i+1]])
}

// Timestamp returns row i of a Timestamp column in UTC.
func (c *Column) Timestamp(i int) time.Time {
	return microsToTime(c.ints[i])
}

// Value returns row i as a Go value, or nil when null.
func (c *Column) Value(i int) interface{} {
	if c.IsNull(i) {
		return nil
	}
	switch c.typ {
	case schema.Boolean:
		return c.Bool(i)
	case schema.Int64:
		return c.Int64(i)
	case schema.Float64:
		return c.Float64(i)
	case schema.Timestamp:
		return c.Timestamp(i)
	default:
		return c.String(i)
	}
}

// Format renders row i with the canonical text rules; nulls render empty.
func (c *Column) Format(i int) string {
	return cell.Format(c.Cell(i))
}

// Cell turns row i back into a raw cell.
func (c *Column) Cell(i int) cell.RawCell {
	if c.IsNull(i) {
		return cell.Empty()
	}
	switch c.typ {
	case schema.Boolean:
		return cell.Bool(c.Bool(i))
	case schema.Int64:
		return cell.Int(c.Int64(i))
	case schema.Float64:
		return cell.Float(c.Float64(i))
	case schema.Timestamp:
		return cell.DateTime(c.Timestamp(i))
	default:
		return cell.Text(c.String(i))
	}
}

// Validity returns the validity bitmap bytes.
func (c *Column) Validity() []byte { return c.validity }

// BoolValues returns the bit-packed values of a Boolean column.
func (c *Column) BoolValues() []byte { return c.bools }

// Int64Values returns the value buffer of an Int64 or Timestamp column.
func (c *Column) Int64Values() []int64 { return c.ints }

// Float64Values returns the value buffer of a Float64 column.
func (c *Column) Float64Values() []float64 { return c.floats }

// Offsets returns the offsets of a Utf8String column.
func (c *Column) Offsets() []int32 { return c.offsets }

// Data returns the character data of a Utf8String column.
func (c *Column) Data() []byte { return c.data }

// MemoryUsage returns the number of bytes held by the column buffers.
func (c *Column) MemoryUsage() int64 {
	return int64(len(c.validity) + len(c.bools) + len(c.ints)*8 + len(c.floats)*8 + len(c.offsets)*4 + len(c.data))
}

// NullColumn returns a Utf8String column of n null rows.
func NullColumn(n int) *Column {
	return &Column{
		typ:      schema.Utf8String,
		length:   n,
		nulls:    n,
		validity: make([]byte, (n+7)/8),
		offsets:  make([]int32, n+1),
		data:     []byte{},
	}
}
