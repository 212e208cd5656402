package columnar

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/xxh3"

	"github.com/pranav-jay26/Crossbow/pkg/schema"
)

// Batch is an ordered set of equally long named columns. A batch is immutable
// once assembled; ownership passes to the caller.
type Batch struct {
	names   []string
	columns []*Column
	rows    int
	schema  schema.Schema
}

// NumRows returns the row count shared by every column.
func (b *Batch) NumRows() int { return b.rows }

// NumCols returns the number of columns.
func (b *Batch) NumCols() int { return len(b.columns) }

// Names returns the column names in order.
func (b *Batch) Names() []string {
	return append([]string(nil), b.names...)
}

// Schema returns the schema derived from the columns.
func (b *Batch) Schema() schema.Schema {
	return b.schema
}

// ColumnAt returns column i.
func (b *Batch) ColumnAt(i int) *Column {
	return b.columns[i]
}

// Column returns the named column.
func (b *Batch) Column(name string) (*Column, bool) {
	for i, n := range b.names {
		if n == name {
			return b.columns[i], true
		}
	}
	return nil, false
}

// Value returns the value at (col, row) or nil when null.
func (b *Batch) Value(col, row int) interface{} {
	return b.columns[col].Value(row)
}

// MemoryUsage returns the bytes held by all column buffers.
func (b *Batch) MemoryUsage() int64 {
	var total int64
	for _, c := range b.columns {
		total += c.MemoryUsage()
	}
	return total
}

// Fingerprint hashes names, types, value buffers and validity bitmaps. Two
// conversions of the same input with the same options produce the same
// fingerprint.
func (b *Batch) Fingerprint() uint64 {
	h := xxh3.New()
	var scratch [8]byte

	writeInt := func(v uint64) {
		binary.LittleEndian.PutUint64(scratch[:], v)
		_, _ = h.Write(scratch[:])
	}

	writeInt(uint64(b.rows))
	for i, name := range b.names {
		col := b.columns[i]
		writeInt(uint64(len(name)))
		_, _ = h.WriteString(name)
		writeInt(uint64(col.typ))
		_, _ = h.Write(col.validity)

		switch col.typ {
		case schema.Boolean:
			_, _ = h.Write(col.bools)
		case schema.Int64, schema.Timestamp:
			for _, v := range col.ints {
				writeInt(uint64(v))
			}
		case schema.Float64:
			for _, v := range col.floats {
				writeInt(math.Float64bits(v))
			}
		default:
			for _, off := range col.offsets {
				writeInt(uint64(off))
			}
			_, _ = h.Write(col.data)
		}
	}
	return h.Sum64()
}
