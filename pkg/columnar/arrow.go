package columnar

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/pranav-jay26/Crossbow/pkg/schema"
)

// ArrowType maps a logical type to its Arrow data type. Timestamps are
// microseconds without a zone.
func ArrowType(t schema.LogicalType) arrow.DataType {
	switch t {
	case schema.Boolean:
		return arrow.FixedWidthTypes.Boolean
	case schema.Int64:
		return arrow.PrimitiveTypes.Int64
	case schema.Float64:
		return arrow.PrimitiveTypes.Float64
	case schema.Timestamp:
		return &arrow.TimestampType{Unit: arrow.Microsecond}
	default:
		return arrow.BinaryTypes.String
	}
}

// ArrowSchema converts a schema to an Arrow schema.
func ArrowSchema(s schema.Schema) *arrow.Schema {
	fields := make([]arrow.Field, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = arrow.Field{
			Name:     f.Name,
			Type:     ArrowType(schema.Resolve(f.Type)),
			Nullable: true,
		}
	}
	return arrow.NewSchema(fields, nil)
}

// Array exposes the column buffers as an Arrow array without copying. The
// caller must Release it.
func (c *Column) Array() arrow.Array {
	validity := memory.NewBufferBytes(c.validity)

	var buffers []*memory.Buffer
	switch c.typ {
	case schema.Boolean:
		buffers = []*memory.Buffer{validity, memory.NewBufferBytes(c.bools)}
	case schema.Int64, schema.Timestamp:
		buffers = []*memory.Buffer{validity, memory.NewBufferBytes(arrow.Int64Traits.CastToBytes(c.ints))}
	case schema.Float64:
		buffers = []*memory.Buffer{validity, memory.NewBufferBytes(arrow.Float64Traits.CastToBytes(c.floats))}
	default:
		buffers = []*memory.Buffer{
			validity,
			memory.NewBufferBytes(arrow.Int32Traits.CastToBytes(c.offsets)),
			memory.NewBufferBytes(c.data),
		}
	}

	data := array.NewData(ArrowType(c.typ), c.length, buffers, nil, c.nulls, 0)
	defer data.Release()
	return array.MakeFromData(data)
}

// Record exposes the batch as an Arrow record sharing the column buffers.
// The caller must Release it.
func (b *Batch) Record() arrow.Record {
	arrs := make([]arrow.Array, len(b.columns))
	for i, c := range b.columns {
		arrs[i] = c.Array()
	}
	rec := array.NewRecord(ArrowSchema(b.schema), arrs, int64(b.rows))
	for _, a := range arrs {
		a.Release()
	}
	return rec
}
