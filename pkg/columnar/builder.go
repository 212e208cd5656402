package columnar

import (
	"math"

	"github.com/pranav-jay26/Crossbow/pkg/cell"
	"github.com/pranav-jay26/Crossbow/pkg/errors"
	"github.com/pranav-jay26/Crossbow/pkg/schema"
)

// BuilderOptions configure a Builder.
type BuilderOptions struct {
	// Policy must match the policy used for inference
	Policy schema.Policy
	// Strict turns an unrepresentable cell into a SchemaMismatch error
	// instead of widening the column
	Strict bool
	// Date1904 selects the serial date system of the source
	Date1904 bool
	// Capacity pre-sizes the buffers
	Capacity int
	// OnWiden is called after the column type was widened by a late cell
	OnWiden func(from, to schema.LogicalType)
}

// Builder accumulates one column of a chunk.
//
// An unresolved builder keeps raw cells pending until Resolve binds the
// column type; the pending cells are then replayed through coercion. A
// resolved builder coerces every append immediately. When a resolved builder
// meets a cell its type cannot hold, it either fails (strict) or spills the
// values built so far back into raw cells, widens the type through the
// lattice and replays them.
type Builder struct {
	opts     BuilderOptions
	resolved bool
	typ      schema.LogicalType
	pending  []cell.RawCell

	n        int
	validity *Bitmap
	bools    *Bitmap
	ints     []int64
	floats   []float64
	offsets  []int32
	data     []byte
}

// NewBuilder returns an unresolved builder.
func NewBuilder(opts BuilderOptions) *Builder {
	return &Builder{
		opts:    opts,
		pending: make([]cell.RawCell, 0, opts.Capacity),
	}
}

// NewResolvedBuilder returns a builder bound to t.
func NewResolvedBuilder(t schema.LogicalType, opts BuilderOptions) *Builder {
	b := &Builder{opts: opts}
	b.bind(schema.Resolve(t))
	return b
}

// Resolved reports whether the column type is bound.
func (b *Builder) Resolved() bool { return b.resolved }

// Type returns the bound type, or Null while unresolved.
func (b *Builder) Type() schema.LogicalType { return b.typ }

// Len returns the number of rows appended so far.
func (b *Builder) Len() int {
	if !b.resolved {
		return len(b.pending)
	}
	return b.n
}

// Append adds one cell.
func (b *Builder) Append(c cell.RawCell) error {
	if !b.resolved {
		b.pending = append(b.pending, c)
		return nil
	}
	return b.appendResolved(c)
}

// AppendNull adds one null row.
func (b *Builder) AppendNull() {
	if !b.resolved {
		b.pending = append(b.pending, cell.Empty())
		return
	}
	b.appendNull()
}

// AppendNulls adds n null rows.
func (b *Builder) AppendNulls(n int) {
	for i := 0; i < n; i++ {
		b.AppendNull()
	}
}

// Resolve binds the column type and replays pending cells.
func (b *Builder) Resolve(t schema.LogicalType) error {
	if b.resolved {
		return errors.New(errors.ErrorTypeInternal, "builder already resolved").
			WithDetail("type", b.typ.String())
	}
	pending := b.pending
	b.pending = nil
	b.bind(schema.Resolve(t))
	return b.replay(pending)
}

// Finish returns the built column trimmed to its exact length and resets the
// builder to an empty state bound to the same type.
func (b *Builder) Finish() (*Column, error) {
	if !b.resolved {
		return nil, errors.New(errors.ErrorTypeInternal, "finish called on an unresolved builder")
	}
	col := &Column{
		typ:      b.typ,
		length:   b.n,
		validity: b.validity.Bytes(),
	}
	col.nulls = b.n - b.validity.CountSet()

	switch b.typ {
	case schema.Boolean:
		col.bools = b.bools.Bytes()
	case schema.Int64, schema.Timestamp:
		col.ints = b.ints[:b.n:b.n]
	case schema.Float64:
		col.floats = b.floats[:b.n:b.n]
	default:
		col.offsets = b.offsets[: b.n+1 : b.n+1]
		col.data = b.data[:len(b.data):len(b.data)]
	}

	// the column owns the buffers now
	b.bind(b.typ)
	return col, nil
}

// Reset discards everything appended so far. Unresolved builders stay
// unresolved.
func (b *Builder) Reset() {
	if !b.resolved {
		b.pending = b.pending[:0]
		return
	}
	b.bind(b.typ)
}

func (b *Builder) bind(t schema.LogicalType) {
	capacity := b.opts.Capacity
	b.resolved = true
	b.typ = t
	b.n = 0
	b.validity = NewBitmap(capacity)
	b.bools, b.ints, b.floats, b.offsets, b.data = nil, nil, nil, nil, nil

	switch t {
	case schema.Boolean:
		b.bools = NewBitmap(capacity)
	case schema.Int64, schema.Timestamp:
		b.ints = make([]int64, 0, capacity)
	case schema.Float64:
		b.floats = make([]float64, 0, capacity)
	default:
		b.offsets = make([]int32, 1, capacity+1)
		b.data = make([]byte, 0, capacity*8)
	}
}

func (b *Builder) replay(cells []cell.RawCell) error {
	for _, c := range cells {
		if err := b.appendResolved(c); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) appendNull() {
	b.validity.Append(false)
	switch b.typ {
	case schema.Boolean:
		b.bools.Append(false)
	case schema.Int64, schema.Timestamp:
		b.ints = append(b.ints, 0)
	case schema.Float64:
		b.floats = append(b.floats, 0)
	default:
		b.offsets = append(b.offsets, int32(len(b.data)))
	}
	b.n++
}

func (b *Builder) appendResolved(c cell.RawCell) error {
	if c.IsEmpty() {
		b.appendNull()
		return nil
	}
	if !schema.Accepts(b.typ, c, b.opts.Policy) {
		if b.opts.Strict {
			return errors.New(errors.ErrorTypeSchemaMismatch, "cell cannot be represented in the column type").
				WithDetail("type", b.typ.String()).
				WithDetail("cell_kind", c.Kind().String()).
				WithDetail("value", cell.Format(c))
		}
		return b.widen(c)
	}

	switch b.typ {
	case schema.Boolean:
		b.bools.Append(coerceBool(c))
	case schema.Int64:
		b.ints = append(b.ints, coerceInt64(c))
	case schema.Float64:
		b.floats = append(b.floats, coerceFloat64(c))
	case schema.Timestamp:
		b.ints = append(b.ints, coerceTimestamp(c, b.opts.Date1904))
	default:
		s := coerceString(c)
		if len(b.data)+len(s) > math.MaxInt32 {
			return errors.New(errors.ErrorTypeInternal,
				"utf8 data of one chunk exceeds 2 GiB; use a smaller chunk_size").
				WithDetail("rows", b.n)
		}
		b.data = append(b.data, s...)
		b.offsets = append(b.offsets, int32(len(b.data)))
	}
	b.validity.Append(true)
	b.n++
	return nil
}

// widen spills the built rows back into raw cells, binds the wider type and
// replays them followed by c.
func (b *Builder) widen(c cell.RawCell) error {
	from := b.typ
	to := schema.Merge(from, schema.NaturalType(c, b.opts.Policy.IntegralFloatsAsInt))
	if to == from {
		// ambiguous serial outside the plausible range
		to = schema.Utf8String
	}

	spilled := b.spill()
	b.bind(to)
	if b.opts.OnWiden != nil {
		b.opts.OnWiden(from, to)
	}
	if err := b.replay(spilled); err != nil {
		return err
	}
	return b.appendResolved(c)
}

func (b *Builder) spill() []cell.RawCell {
	cells := make([]cell.RawCell, b.n)
	for i := 0; i < b.n; i++ {
		if !b.validity.Get(i) {
			cells[i] = cell.Empty()
			continue
		}
		switch b.typ {
		case schema.Boolean:
			cells[i] = cell.Bool(b.bools.Get(i))
		case schema.Int64:
			cells[i] = cell.Int(b.ints[i])
		case schema.Float64:
			cells[i] = cell.Float(b.floats[i])
		case schema.Timestamp:
			cells[i] = cell.DateTime(microsToTime(b.ints[i]))
		default:
			cells[i] = cell.Text(string(b.data[b.offsets[i]:b.offsets[i+1]]))
		}
	}
	return cells
}
