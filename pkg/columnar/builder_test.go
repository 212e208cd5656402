package columnar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pranav-jay26/Crossbow/pkg/cell"
	"github.com/pranav-jay26/Crossbow/pkg/errors"
	"github.com/pranav-jay26/Crossbow/pkg/schema"
)

var testPolicy = schema.Policy{IntegralFloatsAsInt: true}

func buildUnresolved(t *testing.T, cells ...cell.RawCell) *Column {
	t.Helper()
	var st schema.InferenceState
	b := NewBuilder(BuilderOptions{Policy: testPolicy, Capacity: 4})
	for _, c := range cells {
		st.Observe(c, testPolicy)
		require.NoError(t, b.Append(c))
	}
	require.False(t, b.Resolved())
	require.NoError(t, b.Resolve(st.Resolved()))
	col, err := b.Finish()
	require.NoError(t, err)
	return col
}

func TestBitmap(t *testing.T) {
	bm := NewBitmap(0)
	pattern := []bool{true, false, true, true, false, false, false, true, true, false}
	for _, v := range pattern {
		bm.Append(v)
	}
	require.Equal(t, len(pattern), bm.Len())
	for i, v := range pattern {
		assert.Equal(t, v, bm.Get(i), "bit %d", i)
	}
	assert.Equal(t, 5, bm.CountSet())
	assert.Equal(t, []byte{0b10001101, 0b00000001}, bm.Bytes())

	bm.Reset()
	assert.Equal(t, 0, bm.Len())
	bm.AppendN(true, 3)
	assert.Equal(t, []byte{0b111}, bm.Bytes())
}

func TestBooleanColumnWithEmpties(t *testing.T) {
	col := buildUnresolved(t, cell.Bool(true), cell.Empty(), cell.Bool(false), cell.Empty(), cell.Bool(true))

	assert.Equal(t, schema.Boolean, col.Type())
	assert.Equal(t, 5, col.Len())
	assert.Equal(t, 2, col.NullCount())
	assert.Equal(t, []byte{0b10101}, col.Validity())
	assert.True(t, col.Bool(0))
	assert.False(t, col.Bool(2))
	assert.True(t, col.Bool(4))
	assert.True(t, col.IsNull(1))
	assert.Nil(t, col.Value(3))
}

func TestFractionalFloatColumn(t *testing.T) {
	col := buildUnresolved(t, cell.Int(1), cell.Int(2), cell.Float(2.5), cell.Bool(true))

	assert.Equal(t, schema.Float64, col.Type())
	assert.Equal(t, []float64{1, 2, 2.5, 1}, col.Float64Values())
	assert.Equal(t, 0, col.NullCount())
}

func TestIntegralFloatsStayInt(t *testing.T) {
	col := buildUnresolved(t, cell.Int(1), cell.Float(2), cell.Bool(false))

	assert.Equal(t, schema.Int64, col.Type())
	assert.Equal(t, []int64{1, 2, 0}, col.Int64Values())
}

func TestTextWithNumericsFormats(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	col := buildUnresolved(t, cell.Int(42), cell.Float(3.5), cell.Text("x"), cell.Empty(), cell.Bool(false), cell.DateTime(ts), cell.Float(4))

	assert.Equal(t, schema.Utf8String, col.Type())
	assert.Equal(t, "42", col.String(0))
	assert.Equal(t, "3.5", col.String(1))
	assert.Equal(t, "x", col.String(2))
	assert.True(t, col.IsNull(3))
	assert.Equal(t, "", col.String(3))
	assert.Equal(t, "false", col.String(4))
	assert.Equal(t, "2024-05-06T07:08:09Z", col.String(5))
	assert.Equal(t, "4", col.String(6))
	assert.Equal(t, []int32{0, 2, 5, 6, 6, 11, 31, 32}, col.Offsets())
	assert.Len(t, col.Offsets(), col.Len()+1)
}

func TestAllEmptyColumn(t *testing.T) {
	col := buildUnresolved(t, cell.Empty(), cell.Empty(), cell.Empty())

	assert.Equal(t, schema.Utf8String, col.Type())
	assert.Equal(t, 3, col.NullCount())
	assert.Equal(t, []byte{0}, col.Validity())
}

func TestTimestampColumn(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 123456000, time.UTC)
	col := buildUnresolved(t, cell.DateTime(ts), cell.Empty())

	assert.Equal(t, schema.Timestamp, col.Type())
	assert.Equal(t, ts.UnixMicro(), col.Int64Values()[0])
	assert.Equal(t, ts, col.Timestamp(0))
	assert.Equal(t, int64(0), col.Int64Values()[1])
}

func TestAmbiguousSerialIntoTimestamp(t *testing.T) {
	policy := schema.Policy{IntegralFloatsAsInt: true, AmbiguousDates: true}
	b := NewResolvedBuilder(schema.Timestamp, BuilderOptions{Policy: policy})

	require.NoError(t, b.Append(cell.Int(45306)))
	col, err := b.Finish()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), col.Timestamp(0))

	b = NewResolvedBuilder(schema.Timestamp, BuilderOptions{Policy: policy, Date1904: true})
	require.NoError(t, b.Append(cell.Int(43844)))
	col, err = b.Finish()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), col.Timestamp(0))
}

func TestResolvedBuilderWidensByReplay(t *testing.T) {
	var widened []schema.LogicalType
	b := NewResolvedBuilder(schema.Int64, BuilderOptions{
		Policy: testPolicy,
		OnWiden: func(from, to schema.LogicalType) {
			widened = append(widened, from, to)
		},
	})

	require.NoError(t, b.Append(cell.Int(1)))
	require.NoError(t, b.Append(cell.Empty()))
	require.NoError(t, b.Append(cell.Float(2.5)))
	assert.Equal(t, schema.Float64, b.Type())
	require.NoError(t, b.Append(cell.Text("n/a")))
	assert.Equal(t, schema.Utf8String, b.Type())

	col, err := b.Finish()
	require.NoError(t, err)
	assert.Equal(t, []schema.LogicalType{schema.Int64, schema.Float64, schema.Float64, schema.Utf8String}, widened)
	assert.Equal(t, "1", col.String(0))
	assert.True(t, col.IsNull(1))
	assert.Equal(t, "2.5", col.String(2))
	assert.Equal(t, "n/a", col.String(3))
}

func TestStrictBuilderRejects(t *testing.T) {
	b := NewResolvedBuilder(schema.Int64, BuilderOptions{Policy: testPolicy, Strict: true})
	require.NoError(t, b.Append(cell.Int(1)))

	err := b.Append(cell.Float(1.5))
	require.Error(t, err)
	assert.True(t, errors.IsSchemaMismatch(err))
	assert.Equal(t, schema.Int64, b.Type())
	assert.Equal(t, 1, b.Len())
}

func TestFinishResetsBuilder(t *testing.T) {
	b := NewResolvedBuilder(schema.Float64, BuilderOptions{Policy: testPolicy})
	require.NoError(t, b.Append(cell.Float(1.5)))
	first, err := b.Finish()
	require.NoError(t, err)

	require.NoError(t, b.Append(cell.Float(7)))
	second, err := b.Finish()
	require.NoError(t, err)

	assert.Equal(t, []float64{1.5}, first.Float64Values())
	assert.Equal(t, []float64{7}, second.Float64Values())
}

func TestUnresolvedFinishFails(t *testing.T) {
	b := NewBuilder(BuilderOptions{})
	require.NoError(t, b.Append(cell.Int(1)))
	_, err := b.Finish()
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))

	b.Reset()
	assert.Equal(t, 0, b.Len())
	require.NoError(t, b.Resolve(schema.Null))
	assert.Equal(t, schema.Utf8String, b.Type())
	assert.Error(t, b.Resolve(schema.Int64))
}

func TestAppendNulls(t *testing.T) {
	b := NewBuilder(BuilderOptions{Policy: testPolicy})
	b.AppendNulls(2)
	require.NoError(t, b.Append(cell.Int(9)))
	require.NoError(t, b.Resolve(schema.Int64))
	b.AppendNulls(1)

	col, err := b.Finish()
	require.NoError(t, err)
	assert.Equal(t, 4, col.Len())
	assert.Equal(t, 3, col.NullCount())
	assert.Equal(t, []int64{0, 0, 9, 0}, col.Int64Values())
}
